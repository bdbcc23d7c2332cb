package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/nimbus/internal/client"
	"github.com/kjstillabower/nimbus/internal/dashboard"
	"github.com/kjstillabower/nimbus/internal/models"
	"github.com/kjstillabower/nimbus/internal/observability"
	"github.com/kjstillabower/nimbus/internal/session"
	"github.com/kjstillabower/nimbus/internal/traffic"
	"github.com/kjstillabower/nimbus/internal/validation"
	"github.com/kjstillabower/nimbus/internal/view"
)

// DashboardConfig holds per-session dashboard settings.
type DashboardConfig struct {
	Initial           dashboard.InitialState
	ForecastDays      int
	SessionTTL        time.Duration
	LoadingExpiry     time.Duration
	LocationMinLength int
	LocationMaxLength int
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	client       client.WeatherClient
	store        session.Store
	dashboard    DashboardConfig
	healthConfig *HealthConfig
	logger       *zap.Logger
	now          func() time.Time

	health healthState
}

// NewHandler returns a new Handler. healthConfig may be nil.
func NewHandler(
	weatherClient client.WeatherClient,
	store session.Store,
	dashboardConfig DashboardConfig,
	healthConfig *HealthConfig,
	logger *zap.Logger,
) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if dashboardConfig.LocationMinLength <= 0 {
		dashboardConfig.LocationMinLength = 1
	}
	if dashboardConfig.LocationMaxLength <= 0 {
		dashboardConfig.LocationMaxLength = 100
	}
	return &Handler{
		client:       weatherClient,
		store:        store,
		dashboard:    dashboardConfig,
		healthConfig: healthConfig,
		logger:       logger,
		now:          time.Now,
	}
}

// viewerSession is one request's view of a browser session.
type viewerSession struct {
	id   string
	dash *dashboard.Dashboard
}

// openSession loads the caller's dashboard from the store, creating a session when the cookie is
// missing, malformed or expired. Every state change is written back to the store.
func (h *Handler) openSession(w http.ResponseWriter, r *http.Request) (*viewerSession, error) {
	ctx := r.Context()
	logger := observability.LoggerFromContext(ctx, h.logger)

	var (
		id     string
		stored dashboard.State
		found  bool
	)
	if c, err := r.Cookie(session.CookieName); err == nil && session.ValidID(c.Value) {
		id = c.Value
		var getErr error
		stored, found, getErr = h.store.Get(ctx, id)
		if getErr != nil {
			observability.SessionStoreErrorsTotal.WithLabelValues("get").Inc()
			return nil, getErr
		}
	}
	if !found {
		id = session.NewID()
		observability.SessionsCreatedTotal.Inc()
	}

	// Saves outlive the request deadline so a timed-out search still records its failure.
	saveCtx := context.WithoutCancel(ctx)
	// ownUnit is the unit this request last loaded or wrote. A snapshot carrying it did not
	// change the unit here, so the stored unit wins: a toggle made by another request while
	// this one was searching survives the search's final save.
	var ownUnit models.Unit
	save := func(s dashboard.State) {
		if s.Unit == ownUnit {
			if cur, ok, err := h.store.Get(saveCtx, id); err == nil && ok && cur.Unit != "" {
				s.Unit = cur.Unit
			}
		} else {
			ownUnit = s.Unit
		}
		if err := h.store.Set(saveCtx, id, s, h.dashboard.SessionTTL); err != nil {
			observability.SessionStoreErrorsTotal.WithLabelValues("set").Inc()
			logger.Warn("session save failed", zap.String("session_id", id), zap.Error(err))
		}
	}

	d := dashboard.New(h.client, h.dashboard.Initial,
		dashboard.WithForecastDays(h.dashboard.ForecastDays),
		dashboard.WithLogger(h.logger),
		dashboard.WithOnChange(save),
		dashboard.WithClock(h.now),
	)
	if found {
		d.Restore(dashboard.ExpireLoading(stored, h.now(), h.dashboard.LoadingExpiry))
	}
	ownUnit = d.State().Unit

	http.SetCookie(w, &http.Cookie{
		Name:     session.CookieName,
		Value:    id,
		Path:     "/",
		MaxAge:   int(h.dashboard.SessionTTL / time.Second),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return &viewerSession{id: id, dash: d}, nil
}

// mount runs the default-location search for a session that has not searched yet: a new one,
// or one whose only stored change so far is a unit toggle.
func (h *Handler) mount(ctx context.Context, vs *viewerSession) {
	if vs.dash.State().Phase != dashboard.PhaseIdle {
		return
	}
	recordSearchOutcome(vs.dash.Mount(ctx))
}

// GetDashboard handles GET /.
func (h *Handler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	vs, err := h.openSession(w, r)
	if err != nil {
		h.writeSessionError(w, r, err)
		return
	}
	h.mount(r.Context(), vs)
	h.renderPage(w, r, http.StatusOK, vs.dash.State(), view.SearchBar{}, "")
}

// GetDashboardJSON handles GET /api/dashboard.
func (h *Handler) GetDashboardJSON(w http.ResponseWriter, r *http.Request) {
	vs, err := h.openSession(w, r)
	if err != nil {
		h.writeSessionError(w, r, err)
		return
	}
	h.mount(r.Context(), vs)
	writeJSON(w, http.StatusOK, view.NewPage(vs.dash.State(), view.SearchBar{}, h.now()))
}

// PostSearch handles POST /search. Form field "location". A blank location is a no-op.
func (h *Handler) PostSearch(w http.ResponseWriter, r *http.Request) {
	vs, err := h.openSession(w, r)
	if err != nil {
		h.writeSessionError(w, r, err)
		return
	}
	input := r.FormValue("location")
	if strings.TrimSpace(input) == "" {
		h.finish(w, r, vs)
		return
	}

	loc, err := validation.ValidateLocation(input, h.dashboard.LocationMinLength, h.dashboard.LocationMaxLength)
	if err != nil {
		h.reject(w, r, vs, http.StatusBadRequest, "INVALID_LOCATION", err.Error(), input)
		return
	}

	err = vs.dash.Search(r.Context(), loc)
	if errors.Is(err, dashboard.ErrSearchInProgress) {
		h.reject(w, r, vs, http.StatusConflict, "SEARCH_IN_PROGRESS", "A search is already in progress", input)
		return
	}
	// Fetch failures live in the dashboard state and render as the error banner.
	recordSearchOutcome(err)
	h.finish(w, r, vs)
}

// PostUnit handles POST /unit. Form field "unit": celsius or fahrenheit.
func (h *Handler) PostUnit(w http.ResponseWriter, r *http.Request) {
	vs, err := h.openSession(w, r)
	if err != nil {
		h.writeSessionError(w, r, err)
		return
	}
	u, err := models.ParseUnit(r.FormValue("unit"))
	if err == nil {
		err = vs.dash.SetUnit(u)
	}
	if err != nil {
		h.reject(w, r, vs, http.StatusBadRequest, "INVALID_UNIT", "unit must be celsius or fahrenheit", "")
		return
	}
	h.finish(w, r, vs)
}

// finish answers a successful form post: 303 back to the dashboard for browsers, the page view
// for JSON clients.
func (h *Handler) finish(w http.ResponseWriter, r *http.Request, vs *viewerSession) {
	if wantsJSON(r) {
		writeJSON(w, http.StatusOK, view.NewPage(vs.dash.State(), view.SearchBar{}, h.now()))
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// reject answers a refused form post. Browsers get the dashboard with a notice and the typed
// input preserved; JSON clients get the error envelope.
func (h *Handler) reject(w http.ResponseWriter, r *http.Request, vs *viewerSession, status int, code, message, input string) {
	observability.LoggerFromContext(r.Context(), h.logger).Debug("form rejected",
		zap.String("code", code), zap.String("reason", message))
	if wantsJSON(r) {
		writeError(w, r, status, code, message)
		return
	}
	h.renderPage(w, r, status, vs.dash.State(), view.SearchBar{Input: input}, message)
}

func (h *Handler) writeSessionError(w http.ResponseWriter, r *http.Request, err error) {
	observability.LoggerFromContext(r.Context(), h.logger).Error("session store unavailable", zap.Error(err))
	writeError(w, r, http.StatusServiceUnavailable, "SESSION_UNAVAILABLE", "Session storage is unavailable")
}

// recordSearchOutcome feeds the degraded-status tracker. Searches that never started are ignored.
func recordSearchOutcome(err error) {
	switch {
	case err == nil:
		traffic.RecordSuccess()
	case errors.Is(err, dashboard.ErrEmptyLocation), errors.Is(err, dashboard.ErrSearchInProgress):
	default:
		traffic.RecordFailure()
	}
}

func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

// writeJSON writes a JSON response with the specified HTTP status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes an error response in the standard error format with code, message,
// and requestId (correlation ID) if available in request context.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]string{
			"code":      code,
			"message":   message,
			"requestId": observability.CorrelationID(r.Context()),
		},
	})
}
