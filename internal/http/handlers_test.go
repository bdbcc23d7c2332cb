package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/nimbus/internal/client"
	"github.com/kjstillabower/nimbus/internal/dashboard"
	"github.com/kjstillabower/nimbus/internal/models"
	"github.com/kjstillabower/nimbus/internal/session"
	"github.com/kjstillabower/nimbus/internal/traffic"
	"github.com/kjstillabower/nimbus/internal/view"
)

type mockWeatherClient struct {
	mu          sync.Mutex
	currentErr  error
	forecastErr error
	validateErr error
	days        int // forecast length; 0 means as requested
	calls       []string
	started     chan struct{} // if set, receives once per GetCurrent call
	gate        chan struct{} // if set, GetCurrent blocks until closed
}

func (m *mockWeatherClient) GetCurrent(ctx context.Context, location string) (models.CurrentResponse, error) {
	m.record("current:" + location)
	if m.started != nil {
		m.started <- struct{}{}
	}
	if m.gate != nil {
		<-m.gate
	}
	if m.currentErr != nil {
		return models.CurrentResponse{}, m.currentErr
	}
	return models.CurrentResponse{
		Location: models.Location{Name: location, Region: "Region", Country: "Country"},
		Current:  models.CurrentConditions{TempC: 20, TempF: 68, Condition: models.Condition{Text: "Sunny"}},
	}, nil
}

func (m *mockWeatherClient) GetForecast(ctx context.Context, location string, days int) (models.ForecastResponse, error) {
	m.record("forecast:" + location)
	if m.forecastErr != nil {
		return models.ForecastResponse{}, m.forecastErr
	}
	if m.days > 0 {
		days = m.days
	}
	var resp models.ForecastResponse
	resp.Location = models.Location{Name: location}
	start := time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)
	for i := 0; i < days; i++ {
		resp.Forecast.ForecastDay = append(resp.Forecast.ForecastDay, models.ForecastDay{
			Date: start.AddDate(0, 0, i).Format("2006-01-02"),
			Day: models.DaySummary{
				MaxTempC: 22, MinTempC: 12, MaxTempF: 72, MinTempF: 54,
				Condition: models.Condition{Text: "Partly cloudy"},
			},
		})
	}
	return resp, nil
}

func (m *mockWeatherClient) ValidateAPIKey(ctx context.Context) error {
	return m.validateErr
}

func (m *mockWeatherClient) record(call string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, call)
}

func (m *mockWeatherClient) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

type failingStore struct{ err error }

func (s failingStore) Get(ctx context.Context, id string) (dashboard.State, bool, error) {
	return dashboard.State{}, false, s.err
}

func (s failingStore) Set(ctx context.Context, id string, state dashboard.State, ttl time.Duration) error {
	return s.err
}

type errorBody struct {
	Error struct {
		Code      string `json:"code"`
		Message   string `json:"message"`
		RequestID string `json:"requestId"`
	} `json:"error"`
}

func testDashboardConfig() DashboardConfig {
	return DashboardConfig{
		Initial:       dashboard.DefaultInitialState(),
		ForecastDays:  5,
		SessionTTL:    time.Hour,
		LoadingExpiry: time.Minute,
	}
}

func newTestHandler(mc *mockWeatherClient, store session.Store) *Handler {
	return NewHandler(mc, store, testDashboardConfig(), nil, zap.NewNop())
}

func serve(h *Handler, limiter *rate.Limiter, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	NewRouter(h, zap.NewNop(), limiter, 5*time.Second).ServeHTTP(w, req)
	return w
}

func withSession(req *http.Request, id string) *http.Request {
	req.AddCookie(&http.Cookie{Name: session.CookieName, Value: id})
	return req
}

func formRequest(path string, form url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func seedSession(t *testing.T, store session.Store, s dashboard.State) string {
	t.Helper()
	id := session.NewID()
	if err := store.Set(context.Background(), id, s, time.Hour); err != nil {
		t.Fatalf("seed session: %v", err)
	}
	return id
}

func storedState(t *testing.T, store session.Store, id string) dashboard.State {
	t.Helper()
	s, ok, err := store.Get(context.Background(), id)
	if err != nil || !ok {
		t.Fatalf("stored state for %s: ok=%v err=%v", id, ok, err)
	}
	return s
}

func sessionCookie(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == session.CookieName {
			return c.Value
		}
	}
	t.Fatal("session cookie not set")
	return ""
}

func successState(location string, unit models.Unit) dashboard.State {
	mc := &mockWeatherClient{}
	cur, _ := mc.GetCurrent(context.Background(), location)
	fc, _ := mc.GetForecast(context.Background(), location, 5)
	return dashboard.State{
		Location: location, Unit: unit, Phase: dashboard.PhaseSuccess,
		Weather: &cur, Forecast: &fc, UpdatedAt: time.Now(),
	}
}

// TestHandler_GetDashboard_NewSessionMounts verifies a first visit creates a session and runs
// the default-location search, current before forecast.
func TestHandler_GetDashboard_NewSessionMounts(t *testing.T) {
	mc := &mockWeatherClient{}
	store := session.NewInMemoryStore()
	h := newTestHandler(mc, store)

	w := serve(h, nil, httptest.NewRequest(http.MethodGet, "/", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %q, want text/html", ct)
	}
	calls := mc.Calls()
	if len(calls) != 2 || calls[0] != "current:London" || calls[1] != "forecast:London" {
		t.Errorf("calls = %v, want current then forecast for London", calls)
	}
	body := w.Body.String()
	for _, want := range []string{"London", "Region, Country", "20°C", "5-Day Forecast", "Powered by WeatherAPI.com", "Enter city name..."} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q", want)
		}
	}
	if strings.Contains(body, view.PlanAdvisory) {
		t.Error("advisory shown for a full forecast")
	}
	// Blank input cannot be submitted from the browser.
	if !strings.Contains(body, `required pattern=".*\S.*"`) {
		t.Error("location input should require a non-blank value")
	}

	id := sessionCookie(t, w)
	if s := storedState(t, store, id); s.Phase != dashboard.PhaseSuccess || s.Location != "London" {
		t.Errorf("stored state = %s/%q, want success/London", s.Phase, s.Location)
	}
}

// TestHandler_GetDashboard_ExistingSessionDoesNotFetch verifies revisits render stored state.
func TestHandler_GetDashboard_ExistingSessionDoesNotFetch(t *testing.T) {
	mc := &mockWeatherClient{}
	store := session.NewInMemoryStore()
	id := seedSession(t, store, successState("Tokyo", models.UnitFahrenheit))
	h := newTestHandler(mc, store)

	w := serve(h, nil, withSession(httptest.NewRequest(http.MethodGet, "/", nil), id))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if calls := mc.Calls(); len(calls) != 0 {
		t.Errorf("calls = %v, want none", calls)
	}
	if body := w.Body.String(); !strings.Contains(body, "Tokyo") || !strings.Contains(body, "68°F") {
		t.Errorf("body does not render stored Tokyo/fahrenheit state")
	}
	if got := sessionCookie(t, w); got != id {
		t.Errorf("cookie = %q, want existing session %q", got, id)
	}
}

// TestHandler_GetDashboard_UnknownCookieStartsNewSession verifies malformed or expired IDs are replaced.
func TestHandler_GetDashboard_UnknownCookieStartsNewSession(t *testing.T) {
	for _, cookie := range []string{"not-a-uuid", session.NewID()} {
		mc := &mockWeatherClient{}
		h := newTestHandler(mc, session.NewInMemoryStore())

		w := serve(h, nil, withSession(httptest.NewRequest(http.MethodGet, "/", nil), cookie))

		if got := sessionCookie(t, w); got == cookie || !session.ValidID(got) {
			t.Errorf("cookie %q: new session id = %q", cookie, got)
		}
		if len(mc.Calls()) != 2 {
			t.Errorf("cookie %q: calls = %v, want mount search", cookie, mc.Calls())
		}
	}
}

// TestHandler_GetDashboardJSON verifies the JSON view mirrors the rendered page.
func TestHandler_GetDashboardJSON(t *testing.T) {
	mc := &mockWeatherClient{days: 3}
	h := newTestHandler(mc, session.NewInMemoryStore())

	w := serve(h, nil, httptest.NewRequest(http.MethodGet, "/api/dashboard", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var page view.Page
	if err := json.NewDecoder(w.Body).Decode(&page); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if page.Phase != string(dashboard.PhaseSuccess) || page.Weather == nil || page.Weather.City != "London" {
		t.Fatalf("page = %+v", page)
	}
	if page.Weather.Temperature != 20 || page.Weather.UnitSymbol != "°C" {
		t.Errorf("temperature = %d%s, want 20°C", page.Weather.Temperature, page.Weather.UnitSymbol)
	}
	if page.Forecast == nil || len(page.Forecast.Days) != 3 || page.Forecast.Advisory != view.PlanAdvisory {
		t.Errorf("forecast = %+v, want 3 days with advisory", page.Forecast)
	}
}

// TestHandler_PostSearch_RedirectsAndPersists verifies a browser search updates the session and redirects.
func TestHandler_PostSearch_RedirectsAndPersists(t *testing.T) {
	mc := &mockWeatherClient{}
	store := session.NewInMemoryStore()
	id := seedSession(t, store, successState("London", models.UnitCelsius))
	h := newTestHandler(mc, store)

	w := serve(h, nil, withSession(formRequest("/search", url.Values{"location": {"  Paris "}}), id))

	if w.Code != http.StatusSeeOther || w.Header().Get("Location") != "/" {
		t.Fatalf("status = %d location %q, want 303 to /", w.Code, w.Header().Get("Location"))
	}
	if calls := mc.Calls(); len(calls) != 2 || calls[0] != "current:Paris" {
		t.Errorf("calls = %v, want Paris search", calls)
	}
	s := storedState(t, store, id)
	if s.Location != "Paris" || s.Phase != dashboard.PhaseSuccess || s.Weather.Location.Name != "Paris" {
		t.Errorf("stored = %+v", s)
	}
}

// TestHandler_PostSearch_JSON verifies JSON clients receive the page instead of a redirect.
func TestHandler_PostSearch_JSON(t *testing.T) {
	mc := &mockWeatherClient{}
	h := newTestHandler(mc, session.NewInMemoryStore())

	req := formRequest("/search", url.Values{"location": {"Oslo"}})
	req.Header.Set("Accept", "application/json")
	w := serve(h, nil, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var page view.Page
	if err := json.NewDecoder(w.Body).Decode(&page); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if page.Weather == nil || page.Weather.City != "Oslo" {
		t.Errorf("page weather = %+v, want Oslo", page.Weather)
	}
}

// TestHandler_PostSearch_BlankIsNoOp verifies whitespace input issues no request.
func TestHandler_PostSearch_BlankIsNoOp(t *testing.T) {
	mc := &mockWeatherClient{}
	store := session.NewInMemoryStore()
	id := seedSession(t, store, successState("London", models.UnitCelsius))
	h := newTestHandler(mc, store)

	w := serve(h, nil, withSession(formRequest("/search", url.Values{"location": {"   "}}), id))

	if w.Code != http.StatusSeeOther {
		t.Errorf("status = %d, want 303", w.Code)
	}
	if calls := mc.Calls(); len(calls) != 0 {
		t.Errorf("calls = %v, want none", calls)
	}
}

// TestHandler_PostSearch_InvalidLocation verifies rejected input never reaches upstream.
func TestHandler_PostSearch_InvalidLocation(t *testing.T) {
	t.Run("json", func(t *testing.T) {
		mc := &mockWeatherClient{}
		h := newTestHandler(mc, session.NewInMemoryStore())
		id := session.NewID()

		req := withSession(formRequest("/search", url.Values{"location": {"<b>bold</b>"}}), id)
		req.Header.Set("Accept", "application/json")
		req.Header.Set("X-Correlation-ID", "corr-123")
		w := serve(h, nil, req)

		if w.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", w.Code)
		}
		var body errorBody
		if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if body.Error.Code != "INVALID_LOCATION" || body.Error.RequestID != "corr-123" {
			t.Errorf("error = %+v", body.Error)
		}
		if calls := mc.Calls(); len(calls) != 0 {
			t.Errorf("calls = %v, want none", calls)
		}
	})

	t.Run("html keeps input", func(t *testing.T) {
		mc := &mockWeatherClient{}
		store := session.NewInMemoryStore()
		id := seedSession(t, store, successState("London", models.UnitCelsius))
		h := newTestHandler(mc, store)

		w := serve(h, nil, withSession(formRequest("/search", url.Values{"location": {"<b>bold</b>"}}), id))

		if w.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", w.Code)
		}
		body := w.Body.String()
		if strings.Contains(body, "<b>bold</b>") || !strings.Contains(body, "&lt;b&gt;bold&lt;/b&gt;") {
			t.Error("typed input should be preserved and escaped")
		}
		if !strings.Contains(body, `class="banner notice"`) {
			t.Error("notice banner missing")
		}
	})
}

// TestHandler_PostSearch_WhileLoading verifies a session with a search in flight rejects another.
func TestHandler_PostSearch_WhileLoading(t *testing.T) {
	mc := &mockWeatherClient{}
	store := session.NewInMemoryStore()
	id := seedSession(t, store, dashboard.State{Location: "London", Unit: models.UnitCelsius, Phase: dashboard.PhaseLoading, UpdatedAt: time.Now()})
	h := newTestHandler(mc, store)

	req := withSession(formRequest("/search", url.Values{"location": {"Paris"}}), id)
	req.Header.Set("Accept", "application/json")
	w := serve(h, nil, req)

	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", w.Code)
	}
	var body errorBody
	_ = json.NewDecoder(w.Body).Decode(&body)
	if body.Error.Code != "SEARCH_IN_PROGRESS" {
		t.Errorf("code = %q, want SEARCH_IN_PROGRESS", body.Error.Code)
	}
	if calls := mc.Calls(); len(calls) != 0 {
		t.Errorf("calls = %v, want none", calls)
	}
}

// TestHandler_PostSearch_StaleLoadingRecovers verifies an abandoned Loading state does not
// block the session forever.
func TestHandler_PostSearch_StaleLoadingRecovers(t *testing.T) {
	mc := &mockWeatherClient{}
	store := session.NewInMemoryStore()
	id := seedSession(t, store, dashboard.State{Location: "London", Unit: models.UnitCelsius, Phase: dashboard.PhaseLoading, UpdatedAt: time.Now().Add(-time.Hour)})
	h := newTestHandler(mc, store)

	w := serve(h, nil, withSession(formRequest("/search", url.Values{"location": {"Paris"}}), id))

	if w.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303", w.Code)
	}
	if s := storedState(t, store, id); s.Phase != dashboard.PhaseSuccess || s.Location != "Paris" {
		t.Errorf("stored = %s/%q, want success/Paris", s.Phase, s.Location)
	}
}

// TestHandler_PostSearch_UpstreamErrorRendersBanner verifies a failed fetch shows only the error.
func TestHandler_PostSearch_UpstreamErrorRendersBanner(t *testing.T) {
	traffic.Reset()
	defer traffic.Reset()

	mc := &mockWeatherClient{currentErr: &client.StatusError{Endpoint: client.EndpointCurrent, StatusCode: 400, StatusText: "Bad Request"}}
	store := session.NewInMemoryStore()
	id := seedSession(t, store, successState("London", models.UnitCelsius))
	h := newTestHandler(mc, store)

	w := serve(h, nil, withSession(formRequest("/search", url.Values{"location": {"Atlantis"}}), id))
	if w.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303", w.Code)
	}
	if calls := mc.Calls(); len(calls) != 1 {
		t.Errorf("calls = %v, forecast must not be requested after current fails", calls)
	}

	w = serve(h, nil, withSession(httptest.NewRequest(http.MethodGet, "/", nil), id))
	body := w.Body.String()
	if !strings.Contains(body, "Error: Weather API error: 400 Bad Request") {
		t.Error("error banner missing")
	}
	if strings.Contains(body, `class="card weather`) || strings.Contains(body, "5-Day Forecast") {
		t.Error("cards must be hidden after a failed search")
	}
	if failures, total := traffic.FailureRate(time.Minute); failures != 1 || total != 1 {
		t.Errorf("FailureRate = %d/%d, want 1/1", failures, total)
	}
}

// TestHandler_PostUnit verifies unit changes persist and never fetch.
func TestHandler_PostUnit(t *testing.T) {
	mc := &mockWeatherClient{}
	store := session.NewInMemoryStore()
	id := seedSession(t, store, successState("London", models.UnitCelsius))
	h := newTestHandler(mc, store)

	w := serve(h, nil, withSession(formRequest("/unit", url.Values{"unit": {"fahrenheit"}}), id))

	if w.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303", w.Code)
	}
	if calls := mc.Calls(); len(calls) != 0 {
		t.Errorf("calls = %v, want none", calls)
	}
	if s := storedState(t, store, id); s.Unit != models.UnitFahrenheit {
		t.Errorf("stored unit = %q, want fahrenheit", s.Unit)
	}

	w = serve(h, nil, withSession(httptest.NewRequest(http.MethodGet, "/", nil), id))
	if body := w.Body.String(); !strings.Contains(body, "68°F") || !strings.Contains(body, "72° / 54°") {
		t.Error("page should render fahrenheit values after toggle")
	}
}

// TestHandler_PostUnit_DuringSearchSurvives verifies a toggle made while another request's
// search is in flight is not overwritten when that search finishes.
func TestHandler_PostUnit_DuringSearchSurvives(t *testing.T) {
	mc := &mockWeatherClient{started: make(chan struct{}, 1), gate: make(chan struct{})}
	store := session.NewInMemoryStore()
	id := seedSession(t, store, successState("London", models.UnitCelsius))
	h := newTestHandler(mc, store)

	done := make(chan *httptest.ResponseRecorder, 1)
	go func() {
		done <- serve(h, nil, withSession(formRequest("/search", url.Values{"location": {"Paris"}}), id))
	}()
	<-mc.started

	w := serve(h, nil, withSession(formRequest("/unit", url.Values{"unit": {"fahrenheit"}}), id))
	if w.Code != http.StatusSeeOther {
		t.Fatalf("unit status = %d, want 303", w.Code)
	}
	if s := storedState(t, store, id); s.Phase != dashboard.PhaseLoading || s.Unit != models.UnitFahrenheit {
		t.Fatalf("during search stored = %s/%s, want loading/fahrenheit", s.Phase, s.Unit)
	}

	close(mc.gate)
	if w := <-done; w.Code != http.StatusSeeOther {
		t.Fatalf("search status = %d, want 303", w.Code)
	}

	s := storedState(t, store, id)
	if s.Phase != dashboard.PhaseSuccess || s.Location != "Paris" {
		t.Errorf("stored = %s/%q, want success/Paris", s.Phase, s.Location)
	}
	if s.Unit != models.UnitFahrenheit {
		t.Errorf("stored unit = %q after search, want fahrenheit", s.Unit)
	}
}

// TestHandler_PostUnit_FirstRequestStillMounts verifies a session opened by a unit toggle gets
// its default-location search on the next page load.
func TestHandler_PostUnit_FirstRequestStillMounts(t *testing.T) {
	mc := &mockWeatherClient{}
	store := session.NewInMemoryStore()
	h := newTestHandler(mc, store)

	w := serve(h, nil, formRequest("/unit", url.Values{"unit": {"fahrenheit"}}))
	if w.Code != http.StatusSeeOther {
		t.Fatalf("unit status = %d, want 303", w.Code)
	}
	id := sessionCookie(t, w)
	if calls := mc.Calls(); len(calls) != 0 {
		t.Fatalf("unit toggle fetched: %v", calls)
	}

	w = serve(h, nil, withSession(httptest.NewRequest(http.MethodGet, "/api/dashboard", nil), id))

	var page view.Page
	if err := json.NewDecoder(w.Body).Decode(&page); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if calls := mc.Calls(); len(calls) != 2 || calls[0] != "current:London" {
		t.Errorf("calls = %v, want mount search for London", calls)
	}
	if page.Phase != string(dashboard.PhaseSuccess) || page.Weather == nil {
		t.Fatalf("page = %s weather=%v, want success with weather", page.Phase, page.Weather != nil)
	}
	if page.Unit != string(models.UnitFahrenheit) || page.Weather.TemperatureLabel() != "68°F" {
		t.Errorf("unit = %q label = %q, want fahrenheit kept", page.Unit, page.Weather.TemperatureLabel())
	}

	// Once mounted, later loads render stored state.
	serve(h, nil, withSession(httptest.NewRequest(http.MethodGet, "/", nil), id))
	if got := len(mc.Calls()); got != 2 {
		t.Errorf("calls after revisit = %d, want 2", got)
	}
}

func TestHandler_PostUnit_Invalid(t *testing.T) {
	h := newTestHandler(&mockWeatherClient{}, session.NewInMemoryStore())

	req := formRequest("/unit", url.Values{"unit": {"kelvin"}})
	req.Header.Set("Accept", "application/json")
	w := serve(h, nil, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	var body errorBody
	_ = json.NewDecoder(w.Body).Decode(&body)
	if body.Error.Code != "INVALID_UNIT" {
		t.Errorf("code = %q, want INVALID_UNIT", body.Error.Code)
	}
}

func TestHandler_SessionStoreUnavailable(t *testing.T) {
	h := newTestHandler(&mockWeatherClient{}, failingStore{err: errors.New("connection refused")})

	w := serve(h, nil, withSession(httptest.NewRequest(http.MethodGet, "/", nil), session.NewID()))

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", w.Code)
	}
	var body errorBody
	_ = json.NewDecoder(w.Body).Decode(&body)
	if body.Error.Code != "SESSION_UNAVAILABLE" {
		t.Errorf("code = %q, want SESSION_UNAVAILABLE", body.Error.Code)
	}
}

func TestHandler_PostSearch_RateLimited(t *testing.T) {
	traffic.Reset()
	defer traffic.Reset()

	mc := &mockWeatherClient{}
	h := newTestHandler(mc, session.NewInMemoryStore())
	limiter := rate.NewLimiter(rate.Limit(0.001), 1)

	first := serve(h, limiter, formRequest("/search", url.Values{"location": {"Paris"}}))
	second := serve(h, limiter, formRequest("/search", url.Values{"location": {"Rome"}}))

	if first.Code != http.StatusSeeOther {
		t.Errorf("first status = %d, want 303", first.Code)
	}
	if second.Code != http.StatusTooManyRequests {
		t.Fatalf("second status = %d, want 429", second.Code)
	}
	var body errorBody
	_ = json.NewDecoder(second.Body).Decode(&body)
	if body.Error.Code != "RATE_LIMITED" {
		t.Errorf("code = %q, want RATE_LIMITED", body.Error.Code)
	}
	if got := traffic.DenialCount(time.Minute); got != 1 {
		t.Errorf("DenialCount = %d, want 1", got)
	}
	for _, c := range mc.Calls() {
		if strings.HasSuffix(c, "Rome") {
			t.Errorf("denied search reached upstream: %v", mc.Calls())
		}
	}
}

func TestHandler_GetHealth(t *testing.T) {
	tests := []struct {
		name       string
		client     *mockWeatherClient
		cfg        *HealthConfig
		failures   int
		successes  int
		draining   bool
		wantCode   int
		wantStatus string
		wantChecks map[string]string
	}{
		{
			name: "healthy", client: &mockWeatherClient{},
			wantCode: http.StatusOK, wantStatus: "healthy",
			wantChecks: map[string]string{"weatherApi": "healthy"},
		},
		{
			name: "invalid api key", client: &mockWeatherClient{validateErr: client.ErrInvalidAPIKey},
			wantCode: http.StatusServiceUnavailable, wantStatus: "degraded",
			wantChecks: map[string]string{"weatherApi": "unhealthy"},
		},
		{
			name: "shutting down", client: &mockWeatherClient{}, draining: true,
			wantCode: http.StatusServiceUnavailable, wantStatus: "shutting-down",
		},
		{
			name: "error rate breach", client: &mockWeatherClient{},
			cfg:      &HealthConfig{DegradedWindow: time.Minute, DegradedErrorPct: 50},
			failures: 3, successes: 1,
			wantCode: http.StatusServiceUnavailable, wantStatus: "degraded",
		},
		{
			name: "below error threshold", client: &mockWeatherClient{},
			cfg:      &HealthConfig{DegradedWindow: time.Minute, DegradedErrorPct: 50},
			failures: 1, successes: 3,
			wantCode: http.StatusOK, wantStatus: "healthy",
		},
		{
			name: "session store down", client: &mockWeatherClient{},
			cfg:      &HealthConfig{StorePing: func() error { return errors.New("down") }},
			wantCode: http.StatusOK, wantStatus: "healthy",
			wantChecks: map[string]string{"weatherApi": "healthy", "sessionStore": "unhealthy"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			traffic.Reset()
			defer traffic.Reset()
			for i := 0; i < tt.failures; i++ {
				traffic.RecordFailure()
			}
			for i := 0; i < tt.successes; i++ {
				traffic.RecordSuccess()
			}
			h := NewHandler(tt.client, session.NewInMemoryStore(), testDashboardConfig(), tt.cfg, zap.NewNop())
			h.SetShuttingDown(tt.draining)

			w := serve(h, nil, httptest.NewRequest(http.MethodGet, "/health", nil))

			if w.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", w.Code, tt.wantCode)
			}
			var resp struct {
				Status  string            `json:"status"`
				Service string            `json:"service"`
				Checks  map[string]string `json:"checks"`
			}
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.Status != tt.wantStatus || resp.Service != "nimbus" {
				t.Errorf("status/service = %q/%q, want %q/nimbus", resp.Status, resp.Service, tt.wantStatus)
			}
			for k, v := range tt.wantChecks {
				if resp.Checks[k] != v {
					t.Errorf("checks[%s] = %q, want %q", k, resp.Checks[k], v)
				}
			}
		})
	}
}

// TestHandler_GetHealth_LogsTransition verifies status changes are logged once.
func TestHandler_GetHealth_LogsTransition(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	mc := &mockWeatherClient{}
	h := NewHandler(mc, session.NewInMemoryStore(), testDashboardConfig(), nil, zap.New(core))

	serve(h, nil, httptest.NewRequest(http.MethodGet, "/health", nil))
	mc.validateErr = client.ErrInvalidAPIKey
	serve(h, nil, httptest.NewRequest(http.MethodGet, "/health", nil))
	serve(h, nil, httptest.NewRequest(http.MethodGet, "/health", nil))

	entries := logs.FilterMessage("health status transition").All()
	if len(entries) != 1 {
		t.Fatalf("transition logs = %d, want 1", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["previous_status"] != "healthy" || fields["current_status"] != "degraded" || fields["reason"] != "api_key_invalid" {
		t.Errorf("fields = %v", fields)
	}
}

func TestHandler_Metrics(t *testing.T) {
	h := newTestHandler(&mockWeatherClient{}, session.NewInMemoryStore())
	serve(h, nil, httptest.NewRequest(http.MethodGet, "/", nil))

	w := serve(h, nil, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	body := w.Body.String()
	for _, want := range []string{"httpRequestsTotal", "searchesTotal", "sessionsCreatedTotal"} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics missing %s", want)
		}
	}
}
