// Package dashboard owns the search state of one weather dashboard and sequences the two
// upstream fetches (current conditions, then forecast) behind a small state machine:
//
//	Idle/Success/Error --Search--> Loading --ok--> Success
//	                                       --err-> Error
//
// Search is rejected while Loading. Unit changes never fetch.
package dashboard

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/nimbus/internal/client"
	"github.com/kjstillabower/nimbus/internal/models"
	"github.com/kjstillabower/nimbus/internal/observability"
)

var (
	// ErrEmptyLocation is returned when the trimmed location is empty. No request is issued.
	ErrEmptyLocation = errors.New("location is empty")
	// ErrSearchInProgress is returned when Search is called while a fetch sequence is in flight.
	ErrSearchInProgress = errors.New("search already in progress")
)

// Fetcher is the subset of client.WeatherClient the dashboard needs.
type Fetcher interface {
	GetCurrent(ctx context.Context, location string) (models.CurrentResponse, error)
	GetForecast(ctx context.Context, location string, days int) (models.ForecastResponse, error)
}

// Option configures a Dashboard.
type Option func(*Dashboard)

// WithLogger sets the fallback logger used when the request context carries none.
func WithLogger(l *zap.Logger) Option {
	return func(d *Dashboard) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithForecastDays overrides the number of forecast days requested.
func WithForecastDays(n int) Option {
	return func(d *Dashboard) {
		if n > 0 {
			d.days = n
		}
	}
}

// WithOnChange registers fn to receive every new snapshot, including the Loading one.
// fn runs on the goroutine that caused the change, outside the dashboard lock.
func WithOnChange(fn func(State)) Option {
	return func(d *Dashboard) { d.onChange = fn }
}

// WithClock overrides time.Now for UpdatedAt stamps.
func WithClock(now func() time.Time) Option {
	return func(d *Dashboard) {
		if now != nil {
			d.now = now
		}
	}
}

// Dashboard coordinates fetch state for one viewer.
type Dashboard struct {
	fetcher  Fetcher
	logger   *zap.Logger
	days     int
	onChange func(State)
	now      func() time.Time

	mu    sync.Mutex
	state State

	mountOnce sync.Once
}

// New returns an Idle dashboard seeded from initial. A zero Unit means Celsius.
func New(fetcher Fetcher, initial InitialState, opts ...Option) *Dashboard {
	unit := initial.Unit
	if unit == "" {
		unit = models.UnitCelsius
	}
	d := &Dashboard{
		fetcher: fetcher,
		logger:  zap.NewNop(),
		days:    DefaultForecastDays,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.state = State{
		Location:  strings.TrimSpace(initial.Location),
		Unit:      unit,
		Phase:     PhaseIdle,
		UpdatedAt: d.now(),
	}
	return d
}

// Restore replaces the state with a stored snapshot. A snapshot that has left Idle marks the
// dashboard as mounted; an Idle one still gets its initial search from Mount.
func (d *Dashboard) Restore(s State) {
	if s.Phase != PhaseIdle {
		d.mountOnce.Do(func() {})
	}
	d.mu.Lock()
	d.state = s
	d.mu.Unlock()
}

// State returns the current snapshot.
func (d *Dashboard) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Mount runs the initial search for the seeded location. Only the first call searches; later
// calls return nil without fetching.
func (d *Dashboard) Mount(ctx context.Context) error {
	var err error
	d.mountOnce.Do(func() {
		err = d.Search(ctx, d.State().Location)
	})
	return err
}

// Search runs the current-then-forecast fetch sequence for location. The returned error is
// ErrEmptyLocation or ErrSearchInProgress when the search was not started, otherwise the fetch
// failure, which is also recorded in State.Error.
func (d *Dashboard) Search(ctx context.Context, location string) error {
	loc := strings.TrimSpace(location)
	logger := observability.LoggerFromContext(ctx, d.logger)
	if loc == "" {
		observability.SearchesTotal.WithLabelValues("rejected").Inc()
		return ErrEmptyLocation
	}

	d.mu.Lock()
	if d.state.Phase == PhaseLoading {
		d.mu.Unlock()
		observability.SearchesTotal.WithLabelValues("rejected").Inc()
		logger.Debug("search rejected, already loading", zap.String("location", loc))
		return ErrSearchInProgress
	}
	d.state.Phase = PhaseLoading
	d.state.Error = ""
	d.state.UpdatedAt = d.now()
	loading := d.state
	d.mu.Unlock()
	d.notify(loading)

	observability.RecordSearch(loc)
	start := time.Now()
	logger.Debug("search started", zap.String("location", loc))

	current, err := d.fetcher.GetCurrent(ctx, loc)
	if err != nil {
		return d.fail(logger, loc, client.EndpointCurrent, err)
	}

	forecast, err := d.fetcher.GetForecast(ctx, loc, d.days)
	if err != nil {
		return d.fail(logger, loc, client.EndpointForecast, err)
	}

	n := len(forecast.Days())
	observability.ForecastDaysReturned.Observe(float64(n))
	if n < d.days {
		observability.ForecastAdvisoriesTotal.Inc()
		logger.Warn("forecast shorter than requested, API plan may limit range",
			zap.String("location", loc), zap.Int("requested", d.days), zap.Int("returned", n))
	}

	d.mu.Lock()
	d.state.Weather = &current
	d.state.Forecast = &forecast
	d.state.Location = loc
	d.state.Phase = PhaseSuccess
	d.state.UpdatedAt = d.now()
	done := d.state
	d.mu.Unlock()
	d.notify(done)

	observability.SearchesTotal.WithLabelValues("success").Inc()
	logger.Info("search finished", zap.String("location", loc), zap.Int("forecast_days", n), zap.Duration("duration", time.Since(start)))
	return nil
}

// fail records err as the user-visible message and clears both data fields.
func (d *Dashboard) fail(logger *zap.Logger, loc string, endpoint client.Endpoint, err error) error {
	msg := err.Error()
	if msg == "" {
		msg = "An unknown error occurred"
	}

	d.mu.Lock()
	d.state.Phase = PhaseError
	d.state.Error = msg
	d.state.Weather = nil
	d.state.Forecast = nil
	d.state.UpdatedAt = d.now()
	failed := d.state
	d.mu.Unlock()
	d.notify(failed)

	category := client.CategorizeError(err)
	observability.SearchesTotal.WithLabelValues("failure").Inc()
	observability.SearchFailuresTotal.WithLabelValues(string(category)).Inc()
	logger.Warn("search failed",
		zap.String("location", loc),
		zap.String("endpoint", string(endpoint)),
		zap.String("category", string(category)),
		zap.Error(err))
	return err
}

// SetUnit changes the display unit. It never fetches.
func (d *Dashboard) SetUnit(u models.Unit) error {
	if u != models.UnitCelsius && u != models.UnitFahrenheit {
		return models.ErrInvalidUnit
	}
	d.mu.Lock()
	d.state.Unit = u
	d.state.UpdatedAt = d.now()
	s := d.state
	d.mu.Unlock()
	d.notify(s)

	observability.UnitChangesTotal.WithLabelValues(string(u)).Inc()
	return nil
}

func (d *Dashboard) notify(s State) {
	if d.onChange != nil {
		d.onChange(s)
	}
}
