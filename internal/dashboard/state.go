package dashboard

import (
	"time"

	"github.com/kjstillabower/nimbus/internal/models"
)

// Phase is the fetch state machine position.
type Phase string

const (
	PhaseIdle    Phase = "idle"
	PhaseLoading Phase = "loading"
	PhaseSuccess Phase = "success"
	PhaseError   Phase = "error"
)

// DefaultLocation and DefaultForecastDays seed DefaultInitialState.
const (
	DefaultLocation     = "London"
	DefaultForecastDays = 5
)

// InitialState is the construction-time seed for a dashboard.
type InitialState struct {
	Location string
	Unit     models.Unit
}

// DefaultInitialState returns London in Celsius.
func DefaultInitialState() InitialState {
	return InitialState{Location: DefaultLocation, Unit: models.UnitCelsius}
}

// State is a snapshot of the dashboard. Weather and Forecast are shared between snapshots and
// must be treated as read-only.
type State struct {
	Location  string                   `json:"location"`
	Unit      models.Unit              `json:"unit"`
	Phase     Phase                    `json:"phase"`
	Error     string                   `json:"error,omitempty"`
	Weather   *models.CurrentResponse  `json:"weather,omitempty"`
	Forecast  *models.ForecastResponse `json:"forecast,omitempty"`
	UpdatedAt time.Time                `json:"updatedAt"`
}

// Loading reports whether a fetch sequence is in flight.
func (s State) Loading() bool {
	return s.Phase == PhaseLoading
}

// ExpireLoading turns a Loading snapshot older than maxAge into an Error snapshot. Stored
// session state can be left in Loading when the process dies mid-search; without this the
// session would reject every later search.
func ExpireLoading(s State, now time.Time, maxAge time.Duration) State {
	if !s.Loading() || maxAge <= 0 || now.Sub(s.UpdatedAt) < maxAge {
		return s
	}
	s.Phase = PhaseError
	s.Error = "Search was interrupted. Please try again."
	s.Weather = nil
	s.Forecast = nil
	s.UpdatedAt = now
	return s
}
