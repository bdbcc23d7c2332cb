// Package view turns dashboard state into render-ready view models. Both the HTML templates
// and the terminal UI draw from these; nothing here performs I/O.
package view

import (
	"time"

	"github.com/kjstillabower/nimbus/internal/dashboard"
)

// LoadingText is shown while a fetch sequence is in flight.
const LoadingText = "Loading weather data..."

// Page is the whole dashboard view.
type Page struct {
	Search   SearchBarView `json:"search"`
	Unit     string        `json:"unit"`
	Phase    string        `json:"phase"`
	Loading  bool          `json:"loading"`
	Error    string        `json:"error,omitempty"`
	Weather  *WeatherCard  `json:"weather,omitempty"`
	Forecast *ForecastCard `json:"forecast,omitempty"`
	Footer   Footer        `json:"footer"`
}

// NewPage composes the dashboard. Cards are present only when weather data exists and nothing
// is loading; the forecast card additionally requires forecast data.
func NewPage(s dashboard.State, bar SearchBar, now time.Time) Page {
	loading := s.Loading()
	p := Page{
		Search:  bar.View(loading, s.Location),
		Unit:    string(s.Unit),
		Phase:   string(s.Phase),
		Loading: loading,
		Error:   s.Error,
		Footer:  NewFooter(now),
	}
	if s.Weather != nil && !loading {
		card := NewWeatherCard(*s.Weather, s.Unit)
		p.Weather = &card
		if s.Forecast != nil {
			fc := NewForecastCard(s.Forecast.Days(), s.Unit)
			p.Forecast = &fc
		}
	}
	return p
}
