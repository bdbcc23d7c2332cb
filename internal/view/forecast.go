package view

import (
	"time"

	"github.com/kjstillabower/nimbus/internal/models"
)

// PlanAdvisory is shown when the forecast has fewer days than requested.
const PlanAdvisory = "Note: the API plan may limit forecast days. Upgrade for the full 5-day forecast."

// AdvisoryThreshold is the series length below which PlanAdvisory is shown.
const AdvisoryThreshold = 5

// DayView is one rendered forecast entry, keyed by its date.
type DayView struct {
	Key       string   `json:"key"`
	Weekday   string   `json:"weekday"`
	Max       int      `json:"max"`
	Min       int      `json:"min"`
	Condition string   `json:"condition"`
	Category  Category `json:"category"`
	Glyph     string   `json:"glyph"`
}

// ForecastCard is the view model of the forecast section.
type ForecastCard struct {
	Title    string    `json:"title"`
	Days     []DayView `json:"days"`
	Advisory string    `json:"advisory,omitempty"`
}

// NewForecastCard renders every day it is given, in order. Temperatures follow unit.
func NewForecastCard(days []models.ForecastDay, unit models.Unit) ForecastCard {
	card := ForecastCard{
		Title: "5-Day Forecast",
		Days:  make([]DayView, 0, len(days)),
	}
	for _, d := range days {
		cat := Categorize(d.Day.Condition.Text)
		card.Days = append(card.Days, DayView{
			Key:       d.Date,
			Weekday:   weekday(d.Date),
			Max:       d.Day.MaxTemp(unit).Rounded(),
			Min:       d.Day.MinTemp(unit).Rounded(),
			Condition: d.Day.Condition.Text,
			Category:  cat,
			Glyph:     cat.Glyph(),
		})
	}
	if len(card.Days) < AdvisoryThreshold {
		card.Advisory = PlanAdvisory
	}
	return card
}

// weekday returns the short English day name of a YYYY-MM-DD date, or the input when it does not parse.
func weekday(date string) string {
	t, err := time.Parse("2006-01-02", date)
	if err != nil {
		return date
	}
	return t.Format("Mon")
}
