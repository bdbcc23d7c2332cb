package view

import (
	"strconv"
	"strings"

	"github.com/kjstillabower/nimbus/internal/models"
)

// UnitButton is one side of the unit toggle.
type UnitButton struct {
	Unit    models.Unit `json:"unit"`
	Label   string      `json:"label"`
	Pressed bool        `json:"pressed"`
}

// WeatherCard is the view model of the current-conditions card.
type WeatherCard struct {
	City        string       `json:"city"`
	Details     string       `json:"details"`
	Temperature int          `json:"temperature"`
	UnitSymbol  string       `json:"unitSymbol"`
	Condition   string       `json:"condition"`
	Category    Category     `json:"category"`
	Glyph       string       `json:"glyph"`
	Toggle      []UnitButton `json:"toggle"`
}

// NewWeatherCard derives the card from a current-conditions response and the unit preference.
func NewWeatherCard(resp models.CurrentResponse, unit models.Unit) WeatherCard {
	cat := Categorize(resp.Current.Condition.Text)
	return WeatherCard{
		City:        resp.Location.Name,
		Details:     joinNonEmpty(", ", resp.Location.Region, resp.Location.Country),
		Temperature: resp.Current.Temp(unit).Rounded(),
		UnitSymbol:  unit.Symbol(),
		Condition:   resp.Current.Condition.Text,
		Category:    cat,
		Glyph:       cat.Glyph(),
		Toggle: []UnitButton{
			{Unit: models.UnitCelsius, Label: models.UnitCelsius.Symbol(), Pressed: unit != models.UnitFahrenheit},
			{Unit: models.UnitFahrenheit, Label: models.UnitFahrenheit.Symbol(), Pressed: unit == models.UnitFahrenheit},
		},
	}
}

// TemperatureLabel returns e.g. "20°C".
func (c WeatherCard) TemperatureLabel() string {
	return strconv.Itoa(c.Temperature) + c.UnitSymbol
}

func joinNonEmpty(sep string, parts ...string) string {
	out := parts[:0:0]
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, sep)
}
