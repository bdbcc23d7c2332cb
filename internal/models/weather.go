package models

// Location describes where a report applies. Fields are copied from the upstream response as-is.
type Location struct {
	Name    string `json:"name"`
	Region  string `json:"region"`
	Country string `json:"country"`
}

// Condition is the upstream condition descriptor: a free-text label and an icon reference.
type Condition struct {
	Text string `json:"text"`
	Icon string `json:"icon"`
}

// CurrentConditions is a point-in-time snapshot. Both unit fields are always populated upstream.
type CurrentConditions struct {
	TempC     Temperature `json:"temp_c"`
	TempF     Temperature `json:"temp_f"`
	Condition Condition   `json:"condition"`
}

// Temp selects the temperature field matching u.
func (c CurrentConditions) Temp(u Unit) Temperature {
	if u == UnitFahrenheit {
		return c.TempF
	}
	return c.TempC
}

// DaySummary holds one forecast day's extremes in both units.
type DaySummary struct {
	MaxTempC  Temperature `json:"maxtemp_c"`
	MinTempC  Temperature `json:"mintemp_c"`
	MaxTempF  Temperature `json:"maxtemp_f"`
	MinTempF  Temperature `json:"mintemp_f"`
	Condition Condition   `json:"condition"`
}

// MaxTemp selects the daily maximum matching u.
func (d DaySummary) MaxTemp(u Unit) Temperature {
	if u == UnitFahrenheit {
		return d.MaxTempF
	}
	return d.MaxTempC
}

// MinTemp selects the daily minimum matching u.
func (d DaySummary) MinTemp(u Unit) Temperature {
	if u == UnitFahrenheit {
		return d.MinTempF
	}
	return d.MinTempC
}

// ForecastDay is one entry of the forecast series. Date is the upstream YYYY-MM-DD key.
type ForecastDay struct {
	Date string     `json:"date"`
	Day  DaySummary `json:"day"`
}

// CurrentResponse mirrors the current.json payload.
type CurrentResponse struct {
	Location Location          `json:"location"`
	Current  CurrentConditions `json:"current"`
}

// ForecastResponse mirrors the forecast.json payload. The series may be shorter than requested
// when the API plan limits the range.
type ForecastResponse struct {
	Location Location          `json:"location"`
	Current  CurrentConditions `json:"current"`
	Forecast struct {
		ForecastDay []ForecastDay `json:"forecastday"`
	} `json:"forecast"`
}

// Days returns the forecast series.
func (f ForecastResponse) Days() []ForecastDay {
	return f.Forecast.ForecastDay
}
