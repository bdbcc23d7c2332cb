package models

import (
	"errors"
	"fmt"
	"strings"
)

// Unit is the display unit preference.
type Unit string

const (
	UnitCelsius    Unit = "celsius"
	UnitFahrenheit Unit = "fahrenheit"
)

// ErrInvalidUnit is returned by ParseUnit for anything outside the two supported units.
var ErrInvalidUnit = errors.New("invalid unit")

// ParseUnit accepts "celsius"/"fahrenheit" and the short forms "c"/"f", case-insensitive.
func ParseUnit(s string) (Unit, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "celsius", "c":
		return UnitCelsius, nil
	case "fahrenheit", "f":
		return UnitFahrenheit, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidUnit, s)
}

// Symbol returns the degree suffix shown next to temperatures.
func (u Unit) Symbol() string {
	if u == UnitFahrenheit {
		return "°F"
	}
	return "°C"
}
