package models

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Temperature is a degree value decoded leniently from upstream JSON.
// Missing, null or non-numeric values decode to NaN and render as 0.
type Temperature float64

// UnmarshalJSON accepts numbers, numeric strings and null. Anything else becomes NaN rather than
// failing the whole payload.
func (t *Temperature) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*t = Temperature(math.NaN())
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			*t = Temperature(math.NaN())
			return nil
		}
		b = []byte(strings.TrimSpace(s))
	}
	v, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		*t = Temperature(math.NaN())
		return nil
	}
	*t = Temperature(v)
	return nil
}

// MarshalJSON writes null for values that are not finite so stored state round-trips.
func (t Temperature) MarshalJSON() ([]byte, error) {
	if !t.Valid() {
		return []byte("null"), nil
	}
	return strconv.AppendFloat(nil, float64(t), 'f', -1, 64), nil
}

// Valid reports whether t holds a finite number.
func (t Temperature) Valid() bool {
	f := float64(t)
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// Rounded returns t rounded to the nearest integer, or 0 when t is not a number.
func (t Temperature) Rounded() int {
	if !t.Valid() {
		return 0
	}
	return int(math.Round(float64(t)))
}
