package view

import "strings"

// SearchBar holds the text being typed. It owns no weather data.
type SearchBar struct {
	Input string
}

// Submit dispatches the trimmed input to onSearch when it is non-empty and nothing is loading,
// then clears the input. It reports whether a search was dispatched.
func (b *SearchBar) Submit(loading bool, onSearch func(location string)) bool {
	loc := strings.TrimSpace(b.Input)
	if loc == "" || loading {
		return false
	}
	onSearch(loc)
	b.Input = ""
	return true
}

// InputDisabled reports whether the text field accepts input.
func (b SearchBar) InputDisabled(loading bool) bool {
	return loading
}

// SubmitDisabled reports whether the submit control is inactive.
func (b SearchBar) SubmitDisabled(loading bool) bool {
	return loading || strings.TrimSpace(b.Input) == ""
}

// ButtonLabel is the submit control caption.
func (b SearchBar) ButtonLabel(loading bool) string {
	if loading {
		return "Searching..."
	}
	return "Search"
}

// SearchBarView is the rendered search bar.
type SearchBarView struct {
	Input           string `json:"input"`
	Placeholder     string `json:"placeholder"`
	InputDisabled   bool   `json:"inputDisabled"`
	SubmitDisabled  bool   `json:"submitDisabled"`
	ButtonLabel     string `json:"buttonLabel"`
	CurrentLocation string `json:"currentLocation,omitempty"`
}

// View renders the bar for the given loading flag and current location.
func (b SearchBar) View(loading bool, currentLocation string) SearchBarView {
	return SearchBarView{
		Input:           b.Input,
		Placeholder:     "Enter city name...",
		InputDisabled:   b.InputDisabled(loading),
		SubmitDisabled:  b.SubmitDisabled(loading),
		ButtonLabel:     b.ButtonLabel(loading),
		CurrentLocation: currentLocation,
	}
}
