package tui

import "github.com/charmbracelet/lipgloss"

// Palette.
var (
	Sky     = lipgloss.Color("#2563eb")
	Ink     = lipgloss.Color("#1f2a37")
	Muted   = lipgloss.Color("#6b7280")
	Border  = lipgloss.Color("#93c5fd")
	Danger  = lipgloss.Color("#dc2626")
	Caution = lipgloss.Color("#d97706")
	Paper   = lipgloss.Color("#ffffff")
)

// Styles holds the styled components of the terminal dashboard.
type Styles struct {
	Title    lipgloss.Style
	Subtitle lipgloss.Style
	Muted    lipgloss.Style

	Card        lipgloss.Style
	City        lipgloss.Style
	Temperature lipgloss.Style
	Day         lipgloss.Style

	UnitOn  lipgloss.Style
	UnitOff lipgloss.Style

	Loading  lipgloss.Style
	Error    lipgloss.Style
	Notice   lipgloss.Style
	Advisory lipgloss.Style

	Spinner lipgloss.Style
	Help    lipgloss.Style
}

// DefaultStyles returns the standard look.
func DefaultStyles() Styles {
	return Styles{
		Title:    lipgloss.NewStyle().Foreground(Sky).Bold(true).MarginBottom(1),
		Subtitle: lipgloss.NewStyle().Foreground(Ink).Bold(true),
		Muted:    lipgloss.NewStyle().Foreground(Muted),

		Card: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Border).
			Padding(0, 2).
			MarginTop(1),
		City:        lipgloss.NewStyle().Foreground(Ink).Bold(true),
		Temperature: lipgloss.NewStyle().Foreground(Sky).Bold(true),
		Day: lipgloss.NewStyle().
			Border(lipgloss.NormalBorder()).
			BorderForeground(Border).
			Padding(0, 1).
			Width(14).
			Align(lipgloss.Center),

		UnitOn:  lipgloss.NewStyle().Foreground(Paper).Background(Sky).Bold(true).Padding(0, 1),
		UnitOff: lipgloss.NewStyle().Foreground(Muted).Padding(0, 1),

		Loading:  lipgloss.NewStyle().Foreground(Sky),
		Error:    lipgloss.NewStyle().Foreground(Danger).Bold(true),
		Notice:   lipgloss.NewStyle().Foreground(Caution),
		Advisory: lipgloss.NewStyle().Foreground(Caution).Italic(true),

		Spinner: lipgloss.NewStyle().Foreground(Sky),
		Help:    lipgloss.NewStyle().Foreground(Muted).MarginTop(1),
	}
}
