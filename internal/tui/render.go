package tui

import (
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/kjstillabower/nimbus/internal/view"
)

// RenderPage draws the non-interactive parts of a page: banners, cards and footer.
// searchLine is placed above them; pass "" to omit it.
func RenderPage(p view.Page, s Styles, searchLine, loadingLine string) string {
	var b strings.Builder
	b.WriteString(s.Title.Render(p.Footer.AppName + " Weather"))
	b.WriteString("\n")
	if searchLine != "" {
		b.WriteString(searchLine)
		b.WriteString("\n")
	}
	if p.Loading {
		if loadingLine == "" {
			loadingLine = view.LoadingText
		}
		b.WriteString(s.Loading.Render(loadingLine))
		b.WriteString("\n")
	}
	if p.Error != "" {
		b.WriteString(s.Error.Render("Error: " + p.Error))
		b.WriteString("\n")
	}
	if p.Weather != nil {
		b.WriteString(renderWeather(*p.Weather, s))
		b.WriteString("\n")
	}
	if p.Forecast != nil {
		b.WriteString(renderForecast(*p.Forecast, s))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(s.Muted.Render(p.Footer.Copyright))
	b.WriteString("\n")
	b.WriteString(s.Muted.Render(p.Footer.PoweredBy))
	return b.String()
}

func renderWeather(c view.WeatherCard, s Styles) string {
	toggle := make([]string, 0, len(c.Toggle))
	for _, btn := range c.Toggle {
		if btn.Pressed {
			toggle = append(toggle, s.UnitOn.Render(btn.Label))
		} else {
			toggle = append(toggle, s.UnitOff.Render(btn.Label))
		}
	}
	body := lipgloss.JoinVertical(lipgloss.Left,
		s.City.Render(c.City),
		s.Muted.Render(c.Details),
		"",
		c.Glyph+"  "+s.Temperature.Render(c.TemperatureLabel()),
		c.Condition,
		"",
		strings.Join(toggle, " "),
	)
	return s.Card.Render(body)
}

func renderForecast(f view.ForecastCard, s Styles) string {
	days := make([]string, 0, len(f.Days))
	for _, d := range f.Days {
		days = append(days, s.Day.Render(lipgloss.JoinVertical(lipgloss.Center,
			d.Weekday,
			d.Glyph,
			strconv.Itoa(d.Max)+"° / "+strconv.Itoa(d.Min)+"°",
			s.Muted.Render(d.Condition),
		)))
	}
	parts := []string{s.Subtitle.Render(f.Title), lipgloss.JoinHorizontal(lipgloss.Top, days...)}
	if f.Advisory != "" {
		parts = append(parts, s.Advisory.Render(f.Advisory))
	}
	return s.Card.Render(lipgloss.JoinVertical(lipgloss.Left, parts...))
}
