package view

import "strings"

// Category is the decorative weather class shown next to a condition.
type Category string

const (
	CategorySunny   Category = "sunny"
	CategoryCloudy  Category = "cloudy"
	CategoryRainy   Category = "rainy"
	CategorySnowy   Category = "snowy"
	CategoryStormy  Category = "stormy"
	CategoryRainbow Category = "rainbow"
	CategoryMild    Category = "mild"
)

type categoryRule struct {
	keywords []string
	category Category
}

// categoryRules are evaluated top to bottom; the first rule with a matching keyword wins.
// Order matters: "rainbow" contains "rain" and therefore classifies as rainy.
var categoryRules = []categoryRule{
	{[]string{"sunny", "clear"}, CategorySunny},
	{[]string{"cloudy", "overcast"}, CategoryCloudy},
	{[]string{"rain", "drizzle"}, CategoryRainy},
	{[]string{"snow", "sleet"}, CategorySnowy},
	{[]string{"storm", "thunder"}, CategoryStormy},
	{[]string{"rainbow"}, CategoryRainbow},
}

// Categorize maps a free-text condition to a Category by case-insensitive substring match.
func Categorize(condition string) Category {
	text := strings.ToLower(condition)
	for _, rule := range categoryRules {
		for _, kw := range rule.keywords {
			if strings.Contains(text, kw) {
				return rule.category
			}
		}
	}
	return CategoryMild
}

// Glyph returns the symbol drawn for the category.
func (c Category) Glyph() string {
	switch c {
	case CategorySunny:
		return "☀️"
	case CategoryCloudy:
		return "☁️"
	case CategoryRainy:
		return "🌧️"
	case CategorySnowy:
		return "❄️"
	case CategoryStormy:
		return "⛈️"
	case CategoryRainbow:
		return "🌈"
	}
	return "🌤️"
}
