package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#1a1a1a", Dark: "#dddddd"}).
			Bold(true)

	subtleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#9B9B9B", Dark: "#5C5C5C"})

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#EE6FF8")).
			Bold(true)

	onAirStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#ECFD65")).
			Bold(true)

	statusBarStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#343433", Dark: "#C1C6B2"}).
			Background(lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#353533"})

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#ED567A")).
			Bold(true)

	meterOnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575"))
	meterHotStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#ED567A"))
	meterOffStyle = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#3C3C3C"})
)

// meterHotFraction is where the meter bar turns from green to red.
const meterHotFraction = 0.75

// renderMeter draws one horizontal level bar of the given cell width.
func renderMeter(level float64, width int) string {
	if width < 1 {
		return ""
	}
	if level < 0 {
		level = 0
	}
	if level > 1 {
		level = 1
	}
	lit := int(level*float64(width) + 0.5)
	hot := int(meterHotFraction * float64(width))

	var b strings.Builder
	for i := 0; i < width; i++ {
		switch {
		case i >= lit:
			b.WriteString(meterOffStyle.Render("░"))
		case i >= hot:
			b.WriteString(meterHotStyle.Render("█"))
		default:
			b.WriteString(meterOnStyle.Render("█"))
		}
	}
	return b.String()
}
