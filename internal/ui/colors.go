package ui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Semantic colors for status indication
const (
	ColorSuccess lipgloss.Color = "2" // Green
	ColorError   lipgloss.Color = "1" // Red
	ColorWarning lipgloss.Color = "3" // Yellow
	ColorInfo    lipgloss.Color = "6" // Cyan
)

// Text colors for content hierarchy
const (
	ColorPrimary   lipgloss.Color = "7" // White/default
	ColorSecondary lipgloss.Color = "4" // Blue
	ColorMuted     lipgloss.Color = "8" // Gray (bright black)
)

// GradientColors is cycled by the spinner.
var GradientColors = []lipgloss.Color{"5", "13", "4", "6", "14", "2"}

// Severity thresholds for percentage values.
const (
	WarningPercent  = 70.0
	CriticalPercent = 90.0
)

// SeverityColor returns green, yellow or red for a percentage.
func SeverityColor(percent float64) lipgloss.Color {
	switch {
	case percent >= CriticalPercent:
		return ColorError
	case percent >= WarningPercent:
		return ColorWarning
	default:
		return ColorSuccess
	}
}

// DisableColors renders all further output without ANSI styling.
func DisableColors() {
	lipgloss.SetColorProfile(termenv.Ascii)
}
