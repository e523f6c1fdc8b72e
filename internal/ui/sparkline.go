package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Sparkline block characters representing 8 vertical levels (lowest to highest).
var sparklineBlocks = []rune("▁▂▃▄▅▆▇█")

// RenderSparkline draws the most recent width values as block characters
// scaled to their own min and max. Percentage series are colored by the
// severity of the last value.
func RenderSparkline(data []float64, width int, percent bool) string {
	if len(data) == 0 || width <= 0 {
		return ""
	}
	if len(data) > width {
		data = data[len(data)-width:]
	}

	lo, hi := data[0], data[0]
	for _, v := range data {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}

	levels := len(sparklineBlocks)
	var sb strings.Builder
	for _, v := range data {
		level := levels / 2
		if hi > lo {
			level = int((v - lo) / (hi - lo) * float64(levels-1))
		}
		sb.WriteRune(sparklineBlocks[level])
	}

	color := ColorInfo
	if percent {
		color = SeverityColor(data[len(data)-1])
	}
	return lipgloss.NewStyle().Foreground(color).Render(sb.String())
}
