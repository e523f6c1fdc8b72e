package monitor

import (
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Charts are drawn with braille cells. Each cell is a 2x4 dot matrix, so a
// chart of w cells by h rows plots 2w samples at 4h levels of resolution.
//
//	       col 0  col 1
//	row 0:   ⠁      ⠈
//	row 1:   ⠂      ⠐
//	row 2:   ⠄      ⠠
//	row 3:   ⡀      ⢀

const brailleBase = '⠀'

// brailleBit[row][col] is the bit for that dot within a cell.
var brailleBit = [4][2]uint8{
	{0, 3},
	{1, 4},
	{2, 5},
	{6, 7},
}

// chartRange returns the y-axis bounds. Percentage channels use a fixed
// 0-100 axis; everything else scales to its own min and max.
func chartRange(data []float64, percent bool) (lo, hi float64) {
	if percent || len(data) == 0 {
		return 0, 100
	}
	lo, hi = data[0], data[0]
	for _, v := range data[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	if lo > 0 {
		lo = 0
	}
	return lo, hi
}

// normalize maps v into [0,1] for the range. A flat range sits mid-height.
func normalize(v, lo, hi float64) float64 {
	if hi <= lo {
		return 0.5
	}
	n := (v - lo) / (hi - lo)
	if n < 0 {
		return 0
	}
	if n > 1 {
		return 1
	}
	return n
}

// RenderChart plots data as a filled braille area chart. Fewer samples than
// the chart holds are right-aligned so the newest value is always at the
// right edge. Percentage charts color each column by severity.
func RenderChart(data []float64, width, height int, percent bool, p Palette) string {
	if width <= 0 || height <= 0 {
		return ""
	}

	grid := make([][]rune, height)
	for r := range grid {
		grid[r] = []rune(strings.Repeat(string(brailleBase), width))
	}
	colPeak := make([]float64, width)

	slots := width * 2
	samples := data
	if len(samples) > slots {
		samples = downsample(samples, slots)
	}
	offset := slots - len(samples)
	lo, hi := chartRange(samples, percent)
	levels := height * 4

	for i, v := range samples {
		x := i + offset
		cell, sub := x/2, x%2
		if v > colPeak[cell] {
			colPeak[cell] = v
		}

		dots := int(math.Round(normalize(v, lo, hi) * float64(levels)))
		if dots > levels {
			dots = levels
		}
		if dots == 0 && v > lo {
			dots = 1
		}
		for d := 0; d < dots; d++ {
			row := height - 1 - d/4
			grid[row][cell] |= rune(1 << brailleBit[3-d%4][sub])
		}
	}

	lines := make([]string, height)
	for r, row := range grid {
		var b strings.Builder
		for c, ch := range row {
			color := p.Graph
			if percent {
				color = p.MetricColor(colPeak[c])
			}
			b.WriteString(lipgloss.NewStyle().Foreground(color).Render(string(ch)))
		}
		lines[r] = b.String()
	}
	return strings.Join(lines, "\n")
}

// downsample compresses data to n buckets, keeping each bucket's peak so
// spikes stay visible.
func downsample(data []float64, n int) []float64 {
	if n <= 0 || len(data) <= n {
		return data
	}
	out := make([]float64, n)
	size := float64(len(data)) / float64(n)
	for i := range out {
		start := int(float64(i) * size)
		end := int(float64(i+1) * size)
		if end > len(data) {
			end = len(data)
		}
		if start >= end {
			start = end - 1
		}
		peak := data[start]
		for _, v := range data[start+1 : end] {
			if v > peak {
				peak = v
			}
		}
		out[i] = peak
	}
	return out
}
