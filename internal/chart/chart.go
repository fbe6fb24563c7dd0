// Package chart renders the WBGT risk scale, colour-coded values, deltas and
// per-read sparklines for the terminal UI.
package chart

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/luki/heatrisk/internal/compare"
	"github.com/luki/heatrisk/internal/risk"
	"github.com/luki/heatrisk/internal/wbgt"
)

// Plotted WBGT range of the risk chart.
const (
	ScaleMin = 15.0
	ScaleMax = 35.0
)

var sparkBlocks = []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

var (
	colorOutOfRange = lipgloss.Color("201")
	colorDim        = lipgloss.Color("236")
	colorTick       = lipgloss.Color("239")
	colorBetter     = lipgloss.Color("78")
	colorWorse      = lipgloss.Color("196")
)

// TierColor returns the band colour of a tier.
func TierColor(t risk.Tier) lipgloss.Color {
	switch t {
	case risk.Minimal:
		return lipgloss.Color("78") // green
	case risk.Moderate:
		return lipgloss.Color("220") // yellow
	case risk.High:
		return lipgloss.Color("196") // red
	default:
		return lipgloss.Color("245") // grey
	}
}

// WBGTColor returns the colour of the band containing v.
func WBGTColor(v float64) lipgloss.Color {
	t, err := risk.Classify(v)
	if err != nil {
		return colorOutOfRange
	}
	return TierColor(t)
}

// RenderRiskScale renders a horizontal scale over [rangeMin, rangeMax] with
// each cell coloured by its band, boundary ticks and a marker at current.
func RenderRiskScale(current, rangeMin, rangeMax float64, width int) string {
	if width <= 0 {
		return ""
	}
	span := rangeMax - rangeMin
	if span <= 0 {
		span = 1
	}

	pos := func(v float64) int {
		return int(float64(width-1) * (v - rangeMin) / span)
	}

	ticks := make(map[int]bool)
	for _, b := range risk.Bands() {
		if b.Lower > rangeMin && b.Lower < rangeMax {
			ticks[pos(b.Lower)] = true
		}
	}

	curPos := pos(current)
	if curPos < 0 {
		curPos = 0
	}
	if curPos >= width {
		curPos = width - 1
	}

	var sb strings.Builder
	for i := 0; i < width; i++ {
		cellValue := rangeMin + span*(float64(i)+0.5)/float64(width)
		color := WBGTColor(cellValue)
		switch {
		case i == curPos:
			style := lipgloss.NewStyle().Foreground(WBGTColor(current)).Bold(true)
			sb.WriteString(style.Render("◆"))
		case ticks[i]:
			sb.WriteString(lipgloss.NewStyle().Foreground(colorTick).Render("│"))
		default:
			sb.WriteString(lipgloss.NewStyle().Foreground(color).Render("━"))
		}
	}
	return sb.String()
}

// RenderScaleLabels renders the band boundary values under a scale of the
// same width.
func RenderScaleLabels(rangeMin, rangeMax float64, width int) string {
	if width <= 0 {
		return ""
	}
	span := rangeMax - rangeMin
	if span <= 0 {
		span = 1
	}
	line := []rune(strings.Repeat(" ", width))
	lastEnd := -1
	for _, b := range risk.Bands() {
		for _, v := range []float64{b.Lower, b.Upper} {
			if v < rangeMin || v > rangeMax {
				continue
			}
			label := fmt.Sprintf("%.0f", v)
			start := int(float64(width-1)*(v-rangeMin)/span) - len(label)/2
			if start < 0 {
				start = 0
			}
			if start+len(label) > width {
				start = width - len(label)
			}
			if start <= lastEnd {
				continue
			}
			copy(line[start:], []rune(label))
			lastEnd = start + len(label)
		}
	}
	return lipgloss.NewStyle().Foreground(colorTick).Render(string(line))
}

// RenderWBGTValue renders a WBGT value rounded to places, coloured by band.
func RenderWBGTValue(v float64, places int) string {
	s := fmt.Sprintf("%.*f°C", places, wbgt.Round(v, places))
	style := lipgloss.NewStyle().Foreground(WBGTColor(v))
	if v >= risk.Ceiling || v < risk.Floor {
		style = style.Bold(true)
	}
	return style.Render(s)
}

// RenderTier renders a tier name in its band colour.
func RenderTier(t risk.Tier) string {
	return lipgloss.NewStyle().Foreground(TierColor(t)).Bold(true).Render(t.String())
}

// RenderDelta renders local − reference with inverse colouring: higher than
// the reference is shown as worse.
func RenderDelta(d compare.Delta, unit string) string {
	s := fmt.Sprintf("%+.1f%s", d.Difference, unit)
	var color lipgloss.Color
	switch {
	case d.Difference > 0:
		color = colorWorse
	case d.Difference < 0:
		color = colorBetter
	default:
		color = colorTick
	}
	arrow := "•"
	if d.Difference > 0 {
		arrow = "▲"
	} else if d.Difference < 0 {
		arrow = "▼"
	}
	return lipgloss.NewStyle().Foreground(color).Render(arrow + " " + s)
}

// RenderSparkline renders values as block characters coloured by band. The
// line is left-padded to width.
func RenderSparkline(values []float64, width int, rangeMin, rangeMax float64) string {
	if width <= 0 {
		return ""
	}
	dim := lipgloss.NewStyle().Foreground(colorDim)
	if len(values) == 0 {
		return dim.Render(strings.Repeat("╌", width))
	}
	if len(values) > width {
		values = values[len(values)-width:]
	}

	span := rangeMax - rangeMin
	if span <= 0 {
		span = 1
	}

	var sb strings.Builder
	for i := 0; i < width-len(values); i++ {
		sb.WriteString(dim.Render("╌"))
	}
	for _, v := range values {
		norm := math.Max(0, math.Min(1, (v-rangeMin)/span))
		idx := int(norm * 7)
		if idx > 7 {
			idx = 7
		}
		sb.WriteString(lipgloss.NewStyle().Foreground(WBGTColor(v)).Render(string(sparkBlocks[idx])))
	}
	return sb.String()
}
