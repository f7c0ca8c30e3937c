package tui

import (
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"dhcpdash/internal/pool"
)

const barCell = "█"

// renderPoolBar draws the pool ring unrolled into a bar of width cells,
// bound share first, followed by the ratio label
func renderPoolBar(chart pool.ChartView, width int) string {
	if width < 1 {
		width = 1
	}

	label := colorStyle(chart.LabelColor).Bold(true).Render(chart.RatioLabel) + " " + chart.Caption
	if chart.Empty {
		return colorStyle(pool.NeutralColor).Render(strings.Repeat(barCell, width)) + " " + label
	}

	bound := boundCells(chart, width)
	bar := colorStyle(chart.Colors[0]).Render(strings.Repeat(barCell, bound)) +
		colorStyle(chart.Colors[1]).Render(strings.Repeat(barCell, width-bound))
	return lipgloss.JoinHorizontal(lipgloss.Top, bar, " ", label)
}

// boundCells returns how many of width cells the bound share covers
func boundCells(chart pool.ChartView, width int) int {
	total := chart.Snapshot.Total()
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(width) * float64(chart.Snapshot.Bound) / float64(total)))
}
