package tui

import "github.com/charmbracelet/lipgloss"

var (
	accent    = lipgloss.Color("#3f51b5")
	mutedText = lipgloss.Color("#8CA1AE")
	alertText = lipgloss.Color("#FF6B6B")
)

var (
	titleStyle = lipgloss.NewStyle().
			Padding(0, 1).
			Bold(true).
			Foreground(lipgloss.Color("#ffffff")).
			Background(accent)

	subtleStyle = lipgloss.NewStyle().
			Foreground(mutedText)

	staleStyle = lipgloss.NewStyle().
			Foreground(alertText).
			Bold(true)

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(accent).
			Padding(0, 1)

	failureStyle = lipgloss.NewStyle().
			Border(lipgloss.DoubleBorder()).
			BorderForeground(alertText).
			Padding(1, 2)

	helpStyle = lipgloss.NewStyle().
			Foreground(mutedText)
)

func colorStyle(hex string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(hex))
}
