package cli

import "github.com/charmbracelet/lipgloss"

var (
	titleStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#00BFB3")).
		Padding(0, 1)

	assistantStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#E5E7EB"))

	blockedStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#EF4444"))

	hintStyle = lipgloss.NewStyle().
		Faint(true).
		Foreground(lipgloss.Color("#6B7280"))
)
