package watch

import "github.com/charmbracelet/lipgloss"

// Styles for the watch dashboard chrome. Per-status coloring comes
// from the shared ui package.
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("12"))

	mutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("242"))
)
