package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/dmitry-ulyanichev/render-com-steam-id-processor/internal/checks"
)

// Base styles shared by CLI output and the watch TUI.
var (
	Bold = lipgloss.NewStyle().Bold(true)
	Dim  = lipgloss.NewStyle().Foreground(lipgloss.Color("242"))

	Success = lipgloss.NewStyle().Foreground(lipgloss.Color("76"))
	Error   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	Warning = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
)

// StatusGlyph returns the one-character marker for a check status.
func StatusGlyph(s checks.Status) string {
	switch s {
	case checks.StatusPassed:
		return "✓"
	case checks.StatusFailed:
		return "✗"
	case checks.StatusDeferred:
		return "~"
	default:
		return "·"
	}
}

// StatusStyle returns the style used to render a check status.
func StatusStyle(s checks.Status) lipgloss.Style {
	switch s {
	case checks.StatusPassed:
		return Success
	case checks.StatusFailed:
		return Error
	case checks.StatusDeferred:
		return Warning
	default:
		return Dim
	}
}
