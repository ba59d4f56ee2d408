package tui

import "github.com/charmbracelet/lipgloss"

// Shared by the live view, the summary table and the scan report.
var (
	ColorInk       = lipgloss.Color("#E5E9F0")
	ColorDim       = lipgloss.Color("#7A8291")
	ColorAccent    = lipgloss.Color("#88C0D0")
	ColorAccentAlt = lipgloss.Color("#81A1C1")
	ColorSuccess   = lipgloss.Color("#A3BE8C")
	ColorWarn      = lipgloss.Color("#EBCB8B")
	ColorError     = lipgloss.Color("#BF616A")
)

// OutcomeStyle colors a count or label by outcome kind.
func OutcomeStyle(kind string) lipgloss.Style {
	switch kind {
	case "transformed":
		return lipgloss.NewStyle().Foreground(ColorSuccess)
	case "skipped":
		return lipgloss.NewStyle().Foreground(ColorDim)
	case "failed":
		return lipgloss.NewStyle().Foreground(ColorError).Bold(true)
	default:
		return lipgloss.NewStyle().Foreground(ColorInk)
	}
}
