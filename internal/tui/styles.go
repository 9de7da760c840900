package tui

import "github.com/charmbracelet/lipgloss"

var (
	// HeaderStyle styles table headers.
	HeaderStyle = lipgloss.NewStyle().Bold(true)
	// TitleStyle styles section titles in list and doctor output.
	TitleStyle = lipgloss.NewStyle().Bold(true).Underline(true)

	OKStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	WarnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	ErrorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	ActiveStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
	FaintStyle  = lipgloss.NewStyle().Faint(true)

	statusStyles = map[string]lipgloss.Style{
		"done":       OKStyle,
		"installed":  OKStyle,
		"configured": OKStyle,
		"removed":    OKStyle,
		"ok":         OKStyle,

		"resolving":   ActiveStyle,
		"downloading": ActiveStyle,
		"installing":  ActiveStyle,
		"configuring": ActiveStyle,
		"removing":    ActiveStyle,

		"skipped":       WarnStyle,
		"external":      WarnStyle,
		"unconfigured":  WarnStyle,
		"stale":         WarnStyle,
		"not installed": FaintStyle,

		"failed": ErrorStyle,
		"error":  ErrorStyle,

		"pending": FaintStyle,
	}
)

// StatusStyle returns the style for a status word.
func StatusStyle(status string) lipgloss.Style {
	if s, ok := statusStyles[status]; ok {
		return s
	}
	return lipgloss.NewStyle()
}
