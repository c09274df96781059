package output

import "github.com/charmbracelet/lipgloss"

// Styles holds the lipgloss styles used for status lines.
type Styles struct {
	Error   lipgloss.Style
	Warning lipgloss.Style
	Info    lipgloss.Style
	Muted   lipgloss.Style
	Title   lipgloss.Style
}

// newStyles builds the style set. When color is disabled every style is
// a plain passthrough.
func newStyles(color bool) Styles {
	if !color {
		plain := lipgloss.NewStyle()
		return Styles{
			Error:   plain,
			Warning: plain,
			Info:    plain,
			Muted:   plain,
			Title:   plain,
		}
	}
	return Styles{
		Error:   lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
		Warning: lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
		Info:    lipgloss.NewStyle().Foreground(lipgloss.Color("12")),
		Muted:   lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
		Title:   lipgloss.NewStyle().Bold(true).Underline(true),
	}
}
