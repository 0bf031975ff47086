package cli

import (
	"github.com/charmbracelet/lipgloss"
)

// Theme defines the colors of terminal output.
type Theme struct {
	Primary lipgloss.Color
	Dim     lipgloss.Color
	Warn    lipgloss.Color
	Error   lipgloss.Color
}

// DefaultTheme is the default bright green theme.
var DefaultTheme = Theme{
	Primary: lipgloss.Color("#00ff9f"),
	Dim:     lipgloss.Color("#6e7681"),
	Warn:    lipgloss.Color("#e3b341"),
	Error:   lipgloss.Color("#f85149"),
}

// Styles holds the styles derived from a theme.
type Styles struct {
	Title lipgloss.Style
	Label lipgloss.Style
	Help  lipgloss.Style
	Warn  lipgloss.Style
	Error lipgloss.Style
}

// NewStyles creates styles from a theme.
func NewStyles(t Theme) Styles {
	return Styles{
		Title: lipgloss.NewStyle().Bold(true).Foreground(t.Primary),
		Label: lipgloss.NewStyle().Bold(true).Foreground(t.Primary),
		Help:  lipgloss.NewStyle().Foreground(t.Dim),
		Warn:  lipgloss.NewStyle().Foreground(t.Warn),
		Error: lipgloss.NewStyle().Bold(true).Foreground(t.Error),
	}
}

// State renders a connection state name. Connected states use the primary
// color, transitions the warning color and failures the error color.
func (s Styles) State(state string) string {
	switch state {
	case "connected", "running":
		return s.Label.Render(state)
	case "connecting", "disconnecting", "partially_connected", "starting", "stopping":
		return s.Warn.Render(state)
	case "error":
		return s.Error.Render(state)
	default:
		return s.Help.Render(state)
	}
}

// Node renders a node id padded to width.
func (s Styles) Node(id string, width int) string {
	return s.Title.Width(width).Render(id)
}
