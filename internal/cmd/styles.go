package cmd

import (
	"io"

	"github.com/charmbracelet/lipgloss"
)

var (
	okColor      = lipgloss.Color("#10B981") // Green
	warningColor = lipgloss.Color("#F59E0B") // Amber
	errorColor   = lipgloss.Color("#F87171") // Red
	mutedColor   = lipgloss.Color("#9CA3AF") // Gray
	primaryColor = lipgloss.Color("#A78BFA") // Purple
)

// statusStyles renders status output. Colors are dropped automatically when
// the writer is not a terminal.
type statusStyles struct {
	title   lipgloss.Style
	label   lipgloss.Style
	ok      lipgloss.Style
	warning lipgloss.Style
	error   lipgloss.Style
	muted   lipgloss.Style
}

func newStatusStyles(w io.Writer) statusStyles {
	r := lipgloss.NewRenderer(w)
	return statusStyles{
		title:   r.NewStyle().Bold(true).Foreground(primaryColor),
		label:   r.NewStyle().Width(10).Bold(true),
		ok:      r.NewStyle().Foreground(okColor),
		warning: r.NewStyle().Foreground(warningColor),
		error:   r.NewStyle().Foreground(errorColor),
		muted:   r.NewStyle().Foreground(mutedColor),
	}
}
