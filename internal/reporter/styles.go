package reporter

import (
	"io"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/ppiankov/pghealth/internal/models"
	"github.com/ppiankov/pghealth/internal/severity"
)

// Severity colors
var (
	colorCritical = lipgloss.Color("#FF0000")
	colorHigh     = lipgloss.Color("#FF8800")
	colorMedium   = lipgloss.Color("#FFFF00")
	colorLow      = lipgloss.Color("#00FF00")
	colorInfo     = lipgloss.Color("#5FAFFF")
	colorMuted    = lipgloss.Color("#888888")
	colorBorder   = lipgloss.Color("#444444")
)

var (
	styleTitle = lipgloss.NewStyle().
			Bold(true).
			Padding(0, 1).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder)

	styleSection = lipgloss.NewStyle().Bold(true)
	styleMuted   = lipgloss.NewStyle().Foreground(colorMuted)
)

var severityIcons = map[severity.Severity]string{
	severity.OK:       "✅",
	severity.Info:     "ℹ️",
	severity.Warning:  "⚠️",
	severity.Critical: "❌",
}

// severityStyle returns the lipgloss style for a finding severity.
func severityStyle(s severity.Severity) lipgloss.Style {
	switch s {
	case severity.Critical:
		return lipgloss.NewStyle().Foreground(colorCritical).Bold(true)
	case severity.Warning:
		return lipgloss.NewStyle().Foreground(colorMedium).Bold(true)
	case severity.Info:
		return lipgloss.NewStyle().Foreground(colorInfo)
	case severity.OK:
		return lipgloss.NewStyle().Foreground(colorLow)
	default:
		return lipgloss.NewStyle()
	}
}

// priorityStyle returns the lipgloss style for a recommendation priority.
func priorityStyle(p models.Priority) lipgloss.Style {
	switch p {
	case models.PriorityHigh:
		return lipgloss.NewStyle().Foreground(colorHigh).Bold(true)
	case models.PriorityMedium:
		return lipgloss.NewStyle().Foreground(colorMedium)
	default:
		return lipgloss.NewStyle().Foreground(colorLow)
	}
}

// outcomeStyle returns the lipgloss style for an overall outcome.
func outcomeStyle(o severity.Outcome) lipgloss.Style {
	switch o {
	case severity.Failing:
		return lipgloss.NewStyle().Foreground(colorCritical).Bold(true)
	case severity.Degraded:
		return lipgloss.NewStyle().Foreground(colorMedium).Bold(true)
	default:
		return lipgloss.NewStyle().Foreground(colorLow).Bold(true)
	}
}

// painter applies styles only when color output is enabled.
type painter bool

func (p painter) paint(style lipgloss.Style, s string) string {
	if !p {
		return s
	}
	return style.Render(s)
}

func supportsANSI(out io.Writer) bool {
	f, ok := out.(interface{ Fd() uintptr })
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}
