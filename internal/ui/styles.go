package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/Chili6666/iclaude-workbench/internal/task"
)

// Color palette: lime accent on grays.
const (
	ColorLime     = "154" // Primary accent, completed work
	ColorLimeDim  = "106" // Borders of the focused panel
	ColorWhite    = "255" // Headers, important text
	ColorGray     = "245" // Secondary text, labels
	ColorDarkGray = "238" // Box borders, separators
	ColorRed      = "196" // Errors
	ColorYellow   = "220" // In-progress work, warnings
)

// Styles holds all UI styles.
type Styles struct {
	Header  lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Dim     lipgloss.Style
	Label   lipgloss.Style
	Active  lipgloss.Style

	Pending    lipgloss.Style
	InProgress lipgloss.Style
	Completed  lipgloss.Style

	Border lipgloss.Style
	Panel  lipgloss.Style
	Tab    lipgloss.Style
	TabOn  lipgloss.Style
}

// DefaultStyles returns styled components for color terminals.
func DefaultStyles() Styles {
	return Styles{
		Header:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(ColorLime)),
		Success: lipgloss.NewStyle().Foreground(lipgloss.Color(ColorLime)),
		Warning: lipgloss.NewStyle().Foreground(lipgloss.Color(ColorYellow)),
		Error:   lipgloss.NewStyle().Foreground(lipgloss.Color(ColorRed)),
		Dim:     lipgloss.NewStyle().Foreground(lipgloss.Color(ColorDarkGray)),
		Label:   lipgloss.NewStyle().Foreground(lipgloss.Color(ColorGray)),
		Active:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(ColorWhite)),

		Pending:    lipgloss.NewStyle().Foreground(lipgloss.Color(ColorGray)),
		InProgress: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(ColorYellow)),
		Completed:  lipgloss.NewStyle().Foreground(lipgloss.Color(ColorLime)),

		Border: lipgloss.NewStyle().Foreground(lipgloss.Color(ColorDarkGray)),
		Panel: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(ColorDarkGray)).
			Padding(0, 1),
		Tab:   lipgloss.NewStyle().Foreground(lipgloss.Color(ColorGray)).Padding(0, 1),
		TabOn: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(ColorLime)).Padding(0, 1).Underline(true),
	}
}

// NoColorStyles returns unstyled components for plain mode.
func NoColorStyles() Styles {
	plain := lipgloss.NewStyle()
	return Styles{
		Header: plain, Success: plain, Warning: plain, Error: plain,
		Dim: plain, Label: plain, Active: plain,
		Pending: plain, InProgress: plain, Completed: plain,
		Border: plain,
		Panel:  lipgloss.NewStyle().Border(lipgloss.NormalBorder()).Padding(0, 1),
		Tab:    lipgloss.NewStyle().Padding(0, 1),
		TabOn:  lipgloss.NewStyle().Padding(0, 1),
	}
}

// GetStyles returns the appropriate styles based on color preference.
func GetStyles(noColor bool) Styles {
	if noColor {
		return NoColorStyles()
	}
	return DefaultStyles()
}

// ForStatus returns the style of a task status.
func (s Styles) ForStatus(st task.Status) lipgloss.Style {
	switch st {
	case task.StatusCompleted:
		return s.Completed
	case task.StatusInProgress:
		return s.InProgress
	default:
		return s.Pending
	}
}

// StatusIcon returns the board glyph for a task status.
func StatusIcon(st task.Status) string {
	switch st {
	case task.StatusCompleted:
		return "●"
	case task.StatusInProgress:
		return "◐"
	default:
		return "○"
	}
}
