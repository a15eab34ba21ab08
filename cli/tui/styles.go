// Package tui provides the Bubble Tea triage surface for the sift CLI.
//
// The TUI is a thin input/output shell: every key press maps to one
// engine operation, and every frame renders the latest engine view.
// It holds no feed state of its own.
package tui

import "github.com/charmbracelet/lipgloss"

// Color palette.
var (
	primaryColor = lipgloss.Color("#7C3AED") // Purple
	keepColor    = lipgloss.Color("#10B981") // Green
	pendingColor = lipgloss.Color("#F59E0B") // Amber
	deleteColor  = lipgloss.Color("#EF4444") // Red
	mutedColor   = lipgloss.Color("#6B7280") // Gray
	accentColor  = lipgloss.Color("#3B82F6") // Blue
)

// Styles for TUI components.
var (
	// TitleStyle for headers and titles.
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor).
			MarginBottom(1)

	// LabelStyle for field labels.
	LabelStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			Width(12)

	// ValueStyle for field values.
	ValueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF"))

	// KeepStyle for keep decisions and ready states.
	KeepStyle = lipgloss.NewStyle().
			Foreground(keepColor)

	// PendingStyle for in-flight states.
	PendingStyle = lipgloss.NewStyle().
			Foreground(pendingColor)

	// DeleteStyle for delete decisions and error states.
	DeleteStyle = lipgloss.NewStyle().
			Foreground(deleteColor)

	// CardStyle for the asset card container.
	CardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(mutedColor).
			Padding(1, 2)

	// BadgeStyle for the media kind badge.
	BadgeStyle = lipgloss.NewStyle().
			Foreground(accentColor)

	// HelpStyle for help text.
	HelpStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			MarginTop(1)

	// CountBoxStyle for decision counter boxes.
	CountBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(accentColor).
			Padding(0, 2).
			Width(14).
			Align(lipgloss.Center)

	// CountLabelStyle for counter labels.
	CountLabelStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			Align(lipgloss.Center)

	// CountValueStyle for counter values.
	CountValueStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF")).
			Align(lipgloss.Center)
)

// LoadStyle returns a style for a media load state name.
func LoadStyle(state string) lipgloss.Style {
	switch state {
	case "ready":
		return KeepStyle
	case "loading":
		return PendingStyle
	case "network_error", "timeout_error", "failed":
		return DeleteStyle
	default:
		return ValueStyle
	}
}
