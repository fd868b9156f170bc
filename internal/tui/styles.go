package tui

import "github.com/charmbracelet/lipgloss"

var (
	accent  = lipgloss.Color("#50E3C2")
	muted   = lipgloss.Color("#8CA1AE")
	warning = lipgloss.Color("#FF6B6B")
	ok      = lipgloss.Color("#7BD88F")
	info    = lipgloss.Color("#F6AE2D")
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(accent).
			Padding(0, 1)

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(muted).
			Padding(0, 1)

	labelStyle = lipgloss.NewStyle().Foreground(muted).Width(10)

	runningStyle = lipgloss.NewStyle().Foreground(ok).Bold(true)
	stoppedStyle = lipgloss.NewStyle().Foreground(warning).Bold(true)

	enabledStyle  = lipgloss.NewStyle().Foreground(accent)
	disabledStyle = lipgloss.NewStyle().Foreground(muted).Strikethrough(true)

	errorStyle = lipgloss.NewStyle().Foreground(warning).Bold(true)
	infoStyle  = lipgloss.NewStyle().Foreground(info)
	helpStyle  = lipgloss.NewStyle().Foreground(muted)
)
