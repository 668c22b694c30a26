package panel

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// Color palette
var (
	PrimaryColor = lipgloss.Color("#7D56F4") // Purple - headers, borders
	SuccessColor = lipgloss.Color("#43BF6D") // Green - serving
	ErrorColor   = lipgloss.Color("#FF5555") // Red - errors
	WarningColor = lipgloss.Color("#FFA500") // Orange - listening
	MutedColor   = lipgloss.Color("#626262") // Gray - secondary info
	TextColor    = lipgloss.Color("#FFFFFF") // White - main content
)

// Layout constants
const (
	MinTerminalWidth  = 60
	MaxContentWidth   = 120
	MinTerminalHeight = 16
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(TextColor).
			Bold(true).
			PaddingLeft(1)

	keyStyle = lipgloss.NewStyle().
			Foreground(MutedColor).
			Width(12)

	valueStyle = lipgloss.NewStyle().
			Foreground(TextColor)

	errorStyle = lipgloss.NewStyle().
			Foreground(ErrorColor).
			Bold(true)

	logStyle = lipgloss.NewStyle().
			Foreground(MutedColor)

	selectedLevelStyle = lipgloss.NewStyle().
				Foreground(PrimaryColor).
				Bold(true)
)

// stateStyle colours the controller state name.
func stateStyle(state string) lipgloss.Style {
	s := lipgloss.NewStyle().Bold(true)
	switch state {
	case "serving":
		return s.Foreground(SuccessColor)
	case "listening":
		return s.Foreground(WarningColor)
	case "exiting":
		return s.Foreground(ErrorColor)
	default:
		return s.Foreground(MutedColor)
	}
}

func boxStyle(width int) lipgloss.Style {
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(PrimaryColor).
		Width(width-2).
		Padding(0, 1)
}

// TerminalSize returns the current terminal size clamped to the layout
// limits.
func TerminalSize() (int, int) {
	width, height, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil {
		return MinTerminalWidth, 24
	}
	return clampWidth(width), max(height, MinTerminalHeight)
}

// IsTerminal reports whether stdout is an interactive terminal.
func IsTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

func clampWidth(width int) int {
	if width < MinTerminalWidth {
		return MinTerminalWidth
	}
	if width > MaxContentWidth {
		return MaxContentWidth
	}
	return width
}
