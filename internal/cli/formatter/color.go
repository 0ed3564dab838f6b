package formatter

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Gruvbox-inspired color palette.
var (
	ColorGreen  = lipgloss.Color("#8ec07c")
	ColorYellow = lipgloss.Color("#fabd2f")
	ColorRed    = lipgloss.Color("#fb4934")
	ColorBlue   = lipgloss.Color("#83a598")
	ColorPurple = lipgloss.Color("#d3869b")
	ColorDim    = lipgloss.Color("#928374")
	ColorFg     = lipgloss.Color("#ebdbb2")
	ColorHeader = lipgloss.Color("#fe8019")
)

// Predefined lipgloss styles.
var (
	StyleGreen      = lipgloss.NewStyle().Foreground(ColorGreen)
	StyleYellow     = lipgloss.NewStyle().Foreground(ColorYellow)
	StyleYellowBold = lipgloss.NewStyle().Foreground(ColorYellow).Bold(true)
	StyleRed        = lipgloss.NewStyle().Foreground(ColorRed)
	StyleBlue       = lipgloss.NewStyle().Foreground(ColorBlue)
	StylePurple     = lipgloss.NewStyle().Foreground(ColorPurple)
	StyleDim        = lipgloss.NewStyle().Foreground(ColorDim)
	StyleFg         = lipgloss.NewStyle().Foreground(ColorFg)
	StyleHeader     = lipgloss.NewStyle().Foreground(ColorHeader).Bold(true)
	StyleBold       = lipgloss.NewStyle().Foreground(ColorFg).Bold(true)
)

// DisableColor strips all styling, for output that is not a terminal.
func DisableColor() {
	lipgloss.SetColorProfile(termenv.Ascii)
}

// StatusStyle returns the style for any plan, stage or task status string.
func StatusStyle(status string) lipgloss.Style {
	switch status {
	case "done", "completed":
		return StyleGreen
	case "in_progress":
		return StyleYellow
	case "blocked":
		return StyleRed
	case "archived":
		return StyleDim
	case "active":
		return StyleGreen
	default:
		return StyleBlue
	}
}

// StatusPill returns a colored status indicator such as "● in progress".
func StatusPill(status string) string {
	icon := "○"
	switch status {
	case "done", "completed":
		icon = "✔"
	case "in_progress", "active":
		icon = "●"
	case "blocked":
		icon = "■"
	case "archived":
		icon = "✖"
	}
	return StatusStyle(status).Render(icon + " " + strings.ReplaceAll(status, "_", " "))
}

// Header renders a section header with the orange header style and an underline.
func Header(text string) string {
	upper := strings.ToUpper(text)
	line := strings.Repeat("─", len(upper))
	return fmt.Sprintf("%s\n%s", StyleHeader.Render(upper), StyleDim.Render(line))
}

// Dim renders text in the muted/dim color.
func Dim(text string) string {
	return StyleDim.Render(text)
}

// Bold renders text in bold with the foreground color.
func Bold(text string) string {
	return StyleBold.Render(text)
}
