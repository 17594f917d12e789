package tui

import (
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/lipgloss"
)

func newSpinner() spinner.Model {
	return spinner.New(
		spinner.WithSpinner(spinner.Dot),
		spinner.WithStyle(lipgloss.NewStyle().Foreground(ColorBlue)),
	)
}

// renderLoadingPlaceholder renders a centred loading indicator.
func renderLoadingPlaceholder(frame string, width, height int) string {
	text := lipgloss.NewStyle().
		Foreground(ColorGray).
		Italic(true).
		Render(frame + " Loading...")
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, text)
}

// renderMessage renders a centred single-line message in the given colour.
func renderMessage(msg string, color lipgloss.Color, width, height int) string {
	text := lipgloss.NewStyle().Foreground(color).Render(msg)
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, text)
}
