package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/lipgloss"
)

// renderBranding renders the product name with a green to light blue gradient.
func renderBranding() string {
	colors := []string{"#49E209", "#35DD2F", "#21D955", "#0DD47B", "#00D0A1", "#00CAC7"}
	chars := []string{"s", "l", "o", "w", "d", "g"}

	var result string
	for i, char := range chars {
		style := lipgloss.NewStyle().
			Background(ColorNavy).
			Foreground(lipgloss.Color(colors[i])).Bold(true)
		result += style.Render(char)
	}
	return result
}

// renderHeader renders the one-line title bar: branding, page title and a
// right-aligned info string.
func renderHeader(title, info string, width int) string {
	base := lipgloss.NewStyle().Background(ColorNavy).Foreground(ColorWhite)
	left := renderBranding() + base.Bold(true).Render(" "+title)
	right := base.Render(info + " ")
	gap := width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		return lipgloss.NewStyle().MaxWidth(width).Render(left)
	}
	return left + base.Render(strings.Repeat(" ", gap)) + right
}

// renderStatusLine renders the short key help at the bottom of the screen.
func renderStatusLine(h help.Model, keys KeyMap, width int) string {
	h.Width = width
	return lipgloss.NewStyle().Width(width).Render(h.View(keys))
}
