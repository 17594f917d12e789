package tui

import "github.com/charmbracelet/lipgloss"

var (
	ColorNavy   = lipgloss.Color("#1B2B4B")
	ColorBlue   = lipgloss.Color("#5FAFFF")
	ColorGreen  = lipgloss.Color("#49E209")
	ColorOrange = lipgloss.Color("#FFA500")
	ColorRed    = lipgloss.Color("#FF5F5F")
	ColorWhite  = lipgloss.Color("#FFFFFF")
	ColorGray   = lipgloss.Color("#808080")
)
