package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Modal is a self-contained overlay that owns its own Update/View lifecycle.
// Pages keep a stack of them; the topmost receives all input and renders
// full-screen.
type Modal interface {
	// ID returns a unique identifier used to deduplicate pushes.
	ID() string
	// Update processes a message. Return pop=true to close the modal.
	Update(msg tea.Msg) (pop bool, cmd tea.Cmd)
	// View renders the modal for the given terminal dimensions.
	View(width, height int) string
}

// modalStack is embedded by pages that show modals.
type modalStack struct {
	modals []Modal
}

func (s *modalStack) push(m Modal) {
	for _, existing := range s.modals {
		if existing.ID() == m.ID() {
			return
		}
	}
	s.modals = append(s.modals, m)
}

func (s *modalStack) top() Modal {
	if len(s.modals) == 0 {
		return nil
	}
	return s.modals[len(s.modals)-1]
}

// updateTop forwards msg to the topmost modal and pops it when asked.
func (s *modalStack) updateTop(msg tea.Msg) tea.Cmd {
	m := s.top()
	if m == nil {
		return nil
	}
	pop, cmd := m.Update(msg)
	if pop {
		s.modals = s.modals[:len(s.modals)-1]
	}
	return cmd
}

// scrollViewport applies the shared modal scroll keys and mouse wheel to vp.
// It reports whether msg was a key in closeKeys.
func scrollViewport(vp *viewport.Model, msg tea.Msg, closeKeys ...string) (closed bool, cmd tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		k := msg.String()
		for _, c := range closeKeys {
			if k == c {
				return true, nil
			}
		}
		switch k {
		case "up", "k":
			vp.ScrollUp(1)
			return false, nil
		case "down", "j":
			vp.ScrollDown(1)
			return false, nil
		case "pgup":
			vp.HalfPageUp()
			return false, nil
		case "pgdown":
			vp.HalfPageDown()
			return false, nil
		}
		*vp, cmd = vp.Update(msg)
		return false, cmd

	case tea.MouseMsg:
		if msg.Action != tea.MouseActionPress {
			return false, nil
		}
		switch msg.Button {
		case tea.MouseButtonWheelUp:
			vp.ScrollUp(1)
		case tea.MouseButtonWheelDown:
			vp.ScrollDown(1)
		}
	}
	return false, nil
}

// renderModal renders a scrollable bordered modal centred in width x height.
func renderModal(vp *viewport.Model, title, content, status string, width, height int) string {
	modalWidth := max(width-8, 20)  // 4 chars margin on each side
	modalHeight := max(height-6, 8) // 3 lines margin top and bottom

	contentWidth := modalWidth - 4
	contentHeight := modalHeight - 4 // header + status

	vp.Width = contentWidth
	vp.Height = contentHeight
	vp.SetContent(lipgloss.NewStyle().Width(contentWidth).Render(content))

	contentPane := lipgloss.NewStyle().
		Width(contentWidth).
		Height(contentHeight).
		Border(lipgloss.NormalBorder()).
		BorderForeground(ColorGray).
		Render(vp.View())

	header := lipgloss.NewStyle().
		Width(contentWidth).
		Foreground(ColorBlue).
		Bold(true).
		Render(title)

	statusBar := lipgloss.NewStyle().
		Foreground(ColorGray).
		Render(status)

	modal := lipgloss.JoinVertical(lipgloss.Left, header, contentPane, statusBar)

	finalModal := lipgloss.NewStyle().
		Width(modalWidth).
		Height(modalHeight).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorBlue).
		Render(modal)

	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, finalModal)
}

var modalStatus = strings.Join([]string{"up/down/Wheel: Scroll", "PgUp/PgDn: Page", "ESC: Close"}, " | ")

// DetailModal displays one digest's detail block.
type DetailModal struct {
	viewport viewport.Model
	title    string
	content  string
}

func NewDetailModal(title, content string) *DetailModal {
	return &DetailModal{
		viewport: viewport.New(80, 20),
		title:    title,
		content:  content,
	}
}

func (d *DetailModal) ID() string { return "detail" }

func (d *DetailModal) Update(msg tea.Msg) (bool, tea.Cmd) {
	return scrollViewport(&d.viewport, msg, "escape", "esc", "q")
}

func (d *DetailModal) View(width, height int) string {
	return renderModal(&d.viewport, d.title, d.content, modalStatus, width, height)
}

// HelpModal lists the key bindings.
type HelpModal struct {
	viewport viewport.Model
	keys     KeyMap
}

func NewHelpModal(keys KeyMap) *HelpModal {
	return &HelpModal{viewport: viewport.New(80, 20), keys: keys}
}

func (h *HelpModal) ID() string { return "help" }

func (h *HelpModal) Update(msg tea.Msg) (bool, tea.Cmd) {
	return scrollViewport(&h.viewport, msg, "?", "h", "escape", "esc")
}

func (h *HelpModal) View(width, height int) string {
	return renderModal(&h.viewport, "Help", helpContent(h.keys), modalStatus+" | ?/h: Toggle Help", width, height)
}

func helpContent(keys KeyMap) string {
	sections := []string{"NAVIGATION", "ACTIONS", "GENERAL"}
	var b strings.Builder
	b.WriteString("Slow Query Digest\n")
	for i, group := range keys.FullHelp() {
		b.WriteString("\n" + sections[i] + ":\n")
		for _, binding := range group {
			h := binding.Help()
			b.WriteString("  " + padRight(h.Key, 14) + " - " + h.Desc + "\n")
		}
	}
	return b.String()
}

func padRight(s string, n int) string {
	if w := lipgloss.Width(s); w < n {
		return s + strings.Repeat(" ", n-w)
	}
	return s
}
