package tui

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// textField is a minimal single-line editor used by the search bar,
// the create form, and the due date prompt.
type textField struct {
	runes  []rune
	cursor int
}

func newTextField(value string) textField {
	r := []rune(value)
	return textField{runes: r, cursor: len(r)}
}

func (f textField) Value() string { return string(f.runes) }

func (f *textField) SetValue(value string) {
	f.runes = []rune(value)
	f.cursor = len(f.runes)
}

// Update processes one key message. Enter and Escape are left to the
// caller.
func (f *textField) Update(msg tea.KeyMsg) {
	switch msg.Type {
	case tea.KeyRunes, tea.KeySpace:
		for _, r := range msg.Runes {
			f.runes = append(f.runes[:f.cursor], append([]rune{r}, f.runes[f.cursor:]...)...)
			f.cursor++
		}
	case tea.KeyBackspace:
		if f.cursor > 0 {
			f.runes = append(f.runes[:f.cursor-1], f.runes[f.cursor:]...)
			f.cursor--
		}
	case tea.KeyDelete:
		if f.cursor < len(f.runes) {
			f.runes = append(f.runes[:f.cursor], f.runes[f.cursor+1:]...)
		}
	case tea.KeyLeft:
		if f.cursor > 0 {
			f.cursor--
		}
	case tea.KeyRight:
		if f.cursor < len(f.runes) {
			f.cursor++
		}
	case tea.KeyHome, tea.KeyCtrlA:
		f.cursor = 0
	case tea.KeyEnd, tea.KeyCtrlE:
		f.cursor = len(f.runes)
	case tea.KeyCtrlU:
		f.runes = f.runes[:0]
		f.cursor = 0
	}
}

// View renders the field with a block cursor when focused.
func (f textField) View(theme Theme, focused bool) string {
	if !focused {
		return string(f.runes)
	}
	cursorStyle := lipgloss.NewStyle().
		Background(theme.SelectedForeground).
		Foreground(theme.SelectedBackground)
	before := string(f.runes[:f.cursor])
	if f.cursor >= len(f.runes) {
		return before + cursorStyle.Render(" ")
	}
	at := string(f.runes[f.cursor])
	after := string(f.runes[f.cursor+1:])
	return before + cursorStyle.Render(at) + after
}

// noteModal is a centered multi-line text prompt. The caller decides
// what submission means; ctrl+d submits, escape cancels.
type noteModal struct {
	title   string
	hint    string
	lines   [][]rune
	cursorY int
	cursorX int
}

func newNoteModal(title, hint string) noteModal {
	return noteModal{title: title, hint: hint, lines: [][]rune{{}}}
}

func (m noteModal) Value() string {
	parts := make([]string, len(m.lines))
	for i, line := range m.lines {
		parts[i] = string(line)
	}
	return strings.Join(parts, "\n")
}

// Update processes one key message for the modal's editor.
func (m *noteModal) Update(msg tea.KeyMsg) {
	switch msg.Type {
	case tea.KeyRunes, tea.KeySpace:
		for _, r := range msg.Runes {
			line := m.lines[m.cursorY]
			m.lines[m.cursorY] = append(line[:m.cursorX], append([]rune{r}, line[m.cursorX:]...)...)
			m.cursorX++
		}
	case tea.KeyEnter:
		line := m.lines[m.cursorY]
		before := append([]rune{}, line[:m.cursorX]...)
		after := append([]rune{}, line[m.cursorX:]...)
		m.lines[m.cursorY] = before
		rest := append([][]rune{after}, m.lines[m.cursorY+1:]...)
		m.lines = append(m.lines[:m.cursorY+1], rest...)
		m.cursorY++
		m.cursorX = 0
	case tea.KeyBackspace:
		if m.cursorX > 0 {
			line := m.lines[m.cursorY]
			m.lines[m.cursorY] = append(line[:m.cursorX-1], line[m.cursorX:]...)
			m.cursorX--
		} else if m.cursorY > 0 {
			prev := m.lines[m.cursorY-1]
			m.cursorX = len(prev)
			m.lines[m.cursorY-1] = append(prev, m.lines[m.cursorY]...)
			m.lines = append(m.lines[:m.cursorY], m.lines[m.cursorY+1:]...)
			m.cursorY--
		}
	case tea.KeyUp:
		if m.cursorY > 0 {
			m.cursorY--
			m.cursorX = min(m.cursorX, len(m.lines[m.cursorY]))
		}
	case tea.KeyDown:
		if m.cursorY < len(m.lines)-1 {
			m.cursorY++
			m.cursorX = min(m.cursorX, len(m.lines[m.cursorY]))
		}
	case tea.KeyLeft:
		if m.cursorX > 0 {
			m.cursorX--
		}
	case tea.KeyRight:
		if m.cursorX < len(m.lines[m.cursorY]) {
			m.cursorX++
		}
	}
}

// View renders the modal as a bordered box.
func (m noteModal) View(theme Theme, width int) string {
	boxWidth := width - 8
	if boxWidth > 64 {
		boxWidth = 64
	}
	if boxWidth < 24 {
		boxWidth = 24
	}
	var b strings.Builder
	titleStyle := lipgloss.NewStyle().Foreground(theme.HeaderForeground).Bold(true)
	b.WriteString(titleStyle.Render(m.title))
	b.WriteString("\n\n")
	cursorStyle := lipgloss.NewStyle().
		Background(theme.SelectedForeground).
		Foreground(theme.SelectedBackground)
	for y, line := range m.lines {
		if y == m.cursorY {
			before := string(line[:m.cursorX])
			if m.cursorX >= len(line) {
				b.WriteString(before + cursorStyle.Render(" "))
			} else {
				b.WriteString(before + cursorStyle.Render(string(line[m.cursorX])) + string(line[m.cursorX+1:]))
			}
		} else {
			b.WriteString(string(line))
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(lipgloss.NewStyle().Foreground(theme.HelpText).Render(m.hint))
	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(theme.BorderColor).
		Padding(0, 1).
		Width(boxWidth)
	return box.Render(b.String())
}
