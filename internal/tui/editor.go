package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"planline/internal/domain"
	"planline/internal/notify"
	"planline/internal/plan"
)

func (m Model) updateEditor(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.focus {
	case FocusDropdown:
		return m.updateEditorDropdown(msg)
	case FocusModal:
		return m.updateModal(msg)
	case FocusInput:
		return m.updateDueInput(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Back):
		m.screen = ScreenList
		m.focus = FocusList
		m.ed = nil
		m.loading = true
		return m, m.loadTicketsCmd()

	case key.Matches(msg, m.keys.Up):
		if m.stepCursor > 0 {
			m.stepCursor--
		}
		return m, nil

	case key.Matches(msg, m.keys.Down):
		if m.stepCursor < len(m.ed.Steps)-1 {
			m.stepCursor++
		}
		return m, nil

	case key.Matches(msg, m.keys.Home):
		m.stepCursor = 0
		return m, nil

	case key.Matches(msg, m.keys.End):
		if n := len(m.ed.Steps); n > 0 {
			m.stepCursor = n - 1
		}
		return m, nil

	case key.Matches(msg, m.keys.MoveUp):
		if m.stepCursor > 0 {
			if err := m.ed.Reorder(context.Background(), m.stepCursor, -1); err != nil {
				return m, m.pushToast(notify.Error, err.Error())
			}
			m.stepCursor--
		}
		return m, nil

	case key.Matches(msg, m.keys.MoveDown):
		if m.stepCursor < len(m.ed.Steps)-1 {
			if err := m.ed.Reorder(context.Background(), m.stepCursor, 1); err != nil {
				return m, m.pushToast(notify.Error, err.Error())
			}
			m.stepCursor++
		}
		return m, nil

	case key.Matches(msg, m.keys.Tag):
		if len(m.ed.Steps) == 0 {
			return m, nil
		}
		if !m.tagsLoaded {
			m.dropdown.pending = "tag"
			return m, m.loadTagsCmd()
		}
		if len(m.tags) == 0 {
			return m, m.pushToast(notify.Info, "No role tags available")
		}
		m.openDropdown("tag", "Role tag", m.tags)
		return m, nil

	case key.Matches(msg, m.keys.Assign):
		if len(m.ed.Steps) == 0 {
			return m, nil
		}
		tag := m.ed.Steps[m.stepCursor].Tag
		if _, ok := m.candidates[tag]; ok {
			return m.openAssignDropdown(tag)
		}
		m.dropdown.pending = "assign"
		return m, m.loadCandidatesCmd(tag)

	case key.Matches(msg, m.keys.Status):
		if len(m.ed.Steps) == 0 {
			return m, nil
		}
		m.openDropdown("status", "Step status", domain.StepStatuses)
		return m, nil

	case key.Matches(msg, m.keys.Due):
		if len(m.ed.Steps) == 0 {
			return m, nil
		}
		m.dueInput = newTextField(m.ed.Steps[m.stepCursor].Due)
		m.focus = FocusInput
		return m, nil

	case key.Matches(msg, m.keys.Block):
		if len(m.ed.Steps) == 0 {
			return m, nil
		}
		m.modal = modalState{kind: "blocker", note: newNoteModal(
			"Flag Blocker", "C-d flag · Esc cancel")}
		m.focus = FocusModal
		return m, nil

	case key.Matches(msg, m.keys.Unblock):
		if len(m.ed.Steps) == 0 {
			return m, nil
		}
		if err := m.ed.RemoveBlocker(context.Background(), m.stepCursor); err != nil {
			return m, m.pushToast(notify.Error, err.Error())
		}
		return m, m.pushToast(notify.Success, "Blocker cleared")

	case key.Matches(msg, m.keys.EditStep):
		if len(m.ed.Steps) == 0 {
			return m, nil
		}
		m.modal = modalState{kind: "refine", note: newNoteModal(
			"Refine Step", "C-d apply · Esc cancel")}
		m.focus = FocusModal
		return m, nil

	case key.Matches(msg, m.keys.AddStep):
		m.modal = modalState{kind: "add", note: newNoteModal(
			"Add Step (first line is the title)", "C-d next · Esc cancel")}
		m.focus = FocusModal
		return m, nil

	case key.Matches(msg, m.keys.DeleteStep):
		if len(m.ed.Steps) == 0 {
			return m, nil
		}
		m.modal = modalState{kind: "delete", note: newNoteModal(
			"Delete Step (why?)", "C-d delete · Esc cancel")}
		m.focus = FocusModal
		return m, nil

	case key.Matches(msg, m.keys.Regenerate):
		if m.busy != "" {
			return m, m.pushToast(notify.Info, "Busy: "+m.busy)
		}
		m.busy = "regenerating"
		gen := m.ed.Generation()
		cmd := m.pushToast(notify.Info, "Regenerating plan…")
		return m, tea.Batch(cmd, m.regenerateCmd(gen, m.ed.Ticket))

	case key.Matches(msg, m.keys.Proceed):
		if m.busy != "" {
			return m, m.pushToast(notify.Info, "Busy: "+m.busy)
		}
		flow, err := m.ed.Flow()
		if err != nil {
			if errors.Is(err, plan.ErrNothingToProceed) {
				return m, m.pushToast(notify.Error, "Plan is empty; add a step first")
			}
			return m, m.pushToast(notify.Error, err.Error())
		}
		m.busy = "committing"
		cmd := m.pushToast(notify.Info, "Committing plan…")
		return m, tea.Batch(cmd, m.proceedCmd(m.ed.Ticket, flow))
	}
	return m, nil
}

func (m Model) updateEditorDropdown(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.focus = FocusSteps
		return m, nil
	case tea.KeyUp:
		if m.dropdown.index > 0 {
			m.dropdown.index--
		}
		return m, nil
	case tea.KeyDown:
		if m.dropdown.index < len(m.dropdown.options)-1 {
			m.dropdown.index++
		}
		return m, nil
	case tea.KeyEnter:
		choice := m.dropdown.options[m.dropdown.index]
		m.focus = FocusSteps
		var err error
		var done string
		ctx := context.Background()
		switch m.dropdown.kind {
		case "tag":
			err = m.ed.ChangeTag(ctx, m.stepCursor, choice)
			done = "Tag changed to " + choice + "; assignee cleared"
		case "assign":
			err = m.ed.Assign(ctx, m.stepCursor, choice)
			done = "Assigned to " + choice
		case "status":
			err = m.ed.ChangeStatus(ctx, m.stepCursor, choice)
			done = "Status set to " + choice
		}
		if err != nil {
			return m, m.pushToast(notify.Error, err.Error())
		}
		return m, m.pushToast(notify.Success, done)
	}
	switch msg.String() {
	case "k":
		if m.dropdown.index > 0 {
			m.dropdown.index--
		}
	case "j":
		if m.dropdown.index < len(m.dropdown.options)-1 {
			m.dropdown.index++
		}
	}
	return m, nil
}

func (m Model) updateModal(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.focus = FocusSteps
		return m, nil

	case tea.KeyCtrlD:
		text := m.modal.note.Value()
		var err error
		var done string
		ctx := context.Background()
		switch m.modal.kind {
		case "blocker":
			err = m.ed.FlagBlocker(ctx, m.stepCursor, text)
			done = "Blocker flagged"
		case "refine":
			err = m.ed.EditStep(ctx, m.stepCursor, text)
			done = "Step refined"
		case "add":
			title, desc := splitNote(text)
			if title == "" || desc == "" {
				return m, m.pushToast(notify.Error, "Title and description are both required")
			}
			draft := domain.Step{Title: title, Description: desc}
			if len(m.ed.Steps) > 0 {
				draft.Tag = m.ed.Steps[m.stepCursor].Tag
			}
			m.modal = modalState{kind: "add-context", draft: draft, note: newNoteModal(
				"Why add this step?", "C-d add · Esc cancel")}
			return m, nil
		case "add-context":
			err = m.ed.AddStep(ctx, m.modal.draft, text)
			done = "Step added"
			if err == nil {
				m.stepCursor = len(m.ed.Steps) - 1
			}
		case "delete":
			err = m.ed.DeleteStep(ctx, m.stepCursor, text)
			done = "Step deleted"
			if err == nil && m.stepCursor >= len(m.ed.Steps) && m.stepCursor > 0 {
				m.stepCursor--
			}
		}
		if err != nil {
			// Validation failures keep the modal open for another try.
			switch {
			case errors.Is(err, plan.ErrReasonRequired),
				errors.Is(err, plan.ErrContextRequired):
				return m, m.pushToast(notify.Error, err.Error())
			}
			m.focus = FocusSteps
			return m, m.pushToast(notify.Error, err.Error())
		}
		m.focus = FocusSteps
		return m, m.pushToast(notify.Success, done)
	}
	m.modal.note.Update(msg)
	return m, nil
}

// splitNote takes the first line as the title and the rest as the
// description.
func splitNote(text string) (title, description string) {
	parts := strings.SplitN(text, "\n", 2)
	title = strings.TrimSpace(parts[0])
	if len(parts) == 2 {
		description = strings.TrimSpace(parts[1])
	}
	return title, description
}

func (m Model) updateDueInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.focus = FocusSteps
		return m, nil
	case tea.KeyEnter:
		value := strings.TrimSpace(m.dueInput.Value())
		m.focus = FocusSteps
		if err := m.ed.ChangeDue(context.Background(), m.stepCursor, value); err != nil {
			return m, m.pushToast(notify.Error, err.Error())
		}
		return m, m.pushToast(notify.Success, "Due date set to "+value)
	}
	m.dueInput.Update(msg)
	return m, nil
}

// Rendering.

func (m Model) viewEditor() string {
	width := m.width
	if width <= 0 {
		width = 100
	}
	var b strings.Builder
	b.WriteString(m.viewEditorHeader())
	b.WriteString("\n")

	switch m.focus {
	case FocusDropdown:
		b.WriteString(m.viewDropdown())
		b.WriteString("\n")
	case FocusModal:
		b.WriteString(m.modal.note.View(m.theme, width))
		b.WriteString("\n")
	default:
		b.WriteString(m.viewSteps(width))
		if m.focus == FocusInput {
			b.WriteString("\nDue date (YYYY-MM-DD): " + m.dueInput.View(m.theme, true) + "\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(m.viewEditorFooter())
	b.WriteString(m.viewToasts())
	return b.String()
}

func (m Model) viewEditorHeader() string {
	t := m.ed.Ticket
	header := lipgloss.NewStyle().Foreground(m.theme.HeaderForeground).Bold(true)
	faint := lipgloss.NewStyle().Foreground(m.theme.FaintText)
	prio := lipgloss.NewStyle().Foreground(m.theme.PriorityColor(t.IssuePriority)).Render(t.IssuePriority)
	status := lipgloss.NewStyle().Foreground(m.theme.StatusColor(t.IssueStatus)).Render(t.IssueStatus)

	line1 := header.Render(t.TicketID) + "  " + status + "  " + prio
	if m.ed.Dirty() {
		line1 += faint.Render("  · unsaved changes")
	}
	if m.busy != "" {
		line1 += lipgloss.NewStyle().Foreground(m.theme.ToastInfo).Render("  · " + m.busy + "…")
	}
	line2 := faint.Render(t.TicketType+" · "+t.ClientName) + "\n" + truncate(t.UserDescription, 96)
	return line1 + "\n" + line2 + "\n"
}

func (m Model) viewSteps(width int) string {
	if len(m.ed.Steps) == 0 {
		return lipgloss.NewStyle().Foreground(m.theme.FaintText).
			Render("  plan is empty; press + to add a step") + "\n"
	}
	var b strings.Builder
	selected := lipgloss.NewStyle().
		Background(m.theme.SelectedBackground).
		Foreground(m.theme.SelectedForeground)
	faint := lipgloss.NewStyle().Foreground(m.theme.FaintText)
	blocked := lipgloss.NewStyle().Foreground(m.theme.Blocked).Bold(true)

	for i, s := range m.ed.Steps {
		status := lipgloss.NewStyle().Foreground(m.theme.StatusColor(s.Status)).Render(pad(s.Status, 12))
		assignee := s.AssignedTo
		if assignee == "" {
			assignee = "unassigned"
		}
		marker := "  "
		if s.Blocker != nil {
			marker = blocked.Render("! ")
		}
		title := fmt.Sprintf("%d. %s%s", i+1, marker, truncate(s.Title, width-30))
		meta := fmt.Sprintf("     %s  %s / %s  due %s",
			status, s.Tag, assignee, orDash(s.Due))

		if i == m.stepCursor && m.focus == FocusSteps {
			b.WriteString(selected.Render("> " + title))
		} else {
			b.WriteString("  " + title)
		}
		b.WriteString("\n")
		b.WriteString(faint.Render(meta))
		b.WriteString("\n")
		if s.Blocker != nil {
			b.WriteString(blocked.Render("     blocked: " + truncate(s.Blocker.Reason, width-16)))
			b.WriteString("\n")
		}
	}
	return b.String()
}

func orDash(v string) string {
	if v == "" {
		return "-"
	}
	return v
}

func (m Model) viewEditorFooter() string {
	help := lipgloss.NewStyle().Foreground(m.theme.HelpText)
	return help.Render("K/J move · t tag · a assign · s status · d due · b/B blocker · "+
		"e refine · + add · x delete · R regenerate · C-p commit · Esc back") + "\n"
}
