package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"planline/internal/domain"
	"planline/internal/listview"
	"planline/internal/notify"
)

// createForm is the new-ticket dialog. Submission stays disabled until
// a type is chosen and both the client and description are non-blank.
type createForm struct {
	active  bool
	field   int // 0 type, 1 client, 2 priority, 3 context
	typeIdx int // -1 until the user picks one
	prioIdx int
	client  textField
	context textField
}

func newCreateForm() createForm {
	return createForm{
		active:  true,
		typeIdx: -1,
		prioIdx: 1, // Medium
	}
}

func (f createForm) valid() bool {
	return f.typeIdx >= 0 &&
		strings.TrimSpace(f.client.Value()) != "" &&
		strings.TrimSpace(f.context.Value()) != ""
}

func (m Model) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.focus {
	case FocusSearch:
		return m.updateSearch(msg)
	case FocusCreate:
		return m.updateCreate(msg)
	case FocusDropdown:
		return m.updateListDropdown(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
		return m, nil

	case key.Matches(msg, m.keys.Down):
		p := m.currentPage()
		if m.cursor < p.End-p.Start-1 {
			m.cursor++
		}
		return m, nil

	case key.Matches(msg, m.keys.Home):
		m.cursor = 0
		return m, nil

	case key.Matches(msg, m.keys.End):
		p := m.currentPage()
		m.cursor = p.End - p.Start - 1
		if m.cursor < 0 {
			m.cursor = 0
		}
		return m, nil

	case key.Matches(msg, m.keys.NextPage):
		if m.currentPage().HasNext {
			m.page++
			m.cursor = 0
		}
		return m, nil

	case key.Matches(msg, m.keys.PrevPage):
		if m.currentPage().HasPrev {
			m.page--
			m.cursor = 0
		}
		return m, nil

	case key.Matches(msg, m.keys.FilterActivate):
		m.focus = FocusSearch
		return m, nil

	case key.Matches(msg, m.keys.FilterClear):
		m.query = listview.Query{}
		m.search.SetValue("")
		m.page = 1
		m.cursor = 0
		return m, nil

	case key.Matches(msg, m.keys.CycleStatus):
		options := append([]string{listview.All}, listview.Statuses(m.tickets)...)
		m.openDropdown("filter-status", "Filter by status", options)
		return m, nil

	case key.Matches(msg, m.keys.CycleClient):
		options := append([]string{listview.All}, listview.Clients(m.tickets)...)
		m.openDropdown("filter-client", "Filter by client", options)
		return m, nil

	case key.Matches(msg, m.keys.NewTicket):
		m.create = newCreateForm()
		m.focus = FocusCreate
		return m, nil

	case key.Matches(msg, m.keys.Refresh):
		m.loading = true
		return m, m.loadTicketsCmd()

	case key.Matches(msg, m.keys.Open):
		t, ok := m.selectedTicket()
		if !ok {
			return m, nil
		}
		if t.IssueStatus == domain.StatusGenerating || t.IssueStatus == domain.StatusFailed {
			return m, m.pushToast(notify.Info, "Ticket "+t.TicketID+" is not on the server yet")
		}
		m.loading = true
		return m, m.openTicketCmd(t.TicketID)
	}
	return m, nil
}

func (m Model) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		m.focus = FocusList
		return m, nil
	case tea.KeyEsc:
		m.search.SetValue("")
		m.query.Search = ""
		m.page = 1
		m.cursor = 0
		m.focus = FocusList
		return m, nil
	}
	m.search.Update(msg)
	m.query.Search = m.search.Value()
	m.page = 1
	m.cursor = 0
	return m, nil
}

func (m Model) updateListDropdown(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.focus = FocusList
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
		switch m.dropdown.kind {
		case "filter-status":
			m.query.Status = choice
		case "filter-client":
			m.query.Client = choice
		}
		m.page = 1
		m.cursor = 0
		m.focus = FocusList
		return m, nil
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

func (m Model) updateCreate(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	f := &m.create
	switch msg.Type {
	case tea.KeyEsc:
		f.active = false
		m.focus = FocusList
		return m, nil

	case tea.KeyTab, tea.KeyDown:
		f.field = (f.field + 1) % 4
		return m, nil

	case tea.KeyShiftTab, tea.KeyUp:
		f.field = (f.field + 3) % 4
		return m, nil

	case tea.KeyLeft, tea.KeyRight:
		delta := 1
		if msg.Type == tea.KeyLeft {
			delta = -1
		}
		switch f.field {
		case 0:
			n := len(domain.TicketTypes)
			f.typeIdx = ((f.typeIdx+delta)%n + n) % n
			return m, nil
		case 1, 3:
			// cursor movement inside the text fields
		case 2:
			n := len(domain.Priorities)
			f.prioIdx = ((f.prioIdx+delta)%n + n) % n
			return m, nil
		}

	case tea.KeyEnter:
		if !f.valid() {
			return m, m.pushToast(notify.Info, "Type, client, and description are all required")
		}
		t := m.buildCreateTicket()
		f.active = false
		m.focus = FocusList
		// Show the row right away; the refresh after the POST replaces it.
		placeholder := t
		placeholder.IssueStatus = domain.StatusGenerating
		m.tickets = append(m.tickets, placeholder)
		cmd := m.pushToast(notify.Info, "Creating "+t.TicketID)
		return m, tea.Batch(cmd, m.createTicketCmd(t))
	}

	switch f.field {
	case 1:
		f.client.Update(msg)
	case 3:
		f.context.Update(msg)
	}
	return m, nil
}

// buildCreateTicket assembles the optimistic ticket from the form. The
// description is the context trimmed to 80 runes.
func (m Model) buildCreateTicket() domain.Ticket {
	f := m.create
	ticketType := domain.TicketTypes[f.typeIdx]
	desc := strings.TrimSpace(f.context.Value())
	if runes := []rune(desc); len(runes) > 80 {
		desc = string(runes[:80])
	}
	return domain.Ticket{
		TicketID:        domain.NewTicketID(m.now(), m.rng),
		TicketType:      ticketType,
		ClientName:      strings.TrimSpace(f.client.Value()),
		IssuePriority:   domain.Priorities[f.prioIdx],
		IssueStatus:     domain.StatusDraft,
		UserDescription: desc,
	}
}

// Rendering.

func (m Model) viewList() string {
	width := m.width
	if width <= 0 {
		width = 100
	}
	var b strings.Builder

	header := lipgloss.NewStyle().Foreground(m.theme.HeaderForeground).Bold(true)
	b.WriteString(header.Render("Planline · Tickets"))
	if m.loading {
		b.WriteString(lipgloss.NewStyle().Foreground(m.theme.FaintText).Render("  loading…"))
	}
	b.WriteString("\n")
	b.WriteString(m.viewFilterBar())
	b.WriteString("\n")

	switch {
	case m.create.active:
		b.WriteString(m.viewCreateForm(width))
	case m.focus == FocusDropdown:
		b.WriteString(m.viewDropdown())
		b.WriteString("\n")
	default:
		b.WriteString(m.viewTable(width))
	}

	b.WriteString("\n")
	b.WriteString(m.viewListFooter())
	b.WriteString(m.viewToasts())
	return b.String()
}

func (m Model) viewFilterBar() string {
	faint := lipgloss.NewStyle().Foreground(m.theme.FaintText)
	parts := []string{}
	searchLabel := "search: "
	if m.focus == FocusSearch {
		parts = append(parts, searchLabel+m.search.View(m.theme, true))
	} else if m.search.Value() != "" {
		parts = append(parts, searchLabel+m.search.Value())
	} else {
		parts = append(parts, faint.Render(searchLabel+"(/)"))
	}
	parts = append(parts, "status: "+orAll(m.query.Status))
	parts = append(parts, "client: "+orAll(m.query.Client))
	return strings.Join(parts, faint.Render("  ·  "))
}

func orAll(v string) string {
	if v == "" {
		return listview.All
	}
	return v
}

func (m Model) viewTable(width int) string {
	filtered := m.filtered()
	p := listview.Paginate(len(filtered), m.page, m.pageSize)
	rows := filtered[p.Start:p.End]

	descWidth := width - 62
	if descWidth < 10 {
		descWidth = 10
	}
	var b strings.Builder
	head := lipgloss.NewStyle().Foreground(m.theme.HelpText)
	b.WriteString(head.Render(fmt.Sprintf("  %-16s %-17s %-7s %-13s %-18s %s",
		"ID", "STATUS", "PRIO", "TYPE", "CLIENT", "DESCRIPTION")))
	b.WriteString("\n")

	if len(rows) == 0 {
		b.WriteString(lipgloss.NewStyle().Foreground(m.theme.FaintText).Render("  no tickets match the current filters"))
		b.WriteString("\n")
		return b.String()
	}

	selected := lipgloss.NewStyle().
		Background(m.theme.SelectedBackground).
		Foreground(m.theme.SelectedForeground)
	for i, t := range rows {
		status := lipgloss.NewStyle().Foreground(m.theme.StatusColor(t.IssueStatus)).Render(pad(t.IssueStatus, 17))
		prio := lipgloss.NewStyle().Foreground(m.theme.PriorityColor(t.IssuePriority)).Render(pad(t.IssuePriority, 7))
		line := fmt.Sprintf("%-16s %s %s %-13s %-18s %s",
			t.TicketID, status, prio, truncate(t.TicketType, 13),
			truncate(t.ClientName, 18), truncate(t.UserDescription, descWidth))
		if i == m.cursor && m.focus == FocusList {
			b.WriteString(selected.Render("> " + line))
		} else {
			b.WriteString("  " + line)
		}
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) viewListFooter() string {
	p := m.currentPage()
	faint := lipgloss.NewStyle().Foreground(m.theme.FaintText)
	help := lipgloss.NewStyle().Foreground(m.theme.HelpText)

	showing := "no tickets"
	if p.Total > 0 {
		showing = fmt.Sprintf("Showing %d-%d of %d", p.ShowingStart, p.ShowingEnd, p.Total)
	}
	nav := fmt.Sprintf("Page %d/%d", p.Current, p.Last)
	if !p.HasPrev {
		nav += faint.Render(" (first)")
	}
	if !p.HasNext {
		nav += faint.Render(" (last)")
	}
	line1 := showing + faint.Render("  ·  ") + nav
	line2 := help.Render("enter open · / search · s status · c client · N new · r refresh · n/p page · q quit")
	return line1 + "\n" + line2
}

func (m Model) viewCreateForm(width int) string {
	f := m.create
	theme := m.theme
	label := lipgloss.NewStyle().Foreground(theme.HelpText)
	active := lipgloss.NewStyle().Foreground(theme.SelectedForeground).Bold(true)

	renderField := func(idx int, name, value string) string {
		prefix := "  "
		style := lipgloss.NewStyle().Foreground(theme.NormalText)
		if f.field == idx {
			prefix = "> "
			style = active
		}
		return prefix + label.Render(name+": ") + style.Render(value)
	}

	typeValue := "(choose with ←/→)"
	if f.typeIdx >= 0 {
		typeValue = domain.TicketTypes[f.typeIdx]
	}
	var b strings.Builder
	b.WriteString(lipgloss.NewStyle().Foreground(theme.HeaderForeground).Bold(true).Render("New Ticket"))
	b.WriteString("\n\n")
	b.WriteString(renderField(0, "Type", typeValue) + "\n")
	b.WriteString(renderField(1, "Client", f.client.View(theme, f.field == 1)) + "\n")
	b.WriteString(renderField(2, "Priority", domain.Priorities[f.prioIdx]) + "\n")
	b.WriteString(renderField(3, "Context", f.context.View(theme, f.field == 3)) + "\n\n")

	submit := "Create (Enter)"
	if !f.valid() {
		submit = lipgloss.NewStyle().Foreground(theme.FaintText).Render("Create (type, client, and description required)")
	}
	b.WriteString(submit + "   " + label.Render("Esc cancel"))

	boxWidth := width - 8
	if boxWidth > 60 {
		boxWidth = 60
	}
	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(theme.BorderColor).
		Padding(0, 1).
		Width(boxWidth)
	return box.Render(b.String()) + "\n"
}

func (m Model) viewDropdown() string {
	var b strings.Builder
	b.WriteString(lipgloss.NewStyle().Foreground(m.theme.HeaderForeground).Bold(true).Render(m.dropdown.title))
	b.WriteString("\n")
	selected := lipgloss.NewStyle().
		Background(m.theme.SelectedBackground).
		Foreground(m.theme.SelectedForeground)
	for i, opt := range m.dropdown.options {
		if i == m.dropdown.index {
			b.WriteString(selected.Render("> " + opt))
		} else {
			b.WriteString("  " + opt)
		}
		b.WriteString("\n")
	}
	b.WriteString(lipgloss.NewStyle().Foreground(m.theme.HelpText).Render("enter select · esc cancel"))
	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(m.theme.BorderColor).
		Padding(0, 1)
	return box.Render(b.String())
}

func (m Model) viewToasts() string {
	active := m.toasts.Active(m.now())
	if len(active) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("\n")
	for _, t := range active {
		color := m.theme.ToastInfo
		switch t.Level {
		case notify.Success:
			color = m.theme.ToastSuccess
		case notify.Error:
			color = m.theme.ToastError
		}
		if t.Fading(m.now()) {
			color = m.theme.ToastFaded
		}
		b.WriteString(lipgloss.NewStyle().Foreground(color).Render("■ " + t.Message))
		b.WriteString("\n")
	}
	return b.String()
}

func pad(s string, w int) string {
	s = truncate(s, w)
	for len([]rune(s)) < w {
		s += " "
	}
	return s
}

func truncate(s string, w int) string {
	runes := []rune(s)
	if len(runes) <= w {
		return s
	}
	if w <= 1 {
		return string(runes[:w])
	}
	return string(runes[:w-1]) + "…"
}
