package tui

import (
	"fmt"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"planline/internal/api"
	"planline/internal/domain"
	"planline/internal/listview"
)

func newTestModel(t *testing.T) Model {
	t.Helper()
	m := New(api.New("http://127.0.0.1:1", "test-key"), nil, 10)
	m.now = func() time.Time {
		return time.Date(2025, 8, 20, 10, 0, 0, 0, time.UTC)
	}
	return m
}

func keyRunes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func update(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	return next.(Model)
}

func seedTickets(n int) []domain.Ticket {
	tickets := make([]domain.Ticket, n)
	for i := range tickets {
		tickets[i] = domain.Ticket{
			TicketID:        fmt.Sprintf("REQ-250820-%04d", 1000+i),
			TicketType:      "Maintenance",
			ClientName:      "Acme Corp",
			IssuePriority:   "Medium",
			IssueStatus:     domain.StatusNew,
			UserDescription: "HVAC inspection",
		}
	}
	return tickets
}

func TestListNavigationAndPaging(t *testing.T) {
	m := newTestModel(t)
	m = update(t, m, ticketsMsg{tickets: seedTickets(25)})

	if m.loading {
		t.Fatal("loading should clear once tickets arrive")
	}
	m = update(t, m, keyRunes("j"))
	m = update(t, m, keyRunes("j"))
	if m.cursor != 2 {
		t.Fatalf("cursor = %d, want 2", m.cursor)
	}

	m = update(t, m, keyRunes("n"))
	if m.page != 2 || m.cursor != 0 {
		t.Fatalf("after next page: page=%d cursor=%d", m.page, m.cursor)
	}
	m = update(t, m, keyRunes("n"))
	m = update(t, m, keyRunes("n")) // page 3 is the last, must not advance
	if m.page != 3 {
		t.Fatalf("page = %d, want 3", m.page)
	}
	if p := m.currentPage(); p.ShowingStart != 21 || p.ShowingEnd != 25 {
		t.Fatalf("showing %d-%d, want 21-25", p.ShowingStart, p.ShowingEnd)
	}

	m = update(t, m, keyRunes("p"))
	if m.page != 2 {
		t.Fatalf("page = %d, want 2", m.page)
	}
	m = update(t, m, keyRunes("G"))
	if m.cursor != 9 {
		t.Fatalf("End cursor = %d, want 9", m.cursor)
	}
}

func TestSearchUpdatesQueryAndResetsPage(t *testing.T) {
	m := newTestModel(t)
	tickets := seedTickets(15)
	tickets[12].ClientName = "Borealis"
	m = update(t, m, ticketsMsg{tickets: tickets})
	m = update(t, m, keyRunes("n"))

	m = update(t, m, keyRunes("/"))
	if m.focus != FocusSearch {
		t.Fatalf("focus = %v, want FocusSearch", m.focus)
	}
	for _, r := range "borealis" {
		m = update(t, m, keyRunes(string(r)))
	}
	if m.query.Search != "borealis" {
		t.Fatalf("query.Search = %q", m.query.Search)
	}
	if m.page != 1 {
		t.Fatalf("page = %d, search must reset to 1", m.page)
	}
	if got := len(m.filtered()); got != 1 {
		t.Fatalf("filtered = %d, want 1", got)
	}

	m = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if m.focus != FocusList {
		t.Fatalf("enter should return focus to the list")
	}
	m = update(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	if m.query.Search != "" || len(m.filtered()) != 15 {
		t.Fatal("esc should clear all filters")
	}
}

func TestStatusFilterDropdown(t *testing.T) {
	m := newTestModel(t)
	tickets := seedTickets(4)
	tickets[2].IssueStatus = domain.StatusClosed
	m = update(t, m, ticketsMsg{tickets: tickets})

	m = update(t, m, keyRunes("s"))
	if m.focus != FocusDropdown || m.dropdown.kind != "filter-status" {
		t.Fatalf("expected status filter dropdown, got %+v", m.dropdown)
	}
	if m.dropdown.options[0] != listview.All {
		t.Fatalf("first option = %q, want %q", m.dropdown.options[0], listview.All)
	}

	// Options are ["all", "Closed", "New"]; select Closed.
	m = update(t, m, tea.KeyMsg{Type: tea.KeyDown})
	m = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if m.focus != FocusList {
		t.Fatal("selection should close the dropdown")
	}
	if m.query.Status != domain.StatusClosed {
		t.Fatalf("query.Status = %q", m.query.Status)
	}
	if got := len(m.filtered()); got != 1 {
		t.Fatalf("filtered = %d, want 1", got)
	}
}

func TestCreateFormRequiresTypeAndClient(t *testing.T) {
	m := newTestModel(t)
	m = update(t, m, ticketsMsg{tickets: nil})

	m = update(t, m, keyRunes("N"))
	if m.focus != FocusCreate || !m.create.active {
		t.Fatal("N should open the create form")
	}

	m = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if m.focus != FocusCreate {
		t.Fatal("submit must stay disabled without type and client")
	}

	m = update(t, m, tea.KeyMsg{Type: tea.KeyRight}) // pick first type
	if m.create.typeIdx != 0 {
		t.Fatalf("typeIdx = %d", m.create.typeIdx)
	}
	m = update(t, m, tea.KeyMsg{Type: tea.KeyTab})
	for _, r := range "Acme" {
		m = update(t, m, keyRunes(string(r)))
	}
	if m.create.valid() {
		t.Fatal("form must stay invalid without a description")
	}
	m = update(t, m, tea.KeyMsg{Type: tea.KeyTab})
	m = update(t, m, tea.KeyMsg{Type: tea.KeyTab})
	for _, r := range "leak" {
		m = update(t, m, keyRunes(string(r)))
	}
	if !m.create.valid() {
		t.Fatal("form should be valid with type, client, and description set")
	}

	ticket := m.buildCreateTicket()
	if !strings.HasPrefix(ticket.TicketID, "REQ-250820-") {
		t.Fatalf("ticket id = %q", ticket.TicketID)
	}
	if ticket.IssueStatus != domain.StatusDraft {
		t.Fatalf("status = %q, want Draft", ticket.IssueStatus)
	}
	if ticket.UserDescription != "leak" {
		t.Fatalf("description = %q", ticket.UserDescription)
	}

	m = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if m.create.active || m.focus != FocusList {
		t.Fatal("submit should close the form")
	}

	m = update(t, m, keyRunes("N"))
	m = update(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	if m.create.active {
		t.Fatal("esc should cancel the form")
	}
}

func TestCreateSubmitShowsRowImmediately(t *testing.T) {
	m := newTestModel(t)
	m = update(t, m, ticketsMsg{tickets: nil})

	m = update(t, m, keyRunes("N"))
	m = update(t, m, tea.KeyMsg{Type: tea.KeyRight})
	m = update(t, m, tea.KeyMsg{Type: tea.KeyTab})
	for _, r := range "Acme" {
		m = update(t, m, keyRunes(string(r)))
	}
	m = update(t, m, tea.KeyMsg{Type: tea.KeyTab})
	m = update(t, m, tea.KeyMsg{Type: tea.KeyTab})
	for _, r := range "leak" {
		m = update(t, m, keyRunes(string(r)))
	}
	m = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})

	if len(m.tickets) != 1 {
		t.Fatalf("rows after submit = %d, want 1", len(m.tickets))
	}
	if m.tickets[0].IssueStatus != domain.StatusGenerating {
		t.Fatalf("row status = %q, want Generating", m.tickets[0].IssueStatus)
	}
	if !strings.HasPrefix(m.tickets[0].TicketID, "REQ-250820-") {
		t.Fatalf("row ticket id = %q", m.tickets[0].TicketID)
	}
}

func openEditor(t *testing.T, m Model) Model {
	t.Helper()
	m = update(t, m, ticketMsg{ticket: domain.Ticket{
		TicketID:      "REQ-250820-1000",
		TicketType:    "Maintenance",
		ClientName:    "Acme Corp",
		IssuePriority: "High",
		IssueStatus:   domain.StatusNew,
	}})
	if m.screen != ScreenEditor || m.focus != FocusSteps {
		t.Fatalf("expected editor screen, got screen=%v focus=%v", m.screen, m.focus)
	}
	return m
}

func TestEditorStepReorderAndStatus(t *testing.T) {
	m := newTestModel(t)
	m = openEditor(t, m)

	if len(m.ed.Steps) != 4 {
		t.Fatalf("default plan has %d steps, want 4", len(m.ed.Steps))
	}
	first := m.ed.Steps[0].Title

	m = update(t, m, keyRunes("J"))
	if m.ed.Steps[1].Title != first || m.stepCursor != 1 {
		t.Fatal("J should move the step down and follow it with the cursor")
	}
	if !m.ed.Dirty() {
		t.Fatal("reorder should mark the plan dirty")
	}

	m = update(t, m, keyRunes("s"))
	if m.focus != FocusDropdown || m.dropdown.kind != "status" {
		t.Fatal("s should open the status dropdown")
	}
	m = update(t, m, tea.KeyMsg{Type: tea.KeyDown})
	m = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if got := m.ed.Steps[1].Status; got != "In Progress" {
		t.Fatalf("status = %q, want In Progress", got)
	}
}

func TestProceedWorksWithoutLocalEdits(t *testing.T) {
	m := newTestModel(t)
	m = openEditor(t, m)

	if m.ed.Dirty() {
		t.Fatal("freshly opened editor must start clean")
	}
	m = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlP})
	if m.busy != "committing" {
		t.Fatalf("busy = %q, want committing", m.busy)
	}
}

func TestBlockerModalRejectsBlankReason(t *testing.T) {
	m := newTestModel(t)
	m = openEditor(t, m)

	m = update(t, m, keyRunes("b"))
	if m.focus != FocusModal || m.modal.kind != "blocker" {
		t.Fatal("b should open the blocker modal")
	}

	m = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlD})
	if m.focus != FocusModal {
		t.Fatal("blank reason must keep the modal open")
	}
	if m.ed.Steps[0].Blocker != nil {
		t.Fatal("step must stay unblocked after a rejected submit")
	}

	for _, r := range "waiting on permit" {
		m = update(t, m, keyRunes(string(r)))
	}
	m = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlD})
	if m.focus != FocusSteps {
		t.Fatal("valid reason should close the modal")
	}
	if b := m.ed.Steps[0].Blocker; b == nil || b.Reason != "waiting on permit" {
		t.Fatalf("blocker = %+v", m.ed.Steps[0].Blocker)
	}

	m = update(t, m, keyRunes("B"))
	if m.ed.Steps[0].Blocker != nil {
		t.Fatal("B should clear the blocker")
	}
}

func TestDueInputValidation(t *testing.T) {
	m := newTestModel(t)
	m = openEditor(t, m)

	m = update(t, m, keyRunes("d"))
	if m.focus != FocusInput {
		t.Fatal("d should open the due date prompt")
	}
	for _, r := range "not-a-date" {
		m = update(t, m, keyRunes(string(r)))
	}
	m = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if m.focus != FocusSteps {
		t.Fatal("prompt should close after submit")
	}
	if m.ed.Steps[0].Due != "" {
		t.Fatal("garbage date must not be applied")
	}

	m = update(t, m, keyRunes("d"))
	for _, r := range "2025-09-01" {
		m = update(t, m, keyRunes(string(r)))
	}
	m = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if m.ed.Steps[0].Due != "2025-09-01" {
		t.Fatalf("due = %q", m.ed.Steps[0].Due)
	}
}

func TestStaleRegenerationIsDropped(t *testing.T) {
	m := newTestModel(t)
	m = openEditor(t, m)

	stamped := m.ed.Generation()
	m = update(t, m, keyRunes("J")) // local edit bumps the generation

	replacement := []domain.FlowEntry{{
		WorkflowName:  "Single Step",
		WorkflowSteps: "Do the thing",
		Status:        "Not Started",
	}}
	m = update(t, m, regeneratedMsg{gen: stamped, flow: replacement})
	if len(m.ed.Steps) != 4 {
		t.Fatalf("stale result applied; steps = %d, want 4", len(m.ed.Steps))
	}

	m = update(t, m, regeneratedMsg{gen: m.ed.Generation(), flow: replacement})
	if len(m.ed.Steps) != 1 {
		t.Fatalf("fresh result dropped; steps = %d, want 1", len(m.ed.Steps))
	}
}

func TestAddAndDeleteStepViaModal(t *testing.T) {
	m := newTestModel(t)
	m = openEditor(t, m)

	m = update(t, m, keyRunes("+"))
	if m.focus != FocusModal || m.modal.kind != "add" {
		t.Fatal("+ should open the add-step modal")
	}
	for _, r := range "Order parts" {
		m = update(t, m, keyRunes(string(r)))
	}
	m = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlD})
	if m.modal.kind != "add" {
		t.Fatal("missing description must keep the add modal open")
	}
	m = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	for _, r := range "compressor unit" {
		m = update(t, m, keyRunes(string(r)))
	}
	m = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlD})
	if m.modal.kind != "add-context" {
		t.Fatalf("expected the justification modal, got %q", m.modal.kind)
	}
	m = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlD})
	if m.focus != FocusModal {
		t.Fatal("blank add justification must keep the modal open")
	}
	for _, r := range "replacement hardware needed" {
		m = update(t, m, keyRunes(string(r)))
	}
	m = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlD})

	if len(m.ed.Steps) != 5 {
		t.Fatalf("steps = %d, want 5", len(m.ed.Steps))
	}
	added := m.ed.Steps[4]
	if added.Title != "Order parts" || added.Description != "compressor unit" {
		t.Fatalf("added step = %+v", added)
	}
	if m.stepCursor != 4 {
		t.Fatalf("cursor should land on the new step, got %d", m.stepCursor)
	}

	m = update(t, m, keyRunes("x"))
	if m.focus != FocusModal || m.modal.kind != "delete" {
		t.Fatal("x should ask for a delete justification")
	}
	for _, r := range "not needed after all" {
		m = update(t, m, keyRunes(string(r)))
	}
	m = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlD})
	if len(m.ed.Steps) != 4 {
		t.Fatalf("steps = %d after delete, want 4", len(m.ed.Steps))
	}
	if m.stepCursor != 3 {
		t.Fatalf("cursor = %d after deleting the last step, want 3", m.stepCursor)
	}
}

func TestViewsRenderWithoutPanics(t *testing.T) {
	m := newTestModel(t)
	m = update(t, m, tea.WindowSizeMsg{Width: 120, Height: 40})
	m = update(t, m, ticketsMsg{tickets: seedTickets(3)})
	if v := m.View(); !strings.Contains(v, "REQ-250820-1000") {
		t.Fatal("list view should show ticket ids")
	}

	m = openEditor(t, m)
	if v := m.View(); !strings.Contains(v, "Initial Assessment") {
		t.Fatal("editor view should show plan steps")
	}
}
