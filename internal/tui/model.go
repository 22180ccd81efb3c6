// Package tui implements the interactive terminal client: a paged,
// filterable ticket list and a resolution plan editor, on top of the
// bubbletea message loop.
package tui

import (
	"context"
	"errors"
	"math/rand"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"planline/internal/api"
	"planline/internal/domain"
	"planline/internal/learnlog"
	"planline/internal/listview"
	"planline/internal/notify"
	"planline/internal/plan"
)

// Screen identifies which top-level view is active.
type Screen int

const (
	ScreenList Screen = iota
	ScreenEditor
)

// Focus identifies where keyboard input is routed.
type Focus int

const (
	// FocusList means navigation keys move the ticket list cursor.
	FocusList Focus = iota
	// FocusSearch means keystrokes go to the search input.
	FocusSearch
	// FocusCreate means the create-ticket form is active.
	FocusCreate
	// FocusSteps means navigation keys move the step cursor.
	FocusSteps
	// FocusDropdown means a selection overlay is active.
	FocusDropdown
	// FocusModal means a multi-line text prompt is active.
	FocusModal
	// FocusInput means a single-line prompt (due date) is active.
	FocusInput
)

const requestTimeout = 15 * time.Second

// Messages delivered through the bubbletea loop.

type ticketsMsg struct {
	tickets []domain.Ticket
	err     error
}

type ticketMsg struct {
	ticket domain.Ticket
	err    error
}

type createdMsg struct {
	ticket domain.Ticket
	err    error
}

// regeneratedMsg carries the plan generation stamp taken when the
// request was launched; stale results are dropped by the editor.
type regeneratedMsg struct {
	gen  uint64
	flow []domain.FlowEntry
	err  error
}

type proceededMsg struct {
	err error
}

type tagsMsg struct {
	tags []string
	err  error
}

type candidatesMsg struct {
	tag   string
	names []string
	err   error
}

type toastTickMsg struct{}

// Model is the top-level bubbletea model.
type Model struct {
	client *api.Client
	store  *learnlog.Store
	keys   KeyMap
	theme  Theme
	now    func() time.Time
	rng    *rand.Rand

	width  int
	height int

	screen Screen
	focus  Focus

	// List screen state.
	tickets  []domain.Ticket
	query    listview.Query
	page     int
	pageSize int
	cursor   int
	loading  bool
	search   textField

	create createForm

	// Editor screen state.
	ed         *plan.Editor
	stepCursor int
	busy       string // "", "regenerating", or "committing"
	dropdown   dropdownState
	modal      modalState
	dueInput   textField

	// Role directory cache, fetched once per session.
	tags       []string
	tagsLoaded bool
	candidates map[string][]string

	// Ticket to open on startup.
	openTicket string

	toasts notify.Queue
}

type dropdownState struct {
	kind    string // "tag", "assign", "status", "filter-status", "filter-client"
	title   string
	options []string
	index   int
	pending string // dropdown to open once its data arrives
}

type modalState struct {
	kind  string // "blocker", "refine", "add", "add-context", "delete"
	note  noteModal
	draft domain.Step // pending step while collecting the add justification
}

// New creates the model. The store may be nil; plan edits then go
// unrecorded and optimistic creations are not tracked.
func New(client *api.Client, store *learnlog.Store, pageSize int) Model {
	if pageSize < 1 {
		pageSize = listview.DefaultPageSize
	}
	return Model{
		client:     client,
		store:      store,
		keys:       DefaultKeyMap,
		theme:      DefaultTheme,
		now:        time.Now,
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
		pageSize:   pageSize,
		page:       1,
		loading:    true,
		candidates: map[string][]string{},
	}
}

// WithTicket makes the UI open straight into the editor for ticketID.
func (m Model) WithTicket(ticketID string) Model {
	m.openTicket = ticketID
	return m
}

func (m Model) Init() tea.Cmd {
	if m.openTicket != "" {
		return tea.Batch(m.loadTicketsCmd(), m.openTicketCmd(m.openTicket))
	}
	return m.loadTicketsCmd()
}

// Commands. Each runs on its own goroutine; they only touch the client
// and the store, never the model.

func (m Model) loadTicketsCmd() tea.Cmd {
	client, store := m.client, m.store
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		tickets, err := client.ListTickets(ctx)
		if err != nil {
			return ticketsMsg{err: err}
		}
		if store != nil {
			tickets, err = store.Reconcile(ctx, tickets)
		}
		return ticketsMsg{tickets: tickets, err: err}
	}
}

func (m Model) openTicketCmd(ticketID string) tea.Cmd {
	client := m.client
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		t, err := client.TicketMetadata(ctx, ticketID)
		return ticketMsg{ticket: t, err: err}
	}
}

func (m Model) createTicketCmd(t domain.Ticket) tea.Cmd {
	client, store := m.client, m.store
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		if store != nil {
			if err := store.AddPending(ctx, t); err != nil {
				return createdMsg{ticket: t, err: err}
			}
		}
		if _, err := client.CreateTicket(ctx, t); err != nil {
			if store != nil {
				_ = store.MarkFailed(ctx, t.TicketID)
			}
			return createdMsg{ticket: t, err: err}
		}
		return createdMsg{ticket: t}
	}
}

func (m Model) regenerateCmd(gen uint64, t domain.Ticket) tea.Cmd {
	client := m.client
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		flow, err := client.RegenerateSteps(ctx, t)
		return regeneratedMsg{gen: gen, flow: flow, err: err}
	}
}

func (m Model) proceedCmd(t domain.Ticket, flow []domain.FlowEntry) tea.Cmd {
	client := m.client
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		return proceededMsg{err: client.Proceed(ctx, t, flow)}
	}
}

func (m Model) loadTagsCmd() tea.Cmd {
	client := m.client
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		tags, err := client.SpecializationList(ctx)
		return tagsMsg{tags: tags, err: err}
	}
}

func (m Model) loadCandidatesCmd(tag string) tea.Cmd {
	client := m.client
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		names, err := client.SpecializationClients(ctx, tag)
		return candidatesMsg{tag: tag, names: names, err: err}
	}
}

// Toasts.

func (m *Model) pushToast(level notify.Level, message string) tea.Cmd {
	m.toasts.Push(level, message, m.now())
	return m.toastTimerCmd()
}

func (m *Model) toastTimerCmd() tea.Cmd {
	next, ok := m.toasts.NextExpiry(m.now())
	if !ok {
		return nil
	}
	d := next.Sub(m.now())
	if d < 0 {
		d = 0
	}
	return tea.Tick(d, func(time.Time) tea.Msg { return toastTickMsg{} })
}

// Update routes messages to the active screen.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil

	case ticketsMsg:
		m.loading = false
		if msg.err != nil {
			return m, m.pushToast(notify.Error, "Load failed: "+msg.err.Error())
		}
		m.tickets = msg.tickets
		m.clampListCursor()
		return m, nil

	case ticketMsg:
		m.loading = false
		if msg.err != nil {
			return m, m.pushToast(notify.Error, "Open failed: "+msg.err.Error())
		}
		ed := plan.NewEditor(msg.ticket)
		ed.Now = m.now
		if m.store != nil {
			ed.Recorder = m.store
		}
		m.ed = ed
		m.stepCursor = 0
		m.screen = ScreenEditor
		m.focus = FocusSteps
		m.busy = ""
		return m, nil

	case createdMsg:
		if msg.err != nil {
			cmd := m.pushToast(notify.Error, "Create failed: "+msg.err.Error())
			return m, tea.Batch(cmd, m.loadTicketsCmd())
		}
		cmd := m.pushToast(notify.Success, "Ticket "+msg.ticket.TicketID+" submitted")
		return m, tea.Batch(cmd, m.loadTicketsCmd())

	case regeneratedMsg:
		m.busy = ""
		if m.ed == nil {
			return m, nil
		}
		if msg.err != nil {
			if errors.Is(msg.err, api.ErrMalformedPlan) {
				return m, m.pushToast(notify.Error, "Regenerate returned no plan; keeping current steps")
			}
			return m, m.pushToast(notify.Error, "Regenerate failed: "+msg.err.Error())
		}
		applied, err := m.ed.ApplyFlow(context.Background(), msg.gen, msg.flow)
		if err != nil {
			return m, m.pushToast(notify.Error, "Record failed: "+err.Error())
		}
		if !applied {
			return m, m.pushToast(notify.Info, "Discarded stale regeneration")
		}
		m.stepCursor = 0
		return m, m.pushToast(notify.Success, "Plan regenerated")

	case proceededMsg:
		m.busy = ""
		if msg.err != nil {
			return m, m.pushToast(notify.Error, "Proceed failed: "+msg.err.Error())
		}
		if m.ed != nil {
			m.ed.MarkSaved()
			if m.store != nil {
				_ = m.store.Record(context.Background(), "plan.accepted",
					m.ed.Ticket.TicketID, map[string]any{"steps": len(m.ed.Steps)})
			}
		}
		return m, m.pushToast(notify.Success, "Plan committed")

	case tagsMsg:
		if msg.err != nil {
			m.dropdown.pending = ""
			return m, m.pushToast(notify.Error, "Tags unavailable: "+msg.err.Error())
		}
		m.tags = msg.tags
		m.tagsLoaded = true
		if m.dropdown.pending == "tag" {
			m.dropdown.pending = ""
			m.openDropdown("tag", "Role tag", m.tags)
		}
		return m, nil

	case candidatesMsg:
		if msg.err != nil {
			m.dropdown.pending = ""
			return m, m.pushToast(notify.Error, "Candidates unavailable: "+msg.err.Error())
		}
		names := msg.names
		if names == nil {
			names = []string{}
		}
		m.candidates[msg.tag] = names
		if m.dropdown.pending == "assign" {
			m.dropdown.pending = ""
			return m.openAssignDropdown(msg.tag)
		}
		return m, nil

	case toastTickMsg:
		m.toasts.Active(m.now())
		return m, m.toastTimerCmd()

	case tea.KeyMsg:
		if m.screen == ScreenEditor {
			return m.updateEditor(msg)
		}
		return m.updateList(msg)
	}
	return m, nil
}

func (m *Model) openDropdown(kind, title string, options []string) {
	m.dropdown = dropdownState{kind: kind, title: title, options: options}
	m.focus = FocusDropdown
}

func (m Model) openAssignDropdown(tag string) (tea.Model, tea.Cmd) {
	names := m.candidates[tag]
	if len(names) == 0 {
		return m, m.pushToast(notify.Info, "No candidates for "+tag)
	}
	m.openDropdown("assign", "Assign ("+tag+")", names)
	return m, nil
}

func (m *Model) clampListCursor() {
	p := m.currentPage()
	visible := p.End - p.Start
	if m.cursor >= visible {
		m.cursor = visible - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func (m Model) filtered() []domain.Ticket {
	return listview.Filter(m.tickets, m.query)
}

func (m Model) currentPage() listview.Page {
	return listview.Paginate(len(m.filtered()), m.page, m.pageSize)
}

// selectedTicket returns the ticket under the list cursor.
func (m Model) selectedTicket() (domain.Ticket, bool) {
	filtered := m.filtered()
	p := listview.Paginate(len(filtered), m.page, m.pageSize)
	idx := p.Start + m.cursor
	if idx < p.Start || idx >= p.End {
		return domain.Ticket{}, false
	}
	return filtered[idx], true
}

func (m Model) View() string {
	if m.screen == ScreenEditor {
		return m.viewEditor()
	}
	return m.viewList()
}
