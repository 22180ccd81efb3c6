package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines all key bindings for the ticket UI.
type KeyMap struct {
	// Navigation (list cursor or step cursor depending on screen).
	Up   key.Binding
	Down key.Binding
	Home key.Binding
	End  key.Binding

	// List screen.
	NextPage       key.Binding
	PrevPage       key.Binding
	FilterActivate key.Binding // enter search mode
	FilterClear    key.Binding
	CycleStatus    key.Binding // cycle the status filter
	CycleClient    key.Binding // cycle the client filter
	NewTicket      key.Binding
	Refresh        key.Binding
	Open           key.Binding

	// Editor screen.
	MoveUp     key.Binding // move step earlier
	MoveDown   key.Binding // move step later
	Tag        key.Binding
	Assign     key.Binding
	Status     key.Binding
	Due        key.Binding
	Block      key.Binding
	Unblock    key.Binding
	EditStep   key.Binding
	AddStep    key.Binding
	DeleteStep key.Binding
	Regenerate key.Binding
	Proceed    key.Binding
	Back       key.Binding

	Quit key.Binding
}

// DefaultKeyMap is the built-in key binding set. Vim-style navigation
// alongside arrow keys.
var DefaultKeyMap = KeyMap{
	Up: key.NewBinding(
		key.WithKeys("k", "up"),
		key.WithHelp("k/↑", "up"),
	),
	Down: key.NewBinding(
		key.WithKeys("j", "down"),
		key.WithHelp("j/↓", "down"),
	),
	Home: key.NewBinding(
		key.WithKeys("g", "home"),
		key.WithHelp("g", "top"),
	),
	End: key.NewBinding(
		key.WithKeys("G", "end"),
		key.WithHelp("G", "bottom"),
	),
	NextPage: key.NewBinding(
		key.WithKeys("n", "right"),
		key.WithHelp("n/→", "next page"),
	),
	PrevPage: key.NewBinding(
		key.WithKeys("p", "left"),
		key.WithHelp("p/←", "prev page"),
	),
	FilterActivate: key.NewBinding(
		key.WithKeys("/"),
		key.WithHelp("/", "search"),
	),
	FilterClear: key.NewBinding(
		key.WithKeys("esc"),
		key.WithHelp("Esc", "clear filters"),
	),
	CycleStatus: key.NewBinding(
		key.WithKeys("s"),
		key.WithHelp("s", "status filter"),
	),
	CycleClient: key.NewBinding(
		key.WithKeys("c"),
		key.WithHelp("c", "client filter"),
	),
	NewTicket: key.NewBinding(
		key.WithKeys("N"),
		key.WithHelp("N", "new ticket"),
	),
	Refresh: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "refresh"),
	),
	Open: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("Enter", "open"),
	),
	MoveUp: key.NewBinding(
		key.WithKeys("K", "shift+up"),
		key.WithHelp("K", "move step up"),
	),
	MoveDown: key.NewBinding(
		key.WithKeys("J", "shift+down"),
		key.WithHelp("J", "move step down"),
	),
	Tag: key.NewBinding(
		key.WithKeys("t"),
		key.WithHelp("t", "tag"),
	),
	Assign: key.NewBinding(
		key.WithKeys("a"),
		key.WithHelp("a", "assign"),
	),
	Status: key.NewBinding(
		key.WithKeys("s"),
		key.WithHelp("s", "status"),
	),
	Due: key.NewBinding(
		key.WithKeys("d"),
		key.WithHelp("d", "due date"),
	),
	Block: key.NewBinding(
		key.WithKeys("b"),
		key.WithHelp("b", "flag blocker"),
	),
	Unblock: key.NewBinding(
		key.WithKeys("B"),
		key.WithHelp("B", "clear blocker"),
	),
	EditStep: key.NewBinding(
		key.WithKeys("e"),
		key.WithHelp("e", "refine step"),
	),
	AddStep: key.NewBinding(
		key.WithKeys("+"),
		key.WithHelp("+", "add step"),
	),
	DeleteStep: key.NewBinding(
		key.WithKeys("x"),
		key.WithHelp("x", "delete step"),
	),
	Regenerate: key.NewBinding(
		key.WithKeys("R"),
		key.WithHelp("R", "regenerate plan"),
	),
	Proceed: key.NewBinding(
		key.WithKeys("ctrl+p"),
		key.WithHelp("C-p", "proceed"),
	),
	Back: key.NewBinding(
		key.WithKeys("esc", "backspace"),
		key.WithHelp("Esc", "back"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}
