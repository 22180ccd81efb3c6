// Package listview holds the pure filtering and pagination logic behind
// the ticket list. It never touches the network or any UI state; both
// the CLI table output and the TUI render from its results.
package listview

import (
	"sort"
	"strings"

	"planline/internal/domain"
)

// DefaultPageSize matches the list screen's fixed page size.
const DefaultPageSize = 10

// All is the categorical filter value meaning "no constraint".
const All = "all"

// Query captures the search box and the four categorical filters.
// Empty categorical values are treated like All.
type Query struct {
	Search   string
	Client   string
	Status   string
	Priority string
	Type     string
}

// Filter returns the tickets matching q, preserving relative order.
// The search term matches case-insensitively against the description,
// title, client, type, status, priority, and id; any hit passes.
func Filter(tickets []domain.Ticket, q Query) []domain.Ticket {
	search := strings.ToLower(strings.TrimSpace(q.Search))
	var out []domain.Ticket
	for _, t := range tickets {
		if !matchSearch(t, search) {
			continue
		}
		if !matchExact(t.ClientName, q.Client) ||
			!matchExact(t.IssueStatus, q.Status) ||
			!matchExact(t.IssuePriority, q.Priority) ||
			!matchExact(t.TicketType, q.Type) {
			continue
		}
		out = append(out, t)
	}
	return out
}

func matchSearch(t domain.Ticket, search string) bool {
	if search == "" {
		return true
	}
	for _, field := range []string{
		t.Title,
		t.UserDescription,
		t.ClientName,
		t.TicketType,
		t.IssueStatus,
		t.IssuePriority,
		t.TicketID,
	} {
		if strings.Contains(strings.ToLower(field), search) {
			return true
		}
	}
	return false
}

func matchExact(value, filter string) bool {
	return filter == "" || filter == All || value == filter
}

// Page describes one slice of a filtered list. Pages are 1-based.
type Page struct {
	Start        int // slice start index, inclusive
	End          int // slice end index, exclusive
	ShowingStart int // 1-based display index, 0 when the list is empty
	ShowingEnd   int
	Total        int
	Current      int
	Last         int
	HasPrev      bool
	HasNext      bool
}

// Paginate computes the page slice for a list of total items. Out of
// range pages are clamped rather than rejected, so a filter change that
// shrinks the list still yields a valid page.
func Paginate(total, page, size int) Page {
	if size < 1 {
		size = DefaultPageSize
	}
	last := (total + size - 1) / size
	if last < 1 {
		last = 1
	}
	if page < 1 {
		page = 1
	}
	if page > last {
		page = last
	}
	start := (page - 1) * size
	end := start + size
	if end > total {
		end = total
	}
	showingStart := 0
	if total > 0 {
		showingStart = start + 1
	}
	return Page{
		Start:        start,
		End:          end,
		ShowingStart: showingStart,
		ShowingEnd:   end,
		Total:        total,
		Current:      page,
		Last:         last,
		HasPrev:      page > 1,
		HasNext:      page < last,
	}
}

// Clients returns the sorted distinct client names, for filter menus.
func Clients(tickets []domain.Ticket) []string {
	return distinct(tickets, func(t domain.Ticket) string { return t.ClientName })
}

// Statuses returns the sorted distinct ticket statuses.
func Statuses(tickets []domain.Ticket) []string {
	return distinct(tickets, func(t domain.Ticket) string { return t.IssueStatus })
}

func distinct(tickets []domain.Ticket, key func(domain.Ticket) string) []string {
	seen := map[string]bool{}
	var out []string
	for _, t := range tickets {
		k := key(t)
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
