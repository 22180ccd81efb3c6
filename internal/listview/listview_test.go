package listview_test

import (
	"testing"

	"planline/internal/domain"
	"planline/internal/listview"
)

func fixtures() []domain.Ticket {
	return []domain.Ticket{
		{TicketID: "REQ-250101-0001", UserDescription: "HVAC unit rattling", ClientName: "Acme Corp", TicketType: "Maintenance", IssueStatus: "New", IssuePriority: "High"},
		{TicketID: "REQ-250101-0002", UserDescription: "New loading dock", ClientName: "Bolt Ltd", TicketType: "Construction", IssueStatus: "In Progress", IssuePriority: "Medium"},
		{TicketID: "REQ-250102-0003", UserDescription: "Spill in warehouse", ClientName: "Acme Corp", TicketType: "EH&S", IssueStatus: "Closed", IssuePriority: "High"},
		{TicketID: "REQ-250103-0004", UserDescription: "Badge reader dead", ClientName: "Crane Co", TicketType: "Other", IssueStatus: "New", IssuePriority: "Low"},
	}
}

func TestFilterSearchIsCaseInsensitive(t *testing.T) {
	got := listview.Filter(fixtures(), listview.Query{Search: "hvac"})
	if len(got) != 1 || got[0].TicketID != "REQ-250101-0001" {
		t.Fatalf("search hvac: got %+v", got)
	}
	got = listview.Filter(fixtures(), listview.Query{Search: "ACME"})
	if len(got) != 2 {
		t.Fatalf("search ACME: got %d results", len(got))
	}
}

func TestFilterSearchMatchesID(t *testing.T) {
	got := listview.Filter(fixtures(), listview.Query{Search: "0003"})
	if len(got) != 1 || got[0].TicketID != "REQ-250102-0003" {
		t.Fatalf("search by id: got %+v", got)
	}
}

func TestFilterCategoricalAll(t *testing.T) {
	all := listview.Filter(fixtures(), listview.Query{Client: "all", Status: "", Priority: "all", Type: ""})
	if len(all) != len(fixtures()) {
		t.Fatalf("all filter dropped rows: %d", len(all))
	}
}

func TestFilterConjunction(t *testing.T) {
	got := listview.Filter(fixtures(), listview.Query{Client: "Acme Corp", Priority: "High", Status: "New"})
	if len(got) != 1 || got[0].TicketID != "REQ-250101-0001" {
		t.Fatalf("conjunction: got %+v", got)
	}
}

func TestFilterPreservesOrder(t *testing.T) {
	got := listview.Filter(fixtures(), listview.Query{Priority: "High"})
	if len(got) != 2 || got[0].TicketID != "REQ-250101-0001" || got[1].TicketID != "REQ-250102-0003" {
		t.Fatalf("order not preserved: %+v", got)
	}
}

func TestPaginateBounds(t *testing.T) {
	p := listview.Paginate(25, 1, 10)
	if p.Start != 0 || p.End != 10 || !p.HasNext || p.HasPrev {
		t.Fatalf("page 1: %+v", p)
	}
	if p.ShowingStart != 1 || p.ShowingEnd != 10 || p.Last != 3 {
		t.Fatalf("page 1 showing: %+v", p)
	}

	p = listview.Paginate(25, 3, 10)
	if p.Start != 20 || p.End != 25 || p.HasNext || !p.HasPrev {
		t.Fatalf("last page: %+v", p)
	}
	if p.ShowingStart != 21 || p.ShowingEnd != 25 {
		t.Fatalf("last page showing: %+v", p)
	}
}

func TestPaginateClampsOutOfRange(t *testing.T) {
	p := listview.Paginate(5, 9, 10)
	if p.Current != 1 || p.Start != 0 || p.End != 5 {
		t.Fatalf("clamp high: %+v", p)
	}
	p = listview.Paginate(5, 0, 10)
	if p.Current != 1 {
		t.Fatalf("clamp low: %+v", p)
	}
}

func TestPaginateEmpty(t *testing.T) {
	p := listview.Paginate(0, 1, 10)
	if p.ShowingStart != 0 || p.ShowingEnd != 0 || p.HasPrev || p.HasNext || p.Last != 1 {
		t.Fatalf("empty: %+v", p)
	}
}

func TestDistinctMenus(t *testing.T) {
	clients := listview.Clients(fixtures())
	want := []string{"Acme Corp", "Bolt Ltd", "Crane Co"}
	if len(clients) != len(want) {
		t.Fatalf("clients: %v", clients)
	}
	for i := range want {
		if clients[i] != want[i] {
			t.Fatalf("clients sorted: %v", clients)
		}
	}
	statuses := listview.Statuses(fixtures())
	if len(statuses) != 3 {
		t.Fatalf("statuses: %v", statuses)
	}
}
