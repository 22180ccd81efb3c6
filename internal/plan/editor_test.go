package plan_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"planline/internal/domain"
	"planline/internal/plan"
)

type fakeDirectory struct {
	tags      []string
	clients   map[string][]string
	tagCalls  int
	nameCalls map[string]int
}

func (f *fakeDirectory) SpecializationList(ctx context.Context) ([]string, error) {
	f.tagCalls++
	return f.tags, nil
}

func (f *fakeDirectory) SpecializationClients(ctx context.Context, tag string) ([]string, error) {
	if f.nameCalls == nil {
		f.nameCalls = map[string]int{}
	}
	f.nameCalls[tag]++
	return f.clients[tag], nil
}

type memRecorder struct {
	kinds []string
}

func (m *memRecorder) Record(ctx context.Context, kind, ticketID string, payload map[string]any) error {
	m.kinds = append(m.kinds, kind)
	return nil
}

func newEditor(t *testing.T) (*plan.Editor, *memRecorder) {
	t.Helper()
	rec := &memRecorder{}
	e := plan.NewEditor(domain.Ticket{TicketID: "REQ-250101-0001", TicketType: "Maintenance"})
	e.Recorder = rec
	e.Now = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }
	return e, rec
}

func titles(e *plan.Editor) []string {
	out := make([]string, len(e.Steps))
	for i, s := range e.Steps {
		out[i] = s.Title
	}
	return out
}

func TestNewEditorDefaultsToTemplate(t *testing.T) {
	e, _ := newEditor(t)
	if len(e.Steps) != 4 || e.Steps[0].Title != "Initial Assessment" {
		t.Fatalf("steps: %v", titles(e))
	}
	if e.Dirty() {
		t.Fatalf("fresh editor should be clean")
	}
}

func TestNewEditorLoadsExistingFlow(t *testing.T) {
	ticket := domain.Ticket{
		TicketID: "REQ-250101-0002",
		ResolutionSteps: domain.ResolutionSteps{FlowStruct: []domain.FlowEntry{
			{WorkflowName: "Inspect", WorkflowSteps: "Look.", PartiesInvolved: []string{"Contractor - HVAC"}},
		}},
	}
	e := plan.NewEditor(ticket)
	if len(e.Steps) != 1 || e.Steps[0].Title != "Inspect" || e.Steps[0].Tag != "Contractor - HVAC" {
		t.Fatalf("steps: %+v", e.Steps)
	}
}

func TestReorderInverse(t *testing.T) {
	e, _ := newEditor(t)
	before := titles(e)
	if err := e.Reorder(context.Background(), 1, 1); err != nil {
		t.Fatalf("down: %v", err)
	}
	if e.Steps[1].Title == before[1] {
		t.Fatalf("reorder did nothing")
	}
	if err := e.Reorder(context.Background(), 2, -1); err != nil {
		t.Fatalf("up: %v", err)
	}
	after := titles(e)
	for i := range before {
		if before[i] != after[i] {
			t.Fatalf("inverse failed: %v vs %v", before, after)
		}
	}
}

func TestReorderClampsAtEdges(t *testing.T) {
	e, _ := newEditor(t)
	before := titles(e)
	if err := e.Reorder(context.Background(), 0, -1); err != nil {
		t.Fatalf("top edge: %v", err)
	}
	if err := e.Reorder(context.Background(), len(e.Steps)-1, 1); err != nil {
		t.Fatalf("bottom edge: %v", err)
	}
	after := titles(e)
	for i := range before {
		if before[i] != after[i] {
			t.Fatalf("edge move changed order: %v", after)
		}
	}
}

func TestChangeTagClearsAssignee(t *testing.T) {
	e, _ := newEditor(t)
	if err := e.Assign(context.Background(), 0, "Dana Fox"); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if err := e.ChangeTag(context.Background(), 0, "Contractor - Electrical"); err != nil {
		t.Fatalf("change tag: %v", err)
	}
	if e.Steps[0].AssignedTo != "" {
		t.Fatalf("assignee not cleared: %q", e.Steps[0].AssignedTo)
	}
	if e.Steps[0].Tag != "Contractor - Electrical" {
		t.Fatalf("tag: %q", e.Steps[0].Tag)
	}
}

func TestChangeTagSurvivesSerialization(t *testing.T) {
	ticket := domain.Ticket{
		TicketID: "REQ-250101-0003",
		ResolutionSteps: domain.ResolutionSteps{FlowStruct: []domain.FlowEntry{
			{WorkflowName: "Confirm access", WorkflowSteps: "Call ahead.", PartiesInvolved: []string{"Client Facilities Lead"}},
		}},
	}
	e := plan.NewEditor(ticket)
	if err := e.ChangeTag(context.Background(), 0, "Contractor - Electrical"); err != nil {
		t.Fatalf("change tag: %v", err)
	}
	flow, err := e.Flow()
	if err != nil {
		t.Fatalf("flow: %v", err)
	}
	if len(flow[0].PartiesInvolved) == 0 || flow[0].PartiesInvolved[0] != "Contractor - Electrical" {
		t.Fatalf("serialized parties: %v", flow[0].PartiesInvolved)
	}
}

func TestBlockerReasonRequired(t *testing.T) {
	e, _ := newEditor(t)
	err := e.FlagBlocker(context.Background(), 0, "   ")
	if !errors.Is(err, plan.ErrReasonRequired) {
		t.Fatalf("expected ErrReasonRequired, got %v", err)
	}
	if e.Steps[0].Blocker != nil || e.Dirty() {
		t.Fatalf("rejected flag mutated state")
	}
	if err := e.FlagBlocker(context.Background(), 0, "awaiting permit"); err != nil {
		t.Fatalf("flag: %v", err)
	}
	if e.Steps[0].Blocker == nil || e.Steps[0].Blocker.Reason != "awaiting permit" {
		t.Fatalf("blocker: %+v", e.Steps[0].Blocker)
	}
	if err := e.RemoveBlocker(context.Background(), 0); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if e.Steps[0].Blocker != nil {
		t.Fatalf("blocker not cleared")
	}
}

func TestEditStepContextRequired(t *testing.T) {
	e, _ := newEditor(t)
	err := e.EditStep(context.Background(), 0, "")
	if !errors.Is(err, plan.ErrContextRequired) {
		t.Fatalf("expected ErrContextRequired, got %v", err)
	}
	before := e.Steps[0]
	if err := e.EditStep(context.Background(), 0, "tenant only available after 5pm"); err != nil {
		t.Fatalf("edit: %v", err)
	}
	if e.Steps[0].Title != before.Title+" (refined)" {
		t.Fatalf("title: %q", e.Steps[0].Title)
	}
	if e.Steps[0].Description != before.Description+"\nUpdate: tenant only available after 5pm" {
		t.Fatalf("description: %q", e.Steps[0].Description)
	}
}

func TestChangeStatusValidation(t *testing.T) {
	e, _ := newEditor(t)
	if err := e.ChangeStatus(context.Background(), 0, "Paused"); !errors.Is(err, plan.ErrBadStatus) {
		t.Fatalf("expected ErrBadStatus, got %v", err)
	}
	if err := e.ChangeStatus(context.Background(), 0, "Done"); err != nil {
		t.Fatalf("status: %v", err)
	}
	if e.Steps[0].Status != "Done" {
		t.Fatalf("status: %q", e.Steps[0].Status)
	}
}

func TestChangeDueRejectsGarbage(t *testing.T) {
	e, _ := newEditor(t)
	if err := e.ChangeDue(context.Background(), 0, "next tuesday"); err == nil {
		t.Fatalf("expected due date error")
	}
	if err := e.ChangeDue(context.Background(), 0, "2025-07-01"); err != nil {
		t.Fatalf("due: %v", err)
	}
	if err := e.ChangeDue(context.Background(), 0, ""); err != nil {
		t.Fatalf("clear due: %v", err)
	}
	if e.Steps[0].Due != "" {
		t.Fatalf("due not cleared")
	}
}

func TestDeleteAndAddStep(t *testing.T) {
	e, _ := newEditor(t)
	if err := e.DeleteStep(context.Background(), 0, "  "); !errors.Is(err, plan.ErrContextRequired) {
		t.Fatalf("blank delete justification accepted: %v", err)
	}
	if len(e.Steps) != 4 {
		t.Fatalf("rejected delete mutated the plan")
	}
	if err := e.DeleteStep(context.Background(), 0, "duplicate of dispatch"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(e.Steps) != 3 || e.Steps[0].Title != "Dispatch HVAC Contractor" {
		t.Fatalf("after delete: %v", titles(e))
	}
	step := domain.Step{Title: "Final Walkthrough", Description: "Confirm with the client on site.", Tag: "Client Facilities Lead"}
	if err := e.AddStep(context.Background(), step, "client asked for a closing visit"); err != nil {
		t.Fatalf("add: %v", err)
	}
	last := e.Steps[len(e.Steps)-1]
	if last.Status != "Not Started" || len(last.PartiesInvolved) != 1 {
		t.Fatalf("added step defaults: %+v", last)
	}
	if err := e.AddStep(context.Background(), domain.Step{Title: "  ", Description: "x"}, "ctx"); err == nil {
		t.Fatalf("blank title accepted")
	}
	if err := e.AddStep(context.Background(), step, ""); !errors.Is(err, plan.ErrContextRequired) {
		t.Fatalf("blank add justification accepted: %v", err)
	}
}

func TestApplyFlowStaleGuard(t *testing.T) {
	e, _ := newEditor(t)
	gen := e.Generation()
	flow := []domain.FlowEntry{{WorkflowName: "Regenerated", WorkflowSteps: "Fresh plan."}}

	// a local edit lands while the regenerate is in flight
	if err := e.ChangeStatus(context.Background(), 0, "In Progress"); err != nil {
		t.Fatalf("edit: %v", err)
	}
	applied, err := e.ApplyFlow(context.Background(), gen, flow)
	if err != nil {
		t.Fatalf("apply stale: %v", err)
	}
	if applied {
		t.Fatalf("stale result applied over local edit")
	}
	if e.Steps[0].Title == "Regenerated" {
		t.Fatalf("plan replaced by stale result")
	}

	applied, err = e.ApplyFlow(context.Background(), e.Generation(), flow)
	if err != nil || !applied {
		t.Fatalf("fresh apply: applied=%v err=%v", applied, err)
	}
	if len(e.Steps) != 1 || e.Steps[0].Title != "Regenerated" {
		t.Fatalf("steps after apply: %v", titles(e))
	}
}

func TestCandidateCacheFetchesOnce(t *testing.T) {
	e, _ := newEditor(t)
	dir := &fakeDirectory{
		tags: []string{"Contractor - HVAC", "Client Contact"},
		clients: map[string][]string{
			"Contractor - HVAC": {"Ana Diaz", "Sam Lee"},
		},
	}
	for i := 0; i < 3; i++ {
		names, err := e.Candidates(context.Background(), dir, "Contractor - HVAC")
		if err != nil || len(names) != 2 {
			t.Fatalf("candidates: %v %v", names, err)
		}
	}
	if dir.nameCalls["Contractor - HVAC"] != 1 {
		t.Fatalf("cache miss count: %d", dir.nameCalls["Contractor - HVAC"])
	}

	// empty results are cached as well
	for i := 0; i < 2; i++ {
		names, err := e.Candidates(context.Background(), dir, "Local Council - Permits")
		if err != nil || len(names) != 0 {
			t.Fatalf("empty candidates: %v %v", names, err)
		}
	}
	if dir.nameCalls["Local Council - Permits"] != 1 {
		t.Fatalf("empty result not cached: %d", dir.nameCalls["Local Council - Permits"])
	}

	for i := 0; i < 3; i++ {
		if _, err := e.Tags(context.Background(), dir); err != nil {
			t.Fatalf("tags: %v", err)
		}
	}
	if dir.tagCalls != 1 {
		t.Fatalf("tag catalog fetched %d times", dir.tagCalls)
	}
}

func TestRecorderSeesMutations(t *testing.T) {
	e, rec := newEditor(t)
	_ = e.ChangeStatus(context.Background(), 0, "Done")
	_ = e.FlagBlocker(context.Background(), 1, "no site access")
	_ = e.DeleteStep(context.Background(), 2, "out of scope for this ticket")
	want := []string{"step.status", "step.blocker.flagged", "step.deleted"}
	if len(rec.kinds) != len(want) {
		t.Fatalf("kinds: %v", rec.kinds)
	}
	for i := range want {
		if rec.kinds[i] != want[i] {
			t.Fatalf("kinds: %v", rec.kinds)
		}
	}
}

func TestDirtyAndProceedGating(t *testing.T) {
	e, _ := newEditor(t)
	if _, err := e.Flow(); err != nil {
		t.Fatalf("flow on template: %v", err)
	}
	_ = e.ChangeStatus(context.Background(), 0, "Done")
	if !e.Dirty() {
		t.Fatalf("edit did not dirty the plan")
	}
	e.MarkSaved()
	if e.Dirty() {
		t.Fatalf("MarkSaved did not clear dirty")
	}
	for len(e.Steps) > 0 {
		_ = e.DeleteStep(context.Background(), 0, "clearing the plan")
	}
	if _, err := e.Flow(); !errors.Is(err, plan.ErrNothingToProceed) {
		t.Fatalf("expected ErrNothingToProceed, got %v", err)
	}
}
