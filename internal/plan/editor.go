// Package plan implements the in-memory resolution plan editor. Every
// mutation goes through the Editor so that ordering rules, justification
// requirements, and the stale-result guard live in one place instead of
// being scattered across UI handlers.
package plan

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"planline/internal/domain"
)

var (
	ErrIndexOutOfRange  = errors.New("step index out of range")
	ErrReasonRequired   = errors.New("blocker reason is required")
	ErrContextRequired  = errors.New("edit context is required")
	ErrBadStatus        = errors.New("unknown step status")
	ErrNothingToProceed = errors.New("plan has no steps")
)

// Directory looks up role tags and candidate assignees. The API client
// satisfies it; tests use an in-memory fake.
type Directory interface {
	SpecializationList(ctx context.Context) ([]string, error)
	SpecializationClients(ctx context.Context, tag string) ([]string, error)
}

// Recorder persists learning events emitted by editor mutations. A nil
// Recorder disables recording. Errors from the recorder are returned to
// the caller but the mutation itself is never rolled back; the plan is
// the source of truth, the log is advisory.
type Recorder interface {
	Record(ctx context.Context, kind, ticketID string, payload map[string]any) error
}

// Editor owns one ticket's plan during an editing session.
type Editor struct {
	Ticket   domain.Ticket
	Steps    []domain.Step
	Recorder Recorder
	Now      func() time.Time

	dirty      bool
	generation uint64

	tags       []string
	tagsLoaded bool
	candidates map[string][]string
}

// NewEditor loads the ticket's plan. A ticket with no generated plan
// gets the canned default template.
func NewEditor(t domain.Ticket) *Editor {
	e := &Editor{
		Ticket:     t,
		Now:        time.Now,
		candidates: map[string][]string{},
	}
	if len(t.ResolutionSteps.FlowStruct) > 0 {
		e.Steps = domain.StepsFromFlow(t.ResolutionSteps.FlowStruct, "Client Contact", e.now())
	} else {
		e.Steps = domain.DefaultPlan()
	}
	return e
}

func (e *Editor) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// Dirty reports whether the plan changed since load or the last
// MarkSaved. The editor header surfaces this as "unsaved changes".
func (e *Editor) Dirty() bool { return e.dirty }

// MarkSaved clears the dirty flag after a successful commit.
func (e *Editor) MarkSaved() { e.dirty = false }

// Generation identifies the current plan revision. Callers launching an
// asynchronous regeneration stamp the value returned here and pass it
// back to ApplyFlow; any local edit in between bumps the generation and
// the late result is dropped.
func (e *Editor) Generation() uint64 { return e.generation }

func (e *Editor) touch() {
	e.dirty = true
	e.generation++
}

func (e *Editor) check(i int) error {
	if i < 0 || i >= len(e.Steps) {
		return ErrIndexOutOfRange
	}
	return nil
}

func (e *Editor) record(ctx context.Context, kind string, payload map[string]any) error {
	if e.Recorder == nil {
		return nil
	}
	return e.Recorder.Record(ctx, kind, e.Ticket.TicketID, payload)
}

// Reorder moves the step at index i by delta positions, clamping at the
// list bounds. Moving past an edge is a no-op, not an error.
func (e *Editor) Reorder(ctx context.Context, i, delta int) error {
	if err := e.check(i); err != nil {
		return err
	}
	j := i + delta
	if j < 0 {
		j = 0
	}
	if j >= len(e.Steps) {
		j = len(e.Steps) - 1
	}
	if j == i {
		return nil
	}
	step := e.Steps[i]
	rest := append(e.Steps[:i:i], e.Steps[i+1:]...)
	e.Steps = append(rest[:j:j], append([]domain.Step{step}, rest[j:]...)...)
	e.touch()
	return e.record(ctx, "step.reorder", map[string]any{"from": i, "to": j, "step": step.Title})
}

// ChangeTag reassigns the step's role tag. The current assignee is
// cleared since candidates are scoped per tag.
func (e *Editor) ChangeTag(ctx context.Context, i int, tag string) error {
	if err := e.check(i); err != nil {
		return err
	}
	prev := e.Steps[i].Tag
	e.Steps[i].Tag = tag
	e.Steps[i].AssignedTo = ""
	// The wire format carries the tag as the first involved party.
	if len(e.Steps[i].PartiesInvolved) == 0 {
		e.Steps[i].PartiesInvolved = []string{tag}
	} else {
		e.Steps[i].PartiesInvolved[0] = tag
	}
	e.touch()
	return e.record(ctx, "step.tag", map[string]any{"from": prev, "to": tag, "step": e.Steps[i].Title})
}

// Assign sets the step's assignee from the candidate list of its tag.
func (e *Editor) Assign(ctx context.Context, i int, name string) error {
	if err := e.check(i); err != nil {
		return err
	}
	e.Steps[i].AssignedTo = name
	e.touch()
	return e.record(ctx, "step.assign", map[string]any{"assignee": name, "tag": e.Steps[i].Tag, "step": e.Steps[i].Title})
}

// ChangeDue sets the step's due date (YYYY-MM-DD, empty clears it).
func (e *Editor) ChangeDue(ctx context.Context, i int, date string) error {
	if err := e.check(i); err != nil {
		return err
	}
	if date != "" && domain.DateToMillis(date) == 0 {
		return fmt.Errorf("unparseable due date %q", date)
	}
	e.Steps[i].Due = date
	e.touch()
	return e.record(ctx, "step.due", map[string]any{"due": date, "step": e.Steps[i].Title})
}

// ChangeStatus sets the step's status to one of the allowed values.
func (e *Editor) ChangeStatus(ctx context.Context, i int, status string) error {
	if err := e.check(i); err != nil {
		return err
	}
	if !domain.ValidStepStatus(status) {
		return ErrBadStatus
	}
	prev := e.Steps[i].Status
	e.Steps[i].Status = status
	e.touch()
	return e.record(ctx, "step.status", map[string]any{"from": prev, "to": status, "step": e.Steps[i].Title})
}

// FlagBlocker marks the step blocked. A blank reason is rejected and
// the step is left untouched.
func (e *Editor) FlagBlocker(ctx context.Context, i int, reason string) error {
	if err := e.check(i); err != nil {
		return err
	}
	if strings.TrimSpace(reason) == "" {
		return ErrReasonRequired
	}
	e.Steps[i].Blocker = &domain.Blocker{Reason: reason, FlaggedAt: e.now()}
	e.touch()
	return e.record(ctx, "step.blocker.flagged", map[string]any{"reason": reason, "step": e.Steps[i].Title})
}

// RemoveBlocker clears the step's blocker.
func (e *Editor) RemoveBlocker(ctx context.Context, i int) error {
	if err := e.check(i); err != nil {
		return err
	}
	e.Steps[i].Blocker = nil
	e.touch()
	return e.record(ctx, "step.blocker.removed", map[string]any{"step": e.Steps[i].Title})
}

// EditStep refines a step with additional context. A blank context is
// rejected. The title gets a refinement marker and the context is
// appended to the description.
func (e *Editor) EditStep(ctx context.Context, i int, editContext string) error {
	if err := e.check(i); err != nil {
		return err
	}
	if strings.TrimSpace(editContext) == "" {
		return ErrContextRequired
	}
	e.Steps[i].Title += " (refined)"
	e.Steps[i].Description += "\nUpdate: " + editContext
	e.touch()
	return e.record(ctx, "step.edited", map[string]any{"context": editContext, "step": e.Steps[i].Title})
}

// DeleteStep removes the step at index i. A blank justification is
// rejected and the plan is left unchanged.
func (e *Editor) DeleteStep(ctx context.Context, i int, deleteContext string) error {
	if err := e.check(i); err != nil {
		return err
	}
	if strings.TrimSpace(deleteContext) == "" {
		return ErrContextRequired
	}
	removed := e.Steps[i]
	e.Steps = append(e.Steps[:i:i], e.Steps[i+1:]...)
	e.touch()
	return e.record(ctx, "step.deleted", map[string]any{"step": removed.Title, "context": deleteContext})
}

// AddStep appends a new step to the plan. Title, description, and
// justification are all required; status defaults to "Not Started" and
// the parties fall back to the tag.
func (e *Editor) AddStep(ctx context.Context, step domain.Step, addContext string) error {
	if strings.TrimSpace(step.Title) == "" {
		return errors.New("step title is required")
	}
	if strings.TrimSpace(step.Description) == "" {
		return errors.New("step description is required")
	}
	if strings.TrimSpace(addContext) == "" {
		return ErrContextRequired
	}
	if step.Status == "" {
		step.Status = "Not Started"
	} else if !domain.ValidStepStatus(step.Status) {
		return ErrBadStatus
	}
	if step.ID == "" {
		step.ID = fmt.Sprintf("local-%d", e.now().UnixNano())
	}
	if len(step.PartiesInvolved) == 0 && step.Tag != "" {
		step.PartiesInvolved = []string{step.Tag}
	}
	e.Steps = append(e.Steps, step)
	e.touch()
	return e.record(ctx, "step.added", map[string]any{"step": step.Title, "context": addContext})
}

// ApplyFlow replaces the plan wholesale with a regenerated flow, but
// only when gen still matches the editor's generation. A stale result
// returns false and changes nothing.
func (e *Editor) ApplyFlow(ctx context.Context, gen uint64, flow []domain.FlowEntry) (bool, error) {
	if gen != e.generation {
		return false, e.record(ctx, "plan.regenerate.stale", map[string]any{"stamped": gen, "current": e.generation})
	}
	e.Steps = domain.StepsFromFlow(flow, "Client Contact", e.now())
	e.touch()
	return true, e.record(ctx, "plan.regenerated", map[string]any{"steps": len(flow)})
}

// Flow serializes the current plan to the wire format.
func (e *Editor) Flow() ([]domain.FlowEntry, error) {
	if len(e.Steps) == 0 {
		return nil, ErrNothingToProceed
	}
	return domain.FlowFromSteps(e.Steps), nil
}

// Tags returns the role tag catalog, fetching it at most once per
// session.
func (e *Editor) Tags(ctx context.Context, dir Directory) ([]string, error) {
	if e.tagsLoaded {
		return e.tags, nil
	}
	tags, err := dir.SpecializationList(ctx)
	if err != nil {
		return nil, err
	}
	e.tags = tags
	e.tagsLoaded = true
	return tags, nil
}

// Candidates returns the assignee candidates for a tag, fetching each
// tag at most once per session. An empty result is cached too, so a tag
// with no candidates does not hammer the directory.
func (e *Editor) Candidates(ctx context.Context, dir Directory, tag string) ([]string, error) {
	if names, ok := e.candidates[tag]; ok {
		return names, nil
	}
	names, err := dir.SpecializationClients(ctx, tag)
	if err != nil {
		return nil, err
	}
	if names == nil {
		names = []string{}
	}
	e.candidates[tag] = names
	return names, nil
}

