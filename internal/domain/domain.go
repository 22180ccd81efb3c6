package domain

import (
	"fmt"
	"math/rand"
	"time"
)

// Ticket is the canonical ticket shape shared by the API client, the
// list view, and the plan editor. Field names follow the wire format.
type Ticket struct {
	TicketID        string          `json:"ticket_id"`
	Title           string          `json:"title,omitempty"`
	TicketType      string          `json:"ticket_type" enum:"Maintenance,Construction,EH&S,Other"`
	ClientName      string          `json:"client_name"`
	IssuePriority   string          `json:"issue_priority" enum:"Low,Medium,High"`
	IssueStatus     string          `json:"issue_status"`
	UserDescription string          `json:"user_description,omitempty"`
	UpdatedAt       int64           `json:"updated_at,omitempty"`
	ResolutionSteps ResolutionSteps `json:"resolution_steps,omitempty"`
}

// ResolutionSteps wraps the wire-format plan.
type ResolutionSteps struct {
	FlowStruct []FlowEntry `json:"flow_struct,omitempty"`
}

// FlowEntry is one plan step in the wire format used by the
// fetch-ticket-metadata, regenerate-steps, and proceed endpoints.
// due_date is epoch milliseconds (0 = unset) and blocker is a bare
// boolean; the human-readable blocker reason does not round-trip.
type FlowEntry struct {
	WorkflowName    string   `json:"workflow_name"`
	WorkflowSteps   string   `json:"workflow_steps"`
	PartiesInvolved []string `json:"parties_involved"`
	DueDate         int64    `json:"due_date"`
	Status          string   `json:"status"`
	Blocker         bool     `json:"blocker"`
}

// Blocker is a flagged impediment on a step. The reason is local UI
// state; only its presence survives a round trip through the server.
type Blocker struct {
	Reason    string    `json:"reason"`
	FlaggedAt time.Time `json:"flagged_at"`
}

// Step is one entry of the in-memory resolution plan. ID is a local
// identifier and is never sent to the server.
type Step struct {
	ID              string   `json:"id"`
	Title           string   `json:"title"`
	Description     string   `json:"description"`
	Tag             string   `json:"tag"`
	AssignedTo      string   `json:"assigned_to"`
	Due             string   `json:"due,omitempty"` // YYYY-MM-DD, empty = unset
	Status          string   `json:"status" enum:"Not Started,In Progress,Done,Skipped"`
	Blocker         *Blocker `json:"blocker,omitempty"`
	PartiesInvolved []string `json:"parties_involved"`
}

// Ticket types and priorities offered by the create form.
var (
	TicketTypes = []string{"Maintenance", "Construction", "EH&S", "Other"}
	Priorities  = []string{"Low", "Medium", "High"}
)

// Ticket statuses. Generating and Failed are client-side reconciliation
// states for optimistic creations; the rest come from the server.
const (
	StatusDraft           = "Draft"
	StatusGenerating      = "Generating"
	StatusFailed          = "Failed"
	StatusNew             = "New"
	StatusInProgress      = "In Progress"
	StatusPendingApproval = "Pending Approval"
	StatusClosed          = "Closed"
)

// StepStatuses are the allowed per-step statuses, in menu order.
var StepStatuses = []string{"Not Started", "In Progress", "Done", "Skipped"}

// ValidStepStatus reports whether s is one of the allowed step statuses.
func ValidStepStatus(s string) bool {
	for _, v := range StepStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// ValidTicketType reports whether t is one of the creatable ticket types.
func ValidTicketType(t string) bool {
	for _, v := range TicketTypes {
		if v == t {
			return true
		}
	}
	return false
}

// NewTicketID generates a provisional ticket id of the form
// REQ-YYMMDD-#### with a four-digit random suffix. The id is not
// guaranteed unique; the server is the source of truth on creation.
func NewTicketID(now time.Time, rng *rand.Rand) string {
	suffix := 1000 + rng.Intn(9000)
	return fmt.Sprintf("REQ-%s-%04d", now.Format("060102"), suffix)
}

// MillisToDate converts an epoch-millisecond due date to a YYYY-MM-DD
// string. Zero (unset) maps to the empty string.
func MillisToDate(millis int64) string {
	if millis == 0 {
		return ""
	}
	return time.UnixMilli(millis).UTC().Format("2006-01-02")
}

// DateToMillis converts a YYYY-MM-DD string to epoch milliseconds at
// UTC midnight. Empty or unparseable input maps to zero.
func DateToMillis(date string) int64 {
	if date == "" {
		return 0
	}
	t, err := time.Parse("2006-01-02", date)
	if err != nil {
		return 0
	}
	return t.UnixMilli()
}

// blockerPlaceholder stands in for a blocker reason reconstructed from
// the wire format, which carries only a boolean.
const blockerPlaceholder = "Blocker flagged in system"

// StepsFromFlow materializes in-memory steps from the wire-format plan.
// The step tag is the first involved party, or defaultTag when the
// entry names none. Blocked entries get a placeholder reason since the
// wire format does not carry one.
func StepsFromFlow(flow []FlowEntry, defaultTag string, now time.Time) []Step {
	steps := make([]Step, len(flow))
	for i, entry := range flow {
		tag := defaultTag
		if len(entry.PartiesInvolved) > 0 && entry.PartiesInvolved[0] != "" {
			tag = entry.PartiesInvolved[0]
		}
		status := entry.Status
		if status == "" {
			status = "Not Started"
		}
		var blocker *Blocker
		if entry.Blocker {
			blocker = &Blocker{Reason: blockerPlaceholder, FlaggedAt: now}
		}
		steps[i] = Step{
			ID:              fmt.Sprintf("flow-%d", i),
			Title:           entry.WorkflowName,
			Description:     entry.WorkflowSteps,
			Tag:             tag,
			Due:             MillisToDate(entry.DueDate),
			Status:          status,
			Blocker:         blocker,
			PartiesInvolved: entry.PartiesInvolved,
		}
	}
	return steps
}

// FlowFromSteps serializes the in-memory plan to the wire format for
// the proceed endpoint. The blocker reason is intentionally dropped;
// only its presence is transmitted.
func FlowFromSteps(steps []Step) []FlowEntry {
	flow := make([]FlowEntry, len(steps))
	for i, step := range steps {
		parties := step.PartiesInvolved
		if len(parties) == 0 && step.Tag != "" {
			parties = []string{step.Tag}
		}
		flow[i] = FlowEntry{
			WorkflowName:    step.Title,
			WorkflowSteps:   step.Description,
			PartiesInvolved: parties,
			DueDate:         DateToMillis(step.Due),
			Status:          step.Status,
			Blocker:         step.Blocker != nil,
		}
	}
	return flow
}

// DefaultPlan returns the canned four-step template shown when a ticket
// has no generated plan yet.
func DefaultPlan() []Step {
	return []Step{
		{
			ID:              "s1",
			Title:           "Initial Assessment",
			Description:     "Review reported issue and confirm scope.",
			Tag:             "Client Facilities Lead",
			Status:          "Not Started",
			PartiesInvolved: []string{"Client Facilities Lead"},
		},
		{
			ID:              "s2",
			Title:           "Dispatch HVAC Contractor",
			Description:     "Engage HVAC vendor to inspect equipment.",
			Tag:             "Contractor - HVAC",
			Status:          "Not Started",
			PartiesInvolved: []string{"Contractor - HVAC"},
		},
		{
			ID:              "s3",
			Title:           "Obtain Work Permit",
			Description:     "Secure necessary permits from local authorities.",
			Tag:             "Local Council - Permits",
			Status:          "Not Started",
			PartiesInvolved: []string{"Local Council - Permits"},
		},
		{
			ID:              "s4",
			Title:           "Execution and Testing",
			Description:     "Perform repairs and validate system performance.",
			Tag:             "Contractor - Mechanical",
			Status:          "Not Started",
			PartiesInvolved: []string{"Contractor - Mechanical"},
		},
	}
}
