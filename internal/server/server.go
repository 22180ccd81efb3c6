// Package server implements a development stand-in for the ticket
// backend. It serves the same /gcd endpoints and wire shapes the real
// backend does, backed by a local SQLite table, so the CLI and the
// terminal UI can be exercised without network access.
package server

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	"planline/internal/domain"
)

// Config for the HTTP handler.
type Config struct {
	Store    *Store
	APIKey   string
	BasePath string
	Now      func() time.Time
}

// apiError mirrors the backend's failure envelope: a bare detail field.
type apiError struct {
	status int
	Detail string `json:"detail"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Detail }

func newAPIError(status int, detail string) huma.StatusError {
	return &apiError{status: status, Detail: detail}
}

// New returns the /gcd HTTP handler.
func New(cfg Config) (http.Handler, error) {
	if cfg.Store == nil {
		return nil, errors.New("server: store is required")
	}
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/gcd"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, msg)
	}

	router := chi.NewRouter()
	router.Use(apiKeyMiddleware(cfg.APIKey))
	hcfg := huma.DefaultConfig("Planline Dev API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerCreateTicket(group, cfg.Store, now)
	registerFetchTickets(group, cfg.Store)
	registerRegenerate(group, cfg.Store, now)
	registerProceed(group, cfg.Store, now)
	registerSpecializations(group)

	return router, nil
}

func apiKeyMiddleware(key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if key != "" && r.Header.Get("x-api-key") != key {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"detail":"invalid api key"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type ticketFields struct {
	TicketID        string `json:"ticket_id"`
	TicketType      string `json:"ticket_type"`
	ClientName      string `json:"client_name"`
	IssuePriority   string `json:"issue_priority"`
	IssueStatus     string `json:"issue_status"`
	UserDescription string `json:"user_description,omitempty"`
}

func (f ticketFields) ticket() domain.Ticket {
	return domain.Ticket{
		TicketID:        f.TicketID,
		TicketType:      f.TicketType,
		ClientName:      f.ClientName,
		IssuePriority:   f.IssuePriority,
		IssueStatus:     f.IssueStatus,
		UserDescription: f.UserDescription,
	}
}

func registerCreateTicket(api huma.API, store *Store, now func() time.Time) {
	type createResponse struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	}
	huma.Register(api, huma.Operation{
		OperationID: "create-ticket",
		Method:      http.MethodPost,
		Path:        "/create-ticket",
		Summary:     "Create ticket",
	}, func(ctx context.Context, input *struct {
		Body ticketFields `json:"body"`
	}) (*struct {
		Body createResponse `json:"body"`
	}, error) {
		if input.Body.TicketID == "" {
			return nil, newAPIError(http.StatusBadRequest, "ticket_id is required")
		}
		if !domain.ValidTicketType(input.Body.TicketType) {
			return nil, newAPIError(http.StatusBadRequest, "unknown ticket_type "+input.Body.TicketType)
		}
		t := input.Body.ticket()
		if t.IssueStatus == "" || t.IssueStatus == domain.StatusDraft {
			t.IssueStatus = domain.StatusNew
		}
		t.UpdatedAt = now().UnixMilli()
		t.ResolutionSteps = domain.ResolutionSteps{FlowStruct: domain.FlowFromSteps(domain.DefaultPlan())}
		if err := store.Insert(ctx, t); err != nil {
			if errors.Is(err, ErrExists) {
				return nil, newAPIError(http.StatusConflict, "ticket "+t.TicketID+" already exists")
			}
			return nil, newAPIError(http.StatusInternalServerError, err.Error())
		}
		return &struct {
			Body createResponse `json:"body"`
		}{Body: createResponse{Status: "ok", Message: "Ticket " + t.TicketID + " created"}}, nil
	})
}

func registerFetchTickets(api huma.API, store *Store) {
	huma.Register(api, huma.Operation{
		OperationID: "fetch-all-tickets",
		Method:      http.MethodGet,
		Path:        "/fetch-all-tickets",
		Summary:     "List all tickets",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.Ticket `json:"body"`
	}, error) {
		tickets, err := store.List(ctx)
		if err != nil {
			return nil, newAPIError(http.StatusInternalServerError, err.Error())
		}
		// the list omits plans; clients fetch metadata per ticket
		for i := range tickets {
			tickets[i].ResolutionSteps = domain.ResolutionSteps{}
		}
		return &struct {
			Body []domain.Ticket `json:"body"`
		}{Body: tickets}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "fetch-ticket-metadata",
		Method:      http.MethodGet,
		Path:        "/fetch-ticket-metadata",
		Summary:     "Fetch one ticket with its plan",
	}, func(ctx context.Context, input *struct {
		TicketID string `query:"ticket_id" required:"true"`
	}) (*struct {
		Body domain.Ticket `json:"body"`
	}, error) {
		t, err := store.Get(ctx, input.TicketID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return nil, newAPIError(http.StatusNotFound, "ticket "+input.TicketID+" not found")
			}
			return nil, newAPIError(http.StatusInternalServerError, err.Error())
		}
		return &struct {
			Body domain.Ticket `json:"body"`
		}{Body: t}, nil
	})
}

func registerRegenerate(api huma.API, store *Store, now func() time.Time) {
	type regenerateResponse struct {
		ResolutionSteps domain.ResolutionSteps `json:"resolution_steps"`
	}
	huma.Register(api, huma.Operation{
		OperationID: "regenerate-steps",
		Method:      http.MethodPost,
		Path:        "/regenerate-steps",
		Summary:     "Generate a fresh resolution plan",
	}, func(ctx context.Context, input *struct {
		Body ticketFields `json:"body"`
	}) (*struct {
		Body regenerateResponse `json:"body"`
	}, error) {
		if input.Body.TicketID == "" {
			return nil, newAPIError(http.StatusBadRequest, "ticket_id is required")
		}
		flow := generateFlow(input.Body, now())
		if t, err := store.Get(ctx, input.Body.TicketID); err == nil {
			t.ResolutionSteps = domain.ResolutionSteps{FlowStruct: flow}
			t.UpdatedAt = now().UnixMilli()
			if err := store.Save(ctx, t); err != nil {
				return nil, newAPIError(http.StatusInternalServerError, err.Error())
			}
		}
		return &struct {
			Body regenerateResponse `json:"body"`
		}{Body: regenerateResponse{ResolutionSteps: domain.ResolutionSteps{FlowStruct: flow}}}, nil
	})
}

func registerProceed(api huma.API, store *Store, now func() time.Time) {
	type proceedRequest struct {
		TicketID        string                 `json:"ticket_id"`
		TicketType      string                 `json:"ticket_type"`
		ClientName      string                 `json:"client_name"`
		IssuePriority   string                 `json:"issue_priority"`
		IssueStatus     string                 `json:"issue_status"`
		UserDescription string                 `json:"user_description,omitempty"`
		ResolutionSteps domain.ResolutionSteps `json:"resolution_steps"`
	}
	type proceedResponse struct {
		Status string `json:"status"`
	}
	huma.Register(api, huma.Operation{
		OperationID: "proceed",
		Method:      http.MethodPost,
		Path:        "/proceed",
		Summary:     "Commit a full plan",
	}, func(ctx context.Context, input *struct {
		Body proceedRequest `json:"body"`
	}) (*struct {
		Body proceedResponse `json:"body"`
	}, error) {
		if input.Body.TicketID == "" {
			return nil, newAPIError(http.StatusBadRequest, "ticket_id is required")
		}
		if len(input.Body.ResolutionSteps.FlowStruct) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "resolution_steps.flow_struct must not be empty")
		}
		for _, entry := range input.Body.ResolutionSteps.FlowStruct {
			if entry.WorkflowName == "" {
				return nil, newAPIError(http.StatusBadRequest, "workflow_name must not be empty")
			}
			if entry.Status != "" && !domain.ValidStepStatus(entry.Status) {
				return nil, newAPIError(http.StatusBadRequest, "unknown step status "+entry.Status)
			}
		}
		t, err := store.Get(ctx, input.Body.TicketID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return nil, newAPIError(http.StatusNotFound, "ticket "+input.Body.TicketID+" not found")
			}
			return nil, newAPIError(http.StatusInternalServerError, err.Error())
		}
		t.ResolutionSteps = input.Body.ResolutionSteps
		if input.Body.IssueStatus != "" {
			t.IssueStatus = input.Body.IssueStatus
		}
		t.UpdatedAt = now().UnixMilli()
		if err := store.Save(ctx, t); err != nil {
			return nil, newAPIError(http.StatusInternalServerError, err.Error())
		}
		return &struct {
			Body proceedResponse `json:"body"`
		}{Body: proceedResponse{Status: "success"}}, nil
	})
}

// specializations is the canned role directory served to clients.
var specializations = map[string][]string{
	"Client Facilities Lead":  {"Priya Natarajan", "Marcus Webb"},
	"Client Contact":          {"Dana Fox"},
	"Contractor - HVAC":       {"Ana Diaz", "Sam Lee", "Ortiz Mechanical Inc."},
	"Contractor - Mechanical": {"Ortiz Mechanical Inc.", "R. Campbell"},
	"Contractor - Electrical": {"Volt & Main LLC"},
	"Local Council - Permits": {},
}

func registerSpecializations(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "get-specialization-list",
		Method:      http.MethodGet,
		Path:        "/get-specialization-list",
		Summary:     "List role tags",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []string `json:"body"`
	}, error) {
		tags := make([]string, 0, len(specializations))
		for tag := range specializations {
			tags = append(tags, tag)
		}
		sort.Strings(tags)
		return &struct {
			Body []string `json:"body"`
		}{Body: tags}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-specialization-client",
		Method:      http.MethodGet,
		Path:        "/get-specialization-client",
		Summary:     "List candidates for a role tag",
	}, func(ctx context.Context, input *struct {
		Specialization string `query:"specialization" required:"true"`
	}) (*struct {
		Body []string `json:"body"`
	}, error) {
		names, ok := specializations[input.Specialization]
		if !ok {
			return &struct {
				Body []string `json:"body"`
			}{Body: []string{}}, nil
		}
		if names == nil {
			names = []string{}
		}
		return &struct {
			Body []string `json:"body"`
		}{Body: names}, nil
	})
}

// generateFlow produces the canned plan for a ticket. The template is
// fixed; only due dates move relative to the request time.
func generateFlow(f ticketFields, now time.Time) []domain.FlowEntry {
	steps := domain.DefaultPlan()
	flow := domain.FlowFromSteps(steps)
	for i := range flow {
		due := now.AddDate(0, 0, 7*(i+1))
		flow[i].DueDate = due.UTC().Truncate(24 * time.Hour).UnixMilli()
	}
	return flow
}

// Seed inserts a handful of demo tickets if the store is empty.
func Seed(ctx context.Context, store *Store, now func() time.Time) error {
	existing, err := store.List(ctx)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}
	demos := []domain.Ticket{
		{
			TicketID:        "REQ-250810-1042",
			TicketType:      "Maintenance",
			ClientName:      "Harbor Point Offices",
			IssuePriority:   "High",
			IssueStatus:     domain.StatusInProgress,
			UserDescription: "Rooftop HVAC unit short-cycling, tenants on floor 4 report no cooling",
		},
		{
			TicketID:        "REQ-250812-2277",
			TicketType:      "Construction",
			ClientName:      "Westgate Retail",
			IssuePriority:   "Medium",
			IssueStatus:     domain.StatusNew,
			UserDescription: "Partition wall for new fitting rooms, drawings attached in portal",
		},
		{
			TicketID:        "REQ-250815-3310",
			TicketType:      "EH&S",
			ClientName:      "Harbor Point Offices",
			IssuePriority:   "Low",
			IssueStatus:     domain.StatusPendingApproval,
			UserDescription: "Quarterly fire extinguisher inspection overdue in annex building",
		},
	}
	for _, t := range demos {
		t.UpdatedAt = now().UnixMilli()
		t.ResolutionSteps = domain.ResolutionSteps{FlowStruct: generateFlow(ticketFields{TicketID: t.TicketID, TicketType: t.TicketType}, now())}
		if err := store.Insert(ctx, t); err != nil {
			return err
		}
	}
	return nil
}
