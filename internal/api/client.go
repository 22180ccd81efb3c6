package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"planline/internal/domain"
)

// Client is a minimal ticket API client. All requests carry the static
// x-api-key header; there is no other authentication.
type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// New creates a client with sane defaults.
func New(baseURL, apiKey string) *Client {
	return &Client{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Timeout: 30 * time.Second,
	}
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// ErrMalformedPlan is returned when a regenerate response lacks the
// resolution_steps.flow_struct the caller needs; the caller's plan must
// be left untouched.
var ErrMalformedPlan = errors.New("regenerate response has no flow_struct")

// CreateResponse is the create-ticket success envelope. A 2xx response
// carrying only Detail is an application-level failure.
type CreateResponse struct {
	Status  string `json:"status,omitempty"`
	Message string `json:"message,omitempty"`
	Detail  any    `json:"detail,omitempty"`
}

// CreateTicket submits a new ticket. A response without a status field
// is treated as a failure and surfaced with the server's detail.
func (c *Client) CreateTicket(ctx context.Context, t domain.Ticket) (CreateResponse, error) {
	body := map[string]any{
		"ticket_id":        t.TicketID,
		"ticket_type":      t.TicketType,
		"user_description": t.UserDescription,
		"client_name":      t.ClientName,
		"issue_priority":   t.IssuePriority,
		"issue_status":     t.IssueStatus,
	}
	var resp CreateResponse
	if err := c.do(ctx, http.MethodPost, "/gcd/create-ticket", body, &resp); err != nil {
		return CreateResponse{}, err
	}
	if resp.Status == "" {
		detail, _ := json.Marshal(resp.Detail)
		return resp, fmt.Errorf("create ticket rejected: %s", detail)
	}
	return resp, nil
}

// ListTickets fetches every ticket. The endpoint has returned both a
// bare array and a {"tickets": [...]} wrapper; both are accepted.
func (c *Client) ListTickets(ctx context.Context) ([]domain.Ticket, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/gcd/fetch-all-tickets", nil, &raw); err != nil {
		return nil, err
	}
	var tickets []domain.Ticket
	if err := json.Unmarshal(raw, &tickets); err == nil {
		return tickets, nil
	}
	var wrapped struct {
		Tickets []domain.Ticket `json:"tickets"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, fmt.Errorf("decode ticket list: %w", err)
	}
	return wrapped.Tickets, nil
}

// TicketMetadata fetches one ticket with its resolution plan.
func (c *Client) TicketMetadata(ctx context.Context, ticketID string) (domain.Ticket, error) {
	var resp domain.Ticket
	endpoint := "/gcd/fetch-ticket-metadata?ticket_id=" + url.QueryEscape(ticketID)
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// RegenerateSteps asks the backend for a fresh plan. On success the
// returned flow replaces the caller's plan wholesale; ErrMalformedPlan
// means the response had no usable flow and nothing should change.
func (c *Client) RegenerateSteps(ctx context.Context, t domain.Ticket) ([]domain.FlowEntry, error) {
	body := map[string]any{
		"ticket_id":        t.TicketID,
		"ticket_type":      t.TicketType,
		"user_description": t.UserDescription,
		"client_name":      t.ClientName,
		"issue_priority":   t.IssuePriority,
		"issue_status":     t.IssueStatus,
	}
	var resp struct {
		ResolutionSteps *struct {
			FlowStruct []domain.FlowEntry `json:"flow_struct"`
		} `json:"resolution_steps"`
	}
	if err := c.do(ctx, http.MethodPost, "/gcd/regenerate-steps", body, &resp); err != nil {
		return nil, err
	}
	if resp.ResolutionSteps == nil || resp.ResolutionSteps.FlowStruct == nil {
		return nil, ErrMalformedPlan
	}
	return resp.ResolutionSteps.FlowStruct, nil
}

// Proceed commits the whole plan atomically. Anything other than
// {"status":"success"} is a failure.
func (c *Client) Proceed(ctx context.Context, t domain.Ticket, flow []domain.FlowEntry) error {
	body := map[string]any{
		"ticket_id":        t.TicketID,
		"ticket_type":      t.TicketType,
		"client_name":      t.ClientName,
		"issue_priority":   t.IssuePriority,
		"issue_status":     t.IssueStatus,
		"resolution_steps": map[string]any{"flow_struct": flow},
	}
	var resp struct {
		Status string `json:"status"`
	}
	if err := c.do(ctx, http.MethodPost, "/gcd/proceed", body, &resp); err != nil {
		return err
	}
	if resp.Status != "success" {
		return fmt.Errorf("proceed rejected: status=%q", resp.Status)
	}
	return nil
}

// SpecializationList fetches the role tag catalog.
func (c *Client) SpecializationList(ctx context.Context) ([]string, error) {
	var tags []string
	err := c.do(ctx, http.MethodGet, "/gcd/get-specialization-list", nil, &tags)
	return tags, err
}

// SpecializationClients fetches candidate assignees for a role tag.
func (c *Client) SpecializationClients(ctx context.Context, tag string) ([]string, error) {
	var names []string
	endpoint := "/gcd/get-specialization-client?specialization=" + url.QueryEscape(tag)
	err := c.do(ctx, http.MethodGet, endpoint, nil, &names)
	return names, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	reqURL := strings.TrimRight(c.BaseURL, "/") + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, reqURL, &buf)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("x-api-key", c.APIKey)
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
