package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"planline/internal/domain"
)

var (
	ErrExists   = errors.New("ticket already exists")
	ErrNotFound = errors.New("ticket not found")
)

// Store persists tickets for the development server. Tickets are kept
// as JSON payloads keyed by id; the stub has no need for per-column
// queries.
type Store struct {
	DB  *sql.DB
	Now func() time.Time
}

// NewStore prepares the ticket table on the given database.
func NewStore(db *sql.DB) (*Store, error) {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS dev_tickets (
		ticket_id TEXT PRIMARY KEY,
		payload_json TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`)
	if err != nil {
		return nil, fmt.Errorf("create dev_tickets: %w", err)
	}
	return &Store{DB: db, Now: time.Now}, nil
}

func (s *Store) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Insert adds a new ticket. A duplicate id returns ErrExists.
func (s *Store) Insert(ctx context.Context, t domain.Ticket) error {
	var exists int
	err := s.DB.QueryRowContext(ctx, `SELECT 1 FROM dev_tickets WHERE ticket_id=?`, t.TicketID).Scan(&exists)
	if err == nil {
		return ErrExists
	}
	if err != sql.ErrNoRows {
		return err
	}
	return s.write(ctx, t, `INSERT INTO dev_tickets(ticket_id,payload_json,updated_at) VALUES (?,?,?)`)
}

// Save replaces an existing ticket.
func (s *Store) Save(ctx context.Context, t domain.Ticket) error {
	res, err := s.DB.ExecContext(ctx, `UPDATE dev_tickets SET payload_json=?, updated_at=? WHERE ticket_id=?`,
		mustJSON(t), s.now().UTC().Format(time.RFC3339), t.TicketID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) write(ctx context.Context, t domain.Ticket, query string) error {
	_, err := s.DB.ExecContext(ctx, query, t.TicketID, mustJSON(t), s.now().UTC().Format(time.RFC3339))
	return err
}

// Get returns one ticket by id.
func (s *Store) Get(ctx context.Context, ticketID string) (domain.Ticket, error) {
	var payload string
	err := s.DB.QueryRowContext(ctx, `SELECT payload_json FROM dev_tickets WHERE ticket_id=?`, ticketID).Scan(&payload)
	if err == sql.ErrNoRows {
		return domain.Ticket{}, ErrNotFound
	}
	if err != nil {
		return domain.Ticket{}, err
	}
	var t domain.Ticket
	if err := json.Unmarshal([]byte(payload), &t); err != nil {
		return domain.Ticket{}, fmt.Errorf("decode ticket %s: %w", ticketID, err)
	}
	return t, nil
}

// List returns all tickets, oldest first.
func (s *Store) List(ctx context.Context) ([]domain.Ticket, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT payload_json FROM dev_tickets ORDER BY updated_at, ticket_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	tickets := []domain.Ticket{}
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var t domain.Ticket
		if err := json.Unmarshal([]byte(payload), &t); err != nil {
			return nil, fmt.Errorf("decode ticket: %w", err)
		}
		tickets = append(tickets, t)
	}
	return tickets, rows.Err()
}

func mustJSON(t domain.Ticket) string {
	b, err := json.Marshal(t)
	if err != nil {
		panic(err)
	}
	return string(b)
}
