// Package learnlog keeps a local, append-only record of plan edits and
// a reconciliation list for optimistic ticket creations. Both live in a
// SQLite database under the workspace's .planline directory so a crash
// between "create submitted" and "server acknowledged" leaves a trail.
package learnlog

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"planline/internal/domain"
)

const dbName = "planline.db"

//go:embed sql/*.sql
var migrationsFS embed.FS

// ErrNotFound is returned when a pending ticket does not exist.
var ErrNotFound = errors.New("not found")

// Store wraps the workspace database.
type Store struct {
	DB  *sql.DB
	Now func() time.Time
}

// Path returns the database path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, ".planline", dbName)
}

// Open creates the workspace directory if missing, opens the database,
// and applies pending migrations.
func Open(workspace string) (*Store, error) {
	if workspace == "" {
		workspace = "."
	}
	if err := os.MkdirAll(filepath.Join(workspace, ".planline"), 0o755); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?cache=shared&_pragma=foreign_keys(1)", Path(workspace))
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := migrate(conn); err != nil {
		conn.Close()
		return nil, err
	}
	return &Store{DB: conn, Now: time.Now}, nil
}

func (s *Store) Close() error { return s.DB.Close() }

func (s *Store) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

type migration struct {
	version int
	name    string
	upSQL   string
}

func migrate(db *sql.DB) error {
	files, err := fs.ReadDir(migrationsFS, "sql")
	if err != nil {
		return err
	}
	var migrations []migration
	for _, f := range files {
		if f.IsDir() {
			continue
		}
		data, err := migrationsFS.ReadFile("sql/" + f.Name())
		if err != nil {
			return err
		}
		var v int
		if _, err := fmt.Sscanf(f.Name(), "%d_", &v); err != nil {
			return fmt.Errorf("invalid migration filename %s: %w", f.Name(), err)
		}
		migrations = append(migrations, migration{version: v, name: f.Name(), upSQL: string(data)})
	}
	sort.Slice(migrations, func(i, j int) bool { return migrations[i].version < migrations[j].version })

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.Exec(`CREATE TABLE IF NOT EXISTS schema_version(version INTEGER NOT NULL);`); err != nil {
		return fmt.Errorf("create schema_version: %w", err)
	}
	var current int
	err = tx.QueryRow(`SELECT version FROM schema_version LIMIT 1`).Scan(&current)
	if err == sql.ErrNoRows {
		if _, err := tx.Exec(`INSERT INTO schema_version(version) VALUES (0)`); err != nil {
			return fmt.Errorf("init schema_version: %w", err)
		}
	} else if err != nil {
		return fmt.Errorf("read schema_version: %w", err)
	}
	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		if _, err := tx.Exec(m.upSQL); err != nil {
			return fmt.Errorf("migration %s: %w", m.name, err)
		}
		if _, err := tx.Exec(`UPDATE schema_version SET version=?`, m.version); err != nil {
			return fmt.Errorf("update schema_version: %w", err)
		}
		current = m.version
	}
	return tx.Commit()
}

// Event is one recorded plan mutation.
type Event struct {
	ID       string
	TS       string
	Kind     string
	TicketID string
	Payload  map[string]any
}

// Record appends a learning event. It satisfies the plan editor's
// Recorder interface.
func (s *Store) Record(ctx context.Context, kind, ticketID string, payload map[string]any) error {
	if payload == nil {
		payload = map[string]any{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}
	ts := s.now().UTC().Format(time.RFC3339)
	_, err = s.DB.ExecContext(ctx, `INSERT INTO learning_events(id,ts,kind,ticket_id,payload_json) VALUES (?,?,?,?,?)`,
		uuid.New().String(), ts, kind, nullable(ticketID), string(data))
	return err
}

// Events returns the most recent events for a ticket, oldest first. A
// limit of 0 means no limit.
func (s *Store) Events(ctx context.Context, ticketID string, limit int) ([]Event, error) {
	q := `SELECT id,ts,kind,COALESCE(ticket_id,''),payload_json FROM learning_events WHERE ticket_id=? ORDER BY ts,id`
	args := []any{ticketID}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Event
	for rows.Next() {
		var e Event
		var payload string
		if err := rows.Scan(&e.ID, &e.TS, &e.Kind, &e.TicketID, &payload); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(payload), &e.Payload); err != nil {
			return nil, fmt.Errorf("decode event %s: %w", e.ID, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Pending is an optimistic ticket creation awaiting server
// acknowledgement.
type Pending struct {
	Ticket    domain.Ticket
	CreatedAt string
	State     string // "generating" or "failed"
}

// AddPending records a ticket the moment its creation is submitted.
func (s *Store) AddPending(ctx context.Context, t domain.Ticket) error {
	data, err := json.Marshal(t)
	if err != nil {
		return err
	}
	ts := s.now().UTC().Format(time.RFC3339)
	_, err = s.DB.ExecContext(ctx,
		`INSERT INTO pending_tickets(ticket_id,created_at,state,payload_json) VALUES (?,?,'generating',?)
		 ON CONFLICT(ticket_id) DO UPDATE SET state='generating', payload_json=excluded.payload_json`,
		t.TicketID, ts, string(data))
	return err
}

// MarkFailed flips a pending creation to failed after the server
// rejected it or the request errored.
func (s *Store) MarkFailed(ctx context.Context, ticketID string) error {
	res, err := s.DB.ExecContext(ctx, `UPDATE pending_tickets SET state='failed' WHERE ticket_id=?`, ticketID)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Resolve removes a pending creation once the server lists the ticket.
func (s *Store) Resolve(ctx context.Context, ticketID string) error {
	_, err := s.DB.ExecContext(ctx, `DELETE FROM pending_tickets WHERE ticket_id=?`, ticketID)
	return err
}

// ListPending returns all unresolved creations, oldest first.
func (s *Store) ListPending(ctx context.Context) ([]Pending, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT created_at,state,payload_json FROM pending_tickets ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Pending
	for rows.Next() {
		var p Pending
		var payload string
		if err := rows.Scan(&p.CreatedAt, &p.State, &payload); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(payload), &p.Ticket); err != nil {
			return nil, fmt.Errorf("decode pending ticket: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Reconcile merges pending creations into a server ticket list. A
// pending ticket the server already knows is resolved and dropped; the
// rest are appended with the Generating or Failed status so the list
// shows them.
func (s *Store) Reconcile(ctx context.Context, tickets []domain.Ticket) ([]domain.Ticket, error) {
	pending, err := s.ListPending(ctx)
	if err != nil {
		return tickets, err
	}
	if len(pending) == 0 {
		return tickets, nil
	}
	known := make(map[string]bool, len(tickets))
	for _, t := range tickets {
		known[t.TicketID] = true
	}
	out := tickets
	for _, p := range pending {
		if known[p.Ticket.TicketID] {
			if err := s.Resolve(ctx, p.Ticket.TicketID); err != nil {
				return out, err
			}
			continue
		}
		t := p.Ticket
		if p.State == "failed" {
			t.IssueStatus = domain.StatusFailed
		} else {
			t.IssueStatus = domain.StatusGenerating
		}
		out = append(out, t)
	}
	return out, nil
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
