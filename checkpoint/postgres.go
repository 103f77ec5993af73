package checkpoint

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// PostgresStore is an alternate Store backed by PostgreSQL, for
// deployments running GRIMOIRE as a multi-instance service rather than
// a single local process.
type PostgresStore struct {
	db *sql.DB
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore opens a connection pool against dsn and ensures the
// resume_tickets table exists.
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: open postgres connection: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("checkpoint: ping postgres database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS resume_tickets (
	token TEXT PRIMARY KEY,
	flow_id TEXT NOT NULL,
	flow_version INTEGER NOT NULL,
	step_id TEXT NOT NULL,
	snapshot JSONB NOT NULL,
	parent_tickets JSONB,
	created_at TIMESTAMPTZ NOT NULL
);
`); err != nil {
		db.Close()
		return nil, fmt.Errorf("checkpoint: create resume_tickets table: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Save(ctx context.Context, t *Ticket) error {
	snapshot, err := json.Marshal(t.Snapshot)
	if err != nil {
		return err
	}
	parents, err := json.Marshal(t.ParentTickets)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO resume_tickets (token, flow_id, flow_version, step_id, snapshot, parent_tickets, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT(token) DO UPDATE SET
	flow_id = EXCLUDED.flow_id,
	flow_version = EXCLUDED.flow_version,
	step_id = EXCLUDED.step_id,
	snapshot = EXCLUDED.snapshot,
	parent_tickets = EXCLUDED.parent_tickets,
	created_at = EXCLUDED.created_at
`, t.Token, t.FlowID, t.FlowVersion, t.StepID, snapshot, parents, t.CreatedAt)
	return err
}

func (s *PostgresStore) Load(ctx context.Context, token string) (*Ticket, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT token, flow_id, flow_version, step_id, snapshot, parent_tickets, created_at
FROM resume_tickets WHERE token = $1
`, token)

	var t Ticket
	var snapshot, parents []byte
	if err := row.Scan(&t.Token, &t.FlowID, &t.FlowVersion, &t.StepID, &snapshot, &parents, &t.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("checkpoint: no resume ticket for token %q", token)
		}
		return nil, err
	}
	if err := json.Unmarshal(snapshot, &t.Snapshot); err != nil {
		return nil, fmt.Errorf("checkpoint: unmarshal snapshot: %w", err)
	}
	if len(parents) > 0 {
		if err := json.Unmarshal(parents, &t.ParentTickets); err != nil {
			return nil, fmt.Errorf("checkpoint: unmarshal parent tickets: %w", err)
		}
	}
	return &t, nil
}

func (s *PostgresStore) Delete(ctx context.Context, token string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM resume_tickets WHERE token = $1`, token)
	return err
}

// Close closes the underlying connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
