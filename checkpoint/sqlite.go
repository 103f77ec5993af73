package checkpoint

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore is the default Store, backed by the pure-Go
// modernc.org/sqlite driver (no cgo), mirroring
// storage.NewSqliteStorage's paused_runs table.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (creating if necessary) a SQLite-backed ticket
// store at dsn. dsn may be ":memory:" for an ephemeral store.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	if dsn != ":memory:" && dsn != "" {
		if dir := filepath.Dir(dsn); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, err
			}
		}
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS resume_tickets (
	token TEXT PRIMARY KEY,
	flow_id TEXT NOT NULL,
	flow_version INTEGER NOT NULL,
	step_id TEXT NOT NULL,
	snapshot JSON NOT NULL,
	parent_tickets JSON,
	created_at INTEGER NOT NULL
);
`); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Save(ctx context.Context, t *Ticket) error {
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
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(token) DO UPDATE SET
	flow_id=excluded.flow_id, flow_version=excluded.flow_version, step_id=excluded.step_id,
	snapshot=excluded.snapshot, parent_tickets=excluded.parent_tickets, created_at=excluded.created_at
`, t.Token, t.FlowID, t.FlowVersion, t.StepID, snapshot, parents, t.CreatedAt.Unix())
	return err
}

func (s *SQLiteStore) Load(ctx context.Context, token string) (*Ticket, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT token, flow_id, flow_version, step_id, snapshot, parent_tickets, created_at
FROM resume_tickets WHERE token = ?
`, token)

	var t Ticket
	var snapshot, parents []byte
	var createdAt int64
	if err := row.Scan(&t.Token, &t.FlowID, &t.FlowVersion, &t.StepID, &snapshot, &parents, &createdAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("checkpoint: no resume ticket for token %q", token)
		}
		return nil, err
	}
	if err := json.Unmarshal(snapshot, &t.Snapshot); err != nil {
		return nil, err
	}
	if len(parents) > 0 {
		if err := json.Unmarshal(parents, &t.ParentTickets); err != nil {
			return nil, err
		}
	}
	t.CreatedAt = time.Unix(createdAt, 0)
	return &t, nil
}

func (s *SQLiteStore) Delete(ctx context.Context, token string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM resume_tickets WHERE token = ?`, token)
	return err
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
