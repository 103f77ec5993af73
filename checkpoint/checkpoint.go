// Package checkpoint implements the Resume/Checkpoint Machinery (§4.8):
// serializing a paused flow's execution state into a Ticket a caller can
// hold onto (e.g. "waiting on the player"), and a Store persisting
// tickets across process restarts — a paused_runs-style table
// (SavePausedRun/LoadPausedRuns/DeletePausedRun) generalized from a
// linear {flow, step_idx, step_ctx, outputs} persisted shape to
// {flow_id, flow_version, step_id, context snapshot, parent_tickets}.
package checkpoint

import (
	"context"
	"time"

	"github.com/wyrdbound/grimoire/execctx"
)

// Ticket is everything needed to resume a paused flow invocation at the
// exact step it paused on (§4.8).
type Ticket struct {
	Token         string            `json:"token"`
	FlowID        string            `json:"flow_id"`
	FlowVersion   int               `json:"flow_version"`
	StepID        string            `json:"step_id"`
	Snapshot      *execctx.Snapshot `json:"snapshot"`
	ParentTickets []string          `json:"parent_tickets,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
}

// Store persists and retrieves Tickets by token.
type Store interface {
	Save(ctx context.Context, t *Ticket) error
	Load(ctx context.Context, token string) (*Ticket, error)
	Delete(ctx context.Context, token string) error
}
