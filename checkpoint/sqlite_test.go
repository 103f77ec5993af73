package checkpoint

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wyrdbound/grimoire/execctx"
)

func newTestSnapshot() *execctx.Snapshot {
	ec := execctx.New(map[string]any{"hero": "Mara"})
	ec.BindResult(map[string]any{"total": 14})
	return ec.Snapshot()
}

func TestSQLiteStoreSaveLoadRoundTrip(t *testing.T) {
	store, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer store.Close()

	ticket := &Ticket{
		Token:       "tok-1",
		FlowID:      "combat-round",
		FlowVersion: 1,
		StepID:      "await-attack-roll",
		Snapshot:    newTestSnapshot(),
		CreatedAt:   time.Now().Truncate(time.Second),
	}

	ctx := context.Background()
	require.NoError(t, store.Save(ctx, ticket))

	loaded, err := store.Load(ctx, "tok-1")
	require.NoError(t, err)
	assert.Equal(t, ticket.FlowID, loaded.FlowID)
	assert.Equal(t, ticket.FlowVersion, loaded.FlowVersion)
	assert.Equal(t, ticket.StepID, loaded.StepID)
	assert.Equal(t, ticket.CreatedAt.Unix(), loaded.CreatedAt.Unix())
	assert.Equal(t, "Mara", loaded.Snapshot.Inputs["hero"])
}

func TestSQLiteStoreLoadUnknownTokenErrors(t *testing.T) {
	store, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer store.Close()

	_, err = store.Load(context.Background(), "nope")
	require.Error(t, err)
}

func TestSQLiteStoreDelete(t *testing.T) {
	store, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	ticket := &Ticket{
		Token:       "tok-2",
		FlowID:      "flow",
		FlowVersion: 1,
		StepID:      "s1",
		Snapshot:    newTestSnapshot(),
		CreatedAt:   time.Now(),
	}
	require.NoError(t, store.Save(ctx, ticket))
	require.NoError(t, store.Delete(ctx, "tok-2"))

	_, err = store.Load(ctx, "tok-2")
	require.Error(t, err)
}

func TestSQLiteStoreSaveOverwritesOnConflict(t *testing.T) {
	store, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	ticket := &Ticket{
		Token: "tok-3", FlowID: "flow-a", FlowVersion: 1, StepID: "s1",
		Snapshot: newTestSnapshot(), CreatedAt: time.Now(),
	}
	require.NoError(t, store.Save(ctx, ticket))

	ticket.FlowVersion = 2
	ticket.StepID = "s2"
	require.NoError(t, store.Save(ctx, ticket))

	loaded, err := store.Load(ctx, "tok-3")
	require.NoError(t, err)
	assert.Equal(t, 2, loaded.FlowVersion)
	assert.Equal(t, "s2", loaded.StepID)
}
