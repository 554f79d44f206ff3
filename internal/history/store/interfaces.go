// Package store defines the persistence boundary for execution history: an
// append-only event log plus the derived MutableState projection, both
// guarded by optimistic concurrency on a per-execution version (spec §3.3).
package store

import (
	"context"

	"github.com/linkflow/engine/internal/history/engine"
	"github.com/linkflow/engine/internal/history/types"
)

// EventStore is the append-only log backing an execution's HistoryEvent
// stream. AppendEvents must reject a call whose expectedVersion has drifted
// from the stored version rather than silently reordering events.
type EventStore interface {
	AppendEvents(ctx context.Context, key types.ExecutionKey, events []*types.HistoryEvent, expectedVersion int64) error
	GetEvents(ctx context.Context, key types.ExecutionKey, firstEventID, lastEventID int64) ([]*types.HistoryEvent, error)
	GetEventCount(ctx context.Context, key types.ExecutionKey) (int64, error)
}

// MutableStateStore persists the latest MutableState projection alongside
// the event log so reads don't require a full replay on every access.
type MutableStateStore interface {
	GetMutableState(ctx context.Context, key types.ExecutionKey) (*engine.MutableState, error)
	UpdateMutableState(ctx context.Context, key types.ExecutionKey, state *engine.MutableState, expectedVersion int64) error
	ListRunningExecutions(ctx context.Context) ([]types.ExecutionKey, error)
}
