package engine

import (
	"context"
	"time"

	"github.com/linkflow/engine/internal/history/types"
)

// Snapshot is a point-in-time checkpoint of MutableState, letting replay
// resume from LastEventID instead of the start of the event log (spec §12
// "Snapshotting"). Checksum guards against loading a corrupted checkpoint.
type Snapshot struct {
	ExecutionKey types.ExecutionKey
	State        *MutableState
	LastEventID  int64
	CreatedAt    time.Time
	Checksum     []byte
}

// SnapshotStore persists and retrieves snapshots keyed by execution.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, snapshot *Snapshot) error
	GetLatestSnapshot(ctx context.Context, key types.ExecutionKey) (*Snapshot, error)
	DeleteSnapshots(ctx context.Context, key types.ExecutionKey) error
}
