package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/linkflow/engine/internal/history/engine"
	"github.com/linkflow/engine/internal/history/types"
)

type executionKeyString string

func keyToString(key types.ExecutionKey) executionKeyString {
	return executionKeyString(fmt.Sprintf("%s/%s/%s", key.NamespaceID, key.WorkflowID, key.RunID))
}

// MemoryEventStore is an in-process EventStore used by tests and by single-
// host deployments that don't need durability across restarts.
type MemoryEventStore struct {
	mu     sync.RWMutex
	events map[executionKeyString][]*types.HistoryEvent
}

func NewMemoryEventStore() *MemoryEventStore {
	return &MemoryEventStore{
		events: make(map[executionKeyString][]*types.HistoryEvent),
	}
}

// AppendEvents appends events keyed by their caller-assigned event_id. The
// real compare-and-swap against concurrent writers happens on the mutable
// state row in UpdateMutableState, matching the Postgres store's division
// of responsibility.
func (s *MemoryEventStore) AppendEvents(ctx context.Context, key types.ExecutionKey, events []*types.HistoryEvent, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := keyToString(key)
	s.events[k] = append(s.events[k], events...)
	return nil
}

func (s *MemoryEventStore) GetEvents(ctx context.Context, key types.ExecutionKey, firstEventID, lastEventID int64) ([]*types.HistoryEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*types.HistoryEvent
	for _, e := range s.events[keyToString(key)] {
		if e.EventID >= firstEventID && e.EventID <= lastEventID {
			result = append(result, e)
		}
	}
	return result, nil
}

func (s *MemoryEventStore) GetEventCount(ctx context.Context, key types.ExecutionKey) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.events[keyToString(key)])), nil
}

// MemoryMutableStateStore is an in-process MutableStateStore counterpart to
// MemoryEventStore.
type MemoryMutableStateStore struct {
	mu     sync.RWMutex
	states map[executionKeyString]*engine.MutableState
}

func NewMemoryMutableStateStore() *MemoryMutableStateStore {
	return &MemoryMutableStateStore{
		states: make(map[executionKeyString]*engine.MutableState),
	}
}

func (s *MemoryMutableStateStore) GetMutableState(ctx context.Context, key types.ExecutionKey) (*engine.MutableState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.states[keyToString(key)]
	if !ok {
		return nil, types.ErrExecutionNotFound
	}
	return state.Clone(), nil
}

// UpdateMutableState enforces the same db_version compare-and-swap the
// Postgres store does at the SQL layer, so in-memory deployments see the
// same conflict behavior under concurrent writers.
func (s *MemoryMutableStateStore) UpdateMutableState(ctx context.Context, key types.ExecutionKey, state *engine.MutableState, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := keyToString(key)
	if existing, ok := s.states[k]; ok && existing.DBVersion != expectedVersion {
		return types.ErrOptimisticLock
	}

	clone := state.Clone()
	clone.DBVersion = expectedVersion + 1
	s.states[k] = clone
	return nil
}

func (s *MemoryMutableStateStore) ListRunningExecutions(ctx context.Context) ([]types.ExecutionKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var keys []types.ExecutionKey
	for _, state := range s.states {
		if state.ExecutionInfo != nil && state.ExecutionInfo.Status == types.ExecutionStatusRunning {
			keys = append(keys, types.ExecutionKey{
				NamespaceID: state.ExecutionInfo.NamespaceID,
				WorkflowID:  state.ExecutionInfo.WorkflowID,
				RunID:       state.ExecutionInfo.RunID,
			})
		}
	}
	return keys, nil
}
