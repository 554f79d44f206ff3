package engine

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// DLQEntry is a task that exceeded its retry budget, captured with enough
// context for an operator to diagnose and optionally replay it.
type DLQEntry struct {
	Task      *Task
	Reason    string
	FailedAt  time.Time
	Attempts  int32
	LastError string
}

// DeadLetterQueue is shared across every TaskQueue in a partition (spec §4.2).
// entries preserves insertion order for List/Purge; index gives Retry/Remove
// O(1) lookup instead of scanning entries.
type DeadLetterQueue struct {
	entries []*DLQEntry
	index   map[string]int
	maxSize int
	mu      sync.Mutex
	logger  *slog.Logger
}

func NewDeadLetterQueue(maxSize int, logger *slog.Logger) *DeadLetterQueue {
	if logger == nil {
		logger = slog.Default()
	}
	return &DeadLetterQueue{
		entries: make([]*DLQEntry, 0),
		index:   make(map[string]int),
		maxSize: maxSize,
		logger:  logger,
	}
}

func (dlq *DeadLetterQueue) Add(entry *DLQEntry) error {
	dlq.mu.Lock()
	defer dlq.mu.Unlock()

	if len(dlq.entries) >= dlq.maxSize {
		return fmt.Errorf("dead letter queue full at %d entries", dlq.maxSize)
	}

	dlq.index[entry.Task.ID] = len(dlq.entries)
	dlq.entries = append(dlq.entries, entry)
	dlq.logger.Warn("task moved to DLQ",
		slog.String("task_id", entry.Task.ID),
		slog.String("reason", entry.Reason),
		slog.Int("attempts", int(entry.Attempts)),
	)
	return nil
}

func (dlq *DeadLetterQueue) List() []*DLQEntry {
	dlq.mu.Lock()
	defer dlq.mu.Unlock()
	result := make([]*DLQEntry, len(dlq.entries))
	copy(result, dlq.entries)
	return result
}

// Retry pops a task out of the DLQ, resets its attempt counter, and returns
// it to the caller so it can be re-added to its originating queue.
func (dlq *DeadLetterQueue) Retry(taskID string) (*Task, error) {
	dlq.mu.Lock()
	defer dlq.mu.Unlock()

	i, ok := dlq.index[taskID]
	if !ok {
		return nil, fmt.Errorf("task %s not in DLQ", taskID)
	}
	task := dlq.entries[i].Task
	task.Attempt = 0
	dlq.removeAt(i)
	dlq.logger.Info("task retried from DLQ", slog.String("task_id", taskID))
	return task, nil
}

func (dlq *DeadLetterQueue) Remove(taskID string) bool {
	dlq.mu.Lock()
	defer dlq.mu.Unlock()
	i, ok := dlq.index[taskID]
	if !ok {
		return false
	}
	dlq.removeAt(i)
	return true
}

// removeAt deletes entries[i], shifts every later entry down one slot, and
// reindexes each of them. Caller holds mu.
func (dlq *DeadLetterQueue) removeAt(i int) {
	id := dlq.entries[i].Task.ID
	delete(dlq.index, id)
	dlq.entries = append(dlq.entries[:i], dlq.entries[i+1:]...)
	for j := i; j < len(dlq.entries); j++ {
		dlq.index[dlq.entries[j].Task.ID] = j
	}
}

func (dlq *DeadLetterQueue) Purge() int {
	dlq.mu.Lock()
	defer dlq.mu.Unlock()
	count := len(dlq.entries)
	dlq.entries = make([]*DLQEntry, 0)
	dlq.index = make(map[string]int)
	dlq.logger.Info("DLQ purged", slog.Int("count", count))
	return count
}

func (dlq *DeadLetterQueue) Len() int {
	dlq.mu.Lock()
	defer dlq.mu.Unlock()
	return len(dlq.entries)
}
