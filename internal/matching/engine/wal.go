package engine

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const walFileName = "matching_wal.jsonl"

const maxWALLineSize = 10 * 1024 * 1024

// WALEntry is one line of the append-only, fsync'd operation log Matching
// uses for crash recovery (spec §6 "On-disk WAL format").
type WALEntry struct {
	Operation string    `json:"op"`
	Task      *Task     `json:"task,omitempty"`
	TaskID    string    `json:"task_id,omitempty"`
	Timestamp time.Time `json:"ts"`
}

// WAL is a single append-only JSON-lines file shared by every TaskQueue a
// Matching Service creates, across all of its partitions.
type WAL struct {
	dir     string
	file    *os.File
	encoder *json.Encoder
	mu      sync.Mutex
	logger  *slog.Logger
}

func NewWAL(dir string, logger *slog.Logger) (*WAL, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create WAL directory: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(dir, walFileName), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open WAL file: %w", err)
	}
	return &WAL{dir: dir, file: f, encoder: json.NewEncoder(f), logger: logger}, nil
}

func (w *WAL) append(entry WALEntry) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.encoder.Encode(entry); err != nil {
		return fmt.Errorf("write WAL %s entry: %w", entry.Operation, err)
	}
	return w.file.Sync()
}

func (w *WAL) WriteAdd(task *Task) error {
	return w.append(WALEntry{Operation: "add", Task: task, TaskID: task.ID, Timestamp: time.Now()})
}

func (w *WAL) WriteComplete(taskID string) error {
	return w.append(WALEntry{Operation: "complete", TaskID: taskID, Timestamp: time.Now()})
}

// replayPending scans one WAL file, accumulating "add" records and
// discarding ones later matched by a "complete" record, returning the
// survivors keyed by task ID (spec §8 "WAL recovery" property).
func replayPending(path string, logger *slog.Logger) (map[string]*Task, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]*Task{}, nil
		}
		return nil, fmt.Errorf("open WAL for replay: %w", err)
	}
	defer f.Close()

	pending := make(map[string]*Task)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), maxWALLineSize)
	for scanner.Scan() {
		var entry WALEntry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			if logger != nil {
				logger.Warn("skipping corrupt WAL entry", slog.String("error", err.Error()))
			}
			continue
		}
		switch entry.Operation {
		case "add":
			if entry.Task != nil {
				pending[entry.TaskID] = entry.Task
			}
		case "complete":
			delete(pending, entry.TaskID)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan WAL: %w", err)
	}
	return pending, nil
}

// Recover replays the WAL and returns every task added but never
// completed, for the caller to re-enqueue before accepting new traffic.
func (w *WAL) Recover() ([]*Task, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	pending, err := replayPending(filepath.Join(w.dir, walFileName), w.logger)
	if err != nil {
		return nil, err
	}
	tasks := make([]*Task, 0, len(pending))
	for _, task := range pending {
		tasks = append(tasks, task)
	}
	w.logger.Info("WAL recovery complete", slog.Int("recovered_tasks", len(tasks)))
	return tasks, nil
}

// Rotate compacts the WAL in place: compute survivors, write them to a tmp
// file, fsync, then rename over the original and reopen for append.
func (w *WAL) Rotate() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	path := filepath.Join(w.dir, walFileName)
	pending, err := replayPending(path, w.logger)
	if err != nil {
		return err
	}

	if err := w.file.Close(); err != nil {
		return fmt.Errorf("close WAL file before rotation: %w", err)
	}

	tmpPath := path + ".tmp"
	tmpFile, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create compacted WAL: %w", err)
	}
	encoder := json.NewEncoder(tmpFile)
	for _, task := range pending {
		entry := WALEntry{Operation: "add", Task: task, TaskID: task.ID, Timestamp: time.Now()}
		if err := encoder.Encode(entry); err != nil {
			tmpFile.Close()
			os.Remove(tmpPath)
			return fmt.Errorf("write compacted WAL entry: %w", err)
		}
	}
	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("sync compacted WAL: %w", err)
	}
	tmpFile.Close()

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename compacted WAL into place: %w", err)
	}

	w.file, err = os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("reopen WAL after rotation: %w", err)
	}
	w.encoder = json.NewEncoder(w.file)

	w.logger.Info("WAL rotated", slog.Int("remaining_tasks", len(pending)))
	return nil
}

func (w *WAL) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file != nil {
		return w.file.Close()
	}
	return nil
}
