package matching

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/linkflow/engine/internal/matching/engine"
	"github.com/linkflow/engine/internal/matching/partition"
	"github.com/redis/go-redis/v9"
)

const (
	defaultRateLimit     = 1000.0
	defaultBurst         = 100
	leaseReaperInterval  = 10 * time.Second
	defaultDLQCapacity   = 10000
	defaultQueueFallback = "default"
)

// Service is the process-wide Matching host: it owns the partition manager,
// the lazily-created set of TaskQueues, and the shared DLQ/WAL (spec §4).
type Service struct {
	partitionMgr *partition.Manager
	taskQueues   map[string]*engine.TaskQueue
	logger       *slog.Logger
	mu           sync.RWMutex

	stopCh  chan struct{}
	wg      sync.WaitGroup
	running bool

	dlq *engine.DeadLetterQueue

	wal    *engine.WAL
	walDir string
}

type Config struct {
	NumPartitions int32
	Replicas      int
	Logger        *slog.Logger
	RedisClient   *redis.Client
	WALDir        string
}

func NewService(cfg Config) *Service {
	if cfg.NumPartitions <= 0 {
		cfg.NumPartitions = 4
	}
	if cfg.Replicas <= 0 {
		cfg.Replicas = 100
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Service{
		partitionMgr: partition.NewManager(cfg.NumPartitions, cfg.Replicas, cfg.RedisClient),
		taskQueues:   make(map[string]*engine.TaskQueue),
		logger:       cfg.Logger,
		dlq:          engine.NewDeadLetterQueue(defaultDLQCapacity, cfg.Logger),
		walDir:       cfg.WALDir,
	}
}

// queueNameForTask resolves which queue a recovered/retried task belongs to:
// the queue named in its task token, else its namespace, else the default
// queue.
func queueNameForTask(task *engine.Task) string {
	if tok, err := decodeTaskToken(task.Token); err == nil && tok.queue != "" {
		return tok.queue
	}
	if task.Namespace != "" {
		return task.Namespace
	}
	return defaultQueueFallback
}

func (s *Service) AddTask(ctx context.Context, taskQueueName string, task *engine.Task) error {
	tq := s.GetOrCreateTaskQueue(taskQueueName, engine.TaskQueueKindNormal)
	err := tq.AddTask(task)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, engine.ErrTaskExists):
		s.logger.Warn("task already exists",
			slog.String("task_id", task.ID),
			slog.String("task_queue", taskQueueName),
		)
		return nil
	case errors.Is(err, engine.ErrBackpressure):
		s.logger.Warn("task rejected by backpressure",
			slog.String("task_id", task.ID),
			slog.String("task_queue", taskQueueName),
		)
		return err
	default:
		s.logger.Error("failed to add task",
			slog.String("task_id", task.ID),
			slog.String("task_queue", taskQueueName),
			slog.String("error", err.Error()),
		)
		return err
	}
}

// CompleteTaskByID scans every active queue for taskID. Prefer CompleteTask
// when the queue name is known; this exists for callers that only kept the
// task ID (e.g. DLQ/administrative tooling).
func (s *Service) CompleteTaskByID(ctx context.Context, taskID string) error {
	for _, tq := range s.snapshotQueues() {
		if tq.CompleteTask(taskID) {
			return nil
		}
	}
	return ErrTaskNotFound
}

func (s *Service) CompleteTask(ctx context.Context, taskQueueName string, taskID string) error {
	s.mu.RLock()
	tq, exists := s.taskQueues[taskQueueName]
	s.mu.RUnlock()

	if !exists {
		return ErrTaskQueueNotFound
	}
	if !tq.CompleteTask(taskID) {
		return ErrTaskNotFound
	}
	return nil
}

func (s *Service) PollTask(ctx context.Context, taskQueueName string, identity string) (*engine.Task, error) {
	s.mu.RLock()
	tq, exists := s.taskQueues[taskQueueName]
	s.mu.RUnlock()

	if !exists {
		tq = s.GetOrCreateTaskQueue(taskQueueName, engine.TaskQueueKindNormal)
	}

	return tq.Poll(ctx, identity)
}

func (s *Service) GetOrCreateTaskQueue(name string, kind engine.TaskQueueKind) *engine.TaskQueue {
	s.mu.RLock()
	tq, exists := s.taskQueues[name]
	s.mu.RUnlock()
	if exists {
		return tq
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if tq, exists = s.taskQueues[name]; exists {
		return tq
	}

	part := s.partitionMgr.GetPartitionForTaskQueue(name)
	tq = part.GetOrCreateTaskQueueWithConfig(name, kind, defaultRateLimit, defaultBurst, engine.TaskQueueConfig{
		DLQ:    s.dlq,
		WAL:    s.wal,
		Logger: s.logger,
	})
	s.taskQueues[name] = tq

	s.logger.Info("created task queue",
		slog.String("name", name),
		slog.Int("kind", int(kind)),
		slog.Int("partition", int(part.ID)),
	)
	return tq
}

// GetOrCreateStickyQueue creates or retrieves a sticky task queue pinned to
// a specific worker identity (spec §4.4 "Sticky affinity").
func (s *Service) GetOrCreateStickyQueue(workerIdentity string) *engine.TaskQueue {
	return s.GetOrCreateTaskQueue("sticky:"+workerIdentity, engine.TaskQueueKindSticky)
}

func (s *Service) GetTaskQueue(name string) (*engine.TaskQueue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tq, exists := s.taskQueues[name]
	if !exists {
		return nil, ErrTaskQueueNotFound
	}
	return tq, nil
}

func (s *Service) PartitionManager() *partition.Manager {
	return s.partitionMgr
}

// GetDLQEntries returns all entries in the dead letter queue.
func (s *Service) GetDLQEntries() []*engine.DLQEntry {
	return s.dlq.List()
}

// RetryDLQTask removes a task from the DLQ and re-adds it to its original queue.
func (s *Service) RetryDLQTask(ctx context.Context, taskID string) error {
	task, err := s.dlq.Retry(taskID)
	if err != nil {
		return err
	}

	tq := s.GetOrCreateTaskQueue(queueNameForTask(task), engine.TaskQueueKindNormal)
	return tq.AddTask(task)
}

// PurgeDLQ removes all entries from the dead letter queue and returns the count removed.
func (s *Service) PurgeDLQ() int {
	return s.dlq.Purge()
}

// GetAllMetrics returns a snapshot of metrics for every active task queue.
func (s *Service) GetAllMetrics() map[string]*engine.MetricsSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string]*engine.MetricsSnapshot, len(s.taskQueues))
	for name, tq := range s.taskQueues {
		snap := tq.Metrics().Snapshot()
		result[name] = &snap
	}
	return result
}

// GetQueueStats returns a metrics snapshot for a specific queue.
func (s *Service) GetQueueStats(queueName string) (*engine.MetricsSnapshot, error) {
	s.mu.RLock()
	tq, exists := s.taskQueues[queueName]
	s.mu.RUnlock()

	if !exists {
		return nil, ErrTaskQueueNotFound
	}
	snap := tq.Metrics().Snapshot()
	return &snap, nil
}

func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	s.stopCh = make(chan struct{})

	if s.walDir != "" {
		if err := s.recoverFromWAL(); err != nil {
			s.running = false
			s.mu.Unlock()
			return err
		}
	}
	s.mu.Unlock()

	s.wg.Add(1)
	go s.runLeaseReaper(ctx)

	s.logger.Info("matching service started")
	return nil
}

// recoverFromWAL opens the WAL, replays any tasks still pending completion,
// and only then swaps s.wal in so future writes aren't double-logged. Caller
// holds s.mu on entry; it is released while tasks are re-added and
// reacquired before returning.
func (s *Service) recoverFromWAL() error {
	wal, err := engine.NewWAL(s.walDir, s.logger)
	if err != nil {
		return err
	}

	tasks, err := wal.Recover()
	if err != nil {
		s.logger.Error("WAL recovery failed", slog.String("error", err.Error()))
	} else if len(tasks) > 0 {
		s.mu.Unlock()
		for _, task := range tasks {
			tq := s.GetOrCreateTaskQueue(queueNameForTask(task), engine.TaskQueueKindNormal)
			if err := tq.AddTask(task); err != nil && !errors.Is(err, engine.ErrTaskExists) {
				s.logger.Error("failed to recover task",
					slog.String("task_id", task.ID),
					slog.String("error", err.Error()),
				)
			}
		}
		s.logger.Info("recovered tasks from WAL", slog.Int("count", len(tasks)))
		s.mu.Lock()
		if !s.running {
			s.mu.Unlock()
			return errors.New("service stopped during WAL recovery")
		}
	}

	s.wal = wal
	return nil
}

func (s *Service) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()

	s.wg.Wait()

	if s.wal != nil {
		if err := s.wal.Close(); err != nil {
			s.logger.Error("failed to close WAL", slog.String("error", err.Error()))
		}
	}

	s.logger.Info("matching service stopped")
	return nil
}

func (s *Service) snapshotQueues() []*engine.TaskQueue {
	s.mu.RLock()
	defer s.mu.RUnlock()
	queues := make([]*engine.TaskQueue, 0, len(s.taskQueues))
	for _, tq := range s.taskQueues {
		queues = append(queues, tq)
	}
	return queues
}

func (s *Service) runLeaseReaper(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(leaseReaperInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.requeueExpiredTasks()
		}
	}
}

func (s *Service) requeueExpiredTasks() {
	totalRequeued := 0
	for _, tq := range s.snapshotQueues() {
		totalRequeued += tq.RequeueExpiredTasks()
	}
	if totalRequeued > 0 {
		s.logger.Info("requeued expired tasks", slog.Int("count", totalRequeued))
	}
}
