package engine

import (
	"container/list"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

const (
	DefaultLeaseTimeout = 60 * time.Second
	DefaultMaxRetries   = 3
)

var ErrTaskExists = errors.New("task already exists")

// TaskStore is the persistence contract behind one TaskQueue (spec §6).
// Three implementations satisfy it: PriorityTaskStore, which
// NewTaskQueueWithConfig uses when no Redis client is given; MemoryTaskStore,
// a plain FIFO; and RedisTaskStore for a durable multi-host deployment.
type TaskStore interface {
	AddTask(ctx context.Context, task *Task) error
	PollTask(ctx context.Context, timeout time.Duration) (*Task, error)
	AckTask(ctx context.Context, taskID string) (bool, error)
	Len(ctx context.Context) (int64, error)
}

// MemoryTaskStore keeps tasks in a doubly-linked FIFO plus an ID index for
// O(1) dedupe and targeted ack.
type MemoryTaskStore struct {
	tasks    *list.List
	tasksMap map[string]*list.Element
	mu       sync.Mutex
}

func NewMemoryTaskStore() *MemoryTaskStore {
	return &MemoryTaskStore{
		tasks:    list.New(),
		tasksMap: make(map[string]*list.Element),
	}
}

func (s *MemoryTaskStore) AddTask(_ context.Context, task *Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.tasksMap[task.ID]; exists {
		return ErrTaskExists
	}
	s.tasksMap[task.ID] = s.tasks.PushBack(task)
	return nil
}

func (s *MemoryTaskStore) PollTask(ctx context.Context, _ time.Duration) (*Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	elem := s.tasks.Front()
	if elem == nil {
		return nil, nil
	}
	task := elem.Value.(*Task)
	s.tasks.Remove(elem)
	delete(s.tasksMap, task.ID)
	return task, nil
}

// AckTask also accepts a still-pending task ID so idempotent completion
// paths that race a requeue still succeed.
func (s *MemoryTaskStore) AckTask(ctx context.Context, taskID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	elem, exists := s.tasksMap[taskID]
	if !exists {
		return false, nil
	}
	s.tasks.Remove(elem)
	delete(s.tasksMap, taskID)
	return true, nil
}

func (s *MemoryTaskStore) Len(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(s.tasks.Len()), nil
}

// RedisTaskStore backs a queue with a Redis list for pending tasks plus a
// processing list for at-least-once delivery, and a hash index keyed by
// task ID so acking the processing list does not require a linear scan
// (spec §9's explicit call-out on the source's O(n) AckTask).
type RedisTaskStore struct {
	client         *redis.Client
	queueKey       string
	processingKey  string
	processingHash string
}

func NewRedisTaskStore(client *redis.Client, queueName string) *RedisTaskStore {
	return &RedisTaskStore{
		client:         client,
		queueKey:       fmt.Sprintf("taskqueue:%s", queueName),
		processingKey:  fmt.Sprintf("taskqueue:%s:processing", queueName),
		processingHash: fmt.Sprintf("taskqueue:%s:processing-index", queueName),
	}
}

func (s *RedisTaskStore) AddTask(ctx context.Context, task *Task) error {
	data, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return s.client.RPush(ctx, s.queueKey, data).Err()
}

func (s *RedisTaskStore) PollTask(ctx context.Context, timeout time.Duration) (*Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// LMOVE atomically relocates a task from the pending list to the
	// processing list; a worker crash before AckTask leaves it there for
	// the lease reaper to requeue.
	result, err := s.client.LMove(ctx, s.queueKey, s.processingKey, "LEFT", "RIGHT").Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			select {
			case <-time.After(timeout):
				return nil, nil
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		return nil, err
	}

	var task Task
	if err := json.Unmarshal([]byte(result), &task); err != nil {
		return nil, err
	}
	if err := s.client.HSet(ctx, s.processingHash, task.ID, result).Err(); err != nil {
		return nil, err
	}
	return &task, nil
}

// AckTask looks the serialized task up by ID in the hash index, then
// removes that exact value from the processing list and the index
// together — no LRange scan over the processing list.
func (s *RedisTaskStore) AckTask(ctx context.Context, taskID string) (bool, error) {
	raw, err := s.client.HGet(ctx, s.processingHash, taskID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}
	removed, err := s.client.LRem(ctx, s.processingKey, 1, raw).Result()
	if err != nil {
		return false, err
	}
	if err := s.client.HDel(ctx, s.processingHash, taskID).Err(); err != nil {
		return false, err
	}
	return removed > 0, nil
}

func (s *RedisTaskStore) Len(ctx context.Context) (int64, error) {
	return s.client.LLen(ctx, s.queueKey).Result()
}

// TaskQueueConfig carries the optional collaborators a queue may be built
// with; zero-value fields fall back to sensible defaults in
// NewTaskQueueWithConfig.
type TaskQueueConfig struct {
	DLQ            *DeadLetterQueue
	MaxRetries     int32
	Backpressure   *Backpressure
	WAL            *WAL
	StickyAffinity *StickyAffinity
	Logger         *slog.Logger
}

// TaskQueue is a named FIFO-with-priority queue (spec §3) guarding its
// poller list, in-flight set and lease expiries behind a single mutex; the
// backing TaskStore and rate limiter synchronize themselves.
type TaskQueue struct {
	name           string
	kind           TaskQueueKind
	store          TaskStore
	pollers        *list.List
	rateLimiter    *rate.Limiter
	metrics        *Metrics
	mu             sync.Mutex
	inFlight       map[string]*Task
	inFlightExpiry map[string]time.Time
	leaseTimeout   time.Duration

	dlq            *DeadLetterQueue
	maxRetries     int32
	backpressure   *Backpressure
	wal            *WAL
	stickyAffinity *StickyAffinity

	logger *slog.Logger
}

func NewTaskQueue(name string, kind TaskQueueKind, rateLimit float64, burst int, redisClient *redis.Client) *TaskQueue {
	return NewTaskQueueWithConfig(name, kind, rateLimit, burst, redisClient, TaskQueueConfig{})
}

func NewTaskQueueWithConfig(name string, kind TaskQueueKind, rateLimit float64, burst int, redisClient *redis.Client, cfg TaskQueueConfig) *TaskQueue {
	var store TaskStore
	if redisClient != nil {
		store = NewRedisTaskStore(redisClient, name)
	} else {
		store = NewPriorityTaskStore()
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}

	bp := cfg.Backpressure
	if bp == nil {
		bp = NewBackpressure(DefaultSoftLimit, DefaultHardLimit, logger)
	}

	var sticky *StickyAffinity
	if kind == TaskQueueKindSticky {
		sticky = cfg.StickyAffinity
		if sticky == nil {
			sticky = NewStickyAffinity()
		}
	}

	return &TaskQueue{
		name:           name,
		kind:           kind,
		store:          store,
		pollers:        list.New(),
		rateLimiter:    rate.NewLimiter(rate.Limit(rateLimit), burst),
		metrics:        NewMetrics(),
		inFlight:       make(map[string]*Task),
		inFlightExpiry: make(map[string]time.Time),
		leaseTimeout:   DefaultLeaseTimeout,
		dlq:            cfg.DLQ,
		maxRetries:     maxRetries,
		backpressure:   bp,
		wal:            cfg.WAL,
		stickyAffinity: sticky,
		logger:         logger,
	}
}

func (tq *TaskQueue) Name() string          { return tq.name }
func (tq *TaskQueue) Kind() TaskQueueKind    { return tq.kind }
func (tq *TaskQueue) Metrics() *Metrics      { return tq.metrics }

func (tq *TaskQueue) AddTask(task *Task) error {
	tq.mu.Lock()
	defer tq.mu.Unlock()

	depth, _ := tq.store.Len(context.Background())
	if tq.backpressure != nil && tq.backpressure.ShouldReject(int(depth)) {
		tq.metrics.TaskRejected()
		return ErrBackpressure
	}
	tq.metrics.TaskAdded()

	if tq.tryDispatchLocked(task) {
		return nil
	}

	if err := tq.store.AddTask(context.Background(), task); err != nil {
		return err
	}
	if tq.wal != nil {
		if err := tq.wal.WriteAdd(task); err != nil {
			tq.logger.Error("write WAL add record", slog.String("task_id", task.ID), slog.String("error", err.Error()))
		}
	}

	newDepth, _ := tq.store.Len(context.Background())
	tq.metrics.SetQueueDepth(newDepth)
	return nil
}

func (tq *TaskQueue) Poll(ctx context.Context, identity string) (*Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tq.mu.Lock()
	allowed := tq.rateLimiter.Allow()
	tq.mu.Unlock()
	if !allowed {
		return nil, ErrRateLimited
	}

	for {
		task, err := tq.store.PollTask(ctx, time.Second)
		if err != nil {
			return nil, err
		}
		if task == nil {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			continue
		}

		if tq.kind == TaskQueueKindSticky && tq.stickyAffinity != nil {
			if requeue := tq.enforceStickyAffinity(ctx, task, identity); requeue {
				time.Sleep(100 * time.Millisecond)
				continue
			}
		}

		tq.leaseTask(task)
		depth, _ := tq.store.Len(context.Background())
		tq.metrics.SetQueueDepth(depth)
		tq.metrics.TaskDispatched()
		tq.metrics.RecordLatency(time.Since(task.ScheduledTime))
		return task, nil
	}
}

// enforceStickyAffinity returns true if task must be put back and polling
// retried because it is bound to a different, still-live identity.
func (tq *TaskQueue) enforceStickyAffinity(ctx context.Context, task *Task, identity string) bool {
	boundIdentity, hasBind := tq.stickyAffinity.GetIdentity(task.WorkflowID)
	if hasBind && boundIdentity != identity {
		if !tq.stickyAffinity.IsExpired(task.WorkflowID, tq.leaseTimeout) {
			_ = tq.store.AddTask(ctx, task)
			return true
		}
		tq.stickyAffinity.Remove(task.WorkflowID)
	}
	tq.stickyAffinity.Bind(task.WorkflowID, identity)
	return false
}

func (tq *TaskQueue) leaseTask(task *Task) {
	tq.mu.Lock()
	defer tq.mu.Unlock()
	tq.inFlight[task.ID] = task
	tq.inFlightExpiry[task.ID] = time.Now().Add(tq.leaseTimeout)
	tq.metrics.SetInFlightCount(int64(len(tq.inFlight)))
}

func (tq *TaskQueue) CompleteTask(taskID string) bool {
	tq.mu.Lock()
	_, inFlight := tq.inFlight[taskID]
	if inFlight {
		delete(tq.inFlight, taskID)
		delete(tq.inFlightExpiry, taskID)
		tq.metrics.SetInFlightCount(int64(len(tq.inFlight)))
	}
	tq.mu.Unlock()

	if inFlight {
		tq.writeCompleteWAL(taskID)
		return true
	}

	// Not tracked in-flight locally (e.g. Redis RPOPLPUSH-style delivery
	// without a local lease record) — fall through to the store's own ack.
	acked, err := tq.store.AckTask(context.Background(), taskID)
	if err != nil || !acked {
		return false
	}
	tq.writeCompleteWAL(taskID)
	return true
}

func (tq *TaskQueue) writeCompleteWAL(taskID string) {
	if tq.wal == nil {
		return
	}
	if err := tq.wal.WriteComplete(taskID); err != nil {
		tq.logger.Error("write WAL complete record", slog.String("task_id", taskID), slog.String("error", err.Error()))
	}
}

func (tq *TaskQueue) FailTask(_ string) {
	tq.metrics.TaskFailed()
}

func (tq *TaskQueue) tryDispatchLocked(task *Task) bool {
	elem := tq.pollers.Front()
	if elem == nil {
		return false
	}
	poller := elem.Value.(*Poller)
	tq.pollers.Remove(elem)

	if tq.kind == TaskQueueKindSticky && tq.stickyAffinity != nil {
		tq.stickyAffinity.Bind(task.WorkflowID, poller.Identity)
	}

	task.StartedTime = time.Now()
	tq.inFlight[task.ID] = task
	tq.inFlightExpiry[task.ID] = time.Now().Add(tq.leaseTimeout)
	tq.metrics.SetInFlightCount(int64(len(tq.inFlight)))
	poller.ResultCh <- task

	tq.metrics.TaskDispatched()
	tq.metrics.RecordLatency(time.Since(task.ScheduledTime))
	return true
}

func (tq *TaskQueue) PendingTaskCount() int {
	n, _ := tq.store.Len(context.Background())
	return int(n)
}

func (tq *TaskQueue) PollerCount() int {
	tq.mu.Lock()
	defer tq.mu.Unlock()
	return tq.pollers.Len()
}

// RequeueExpiredTasks sweeps in-flight leases past expiry, moving each to
// the DLQ once it has exhausted maxRetries and otherwise putting it back
// on the store with Attempt incremented (spec §3 Task lifecycle).
func (tq *TaskQueue) RequeueExpiredTasks() int {
	tq.mu.Lock()
	defer tq.mu.Unlock()

	now := time.Now()
	requeued := 0

	for taskID, expiry := range tq.inFlightExpiry {
		if !now.After(expiry) {
			continue
		}
		task := tq.inFlight[taskID]
		delete(tq.inFlight, taskID)
		delete(tq.inFlightExpiry, taskID)
		tq.metrics.TaskTimedOut()

		if tq.dlq != nil && task.Attempt >= tq.maxRetries {
			entry := &DLQEntry{
				Task:      task,
				Reason:    "max retries exceeded",
				FailedAt:  now,
				Attempts:  task.Attempt,
				LastError: "lease timeout",
			}
			if err := tq.dlq.Add(entry); err != nil {
				tq.logger.Error("add task to DLQ", slog.String("task_id", taskID), slog.String("error", err.Error()))
			} else {
				tq.metrics.TaskSentToDLQ()
			}
			continue
		}

		requeueTask := *task
		requeueTask.Attempt++
		if err := tq.store.AddTask(context.Background(), &requeueTask); err != nil {
			tq.logger.Error("requeue expired task", slog.String("task_id", taskID), slog.String("error", err.Error()))
		}
		requeued++
	}

	tq.metrics.SetInFlightCount(int64(len(tq.inFlight)))
	return requeued
}

var ErrRateLimited = errRateLimited{}

type errRateLimited struct{}

func (errRateLimited) Error() string { return "rate limited" }
