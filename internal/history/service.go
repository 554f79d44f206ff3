package history

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/linkflow/engine/internal/history/archival"
	"github.com/linkflow/engine/internal/history/engine"
	"github.com/linkflow/engine/internal/history/ndc"
	"github.com/linkflow/engine/internal/history/shard"
	"github.com/linkflow/engine/internal/history/types"
	"github.com/linkflow/engine/internal/history/visibility"
)

// TaskType mirrors matching's notion of what a dispatched task represents,
// kept local so History never needs to import Matching's RPC-facing types.
const (
	TaskTypeWorkflow int32 = iota
	TaskTypeActivity
)

// AddTaskRequest is the plain-Go request History issues to Matching when a
// history event needs a task dispatched (spec §4.1 task-emission rules).
type AddTaskRequest struct {
	Namespace        string
	TaskQueue        string
	TaskType         int32
	WorkflowID       string
	RunID            string
	ScheduledEventID int64
	Input            []byte
}

// MatchingClient is History's view of Matching: enough to dispatch tasks
// produced by event processing. Neither this package nor internal/rpc
// provides an implementation; the caller hands one in.
type MatchingClient interface {
	AddTask(ctx context.Context, req *AddTaskRequest) error
}

// RespondWorkflowTaskCompletedRequest carries a decider's command list back
// to History. TaskToken is opaque routing information parsed by Matching;
// History never interprets it as a scheduledEventID (spec §13 decision 1).
type RespondWorkflowTaskCompletedRequest struct {
	Namespace         string
	WorkflowID        string
	RunID             string
	TaskToken         []byte
	Identity          string
	BinaryChecksum    string
	ScheduledEventID  int64
	Commands          []Command
}

// CommandKind enumerates the decider command types named in spec §4.1.
type CommandKind int

const (
	CommandScheduleActivity CommandKind = iota
	CommandCompleteWorkflow
	CommandFailWorkflow
)

// Command is one decider-issued instruction processed atomically with the
// WorkflowTaskCompleted event that carries it.
type Command struct {
	Kind CommandKind

	// CommandScheduleActivity
	NodeID       string
	NodeType     string
	NodeName     string
	TaskQueue    string
	Input        []byte

	// CommandCompleteWorkflow
	Result []byte

	// CommandFailWorkflow
	FailureReason  string
	FailureDetails []byte
}

type RespondWorkflowTaskCompletedResponse struct {
	ActivityTasksScheduled bool
}

type RespondWorkflowTaskFailedRequest struct {
	Namespace        string
	WorkflowID       string
	RunID            string
	TaskToken        []byte
	Identity         string
	ScheduledEventID int64
	FailureReason    string
	FailureDetails   []byte
}

type RespondWorkflowTaskFailedResponse struct{}

type RespondActivityTaskCompletedRequest struct {
	Namespace        string
	WorkflowID       string
	RunID            string
	ScheduledEventID int64
	Result           []byte
	Identity         string
}

type RespondActivityTaskCompletedResponse struct{}

type RespondActivityTaskFailedRequest struct {
	Namespace        string
	WorkflowID       string
	RunID            string
	ScheduledEventID int64
	Reason           string
	Details          []byte
	Identity         string
}

type RespondActivityTaskFailedResponse struct{}

// ListWorkflowExecutionsRequest/Response are the plain-Go shapes for the
// visibility read-path named in spec §4.3 (ListExecutions) and §6.
type ListWorkflowExecutionsRequest struct {
	Namespace     string
	PageSize      int32
	NextPageToken []byte
	Query         string
}

type ListWorkflowExecutionsResponse struct {
	Executions    []*visibility.WorkflowExecutionInfo
	NextPageToken []byte
}

var (
	ErrServiceNotRunning     = errors.New("history service is not running")
	ErrServiceAlreadyRunning = errors.New("history service is already running")
	ErrEventNotFound         = errors.New("event not found")
)

// EventStore defines the interface for storing and retrieving history events.
type EventStore interface {
	AppendEvents(ctx context.Context, key types.ExecutionKey, events []*types.HistoryEvent, expectedVersion int64) error
	GetEvents(ctx context.Context, key types.ExecutionKey, firstEventID, lastEventID int64) ([]*types.HistoryEvent, error)
	GetEventCount(ctx context.Context, key types.ExecutionKey) (int64, error)
}

// MutableStateStore defines the interface for storing workflow mutable state.
type MutableStateStore interface {
	GetMutableState(ctx context.Context, key types.ExecutionKey) (*engine.MutableState, error)
	UpdateMutableState(ctx context.Context, key types.ExecutionKey, state *engine.MutableState, expectedVersion int64) error
	ListRunningExecutions(ctx context.Context) ([]types.ExecutionKey, error)
}

// ShardController manages shard ownership and distribution.
type ShardController interface {
	Start() error
	GetShardForExecution(key types.ExecutionKey) (shard.Shard, error)
	GetShardIDForExecution(key types.ExecutionKey) int32
	Stop()
}

// Metrics provides hooks for observability.
type Metrics interface {
	RecordEventRecorded(eventType types.EventType)
	RecordEventRetrieved(count int)
	RecordServiceLatency(operation string, duration time.Duration)
}

// noopMetrics1 is a no-op implementation of Metrics.
type noopMetrics1 struct{}

func (noopMetrics1) RecordEventRecorded(types.EventType)        {}
func (noopMetrics1) RecordEventRetrieved(int)                   {}
func (noopMetrics1) RecordServiceLatency(string, time.Duration) {}

// Service provides workflow history management capabilities.
type Service struct {
	shardController ShardController
	eventStore      EventStore
	stateStore      MutableStateStore
	visibilityStore visibility.Store
	matchingClient  MatchingClient
	historyEngine   *engine.Engine
	snapshotStore   engine.SnapshotStore
	archiver        *archival.Archiver
	retentionSweep  *archival.RetentionSweeper
	replicator      *ndc.Replicator
	metrics         Metrics
	logger          *slog.Logger

	running      bool
	mu           sync.RWMutex
	wg           sync.WaitGroup
	stopCh       chan struct{}
	namespacesMu sync.RWMutex
	namespaces   map[string]struct{}
}

// Config holds configuration for the history service.
type Config struct {
	ShardController ShardController
	EventStore      EventStore
	StateStore      MutableStateStore
	VisibilityStore visibility.Store
	MatchingClient  MatchingClient
	SnapshotStore   engine.SnapshotStore // optional
	Archiver        *archival.Archiver   // optional
	Replicator      *ndc.Replicator      // optional
	Logger          *slog.Logger
	Metrics         Metrics
}

// NewService creates a new history service with default config.
func NewService(
	shardController ShardController,
	eventStore EventStore,
	stateStore MutableStateStore,
	visibilityStore visibility.Store,
	matchingClient MatchingClient,
	logger *slog.Logger,
) *Service {
	return NewServiceWithConfig(Config{
		ShardController: shardController,
		EventStore:      eventStore,
		StateStore:      stateStore,
		VisibilityStore: visibilityStore,
		MatchingClient:  matchingClient,
		Logger:          logger,
	})
}

// NewServiceWithConfig creates a new history service with full configuration.
func NewServiceWithConfig(cfg Config) *Service {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = noopMetrics1{}
	}
	return &Service{
		shardController: cfg.ShardController,
		eventStore:      cfg.EventStore,
		stateStore:      cfg.StateStore,
		visibilityStore: cfg.VisibilityStore,
		matchingClient:  cfg.MatchingClient,
		historyEngine:   engine.NewEngine(cfg.Logger),
		snapshotStore:   cfg.SnapshotStore,
		archiver:        cfg.Archiver,
		replicator:      cfg.Replicator,
		metrics:         metrics,
		logger:          cfg.Logger,
		running:         false,
	}
}

func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrServiceAlreadyRunning
	}

	s.logger.Info("starting history service")

	if s.shardController != nil {
		if err := s.shardController.Start(); err != nil {
			return err
		}
	}

	s.stopCh = make(chan struct{})
	s.running = true

	s.startTimeoutChecker()

	return nil
}

func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()

	if !s.running {
		s.mu.Unlock()
		return nil
	}

	s.logger.Info("stopping history service")

	s.running = false
	close(s.stopCh)
	s.mu.Unlock()

	s.wg.Wait()

	if s.shardController != nil {
		s.shardController.Stop()
	}

	return nil
}

func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// RecordEvent is legacy/direct event recording. Kept for backward compatibility or direct calls.
func (s *Service) RecordEvent(ctx context.Context, key types.ExecutionKey, event *types.HistoryEvent) error {
	// Re-route to standard event processing which includes task dispatching
	return s.processEvents(ctx, key, []*types.HistoryEvent{event})
}

// processEvents is the core event processing loop that persists events and dispatches tasks
func (s *Service) processEvents(ctx context.Context, key types.ExecutionKey, events []*types.HistoryEvent) error {
	start := time.Now()
	defer func() {
		s.metrics.RecordServiceLatency("ProcessEvents", time.Since(start))
	}()

	s.mu.RLock()
	running := s.running
	s.mu.RUnlock()

	if !running {
		return ErrServiceNotRunning
	}

	_, err := s.shardController.GetShardForExecution(key)
	if err != nil {
		return err
	}

	state, err := s.stateStore.GetMutableState(ctx, key)
	if err != nil {
		if errors.Is(err, types.ErrExecutionNotFound) {
			// Create new mutable state if it doesn't exist
			state = engine.NewMutableState(&types.ExecutionInfo{
				NamespaceID: key.NamespaceID,
				WorkflowID:  key.WorkflowID,
				RunID:       key.RunID,
			})
		} else {
			return err
		}
	}

	expectedVersion := state.DBVersion

	// Apply all events to state and assign IDs
	for _, event := range events {
		if event.EventID == 0 {
			event.EventID = state.NextEventID
		}
		if err := s.historyEngine.ProcessEvent(state, event); err != nil {
			return err
		}
	}

	// Persist events
	if err := s.eventStore.AppendEvents(ctx, key, events, expectedVersion); err != nil {
		return err
	}

	state.DBVersion++

	// Update mutable state
	if err := s.stateStore.UpdateMutableState(ctx, key, state, expectedVersion); err != nil {
		s.logger.Warn("failed to update mutable state", "error", err, "workflow_id", key.WorkflowID)
		return err
	}

	// Metrics
	for _, event := range events {
		s.metrics.RecordEventRecorded(event.EventType)
	}

	// Record Visibility
	if s.visibilityStore != nil {
		for _, event := range events {
			s.recordVisibility(ctx, key, event, state)
		}
	}

	// Dispatch tasks to Matching Service based on new state/events
	if s.matchingClient != nil {
		// We dispatch tasks for the LAST event usually, or iterate all
		for _, event := range events {
			if err := s.dispatchTasks(ctx, key, event, state); err != nil {
				s.logger.Error("failed to dispatch tasks to matching", "error", err)
			}
		}
	}

	// Save snapshot every 100 events (Feature 7)
	if s.snapshotStore != nil && state.NextEventID%100 == 0 {
		snapshot := &engine.Snapshot{
			ExecutionKey: key,
			State:        state.Clone(),
			LastEventID:  state.NextEventID - 1,
			CreatedAt:    time.Now(),
		}
		if err := s.snapshotStore.SaveSnapshot(ctx, snapshot); err != nil {
			s.logger.Warn("failed to save snapshot", "error", err, "workflow_id", key.WorkflowID)
		}
	}

	// Archival on execution close (Feature 8)
	if s.archiver != nil {
		for _, event := range events {
			if event.EventType == types.EventTypeExecutionCompleted || event.EventType == types.EventTypeExecutionFailed {
				allEvents, err := s.eventStore.GetEvents(ctx, key, 1, state.NextEventID-1)
				if err != nil {
					s.logger.Warn("failed to fetch events for archival", "error", err, "workflow_id", key.WorkflowID)
					break
				}
				if err := s.archiver.Archive(ctx, &archival.ArchiveRequest{
					NamespaceID: key.NamespaceID,
					ExecutionID: key.RunID,
					WorkflowID:  key.WorkflowID,
					Events:      allEvents,
					ClosedAt:    event.Timestamp,
				}); err != nil {
					s.logger.Warn("failed to archive execution", "error", err, "workflow_id", key.WorkflowID)
				}
				break
			}
		}
	}

	// NDC Replication (Feature 12) - async so it doesn't block
	if s.replicator != nil {
		replicateEvents := make([]*types.HistoryEvent, len(events))
		copy(replicateEvents, events)
		go func() {
			replicateCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := s.replicator.ReplicateEvents(replicateCtx, key.WorkflowID, replicateEvents); err != nil {
				s.logger.Warn("failed to replicate events", "error", err, "workflow_id", key.WorkflowID)
			}
		}()
	}

	return nil
}

func (s *Service) recordVisibility(ctx context.Context, key types.ExecutionKey, event *types.HistoryEvent, state *engine.MutableState) {
	switch event.EventType {
	case types.EventTypeExecutionStarted:
		s.visibilityStore.RecordWorkflowExecutionStarted(ctx, &visibility.RecordWorkflowExecutionStartedRequest{
			NamespaceID:  key.NamespaceID,
			Execution:    visibility.WorkflowExecution{WorkflowID: key.WorkflowID, RunID: key.RunID},
			WorkflowType: visibility.WorkflowType{Name: state.ExecutionInfo.WorkflowTypeName},
			StartTime:    event.Timestamp,
			Status:       types.ExecutionStatusRunning,
		})

	case types.EventTypeExecutionCompleted:
		s.visibilityStore.RecordWorkflowExecutionClosed(ctx, &visibility.RecordWorkflowExecutionClosedRequest{
			NamespaceID:  key.NamespaceID,
			Execution:    visibility.WorkflowExecution{WorkflowID: key.WorkflowID, RunID: key.RunID},
			WorkflowType: visibility.WorkflowType{Name: state.ExecutionInfo.WorkflowTypeName},
			CloseTime:    event.Timestamp,
			Status:       types.ExecutionStatusCompleted,
		})

	case types.EventTypeExecutionFailed:
		s.visibilityStore.RecordWorkflowExecutionClosed(ctx, &visibility.RecordWorkflowExecutionClosedRequest{
			NamespaceID:  key.NamespaceID,
			Execution:    visibility.WorkflowExecution{WorkflowID: key.WorkflowID, RunID: key.RunID},
			WorkflowType: visibility.WorkflowType{Name: state.ExecutionInfo.WorkflowTypeName},
			CloseTime:    event.Timestamp,
			Status:       types.ExecutionStatusFailed,
		})
	}
}

// RespondWorkflowTaskCompleted processes decisions from the workflow worker
func (s *Service) RespondWorkflowTaskCompleted(ctx context.Context, req *RespondWorkflowTaskCompletedRequest) (*RespondWorkflowTaskCompletedResponse, error) {
	key := types.ExecutionKey{
		NamespaceID: req.Namespace,
		WorkflowID:  req.WorkflowID,
		RunID:       req.RunID,
	}

	// History does not read req.TaskToken. Matching, which issues tokens,
	// decodes one only to route CompleteTask to its queue and task; the
	// token's random suffix is not compared against anything (spec §13
	// decision 1).

	newEvents := []*types.HistoryEvent{
		{
			EventType: types.EventTypeWorkflowTaskCompleted,
			Attributes: &types.WorkflowTaskCompletedAttributes{
				ScheduledEventID: req.ScheduledEventID,
				Identity:         req.Identity,
				BinaryChecksum:   req.BinaryChecksum,
			},
		},
	}

	for _, cmd := range req.Commands {
		switch cmd.Kind {
		case CommandScheduleActivity:
			newEvents = append(newEvents, &types.HistoryEvent{
				EventType: types.EventTypeNodeScheduled,
				Attributes: &types.NodeScheduledAttributes{
					NodeID:    cmd.NodeID,
					NodeType:  cmd.NodeType,
					Input:     cmd.Input,
					TaskQueue: cmd.TaskQueue,
				},
			})

		case CommandCompleteWorkflow:
			newEvents = append(newEvents, &types.HistoryEvent{
				EventType:  types.EventTypeExecutionCompleted,
				Attributes: &types.ExecutionCompletedAttributes{Result: cmd.Result},
			})

		case CommandFailWorkflow:
			newEvents = append(newEvents, &types.HistoryEvent{
				EventType: types.EventTypeExecutionFailed,
				Attributes: &types.ExecutionFailedAttributes{
					Reason:  cmd.FailureReason,
					Details: cmd.FailureDetails,
				},
			})
		}
	}

	if err := s.processEvents(ctx, key, newEvents); err != nil {
		return nil, err
	}

	return &RespondWorkflowTaskCompletedResponse{ActivityTasksScheduled: true}, nil
}

func (s *Service) RespondWorkflowTaskFailed(ctx context.Context, req *RespondWorkflowTaskFailedRequest) (*RespondWorkflowTaskFailedResponse, error) {
	key := types.ExecutionKey{
		NamespaceID: req.Namespace,
		WorkflowID:  req.WorkflowID,
		RunID:       req.RunID,
	}

	event := &types.HistoryEvent{
		EventType: types.EventTypeWorkflowTaskFailed,
		Attributes: &types.WorkflowTaskFailedAttributes{
			ScheduledEventID: req.ScheduledEventID,
			Identity:         req.Identity,
			FailureReason:    req.FailureReason,
			FailureDetails:   req.FailureDetails,
		},
	}

	if err := s.processEvents(ctx, key, []*types.HistoryEvent{event}); err != nil {
		return nil, err
	}
	return &RespondWorkflowTaskFailedResponse{}, nil
}

func (s *Service) RespondActivityTaskCompleted(ctx context.Context, req *RespondActivityTaskCompletedRequest) (*RespondActivityTaskCompletedResponse, error) {
	key := types.ExecutionKey{
		NamespaceID: req.Namespace,
		WorkflowID:  req.WorkflowID,
		RunID:       req.RunID,
	}

	// Schedules a fresh WorkflowTask to wake the decider; dispatchTasks
	// does the actual task emission off of this event (spec §4.1 table).
	event := &types.HistoryEvent{
		EventType: types.EventTypeNodeCompleted,
		Attributes: &types.NodeCompletedAttributes{
			ScheduledEventID: req.ScheduledEventID,
			Result:           req.Result,
		},
	}

	if err := s.processEvents(ctx, key, []*types.HistoryEvent{event}); err != nil {
		return nil, err
	}

	return &RespondActivityTaskCompletedResponse{}, nil
}

func (s *Service) RespondActivityTaskFailed(ctx context.Context, req *RespondActivityTaskFailedRequest) (*RespondActivityTaskFailedResponse, error) {
	key := types.ExecutionKey{
		NamespaceID: req.Namespace,
		WorkflowID:  req.WorkflowID,
		RunID:       req.RunID,
	}

	event := &types.HistoryEvent{
		EventType: types.EventTypeNodeFailed,
		Attributes: &types.NodeFailedAttributes{
			ScheduledEventID: req.ScheduledEventID,
			Reason:           req.Reason,
			Details:          req.Details,
		},
	}

	if err := s.processEvents(ctx, key, []*types.HistoryEvent{event}); err != nil {
		return nil, err
	}

	return &RespondActivityTaskFailedResponse{}, nil
}

// dispatchTasks implements the task-emission rules table in spec §4.1.
func (s *Service) dispatchTasks(ctx context.Context, key types.ExecutionKey, event *types.HistoryEvent, state *engine.MutableState) error {
	var taskType int32
	var taskQueue string

	switch event.EventType {
	case types.EventTypeExecutionStarted:
		attrs, ok := event.Attributes.(*types.ExecutionStartedAttributes)
		if !ok {
			return nil
		}
		taskType = TaskTypeWorkflow
		taskQueue = attrs.TaskQueue

	case types.EventTypeNodeScheduled:
		attrs, ok := event.Attributes.(*types.NodeScheduledAttributes)
		if !ok {
			return nil
		}
		taskType = TaskTypeActivity
		taskQueue = attrs.TaskQueue

	case types.EventTypeNodeCompleted, types.EventTypeNodeFailed:
		// Wake the decider; Matching's idempotent AddTask tolerates the
		// occasional redundant WorkflowTask this produces.
		taskType = TaskTypeWorkflow
		if state.ExecutionInfo == nil {
			return nil
		}
		taskQueue = state.ExecutionInfo.TaskQueue

	case types.EventTypeWorkflowTaskScheduled:
		attrs, ok := event.Attributes.(*types.WorkflowTaskScheduledAttributes)
		if !ok {
			return nil
		}
		taskType = TaskTypeWorkflow
		taskQueue = attrs.TaskQueue

	default:
		return nil
	}

	return s.matchingClient.AddTask(ctx, &AddTaskRequest{
		Namespace:        key.NamespaceID,
		TaskQueue:        taskQueue,
		TaskType:         taskType,
		WorkflowID:       key.WorkflowID,
		RunID:            key.RunID,
		ScheduledEventID: event.EventID,
	})
}

// GetHistory, GetMutableState, etc. remain unchanged...
func (s *Service) GetHistory(ctx context.Context, key types.ExecutionKey, firstEventID, lastEventID int64) ([]*types.HistoryEvent, error) {
	return s.eventStore.GetEvents(ctx, key, firstEventID, lastEventID)
}

func (s *Service) GetMutableState(ctx context.Context, key types.ExecutionKey) (*engine.MutableState, error) {
	return s.stateStore.GetMutableState(ctx, key)
}

func (s *Service) GetShardForExecution(key types.ExecutionKey) (shard.Shard, error) {
	return s.shardController.GetShardForExecution(key)
}

func (s *Service) GetShardIDForExecution(key types.ExecutionKey) int32 {
	return s.shardController.GetShardIDForExecution(key)
}

func (s *Service) ResetExecution(ctx context.Context, key types.ExecutionKey, reason string, resetEventID int64) (string, error) {
	// 1. Fetch events up to resetEventID
	events, err := s.eventStore.GetEvents(ctx, key, 1, resetEventID)
	if err != nil {
		return "", fmt.Errorf("failed to fetch events for reset: %w", err)
	}
	if len(events) == 0 {
		return "", fmt.Errorf("no events found up to event ID %d", resetEventID)
	}

	// Validate first event is ExecutionStarted
	firstEvent := events[0]
	if firstEvent.EventType != types.EventTypeExecutionStarted {
		return "", fmt.Errorf("first event is not ExecutionStarted")
	}

	// 2. Generate new RunID
	newRunID := generateRunID()

	// 3. Replay events up to reset point into new MutableState
	newKey := types.ExecutionKey{
		NamespaceID: key.NamespaceID,
		WorkflowID:  key.WorkflowID,
		RunID:       newRunID,
	}

	newState := engine.NewMutableState(&types.ExecutionInfo{
		NamespaceID: newKey.NamespaceID,
		WorkflowID:  newKey.WorkflowID,
		RunID:       newKey.RunID,
	})

	// Re-assign event IDs and replay
	replayedEvents := make([]*types.HistoryEvent, len(events))
	for i, evt := range events {
		clone := *evt
		clone.EventID = int64(i + 1)
		if err := newState.ApplyEvent(&clone); err != nil {
			return "", fmt.Errorf("failed to replay event %d during reset: %w", clone.EventID, err)
		}
		replayedEvents[i] = &clone
	}

	// 4. Persist the new execution's events
	if err := s.eventStore.AppendEvents(ctx, newKey, replayedEvents, 0); err != nil {
		return "", fmt.Errorf("failed to persist reset events: %w", err)
	}

	// 5. Persist the new execution's mutable state
	if err := s.stateStore.UpdateMutableState(ctx, newKey, newState, 0); err != nil {
		return "", fmt.Errorf("failed to persist reset state: %w", err)
	}

	// 6. Dispatch a WorkflowTask to Matching so the decider picks it up
	if s.matchingClient != nil && newState.ExecutionInfo != nil && newState.ExecutionInfo.TaskQueue != "" {
		taskReq := &AddTaskRequest{
			Namespace:        newKey.NamespaceID,
			TaskQueue:        newState.ExecutionInfo.TaskQueue,
			TaskType:         TaskTypeWorkflow,
			WorkflowID:       newKey.WorkflowID,
			RunID:            newKey.RunID,
			ScheduledEventID: newState.NextEventID - 1,
		}
		if err := s.matchingClient.AddTask(ctx, taskReq); err != nil {
			s.logger.Warn("failed to dispatch workflow task after reset", "error", err, "workflow_id", newKey.WorkflowID)
		}
	}

	s.logger.Info("execution reset completed",
		slog.String("workflow_id", key.WorkflowID),
		slog.String("old_run_id", key.RunID),
		slog.String("new_run_id", newRunID),
		slog.String("reason", reason),
		slog.Int64("reset_event_id", resetEventID),
	)

	// 7. Return the new RunID
	return newRunID, nil
}

func (s *Service) ListWorkflowExecutions(ctx context.Context, req *ListWorkflowExecutionsRequest) (*ListWorkflowExecutionsResponse, error) {
	if s.visibilityStore == nil {
		return nil, errors.New("visibility store not initialized")
	}

	resp, err := s.visibilityStore.ListOpenWorkflowExecutions(ctx, &visibility.ListRequest{
		NamespaceID:   req.Namespace,
		PageSize:      int(req.PageSize),
		NextPageToken: req.NextPageToken,
		Query:         req.Query,
	})
	if err != nil {
		return nil, err
	}

	return &ListWorkflowExecutionsResponse{
		Executions:    resp.Executions,
		NextPageToken: resp.NextPageToken,
	}, nil
}

// GetHistoryPageRequest is the request for paginated history retrieval.
type GetHistoryPageRequest struct {
	Key       types.ExecutionKey
	PageSize  int32
	PageToken string // base64 encoded last event ID
}

// GetHistoryPageResponse is the response for paginated history retrieval.
type GetHistoryPageResponse struct {
	Events        []*types.HistoryEvent
	NextPageToken string
	TotalEvents   int64
}

// GetHistoryPage returns a paginated view of the execution history.
func (s *Service) GetHistoryPage(ctx context.Context, req *GetHistoryPageRequest) (*GetHistoryPageResponse, error) {
	if req.PageSize <= 0 {
		req.PageSize = 100
	}

	// Decode page token to get startEventID
	var startEventID int64 = 1
	if req.PageToken != "" {
		tokenBytes, err := base64.StdEncoding.DecodeString(req.PageToken)
		if err != nil {
			return nil, fmt.Errorf("invalid page token: %w", err)
		}
		lastID, err := strconv.ParseInt(string(tokenBytes), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid page token value: %w", err)
		}
		startEventID = lastID + 1
	}

	// Fetch pageSize+1 events to determine if there's a next page
	fetchSize := int64(req.PageSize) + 1
	events, err := s.eventStore.GetEvents(ctx, req.Key, startEventID, startEventID+fetchSize-1)
	if err != nil {
		return nil, fmt.Errorf("failed to get events: %w", err)
	}

	// Get total count
	totalEvents, err := s.eventStore.GetEventCount(ctx, req.Key)
	if err != nil {
		return nil, fmt.Errorf("failed to get event count: %w", err)
	}

	resp := &GetHistoryPageResponse{
		TotalEvents: totalEvents,
	}

	if int32(len(events)) > req.PageSize {
		// There's a next page
		resp.Events = events[:req.PageSize]
		lastEvent := resp.Events[len(resp.Events)-1]
		resp.NextPageToken = base64.StdEncoding.EncodeToString(
			[]byte(strconv.FormatInt(lastEvent.EventID, 10)),
		)
	} else {
		resp.Events = events
	}

	return resp, nil
}

// startTimeoutChecker launches a background goroutine that checks for execution timeouts.
func (s *Service) startTimeoutChecker() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-s.stopCh:
				return
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				s.checkExecutionTimeouts(ctx)
				cancel()
			}
		}
	}()
}

// checkExecutionTimeouts checks running executions for timeout violations.
// Uses batched processing with a cap to prevent unbounded DB load.
func (s *Service) checkExecutionTimeouts(ctx context.Context) {
	const maxExecutionsPerCheck = 100

	keys, err := s.stateStore.ListRunningExecutions(ctx)
	if err != nil {
		s.logger.Warn("failed to list running executions for timeout check", "error", err)
		return
	}

	if len(keys) > maxExecutionsPerCheck {
		s.logger.Warn("timeout check truncated; consider using timer-based timeouts",
			slog.Int("total_running", len(keys)),
			slog.Int("checked", maxExecutionsPerCheck),
		)
		keys = keys[:maxExecutionsPerCheck]
	}

	for _, key := range keys {
		if ctx.Err() != nil {
			return
		}

		state, err := s.stateStore.GetMutableState(ctx, key)
		if err != nil {
			s.logger.Warn("failed to get state for timeout check", "error", err, "workflow_id", key.WorkflowID)
			continue
		}

		if state.ExecutionInfo == nil || state.ExecutionInfo.ExecutionTimeout <= 0 {
			continue
		}

		if time.Since(state.ExecutionInfo.StartTime) > state.ExecutionInfo.ExecutionTimeout {
			s.logger.Info("execution timeout exceeded, terminating",
				slog.String("workflow_id", key.WorkflowID),
				slog.String("run_id", key.RunID),
			)

			terminateEvent := &types.HistoryEvent{
				EventType: types.EventTypeExecutionTerminated,
				Timestamp: time.Now(),
				Attributes: &types.ExecutionTerminatedAttributes{
					Reason:   "execution timeout exceeded",
					Identity: "system-timeout-checker",
				},
			}

			if err := s.processEvents(ctx, key, []*types.HistoryEvent{terminateEvent}); err != nil {
				s.logger.Warn("failed to terminate timed-out execution", "error", err, "workflow_id", key.WorkflowID)
			}
		}
	}
}

// generateRunID generates a new unique run ID.
func generateRunID() string {
	return "run-" + uuid.NewString()
}
