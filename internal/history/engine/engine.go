// Package engine implements the deterministic apply/validate rules that
// turn a HistoryEvent stream into a MutableState projection (spec §3, §4.1).
package engine

import (
	"errors"
	"log/slog"
	"time"

	"github.com/linkflow/engine/internal/history/types"
)

var (
	ErrInvalidEvent       = errors.New("invalid event")
	ErrEventOutOfOrder    = errors.New("event out of order")
	ErrDuplicateTimer     = errors.New("duplicate timer")
	ErrTimerNotFound      = errors.New("timer not found")
	ErrActivityNotFound   = errors.New("activity not found")
	ErrWorkflowNotRunning = errors.New("workflow not running")
	ErrInvalidEventType   = errors.New("invalid event type")
)

// validatorFunc checks type-specific preconditions for an event before it
// is allowed to mutate a MutableState. Returning nil means the event may
// be applied.
type validatorFunc func(e *Engine, state *MutableState, event *types.HistoryEvent) error

// Engine owns the validator table (spec §4.1 "Validators") and the
// command-construction helpers deciders use to turn a decision into the
// next HistoryEvent. It holds no per-execution state itself — MutableState
// does — so a single Engine is shared across every shard.
type Engine struct {
	logger     *slog.Logger
	validators map[types.EventType]validatorFunc
}

func NewEngine(logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{logger: logger}
	e.validators = map[types.EventType]validatorFunc{
		types.EventTypeExecutionStarted:    (*Engine).validateExecutionStarted,
		types.EventTypeExecutionCompleted:  (*Engine).validateRunning,
		types.EventTypeExecutionFailed:     (*Engine).validateRunning,
		types.EventTypeExecutionTerminated: (*Engine).validateRunning,
		types.EventTypeTimerStarted:        (*Engine).validateTimerStarted,
		types.EventTypeTimerFired:          (*Engine).validateTimerKnown,
		types.EventTypeTimerCanceled:       (*Engine).validateTimerKnown,
		types.EventTypeActivityScheduled:   (*Engine).validateRunning,
		types.EventTypeActivityStarted:     (*Engine).validateActivityStarted,
		types.EventTypeActivityCompleted:   (*Engine).validateActivityKnown,
		types.EventTypeActivityFailed:      (*Engine).validateActivityKnown,
		types.EventTypeActivityTimedOut:    (*Engine).validateActivityKnown,
	}
	return e
}

// ProcessEvent validates then applies event against state, the single
// entry point the History service calls per incoming event (spec §4.1
// step 3).
func (e *Engine) ProcessEvent(state *MutableState, event *types.HistoryEvent) error {
	if err := e.ValidateEvent(state, event); err != nil {
		return err
	}
	return state.ApplyEvent(event)
}

// ValidateEvent enforces the contiguous-eventID invariant (spec §3) and
// dispatches to the per-type rule registered in validators.
func (e *Engine) ValidateEvent(state *MutableState, event *types.HistoryEvent) error {
	if event == nil {
		return ErrInvalidEvent
	}
	if event.EventID != state.NextEventID {
		return ErrEventOutOfOrder
	}
	if check, ok := e.validators[event.EventType]; ok {
		return check(e, state, event)
	}
	return nil
}

func (e *Engine) validateRunning(state *MutableState, _ *types.HistoryEvent) error {
	if !state.IsWorkflowExecutionRunning() {
		return ErrWorkflowNotRunning
	}
	return nil
}

func (e *Engine) validateExecutionStarted(_ *MutableState, event *types.HistoryEvent) error {
	if event.EventID != 1 {
		return ErrEventOutOfOrder
	}
	return nil
}

func (e *Engine) validateTimerStarted(state *MutableState, event *types.HistoryEvent) error {
	if err := e.validateRunning(state, event); err != nil {
		return err
	}
	attrs, ok := event.Attributes.(*types.TimerStartedAttributes)
	if !ok {
		return ErrInvalidEventType
	}
	if _, exists := state.PendingTimers[attrs.TimerID]; exists {
		return ErrDuplicateTimer
	}
	return nil
}

func (e *Engine) validateTimerKnown(state *MutableState, event *types.HistoryEvent) error {
	if err := e.validateRunning(state, event); err != nil {
		return err
	}
	var timerID string
	switch attrs := event.Attributes.(type) {
	case *types.TimerFiredAttributes:
		timerID = attrs.TimerID
	case *types.TimerCanceledAttributes:
		timerID = attrs.TimerID
	default:
		return ErrInvalidEventType
	}
	if _, exists := state.PendingTimers[timerID]; !exists {
		return ErrTimerNotFound
	}
	return nil
}

func (e *Engine) validateActivityStarted(state *MutableState, event *types.HistoryEvent) error {
	if err := e.validateRunning(state, event); err != nil {
		return err
	}
	attrs, ok := event.Attributes.(*types.ActivityStartedAttributes)
	if !ok {
		return ErrInvalidEventType
	}
	if _, exists := state.PendingActivities[attrs.ScheduledEventID]; !exists {
		return ErrActivityNotFound
	}
	return nil
}

func (e *Engine) validateActivityKnown(state *MutableState, event *types.HistoryEvent) error {
	if err := e.validateRunning(state, event); err != nil {
		return err
	}
	var scheduledEventID int64
	switch attrs := event.Attributes.(type) {
	case *types.ActivityCompletedAttributes:
		scheduledEventID = attrs.ScheduledEventID
	case *types.ActivityFailedAttributes:
		scheduledEventID = attrs.ScheduledEventID
	default:
		return ErrInvalidEventType
	}
	if _, exists := state.PendingActivities[scheduledEventID]; !exists {
		return ErrActivityNotFound
	}
	return nil
}

// --- command helpers: each builds the next HistoryEvent for a decision
// and applies its immediate side effect to the in-flight MutableState so
// callers can chain several commands before a single AppendEvents. ---

func (e *Engine) ScheduleNode(state *MutableState, nodeID, nodeType string, input []byte, taskQueue string) (*types.HistoryEvent, error) {
	if !state.IsWorkflowExecutionRunning() {
		return nil, ErrWorkflowNotRunning
	}
	return &types.HistoryEvent{
		EventID:   state.IncrementNextEventID(),
		EventType: types.EventTypeNodeScheduled,
		Timestamp: time.Now(),
		Attributes: &types.NodeScheduledAttributes{
			NodeID:    nodeID,
			NodeType:  nodeType,
			Input:     input,
			TaskQueue: taskQueue,
		},
	}, nil
}

func (e *Engine) CompleteNode(state *MutableState, nodeID string, scheduledEventID, startedEventID int64, result []byte) (*types.HistoryEvent, error) {
	if !state.IsWorkflowExecutionRunning() {
		return nil, ErrWorkflowNotRunning
	}
	event := &types.HistoryEvent{
		EventID:   state.IncrementNextEventID(),
		EventType: types.EventTypeNodeCompleted,
		Timestamp: time.Now(),
		Attributes: &types.NodeCompletedAttributes{
			NodeID:           nodeID,
			ScheduledEventID: scheduledEventID,
			StartedEventID:   startedEventID,
			Result:           result,
		},
	}
	state.AddCompletedNode(nodeID, &types.NodeResult{
		NodeID:        nodeID,
		CompletedTime: event.Timestamp,
		Output:        result,
	})
	return event, nil
}

func (e *Engine) FailNode(state *MutableState, nodeID string, scheduledEventID, startedEventID int64, reason string, details []byte) (*types.HistoryEvent, error) {
	if !state.IsWorkflowExecutionRunning() {
		return nil, ErrWorkflowNotRunning
	}
	event := &types.HistoryEvent{
		EventID:   state.IncrementNextEventID(),
		EventType: types.EventTypeNodeFailed,
		Timestamp: time.Now(),
		Attributes: &types.NodeFailedAttributes{
			NodeID:           nodeID,
			ScheduledEventID: scheduledEventID,
			StartedEventID:   startedEventID,
			Reason:           reason,
			Details:          details,
		},
	}
	state.AddCompletedNode(nodeID, &types.NodeResult{
		NodeID:         nodeID,
		CompletedTime:  event.Timestamp,
		FailureReason:  reason,
		FailureDetails: details,
	})
	return event, nil
}

func (e *Engine) StartTimer(state *MutableState, timerID string, duration time.Duration) (*types.HistoryEvent, error) {
	if !state.IsWorkflowExecutionRunning() {
		return nil, ErrWorkflowNotRunning
	}
	if _, exists := state.PendingTimers[timerID]; exists {
		return nil, ErrDuplicateTimer
	}
	eventID := state.IncrementNextEventID()
	now := time.Now()
	fireTime := now.Add(duration)
	state.AddPendingTimer(timerID, &types.TimerInfo{
		TimerID:        timerID,
		StartedEventID: eventID,
		FireTime:       fireTime,
		ExpiryTime:     fireTime,
	})
	return &types.HistoryEvent{
		EventID:   eventID,
		EventType: types.EventTypeTimerStarted,
		Timestamp: now,
		Attributes: &types.TimerStartedAttributes{
			TimerID:     timerID,
			StartToFire: duration,
		},
	}, nil
}

func (e *Engine) FireTimer(state *MutableState, timerID string) (*types.HistoryEvent, error) {
	if !state.IsWorkflowExecutionRunning() {
		return nil, ErrWorkflowNotRunning
	}
	timerInfo, exists := state.PendingTimers[timerID]
	if !exists {
		return nil, ErrTimerNotFound
	}
	event := &types.HistoryEvent{
		EventID:   state.IncrementNextEventID(),
		EventType: types.EventTypeTimerFired,
		Timestamp: time.Now(),
		Attributes: &types.TimerFiredAttributes{
			TimerID:        timerID,
			StartedEventID: timerInfo.StartedEventID,
		},
	}
	state.DeletePendingTimer(timerID)
	return event, nil
}

func (e *Engine) CancelTimer(state *MutableState, timerID, identity string) (*types.HistoryEvent, error) {
	if !state.IsWorkflowExecutionRunning() {
		return nil, ErrWorkflowNotRunning
	}
	timerInfo, exists := state.PendingTimers[timerID]
	if !exists {
		return nil, ErrTimerNotFound
	}
	event := &types.HistoryEvent{
		EventID:   state.IncrementNextEventID(),
		EventType: types.EventTypeTimerCanceled,
		Timestamp: time.Now(),
		Attributes: &types.TimerCanceledAttributes{
			TimerID:        timerID,
			StartedEventID: timerInfo.StartedEventID,
			Identity:       identity,
		},
	}
	state.DeletePendingTimer(timerID)
	return event, nil
}

func (e *Engine) ScheduleActivity(state *MutableState, attrs *types.ActivityScheduledAttributes) (*types.HistoryEvent, error) {
	if !state.IsWorkflowExecutionRunning() {
		return nil, ErrWorkflowNotRunning
	}
	eventID := state.IncrementNextEventID()
	now := time.Now()
	state.AddPendingActivity(eventID, &types.ActivityInfo{
		ScheduledEventID: eventID,
		ActivityID:       attrs.ActivityID,
		ActivityType:     attrs.ActivityType,
		TaskQueue:        attrs.TaskQueue,
		Input:            attrs.Input,
		ScheduledTime:    now,
		HeartbeatTimeout: attrs.HeartbeatTimeout,
		ScheduleTimeout:  attrs.ScheduleToClose,
		StartToClose:     attrs.StartToClose,
	})
	return &types.HistoryEvent{
		EventID:    eventID,
		EventType:  types.EventTypeActivityScheduled,
		Timestamp:  now,
		Attributes: attrs,
	}, nil
}

func (e *Engine) CompleteActivity(state *MutableState, scheduledEventID, startedEventID int64, result []byte) (*types.HistoryEvent, error) {
	if !state.IsWorkflowExecutionRunning() {
		return nil, ErrWorkflowNotRunning
	}
	if _, exists := state.PendingActivities[scheduledEventID]; !exists {
		return nil, ErrActivityNotFound
	}
	event := &types.HistoryEvent{
		EventID:   state.IncrementNextEventID(),
		EventType: types.EventTypeActivityCompleted,
		Timestamp: time.Now(),
		Attributes: &types.ActivityCompletedAttributes{
			ScheduledEventID: scheduledEventID,
			StartedEventID:   startedEventID,
			Result:           result,
		},
	}
	state.DeletePendingActivity(scheduledEventID)
	return event, nil
}

func (e *Engine) FailActivity(state *MutableState, scheduledEventID, startedEventID int64, reason string, details []byte) (*types.HistoryEvent, error) {
	if !state.IsWorkflowExecutionRunning() {
		return nil, ErrWorkflowNotRunning
	}
	if _, exists := state.PendingActivities[scheduledEventID]; !exists {
		return nil, ErrActivityNotFound
	}
	event := &types.HistoryEvent{
		EventID:   state.IncrementNextEventID(),
		EventType: types.EventTypeActivityFailed,
		Timestamp: time.Now(),
		Attributes: &types.ActivityFailedAttributes{
			ScheduledEventID: scheduledEventID,
			StartedEventID:   startedEventID,
			Reason:           reason,
			Details:          details,
		},
	}
	state.DeletePendingActivity(scheduledEventID)
	return event, nil
}
