package engine

import (
	"time"

	"github.com/linkflow/engine/internal/history/types"
)

// MutableState is the materialized projection of one execution's event
// stream (spec §3). It is owned exclusively by the shard serializing writes
// for its key; every other reader must call Clone.
type MutableState struct {
	ExecutionInfo     *types.ExecutionInfo
	NextEventID       int64
	PendingActivities map[int64]*types.ActivityInfo
	PendingTimers     map[string]*types.TimerInfo
	CompletedNodes    map[string]*types.NodeResult
	BufferedEvents    []*types.HistoryEvent
	DBVersion         int64
}

func NewMutableState(info *types.ExecutionInfo) *MutableState {
	return &MutableState{
		ExecutionInfo:     info,
		NextEventID:       1,
		PendingActivities: make(map[int64]*types.ActivityInfo),
		PendingTimers:     make(map[string]*types.TimerInfo),
		CompletedNodes:    make(map[string]*types.NodeResult),
		BufferedEvents:    make([]*types.HistoryEvent, 0),
	}
}

// Clone returns a deep copy safe for a reader to hold onto across RPC
// boundaries without racing the owning shard's writer.
func (ms *MutableState) Clone() *MutableState {
	clone := &MutableState{
		ExecutionInfo:     ms.cloneExecutionInfo(),
		NextEventID:       ms.NextEventID,
		PendingActivities: make(map[int64]*types.ActivityInfo, len(ms.PendingActivities)),
		PendingTimers:     make(map[string]*types.TimerInfo, len(ms.PendingTimers)),
		CompletedNodes:    make(map[string]*types.NodeResult, len(ms.CompletedNodes)),
		BufferedEvents:    make([]*types.HistoryEvent, len(ms.BufferedEvents)),
		DBVersion:         ms.DBVersion,
	}
	for k, v := range ms.PendingActivities {
		clone.PendingActivities[k] = cloneActivityInfo(v)
	}
	for k, v := range ms.PendingTimers {
		clone.PendingTimers[k] = cloneTimerInfo(v)
	}
	for k, v := range ms.CompletedNodes {
		clone.CompletedNodes[k] = cloneNodeResult(v)
	}
	copy(clone.BufferedEvents, ms.BufferedEvents)
	return clone
}

func (ms *MutableState) cloneExecutionInfo() *types.ExecutionInfo {
	if ms.ExecutionInfo == nil {
		return nil
	}
	info := *ms.ExecutionInfo
	info.Input = append([]byte(nil), ms.ExecutionInfo.Input...)
	return &info
}

func cloneActivityInfo(ai *types.ActivityInfo) *types.ActivityInfo {
	if ai == nil {
		return nil
	}
	clone := *ai
	clone.Input = append([]byte(nil), ai.Input...)
	clone.HeartbeatDetails = append([]byte(nil), ai.HeartbeatDetails...)
	return &clone
}

func cloneTimerInfo(ti *types.TimerInfo) *types.TimerInfo {
	if ti == nil {
		return nil
	}
	clone := *ti
	return &clone
}

func cloneNodeResult(nr *types.NodeResult) *types.NodeResult {
	if nr == nil {
		return nil
	}
	clone := *nr
	clone.Output = append([]byte(nil), nr.Output...)
	clone.FailureDetails = append([]byte(nil), nr.FailureDetails...)
	return &clone
}

// applierFunc mutates state for one event type and is responsible for
// advancing NextEventID past the event it consumed.
type applierFunc func(ms *MutableState, event *types.HistoryEvent) error

var appliers = map[types.EventType]applierFunc{
	types.EventTypeExecutionStarted:    (*MutableState).applyExecutionStarted,
	types.EventTypeExecutionCompleted:  terminalApplier(types.ExecutionStatusCompleted),
	types.EventTypeExecutionFailed:     terminalApplier(types.ExecutionStatusFailed),
	types.EventTypeExecutionTerminated: terminalApplier(types.ExecutionStatusTerminated),
	types.EventTypeNodeScheduled:       (*MutableState).advanceOnly,
	types.EventTypeNodeCompleted:       (*MutableState).applyNodeCompleted,
	types.EventTypeNodeFailed:          (*MutableState).applyNodeFailed,
	types.EventTypeTimerStarted:        (*MutableState).applyTimerStarted,
	types.EventTypeTimerFired:          (*MutableState).applyTimerFired,
	types.EventTypeTimerCanceled:       (*MutableState).applyTimerCanceled,
	types.EventTypeActivityScheduled:   (*MutableState).applyActivityScheduled,
	types.EventTypeActivityStarted:     (*MutableState).applyActivityStarted,
	types.EventTypeActivityCompleted:   (*MutableState).applyActivityCompleted,
	types.EventTypeActivityFailed:      (*MutableState).applyActivityFailed,
	types.EventTypeActivityTimedOut:    (*MutableState).applyActivityFailed,
}

// ApplyEvent is the deterministic `apply` rule referenced throughout spec
// §3/§4.1/§8: replaying the same event against the same prior state always
// yields the same resulting state.
func (ms *MutableState) ApplyEvent(event *types.HistoryEvent) error {
	if fn, ok := appliers[event.EventType]; ok {
		return fn(ms, event)
	}
	return ms.advanceOnly(event)
}

func (ms *MutableState) advanceOnly(event *types.HistoryEvent) error {
	ms.NextEventID = event.EventID + 1
	return nil
}

// terminalApplier builds an applier for the three close-status event types,
// which differ only in which ExecutionStatus they record.
func terminalApplier(status types.ExecutionStatus) applierFunc {
	return func(ms *MutableState, event *types.HistoryEvent) error {
		ms.ExecutionInfo.Status = status
		ms.ExecutionInfo.CloseTime = event.Timestamp
		return ms.advanceOnly(event)
	}
}

func (ms *MutableState) applyExecutionStarted(event *types.HistoryEvent) error {
	attrs, ok := event.Attributes.(*types.ExecutionStartedAttributes)
	if !ok {
		return ms.advanceOnly(event)
	}
	ms.ExecutionInfo.WorkflowTypeName = attrs.WorkflowType
	ms.ExecutionInfo.TaskQueue = attrs.TaskQueue
	ms.ExecutionInfo.Input = attrs.Input
	ms.ExecutionInfo.ExecutionTimeout = attrs.ExecutionTimeout
	ms.ExecutionInfo.RunTimeout = attrs.RunTimeout
	ms.ExecutionInfo.TaskTimeout = attrs.TaskTimeout
	ms.ExecutionInfo.Status = types.ExecutionStatusRunning
	ms.ExecutionInfo.StartTime = event.Timestamp
	return ms.advanceOnly(event)
}

func (ms *MutableState) applyNodeCompleted(event *types.HistoryEvent) error {
	attrs, ok := event.Attributes.(*types.NodeCompletedAttributes)
	if !ok {
		return ms.advanceOnly(event)
	}
	ms.CompletedNodes[attrs.NodeID] = &types.NodeResult{
		NodeID:        attrs.NodeID,
		CompletedTime: event.Timestamp,
		Output:        attrs.Result,
	}
	return ms.advanceOnly(event)
}

func (ms *MutableState) applyNodeFailed(event *types.HistoryEvent) error {
	attrs, ok := event.Attributes.(*types.NodeFailedAttributes)
	if !ok {
		return ms.advanceOnly(event)
	}
	ms.CompletedNodes[attrs.NodeID] = &types.NodeResult{
		NodeID:         attrs.NodeID,
		CompletedTime:  event.Timestamp,
		FailureReason:  attrs.Reason,
		FailureDetails: attrs.Details,
	}
	return ms.advanceOnly(event)
}

func (ms *MutableState) applyTimerStarted(event *types.HistoryEvent) error {
	attrs, ok := event.Attributes.(*types.TimerStartedAttributes)
	if !ok {
		return ms.advanceOnly(event)
	}
	fireTime := event.Timestamp.Add(attrs.StartToFire)
	ms.PendingTimers[attrs.TimerID] = &types.TimerInfo{
		TimerID:        attrs.TimerID,
		StartedEventID: event.EventID,
		FireTime:       fireTime,
		ExpiryTime:     fireTime,
	}
	return ms.advanceOnly(event)
}

func (ms *MutableState) applyTimerFired(event *types.HistoryEvent) error {
	attrs, ok := event.Attributes.(*types.TimerFiredAttributes)
	if !ok {
		return ms.advanceOnly(event)
	}
	delete(ms.PendingTimers, attrs.TimerID)
	return ms.advanceOnly(event)
}

func (ms *MutableState) applyTimerCanceled(event *types.HistoryEvent) error {
	attrs, ok := event.Attributes.(*types.TimerCanceledAttributes)
	if !ok {
		return ms.advanceOnly(event)
	}
	delete(ms.PendingTimers, attrs.TimerID)
	return ms.advanceOnly(event)
}

func (ms *MutableState) applyActivityScheduled(event *types.HistoryEvent) error {
	attrs, ok := event.Attributes.(*types.ActivityScheduledAttributes)
	if !ok {
		return ms.advanceOnly(event)
	}
	ms.PendingActivities[event.EventID] = &types.ActivityInfo{
		ScheduledEventID: event.EventID,
		ActivityID:       attrs.ActivityID,
		ActivityType:     attrs.ActivityType,
		TaskQueue:        attrs.TaskQueue,
		Input:            attrs.Input,
		ScheduledTime:    event.Timestamp,
		HeartbeatTimeout: attrs.HeartbeatTimeout,
		ScheduleTimeout:  attrs.ScheduleToClose,
		StartToClose:     attrs.StartToClose,
	}
	return ms.advanceOnly(event)
}

func (ms *MutableState) applyActivityStarted(event *types.HistoryEvent) error {
	attrs, ok := event.Attributes.(*types.ActivityStartedAttributes)
	if !ok {
		return ms.advanceOnly(event)
	}
	if ai, exists := ms.PendingActivities[attrs.ScheduledEventID]; exists {
		ai.StartedEventID = event.EventID
		ai.StartedTime = event.Timestamp
		ai.Attempt = attrs.Attempt
	}
	return ms.advanceOnly(event)
}

func (ms *MutableState) applyActivityCompleted(event *types.HistoryEvent) error {
	attrs, ok := event.Attributes.(*types.ActivityCompletedAttributes)
	if !ok {
		return ms.advanceOnly(event)
	}
	delete(ms.PendingActivities, attrs.ScheduledEventID)
	return ms.advanceOnly(event)
}

func (ms *MutableState) applyActivityFailed(event *types.HistoryEvent) error {
	attrs, ok := event.Attributes.(*types.ActivityFailedAttributes)
	if !ok {
		return ms.advanceOnly(event)
	}
	delete(ms.PendingActivities, attrs.ScheduledEventID)
	return ms.advanceOnly(event)
}

func (ms *MutableState) AddPendingActivity(scheduledEventID int64, info *types.ActivityInfo) {
	ms.PendingActivities[scheduledEventID] = info
}

func (ms *MutableState) GetPendingActivity(scheduledEventID int64) (*types.ActivityInfo, bool) {
	info, ok := ms.PendingActivities[scheduledEventID]
	return info, ok
}

func (ms *MutableState) DeletePendingActivity(scheduledEventID int64) {
	delete(ms.PendingActivities, scheduledEventID)
}

func (ms *MutableState) AddPendingTimer(timerID string, info *types.TimerInfo) {
	ms.PendingTimers[timerID] = info
}

func (ms *MutableState) GetPendingTimer(timerID string) (*types.TimerInfo, bool) {
	info, ok := ms.PendingTimers[timerID]
	return info, ok
}

func (ms *MutableState) DeletePendingTimer(timerID string) {
	delete(ms.PendingTimers, timerID)
}

func (ms *MutableState) AddCompletedNode(nodeID string, result *types.NodeResult) {
	ms.CompletedNodes[nodeID] = result
}

func (ms *MutableState) GetCompletedNode(nodeID string) (*types.NodeResult, bool) {
	result, ok := ms.CompletedNodes[nodeID]
	return result, ok
}

func (ms *MutableState) AddBufferedEvent(event *types.HistoryEvent) {
	ms.BufferedEvents = append(ms.BufferedEvents, event)
}

func (ms *MutableState) ClearBufferedEvents() {
	ms.BufferedEvents = ms.BufferedEvents[:0]
}

func (ms *MutableState) GetNextEventID() int64 {
	return ms.NextEventID
}

func (ms *MutableState) IncrementNextEventID() int64 {
	id := ms.NextEventID
	ms.NextEventID++
	return id
}

func (ms *MutableState) IsWorkflowExecutionRunning() bool {
	return ms.ExecutionInfo != nil && ms.ExecutionInfo.Status == types.ExecutionStatusRunning
}

func (ms *MutableState) GetStartTime() time.Time {
	if ms.ExecutionInfo == nil {
		return time.Time{}
	}
	return ms.ExecutionInfo.StartTime
}

func (ms *MutableState) GetCloseTime() time.Time {
	if ms.ExecutionInfo == nil {
		return time.Time{}
	}
	return ms.ExecutionInfo.CloseTime
}
