// Package historyv1 is the request/response and event-attribute surface
// for the History service named in spec §4.1 and §6. Hand-maintained in
// the shape protoc-gen-go/protoc-gen-go-grpc would produce; see
// internal/rpc for the JSON transport that replaces protobuf wire
// encoding in this build.
package historyv1

import (
	"encoding/json"
	"fmt"

	apiv1 "github.com/linkflow/engine/api/gen/linkflow/api/v1"
	commonv1 "github.com/linkflow/engine/api/gen/linkflow/common/v1"
	"google.golang.org/protobuf/types/known/timestamppb"
)

// --- event attribute payloads, one struct per EventType variant ---

type ExecutionStartedEventAttributes struct {
	WorkflowType *apiv1.WorkflowType  `json:"workflowType,omitempty"`
	TaskQueue    *apiv1.TaskQueue     `json:"taskQueue,omitempty"`
	Input        *commonv1.Payloads   `json:"input,omitempty"`
}

func (m *ExecutionStartedEventAttributes) GetWorkflowType() *apiv1.WorkflowType {
	if m == nil {
		return nil
	}
	return m.WorkflowType
}

func (m *ExecutionStartedEventAttributes) GetTaskQueue() *apiv1.TaskQueue {
	if m == nil {
		return nil
	}
	return m.TaskQueue
}

func (m *ExecutionStartedEventAttributes) GetInput() *commonv1.Payloads {
	if m == nil {
		return nil
	}
	return m.Input
}

type ExecutionCompletedEventAttributes struct {
	Result *commonv1.Payloads `json:"result,omitempty"`
}

func (m *ExecutionCompletedEventAttributes) GetResult() *commonv1.Payloads {
	if m == nil {
		return nil
	}
	return m.Result
}

type ExecutionFailedEventAttributes struct {
	Failure *commonv1.Failure `json:"failure,omitempty"`
}

func (m *ExecutionFailedEventAttributes) GetFailure() *commonv1.Failure {
	if m == nil {
		return nil
	}
	return m.Failure
}

type ExecutionTerminatedEventAttributes struct {
	Reason   string `json:"reason,omitempty"`
	Identity string `json:"identity,omitempty"`
}

func (m *ExecutionTerminatedEventAttributes) GetReason() string {
	if m == nil {
		return ""
	}
	return m.Reason
}

type NodeScheduledEventAttributes struct {
	NodeId    string             `json:"nodeId,omitempty"`
	NodeType  string             `json:"nodeType,omitempty"`
	Name      string             `json:"name,omitempty"`
	TaskQueue *apiv1.TaskQueue   `json:"taskQueue,omitempty"`
	Input     *commonv1.Payloads `json:"input,omitempty"`
}

func (m *NodeScheduledEventAttributes) GetNodeId() string {
	if m == nil {
		return ""
	}
	return m.NodeId
}

func (m *NodeScheduledEventAttributes) GetNodeType() string {
	if m == nil {
		return ""
	}
	return m.NodeType
}

func (m *NodeScheduledEventAttributes) GetName() string {
	if m == nil {
		return ""
	}
	return m.Name
}

func (m *NodeScheduledEventAttributes) GetTaskQueue() *apiv1.TaskQueue {
	if m == nil {
		return nil
	}
	return m.TaskQueue
}

func (m *NodeScheduledEventAttributes) GetInput() *commonv1.Payloads {
	if m == nil {
		return nil
	}
	return m.Input
}

type NodeStartedEventAttributes struct {
	ScheduledEventId int64  `json:"scheduledEventId,omitempty"`
	Identity         string `json:"identity,omitempty"`
}

func (m *NodeStartedEventAttributes) GetScheduledEventId() int64 {
	if m == nil {
		return 0
	}
	return m.ScheduledEventId
}

func (m *NodeStartedEventAttributes) GetIdentity() string {
	if m == nil {
		return ""
	}
	return m.Identity
}

type NodeCompletedEventAttributes struct {
	ScheduledEventId int64              `json:"scheduledEventId,omitempty"`
	StartedEventId   int64              `json:"startedEventId,omitempty"`
	Result           *commonv1.Payloads `json:"result,omitempty"`
	Logs             *commonv1.Payloads `json:"logs,omitempty"`
}

func (m *NodeCompletedEventAttributes) GetScheduledEventId() int64 {
	if m == nil {
		return 0
	}
	return m.ScheduledEventId
}

func (m *NodeCompletedEventAttributes) GetStartedEventId() int64 {
	if m == nil {
		return 0
	}
	return m.StartedEventId
}

func (m *NodeCompletedEventAttributes) GetResult() *commonv1.Payloads {
	if m == nil {
		return nil
	}
	return m.Result
}

func (m *NodeCompletedEventAttributes) GetLogs() *commonv1.Payloads {
	if m == nil {
		return nil
	}
	return m.Logs
}

type NodeFailedEventAttributes struct {
	ScheduledEventId int64              `json:"scheduledEventId,omitempty"`
	StartedEventId   int64              `json:"startedEventId,omitempty"`
	Failure          *commonv1.Failure  `json:"failure,omitempty"`
	Logs             *commonv1.Payloads `json:"logs,omitempty"`
}

func (m *NodeFailedEventAttributes) GetScheduledEventId() int64 {
	if m == nil {
		return 0
	}
	return m.ScheduledEventId
}

func (m *NodeFailedEventAttributes) GetStartedEventId() int64 {
	if m == nil {
		return 0
	}
	return m.StartedEventId
}

func (m *NodeFailedEventAttributes) GetFailure() *commonv1.Failure {
	if m == nil {
		return nil
	}
	return m.Failure
}

func (m *NodeFailedEventAttributes) GetLogs() *commonv1.Payloads {
	if m == nil {
		return nil
	}
	return m.Logs
}

type TimerStartedEventAttributes struct {
	TimerId                   string `json:"timerId,omitempty"`
	StartToFireTimeoutSeconds int64  `json:"startToFireTimeoutSeconds,omitempty"`
}

func (m *TimerStartedEventAttributes) GetTimerId() string {
	if m == nil {
		return ""
	}
	return m.TimerId
}

type TimerFiredEventAttributes struct {
	TimerId        string `json:"timerId,omitempty"`
	StartedEventId int64  `json:"startedEventId,omitempty"`
}

func (m *TimerFiredEventAttributes) GetTimerId() string {
	if m == nil {
		return ""
	}
	return m.TimerId
}

func (m *TimerFiredEventAttributes) GetStartedEventId() int64 {
	if m == nil {
		return 0
	}
	return m.StartedEventId
}

type TimerCanceledEventAttributes struct {
	TimerId  string `json:"timerId,omitempty"`
	Identity string `json:"identity,omitempty"`
}

type SignalReceivedEventAttributes struct {
	SignalName string             `json:"signalName,omitempty"`
	Input      *commonv1.Payloads `json:"input,omitempty"`
	Identity   string             `json:"identity,omitempty"`
}

// isHistoryEvent_Attributes marks the oneof wrapper types below, mirroring
// the pattern protoc-gen-go emits for a oneof field.
type isHistoryEvent_Attributes interface {
	isHistoryEvent_Attributes()
}

type HistoryEvent_ExecutionStartedAttributes struct {
	ExecutionStartedAttributes *ExecutionStartedEventAttributes `json:"executionStartedAttributes,omitempty"`
}

func (*HistoryEvent_ExecutionStartedAttributes) isHistoryEvent_Attributes() {}

type HistoryEvent_ExecutionCompletedAttributes struct {
	ExecutionCompletedAttributes *ExecutionCompletedEventAttributes `json:"executionCompletedAttributes,omitempty"`
}

func (*HistoryEvent_ExecutionCompletedAttributes) isHistoryEvent_Attributes() {}

type HistoryEvent_ExecutionFailedAttributes struct {
	ExecutionFailedAttributes *ExecutionFailedEventAttributes `json:"executionFailedAttributes,omitempty"`
}

func (*HistoryEvent_ExecutionFailedAttributes) isHistoryEvent_Attributes() {}

type HistoryEvent_ExecutionTerminatedAttributes struct {
	ExecutionTerminatedAttributes *ExecutionTerminatedEventAttributes `json:"executionTerminatedAttributes,omitempty"`
}

func (*HistoryEvent_ExecutionTerminatedAttributes) isHistoryEvent_Attributes() {}

type HistoryEvent_NodeScheduledAttributes struct {
	NodeScheduledAttributes *NodeScheduledEventAttributes `json:"nodeScheduledAttributes,omitempty"`
}

func (*HistoryEvent_NodeScheduledAttributes) isHistoryEvent_Attributes() {}

type HistoryEvent_NodeStartedAttributes struct {
	NodeStartedAttributes *NodeStartedEventAttributes `json:"nodeStartedAttributes,omitempty"`
}

func (*HistoryEvent_NodeStartedAttributes) isHistoryEvent_Attributes() {}

type HistoryEvent_NodeCompletedAttributes struct {
	NodeCompletedAttributes *NodeCompletedEventAttributes `json:"nodeCompletedAttributes,omitempty"`
}

func (*HistoryEvent_NodeCompletedAttributes) isHistoryEvent_Attributes() {}

type HistoryEvent_NodeFailedAttributes struct {
	NodeFailedAttributes *NodeFailedEventAttributes `json:"nodeFailedAttributes,omitempty"`
}

func (*HistoryEvent_NodeFailedAttributes) isHistoryEvent_Attributes() {}

type HistoryEvent_TimerStartedAttributes struct {
	TimerStartedAttributes *TimerStartedEventAttributes `json:"timerStartedAttributes,omitempty"`
}

func (*HistoryEvent_TimerStartedAttributes) isHistoryEvent_Attributes() {}

type HistoryEvent_TimerFiredAttributes struct {
	TimerFiredAttributes *TimerFiredEventAttributes `json:"timerFiredAttributes,omitempty"`
}

func (*HistoryEvent_TimerFiredAttributes) isHistoryEvent_Attributes() {}

type HistoryEvent_TimerCanceledAttributes struct {
	TimerCanceledAttributes *TimerCanceledEventAttributes `json:"timerCanceledAttributes,omitempty"`
}

func (*HistoryEvent_TimerCanceledAttributes) isHistoryEvent_Attributes() {}

type HistoryEvent_SignalReceivedAttributes struct {
	SignalReceivedAttributes *SignalReceivedEventAttributes `json:"signalReceivedAttributes,omitempty"`
}

func (*HistoryEvent_SignalReceivedAttributes) isHistoryEvent_Attributes() {}

// HistoryEvent is one append-only record in a run's event log (spec §3).
type HistoryEvent struct {
	EventId   int64                     `json:"eventId,omitempty"`
	EventType commonv1.EventType        `json:"eventType,omitempty"`
	EventTime *timestamppb.Timestamp    `json:"eventTime,omitempty"`
	Version   int64                     `json:"version,omitempty"`
	TaskId    string                    `json:"taskId,omitempty"`
	Attributes isHistoryEvent_Attributes `json:"-"`
}

func (m *HistoryEvent) GetEventId() int64 {
	if m == nil {
		return 0
	}
	return m.EventId
}

func (m *HistoryEvent) GetEventType() commonv1.EventType {
	if m == nil {
		return commonv1.EventType_EVENT_TYPE_UNSPECIFIED
	}
	return m.EventType
}

func (m *HistoryEvent) GetEventTime() *timestamppb.Timestamp {
	if m == nil {
		return nil
	}
	return m.EventTime
}

func (m *HistoryEvent) GetVersion() int64 {
	if m == nil {
		return 0
	}
	return m.Version
}

func (m *HistoryEvent) GetTaskId() string {
	if m == nil {
		return ""
	}
	return m.TaskId
}

func (m *HistoryEvent) GetExecutionStartedAttributes() *ExecutionStartedEventAttributes {
	if x, ok := m.GetAttributes().(*HistoryEvent_ExecutionStartedAttributes); ok {
		return x.ExecutionStartedAttributes
	}
	return nil
}

func (m *HistoryEvent) GetExecutionCompletedAttributes() *ExecutionCompletedEventAttributes {
	if x, ok := m.GetAttributes().(*HistoryEvent_ExecutionCompletedAttributes); ok {
		return x.ExecutionCompletedAttributes
	}
	return nil
}

func (m *HistoryEvent) GetExecutionFailedAttributes() *ExecutionFailedEventAttributes {
	if x, ok := m.GetAttributes().(*HistoryEvent_ExecutionFailedAttributes); ok {
		return x.ExecutionFailedAttributes
	}
	return nil
}

func (m *HistoryEvent) GetExecutionTerminatedAttributes() *ExecutionTerminatedEventAttributes {
	if x, ok := m.GetAttributes().(*HistoryEvent_ExecutionTerminatedAttributes); ok {
		return x.ExecutionTerminatedAttributes
	}
	return nil
}

func (m *HistoryEvent) GetNodeScheduledAttributes() *NodeScheduledEventAttributes {
	if x, ok := m.GetAttributes().(*HistoryEvent_NodeScheduledAttributes); ok {
		return x.NodeScheduledAttributes
	}
	return nil
}

func (m *HistoryEvent) GetNodeStartedAttributes() *NodeStartedEventAttributes {
	if x, ok := m.GetAttributes().(*HistoryEvent_NodeStartedAttributes); ok {
		return x.NodeStartedAttributes
	}
	return nil
}

func (m *HistoryEvent) GetNodeCompletedAttributes() *NodeCompletedEventAttributes {
	if x, ok := m.GetAttributes().(*HistoryEvent_NodeCompletedAttributes); ok {
		return x.NodeCompletedAttributes
	}
	return nil
}

func (m *HistoryEvent) GetNodeFailedAttributes() *NodeFailedEventAttributes {
	if x, ok := m.GetAttributes().(*HistoryEvent_NodeFailedAttributes); ok {
		return x.NodeFailedAttributes
	}
	return nil
}

func (m *HistoryEvent) GetTimerStartedAttributes() *TimerStartedEventAttributes {
	if x, ok := m.GetAttributes().(*HistoryEvent_TimerStartedAttributes); ok {
		return x.TimerStartedAttributes
	}
	return nil
}

func (m *HistoryEvent) GetTimerFiredAttributes() *TimerFiredEventAttributes {
	if x, ok := m.GetAttributes().(*HistoryEvent_TimerFiredAttributes); ok {
		return x.TimerFiredAttributes
	}
	return nil
}

func (m *HistoryEvent) GetTimerCanceledAttributes() *TimerCanceledEventAttributes {
	if x, ok := m.GetAttributes().(*HistoryEvent_TimerCanceledAttributes); ok {
		return x.TimerCanceledAttributes
	}
	return nil
}

func (m *HistoryEvent) GetSignalReceivedAttributes() *SignalReceivedEventAttributes {
	if x, ok := m.GetAttributes().(*HistoryEvent_SignalReceivedAttributes); ok {
		return x.SignalReceivedAttributes
	}
	return nil
}

func (m *HistoryEvent) GetAttributes() isHistoryEvent_Attributes {
	if m == nil {
		return nil
	}
	return m.Attributes
}

// historyEventWire is the flat JSON shape HistoryEvent marshals to/from:
// the oneof collapses to whichever named attribute field is non-nil,
// the same convention protobuf's JSON mapping uses for oneofs.
type historyEventWire struct {
	EventId   int64                  `json:"eventId,omitempty"`
	EventType commonv1.EventType     `json:"eventType,omitempty"`
	EventTime *timestamppb.Timestamp `json:"eventTime,omitempty"`
	Version   int64                  `json:"version,omitempty"`
	TaskId    string                 `json:"taskId,omitempty"`

	ExecutionStartedAttributes    *ExecutionStartedEventAttributes    `json:"executionStartedAttributes,omitempty"`
	ExecutionCompletedAttributes  *ExecutionCompletedEventAttributes  `json:"executionCompletedAttributes,omitempty"`
	ExecutionFailedAttributes     *ExecutionFailedEventAttributes     `json:"executionFailedAttributes,omitempty"`
	ExecutionTerminatedAttributes *ExecutionTerminatedEventAttributes `json:"executionTerminatedAttributes,omitempty"`
	NodeScheduledAttributes       *NodeScheduledEventAttributes       `json:"nodeScheduledAttributes,omitempty"`
	NodeStartedAttributes         *NodeStartedEventAttributes         `json:"nodeStartedAttributes,omitempty"`
	NodeCompletedAttributes       *NodeCompletedEventAttributes       `json:"nodeCompletedAttributes,omitempty"`
	NodeFailedAttributes          *NodeFailedEventAttributes          `json:"nodeFailedAttributes,omitempty"`
	TimerStartedAttributes        *TimerStartedEventAttributes        `json:"timerStartedAttributes,omitempty"`
	TimerFiredAttributes          *TimerFiredEventAttributes          `json:"timerFiredAttributes,omitempty"`
	TimerCanceledAttributes       *TimerCanceledEventAttributes       `json:"timerCanceledAttributes,omitempty"`
	SignalReceivedAttributes      *SignalReceivedEventAttributes      `json:"signalReceivedAttributes,omitempty"`
}

func (m *HistoryEvent) MarshalJSON() ([]byte, error) {
	w := historyEventWire{
		EventId:   m.EventId,
		EventType: m.EventType,
		EventTime: m.EventTime,
		Version:   m.Version,
		TaskId:    m.TaskId,
	}
	switch a := m.Attributes.(type) {
	case *HistoryEvent_ExecutionStartedAttributes:
		w.ExecutionStartedAttributes = a.ExecutionStartedAttributes
	case *HistoryEvent_ExecutionCompletedAttributes:
		w.ExecutionCompletedAttributes = a.ExecutionCompletedAttributes
	case *HistoryEvent_ExecutionFailedAttributes:
		w.ExecutionFailedAttributes = a.ExecutionFailedAttributes
	case *HistoryEvent_ExecutionTerminatedAttributes:
		w.ExecutionTerminatedAttributes = a.ExecutionTerminatedAttributes
	case *HistoryEvent_NodeScheduledAttributes:
		w.NodeScheduledAttributes = a.NodeScheduledAttributes
	case *HistoryEvent_NodeStartedAttributes:
		w.NodeStartedAttributes = a.NodeStartedAttributes
	case *HistoryEvent_NodeCompletedAttributes:
		w.NodeCompletedAttributes = a.NodeCompletedAttributes
	case *HistoryEvent_NodeFailedAttributes:
		w.NodeFailedAttributes = a.NodeFailedAttributes
	case *HistoryEvent_TimerStartedAttributes:
		w.TimerStartedAttributes = a.TimerStartedAttributes
	case *HistoryEvent_TimerFiredAttributes:
		w.TimerFiredAttributes = a.TimerFiredAttributes
	case *HistoryEvent_TimerCanceledAttributes:
		w.TimerCanceledAttributes = a.TimerCanceledAttributes
	case *HistoryEvent_SignalReceivedAttributes:
		w.SignalReceivedAttributes = a.SignalReceivedAttributes
	}
	return json.Marshal(w)
}

func (m *HistoryEvent) UnmarshalJSON(data []byte) error {
	var w historyEventWire
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("historyv1: unmarshal HistoryEvent: %w", err)
	}
	m.EventId = w.EventId
	m.EventType = w.EventType
	m.EventTime = w.EventTime
	m.Version = w.Version
	m.TaskId = w.TaskId

	switch {
	case w.ExecutionStartedAttributes != nil:
		m.Attributes = &HistoryEvent_ExecutionStartedAttributes{ExecutionStartedAttributes: w.ExecutionStartedAttributes}
	case w.ExecutionCompletedAttributes != nil:
		m.Attributes = &HistoryEvent_ExecutionCompletedAttributes{ExecutionCompletedAttributes: w.ExecutionCompletedAttributes}
	case w.ExecutionFailedAttributes != nil:
		m.Attributes = &HistoryEvent_ExecutionFailedAttributes{ExecutionFailedAttributes: w.ExecutionFailedAttributes}
	case w.ExecutionTerminatedAttributes != nil:
		m.Attributes = &HistoryEvent_ExecutionTerminatedAttributes{ExecutionTerminatedAttributes: w.ExecutionTerminatedAttributes}
	case w.NodeScheduledAttributes != nil:
		m.Attributes = &HistoryEvent_NodeScheduledAttributes{NodeScheduledAttributes: w.NodeScheduledAttributes}
	case w.NodeStartedAttributes != nil:
		m.Attributes = &HistoryEvent_NodeStartedAttributes{NodeStartedAttributes: w.NodeStartedAttributes}
	case w.NodeCompletedAttributes != nil:
		m.Attributes = &HistoryEvent_NodeCompletedAttributes{NodeCompletedAttributes: w.NodeCompletedAttributes}
	case w.NodeFailedAttributes != nil:
		m.Attributes = &HistoryEvent_NodeFailedAttributes{NodeFailedAttributes: w.NodeFailedAttributes}
	case w.TimerStartedAttributes != nil:
		m.Attributes = &HistoryEvent_TimerStartedAttributes{TimerStartedAttributes: w.TimerStartedAttributes}
	case w.TimerFiredAttributes != nil:
		m.Attributes = &HistoryEvent_TimerFiredAttributes{TimerFiredAttributes: w.TimerFiredAttributes}
	case w.TimerCanceledAttributes != nil:
		m.Attributes = &HistoryEvent_TimerCanceledAttributes{TimerCanceledAttributes: w.TimerCanceledAttributes}
	case w.SignalReceivedAttributes != nil:
		m.Attributes = &HistoryEvent_SignalReceivedAttributes{SignalReceivedAttributes: w.SignalReceivedAttributes}
	}
	return nil
}

// History is a contiguous slice of a run's event log.
type History struct {
	Events []*HistoryEvent `json:"events,omitempty"`
}

func (m *History) GetEvents() []*HistoryEvent {
	if m == nil {
		return nil
	}
	return m.Events
}
