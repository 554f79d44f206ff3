// Package commonv1 holds the message types shared across the engine's
// service boundaries (history, matching, api). It is hand-maintained in
// the shape protoc-gen-go would produce — plain structs, Getter methods,
// int32-backed enums — because this build has no protoc/buf toolchain;
// see internal/rpc for the JSON codec that carries these types over a
// real grpc.Server/grpc.ClientConn in place of protobuf wire encoding.
package commonv1

// WorkflowExecution addresses one run: a workflow ID plus the run ID
// that disambiguates repeated starts of the same logical workflow.
type WorkflowExecution struct {
	WorkflowId string `json:"workflowId,omitempty"`
	RunId      string `json:"runId,omitempty"`
}

func (m *WorkflowExecution) GetWorkflowId() string {
	if m == nil {
		return ""
	}
	return m.WorkflowId
}

func (m *WorkflowExecution) GetRunId() string {
	if m == nil {
		return ""
	}
	return m.RunId
}

// TaskQueueKind distinguishes a normal task queue from a sticky one
// pinned to a single poller identity (spec §4.2).
type TaskQueueKind int32

const (
	TaskQueueKind_TASK_QUEUE_KIND_UNSPECIFIED TaskQueueKind = 0
	TaskQueueKind_TASK_QUEUE_KIND_NORMAL      TaskQueueKind = 1
	TaskQueueKind_TASK_QUEUE_KIND_STICKY      TaskQueueKind = 2
)

func (k TaskQueueKind) String() string {
	switch k {
	case TaskQueueKind_TASK_QUEUE_KIND_NORMAL:
		return "TASK_QUEUE_KIND_NORMAL"
	case TaskQueueKind_TASK_QUEUE_KIND_STICKY:
		return "TASK_QUEUE_KIND_STICKY"
	default:
		return "TASK_QUEUE_KIND_UNSPECIFIED"
	}
}

// TaskType distinguishes the two task kinds Matching dispatches.
type TaskType int32

const (
	TaskType_TASK_TYPE_UNSPECIFIED   TaskType = 0
	TaskType_TASK_TYPE_WORKFLOW_TASK TaskType = 1
	TaskType_TASK_TYPE_ACTIVITY_TASK TaskType = 2
)

func (t TaskType) String() string {
	switch t {
	case TaskType_TASK_TYPE_WORKFLOW_TASK:
		return "TASK_TYPE_WORKFLOW_TASK"
	case TaskType_TASK_TYPE_ACTIVITY_TASK:
		return "TASK_TYPE_ACTIVITY_TASK"
	default:
		return "TASK_TYPE_UNSPECIFIED"
	}
}

// EventType enumerates every HistoryEvent variant named in spec §3.
type EventType int32

const (
	EventType_EVENT_TYPE_UNSPECIFIED             EventType = 0
	EventType_EVENT_TYPE_EXECUTION_STARTED       EventType = 1
	EventType_EVENT_TYPE_EXECUTION_COMPLETED     EventType = 2
	EventType_EVENT_TYPE_EXECUTION_FAILED        EventType = 3
	EventType_EVENT_TYPE_EXECUTION_TERMINATED    EventType = 4
	EventType_EVENT_TYPE_EXECUTION_TIMED_OUT     EventType = 5
	EventType_EVENT_TYPE_NODE_SCHEDULED          EventType = 6
	EventType_EVENT_TYPE_NODE_STARTED            EventType = 7
	EventType_EVENT_TYPE_NODE_COMPLETED          EventType = 8
	EventType_EVENT_TYPE_NODE_FAILED             EventType = 9
	EventType_EVENT_TYPE_NODE_TIMED_OUT          EventType = 10
	EventType_EVENT_TYPE_TIMER_STARTED           EventType = 11
	EventType_EVENT_TYPE_TIMER_FIRED             EventType = 12
	EventType_EVENT_TYPE_TIMER_CANCELLED         EventType = 13
	EventType_EVENT_TYPE_SIGNAL_RECEIVED         EventType = 14
	EventType_EVENT_TYPE_MARKER_RECORDED         EventType = 15
	EventType_EVENT_TYPE_WORKFLOW_TASK_SCHEDULED EventType = 16
	EventType_EVENT_TYPE_WORKFLOW_TASK_STARTED   EventType = 17
	EventType_EVENT_TYPE_WORKFLOW_TASK_COMPLETED EventType = 18
	EventType_EVENT_TYPE_WORKFLOW_TASK_FAILED    EventType = 19
	EventType_EVENT_TYPE_WORKFLOW_TASK_TIMED_OUT EventType = 20
)

var eventTypeNames = map[EventType]string{
	EventType_EVENT_TYPE_UNSPECIFIED:             "EVENT_TYPE_UNSPECIFIED",
	EventType_EVENT_TYPE_EXECUTION_STARTED:       "EVENT_TYPE_EXECUTION_STARTED",
	EventType_EVENT_TYPE_EXECUTION_COMPLETED:     "EVENT_TYPE_EXECUTION_COMPLETED",
	EventType_EVENT_TYPE_EXECUTION_FAILED:        "EVENT_TYPE_EXECUTION_FAILED",
	EventType_EVENT_TYPE_EXECUTION_TERMINATED:    "EVENT_TYPE_EXECUTION_TERMINATED",
	EventType_EVENT_TYPE_EXECUTION_TIMED_OUT:     "EVENT_TYPE_EXECUTION_TIMED_OUT",
	EventType_EVENT_TYPE_NODE_SCHEDULED:          "EVENT_TYPE_NODE_SCHEDULED",
	EventType_EVENT_TYPE_NODE_STARTED:            "EVENT_TYPE_NODE_STARTED",
	EventType_EVENT_TYPE_NODE_COMPLETED:          "EVENT_TYPE_NODE_COMPLETED",
	EventType_EVENT_TYPE_NODE_FAILED:             "EVENT_TYPE_NODE_FAILED",
	EventType_EVENT_TYPE_NODE_TIMED_OUT:          "EVENT_TYPE_NODE_TIMED_OUT",
	EventType_EVENT_TYPE_TIMER_STARTED:           "EVENT_TYPE_TIMER_STARTED",
	EventType_EVENT_TYPE_TIMER_FIRED:             "EVENT_TYPE_TIMER_FIRED",
	EventType_EVENT_TYPE_TIMER_CANCELLED:         "EVENT_TYPE_TIMER_CANCELLED",
	EventType_EVENT_TYPE_SIGNAL_RECEIVED:         "EVENT_TYPE_SIGNAL_RECEIVED",
	EventType_EVENT_TYPE_MARKER_RECORDED:         "EVENT_TYPE_MARKER_RECORDED",
	EventType_EVENT_TYPE_WORKFLOW_TASK_SCHEDULED: "EVENT_TYPE_WORKFLOW_TASK_SCHEDULED",
	EventType_EVENT_TYPE_WORKFLOW_TASK_STARTED:   "EVENT_TYPE_WORKFLOW_TASK_STARTED",
	EventType_EVENT_TYPE_WORKFLOW_TASK_COMPLETED: "EVENT_TYPE_WORKFLOW_TASK_COMPLETED",
	EventType_EVENT_TYPE_WORKFLOW_TASK_FAILED:    "EVENT_TYPE_WORKFLOW_TASK_FAILED",
	EventType_EVENT_TYPE_WORKFLOW_TASK_TIMED_OUT: "EVENT_TYPE_WORKFLOW_TASK_TIMED_OUT",
}

func (t EventType) String() string {
	if name, ok := eventTypeNames[t]; ok {
		return name
	}
	return "EVENT_TYPE_UNSPECIFIED"
}

// ExecutionStatus mirrors the execution lifecycle states in spec §3.
type ExecutionStatus int32

const (
	ExecutionStatus_EXECUTION_STATUS_UNSPECIFIED      ExecutionStatus = 0
	ExecutionStatus_EXECUTION_STATUS_RUNNING          ExecutionStatus = 1
	ExecutionStatus_EXECUTION_STATUS_COMPLETED        ExecutionStatus = 2
	ExecutionStatus_EXECUTION_STATUS_FAILED           ExecutionStatus = 3
	ExecutionStatus_EXECUTION_STATUS_CANCELLED        ExecutionStatus = 4
	ExecutionStatus_EXECUTION_STATUS_TERMINATED       ExecutionStatus = 5
	ExecutionStatus_EXECUTION_STATUS_TIMED_OUT        ExecutionStatus = 6
	ExecutionStatus_EXECUTION_STATUS_CONTINUED_AS_NEW ExecutionStatus = 7
)

func (s ExecutionStatus) String() string {
	switch s {
	case ExecutionStatus_EXECUTION_STATUS_RUNNING:
		return "EXECUTION_STATUS_RUNNING"
	case ExecutionStatus_EXECUTION_STATUS_COMPLETED:
		return "EXECUTION_STATUS_COMPLETED"
	case ExecutionStatus_EXECUTION_STATUS_FAILED:
		return "EXECUTION_STATUS_FAILED"
	case ExecutionStatus_EXECUTION_STATUS_CANCELLED:
		return "EXECUTION_STATUS_CANCELLED"
	case ExecutionStatus_EXECUTION_STATUS_TERMINATED:
		return "EXECUTION_STATUS_TERMINATED"
	case ExecutionStatus_EXECUTION_STATUS_TIMED_OUT:
		return "EXECUTION_STATUS_TIMED_OUT"
	case ExecutionStatus_EXECUTION_STATUS_CONTINUED_AS_NEW:
		return "EXECUTION_STATUS_CONTINUED_AS_NEW"
	default:
		return "EXECUTION_STATUS_UNSPECIFIED"
	}
}

// FailureType classifies a Failure for retry-policy decisions (spec §7).
type FailureType int32

const (
	FailureType_FAILURE_TYPE_UNSPECIFIED FailureType = 0
	FailureType_FAILURE_TYPE_APPLICATION FailureType = 1
	FailureType_FAILURE_TYPE_ACTIVITY    FailureType = 2
	FailureType_FAILURE_TYPE_TIMEOUT     FailureType = 3
	FailureType_FAILURE_TYPE_CANCELED    FailureType = 4
	FailureType_FAILURE_TYPE_TERMINATED  FailureType = 5
	FailureType_FAILURE_TYPE_SERVER      FailureType = 6
)

// Failure carries a node or workflow-task error back through history.
type Failure struct {
	Message     string      `json:"message,omitempty"`
	FailureType FailureType `json:"failureType,omitempty"`
	StackTrace  string      `json:"stackTrace,omitempty"`
}

func (m *Failure) GetMessage() string {
	if m == nil {
		return ""
	}
	return m.Message
}

func (m *Failure) GetFailureType() FailureType {
	if m == nil {
		return FailureType_FAILURE_TYPE_UNSPECIFIED
	}
	return m.FailureType
}

func (m *Failure) GetStackTrace() string {
	if m == nil {
		return ""
	}
	return m.StackTrace
}

// Payload is one opaque data blob; Payloads is the envelope every
// input/result/log field uses so multi-argument payloads have a home
// without changing the wire shape later.
type Payload struct {
	Metadata map[string]string `json:"metadata,omitempty"`
	Data     []byte            `json:"data,omitempty"`
}

func (m *Payload) GetData() []byte {
	if m == nil {
		return nil
	}
	return m.Data
}

func (m *Payload) GetMetadata() map[string]string {
	if m == nil {
		return nil
	}
	return m.Metadata
}

type Payloads struct {
	Payloads []*Payload `json:"payloads,omitempty"`
}

func (m *Payloads) GetPayloads() []*Payload {
	if m == nil {
		return nil
	}
	return m.Payloads
}
