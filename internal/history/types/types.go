package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	ErrExecutionNotFound       = errors.New("execution not found")
	ErrOptimisticLock          = errors.New("optimistic lock failure")
	ErrAttributesTypeMismatch  = errors.New("event attributes do not match event type")
)

type EventType int32

const (
	EventTypeUnspecified EventType = iota
	EventTypeExecutionStarted
	EventTypeExecutionCompleted
	EventTypeExecutionFailed
	EventTypeExecutionTerminated
	EventTypeNodeScheduled
	EventTypeNodeStarted
	EventTypeNodeCompleted
	EventTypeNodeFailed
	EventTypeNodeTimedOut
	EventTypeTimerStarted
	EventTypeTimerFired
	EventTypeTimerCanceled
	EventTypeActivityScheduled
	EventTypeActivityStarted
	EventTypeActivityCompleted
	EventTypeActivityFailed
	EventTypeActivityTimedOut
	EventTypeSignalReceived
	EventTypeMarkerRecorded
	EventTypeWorkflowTaskScheduled
	EventTypeWorkflowTaskStarted
	EventTypeWorkflowTaskCompleted
	EventTypeWorkflowTaskFailed
	EventTypeWorkflowTaskTimedOut
)

func (e EventType) String() string {
	names := map[EventType]string{
		EventTypeUnspecified:           "Unspecified",
		EventTypeExecutionStarted:      "ExecutionStarted",
		EventTypeExecutionCompleted:    "ExecutionCompleted",
		EventTypeExecutionFailed:       "ExecutionFailed",
		EventTypeExecutionTerminated:   "ExecutionTerminated",
		EventTypeNodeScheduled:         "NodeScheduled",
		EventTypeNodeStarted:           "NodeStarted",
		EventTypeNodeCompleted:         "NodeCompleted",
		EventTypeNodeFailed:            "NodeFailed",
		EventTypeNodeTimedOut:          "NodeTimedOut",
		EventTypeTimerStarted:          "TimerStarted",
		EventTypeTimerFired:            "TimerFired",
		EventTypeTimerCanceled:         "TimerCanceled",
		EventTypeActivityScheduled:     "ActivityScheduled",
		EventTypeActivityStarted:       "ActivityStarted",
		EventTypeActivityCompleted:     "ActivityCompleted",
		EventTypeActivityFailed:        "ActivityFailed",
		EventTypeActivityTimedOut:      "ActivityTimedOut",
		EventTypeSignalReceived:        "SignalReceived",
		EventTypeMarkerRecorded:        "MarkerRecorded",
		EventTypeWorkflowTaskScheduled: "WorkflowTaskScheduled",
		EventTypeWorkflowTaskStarted:   "WorkflowTaskStarted",
		EventTypeWorkflowTaskCompleted: "WorkflowTaskCompleted",
		EventTypeWorkflowTaskFailed:    "WorkflowTaskFailed",
		EventTypeWorkflowTaskTimedOut:  "WorkflowTaskTimedOut",
	}
	if name, ok := names[e]; ok {
		return name
	}
	return "Unknown"
}

type ExecutionStatus int32

const (
	ExecutionStatusUnspecified ExecutionStatus = iota
	ExecutionStatusRunning
	ExecutionStatusCompleted
	ExecutionStatusFailed
	ExecutionStatusTerminated
	ExecutionStatusTimedOut
)

type ExecutionKey struct {
	NamespaceID string
	WorkflowID  string
	RunID       string
}

type ExecutionInfo struct {
	NamespaceID       string
	WorkflowID        string
	RunID             string
	WorkflowTypeName  string
	TaskQueue         string
	Input             []byte
	Status            ExecutionStatus
	StartTime         time.Time
	CloseTime         time.Time
	ExecutionTimeout  time.Duration
	RunTimeout        time.Duration
	TaskTimeout       time.Duration
	LastEventTaskID   int64
	LastProcessedNode string
}

type ActivityInfo struct {
	ScheduledEventID int64
	StartedEventID   int64
	ActivityID       string
	ActivityType     string
	TaskQueue        string
	Input            []byte
	ScheduledTime    time.Time
	StartedTime      time.Time
	Attempt          int32
	MaxRetries       int32
	HeartbeatTimeout time.Duration
	ScheduleTimeout  time.Duration
	StartToClose     time.Duration
	HeartbeatDetails []byte
	LastHeartbeat    time.Time
}

type TimerInfo struct {
	TimerID        string
	StartedEventID int64
	FireTime       time.Time
	ExpiryTime     time.Time
	TaskStatus     int32
}

type NodeResult struct {
	NodeID         string
	CompletedTime  time.Time
	Output         []byte
	FailureReason  string
	FailureDetails []byte
}

type HistoryEvent struct {
	EventID    int64
	EventType  EventType
	Timestamp  time.Time
	Version    int64
	TaskID     int64
	Attributes Attributes
}

// historyEventWire is the JSON shape HistoryEvent round-trips through: the
// tagged union is flattened to an explicit {type, payload} envelope rather
// than relying on json's (impossible) ability to pick a concrete type for
// an interface field on decode.
type historyEventWire struct {
	EventID    int64           `json:"eventId"`
	EventType  EventType       `json:"eventType"`
	Timestamp  time.Time       `json:"timestamp"`
	Version    int64           `json:"version"`
	TaskID     int64           `json:"taskId"`
	Attributes json.RawMessage `json:"attributes,omitempty"`
}

func (e HistoryEvent) MarshalJSON() ([]byte, error) {
	wire := historyEventWire{
		EventID:   e.EventID,
		EventType: e.EventType,
		Timestamp: e.Timestamp,
		Version:   e.Version,
		TaskID:    e.TaskID,
	}
	if e.Attributes != nil {
		payload, err := json.Marshal(e.Attributes)
		if err != nil {
			return nil, fmt.Errorf("marshal event %d attributes: %w", e.EventID, err)
		}
		wire.Attributes = payload
	}
	return json.Marshal(wire)
}

func (e *HistoryEvent) UnmarshalJSON(data []byte) error {
	var wire historyEventWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	e.EventID = wire.EventID
	e.EventType = wire.EventType
	e.Timestamp = wire.Timestamp
	e.Version = wire.Version
	e.TaskID = wire.TaskID
	if len(wire.Attributes) == 0 {
		return nil
	}
	attrs, err := DecodeAttributes(Envelope{Type: wire.EventType, Payload: wire.Attributes})
	if err != nil {
		return err
	}
	e.Attributes = attrs
	return nil
}

// Attributes is the tagged union of per-event-type payloads. Every
// *XxxAttributes struct below implements it via the unexported marker
// method, so only types declared in this package can satisfy it. The
// pointer receiver matches how HistoryEvent.Attributes is populated
// throughout the engine (&types.XxxAttributes{...}).
type Attributes interface {
	isAttributes()
}

// AttributesFor returns a new zero-value pointer to the Attributes variant
// that EventType expects, or false if t has no known variant. Used to
// decode a persisted {type, payload} envelope back into a concrete struct.
func AttributesFor(t EventType) (Attributes, bool) {
	switch t {
	case EventTypeExecutionStarted:
		return &ExecutionStartedAttributes{}, true
	case EventTypeExecutionCompleted:
		return &ExecutionCompletedAttributes{}, true
	case EventTypeExecutionFailed:
		return &ExecutionFailedAttributes{}, true
	case EventTypeExecutionTerminated:
		return &ExecutionTerminatedAttributes{}, true
	case EventTypeNodeScheduled:
		return &NodeScheduledAttributes{}, true
	case EventTypeNodeStarted:
		return &NodeStartedAttributes{}, true
	case EventTypeNodeCompleted:
		return &NodeCompletedAttributes{}, true
	case EventTypeNodeFailed, EventTypeNodeTimedOut:
		return &NodeFailedAttributes{}, true
	case EventTypeTimerStarted:
		return &TimerStartedAttributes{}, true
	case EventTypeTimerFired:
		return &TimerFiredAttributes{}, true
	case EventTypeTimerCanceled:
		return &TimerCanceledAttributes{}, true
	case EventTypeActivityScheduled:
		return &ActivityScheduledAttributes{}, true
	case EventTypeActivityStarted:
		return &ActivityStartedAttributes{}, true
	case EventTypeActivityCompleted:
		return &ActivityCompletedAttributes{}, true
	case EventTypeActivityFailed, EventTypeActivityTimedOut:
		return &ActivityFailedAttributes{}, true
	case EventTypeSignalReceived:
		return &SignalReceivedAttributes{}, true
	case EventTypeMarkerRecorded:
		return &MarkerRecordedAttributes{}, true
	case EventTypeWorkflowTaskScheduled:
		return &WorkflowTaskScheduledAttributes{}, true
	case EventTypeWorkflowTaskStarted:
		return &WorkflowTaskStartedAttributes{}, true
	case EventTypeWorkflowTaskCompleted:
		return &WorkflowTaskCompletedAttributes{}, true
	case EventTypeWorkflowTaskFailed, EventTypeWorkflowTaskTimedOut:
		return &WorkflowTaskFailedAttributes{}, true
	default:
		return nil, false
	}
}

type ExecutionStartedAttributes struct {
	WorkflowType     string
	TaskQueue        string
	Input            []byte
	ExecutionTimeout time.Duration
	RunTimeout       time.Duration
	TaskTimeout      time.Duration
	ParentExecution  *ExecutionKey
	Initiator        string
}

type ExecutionCompletedAttributes struct {
	Result []byte
}

type ExecutionFailedAttributes struct {
	Reason  string
	Details []byte
}

type ExecutionTerminatedAttributes struct {
	Reason   string
	Identity string
}

type NodeScheduledAttributes struct {
	NodeID    string
	NodeType  string
	Input     []byte
	TaskQueue string
}

type NodeStartedAttributes struct {
	NodeID           string
	ScheduledEventID int64
	Identity         string
}

type NodeCompletedAttributes struct {
	NodeID           string
	ScheduledEventID int64
	StartedEventID   int64
	Result           []byte
	Logs             []byte
}

type NodeFailedAttributes struct {
	NodeID           string
	ScheduledEventID int64
	StartedEventID   int64
	Reason           string
	Details          []byte
	RetryState       int32
	Logs             []byte
}

type TimerStartedAttributes struct {
	TimerID     string
	StartToFire time.Duration
}

type TimerFiredAttributes struct {
	TimerID        string
	StartedEventID int64
}

type TimerCanceledAttributes struct {
	TimerID        string
	StartedEventID int64
	Identity       string
}

type ActivityScheduledAttributes struct {
	ActivityID       string
	ActivityType     string
	TaskQueue        string
	Input            []byte
	ScheduleToClose  time.Duration
	ScheduleToStart  time.Duration
	StartToClose     time.Duration
	HeartbeatTimeout time.Duration
	RetryPolicy      *RetryPolicy
}

type ActivityStartedAttributes struct {
	ScheduledEventID int64
	Identity         string
	Attempt          int32
}

type ActivityCompletedAttributes struct {
	ScheduledEventID int64
	StartedEventID   int64
	Result           []byte
}

type ActivityFailedAttributes struct {
	ScheduledEventID int64
	StartedEventID   int64
	Reason           string
	Details          []byte
	RetryState       int32
}

type RetryPolicy struct {
	InitialInterval    time.Duration
	BackoffCoefficient float64
	MaxInterval        time.Duration
	MaxAttempts        int32
}

type SignalReceivedAttributes struct {
	SignalName string
	Input      []byte
	Identity   string
}

type MarkerRecordedAttributes struct {
	MarkerName string
	Details    map[string][]byte
}

type WorkflowTaskScheduledAttributes struct {
	TaskQueue    string
	StartToClose time.Duration
	Attempt      int32
}

type WorkflowTaskStartedAttributes struct {
	ScheduledEventID int64
	Identity         string
	RequestID        string
}

type WorkflowTaskCompletedAttributes struct {
	ScheduledEventID int64
	StartedEventID   int64
	Identity         string
	BinaryChecksum   string
}

type WorkflowTaskFailedAttributes struct {
	ScheduledEventID int64
	StartedEventID   int64
	Cause            string
	FailureReason    string
	FailureDetails   []byte
	Identity         string
	BinaryChecksum   string
}

type WorkflowTaskTimedOutAttributes struct {
	ScheduledEventID int64
	StartedEventID   int64
	TimeoutType      string
}

func (*ExecutionStartedAttributes) isAttributes()     {}
func (*ExecutionCompletedAttributes) isAttributes()   {}
func (*ExecutionFailedAttributes) isAttributes()      {}
func (*ExecutionTerminatedAttributes) isAttributes()  {}
func (*NodeScheduledAttributes) isAttributes()        {}
func (*NodeStartedAttributes) isAttributes()          {}
func (*NodeCompletedAttributes) isAttributes()        {}
func (*NodeFailedAttributes) isAttributes()           {}
func (*TimerStartedAttributes) isAttributes()         {}
func (*TimerFiredAttributes) isAttributes()           {}
func (*TimerCanceledAttributes) isAttributes()        {}
func (*ActivityScheduledAttributes) isAttributes()    {}
func (*ActivityStartedAttributes) isAttributes()      {}
func (*ActivityCompletedAttributes) isAttributes()    {}
func (*ActivityFailedAttributes) isAttributes()       {}
func (*SignalReceivedAttributes) isAttributes()       {}
func (*MarkerRecordedAttributes) isAttributes()       {}
func (*WorkflowTaskScheduledAttributes) isAttributes() {}
func (*WorkflowTaskStartedAttributes) isAttributes()   {}
func (*WorkflowTaskCompletedAttributes) isAttributes() {}
func (*WorkflowTaskFailedAttributes) isAttributes()    {}
func (*WorkflowTaskTimedOutAttributes) isAttributes()  {}

// Envelope is the on-the-wire/on-disk representation of a HistoryEvent's
// Attributes: a discriminant plus the raw encoded payload, so decoding can
// dispatch to AttributesFor(Type) before unmarshaling the concrete struct.
type Envelope struct {
	Type    EventType       `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// EncodeAttributes produces the persisted envelope for an event's Attributes.
func EncodeAttributes(t EventType, attrs Attributes) (Envelope, error) {
	payload, err := json.Marshal(attrs)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode attributes for %s: %w", t, err)
	}
	return Envelope{Type: t, Payload: payload}, nil
}

// DecodeAttributes reverses EncodeAttributes, producing the concrete
// *XxxAttributes value for env.Type.
func DecodeAttributes(env Envelope) (Attributes, error) {
	attrs, ok := AttributesFor(env.Type)
	if !ok {
		return nil, fmt.Errorf("%w: unknown event type %s", ErrAttributesTypeMismatch, env.Type)
	}
	if len(env.Payload) == 0 {
		return attrs, nil
	}
	if err := json.Unmarshal(env.Payload, attrs); err != nil {
		return nil, fmt.Errorf("decode attributes for %s: %w", env.Type, err)
	}
	return attrs, nil
}
