package historyv1

import (
	"encoding/json"
	"fmt"

	commonv1 "github.com/linkflow/engine/api/gen/linkflow/common/v1"
)

// CommandType enumerates the decisions a workflow task completion can
// carry back to History (spec §4.1's "workflow task commands").
type CommandType int32

const (
	CommandType_COMMAND_TYPE_UNSPECIFIED                 CommandType = 0
	CommandType_COMMAND_TYPE_SCHEDULE_ACTIVITY_TASK       CommandType = 1
	CommandType_COMMAND_TYPE_COMPLETE_WORKFLOW_EXECUTION CommandType = 2
	CommandType_COMMAND_TYPE_FAIL_WORKFLOW_EXECUTION     CommandType = 3
	CommandType_COMMAND_TYPE_START_TIMER                 CommandType = 4
	CommandType_COMMAND_TYPE_CANCEL_TIMER                CommandType = 5
)

func (t CommandType) String() string {
	switch t {
	case CommandType_COMMAND_TYPE_SCHEDULE_ACTIVITY_TASK:
		return "COMMAND_TYPE_SCHEDULE_ACTIVITY_TASK"
	case CommandType_COMMAND_TYPE_COMPLETE_WORKFLOW_EXECUTION:
		return "COMMAND_TYPE_COMPLETE_WORKFLOW_EXECUTION"
	case CommandType_COMMAND_TYPE_FAIL_WORKFLOW_EXECUTION:
		return "COMMAND_TYPE_FAIL_WORKFLOW_EXECUTION"
	case CommandType_COMMAND_TYPE_START_TIMER:
		return "COMMAND_TYPE_START_TIMER"
	case CommandType_COMMAND_TYPE_CANCEL_TIMER:
		return "COMMAND_TYPE_CANCEL_TIMER"
	default:
		return "COMMAND_TYPE_UNSPECIFIED"
	}
}

type ScheduleActivityTaskCommandAttributes struct {
	NodeId    string             `json:"nodeId,omitempty"`
	NodeType  string             `json:"nodeType,omitempty"`
	Name      string             `json:"name,omitempty"`
	TaskQueue string             `json:"taskQueue,omitempty"`
	Input     *commonv1.Payloads `json:"input,omitempty"`
	Config    json.RawMessage    `json:"config,omitempty"`
}

func (m *ScheduleActivityTaskCommandAttributes) GetNodeId() string {
	if m == nil {
		return ""
	}
	return m.NodeId
}

func (m *ScheduleActivityTaskCommandAttributes) GetNodeType() string {
	if m == nil {
		return ""
	}
	return m.NodeType
}

func (m *ScheduleActivityTaskCommandAttributes) GetName() string {
	if m == nil {
		return ""
	}
	return m.Name
}

func (m *ScheduleActivityTaskCommandAttributes) GetTaskQueue() string {
	if m == nil {
		return ""
	}
	return m.TaskQueue
}

func (m *ScheduleActivityTaskCommandAttributes) GetConfig() json.RawMessage {
	if m == nil {
		return nil
	}
	return m.Config
}

func (m *ScheduleActivityTaskCommandAttributes) GetInput() *commonv1.Payloads {
	if m == nil {
		return nil
	}
	return m.Input
}

type CompleteWorkflowExecutionCommandAttributes struct {
	Result *commonv1.Payloads `json:"result,omitempty"`
}

func (m *CompleteWorkflowExecutionCommandAttributes) GetResult() *commonv1.Payloads {
	if m == nil {
		return nil
	}
	return m.Result
}

type FailWorkflowExecutionCommandAttributes struct {
	Failure *commonv1.Failure `json:"failure,omitempty"`
}

func (m *FailWorkflowExecutionCommandAttributes) GetFailure() *commonv1.Failure {
	if m == nil {
		return nil
	}
	return m.Failure
}

type StartTimerCommandAttributes struct {
	TimerId                   string `json:"timerId,omitempty"`
	StartToFireTimeoutSeconds int64  `json:"startToFireTimeoutSeconds,omitempty"`
}

func (m *StartTimerCommandAttributes) GetTimerId() string {
	if m == nil {
		return ""
	}
	return m.TimerId
}

type CancelTimerCommandAttributes struct {
	TimerId string `json:"timerId,omitempty"`
}

func (m *CancelTimerCommandAttributes) GetTimerId() string {
	if m == nil {
		return ""
	}
	return m.TimerId
}

type isCommand_Attributes interface {
	isCommand_Attributes()
}

type Command_ScheduleActivityTaskAttributes struct {
	ScheduleActivityTaskAttributes *ScheduleActivityTaskCommandAttributes `json:"scheduleActivityTaskAttributes,omitempty"`
}

func (*Command_ScheduleActivityTaskAttributes) isCommand_Attributes() {}

type Command_CompleteWorkflowExecutionAttributes struct {
	CompleteWorkflowExecutionAttributes *CompleteWorkflowExecutionCommandAttributes `json:"completeWorkflowExecutionAttributes,omitempty"`
}

func (*Command_CompleteWorkflowExecutionAttributes) isCommand_Attributes() {}

type Command_FailWorkflowExecutionAttributes struct {
	FailWorkflowExecutionAttributes *FailWorkflowExecutionCommandAttributes `json:"failWorkflowExecutionAttributes,omitempty"`
}

func (*Command_FailWorkflowExecutionAttributes) isCommand_Attributes() {}

type Command_StartTimerAttributes struct {
	StartTimerAttributes *StartTimerCommandAttributes `json:"startTimerAttributes,omitempty"`
}

func (*Command_StartTimerAttributes) isCommand_Attributes() {}

type Command_CancelTimerAttributes struct {
	CancelTimerAttributes *CancelTimerCommandAttributes `json:"cancelTimerAttributes,omitempty"`
}

func (*Command_CancelTimerAttributes) isCommand_Attributes() {}

// Command is one decision returned from a workflow task completion.
type Command struct {
	CommandType CommandType          `json:"commandType,omitempty"`
	Attributes  isCommand_Attributes `json:"-"`
}

func (m *Command) GetCommandType() CommandType {
	if m == nil {
		return CommandType_COMMAND_TYPE_UNSPECIFIED
	}
	return m.CommandType
}

func (m *Command) GetAttributes() isCommand_Attributes {
	if m == nil {
		return nil
	}
	return m.Attributes
}

func (m *Command) GetScheduleActivityTaskAttributes() *ScheduleActivityTaskCommandAttributes {
	if x, ok := m.GetAttributes().(*Command_ScheduleActivityTaskAttributes); ok {
		return x.ScheduleActivityTaskAttributes
	}
	return nil
}

func (m *Command) GetCompleteWorkflowExecutionAttributes() *CompleteWorkflowExecutionCommandAttributes {
	if x, ok := m.GetAttributes().(*Command_CompleteWorkflowExecutionAttributes); ok {
		return x.CompleteWorkflowExecutionAttributes
	}
	return nil
}

func (m *Command) GetFailWorkflowExecutionAttributes() *FailWorkflowExecutionCommandAttributes {
	if x, ok := m.GetAttributes().(*Command_FailWorkflowExecutionAttributes); ok {
		return x.FailWorkflowExecutionAttributes
	}
	return nil
}

func (m *Command) GetStartTimerAttributes() *StartTimerCommandAttributes {
	if x, ok := m.GetAttributes().(*Command_StartTimerAttributes); ok {
		return x.StartTimerAttributes
	}
	return nil
}

func (m *Command) GetCancelTimerAttributes() *CancelTimerCommandAttributes {
	if x, ok := m.GetAttributes().(*Command_CancelTimerAttributes); ok {
		return x.CancelTimerAttributes
	}
	return nil
}

type commandWire struct {
	CommandType CommandType `json:"commandType,omitempty"`

	ScheduleActivityTaskAttributes       *ScheduleActivityTaskCommandAttributes       `json:"scheduleActivityTaskAttributes,omitempty"`
	CompleteWorkflowExecutionAttributes  *CompleteWorkflowExecutionCommandAttributes  `json:"completeWorkflowExecutionAttributes,omitempty"`
	FailWorkflowExecutionAttributes      *FailWorkflowExecutionCommandAttributes      `json:"failWorkflowExecutionAttributes,omitempty"`
	StartTimerAttributes                 *StartTimerCommandAttributes                 `json:"startTimerAttributes,omitempty"`
	CancelTimerAttributes                 *CancelTimerCommandAttributes                `json:"cancelTimerAttributes,omitempty"`
}

func (m *Command) MarshalJSON() ([]byte, error) {
	w := commandWire{CommandType: m.CommandType}
	switch a := m.Attributes.(type) {
	case *Command_ScheduleActivityTaskAttributes:
		w.ScheduleActivityTaskAttributes = a.ScheduleActivityTaskAttributes
	case *Command_CompleteWorkflowExecutionAttributes:
		w.CompleteWorkflowExecutionAttributes = a.CompleteWorkflowExecutionAttributes
	case *Command_FailWorkflowExecutionAttributes:
		w.FailWorkflowExecutionAttributes = a.FailWorkflowExecutionAttributes
	case *Command_StartTimerAttributes:
		w.StartTimerAttributes = a.StartTimerAttributes
	case *Command_CancelTimerAttributes:
		w.CancelTimerAttributes = a.CancelTimerAttributes
	}
	return json.Marshal(w)
}

func (m *Command) UnmarshalJSON(data []byte) error {
	var w commandWire
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("historyv1: unmarshal Command: %w", err)
	}
	m.CommandType = w.CommandType
	switch {
	case w.ScheduleActivityTaskAttributes != nil:
		m.Attributes = &Command_ScheduleActivityTaskAttributes{ScheduleActivityTaskAttributes: w.ScheduleActivityTaskAttributes}
	case w.CompleteWorkflowExecutionAttributes != nil:
		m.Attributes = &Command_CompleteWorkflowExecutionAttributes{CompleteWorkflowExecutionAttributes: w.CompleteWorkflowExecutionAttributes}
	case w.FailWorkflowExecutionAttributes != nil:
		m.Attributes = &Command_FailWorkflowExecutionAttributes{FailWorkflowExecutionAttributes: w.FailWorkflowExecutionAttributes}
	case w.StartTimerAttributes != nil:
		m.Attributes = &Command_StartTimerAttributes{StartTimerAttributes: w.StartTimerAttributes}
	case w.CancelTimerAttributes != nil:
		m.Attributes = &Command_CancelTimerAttributes{CancelTimerAttributes: w.CancelTimerAttributes}
	}
	return nil
}
