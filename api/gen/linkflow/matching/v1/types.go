// Package matchingv1 is the request/response surface for the Matching
// service named in spec §4.2: task queue add/poll/complete/heartbeat plus
// the synchronous query path. Hand-maintained in the protoc-gen-go shape;
// see internal/rpc for the JSON transport this build uses in place of
// protobuf wire encoding.
package matchingv1

import (
	commonv1 "github.com/linkflow/engine/api/gen/linkflow/common/v1"
	"google.golang.org/protobuf/types/known/timestamppb"
)

// TaskQueue identifies a Matching-owned queue and its kind. Distinct from
// apiv1.TaskQueue, which only decorates history events and never needs
// Kind.
type TaskQueue struct {
	Name string                 `json:"name,omitempty"`
	Kind commonv1.TaskQueueKind `json:"kind,omitempty"`
}

func (m *TaskQueue) GetName() string {
	if m == nil {
		return ""
	}
	return m.Name
}

func (m *TaskQueue) GetKind() commonv1.TaskQueueKind {
	if m == nil {
		return commonv1.TaskQueueKind_TASK_QUEUE_KIND_UNSPECIFIED
	}
	return m.Kind
}

// WorkflowTaskInfo is the payload a PollTaskResponse carries for a
// workflow task.
type WorkflowTaskInfo struct {
	ScheduledEventId int64 `json:"scheduledEventId,omitempty"`
}

func (m *WorkflowTaskInfo) GetScheduledEventId() int64 {
	if m == nil {
		return 0
	}
	return m.ScheduledEventId
}

// ActivityTaskInfo is the payload a PollTaskResponse carries for an
// activity task.
type ActivityTaskInfo struct {
	ActivityId       string             `json:"activityId,omitempty"`
	ActivityType     string             `json:"activityType,omitempty"`
	ScheduledEventId int64              `json:"scheduledEventId,omitempty"`
	Input            *commonv1.Payloads `json:"input,omitempty"`
}

func (m *ActivityTaskInfo) GetActivityId() string {
	if m == nil {
		return ""
	}
	return m.ActivityId
}

func (m *ActivityTaskInfo) GetActivityType() string {
	if m == nil {
		return ""
	}
	return m.ActivityType
}

func (m *ActivityTaskInfo) GetScheduledEventId() int64 {
	if m == nil {
		return 0
	}
	return m.ScheduledEventId
}

func (m *ActivityTaskInfo) GetInput() *commonv1.Payloads {
	if m == nil {
		return nil
	}
	return m.Input
}

type AddTaskRequest struct {
	Namespace         string                      `json:"namespace,omitempty"`
	TaskQueue         *TaskQueue                  `json:"taskQueue,omitempty"`
	TaskType          commonv1.TaskType           `json:"taskType,omitempty"`
	WorkflowExecution *commonv1.WorkflowExecution `json:"workflowExecution,omitempty"`
	ScheduledEventId  int64                       `json:"scheduledEventId,omitempty"`
	ScheduleTime      *timestamppb.Timestamp      `json:"scheduleTime,omitempty"`
	Input             *commonv1.Payloads          `json:"input,omitempty"`
}

func (m *AddTaskRequest) GetNamespace() string {
	if m == nil {
		return ""
	}
	return m.Namespace
}

func (m *AddTaskRequest) GetTaskQueue() *TaskQueue {
	if m == nil {
		return nil
	}
	return m.TaskQueue
}

func (m *AddTaskRequest) GetTaskType() commonv1.TaskType {
	if m == nil {
		return commonv1.TaskType_TASK_TYPE_UNSPECIFIED
	}
	return m.TaskType
}

func (m *AddTaskRequest) GetWorkflowExecution() *commonv1.WorkflowExecution {
	if m == nil {
		return nil
	}
	return m.WorkflowExecution
}

func (m *AddTaskRequest) GetScheduledEventId() int64 {
	if m == nil {
		return 0
	}
	return m.ScheduledEventId
}

func (m *AddTaskRequest) GetInput() *commonv1.Payloads {
	if m == nil {
		return nil
	}
	return m.Input
}

type AddTaskResponse struct{}

type PollTaskRequest struct {
	Namespace string     `json:"namespace,omitempty"`
	TaskQueue *TaskQueue `json:"taskQueue,omitempty"`
	Identity  string     `json:"identity,omitempty"`
}

func (m *PollTaskRequest) GetNamespace() string {
	if m == nil {
		return ""
	}
	return m.Namespace
}

func (m *PollTaskRequest) GetTaskQueue() *TaskQueue {
	if m == nil {
		return nil
	}
	return m.TaskQueue
}

func (m *PollTaskRequest) GetIdentity() string {
	if m == nil {
		return ""
	}
	return m.Identity
}

type PollTaskResponse struct {
	TaskToken         []byte                      `json:"taskToken,omitempty"`
	WorkflowExecution *commonv1.WorkflowExecution `json:"workflowExecution,omitempty"`
	Attempt           int32                       `json:"attempt,omitempty"`
	StartedEventId    int64                       `json:"startedEventId,omitempty"`
	WorkflowTaskInfo  *WorkflowTaskInfo           `json:"workflowTaskInfo,omitempty"`
	ActivityTaskInfo  *ActivityTaskInfo           `json:"activityTaskInfo,omitempty"`
}

func (m *PollTaskResponse) GetTaskToken() []byte {
	if m == nil {
		return nil
	}
	return m.TaskToken
}

func (m *PollTaskResponse) GetWorkflowExecution() *commonv1.WorkflowExecution {
	if m == nil {
		return nil
	}
	return m.WorkflowExecution
}

func (m *PollTaskResponse) GetAttempt() int32 {
	if m == nil {
		return 0
	}
	return m.Attempt
}

func (m *PollTaskResponse) GetStartedEventId() int64 {
	if m == nil {
		return 0
	}
	return m.StartedEventId
}

func (m *PollTaskResponse) GetWorkflowTaskInfo() *WorkflowTaskInfo {
	if m == nil {
		return nil
	}
	return m.WorkflowTaskInfo
}

func (m *PollTaskResponse) GetActivityTaskInfo() *ActivityTaskInfo {
	if m == nil {
		return nil
	}
	return m.ActivityTaskInfo
}

type CompleteTaskRequest struct {
	Namespace string `json:"namespace,omitempty"`
	TaskToken []byte `json:"taskToken,omitempty"`
	Identity  string `json:"identity,omitempty"`
}

func (m *CompleteTaskRequest) GetTaskToken() []byte {
	if m == nil {
		return nil
	}
	return m.TaskToken
}

func (m *CompleteTaskRequest) GetNamespace() string {
	if m == nil {
		return ""
	}
	return m.Namespace
}

func (m *CompleteTaskRequest) GetIdentity() string {
	if m == nil {
		return ""
	}
	return m.Identity
}

type CompleteTaskResponse struct{}

type HeartbeatTaskRequest struct {
	Namespace string `json:"namespace,omitempty"`
	TaskToken []byte `json:"taskToken,omitempty"`
}

func (m *HeartbeatTaskRequest) GetTaskToken() []byte {
	if m == nil {
		return nil
	}
	return m.TaskToken
}

type HeartbeatTaskResponse struct {
	CancelRequested bool `json:"cancelRequested,omitempty"`
}

func (m *HeartbeatTaskResponse) GetCancelRequested() bool {
	if m == nil {
		return false
	}
	return m.CancelRequested
}

// MatchingServiceQueryWorkflowRequest carries a synchronous query against
// a running workflow (spec §4.2's query path).
type MatchingServiceQueryWorkflowRequest struct {
	Namespace         string                      `json:"namespace,omitempty"`
	WorkflowExecution *commonv1.WorkflowExecution `json:"workflowExecution,omitempty"`
	QueryType         string                      `json:"queryType,omitempty"`
	Args              *commonv1.Payloads          `json:"args,omitempty"`
}

func (m *MatchingServiceQueryWorkflowRequest) GetWorkflowExecution() *commonv1.WorkflowExecution {
	if m == nil {
		return nil
	}
	return m.WorkflowExecution
}

func (m *MatchingServiceQueryWorkflowRequest) GetQueryType() string {
	if m == nil {
		return ""
	}
	return m.QueryType
}

func (m *MatchingServiceQueryWorkflowRequest) GetArgs() *commonv1.Payloads {
	if m == nil {
		return nil
	}
	return m.Args
}

type MatchingServiceQueryWorkflowResponse struct {
	Result *commonv1.Payloads `json:"result,omitempty"`
}

func (m *MatchingServiceQueryWorkflowResponse) GetResult() *commonv1.Payloads {
	if m == nil {
		return nil
	}
	return m.Result
}
