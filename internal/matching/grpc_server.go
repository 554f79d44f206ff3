package matching

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	commonv1 "github.com/linkflow/engine/api/gen/linkflow/common/v1"
	matchingv1 "github.com/linkflow/engine/api/gen/linkflow/matching/v1"
	"github.com/linkflow/engine/internal/matching/engine"
)

// GRPCServer adapts the MatchingService proto surface onto Service (spec §4
// "Matching"). Task tokens handed back to PollTask are treated as opaque by
// callers; scheduledEventID always travels alongside them in the typed
// response fields rather than being parsed back out of the token.
type GRPCServer struct {
	matchingv1.UnimplementedMatchingServiceServer
	service *Service
}

func NewGRPCServer(service *Service) *GRPCServer {
	return &GRPCServer{service: service}
}

// taskToken is the opaque bearer handed to PollTask callers and round-tripped
// on CompleteTask/HeartbeatTask. The wire format is namespace|queue|taskID|nonce.
type taskToken struct {
	namespace string
	queue     string
	taskID    string
}

func (t taskToken) encode(nonce string) []byte {
	return []byte(fmt.Sprintf("%s|%s|%s|%s", t.namespace, t.queue, t.taskID, nonce))
}

func decodeTaskToken(raw []byte) (taskToken, error) {
	parts := strings.SplitN(string(raw), "|", 4)
	if len(parts) < 4 {
		return taskToken{}, fmt.Errorf("malformed task token")
	}
	return taskToken{namespace: parts[0], queue: parts[1], taskID: parts[2]}, nil
}

// deterministicTaskID derives an idempotent task ID from workflow identity so
// retried AddTask calls for the same schedule point collapse onto one entry.
func deterministicTaskID(namespace, workflowID, runID string, taskType int32, scheduledEventID int64) string {
	return fmt.Sprintf("%s:%s:%s:%d:%d", namespace, workflowID, runID, taskType, scheduledEventID)
}

func secureNonce() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate task nonce: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

func (s *GRPCServer) AddTask(ctx context.Context, req *matchingv1.AddTaskRequest) (*matchingv1.AddTaskResponse, error) {
	if req.WorkflowExecution == nil {
		return nil, fmt.Errorf("workflow_execution is required")
	}
	if req.WorkflowExecution.GetWorkflowId() == "" {
		return nil, fmt.Errorf("workflow_id is required")
	}

	queueName := req.TaskQueue.GetName()
	if queueName == "" {
		queueName = "default"
	}

	task, err := buildTask(req, queueName)
	if err != nil {
		return nil, err
	}

	if err := s.service.AddTask(ctx, queueName, task); err != nil {
		return nil, err
	}
	return &matchingv1.AddTaskResponse{}, nil
}

func buildTask(req *matchingv1.AddTaskRequest, queueName string) (*engine.Task, error) {
	taskID := deterministicTaskID(
		req.Namespace,
		req.WorkflowExecution.GetWorkflowId(),
		req.WorkflowExecution.GetRunId(),
		int32(req.TaskType),
		req.ScheduledEventId,
	)

	nonce, err := secureNonce()
	if err != nil {
		return nil, err
	}

	scheduledAt := time.Now().UTC()
	if req.ScheduleTime != nil {
		scheduledAt = req.ScheduleTime.AsTime()
	}

	token := taskToken{namespace: req.Namespace, queue: queueName, taskID: taskID}

	return &engine.Task{
		ID:               taskID,
		Token:            token.encode(nonce),
		WorkflowID:       req.WorkflowExecution.GetWorkflowId(),
		RunID:            req.WorkflowExecution.GetRunId(),
		Namespace:        req.Namespace,
		ScheduledTime:    scheduledAt,
		TaskType:         int32(req.TaskType),
		ScheduledEventID: req.ScheduledEventId,
		ActivityID:       fmt.Sprintf("%d", req.ScheduledEventId),
	}, nil
}

func (s *GRPCServer) PollTask(ctx context.Context, req *matchingv1.PollTaskRequest) (*matchingv1.PollTaskResponse, error) {
	queueName := req.TaskQueue.GetName()
	if queueName == "" {
		queueName = "default"
	}

	// Workers may poll before the first task lands; auto-create so the poll
	// still registers against the right partition.
	s.service.GetOrCreateTaskQueue(queueName, engine.TaskQueueKindNormal)

	task, err := s.service.PollTask(ctx, queueName, req.Identity)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return &matchingv1.PollTaskResponse{}, nil
	}

	return taskToResponse(task), nil
}

func taskToResponse(task *engine.Task) *matchingv1.PollTaskResponse {
	resp := &matchingv1.PollTaskResponse{
		TaskToken: task.Token,
		WorkflowExecution: &commonv1.WorkflowExecution{
			WorkflowId: task.WorkflowID,
			RunId:      task.RunID,
		},
		Attempt:        task.Attempt,
		StartedEventId: 1,
	}

	if commonv1.TaskType(task.TaskType) == commonv1.TaskType_TASK_TYPE_WORKFLOW_TASK {
		resp.WorkflowTaskInfo = &matchingv1.WorkflowTaskInfo{
			ScheduledEventId: task.ScheduledEventID,
		}
		return resp
	}

	resp.ActivityTaskInfo = &matchingv1.ActivityTaskInfo{
		ActivityId:       task.ActivityID,
		ActivityType:     task.ActivityType,
		ScheduledEventId: task.ScheduledEventID,
	}
	if len(task.Input) > 0 {
		resp.ActivityTaskInfo.Input = &commonv1.Payloads{
			Payloads: []*commonv1.Payload{{Data: task.Input}},
		}
	}
	return resp
}

func (s *GRPCServer) CompleteTask(ctx context.Context, req *matchingv1.CompleteTaskRequest) (*matchingv1.CompleteTaskResponse, error) {
	tok, err := decodeTaskToken(req.GetTaskToken())
	if err != nil {
		return nil, err
	}
	if tok.queue == "" || tok.taskID == "" {
		return nil, fmt.Errorf("invalid task token")
	}

	if err := s.service.CompleteTask(ctx, tok.queue, tok.taskID); err != nil && err != ErrTaskNotFound {
		return nil, err
	}

	// Completion is idempotent: a retry racing an earlier success still
	// reports success rather than surfacing ErrTaskNotFound to the worker.
	return &matchingv1.CompleteTaskResponse{}, nil
}

func (s *GRPCServer) QueryWorkflow(ctx context.Context, req *matchingv1.MatchingServiceQueryWorkflowRequest) (*matchingv1.MatchingServiceQueryWorkflowResponse, error) {
	return &matchingv1.MatchingServiceQueryWorkflowResponse{}, nil
}

func (s *GRPCServer) HeartbeatTask(ctx context.Context, req *matchingv1.HeartbeatTaskRequest) (*matchingv1.HeartbeatTaskResponse, error) {
	return &matchingv1.HeartbeatTaskResponse{CancelRequested: false}, nil
}
