package visibility

import (
	"context"
	"time"

	"github.com/linkflow/engine/internal/history/types"
)

// WorkflowExecution identifies one run, the plain-Go equivalent of what the
// engine's wire representation calls a WorkflowExecution.
type WorkflowExecution struct {
	WorkflowID string
	RunID      string
}

// WorkflowType names the workflow definition an execution is running.
type WorkflowType struct {
	Name string
}

// Memo is an opaque, queryable key/value blob attached to an execution at
// start time.
type Memo map[string][]byte

// ListRequest specifies the criteria for listing executions.
type ListRequest struct {
	NamespaceID   string
	PageSize      int
	NextPageToken []byte
	Query         string // Simple query support (e.g. "WorkflowType = 'foo'")
}

// ListResponse contains the list of executions.
type ListResponse struct {
	Executions    []*WorkflowExecutionInfo
	NextPageToken []byte
}

// WorkflowExecutionInfo contains summary information about a workflow execution.
type WorkflowExecutionInfo struct {
	Execution     WorkflowExecution
	Type          WorkflowType
	StartTime     time.Time
	CloseTime     time.Time
	Status        types.ExecutionStatus
	HistoryLength int64
	Memo          Memo
}

// Store defines the interface for visibility storage.
type Store interface {
	RecordWorkflowExecutionStarted(ctx context.Context, req *RecordWorkflowExecutionStartedRequest) error
	RecordWorkflowExecutionClosed(ctx context.Context, req *RecordWorkflowExecutionClosedRequest) error
	ListOpenWorkflowExecutions(ctx context.Context, req *ListRequest) (*ListResponse, error)
	ListClosedWorkflowExecutions(ctx context.Context, req *ListRequest) (*ListResponse, error)
}

type RecordWorkflowExecutionStartedRequest struct {
	NamespaceID  string
	Execution    WorkflowExecution
	WorkflowType WorkflowType
	StartTime    time.Time
	Status       types.ExecutionStatus
	Memo         Memo
}

type RecordWorkflowExecutionClosedRequest struct {
	NamespaceID   string
	Execution     WorkflowExecution
	WorkflowType  WorkflowType
	StartTime     time.Time
	CloseTime     time.Time
	Status        types.ExecutionStatus
	HistoryLength int64
	Memo          Memo
}
