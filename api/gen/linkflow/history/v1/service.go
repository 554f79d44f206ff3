package historyv1

import (
	"context"
	"encoding/json"

	commonv1 "github.com/linkflow/engine/api/gen/linkflow/common/v1"
	"github.com/linkflow/engine/internal/rpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const serviceName = "linkflow.history.v1.HistoryService"

type RecordEventRequest struct {
	Namespace string                      `json:"namespace,omitempty"`
	Execution *commonv1.WorkflowExecution `json:"execution,omitempty"`
	Event     *HistoryEvent               `json:"event,omitempty"`
}

func (m *RecordEventRequest) GetNamespace() string {
	if m == nil {
		return ""
	}
	return m.Namespace
}

func (m *RecordEventRequest) GetExecution() *commonv1.WorkflowExecution {
	if m == nil {
		return nil
	}
	return m.Execution
}

func (m *RecordEventRequest) GetEvent() *HistoryEvent {
	if m == nil {
		return nil
	}
	return m.Event
}

type RecordEventResponse struct {
	EventId int64 `json:"eventId,omitempty"`
}

func (m *RecordEventResponse) GetEventId() int64 {
	if m == nil {
		return 0
	}
	return m.EventId
}

type GetHistoryRequest struct {
	Namespace      string                      `json:"namespace,omitempty"`
	Execution      *commonv1.WorkflowExecution `json:"execution,omitempty"`
	NextPageToken  []byte                      `json:"nextPageToken,omitempty"`
	PageSize       int32                       `json:"pageSize,omitempty"`
}

func (m *GetHistoryRequest) GetNamespace() string {
	if m == nil {
		return ""
	}
	return m.Namespace
}

func (m *GetHistoryRequest) GetExecution() *commonv1.WorkflowExecution {
	if m == nil {
		return nil
	}
	return m.Execution
}

func (m *GetHistoryRequest) GetNextPageToken() []byte {
	if m == nil {
		return nil
	}
	return m.NextPageToken
}

func (m *GetHistoryRequest) GetPageSize() int32 {
	if m == nil {
		return 0
	}
	return m.PageSize
}

type GetHistoryResponse struct {
	History       *History `json:"history,omitempty"`
	NextPageToken []byte   `json:"nextPageToken,omitempty"`
}

func (m *GetHistoryResponse) GetHistory() *History {
	if m == nil {
		return nil
	}
	return m.History
}

func (m *GetHistoryResponse) GetNextPageToken() []byte {
	if m == nil {
		return nil
	}
	return m.NextPageToken
}

type GetMutableStateRequest struct {
	Namespace string                      `json:"namespace,omitempty"`
	Execution *commonv1.WorkflowExecution `json:"execution,omitempty"`
}

func (m *GetMutableStateRequest) GetNamespace() string {
	if m == nil {
		return ""
	}
	return m.Namespace
}

func (m *GetMutableStateRequest) GetExecution() *commonv1.WorkflowExecution {
	if m == nil {
		return nil
	}
	return m.Execution
}

type GetMutableStateResponse struct {
	Execution          *commonv1.WorkflowExecution `json:"execution,omitempty"`
	Status             commonv1.ExecutionStatus    `json:"status,omitempty"`
	LastEventId        int64                       `json:"lastEventId,omitempty"`
	NextEventId        int64                       `json:"nextEventId,omitempty"`
	PendingActivityIds []int64                     `json:"pendingActivityIds,omitempty"`
}

func (m *GetMutableStateResponse) GetExecution() *commonv1.WorkflowExecution {
	if m == nil {
		return nil
	}
	return m.Execution
}

func (m *GetMutableStateResponse) GetStatus() commonv1.ExecutionStatus {
	if m == nil {
		return commonv1.ExecutionStatus_EXECUTION_STATUS_UNSPECIFIED
	}
	return m.Status
}

func (m *GetMutableStateResponse) GetLastEventId() int64 {
	if m == nil {
		return 0
	}
	return m.LastEventId
}

func (m *GetMutableStateResponse) GetNextEventId() int64 {
	if m == nil {
		return 0
	}
	return m.NextEventId
}

type ResetExecutionRequest struct {
	Namespace      string                      `json:"namespace,omitempty"`
	Execution      *commonv1.WorkflowExecution `json:"execution,omitempty"`
	ResetToEventId int64                       `json:"resetToEventId,omitempty"`
	Reason         string                      `json:"reason,omitempty"`
}

func (m *ResetExecutionRequest) GetNamespace() string {
	if m == nil {
		return ""
	}
	return m.Namespace
}

func (m *ResetExecutionRequest) GetExecution() *commonv1.WorkflowExecution {
	if m == nil {
		return nil
	}
	return m.Execution
}

func (m *ResetExecutionRequest) GetResetToEventId() int64 {
	if m == nil {
		return 0
	}
	return m.ResetToEventId
}

type ResetExecutionResponse struct {
	NewRunId string `json:"newRunId,omitempty"`
}

func (m *ResetExecutionResponse) GetNewRunId() string {
	if m == nil {
		return ""
	}
	return m.NewRunId
}

type ListWorkflowExecutionsRequest struct {
	Namespace     string `json:"namespace,omitempty"`
	PageSize      int32  `json:"pageSize,omitempty"`
	NextPageToken []byte `json:"nextPageToken,omitempty"`
	Query         string `json:"query,omitempty"`
}

func (m *ListWorkflowExecutionsRequest) GetNamespace() string {
	if m == nil {
		return ""
	}
	return m.Namespace
}

func (m *ListWorkflowExecutionsRequest) GetPageSize() int32 {
	if m == nil {
		return 0
	}
	return m.PageSize
}

func (m *ListWorkflowExecutionsRequest) GetNextPageToken() []byte {
	if m == nil {
		return nil
	}
	return m.NextPageToken
}

func (m *ListWorkflowExecutionsRequest) GetQuery() string {
	if m == nil {
		return ""
	}
	return m.Query
}

type WorkflowExecutionInfo struct {
	Execution *commonv1.WorkflowExecution `json:"execution,omitempty"`
	Status    commonv1.ExecutionStatus    `json:"status,omitempty"`
}

func (m *WorkflowExecutionInfo) GetExecution() *commonv1.WorkflowExecution {
	if m == nil {
		return nil
	}
	return m.Execution
}

func (m *WorkflowExecutionInfo) GetStatus() commonv1.ExecutionStatus {
	if m == nil {
		return commonv1.ExecutionStatus_EXECUTION_STATUS_UNSPECIFIED
	}
	return m.Status
}

type ListWorkflowExecutionsResponse struct {
	Executions    []*WorkflowExecutionInfo `json:"executions,omitempty"`
	NextPageToken []byte                   `json:"nextPageToken,omitempty"`
}

func (m *ListWorkflowExecutionsResponse) GetExecutions() []*WorkflowExecutionInfo {
	if m == nil {
		return nil
	}
	return m.Executions
}

type RespondWorkflowTaskCompletedRequest struct {
	Namespace string     `json:"namespace,omitempty"`
	TaskToken int64      `json:"taskToken,omitempty"`
	Identity  string      `json:"identity,omitempty"`
	Commands  []*Command `json:"commands,omitempty"`
}

func (m *RespondWorkflowTaskCompletedRequest) GetTaskToken() int64 {
	if m == nil {
		return 0
	}
	return m.TaskToken
}

func (m *RespondWorkflowTaskCompletedRequest) GetCommands() []*Command {
	if m == nil {
		return nil
	}
	return m.Commands
}

type RespondWorkflowTaskCompletedResponse struct{}

type RespondWorkflowTaskFailedRequest struct {
	Namespace string            `json:"namespace,omitempty"`
	TaskToken int64             `json:"taskToken,omitempty"`
	Identity  string            `json:"identity,omitempty"`
	Failure   *commonv1.Failure `json:"failure,omitempty"`
}

func (m *RespondWorkflowTaskFailedRequest) GetTaskToken() int64 {
	if m == nil {
		return 0
	}
	return m.TaskToken
}

func (m *RespondWorkflowTaskFailedRequest) GetFailure() *commonv1.Failure {
	if m == nil {
		return nil
	}
	return m.Failure
}

type RespondWorkflowTaskFailedResponse struct{}

type RespondActivityTaskCompletedRequest struct {
	Namespace        string             `json:"namespace,omitempty"`
	TaskToken        []byte             `json:"taskToken,omitempty"`
	Identity         string             `json:"identity,omitempty"`
	ScheduledEventId int64              `json:"scheduledEventId,omitempty"`
	Result           *commonv1.Payloads `json:"result,omitempty"`
}

func (m *RespondActivityTaskCompletedRequest) GetScheduledEventId() int64 {
	if m == nil {
		return 0
	}
	return m.ScheduledEventId
}

func (m *RespondActivityTaskCompletedRequest) GetResult() *commonv1.Payloads {
	if m == nil {
		return nil
	}
	return m.Result
}

type RespondActivityTaskCompletedResponse struct{}

type RespondActivityTaskFailedRequest struct {
	Namespace        string            `json:"namespace,omitempty"`
	TaskToken        []byte            `json:"taskToken,omitempty"`
	Identity         string            `json:"identity,omitempty"`
	ScheduledEventId int64             `json:"scheduledEventId,omitempty"`
	Failure          *commonv1.Failure `json:"failure,omitempty"`
}

func (m *RespondActivityTaskFailedRequest) GetScheduledEventId() int64 {
	if m == nil {
		return 0
	}
	return m.ScheduledEventId
}

func (m *RespondActivityTaskFailedRequest) GetFailure() *commonv1.Failure {
	if m == nil {
		return nil
	}
	return m.Failure
}

type RespondActivityTaskFailedResponse struct{}

// HistoryServiceClient is the client-side surface History's dependants
// (frontend, worker, timer) call through.
type HistoryServiceClient interface {
	RecordEvent(ctx context.Context, in *RecordEventRequest, opts ...grpc.CallOption) (*RecordEventResponse, error)
	GetHistory(ctx context.Context, in *GetHistoryRequest, opts ...grpc.CallOption) (*GetHistoryResponse, error)
	GetMutableState(ctx context.Context, in *GetMutableStateRequest, opts ...grpc.CallOption) (*GetMutableStateResponse, error)
	ResetExecution(ctx context.Context, in *ResetExecutionRequest, opts ...grpc.CallOption) (*ResetExecutionResponse, error)
	ListWorkflowExecutions(ctx context.Context, in *ListWorkflowExecutionsRequest, opts ...grpc.CallOption) (*ListWorkflowExecutionsResponse, error)
	RespondWorkflowTaskCompleted(ctx context.Context, in *RespondWorkflowTaskCompletedRequest, opts ...grpc.CallOption) (*RespondWorkflowTaskCompletedResponse, error)
	RespondWorkflowTaskFailed(ctx context.Context, in *RespondWorkflowTaskFailedRequest, opts ...grpc.CallOption) (*RespondWorkflowTaskFailedResponse, error)
	RespondActivityTaskCompleted(ctx context.Context, in *RespondActivityTaskCompletedRequest, opts ...grpc.CallOption) (*RespondActivityTaskCompletedResponse, error)
	RespondActivityTaskFailed(ctx context.Context, in *RespondActivityTaskFailedRequest, opts ...grpc.CallOption) (*RespondActivityTaskFailedResponse, error)
}

type historyServiceClient struct {
	cc *grpc.ClientConn
}

func NewHistoryServiceClient(cc *grpc.ClientConn) HistoryServiceClient {
	return &historyServiceClient{cc: cc}
}

func (c *historyServiceClient) call(ctx context.Context, op string, req, resp any) error {
	return rpc.Invoke(ctx, c.cc, "/"+serviceName+"/Call", op, req, resp)
}

func (c *historyServiceClient) RecordEvent(ctx context.Context, in *RecordEventRequest, opts ...grpc.CallOption) (*RecordEventResponse, error) {
	out := new(RecordEventResponse)
	if err := c.call(ctx, "RecordEvent", in, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *historyServiceClient) GetHistory(ctx context.Context, in *GetHistoryRequest, opts ...grpc.CallOption) (*GetHistoryResponse, error) {
	out := new(GetHistoryResponse)
	if err := c.call(ctx, "GetHistory", in, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *historyServiceClient) GetMutableState(ctx context.Context, in *GetMutableStateRequest, opts ...grpc.CallOption) (*GetMutableStateResponse, error) {
	out := new(GetMutableStateResponse)
	if err := c.call(ctx, "GetMutableState", in, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *historyServiceClient) ResetExecution(ctx context.Context, in *ResetExecutionRequest, opts ...grpc.CallOption) (*ResetExecutionResponse, error) {
	out := new(ResetExecutionResponse)
	if err := c.call(ctx, "ResetExecution", in, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *historyServiceClient) ListWorkflowExecutions(ctx context.Context, in *ListWorkflowExecutionsRequest, opts ...grpc.CallOption) (*ListWorkflowExecutionsResponse, error) {
	out := new(ListWorkflowExecutionsResponse)
	if err := c.call(ctx, "ListWorkflowExecutions", in, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *historyServiceClient) RespondWorkflowTaskCompleted(ctx context.Context, in *RespondWorkflowTaskCompletedRequest, opts ...grpc.CallOption) (*RespondWorkflowTaskCompletedResponse, error) {
	out := new(RespondWorkflowTaskCompletedResponse)
	if err := c.call(ctx, "RespondWorkflowTaskCompleted", in, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *historyServiceClient) RespondWorkflowTaskFailed(ctx context.Context, in *RespondWorkflowTaskFailedRequest, opts ...grpc.CallOption) (*RespondWorkflowTaskFailedResponse, error) {
	out := new(RespondWorkflowTaskFailedResponse)
	if err := c.call(ctx, "RespondWorkflowTaskFailed", in, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *historyServiceClient) RespondActivityTaskCompleted(ctx context.Context, in *RespondActivityTaskCompletedRequest, opts ...grpc.CallOption) (*RespondActivityTaskCompletedResponse, error) {
	out := new(RespondActivityTaskCompletedResponse)
	if err := c.call(ctx, "RespondActivityTaskCompleted", in, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *historyServiceClient) RespondActivityTaskFailed(ctx context.Context, in *RespondActivityTaskFailedRequest, opts ...grpc.CallOption) (*RespondActivityTaskFailedResponse, error) {
	out := new(RespondActivityTaskFailedResponse)
	if err := c.call(ctx, "RespondActivityTaskFailed", in, out); err != nil {
		return nil, err
	}
	return out, nil
}

// HistoryServiceServer is the interface internal/history.GRPCServer
// implements.
type HistoryServiceServer interface {
	RecordEvent(context.Context, *RecordEventRequest) (*RecordEventResponse, error)
	GetHistory(context.Context, *GetHistoryRequest) (*GetHistoryResponse, error)
	GetMutableState(context.Context, *GetMutableStateRequest) (*GetMutableStateResponse, error)
	ResetExecution(context.Context, *ResetExecutionRequest) (*ResetExecutionResponse, error)
	ListWorkflowExecutions(context.Context, *ListWorkflowExecutionsRequest) (*ListWorkflowExecutionsResponse, error)
	RespondWorkflowTaskCompleted(context.Context, *RespondWorkflowTaskCompletedRequest) (*RespondWorkflowTaskCompletedResponse, error)
	RespondWorkflowTaskFailed(context.Context, *RespondWorkflowTaskFailedRequest) (*RespondWorkflowTaskFailedResponse, error)
	RespondActivityTaskCompleted(context.Context, *RespondActivityTaskCompletedRequest) (*RespondActivityTaskCompletedResponse, error)
	RespondActivityTaskFailed(context.Context, *RespondActivityTaskFailedRequest) (*RespondActivityTaskFailedResponse, error)
}

// UnimplementedHistoryServiceServer must be embedded for forward
// compatibility, matching the convention protoc-gen-go-grpc emits.
type UnimplementedHistoryServiceServer struct{}

func (UnimplementedHistoryServiceServer) RecordEvent(context.Context, *RecordEventRequest) (*RecordEventResponse, error) {
	return nil, grpcUnimplemented("RecordEvent")
}

func (UnimplementedHistoryServiceServer) GetHistory(context.Context, *GetHistoryRequest) (*GetHistoryResponse, error) {
	return nil, grpcUnimplemented("GetHistory")
}

func (UnimplementedHistoryServiceServer) GetMutableState(context.Context, *GetMutableStateRequest) (*GetMutableStateResponse, error) {
	return nil, grpcUnimplemented("GetMutableState")
}

func (UnimplementedHistoryServiceServer) ResetExecution(context.Context, *ResetExecutionRequest) (*ResetExecutionResponse, error) {
	return nil, grpcUnimplemented("ResetExecution")
}

func (UnimplementedHistoryServiceServer) ListWorkflowExecutions(context.Context, *ListWorkflowExecutionsRequest) (*ListWorkflowExecutionsResponse, error) {
	return nil, grpcUnimplemented("ListWorkflowExecutions")
}

func (UnimplementedHistoryServiceServer) RespondWorkflowTaskCompleted(context.Context, *RespondWorkflowTaskCompletedRequest) (*RespondWorkflowTaskCompletedResponse, error) {
	return nil, grpcUnimplemented("RespondWorkflowTaskCompleted")
}

func (UnimplementedHistoryServiceServer) RespondWorkflowTaskFailed(context.Context, *RespondWorkflowTaskFailedRequest) (*RespondWorkflowTaskFailedResponse, error) {
	return nil, grpcUnimplemented("RespondWorkflowTaskFailed")
}

func (UnimplementedHistoryServiceServer) RespondActivityTaskCompleted(context.Context, *RespondActivityTaskCompletedRequest) (*RespondActivityTaskCompletedResponse, error) {
	return nil, grpcUnimplemented("RespondActivityTaskCompleted")
}

func (UnimplementedHistoryServiceServer) RespondActivityTaskFailed(context.Context, *RespondActivityTaskFailedRequest) (*RespondActivityTaskFailedResponse, error) {
	return nil, grpcUnimplemented("RespondActivityTaskFailed")
}

func grpcUnimplemented(method string) error {
	return status.Errorf(codes.Unimplemented, "historyv1: method %s not implemented", method)
}

// decodeOp unmarshals an Op's JSON payload into a fresh *Req and calls fn,
// returning fn's response (or nil) for the Dispatcher to encode.
func decodeOp[Req any, Resp any](fn func(context.Context, *Req) (*Resp, error)) rpc.Handler {
	return func(ctx context.Context, payload json.RawMessage) (any, error) {
		req := new(Req)
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, req); err != nil {
				return nil, status.Errorf(codes.InvalidArgument, "historyv1: decode request: %v", err)
			}
		}
		return fn(ctx, req)
	}
}

// RegisterHistoryServiceServer wires srv's methods into a single
// multiplexed grpc.MethodDesc keyed by Op, registered against s.
func RegisterHistoryServiceServer(s grpc.ServiceRegistrar, srv HistoryServiceServer) {
	d := rpc.NewDispatcher(serviceName)

	d.Handle("RecordEvent", decodeOp(srv.RecordEvent))
	d.Handle("GetHistory", decodeOp(srv.GetHistory))
	d.Handle("GetMutableState", decodeOp(srv.GetMutableState))
	d.Handle("ResetExecution", decodeOp(srv.ResetExecution))
	d.Handle("ListWorkflowExecutions", decodeOp(srv.ListWorkflowExecutions))
	d.Handle("RespondWorkflowTaskCompleted", decodeOp(srv.RespondWorkflowTaskCompleted))
	d.Handle("RespondWorkflowTaskFailed", decodeOp(srv.RespondWorkflowTaskFailed))
	d.Handle("RespondActivityTaskCompleted", decodeOp(srv.RespondActivityTaskCompleted))
	d.Handle("RespondActivityTaskFailed", decodeOp(srv.RespondActivityTaskFailed))

	s.RegisterService(&grpc.ServiceDesc{
		ServiceName: serviceName,
		HandlerType: (*HistoryServiceServer)(nil),
		Methods: []grpc.MethodDesc{
			{MethodName: "Call", Handler: rpc.UnaryHandler(d)},
		},
		Streams:  []grpc.StreamDesc{},
		Metadata: "linkflow/history/v1/history.proto",
	})
}
