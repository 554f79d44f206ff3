package matchingv1

import (
	"context"
	"encoding/json"

	"github.com/linkflow/engine/internal/rpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const serviceName = "linkflow.matching.v1.MatchingService"

// MatchingServiceClient is the client-side surface Matching's dependants
// (history, frontend, worker) call through.
type MatchingServiceClient interface {
	AddTask(ctx context.Context, in *AddTaskRequest, opts ...grpc.CallOption) (*AddTaskResponse, error)
	PollTask(ctx context.Context, in *PollTaskRequest, opts ...grpc.CallOption) (*PollTaskResponse, error)
	CompleteTask(ctx context.Context, in *CompleteTaskRequest, opts ...grpc.CallOption) (*CompleteTaskResponse, error)
	HeartbeatTask(ctx context.Context, in *HeartbeatTaskRequest, opts ...grpc.CallOption) (*HeartbeatTaskResponse, error)
	QueryWorkflow(ctx context.Context, in *MatchingServiceQueryWorkflowRequest, opts ...grpc.CallOption) (*MatchingServiceQueryWorkflowResponse, error)
}

type matchingServiceClient struct {
	cc *grpc.ClientConn
}

func NewMatchingServiceClient(cc *grpc.ClientConn) MatchingServiceClient {
	return &matchingServiceClient{cc: cc}
}

func (c *matchingServiceClient) call(ctx context.Context, op string, req, resp any) error {
	return rpc.Invoke(ctx, c.cc, "/"+serviceName+"/Call", op, req, resp)
}

func (c *matchingServiceClient) AddTask(ctx context.Context, in *AddTaskRequest, opts ...grpc.CallOption) (*AddTaskResponse, error) {
	out := new(AddTaskResponse)
	if err := c.call(ctx, "AddTask", in, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *matchingServiceClient) PollTask(ctx context.Context, in *PollTaskRequest, opts ...grpc.CallOption) (*PollTaskResponse, error) {
	out := new(PollTaskResponse)
	if err := c.call(ctx, "PollTask", in, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *matchingServiceClient) CompleteTask(ctx context.Context, in *CompleteTaskRequest, opts ...grpc.CallOption) (*CompleteTaskResponse, error) {
	out := new(CompleteTaskResponse)
	if err := c.call(ctx, "CompleteTask", in, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *matchingServiceClient) HeartbeatTask(ctx context.Context, in *HeartbeatTaskRequest, opts ...grpc.CallOption) (*HeartbeatTaskResponse, error) {
	out := new(HeartbeatTaskResponse)
	if err := c.call(ctx, "HeartbeatTask", in, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *matchingServiceClient) QueryWorkflow(ctx context.Context, in *MatchingServiceQueryWorkflowRequest, opts ...grpc.CallOption) (*MatchingServiceQueryWorkflowResponse, error) {
	out := new(MatchingServiceQueryWorkflowResponse)
	if err := c.call(ctx, "QueryWorkflow", in, out); err != nil {
		return nil, err
	}
	return out, nil
}

// MatchingServiceServer is the interface internal/matching.GRPCServer
// implements.
type MatchingServiceServer interface {
	AddTask(context.Context, *AddTaskRequest) (*AddTaskResponse, error)
	PollTask(context.Context, *PollTaskRequest) (*PollTaskResponse, error)
	CompleteTask(context.Context, *CompleteTaskRequest) (*CompleteTaskResponse, error)
	HeartbeatTask(context.Context, *HeartbeatTaskRequest) (*HeartbeatTaskResponse, error)
	QueryWorkflow(context.Context, *MatchingServiceQueryWorkflowRequest) (*MatchingServiceQueryWorkflowResponse, error)
}

// UnimplementedMatchingServiceServer must be embedded for forward
// compatibility, matching the convention protoc-gen-go-grpc emits.
type UnimplementedMatchingServiceServer struct{}

func (UnimplementedMatchingServiceServer) AddTask(context.Context, *AddTaskRequest) (*AddTaskResponse, error) {
	return nil, grpcUnimplemented("AddTask")
}

func (UnimplementedMatchingServiceServer) PollTask(context.Context, *PollTaskRequest) (*PollTaskResponse, error) {
	return nil, grpcUnimplemented("PollTask")
}

func (UnimplementedMatchingServiceServer) CompleteTask(context.Context, *CompleteTaskRequest) (*CompleteTaskResponse, error) {
	return nil, grpcUnimplemented("CompleteTask")
}

func (UnimplementedMatchingServiceServer) HeartbeatTask(context.Context, *HeartbeatTaskRequest) (*HeartbeatTaskResponse, error) {
	return nil, grpcUnimplemented("HeartbeatTask")
}

func (UnimplementedMatchingServiceServer) QueryWorkflow(context.Context, *MatchingServiceQueryWorkflowRequest) (*MatchingServiceQueryWorkflowResponse, error) {
	return nil, grpcUnimplemented("QueryWorkflow")
}

func grpcUnimplemented(method string) error {
	return status.Errorf(codes.Unimplemented, "matchingv1: method %s not implemented", method)
}

func decodeOp[Req any, Resp any](fn func(context.Context, *Req) (*Resp, error)) rpc.Handler {
	return func(ctx context.Context, payload json.RawMessage) (any, error) {
		req := new(Req)
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, req); err != nil {
				return nil, status.Errorf(codes.InvalidArgument, "matchingv1: decode request: %v", err)
			}
		}
		return fn(ctx, req)
	}
}

// RegisterMatchingServiceServer wires srv's methods into a single
// multiplexed grpc.MethodDesc keyed by Op, registered against s.
func RegisterMatchingServiceServer(s grpc.ServiceRegistrar, srv MatchingServiceServer) {
	d := rpc.NewDispatcher(serviceName)

	d.Handle("AddTask", decodeOp(srv.AddTask))
	d.Handle("PollTask", decodeOp(srv.PollTask))
	d.Handle("CompleteTask", decodeOp(srv.CompleteTask))
	d.Handle("HeartbeatTask", decodeOp(srv.HeartbeatTask))
	d.Handle("QueryWorkflow", decodeOp(srv.QueryWorkflow))

	s.RegisterService(&grpc.ServiceDesc{
		ServiceName: serviceName,
		HandlerType: (*MatchingServiceServer)(nil),
		Methods: []grpc.MethodDesc{
			{MethodName: "Call", Handler: rpc.UnaryHandler(d)},
		},
		Streams:  []grpc.StreamDesc{},
		Metadata: "linkflow/matching/v1/matching.proto",
	})
}
