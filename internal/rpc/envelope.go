package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Envelope carries one RPC call: Op names the logical method (e.g.
// "RecordEvent", "AddTask") and Payload is the JSON-encoded request. Every
// service exposed by this package (History, Matching, Control) multiplexes
// its whole method set over a single grpc.MethodDesc keyed by Op, so adding
// a method never requires regenerating a .proto-derived service descriptor.
type Envelope struct {
	Op      string          `json:"op"`
	Payload json.RawMessage `json:"payload"`
}

// Reply is the single response shape every multiplexed call returns.
// ErrMsg is populated instead of using the gRPC status machinery for
// domain errors the caller is expected to pattern-match on (e.g.
// OptimisticLock); transport-level failures still surface as gRPC status
// errors from Invoke itself.
type Reply struct {
	Payload json.RawMessage `json:"payload,omitempty"`
	ErrMsg  string          `json:"error,omitempty"`
}

// Invoke marshals req, sends it as an Envelope over fullMethod tagged with
// op, and unmarshals the returned Reply's payload into resp. A non-empty
// Reply.ErrMsg becomes a plain error; resp may be nil for calls that return
// nothing but an ack.
func Invoke(ctx context.Context, cc *grpc.ClientConn, fullMethod, op string, req, resp any) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("rpc: marshal request for %s: %w", op, err)
	}
	in := &Envelope{Op: op, Payload: body}
	out := new(Reply)
	if err := cc.Invoke(ctx, fullMethod, in, out, CallOption()); err != nil {
		return err
	}
	if out.ErrMsg != "" {
		return errors.New(out.ErrMsg)
	}
	if resp != nil && len(out.Payload) > 0 {
		if err := json.Unmarshal(out.Payload, resp); err != nil {
			return fmt.Errorf("rpc: unmarshal response for %s: %w", op, err)
		}
	}
	return nil
}

// Handler runs one Op's business logic, returning the value to encode as
// the reply payload.
type Handler func(ctx context.Context, payload json.RawMessage) (any, error)

// Dispatcher routes an Envelope's Op to the Handler registered for it. It
// is the server-side half of the multiplexed-method pattern: one Dispatcher
// per service, one Handle call per RPC method.
type Dispatcher struct {
	service  string
	handlers map[string]Handler
}

func NewDispatcher(service string) *Dispatcher {
	return &Dispatcher{service: service, handlers: make(map[string]Handler)}
}

func (d *Dispatcher) Handle(op string, h Handler) {
	d.handlers[op] = h
}

func (d *Dispatcher) serve(ctx context.Context, env *Envelope) (*Reply, error) {
	h, ok := d.handlers[env.Op]
	if !ok {
		return nil, status.Errorf(codes.Unimplemented, "%s: unknown op %q", d.service, env.Op)
	}
	result, err := h(ctx, env.Payload)
	if err != nil {
		return &Reply{ErrMsg: err.Error()}, nil
	}
	if result == nil {
		return &Reply{}, nil
	}
	payload, err := json.Marshal(result)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "%s: marshal reply for %q: %v", d.service, env.Op, err)
	}
	return &Reply{Payload: payload}, nil
}

// UnaryHandler adapts a Dispatcher into the single grpc.MethodDesc.Handler
// every generated *ServiceServer registers its whole method set under.
func UnaryHandler(d *Dispatcher) func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Envelope)
		if err := dec(in); err != nil {
			return nil, err
		}
		handler := func(ctx context.Context, req any) (any, error) {
			return d.serve(ctx, req.(*Envelope))
		}
		if interceptor == nil {
			return handler(ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + d.service + "/Call"}
		return interceptor(ctx, in, info, handler)
	}
}
