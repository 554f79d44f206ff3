package interceptor

import (
	"context"

	"google.golang.org/grpc"

	"github.com/linkflow/engine/internal/observability/tracing"
)

// TracingInterceptor starts one span per RPC so request latency and
// failures show up in the trace backend alongside the Prometheus metrics
// LoggingInterceptor and ServiceMetrics already record.
type TracingInterceptor struct {
	unary  grpc.UnaryServerInterceptor
	stream grpc.StreamServerInterceptor
}

func NewTracingInterceptor(serviceName string) *TracingInterceptor {
	return &TracingInterceptor{
		unary:  tracing.UnaryServerInterceptor(serviceName),
		stream: tracing.StreamServerInterceptor(serviceName),
	}
}

func (t *TracingInterceptor) UnaryInterceptor(
	ctx context.Context,
	req interface{},
	info *grpc.UnaryServerInfo,
	handler grpc.UnaryHandler,
) (interface{}, error) {
	return t.unary(ctx, req, info, handler)
}

func (t *TracingInterceptor) StreamInterceptor(
	srv interface{},
	ss grpc.ServerStream,
	info *grpc.StreamServerInfo,
	handler grpc.StreamHandler,
) error {
	return t.stream(srv, ss, info, handler)
}
