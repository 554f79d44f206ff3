// Package tracing wires LinkFlow's gRPC services into OpenTelemetry: a
// tracer provider exporting to an OTLP collector, plus the Tracer/Span
// surface the rest of the engine calls into so call sites never import the
// SDK directly.
package tracing

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	grpccodes "google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ProviderConfig configures the OTLP exporter backing a service's traces.
type ProviderConfig struct {
	ServiceName    string
	ServiceVersion string
	// CollectorEndpoint is host:port of an OTLP/gRPC collector. Empty
	// disables export; spans are still created and sampled but dropped.
	CollectorEndpoint string
	SampleRatio       float64
}

// NewProvider builds a sdktrace.TracerProvider exporting to the configured
// OTLP collector and installs it as the global provider. Callers must call
// the returned shutdown func on exit to flush pending spans.
func NewProvider(ctx context.Context, cfg ProviderConfig) (*sdktrace.TracerProvider, func(context.Context) error, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
		),
	)
	if err != nil {
		return nil, nil, err
	}

	ratio := cfg.SampleRatio
	if ratio <= 0 {
		ratio = 1.0
	}
	sampler := sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))

	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
	}

	if cfg.CollectorEndpoint != "" {
		exporter, err := otlptracegrpc.New(ctx,
			otlptracegrpc.WithEndpoint(cfg.CollectorEndpoint),
			otlptracegrpc.WithInsecure(),
		)
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(5*time.Second)))
	}

	tp := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(tp)

	return tp, tp.Shutdown, nil
}

// Tracer is the handle call sites use to start spans; it wraps an
// otel.Tracer so the rest of the engine never imports the SDK directly.
type Tracer struct {
	otel trace.Tracer
}

// NewTracer returns a Tracer drawing from the globally installed provider.
func NewTracer(name string) *Tracer {
	return &Tracer{otel: otel.Tracer(name)}
}

// Start begins a span named `name` as a child of any span already in ctx.
func (t *Tracer) Start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return t.otel.Start(ctx, name, trace.WithAttributes(attrs...))
}

// SpanFromContext returns the active span, or a no-op span if none is set.
func SpanFromContext(ctx context.Context) trace.Span {
	return trace.SpanFromContext(ctx)
}

// RecordError marks the active span as errored; a nil err is a no-op.
func RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// UnaryServerInterceptor starts one span per unary RPC, named after the
// service, for servers (history, matching) that wire interceptors directly
// rather than through the frontend interceptor chain.
func UnaryServerInterceptor(serviceName string) grpc.UnaryServerInterceptor {
	tracer := NewTracer(serviceName)
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		ctx, span := tracer.Start(ctx, info.FullMethod, attribute.String("rpc.system", "grpc"))
		defer span.End()

		resp, err := handler(ctx, req)

		code := grpccodes.OK
		if err != nil {
			if st, ok := status.FromError(err); ok {
				code = st.Code()
			} else {
				code = grpccodes.Unknown
			}
			RecordError(span, err)
		}
		span.SetAttributes(attribute.String("rpc.grpc.status_code", code.String()))
		return resp, err
	}
}

// StreamServerInterceptor is the streaming counterpart of
// UnaryServerInterceptor.
func StreamServerInterceptor(serviceName string) grpc.StreamServerInterceptor {
	tracer := NewTracer(serviceName)
	return func(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		ctx, span := tracer.Start(ss.Context(), info.FullMethod, attribute.String("rpc.system", "grpc"))
		defer span.End()

		err := handler(srv, &tracingServerStream{ServerStream: ss, ctx: ctx})
		if err != nil {
			RecordError(span, err)
		}
		return err
	}
}

type tracingServerStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *tracingServerStream) Context() context.Context { return s.ctx }
