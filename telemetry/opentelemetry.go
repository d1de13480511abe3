// Copyright © 2026 The ELPS authors

package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

// DefaultTracerName is used when no tracer name is configured.
const DefaultTracerName = "v8bridge"

const rpcService = "v8-debug"

type otelSink struct {
	tracerName string
}

// NewOpenTelemetry returns a sink that opens one client span per request
// on the global tracer provider.
func NewOpenTelemetry(tracerName string) Sink {
	if tracerName == "" {
		tracerName = DefaultTracerName
	}
	return &otelSink{tracerName: tracerName}
}

func (s *otelSink) tracer() trace.Tracer {
	return otel.GetTracerProvider().Tracer(s.tracerName)
}

func (s *otelSink) StartRequest(ctx context.Context, command string, seq int) (context.Context, func(error)) {
	ctx, span := s.tracer().Start(ctx, command,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			semconv.RPCService(rpcService),
			semconv.RPCMethod(command),
			attribute.Int("v8.seq", seq),
		))
	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}
}

func (s *otelSink) Event(ctx context.Context, name string) {
	_, span := s.tracer().Start(ctx, "event "+name,
		trace.WithAttributes(attribute.String("v8.event", name)))
	span.End()
}
