// Copyright © 2026 The ELPS authors

package telemetry

import (
	"context"

	"go.opencensus.io/trace"
)

type ocSink struct{}

// NewOpenCensus returns a sink reporting spans through OpenCensus.
func NewOpenCensus() Sink {
	return ocSink{}
}

func (ocSink) StartRequest(ctx context.Context, command string, seq int) (context.Context, func(error)) {
	ctx, span := trace.StartSpan(ctx, command, trace.WithSpanKind(trace.SpanKindClient))
	span.AddAttributes(
		trace.StringAttribute("rpc.service", rpcService),
		trace.Int64Attribute("v8.seq", int64(seq)),
	)
	return ctx, func(err error) {
		if err != nil {
			span.SetStatus(trace.Status{Code: trace.StatusCodeUnknown, Message: err.Error()})
		}
		span.End()
	}
}

func (ocSink) Event(ctx context.Context, name string) {
	_, span := trace.StartSpan(ctx, "event "+name)
	span.AddAttributes(trace.StringAttribute("v8.event", name))
	span.End()
}
