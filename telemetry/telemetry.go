// Copyright © 2026 The ELPS authors

// Package telemetry defines the sink the debugger session reports
// protocol activity to. A sink is always passed in explicitly; there is
// no package-level default other than Nop.
package telemetry

import "context"

// Sink receives protocol activity.
type Sink interface {
	// StartRequest is called when a command is written to the wire. The
	// returned function is called exactly once with the command outcome.
	StartRequest(ctx context.Context, command string, seq int) (context.Context, func(error))
	// Event records an inbound debuggee event.
	Event(ctx context.Context, name string)
}

// Nop returns a sink that discards everything.
func Nop() Sink {
	return nop{}
}

type nop struct{}

func (nop) StartRequest(ctx context.Context, _ string, _ int) (context.Context, func(error)) {
	return ctx, func(error) {}
}

func (nop) Event(context.Context, string) {}

// Kind names a sink implementation in configuration.
type Kind string

const (
	KindNone          Kind = "none"
	KindOpenTelemetry Kind = "otel"
	KindOpenCensus    Kind = "opencensus"
)

// New returns the sink named by kind. Unknown kinds yield Nop.
func New(kind Kind) Sink {
	switch kind {
	case KindOpenTelemetry:
		return NewOpenTelemetry(DefaultTracerName)
	case KindOpenCensus:
		return NewOpenCensus()
	default:
		return Nop()
	}
}
