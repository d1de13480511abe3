// Copyright © 2026 The ELPS authors

package telemetry

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	octrace "go.opencensus.io/trace"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// ParseKind reads a sink kind from configuration.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(s)); k {
	case "", KindNone:
		return KindNone, nil
	case KindOpenTelemetry, KindOpenCensus:
		return k, nil
	}
	return KindNone, fmt.Errorf("unknown telemetry %q (want none, otel or opencensus)", s)
}

// Setup installs a process-wide tracer for kind whose finished spans are
// written to log at debug level, and returns the matching sink. The
// returned function flushes and uninstalls the tracer.
func Setup(kind Kind, log logrus.FieldLogger) (Sink, func(context.Context) error) {
	switch kind {
	case KindOpenTelemetry:
		tp := sdktrace.NewTracerProvider(
			sdktrace.WithSyncer(&logExporter{log: log}),
			sdktrace.WithSampler(sdktrace.AlwaysSample()),
		)
		otel.SetTracerProvider(tp)
		return New(kind), tp.Shutdown
	case KindOpenCensus:
		exp := &ocLogExporter{log: log}
		octrace.ApplyConfig(octrace.Config{DefaultSampler: octrace.AlwaysSample()})
		octrace.RegisterExporter(exp)
		return New(kind), func(context.Context) error {
			octrace.UnregisterExporter(exp)
			return nil
		}
	default:
		return Nop(), func(context.Context) error { return nil }
	}
}

// logExporter writes OpenTelemetry spans to a logger.
type logExporter struct {
	log logrus.FieldLogger
}

var _ sdktrace.SpanExporter = (*logExporter)(nil)

func (e *logExporter) ExportSpans(_ context.Context, spans []sdktrace.ReadOnlySpan) error {
	for _, s := range spans {
		fields := logrus.Fields{
			"span":     s.Name(),
			"duration": s.EndTime().Sub(s.StartTime()),
		}
		for _, kv := range s.Attributes() {
			fields[string(kv.Key)] = kv.Value.Emit()
		}
		entry := e.log.WithFields(fields)
		if desc := s.Status().Description; desc != "" {
			entry = entry.WithField("error", desc)
		}
		entry.Debug("span")
	}
	return nil
}

func (e *logExporter) Shutdown(context.Context) error {
	return nil
}

// ocLogExporter writes OpenCensus spans to a logger.
type ocLogExporter struct {
	log logrus.FieldLogger
}

func (e *ocLogExporter) ExportSpan(sd *octrace.SpanData) {
	fields := logrus.Fields{
		"span":     sd.Name,
		"duration": sd.EndTime.Sub(sd.StartTime),
	}
	for k, v := range sd.Attributes {
		fields[k] = v
	}
	if sd.Status.Message != "" {
		fields["error"] = sd.Status.Message
	}
	e.log.WithFields(fields).Debug("span")
}
