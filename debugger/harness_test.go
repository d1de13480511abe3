// Copyright © 2026 The ELPS authors

package debugger

import (
	"context"
	"testing"
	"time"

	"github.com/luthersystems/v8bridge/bridgetest"
	"github.com/stretchr/testify/require"
)

type harness struct {
	t      *testing.T
	d      *bridgetest.Debuggee
	s      *Session
	events chan Event
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	d, tr := bridgetest.NewPipe(t)
	events := make(chan Event, 128)
	opts = append([]Option{
		WithLogger(bridgetest.NewLogrus(t)),
		WithEventCallback(func(evt Event) { events <- evt }),
	}, opts...)
	s := New(tr, opts...)
	t.Cleanup(func() { _ = s.Close() })
	return &harness{t: t, d: d, s: s, events: events}
}

// next waits for the next event of type typ, skipping others.
func (h *harness) next(typ EventType) Event {
	h.t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case evt := <-h.events:
			if evt.Type == typ {
				return evt
			}
		case <-timeout:
			h.t.Fatalf("no %v event", typ)
			return Event{}
		}
	}
}

// drain returns the events queued so far.
func (h *harness) drain() []Event {
	var out []Event
	for {
		select {
		case evt := <-h.events:
			out = append(out, evt)
		default:
			return out
		}
	}
}

// breakAt makes the debuggee pause and waits for the session to see it.
func (h *harness) breakAt(line int, targets ...int) Event {
	h.t.Helper()
	if targets == nil {
		targets = []int{}
	}
	h.d.SendEvent("break", map[string]interface{}{
		"sourceLine":     line,
		"sourceColumn":   4,
		"sourceLineText": "  return a + x;",
		"script":         map[string]interface{}{"id": 7, "name": "/remote/app.js"},
		"breakpoints":    targets,
	})
	return h.next(EventBroken)
}

// bind sets a breakpoint and answers its setbreakpoint request with
// target id target.
func (h *harness) bind(spec BreakpointSpec, target int) BindResult {
	h.t.Helper()
	res := async(func() (BindResult, error) {
		return h.s.Breakpoints().Set(context.Background(), spec)
	})
	req := h.d.Expect("setbreakpoint")
	h.d.Respond(req, map[string]interface{}{
		"type":       req.Arg("type").String(),
		"breakpoint": target,
		"line":       spec.Line,
		"column":     spec.Column,
	})
	r := <-res
	require.NoError(h.t, r.err)
	return r.v
}

type result[T any] struct {
	v   T
	err error
}

func async[T any](f func() (T, error)) <-chan result[T] {
	ch := make(chan result[T], 1)
	go func() {
		v, err := f()
		ch <- result[T]{v, err}
	}()
	return ch
}

func asyncErr(f func() error) <-chan error {
	ch := make(chan error, 1)
	go func() { ch <- f() }()
	return ch
}
