// Copyright © 2026 The ELPS authors

package debugger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSession_Handshake(t *testing.T) {
	h := newHarness(t)
	_, ok := h.s.Handshake()
	assert.False(t, ok)

	h.d.Handshake("3.28.71.19", "node v0.12.7")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	hs, err := h.s.WaitHandshake(ctx)
	require.NoError(t, err)
	assert.Equal(t, "3.28.71.19", hs.V8Version)
	assert.Equal(t, "1", hs.ProtocolVersion)
	assert.Equal(t, "node v0.12.7", hs.EmbeddingHost)
	assert.Equal(t, StateRunning, h.s.State())
}

func TestSession_SequenceStrictlyIncreases(t *testing.T) {
	h := newHarness(t)
	const n = 8
	results := make([]<-chan result[string], n)
	for i := range results {
		results[i] = async(func() (string, error) { return h.s.Version(context.Background()) })
	}
	last := 0
	for i := 0; i < n; i++ {
		req := h.d.Expect("version")
		assert.Greater(t, req.Seq, last)
		last = req.Seq
		h.d.Respond(req, map[string]interface{}{"V8Version": "3.28"})
	}
	for _, ch := range results {
		r := <-ch
		require.NoError(t, r.err)
		assert.Equal(t, "3.28", r.v)
	}
	assert.Equal(t, n, h.s.corr.lastSeq())
	assert.Zero(t, h.s.Pending())
}

func TestSession_ConnectionResetFailsPending(t *testing.T) {
	h := newHarness(t)
	var results []<-chan result[string]
	for i := 0; i < 3; i++ {
		results = append(results, async(func() (string, error) { return h.s.Version(context.Background()) }))
	}
	for i := 0; i < 3; i++ {
		h.d.Expect("version")
	}
	assert.Equal(t, 3, h.s.Pending())

	h.d.Close()
	for _, ch := range results {
		r := <-ch
		assert.ErrorIs(t, r.err, ErrTerminated)
	}
	evt := h.next(EventTerminated)
	require.Error(t, evt.Err)
	<-h.s.Done()
	assert.Equal(t, StateTerminated, h.s.State())
	assert.Zero(t, h.s.Pending())
	assert.ErrorIs(t, h.s.Err(), ErrTerminated)

	_ = h.s.Close()
	for _, e := range h.drain() {
		assert.NotEqual(t, EventTerminated, e.Type, "termination must be reported once")
	}

	_, err := h.s.Version(context.Background())
	assert.ErrorIs(t, err, ErrTerminated)
}

func TestSession_ExitEvent(t *testing.T) {
	h := newHarness(t)
	h.d.SendEvent("exit", map[string]interface{}{"exitCode": 0})
	evt := h.next(EventTerminated)
	assert.ErrorIs(t, evt.Err, ErrExited)
	<-h.s.Done()
	assert.ErrorIs(t, h.s.Err(), ErrExited)
	assert.ErrorIs(t, h.s.Err(), ErrTerminated)
}

func TestSession_Timeout(t *testing.T) {
	h := newHarness(t, WithRequestTimeout(200*time.Millisecond))
	res := async(func() (string, error) { return h.s.Version(context.Background()) })
	req := h.d.Expect("version")
	r := <-res
	assert.ErrorIs(t, r.err, ErrTimeout)
	assert.Zero(t, h.s.Pending())
	assert.Zero(t, h.s.corr.expiredCount())

	// The late answer is dropped and the session carries on.
	h.d.Respond(req, map[string]interface{}{"V8Version": "late"})
	res = async(func() (string, error) { return h.s.Version(context.Background()) })
	req = h.d.Expect("version")
	h.d.Respond(req, map[string]interface{}{"V8Version": "3.28"})
	r = <-res
	require.NoError(t, r.err)
	assert.Equal(t, "3.28", r.v)
	assert.Equal(t, StateRunning, h.s.State())
}

func TestSession_CancelLeavesRequestPending(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	res := async(func() (string, error) { return h.s.Version(ctx) })
	req := h.d.Expect("version")
	cancel()
	r := <-res
	assert.ErrorIs(t, r.err, context.Canceled)
	assert.Equal(t, 1, h.s.Pending())

	h.d.Respond(req, map[string]interface{}{"V8Version": "3.28"})
	assert.Eventually(t, func() bool { return h.s.Pending() == 0 }, 5*time.Second, 10*time.Millisecond)
}

func TestSession_CommandError(t *testing.T) {
	h := newHarness(t)
	res := async(func() (string, error) { return h.s.Version(context.Background()) })
	h.d.RespondError(h.d.Expect("version"), "Unknown command")
	r := <-res
	var cerr *CommandError
	require.True(t, errors.As(r.err, &cerr))
	assert.Equal(t, "version", cerr.Command)
	assert.Equal(t, "Unknown command", cerr.Message)
}

func TestSession_MalformedFrameIsDropped(t *testing.T) {
	h := newHarness(t)
	h.d.WriteRaw([]byte("Bogus header\r\n\r\n"))
	h.d.WriteRaw([]byte("Content-Length: 5\r\n\r\nnope!"))
	h.d.SendEvent("afterCompile", map[string]interface{}{
		"script": map[string]interface{}{"id": 3, "name": "lib.js"},
	})
	evt := h.next(EventModuleLoaded)
	assert.Equal(t, Module{ID: 3, Name: "lib.js"}, *evt.Module)
	assert.Equal(t, StateRunning, h.s.State())
}

func TestSession_ModulesFromEventsAndScripts(t *testing.T) {
	h := newHarness(t)
	h.d.SendEvent("afterCompile", map[string]interface{}{
		"script": map[string]interface{}{"id": 2, "name": "b.js"},
	})
	h.next(EventModuleLoaded)

	res := async(func() ([]Module, error) { return h.s.Scripts(context.Background()) })
	req := h.d.Expect("scripts")
	assert.Equal(t, int64(4), req.Arg("types").Int())
	h.d.Respond(req, []map[string]interface{}{
		{"id": 1, "name": "a.js"},
		{"id": 2, "name": "b.js"},
	})
	r := <-res
	require.NoError(t, r.err)
	assert.Equal(t, []Module{{1, "a.js"}, {2, "b.js"}}, r.v)

	m, ok := h.s.Module(1)
	require.True(t, ok)
	assert.Equal(t, "a.js", m.Name)
	_, ok = h.s.Module(9)
	assert.False(t, ok)
}

func TestSession_ExceptionBreaks(t *testing.T) {
	h := newHarness(t)
	h.d.SendEvent("exception", map[string]interface{}{
		"uncaught":       false,
		"exception":      map[string]interface{}{"type": "undefined", "text": "undefined"},
		"sourceLine":     3,
		"sourceColumn":   2,
		"sourceLineText": "throw undefined;",
		"script":         map[string]interface{}{"id": 7, "name": "app.js"},
	})
	evt := h.next(EventException)
	require.NotNil(t, evt.Exception)
	assert.Equal(t, "Undefined", evt.Exception.TypeName)
	assert.False(t, evt.Exception.Uncaught)
	assert.Equal(t, StopException, evt.Reason)
	assert.Equal(t, 1, evt.Episode)
	assert.Equal(t, StateBroken, h.s.State())

	loc := h.s.Location()
	require.NotNil(t, loc)
	assert.Equal(t, 7, loc.ModuleID)
	assert.Equal(t, 3, loc.Line)
	assert.NotNil(t, h.s.Exception())
}

func TestSession_ExceptionClassName(t *testing.T) {
	h := newHarness(t)
	h.d.SendEvent("exception", map[string]interface{}{
		"uncaught":  true,
		"exception": map[string]interface{}{"type": "error", "className": "TypeError", "text": "TypeError: x is not a function"},
		"script":    map[string]interface{}{"id": 7, "name": "app.js"},
	})
	evt := h.next(EventException)
	assert.Equal(t, "TypeError", evt.Exception.TypeName)
	assert.True(t, evt.Exception.Uncaught)
}

func TestSession_UnknownEventIgnored(t *testing.T) {
	h := newHarness(t)
	h.d.SendEvent("beforeCompile", map[string]interface{}{})
	h.d.SendEvent("afterCompile", map[string]interface{}{
		"script": map[string]interface{}{"id": 1, "name": "a.js"},
	})
	h.next(EventModuleLoaded)
	assert.Equal(t, StateRunning, h.s.State())
}

func TestSession_Disconnect(t *testing.T) {
	h := newHarness(t)
	errc := asyncErr(func() error { return h.s.Disconnect(context.Background()) })
	h.d.Respond(h.d.Expect("disconnect"), nil)
	require.NoError(t, <-errc)
	<-h.s.Done()
	evt := h.next(EventTerminated)
	assert.NoError(t, evt.Err)
	var terr *TerminatedError
	require.True(t, errors.As(h.s.Err(), &terr))
	assert.Nil(t, terr.Cause)
}

func TestNormalizeTypeName(t *testing.T) {
	tests := []struct {
		typ, class, want string
	}{
		{"undefined", "", "Undefined"},
		{"null", "", "Null"},
		{"number", "", "Number"},
		{"boolean", "", "Boolean"},
		{"string", "", "String"},
		{"regexp", "RegExp", "RegExp"},
		{"function", "Function", "Function"},
		{"object", "", "Object"},
		{"object", "Buffer", "Buffer"},
		{"error", "", "Error"},
		{"error", "RangeError", "RangeError"},
		{"", "", "Unknown"},
		{"symbol", "", "symbol"},
	}
	for _, test := range tests {
		assert.Equal(t, test.want, normalizeTypeName(test.typ, test.class), "%s/%s", test.typ, test.class)
	}
}
