// Copyright © 2026 The ELPS authors

package debugger

import (
	"context"
	"testing"
	"time"

	"github.com/luthersystems/v8bridge/bridgetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func backtraceBody() (body, refs interface{}) {
	body = map[string]interface{}{
		"fromFrame":   0,
		"toFrame":     1,
		"totalFrames": 1,
		"frames": []map[string]interface{}{{
			"type":           "frame",
			"index":          0,
			"func":           map[string]interface{}{"ref": 0},
			"script":         map[string]interface{}{"ref": 7},
			"arguments":      []map[string]interface{}{{"name": "a", "value": map[string]interface{}{"ref": 3}}},
			"locals":         []map[string]interface{}{{"name": "x", "value": map[string]interface{}{"ref": 4}}},
			"line":           9,
			"column":         4,
			"sourceLineText": "  return a + x;",
		}},
	}
	refs = []map[string]interface{}{
		{"handle": 0, "type": "function", "name": "add", "scriptId": 7},
		{"handle": 7, "type": "script", "name": "/remote/app.js", "id": 7},
		{"handle": 3, "type": "number", "value": 1, "text": "1"},
		{"handle": 4, "type": "string", "value": "hi", "text": "hi"},
	}
	return body, refs
}

func (h *harness) backtrace() []StackFrame {
	h.t.Helper()
	res := async(func() ([]StackFrame, error) { return h.s.Backtrace(context.Background(), 0) })
	req := h.d.Expect("backtrace")
	assert.True(h.t, req.Arg("inlineRefs").Bool())
	body, refs := backtraceBody()
	h.d.Reply(req, bridgetest.Response{Success: true, Body: body, Refs: refs})
	r := <-res
	require.NoError(h.t, r.err)
	return r.v
}

func TestSession_Backtrace(t *testing.T) {
	h := newHarness(t, WithPathMapper(NewPathMapper("/home/dev/app.js")))
	h.breakAt(9)

	frames := h.backtrace()
	require.Len(t, frames, 1)
	f := frames[0]
	assert.Equal(t, "add", f.Function)
	assert.Equal(t, 7, f.ModuleID)
	assert.Equal(t, "/remote/app.js", f.ModuleName)
	assert.Equal(t, "/home/dev/app.js", f.FilePath)
	assert.Equal(t, 9, f.Line)
	assert.Equal(t, 1, f.Episode())
	require.Len(t, f.Arguments, 1)
	assert.Equal(t, Variable{Name: "a", Type: "Number", Text: "1", Handle: 3, episode: 1}, f.Arguments[0])
	require.Len(t, f.Locals, 1)
	assert.Equal(t, `"hi"`, f.Locals[0].Text)
	assert.Equal(t, "String", f.Locals[0].Type)
}

func TestSession_BacktraceRequiresBreak(t *testing.T) {
	h := newHarness(t)
	_, err := h.s.Backtrace(context.Background(), 0)
	assert.ErrorIs(t, err, ErrNotBroken)
	h.d.ExpectNone(20 * time.Millisecond)
}

func TestSession_StaleFrameRejected(t *testing.T) {
	h := newHarness(t)
	h.breakAt(9)
	frames := h.backtrace()
	require.Len(t, frames, 1)

	errc := asyncErr(func() error { return h.s.Continue(context.Background()) })
	req := h.d.Expect("continue")
	assert.False(t, req.Arg("stepaction").Exists())
	h.d.Reply(req, bridgetest.Response{Success: true, Running: true})
	require.NoError(t, <-errc)
	resumed := h.next(EventResumed)
	assert.Equal(t, 1, resumed.Episode)
	assert.Nil(t, h.s.Location())

	_, err := h.s.Evaluate(context.Background(), "a", &frames[0])
	assert.ErrorIs(t, err, ErrNotBroken)

	evt := h.breakAt(12)
	assert.Equal(t, 2, evt.Episode)
	_, err = h.s.Evaluate(context.Background(), "a", &frames[0])
	assert.ErrorIs(t, err, ErrStaleHandle)
	_, err = h.s.Children(context.Background(), Variable{Handle: 3, episode: 1})
	assert.ErrorIs(t, err, ErrStaleHandle)
	h.d.ExpectNone(20 * time.Millisecond)
}

func TestSession_Steps(t *testing.T) {
	h := newHarness(t)
	assert.ErrorIs(t, h.s.StepOver(context.Background()), ErrNotBroken)

	steps := []struct {
		action string
		step   func(context.Context) error
	}{
		{"in", h.s.StepInto},
		{"next", h.s.StepOver},
		{"out", h.s.StepOut},
	}
	for i, test := range steps {
		h.breakAt(10 + i)
		errc := asyncErr(func() error { return test.step(context.Background()) })
		req := h.d.Expect("continue")
		assert.Equal(t, test.action, req.Arg("stepaction").String())
		assert.Equal(t, int64(1), req.Arg("stepcount").Int())
		h.d.Reply(req, bridgetest.Response{Success: true, Running: true})
		require.NoError(t, <-errc)
		h.next(EventResumed)
		assert.Equal(t, StateRunning, h.s.State())
	}

	// A break with no breakpoint after a step reports the step.
	evt := h.breakAt(20)
	assert.Equal(t, StopStep, evt.Reason)
	assert.Equal(t, 4, evt.Episode)
}

func TestSession_Suspend(t *testing.T) {
	h := newHarness(t)
	errc := asyncErr(func() error { return h.s.Suspend(context.Background()) })
	h.d.Respond(h.d.Expect("suspend"), nil)
	require.NoError(t, <-errc)
	h.breakAt(3)
	assert.Equal(t, StateBroken, h.s.State())
}

func TestSession_Evaluate(t *testing.T) {
	h := newHarness(t)

	// Running: evaluated globally.
	res := async(func() (*Variable, error) { return h.s.Evaluate(context.Background(), "1+1", nil) })
	req := h.d.Expect("evaluate")
	assert.True(t, req.Arg("global").Bool())
	assert.False(t, req.Arg("frame").Exists())
	h.d.Respond(req, map[string]interface{}{"handle": 1, "type": "number", "value": 2, "text": "2"})
	r := <-res
	require.NoError(t, r.err)
	assert.Equal(t, "2", r.v.Text)

	h.breakAt(9)
	res = async(func() (*Variable, error) { return h.s.Evaluate(context.Background(), "obj", nil) })
	req = h.d.Expect("evaluate")
	assert.Equal(t, "obj", req.Arg("expression").String())
	assert.Equal(t, int64(0), req.Arg("frame").Int())
	assert.True(t, req.Arg("disable_break").Bool())
	h.d.Respond(req, map[string]interface{}{"handle": 5, "type": "object", "className": "Object", "text": "#<Object>"})
	r = <-res
	require.NoError(t, r.err)
	obj := *r.v
	assert.Equal(t, "Object", obj.Type)
	assert.True(t, obj.Expandable)
	assert.Equal(t, 5, obj.Handle)

	kids := async(func() ([]Variable, error) { return h.s.Children(context.Background(), obj) })
	req = h.d.Expect("lookup")
	assert.Equal(t, int64(5), req.Arg("handles.0").Int())
	h.d.Reply(req, bridgetest.Response{
		Success: true,
		Body: map[string]interface{}{
			"5": map[string]interface{}{
				"handle": 5, "type": "object", "className": "Object",
				"properties": []map[string]interface{}{{"name": "k", "ref": 6}},
			},
		},
		Refs: []map[string]interface{}{{"handle": 6, "type": "number", "value": 42, "text": "42"}},
	})
	k := <-kids
	require.NoError(t, k.err)
	require.Len(t, k.v, 1)
	assert.Equal(t, "k", k.v[0].Name)
	assert.Equal(t, "42", k.v[0].Text)
	assert.Equal(t, 1, k.v[0].Episode())

	res = async(func() (*Variable, error) { return h.s.Evaluate(context.Background(), "nope", nil) })
	h.d.RespondError(h.d.Expect("evaluate"), "ReferenceError: nope is not defined")
	r = <-res
	assert.Error(t, r.err)
}

func TestSession_SetExceptionBreak(t *testing.T) {
	tests := []struct {
		mode          ExceptionBreakMode
		all, uncaught bool
	}{
		{ExceptionBreakAll, true, true},
		{ExceptionBreakUncaught, false, true},
		{ExceptionBreakNever, false, false},
	}
	for _, test := range tests {
		t.Run(test.mode.String(), func(t *testing.T) {
			h := newHarness(t)
			errc := asyncErr(func() error { return h.s.SetExceptionBreak(context.Background(), test.mode) })
			req := h.d.Expect("setexceptionbreak")
			assert.Equal(t, "all", req.Arg("type").String())
			assert.Equal(t, test.all, req.Arg("enabled").Bool())
			h.d.Respond(req, nil)
			req = h.d.Expect("setexceptionbreak")
			assert.Equal(t, "uncaught", req.Arg("type").String())
			assert.Equal(t, test.uncaught, req.Arg("enabled").Bool())
			h.d.Respond(req, nil)
			require.NoError(t, <-errc)
		})
	}
}
