// Copyright © 2026 The ELPS authors

package debugger

import (
	"context"
	"fmt"
	"strconv"

	"github.com/luthersystems/v8bridge/debugger/wire"
	"github.com/tidwall/gjson"
)

// StepAction selects the kind of step a Continue performs.
type StepAction string

const (
	StepNone StepAction = ""
	StepIn   StepAction = "in"
	StepNext StepAction = "next"
	StepOut  StepAction = "out"
)

// ExceptionBreakMode controls when thrown values pause the debuggee.
type ExceptionBreakMode int

const (
	ExceptionBreakNever ExceptionBreakMode = iota
	ExceptionBreakUncaught
	ExceptionBreakAll
)

func (m ExceptionBreakMode) String() string {
	switch m {
	case ExceptionBreakUncaught:
		return "uncaught"
	case ExceptionBreakAll:
		return "all"
	default:
		return "none"
	}
}

// Continue resumes the paused debuggee.
func (s *Session) Continue(ctx context.Context) error {
	return s.resumeWith(ctx, StepNone)
}

// StepInto resumes and pauses at the next statement, entering calls.
func (s *Session) StepInto(ctx context.Context) error {
	return s.resumeWith(ctx, StepIn)
}

// StepOver resumes and pauses at the next statement in the same frame.
func (s *Session) StepOver(ctx context.Context) error {
	return s.resumeWith(ctx, StepNext)
}

// StepOut resumes and pauses after the current function returns.
func (s *Session) StepOut(ctx context.Context) error {
	return s.resumeWith(ctx, StepOut)
}

func (s *Session) resumeWith(ctx context.Context, action StepAction) error {
	if err := s.requireBroken(); err != nil {
		return fmt.Errorf("continue: %w", err)
	}
	var args interface{}
	if action != StepNone {
		args = map[string]interface{}{"stepaction": string(action), "stepcount": 1}
	}
	_, err := s.corr.send(ctx, "continue", args, func(resp *wire.Response) {
		if resp.Success {
			s.resume()
		}
	})
	return err
}

// Suspend asks a running debuggee to pause. The session becomes broken
// when the resulting break event arrives.
func (s *Session) Suspend(ctx context.Context) error {
	if st := s.State(); st == StateTerminated {
		return fmt.Errorf("suspend: %w", s.Err())
	}
	_, err := s.corr.send(ctx, "suspend", nil, nil)
	return err
}

// SetExceptionBreak selects which thrown values pause the debuggee.
func (s *Session) SetExceptionBreak(ctx context.Context, mode ExceptionBreakMode) error {
	if _, err := s.corr.send(ctx, "setexceptionbreak", map[string]interface{}{
		"type":    "all",
		"enabled": mode == ExceptionBreakAll,
	}, nil); err != nil {
		return err
	}
	_, err := s.corr.send(ctx, "setexceptionbreak", map[string]interface{}{
		"type":    "uncaught",
		"enabled": mode != ExceptionBreakNever,
	}, nil)
	return err
}

// Scripts asks the debuggee for every loaded script and registers them.
func (s *Session) Scripts(ctx context.Context) ([]Module, error) {
	_, err := s.corr.send(ctx, "scripts", map[string]interface{}{
		"types":         4,
		"includeSource": false,
	}, func(resp *wire.Response) {
		if !resp.Success {
			return
		}
		for _, script := range gjson.ParseBytes(resp.Body).Array() {
			if id := script.Get("id"); id.Exists() {
				s.registerModule(int(id.Int()), script.Get("name").String())
			}
		}
	})
	if err != nil {
		return nil, err
	}
	return s.Modules(), nil
}

// Version returns the debuggee's V8 version.
func (s *Session) Version(ctx context.Context) (string, error) {
	resp, err := s.corr.send(ctx, "version", nil, nil)
	if err != nil {
		return "", err
	}
	return gjson.GetBytes(resp.Body, "V8Version").String(), nil
}

// Backtrace returns up to limit frames of the paused debuggee's stack
// (all of them when limit is zero). The frames are valid only until the
// debuggee resumes.
func (s *Session) Backtrace(ctx context.Context, limit int) ([]StackFrame, error) {
	if err := s.requireBroken(); err != nil {
		return nil, fmt.Errorf("backtrace: %w", err)
	}
	args := map[string]interface{}{"fromFrame": 0, "inlineRefs": true}
	if limit > 0 {
		args["toFrame"] = limit
	}
	var (
		frames []StackFrame
		stale  bool
	)
	_, err := s.corr.send(ctx, "backtrace", args, func(resp *wire.Response) {
		if !resp.Success {
			return
		}
		s.mu.RLock()
		episode, broken := s.episode, s.state == StateBroken
		s.mu.RUnlock()
		if !broken {
			stale = true
			return
		}
		frames = s.parseFrames(gjson.ParseBytes(resp.Body), newRefTable(resp.Refs), episode)
	})
	if err != nil {
		return nil, err
	}
	if stale {
		return nil, fmt.Errorf("backtrace: %w", ErrStaleHandle)
	}
	return frames, nil
}

// Evaluate evaluates expression. With a frame it runs in that frame of
// the current break; with a nil frame it runs in the top frame when the
// debuggee is paused and in the global scope otherwise.
func (s *Session) Evaluate(ctx context.Context, expression string, frame *StackFrame) (*Variable, error) {
	args := map[string]interface{}{
		"expression":    expression,
		"disable_break": true,
	}
	s.mu.RLock()
	episode, broken := s.episode, s.state == StateBroken
	s.mu.RUnlock()
	switch {
	case frame != nil:
		if err := s.checkEpisode(frame.episode); err != nil {
			return nil, fmt.Errorf("evaluate: %w", err)
		}
		args["frame"] = frame.Index
	case broken:
		args["frame"] = 0
	default:
		args["global"] = true
	}

	var result *Variable
	_, err := s.corr.send(ctx, "evaluate", args, func(resp *wire.Response) {
		if resp.Success {
			v := parseValue(expression, gjson.ParseBytes(resp.Body), newRefTable(resp.Refs), episode)
			result = &v
		}
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Children expands an object value into its properties.
func (s *Session) Children(ctx context.Context, v Variable) ([]Variable, error) {
	if v.Handle == 0 {
		return nil, nil
	}
	if err := s.checkEpisode(v.episode); err != nil {
		return nil, fmt.Errorf("lookup: %w", err)
	}
	var children []Variable
	_, err := s.corr.send(ctx, "lookup", map[string]interface{}{
		"handles":       []int{v.Handle},
		"includeSource": false,
	}, func(resp *wire.Response) {
		if !resp.Success {
			return
		}
		refs := newRefTable(resp.Refs)
		obj := gjson.GetBytes(resp.Body, strconv.Itoa(v.Handle))
		for _, prop := range obj.Get("properties").Array() {
			val := refs.resolve(prop)
			children = append(children, parseValue(prop.Get("name").String(), val, refs, v.episode))
		}
	})
	if err != nil {
		return nil, err
	}
	return children, nil
}

func (s *Session) requireBroken() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	switch s.state {
	case StateBroken:
		return nil
	case StateTerminated:
		return &TerminatedError{Cause: s.err}
	default:
		return ErrNotBroken
	}
}

// checkEpisode rejects handles from an earlier break.
func (s *Session) checkEpisode(episode int) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	switch {
	case s.state == StateTerminated:
		return &TerminatedError{Cause: s.err}
	case s.state != StateBroken:
		return ErrNotBroken
	case episode != s.episode:
		return ErrStaleHandle
	}
	return nil
}
