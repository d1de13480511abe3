// Copyright © 2026 The ELPS authors

package debugger

import (
	"errors"
	"fmt"
)

var (
	// ErrTerminated matches every failure caused by the end of the session.
	ErrTerminated = errors.New("debugging session ended")
	// ErrTimeout is returned when the debuggee does not answer a request
	// within the session's request timeout.
	ErrTimeout = errors.New("request timed out")
	// ErrNotBroken is returned by commands that need a paused debuggee.
	ErrNotBroken = errors.New("debuggee is not paused")
	// ErrStaleHandle is returned when a frame or variable from an earlier
	// break episode is used.
	ErrStaleHandle = errors.New("handle belongs to an earlier break")
	// ErrUnknownBreakpoint is returned for local ids the manager does not
	// track.
	ErrUnknownBreakpoint = errors.New("unknown breakpoint")
	// ErrNotBound is returned when a breakpoint mutation is attempted
	// before the debuggee acknowledged the breakpoint.
	ErrNotBound = errors.New("breakpoint is not bound")
	// ErrRemoved is returned by Set when the breakpoint was removed before
	// the debuggee acknowledged it.
	ErrRemoved = errors.New("breakpoint was removed")
	// ErrExited is the termination cause when the debuggee reports its
	// own exit.
	ErrExited = errors.New("debuggee exited")
)

// CommandError is a request the debuggee answered with success=false.
type CommandError struct {
	Command string
	Message string
}

func (e *CommandError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s failed", e.Command)
	}
	return fmt.Sprintf("%s failed: %s", e.Command, e.Message)
}

// TerminatedError is delivered to every request outstanding when the
// session ends. It matches ErrTerminated with errors.Is.
type TerminatedError struct {
	Cause error
}

func (e *TerminatedError) Error() string {
	if e.Cause == nil {
		return ErrTerminated.Error()
	}
	return fmt.Sprintf("%v: %v", ErrTerminated, e.Cause)
}

func (e *TerminatedError) Is(target error) bool {
	return target == ErrTerminated
}

func (e *TerminatedError) Unwrap() error {
	return e.Cause
}
