// Copyright © 2026 The ELPS authors

package debugger

// State is the run state of the debuggee as seen by the session.
type State int

const (
	// StateRunning means the debuggee is executing; no frame handles are
	// valid.
	StateRunning State = iota
	// StateBroken means the debuggee is paused and frame queries are
	// valid for the current break episode.
	StateBroken
	// StateTerminated is final. Every request fails with ErrTerminated.
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateBroken:
		return "broken"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// EventType identifies the kind of session notification.
type EventType int

const (
	// EventModuleLoaded reports a newly compiled script.
	EventModuleLoaded EventType = iota
	// EventBreakpointBound reports a breakpoint acknowledged by the
	// debuggee, possibly at a corrected location.
	EventBreakpointBound
	// EventBroken reports that the debuggee paused.
	EventBroken
	// EventException reports a pause caused by a thrown value.
	EventException
	// EventResumed reports that a continue or step was acknowledged.
	EventResumed
	// EventTerminated is sent exactly once when the session ends.
	EventTerminated
)

func (t EventType) String() string {
	switch t {
	case EventModuleLoaded:
		return "module-loaded"
	case EventBreakpointBound:
		return "breakpoint-bound"
	case EventBroken:
		return "broken"
	case EventException:
		return "exception"
	case EventResumed:
		return "resumed"
	case EventTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// StopReason describes why the debuggee paused.
type StopReason string

const (
	StopBreakpoint StopReason = "breakpoint"
	StopStep       StopReason = "step"
	StopException  StopReason = "exception"
)

// Location is a position in the debuggee as reported by a break.
type Location struct {
	ModuleID       int
	ModuleName     string
	FilePath       string // local file, empty when no local match exists
	Line           int
	Column         int
	SourceLineText string
}

// Event is delivered to the EventCallback on every session state change.
type Event struct {
	Type    EventType
	Episode int

	Reason      StopReason     // EventBroken, EventException
	Location    *Location      // EventBroken, EventException
	Breakpoints []Breakpoint   // EventBroken: breakpoints that were hit
	Exception   *ExceptionInfo // EventException
	Module      *Module        // EventModuleLoaded
	Breakpoint  *Breakpoint    // EventBreakpointBound
	FixedUp     bool           // EventBreakpointBound: location differs from request
	Err         error          // EventTerminated: cause, nil on a clean close
}

// EventCallback receives session notifications. It runs on the session's
// reader goroutine and must not wait on session requests.
type EventCallback func(Event)
