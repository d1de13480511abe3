// Copyright © 2026 The ELPS authors

package debugrepl

import (
	"errors"
	"fmt"
	"strings"

	"github.com/luthersystems/v8bridge/debugger"
	"github.com/luthersystems/v8bridge/diagnostic"
)

// HandleEvent prints asynchronous session events. Pass it to
// debugger.WithEventCallback.
func (r *REPL) HandleEvent(evt debugger.Event) {
	switch evt.Type {
	case debugger.EventBroken:
		r.render(diagnostic.Diagnostic{
			Severity: diagnostic.SeverityNote,
			Message:  pausedMessage(evt),
			Spans:    locationSpans(evt.Location),
		})
	case debugger.EventException:
		exc := evt.Exception
		d := diagnostic.Diagnostic{
			Severity: diagnostic.SeverityError,
			Message:  exc.TypeName,
			Spans:    locationSpans(evt.Location),
		}
		if exc.Text != "" && !strings.HasPrefix(exc.Text, exc.TypeName) {
			d.Message += ": " + exc.Text
		} else if exc.Text != "" {
			d.Message = exc.Text
		}
		if exc.Uncaught {
			d.Notes = append(d.Notes, "uncaught exception")
		} else {
			d.Notes = append(d.Notes, "caught exception")
		}
		r.render(d)
	case debugger.EventBreakpointBound:
		// Reported by the break command.
	case debugger.EventTerminated:
		d := diagnostic.Diagnostic{
			Severity: diagnostic.SeverityNote,
			Message:  "debugging session ended",
		}
		switch {
		case evt.Err == nil:
		case errors.Is(evt.Err, debugger.ErrExited):
			d.Notes = append(d.Notes, "the debuggee exited")
		default:
			d.Severity = diagnostic.SeverityError
			d.Notes = append(d.Notes, evt.Err.Error())
		}
		r.render(d)
	}
}

func pausedMessage(evt debugger.Event) string {
	switch {
	case len(evt.Breakpoints) == 1:
		return fmt.Sprintf("paused at breakpoint %d", evt.Breakpoints[0].LocalID)
	case len(evt.Breakpoints) > 1:
		ids := make([]string, len(evt.Breakpoints))
		for i, bp := range evt.Breakpoints {
			ids[i] = fmt.Sprint(bp.LocalID)
		}
		return "paused at breakpoints " + strings.Join(ids, ", ")
	case evt.Reason == debugger.StopStep:
		return "paused"
	default:
		return "paused at breakpoint"
	}
}

func locationSpans(loc *debugger.Location) []diagnostic.Span {
	if loc == nil {
		return nil
	}
	file := loc.FilePath
	if file == "" {
		file = loc.ModuleName
	}
	return []diagnostic.Span{{
		File:   file,
		Line:   loc.Line + 1,
		Col:    loc.Column + 1,
		Source: loc.SourceLineText,
	}}
}
