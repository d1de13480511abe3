// Copyright © 2026 The ELPS authors

package debugger

import (
	"context"

	"github.com/luthersystems/v8bridge/debugger/wire"
	"github.com/tidwall/gjson"
)

// eventHandler applies one debuggee event. Handlers run on the reader
// goroutine and must not wait on requests.
type eventHandler func(body gjson.Result)

func (s *Session) eventHandlers() map[string]eventHandler {
	return map[string]eventHandler{
		"afterCompile": s.onAfterCompile,
		"break":        s.onBreak,
		"exception":    s.onException,
		"exit":         s.onExit,
	}
}

// dispatch routes an event to its handler. Unknown events are ignored.
func (s *Session) dispatch(evt *wire.Event) {
	s.cfg.sink.Event(context.Background(), evt.Event)
	h, ok := s.handlers[evt.Event]
	if !ok {
		s.log.WithField("event", evt.Event).Debug("ignoring event")
		return
	}
	h(gjson.ParseBytes(evt.Body))
}

func (s *Session) onAfterCompile(body gjson.Result) {
	script := body.Get("script")
	if !script.Get("id").Exists() {
		s.log.Warn("afterCompile without script id")
		return
	}
	s.registerModule(int(script.Get("id").Int()), script.Get("name").String())
}

// registerModule records a script and notifies when it is new.
func (s *Session) registerModule(id int, name string) {
	s.mu.Lock()
	m, added := s.modules.register(id, name)
	snap := *m
	s.mu.Unlock()
	if added {
		s.log.WithField("module", id).WithField("name", name).Debug("module loaded")
		s.notify(Event{Type: EventModuleLoaded, Module: &snap})
	}
}

func (s *Session) onBreak(body gjson.Result) {
	loc := s.parseLocation(body)

	var targets []int
	for _, id := range body.Get("breakpoints").Array() {
		targets = append(targets, int(id.Int()))
	}

	s.mu.Lock()
	if s.state == StateTerminated {
		s.mu.Unlock()
		return
	}
	hits, stop := s.bps.hit(targets)
	if !stop {
		s.mu.Unlock()
		// Every breakpoint hit is filtered out by its hit-count policy.
		s.corr.post("continue", nil, nil)
		return
	}
	reason := StopStep
	if len(targets) > 0 {
		reason = StopBreakpoint
	}
	episode := s.enterBreakLocked(loc, nil)
	s.mu.Unlock()

	s.notify(Event{
		Type:        EventBroken,
		Episode:     episode,
		Reason:      reason,
		Location:    loc,
		Breakpoints: hits,
	})
}

func (s *Session) onException(body gjson.Result) {
	loc := s.parseLocation(body)
	exc := body.Get("exception")
	info := &ExceptionInfo{
		TypeName: normalizeTypeName(exc.Get("type").String(), exc.Get("className").String()),
		Text:     exc.Get("text").String(),
		Uncaught: body.Get("uncaught").Bool(),
		Location: loc,
	}

	s.mu.Lock()
	if s.state == StateTerminated {
		s.mu.Unlock()
		return
	}
	episode := s.enterBreakLocked(loc, info)
	s.mu.Unlock()

	s.notify(Event{
		Type:      EventException,
		Episode:   episode,
		Reason:    StopException,
		Location:  loc,
		Exception: info,
	})
}

func (s *Session) onExit(body gjson.Result) {
	s.log.WithField("code", body.Get("exitCode").Int()).Info("debuggee exited")
	s.terminate(ErrExited)
}

// enterBreakLocked starts a new break episode. Caller holds s.mu.
func (s *Session) enterBreakLocked(loc *Location, exc *ExceptionInfo) int {
	s.state = StateBroken
	s.episode++
	s.location = loc
	s.exception = exc
	return s.episode
}

// resume ends the current break episode after a continue or step was
// acknowledged.
func (s *Session) resume() {
	s.mu.Lock()
	if s.state != StateBroken {
		s.mu.Unlock()
		return
	}
	s.state = StateRunning
	s.location = nil
	s.exception = nil
	episode := s.episode
	s.mu.Unlock()
	s.notify(Event{Type: EventResumed, Episode: episode})
}

// parseLocation reads the position fields shared by break and exception
// bodies. A script seen here for the first time is registered.
func (s *Session) parseLocation(body gjson.Result) *Location {
	loc := &Location{
		Line:           int(body.Get("sourceLine").Int()),
		Column:         int(body.Get("sourceColumn").Int()),
		SourceLineText: body.Get("sourceLineText").String(),
	}
	script := body.Get("script")
	if id := script.Get("id"); id.Exists() {
		loc.ModuleID = int(id.Int())
		loc.ModuleName = script.Get("name").String()
		if loc.ModuleName != "" {
			s.registerModule(loc.ModuleID, loc.ModuleName)
		} else if m, ok := s.Module(loc.ModuleID); ok {
			loc.ModuleName = m.Name
		}
	}
	if p, ok := s.paths.Resolve(loc.ModuleName); ok {
		loc.FilePath = p
	}
	return loc
}
