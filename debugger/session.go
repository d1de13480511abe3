// Copyright © 2026 The ELPS authors

// Package debugger implements a client for the V8 debug protocol. A
// Session owns one connection to a debuggee and exposes blocking,
// context-aware calls over the asynchronous request/response/event
// traffic.
//
// Concurrency model: a single reader goroutine pumps bytes from the
// transport through the wire decoder and applies every response and
// event, in arrival order, before reading the next message. Session state
// (run state, modules, breakpoints) is mutated only on that goroutine.
// Callers may issue commands from any goroutine; a command allocates a
// sequence number, writes its request and waits for the reader to
// resolve it.
package debugger

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/luthersystems/v8bridge/debugger/transport"
	"github.com/luthersystems/v8bridge/debugger/wire"
	"github.com/sirupsen/logrus"
)

// Handshake holds the header-only connect message the debuggee sends
// when a client attaches.
type Handshake struct {
	V8Version       string
	ProtocolVersion string
	EmbeddingHost   string
}

// Session is a connection to one debuggee.
type Session struct {
	id   string
	tr   transport.Transport
	cfg  *config
	log  logrus.FieldLogger
	corr *correlator
	dec  *wire.Decoder

	paths    *PathMapper
	handlers map[string]eventHandler
	bps      *Breakpoints

	mu        sync.RWMutex
	state     State
	episode   int
	location  *Location
	exception *ExceptionInfo
	modules   moduleTable
	handshake *Handshake
	err       error

	hsCh     chan struct{}
	hsOnce   sync.Once
	done     chan struct{}
	termOnce sync.Once
}

// New starts a session over an established transport. The reader
// goroutine starts immediately.
func New(tr transport.Transport, opts ...Option) *Session {
	cfg := newConfig(opts...)
	id := uuid.NewString()
	log := cfg.log.WithFields(logrus.Fields{"session": id, "addr": tr.RemoteAddr()})
	s := &Session{
		id:      id,
		tr:      tr,
		cfg:     cfg,
		log:     log,
		corr:    newCorrelator(tr, cfg.sink, log, cfg.timeout),
		dec:     wire.NewDecoder(),
		paths:   cfg.paths,
		modules: make(moduleTable),
		hsCh:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	s.corr.onTransportError = func(err error) { s.terminate(err) }
	s.handlers = s.eventHandlers()
	s.bps = newBreakpoints(s)
	go s.pump()
	return s
}

// Connect dials the debug port at addr and starts a session.
func Connect(ctx context.Context, addr string, opts ...Option) (*Session, error) {
	tr, err := transport.DialTCP(ctx, addr, 0)
	if err != nil {
		return nil, err
	}
	return New(tr, opts...), nil
}

// ID returns the session's unique id, used in logs.
func (s *Session) ID() string {
	return s.id
}

// Breakpoints returns the session's breakpoint manager.
func (s *Session) Breakpoints() *Breakpoints {
	return s.bps
}

// Paths returns the mapper used to match script names to local files.
func (s *Session) Paths() *PathMapper {
	return s.paths
}

// State returns the current run state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Episode returns the number of the current (or most recent) break.
func (s *Session) Episode() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.episode
}

// Location returns where the debuggee is paused, or nil while running.
func (s *Session) Location() *Location {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state != StateBroken || s.location == nil {
		return nil
	}
	loc := *s.location
	return &loc
}

// Exception returns the exception the debuggee is paused on, if any.
func (s *Session) Exception() *ExceptionInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state != StateBroken || s.exception == nil {
		return nil
	}
	exc := *s.exception
	return &exc
}

// Modules returns every script reported so far, ordered by id.
func (s *Session) Modules() []Module {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.modules.sorted()
}

// Module looks up a script by id.
func (s *Session) Module(id int) (Module, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.modules[id]
	if !ok {
		return Module{}, false
	}
	return *m, true
}

// moduleFor finds a loaded module whose name maps to local. Caller holds
// s.mu.
func (s *Session) moduleFor(local string) (int, bool) {
	for _, m := range s.modules.sorted() {
		if p, ok := s.paths.Resolve(m.Name); ok && p == local {
			return m.ID, true
		}
	}
	return 0, false
}

// Handshake returns the debuggee's connect message, if it has arrived.
func (s *Session) Handshake() (Handshake, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.handshake == nil {
		return Handshake{}, false
	}
	return *s.handshake, true
}

// WaitHandshake blocks until the debuggee's connect message arrives.
func (s *Session) WaitHandshake(ctx context.Context) (Handshake, error) {
	select {
	case <-s.hsCh:
		s.mu.RLock()
		defer s.mu.RUnlock()
		return *s.handshake, nil
	case <-s.done:
		return Handshake{}, s.Err()
	case <-ctx.Done():
		return Handshake{}, ctx.Err()
	}
}

// Done is closed when the session terminates.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Err returns why the session terminated, or nil while it is live. A
// session closed by the caller reports a TerminatedError with no cause.
func (s *Session) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state != StateTerminated {
		return nil
	}
	return &TerminatedError{Cause: s.err}
}

// Pending returns the number of requests awaiting a response.
func (s *Session) Pending() int {
	return s.corr.pendingCount()
}

// Close ends the session. Outstanding requests fail with ErrTerminated.
func (s *Session) Close() error {
	s.terminate(nil)
	return nil
}

// Disconnect asks the debuggee to resume and detach, then closes the
// session.
func (s *Session) Disconnect(ctx context.Context) error {
	_, err := s.corr.send(ctx, "disconnect", nil, nil)
	s.terminate(nil)
	if err != nil && !errors.Is(err, ErrTerminated) {
		return fmt.Errorf("disconnect: %w", err)
	}
	return nil
}

// pump is the reader goroutine.
func (s *Session) pump() {
	buf := make([]byte, 32<<10)
	for {
		n, err := s.tr.Read(buf)
		if n > 0 {
			frames, ferr := s.dec.Feed(buf[:n])
			if ferr != nil {
				s.log.WithError(ferr).Warn("dropping malformed frame")
			}
			for _, f := range frames {
				s.handleFrame(f)
			}
		}
		if err != nil {
			s.terminate(fmt.Errorf("transport: %w", err))
			return
		}
	}
}

func (s *Session) handleFrame(f wire.Frame) {
	if f.IsHandshake() {
		hs := &Handshake{
			V8Version:       f.Header["v8-version"],
			ProtocolVersion: f.Header["protocol-version"],
			EmbeddingHost:   f.Header["embedding-host"],
		}
		s.mu.Lock()
		s.handshake = hs
		s.mu.Unlock()
		s.hsOnce.Do(func() { close(s.hsCh) })
		s.log.WithFields(logrus.Fields{"v8": hs.V8Version, "host": hs.EmbeddingHost}).Info("debuggee connected")
		return
	}
	if len(f.Body) == 0 {
		return
	}
	msg, err := wire.Parse(f.Body)
	if err != nil {
		s.log.WithError(err).Warn("dropping message")
		return
	}
	switch m := msg.(type) {
	case *wire.Response:
		if m.Running {
			s.resume()
		}
		s.corr.handleResponse(m)
	case *wire.Event:
		s.dispatch(m)
	}
}

// terminate moves the session to its final state exactly once: the
// transport is closed, every pending request fails and a single
// EventTerminated is delivered. cause is nil for a deliberate close.
func (s *Session) terminate(cause error) {
	s.termOnce.Do(func() {
		s.mu.Lock()
		s.state = StateTerminated
		s.err = cause
		s.location = nil
		s.exception = nil
		s.mu.Unlock()

		if err := s.tr.Close(); err != nil {
			s.log.WithError(err).Debug("close transport")
		}
		s.corr.failAll(&TerminatedError{Cause: cause})
		if cause != nil {
			s.log.WithError(cause).Info("debugging session ended")
		} else {
			s.log.Info("debugging session closed")
		}
		s.notify(Event{Type: EventTerminated, Err: cause})
		close(s.done)
	})
}

func (s *Session) notify(evt Event) {
	if s.cfg.onEvent != nil {
		s.cfg.onEvent(evt)
	}
}
