// Copyright © 2026 The ELPS authors

package debugger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/luthersystems/v8bridge/debugger/wire"
	"github.com/sirupsen/logrus"
)

// BreakpointState tracks a breakpoint's acknowledgement by the debuggee.
type BreakpointState int

const (
	// BreakpointPending has been requested but not acknowledged.
	BreakpointPending BreakpointState = iota
	// BreakpointBound carries a target id assigned by the debuggee.
	BreakpointBound
	// BreakpointDeleted has been removed locally.
	BreakpointDeleted
)

func (s BreakpointState) String() string {
	switch s {
	case BreakpointPending:
		return "pending"
	case BreakpointBound:
		return "bound"
	case BreakpointDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// BreakOnKind selects when a hit breakpoint actually pauses.
type BreakOnKind int

const (
	BreakAlways BreakOnKind = iota
	BreakOnEqual
	BreakOnGreaterOrEqual
	BreakOnMod
)

func (k BreakOnKind) String() string {
	switch k {
	case BreakAlways:
		return "always"
	case BreakOnEqual:
		return "=="
	case BreakOnGreaterOrEqual:
		return ">="
	case BreakOnMod:
		return "%"
	default:
		return "unknown"
	}
}

// BreakOn is a hit-count policy.
type BreakOn struct {
	Kind  BreakOnKind
	Count int
}

func (b BreakOn) shouldBreak(hitCount int) bool {
	switch b.Kind {
	case BreakOnEqual:
		return hitCount == b.Count
	case BreakOnGreaterOrEqual:
		return hitCount >= b.Count
	case BreakOnMod:
		return b.Count <= 0 || hitCount%b.Count == 0
	default:
		return true
	}
}

// ignoreCount is the number of hits the debuggee may skip without
// reporting them, given hitCount hits so far.
func (b BreakOn) ignoreCount(hitCount int) int {
	switch b.Kind {
	case BreakOnEqual, BreakOnGreaterOrEqual:
		if n := b.Count - 1 - hitCount; n > 0 {
			return n
		}
	}
	return 0
}

// Breakpoint is a snapshot of a user breakpoint. LocalID is stable for
// the lifetime of the process; TargetID is assigned by the debuggee and
// changes across sessions.
type Breakpoint struct {
	LocalID  int
	TargetID int
	FilePath string
	Line     int
	Column   int
	// RequestedLine and RequestedColumn keep the location the caller
	// asked for; Line and Column hold where the debuggee bound it.
	RequestedLine   int
	RequestedColumn int
	Condition       string
	HitCount        int
	Enabled         bool
	BreakOn         BreakOn
	State           BreakpointState

	// ignore is the ignoreCount last acknowledged by the debuggee.
	ignore int
}

// FixedUp reports whether the bound location differs from the requested one.
func (bp Breakpoint) FixedUp() bool {
	return bp.State == BreakpointBound &&
		(bp.Line != bp.RequestedLine || bp.Column != bp.RequestedColumn)
}

// BreakpointSpec describes a breakpoint to set.
type BreakpointSpec struct {
	FilePath  string
	Line      int
	Column    int
	Condition string
	BreakOn   BreakOn
	Disabled  bool
}

// BindResult is the outcome of a successful Set.
type BindResult struct {
	Breakpoint Breakpoint
	// FixedUp is true when the debuggee moved the breakpoint, in which
	// case the UI should move it too.
	FixedUp bool
}

// Breakpoints tracks user breakpoints and reconciles them with the
// debuggee. Its tables are guarded by the session mutex; responses and
// events mutate them on the reader goroutine.
type Breakpoints struct {
	s *Session

	nextID   int
	byLocal  map[int]*Breakpoint
	byTarget map[int]*Breakpoint
}

func newBreakpoints(s *Session) *Breakpoints {
	return &Breakpoints{
		s:        s,
		byLocal:  make(map[int]*Breakpoint),
		byTarget: make(map[int]*Breakpoint),
	}
}

// Set creates a pending breakpoint and waits for the debuggee to bind it.
// When the debuggee refuses or answers without a breakpoint id, the
// breakpoint is dropped. When the wait is abandoned or times out the
// breakpoint stays pending and a late acknowledgement still binds it, or
// clears it on the debuggee if it was removed meanwhile.
func (m *Breakpoints) Set(ctx context.Context, spec BreakpointSpec) (BindResult, error) {
	if spec.FilePath == "" {
		return BindResult{}, errors.New("could not set breakpoint: no file")
	}
	m.s.paths.Add(spec.FilePath)

	m.s.mu.Lock()
	if m.s.state == StateTerminated {
		m.s.mu.Unlock()
		return BindResult{}, fmt.Errorf("could not set breakpoint: %w", ErrTerminated)
	}
	m.nextID++
	bp := &Breakpoint{
		LocalID:         m.nextID,
		FilePath:        spec.FilePath,
		Line:            spec.Line,
		Column:          spec.Column,
		RequestedLine:   spec.Line,
		RequestedColumn: spec.Column,
		Condition:       spec.Condition,
		Enabled:         !spec.Disabled,
		BreakOn:         spec.BreakOn,
		State:           BreakpointPending,
	}
	m.byLocal[bp.LocalID] = bp
	m.s.mu.Unlock()

	return m.bind(ctx, bp)
}

// Restore re-creates breakpoints from an earlier session, keeping their
// local ids and hit counts. Target ids are assigned afresh.
func (m *Breakpoints) Restore(ctx context.Context, saved []Breakpoint) ([]BindResult, error) {
	var (
		results []BindResult
		errs    []error
	)
	for _, old := range saved {
		if old.State == BreakpointDeleted {
			continue
		}
		m.s.paths.Add(old.FilePath)
		m.s.mu.Lock()
		if _, taken := m.byLocal[old.LocalID]; taken {
			m.s.mu.Unlock()
			errs = append(errs, fmt.Errorf("could not restore breakpoint %d: id in use", old.LocalID))
			continue
		}
		bp := &Breakpoint{
			LocalID:         old.LocalID,
			FilePath:        old.FilePath,
			Line:            old.RequestedLine,
			Column:          old.RequestedColumn,
			RequestedLine:   old.RequestedLine,
			RequestedColumn: old.RequestedColumn,
			Condition:       old.Condition,
			HitCount:        old.HitCount,
			Enabled:         old.Enabled,
			BreakOn:         old.BreakOn,
			State:           BreakpointPending,
		}
		if bp.LocalID > m.nextID {
			m.nextID = bp.LocalID
		}
		m.byLocal[bp.LocalID] = bp
		m.s.mu.Unlock()

		res, err := m.bind(ctx, bp)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		results = append(results, res)
	}
	return results, errors.Join(errs...)
}

// Rebind re-issues the set request of every live breakpoint, for example
// after the debuggee reloaded its scripts. Local ids are kept and target
// ids are replaced.
func (m *Breakpoints) Rebind(ctx context.Context) ([]BindResult, error) {
	m.s.mu.Lock()
	live := make([]*Breakpoint, 0, len(m.byLocal))
	for _, bp := range m.byLocal {
		live = append(live, bp)
	}
	sort.Slice(live, func(i, j int) bool { return live[i].LocalID < live[j].LocalID })
	var stale []int
	for _, bp := range live {
		if bp.TargetID != 0 {
			stale = append(stale, bp.TargetID)
			delete(m.byTarget, bp.TargetID)
			bp.TargetID = 0
		}
		bp.State = BreakpointPending
	}
	m.s.mu.Unlock()

	for _, target := range stale {
		m.s.corr.post("clearbreakpoint", map[string]interface{}{"breakpoint": target}, nil)
	}
	var (
		results []BindResult
		errs    []error
	)
	for _, bp := range live {
		res, err := m.bind(ctx, bp)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		results = append(results, res)
	}
	return results, errors.Join(errs...)
}

func (m *Breakpoints) bind(ctx context.Context, bp *Breakpoint) (BindResult, error) {
	m.s.mu.RLock()
	args, ignore := m.setArgs(bp)
	m.s.mu.RUnlock()

	var (
		result   BindResult
		applyErr error
	)
	_, err := m.s.corr.send(ctx, "setbreakpoint", args, func(resp *wire.Response) {
		result, applyErr = m.applyBind(bp, ignore, resp)
	})
	if err == nil {
		err = applyErr
	}
	if err != nil {
		return BindResult{}, fmt.Errorf("could not set breakpoint at %s:%d: %w", bp.FilePath, bp.RequestedLine, err)
	}
	return result, nil
}

func (m *Breakpoints) setArgs(bp *Breakpoint) (map[string]interface{}, int) {
	ignore := bp.BreakOn.ignoreCount(bp.HitCount)
	args := map[string]interface{}{
		"line":    bp.RequestedLine,
		"column":  bp.RequestedColumn,
		"enabled": bp.Enabled,
	}
	if bp.Condition != "" {
		args["condition"] = bp.Condition
	}
	if ignore > 0 {
		args["ignoreCount"] = ignore
	}
	if id, ok := m.s.moduleFor(bp.FilePath); ok {
		args["type"] = "scriptId"
		args["target"] = id
	} else {
		args["type"] = "scriptRegExp"
		args["target"] = scriptPattern(bp.FilePath)
	}
	return args, ignore
}

type setBreakpointBody struct {
	Breakpoint      int  `json:"breakpoint"`
	Line            *int `json:"line"`
	Column          *int `json:"column"`
	ActualLocations []struct {
		Line     int `json:"line"`
		Column   int `json:"column"`
		ScriptID int `json:"script_id"`
	} `json:"actual_locations"`
}

// applyBind runs on the reader goroutine. A breakpoint the debuggee did
// not bind is dropped.
func (m *Breakpoints) applyBind(bp *Breakpoint, ignore int, resp *wire.Response) (BindResult, error) {
	log := m.s.log.WithField("breakpoint", bp.LocalID)
	if !resp.Success {
		m.drop(bp)
		log.WithField("reason", resp.Message).Info("debuggee refused breakpoint")
		// The correlator reports the refusal as a *CommandError.
		return BindResult{}, nil
	}
	var body setBreakpointBody
	if err := json.Unmarshal(resp.Body, &body); err != nil || body.Breakpoint == 0 {
		m.drop(bp)
		log.WithError(err).Warn("setbreakpoint response without breakpoint id")
		return BindResult{}, fmt.Errorf("%w: setbreakpoint response without breakpoint id", wire.ErrInvalidMessage)
	}

	m.s.mu.Lock()
	if bp.State == BreakpointDeleted {
		m.s.mu.Unlock()
		log.WithField("target", body.Breakpoint).Debug("clearing breakpoint removed in flight")
		m.s.corr.post("clearbreakpoint", map[string]interface{}{"breakpoint": body.Breakpoint}, nil)
		return BindResult{}, fmt.Errorf("breakpoint %d: %w", bp.LocalID, ErrRemoved)
	}
	if bp.TargetID != 0 {
		delete(m.byTarget, bp.TargetID)
	}
	bp.TargetID = body.Breakpoint
	bp.State = BreakpointBound
	bp.ignore = ignore
	switch {
	case len(body.ActualLocations) > 0:
		bp.Line = body.ActualLocations[0].Line
		bp.Column = body.ActualLocations[0].Column
	default:
		if body.Line != nil {
			bp.Line = *body.Line
		}
		if body.Column != nil {
			bp.Column = *body.Column
		}
	}
	m.byTarget[bp.TargetID] = bp
	snap := *bp
	m.s.mu.Unlock()

	res := BindResult{Breakpoint: snap, FixedUp: snap.FixedUp()}
	log.WithFields(logrus.Fields{
		"target": snap.TargetID,
		"line":   snap.Line,
		"column": snap.Column,
		"fixup":  res.FixedUp,
	}).Debug("breakpoint bound")
	m.s.notify(Event{Type: EventBreakpointBound, Breakpoint: &snap, FixedUp: res.FixedUp})
	return res, nil
}

// drop forgets a breakpoint the debuggee did not bind.
func (m *Breakpoints) drop(bp *Breakpoint) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if m.byLocal[bp.LocalID] == bp {
		delete(m.byLocal, bp.LocalID)
	}
	bp.State = BreakpointDeleted
}

// Enable turns a bound breakpoint on.
func (m *Breakpoints) Enable(ctx context.Context, id int) (Breakpoint, error) {
	return m.change(ctx, id, "enable", func(bp *Breakpoint) { bp.Enabled = true })
}

// Disable turns a bound breakpoint off without removing it.
func (m *Breakpoints) Disable(ctx context.Context, id int) (Breakpoint, error) {
	return m.change(ctx, id, "disable", func(bp *Breakpoint) { bp.Enabled = false })
}

// SetCondition replaces the breakpoint's condition. An empty condition
// makes the breakpoint unconditional.
func (m *Breakpoints) SetCondition(ctx context.Context, id int, condition string) (Breakpoint, error) {
	return m.change(ctx, id, "change condition of", func(bp *Breakpoint) { bp.Condition = condition })
}

// SetHitCount resets the breakpoint's hit count.
func (m *Breakpoints) SetHitCount(ctx context.Context, id int, hitCount int) (Breakpoint, error) {
	if hitCount < 0 {
		return Breakpoint{}, fmt.Errorf("could not set hit count of breakpoint %d: negative count", id)
	}
	return m.change(ctx, id, "set hit count of", func(bp *Breakpoint) { bp.HitCount = hitCount })
}

// SetBreakOn replaces the breakpoint's hit-count policy.
func (m *Breakpoints) SetBreakOn(ctx context.Context, id int, breakOn BreakOn) (Breakpoint, error) {
	return m.change(ctx, id, "change hit policy of", func(bp *Breakpoint) { bp.BreakOn = breakOn })
}

// change sends a changebreakpoint request for the mutated copy of the
// breakpoint and applies the mutation only once the debuggee accepts it.
func (m *Breakpoints) change(ctx context.Context, id int, what string, mutate func(*Breakpoint)) (Breakpoint, error) {
	m.s.mu.RLock()
	bp, ok := m.byLocal[id]
	if !ok {
		m.s.mu.RUnlock()
		return Breakpoint{}, fmt.Errorf("could not %s breakpoint %d: %w", what, id, ErrUnknownBreakpoint)
	}
	if bp.State != BreakpointBound {
		m.s.mu.RUnlock()
		return Breakpoint{}, fmt.Errorf("could not %s breakpoint %d: %w", what, id, ErrNotBound)
	}
	next := *bp
	target := bp.TargetID
	m.s.mu.RUnlock()

	mutate(&next)
	ignore := next.BreakOn.ignoreCount(next.HitCount)
	args := map[string]interface{}{
		"breakpoint":  target,
		"enabled":     next.Enabled,
		"condition":   next.Condition,
		"ignoreCount": ignore,
	}

	var out Breakpoint
	_, err := m.s.corr.send(ctx, "changebreakpoint", args, func(resp *wire.Response) {
		m.s.mu.Lock()
		defer m.s.mu.Unlock()
		if resp.Success && bp.State == BreakpointBound && bp.TargetID == target {
			bp.Enabled = next.Enabled
			bp.Condition = next.Condition
			bp.HitCount = next.HitCount
			bp.BreakOn = next.BreakOn
			bp.ignore = ignore
		}
		out = *bp
	})
	if err != nil {
		return Breakpoint{}, fmt.Errorf("could not %s breakpoint %d: %w", what, id, err)
	}
	return out, nil
}

// Remove deletes a breakpoint. The local entity is gone as soon as Remove
// is called; a bound breakpoint is then cleared on the debuggee, retrying
// on timeout. Removing an unknown or already removed breakpoint is a
// no-op.
func (m *Breakpoints) Remove(ctx context.Context, id int) error {
	m.s.mu.Lock()
	bp, ok := m.byLocal[id]
	if !ok {
		m.s.mu.Unlock()
		return nil
	}
	delete(m.byLocal, id)
	wasBound := bp.State == BreakpointBound
	target := bp.TargetID
	bp.State = BreakpointDeleted
	if target != 0 && m.byTarget[target] == bp {
		delete(m.byTarget, target)
	}
	terminated := m.s.state == StateTerminated
	m.s.mu.Unlock()

	if !wasBound || terminated {
		return nil
	}
	var err error
	for attempt := 1; attempt <= m.s.cfg.removeAttempts; attempt++ {
		_, err = m.s.corr.send(ctx, "clearbreakpoint", map[string]interface{}{"breakpoint": target}, nil)
		if err == nil || !errors.Is(err, ErrTimeout) {
			break
		}
		m.s.log.WithFields(logrus.Fields{"breakpoint": id, "attempt": attempt}).Warn("clearbreakpoint timed out")
	}
	if err != nil && !errors.Is(err, ErrTerminated) {
		return fmt.Errorf("could not clear breakpoint %d: %w", id, err)
	}
	return nil
}

// Get returns a snapshot of the breakpoint with the given local id.
func (m *Breakpoints) Get(id int) (Breakpoint, bool) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	bp, ok := m.byLocal[id]
	if !ok {
		return Breakpoint{}, false
	}
	return *bp, true
}

// All returns snapshots of every live breakpoint ordered by local id.
func (m *Breakpoints) All() []Breakpoint {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	out := make([]Breakpoint, 0, len(m.byLocal))
	for _, bp := range m.byLocal {
		out = append(out, *bp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LocalID < out[j].LocalID })
	return out
}

// hit records a break on the given target ids and reports whether the
// hit-count policy of any of them asks to stop. A break with no known
// breakpoint (a step, a debugger statement, a suspend) always stops.
// Caller holds s.mu.
func (m *Breakpoints) hit(targets []int) ([]Breakpoint, bool) {
	var (
		hits  []Breakpoint
		known int
		stop  bool
	)
	for _, t := range targets {
		bp, ok := m.byTarget[t]
		if !ok {
			m.s.log.WithField("target", t).Warn("break on unknown breakpoint")
			continue
		}
		known++
		bp.HitCount += bp.ignore + 1
		bp.ignore = 0
		if bp.BreakOn.shouldBreak(bp.HitCount) {
			stop = true
			hits = append(hits, *bp)
		}
	}
	if known == 0 {
		return nil, true
	}
	return hits, stop
}

// scriptPattern builds a case-insensitive regular expression matching
// script names ending in file's basename. JavaScript regular expressions
// have no inline case folding, so each letter becomes a character class.
func scriptPattern(file string) string {
	base := path.Base(strings.ReplaceAll(file, `\`, "/"))
	var b strings.Builder
	b.WriteString(`(^|[\\/])`)
	for _, r := range base {
		lo, up := unicode.ToLower(r), unicode.ToUpper(r)
		if lo != up {
			b.WriteString("[" + string(up) + string(lo) + "]")
			continue
		}
		b.WriteString(regexp.QuoteMeta(string(r)))
	}
	b.WriteString("$")
	return b.String()
}
