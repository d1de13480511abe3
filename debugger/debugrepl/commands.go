// Copyright © 2026 The ELPS authors

package debugrepl

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/luthersystems/v8bridge/debugger"
	"github.com/luthersystems/v8bridge/diagnostic"
	"github.com/muesli/reflow/indent"
	"github.com/muesli/reflow/wordwrap"
)

type command struct {
	name    string
	aliases []string
	usage   string
	doc     string
	run     func(ctx context.Context, r *REPL, args string) error
	quit    bool
}

var commands []*command

func init() {
	commands = []*command{
		{name: "break", aliases: []string{"b"}, usage: "break FILE:LINE[:COL] [if COND]",
			doc: "Set a breakpoint. FILE may be relative to the source root. With a condition the debuggee only pauses when COND evaluates to true in the breakpoint's scope.",
			run: cmdBreak},
		{name: "delete", aliases: []string{"d"}, usage: "delete ID", doc: "Remove a breakpoint.", run: cmdDelete},
		{name: "enable", usage: "enable ID", doc: "Re-enable a disabled breakpoint.", run: cmdEnable},
		{name: "disable", usage: "disable ID", doc: "Keep a breakpoint but stop pausing on it.", run: cmdDisable},
		{name: "condition", usage: "condition ID [EXPR]", doc: "Replace a breakpoint's condition. Without EXPR the breakpoint becomes unconditional.", run: cmdCondition},
		{name: "hits", usage: "hits ID [==|>=|%]N",
			doc: "Pause on a breakpoint only at hit N (==, the default), from hit N on (>=) or on every Nth hit (%). N of 0 pauses on every hit and resets the count.",
			run: cmdHits},
		{name: "continue", aliases: []string{"c"}, usage: "continue", doc: "Resume the debuggee.", run: resumeCmd((*debugger.Session).Continue)},
		{name: "next", aliases: []string{"n"}, usage: "next", doc: "Step over the current statement.", run: resumeCmd((*debugger.Session).StepOver)},
		{name: "step", aliases: []string{"s"}, usage: "step", doc: "Step into the current call.", run: resumeCmd((*debugger.Session).StepInto)},
		{name: "out", aliases: []string{"o"}, usage: "out", doc: "Run until the current function returns.", run: resumeCmd((*debugger.Session).StepOut)},
		{name: "pause", usage: "pause", doc: "Pause the running debuggee.", run: cmdPause},
		{name: "bt", aliases: []string{"backtrace"}, usage: "bt [N]", doc: "Print the call stack, at most N frames.", run: cmdBacktrace},
		{name: "print", aliases: []string{"p"}, usage: "print EXPR",
			doc: "Evaluate EXPR in the top frame when paused, or globally while running, and print the result. Objects are expanded one level.",
			run: cmdPrint},
		{name: "scripts", usage: "scripts", doc: "List the scripts the debuggee has loaded.", run: cmdScripts},
		{name: "info", usage: "info breakpoints", doc: "List breakpoints.", run: cmdInfo},
		{name: "catch", usage: "catch all|uncaught|none", doc: "Choose which thrown exceptions pause the debuggee.", run: cmdCatch},
		{name: "help", aliases: []string{"h", "?"}, usage: "help [COMMAND]", doc: "Describe commands.", run: cmdHelp},
		{name: "quit", aliases: []string{"q", "exit"}, usage: "quit", doc: "Leave the console. The session is closed by the caller.", quit: true},
	}
}

func lookup(name string) (*command, bool) {
	for _, c := range commands {
		if c.name == name {
			return c, true
		}
		for _, a := range c.aliases {
			if a == name {
				return c, true
			}
		}
	}
	return nil, false
}

func cmdBreak(ctx context.Context, r *REPL, args string) error {
	loc, cond, _ := strings.Cut(args, " if ")
	file, line, col, err := parseLocation(strings.TrimSpace(loc))
	if err != nil {
		return err
	}
	res, err := r.s.Breakpoints().Set(ctx, debugger.BreakpointSpec{
		FilePath:  r.resolvePath(file),
		Line:      line - 1,
		Column:    col,
		Condition: strings.TrimSpace(cond),
	})
	if err != nil {
		return err
	}
	bp := res.Breakpoint
	if res.FixedUp {
		r.render(diagnostic.Diagnostic{
			Severity: diagnostic.SeverityWarning,
			Message:  fmt.Sprintf("breakpoint %d moved to line %d", bp.LocalID, bp.Line+1),
			Spans: []diagnostic.Span{{
				File:  bp.FilePath,
				Line:  bp.Line + 1,
				Col:   bp.Column + 1,
				Label: fmt.Sprintf("requested line %d", bp.RequestedLine+1),
			}},
		})
		return nil
	}
	r.printf("breakpoint %d at %s:%d\n", bp.LocalID, bp.FilePath, bp.Line+1)
	return nil
}

// parseLocation splits FILE:LINE[:COL]. FILE may itself contain colons
// (C:\src\app.js:3). COL is returned 0-based.
func parseLocation(s string) (file string, line, col int, err error) {
	parts := strings.Split(s, ":")
	var nums []int
	for len(parts) > 1 && len(nums) < 2 {
		n, convErr := strconv.Atoi(parts[len(parts)-1])
		if convErr != nil {
			break
		}
		nums = append([]int{n}, nums...)
		parts = parts[:len(parts)-1]
	}
	file = strings.Join(parts, ":")
	if file == "" || len(nums) == 0 {
		return "", 0, 0, fmt.Errorf("expected FILE:LINE[:COL], got %q", s)
	}
	line = nums[0]
	if len(nums) == 2 {
		col = nums[1] - 1
	}
	if line < 1 || col < 0 {
		return "", 0, 0, fmt.Errorf("invalid location %q", s)
	}
	return file, line, col, nil
}

func breakpointID(s string) (int, error) {
	id, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("expected a breakpoint id, got %q", s)
	}
	return id, nil
}

func cmdDelete(ctx context.Context, r *REPL, args string) error {
	id, err := breakpointID(args)
	if err != nil {
		return err
	}
	if _, ok := r.s.Breakpoints().Get(id); !ok {
		return fmt.Errorf("breakpoint %d: %w", id, debugger.ErrUnknownBreakpoint)
	}
	if err := r.s.Breakpoints().Remove(ctx, id); err != nil {
		return err
	}
	r.printf("deleted breakpoint %d\n", id)
	return nil
}

func cmdEnable(ctx context.Context, r *REPL, args string) error {
	id, err := breakpointID(args)
	if err != nil {
		return err
	}
	_, err = r.s.Breakpoints().Enable(ctx, id)
	return err
}

func cmdDisable(ctx context.Context, r *REPL, args string) error {
	id, err := breakpointID(args)
	if err != nil {
		return err
	}
	_, err = r.s.Breakpoints().Disable(ctx, id)
	return err
}

func cmdCondition(ctx context.Context, r *REPL, args string) error {
	idStr, cond, _ := strings.Cut(args, " ")
	id, err := breakpointID(idStr)
	if err != nil {
		return err
	}
	_, err = r.s.Breakpoints().SetCondition(ctx, id, strings.TrimSpace(cond))
	return err
}

func cmdHits(ctx context.Context, r *REPL, args string) error {
	idStr, spec, _ := strings.Cut(args, " ")
	id, err := breakpointID(idStr)
	if err != nil {
		return err
	}
	on, err := parseBreakOn(strings.TrimSpace(spec))
	if err != nil {
		return err
	}
	if on.Kind == debugger.BreakAlways {
		if _, err := r.s.Breakpoints().SetHitCount(ctx, id, 0); err != nil {
			return err
		}
	}
	_, err = r.s.Breakpoints().SetBreakOn(ctx, id, on)
	return err
}

func parseBreakOn(s string) (debugger.BreakOn, error) {
	kind := debugger.BreakOnEqual
	for _, op := range []struct {
		prefix string
		kind   debugger.BreakOnKind
	}{{">=", debugger.BreakOnGreaterOrEqual}, {"==", debugger.BreakOnEqual}, {"%", debugger.BreakOnMod}} {
		if strings.HasPrefix(s, op.prefix) {
			kind = op.kind
			s = strings.TrimSpace(s[len(op.prefix):])
			break
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return debugger.BreakOn{}, fmt.Errorf("expected a hit count, got %q", s)
	}
	if n == 0 {
		return debugger.BreakOn{}, nil
	}
	return debugger.BreakOn{Kind: kind, Count: n}, nil
}

func resumeCmd(resume func(*debugger.Session, context.Context) error) func(context.Context, *REPL, string) error {
	return func(ctx context.Context, r *REPL, _ string) error {
		return resume(r.s, ctx)
	}
}

func cmdPause(ctx context.Context, r *REPL, _ string) error {
	return r.s.Suspend(ctx)
}

func cmdBacktrace(ctx context.Context, r *REPL, args string) error {
	limit := 0
	if args != "" {
		n, err := strconv.Atoi(args)
		if err != nil || n < 0 {
			return fmt.Errorf("expected a frame count, got %q", args)
		}
		limit = n
	}
	frames, err := r.s.Backtrace(ctx, limit)
	if err != nil {
		return err
	}
	for _, f := range frames {
		where := f.FilePath
		if where == "" {
			where = f.ModuleName
		}
		r.printf("#%-2d %s (%s:%d:%d)\n", f.Index, f.Function, where, f.Line+1, f.Column+1)
		for _, v := range f.Arguments {
			r.printf("      %s = %s\n", v.Name, v.Text)
		}
	}
	return nil
}

func cmdPrint(ctx context.Context, r *REPL, args string) error {
	if args == "" {
		return errors.New("expected an expression")
	}
	v, err := r.s.Evaluate(ctx, args, nil)
	if err != nil {
		return err
	}
	if v == nil {
		return nil
	}
	r.printf("%s: %s\n", v.Type, v.Text)
	if !v.Expandable || r.s.State() != debugger.StateBroken {
		return nil
	}
	children, err := r.s.Children(ctx, *v)
	if err != nil {
		return err
	}
	for _, c := range children {
		r.printf("  %s: %s\n", c.Name, c.Text)
	}
	return nil
}

func cmdScripts(ctx context.Context, r *REPL, _ string) error {
	modules, err := r.s.Scripts(ctx)
	if err != nil {
		return err
	}
	for _, m := range modules {
		local, ok := r.s.Paths().Resolve(m.Name)
		if ok {
			r.printf("%4d %s -> %s\n", m.ID, m.Name, local)
			continue
		}
		r.printf("%4d %s\n", m.ID, m.Name)
	}
	return nil
}

func cmdInfo(_ context.Context, r *REPL, args string) error {
	if args != "breakpoints" && args != "b" {
		return fmt.Errorf("unknown info topic %q", args)
	}
	bps := r.s.Breakpoints().All()
	if len(bps) == 0 {
		r.printf("no breakpoints\n")
		return nil
	}
	for _, bp := range bps {
		enabled := "y"
		if !bp.Enabled {
			enabled = "n"
		}
		r.printf("%-3d %-7s %s %s:%d hits=%d", bp.LocalID, bp.State, enabled, bp.FilePath, bp.Line+1, bp.HitCount)
		if bp.BreakOn.Kind != debugger.BreakAlways {
			r.printf(" break-on=%s%d", bp.BreakOn.Kind, bp.BreakOn.Count)
		}
		if bp.Condition != "" {
			r.printf(" if %s", bp.Condition)
		}
		r.printf("\n")
	}
	return nil
}

func cmdCatch(ctx context.Context, r *REPL, args string) error {
	modes := map[string]debugger.ExceptionBreakMode{
		"all":      debugger.ExceptionBreakAll,
		"uncaught": debugger.ExceptionBreakUncaught,
		"none":     debugger.ExceptionBreakNever,
	}
	mode, ok := modes[args]
	if !ok {
		return fmt.Errorf("expected all, uncaught or none, got %q", args)
	}
	return r.s.SetExceptionBreak(ctx, mode)
}

func cmdHelp(_ context.Context, r *REPL, args string) error {
	if args != "" {
		c, ok := lookup(args)
		if !ok {
			return fmt.Errorf("no command %q", args)
		}
		r.printf("%s\n", helpText(c))
		return nil
	}
	sorted := append([]*command(nil), commands...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].name < sorted[j].name })
	for _, c := range sorted {
		r.printf("%s\n", helpText(c))
	}
	return nil
}

func helpText(c *command) string {
	text := c.usage
	if len(c.aliases) > 0 {
		text += " (" + strings.Join(c.aliases, ", ") + ")"
	}
	return text + "\n" + indent.String(wordwrap.String(c.doc, 64), 4)
}
