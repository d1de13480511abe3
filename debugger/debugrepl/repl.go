// Copyright © 2018 The ELPS authors

// Package debugrepl is a line-oriented debugger console on top of a
// debugger.Session.
//
// Lines typed at the console are 1-based, as in an editor. The session
// speaks the debuggee's 0-based lines and columns; the console converts
// in both directions.
package debugrepl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/ergochat/readline"
	"github.com/luthersystems/v8bridge/debugger"
	"github.com/luthersystems/v8bridge/diagnostic"
)

// DefaultPrompt is shown before each command.
const DefaultPrompt = "(v8) "

type config struct {
	stdin      io.ReadCloser
	stdout     io.Writer
	prompt     string
	history    string
	sourceRoot string
	color      diagnostic.ColorMode
}

func newConfig(opts ...Option) *config {
	c := &config{
		stdout:  os.Stderr,
		prompt:  DefaultPrompt,
		history: historyPath(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type Option func(*config)

// WithStdin overrides the console input.
func WithStdin(stdin io.ReadCloser) Option {
	return func(c *config) {
		c.stdin = stdin
	}
}

// WithStdout overrides the console output.
func WithStdout(w io.Writer) Option {
	return func(c *config) {
		c.stdout = w
	}
}

// WithPrompt sets the prompt.
func WithPrompt(prompt string) Option {
	return func(c *config) {
		c.prompt = prompt
	}
}

// WithHistoryFile sets where command history is kept. An empty path
// disables history.
func WithHistoryFile(path string) Option {
	return func(c *config) {
		c.history = path
	}
}

// WithSourceRoot resolves relative breakpoint paths against root.
func WithSourceRoot(root string) Option {
	return func(c *config) {
		c.sourceRoot = root
	}
}

// WithColor controls colored output.
func WithColor(mode diagnostic.ColorMode) Option {
	return func(c *config) {
		c.color = mode
	}
}

// REPL is a debugger console. Create it before the session so that
// HandleEvent can be installed as the session's event callback.
type REPL struct {
	cfg *config
	out *syncWriter
	r   *diagnostic.Renderer
	s   *debugger.Session
}

// New returns a console.
func New(opts ...Option) *REPL {
	cfg := newConfig(opts...)
	return &REPL{
		cfg: cfg,
		out: &syncWriter{w: cfg.stdout},
		r:   &diagnostic.Renderer{Color: cfg.color},
	}
}

// Run is a shorthand for New(opts...).Run(ctx, s). Asynchronous events
// are not printed unless the session was created with HandleEvent as
// its callback.
func Run(ctx context.Context, s *debugger.Session, opts ...Option) error {
	return New(opts...).Run(ctx, s)
}

// Attach binds the console to a session. Run attaches implicitly.
func (r *REPL) Attach(s *debugger.Session) {
	r.s = s
}

// Run reads and executes commands until quit, end of input, or the end
// of the session.
func (r *REPL) Run(ctx context.Context, s *debugger.Session) error {
	r.Attach(s)
	rlCfg := &readline.Config{
		Stdout:            r.out,
		Stderr:            r.out,
		Prompt:            r.cfg.prompt,
		HistoryFile:       r.cfg.history,
		HistorySearchFold: true,
		AutoComplete:      &completer{r: r},
	}
	if r.cfg.stdin != nil {
		rlCfg.Stdin = r.cfg.stdin
	}
	rl, err := readline.NewEx(rlCfg)
	if err != nil {
		return fmt.Errorf("start console: %w", err)
	}
	defer rl.Close() //nolint:errcheck // best-effort cleanup

	for {
		line, err := rl.ReadLine()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if err != nil {
			return nil
		}
		if r.Exec(ctx, line) {
			return nil
		}
		select {
		case <-s.Done():
			return nil
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}
}

// Exec runs one command line and reports whether the console should exit.
func (r *REPL) Exec(ctx context.Context, line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}
	name, args := fields[0], strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), fields[0]))
	cmd, ok := lookup(name)
	if !ok {
		r.printf("unknown command %q; try help\n", name)
		return false
	}
	if cmd.quit {
		return true
	}
	if r.s == nil && cmd.run != nil && cmd.name != "help" {
		r.printf("not attached to a debuggee\n")
		return false
	}
	if err := cmd.run(ctx, r, args); err != nil {
		r.fault(cmd.name, err)
	}
	return false
}

func (r *REPL) printf(format string, a ...interface{}) {
	fmt.Fprintf(r.out, format, a...) //nolint:errcheck // best-effort console output
}

func (r *REPL) render(d diagnostic.Diagnostic) {
	_ = r.r.Render(r.out, d)
}

// fault renders a failed command.
func (r *REPL) fault(command string, err error) {
	d := diagnostic.Diagnostic{
		Severity: diagnostic.SeverityError,
		Message:  command + ": " + err.Error(),
	}
	var cerr *debugger.CommandError
	switch {
	case errors.As(err, &cerr):
		d.Message = command + ": " + cerr.Message
		d.Notes = append(d.Notes, "the debuggee refused "+cerr.Command)
	case errors.Is(err, debugger.ErrNotBroken):
		d.Notes = append(d.Notes, "use pause to stop the debuggee first")
	case errors.Is(err, debugger.ErrStaleHandle):
		d.Notes = append(d.Notes, "the debuggee resumed since; run bt again")
	case errors.Is(err, debugger.ErrTimeout):
		d.Notes = append(d.Notes, "the debuggee did not answer in time")
	}
	r.render(d)
}

func (r *REPL) resolvePath(file string) string {
	if r.cfg.sourceRoot == "" || filepath.IsAbs(file) {
		return file
	}
	return filepath.Join(r.cfg.sourceRoot, file)
}

// syncWriter serializes console output from commands and events.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (w *syncWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.w.Write(p)
}

func historyPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".v8bridge_history")
}
