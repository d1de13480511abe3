// Copyright © 2026 The ELPS authors

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/luthersystems/v8bridge/debugger"
	"github.com/luthersystems/v8bridge/debugger/debugrepl"
	"github.com/spf13/cobra"
)

var (
	attachREPL   bool
	attachBreaks []string
	attachCatch  string
)

var attachCmd = &cobra.Command{
	Use:   "attach",
	Short: "Attach to a debuggee",
	Long: `Attach to the debuggee's debug port, list its scripts and set the
requested breakpoints.

With --repl an interactive debugger console is opened. Otherwise the
debuggee is resumed at every pause, after the pause location is
printed, until it exits or the command is interrupted.

Examples:
  v8bridge attach --repl
  v8bridge attach --port 9229 --break app.js:12 --break lib/db.js:40
  v8bridge attach --catch uncaught --source-root ./src`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := setup(cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		console := debugrepl.New(
			debugrepl.WithStdout(cmd.OutOrStdout()),
			debugrepl.WithSourceRoot(cfg.SourceRoot),
			debugrepl.WithColor(cfg.ColorMode()),
		)
		events := make(chan debugger.Event, 16)
		onEvent := func(evt debugger.Event) {
			console.HandleEvent(evt)
			if !attachREPL && (evt.Type == debugger.EventBroken || evt.Type == debugger.EventException) {
				select {
				case events <- evt:
				default:
				}
			}
		}
		c, err := connect(ctx, cfg, log, debugger.WithEventCallback(onEvent))
		if err != nil {
			return err
		}
		defer c.close(context.Background())
		s := c.session

		if _, err := s.Scripts(ctx); err != nil {
			return err
		}
		if attachCatch != "" {
			mode, err := parseCatch(attachCatch)
			if err != nil {
				return err
			}
			if err := s.SetExceptionBreak(ctx, mode); err != nil {
				return err
			}
		}
		console.Attach(s)
		for _, b := range attachBreaks {
			console.Exec(ctx, "break "+b)
		}

		if attachREPL {
			return console.Run(ctx, s)
		}
		for {
			select {
			case <-events:
				if err := s.Continue(ctx); err != nil {
					log.WithError(err).Warn("could not resume debuggee")
				}
			case <-s.Done():
				return nil
			case <-ctx.Done():
				return nil
			}
		}
	},
}

func parseCatch(s string) (debugger.ExceptionBreakMode, error) {
	switch strings.ToLower(s) {
	case "all":
		return debugger.ExceptionBreakAll, nil
	case "uncaught":
		return debugger.ExceptionBreakUncaught, nil
	case "none":
		return debugger.ExceptionBreakNever, nil
	}
	return 0, fmt.Errorf("invalid --catch %s (want all, uncaught or none)", strconv.Quote(s))
}

func init() {
	rootCmd.AddCommand(attachCmd)
	attachCmd.Flags().BoolVar(&attachREPL, "repl", false, "open an interactive debugger console")
	attachCmd.Flags().StringArrayVar(&attachBreaks, "break", nil, "set a breakpoint at FILE:LINE[:COL] (repeatable)")
	attachCmd.Flags().StringVar(&attachCatch, "catch", "", "pause on exceptions: all, uncaught or none")
}
