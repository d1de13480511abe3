// Copyright © 2026 The ELPS authors

package cmd

import (
	"errors"
	"io"

	"github.com/luthersystems/v8bridge/debugger"
	"github.com/luthersystems/v8bridge/diagnostic"
	"github.com/spf13/viper"
)

func colorMode() diagnostic.ColorMode {
	mode, err := diagnostic.ParseColorMode(viper.GetString("color"))
	if err != nil {
		return diagnostic.ColorAuto
	}
	return mode
}

func newRenderer() *diagnostic.Renderer {
	return &diagnostic.Renderer{Color: colorMode()}
}

// faultDiagnostic describes a failed command for the terminal.
func faultDiagnostic(err error) diagnostic.Diagnostic {
	d := diagnostic.Diagnostic{
		Severity: diagnostic.SeverityError,
		Message:  err.Error(),
	}
	var cerr *debugger.CommandError
	switch {
	case errors.As(err, &cerr):
		d.Notes = append(d.Notes, "the debuggee refused "+cerr.Command)
	case errors.Is(err, debugger.ErrTimeout):
		d.Notes = append(d.Notes, "raise request-timeout if the debuggee is slow to answer")
	case errors.Is(err, debugger.ErrTerminated):
		d.Notes = append(d.Notes, "the connection to the debuggee was lost")
	}
	return d
}

func renderFault(w io.Writer, err error) {
	_ = newRenderer().Render(w, faultDiagnostic(err))
}
