// Copyright © 2024 The ELPS authors

// Package diagnostic renders debugger notices (moved breakpoints, refused
// commands, exceptions, the end of a session) as annotated source
// snippets. It does not depend on the debugger package.
package diagnostic

// Severity indicates the severity level of a diagnostic.
type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
	SeverityNote
)

func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	case SeverityNote:
		return "note"
	default:
		return "unknown"
	}
}

// Span identifies a region of a script to highlight.
type Span struct {
	File   string // local path for reading source, or the script name
	Line   int    // line number as reported by the debuggee
	Col    int    // start column, 0 when unknown
	EndCol int    // end column (0 = end of the token at Col)
	Label  string // text shown under the underline
	// Source is the text of the line when the debuggee sent it. It is
	// used when File cannot be read.
	Source string
}

// Diagnostic is a single notice with optional source annotations and
// trailing notes.
type Diagnostic struct {
	Severity Severity
	Message  string
	Spans    []Span
	Notes    []string
}
