// Copyright © 2024 The ELPS authors

package diagnostic

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRenderer(sources map[string]string) *Renderer {
	return &Renderer{
		Color: ColorNever,
		SourceReader: func(name string) ([]byte, error) {
			s, ok := sources[name]
			if !ok {
				return nil, errors.New("not found: " + name)
			}
			return []byte(s), nil
		},
	}
}

func render(t *testing.T, r *Renderer, d Diagnostic) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, r.Render(&buf, d))
	return buf.String()
}

func TestRender_FromFile(t *testing.T) {
	r := testRenderer(map[string]string{
		"/src/app.js": "function add(a, b) {\n  return total.sum;\n}",
	})
	got := render(t, r, Diagnostic{
		Severity: SeverityWarning,
		Message:  "breakpoint moved to line 2",
		Spans:    []Span{{File: "/src/app.js", Line: 2, Label: "requested line 1"}},
	})
	assert.Contains(t, got, "warning: breakpoint moved to line 2")
	assert.Contains(t, got, "--> /src/app.js:2")
	assert.Contains(t, got, "2 |    return total.sum;")
	// Underline starts at the first statement token.
	assert.Contains(t, got, "  |    ^^^^^^ requested line 1")
}

func TestRender_ReportedSource(t *testing.T) {
	r := testRenderer(nil)
	got := render(t, r, Diagnostic{
		Severity: SeverityError,
		Message:  "TypeError: x.y is not a function",
		Spans:    []Span{{File: "/remote/app.js", Line: 12, Col: 3, Source: "  x.y();"}},
		Notes:    []string{"uncaught exception"},
	})
	assert.Contains(t, got, "error: TypeError: x.y is not a function")
	assert.Contains(t, got, "--> /remote/app.js:12:3")
	assert.Contains(t, got, "12 |    x.y();")
	assert.Contains(t, got, "   |    ^^^\n")
	assert.Contains(t, got, "= note: uncaught exception")
}

func TestRender_NoSource(t *testing.T) {
	r := testRenderer(nil)
	got := render(t, r, Diagnostic{
		Severity: SeverityNote,
		Message:  "debugging session ended",
		Spans:    []Span{{File: "app.js", Line: 4}},
	})
	assert.Contains(t, got, "note: debugging session ended")
	assert.Contains(t, got, "--> app.js:4\n   |\n")
	assert.NotContains(t, got, "^")
}

func TestRender_NoColorEscapes(t *testing.T) {
	r := testRenderer(nil)
	got := render(t, r, Diagnostic{Message: "boom"})
	assert.Equal(t, "error: boom\n", got)
	assert.False(t, strings.Contains(got, "\033["))
}

func TestRender_Colors(t *testing.T) {
	r := &Renderer{Color: ColorAlways}
	got := render(t, r, Diagnostic{Message: "boom"})
	assert.Contains(t, got, "\033[1;31m")
}

func TestRenderAll(t *testing.T) {
	r := testRenderer(nil)
	var buf bytes.Buffer
	require.NoError(t, r.RenderAll(&buf, []Diagnostic{{Message: "one"}, {Severity: SeverityWarning, Message: "two"}}))
	assert.Equal(t, "error: one\n\nwarning: two\n", buf.String())
}

func TestTokenEnd(t *testing.T) {
	tests := []struct {
		source string
		col    int
		want   int
	}{
		{"  return total;", 3, 8},
		{"foo.bar(1)", 1, 7},
		{"$el = 1", 1, 3},
		{"a + b", 3, 3},
		{"x", 5, 5},
	}
	for _, test := range tests {
		assert.Equal(t, test.want, tokenEnd(test.source, test.col), "%q at %d", test.source, test.col)
	}
}

func TestParseColorMode(t *testing.T) {
	for in, want := range map[string]ColorMode{"": ColorAuto, "auto": ColorAuto, "Always": ColorAlways, "never": ColorNever, "false": ColorNever} {
		got, err := ParseColorMode(in)
		require.NoError(t, err)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseColorMode("sometimes")
	assert.Error(t, err)
}
