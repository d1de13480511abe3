// Copyright © 2026 The ELPS authors

package debugger

import (
	"encoding/json"
	"strconv"

	"github.com/tidwall/gjson"
)

// StackFrame is one frame of a paused debuggee's stack. A frame belongs
// to the break episode it was fetched in.
type StackFrame struct {
	Index      int
	Function   string
	ModuleID   int
	ModuleName string
	FilePath   string
	Line       int
	Column     int
	SourceLine string
	Arguments  []Variable
	Locals     []Variable

	episode int
}

// Episode returns the break episode the frame belongs to.
func (f StackFrame) Episode() int {
	return f.episode
}

// Variable is a named value, or the result of an evaluation. Handle is
// the debuggee's object handle, meaningful only within Episode.
type Variable struct {
	Name       string
	Type       string
	Text       string
	Handle     int
	Expandable bool

	episode int
}

// Episode returns the break episode the variable belongs to.
func (v Variable) Episode() int {
	return v.episode
}

// refTable indexes the refs array some responses carry alongside the body.
type refTable map[int]gjson.Result

func newRefTable(raw json.RawMessage) refTable {
	refs := make(refTable)
	if len(raw) == 0 {
		return refs
	}
	for _, r := range gjson.ParseBytes(raw).Array() {
		refs[int(r.Get("handle").Int())] = r
	}
	return refs
}

// resolve returns the full value for v. Values may be inline or a bare
// {"ref": n} pointing into the table.
func (t refTable) resolve(v gjson.Result) gjson.Result {
	if v.Get("value").IsObject() {
		v = v.Get("value")
	}
	if ref := v.Get("ref"); ref.Exists() && !v.Get("type").Exists() {
		if full, ok := t[int(ref.Int())]; ok {
			return full
		}
	}
	return v
}

func (s *Session) parseFrames(body gjson.Result, refs refTable, episode int) []StackFrame {
	var frames []StackFrame
	for _, f := range body.Get("frames").Array() {
		fn := refs.resolve(f.Get("func"))
		script := refs.resolve(f.Get("script"))
		frame := StackFrame{
			Index:      int(f.Get("index").Int()),
			Function:   functionName(fn),
			Line:       int(f.Get("line").Int()),
			Column:     int(f.Get("column").Int()),
			SourceLine: f.Get("sourceLineText").String(),
			episode:    episode,
		}
		switch {
		case script.Get("id").Exists():
			frame.ModuleID = int(script.Get("id").Int())
		case fn.Get("scriptId").Exists():
			frame.ModuleID = int(fn.Get("scriptId").Int())
		}
		frame.ModuleName = script.Get("name").String()
		if frame.ModuleName == "" {
			if m, ok := s.modules[frame.ModuleID]; ok {
				frame.ModuleName = m.Name
			}
		}
		if p, ok := s.paths.Resolve(frame.ModuleName); ok {
			frame.FilePath = p
		}
		for i, a := range f.Get("arguments").Array() {
			name := a.Get("name").String()
			if name == "" {
				name = "arguments[" + strconv.Itoa(i) + "]"
			}
			frame.Arguments = append(frame.Arguments, parseValue(name, refs.resolve(a), refs, episode))
		}
		for _, l := range f.Get("locals").Array() {
			frame.Locals = append(frame.Locals, parseValue(l.Get("name").String(), refs.resolve(l), refs, episode))
		}
		frames = append(frames, frame)
	}
	return frames
}

func functionName(fn gjson.Result) string {
	if name := fn.Get("name").String(); name != "" {
		return name
	}
	if name := fn.Get("inferredName").String(); name != "" {
		return name
	}
	return "(anonymous function)"
}

// parseValue converts a debuggee value mirror.
func parseValue(name string, v gjson.Result, refs refTable, episode int) Variable {
	v = refs.resolve(v)
	typ := v.Get("type").String()
	out := Variable{
		Name:    name,
		Type:    normalizeTypeName(typ, v.Get("className").String()),
		Handle:  int(v.Get("handle").Int()),
		episode: episode,
	}
	switch typ {
	case "undefined":
		out.Text = "undefined"
	case "null":
		out.Text = "null"
	case "string":
		out.Text = strconv.Quote(v.Get("value").String())
	case "number", "boolean":
		out.Text = v.Get("value").Raw
		if out.Text == "" {
			out.Text = v.Get("text").String()
		}
	default:
		out.Text = v.Get("text").String()
		if out.Text == "" {
			out.Text = out.Type
		}
		out.Expandable = typ == "object" || typ == "function" || typ == "error" || typ == "regexp"
	}
	return out
}
