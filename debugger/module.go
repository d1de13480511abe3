// Copyright © 2026 The ELPS authors

package debugger

import "sort"

// Module is a script compiled by the debuggee. Events refer to modules by
// id; translating a module to on-disk source is left to the caller.
type Module struct {
	ID   int
	Name string
}

// moduleTable is owned by the session and written only on the reader
// goroutine.
type moduleTable map[int]*Module

// register adds a module, reporting false when the id was already known
// with the same name.
func (t moduleTable) register(id int, name string) (*Module, bool) {
	if m, ok := t[id]; ok && m.Name == name {
		return m, false
	}
	m := &Module{ID: id, Name: name}
	t[id] = m
	return m, true
}

func (t moduleTable) sorted() []Module {
	out := make([]Module, 0, len(t))
	for _, m := range t {
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
