// Copyright © 2018 The ELPS authors

package debugrepl

import (
	"path"
	"sort"
	"strings"
)

// completer implements readline.AutoCompleter. The first word completes
// to a command; the argument of break completes to known script files.
type completer struct {
	r *REPL
}

func (c *completer) Do(line []rune, pos int) ([][]rune, int) {
	start := pos
	for start > 0 && line[start-1] != ' ' {
		start--
	}
	prefix := string(line[start:pos])
	head := strings.TrimSpace(string(line[:start]))

	var candidates []string
	switch {
	case head == "":
		candidates = c.commandNames(prefix)
	case head == "break" || head == "b":
		candidates = c.files(prefix)
	case head == "catch":
		candidates = withPrefix([]string{"all", "none", "uncaught"}, prefix)
	case head == "info":
		candidates = withPrefix([]string{"breakpoints"}, prefix)
	}
	if len(candidates) == 0 {
		return nil, 0
	}
	out := make([][]rune, len(candidates))
	for i, cand := range candidates {
		out[i] = []rune(cand[len(prefix):])
	}
	return out, len(prefix)
}

func (c *completer) commandNames(prefix string) []string {
	var names []string
	for _, cmd := range commands {
		names = append(names, cmd.name)
	}
	return withPrefix(names, prefix)
}

// files offers the base names of local files and loaded scripts.
func (c *completer) files(prefix string) []string {
	seen := make(map[string]bool)
	var names []string
	add := func(p string) {
		base := path.Base(strings.ReplaceAll(p, `\`, "/"))
		if !seen[base] {
			seen[base] = true
			names = append(names, base)
		}
	}
	if s := c.r.s; s != nil {
		for _, f := range s.Paths().Files() {
			add(f)
		}
		for _, m := range s.Modules() {
			add(m.Name)
		}
	}
	return withPrefix(names, prefix)
}

func withPrefix(words []string, prefix string) []string {
	var out []string
	for _, w := range words {
		if strings.HasPrefix(w, prefix) {
			out = append(out, w)
		}
	}
	sort.Strings(out)
	return out
}
