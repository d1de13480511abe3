// Copyright © 2026 The ELPS authors

package debugger

import (
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// PathMapper matches script names reported by the debuggee against a set
// of known local files. The debuggee may report paths in another form
// than the local one: relative, differently cased, with backslashes, or
// rooted on another machine or container.
//
// A remote name matches the local file sharing the longest suffix of
// path components (at least the basename). Ties go to the lexically
// smallest local path. Once a remote name has been mapped the result is
// cached, so the same remote name always yields the same local file even
// if files are added later.
type PathMapper struct {
	mu    sync.Mutex
	files map[string][]string // local path -> normalized components
	cache map[string]string   // remote name -> local path
}

// NewPathMapper returns a mapper seeded with files.
func NewPathMapper(files ...string) *PathMapper {
	m := &PathMapper{
		files: make(map[string][]string),
		cache: make(map[string]string),
	}
	m.Add(files...)
	return m
}

// Add registers local files. Cached misses are forgotten so that they may
// resolve against the new files; cached hits are kept.
func (m *PathMapper) Add(files ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, f := range files {
		if _, ok := m.files[f]; ok {
			continue
		}
		m.files[f] = splitPath(f)
	}
	for remote, local := range m.cache {
		if local == "" {
			delete(m.cache, remote)
		}
	}
}

// Files returns the registered local files in sorted order.
func (m *PathMapper) Files() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.files))
	for f := range m.files {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// Resolve returns the local file for a remote script name.
func (m *PathMapper) Resolve(remote string) (string, bool) {
	if remote == "" {
		return "", false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if local, ok := m.cache[remote]; ok {
		return local, local != ""
	}
	want := splitPath(remote)
	best, bestScore := "", 0
	for local, parts := range m.files {
		score := suffixScore(want, parts)
		if score == 0 {
			continue
		}
		if score > bestScore || (score == bestScore && local < best) {
			best, bestScore = local, score
		}
	}
	m.cache[remote] = best
	return best, best != ""
}

// ScanDir walks root and returns every file with one of the given
// extensions.
func ScanDir(root string, exts ...string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && (d.Name() == "node_modules" || strings.HasPrefix(d.Name(), ".")) {
				return filepath.SkipDir
			}
			return nil
		}
		for _, ext := range exts {
			if strings.EqualFold(filepath.Ext(path), ext) {
				files = append(files, path)
				break
			}
		}
		return nil
	})
	return files, err
}

func splitPath(p string) []string {
	p = strings.ToLower(strings.ReplaceAll(p, `\`, "/"))
	var parts []string
	for _, s := range strings.Split(p, "/") {
		if s != "" && s != "." {
			parts = append(parts, s)
		}
	}
	return parts
}

// suffixScore counts trailing components shared by a and b.
func suffixScore(a, b []string) int {
	n := 0
	for i, j := len(a)-1, len(b)-1; i >= 0 && j >= 0; i, j = i-1, j-1 {
		if a[i] != b[j] {
			break
		}
		n++
	}
	return n
}
