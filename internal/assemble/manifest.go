// Package assemble resolves a recipe tree and an activated tag set into a
// flat manifest: one entry per target path, each with its ordered source
// list, optional expected hash, and pending edits. Content is never
// fetched here except to expand a directory listing or to verify an
// included recipe's hash; fetching entry bytes is deferred to
// reconciliation.
package assemble

import (
	"sort"
	"strings"

	"github.com/foldsync/foldsync/internal/edit"
	"github.com/foldsync/foldsync/internal/source"
)

// Entry is one manifest row: everything reconciliation needs to produce
// the final bytes for a single target path.
type Entry struct {
	Path    string
	Hash    string // expected pre-edit digest, or empty
	Sources []source.Ref
	Edits   []edit.Op

	// TagContext is the tag set the entry's edit gates are evaluated
	// against: the invocation's tags for local entries, the include's
	// with_tags for entries that crossed a recipe boundary.
	TagContext []string

	tags        []string // the entry's own gating tags, for merge rules
	fromInclude bool
}

// Manifest maps each target path to exactly one entry.
type Manifest struct {
	entries map[string]*Entry
}

// Get returns the entry at a path, or nil.
func (m *Manifest) Get(path string) *Entry {
	return m.entries[path]
}

// Len is the number of entries.
func (m *Manifest) Len() int { return len(m.entries) }

// Paths returns every target path ordered by path component, so listings
// and writes are deterministic regardless of assembly or fetch order.
func (m *Manifest) Paths() []string {
	paths := make([]string, 0, len(m.entries))
	for p := range m.entries {
		paths = append(paths, p)
	}
	sort.Slice(paths, func(i, j int) bool {
		return comparePaths(paths[i], paths[j]) < 0
	})
	return paths
}

// Entries returns the entries in Paths order.
func (m *Manifest) Entries() []*Entry {
	entries := make([]*Entry, 0, len(m.entries))
	for _, p := range m.Paths() {
		entries = append(entries, m.entries[p])
	}
	return entries
}

// FirstSegments returns the sorted set of first path segments appearing in
// the manifest: the top-level names the manifest controls.
func (m *Manifest) FirstSegments() []string {
	set := map[string]struct{}{}
	for p := range m.entries {
		seg, _, _ := strings.Cut(p, "/")
		set[seg] = struct{}{}
	}
	segments := make([]string, 0, len(set))
	for s := range set {
		segments = append(segments, s)
	}
	sort.Strings(segments)
	return segments
}

func comparePaths(a, b string) int {
	as, bs := strings.Split(a, "/"), strings.Split(b, "/")
	for i := 0; i < len(as) && i < len(bs); i++ {
		if as[i] != bs[i] {
			return strings.Compare(as[i], bs[i])
		}
	}
	return len(as) - len(bs)
}
