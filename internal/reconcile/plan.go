package reconcile

import (
	"github.com/foldsync/foldsync/internal/assemble"
	"github.com/foldsync/foldsync/internal/source"
)

// Mode selects how much of the target directory reconciliation owns.
type Mode int

const (
	// Full deletes and fully recreates the entire target directory; no
	// prior state survives.
	Full Mode = iota
	// SkipFirstLevel replaces only the first-level segments the manifest
	// controls and leaves everything else in the target untouched.
	SkipFirstLevel
)

func (m Mode) String() string {
	if m == SkipFirstLevel {
		return "skip-first-level"
	}
	return "full"
}

// Deletions returns the target-relative paths the mutation phase removes
// before recreating content: the whole root for Full mode, the controlled
// first-level segments for SkipFirstLevel. Pure; never touches disk.
func Deletions(m *assemble.Manifest, mode Mode) []string {
	if mode == Full {
		return []string{"."}
	}
	return m.FirstSegments()
}

// reusable decides the hash-match fetch shortcut: an entry with a declared
// hash and no pending edits whose on-disk bytes already match is taken
// verbatim from the snapshot. Entries with edits are never shortcut, since
// the declared hash covers pre-edit content only.
func reusable(e *assemble.Entry, snap Snapshot) ([]byte, bool) {
	if e.Hash == "" || len(e.Edits) > 0 {
		return nil, false
	}
	data, err := snap.ReadFile(e.Path)
	if err != nil {
		return nil, false
	}
	if !source.HashEqual(source.Sum(data), e.Hash) {
		return nil, false
	}
	return data, true
}
