// Package reconcile diffs an assembled manifest against the on-disk target
// directory and performs the minimal writes and deletes. Every entry's
// final bytes are resolved and verified in memory first; the directory is
// mutated only once the whole manifest is known to be valid, so a fatal
// error never leaves a half-applied target behind.
package reconcile

import (
	"os"
	"path/filepath"
)

// Snapshot is a read-only view of the existing target directory, injected
// so planning is testable without a real filesystem.
type Snapshot interface {
	// ReadFile returns the current bytes at a slash-separated path
	// relative to the target root, or an error satisfying
	// errors.Is(err, fs.ErrNotExist) when nothing is there.
	ReadFile(rel string) ([]byte, error)
}

// DirSnapshot is the filesystem-backed Snapshot.
type DirSnapshot struct {
	Root string
}

func (s DirSnapshot) ReadFile(rel string) ([]byte, error) {
	return os.ReadFile(filepath.Join(s.Root, filepath.FromSlash(rel)))
}
