package reconcile

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/foldsync/foldsync/internal/assemble"
	"github.com/foldsync/foldsync/internal/ctxlog"
	"github.com/foldsync/foldsync/internal/edit"
	"github.com/foldsync/foldsync/internal/source"
)

// DefaultWorkers bounds parallel per-entry resolution when the caller does
// not say otherwise.
const DefaultWorkers = 8

// Fetcher is the slice of the source resolver reconciliation needs.
type Fetcher interface {
	Fetch(ctx context.Context, ref source.Ref) ([]byte, error)
}

// Syncer reconciles manifests against target directories.
type Syncer struct {
	src     Fetcher
	workers int
}

// NewSyncer returns a Syncer fetching through src with at most workers
// concurrent entry resolutions.
func NewSyncer(src Fetcher, workers int) *Syncer {
	if workers < 1 {
		workers = DefaultWorkers
	}
	return &Syncer{src: src, workers: workers}
}

// Result summarizes one sync.
type Result struct {
	Written int      // entries fetched (or rebuilt) and written
	Reused  int      // entries taken verbatim from the existing directory
	Deleted []string // target-relative paths removed before writing
}

// Sync resolves every manifest entry into memory, then mutates the target
// directory according to mode. Any fatal entry error aborts before the
// first destructive write.
func (s *Syncer) Sync(ctx context.Context, m *assemble.Manifest, target string, mode Mode) (*Result, error) {
	target, err := filepath.Abs(target)
	if err != nil {
		return nil, err
	}
	resolved, err := s.Resolve(ctx, m, DirSnapshot{Root: target})
	if err != nil {
		return nil, err
	}

	if info, err := os.Stat(target); err == nil && !info.IsDir() {
		return nil, fmt.Errorf("target %q exists but is not a directory", target)
	} else if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	result := &Result{}
	deletions := Deletions(m, mode)
	for _, rel := range deletions {
		victim := target
		if rel != "." {
			victim = filepath.Join(target, filepath.FromSlash(rel))
		}
		if err := os.RemoveAll(victim); err != nil {
			return nil, fmt.Errorf("could not remove %q: %w", victim, err)
		}
	}
	result.Deleted = deletions
	if err := os.MkdirAll(target, 0o755); err != nil {
		return nil, fmt.Errorf("could not create target directory: %w", err)
	}

	for _, p := range m.Paths() {
		full := filepath.Join(target, filepath.FromSlash(p))
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			return nil, fmt.Errorf("could not create parent of %q: %w", p, err)
		}
		if err := os.WriteFile(full, resolved.bytes[p], 0o644); err != nil {
			return nil, fmt.Errorf("could not write %q: %w", p, err)
		}
	}
	result.Written = m.Len() - resolved.reusedCount
	result.Reused = resolved.reusedCount
	return result, nil
}

// Resolved holds every entry's final bytes, keyed by target path.
type Resolved struct {
	bytes       map[string][]byte
	reusedCount int
}

// Bytes returns the final content for a path.
func (r *Resolved) Bytes(path string) []byte { return r.bytes[path] }

// Resolve computes the final bytes of every manifest entry without touching
// the target: the hash-match shortcut against the snapshot where allowed,
// ordered source fallback plus edits plus hash verification otherwise.
// Entries resolve in parallel across a bounded worker pool; the result is
// independent of fetch ordering.
func (s *Syncer) Resolve(ctx context.Context, m *assemble.Manifest, snap Snapshot) (*Resolved, error) {
	entries := m.Entries()
	bytesByIndex := make([][]byte, len(entries))
	reused := make([]bool, len(entries))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, e := range entries {
		g.Go(func() error {
			data, fromDisk, err := s.resolveEntry(gctx, e, snap)
			if err != nil {
				return err
			}
			bytesByIndex[i] = data
			reused[i] = fromDisk
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	resolved := &Resolved{bytes: make(map[string][]byte, len(entries))}
	for i, e := range entries {
		resolved.bytes[e.Path] = bytesByIndex[i]
		if reused[i] {
			resolved.reusedCount++
		}
	}
	return resolved, nil
}

func (s *Syncer) resolveEntry(ctx context.Context, e *assemble.Entry, snap Snapshot) ([]byte, bool, error) {
	logger := ctxlog.FromContext(ctx)
	if data, ok := reusable(e, snap); ok {
		logger.Debug("Entry matches on disk, skipping fetch.", "path", e.Path)
		return data, true, nil
	}

	mismatch := ""
	for _, ref := range e.Sources {
		data, err := s.src.Fetch(ctx, ref)
		if err != nil {
			var unavailable *source.UnavailableError
			if errors.As(err, &unavailable) {
				logger.Warn("Source unavailable, trying next.", "path", e.Path, "source", ref.String(), "error", err)
				continue
			}
			return nil, false, err
		}
		if e.Hash != "" {
			if got := source.Sum(data); !source.HashEqual(got, e.Hash) {
				logger.Warn("Source content does not match declared hash, trying next.", "path", e.Path, "source", ref.String())
				mismatch = got
				continue
			}
		}
		final, err := edit.Apply(data, e.Edits, e.TagContext)
		if err != nil {
			return nil, false, fmt.Errorf("editing %q: %w", e.Path, err)
		}
		return final, false, nil
	}

	if mismatch != "" {
		return nil, false, &source.HashMismatchError{Name: e.Path, Want: e.Hash, Got: mismatch}
	}
	return nil, false, &source.NoValidSourceError{Name: e.Path}
}
