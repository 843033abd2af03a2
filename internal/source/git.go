package source

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/foldsync/foldsync/internal/ctxlog"
	"github.com/foldsync/foldsync/internal/fsutil"
)

// mirrorCache maps a normalized repo locator to a full bare mirror inside
// an invocation-scoped scratch directory. A repo is mirrored at most once
// per invocation: the first requester clones while later requesters block
// on the entry's ready channel. Blob reads after that run concurrently.
type mirrorCache struct {
	mu      sync.Mutex
	scratch string
	entries map[string]*mirrorEntry
}

type mirrorEntry struct {
	ready chan struct{}
	repo  *git.Repository
	err   error
}

func newMirrorCache() *mirrorCache {
	return &mirrorCache{entries: make(map[string]*mirrorEntry)}
}

func (c *mirrorCache) open(ctx context.Context, locator string) (*git.Repository, error) {
	key, err := normalizeRepo(locator)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if e, ok := c.entries[key]; ok {
		c.mu.Unlock()
		select {
		case <-e.ready:
			return e.repo, e.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if c.scratch == "" {
		dir, err := os.MkdirTemp("", "foldsync-mirrors-*")
		if err != nil {
			c.mu.Unlock()
			return nil, err
		}
		c.scratch = dir
	}
	e := &mirrorEntry{ready: make(chan struct{})}
	c.entries[key] = e
	dir := filepath.Join(c.scratch, fmt.Sprintf("mirror-%03d", len(c.entries)))
	c.mu.Unlock()

	ctxlog.FromContext(ctx).Debug("Mirroring repository.", "repo", key)
	e.repo, e.err = git.PlainCloneContext(ctx, dir, true, &git.CloneOptions{
		URL:    key,
		Mirror: true,
		Tags:   git.AllTags,
	})
	close(e.ready)
	return e.repo, e.err
}

func (c *mirrorCache) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *mirrorCache) close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.scratch == "" {
		return nil
	}
	err := os.RemoveAll(c.scratch)
	c.scratch = ""
	c.entries = make(map[string]*mirrorEntry)
	return err
}

var scpLike = regexp.MustCompile(`^[^/]+@[^/:]+:`)

// IsRemoteRepo reports whether a repo locator names a remote repository
// rather than a local path.
func IsRemoteRepo(locator string) bool {
	for _, prefix := range []string{"http://", "https://", "ssh://", "git://"} {
		if strings.HasPrefix(locator, prefix) {
			return true
		}
	}
	return scpLike.MatchString(locator)
}

// normalizeRepo produces the cache key: remote locators pass through while
// local repo paths must be absolute and are cleaned.
func normalizeRepo(locator string) (string, error) {
	if IsRemoteRepo(locator) {
		return locator, nil
	}
	if !filepath.IsAbs(locator) {
		return "", &RelativePathError{Path: locator}
	}
	return filepath.Clean(locator), nil
}

// MirrorCount reports how many repositories have been mirrored so far.
func (r *Resolver) MirrorCount() int {
	return r.mirrors.count()
}

func (r *Resolver) fetchGit(ctx context.Context, s Git) ([]byte, error) {
	repo, err := r.mirrors.open(ctx, s.Repo)
	if err != nil {
		if _, ok := err.(*RelativePathError); ok {
			return nil, err
		}
		return nil, unavailable(s, err)
	}
	commit, err := resolveCommit(repo, s.Revision)
	if err != nil {
		return nil, unavailable(s, err)
	}
	tree, err := commit.Tree()
	if err != nil {
		return nil, unavailable(s, err)
	}
	file, err := tree.File(cleanRepoPath(s.Path))
	if err != nil {
		return nil, unavailable(s, err)
	}
	reader, err := file.Reader()
	if err != nil {
		return nil, unavailable(s, err)
	}
	defer reader.Close()
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, unavailable(s, err)
	}
	return data, nil
}

func (r *Resolver) listGit(ctx context.Context, s Git) ([]string, error) {
	repo, err := r.mirrors.open(ctx, s.Repo)
	if err != nil {
		if _, ok := err.(*RelativePathError); ok {
			return nil, err
		}
		return nil, unavailable(s, err)
	}
	commit, err := resolveCommit(repo, s.Revision)
	if err != nil {
		return nil, unavailable(s, err)
	}
	tree, err := commit.Tree()
	if err != nil {
		return nil, unavailable(s, err)
	}
	if sub := cleanRepoPath(s.Path); sub != "" {
		tree, err = tree.Tree(sub)
		if err != nil {
			return nil, unavailable(s, err)
		}
	}

	var names []string
	walker := object.NewTreeWalker(tree, true, nil)
	defer walker.Close()
	for {
		name, entry, err := walker.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, unavailable(s, err)
		}
		switch entry.Mode {
		case filemode.Dir:
			// descended into by the walker itself
		case filemode.Regular, filemode.Executable:
			names = append(names, name)
		default:
			return nil, &fsutil.UnsupportedMemberError{Member: name, Reason: "not a regular file in repository tree"}
		}
	}
	return names, nil
}

// resolveCommit accepts a commit hash, a tag, a branch tip, or a relative
// expression such as "main~2", and dereferences annotated tags.
func resolveCommit(repo *git.Repository, revision string) (*object.Commit, error) {
	hash, err := repo.ResolveRevision(plumbing.Revision(revision))
	if err != nil {
		return nil, fmt.Errorf("revision %q: %w", revision, err)
	}
	commit, err := repo.CommitObject(*hash)
	if err == nil {
		return commit, nil
	}
	if tag, tagErr := repo.TagObject(*hash); tagErr == nil {
		return tag.Commit()
	}
	return nil, fmt.Errorf("revision %q does not point at a commit: %w", revision, err)
}

func cleanRepoPath(p string) string {
	return strings.Trim(strings.TrimSpace(p), "/")
}
