package recipe

import (
	"context"
	"fmt"
	"path"
	"path/filepath"

	"github.com/foldsync/foldsync/internal/ctxlog"
	"github.com/foldsync/foldsync/internal/source"
)

// Fetcher is the slice of the source resolver that loading a recipe needs.
type Fetcher interface {
	Fetch(ctx context.Context, ref source.Ref) ([]byte, error)
}

// Load fetches recipe text from a locator, verifies its hash when one is
// declared, parses it, and resolves its variables with the self built-ins
// derived from where the recipe was loaded from. Only local files and git
// blobs can hold recipes.
func Load(ctx context.Context, f Fetcher, locator, wantHash string) (*Recipe, error) {
	ref, err := ParseLocator(locator)
	if err != nil {
		return nil, &ParseError{Locator: locator, Err: err}
	}
	switch ref.(type) {
	case source.Local, source.Git:
	default:
		return nil, &ParseError{Locator: locator, Err: fmt.Errorf("recipes load only from local files or git blobs")}
	}

	ctxlog.FromContext(ctx).Debug("Loading recipe.", "locator", locator)
	data, err := f.Fetch(ctx, ref)
	if err != nil {
		return nil, &ParseError{Locator: locator, Err: err}
	}
	if wantHash != "" {
		if got := source.Sum(data); !source.HashEqual(got, wantHash) {
			return nil, &source.HashMismatchError{Name: locator, Want: wantHash, Got: got}
		}
	}

	rec, err := Parse(locator, data)
	if err != nil {
		return nil, err
	}
	builtins, err := SelfVars(ref)
	if err != nil {
		return nil, &ParseError{Locator: locator, Err: err}
	}
	resolved, err := rec.Resolve(builtins)
	if err != nil {
		return nil, &ParseError{Locator: locator, Err: err}
	}
	return resolved, nil
}

// SelfVars derives the read-only built-in variables describing where a
// recipe was loaded from. SELF_ROOT works as a locator prefix for sibling
// data next to the recipe and always resolves to an absolute location.
func SelfVars(ref source.Ref) (map[string]string, error) {
	switch s := ref.(type) {
	case source.Local:
		abs, err := filepath.Abs(s.Path)
		if err != nil {
			return nil, err
		}
		parent := filepath.Dir(abs)
		return map[string]string{
			"SELF_PARENT": parent,
			"SELF_ROOT":   parent,
			"SELF_NAME":   filepath.Base(abs),
		}, nil
	case source.Git:
		repo := s.Repo
		if !source.IsRemoteRepo(repo) {
			abs, err := filepath.Abs(repo)
			if err != nil {
				return nil, err
			}
			repo = abs
		}
		dir := path.Dir(s.Path)
		if dir == "." {
			dir = ""
		}
		return map[string]string{
			"SELF_REPO": s.Repo,
			"SELF_ID":   s.Revision,
			"SELF_NAME": path.Base(s.Path),
			"SELF_ROOT": fmt.Sprintf("%s#%s:%s", repo, s.Revision, dir),
		}, nil
	default:
		return map[string]string{}, nil
	}
}
