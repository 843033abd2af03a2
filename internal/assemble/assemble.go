package assemble

import (
	"context"
	"errors"
	"fmt"
	"path"
	"slices"
	"strings"

	"github.com/foldsync/foldsync/internal/ctxlog"
	"github.com/foldsync/foldsync/internal/recipe"
	"github.com/foldsync/foldsync/internal/source"
)

// maxIncludeDepth bounds include recursion; the recipe format itself has
// no protection against include cycles.
const maxIncludeDepth = 16

// SourceService is the slice of the source resolver the assembler needs:
// recipe text fetching, directory listing, and per-member ref synthesis.
type SourceService interface {
	Fetch(ctx context.Context, ref source.Ref) ([]byte, error)
	List(ctx context.Context, ref source.Ref) ([]string, error)
	FileRef(dirRef source.Ref, member string) (source.Ref, error)
}

// Assembler builds manifests. It holds no per-run state; a single
// Assembler can serve any number of Assemble calls.
type Assembler struct {
	src SourceService
}

// New returns an Assembler resolving directory listings and included
// recipes through src.
func New(src SourceService) *Assembler {
	return &Assembler{src: src}
}

// Assemble resolves a recipe tree against an activated tag set into a flat
// manifest. Every requested tag must be declared somewhere in the recipe.
func (a *Assembler) Assemble(ctx context.Context, rec *recipe.Recipe, tags []string) (*Manifest, error) {
	m, err := a.assemble(ctx, rec, tags, nil)
	if err != nil {
		return nil, err
	}
	if err := checkNestedPaths(m.entries); err != nil {
		return nil, err
	}
	return m, nil
}

// checkNestedPaths rejects a manifest where one target path would have to
// be both a regular file and a parent directory of another entry.
func checkNestedPaths(entries map[string]*Entry) error {
	for p := range entries {
		for dir := path.Dir(p); dir != "." && dir != "/"; dir = path.Dir(dir) {
			if _, ok := entries[dir]; ok {
				return &PathConflictError{Path: dir}
			}
		}
	}
	return nil
}

func (a *Assembler) assemble(ctx context.Context, rec *recipe.Recipe, tags []string, chain []string) (*Manifest, error) {
	if !rec.Resolved() {
		return nil, fmt.Errorf("recipe has not been resolved")
	}
	declared := rec.Tags()
	for _, t := range tags {
		if !slices.Contains(declared, t) {
			return nil, &UnknownTagError{Tag: t}
		}
	}

	var local []*Entry
	for _, f := range rec.Files {
		local = append(local, &Entry{
			Path:       f.Path,
			Hash:       f.Hash,
			Sources:    recipe.Refs(f.Sources),
			Edits:      f.Edits,
			TagContext: tags,
			tags:       f.Tags,
		})
	}
	for _, d := range rec.Directories {
		if !recipe.Active(d.Tags, tags) {
			continue
		}
		expanded, err := a.expandDirectory(ctx, d, tags)
		if err != nil {
			return nil, err
		}
		local = append(local, expanded...)
	}

	merged, err := mergeLocal(local, tags)
	if err != nil {
		return nil, err
	}

	for _, inc := range rec.Includes {
		if !recipe.Active(inc.Tags, tags) {
			ctxlog.FromContext(ctx).Debug("Skipping include: no required tag active.", "locator", inc.Locator)
			continue
		}
		if slices.Contains(chain, inc.Locator) {
			return nil, &IncludeError{Locator: inc.Locator, Err: fmt.Errorf("include cycle: %s", strings.Join(append(chain, inc.Locator), " -> "))}
		}
		if len(chain) >= maxIncludeDepth {
			return nil, &IncludeError{Locator: inc.Locator, Err: fmt.Errorf("includes nested deeper than %d levels", maxIncludeDepth)}
		}

		child, err := recipe.Load(ctx, a.src, inc.Locator, inc.Hash)
		if err != nil {
			return nil, err
		}
		childManifest, err := a.assemble(ctx, child, inc.WithTags, append(chain, inc.Locator))
		if err != nil {
			return nil, &IncludeError{Locator: inc.Locator, Err: err}
		}
		if childManifest.Len() == 0 {
			return nil, &IncludeError{Locator: inc.Locator, Err: fmt.Errorf("including zero files is not allowed")}
		}

		for _, e := range childManifest.Entries() {
			rerooted := path.Join(inc.Dest, e.Path)
			if existing, ok := merged[rerooted]; ok {
				if !existing.fromInclude {
					return nil, &IncludeOverrideConflictError{Path: rerooted, Locator: inc.Locator}
				}
				return nil, &PathConflictError{Path: rerooted}
			}
			merged[rerooted] = &Entry{
				Path:        rerooted,
				Hash:        e.Hash,
				Sources:     e.Sources,
				Edits:       e.Edits,
				TagContext:  e.TagContext,
				tags:        e.tags,
				fromInclude: true,
			}
		}
	}

	return &Manifest{entries: merged}, nil
}

// mergeLocal applies the override rules among one recipe's own entries: an
// untagged entry is silently superseded by an active tagged entry at the
// same path, while any other collision is a hard conflict.
func mergeLocal(entries []*Entry, tags []string) (map[string]*Entry, error) {
	activeTagged := map[string]bool{}
	for _, e := range entries {
		if len(e.tags) > 0 && recipe.Active(e.tags, tags) {
			activeTagged[e.Path] = true
		}
	}
	merged := map[string]*Entry{}
	for _, e := range entries {
		if !recipe.Active(e.tags, tags) {
			continue
		}
		if len(e.tags) == 0 && activeTagged[e.Path] {
			continue
		}
		if _, ok := merged[e.Path]; ok {
			return nil, &PathConflictError{Path: e.Path}
		}
		merged[e.Path] = e
	}
	return merged, nil
}

// expandDirectory lists the first usable source of a directory entry and
// synthesizes one file entry per member, each falling back across every
// declared directory source.
func (a *Assembler) expandDirectory(ctx context.Context, d *recipe.Directory, tags []string) ([]*Entry, error) {
	logger := ctxlog.FromContext(ctx)
	refs := recipe.Refs(d.Sources)

	for _, ref := range refs {
		names, err := a.src.List(ctx, ref)
		if err != nil {
			var unavailable *source.UnavailableError
			if errors.As(err, &unavailable) {
				logger.Warn("Directory source unavailable, trying next.", "directory", d.Path, "source", ref.String(), "error", err)
				continue
			}
			return nil, err
		}

		if d.Count != nil && *d.Count != len(names) {
			return nil, &FileCountError{Path: d.Path, Want: *d.Count, Got: len(names)}
		}
		var entries []*Entry
		for _, name := range names {
			if d.IgnoreHidden && hasHiddenComponent(name) {
				continue
			}
			var memberRefs []source.Ref
			for _, sref := range refs {
				memberRef, err := a.src.FileRef(sref, name)
				if err != nil {
					return nil, fmt.Errorf("directory %q: %w", d.Path, err)
				}
				memberRefs = append(memberRefs, memberRef)
			}
			entries = append(entries, &Entry{
				Path:       path.Join(d.Path, name),
				Sources:    memberRefs,
				TagContext: tags,
				tags:       d.Tags,
			})
		}
		if len(entries) == 0 {
			return nil, fmt.Errorf("directory %q expanded to zero files", d.Path)
		}
		return entries, nil
	}
	return nil, &source.NoValidSourceError{Name: "directory " + d.Path}
}

func hasHiddenComponent(name string) bool {
	for _, part := range strings.Split(name, "/") {
		if strings.HasPrefix(part, ".") {
			return true
		}
	}
	return false
}
