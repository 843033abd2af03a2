// Package recipe parses the declarative HCL recipe format and resolves its
// template variables. A parsed Recipe is immutable; Resolve produces a new
// Recipe with every {{name}} placeholder substituted to a fixed point and
// every source locator interpreted.
package recipe

import (
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/foldsync/foldsync/internal/edit"
	"github.com/foldsync/foldsync/internal/source"
)

// Recipe is the typed form of one recipe document. It forms a tree through
// Includes; variables never cross recipe boundaries.
type Recipe struct {
	Variables   map[string]string
	Files       []*File
	Directories []*Directory
	Includes    []*Include

	resolved bool
}

// Resolved reports whether variable resolution has run.
func (r *Recipe) Resolved() bool { return r.resolved }

// File declares one target file: where it goes, what it may contain, and
// the ordered fallback list of places its content can come from.
type File struct {
	Path    string
	Hash    string // canonical upper-case hex, or empty
	Tags    []string
	Sources []SourceDecl
	Edits   []edit.Op
}

// Directory declares a whole tree expanded by listing a source directory.
type Directory struct {
	Path         string
	Count        *int
	IgnoreHidden bool
	Tags         []string
	Sources      []SourceDecl
}

// Include pulls a child recipe's entries under a destination subdirectory.
type Include struct {
	Locator  string
	Hash     string
	Dest     string
	Tags     []string // required tags: none active means the include is skipped
	WithTags []string // forced active inside the child only
}

// SourceDecl is one declared source, either a compact locator string or a
// structured block. Compact locators are interpreted only after variable
// resolution, since a {{SELF_ROOT}} prefix can change their kind.
type SourceDecl struct {
	Compact string     // compact locator, empty for structured declarations
	Ref     source.Ref // final ref, set once resolved

	// structured archive declarations carry the parent locator separately
	// because it is itself a compact locator
	archiveParent string
	archiveMember string
}

// Refs returns the resolved refs of decls in declaration order. It panics
// if the recipe has not been resolved, which is a programming error.
func Refs(decls []SourceDecl) []source.Ref {
	refs := make([]source.Ref, len(decls))
	for i, d := range decls {
		if d.Ref == nil {
			panic("recipe: source declarations not resolved")
		}
		refs[i] = d.Ref
	}
	return refs
}

// Active reports whether an entry gated by tags participates: an empty tag
// set is always active, otherwise at least one tag must be activated.
func Active(gate, activated []string) bool {
	if len(gate) == 0 {
		return true
	}
	for _, t := range gate {
		for _, a := range activated {
			if t == a {
				return true
			}
		}
	}
	return false
}

// Tags returns every tag name this recipe declares, sorted. Tags inside
// included recipes are not enumerated; they are only reachable through an
// include's with_tags.
func (r *Recipe) Tags() []string {
	set := map[string]struct{}{}
	collect := func(tags []string) {
		for _, t := range tags {
			set[t] = struct{}{}
		}
	}
	for _, f := range r.Files {
		collect(f.Tags)
		for _, op := range f.Edits {
			collect(op.GateTags())
		}
	}
	for _, d := range r.Directories {
		collect(d.Tags)
	}
	for _, inc := range r.Includes {
		collect(inc.Tags)
	}
	tags := make([]string, 0, len(set))
	for t := range set {
		tags = append(tags, t)
	}
	sort.Strings(tags)
	return tags
}

// normalizeTargetPath canonicalizes a target path declared in a recipe:
// slash-separated, cleaned, relative, and free of parent traversal.
func normalizeTargetPath(p string) (string, error) {
	p = strings.TrimSpace(p)
	if p == "" {
		return "", fmt.Errorf("empty target path")
	}
	if strings.HasPrefix(p, "/") {
		return "", fmt.Errorf("target path %q must be relative", p)
	}
	clean := path.Clean(p)
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("target path %q escapes the target directory", p)
	}
	if clean == "." {
		return "", fmt.Errorf("target path %q is empty after cleaning", p)
	}
	return clean, nil
}
