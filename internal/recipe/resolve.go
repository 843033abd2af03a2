package recipe

import (
	"fmt"

	"github.com/foldsync/foldsync/internal/edit"
	"github.com/foldsync/foldsync/internal/source"
)

// Resolve substitutes every {{name}} placeholder against the recipe's
// variable table plus the given built-ins, interprets all source locators,
// and normalizes target paths. The receiver is left untouched.
//
// Placeholders are expanded in target paths, include locators and
// destinations, source fields, and edit content, but never in hashes, tag
// lists, kind labels, or edit line positions.
func (r *Recipe) Resolve(builtins map[string]string) (*Recipe, error) {
	merged := make(map[string]string, len(r.Variables)+len(builtins))
	for k, v := range r.Variables {
		merged[k] = v
	}
	for k, v := range builtins {
		merged[k] = v
	}
	vars, err := resolveVarTable(merged)
	if err != nil {
		return nil, err
	}

	out := &Recipe{Variables: vars, resolved: true}
	for _, f := range r.Files {
		rf, err := resolveFile(f, vars)
		if err != nil {
			return nil, err
		}
		out.Files = append(out.Files, rf)
	}
	for _, d := range r.Directories {
		rd, err := resolveDirectory(d, vars)
		if err != nil {
			return nil, err
		}
		out.Directories = append(out.Directories, rd)
	}
	for _, inc := range r.Includes {
		locator, err := substitute(inc.Locator, vars)
		if err != nil {
			return nil, err
		}
		dest := ""
		if inc.Dest != "" {
			raw, err := substitute(inc.Dest, vars)
			if err != nil {
				return nil, err
			}
			if dest, err = normalizeTargetPath(raw); err != nil {
				return nil, fmt.Errorf("include %q: %w", inc.Locator, err)
			}
		}
		out.Includes = append(out.Includes, &Include{
			Locator:  locator,
			Hash:     inc.Hash,
			Dest:     dest,
			Tags:     inc.Tags,
			WithTags: inc.WithTags,
		})
	}
	return out, nil
}

func resolveFile(f *File, vars map[string]string) (*File, error) {
	raw, err := substitute(f.Path, vars)
	if err != nil {
		return nil, err
	}
	target, err := normalizeTargetPath(raw)
	if err != nil {
		return nil, err
	}
	decls, err := resolveDecls(f.Sources, vars, false)
	if err != nil {
		return nil, fmt.Errorf("file %q: %w", target, err)
	}
	var ops []edit.Op
	for _, op := range f.Edits {
		rop, err := resolveEdit(op, vars)
		if err != nil {
			return nil, fmt.Errorf("file %q: %w", target, err)
		}
		ops = append(ops, rop)
	}
	return &File{Path: target, Hash: f.Hash, Tags: f.Tags, Sources: decls, Edits: ops}, nil
}

func resolveDirectory(d *Directory, vars map[string]string) (*Directory, error) {
	raw, err := substitute(d.Path, vars)
	if err != nil {
		return nil, err
	}
	target, err := normalizeTargetPath(raw)
	if err != nil {
		return nil, err
	}
	decls, err := resolveDecls(d.Sources, vars, true)
	if err != nil {
		return nil, fmt.Errorf("directory %q: %w", target, err)
	}
	return &Directory{
		Path:         target,
		Count:        d.Count,
		IgnoreHidden: d.IgnoreHidden,
		Tags:         d.Tags,
		Sources:      decls,
	}, nil
}

func resolveDecls(decls []SourceDecl, vars map[string]string, dirOnly bool) ([]SourceDecl, error) {
	out := make([]SourceDecl, 0, len(decls))
	for _, d := range decls {
		ref, err := resolveDecl(d, vars, dirOnly)
		if err != nil {
			return nil, err
		}
		out = append(out, SourceDecl{Ref: ref})
	}
	return out, nil
}

func resolveDecl(d SourceDecl, vars map[string]string, dirOnly bool) (source.Ref, error) {
	if d.Compact != "" {
		s, err := substitute(d.Compact, vars)
		if err != nil {
			return nil, err
		}
		if dirOnly {
			return ParseDirLocator(s)
		}
		return ParseLocator(s)
	}
	if d.archiveMember != "" {
		parentRaw, err := substitute(d.archiveParent, vars)
		if err != nil {
			return nil, err
		}
		parent, err := ParseLocator(parentRaw)
		if err != nil {
			return nil, err
		}
		member, err := substitute(d.archiveMember, vars)
		if err != nil {
			return nil, err
		}
		return source.Archive{Parent: parent, Member: member}, nil
	}

	switch ref := d.Ref.(type) {
	case source.Local:
		p, err := substitute(ref.Path, vars)
		if err != nil {
			return nil, err
		}
		return source.Local{Path: p}, nil
	case source.Git:
		repo, err := substitute(ref.Repo, vars)
		if err != nil {
			return nil, err
		}
		rev, err := substitute(ref.Revision, vars)
		if err != nil {
			return nil, err
		}
		p, err := substitute(ref.Path, vars)
		if err != nil {
			return nil, err
		}
		return source.Git{Repo: repo, Revision: rev, Path: p}, nil
	case source.URL:
		addr, err := substitute(ref.Address, vars)
		if err != nil {
			return nil, err
		}
		return source.URL{Address: addr}, nil
	case source.Text:
		if ref.Raw {
			return ref, nil
		}
		content, err := substitute(ref.Content, vars)
		if err != nil {
			return nil, err
		}
		return source.Text{Content: content}, nil
	case source.RemoteHost:
		user, err := substitute(ref.User, vars)
		if err != nil {
			return nil, err
		}
		host, err := substitute(ref.Host, vars)
		if err != nil {
			return nil, err
		}
		p, err := substitute(ref.Path, vars)
		if err != nil {
			return nil, err
		}
		return source.RemoteHost{User: user, Host: host, Port: ref.Port, Path: p}, nil
	default:
		return nil, fmt.Errorf("unresolvable source declaration %v", d)
	}
}

func resolveEdit(op edit.Op, vars map[string]string) (edit.Op, error) {
	switch e := op.(type) {
	case edit.Replace:
		from, err := substitute(e.From, vars)
		if err != nil {
			return nil, err
		}
		to, err := substitute(e.To, vars)
		if err != nil {
			return nil, err
		}
		return edit.Replace{From: from, To: to, Optional: e.Optional, Tags: e.Tags}, nil
	case edit.Insert:
		content, err := substitute(e.Content, vars)
		if err != nil {
			return nil, err
		}
		return edit.Insert{Content: content, At: e.At, AfterLine: e.AfterLine, Tags: e.Tags}, nil
	case edit.Delete:
		return e, nil
	default:
		return nil, fmt.Errorf("unknown edit op %T", op)
	}
}
