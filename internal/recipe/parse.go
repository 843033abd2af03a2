package recipe

import (
	"fmt"
	"strings"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"

	"github.com/foldsync/foldsync/internal/edit"
	"github.com/foldsync/foldsync/internal/source"
)

// Parse turns recipe text into an unresolved Recipe. Structural problems
// (HCL syntax, unknown block kinds, missing required fields, malformed
// hashes) surface here as *ParseError; variable and locator semantics are
// checked by Resolve.
func Parse(locator string, src []byte) (*Recipe, error) {
	rec, err := parse(src)
	if err != nil {
		return nil, &ParseError{Locator: locator, Err: err}
	}
	return rec, nil
}

func parse(src []byte) (*Recipe, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, "recipe.hcl")
	if diags.HasErrors() {
		return nil, diags
	}

	var raw recipeHCL
	if diags := gohcl.DecodeBody(file.Body, nil, &raw); diags.HasErrors() {
		return nil, diags
	}

	rec := &Recipe{Variables: map[string]string{}}

	if raw.Variables != nil {
		attrs, diags := raw.Variables.Body.JustAttributes()
		if diags.HasErrors() {
			return nil, diags
		}
		for name, attr := range attrs {
			if strings.HasPrefix(name, "SELF_") {
				return nil, fmt.Errorf("variable %q: names starting with SELF_ are reserved", name)
			}
			value, diags := attr.Expr.Value(nil)
			if diags.HasErrors() {
				return nil, diags
			}
			if value.Type() != cty.String {
				return nil, fmt.Errorf("variable %q must be a string", name)
			}
			rec.Variables[name] = value.AsString()
		}
	}

	for _, f := range raw.Files {
		file, err := parseFile(f)
		if err != nil {
			return nil, err
		}
		rec.Files = append(rec.Files, file)
	}
	for _, d := range raw.Directories {
		dir, err := parseDirectory(d)
		if err != nil {
			return nil, err
		}
		rec.Directories = append(rec.Directories, dir)
	}
	for _, inc := range raw.Includes {
		hash := ""
		if inc.Hash != "" {
			var err error
			if hash, err = source.NormalizeHash(inc.Hash); err != nil {
				return nil, fmt.Errorf("include %q: %w", inc.Locator, err)
			}
		}
		rec.Includes = append(rec.Includes, &Include{
			Locator:  inc.Locator,
			Hash:     hash,
			Dest:     inc.Dest,
			Tags:     inc.Tags,
			WithTags: inc.WithTags,
		})
	}
	return rec, nil
}

func parseFile(f *fileHCL) (*File, error) {
	if len(f.Sources) == 0 && len(f.Blocks) == 0 {
		return nil, fmt.Errorf("file %q: at least one source is required", f.Path)
	}
	hash := ""
	if f.Hash != "" {
		var err error
		if hash, err = source.NormalizeHash(f.Hash); err != nil {
			return nil, fmt.Errorf("file %q: %w", f.Path, err)
		}
	}
	decls, err := parseSourceDecls(f.Sources, f.Blocks, false)
	if err != nil {
		return nil, fmt.Errorf("file %q: %w", f.Path, err)
	}
	var ops []edit.Op
	for _, e := range f.Edits {
		op, err := parseEdit(e)
		if err != nil {
			return nil, fmt.Errorf("file %q: %w", f.Path, err)
		}
		ops = append(ops, op)
	}
	return &File{Path: f.Path, Hash: hash, Tags: f.Tags, Sources: decls, Edits: ops}, nil
}

func parseDirectory(d *directoryHCL) (*Directory, error) {
	if len(d.Sources) == 0 && len(d.Blocks) == 0 {
		return nil, fmt.Errorf("directory %q: at least one source is required", d.Path)
	}
	if d.Count != nil && *d.Count < 1 {
		return nil, fmt.Errorf("directory %q: count must be positive", d.Path)
	}
	decls, err := parseSourceDecls(d.Sources, d.Blocks, true)
	if err != nil {
		return nil, fmt.Errorf("directory %q: %w", d.Path, err)
	}
	return &Directory{
		Path:         d.Path,
		Count:        d.Count,
		IgnoreHidden: d.IgnoreHidden,
		Tags:         d.Tags,
		Sources:      decls,
	}, nil
}

// parseSourceDecls orders compact locators first, then structured blocks,
// matching their priority in the fallback list.
func parseSourceDecls(compact []string, blocks []*sourceHCL, dirOnly bool) ([]SourceDecl, error) {
	var decls []SourceDecl
	for _, s := range compact {
		if strings.TrimSpace(s) == "" {
			return nil, fmt.Errorf("empty source locator")
		}
		decls = append(decls, SourceDecl{Compact: s})
	}
	for _, b := range blocks {
		decl, err := parseSourceBlock(b, dirOnly)
		if err != nil {
			return nil, err
		}
		decls = append(decls, decl)
	}
	return decls, nil
}

func parseSourceBlock(b *sourceHCL, dirOnly bool) (SourceDecl, error) {
	switch b.Kind {
	case "file":
		if b.Path == "" {
			return SourceDecl{}, fmt.Errorf(`source "file": path is required`)
		}
		return SourceDecl{Ref: source.Local{Path: b.Path}}, nil
	case "git":
		if b.Repo == "" || b.Revision == "" {
			return SourceDecl{}, fmt.Errorf(`source "git": repo and revision are required`)
		}
		return SourceDecl{Ref: source.Git{Repo: b.Repo, Revision: b.Revision, Path: b.Path}}, nil
	}
	if dirOnly {
		return SourceDecl{}, fmt.Errorf("source %q: directories support only file and git sources", b.Kind)
	}
	switch b.Kind {
	case "http":
		if b.URL == "" {
			return SourceDecl{}, fmt.Errorf(`source "http": url is required`)
		}
		return SourceDecl{Ref: source.URL{Address: b.URL}}, nil
	case "text":
		return SourceDecl{Ref: source.Text{Content: b.Content, Raw: b.Raw}}, nil
	case "archive":
		if b.Archive == "" || b.Member == "" {
			return SourceDecl{}, fmt.Errorf(`source "archive": archive and member are required`)
		}
		return SourceDecl{archiveParent: b.Archive, archiveMember: b.Member}, nil
	case "remote":
		if b.User == "" || b.Host == "" || b.Path == "" {
			return SourceDecl{}, fmt.Errorf(`source "remote": user, host and path are required`)
		}
		if b.Port < 0 || b.Port > 65535 {
			return SourceDecl{}, fmt.Errorf(`source "remote": port %d out of range`, b.Port)
		}
		return SourceDecl{Ref: source.RemoteHost{User: b.User, Host: b.Host, Port: b.Port, Path: b.Path}}, nil
	default:
		return SourceDecl{}, fmt.Errorf("unknown source kind %q", b.Kind)
	}
}

func parseEdit(e *editHCL) (edit.Op, error) {
	switch e.Kind {
	case "replace":
		if e.From == "" {
			return nil, fmt.Errorf(`edit "replace": from is required`)
		}
		return edit.Replace{From: e.From, To: e.To, Optional: e.Optional, Tags: e.Tags}, nil
	case "insert":
		switch edit.Position(e.At) {
		case edit.Start, edit.End:
			if e.AfterLine != 0 {
				return nil, fmt.Errorf(`edit "insert": after_line only applies when at = "line"`)
			}
		case edit.Line:
			if e.AfterLine < 1 {
				return nil, fmt.Errorf(`edit "insert": at = "line" requires after_line >= 1`)
			}
		default:
			return nil, fmt.Errorf(`edit "insert": at must be "start", "end" or "line"`)
		}
		return edit.Insert{Content: e.Content, At: edit.Position(e.At), AfterLine: e.AfterLine, Tags: e.Tags}, nil
	case "delete":
		if e.FromLine < 1 || e.ToLine < e.FromLine {
			return nil, fmt.Errorf(`edit "delete": want 1 <= from_line <= to_line`)
		}
		return edit.Delete{FromLine: e.FromLine, ToLine: e.ToLine, Tags: e.Tags}, nil
	default:
		return nil, fmt.Errorf("unknown edit kind %q", e.Kind)
	}
}
