package recipe

import (
	"github.com/hashicorp/hcl/v2"
)

// HCL wire schema. These structs mirror the recipe format exactly; the
// translation into the agnostic model lives in parse.go.

type recipeHCL struct {
	Variables   *variablesHCL   `hcl:"variables,block"`
	Files       []*fileHCL      `hcl:"file,block"`
	Directories []*directoryHCL `hcl:"directory,block"`
	Includes    []*includeHCL   `hcl:"include,block"`
}

// variablesHCL keeps its body opaque: variable names are user-chosen, so
// they are decoded as free-form attributes.
type variablesHCL struct {
	Body hcl.Body `hcl:",remain"`
}

type fileHCL struct {
	Path    string       `hcl:"path,label"`
	Hash    string       `hcl:"hash,optional"`
	Tags    []string     `hcl:"tags,optional"`
	Sources []string     `hcl:"sources,optional"`
	Blocks  []*sourceHCL `hcl:"source,block"`
	Edits   []*editHCL   `hcl:"edit,block"`
}

type directoryHCL struct {
	Path         string       `hcl:"path,label"`
	Count        *int         `hcl:"count,optional"`
	IgnoreHidden bool         `hcl:"ignore_hidden,optional"`
	Tags         []string     `hcl:"tags,optional"`
	Sources      []string     `hcl:"sources,optional"`
	Blocks       []*sourceHCL `hcl:"source,block"`
}

type includeHCL struct {
	Locator  string   `hcl:"locator,label"`
	Hash     string   `hcl:"hash,optional"`
	Dest     string   `hcl:"path,optional"`
	Tags     []string `hcl:"tags,optional"`
	WithTags []string `hcl:"with_tags,optional"`
}

// sourceHCL is the single wire shape for every structured source kind; the
// label picks the kind and parse.go enforces which fields it requires.
type sourceHCL struct {
	Kind string `hcl:"kind,label"`

	Path     string `hcl:"path,optional"`     // file, remote
	Repo     string `hcl:"repo,optional"`     // git
	Revision string `hcl:"revision,optional"` // git
	URL      string `hcl:"url,optional"`      // http
	Content  string `hcl:"content,optional"`  // text
	Raw      bool   `hcl:"raw,optional"`      // text
	Archive  string `hcl:"archive,optional"`  // archive parent locator
	Member   string `hcl:"member,optional"`   // archive
	User     string `hcl:"user,optional"`     // remote
	Host     string `hcl:"host,optional"`     // remote
	Port     int    `hcl:"port,optional"`     // remote
}

type editHCL struct {
	Kind string   `hcl:"kind,label"`
	Tags []string `hcl:"tags,optional"`

	From      string `hcl:"from,optional"`       // replace
	To        string `hcl:"to,optional"`         // replace
	Optional  bool   `hcl:"optional,optional"`   // replace
	Content   string `hcl:"content,optional"`    // insert
	At        string `hcl:"at,optional"`         // insert
	AfterLine int    `hcl:"after_line,optional"` // insert at = "line"
	FromLine  int    `hcl:"from_line,optional"`  // delete
	ToLine    int    `hcl:"to_line,optional"`    // delete
}
