// Package source resolves individual source references into bytes. A
// Resolver owns the per-invocation git mirror cache; ordered fallback
// across a file's source list is the caller's concern.
package source

import "fmt"

// Ref identifies one place a file's content can come from. It is a closed
// sum type: every kind carries exactly the fields it needs, and the set of
// kinds cannot grow outside this package's control.
type Ref interface {
	fmt.Stringer
	isRef()
}

// Local is a file on the invoking machine. Path must be absolute.
type Local struct {
	Path string
}

// Git is a blob inside a repository at a given revision. Revision may be a
// commit hash, a tag, a branch tip, or a relative expression such as
// "main~2". Repo is a URL, an scp-style locator, or an absolute local path.
type Git struct {
	Repo     string
	Revision string
	Path     string
}

// Archive is a member of an archive whose bytes come from a parent ref.
type Archive struct {
	Parent Ref
	Member string
}

// Text is inline content from the recipe itself. Raw text opted out of
// variable substitution at parse time.
type Text struct {
	Content string
	Raw     bool
}

// URL is content fetched over HTTP(S).
type URL struct {
	Address string
}

// RemoteHost is a file read from another machine over SFTP.
type RemoteHost struct {
	User string
	Host string
	Port int
	Path string
}

func (Local) isRef()      {}
func (Git) isRef()        {}
func (Archive) isRef()    {}
func (Text) isRef()       {}
func (URL) isRef()        {}
func (RemoteHost) isRef() {}

func (r Local) String() string { return r.Path }

func (r Git) String() string {
	return fmt.Sprintf("%s#%s:%s", r.Repo, r.Revision, r.Path)
}

func (r Archive) String() string {
	return fmt.Sprintf("%s!%s", r.Parent, r.Member)
}

func (r Text) String() string { return "inline text" }

func (r URL) String() string { return r.Address }

func (r RemoteHost) String() string {
	if r.Port != 0 && r.Port != defaultSSHPort {
		return fmt.Sprintf("%s@%s:%d:%s", r.User, r.Host, r.Port, r.Path)
	}
	return fmt.Sprintf("%s@%s:%s", r.User, r.Host, r.Path)
}
