package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"sort"
	"time"

	"github.com/foldsync/foldsync/internal/ctxlog"
	"github.com/foldsync/foldsync/internal/fsutil"
)

// Resolver turns a single Ref into bytes. It owns the invocation-scoped git
// mirror cache, so it must be closed when the invocation ends. A Resolver
// is safe for concurrent use.
type Resolver struct {
	httpClient *http.Client
	mirrors    *mirrorCache
	sftpDial   sftpDialFunc
}

// NewResolver returns a Resolver with an empty mirror cache.
func NewResolver() *Resolver {
	return &Resolver{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		mirrors:    newMirrorCache(),
		sftpDial:   dialSFTP,
	}
}

// Close discards the mirror cache's scratch space.
func (r *Resolver) Close() error {
	return r.mirrors.close()
}

// Fetch resolves exactly the one ref given. Transient failures come back as
// *UnavailableError so the caller can fall through to the next source.
func (r *Resolver) Fetch(ctx context.Context, ref Ref) ([]byte, error) {
	switch s := ref.(type) {
	case Local:
		return r.fetchLocal(s)
	case Git:
		return r.fetchGit(ctx, s)
	case Archive:
		parent, err := r.Fetch(ctx, s.Parent)
		if err != nil {
			return nil, err
		}
		data, err := extractMember(archiveName(s.Parent), parent, s.Member)
		if err != nil {
			return nil, unavailable(s, err)
		}
		return data, nil
	case Text:
		return []byte(s.Content), nil
	case URL:
		return r.fetchURL(ctx, s)
	case RemoteHost:
		return r.fetchRemote(ctx, s)
	default:
		return nil, fmt.Errorf("unknown source kind %T", ref)
	}
}

func (r *Resolver) fetchLocal(s Local) ([]byte, error) {
	if !filepath.IsAbs(s.Path) {
		return nil, &RelativePathError{Path: s.Path}
	}
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, unavailable(s, err)
	}
	return data, nil
}

func (r *Resolver) fetchURL(ctx context.Context, s URL) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.Address, nil)
	if err != nil {
		return nil, unavailable(s, err)
	}
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, unavailable(s, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, unavailable(s, fmt.Errorf("unexpected status %s", resp.Status))
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, unavailable(s, err)
	}
	ctxlog.FromContext(ctx).Debug("Fetched URL source.", "url", s.Address, "bytes", len(data))
	return data, nil
}

// List resolves a directory ref into the relative slash paths of every
// regular file below it, sorted. Only Local and Git refs can be listed.
// An *fsutil.UnsupportedMemberError is fatal; everything else that goes
// wrong is reported as *UnavailableError.
func (r *Resolver) List(ctx context.Context, ref Ref) ([]string, error) {
	var names []string
	switch s := ref.(type) {
	case Local:
		if !filepath.IsAbs(s.Path) {
			return nil, &RelativePathError{Path: s.Path}
		}
		var err error
		names, err = fsutil.ListRegular(s.Path)
		if err != nil {
			if _, ok := err.(*fsutil.UnsupportedMemberError); ok {
				return nil, err
			}
			return nil, unavailable(s, err)
		}
	case Git:
		var err error
		names, err = r.listGit(ctx, s)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("source %s cannot be listed as a directory", ref)
	}
	sort.Strings(names)
	return names, nil
}

// FileRef synthesizes the per-member source for a file found by listing
// dirRef.
func (r *Resolver) FileRef(dirRef Ref, member string) (Ref, error) {
	switch s := dirRef.(type) {
	case Local:
		return Local{Path: filepath.Join(s.Path, filepath.FromSlash(member))}, nil
	case Git:
		return Git{Repo: s.Repo, Revision: s.Revision, Path: path.Join(s.Path, member)}, nil
	default:
		return nil, fmt.Errorf("source %s cannot provide directory members", dirRef)
	}
}

// archiveName is the name the archive format is inferred from.
func archiveName(parent Ref) string {
	switch s := parent.(type) {
	case Local:
		return s.Path
	case Git:
		return s.Path
	case URL:
		return s.Address
	case RemoteHost:
		return s.Path
	case Archive:
		return s.Member
	default:
		return ""
	}
}
