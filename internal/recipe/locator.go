package recipe

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/foldsync/foldsync/internal/source"
)

// Compact locator grammar:
//
//	/abs/path                         local file
//	http(s)://host/file               URL
//	repo#revision:path-in-repo        git blob (repo may be a URL, an
//	                                  scp-style locator, or a local path)
//	user@host:path                    remote host over SFTP
//	user@host:port:path               remote host, explicit port
//	/abs/bundle.tar.gz:member/path    member of a local archive
var remotePattern = regexp.MustCompile(`^([^@/]+)@([^:/]+):(?:(\d+):)?(.+)$`)

// ParseLocator interprets one compact source locator.
func ParseLocator(s string) (source.Ref, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("empty source locator")
	}
	if hash := strings.Index(s, "#"); hash >= 0 {
		return parseGitLocator(s, hash)
	}
	if strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://") {
		return source.URL{Address: s}, nil
	}
	if m := remotePattern.FindStringSubmatch(s); m != nil {
		port := 0
		if m[3] != "" {
			port, _ = strconv.Atoi(m[3])
		}
		return source.RemoteHost{User: m[1], Host: m[2], Port: port, Path: m[4]}, nil
	}
	if colon := strings.Index(s, ":"); colon > 0 && source.IsArchiveName(s[:colon]) {
		member := s[colon+1:]
		if member == "" {
			return nil, fmt.Errorf("archive locator %q is missing a member path", s)
		}
		return source.Archive{Parent: source.Local{Path: s[:colon]}, Member: member}, nil
	}
	return source.Local{Path: s}, nil
}

// ParseDirLocator interprets a compact locator for a directory source,
// which supports only local paths and git trees.
func ParseDirLocator(s string) (source.Ref, error) {
	ref, err := ParseLocator(s)
	if err != nil {
		return nil, err
	}
	switch ref.(type) {
	case source.Local, source.Git:
		return ref, nil
	default:
		return nil, fmt.Errorf("directory source %q must be a local path or a git tree", s)
	}
}

func parseGitLocator(s string, hash int) (source.Ref, error) {
	repo, rest := s[:hash], s[hash+1:]
	colon := strings.Index(rest, ":")
	if repo == "" || colon <= 0 || colon == len(rest)-1 {
		return nil, fmt.Errorf("malformed git locator %q: want repo#revision:path", s)
	}
	return source.Git{Repo: repo, Revision: rest[:colon], Path: rest[colon+1:]}, nil
}
