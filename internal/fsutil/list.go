// Package fsutil provides file system utility functions.
package fsutil

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
)

// UnsupportedMemberError reports a directory member that cannot be tracked
// as a plain file: a symlink, a device node, or a nested empty directory.
type UnsupportedMemberError struct {
	Member string
	Reason string
}

func (e *UnsupportedMemberError) Error() string {
	return fmt.Sprintf("unsupported directory member %q: %s", e.Member, e.Reason)
}

// ListRegular recursively lists every regular file under root and returns
// their slash-separated paths relative to root. Any member that is not a
// regular file or a non-empty directory yields an UnsupportedMemberError.
func ListRegular(root string) ([]string, error) {
	return listRegular(root, "")
}

func listRegular(root, rel string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(root, filepath.FromSlash(rel)))
	if err != nil {
		return nil, err
	}
	var files []string
	for _, entry := range entries {
		sub := path.Join(rel, entry.Name())
		switch {
		case entry.Type().IsRegular():
			files = append(files, sub)
		case entry.IsDir():
			nested, err := listRegular(root, sub)
			if err != nil {
				return nil, err
			}
			if len(nested) == 0 {
				return nil, &UnsupportedMemberError{Member: sub, Reason: "empty directory"}
			}
			files = append(files, nested...)
		default:
			return nil, &UnsupportedMemberError{Member: sub, Reason: "not a regular file"}
		}
	}
	return files, nil
}
