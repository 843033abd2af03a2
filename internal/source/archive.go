package source

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/ulikunitz/xz"
)

// IsArchiveName reports whether a file name carries one of the supported
// archive container suffixes.
func IsArchiveName(name string) bool {
	for _, suffix := range []string{".zip", ".tar", ".tar.gz", ".tgz", ".tar.xz"} {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}
	return false
}

// extractMember pulls one member out of an archive held fully in memory.
// The container format is inferred from the parent's name. Members are
// matched against the declared path exactly, or with the archive's first
// path level stripped, since release tarballs usually wrap their content
// in a single versioned directory. An exact match always wins over a
// stripped one, regardless of entry order.
func extractMember(name string, data []byte, member string) ([]byte, error) {
	member = strings.Trim(member, "/")
	switch {
	case strings.HasSuffix(name, ".zip"):
		return extractZip(data, member)
	case strings.HasSuffix(name, ".tar"):
		return extractTar(bytes.NewReader(data), member)
	case strings.HasSuffix(name, ".tar.gz"), strings.HasSuffix(name, ".tgz"):
		gz, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		defer gz.Close()
		return extractTar(gz, member)
	case strings.HasSuffix(name, ".tar.xz"):
		xr, err := xz.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		return extractTar(xr, member)
	default:
		return nil, fmt.Errorf("unsupported archive type for %q", name)
	}
}

func extractZip(data []byte, member string) ([]byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}
	var stripped *zip.File
	for _, entry := range zr.File {
		name := strings.Trim(entry.Name, "/")
		if name == member {
			return readZipEntry(entry)
		}
		if stripped == nil && stripFirstLevel(name) == member {
			stripped = entry
		}
	}
	if stripped != nil {
		return readZipEntry(stripped)
	}
	return nil, fmt.Errorf("member %q not found in archive", member)
}

func readZipEntry(entry *zip.File) ([]byte, error) {
	rc, err := entry.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func extractTar(r io.Reader, member string) ([]byte, error) {
	tr := tar.NewReader(r)
	var stripped []byte
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if header.Typeflag != tar.TypeReg {
			continue
		}
		name := strings.Trim(header.Name, "/")
		if name == member {
			return io.ReadAll(tr)
		}
		// The stream cannot be rewound, so remember the first stripped
		// match in case no exact one follows.
		if stripped == nil && stripFirstLevel(name) == member {
			if stripped, err = io.ReadAll(tr); err != nil {
				return nil, err
			}
		}
	}
	if stripped != nil {
		return stripped, nil
	}
	return nil, fmt.Errorf("member %q not found in archive", member)
}

func stripFirstLevel(p string) string {
	if i := strings.IndexByte(p, '/'); i >= 0 {
		return p[i+1:]
	}
	return p
}
