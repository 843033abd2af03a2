package source

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/crypto/sha3"
)

var hexDigest = regexp.MustCompile(`^[0-9a-fA-F]{64}$`)

// Sum returns the SHA3-256 digest of content as upper-case hex, the
// canonical form used everywhere in recipes and diagnostics.
func Sum(content []byte) string {
	digest := sha3.Sum256(content)
	return strings.ToUpper(fmt.Sprintf("%x", digest))
}

// HashEqual compares two hex digests case-insensitively.
func HashEqual(a, b string) bool {
	return strings.EqualFold(a, b)
}

// NormalizeHash validates a hex-encoded 256-bit digest and returns its
// canonical upper-case form.
func NormalizeHash(h string) (string, error) {
	if !hexDigest.MatchString(h) {
		return "", fmt.Errorf("invalid hash %q: want 64 hex characters", h)
	}
	return strings.ToUpper(h), nil
}
