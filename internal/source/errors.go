package source

import "fmt"

// UnavailableError marks a transient, per-source failure: the caller should
// advance to the next source in the entry's fallback list rather than abort.
type UnavailableError struct {
	Ref Ref
	Err error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("source %s unavailable: %v", e.Ref, e.Err)
}

func (e *UnavailableError) Unwrap() error { return e.Err }

func unavailable(ref Ref, err error) error {
	return &UnavailableError{Ref: ref, Err: err}
}

// RelativePathError reports a local path or repo locator that is not
// absolute. Relative paths are rejected outright so a recipe's meaning
// never depends on the invoker's working directory.
type RelativePathError struct {
	Path string
}

func (e *RelativePathError) Error() string {
	return fmt.Sprintf("relative path %q is not allowed", e.Path)
}

// HashMismatchError reports content whose digest differs from the one the
// recipe declares. Name is the target path or recipe locator.
type HashMismatchError struct {
	Name string
	Want string
	Got  string
}

func (e *HashMismatchError) Error() string {
	return fmt.Sprintf("hash mismatch for %s: want %s, got %s", e.Name, e.Want, e.Got)
}

// NoValidSourceError reports that every source in an entry's fallback list
// failed. Name is the target path or directory the entry belongs to.
type NoValidSourceError struct {
	Name string
}

func (e *NoValidSourceError) Error() string {
	return fmt.Sprintf("no valid source for %s", e.Name)
}
