package assemble

import "fmt"

// PathConflictError reports two simultaneously active entries claiming the
// same target path.
type PathConflictError struct {
	Path string
}

func (e *PathConflictError) Error() string {
	return fmt.Sprintf("two active entries for path %q", e.Path)
}

// IncludeOverrideConflictError reports an included recipe trying to claim
// a path the including recipe defines itself. Included entries may never
// override local ones.
type IncludeOverrideConflictError struct {
	Path    string
	Locator string
}

func (e *IncludeOverrideConflictError) Error() string {
	return fmt.Sprintf("include %s claims path %q already defined locally", e.Locator, e.Path)
}

// IncludeError reports a failure to assemble an included recipe.
type IncludeError struct {
	Locator string
	Err     error
}

func (e *IncludeError) Error() string {
	return fmt.Sprintf("include %s: %v", e.Locator, e.Err)
}

func (e *IncludeError) Unwrap() error { return e.Err }

// FileCountError reports a directory whose listing did not match its
// declared count.
type FileCountError struct {
	Path string
	Want int
	Got  int
}

func (e *FileCountError) Error() string {
	return fmt.Sprintf("directory %q: expected %d files, found %d", e.Path, e.Want, e.Got)
}

// UnknownTagError reports a requested activation tag that no entry in the
// recipe declares.
type UnknownTagError struct {
	Tag string
}

func (e *UnknownTagError) Error() string {
	return fmt.Sprintf("tag %q is not declared in the recipe", e.Tag)
}
