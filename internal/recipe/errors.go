package recipe

import (
	"fmt"
	"sort"
	"strings"
)

// ParseError wraps any failure to turn recipe text into a valid Recipe,
// naming the recipe locator it came from.
type ParseError struct {
	Locator string
	Err     error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("recipe %s: %v", e.Locator, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// CyclicVariableError reports variables whose references can never reach a
// fixed point.
type CyclicVariableError struct {
	Names []string
}

func (e *CyclicVariableError) Error() string {
	names := append([]string{}, e.Names...)
	sort.Strings(names)
	return fmt.Sprintf("cyclic variable reference involving: %s", strings.Join(names, ", "))
}
