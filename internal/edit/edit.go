// Package edit applies ordered text transformations to fetched content
// before it is placed in the target directory. Ops run strictly in order
// and positions are evaluated against the progressively edited text, so
// line numbers shift across prior ops.
package edit

import (
	"fmt"
	"slices"
	"strings"
	"unicode/utf8"
)

// Error is the fatal edit failure: content that is not text, a position
// outside the current text, or a required replacement with no match.
type Error struct {
	Op     string
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("edit %s: %s", e.Op, e.Reason)
}

// Position names where an Insert places its content.
type Position string

const (
	// Start inserts before the first line.
	Start Position = "start"
	// End inserts after the last line.
	End Position = "end"
	// Line inserts immediately after a given 1-indexed line.
	Line Position = "line"
)

// Op is one text transformation. Each op is independently tag-gated: an op
// with tags is skipped unless one of them is active.
type Op interface {
	GateTags() []string
	apply(text string) (string, error)
}

// Insert places content as its own line block at the start, the end, or
// immediately after a 1-indexed line of the current text.
type Insert struct {
	Content   string
	At        Position
	AfterLine int
	Tags      []string
}

// Replace substitutes every occurrence of an exact substring. The match is
// literal, never a regex, and all occurrences are replaced. Unless Optional
// is set, a text without any occurrence fails the edit.
type Replace struct {
	From     string
	To       string
	Optional bool
	Tags     []string
}

// Delete removes an inclusive 1-indexed line range.
type Delete struct {
	FromLine int
	ToLine   int
	Tags     []string
}

func (op Insert) GateTags() []string  { return op.Tags }
func (op Replace) GateTags() []string { return op.Tags }
func (op Delete) GateTags() []string  { return op.Tags }

// Apply decodes data as text and runs every active op in order. The input
// must be valid UTF-8; anything else fails before the first op.
func Apply(data []byte, ops []Op, activeTags []string) ([]byte, error) {
	if len(ops) == 0 {
		return data, nil
	}
	if !utf8.Valid(data) {
		return nil, &Error{Op: "pipeline", Reason: "content does not decode as text"}
	}
	text := string(data)
	for _, op := range ops {
		if !gateOpen(op.GateTags(), activeTags) {
			continue
		}
		var err error
		text, err = op.apply(text)
		if err != nil {
			return nil, err
		}
	}
	return []byte(text), nil
}

func gateOpen(gate, active []string) bool {
	if len(gate) == 0 {
		return true
	}
	return slices.ContainsFunc(gate, func(t string) bool {
		return slices.Contains(active, t)
	})
}

func (op Insert) apply(text string) (string, error) {
	block := op.Content
	if !strings.HasSuffix(block, "\n") {
		block += "\n"
	}
	switch op.At {
	case Start:
		return block + text, nil
	case End:
		if text != "" && !strings.HasSuffix(text, "\n") {
			text += "\n"
		}
		return text + block, nil
	case Line:
		lines := splitLines(text)
		if op.AfterLine < 1 || op.AfterLine > len(lines) {
			return "", &Error{
				Op:     "insert",
				Reason: fmt.Sprintf("line %d out of range (text has %d lines)", op.AfterLine, len(lines)),
			}
		}
		var b strings.Builder
		for i, line := range lines {
			b.WriteString(line)
			if i == op.AfterLine-1 {
				if !strings.HasSuffix(line, "\n") {
					b.WriteString("\n")
				}
				b.WriteString(block)
			}
		}
		return b.String(), nil
	default:
		return "", &Error{Op: "insert", Reason: fmt.Sprintf("unknown position %q", op.At)}
	}
}

func (op Replace) apply(text string) (string, error) {
	if !strings.Contains(text, op.From) {
		if op.Optional {
			return text, nil
		}
		return "", &Error{Op: "replace", Reason: fmt.Sprintf("required substring %q not found", op.From)}
	}
	return strings.ReplaceAll(text, op.From, op.To), nil
}

func (op Delete) apply(text string) (string, error) {
	lines := splitLines(text)
	if op.FromLine < 1 || op.ToLine < op.FromLine || op.ToLine > len(lines) {
		return "", &Error{
			Op:     "delete",
			Reason: fmt.Sprintf("line range %d-%d out of range (text has %d lines)", op.FromLine, op.ToLine, len(lines)),
		}
	}
	kept := append([]string{}, lines[:op.FromLine-1]...)
	kept = append(kept, lines[op.ToLine:]...)
	return strings.Join(kept, ""), nil
}

// splitLines splits keeping each line's terminator, without a phantom
// empty line after a trailing newline.
func splitLines(text string) []string {
	lines := strings.SplitAfter(text, "\n")
	if n := len(lines); n > 0 && lines[n-1] == "" {
		lines = lines[:n-1]
	}
	return lines
}
