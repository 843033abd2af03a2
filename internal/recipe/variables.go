package recipe

import (
	"fmt"
	"regexp"
	"sort"
)

var varPattern = regexp.MustCompile(`\{\{([^{}]+)\}\}`)

// varRefs lists the variable names referenced by s, in order of appearance.
func varRefs(s string) []string {
	var names []string
	for _, m := range varPattern.FindAllStringSubmatch(s, -1) {
		names = append(names, m[1])
	}
	return names
}

// substitute replaces every {{name}} placeholder in s. The references are
// found before any replacement happens, so substituted values are never
// re-scanned: {{{{a}}}} with a="x" yields the literal {{x}}.
func substitute(s string, vars map[string]string) (string, error) {
	refs := varRefs(s)
	for _, name := range refs {
		value, ok := vars[name]
		if !ok {
			return "", fmt.Errorf("undefined variable %q in %q", name, s)
		}
		s = regexp.MustCompile(regexp.QuoteMeta("{{"+name+"}}")).ReplaceAllLiteralString(s, value)
	}
	return s, nil
}

// resolveVarTable resolves inter-references between variables to a fixed
// point. Every round resolves the variables whose references are already
// settled; a round with no progress means a dependency cycle.
func resolveVarTable(vars map[string]string) (map[string]string, error) {
	resolved := make(map[string]string, len(vars))
	for len(resolved) < len(vars) {
		progress := false
		for name, value := range vars {
			if _, done := resolved[name]; done {
				continue
			}
			ready := true
			for _, ref := range varRefs(value) {
				if _, ok := vars[ref]; !ok {
					return nil, fmt.Errorf("variable %q references undefined variable %q", name, ref)
				}
				if _, ok := resolved[ref]; !ok {
					ready = false
					break
				}
			}
			if !ready {
				continue
			}
			filled, err := substitute(value, resolved)
			if err != nil {
				return nil, err
			}
			resolved[name] = filled
			progress = true
		}
		if !progress {
			var stuck []string
			for name := range vars {
				if _, done := resolved[name]; !done {
					stuck = append(stuck, name)
				}
			}
			sort.Strings(stuck)
			return nil, &CyclicVariableError{Names: stuck}
		}
	}
	return resolved, nil
}
