package recipe

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubstitute(t *testing.T) {
	vars := map[string]string{"host": "blue", "dir": "/etc"}

	testCases := []struct {
		name     string
		in       string
		expected string
	}{
		{"single", "{{host}}.example", "blue.example"},
		{"repeated", "{{host}}-{{host}}", "blue-blue"},
		{"mixed", "{{dir}}/{{host}}.conf", "/etc/blue.conf"},
		{"no placeholders", "plain", "plain"},
		{"value is not rescanned", "{{{{host}}}}", "{{blue}}"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := substitute(tc.in, vars)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, got)
		})
	}
}

func TestSubstitute_UndefinedVariable(t *testing.T) {
	_, err := substitute("{{missing}}", map[string]string{})
	assert.ErrorContains(t, err, `undefined variable "missing"`)
}

func TestResolveVarTable(t *testing.T) {
	t.Run("chain resolves to a fixed point", func(t *testing.T) {
		got, err := resolveVarTable(map[string]string{
			"a": "x",
			"b": "{{a}}y",
			"c": "{{b}}z",
		})
		require.NoError(t, err)
		assert.Equal(t, map[string]string{"a": "x", "b": "xy", "c": "xyz"}, got)
	})

	t.Run("declaration order does not matter", func(t *testing.T) {
		got, err := resolveVarTable(map[string]string{
			"c": "{{b}}!",
			"b": "{{a}}!",
			"a": "base",
		})
		require.NoError(t, err)
		assert.Equal(t, "base!!", got["c"])
	})

	t.Run("diamond references", func(t *testing.T) {
		got, err := resolveVarTable(map[string]string{
			"root":  "r",
			"left":  "{{root}}-l",
			"right": "{{root}}-r",
			"join":  "{{left}}+{{right}}",
		})
		require.NoError(t, err)
		assert.Equal(t, "r-l+r-r", got["join"])
	})

	t.Run("cycle is detected", func(t *testing.T) {
		_, err := resolveVarTable(map[string]string{
			"a": "{{b}}",
			"b": "{{a}}",
			"c": "fine",
		})
		var cycleErr *CyclicVariableError
		require.ErrorAs(t, err, &cycleErr)
		assert.Equal(t, []string{"a", "b"}, cycleErr.Names)
	})

	t.Run("self reference is a cycle", func(t *testing.T) {
		_, err := resolveVarTable(map[string]string{"a": "{{a}}"})
		var cycleErr *CyclicVariableError
		assert.ErrorAs(t, err, &cycleErr)
	})

	t.Run("undefined reference", func(t *testing.T) {
		_, err := resolveVarTable(map[string]string{"a": "{{ghost}}"})
		assert.ErrorContains(t, err, "undefined")
	})
}
