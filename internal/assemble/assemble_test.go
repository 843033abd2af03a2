package assemble

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foldsync/foldsync/internal/recipe"
	"github.com/foldsync/foldsync/internal/source"
	"github.com/foldsync/foldsync/internal/testutil"
)

func resolvedRecipe(t *testing.T, src string) *recipe.Recipe {
	t.Helper()
	rec, err := recipe.Parse("test", []byte(src))
	require.NoError(t, err)
	resolved, err := rec.Resolve(nil)
	require.NoError(t, err)
	return resolved
}

func TestAssemble_Basic(t *testing.T) {
	rec := resolvedRecipe(t, `
file "etc/a.conf" {
  sources = ["/data/a.conf", "https://example.com/a.conf"]
}

file "b.txt" {
  source "text" {
    content = "inline"
  }
}
`)
	m, err := New(testutil.NewScriptedSource()).Assemble(context.Background(), rec, nil)
	require.NoError(t, err)

	assert.Equal(t, 2, m.Len())
	assert.Equal(t, []string{"b.txt", "etc/a.conf"}, m.Paths())

	e := m.Get("etc/a.conf")
	require.NotNil(t, e)
	assert.Equal(t, []source.Ref{
		source.Local{Path: "/data/a.conf"},
		source.URL{Address: "https://example.com/a.conf"},
	}, e.Sources)
}

func TestAssemble_RequiresResolvedRecipe(t *testing.T) {
	rec, err := recipe.Parse("test", []byte(`file "a" { sources = ["/x"] }`))
	require.NoError(t, err)

	_, err = New(testutil.NewScriptedSource()).Assemble(context.Background(), rec, nil)
	assert.Error(t, err)
}

func TestAssemble_TagFiltering(t *testing.T) {
	rec := resolvedRecipe(t, `
file "always.txt" {
  sources = ["/data/always"]
}

file "work.txt" {
  tags    = ["work"]
  sources = ["/data/work"]
}
`)
	a := New(testutil.NewScriptedSource())

	m, err := a.Assemble(context.Background(), rec, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"always.txt"}, m.Paths())

	m, err = a.Assemble(context.Background(), rec, []string{"work"})
	require.NoError(t, err)
	assert.Equal(t, []string{"always.txt", "work.txt"}, m.Paths())
	assert.Equal(t, []string{"work"}, m.Get("work.txt").TagContext)
}

func TestAssemble_UnknownTag(t *testing.T) {
	rec := resolvedRecipe(t, `file "a" { sources = ["/x"] }`)

	_, err := New(testutil.NewScriptedSource()).Assemble(context.Background(), rec, []string{"ghost"})
	var tagErr *UnknownTagError
	require.ErrorAs(t, err, &tagErr)
	assert.Equal(t, "ghost", tagErr.Tag)
}

func TestAssemble_TaggedSupersedesUntagged(t *testing.T) {
	rec := resolvedRecipe(t, `
file "a.txt" {
  sources = ["/data/default"]
}

file "a.txt" {
  tags    = ["special"]
  sources = ["/data/special"]
}
`)
	a := New(testutil.NewScriptedSource())

	m, err := a.Assemble(context.Background(), rec, nil)
	require.NoError(t, err)
	assert.Equal(t, source.Local{Path: "/data/default"}, m.Get("a.txt").Sources[0])

	m, err = a.Assemble(context.Background(), rec, []string{"special"})
	require.NoError(t, err)
	assert.Equal(t, source.Local{Path: "/data/special"}, m.Get("a.txt").Sources[0])
}

func TestAssemble_PathConflicts(t *testing.T) {
	t.Run("two untagged entries", func(t *testing.T) {
		rec := resolvedRecipe(t, `
file "a.txt" { sources = ["/one"] }
file "a.txt" { sources = ["/two"] }
`)
		_, err := New(testutil.NewScriptedSource()).Assemble(context.Background(), rec, nil)
		var conflict *PathConflictError
		require.ErrorAs(t, err, &conflict)
		assert.Equal(t, "a.txt", conflict.Path)
	})

	t.Run("two active tagged entries", func(t *testing.T) {
		rec := resolvedRecipe(t, `
file "a.txt" {
  tags    = ["x"]
  sources = ["/one"]
}
file "a.txt" {
  tags    = ["y"]
  sources = ["/two"]
}
`)
		a := New(testutil.NewScriptedSource())

		// Only one active: fine.
		_, err := a.Assemble(context.Background(), rec, []string{"x"})
		require.NoError(t, err)

		_, err = a.Assemble(context.Background(), rec, []string{"x", "y"})
		var conflict *PathConflictError
		assert.ErrorAs(t, err, &conflict)
	})
}

func TestAssemble_NestedPathConflict(t *testing.T) {
	// A target path that is a parent directory of another entry can never
	// be written; assembly must reject it before any sync starts.
	t.Run("file under file", func(t *testing.T) {
		rec := resolvedRecipe(t, `
file "a" { sources = ["/one"] }
file "a/b" { sources = ["/two"] }
`)
		_, err := New(testutil.NewScriptedSource()).Assemble(context.Background(), rec, nil)
		var conflict *PathConflictError
		require.ErrorAs(t, err, &conflict)
		assert.Equal(t, "a", conflict.Path)
	})

	t.Run("directory member under file", func(t *testing.T) {
		src := testutil.NewScriptedSource()
		src.Listings["/data"] = []string{"b"}

		rec := resolvedRecipe(t, `
file "static" { sources = ["/one"] }
directory "static/extra" { sources = ["/data"] }
`)
		_, err := New(src).Assemble(context.Background(), rec, nil)
		var conflict *PathConflictError
		require.ErrorAs(t, err, &conflict)
		assert.Equal(t, "static", conflict.Path)
	})
}

func TestAssemble_DirectoryExpansion(t *testing.T) {
	src := testutil.NewScriptedSource()
	src.Listings["/data/assets"] = []string{"a.txt", "sub/b.txt"}

	rec := resolvedRecipe(t, `
directory "static" {
  sources = ["/data/assets", "/backup/assets"]
}
`)
	m, err := New(src).Assemble(context.Background(), rec, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"static/a.txt", "static/sub/b.txt"}, m.Paths())
	// Every member falls back across all declared directory sources.
	e := m.Get("static/sub/b.txt")
	require.Len(t, e.Sources, 2)
	assert.Equal(t, source.Local{Path: "/data/assets/sub/b.txt"}, e.Sources[0])
	assert.Equal(t, source.Local{Path: "/backup/assets/sub/b.txt"}, e.Sources[1])
	assert.Empty(t, e.Hash)
}

func TestAssemble_DirectoryFallbackListing(t *testing.T) {
	src := testutil.NewScriptedSource()
	src.Fail("/primary")
	src.Listings["/backup"] = []string{"a.txt"}

	rec := resolvedRecipe(t, `
directory "d" {
  sources = ["/primary", "/backup"]
}
`)
	m, err := New(src).Assemble(context.Background(), rec, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"d/a.txt"}, m.Paths())
}

func TestAssemble_DirectoryAllSourcesUnavailable(t *testing.T) {
	src := testutil.NewScriptedSource()
	src.Fail("/primary")

	rec := resolvedRecipe(t, `directory "d" { sources = ["/primary"] }`)
	_, err := New(src).Assemble(context.Background(), rec, nil)
	var noSource *source.NoValidSourceError
	require.ErrorAs(t, err, &noSource)
	assert.Contains(t, noSource.Name, "d")
}

func TestAssemble_DirectoryCount(t *testing.T) {
	src := testutil.NewScriptedSource()
	src.Listings["/data"] = []string{"a", "b", ".hidden"}

	t.Run("mismatch is fatal", func(t *testing.T) {
		rec := resolvedRecipe(t, `
directory "d" {
  count   = 2
  sources = ["/data"]
}
`)
		_, err := New(src).Assemble(context.Background(), rec, nil)
		var countErr *FileCountError
		require.ErrorAs(t, err, &countErr)
		assert.Equal(t, 2, countErr.Want)
		assert.Equal(t, 3, countErr.Got)
	})

	t.Run("count checks the full listing before hidden filtering", func(t *testing.T) {
		rec := resolvedRecipe(t, `
directory "d" {
  count         = 3
  ignore_hidden = true
  sources       = ["/data"]
}
`)
		m, err := New(src).Assemble(context.Background(), rec, nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"d/a", "d/b"}, m.Paths())
	})
}

func TestAssemble_DirectoryIgnoreHiddenComponents(t *testing.T) {
	src := testutil.NewScriptedSource()
	src.Listings["/data"] = []string{"a", ".git/config", "sub/.env", "sub/keep"}

	rec := resolvedRecipe(t, `
directory "d" {
  ignore_hidden = true
  sources       = ["/data"]
}
`)
	m, err := New(src).Assemble(context.Background(), rec, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"d/a", "d/sub/keep"}, m.Paths())
}

func TestAssemble_OverlappingDirectoriesConflict(t *testing.T) {
	src := testutil.NewScriptedSource()
	src.Listings["/one"] = []string{"shared.txt"}
	src.Listings["/two"] = []string{"shared.txt"}

	rec := resolvedRecipe(t, `
directory "static" { sources = ["/one"] }
directory "static" { sources = ["/two"] }
`)
	_, err := New(src).Assemble(context.Background(), rec, nil)
	var conflict *PathConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "static/shared.txt", conflict.Path)
}

func TestAssemble_InactiveDirectorySkipsListing(t *testing.T) {
	// An inactive directory must never hit its sources.
	src := testutil.NewScriptedSource()

	rec := resolvedRecipe(t, `
directory "d" {
  tags    = ["opt"]
  sources = ["/never-listed"]
}
`)
	m, err := New(src).Assemble(context.Background(), rec, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, m.Len())
}
