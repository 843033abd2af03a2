package reconcile

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foldsync/foldsync/internal/assemble"
	"github.com/foldsync/foldsync/internal/recipe"
	"github.com/foldsync/foldsync/internal/source"
	"github.com/foldsync/foldsync/internal/testutil"
)

// buildManifest assembles recipe text against a scripted source resolver.
func buildManifest(t *testing.T, src *testutil.ScriptedSource, recipeText string, tags []string) *assemble.Manifest {
	t.Helper()
	rec, err := recipe.Parse("test", []byte(recipeText))
	require.NoError(t, err)
	resolved, err := rec.Resolve(nil)
	require.NoError(t, err)
	m, err := assemble.New(src).Assemble(context.Background(), resolved, tags)
	require.NoError(t, err)
	return m
}

// mapSnapshot serves file bytes from memory.
type mapSnapshot map[string]string

func (s mapSnapshot) ReadFile(rel string) ([]byte, error) {
	if content, ok := s[rel]; ok {
		return []byte(content), nil
	}
	return nil, &notFoundError{rel}
}

type notFoundError struct{ path string }

func (e *notFoundError) Error() string { return e.path + " does not exist" }

func TestDeletions(t *testing.T) {
	src := testutil.NewScriptedSource()
	m := buildManifest(t, src, `
file "etc/a.conf" { sources = ["/x"] }
file "etc/b.conf" { sources = ["/y"] }
file "top.txt" { sources = ["/z"] }
`, nil)

	assert.Equal(t, []string{"."}, Deletions(m, Full))
	assert.Equal(t, []string{"etc", "top.txt"}, Deletions(m, SkipFirstLevel))
}

func TestResolve_ShortcutSkipsFetch(t *testing.T) {
	content := "already there"
	src := testutil.NewScriptedSource()
	src.Script("/data/a.txt", content)

	m := buildManifest(t, src, `
file "a.txt" {
  hash    = "`+source.Sum([]byte(content))+`"
  sources = ["/data/a.txt"]
}
`, nil)

	resolved, err := NewSyncer(src, 2).Resolve(context.Background(), m, mapSnapshot{"a.txt": content})
	require.NoError(t, err)
	assert.Equal(t, content, string(resolved.Bytes("a.txt")))
	assert.Equal(t, 0, src.Fetches("/data/a.txt"))
}

func TestResolve_NoShortcutWithoutHash(t *testing.T) {
	src := testutil.NewScriptedSource()
	src.Script("/data/a.txt", "fresh")

	m := buildManifest(t, src, `file "a.txt" { sources = ["/data/a.txt"] }`, nil)

	resolved, err := NewSyncer(src, 2).Resolve(context.Background(), m, mapSnapshot{"a.txt": "stale"})
	require.NoError(t, err)
	assert.Equal(t, "fresh", string(resolved.Bytes("a.txt")))
	assert.Equal(t, 1, src.Fetches("/data/a.txt"))
}

func TestResolve_NoShortcutWithEdits(t *testing.T) {
	// The declared hash covers pre-edit content, so an entry with edits
	// must always be rebuilt from a source.
	content := "hello\n"
	src := testutil.NewScriptedSource()
	src.Script("/data/a.txt", content)

	m := buildManifest(t, src, `
file "a.txt" {
  hash    = "`+source.Sum([]byte(content))+`"
  sources = ["/data/a.txt"]
  edit "replace" {
    from = "hello"
    to   = "goodbye"
  }
}
`, nil)

	resolved, err := NewSyncer(src, 2).Resolve(context.Background(), m, mapSnapshot{"a.txt": content})
	require.NoError(t, err)
	assert.Equal(t, "goodbye\n", string(resolved.Bytes("a.txt")))
	assert.Equal(t, 1, src.Fetches("/data/a.txt"))
}

func TestResolve_FallbackOrder(t *testing.T) {
	src := testutil.NewScriptedSource()
	src.Fail("/primary/a.txt")
	src.Script("/backup/a.txt", "from backup")

	m := buildManifest(t, src, `
file "a.txt" {
  sources = ["/primary/a.txt", "/backup/a.txt"]
}
`, nil)

	resolved, err := NewSyncer(src, 2).Resolve(context.Background(), m, mapSnapshot{})
	require.NoError(t, err)
	assert.Equal(t, "from backup", string(resolved.Bytes("a.txt")))
}

func TestResolve_PerSourceHashCheck(t *testing.T) {
	want := "right content"
	src := testutil.NewScriptedSource()
	src.Script("/stale/a.txt", "wrong content")
	src.Script("/good/a.txt", want)

	m := buildManifest(t, src, `
file "a.txt" {
  hash    = "`+source.Sum([]byte(want))+`"
  sources = ["/stale/a.txt", "/good/a.txt"]
}
`, nil)

	// The first source's bytes do not hash to the declared digest, so the
	// resolver moves on to the second.
	resolved, err := NewSyncer(src, 2).Resolve(context.Background(), m, mapSnapshot{})
	require.NoError(t, err)
	assert.Equal(t, want, string(resolved.Bytes("a.txt")))
}

func TestResolve_FirstValidSourceStopsFallback(t *testing.T) {
	content := "good"
	src := testutil.NewScriptedSource()
	src.Script("/primary/a.txt", content)
	src.Script("/never/a.txt", content)

	m := buildManifest(t, src, `
file "a.txt" {
  hash    = "`+source.Sum([]byte(content))+`"
  sources = ["/primary/a.txt", "/never/a.txt"]
}
`, nil)

	_, err := NewSyncer(src, 2).Resolve(context.Background(), m, mapSnapshot{})
	require.NoError(t, err)
	assert.Equal(t, 1, src.Fetches("/primary/a.txt"))
	assert.Equal(t, 0, src.Fetches("/never/a.txt"))
}

func TestResolve_ExhaustionAfterMismatchIsHashMismatch(t *testing.T) {
	src := testutil.NewScriptedSource()
	src.Script("/stale/a.txt", "wrong content")

	m := buildManifest(t, src, `
file "a.txt" {
  hash    = "`+source.Sum([]byte("right content"))+`"
  sources = ["/stale/a.txt"]
}
`, nil)

	_, err := NewSyncer(src, 2).Resolve(context.Background(), m, mapSnapshot{})
	var mismatch *source.HashMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, "a.txt", mismatch.Name)
	assert.Equal(t, source.Sum([]byte("wrong content")), mismatch.Got)
}

func TestResolve_ExhaustionWithoutContentIsNoValidSource(t *testing.T) {
	src := testutil.NewScriptedSource()
	src.Fail("/gone/a.txt")
	src.Fail("/also-gone/a.txt")

	m := buildManifest(t, src, `
file "a.txt" {
  sources = ["/gone/a.txt", "/also-gone/a.txt"]
}
`, nil)

	_, err := NewSyncer(src, 2).Resolve(context.Background(), m, mapSnapshot{})
	var noSource *source.NoValidSourceError
	require.ErrorAs(t, err, &noSource)
	assert.Equal(t, "a.txt", noSource.Name)
}

func TestResolve_FatalSourceErrorAborts(t *testing.T) {
	src := testutil.NewScriptedSource()
	src.Errs["relative/a.txt"] = &source.RelativePathError{Path: "relative/a.txt"}

	m := buildManifest(t, src, `
file "a.txt" {
  sources = ["relative/a.txt", "/backup/a.txt"]
}
`, nil)
	src.Script("/backup/a.txt", "never reached")

	_, err := NewSyncer(src, 2).Resolve(context.Background(), m, mapSnapshot{})
	var relErr *source.RelativePathError
	assert.ErrorAs(t, err, &relErr)
}

func TestResolve_EditGatesUseTagContext(t *testing.T) {
	src := testutil.NewScriptedSource()
	src.Script("/data/a.txt", "hello\n")

	recipeText := `
file "a.txt" {
  sources = ["/data/a.txt"]
  edit "replace" {
    from = "hello"
    to   = "goodbye"
    tags = ["rude"]
  }
}
`
	t.Run("gate closed", func(t *testing.T) {
		m := buildManifest(t, src, recipeText, nil)
		resolved, err := NewSyncer(src, 2).Resolve(context.Background(), m, mapSnapshot{})
		require.NoError(t, err)
		assert.Equal(t, "hello\n", string(resolved.Bytes("a.txt")))
	})

	t.Run("gate open", func(t *testing.T) {
		m := buildManifest(t, src, recipeText, []string{"rude"})
		resolved, err := NewSyncer(src, 2).Resolve(context.Background(), m, mapSnapshot{})
		require.NoError(t, err)
		assert.Equal(t, "goodbye\n", string(resolved.Bytes("a.txt")))
	})
}

func TestResolve_EditFailureIsFatal(t *testing.T) {
	src := testutil.NewScriptedSource()
	src.Script("/data/a.txt", "no match here\n")

	m := buildManifest(t, src, `
file "a.txt" {
  sources = ["/data/a.txt"]
  edit "replace" {
    from = "absent"
    to   = "x"
  }
}
`, nil)

	_, err := NewSyncer(src, 2).Resolve(context.Background(), m, mapSnapshot{})
	require.Error(t, err)
	assert.ErrorContains(t, err, "a.txt")
}
