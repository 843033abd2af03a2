package testutil

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"sync"

	"github.com/foldsync/foldsync/internal/source"
)

// ScriptedSource is an in-memory source resolver for tests. Content,
// errors, and directory listings are keyed by the ref's String form, and
// every fetch is counted so tests can assert the shortcut and fallback
// behavior.
type ScriptedSource struct {
	mu       sync.Mutex
	Files    map[string][]byte
	Errs     map[string]error
	Listings map[string][]string
	fetches  map[string]int
}

// NewScriptedSource returns an empty scripted resolver; populate Files,
// Errs, and Listings directly.
func NewScriptedSource() *ScriptedSource {
	return &ScriptedSource{
		Files:    map[string][]byte{},
		Errs:     map[string]error{},
		Listings: map[string][]string{},
		fetches:  map[string]int{},
	}
}

// Script registers content under a ref key.
func (s *ScriptedSource) Script(key, content string) {
	s.Files[key] = []byte(content)
}

// Fail registers a ref key that fetches as unavailable.
func (s *ScriptedSource) Fail(key string) {
	s.Errs[key] = &source.UnavailableError{Err: fmt.Errorf("scripted failure")}
}

func (s *ScriptedSource) Fetch(_ context.Context, ref source.Ref) ([]byte, error) {
	key := ref.String()
	s.mu.Lock()
	s.fetches[key]++
	s.mu.Unlock()

	if text, ok := ref.(source.Text); ok {
		return []byte(text.Content), nil
	}
	if err, ok := s.Errs[key]; ok {
		return nil, err
	}
	if data, ok := s.Files[key]; ok {
		return data, nil
	}
	return nil, &source.UnavailableError{Ref: ref, Err: fmt.Errorf("not scripted")}
}

func (s *ScriptedSource) List(_ context.Context, ref source.Ref) ([]string, error) {
	key := ref.String()
	if err, ok := s.Errs[key]; ok {
		return nil, err
	}
	if names, ok := s.Listings[key]; ok {
		return names, nil
	}
	return nil, &source.UnavailableError{Ref: ref, Err: fmt.Errorf("not scripted")}
}

// FileRef mirrors the real resolver's member ref synthesis.
func (s *ScriptedSource) FileRef(dirRef source.Ref, member string) (source.Ref, error) {
	switch d := dirRef.(type) {
	case source.Local:
		return source.Local{Path: filepath.Join(d.Path, filepath.FromSlash(member))}, nil
	case source.Git:
		return source.Git{Repo: d.Repo, Revision: d.Revision, Path: path.Join(d.Path, member)}, nil
	default:
		return nil, fmt.Errorf("ref %q cannot hold directory members", dirRef)
	}
}

// Fetches reports how many times a ref key was fetched.
func (s *ScriptedSource) Fetches(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetches[key]
}

// TotalFetches reports the number of Fetch calls across all refs.
func (s *ScriptedSource) TotalFetches() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, n := range s.fetches {
		total += n
	}
	return total
}
