// Package assets provides read/write access to named build outputs such as
// stylesheets and their source maps.
package assets

import (
	"errors"
	"sort"
	"sync"
)

// ErrNotFound is returned when a named asset does not exist.
var ErrNotFound = errors.New("asset not found")

// Store reads and writes asset contents by name. Each call is independent;
// stores make no multi-file transaction guarantees.
type Store interface {
	Get(name string) (string, error)
	Set(name, content string) error
}

// Lister is implemented by stores that can enumerate their assets.
type Lister interface {
	Names() ([]string, error)
}

// MemoryStore is an in-memory Store safe for concurrent use.
type MemoryStore struct {
	mu     sync.RWMutex
	assets map[string]string
}

// NewMemoryStore creates a store seeded with a copy of initial.
func NewMemoryStore(initial map[string]string) *MemoryStore {
	s := &MemoryStore{assets: make(map[string]string, len(initial))}
	for k, v := range initial {
		s.assets[k] = v
	}
	return s
}

// Get returns the content of name or ErrNotFound.
func (s *MemoryStore) Get(name string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	content, ok := s.assets[name]
	if !ok {
		return "", ErrNotFound
	}
	return content, nil
}

// Set stores content under name.
func (s *MemoryStore) Set(name, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.assets[name] = content
	return nil
}

// Has reports whether name exists.
func (s *MemoryStore) Has(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.assets[name]
	return ok
}

// Names returns all asset names, sorted.
func (s *MemoryStore) Names() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.assets))
	for k := range s.assets {
		names = append(names, k)
	}
	sort.Strings(names)
	return names, nil
}

// Snapshot returns a copy of every asset.
func (s *MemoryStore) Snapshot() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.assets))
	for k, v := range s.assets {
		out[k] = v
	}
	return out
}
