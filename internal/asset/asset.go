// Package asset holds the files a build produces.
package asset

import (
	"maps"
	"slices"
	"sync"
)

// Set is an insertion-ordered map of output name to content. Loaders may
// emit from other goroutines, so all methods are safe for concurrent use.
// Setting an existing name replaces its content and keeps its position.
type Set struct {
	mu      sync.RWMutex
	names   []string
	content map[string]string
}

// NewSet creates an empty Set.
func NewSet() *Set {
	return &Set{content: make(map[string]string)}
}

// Set records content under name.
func (s *Set) Set(name, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.content[name]; !ok {
		s.names = append(s.names, name)
	}
	s.content[name] = content
}

// Get returns the content stored under name.
func (s *Set) Get(name string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.content[name]
	return c, ok
}

// Names returns the asset names in insertion order.
func (s *Set) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.names)
}

// Len returns the number of assets.
func (s *Set) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.names)
}

// Map returns a copy of the contents.
func (s *Set) Map() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.content)
}
