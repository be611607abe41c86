// Package session keeps per-browser cart state in memory.
package session

import (
	"sync"

	"github.com/xenking/cart-session/internal/domain/cart"
)

var _ cart.Session = (*Session)(nil)

// Session is the key/value state of one browser session. It is safe for
// concurrent requests; the last write wins.
type Session struct {
	id string

	mu     sync.RWMutex
	values map[string]*cart.Content
}

func newSession(id string) *Session {
	return &Session{
		id:     id,
		values: make(map[string]*cart.Content),
	}
}

// ID returns the session id.
func (s *Session) ID() string {
	return s.id
}

// Get returns the content stored under key. Callers must not mutate it.
func (s *Session) Get(key string) (*cart.Content, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.values[key]
	return c, ok
}

// Set replaces the content stored under key.
func (s *Session) Set(key string, c *cart.Content) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = c
}

// Has reports whether key is set.
func (s *Session) Has(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.values[key]
	return ok
}

// Remove deletes key.
func (s *Session) Remove(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
}

// Keys returns the number of keys set.
func (s *Session) Keys() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.values)
}
