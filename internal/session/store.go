package session

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Config controls the in-memory session store.
type Config struct {
	// Capacity is the maximum number of live sessions. The least recently
	// used session is evicted first.
	Capacity int
	// TTL is the idle time after which a session expires.
	TTL time.Duration
}

// Store holds sessions by id in a bounded LRU with idle expiry.
type Store struct {
	mu  sync.Mutex
	lru *expirable.LRU[string, *Session]
}

// NewStore returns an empty Store.
func NewStore(cfg Config) *Store {
	if cfg.Capacity <= 0 {
		cfg.Capacity = 10000
	}
	return &Store{
		lru: expirable.NewLRU[string, *Session](cfg.Capacity, nil, cfg.TTL),
	}
}

// Load returns the session for id, creating it when absent or expired. Each
// load restarts the idle timer.
func (s *Store) Load(id string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.lru.Get(id)
	if !ok {
		sess = newSession(id)
	}
	s.lru.Add(id, sess)
	return sess
}

// Peek returns the session for id without creating it or touching its
// idle timer.
func (s *Store) Peek(id string) (*Session, bool) {
	return s.lru.Peek(id)
}

// Drop discards the session for id.
func (s *Store) Drop(id string) {
	s.lru.Remove(id)
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	return s.lru.Len()
}
