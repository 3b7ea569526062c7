package ratelimit

import (
	"sync"
	"time"
)

type windowEntry struct {
	count   int
	resetAt time.Time
}

// MemoryStore is the in-process fixed-window counter. Suitable for a
// single-instance deployment; swap in the Redis store for multi-instance.
type MemoryStore struct {
	mu  sync.Mutex
	m   map[string]*windowEntry
	now func() time.Time
}

// NewMemoryStore returns an empty in-process store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{m: make(map[string]*windowEntry), now: time.Now}
}

// Incr implements Store. The window never resets early.
func (s *MemoryStore) Incr(key string, window time.Duration) (int, time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	e, ok := s.m[key]
	if !ok || !now.Before(e.resetAt) {
		e = &windowEntry{resetAt: now.Add(window)}
		s.m[key] = e
	}
	e.count++
	return e.count, e.resetAt.Sub(now), nil
}

// Sweep drops expired windows. Called opportunistically by long-running
// processes to bound memory.
func (s *MemoryStore) Sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for k, e := range s.m {
		if !now.Before(e.resetAt) {
			delete(s.m, k)
		}
	}
}
