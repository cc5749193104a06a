package cache

import (
	"bytes"
	"context"
	"sync"
	"time"
)

// MemoryStore keeps entries in process memory. Hard-expired entries are
// dropped lazily on read.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]Entry
	now     func() time.Time
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]Entry), now: time.Now}
}

func (s *MemoryStore) Get(_ context.Context, key string) (Entry, bool, error) {
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return Entry{}, false, nil
	}
	if e.Expired(s.now()) {
		s.mu.Lock()
		if cur, still := s.entries[key]; still && cur.Expired(s.now()) {
			delete(s.entries, key)
		}
		s.mu.Unlock()
		return Entry{}, false, nil
	}
	e.Value = bytes.Clone(e.Value)
	return e, true, nil
}

func (s *MemoryStore) Set(_ context.Context, key string, e Entry) error {
	e.Value = bytes.Clone(e.Value)
	s.mu.Lock()
	s.entries[key] = e
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) DeleteMatching(_ context.Context, pattern string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for key := range s.entries {
		if globMatch(pattern, key) {
			delete(s.entries, key)
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	s.entries = make(map[string]Entry)
	s.mu.Unlock()
	return nil
}

// Len returns the number of stored entries, expired ones included.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
