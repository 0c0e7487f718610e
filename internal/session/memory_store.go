package session

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	id      string
	expires time.Time
}

// sweepInterval is the minimum time between full scans for expired entries.
const sweepInterval = time.Minute

// MemoryStore is an in-process Store for development and tests. Expired
// entries are dropped on access, and inserts sweep the whole map at most
// once per sweepInterval.
type MemoryStore struct {
	mu        sync.Mutex
	entries   map[string]memoryEntry
	now       func() time.Time
	lastSweep time.Time
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

func (s *MemoryStore) lookup(key string) (memoryEntry, bool) {
	e, ok := s.entries[key]
	if !ok {
		return memoryEntry{}, false
	}
	if !s.now().Before(e.expires) {
		delete(s.entries, key)
		return memoryEntry{}, false
	}
	return e, true
}

// sweep deletes every expired entry. Callers hold mu.
func (s *MemoryStore) sweep() {
	now := s.now()
	if now.Sub(s.lastSweep) < sweepInterval {
		return
	}
	s.lastSweep = now

	for key, e := range s.entries {
		if !now.Before(e.expires) {
			delete(s.entries, key)
		}
	}
}

// Len returns the number of stored entries, expired or not.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Get returns the session id for key.
func (s *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.lookup(key)
	return e.id, ok, nil
}

// SetIfAbsent stores sessionID unless key already holds a live session.
func (s *MemoryStore) SetIfAbsent(_ context.Context, key, sessionID string, ttl time.Duration) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.lookup(key); ok {
		return e.id, nil
	}
	s.sweep()
	s.entries[key] = memoryEntry{id: sessionID, expires: s.now().Add(ttl)}
	return sessionID, nil
}

// Touch extends the expiry of key if it is live.
func (s *MemoryStore) Touch(_ context.Context, key string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.lookup(key); ok {
		e.expires = s.now().Add(ttl)
		s.entries[key] = e
	}
	return nil
}
