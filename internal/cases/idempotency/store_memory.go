package idempotency

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	rec       Record
	expiresAt time.Time
}

// InMemory is a process-local Store.
type InMemory struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewInMemory() *InMemory {
	return &InMemory{entries: make(map[string]memoryEntry), now: time.Now}
}

func (s *InMemory) Reserve(_ context.Context, key, fingerprint string) (Record, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if e, ok := s.entries[key]; ok && now.Before(e.expiresAt) {
		return e.rec, false, nil
	}
	rec := Record{InProgress: true, Fingerprint: fingerprint}
	s.entries[key] = memoryEntry{rec: rec, expiresAt: now.Add(ProvisionalTTL)}
	return rec, true, nil
}

func (s *InMemory) Complete(_ context.Context, key string, rec Record, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec.InProgress = false
	s.entries[key] = memoryEntry{rec: rec, expiresAt: s.now().Add(ttl)}
	return nil
}

func (s *InMemory) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[key]; ok && e.rec.InProgress {
		delete(s.entries, key)
	}
	return nil
}
