package reputation

import (
	"context"
	"sync"
)

// MemoryStore keeps reputation aggregates in process memory.
type MemoryStore struct {
	mu   sync.RWMutex
	reps map[string]Reputation
}

// NewMemoryStore creates an empty in-memory reputation store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{reps: make(map[string]Reputation)}
}

// Save replaces the user's aggregate.
func (s *MemoryStore) Save(ctx context.Context, rep Reputation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reps[rep.UserID] = rep
	return nil
}

// Get returns the user's aggregate.
func (s *MemoryStore) Get(ctx context.Context, userID string) (Reputation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rep, ok := s.reps[userID]
	if !ok {
		return Reputation{}, ErrNotFound
	}
	return rep, nil
}
