package audit

import (
	"context"
	"sync"
)

// MemoryStore keeps entries in process memory. Used by tests and by the
// DSN-less development mode of cmd/api.
type MemoryStore struct {
	mu      sync.Mutex
	entries []Entry
	failErr error
}

// NewMemoryStore creates an empty in-memory audit store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Append records the entry.
func (s *MemoryStore) Append(ctx context.Context, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return s.failErr
	}
	s.entries = append(s.entries, entry)
	return nil
}

// Entries returns a copy of everything appended so far.
func (s *MemoryStore) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// FailWith makes every subsequent Append return err. Test hook for the
// fail-closed contract.
func (s *MemoryStore) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failErr = err
}
