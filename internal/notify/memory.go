package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	"chepochem.org/internal/ids"
)

// ErrNotFound is returned when a notification does not exist or belongs to
// another user.
var ErrNotFound = errors.New("notify: not found")

// MemoryStore keeps notifications in process memory, newest first per user.
type MemoryStore struct {
	mu     sync.RWMutex
	byUser map[string][]Notification
}

// NewMemoryStore creates an empty in-memory notification store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byUser: make(map[string][]Notification)}
}

// Emit stores the notification.
func (s *MemoryStore) Emit(ctx context.Context, n Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n.ID == "" {
		n.ID = ids.New()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	s.byUser[n.UserID] = append([]Notification{n}, s.byUser[n.UserID]...)
	return nil
}

// ListFor returns the user's notifications, newest first.
func (s *MemoryStore) ListFor(ctx context.Context, userID string) ([]Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := s.byUser[userID]
	out := make([]Notification, len(list))
	copy(out, list)
	return out, nil
}

// MarkRead flags the user's notification as read.
func (s *MemoryStore) MarkRead(ctx context.Context, id, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, n := range s.byUser[userID] {
		if n.ID == id {
			s.byUser[userID][i].IsRead = true
			return nil
		}
	}
	return ErrNotFound
}
