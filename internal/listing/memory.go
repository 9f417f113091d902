package listing

import (
	"context"
	"sync"
	"time"

	"chepochem.org/internal/audit"
	"chepochem.org/internal/rbac"
)

// MemoryStore implements Store with in-process concurrency safety. A
// single mutex serializes all writes, which trivially satisfies the
// per-listing serialization contract. Used by tests and the DSN-less
// development mode of cmd/api.
type MemoryStore struct {
	mu       sync.Mutex
	listings map[string]Listing
	records  map[string][]ModerationRecord
	stats    map[string]int
	auditLog audit.Store
}

// NewMemoryStore creates a fresh store. The audit store receives the
// entries carried by mutating operations; when nil an in-memory audit
// store is used.
func NewMemoryStore(auditLog audit.Store) *MemoryStore {
	if auditLog == nil {
		auditLog = audit.NewMemoryStore()
	}
	return &MemoryStore{
		listings: make(map[string]Listing),
		records:  make(map[string][]ModerationRecord),
		stats:    make(map[string]int),
		auditLog: auditLog,
	}
}

func (s *MemoryStore) Create(ctx context.Context, l *Listing, entry audit.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.auditLog.Append(ctx, entry); err != nil {
		return err
	}
	s.listings[l.ID] = *l
	s.stats[l.UserID]++
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.listings[id]
	if !ok {
		return Listing{}, ErrNotFound
	}
	return l, nil
}

func (s *MemoryStore) Update(ctx context.Context, l *Listing, entry audit.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.listings[l.ID]; !ok {
		return ErrNotFound
	}
	if err := s.auditLog.Append(ctx, entry); err != nil {
		return err
	}
	s.listings[l.ID] = *l
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string, entry audit.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.listings[id]
	if !ok {
		return ErrNotFound
	}
	if err := s.auditLog.Append(ctx, entry); err != nil {
		return err
	}
	delete(s.listings, id)
	if s.stats[l.UserID] > 0 {
		s.stats[l.UserID]--
	}
	return nil
}

func (s *MemoryStore) GetStatus(ctx context.Context, id string) (Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.listings[id]
	if !ok {
		return "", ErrNotFound
	}
	return l.Status, nil
}

func (s *MemoryStore) CompareAndSetStatus(ctx context.Context, id string, expected, next Status) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.listings[id]
	if !ok {
		return false, ErrNotFound
	}
	if l.Status != expected {
		return false, nil
	}
	l.Status = next
	l.UpdatedAt = time.Now().UTC()
	s.listings[id] = l
	return true, nil
}

func (s *MemoryStore) SetPublishedAt(ctx context.Context, id string, ts time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.listings[id]
	if !ok {
		return ErrNotFound
	}
	// Set exactly once.
	if l.PublishedAt == nil {
		l.PublishedAt = &ts
		s.listings[id] = l
	}
	return nil
}

func (s *MemoryStore) ApplyTransition(ctx context.Context, tr Transition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.listings[tr.ListingID]
	if !ok {
		return ErrNotFound
	}
	if l.Status != tr.From {
		return ErrStatusConflict
	}
	if err := s.auditLog.Append(ctx, tr.Audit); err != nil {
		return err
	}
	l.Status = tr.To
	if tr.PublishedAt != nil && l.PublishedAt == nil {
		ts := *tr.PublishedAt
		l.PublishedAt = &ts
	}
	l.UpdatedAt = tr.Record.CreatedAt
	s.listings[tr.ListingID] = l
	s.records[tr.ListingID] = append(s.records[tr.ListingID], tr.Record)
	return nil
}

func (s *MemoryStore) ModerationLog(ctx context.Context, listingID string) ([]ModerationRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	records := s.records[listingID]
	out := make([]ModerationRecord, len(records))
	for i, rec := range records {
		out[len(records)-1-i] = rec
	}
	return out, nil
}

// OwnerOf implements rbac.OwnershipLookup for listing resources.
func (s *MemoryStore) OwnerOf(ctx context.Context, resourceType, resourceID string) (string, error) {
	if resourceType != rbac.ResourceTypeListing {
		return "", ErrNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.listings[resourceID]
	if !ok {
		return "", ErrNotFound
	}
	return l.UserID, nil
}

// ListingsCount reports the tracked number of listings per user.
func (s *MemoryStore) ListingsCount(userID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats[userID]
}
