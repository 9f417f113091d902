package review

import (
	"context"
	"sort"
	"sync"

	"chepochem.org/internal/audit"
)

// MemoryStore is the in-memory Store used in tests and the storage-free
// run mode. Writes append their audit entry first so a failing audit sink
// blocks the mutation, mirroring the transactional Postgres store.
type MemoryStore struct {
	mu       sync.Mutex
	reviews  map[string]Review
	auditLog audit.Store
}

func NewMemoryStore(auditLog audit.Store) *MemoryStore {
	return &MemoryStore{
		reviews:  make(map[string]Review),
		auditLog: auditLog,
	}
}

func (s *MemoryStore) Create(ctx context.Context, r *Review, entry audit.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.reviews {
		if existing.ReviewerID == r.ReviewerID && existing.ReviewedID == r.ReviewedID {
			return ErrDuplicate
		}
	}
	if err := s.auditLog.Append(ctx, entry); err != nil {
		return err
	}
	s.reviews[r.ID] = *r
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (Review, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reviews[id]
	if !ok {
		return Review{}, ErrNotFound
	}
	return r, nil
}

func (s *MemoryStore) Update(ctx context.Context, r *Review, entry audit.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.reviews[r.ID]; !ok {
		return ErrNotFound
	}
	if err := s.auditLog.Append(ctx, entry); err != nil {
		return err
	}
	s.reviews[r.ID] = *r
	return nil
}

func (s *MemoryStore) Exists(ctx context.Context, reviewerID, reviewedID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.reviews {
		if r.ReviewerID == reviewerID && r.ReviewedID == reviewedID {
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryStore) ReviewsFor(ctx context.Context, reviewedID string) ([]Review, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Review
	for _, r := range s.reviews {
		if r.ReviewedID == reviewedID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) RatingsFor(ctx context.Context, userID string) ([]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []int
	for _, r := range s.reviews {
		if r.ReviewedID == userID {
			out = append(out, r.Rating)
		}
	}
	return out, nil
}
