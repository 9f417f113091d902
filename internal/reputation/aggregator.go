package reputation

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrNotFound is returned when no reputation record exists for a user yet.
// Records are created lazily on the first contributing review.
var ErrNotFound = errors.New("reputation: not found")

// Tier is the reputation classification derived from review statistics.
type Tier string

const (
	TierNewbie  Tier = "newbie"
	TierTrusted Tier = "trusted"
	TierExpert  Tier = "expert"
	TierMaster  Tier = "master"
)

// Reputation is the per-user aggregate. Mutated only by the Aggregator and
// always replaced in full, never patched incrementally.
type Reputation struct {
	UserID     string    `json:"user_id"`
	TotalScore int       `json:"total_score"`
	Positive   int       `json:"positive_reviews"`
	Negative   int       `json:"negative_reviews"`
	Neutral    int       `json:"neutral_reviews"`
	Tier       Tier      `json:"tier"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// ReviewSource exposes the ratings of all reviews received by a user.
// Positivity is derived from the rating alone (rating >= 4), so ratings
// are the whole input.
type ReviewSource interface {
	RatingsFor(ctx context.Context, userID string) ([]int, error)
}

// Store persists reputation aggregates.
type Store interface {
	Save(ctx context.Context, rep Reputation) error
	Get(ctx context.Context, userID string) (Reputation, error)
}

// Aggregator recomputes a user's reputation from the full review set.
// Recomputation for the same user is serialized so interleaved
// read-compute-write sequences cannot lose updates.
type Aggregator struct {
	reviews ReviewSource
	store   Store
	now     func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewAggregator constructs an Aggregator.
func NewAggregator(reviews ReviewSource, store Store) (*Aggregator, error) {
	if reviews == nil {
		return nil, errors.New("reputation: review source is required")
	}
	if store == nil {
		return nil, errors.New("reputation: store is required")
	}
	return &Aggregator{
		reviews: reviews,
		store:   store,
		now:     time.Now,
		locks:   make(map[string]*sync.Mutex),
	}, nil
}

// Recompute rebuilds the user's reputation from every received review and
// atomically replaces the stored aggregate. It is a pure function of the
// review set: recomputing with no new reviews yields identical values.
func (a *Aggregator) Recompute(ctx context.Context, userID string) (Reputation, error) {
	lock := a.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	ratings, err := a.reviews.RatingsFor(ctx, userID)
	if err != nil {
		return Reputation{}, err
	}

	rep := Reputation{UserID: userID, UpdatedAt: a.now().UTC()}
	for _, rating := range ratings {
		rep.TotalScore += rating
		switch {
		case rating >= 4:
			rep.Positive++
		case rating <= 2:
			rep.Negative++
		default:
			rep.Neutral++
		}
	}
	rep.Tier = TierFor(rep.Positive, len(ratings))

	if err := a.store.Save(ctx, rep); err != nil {
		return Reputation{}, err
	}
	return rep, nil
}

// Get returns the stored aggregate, or ErrNotFound when the user has never
// received a review.
func (a *Aggregator) Get(ctx context.Context, userID string) (Reputation, error) {
	return a.store.Get(ctx, userID)
}

// TierFor evaluates the tier rules in order, first match wins. A single
// positive review yields master (1/1 = 100%); no minimum sample size is
// enforced.
func TierFor(positive, total int) Tier {
	switch {
	case total == 0:
		return TierNewbie
	case float64(positive) >= float64(total)*0.8:
		return TierMaster
	case float64(positive) >= float64(total)*0.6:
		return TierExpert
	default:
		return TierTrusted
	}
}

func (a *Aggregator) userLock(userID string) *sync.Mutex {
	a.mu.Lock()
	defer a.mu.Unlock()
	lock, ok := a.locks[userID]
	if !ok {
		lock = &sync.Mutex{}
		a.locks[userID] = lock
	}
	return lock
}
