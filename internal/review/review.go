package review

import (
	"context"
	"errors"
	"time"

	"chepochem.org/internal/audit"
)

var (
	ErrNotFound      = errors.New("review: not found")
	ErrInvalidRating = errors.New("review: rating must be between 1 and 5")
	ErrInvalidInput  = errors.New("review: invalid input")
	ErrSelfReview    = errors.New("review: users cannot review themselves")
	ErrDuplicate     = errors.New("review: reviewer already reviewed this user")
)

// Review is one user's rating of another. The (reviewer, reviewed) pair is
// directed and unique: A reviewing B does not stop B from reviewing A, but
// A can rate B only once.
type Review struct {
	ID         string    `json:"id"`
	ReviewerID string    `json:"reviewer_id"`
	ReviewedID string    `json:"reviewed_id"`
	ListingID  string    `json:"listing_id,omitempty"`
	Rating     int       `json:"rating"`
	Comment    string    `json:"comment"`
	IsPositive bool      `json:"is_positive"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Store persists reviews. Mutations carry their audit entry so, as with
// listings, evidence and change commit together.
type Store interface {
	Create(ctx context.Context, r *Review, entry audit.Entry) error
	Get(ctx context.Context, id string) (Review, error)
	Update(ctx context.Context, r *Review, entry audit.Entry) error
	Exists(ctx context.Context, reviewerID, reviewedID string) (bool, error)
	// ReviewsFor returns reviews about a user, newest first.
	ReviewsFor(ctx context.Context, reviewedID string) ([]Review, error)
	// RatingsFor returns the raw rating values about a user, in no
	// particular order. It is the feed for reputation recomputation.
	RatingsFor(ctx context.Context, userID string) ([]int, error)
}
