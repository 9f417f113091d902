package review

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"chepochem.org/internal/audit"
	"chepochem.org/internal/ids"
	"chepochem.org/internal/notify"
	"chepochem.org/internal/obs"
	"chepochem.org/internal/rbac"
	"chepochem.org/internal/reputation"
)

const resourceTypeReview = "review"

// positiveThreshold: ratings of 4 and 5 count as positive, 1 and 2 as
// negative, 3 as neutral.
const positiveThreshold = 4

// Service implements review creation and editing. Every accepted review
// triggers a full recomputation of the reviewed user's reputation.
type Service struct {
	engine     *rbac.Engine
	store      Store
	reputation *reputation.Aggregator
	notifier   notify.Sink
	now        func() time.Time
	newID      func() string
}

// NewService constructs a Service. The notifier may be nil.
func NewService(engine *rbac.Engine, store Store, agg *reputation.Aggregator, notifier notify.Sink) (*Service, error) {
	if engine == nil {
		return nil, errors.New("review: authorization engine is required")
	}
	if store == nil {
		return nil, errors.New("review: store is required")
	}
	if agg == nil {
		return nil, errors.New("review: reputation aggregator is required")
	}
	return &Service{
		engine:     engine,
		store:      store,
		reputation: agg,
		notifier:   notifier,
		now:        time.Now,
		newID:      ids.New,
	}, nil
}

// CreateInput carries the fields of a new review.
type CreateInput struct {
	ReviewedID string
	ListingID  string
	Rating     int
	Comment    string
}

// Create validates and stores a review, recomputes the reviewed user's
// reputation and notifies them.
func (s *Service) Create(ctx context.Context, actor rbac.Actor, in CreateInput) (Review, error) {
	if err := s.engine.Check(ctx, actor, rbac.CapLeaveReview, "", ""); err != nil {
		return Review{}, err
	}
	if in.Rating < 1 || in.Rating > 5 {
		return Review{}, ErrInvalidRating
	}
	in.Comment = strings.TrimSpace(in.Comment)
	if in.Comment == "" {
		return Review{}, fmt.Errorf("%w: comment must not be empty", ErrInvalidInput)
	}
	if in.ReviewedID == "" {
		return Review{}, fmt.Errorf("%w: reviewed user is required", ErrInvalidInput)
	}
	if in.ReviewedID == actor.ID {
		return Review{}, ErrSelfReview
	}
	exists, err := s.store.Exists(ctx, actor.ID, in.ReviewedID)
	if err != nil {
		return Review{}, err
	}
	if exists {
		return Review{}, ErrDuplicate
	}

	now := s.now().UTC()
	r := Review{
		ID:         s.newID(),
		ReviewerID: actor.ID,
		ReviewedID: in.ReviewedID,
		ListingID:  in.ListingID,
		Rating:     in.Rating,
		Comment:    in.Comment,
		IsPositive: in.Rating >= positiveThreshold,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	entry := audit.Entry{
		ID:         s.newID(),
		ActorID:    actor.ID,
		Action:     "create_review",
		EntityType: resourceTypeReview,
		EntityID:   r.ID,
		Detail:     map[string]any{"reviewed_id": r.ReviewedID, "rating": r.Rating},
		CreatedAt:  now,
	}
	if err := s.store.Create(ctx, &r, entry); err != nil {
		return Review{}, err
	}
	if _, err := s.reputation.Recompute(ctx, r.ReviewedID); err != nil {
		return Review{}, fmt.Errorf("review: recompute reputation: %w", err)
	}
	s.notifyReviewed(ctx, r)
	return r, nil
}

// UpdateInput carries optional review changes; nil fields stay untouched.
type UpdateInput struct {
	Rating  *int
	Comment *string
}

// UpdateOwn lets the reviewer change their own review. Positivity is
// re-derived from the new rating and reputation is recomputed.
func (s *Service) UpdateOwn(ctx context.Context, actor rbac.Actor, reviewID string, upd UpdateInput) (Review, error) {
	if err := s.engine.Check(ctx, actor, rbac.CapLeaveReview, "", ""); err != nil {
		return Review{}, err
	}
	r, err := s.store.Get(ctx, reviewID)
	if err != nil {
		return Review{}, err
	}
	if r.ReviewerID != actor.ID {
		return Review{}, &rbac.DeniedError{Capability: rbac.CapLeaveReview, Reason: rbac.ReasonInsufficientPermission}
	}

	before := r.Rating
	if upd.Rating != nil {
		if *upd.Rating < 1 || *upd.Rating > 5 {
			return Review{}, ErrInvalidRating
		}
		r.Rating = *upd.Rating
	}
	if upd.Comment != nil {
		comment := strings.TrimSpace(*upd.Comment)
		if comment == "" {
			return Review{}, fmt.Errorf("%w: comment must not be empty", ErrInvalidInput)
		}
		r.Comment = comment
	}
	r.IsPositive = r.Rating >= positiveThreshold
	r.UpdatedAt = s.now().UTC()

	entry := audit.Entry{
		ID:         s.newID(),
		ActorID:    actor.ID,
		Action:     "update_review",
		EntityType: resourceTypeReview,
		EntityID:   r.ID,
		Detail:     map[string]any{"rating_before": before, "rating_after": r.Rating},
		CreatedAt:  r.UpdatedAt,
	}
	if err := s.store.Update(ctx, &r, entry); err != nil {
		return Review{}, err
	}
	if _, err := s.reputation.Recompute(ctx, r.ReviewedID); err != nil {
		return Review{}, fmt.Errorf("review: recompute reputation: %w", err)
	}
	return r, nil
}

// ListFor returns reviews about a user, newest first.
func (s *Service) ListFor(ctx context.Context, reviewedID string) ([]Review, error) {
	return s.store.ReviewsFor(ctx, reviewedID)
}

func (s *Service) notifyReviewed(ctx context.Context, r Review) {
	if s.notifier == nil {
		return
	}
	n := notify.Notification{
		UserID:            r.ReviewedID,
		Type:              notify.TypeNewReview,
		Title:             "Новый отзыв",
		Content:           fmt.Sprintf("Вам оставили отзыв с оценкой %d из 5.", r.Rating),
		RelatedEntityType: resourceTypeReview,
		RelatedEntityID:   r.ID,
	}
	if err := s.notifier.Emit(ctx, n); err != nil {
		obs.CountNotificationFailure()
		obs.LogEvent(map[string]any{
			"level":   "error",
			"msg":     "notification delivery failed",
			"type":    string(n.Type),
			"user_id": n.UserID,
			"error":   err.Error(),
		})
	}
}
