package listing

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
)

const defaultCurrency = "RUB"

// Service implements the owner-facing listing operations: create, edit,
// delete and the external lifecycle transitions (sold, expired). Every
// mutation is permission-checked and audited.
type Service struct {
	engine   *rbac.Engine
	store    Store
	trail    *audit.Trail
	notifier notify.Sink
	now      func() time.Time
	newID    func() string
}

// NewService constructs a Service. The notifier may be nil; notifications
// are then skipped entirely.
func NewService(engine *rbac.Engine, store Store, trail *audit.Trail, notifier notify.Sink) (*Service, error) {
	if engine == nil {
		return nil, errors.New("listing: authorization engine is required")
	}
	if store == nil {
		return nil, errors.New("listing: store is required")
	}
	if trail == nil {
		return nil, errors.New("listing: audit trail is required")
	}
	return &Service{
		engine:   engine,
		store:    store,
		trail:    trail,
		notifier: notifier,
		now:      time.Now,
		newID:    ids.New,
	}, nil
}

// CreateInput carries the owner-supplied listing fields.
type CreateInput struct {
	CategoryID   string
	Title        string
	Description  string
	Price        int64
	Currency     string
	Condition    Condition
	Location     string
	IsNegotiable *bool
	IsUrgent     bool
}

// Create validates the input and stores a new listing in the pending
// state; every new listing enters moderation before becoming visible.
func (s *Service) Create(ctx context.Context, actor rbac.Actor, in CreateInput) (Listing, error) {
	return s.create(ctx, actor, in, StatusPending)
}

// SaveDraft stores a new listing as a draft. Drafts enter moderation only
// when the owner later edits and submits them.
func (s *Service) SaveDraft(ctx context.Context, actor rbac.Actor, in CreateInput) (Listing, error) {
	return s.create(ctx, actor, in, StatusDraft)
}

func (s *Service) create(ctx context.Context, actor rbac.Actor, in CreateInput, status Status) (Listing, error) {
	if err := s.engine.Check(ctx, actor, rbac.CapCreateListing, "", ""); err != nil {
		return Listing{}, err
	}
	if err := validateCreate(&in); err != nil {
		return Listing{}, err
	}

	now := s.now().UTC()
	l := Listing{
		ID:           s.newID(),
		UserID:       actor.ID,
		CategoryID:   in.CategoryID,
		Title:        in.Title,
		Description:  in.Description,
		Price:        in.Price,
		Currency:     in.Currency,
		Condition:    in.Condition,
		Location:     in.Location,
		IsNegotiable: in.IsNegotiable == nil || *in.IsNegotiable,
		IsUrgent:     in.IsUrgent,
		Status:       status,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	entry := audit.Entry{
		ID:         s.newID(),
		ActorID:    actor.ID,
		Action:     "create_listing",
		EntityType: rbac.ResourceTypeListing,
		EntityID:   l.ID,
		Detail:     map[string]any{"title": l.Title, "status": string(status)},
		CreatedAt:  now,
	}
	if err := s.store.Create(ctx, &l, entry); err != nil {
		return Listing{}, err
	}
	return l, nil
}

// UpdateInput carries optional field changes; nil fields stay untouched.
type UpdateInput struct {
	Title        *string
	Description  *string
	Price        *int64
	Location     *string
	IsNegotiable *bool
	IsUrgent     *bool
}

// UpdateOwn applies the owner's edit and sends the listing back to
// moderation: an edited listing always re-enters the pending state.
func (s *Service) UpdateOwn(ctx context.Context, actor rbac.Actor, listingID string, upd UpdateInput) (Listing, error) {
	if err := s.engine.Check(ctx, actor, rbac.CapEditOwnListing, rbac.ResourceTypeListing, listingID); err != nil {
		return Listing{}, err
	}
	l, err := s.store.Get(ctx, listingID)
	if err != nil {
		return Listing{}, err
	}

	original := map[string]any{
		"title":    l.Title,
		"price":    l.Price,
		"location": l.Location,
	}

	if upd.Title != nil {
		title := strings.TrimSpace(*upd.Title)
		if title == "" {
			return Listing{}, fmt.Errorf("%w: title must not be empty", ErrInvalidInput)
		}
		l.Title = title
	}
	if upd.Description != nil {
		desc := strings.TrimSpace(*upd.Description)
		if desc == "" {
			return Listing{}, fmt.Errorf("%w: description must not be empty", ErrInvalidInput)
		}
		l.Description = desc
	}
	if upd.Price != nil {
		if *upd.Price <= 0 {
			return Listing{}, fmt.Errorf("%w: price must be greater than zero", ErrInvalidInput)
		}
		l.Price = *upd.Price
	}
	if upd.Location != nil {
		location := strings.TrimSpace(*upd.Location)
		if location == "" {
			return Listing{}, fmt.Errorf("%w: location must not be empty", ErrInvalidInput)
		}
		l.Location = location
	}
	if upd.IsNegotiable != nil {
		l.IsNegotiable = *upd.IsNegotiable
	}
	if upd.IsUrgent != nil {
		l.IsUrgent = *upd.IsUrgent
	}

	now := s.now().UTC()
	l.Status = StatusPending
	l.UpdatedAt = now

	entry := audit.Entry{
		ID:         s.newID(),
		ActorID:    actor.ID,
		Action:     "update_listing",
		EntityType: rbac.ResourceTypeListing,
		EntityID:   l.ID,
		Detail: map[string]any{
			"original": original,
			"new": map[string]any{
				"title":    l.Title,
				"price":    l.Price,
				"location": l.Location,
			},
		},
		CreatedAt: now,
	}
	if err := s.store.Update(ctx, &l, entry); err != nil {
		return Listing{}, err
	}
	return l, nil
}

// DeleteOwn removes the listing. Owners delete their own listings;
// moderators and admins may remove listings they do not own.
func (s *Service) DeleteOwn(ctx context.Context, actor rbac.Actor, listingID string) error {
	if err := s.engine.Check(ctx, actor, rbac.CapDeleteOwnListing, rbac.ResourceTypeListing, listingID); err != nil {
		var denied *rbac.DeniedError
		if !errors.As(err, &denied) {
			return err
		}
		// Moderation override path for non-owners.
		if modErr := s.engine.Check(ctx, actor, rbac.CapModerateListings, rbac.ResourceTypeListing, listingID); modErr != nil {
			return err
		}
	}

	l, err := s.store.Get(ctx, listingID)
	if err != nil {
		return err
	}
	entry := audit.Entry{
		ID:         s.newID(),
		ActorID:    actor.ID,
		Action:     "delete_listing",
		EntityType: rbac.ResourceTypeListing,
		EntityID:   listingID,
		Detail:     map[string]any{"title": l.Title},
		CreatedAt:  s.now().UTC(),
	}
	return s.store.Delete(ctx, listingID, entry)
}

// Get returns the listing by id.
func (s *Service) Get(ctx context.Context, id string) (Listing, error) {
	return s.store.Get(ctx, id)
}

// MarkSold lets the owner close an active listing as sold.
func (s *Service) MarkSold(ctx context.Context, actor rbac.Actor, listingID string) error {
	if err := s.engine.Check(ctx, actor, rbac.CapEditOwnListing, rbac.ResourceTypeListing, listingID); err != nil {
		return err
	}
	ok, err := s.store.CompareAndSetStatus(ctx, listingID, StatusActive, StatusSold)
	if err != nil {
		return err
	}
	if !ok {
		status, sErr := s.store.GetStatus(ctx, listingID)
		if sErr != nil {
			return sErr
		}
		return &InvalidTransitionError{From: status, Attempted: "mark_sold"}
	}
	return s.trail.Append(ctx, audit.Entry{
		ActorID:    actor.ID,
		Action:     "mark_listing_sold",
		EntityType: rbac.ResourceTypeListing,
		EntityID:   listingID,
	})
}

// MarkExpired is the system sweep path closing an active listing whose
// lifetime ran out. Calling it on a listing in any other state is a no-op.
func (s *Service) MarkExpired(ctx context.Context, listingID string) error {
	l, err := s.store.Get(ctx, listingID)
	if err != nil {
		return err
	}
	ok, err := s.store.CompareAndSetStatus(ctx, listingID, StatusActive, StatusExpired)
	if err != nil || !ok {
		return err
	}
	s.trail.TryAppend(ctx, audit.Entry{
		Action:     "expire_listing",
		EntityType: rbac.ResourceTypeListing,
		EntityID:   listingID,
	})
	emitBestEffort(ctx, s.notifier, notify.Notification{
		UserID:            l.UserID,
		Type:              notify.TypeListingExpired,
		Title:             "Объявление истекло",
		Content:           fmt.Sprintf("Срок размещения объявления \"%s\" истёк.", l.Title),
		RelatedEntityType: rbac.ResourceTypeListing,
		RelatedEntityID:   l.ID,
	})
	return nil
}

func validateCreate(in *CreateInput) error {
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return fmt.Errorf("%w: title must not be empty", ErrInvalidInput)
	}
	in.Description = strings.TrimSpace(in.Description)
	if in.Description == "" {
		return fmt.Errorf("%w: description must not be empty", ErrInvalidInput)
	}
	if in.Price <= 0 {
		return fmt.Errorf("%w: price must be greater than zero", ErrInvalidInput)
	}
	in.Location = strings.TrimSpace(in.Location)
	if in.Location == "" {
		return fmt.Errorf("%w: location is required", ErrInvalidInput)
	}
	if strings.TrimSpace(in.CategoryID) == "" {
		return fmt.Errorf("%w: category is required", ErrInvalidInput)
	}
	if in.Currency = strings.ToUpper(strings.TrimSpace(in.Currency)); in.Currency == "" {
		in.Currency = defaultCurrency
	}
	switch in.Condition {
	case "":
		in.Condition = ConditionUsed
	case ConditionNew, ConditionUsed, ConditionBroken:
	default:
		return fmt.Errorf("%w: unsupported condition %s", ErrInvalidInput, in.Condition)
	}
	return nil
}

// emitBestEffort delivers the notification without failing the caller.
// Delivery problems are counted and logged.
func emitBestEffort(ctx context.Context, sink notify.Sink, n notify.Notification) {
	if sink == nil {
		return
	}
	if err := sink.Emit(ctx, n); err != nil {
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
