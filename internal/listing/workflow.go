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

const defaultRejectReason = "Не указана"

// transitionEdges fixes the source and target state for every moderation
// action. Anything else is an invalid transition.
var transitionEdges = map[ModerationAction]struct{ from, to Status }{
	ActionApprove: {StatusPending, StatusActive},
	ActionReject:  {StatusPending, StatusRejected},
	ActionPause:   {StatusActive, StatusPaused},
	ActionUnpause: {StatusPaused, StatusActive},
}

// Workflow drives listing moderation: the status change, the moderation
// record and the audit entry are committed as one unit, and the owner is
// notified afterwards.
type Workflow struct {
	engine   *rbac.Engine
	store    Store
	notifier notify.Sink
	now      func() time.Time
	newID    func() string
}

// NewWorkflow constructs a Workflow. The notifier may be nil.
func NewWorkflow(engine *rbac.Engine, store Store, notifier notify.Sink) (*Workflow, error) {
	if engine == nil {
		return nil, errors.New("listing: authorization engine is required")
	}
	if store == nil {
		return nil, errors.New("listing: store is required")
	}
	return &Workflow{
		engine:   engine,
		store:    store,
		notifier: notifier,
		now:      time.Now,
		newID:    ids.New,
	}, nil
}

// Approve publishes a pending listing. The first approval stamps the
// publication time; re-approving after later edits keeps the original one.
func (w *Workflow) Approve(ctx context.Context, actor rbac.Actor, listingID string) (ModerationRecord, error) {
	return w.apply(ctx, actor, listingID, ActionApprove, "")
}

// Reject declines a pending listing with an optional reason.
func (w *Workflow) Reject(ctx context.Context, actor rbac.Actor, listingID, reason string) (ModerationRecord, error) {
	return w.apply(ctx, actor, listingID, ActionReject, reason)
}

// Pause temporarily hides an active listing.
func (w *Workflow) Pause(ctx context.Context, actor rbac.Actor, listingID, reason string) (ModerationRecord, error) {
	return w.apply(ctx, actor, listingID, ActionPause, reason)
}

// Unpause returns a paused listing to the active state.
func (w *Workflow) Unpause(ctx context.Context, actor rbac.Actor, listingID string) (ModerationRecord, error) {
	return w.apply(ctx, actor, listingID, ActionUnpause, "")
}

func (w *Workflow) apply(ctx context.Context, actor rbac.Actor, listingID string, action ModerationAction, reason string) (ModerationRecord, error) {
	if err := w.engine.Check(ctx, actor, rbac.CapModerateListings, rbac.ResourceTypeListing, listingID); err != nil {
		return ModerationRecord{}, err
	}
	l, err := w.store.Get(ctx, listingID)
	if err != nil {
		return ModerationRecord{}, err
	}
	edge := transitionEdges[action]
	if l.Status != edge.from {
		return ModerationRecord{}, &InvalidTransitionError{From: l.Status, Attempted: action}
	}

	now := w.now().UTC()
	rec := ModerationRecord{
		ID:          w.newID(),
		ListingID:   listingID,
		ModeratorID: actor.ID,
		Action:      action,
		Reason:      strings.TrimSpace(reason),
		CreatedAt:   now,
	}
	tr := Transition{
		ListingID: listingID,
		From:      edge.from,
		To:        edge.to,
		Record:    rec,
		Audit: audit.Entry{
			ID:         w.newID(),
			ActorID:    actor.ID,
			Action:     "moderate_listing",
			EntityType: rbac.ResourceTypeListing,
			EntityID:   listingID,
			Detail:     map[string]any{"action": string(action), "reason": rec.Reason},
			CreatedAt:  now,
		},
	}
	if action == ActionApprove && l.PublishedAt == nil {
		tr.PublishedAt = &now
	}

	if err := w.store.ApplyTransition(ctx, tr); err != nil {
		if errors.Is(err, ErrStatusConflict) {
			// Lost the race; report the state the listing really is in.
			status, sErr := w.store.GetStatus(ctx, listingID)
			if sErr != nil {
				return ModerationRecord{}, sErr
			}
			return ModerationRecord{}, &InvalidTransitionError{From: status, Attempted: action}
		}
		return ModerationRecord{}, err
	}
	obs.CountModerationDecision(string(action))

	switch action {
	case ActionApprove:
		emitBestEffort(ctx, w.notifier, notify.Notification{
			UserID:            l.UserID,
			Type:              notify.TypeListingApproved,
			Title:             "Объявление одобрено",
			Content:           fmt.Sprintf("Ваше объявление \"%s\" было одобрено и опубликовано.", l.Title),
			RelatedEntityType: rbac.ResourceTypeListing,
			RelatedEntityID:   l.ID,
		})
	case ActionReject:
		cause := rec.Reason
		if cause == "" {
			cause = defaultRejectReason
		}
		emitBestEffort(ctx, w.notifier, notify.Notification{
			UserID:            l.UserID,
			Type:              notify.TypeListingRejected,
			Title:             "Объявление отклонено",
			Content:           fmt.Sprintf("Ваше объявление \"%s\" было отклонено. Причина: %s", l.Title, cause),
			RelatedEntityType: rbac.ResourceTypeListing,
			RelatedEntityID:   l.ID,
		})
	}
	return rec, nil
}

// Log returns the moderation history of a listing, newest first. Reading
// the log is itself a moderator capability.
func (w *Workflow) Log(ctx context.Context, actor rbac.Actor, listingID string) ([]ModerationRecord, error) {
	if err := w.engine.Check(ctx, actor, rbac.CapViewModerationLog, "", ""); err != nil {
		return nil, err
	}
	return w.store.ModerationLog(ctx, listingID)
}
