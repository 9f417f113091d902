package listing

import (
	"context"
	"time"

	"chepochem.org/internal/audit"
)

// Transition is a moderation decision applied atomically: status change,
// publish timestamp, moderation record and audit entry all commit together
// or not at all.
type Transition struct {
	ListingID string
	From      Status
	To        Status

	// PublishedAt is non-nil only when this transition first activates the
	// listing; the store must not overwrite an existing publish time.
	PublishedAt *time.Time

	Record ModerationRecord
	Audit  audit.Entry
}

// Store persists listings. Mutating operations carry the audit entry that
// documents them, so evidence and mutation commit as one unit and a
// failing audit write fails the operation (fail closed).
//
// Implementations must serialize writes against the same listing id:
// CompareAndSetStatus and ApplyTransition are atomic with respect to other
// writers, so two concurrent moderation decisions cannot both observe the
// source state.
type Store interface {
	Create(ctx context.Context, l *Listing, entry audit.Entry) error
	Get(ctx context.Context, id string) (Listing, error)
	Update(ctx context.Context, l *Listing, entry audit.Entry) error
	Delete(ctx context.Context, id string, entry audit.Entry) error

	GetStatus(ctx context.Context, id string) (Status, error)
	CompareAndSetStatus(ctx context.Context, id string, expected, next Status) (bool, error)
	SetPublishedAt(ctx context.Context, id string, ts time.Time) error

	// ApplyTransition returns ErrStatusConflict when the listing is no
	// longer in tr.From.
	ApplyTransition(ctx context.Context, tr Transition) error

	// ModerationLog returns decisions for the listing, newest first.
	ModerationLog(ctx context.Context, listingID string) ([]ModerationRecord, error)
}
