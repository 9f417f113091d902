package notify

import (
	"context"
	"time"
)

// Type enumerates notification kinds delivered to users.
type Type string

const (
	TypeListingApproved Type = "listing_approved"
	TypeListingRejected Type = "listing_rejected"
	TypeNewReview       Type = "new_review"
	TypeNewMessage      Type = "new_message"
	TypeListingExpired  Type = "listing_expired"
	TypeReportResolved  Type = "report_resolved"
)

// Notification is a message addressed to a single user, optionally linked
// to the entity that caused it.
type Notification struct {
	ID                string    `json:"id"`
	UserID            string    `json:"user_id"`
	Type              Type      `json:"type"`
	Title             string    `json:"title"`
	Content           string    `json:"content,omitempty"`
	IsRead            bool      `json:"is_read"`
	RelatedEntityType string    `json:"related_entity_type,omitempty"`
	RelatedEntityID   string    `json:"related_entity_id,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}

// Sink receives notifications. Delivery is best-effort: a failing sink
// must never be conflated with failure of the operation that emitted the
// notification.
type Sink interface {
	Emit(ctx context.Context, n Notification) error
}

// Store is a sink that also retains notifications for later reading.
type Store interface {
	Sink
	ListFor(ctx context.Context, userID string) ([]Notification, error)
	MarkRead(ctx context.Context, id, userID string) error
}

// Multi fans a notification out to several sinks, returning the first
// delivery error after attempting all of them.
type Multi []Sink

// Emit delivers to every sink.
func (m Multi) Emit(ctx context.Context, n Notification) error {
	var first error
	for _, sink := range m {
		if err := sink.Emit(ctx, n); err != nil && first == nil {
			first = err
		}
	}
	return first
}
