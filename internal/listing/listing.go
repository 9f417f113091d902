package listing

import "time"

// Status is the moderation lifecycle state of a listing.
type Status string

const (
	StatusDraft    Status = "draft"
	StatusPending  Status = "pending"
	StatusActive   Status = "active"
	StatusPaused   Status = "paused"
	StatusSold     Status = "sold"
	StatusRejected Status = "rejected"
	StatusExpired  Status = "expired"
)

// Condition describes the physical state of the advertised item.
type Condition string

const (
	ConditionNew    Condition = "new"
	ConditionUsed   Condition = "used"
	ConditionBroken Condition = "broken"
)

// Listing is a classified advertisement. PublishedAt is set exactly once,
// the first time the listing enters the active state, and never cleared.
type Listing struct {
	ID             string     `json:"id"`
	UserID         string     `json:"user_id"`
	CategoryID     string     `json:"category_id"`
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	Price          int64      `json:"price"` // minor currency units
	Currency       string     `json:"currency"`
	Condition      Condition  `json:"condition"`
	Location       string     `json:"location"`
	IsNegotiable   bool       `json:"is_negotiable"`
	IsUrgent       bool       `json:"is_urgent"`
	Status         Status     `json:"status"`
	ViewsCount     int        `json:"views_count"`
	FavoritesCount int        `json:"favorites_count"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	PublishedAt    *time.Time `json:"published_at,omitempty"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
}

// ModerationAction enumerates moderator decisions.
type ModerationAction string

const (
	ActionApprove ModerationAction = "approve"
	ActionReject  ModerationAction = "reject"
	ActionPause   ModerationAction = "pause"
	ActionUnpause ModerationAction = "unpause"
)

// ModerationRecord is the append-only trace of a single moderation
// decision. Records are never edited or deleted.
type ModerationRecord struct {
	ID          string           `json:"id"`
	ListingID   string           `json:"listing_id"`
	ModeratorID string           `json:"moderator_id"`
	Action      ModerationAction `json:"action"`
	Reason      string           `json:"reason,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
}
