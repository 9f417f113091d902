package audit

import (
	"context"
	"errors"
	"strings"
	"time"

	"chepochem.org/internal/ids"
	"chepochem.org/internal/obs"
)

// Entry is an immutable record of a security- or state-relevant action.
// ActorID is empty for anonymous actors.
type Entry struct {
	ID         string         `json:"id"`
	ActorID    string         `json:"actor_id,omitempty"`
	Action     string         `json:"action"`
	EntityType string         `json:"entity_type,omitempty"`
	EntityID   string         `json:"entity_id,omitempty"`
	Detail     map[string]any `json:"detail,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// Store persists entries append-only. Entries are never edited or deleted
// by the service; retention is an operational concern.
type Store interface {
	Append(ctx context.Context, entry Entry) error
}

// Trail is the append-only audit log. Append failures propagate to the
// caller so privileged operations fail closed rather than succeed with
// lost evidence.
type Trail struct {
	store Store
	now   func() time.Time
}

// TrailOption configures Trail behavior.
type TrailOption func(*Trail)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) TrailOption {
	return func(t *Trail) {
		if fn != nil {
			t.now = fn
		}
	}
}

// NewTrail constructs a Trail over the given store.
func NewTrail(store Store, opts ...TrailOption) (*Trail, error) {
	if store == nil {
		return nil, errors.New("audit store is required")
	}
	t := &Trail{store: store, now: time.Now}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Append records the entry, filling in id and timestamp, and mirrors it as
// a structured log line. A storage failure is returned to the caller.
func (t *Trail) Append(ctx context.Context, entry Entry) error {
	if strings.TrimSpace(entry.Action) == "" {
		return errors.New("audit: action is required")
	}
	if entry.ID == "" {
		entry.ID = ids.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = t.now().UTC()
	}
	if err := t.store.Append(ctx, entry); err != nil {
		return err
	}
	t.logEntry(ctx, entry)
	return nil
}

// TryAppend records the entry best-effort. Failures are logged and
// swallowed; callers use it only on low-value paths where losing the
// record must not fail the enclosing operation.
func (t *Trail) TryAppend(ctx context.Context, entry Entry) {
	if err := t.Append(ctx, entry); err != nil {
		obs.LogEvent(map[string]any{
			"ts":     t.now().UTC().Format(time.RFC3339Nano),
			"level":  "error",
			"msg":    "audit append failed",
			"action": entry.Action,
			"error":  err.Error(),
		})
	}
}

func (t *Trail) logEntry(ctx context.Context, entry Entry) {
	line := map[string]any{
		"ts":     entry.CreatedAt.Format(time.RFC3339Nano),
		"type":   "audit",
		"event":  entry.Action,
		"fields": entry.Detail,
	}
	if entry.ActorID != "" {
		line["actor_id"] = entry.ActorID
	}
	if entry.EntityType != "" {
		line["entity_type"] = entry.EntityType
		line["entity_id"] = entry.EntityID
	}
	if rid := RequestIDFromContext(ctx); rid != "" {
		line["request_id"] = rid
	}
	obs.LogEvent(line)
}
