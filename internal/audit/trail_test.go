package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"chepochem.org/internal/obs"
)

func TestTrailAppend(t *testing.T) {
	logger := obs.Logger()
	original := logger.Writer()
	var buf bytes.Buffer
	logger.SetOutput(&buf)
	defer logger.SetOutput(original)

	store := NewMemoryStore()
	fixed := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	trail, err := NewTrail(store, WithClock(func() time.Time { return fixed }))
	if err != nil {
		t.Fatalf("NewTrail: %v", err)
	}

	ctx := WithRequestID(context.Background(), "req-123")
	err = trail.Append(ctx, Entry{
		ActorID:    "user-42",
		Action:     "moderate_listing",
		EntityType: "listing",
		EntityID:   "l1",
		Detail:     map[string]any{"action": "approve"},
	})
	if err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	entries := store.Entries()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].ID == "" {
		t.Fatal("expected generated id")
	}
	if !entries[0].CreatedAt.Equal(fixed) {
		t.Fatalf("unexpected timestamp: %v", entries[0].CreatedAt)
	}

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("log not valid JSON: %v", err)
	}
	if line["type"] != "audit" {
		t.Fatalf("unexpected type: %v", line["type"])
	}
	if line["event"] != "moderate_listing" {
		t.Fatalf("unexpected event: %v", line["event"])
	}
	if line["request_id"] != "req-123" {
		t.Fatalf("unexpected request id: %v", line["request_id"])
	}
	if line["actor_id"] != "user-42" {
		t.Fatalf("unexpected actor id: %v", line["actor_id"])
	}
}

func TestTrailAppendFailsClosed(t *testing.T) {
	store := NewMemoryStore()
	trail, err := NewTrail(store)
	if err != nil {
		t.Fatalf("NewTrail: %v", err)
	}
	boom := errors.New("disk full")
	store.FailWith(boom)

	if err := trail.Append(context.Background(), Entry{Action: "x"}); !errors.Is(err, boom) {
		t.Fatalf("expected storage error, got %v", err)
	}
}

func TestTrailRequiresAction(t *testing.T) {
	trail, err := NewTrail(NewMemoryStore())
	if err != nil {
		t.Fatalf("NewTrail: %v", err)
	}
	if err := trail.Append(context.Background(), Entry{}); err == nil {
		t.Fatal("expected error for missing action")
	}
}
