package listing

import (
	"context"
	"errors"
	"testing"

	"chepochem.org/internal/notify"
	"chepochem.org/internal/rbac"
)

func (f *fixture) pendingListing(t *testing.T) Listing {
	t.Helper()
	l, err := f.service.Create(context.Background(), owner, validInput())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	return l
}

func TestApprovePublishes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	l := f.pendingListing(t)

	rec, err := f.workflow.Approve(ctx, moderator, l.ID)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if rec.Action != ActionApprove || rec.ModeratorID != moderator.ID {
		t.Fatalf("record = %+v", rec)
	}

	got, err := f.store.Get(ctx, l.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != StatusActive {
		t.Fatalf("status = %s, want %s", got.Status, StatusActive)
	}
	if got.PublishedAt == nil {
		t.Fatal("published_at must be stamped on first approval")
	}

	ns, err := f.inbox.ListFor(ctx, owner.ID)
	if err != nil {
		t.Fatalf("list notifications: %v", err)
	}
	if len(ns) != 1 {
		t.Fatalf("notifications = %d, want 1", len(ns))
	}
	if ns[0].Type != notify.TypeListingApproved || ns[0].Title != "Объявление одобрено" {
		t.Fatalf("notification = %+v", ns[0])
	}
	want := "Ваше объявление \"iPhone 13\" было одобрено и опубликовано."
	if ns[0].Content != want {
		t.Fatalf("content = %q, want %q", ns[0].Content, want)
	}
}

func TestPublishedAtSetOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	l := f.pendingListing(t)

	if _, err := f.workflow.Approve(ctx, moderator, l.ID); err != nil {
		t.Fatalf("approve: %v", err)
	}
	first, err := f.store.Get(ctx, l.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}

	// Owner edits, listing re-enters moderation, gets approved again.
	title := "iPhone 13 Pro"
	if _, err := f.service.UpdateOwn(ctx, owner, l.ID, UpdateInput{Title: &title}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if _, err := f.workflow.Approve(ctx, moderator, l.ID); err != nil {
		t.Fatalf("second approve: %v", err)
	}
	second, err := f.store.Get(ctx, l.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if second.PublishedAt == nil || !second.PublishedAt.Equal(*first.PublishedAt) {
		t.Fatalf("published_at changed: %v -> %v", first.PublishedAt, second.PublishedAt)
	}
}

func TestRejectCarriesReason(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	l := f.pendingListing(t)

	rec, err := f.workflow.Reject(ctx, moderator, l.ID, "Запрещённый товар")
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if rec.Reason != "Запрещённый товар" {
		t.Fatalf("reason = %q", rec.Reason)
	}

	got, err := f.store.Get(ctx, l.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != StatusRejected {
		t.Fatalf("status = %s, want %s", got.Status, StatusRejected)
	}
	if got.PublishedAt != nil {
		t.Fatal("rejected listing must not carry a publish time")
	}

	ns, err := f.inbox.ListFor(ctx, owner.ID)
	if err != nil {
		t.Fatalf("list notifications: %v", err)
	}
	want := "Ваше объявление \"iPhone 13\" было отклонено. Причина: Запрещённый товар"
	if len(ns) != 1 || ns[0].Content != want {
		t.Fatalf("notifications = %+v, want content %q", ns, want)
	}
}

func TestRejectWithoutReason(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	l := f.pendingListing(t)

	if _, err := f.workflow.Reject(ctx, moderator, l.ID, "  "); err != nil {
		t.Fatalf("reject: %v", err)
	}
	ns, err := f.inbox.ListFor(ctx, owner.ID)
	if err != nil {
		t.Fatalf("list notifications: %v", err)
	}
	want := "Ваше объявление \"iPhone 13\" было отклонено. Причина: Не указана"
	if len(ns) != 1 || ns[0].Content != want {
		t.Fatalf("notifications = %+v, want content %q", ns, want)
	}
}

func TestInvalidTransitions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cases := []struct {
		name  string
		setup func(t *testing.T) string
		run   func(id string) error
		from  Status
	}{
		{
			name:  "approve active",
			setup: func(t *testing.T) string { return f.approved(t) },
			run: func(id string) error {
				_, err := f.workflow.Approve(ctx, moderator, id)
				return err
			},
			from: StatusActive,
		},
		{
			name:  "reject active",
			setup: func(t *testing.T) string { return f.approved(t) },
			run: func(id string) error {
				_, err := f.workflow.Reject(ctx, moderator, id, "")
				return err
			},
			from: StatusActive,
		},
		{
			name:  "pause pending",
			setup: func(t *testing.T) string { return f.pendingListing(t).ID },
			run: func(id string) error {
				_, err := f.workflow.Pause(ctx, moderator, id, "")
				return err
			},
			from: StatusPending,
		},
		{
			name:  "unpause active",
			setup: func(t *testing.T) string { return f.approved(t) },
			run: func(id string) error {
				_, err := f.workflow.Unpause(ctx, moderator, id)
				return err
			},
			from: StatusActive,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			id := tc.setup(t)
			err := tc.run(id)
			var ite *InvalidTransitionError
			if !errors.As(err, &ite) {
				t.Fatalf("err = %v, want InvalidTransitionError", err)
			}
			if ite.From != tc.from {
				t.Fatalf("from = %s, want %s", ite.From, tc.from)
			}
			// The failed attempt must leave no trace in the state.
			status, sErr := f.store.GetStatus(ctx, id)
			if sErr != nil {
				t.Fatalf("get status: %v", sErr)
			}
			if status != tc.from {
				t.Fatalf("status mutated to %s", status)
			}
		})
	}
}

func (f *fixture) approved(t *testing.T) string {
	t.Helper()
	l := f.pendingListing(t)
	if _, err := f.workflow.Approve(context.Background(), moderator, l.ID); err != nil {
		t.Fatalf("approve: %v", err)
	}
	return l.ID
}

func TestPauseUnpause(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.approved(t)

	if _, err := f.workflow.Pause(ctx, moderator, id, "жалобы пользователей"); err != nil {
		t.Fatalf("pause: %v", err)
	}
	status, err := f.store.GetStatus(ctx, id)
	if err != nil {
		t.Fatalf("get status: %v", err)
	}
	if status != StatusPaused {
		t.Fatalf("status = %s, want %s", status, StatusPaused)
	}

	if _, err := f.workflow.Unpause(ctx, moderator, id); err != nil {
		t.Fatalf("unpause: %v", err)
	}
	got, err := f.store.Get(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != StatusActive {
		t.Fatalf("status = %s, want %s", got.Status, StatusActive)
	}
	if got.PublishedAt == nil {
		t.Fatal("unpause must not clear published_at")
	}
	// Unpause does not notify the owner; only the original approval did.
	ns, err := f.inbox.ListFor(ctx, owner.ID)
	if err != nil {
		t.Fatalf("list notifications: %v", err)
	}
	if len(ns) != 1 {
		t.Fatalf("notifications = %d, want 1", len(ns))
	}
}

func TestModerationRequiresModerator(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	l := f.pendingListing(t)

	if _, err := f.workflow.Approve(ctx, owner, l.ID); !errors.Is(err, rbac.ErrPermissionDenied) {
		t.Fatalf("owner approve: %v, want ErrPermissionDenied", err)
	}
	status, err := f.store.GetStatus(ctx, l.ID)
	if err != nil {
		t.Fatalf("get status: %v", err)
	}
	if status != StatusPending {
		t.Fatalf("status = %s, want %s", status, StatusPending)
	}
}

func TestModerationLog(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	l := f.pendingListing(t)

	if _, err := f.workflow.Reject(ctx, moderator, l.ID, "фото не соответствует"); err != nil {
		t.Fatalf("reject: %v", err)
	}
	title := "iPhone 13, обновлено"
	if _, err := f.service.UpdateOwn(ctx, owner, l.ID, UpdateInput{Title: &title}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if _, err := f.workflow.Approve(ctx, moderator, l.ID); err != nil {
		t.Fatalf("approve: %v", err)
	}

	log, err := f.workflow.Log(ctx, moderator, l.ID)
	if err != nil {
		t.Fatalf("log: %v", err)
	}
	if len(log) != 2 {
		t.Fatalf("log length = %d, want 2", len(log))
	}
	// Newest first.
	if log[0].Action != ActionApprove || log[1].Action != ActionReject {
		t.Fatalf("log order = %s, %s", log[0].Action, log[1].Action)
	}

	// Plain users cannot read the moderation log.
	if _, err := f.workflow.Log(ctx, owner, l.ID); !errors.Is(err, rbac.ErrPermissionDenied) {
		t.Fatalf("owner log read: %v, want ErrPermissionDenied", err)
	}
}
