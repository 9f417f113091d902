package review

import (
	"context"
	"errors"
	"testing"

	"chepochem.org/internal/audit"
	"chepochem.org/internal/notify"
	"chepochem.org/internal/rbac"
	"chepochem.org/internal/reputation"
)

type fixture struct {
	service *Service
	store   *MemoryStore
	agg     *reputation.Aggregator
	inbox   *notify.MemoryStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	auditLog := audit.NewMemoryStore()
	trail, err := audit.NewTrail(auditLog)
	if err != nil {
		t.Fatalf("new trail: %v", err)
	}
	store := NewMemoryStore(auditLog)
	agg, err := reputation.NewAggregator(store, reputation.NewMemoryStore())
	if err != nil {
		t.Fatalf("new aggregator: %v", err)
	}
	engine, err := rbac.NewEngine(rbac.NewCatalog(), nil, trail)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	inbox := notify.NewMemoryStore()
	service, err := NewService(engine, store, agg, inbox)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return &fixture{service: service, store: store, agg: agg, inbox: inbox}
}

var (
	reviewer = rbac.Actor{ID: "user-1", Role: rbac.RoleUser, Active: true}
	reviewed = "user-2"
)

func TestCreateReview(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	r, err := f.service.Create(ctx, reviewer, CreateInput{
		ReviewedID: reviewed,
		Rating:     5,
		Comment:    "Отличный продавец, всё быстро",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !r.IsPositive {
		t.Fatal("rating 5 must be positive")
	}

	rep, err := f.agg.Get(ctx, reviewed)
	if err != nil {
		t.Fatalf("get reputation: %v", err)
	}
	if rep.TotalScore != 5 || rep.Positive != 1 || rep.Tier != reputation.TierMaster {
		t.Fatalf("reputation = %+v", rep)
	}

	ns, err := f.inbox.ListFor(ctx, reviewed)
	if err != nil {
		t.Fatalf("list notifications: %v", err)
	}
	if len(ns) != 1 || ns[0].Type != notify.TypeNewReview {
		t.Fatalf("notifications = %+v", ns)
	}
}

func TestCreateReviewPositivity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cases := []struct {
		rating   int
		positive bool
	}{
		{1, false},
		{2, false},
		{3, false},
		{4, true},
		{5, true},
	}
	for i, tc := range cases {
		actor := rbac.Actor{ID: string(rune('a' + i)), Role: rbac.RoleUser, Active: true}
		r, err := f.service.Create(ctx, actor, CreateInput{
			ReviewedID: reviewed,
			Rating:     tc.rating,
			Comment:    "ok",
		})
		if err != nil {
			t.Fatalf("create rating %d: %v", tc.rating, err)
		}
		if r.IsPositive != tc.positive {
			t.Fatalf("rating %d: positive = %v, want %v", tc.rating, r.IsPositive, tc.positive)
		}
	}
}

func TestCreateReviewValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.service.Create(ctx, reviewer, CreateInput{ReviewedID: reviewed, Rating: 0, Comment: "x"}); !errors.Is(err, ErrInvalidRating) {
		t.Fatalf("rating 0: %v, want ErrInvalidRating", err)
	}
	if _, err := f.service.Create(ctx, reviewer, CreateInput{ReviewedID: reviewed, Rating: 6, Comment: "x"}); !errors.Is(err, ErrInvalidRating) {
		t.Fatalf("rating 6: %v, want ErrInvalidRating", err)
	}
	if _, err := f.service.Create(ctx, reviewer, CreateInput{ReviewedID: reviewed, Rating: 4, Comment: "   "}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("blank comment: %v, want ErrInvalidInput", err)
	}
	if _, err := f.service.Create(ctx, reviewer, CreateInput{ReviewedID: reviewer.ID, Rating: 5, Comment: "me"}); !errors.Is(err, ErrSelfReview) {
		t.Fatalf("self review: %v, want ErrSelfReview", err)
	}
}

func TestDuplicateReviewRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.service.Create(ctx, reviewer, CreateInput{ReviewedID: reviewed, Rating: 4, Comment: "ok"}); err != nil {
		t.Fatalf("first: %v", err)
	}
	if _, err := f.service.Create(ctx, reviewer, CreateInput{ReviewedID: reviewed, Rating: 2, Comment: "changed my mind"}); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("second: %v, want ErrDuplicate", err)
	}

	// The pair is directed: the reviewed user may still rate the reviewer.
	other := rbac.Actor{ID: reviewed, Role: rbac.RoleUser, Active: true}
	if _, err := f.service.Create(ctx, other, CreateInput{ReviewedID: reviewer.ID, Rating: 5, Comment: "хороший покупатель"}); err != nil {
		t.Fatalf("reverse direction: %v", err)
	}
}

func TestMemoryStoreRejectsDuplicatePair(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// The store itself guards the pair, like the unique index in Postgres,
	// so two writers that both pass the service's pre-check cannot insert
	// the same pair twice.
	first := Review{ID: "r-1", ReviewerID: reviewer.ID, ReviewedID: reviewed, Rating: 4}
	if err := f.store.Create(ctx, &first, audit.Entry{ID: "a-1", Action: "create_review"}); err != nil {
		t.Fatalf("first: %v", err)
	}
	second := Review{ID: "r-2", ReviewerID: reviewer.ID, ReviewedID: reviewed, Rating: 2}
	if err := f.store.Create(ctx, &second, audit.Entry{ID: "a-2", Action: "create_review"}); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("second: %v, want ErrDuplicate", err)
	}
	if _, err := f.store.Get(ctx, "r-2"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("duplicate was stored: %v", err)
	}
}

func TestUpdateOwnRederivesPositivity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	r, err := f.service.Create(ctx, reviewer, CreateInput{ReviewedID: reviewed, Rating: 5, Comment: "великолепно"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	rating := 2
	updated, err := f.service.UpdateOwn(ctx, reviewer, r.ID, UpdateInput{Rating: &rating})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.IsPositive {
		t.Fatal("rating 2 must not be positive")
	}

	rep, err := f.agg.Get(ctx, reviewed)
	if err != nil {
		t.Fatalf("get reputation: %v", err)
	}
	if rep.TotalScore != 2 || rep.Negative != 1 || rep.Positive != 0 {
		t.Fatalf("reputation after update = %+v", rep)
	}
}

func TestUpdateOwnRejectsForeignReview(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	r, err := f.service.Create(ctx, reviewer, CreateInput{ReviewedID: reviewed, Rating: 5, Comment: "ok"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	other := rbac.Actor{ID: "user-3", Role: rbac.RoleUser, Active: true}
	rating := 1
	if _, err := f.service.UpdateOwn(ctx, other, r.ID, UpdateInput{Rating: &rating}); !errors.Is(err, rbac.ErrPermissionDenied) {
		t.Fatalf("foreign update: %v, want ErrPermissionDenied", err)
	}
}

func TestCreateReviewRequiresAuthentication(t *testing.T) {
	f := newFixture(t)
	if _, err := f.service.Create(context.Background(), rbac.Actor{}, CreateInput{ReviewedID: reviewed, Rating: 5, Comment: "x"}); !errors.Is(err, rbac.ErrUnauthenticated) {
		t.Fatalf("err = %v, want ErrUnauthenticated", err)
	}
}
