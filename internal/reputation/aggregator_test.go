package reputation

import (
	"context"
	"reflect"
	"sync"
	"testing"
	"time"
)

type ratingsMap map[string][]int

func (m ratingsMap) RatingsFor(ctx context.Context, userID string) ([]int, error) {
	return m[userID], nil
}

func newTestAggregator(t *testing.T, ratings ratingsMap) (*Aggregator, *MemoryStore) {
	t.Helper()
	store := NewMemoryStore()
	agg, err := NewAggregator(ratings, store)
	if err != nil {
		t.Fatalf("NewAggregator: %v", err)
	}
	agg.now = func() time.Time { return time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC) }
	return agg, store
}

func TestTierFor(t *testing.T) {
	cases := []struct {
		positive, total int
		want            Tier
	}{
		{0, 0, TierNewbie},
		{1, 1, TierMaster}, // single positive review reaches master
		{4, 5, TierMaster},
		{3, 5, TierExpert},
		{1, 2, TierTrusted},
		{0, 3, TierTrusted},
		{3, 4, TierExpert},
		{8, 10, TierMaster},
	}
	for _, tc := range cases {
		if got := TierFor(tc.positive, tc.total); got != tc.want {
			t.Fatalf("TierFor(%d,%d)=%s, want %s", tc.positive, tc.total, got, tc.want)
		}
	}
}

func TestRecomputeScenario(t *testing.T) {
	ratings := ratingsMap{"v": {5}}
	agg, _ := newTestAggregator(t, ratings)
	ctx := context.Background()

	rep, err := agg.Recompute(ctx, "v")
	if err != nil {
		t.Fatalf("Recompute: %v", err)
	}
	if rep.Tier != TierMaster || rep.Positive != 1 || rep.TotalScore != 5 {
		t.Fatalf("after one 5-star review: %+v", rep)
	}

	ratings["v"] = append(ratings["v"], 2)
	rep, err = agg.Recompute(ctx, "v")
	if err != nil {
		t.Fatalf("Recompute: %v", err)
	}
	if rep.Positive != 1 || rep.Negative != 1 || rep.Neutral != 0 {
		t.Fatalf("counts after 5,2: %+v", rep)
	}
	if rep.Tier != TierTrusted {
		t.Fatalf("expected trusted (1/2 positive), got %s", rep.Tier)
	}
	if rep.TotalScore != 7 {
		t.Fatalf("expected score 7, got %d", rep.TotalScore)
	}
}

func TestRecomputeIsPure(t *testing.T) {
	agg, _ := newTestAggregator(t, ratingsMap{"v": {4, 3, 1, 5}})
	ctx := context.Background()

	first, err := agg.Recompute(ctx, "v")
	if err != nil {
		t.Fatalf("Recompute: %v", err)
	}
	second, err := agg.Recompute(ctx, "v")
	if err != nil {
		t.Fatalf("Recompute: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("recompute drifted: %+v vs %+v", first, second)
	}
	if first.Neutral != 1 || first.Negative != 1 || first.Positive != 2 {
		t.Fatalf("unexpected counts: %+v", first)
	}
}

func TestRecomputeConcurrent(t *testing.T) {
	agg, store := newTestAggregator(t, ratingsMap{"v": {5, 5, 1}})
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := agg.Recompute(ctx, "v"); err != nil {
				t.Errorf("Recompute: %v", err)
			}
		}()
	}
	wg.Wait()

	rep, err := store.Get(ctx, "v")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rep.TotalScore != 11 || rep.Positive != 2 || rep.Negative != 1 {
		t.Fatalf("unexpected aggregate: %+v", rep)
	}
}

func TestGetUnknownUser(t *testing.T) {
	agg, _ := newTestAggregator(t, ratingsMap{})
	if _, err := agg.Get(context.Background(), "nobody"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
