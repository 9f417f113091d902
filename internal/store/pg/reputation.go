package pg

import (
	"context"
	"database/sql"
	"errors"

	"chepochem.org/internal/reputation"
)

// ReputationStore is the reputation-typed view of Store.
type ReputationStore struct{ s *Store }

var _ reputation.Store = (*ReputationStore)(nil)

// Reputations returns the reputation.Store view.
func (s *Store) Reputations() *ReputationStore { return &ReputationStore{s: s} }

func (rs *ReputationStore) Save(ctx context.Context, rep reputation.Reputation) error {
	_, err := rs.s.db.ExecContext(ctx, `
		insert into reputations (user_id, total_score, positive_reviews, negative_reviews, neutral_reviews, tier, updated_at)
		values ($1,$2,$3,$4,$5,$6,$7)
		on conflict (user_id) do update
		set total_score = excluded.total_score,
			positive_reviews = excluded.positive_reviews,
			negative_reviews = excluded.negative_reviews,
			neutral_reviews = excluded.neutral_reviews,
			tier = excluded.tier,
			updated_at = excluded.updated_at
	`, rep.UserID, rep.TotalScore, rep.Positive, rep.Negative, rep.Neutral, string(rep.Tier), rep.UpdatedAt)
	return err
}

func (rs *ReputationStore) Get(ctx context.Context, userID string) (reputation.Reputation, error) {
	var (
		rep  reputation.Reputation
		tier string
	)
	err := rs.s.db.QueryRowContext(ctx, `
		select user_id, total_score, positive_reviews, negative_reviews, neutral_reviews, tier, updated_at
		from reputations where user_id=$1
	`, userID).Scan(&rep.UserID, &rep.TotalScore, &rep.Positive, &rep.Negative, &rep.Neutral, &tier, &rep.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return reputation.Reputation{}, reputation.ErrNotFound
	}
	if err != nil {
		return reputation.Reputation{}, err
	}
	rep.Tier = reputation.Tier(tier)
	return rep, nil
}
