package pg

import (
	"context"
	"database/sql"
	"errors"

	"chepochem.org/internal/audit"
	"chepochem.org/internal/review"
)

// ReviewStore is the review-typed view of Store: review.Store and
// listing.Store share method names, so reviews get their own receiver.
type ReviewStore struct{ s *Store }

var _ review.Store = (*ReviewStore)(nil)

// Reviews returns the review.Store view.
func (s *Store) Reviews() *ReviewStore { return &ReviewStore{s: s} }

func (rs *ReviewStore) Create(ctx context.Context, r *review.Review, entry audit.Entry) error {
	return rs.s.CreateReview(ctx, r, entry)
}

func (rs *ReviewStore) Get(ctx context.Context, id string) (review.Review, error) {
	return rs.s.GetReview(ctx, id)
}

func (rs *ReviewStore) Update(ctx context.Context, r *review.Review, entry audit.Entry) error {
	return rs.s.UpdateReview(ctx, r, entry)
}

func (rs *ReviewStore) Exists(ctx context.Context, reviewerID, reviewedID string) (bool, error) {
	return rs.s.ReviewExists(ctx, reviewerID, reviewedID)
}

func (rs *ReviewStore) ReviewsFor(ctx context.Context, reviewedID string) ([]review.Review, error) {
	return rs.s.ReviewsFor(ctx, reviewedID)
}

func (rs *ReviewStore) RatingsFor(ctx context.Context, userID string) ([]int, error) {
	return rs.s.RatingsFor(ctx, userID)
}

func (s *Store) CreateReview(ctx context.Context, r *review.Review, entry audit.Entry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		insert into reviews (id, reviewer_id, reviewed_id, listing_id, rating, comment, is_positive, created_at, updated_at)
		values ($1,$2,$3,nullif($4,''),$5,$6,$7,$8,$9)
	`, r.ID, r.ReviewerID, r.ReviewedID, r.ListingID, r.Rating, r.Comment, r.IsPositive,
		r.CreatedAt, r.UpdatedAt); err != nil {
		// Unique index on (reviewer_id, reviewed_id) backs the one-review
		// rule even against concurrent inserts.
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return review.ErrDuplicate
		}
		return err
	}
	if err := appendAuditTx(ctx, tx, entry); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) GetReview(ctx context.Context, id string) (review.Review, error) {
	var (
		r         review.Review
		listingID sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		select id, reviewer_id, reviewed_id, listing_id, rating, comment, is_positive, created_at, updated_at
		from reviews where id=$1
	`, id).Scan(&r.ID, &r.ReviewerID, &r.ReviewedID, &listingID, &r.Rating, &r.Comment,
		&r.IsPositive, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return review.Review{}, review.ErrNotFound
	}
	if err != nil {
		return review.Review{}, err
	}
	if listingID.Valid {
		r.ListingID = listingID.String
	}
	return r, nil
}

func (s *Store) UpdateReview(ctx context.Context, r *review.Review, entry audit.Entry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		update reviews set rating=$2, comment=$3, is_positive=$4, updated_at=$5
		where id=$1
	`, r.ID, r.Rating, r.Comment, r.IsPositive, r.UpdatedAt)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return review.ErrNotFound
	}
	if err := appendAuditTx(ctx, tx, entry); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) ReviewExists(ctx context.Context, reviewerID, reviewedID string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		select exists(select 1 from reviews where reviewer_id=$1 and reviewed_id=$2)
	`, reviewerID, reviewedID).Scan(&exists)
	return exists, err
}

func (s *Store) ReviewsFor(ctx context.Context, reviewedID string) ([]review.Review, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, reviewer_id, reviewed_id, coalesce(listing_id,''), rating, comment, is_positive, created_at, updated_at
		from reviews
		where reviewed_id=$1
		order by created_at desc
	`, reviewedID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []review.Review
	for rows.Next() {
		var r review.Review
		if err := rows.Scan(&r.ID, &r.ReviewerID, &r.ReviewedID, &r.ListingID, &r.Rating,
			&r.Comment, &r.IsPositive, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

func (s *Store) RatingsFor(ctx context.Context, userID string) ([]int, error) {
	rows, err := s.db.QueryContext(ctx, `select rating from reviews where reviewed_id=$1`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ratings []int
	for rows.Next() {
		var rating int
		if err := rows.Scan(&rating); err != nil {
			return nil, err
		}
		ratings = append(ratings, rating)
	}
	return ratings, rows.Err()
}
