package pg

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"chepochem.org/internal/audit"
	"chepochem.org/internal/listing"
	"chepochem.org/internal/rbac"
)

var (
	_ listing.Store        = (*Store)(nil)
	_ rbac.OwnershipLookup = (*Store)(nil)
)

const listingColumns = `
	id, user_id, category_id, title, description, price, currency, condition,
	location, is_negotiable, is_urgent, status, views_count, favorites_count,
	created_at, updated_at, published_at, expires_at`

func (s *Store) Create(ctx context.Context, l *listing.Listing, entry audit.Entry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		insert into listings (id, user_id, category_id, title, description, price, currency,
			condition, location, is_negotiable, is_urgent, status, created_at, updated_at)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
	`, l.ID, l.UserID, l.CategoryID, l.Title, l.Description, l.Price, l.Currency,
		string(l.Condition), l.Location, l.IsNegotiable, l.IsUrgent, string(l.Status),
		l.CreatedAt, l.UpdatedAt); err != nil {
		return err
	}
	if err := appendAuditTx(ctx, tx, entry); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) Get(ctx context.Context, id string) (listing.Listing, error) {
	row := s.db.QueryRowContext(ctx, `select `+listingColumns+` from listings where id=$1`, id)
	l, err := scanListing(row)
	if errors.Is(err, sql.ErrNoRows) {
		return listing.Listing{}, listing.ErrNotFound
	}
	return l, err
}

func (s *Store) Update(ctx context.Context, l *listing.Listing, entry audit.Entry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		update listings set title=$2, description=$3, price=$4, location=$5,
			is_negotiable=$6, is_urgent=$7, status=$8, updated_at=$9
		where id=$1
	`, l.ID, l.Title, l.Description, l.Price, l.Location,
		l.IsNegotiable, l.IsUrgent, string(l.Status), l.UpdatedAt)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return listing.ErrNotFound
	}
	if err := appendAuditTx(ctx, tx, entry); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) Delete(ctx context.Context, id string, entry audit.Entry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `delete from listings where id=$1`, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return listing.ErrNotFound
	}
	if err := appendAuditTx(ctx, tx, entry); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) GetStatus(ctx context.Context, id string) (listing.Status, error) {
	var status string
	err := s.db.QueryRowContext(ctx, `select status from listings where id=$1`, id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return "", listing.ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return listing.Status(status), nil
}

func (s *Store) CompareAndSetStatus(ctx context.Context, id string, expected, next listing.Status) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		update listings set status=$3, updated_at=now()
		where id=$1 and status=$2
	`, id, string(expected), string(next))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		// Distinguish a lost race from a missing row.
		if _, err := s.GetStatus(ctx, id); err != nil {
			return false, err
		}
		return false, nil
	}
	return true, nil
}

func (s *Store) SetPublishedAt(ctx context.Context, id string, ts time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		update listings set published_at=$2
		where id=$1 and published_at is null
	`, id, ts)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		var exists bool
		if qErr := s.db.QueryRowContext(ctx, `select true from listings where id=$1`, id).Scan(&exists); qErr != nil {
			if errors.Is(qErr, sql.ErrNoRows) {
				return listing.ErrNotFound
			}
			return qErr
		}
	}
	return nil
}

// ApplyTransition commits the status change, publish timestamp, moderation
// record and audit entry in one transaction. The status update doubles as
// the compare-and-set: zero affected rows means another writer moved the
// listing first.
func (s *Store) ApplyTransition(ctx context.Context, tr listing.Transition) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		update listings set status=$3, updated_at=$4
		where id=$1 and status=$2
	`, tr.ListingID, string(tr.From), string(tr.To), tr.Record.CreatedAt)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		if _, err := s.GetStatus(ctx, tr.ListingID); err != nil {
			return err
		}
		return listing.ErrStatusConflict
	}
	if tr.PublishedAt != nil {
		if _, err := tx.ExecContext(ctx, `
			update listings set published_at=$2
			where id=$1 and published_at is null
		`, tr.ListingID, *tr.PublishedAt); err != nil {
			return err
		}
	}
	if _, err := tx.ExecContext(ctx, `
		insert into moderation_records (id, listing_id, moderator_id, action, reason, created_at)
		values ($1,$2,$3,$4,nullif($5,''),$6)
	`, tr.Record.ID, tr.Record.ListingID, tr.Record.ModeratorID, string(tr.Record.Action),
		tr.Record.Reason, tr.Record.CreatedAt); err != nil {
		return err
	}
	if err := appendAuditTx(ctx, tx, tr.Audit); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) ModerationLog(ctx context.Context, listingID string) ([]listing.ModerationRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, listing_id, moderator_id, action, coalesce(reason,''), created_at
		from moderation_records
		where listing_id=$1
		order by created_at desc
	`, listingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []listing.ModerationRecord
	for rows.Next() {
		var (
			rec    listing.ModerationRecord
			action string
		)
		if err := rows.Scan(&rec.ID, &rec.ListingID, &rec.ModeratorID, &action, &rec.Reason, &rec.CreatedAt); err != nil {
			return nil, err
		}
		rec.Action = listing.ModerationAction(action)
		result = append(result, rec)
	}
	return result, rows.Err()
}

// OwnerOf implements rbac.OwnershipLookup for listing resources.
func (s *Store) OwnerOf(ctx context.Context, resourceType, resourceID string) (string, error) {
	if resourceType != rbac.ResourceTypeListing {
		return "", listing.ErrNotFound
	}
	var owner string
	err := s.db.QueryRowContext(ctx, `select user_id from listings where id=$1`, resourceID).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) {
		return "", listing.ErrNotFound
	}
	return owner, err
}

func scanListing(row *sql.Row) (listing.Listing, error) {
	var (
		l         listing.Listing
		status    string
		condition string
		published sql.NullTime
		expires   sql.NullTime
	)
	err := row.Scan(&l.ID, &l.UserID, &l.CategoryID, &l.Title, &l.Description, &l.Price,
		&l.Currency, &condition, &l.Location, &l.IsNegotiable, &l.IsUrgent, &status,
		&l.ViewsCount, &l.FavoritesCount, &l.CreatedAt, &l.UpdatedAt, &published, &expires)
	if err != nil {
		return listing.Listing{}, err
	}
	l.Status = listing.Status(status)
	l.Condition = listing.Condition(condition)
	if published.Valid {
		ts := published.Time
		l.PublishedAt = &ts
	}
	if expires.Valid {
		ts := expires.Time
		l.ExpiresAt = &ts
	}
	return l, nil
}
