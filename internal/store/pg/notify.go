package pg

import (
	"context"
	"time"

	"chepochem.org/internal/ids"
	"chepochem.org/internal/notify"
)

var _ notify.Store = (*Store)(nil)

func (s *Store) Emit(ctx context.Context, n notify.Notification) error {
	if n.ID == "" {
		n.ID = ids.New()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		insert into notifications (id, user_id, type, title, content, is_read, related_entity_type, related_entity_id, created_at)
		values ($1,$2,$3,$4,nullif($5,''),false,nullif($6,''),nullif($7,''),$8)
	`, n.ID, n.UserID, string(n.Type), n.Title, n.Content, n.RelatedEntityType, n.RelatedEntityID, n.CreatedAt)
	return err
}

func (s *Store) ListFor(ctx context.Context, userID string) ([]notify.Notification, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, user_id, type, title, coalesce(content,''), is_read,
			coalesce(related_entity_type,''), coalesce(related_entity_id,''), created_at
		from notifications
		where user_id=$1
		order by created_at desc
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []notify.Notification
	for rows.Next() {
		var (
			n   notify.Notification
			typ string
		)
		if err := rows.Scan(&n.ID, &n.UserID, &typ, &n.Title, &n.Content, &n.IsRead,
			&n.RelatedEntityType, &n.RelatedEntityID, &n.CreatedAt); err != nil {
			return nil, err
		}
		n.Type = notify.Type(typ)
		result = append(result, n)
	}
	return result, rows.Err()
}

func (s *Store) MarkRead(ctx context.Context, id, userID string) error {
	res, err := s.db.ExecContext(ctx, `
		update notifications set is_read=true
		where id=$1 and user_id=$2
	`, id, userID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notify.ErrNotFound
	}
	return nil
}
