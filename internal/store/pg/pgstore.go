package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"chepochem.org/internal/audit"
)

const (
	pgErrUniqueViolation     = "23505"
	pgErrForeignKeyViolation = "23503"
)

// Store is the Postgres persistence layer. One Store serves every
// storage interface in the application: listings, reviews, reputation,
// notifications and the audit log live in the same database so related
// writes can share a transaction.
type Store struct {
	db *sql.DB
}

var _ audit.Store = (*Store)(nil)

func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	// Tuned pool defaults; adjust under load tests
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Store{db: db}, nil
}

// NewWithDB wraps an existing connection, used by tests.
func NewWithDB(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

// Append writes an audit entry outside any caller transaction. Entries
// that accompany entity mutations go through appendAuditTx instead.
func (s *Store) Append(ctx context.Context, entry audit.Entry) error {
	detail, err := marshalDetail(entry.Detail)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		insert into audit_log (id, actor_id, action, entity_type, entity_id, detail, created_at)
		values ($1, nullif($2,''), $3, nullif($4,''), nullif($5,''), $6, $7)
	`, entry.ID, entry.ActorID, entry.Action, entry.EntityType, entry.EntityID, detail, entry.CreatedAt)
	return err
}

// AuditEntries returns the newest entries up to limit, for operator
// inspection through the API.
func (s *Store) AuditEntries(ctx context.Context, limit int) ([]audit.Entry, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		select id, coalesce(actor_id,''), action, coalesce(entity_type,''), coalesce(entity_id,''), detail, created_at
		from audit_log
		order by created_at desc
		limit $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []audit.Entry
	for rows.Next() {
		var (
			e   audit.Entry
			raw []byte
		)
		if err := rows.Scan(&e.ID, &e.ActorID, &e.Action, &e.EntityType, &e.EntityID, &raw, &e.CreatedAt); err != nil {
			return nil, err
		}
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &e.Detail); err != nil {
				return nil, fmt.Errorf("decode detail: %w", err)
			}
		}
		result = append(result, e)
	}
	return result, rows.Err()
}

func appendAuditTx(ctx context.Context, tx *sql.Tx, entry audit.Entry) error {
	detail, err := marshalDetail(entry.Detail)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		insert into audit_log (id, actor_id, action, entity_type, entity_id, detail, created_at)
		values ($1, nullif($2,''), $3, nullif($4,''), nullif($5,''), $6, $7)
	`, entry.ID, entry.ActorID, entry.Action, entry.EntityType, entry.EntityID, detail, entry.CreatedAt)
	return err
}

func marshalDetail(detail map[string]any) ([]byte, error) {
	if len(detail) == 0 {
		return []byte("{}"), nil
	}
	raw, err := json.Marshal(detail)
	if err != nil {
		return nil, fmt.Errorf("marshal detail: %w", err)
	}
	return raw, nil
}

func maybePgError(err error) (*pgconn.PgError, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr, true
	}
	return nil, false
}
