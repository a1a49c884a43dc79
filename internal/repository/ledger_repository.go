package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"budgetme-notifications/internal/domain"
)

// LedgerRepository guards one-shot notifications whose breakpoint has no flag
// column on a domain row.
type LedgerRepository interface {
	// Claim records the key and reports whether this caller inserted it.
	Claim(ctx context.Context, entry *domain.LedgerEntry) (bool, error)
	Release(ctx context.Context, dedupKey string) error
	DeleteOlderThan(ctx context.Context, days int) (int64, error)
}

type ledgerRepository struct {
	db *sqlx.DB
}

func NewLedgerRepository(db *sqlx.DB) LedgerRepository {
	return &ledgerRepository{db: db}
}

func (r *ledgerRepository) Claim(ctx context.Context, entry *domain.LedgerEntry) (bool, error) {
	query := `
		INSERT INTO notification_ledger (dedup_key, user_id, entity_id, event_type)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (dedup_key) DO NOTHING`

	res, err := r.db.ExecContext(ctx, query, entry.DedupKey, entry.UserID, entry.EntityID, entry.EventType)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

func (r *ledgerRepository) Release(ctx context.Context, dedupKey string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM notification_ledger WHERE dedup_key = $1`, dedupKey)
	return err
}

func (r *ledgerRepository) DeleteOlderThan(ctx context.Context, days int) (int64, error) {
	query := `DELETE FROM notification_ledger WHERE created_at < NOW() - make_interval(days => $1)`
	res, err := r.db.ExecContext(ctx, query, days)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
