package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"budgetme-notifications/internal/domain"
)

type TransactionRepository interface {
	GetAccount(ctx context.Context, id uuid.UUID) (*domain.Account, error)
	ListCategorizedSamples(ctx context.Context, userID uuid.UUID, limit int) ([]domain.CategorizedTransaction, error)
	ListRecurringDue(ctx context.Context, from, to time.Time) ([]domain.Transaction, error)
	Totals(ctx context.Context, userID uuid.UUID, from, to time.Time) (*domain.TransactionTotals, error)
	TopCategories(ctx context.Context, userID uuid.UUID, from, to time.Time, limit int) ([]domain.CategorySpend, error)
	ListUserIDsWithActivity(ctx context.Context, from, to time.Time) ([]uuid.UUID, error)
}

type transactionRepository struct {
	db *sqlx.DB
}

func NewTransactionRepository(db *sqlx.DB) TransactionRepository {
	return &transactionRepository{db: db}
}

func (r *transactionRepository) GetAccount(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	var a domain.Account
	query := `SELECT id, user_id, account_name, balance, currency, created_at FROM accounts WHERE id = $1`

	err := r.db.GetContext(ctx, &a, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *transactionRepository) ListCategorizedSamples(ctx context.Context, userID uuid.UUID, limit int) ([]domain.CategorizedTransaction, error) {
	query := `
		SELECT t.description, t.category_id, c.category_name
		FROM transactions t
		JOIN categories c ON c.id = t.category_id
		WHERE t.user_id = $1 AND t.category_id IS NOT NULL AND t.description <> ''
		ORDER BY t.date DESC
		LIMIT $2`

	var samples []domain.CategorizedTransaction
	err := r.db.SelectContext(ctx, &samples, query, userID, limit)
	return samples, err
}

const transactionColumns = `id, user_id, account_id, category_id, goal_id, type, amount, description,
	date, is_recurring, recurrence_interval, next_occurrence, created_at`

func (r *transactionRepository) ListRecurringDue(ctx context.Context, from, to time.Time) ([]domain.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + ` FROM transactions
		WHERE is_recurring = true AND next_occurrence IS NOT NULL
			AND next_occurrence >= $1 AND next_occurrence <= $2
		ORDER BY next_occurrence, id`

	var txs []domain.Transaction
	err := r.db.SelectContext(ctx, &txs, query, from, to)
	return txs, err
}

func (r *transactionRepository) Totals(ctx context.Context, userID uuid.UUID, from, to time.Time) (*domain.TransactionTotals, error) {
	query := `
		SELECT
			COALESCE(SUM(amount) FILTER (WHERE type = 'income'), 0) AS income,
			COALESCE(SUM(amount) FILTER (WHERE type IN ('expense', 'contribution')), 0) AS expenses,
			COUNT(*) AS count
		FROM transactions
		WHERE user_id = $1 AND date >= $2 AND date < $3`

	var totals domain.TransactionTotals
	if err := r.db.GetContext(ctx, &totals, query, userID, from, to); err != nil {
		return nil, err
	}
	return &totals, nil
}

func (r *transactionRepository) TopCategories(ctx context.Context, userID uuid.UUID, from, to time.Time, limit int) ([]domain.CategorySpend, error) {
	query := `
		SELECT t.category_id, COALESCE(c.category_name, 'Uncategorized') AS category_name,
			SUM(t.amount) AS total, COUNT(*) AS count
		FROM transactions t
		LEFT JOIN categories c ON c.id = t.category_id
		WHERE t.user_id = $1 AND t.type = 'expense' AND t.date >= $2 AND t.date < $3
		GROUP BY t.category_id, c.category_name
		ORDER BY total DESC
		LIMIT $4`

	var spend []domain.CategorySpend
	err := r.db.SelectContext(ctx, &spend, query, userID, from, to, limit)
	return spend, err
}

func (r *transactionRepository) ListUserIDsWithActivity(ctx context.Context, from, to time.Time) ([]uuid.UUID, error) {
	query := `SELECT DISTINCT user_id FROM transactions WHERE date >= $1 AND date < $2`

	var ids []uuid.UUID
	err := r.db.SelectContext(ctx, &ids, query, from, to)
	return ids, err
}
