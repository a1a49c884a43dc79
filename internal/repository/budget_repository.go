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

type BudgetRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Budget, error)
	ListAlertable(ctx context.Context) ([]domain.Budget, error)
	ListEndingBetween(ctx context.Context, from, to time.Time) ([]domain.Budget, error)
	// ClaimAlert stamps last_alert_sent/last_alert_type if the cooldown allows
	// it and reports whether this caller won the claim. An exceeded alert is
	// also allowed when the previous alert was of another kind.
	ClaimAlert(ctx context.Context, id uuid.UUID, kind string, now, cutoff time.Time) (bool, error)
	// ReleaseAlert undoes a claim made at claimedAt, restoring the previous stamp.
	ReleaseAlert(ctx context.Context, id uuid.UUID, claimedAt time.Time, prevSent *time.Time, prevType *string) error
	SummaryLines(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]domain.BudgetSummaryLine, error)
	ListUserIDsActiveBetween(ctx context.Context, from, to time.Time) ([]uuid.UUID, error)
}

type budgetRepository struct {
	db *sqlx.DB
}

func NewBudgetRepository(db *sqlx.DB) BudgetRepository {
	return &budgetRepository{db: db}
}

const budgetColumns = `id, user_id, budget_name, category_id, amount, spent, currency, period,
	start_date, end_date, status, alert_threshold, alert_enabled, last_alert_sent, last_alert_type,
	created_at, updated_at`

func (r *budgetRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Budget, error) {
	var b domain.Budget
	err := r.db.GetContext(ctx, &b, `SELECT `+budgetColumns+` FROM budgets WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *budgetRepository) ListAlertable(ctx context.Context) ([]domain.Budget, error) {
	query := `
		SELECT ` + budgetColumns + ` FROM budgets
		WHERE status = 'active' AND alert_enabled = true AND amount > 0
			AND start_date <= NOW() AND end_date >= NOW()
		ORDER BY user_id, id`

	var budgets []domain.Budget
	err := r.db.SelectContext(ctx, &budgets, query)
	return budgets, err
}

func (r *budgetRepository) ListEndingBetween(ctx context.Context, from, to time.Time) ([]domain.Budget, error) {
	query := `
		SELECT ` + budgetColumns + ` FROM budgets
		WHERE status = 'active' AND end_date >= $1 AND end_date <= $2
		ORDER BY end_date, id`

	var budgets []domain.Budget
	err := r.db.SelectContext(ctx, &budgets, query, from, to)
	return budgets, err
}

func (r *budgetRepository) ClaimAlert(ctx context.Context, id uuid.UUID, kind string, now, cutoff time.Time) (bool, error) {
	query := `
		UPDATE budgets SET last_alert_sent = $3, last_alert_type = $2
		WHERE id = $1 AND (
			last_alert_sent IS NULL
			OR last_alert_sent < $4
			OR ($2 = 'exceeded' AND last_alert_type IS DISTINCT FROM 'exceeded')
		)`

	res, err := r.db.ExecContext(ctx, query, id, kind, now, cutoff)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

func (r *budgetRepository) ReleaseAlert(ctx context.Context, id uuid.UUID, claimedAt time.Time, prevSent *time.Time, prevType *string) error {
	query := `
		UPDATE budgets SET last_alert_sent = $3, last_alert_type = $4
		WHERE id = $1 AND last_alert_sent = $2`
	_, err := r.db.ExecContext(ctx, query, id, claimedAt, prevSent, prevType)
	return err
}

func (r *budgetRepository) SummaryLines(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]domain.BudgetSummaryLine, error) {
	query := `
		SELECT id, budget_name, amount, spent FROM budgets
		WHERE user_id = $1 AND start_date < $3 AND end_date >= $2
		ORDER BY budget_name`

	var lines []domain.BudgetSummaryLine
	err := r.db.SelectContext(ctx, &lines, query, userID, from, to)
	return lines, err
}

func (r *budgetRepository) ListUserIDsActiveBetween(ctx context.Context, from, to time.Time) ([]uuid.UUID, error) {
	query := `SELECT DISTINCT user_id FROM budgets WHERE start_date < $2 AND end_date >= $1`

	var ids []uuid.UUID
	err := r.db.SelectContext(ctx, &ids, query, from, to)
	return ids, err
}
