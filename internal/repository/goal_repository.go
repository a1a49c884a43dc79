package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"budgetme-notifications/internal/domain"
)

type GoalRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Goal, error)
	ListInProgress(ctx context.Context) ([]domain.Goal, error)
	ListDeadlineCandidates(ctx context.Context, from, to time.Time) ([]domain.Goal, error)
	// ClaimFlag flips the flag from false to true and reports whether this
	// caller made the change.
	ClaimFlag(ctx context.Context, id uuid.UUID, flag domain.GoalFlag) (bool, error)
	ResetFlag(ctx context.Context, id uuid.UUID, flag domain.GoalFlag) (bool, error)
}

type goalRepository struct {
	db *sqlx.DB
}

func NewGoalRepository(db *sqlx.DB) GoalRepository {
	return &goalRepository{db: db}
}

const goalColumns = `id, user_id, family_id, goal_name, target_amount, current_amount, currency,
	target_date, status, is_family_goal, milestone_25_notified, milestone_50_notified,
	milestone_75_notified, goal_completed_notified, deadline_warning_sent, created_at, updated_at`

func (r *goalRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Goal, error) {
	var g domain.Goal
	err := r.db.GetContext(ctx, &g, `SELECT `+goalColumns+` FROM goals WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &g, nil
}

func (r *goalRepository) ListInProgress(ctx context.Context) ([]domain.Goal, error) {
	query := `
		SELECT ` + goalColumns + ` FROM goals
		WHERE status IN ('in_progress', 'completed') AND target_amount > 0
			AND NOT (milestone_25_notified AND milestone_50_notified AND milestone_75_notified AND goal_completed_notified)
		ORDER BY id`

	var goals []domain.Goal
	err := r.db.SelectContext(ctx, &goals, query)
	return goals, err
}

func (r *goalRepository) ListDeadlineCandidates(ctx context.Context, from, to time.Time) ([]domain.Goal, error) {
	query := `
		SELECT ` + goalColumns + ` FROM goals
		WHERE status = 'in_progress' AND deadline_warning_sent = false
			AND target_date IS NOT NULL AND target_date >= $1 AND target_date <= $2
		ORDER BY target_date, id`

	var goals []domain.Goal
	err := r.db.SelectContext(ctx, &goals, query, from, to)
	return goals, err
}

func (r *goalRepository) ClaimFlag(ctx context.Context, id uuid.UUID, flag domain.GoalFlag) (bool, error) {
	if !flag.IsValid() {
		return false, fmt.Errorf("unknown goal flag %q", flag)
	}
	query := fmt.Sprintf(`UPDATE goals SET %[1]s = true WHERE id = $1 AND %[1]s = false`, flag)
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

func (r *goalRepository) ResetFlag(ctx context.Context, id uuid.UUID, flag domain.GoalFlag) (bool, error) {
	if !flag.IsValid() {
		return false, fmt.Errorf("unknown goal flag %q", flag)
	}
	query := fmt.Sprintf(`UPDATE goals SET %s = false WHERE id = $1`, flag)
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}
