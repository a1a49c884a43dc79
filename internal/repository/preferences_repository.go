package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"budgetme-notifications/internal/domain"
)

type PreferencesRepository interface {
	GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.NotificationPreferences, error)
	// Create inserts the row unless one already exists for the user, and
	// returns whichever row is stored afterwards.
	Create(ctx context.Context, p *domain.NotificationPreferences) (*domain.NotificationPreferences, error)
	Update(ctx context.Context, p *domain.NotificationPreferences) error
}

type preferencesRepository struct {
	db *sqlx.DB
}

func NewPreferencesRepository(db *sqlx.DB) PreferencesRepository {
	return &preferencesRepository{db: db}
}

func (r *preferencesRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.NotificationPreferences, error) {
	var p domain.NotificationPreferences
	query := `SELECT * FROM notification_preferences WHERE user_id = $1`

	err := r.db.GetContext(ctx, &p, query, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *preferencesRepository) Create(ctx context.Context, p *domain.NotificationPreferences) (*domain.NotificationPreferences, error) {
	query := `
		INSERT INTO notification_preferences (
			id, user_id,
			budget_threshold_alerts, budget_exceeded_alerts, budget_expiring_alerts,
			goal_milestone_alerts, goal_deadline_alerts, goal_completed_alerts,
			family_activity_alerts, family_invitation_alerts,
			large_transaction_alerts, low_balance_alerts, category_suggestions,
			recurring_reminders, monthly_summaries, system_announcements,
			in_app_enabled, email_enabled, push_enabled,
			large_transaction_threshold, budget_warning_threshold, low_balance_threshold,
			quiet_hours_enabled, quiet_hours_start, quiet_hours_end, quiet_hours_timezone,
			max_notifications_per_hour
		)
		VALUES (
			:id, :user_id,
			:budget_threshold_alerts, :budget_exceeded_alerts, :budget_expiring_alerts,
			:goal_milestone_alerts, :goal_deadline_alerts, :goal_completed_alerts,
			:family_activity_alerts, :family_invitation_alerts,
			:large_transaction_alerts, :low_balance_alerts, :category_suggestions,
			:recurring_reminders, :monthly_summaries, :system_announcements,
			:in_app_enabled, :email_enabled, :push_enabled,
			:large_transaction_threshold, :budget_warning_threshold, :low_balance_threshold,
			:quiet_hours_enabled, :quiet_hours_start, :quiet_hours_end, :quiet_hours_timezone,
			:max_notifications_per_hour
		)
		ON CONFLICT (user_id) DO NOTHING`

	if _, err := r.db.NamedExecContext(ctx, query, p); err != nil {
		return nil, err
	}
	stored, err := r.GetByUserID(ctx, p.UserID)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, errors.New("preferences row missing after insert")
	}
	return stored, nil
}

func (r *preferencesRepository) Update(ctx context.Context, p *domain.NotificationPreferences) error {
	query := `
		UPDATE notification_preferences SET
			budget_threshold_alerts = :budget_threshold_alerts,
			budget_exceeded_alerts = :budget_exceeded_alerts,
			budget_expiring_alerts = :budget_expiring_alerts,
			goal_milestone_alerts = :goal_milestone_alerts,
			goal_deadline_alerts = :goal_deadline_alerts,
			goal_completed_alerts = :goal_completed_alerts,
			family_activity_alerts = :family_activity_alerts,
			family_invitation_alerts = :family_invitation_alerts,
			large_transaction_alerts = :large_transaction_alerts,
			low_balance_alerts = :low_balance_alerts,
			category_suggestions = :category_suggestions,
			recurring_reminders = :recurring_reminders,
			monthly_summaries = :monthly_summaries,
			system_announcements = :system_announcements,
			in_app_enabled = :in_app_enabled,
			email_enabled = :email_enabled,
			push_enabled = :push_enabled,
			large_transaction_threshold = :large_transaction_threshold,
			budget_warning_threshold = :budget_warning_threshold,
			low_balance_threshold = :low_balance_threshold,
			quiet_hours_enabled = :quiet_hours_enabled,
			quiet_hours_start = :quiet_hours_start,
			quiet_hours_end = :quiet_hours_end,
			quiet_hours_timezone = :quiet_hours_timezone,
			max_notifications_per_hour = :max_notifications_per_hour,
			updated_at = NOW()
		WHERE user_id = :user_id`

	_, err := r.db.NamedExecContext(ctx, query, p)
	return err
}
