package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"budgetme-notifications/internal/domain"
)

type TemplateRepository interface {
	// GetActive returns nil, nil when no active stored template exists.
	GetActive(ctx context.Context, typ domain.NotificationType, event domain.EventType) (*domain.NotificationTemplate, error)
}

type templateRepository struct {
	db *sqlx.DB
}

func NewTemplateRepository(db *sqlx.DB) TemplateRepository {
	return &templateRepository{db: db}
}

func (r *templateRepository) GetActive(ctx context.Context, typ domain.NotificationType, event domain.EventType) (*domain.NotificationTemplate, error) {
	var t domain.NotificationTemplate
	query := `
		SELECT * FROM notification_templates
		WHERE notification_type = $1 AND event_type = $2 AND is_active = true
		ORDER BY updated_at DESC
		LIMIT 1`

	err := r.db.GetContext(ctx, &t, query, typ, event)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}
