package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"budgetme-notifications/internal/domain"
)

type DeliveryLogRepository interface {
	Create(ctx context.Context, log *domain.DeliveryLog) error
	ListByNotification(ctx context.Context, notificationID, userID uuid.UUID) ([]domain.DeliveryLog, error)
}

type deliveryLogRepository struct {
	db *sqlx.DB
}

func NewDeliveryLogRepository(db *sqlx.DB) DeliveryLogRepository {
	return &deliveryLogRepository{db: db}
}

func (r *deliveryLogRepository) Create(ctx context.Context, log *domain.DeliveryLog) error {
	query := `
		INSERT INTO notification_delivery_logs (
			id, notification_id, user_id, delivery_method, delivery_status,
			attempted_at, delivered_at, error_message, retry_count
		)
		VALUES (:id, :notification_id, :user_id, :delivery_method, :delivery_status,
			:attempted_at, :delivered_at, :error_message, :retry_count)`

	_, err := r.db.NamedExecContext(ctx, query, log)
	return err
}

func (r *deliveryLogRepository) ListByNotification(ctx context.Context, notificationID, userID uuid.UUID) ([]domain.DeliveryLog, error) {
	query := `
		SELECT * FROM notification_delivery_logs
		WHERE notification_id = $1 AND user_id = $2
		ORDER BY attempted_at`

	logs := []domain.DeliveryLog{}
	err := r.db.SelectContext(ctx, &logs, query, notificationID, userID)
	return logs, err
}
