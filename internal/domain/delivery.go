package domain

import (
	"time"

	"github.com/google/uuid"
)

type DeliveryMethod string

const (
	DeliveryInApp DeliveryMethod = "in_app"
	DeliveryEmail DeliveryMethod = "email"
	DeliveryPush  DeliveryMethod = "push"
)

type DeliveryStatus string

const (
	DeliveryPending   DeliveryStatus = "pending"
	DeliverySent      DeliveryStatus = "sent"
	DeliveryDelivered DeliveryStatus = "delivered"
	DeliveryFailed    DeliveryStatus = "failed"
	DeliveryBounced   DeliveryStatus = "bounced"
)

type DeliveryLog struct {
	ID             uuid.UUID      `json:"id" db:"id"`
	NotificationID uuid.UUID      `json:"notification_id" db:"notification_id"`
	UserID         uuid.UUID      `json:"user_id" db:"user_id"`
	Method         DeliveryMethod `json:"delivery_method" db:"delivery_method"`
	Status         DeliveryStatus `json:"delivery_status" db:"delivery_status"`
	AttemptedAt    time.Time      `json:"attempted_at" db:"attempted_at"`
	DeliveredAt    *time.Time     `json:"delivered_at,omitempty" db:"delivered_at"`
	ErrorMessage   *string        `json:"error_message,omitempty" db:"error_message"`
	RetryCount     int            `json:"retry_count" db:"retry_count"`
}
