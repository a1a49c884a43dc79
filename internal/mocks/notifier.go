package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"budgetme-notifications/internal/domain"
)

// Notifier satisfies the subset of the notification service used by detectors.
type Notifier struct {
	mock.Mock
}

func (m *Notifier) CreateNotification(ctx context.Context, in domain.CreateNotificationInput) (*domain.Notification, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Notification), args.Error(1)
}

func (m *Notifier) GetNotificationPreferences(ctx context.Context, userID uuid.UUID) (*domain.NotificationPreferences, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.NotificationPreferences), args.Error(1)
}
