package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"budgetme-notifications/internal/domain"
)

// NotificationStore covers the notification service methods the filter engine
// persists through.
type NotificationStore struct {
	mock.Mock
}

func (m *NotificationStore) GetNotificationPreferences(ctx context.Context, userID uuid.UUID) (*domain.NotificationPreferences, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.NotificationPreferences), args.Error(1)
}

func (m *NotificationStore) MarkMultipleAsRead(ctx context.Context, ids []uuid.UUID, userID uuid.UUID) (int64, error) {
	args := m.Called(ctx, ids, userID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *NotificationStore) SaveContent(ctx context.Context, n *domain.Notification) error {
	args := m.Called(ctx, n)
	return args.Error(0)
}
