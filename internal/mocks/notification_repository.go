package mocks

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"budgetme-notifications/internal/domain"
)

type NotificationRepository struct {
	mock.Mock
}

func (m *NotificationRepository) Create(ctx context.Context, n *domain.Notification) error {
	args := m.Called(ctx, n)
	return args.Error(0)
}

func (m *NotificationRepository) GetByID(ctx context.Context, id, userID uuid.UUID) (*domain.Notification, error) {
	args := m.Called(ctx, id, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Notification), args.Error(1)
}

func (m *NotificationRepository) List(ctx context.Context, userID uuid.UUID, q domain.NotificationQuery) ([]*domain.Notification, int64, error) {
	args := m.Called(ctx, userID, q)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]*domain.Notification), args.Get(1).(int64), args.Error(2)
}

func (m *NotificationRepository) ListUnreadSince(ctx context.Context, userID uuid.UUID, since time.Time) ([]*domain.Notification, error) {
	args := m.Called(ctx, userID, since)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Notification), args.Error(1)
}

func (m *NotificationRepository) MarkAsRead(ctx context.Context, id, userID uuid.UUID) (bool, error) {
	args := m.Called(ctx, id, userID)
	return args.Bool(0), args.Error(1)
}

func (m *NotificationRepository) MarkAllAsRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *NotificationRepository) MarkManyAsRead(ctx context.Context, ids []uuid.UUID, userID uuid.UUID) (int64, error) {
	args := m.Called(ctx, ids, userID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *NotificationRepository) MarkClicked(ctx context.Context, id, userID uuid.UUID) (bool, error) {
	args := m.Called(ctx, id, userID)
	return args.Bool(0), args.Error(1)
}

func (m *NotificationRepository) MarkDelivered(ctx context.Context, id uuid.UUID, at time.Time) error {
	args := m.Called(ctx, id, at)
	return args.Error(0)
}

func (m *NotificationRepository) UpdateContent(ctx context.Context, n *domain.Notification) error {
	args := m.Called(ctx, n)
	return args.Error(0)
}

func (m *NotificationRepository) Delete(ctx context.Context, id, userID uuid.UUID) (bool, error) {
	args := m.Called(ctx, id, userID)
	return args.Bool(0), args.Error(1)
}

func (m *NotificationRepository) DeleteExpiredByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *NotificationRepository) DeleteExpiredRead(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *NotificationRepository) CountUnread(ctx context.Context, userID uuid.UUID) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *NotificationRepository) Counts(ctx context.Context, userID uuid.UUID) (*domain.NotificationCounts, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.NotificationCounts), args.Error(1)
}

func (m *NotificationRepository) CountCreatedSince(ctx context.Context, userID uuid.UUID, since time.Time, exclude []uuid.UUID) (int64, error) {
	args := m.Called(ctx, userID, since, exclude)
	return args.Get(0).(int64), args.Error(1)
}

func (m *NotificationRepository) Analytics(ctx context.Context, userID uuid.UUID, since time.Time) ([]domain.AnalyticsRow, error) {
	args := m.Called(ctx, userID, since)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.AnalyticsRow), args.Error(1)
}
