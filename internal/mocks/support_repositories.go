package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"budgetme-notifications/internal/domain"
)

type PreferencesRepository struct {
	mock.Mock
}

func (m *PreferencesRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.NotificationPreferences, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.NotificationPreferences), args.Error(1)
}

func (m *PreferencesRepository) Create(ctx context.Context, p *domain.NotificationPreferences) (*domain.NotificationPreferences, error) {
	args := m.Called(ctx, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.NotificationPreferences), args.Error(1)
}

func (m *PreferencesRepository) Update(ctx context.Context, p *domain.NotificationPreferences) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

type TemplateRepository struct {
	mock.Mock
}

func (m *TemplateRepository) GetActive(ctx context.Context, typ domain.NotificationType, event domain.EventType) (*domain.NotificationTemplate, error) {
	args := m.Called(ctx, typ, event)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.NotificationTemplate), args.Error(1)
}

type DeliveryLogRepository struct {
	mock.Mock
}

func (m *DeliveryLogRepository) Create(ctx context.Context, log *domain.DeliveryLog) error {
	args := m.Called(ctx, log)
	return args.Error(0)
}

func (m *DeliveryLogRepository) ListByNotification(ctx context.Context, notificationID, userID uuid.UUID) ([]domain.DeliveryLog, error) {
	args := m.Called(ctx, notificationID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.DeliveryLog), args.Error(1)
}

type LedgerRepository struct {
	mock.Mock
}

func (m *LedgerRepository) Claim(ctx context.Context, entry *domain.LedgerEntry) (bool, error) {
	args := m.Called(ctx, entry)
	return args.Bool(0), args.Error(1)
}

func (m *LedgerRepository) Release(ctx context.Context, dedupKey string) error {
	args := m.Called(ctx, dedupKey)
	return args.Error(0)
}

func (m *LedgerRepository) DeleteOlderThan(ctx context.Context, days int) (int64, error) {
	args := m.Called(ctx, days)
	return args.Get(0).(int64), args.Error(1)
}

type ProfileRepository struct {
	mock.Mock
}

func (m *ProfileRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Profile, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Profile), args.Error(1)
}

func (m *ProfileRepository) GetByEmail(ctx context.Context, email string) (*domain.Profile, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Profile), args.Error(1)
}
