package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"budgetme-notifications/internal/domain"
)

type EmailService struct {
	mock.Mock
}

func (m *EmailService) SendNotificationEmail(ctx context.Context, toEmail, recipientName string, n *domain.Notification) error {
	args := m.Called(ctx, toEmail, recipientName, n)
	return args.Error(0)
}
