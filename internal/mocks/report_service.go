package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"budgetme-notifications/internal/domain"
)

type ReportService struct {
	mock.Mock
}

func (m *ReportService) ArchiveSummary(ctx context.Context, summary *domain.MonthlySummary) (string, error) {
	args := m.Called(ctx, summary)
	return args.String(0), args.Error(1)
}
