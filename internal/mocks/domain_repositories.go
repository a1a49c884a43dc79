package mocks

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"budgetme-notifications/internal/domain"
)

type BudgetRepository struct {
	mock.Mock
}

func (m *BudgetRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Budget, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Budget), args.Error(1)
}

func (m *BudgetRepository) ListAlertable(ctx context.Context) ([]domain.Budget, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Budget), args.Error(1)
}

func (m *BudgetRepository) ListEndingBetween(ctx context.Context, from, to time.Time) ([]domain.Budget, error) {
	args := m.Called(ctx, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Budget), args.Error(1)
}

func (m *BudgetRepository) ClaimAlert(ctx context.Context, id uuid.UUID, kind string, now, cutoff time.Time) (bool, error) {
	args := m.Called(ctx, id, kind, now, cutoff)
	return args.Bool(0), args.Error(1)
}

func (m *BudgetRepository) ReleaseAlert(ctx context.Context, id uuid.UUID, claimedAt time.Time, prevSent *time.Time, prevType *string) error {
	args := m.Called(ctx, id, claimedAt, prevSent, prevType)
	return args.Error(0)
}

func (m *BudgetRepository) SummaryLines(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]domain.BudgetSummaryLine, error) {
	args := m.Called(ctx, userID, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.BudgetSummaryLine), args.Error(1)
}

func (m *BudgetRepository) ListUserIDsActiveBetween(ctx context.Context, from, to time.Time) ([]uuid.UUID, error) {
	args := m.Called(ctx, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]uuid.UUID), args.Error(1)
}

type GoalRepository struct {
	mock.Mock
}

func (m *GoalRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Goal, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Goal), args.Error(1)
}

func (m *GoalRepository) ListInProgress(ctx context.Context) ([]domain.Goal, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Goal), args.Error(1)
}

func (m *GoalRepository) ListDeadlineCandidates(ctx context.Context, from, to time.Time) ([]domain.Goal, error) {
	args := m.Called(ctx, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Goal), args.Error(1)
}

func (m *GoalRepository) ClaimFlag(ctx context.Context, id uuid.UUID, flag domain.GoalFlag) (bool, error) {
	args := m.Called(ctx, id, flag)
	return args.Bool(0), args.Error(1)
}

func (m *GoalRepository) ResetFlag(ctx context.Context, id uuid.UUID, flag domain.GoalFlag) (bool, error) {
	args := m.Called(ctx, id, flag)
	return args.Bool(0), args.Error(1)
}

type FamilyRepository struct {
	mock.Mock
}

func (m *FamilyRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Family, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Family), args.Error(1)
}

func (m *FamilyRepository) ListActiveMembers(ctx context.Context, familyID uuid.UUID) ([]domain.FamilyMember, error) {
	args := m.Called(ctx, familyID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.FamilyMember), args.Error(1)
}

type TransactionRepository struct {
	mock.Mock
}

func (m *TransactionRepository) GetAccount(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Account), args.Error(1)
}

func (m *TransactionRepository) ListCategorizedSamples(ctx context.Context, userID uuid.UUID, limit int) ([]domain.CategorizedTransaction, error) {
	args := m.Called(ctx, userID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.CategorizedTransaction), args.Error(1)
}

func (m *TransactionRepository) ListRecurringDue(ctx context.Context, from, to time.Time) ([]domain.Transaction, error) {
	args := m.Called(ctx, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Transaction), args.Error(1)
}

func (m *TransactionRepository) Totals(ctx context.Context, userID uuid.UUID, from, to time.Time) (*domain.TransactionTotals, error) {
	args := m.Called(ctx, userID, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.TransactionTotals), args.Error(1)
}

func (m *TransactionRepository) TopCategories(ctx context.Context, userID uuid.UUID, from, to time.Time, limit int) ([]domain.CategorySpend, error) {
	args := m.Called(ctx, userID, from, to, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.CategorySpend), args.Error(1)
}

func (m *TransactionRepository) ListUserIDsWithActivity(ctx context.Context, from, to time.Time) ([]uuid.UUID, error) {
	args := m.Called(ctx, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]uuid.UUID), args.Error(1)
}
