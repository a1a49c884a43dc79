package detector

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"budgetme-notifications/internal/domain"
)

func testBudget(amount, spent int64) domain.Budget {
	return domain.Budget{
		ID:             uuid.New(),
		UserID:         uuid.New(),
		BudgetName:     "Groceries",
		Amount:         decimal.NewFromInt(amount),
		Spent:          decimal.NewFromInt(spent),
		Status:         "active",
		AlertThreshold: 0.8,
		AlertEnabled:   true,
		EndDate:        time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC),
	}
}

func TestCheckBudgetThresholds(t *testing.T) {
	f := newFixture()
	d := f.budgetDetector()

	warn := testBudget(500, 425)
	under := testBudget(500, 100)
	over := testBudget(500, 600)

	f.budgets.On("ListAlertable", mock.Anything).Return([]domain.Budget{warn, under, over}, nil).Once()
	f.expectPrefs(warn.UserID, defaultPrefs(warn.UserID))
	f.expectPrefs(under.UserID, defaultPrefs(under.UserID))
	f.expectPrefs(over.UserID, defaultPrefs(over.UserID))
	f.budgets.On("ClaimAlert", mock.Anything, warn.ID, domain.AlertKindThreshold, f.now, f.now.Add(-24*time.Hour)).
		Return(true, nil).Once()
	f.notifier.On("CreateNotification", mock.Anything, mock.MatchedBy(func(in domain.CreateNotificationInput) bool {
		return in.UserID == warn.UserID &&
			in.EventType == domain.EventBudgetThresholdWarning &&
			in.Related == domain.BudgetEntity(warn.ID) &&
			in.TemplateData["percentage"] == 85 &&
			in.TemplateData["remaining"] == "75.00"
	})).Return(&domain.Notification{}, nil).Once()

	sent, err := d.CheckBudgetThresholds(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	f.assertExpectations(t)
}

func TestCheckBudgetThresholds_CooldownHeld(t *testing.T) {
	f := newFixture()
	d := f.budgetDetector()
	b := testBudget(100, 90)

	f.budgets.On("ListAlertable", mock.Anything).Return([]domain.Budget{b}, nil).Once()
	f.expectPrefs(b.UserID, defaultPrefs(b.UserID))
	f.budgets.On("ClaimAlert", mock.Anything, b.ID, domain.AlertKindThreshold, f.now, f.now.Add(-24*time.Hour)).
		Return(false, nil).Once()

	sent, err := d.CheckBudgetThresholds(context.Background())
	require.NoError(t, err)
	assert.Zero(t, sent)
	f.assertExpectations(t)
}

func TestCheckBudgetThresholds_PreferenceOffSkipsClaim(t *testing.T) {
	f := newFixture()
	d := f.budgetDetector()
	b := testBudget(100, 90)

	prefs := defaultPrefs(b.UserID)
	prefs.BudgetThresholdAlerts = false
	f.budgets.On("ListAlertable", mock.Anything).Return([]domain.Budget{b}, nil).Once()
	f.expectPrefs(b.UserID, prefs)

	sent, err := d.CheckBudgetThresholds(context.Background())
	require.NoError(t, err)
	assert.Zero(t, sent)
	f.budgets.AssertNotCalled(t, "ClaimAlert", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.assertExpectations(t)
}

func TestCheckBudgetsExceeded_ReleasesClaimWhenEmitFails(t *testing.T) {
	f := newFixture()
	d := f.budgetDetector()

	b := testBudget(200, 260)
	prevSent := f.now.Add(-48 * time.Hour)
	prevType := domain.AlertKindThreshold
	b.LastAlertSent = &prevSent
	b.LastAlertType = &prevType

	f.budgets.On("ListAlertable", mock.Anything).Return([]domain.Budget{b}, nil).Once()
	f.expectPrefs(b.UserID, defaultPrefs(b.UserID))
	f.budgets.On("ClaimAlert", mock.Anything, b.ID, domain.AlertKindExceeded, f.now, f.now.Add(-6*time.Hour)).
		Return(true, nil).Once()
	f.expectEmit(b.UserID, domain.EventBudgetExceeded, assert.AnError)
	f.budgets.On("ReleaseAlert", mock.Anything, b.ID, f.now, &prevSent, &prevType).Return(nil).Once()

	sent, err := d.CheckBudgetsExceeded(context.Background())
	require.NoError(t, err)
	assert.Zero(t, sent)
	f.assertExpectations(t)
}

func TestCheckBudget_RoutesByUtilization(t *testing.T) {
	f := newFixture()
	d := f.budgetDetector()

	b := testBudget(100, 100)
	f.expectPrefs(b.UserID, defaultPrefs(b.UserID))
	f.budgets.On("ClaimAlert", mock.Anything, b.ID, domain.AlertKindExceeded, f.now, f.now.Add(-6*time.Hour)).
		Return(true, nil).Once()
	f.expectEmit(b.UserID, domain.EventBudgetExceeded, nil)

	require.NoError(t, d.CheckBudget(context.Background(), &b))
	require.NotNil(t, b.LastAlertType)
	assert.Equal(t, domain.AlertKindExceeded, *b.LastAlertType)

	disabled := testBudget(100, 100)
	disabled.AlertEnabled = false
	require.NoError(t, d.CheckBudget(context.Background(), &disabled))
	f.assertExpectations(t)
}

func TestCheckBudgetsExpiring_OncePerPeriod(t *testing.T) {
	f := newFixture()
	d := f.budgetDetector()
	b := testBudget(300, 120)

	f.budgets.On("ListEndingBetween", mock.Anything, f.now, f.now.Add(72*time.Hour)).
		Return([]domain.Budget{b, b}, nil).Once()
	f.expectPrefs(b.UserID, defaultPrefs(b.UserID))
	f.expectPrefs(b.UserID, defaultPrefs(b.UserID))
	f.ledger.On("Claim", mock.Anything, mock.MatchedBy(func(e *domain.LedgerEntry) bool {
		return e.EntityID == b.ID && e.EventType == domain.EventBudgetPeriodExpiring
	})).Return(true, nil).Once()
	f.ledger.On("Claim", mock.Anything, mock.Anything).Return(false, nil).Once()
	f.notifier.On("CreateNotification", mock.Anything, mock.MatchedBy(func(in domain.CreateNotificationInput) bool {
		return in.EventType == domain.EventBudgetPeriodExpiring && in.TemplateData["days_left"] == 2
	})).Return(&domain.Notification{}, nil).Once()

	sent, err := d.CheckBudgetsExpiring(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	f.assertExpectations(t)
}

func TestBudgetMonthlySummaries(t *testing.T) {
	f := newFixture()
	d := f.budgetDetector()
	userID := uuid.New()
	from := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)

	f.budgets.On("ListUserIDsActiveBetween", mock.Anything, from, to).Return([]uuid.UUID{userID}, nil).Once()
	f.expectPrefs(userID, defaultPrefs(userID))
	f.ledger.On("Claim", mock.Anything, mock.MatchedBy(func(e *domain.LedgerEntry) bool {
		return e.UserID == userID && e.EventType == domain.EventBudgetMonthlySummary
	})).Return(true, nil).Once()
	f.budgets.On("SummaryLines", mock.Anything, userID, from, to).Return([]domain.BudgetSummaryLine{
		{BudgetID: uuid.New(), BudgetName: "Rent", Amount: decimal.NewFromInt(1000), Spent: decimal.NewFromInt(1000)},
		{BudgetID: uuid.New(), BudgetName: "Fun", Amount: decimal.NewFromInt(200), Spent: decimal.NewFromInt(50)},
	}, nil).Once()
	f.reports.On("ArchiveSummary", mock.Anything, mock.MatchedBy(func(s *domain.MonthlySummary) bool {
		return s.Kind == domain.SummaryBudget && s.Month == "2024-05" && len(s.Budgets) == 2 &&
			s.Budgets[0].Exceeded && s.Budgets[1].Percentage == 25
	})).Return("summaries/x/2024-05/budget.json", nil).Once()
	f.notifier.On("CreateNotification", mock.Anything, mock.MatchedBy(func(in domain.CreateNotificationInput) bool {
		return in.EventType == domain.EventBudgetMonthlySummary &&
			in.TemplateData["exceeded_count"] == 1 &&
			in.Metadata["report_path"] == "summaries/x/2024-05/budget.json"
	})).Return(&domain.Notification{}, nil).Once()

	sent, err := d.GenerateMonthlySummaries(context.Background(), time.Date(2024, 5, 20, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	f.assertExpectations(t)
}
