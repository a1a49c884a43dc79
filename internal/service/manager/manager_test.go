package manager

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"budgetme-notifications/internal/config"
	"budgetme-notifications/internal/domain"
	"budgetme-notifications/internal/mocks"
	"budgetme-notifications/internal/realtime"
	"budgetme-notifications/internal/service/detector"
	"budgetme-notifications/internal/service/notification"
)

type budgetDetector struct{ mock.Mock }

func (m *budgetDetector) CheckBudgetThresholds(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *budgetDetector) CheckBudgetsExceeded(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *budgetDetector) CheckBudgetsExpiring(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *budgetDetector) CheckBudget(ctx context.Context, budget *domain.Budget) error {
	return m.Called(ctx, budget).Error(0)
}

func (m *budgetDetector) GenerateMonthlySummaries(ctx context.Context, month time.Time) (int, error) {
	args := m.Called(ctx, month)
	return args.Int(0), args.Error(1)
}

type goalDetector struct{ mock.Mock }

func (m *goalDetector) CheckGoalMilestones(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *goalDetector) CheckGoal(ctx context.Context, goal *domain.Goal) (int, error) {
	args := m.Called(ctx, goal)
	return args.Int(0), args.Error(1)
}

func (m *goalDetector) CheckGoalDeadlines(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *goalDetector) ResetDeadlineWarning(ctx context.Context, goalID uuid.UUID) error {
	return m.Called(ctx, goalID).Error(0)
}

func (m *goalDetector) HandleStatusChange(ctx context.Context, old, updated *domain.Goal) error {
	return m.Called(ctx, old, updated).Error(0)
}

type familyDetector struct{ mock.Mock }

func (m *familyDetector) HandleInvitationCreated(ctx context.Context, inv *domain.FamilyInvitation) error {
	return m.Called(ctx, inv).Error(0)
}

func (m *familyDetector) HandleInvitationUpdated(ctx context.Context, old, updated *domain.FamilyInvitation) error {
	return m.Called(ctx, old, updated).Error(0)
}

func (m *familyDetector) HandleMemberJoined(ctx context.Context, member *domain.FamilyMember) (int, error) {
	args := m.Called(ctx, member)
	return args.Int(0), args.Error(1)
}

func (m *familyDetector) HandleMemberLeft(ctx context.Context, member *domain.FamilyMember) (int, error) {
	args := m.Called(ctx, member)
	return args.Int(0), args.Error(1)
}

func (m *familyDetector) NotifyFamilyMembers(ctx context.Context, familyID, actorID uuid.UUID, exclude []uuid.UUID, build func(domain.FamilyMember) domain.CreateNotificationInput) (int, error) {
	args := m.Called(ctx, familyID, actorID, exclude)
	return args.Int(0), args.Error(1)
}

type transactionDetector struct{ mock.Mock }

func (m *transactionDetector) HandleTransactionCreated(ctx context.Context, tx *domain.Transaction) (int, error) {
	args := m.Called(ctx, tx)
	return args.Int(0), args.Error(1)
}

func (m *transactionDetector) CheckRecurringReminders(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *transactionDetector) GenerateMonthlySummaries(ctx context.Context, month time.Time) (int, error) {
	args := m.Called(ctx, month)
	return args.Int(0), args.Error(1)
}

// notificationService stubs the two calls the manager makes; anything else
// panics on the nil embedded interface.
type notificationService struct {
	notification.Service
	mock.Mock
}

func (m *notificationService) CleanupExpired(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *notificationService) SubscribeToNotifications(ctx context.Context, userID uuid.UUID, fn func(context.Context, notification.Change)) (func(), error) {
	args := m.Called(ctx, userID)
	var unsubscribe func()
	if f := args.Get(0); f != nil {
		unsubscribe = f.(func())
	}
	return unsubscribe, args.Error(1)
}

type fixture struct {
	m           *manager
	hub         *realtime.Hub
	notifs      *notificationService
	ledger      *mocks.LedgerRepository
	budget      *budgetDetector
	goal        *goalDetector
	family      *familyDetector
	transaction *transactionDetector
	now         time.Time
	sleeps      []time.Duration
}

func newFixture() *fixture {
	f := &fixture{
		hub:         realtime.NewHub(8),
		notifs:      new(notificationService),
		ledger:      new(mocks.LedgerRepository),
		budget:      new(budgetDetector),
		goal:        new(goalDetector),
		family:      new(familyDetector),
		transaction: new(transactionDetector),
		now:         time.Date(2024, 6, 15, 9, 0, 0, 0, time.UTC),
	}
	f.m = newManager(Deps{
		Notifications: f.notifs,
		Detectors: &detector.Detectors{
			Budget:      f.budget,
			Goal:        f.goal,
			Family:      f.family,
			Transaction: f.transaction,
		},
		Ledger: f.ledger,
		Hub:    f.hub,
		Config: config.DefaultNotificationConfig(),
	})
	f.m.now = func() time.Time { return f.now }
	f.m.sleep = func(_ context.Context, d time.Duration) error {
		f.sleeps = append(f.sleeps, d)
		return nil
	}
	return f
}

func (f *fixture) assertExpectations(t *testing.T) {
	f.notifs.AssertExpectations(t)
	f.ledger.AssertExpectations(t)
	f.budget.AssertExpectations(t)
	f.goal.AssertExpectations(t)
	f.family.AssertExpectations(t)
	f.transaction.AssertExpectations(t)
}

func (f *fixture) expectSweeps() {
	f.budget.On("CheckBudgetThresholds", mock.Anything).Return(1, nil).Once()
	f.budget.On("CheckBudgetsExceeded", mock.Anything).Return(0, nil).Once()
	f.budget.On("CheckBudgetsExpiring", mock.Anything).Return(2, nil).Once()
	f.goal.On("CheckGoalMilestones", mock.Anything).Return(0, nil).Once()
	f.goal.On("CheckGoalDeadlines", mock.Anything).Return(0, nil).Once()
	f.transaction.On("CheckRecurringReminders", mock.Anything).Return(3, nil).Once()
}

func taskNames(results []TaskResult) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.Task
	}
	return out
}

func change(t *testing.T, table string, typ realtime.ChangeType, old, updated any) realtime.ChangeEvent {
	t.Helper()
	ev := realtime.ChangeEvent{Table: table, Type: typ}
	if old != nil {
		raw, err := json.Marshal(old)
		require.NoError(t, err)
		ev.Old = raw
	}
	if updated != nil {
		raw, err := json.Marshal(updated)
		require.NoError(t, err)
		ev.New = raw
	}
	return ev
}

func TestRunScheduledTasks(t *testing.T) {
	f := newFixture()
	f.expectSweeps()

	results := f.m.RunScheduledTasks(context.Background())
	assert.Equal(t, []string{
		"budget_thresholds", "budgets_exceeded", "budgets_expiring",
		"goal_milestones", "goal_deadlines", "recurring_reminders",
	}, taskNames(results))
	assert.Equal(t, 1, results[0].Count)
	assert.Equal(t, 3, results[5].Count)
	for _, r := range results {
		assert.Empty(t, r.Error)
	}
	f.assertExpectations(t)
}

func TestRunScheduledTasks_MonthlySummariesOnFirstDay(t *testing.T) {
	f := newFixture()
	f.now = time.Date(2024, 7, 1, 0, 30, 0, 0, time.UTC)
	june := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	f.expectSweeps()
	f.budget.On("GenerateMonthlySummaries", mock.Anything, june).Return(4, nil).Once()
	f.transaction.On("GenerateMonthlySummaries", mock.Anything, june).Return(5, nil).Once()

	results := f.m.RunScheduledTasks(context.Background())
	require.Len(t, results, 8)
	assert.Equal(t, "budget_monthly_summaries", results[6].Task)
	assert.Equal(t, 5, results[7].Count)
	f.assertExpectations(t)
}

func TestRunScheduledTasks_RetriesAndSkipsFailures(t *testing.T) {
	f := newFixture()
	f.budget.On("CheckBudgetThresholds", mock.Anything).Return(0, assert.AnError).Once()
	f.budget.On("CheckBudgetThresholds", mock.Anything).Return(2, nil).Once()
	f.budget.On("CheckBudgetsExceeded", mock.Anything).Return(0, assert.AnError).Times(4)
	f.budget.On("CheckBudgetsExpiring", mock.Anything).Return(0, nil).Once()
	f.goal.On("CheckGoalMilestones", mock.Anything).
		Return(0, &domain.NotFoundError{Entity: "goal", ID: "x"}).Once()
	f.goal.On("CheckGoalDeadlines", mock.Anything).Return(1, nil).Once()
	f.transaction.On("CheckRecurringReminders", mock.Anything).Return(0, nil).Once()

	results := f.m.RunScheduledTasks(context.Background())
	require.Len(t, results, 6)

	assert.Empty(t, results[0].Error)
	assert.Equal(t, 2, results[0].Count)
	assert.Contains(t, results[1].Error, "gave up after 4 attempts")
	assert.Contains(t, results[3].Error, "goal x not found")
	assert.Equal(t, 1, results[4].Count)

	// One retry for the thresholds sweep, three for the exceeded sweep.
	delay := config.DefaultNotificationConfig().RetryDelay
	assert.Equal(t, []time.Duration{delay, delay, 2 * delay, 3 * delay}, f.sleeps)
	f.assertExpectations(t)
}

func TestRunScheduledTasks_StopsWhenCancelled(t *testing.T) {
	f := newFixture()
	ctx, cancel := context.WithCancel(context.Background())
	f.budget.On("CheckBudgetThresholds", mock.Anything).Return(0, nil).Run(func(mock.Arguments) { cancel() }).Once()

	results := f.m.RunScheduledTasks(ctx)
	assert.Equal(t, []string{"budget_thresholds"}, taskNames(results))
	f.assertExpectations(t)
}

func TestRunCleanupTasks(t *testing.T) {
	f := newFixture()
	f.notifs.On("CleanupExpired", mock.Anything).Return(int64(7), nil).Once()
	f.ledger.On("DeleteOlderThan", mock.Anything, ledgerRetentionDays).Return(int64(2), nil).Once()

	results := f.m.RunCleanupTasks(context.Background())
	assert.Equal(t, []string{"expired_notifications", "dedup_ledger"}, taskNames(results))
	assert.Equal(t, 7, results[0].Count)
	assert.Equal(t, 2, results[1].Count)
	f.assertExpectations(t)
}

func TestLifecycle(t *testing.T) {
	f := newFixture()
	assert.Equal(t, StateUninitialized, f.m.State())

	require.NoError(t, f.m.Initialize(context.Background()))
	require.NoError(t, f.m.Initialize(context.Background()))
	assert.Equal(t, StateInitialized, f.m.State())
	assert.Equal(t, 5, f.hub.Len())

	f.m.Shutdown()
	assert.Equal(t, StateUninitialized, f.m.State())
	assert.Equal(t, 0, f.hub.Len())

	f.m.Shutdown()

	require.NoError(t, f.m.Initialize(context.Background()))
	assert.Equal(t, 5, f.hub.Len())
	f.m.Shutdown()
}

func TestChangeFeedReachesDetectors(t *testing.T) {
	f := newFixture()
	tx := domain.Transaction{
		ID:     uuid.New(),
		UserID: uuid.New(),
		Type:   domain.TransactionExpense,
		Amount: decimal.NewFromInt(120),
		Date:   f.now,
	}

	handled := make(chan struct{})
	f.transaction.On("HandleTransactionCreated", mock.Anything,
		mock.MatchedBy(func(got *domain.Transaction) bool { return got.ID == tx.ID })).
		Return(1, nil).Run(func(mock.Arguments) { close(handled) }).Once()

	require.NoError(t, f.m.Initialize(context.Background()))
	defer f.m.Shutdown()

	// Deletes on transactions are not routed.
	f.hub.Publish(change(t, tableTransactions, realtime.Delete, tx, nil))
	f.hub.Publish(change(t, tableTransactions, realtime.Insert, nil, tx))

	select {
	case <-handled:
	case <-time.After(2 * time.Second):
		t.Fatal("transaction insert was not routed")
	}
	f.assertExpectations(t)
}

func TestShutdown_InFlightHandlerKeepsContext(t *testing.T) {
	f := newFixture()
	tx := domain.Transaction{ID: uuid.New(), UserID: uuid.New(), Type: domain.TransactionIncome, Amount: decimal.NewFromInt(50), Date: f.now}

	started := make(chan context.Context, 1)
	release := make(chan struct{})
	var errInHandler error
	f.transaction.On("HandleTransactionCreated", mock.Anything, mock.Anything).
		Return(1, nil).
		Run(func(args mock.Arguments) {
			ctx := args.Get(0).(context.Context)
			started <- ctx
			<-release
			errInHandler = ctx.Err()
		}).Once()

	require.NoError(t, f.m.Initialize(context.Background()))
	f.hub.Publish(change(t, tableTransactions, realtime.Insert, nil, tx))

	var handlerCtx context.Context
	select {
	case handlerCtx = <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("transaction insert was not routed")
	}

	done := make(chan struct{})
	go func() {
		f.m.Shutdown()
		close(done)
	}()
	assert.Eventually(t, func() bool { return f.m.State() == StateShuttingDown }, time.Second, 5*time.Millisecond)

	select {
	case <-done:
		t.Fatal("shutdown returned before the in-flight handler finished")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("shutdown did not return")
	}

	assert.NoError(t, errInHandler)
	assert.NoError(t, handlerCtx.Err())
	assert.Equal(t, StateUninitialized, f.m.State())
	f.assertExpectations(t)
}

func TestOnBudget(t *testing.T) {
	f := newFixture()
	old := domain.Budget{ID: uuid.New(), Amount: decimal.NewFromInt(500), Spent: decimal.NewFromInt(100)}

	same := old
	same.BudgetName = "renamed"
	require.NoError(t, f.m.onBudget(context.Background(), change(t, tableBudgets, realtime.Update, old, same)))

	grown := old
	grown.Spent = decimal.NewFromInt(450)
	f.budget.On("CheckBudget", mock.Anything,
		mock.MatchedBy(func(b *domain.Budget) bool { return b.Spent.Equal(grown.Spent) })).Return(nil).Once()
	require.NoError(t, f.m.onBudget(context.Background(), change(t, tableBudgets, realtime.Update, old, grown)))
	f.assertExpectations(t)
}

func TestOnGoal(t *testing.T) {
	deadline := time.Date(2024, 9, 1, 0, 0, 0, 0, time.UTC)
	base := domain.Goal{
		ID:            uuid.New(),
		UserID:        uuid.New(),
		TargetAmount:  decimal.NewFromInt(1000),
		CurrentAmount: decimal.NewFromInt(200),
		Status:        domain.GoalInProgress,
		TargetDate:    &deadline,
	}

	t.Run("contribution checks milestones", func(t *testing.T) {
		f := newFixture()
		updated := base
		updated.CurrentAmount = decimal.NewFromInt(600)
		f.goal.On("CheckGoal", mock.Anything, mock.AnythingOfType("*domain.Goal")).Return(1, nil).Once()

		require.NoError(t, f.m.onGoal(context.Background(), change(t, tableGoals, realtime.Update, base, updated)))
		f.assertExpectations(t)
	})

	t.Run("status change", func(t *testing.T) {
		f := newFixture()
		updated := base
		updated.Status = domain.GoalCancelled
		f.goal.On("HandleStatusChange", mock.Anything,
			mock.MatchedBy(func(g *domain.Goal) bool { return g.Status == domain.GoalInProgress }),
			mock.MatchedBy(func(g *domain.Goal) bool { return g.Status == domain.GoalCancelled })).
			Return(assert.AnError).Once()

		err := f.m.onGoal(context.Background(), change(t, tableGoals, realtime.Update, base, updated))
		require.ErrorIs(t, err, assert.AnError)
		f.assertExpectations(t)
	})

	t.Run("moved deadline rearms the warning", func(t *testing.T) {
		f := newFixture()
		old := base
		old.DeadlineWarningSent = true
		later := deadline.AddDate(0, 2, 0)
		updated := old
		updated.TargetDate = &later
		f.goal.On("ResetDeadlineWarning", mock.Anything, base.ID).Return(nil).Once()

		require.NoError(t, f.m.onGoal(context.Background(), change(t, tableGoals, realtime.Update, old, updated)))
		f.assertExpectations(t)
	})
}

func TestOnMember(t *testing.T) {
	member := domain.FamilyMember{FamilyID: uuid.New(), UserID: uuid.New(), Status: domain.MemberActive}
	pending := member
	pending.Status = domain.MemberPending
	inactive := member
	inactive.Status = domain.MemberInactive

	isUser := mock.MatchedBy(func(got *domain.FamilyMember) bool { return got.UserID == member.UserID })

	tests := []struct {
		name   string
		ev     func(t *testing.T) realtime.ChangeEvent
		expect string
	}{
		{"active insert joins", func(t *testing.T) realtime.ChangeEvent {
			return change(t, tableFamilyMembers, realtime.Insert, nil, member)
		}, "HandleMemberJoined"},
		{"pending insert waits", func(t *testing.T) realtime.ChangeEvent {
			return change(t, tableFamilyMembers, realtime.Insert, nil, pending)
		}, ""},
		{"pending to active joins", func(t *testing.T) realtime.ChangeEvent {
			return change(t, tableFamilyMembers, realtime.Update, pending, member)
		}, "HandleMemberJoined"},
		{"active to inactive leaves", func(t *testing.T) realtime.ChangeEvent {
			return change(t, tableFamilyMembers, realtime.Update, member, inactive)
		}, "HandleMemberLeft"},
		{"active delete leaves", func(t *testing.T) realtime.ChangeEvent {
			return change(t, tableFamilyMembers, realtime.Delete, member, nil)
		}, "HandleMemberLeft"},
		{"inactive delete is ignored", func(t *testing.T) realtime.ChangeEvent {
			return change(t, tableFamilyMembers, realtime.Delete, inactive, nil)
		}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			if tt.expect != "" {
				f.family.On(tt.expect, mock.Anything, isUser).Return(2, nil).Once()
			}
			require.NoError(t, f.m.onMember(context.Background(), tt.ev(t)))
			f.assertExpectations(t)
		})
	}
}

func TestOnInvitation(t *testing.T) {
	f := newFixture()
	inv := domain.FamilyInvitation{ID: uuid.New(), FamilyID: uuid.New(), Status: domain.InvitationPending}
	accepted := inv
	accepted.Status = domain.InvitationAccepted

	f.family.On("HandleInvitationCreated", mock.Anything, mock.AnythingOfType("*domain.FamilyInvitation")).Return(nil).Once()
	f.family.On("HandleInvitationUpdated", mock.Anything,
		mock.MatchedBy(func(old *domain.FamilyInvitation) bool { return old.Status == domain.InvitationPending }),
		mock.MatchedBy(func(n *domain.FamilyInvitation) bool { return n.Status == domain.InvitationAccepted })).
		Return(nil).Once()

	require.NoError(t, f.m.onInvitation(context.Background(), change(t, tableFamilyInvitations, realtime.Insert, nil, inv)))
	require.NoError(t, f.m.onInvitation(context.Background(), change(t, tableFamilyInvitations, realtime.Update, inv, accepted)))
	f.assertExpectations(t)
}

func TestRealTimeUpdates(t *testing.T) {
	f := newFixture()
	userID := uuid.New()

	closed := map[string]int{}
	unsubscribe := func(name string) func() {
		return func() { closed[name]++ }
	}
	f.notifs.On("SubscribeToNotifications", mock.Anything, userID).Return(unsubscribe("first"), nil).Once()
	f.notifs.On("SubscribeToNotifications", mock.Anything, userID).Return(unsubscribe("second"), nil).Once()
	f.notifs.On("SubscribeToNotifications", mock.Anything, userID).Return(unsubscribe("third"), nil).Once()

	noop := func(context.Context, notification.Change) {}
	require.NoError(t, f.m.StartRealTimeUpdates(context.Background(), userID, noop))
	assert.Equal(t, StateInitialized, f.m.State(), "starting a channel initialises the manager")

	require.NoError(t, f.m.StartRealTimeUpdates(context.Background(), userID, noop))
	assert.Equal(t, map[string]int{"first": 1}, closed)

	f.m.StopRealTimeUpdates(userID)
	f.m.StopRealTimeUpdates(userID)
	assert.Equal(t, map[string]int{"first": 1, "second": 1}, closed)

	require.NoError(t, f.m.StartRealTimeUpdates(context.Background(), userID, noop))
	f.m.Shutdown()
	assert.Equal(t, map[string]int{"first": 1, "second": 1, "third": 1}, closed)
	f.assertExpectations(t)
}

func TestStartRealTimeUpdates_SubscribeFailure(t *testing.T) {
	f := newFixture()
	userID := uuid.New()
	f.notifs.On("SubscribeToNotifications", mock.Anything, userID).Return(nil, assert.AnError).Once()

	err := f.m.StartRealTimeUpdates(context.Background(), userID, func(context.Context, notification.Change) {})
	require.ErrorIs(t, err, assert.AnError)
	f.m.StopRealTimeUpdates(userID)
	f.m.Shutdown()
	f.assertExpectations(t)
}
