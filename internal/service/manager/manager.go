// Package manager owns the notification subsystem's lifecycle: it routes
// change-feed events to detectors, runs the scheduled sweeps and manages
// per-user realtime channels.
package manager

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"budgetme-notifications/internal/config"
	"budgetme-notifications/internal/domain"
	"budgetme-notifications/internal/logging"
	"budgetme-notifications/internal/metrics"
	"budgetme-notifications/internal/pkg/retry"
	"budgetme-notifications/internal/realtime"
	"budgetme-notifications/internal/repository"
	"budgetme-notifications/internal/service/detector"
	"budgetme-notifications/internal/service/notification"
)

type State string

const (
	StateUninitialized State = "uninitialized"
	StateInitialized   State = "initialized"
	StateShuttingDown  State = "shutting_down"
)

var ErrShuttingDown = errors.New("notification manager is shutting down")

// ledgerRetentionDays bounds how long one-shot dedup keys are kept.
const ledgerRetentionDays = 400

type Manager interface {
	Initialize(ctx context.Context) error
	Shutdown()
	State() State

	RunScheduledTasks(ctx context.Context) []TaskResult
	RunCleanupTasks(ctx context.Context) []TaskResult

	// StartRealTimeUpdates streams the user's notification changes to fn,
	// replacing any channel the user already had open.
	StartRealTimeUpdates(ctx context.Context, userID uuid.UUID, fn func(context.Context, notification.Change)) error
	StopRealTimeUpdates(userID uuid.UUID)
}

// TaskResult reports one sweep task.
type TaskResult struct {
	Task     string        `json:"task"`
	Count    int           `json:"count"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration_ns"`
}

type Deps struct {
	Notifications notification.Service
	Detectors     *detector.Detectors
	Ledger        repository.LedgerRepository
	Hub           *realtime.Hub
	Config        config.NotificationConfig
}

type manager struct {
	notifSvc  notification.Service
	detectors *detector.Detectors
	ledger    repository.LedgerRepository
	hub       *realtime.Hub
	cfg       config.NotificationConfig
	log       zerolog.Logger
	now       func() time.Time
	sleep     func(ctx context.Context, d time.Duration) error

	mu       sync.Mutex
	state    State
	cron     *cron.Cron
	cancel   context.CancelFunc
	subs     []*realtime.Subscription
	channels map[uuid.UUID]func()
	wg       sync.WaitGroup
}

func NewManager(d Deps) Manager {
	return newManager(d)
}

func newManager(d Deps) *manager {
	return &manager{
		notifSvc:  d.Notifications,
		detectors: d.Detectors,
		ledger:    d.Ledger,
		hub:       d.Hub,
		cfg:       d.Config,
		log:       logging.Component("notification_manager"),
		now:       time.Now,
		state:     StateUninitialized,
		channels:  make(map[uuid.UUID]func()),
	}
}

func (m *manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Initialize subscribes to the watched tables and starts the sweep schedules.
// Calling it on an initialised manager does nothing.
func (m *manager) Initialize(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.initializeLocked(ctx)
}

func (m *manager) initializeLocked(ctx context.Context) error {
	switch m.state {
	case StateInitialized:
		return nil
	case StateShuttingDown:
		return ErrShuttingDown
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	for _, r := range m.routes() {
		sub := m.hub.Subscribe(r.table, r.types, nil)
		m.subs = append(m.subs, sub)
		handle := r.handle
		table := r.table
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			sub.Run(runCtx, func(ctx context.Context, ev realtime.ChangeEvent) {
				// Shutdown stops delivery; a handler already running keeps its context.
				if err := handle(context.WithoutCancel(ctx), ev); err != nil {
					m.log.Error().Err(err).Str("table", table).Str("type", string(ev.Type)).Msg("change handler failed")
				}
			})
		}()
	}

	c := cron.New()
	if _, err := c.AddFunc(every(m.cfg.ScheduledTaskInterval, time.Hour), func() { m.RunScheduledTasks(runCtx) }); err != nil {
		cancel()
		m.closeSubsLocked()
		return fmt.Errorf("failed to schedule sweep: %w", err)
	}
	if _, err := c.AddFunc(every(m.cfg.CleanupInterval, 24*time.Hour), func() { m.RunCleanupTasks(runCtx) }); err != nil {
		cancel()
		m.closeSubsLocked()
		return fmt.Errorf("failed to schedule cleanup: %w", err)
	}
	c.Start()

	m.cron = c
	m.cancel = cancel
	m.state = StateInitialized
	m.log.Info().
		Dur("scheduled_interval", m.cfg.ScheduledTaskInterval).
		Dur("cleanup_interval", m.cfg.CleanupInterval).
		Int("subscriptions", len(m.subs)).
		Msg("notification manager initialized")
	return nil
}

func every(d, fallback time.Duration) string {
	if d <= 0 {
		d = fallback
	}
	return "@every " + d.String()
}

// Shutdown stops the schedules and closes every subscription and user channel,
// then waits for in-flight handlers to return.
func (m *manager) Shutdown() {
	m.mu.Lock()
	if m.state != StateInitialized {
		m.mu.Unlock()
		return
	}
	m.state = StateShuttingDown
	c, cancel := m.cron, m.cancel
	m.closeSubsLocked()
	channels := m.channels
	m.channels = make(map[uuid.UUID]func())
	m.mu.Unlock()

	cancel()
	<-c.Stop().Done()
	for _, unsubscribe := range channels {
		unsubscribe()
	}
	m.wg.Wait()

	m.mu.Lock()
	m.cron = nil
	m.cancel = nil
	m.state = StateUninitialized
	m.mu.Unlock()
	m.log.Info().Msg("notification manager stopped")
}

func (m *manager) closeSubsLocked() {
	for _, sub := range m.subs {
		sub.Close()
	}
	m.subs = nil
}

func (m *manager) StartRealTimeUpdates(ctx context.Context, userID uuid.UUID, fn func(context.Context, notification.Change)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.initializeLocked(ctx); err != nil {
		return err
	}

	if prev, ok := m.channels[userID]; ok {
		prev()
	}
	unsubscribe, err := m.notifSvc.SubscribeToNotifications(ctx, userID, fn)
	if err != nil {
		return err
	}
	m.channels[userID] = unsubscribe
	return nil
}

func (m *manager) StopRealTimeUpdates(userID uuid.UUID) {
	m.mu.Lock()
	unsubscribe, ok := m.channels[userID]
	delete(m.channels, userID)
	m.mu.Unlock()
	if ok {
		unsubscribe()
	}
}

type task struct {
	name string
	run  func(ctx context.Context) (int, error)
}

func (m *manager) scheduledTasks(now time.Time) []task {
	d := m.detectors
	tasks := []task{
		{"budget_thresholds", d.Budget.CheckBudgetThresholds},
		{"budgets_exceeded", d.Budget.CheckBudgetsExceeded},
		{"budgets_expiring", d.Budget.CheckBudgetsExpiring},
		{"goal_milestones", d.Goal.CheckGoalMilestones},
		{"goal_deadlines", d.Goal.CheckGoalDeadlines},
		{"recurring_reminders", d.Transaction.CheckRecurringReminders},
	}
	if now.Day() == 1 {
		month := domain.PreviousMonth(now)
		tasks = append(tasks,
			task{"budget_monthly_summaries", func(ctx context.Context) (int, error) {
				return d.Budget.GenerateMonthlySummaries(ctx, month)
			}},
			task{"transaction_monthly_summaries", func(ctx context.Context) (int, error) {
				return d.Transaction.GenerateMonthlySummaries(ctx, month)
			}},
		)
	}
	return tasks
}

// RunScheduledTasks runs every sweep once. A task that keeps failing is logged
// and skipped; the remaining tasks still run.
func (m *manager) RunScheduledTasks(ctx context.Context) []TaskResult {
	return m.runAll(ctx, m.scheduledTasks(m.now().UTC()))
}

func (m *manager) RunCleanupTasks(ctx context.Context) []TaskResult {
	return m.runAll(ctx, []task{
		{"expired_notifications", func(ctx context.Context) (int, error) {
			n, err := m.notifSvc.CleanupExpired(ctx)
			return int(n), err
		}},
		{"dedup_ledger", func(ctx context.Context) (int, error) {
			n, err := m.ledger.DeleteOlderThan(ctx, ledgerRetentionDays)
			return int(n), err
		}},
	})
}

func (m *manager) runAll(ctx context.Context, tasks []task) []TaskResult {
	results := make([]TaskResult, 0, len(tasks))
	for _, t := range tasks {
		if ctx.Err() != nil {
			break
		}
		results = append(results, m.runTask(ctx, t))
	}
	return results
}

func (m *manager) runTask(ctx context.Context, t task) TaskResult {
	start := time.Now()
	var count int
	policy := retry.Policy{
		MaxRetries: m.cfg.MaxRetries,
		Delay:      m.cfg.RetryDelay,
		Sleep:      m.sleep,
	}
	err := retry.Do(ctx, policy, func(ctx context.Context) error {
		n, err := t.run(ctx)
		count = n
		return err
	})
	elapsed := time.Since(start)

	res := TaskResult{Task: t.name, Count: count, Duration: elapsed}
	metrics.TaskDuration.WithLabelValues(t.name).Observe(elapsed.Seconds())
	if err != nil {
		res.Error = err.Error()
		metrics.TaskRuns.WithLabelValues(t.name, "failed").Inc()
		m.log.Error().Err(err).Str("task", t.name).Msg("scheduled task failed, skipping")
		return res
	}
	metrics.TaskRuns.WithLabelValues(t.name, "ok").Inc()
	m.log.Debug().Str("task", t.name).Int("count", count).Dur("elapsed", elapsed).Msg("scheduled task finished")
	return res
}
