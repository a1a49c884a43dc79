// Package detector watches budgets, goals, families and transactions and turns
// crossed breakpoints into notifications. Every one-shot notification is
// guarded by an atomic claim taken before emission and released if emission
// fails.
package detector

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"budgetme-notifications/internal/config"
	"budgetme-notifications/internal/domain"
	"budgetme-notifications/internal/logging"
	"budgetme-notifications/internal/metrics"
	"budgetme-notifications/internal/repository"
	"budgetme-notifications/internal/service/report"
)

// Notifier is the part of the notification service detectors emit through.
type Notifier interface {
	CreateNotification(ctx context.Context, in domain.CreateNotificationInput) (*domain.Notification, error)
	GetNotificationPreferences(ctx context.Context, userID uuid.UUID) (*domain.NotificationPreferences, error)
}

type Deps struct {
	Notifier     Notifier
	Budgets      repository.BudgetRepository
	Goals        repository.GoalRepository
	Families     repository.FamilyRepository
	Transactions repository.TransactionRepository
	Profiles     repository.ProfileRepository
	Ledger       repository.LedgerRepository
	Reports      report.Service
	Config       config.NotificationConfig
}

type Detectors struct {
	Budget      BudgetDetector
	Goal        GoalDetector
	Family      FamilyDetector
	Transaction TransactionDetector
}

func New(d Deps) *Detectors {
	family := NewFamilyDetector(d)
	return &Detectors{
		Budget:      NewBudgetDetector(d),
		Goal:        NewGoalDetector(d),
		Family:      family,
		Transaction: NewTransactionDetector(d, family),
	}
}

type base struct {
	notifier Notifier
	ledger   repository.LedgerRepository
	name     string
	log      zerolog.Logger
	now      func() time.Time
}

func newBase(d Deps, name string) base {
	return base{
		notifier: d.Notifier,
		ledger:   d.Ledger,
		name:     name,
		log:      logging.Component(name),
		now:      time.Now,
	}
}

// allowed loads the user's preferences and reports whether they permit the
// event. Preferences that cannot be loaded count as defaults.
func (b *base) allowed(ctx context.Context, userID uuid.UUID, event domain.EventType) (*domain.NotificationPreferences, bool) {
	prefs, err := b.notifier.GetNotificationPreferences(ctx, userID)
	if err != nil {
		b.log.Warn().Err(err).Str("user_id", userID.String()).Msg("failed to load preferences, using defaults")
		return nil, true
	}
	return prefs, prefs.Allows(event)
}

func (b *base) emit(ctx context.Context, in domain.CreateNotificationInput) error {
	_, err := b.notifier.CreateNotification(ctx, in)
	return err
}

// failed records a per-item failure. The caller adds context and sends the event.
func (b *base) failed(err error) *zerolog.Event {
	metrics.DetectorErrors.WithLabelValues(b.name).Inc()
	return b.log.Warn().Err(err)
}

// claimOnce takes the ledger slot for key. Only the caller that inserted the
// key may emit.
func (b *base) claimOnce(ctx context.Context, key string, userID, entityID uuid.UUID, event domain.EventType) (bool, error) {
	return b.ledger.Claim(ctx, &domain.LedgerEntry{
		DedupKey:  key,
		UserID:    userID,
		EntityID:  entityID,
		EventType: event,
		CreatedAt: b.now().UTC(),
	})
}

func (b *base) releaseOnce(ctx context.Context, key string) {
	if err := b.ledger.Release(ctx, key); err != nil {
		b.log.Warn().Err(err).Str("dedup_key", key).Msg("failed to release ledger claim")
	}
}

// fanOut emits one notification per recipient, honouring each recipient's
// preferences. A failure for one recipient does not stop the others; it is
// counted in failed.
func (b *base) fanOut(ctx context.Context, recipients []uuid.UUID, build func(userID uuid.UUID) domain.CreateNotificationInput) (sent, failed int) {
	for _, userID := range recipients {
		in := build(userID)
		if _, ok := b.allowed(ctx, userID, in.EventType); !ok {
			continue
		}
		if err := b.emit(ctx, in); err != nil {
			b.failed(err).Str("user_id", userID.String()).Str("event_type", string(in.EventType)).
				Msg("failed to notify recipient")
			failed++
			continue
		}
		sent++
	}
	return sent, failed
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// daysUntil counts whole days left until t, rounding partial days up.
func daysUntil(now, t time.Time) int {
	d := t.Sub(now).Hours() / 24
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(d))
}

func percent(ratio float64) int {
	return int(math.Round(ratio * 100))
}
