// Package filter turns a raw batch of notifications into what a user should
// actually see: duplicates consolidated, quiet hours and per-hour caps applied,
// the rest ranked by a smart priority score and optionally grouped.
package filter

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"budgetme-notifications/internal/config"
	"budgetme-notifications/internal/domain"
	"budgetme-notifications/internal/logging"
	"budgetme-notifications/internal/metrics"
	"budgetme-notifications/internal/repository"
)

// Store is the part of the notification service the engine reads preferences
// from and persists consolidation through.
type Store interface {
	GetNotificationPreferences(ctx context.Context, userID uuid.UUID) (*domain.NotificationPreferences, error)
	MarkMultipleAsRead(ctx context.Context, ids []uuid.UUID, userID uuid.UUID) (int64, error)
	SaveContent(ctx context.Context, n *domain.Notification) error
}

type Engine interface {
	// Process runs consolidate, filter, quiet hours, frequency limit and
	// prioritisation in that order, then groups when opts.GroupBy is set.
	Process(ctx context.Context, userID uuid.UUID, notifications []*domain.Notification, opts Options) (*Result, error)
	Prioritize(ctx context.Context, userID uuid.UUID, notifications []*domain.Notification) ([]Ranked, error)
	Consolidate(ctx context.Context, userID uuid.UUID, notifications []*domain.Notification) ([]*domain.Notification, error)
	ApplyFrequencyLimit(ctx context.Context, userID uuid.UUID, notifications []*domain.Notification) ([]*domain.Notification, error)
	Analytics(ctx context.Context, userID uuid.UUID) (*domain.UserAnalytics, error)
	InvalidateAnalytics(ctx context.Context, userID uuid.UUID)
}

// Criteria are exact-match filters; nil fields match everything.
type Criteria struct {
	NotificationType *domain.NotificationType
	EventType        *domain.EventType
	Priority         *domain.Priority
	Severity         *domain.Severity
	IsRead           *bool
	CreatedAfter     *time.Time
	CreatedBefore    *time.Time
}

type Options struct {
	Criteria Criteria
	GroupBy  domain.GroupBy
}

type Result struct {
	Notifications []Ranked                   `json:"notifications"`
	Groups        []domain.NotificationGroup `json:"groups,omitempty"`
	Total         int                        `json:"total"`
	Suppressed    int                        `json:"suppressed"`
}

type Deps struct {
	Store         Store
	Notifications repository.NotificationRepository
	Redis         *redis.Client
	Config        config.NotificationConfig
}

type engine struct {
	store     Store
	notifRepo repository.NotificationRepository
	redis     *redis.Client
	cfg       config.NotificationConfig
	log       zerolog.Logger
	now       func() time.Time
}

func NewEngine(d Deps) Engine {
	return newEngine(d)
}

func newEngine(d Deps) *engine {
	return &engine{
		store:     d.Store,
		notifRepo: d.Notifications,
		redis:     d.Redis,
		cfg:       d.Config,
		log:       logging.Component("filter_engine"),
		now:       time.Now,
	}
}

func (e *engine) Process(ctx context.Context, userID uuid.UUID, notifications []*domain.Notification, opts Options) (*Result, error) {
	now := e.now()
	prefs := e.preferences(ctx, userID)
	analytics := e.analyticsOrNil(ctx, userID)

	out, err := e.Consolidate(ctx, userID, notifications)
	if err != nil {
		return nil, err
	}
	out = track("criteria", out, Filter(out, opts.Criteria))
	out = track("quiet_hours", out, ApplyQuietHours(out, prefs, now))
	limited, err := e.limit(ctx, userID, out, prefs, analytics, now)
	if err != nil {
		return nil, err
	}
	out = track("frequency", out, limited)

	ranked := rank(out, analytics, now)
	res := &Result{
		Notifications: ranked,
		Total:         len(notifications),
		Suppressed:    len(notifications) - len(ranked),
	}
	if opts.GroupBy != domain.GroupByNone {
		sorted := make([]*domain.Notification, len(ranked))
		for i, r := range ranked {
			sorted[i] = r.Notification
		}
		res.Groups = Group(sorted, opts.GroupBy, now, userLocation(prefs))
	}
	return res, nil
}

// track records how many notifications a stage removed.
func track(stage string, before, after []*domain.Notification) []*domain.Notification {
	if dropped := len(before) - len(after); dropped > 0 {
		metrics.FilteredNotifications.WithLabelValues(stage).Add(float64(dropped))
	}
	return after
}

func (e *engine) preferences(ctx context.Context, userID uuid.UUID) *domain.NotificationPreferences {
	prefs, err := e.store.GetNotificationPreferences(ctx, userID)
	if err != nil {
		e.log.Warn().Err(err).Str("user_id", userID.String()).Msg("failed to load preferences, using defaults")
		return nil
	}
	return prefs
}

func (e *engine) analyticsOrNil(ctx context.Context, userID uuid.UUID) *domain.UserAnalytics {
	a, err := e.Analytics(ctx, userID)
	if err != nil {
		e.log.Warn().Err(err).Str("user_id", userID.String()).Msg("analytics unavailable, scoring without history")
		return nil
	}
	return a
}

func (e *engine) Prioritize(ctx context.Context, userID uuid.UUID, notifications []*domain.Notification) ([]Ranked, error) {
	return rank(notifications, e.analyticsOrNil(ctx, userID), e.now()), nil
}

// Filter keeps the notifications matching every set criterion.
func Filter(notifications []*domain.Notification, c Criteria) []*domain.Notification {
	out := make([]*domain.Notification, 0, len(notifications))
	for _, n := range notifications {
		if c.NotificationType != nil && n.NotificationType != *c.NotificationType {
			continue
		}
		if c.EventType != nil && n.EventType != *c.EventType {
			continue
		}
		if c.Priority != nil && n.Priority != *c.Priority {
			continue
		}
		if c.Severity != nil && n.Severity != *c.Severity {
			continue
		}
		if c.IsRead != nil && n.IsRead != *c.IsRead {
			continue
		}
		if c.CreatedAfter != nil && n.CreatedAt.Before(*c.CreatedAfter) {
			continue
		}
		if c.CreatedBefore != nil && n.CreatedAt.After(*c.CreatedBefore) {
			continue
		}
		out = append(out, n)
	}
	return out
}

// ApplyQuietHours keeps only urgent notifications while now is inside the
// user's quiet window.
func ApplyQuietHours(notifications []*domain.Notification, prefs *domain.NotificationPreferences, now time.Time) []*domain.Notification {
	window, err := prefs.QuietWindow()
	if err != nil || !window.Contains(now) {
		return notifications
	}
	out := make([]*domain.Notification, 0, len(notifications))
	for _, n := range notifications {
		if n.Priority == domain.PriorityUrgent {
			out = append(out, n)
		}
	}
	return out
}

func userLocation(prefs *domain.NotificationPreferences) *time.Location {
	if prefs == nil || prefs.QuietHoursTimezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(prefs.QuietHoursTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
