package filter

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"budgetme-notifications/internal/domain"
	"budgetme-notifications/internal/metrics"
)

const analyticsCacheTTL = time.Hour

func analyticsKey(userID uuid.UUID) string {
	return "notifications:analytics:" + userID.String()
}

// Analytics returns the user's interaction history over the lookback window,
// cached in Redis for an hour.
func (e *engine) Analytics(ctx context.Context, userID uuid.UUID) (*domain.UserAnalytics, error) {
	key := analyticsKey(userID)

	if e.redis != nil {
		if cached, err := e.redis.Get(ctx, key).Result(); err == nil {
			var a domain.UserAnalytics
			if json.Unmarshal([]byte(cached), &a) == nil {
				metrics.CacheHits.WithLabelValues("analytics").Inc()
				return &a, nil
			}
		}
		metrics.CacheMisses.WithLabelValues("analytics").Inc()
	}

	now := e.now().UTC()
	rows, err := e.notifRepo.Analytics(ctx, userID, now.AddDate(0, 0, -domain.AnalyticsWindowDays))
	if err != nil {
		return nil, domain.NewStoreError("failed to load notification analytics", err)
	}
	a := buildAnalytics(userID, rows, now)

	if e.redis != nil {
		if data, err := json.Marshal(a); err == nil {
			_ = e.redis.Set(ctx, key, data, analyticsCacheTTL).Err()
		}
	}
	return a, nil
}

func (e *engine) InvalidateAnalytics(ctx context.Context, userID uuid.UUID) {
	if e.redis != nil {
		_ = e.redis.Del(ctx, analyticsKey(userID)).Err()
	}
}

func buildAnalytics(userID uuid.UUID, rows []domain.AnalyticsRow, now time.Time) *domain.UserAnalytics {
	a := &domain.UserAnalytics{
		UserID:      userID,
		WindowDays:  domain.AnalyticsWindowDays,
		EventCounts: make(map[domain.EventType]int),
		ComputedAt:  now,
	}
	for _, r := range rows {
		a.EventCounts[r.EventType] += r.Total
		a.ActionableTotal += r.Actionable
		a.ActionableClicked += r.Clicked
		if r.Hour >= 0 && r.Hour < 24 {
			a.HourTotals[r.Hour] += r.Total
			a.HourReads[r.Hour] += r.Read
		}
	}
	return a
}
