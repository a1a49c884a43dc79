package filter

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"budgetme-notifications/internal/domain"
)

const (
	frequencyWindow   = time.Hour
	defaultHourlyCap  = 10
	surfacedKeyPrefix = "notifications:surfaced:"
)

func surfacedKey(userID uuid.UUID) string {
	return surfacedKeyPrefix + userID.String()
}

func (e *engine) ApplyFrequencyLimit(ctx context.Context, userID uuid.UUID, notifications []*domain.Notification) ([]*domain.Notification, error) {
	return e.limit(ctx, userID, notifications, e.preferences(ctx, userID), e.analyticsOrNil(ctx, userID), e.now())
}

func (e *engine) hourlyCap(prefs *domain.NotificationPreferences) int {
	if prefs != nil && prefs.MaxNotificationsPerHour > 0 {
		return prefs.MaxNotificationsPerHour
	}
	if e.cfg.MaxNotificationsPerHour > 0 {
		return e.cfg.MaxNotificationsPerHour
	}
	return defaultHourlyCap
}

// limit caps what is surfaced per rolling hour. Once the cap is used up only
// urgent notifications pass; otherwise the batch is ranked and cut to what is
// left of the cap.
func (e *engine) limit(ctx context.Context, userID uuid.UUID, notifications []*domain.Notification, prefs *domain.NotificationPreferences, a *domain.UserAnalytics, now time.Time) ([]*domain.Notification, error) {
	if len(notifications) == 0 {
		return notifications, nil
	}

	batch := make([]uuid.UUID, len(notifications))
	for i, n := range notifications {
		batch[i] = n.ID
	}
	recent, err := e.recentCount(ctx, userID, batch, now)
	if err != nil {
		return nil, err
	}

	remaining := e.hourlyCap(prefs) - int(recent)
	var out []*domain.Notification
	if remaining <= 0 {
		for _, n := range notifications {
			if n.Priority == domain.PriorityUrgent {
				out = append(out, n)
			}
		}
	} else {
		ranked := rank(notifications, a, now)
		if len(ranked) > remaining {
			ranked = ranked[:remaining]
		}
		out = make([]*domain.Notification, len(ranked))
		for i, r := range ranked {
			out[i] = r.Notification
		}
	}

	e.recordSurfaced(ctx, userID, out, now)
	return out, nil
}

// recentCount counts notifications surfaced within the window that are not in
// the current batch. Redis tracks surfaced ids; without it the store's count
// of recently created notifications stands in.
func (e *engine) recentCount(ctx context.Context, userID uuid.UUID, batch []uuid.UUID, now time.Time) (int64, error) {
	since := now.Add(-frequencyWindow)

	if e.redis != nil {
		key := surfacedKey(userID)
		minScore := strconv.FormatInt(since.UnixMilli(), 10)
		if err := e.redis.ZRemRangeByScore(ctx, key, "-inf", "("+minScore).Err(); err != nil {
			e.log.Warn().Err(err).Str("user_id", userID.String()).Msg("failed to trim surfaced set")
		}
		members, err := e.redis.ZRangeByScore(ctx, key, &redis.ZRangeBy{Min: minScore, Max: "+inf"}).Result()
		if err == nil {
			inBatch := make(map[string]bool, len(batch))
			for _, id := range batch {
				inBatch[id.String()] = true
			}
			var count int64
			for _, m := range members {
				if !inBatch[m] {
					count++
				}
			}
			return count, nil
		}
		e.log.Warn().Err(err).Str("user_id", userID.String()).Msg("surfaced set unavailable, counting from store")
	}

	count, err := e.notifRepo.CountCreatedSince(ctx, userID, since, batch)
	if err != nil {
		return 0, domain.NewStoreError(fmt.Sprintf("failed to count recent notifications for %s", userID), err)
	}
	return count, nil
}

func (e *engine) recordSurfaced(ctx context.Context, userID uuid.UUID, surfaced []*domain.Notification, now time.Time) {
	if e.redis == nil || len(surfaced) == 0 {
		return
	}
	members := make([]redis.Z, len(surfaced))
	for i, n := range surfaced {
		members[i] = redis.Z{Score: float64(now.UnixMilli()), Member: n.ID.String()}
	}
	key := surfacedKey(userID)
	pipe := e.redis.TxPipeline()
	// NX keeps the first surfacing time so re-fetching does not extend the window.
	pipe.ZAddNX(ctx, key, members...)
	pipe.Expire(ctx, key, frequencyWindow)
	if _, err := pipe.Exec(ctx); err != nil {
		e.log.Warn().Err(err).Str("user_id", userID.String()).Msg("failed to record surfaced notifications")
	}
}
