package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestLoad_NotificationDefaults(t *testing.T) {
	for _, key := range []string{"SCHEDULED_TASK_INTERVAL", "CLEANUP_INTERVAL", "MAX_RETRIES", "RETRY_DELAY",
		"MAX_NOTIFICATIONS_PER_HOUR", "QUIET_HOURS_START", "LARGE_TRANSACTION_THRESHOLD", "CHANGE_FEED_CHANNEL"} {
		t.Setenv(key, "")
	}

	cfg := Load()
	assert.Equal(t, DefaultNotificationConfig(), cfg.Notifications)
	assert.Equal(t, "table_changes", cfg.ChangeFeedChannel)
}

func TestLoad_NotificationOverrides(t *testing.T) {
	t.Setenv("SCHEDULED_TASK_INTERVAL", "15")
	t.Setenv("CLEANUP_INTERVAL", "6")
	t.Setenv("RETRY_DELAY", "250")
	t.Setenv("MAX_NOTIFICATIONS_PER_HOUR", "25")
	t.Setenv("LARGE_TRANSACTION_THRESHOLD", "1250.50")
	t.Setenv("MAX_RETRIES", "-1")

	n := Load().Notifications
	assert.Equal(t, 15*time.Minute, n.ScheduledTaskInterval)
	assert.Equal(t, 6*time.Hour, n.CleanupInterval)
	assert.Equal(t, 250*time.Millisecond, n.RetryDelay)
	assert.Equal(t, 25, n.MaxNotificationsPerHour)
	assert.True(t, decimal.RequireFromString("1250.50").Equal(n.LargeTransactionThreshold))
	assert.Equal(t, 3, n.MaxRetries)
}
