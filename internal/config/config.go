package config

import (
	"os"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

type Config struct {
	Port        string
	Environment string

	DatabaseURL string

	RedisURL string

	JWTSecret string

	MinIOEndpoint  string
	MinIOAccessKey string
	MinIOSecretKey string
	MinIOBucket    string
	MinIOUseSSL    bool

	CORSOrigins string

	ResendAPIKey string
	FromEmail    string
	Domain       string

	LogLevel  string
	LogFormat string

	ChangeFeedChannel string

	Notifications NotificationConfig
}

// NotificationConfig holds the tunables of the notification scheduler, detectors
// and filter engine.
type NotificationConfig struct {
	ScheduledTaskInterval     time.Duration
	CleanupInterval           time.Duration
	MaxRetries                int
	RetryDelay                time.Duration
	MaxNotificationsPerHour   int
	MaxListLimit              int
	QuietHoursStart           string
	QuietHoursEnd             string
	QuietHoursTimezone        string
	LargeTransactionThreshold decimal.Decimal
}

func Load() *Config {
	return &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "development"),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		RedisURL: getEnv("REDIS_URL", "redis://localhost:6379"),

		JWTSecret: getEnv("JWT_SECRET", ""),

		MinIOEndpoint:  getEnv("MINIO_ENDPOINT", "localhost:9000"),
		MinIOAccessKey: getEnv("MINIO_ACCESS_KEY", "minioadmin"),
		MinIOSecretKey: getEnv("MINIO_SECRET_KEY", "minioadmin"),
		MinIOBucket:    getEnv("MINIO_BUCKET", "budgetme-reports"),
		MinIOUseSSL:    getBoolEnv("MINIO_USE_SSL", false),

		CORSOrigins: getEnv("CORS_ORIGINS", "http://localhost:5173"),

		ResendAPIKey: getEnv("RESEND_API_KEY", ""),
		FromEmail:    getEnv("FROM_EMAIL", "noreply@example.com"),
		Domain:       getEnv("DOMAIN", "localhost:5173"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		ChangeFeedChannel: getEnv("CHANGE_FEED_CHANNEL", "table_changes"),

		Notifications: NotificationConfig{
			ScheduledTaskInterval:     time.Duration(getIntEnv("SCHEDULED_TASK_INTERVAL", 60)) * time.Minute,
			CleanupInterval:           time.Duration(getIntEnv("CLEANUP_INTERVAL", 24)) * time.Hour,
			MaxRetries:                getIntEnv("MAX_RETRIES", 3),
			RetryDelay:                time.Duration(getIntEnv("RETRY_DELAY", 1000)) * time.Millisecond,
			MaxNotificationsPerHour:   getIntEnv("MAX_NOTIFICATIONS_PER_HOUR", 10),
			MaxListLimit:              getIntEnv("NOTIFICATION_MAX_LIMIT", 100),
			QuietHoursStart:           getEnv("QUIET_HOURS_START", "22:00"),
			QuietHoursEnd:             getEnv("QUIET_HOURS_END", "07:00"),
			QuietHoursTimezone:        getEnv("QUIET_HOURS_TIMEZONE", "UTC"),
			LargeTransactionThreshold: getDecimalEnv("LARGE_TRANSACTION_THRESHOLD", decimal.NewFromInt(5000)),
		},
	}
}

// DefaultNotificationConfig mirrors the defaults of Load without reading the
// environment.
func DefaultNotificationConfig() NotificationConfig {
	return NotificationConfig{
		ScheduledTaskInterval:     60 * time.Minute,
		CleanupInterval:           24 * time.Hour,
		MaxRetries:                3,
		RetryDelay:                time.Second,
		MaxNotificationsPerHour:   10,
		MaxListLimit:              100,
		QuietHoursStart:           "22:00",
		QuietHoursEnd:             "07:00",
		QuietHoursTimezone:        "UTC",
		LargeTransactionThreshold: decimal.NewFromInt(5000),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseBool(value)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.Atoi(value)
		if err == nil && parsed > 0 {
			return parsed
		}
	}
	return defaultValue
}

func getDecimalEnv(key string, defaultValue decimal.Decimal) decimal.Decimal {
	if value := os.Getenv(key); value != "" {
		parsed, err := decimal.NewFromString(value)
		if err == nil && parsed.IsPositive() {
			return parsed
		}
	}
	return defaultValue
}
