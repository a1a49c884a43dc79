package validation

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"budgetme-notifications/internal/domain"
)

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }

func TestStruct_CreateNotificationInput(t *testing.T) {
	t.Run("valid input passes", func(t *testing.T) {
		in := domain.CreateNotificationInput{
			UserID:           uuid.New(),
			NotificationType: domain.NotificationTypeBudget,
			EventType:        domain.EventBudgetExceeded,
			Title:            "Over budget",
			Message:          "You spent too much",
			Priority:         domain.PriorityHigh,
		}
		assert.NoError(t, Struct(&in))
	})

	t.Run("missing user and bad priority are reported per field", func(t *testing.T) {
		in := domain.CreateNotificationInput{
			NotificationType: domain.NotificationTypeBudget,
			EventType:        domain.EventBudgetExceeded,
			Priority:         "critical",
		}
		err := Struct(&in)
		require.Error(t, err)

		var errs domain.ValidationErrors
		require.ErrorAs(t, err, &errs)
		fields := map[string]string{}
		for _, e := range errs {
			fields[e.Field] = e.Message
		}
		assert.Equal(t, "is required", fields["user_id"])
		assert.Contains(t, fields["priority"], "must be one of")
	})

	t.Run("expiry bounds", func(t *testing.T) {
		in := domain.CreateNotificationInput{
			UserID:           uuid.New(),
			NotificationType: domain.NotificationTypeSystem,
			EventType:        domain.EventSystemAnnouncement,
			ExpiresInHours:   intPtr(0),
		}
		err := Struct(&in)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "expires_in_hours")
	})
}

func TestStruct_UpdatePreferencesInput(t *testing.T) {
	tests := []struct {
		name    string
		in      domain.UpdatePreferencesInput
		wantErr string
	}{
		{name: "empty update", in: domain.UpdatePreferencesInput{}},
		{name: "valid quiet hours", in: domain.UpdatePreferencesInput{QuietHoursStart: strPtr("22:00"), QuietHoursEnd: strPtr("07:00"), QuietHoursTimezone: strPtr("Asia/Manila")}},
		{name: "bad clock", in: domain.UpdatePreferencesInput{QuietHoursStart: strPtr("25:00")}, wantErr: "quiet_hours_start"},
		{name: "bad timezone", in: domain.UpdatePreferencesInput{QuietHoursTimezone: strPtr("Mars/Olympus")}, wantErr: "quiet_hours_timezone"},
		{name: "hourly cap too high", in: domain.UpdatePreferencesInput{MaxNotificationsPerHour: intPtr(101)}, wantErr: "max_notifications_per_hour"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Struct(&tt.in)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
