package filter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"budgetme-notifications/internal/domain"
)

func keysOf(groups []domain.NotificationGroup) []string {
	out := make([]string, len(groups))
	for i, g := range groups {
		out[i] = g.Key
	}
	return out
}

func TestGroup(t *testing.T) {
	f := newFixture()
	low := f.notification(domain.PriorityLow, domain.EventGoalMilestone25, time.Hour)
	urgent := f.notification(domain.PriorityUrgent, domain.EventSystemMaintenance, 2*time.Hour)
	medium := f.notification(domain.PriorityMedium, domain.EventBudgetThresholdWarning, 26*time.Hour)
	medium.IsRead = true
	old := f.notification(domain.PriorityMedium, domain.EventFamilyMemberJoined, 5*24*time.Hour)
	batch := []*domain.Notification{low, urgent, medium, old}

	t.Run("by type follows the type order", func(t *testing.T) {
		groups := Group(batch, domain.GroupByType, f.now, time.UTC)
		assert.Equal(t, []string{"budget", "goal", "family", "system"}, keysOf(groups))
		assert.Equal(t, "Budget", groups[0].Label)
	})

	t.Run("by priority is most urgent first", func(t *testing.T) {
		groups := Group(batch, domain.GroupByPriority, f.now, time.UTC)
		assert.Equal(t, []string{"urgent", "medium", "low"}, keysOf(groups))
		assert.Equal(t, 2, groups[1].Count)
		assert.Equal(t, []*domain.Notification{medium, old}, groups[1].Notifications)
	})

	t.Run("by read status puts unread first", func(t *testing.T) {
		groups := Group(batch, domain.GroupByReadStatus, f.now, time.UTC)
		require.Len(t, groups, 2)
		assert.Equal(t, "Unread", groups[0].Label)
		assert.Equal(t, 3, groups[0].Count)
		assert.Equal(t, "Read", groups[1].Label)
	})

	t.Run("by date is newest first with relative labels", func(t *testing.T) {
		groups := Group(batch, domain.GroupByDate, f.now, time.UTC)
		assert.Equal(t, []string{"2024-05-14", "2024-05-13", "2024-05-09"}, keysOf(groups))
		assert.Equal(t, "Today", groups[0].Label)
		assert.Equal(t, "Yesterday", groups[1].Label)
		assert.Equal(t, "May 9, 2024", groups[2].Label)
	})

	t.Run("date uses the user's timezone", func(t *testing.T) {
		tokyo, err := time.LoadLocation("Asia/Tokyo")
		require.NoError(t, err)
		late := f.notification(domain.PriorityLow, domain.EventGoalMilestone25, 0)
		late.CreatedAt = time.Date(2024, 5, 13, 16, 0, 0, 0, time.UTC)

		groups := Group([]*domain.Notification{late}, domain.GroupByDate, f.now, tokyo)
		assert.Equal(t, "2024-05-14", groups[0].Key)
		assert.Equal(t, "Today", groups[0].Label)
	})
}
