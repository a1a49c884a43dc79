package filter

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"budgetme-notifications/internal/domain"
)

func TestScore_BaseAndOverrides(t *testing.T) {
	now := time.Date(2024, 5, 14, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		priority domain.Priority
		event    domain.EventType
		age      time.Duration
		want     float64
	}{
		{"low stays low", domain.PriorityLow, domain.EventGoalMilestone25, time.Minute, 1},
		{"unknown priority counts as medium", "", domain.EventGoalMilestone50, time.Minute, 2},
		{"budget exceeded boost", domain.PriorityHigh, domain.EventBudgetExceeded, time.Minute, 4},
		{"boost is clamped", domain.PriorityUrgent, domain.EventBudgetExceeded, time.Minute, 4},
		{"goal completed boost", domain.PriorityMedium, domain.EventGoalCompleted, time.Minute, 2.5},
		{"large transaction boost", domain.PriorityHigh, domain.EventLargeTransactionAlert, time.Minute, 3.5},
		{"fresh invitation", domain.PriorityMedium, domain.EventFamilyInvitationReceived, 2 * time.Hour, 2.5},
		{"invitation half decayed", domain.PriorityMedium, domain.EventFamilyInvitationReceived, 36 * time.Hour, 2.25},
		{"invitation fully decayed", domain.PriorityMedium, domain.EventFamilyInvitationReceived, 50 * time.Hour, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := &domain.Notification{Priority: tt.priority, EventType: tt.event, CreatedAt: now.Add(-tt.age)}
			assert.InDelta(t, tt.want, Score(n, nil, now), 1e-9)
		})
	}
}

func TestScore_HistoryAdjustments(t *testing.T) {
	now := time.Date(2024, 5, 14, 9, 15, 0, 0, time.UTC)

	a := &domain.UserAnalytics{
		WindowDays: 90,
		EventCounts: map[domain.EventType]int{
			domain.EventTransactionCategorySuggestion: 900,
			domain.EventBudgetThresholdWarning:        30,
			domain.EventGoalMilestone25:               30,
		},
		ActionableTotal:   10,
		ActionableClicked: 8,
	}
	a.HourTotals[9] = 10
	a.HourReads[9] = 9

	noisy := &domain.Notification{Priority: domain.PriorityMedium, EventType: domain.EventTransactionCategorySuggestion}
	// -0.5 over-frequent, +0.25 good reading hour.
	assert.InDelta(t, 1.75, Score(noisy, a, now), 1e-9)

	actionable := &domain.Notification{Priority: domain.PriorityMedium, EventType: domain.EventBudgetThresholdWarning, IsActionable: true}
	// +0.5 action rate, +0.25 reading hour.
	assert.InDelta(t, 2.75, Score(actionable, a, now), 1e-9)

	a.HourReads[9] = 1
	plain := &domain.Notification{Priority: domain.PriorityHigh, EventType: domain.EventGoalMilestone25}
	assert.InDelta(t, 2.75, Score(plain, a, now), 1e-9)

	a.HourTotals[9] = 4
	assert.InDelta(t, 3.0, Score(plain, a, now), 1e-9, "too few samples to adjust")
}

func TestRank_OrdersByScoreThenRecency(t *testing.T) {
	now := time.Date(2024, 5, 14, 12, 0, 0, 0, time.UTC)
	older := &domain.Notification{ID: uuid.New(), Priority: domain.PriorityHigh, EventType: domain.EventGoalMilestone75, CreatedAt: now.Add(-time.Hour)}
	newer := &domain.Notification{ID: uuid.New(), Priority: domain.PriorityHigh, EventType: domain.EventGoalMilestone75, CreatedAt: now.Add(-time.Minute)}
	exceeded := &domain.Notification{ID: uuid.New(), Priority: domain.PriorityMedium, EventType: domain.EventBudgetExceeded, CreatedAt: now.Add(-2 * time.Hour)}
	low := &domain.Notification{ID: uuid.New(), Priority: domain.PriorityLow, EventType: domain.EventGoalMilestone25, CreatedAt: now}

	ranked := rank([]*domain.Notification{low, older, exceeded, newer}, nil, now)

	got := make([]uuid.UUID, len(ranked))
	for i, r := range ranked {
		got[i] = r.ID
	}
	assert.Equal(t, []uuid.UUID{newer.ID, older.ID, exceeded.ID, low.ID}, got)
	assert.Equal(t, domain.PriorityHigh, ranked[0].SmartPriority)
	assert.Equal(t, domain.PriorityHigh, ranked[2].SmartPriority)
	assert.Equal(t, domain.PriorityLow, ranked[3].SmartPriority)
}
