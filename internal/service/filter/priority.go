package filter

import (
	"bytes"
	"sort"
	"time"

	"budgetme-notifications/internal/domain"
)

const (
	minScore = 1.0
	maxScore = 4.0

	minHourSamples  = 5
	invitationBoost = 0.5
)

// Ranked is a notification with its smart priority. It marshals as the
// notification plus smart_score and smart_priority.
type Ranked struct {
	*domain.Notification
	Score         float64         `json:"smart_score"`
	SmartPriority domain.Priority `json:"smart_priority"`
}

// Score computes the smart priority score of n on the 1-4 scale. A nil
// analytics skips the history based adjustments.
func Score(n *domain.Notification, a *domain.UserAnalytics, now time.Time) float64 {
	score := float64(n.Priority.Rank())
	if score == 0 {
		score = float64(domain.PriorityMedium.Rank())
	}

	if a != nil {
		if mean := a.MeanEventFrequency(); mean > 0 && a.EventFrequency(n.EventType) > 2*mean {
			score -= 0.5
		}
		if n.IsActionable && a.ActionRate() > 0.7 {
			score += 0.5
		}
		if rate, samples := a.ReadRate(now.UTC().Hour()); samples >= minHourSamples {
			switch {
			case rate > 0.7:
				score += 0.25
			case rate < 0.3:
				score -= 0.25
			}
		}
	}

	switch n.EventType {
	case domain.EventBudgetExceeded:
		score += 1.0
	case domain.EventGoalCompleted, domain.EventLargeTransactionAlert:
		score += 0.5
	case domain.EventFamilyInvitationReceived:
		score += invitationDecay(now.Sub(n.CreatedAt))
	}

	return clamp(score)
}

// invitationDecay is the full boost for the first day, fading linearly to
// nothing by the end of the second.
func invitationDecay(age time.Duration) float64 {
	switch {
	case age <= 24*time.Hour:
		return invitationBoost
	case age >= 48*time.Hour:
		return 0
	}
	return invitationBoost * float64(48*time.Hour-age) / float64(24*time.Hour)
}

func clamp(score float64) float64 {
	if score < minScore {
		return minScore
	}
	if score > maxScore {
		return maxScore
	}
	return score
}

// rank scores and sorts by score, newest first within a score.
func rank(notifications []*domain.Notification, a *domain.UserAnalytics, now time.Time) []Ranked {
	out := make([]Ranked, len(notifications))
	for i, n := range notifications {
		s := Score(n, a, now)
		out[i] = Ranked{Notification: n, Score: s, SmartPriority: domain.PriorityFromScore(s)}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return bytes.Compare(out[i].ID[:], out[j].ID[:]) < 0
	})
	return out
}
