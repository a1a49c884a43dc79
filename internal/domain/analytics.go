package domain

import (
	"time"

	"github.com/google/uuid"
)

const AnalyticsWindowDays = 90

// UserAnalytics summarises how a user has interacted with notifications over
// the lookback window.
type UserAnalytics struct {
	UserID            uuid.UUID         `json:"user_id"`
	WindowDays        int               `json:"window_days"`
	EventCounts       map[EventType]int `json:"event_counts"`
	ActionableTotal   int               `json:"actionable_total"`
	ActionableClicked int               `json:"actionable_clicked"`
	HourTotals        [24]int           `json:"hour_totals"`
	HourReads         [24]int           `json:"hour_reads"`
	ComputedAt        time.Time         `json:"computed_at"`
}

// EventFrequency is the average number of notifications of the event per day.
func (a *UserAnalytics) EventFrequency(event EventType) float64 {
	if a == nil || a.WindowDays <= 0 {
		return 0
	}
	return float64(a.EventCounts[event]) / float64(a.WindowDays)
}

// MeanEventFrequency averages the daily frequency over the event types the user
// has actually received.
func (a *UserAnalytics) MeanEventFrequency() float64 {
	if a == nil || a.WindowDays <= 0 || len(a.EventCounts) == 0 {
		return 0
	}
	total := 0
	for _, c := range a.EventCounts {
		total += c
	}
	return float64(total) / float64(len(a.EventCounts)) / float64(a.WindowDays)
}

func (a *UserAnalytics) ActionRate() float64 {
	if a == nil || a.ActionableTotal == 0 {
		return 0
	}
	return float64(a.ActionableClicked) / float64(a.ActionableTotal)
}

// ReadRate returns the share of notifications created in the given hour that
// were read, plus the sample size.
func (a *UserAnalytics) ReadRate(hour int) (float64, int) {
	if a == nil || hour < 0 || hour > 23 || a.HourTotals[hour] == 0 {
		return 0, 0
	}
	return float64(a.HourReads[hour]) / float64(a.HourTotals[hour]), a.HourTotals[hour]
}

// AnalyticsRow is one aggregated row of the analytics query.
type AnalyticsRow struct {
	EventType  EventType `db:"event_type"`
	Hour       int       `db:"hour"`
	Total      int       `db:"total"`
	Read       int       `db:"read"`
	Actionable int       `db:"actionable"`
	Clicked    int       `db:"clicked"`
}
