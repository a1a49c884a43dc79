package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type GoalStatus string

const (
	GoalInProgress GoalStatus = "in_progress"
	GoalCompleted  GoalStatus = "completed"
	GoalPaused     GoalStatus = "paused"
	GoalCancelled  GoalStatus = "cancelled"
)

// GoalFlag names a notification bookkeeping column on the goals table.
type GoalFlag string

const (
	FlagMilestone25     GoalFlag = "milestone_25_notified"
	FlagMilestone50     GoalFlag = "milestone_50_notified"
	FlagMilestone75     GoalFlag = "milestone_75_notified"
	FlagGoalCompleted   GoalFlag = "goal_completed_notified"
	FlagDeadlineWarning GoalFlag = "deadline_warning_sent"
)

func (f GoalFlag) IsValid() bool {
	switch f {
	case FlagMilestone25, FlagMilestone50, FlagMilestone75, FlagGoalCompleted, FlagDeadlineWarning:
		return true
	}
	return false
}

type Milestone struct {
	Ratio   float64
	Percent int
	Event   EventType
	Flag    GoalFlag
}

// GoalMilestones is the fixed milestone ladder in ascending order.
var GoalMilestones = []Milestone{
	{Ratio: 0.25, Percent: 25, Event: EventGoalMilestone25, Flag: FlagMilestone25},
	{Ratio: 0.50, Percent: 50, Event: EventGoalMilestone50, Flag: FlagMilestone50},
	{Ratio: 0.75, Percent: 75, Event: EventGoalMilestone75, Flag: FlagMilestone75},
	{Ratio: 1.00, Percent: 100, Event: EventGoalCompleted, Flag: FlagGoalCompleted},
}

type Goal struct {
	ID                    uuid.UUID       `json:"id" db:"id"`
	UserID                uuid.UUID       `json:"user_id" db:"user_id"`
	FamilyID              *uuid.UUID      `json:"family_id,omitempty" db:"family_id"`
	GoalName              string          `json:"goal_name" db:"goal_name"`
	TargetAmount          decimal.Decimal `json:"target_amount" db:"target_amount"`
	CurrentAmount         decimal.Decimal `json:"current_amount" db:"current_amount"`
	Currency              string          `json:"currency" db:"currency"`
	TargetDate            *time.Time      `json:"target_date,omitempty" db:"target_date"`
	Status                GoalStatus      `json:"status" db:"status"`
	IsFamilyGoal          bool            `json:"is_family_goal" db:"is_family_goal"`
	Milestone25Notified   bool            `json:"milestone_25_notified" db:"milestone_25_notified"`
	Milestone50Notified   bool            `json:"milestone_50_notified" db:"milestone_50_notified"`
	Milestone75Notified   bool            `json:"milestone_75_notified" db:"milestone_75_notified"`
	GoalCompletedNotified bool            `json:"goal_completed_notified" db:"goal_completed_notified"`
	DeadlineWarningSent   bool            `json:"deadline_warning_sent" db:"deadline_warning_sent"`
	CreatedAt             time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt             time.Time       `json:"updated_at" db:"updated_at"`
}

// Progress is current/target; zero for goals without a positive target.
func (g *Goal) Progress() float64 {
	if !g.TargetAmount.IsPositive() {
		return 0
	}
	return g.CurrentAmount.Div(g.TargetAmount).InexactFloat64()
}

func (g *Goal) Remaining() decimal.Decimal {
	r := g.TargetAmount.Sub(g.CurrentAmount)
	if r.IsNegative() {
		return decimal.Zero
	}
	return r
}

func (g *Goal) Flag(f GoalFlag) bool {
	switch f {
	case FlagMilestone25:
		return g.Milestone25Notified
	case FlagMilestone50:
		return g.Milestone50Notified
	case FlagMilestone75:
		return g.Milestone75Notified
	case FlagGoalCompleted:
		return g.GoalCompletedNotified
	case FlagDeadlineWarning:
		return g.DeadlineWarningSent
	}
	return false
}

func (g *Goal) SetFlag(f GoalFlag, v bool) {
	switch f {
	case FlagMilestone25:
		g.Milestone25Notified = v
	case FlagMilestone50:
		g.Milestone50Notified = v
	case FlagMilestone75:
		g.Milestone75Notified = v
	case FlagGoalCompleted:
		g.GoalCompletedNotified = v
	case FlagDeadlineWarning:
		g.DeadlineWarningSent = v
	}
}

// IsShared reports whether milestone events fan out to a family.
func (g *Goal) IsShared() bool {
	return g.IsFamilyGoal && g.FamilyID != nil
}
