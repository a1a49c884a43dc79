package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type NotificationPreferences struct {
	ID     uuid.UUID `json:"id" db:"id"`
	UserID uuid.UUID `json:"user_id" db:"user_id"`

	BudgetThresholdAlerts  bool `json:"budget_threshold_alerts" db:"budget_threshold_alerts"`
	BudgetExceededAlerts   bool `json:"budget_exceeded_alerts" db:"budget_exceeded_alerts"`
	BudgetExpiringAlerts   bool `json:"budget_expiring_alerts" db:"budget_expiring_alerts"`
	GoalMilestoneAlerts    bool `json:"goal_milestone_alerts" db:"goal_milestone_alerts"`
	GoalDeadlineAlerts     bool `json:"goal_deadline_alerts" db:"goal_deadline_alerts"`
	GoalCompletedAlerts    bool `json:"goal_completed_alerts" db:"goal_completed_alerts"`
	FamilyActivityAlerts   bool `json:"family_activity_alerts" db:"family_activity_alerts"`
	FamilyInvitationAlerts bool `json:"family_invitation_alerts" db:"family_invitation_alerts"`
	LargeTransactionAlerts bool `json:"large_transaction_alerts" db:"large_transaction_alerts"`
	LowBalanceAlerts       bool `json:"low_balance_alerts" db:"low_balance_alerts"`
	CategorySuggestions    bool `json:"category_suggestions" db:"category_suggestions"`
	RecurringReminders     bool `json:"recurring_reminders" db:"recurring_reminders"`
	MonthlySummaries       bool `json:"monthly_summaries" db:"monthly_summaries"`
	SystemAnnouncements    bool `json:"system_announcements" db:"system_announcements"`

	InAppEnabled bool `json:"in_app_enabled" db:"in_app_enabled"`
	EmailEnabled bool `json:"email_enabled" db:"email_enabled"`
	PushEnabled  bool `json:"push_enabled" db:"push_enabled"`

	LargeTransactionThreshold decimal.Decimal `json:"large_transaction_threshold" db:"large_transaction_threshold"`
	BudgetWarningThreshold    float64         `json:"budget_warning_threshold" db:"budget_warning_threshold"`
	LowBalanceThreshold       decimal.Decimal `json:"low_balance_threshold" db:"low_balance_threshold"`

	QuietHoursEnabled  bool   `json:"quiet_hours_enabled" db:"quiet_hours_enabled"`
	QuietHoursStart    string `json:"quiet_hours_start" db:"quiet_hours_start"`
	QuietHoursEnd      string `json:"quiet_hours_end" db:"quiet_hours_end"`
	QuietHoursTimezone string `json:"quiet_hours_timezone" db:"quiet_hours_timezone"`

	MaxNotificationsPerHour int `json:"max_notifications_per_hour" db:"max_notifications_per_hour"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// PreferenceDefaults seeds a preferences row on first access.
type PreferenceDefaults struct {
	LargeTransactionThreshold decimal.Decimal
	QuietHoursStart           string
	QuietHoursEnd             string
	QuietHoursTimezone        string
	MaxNotificationsPerHour   int
}

func DefaultPreferences(userID uuid.UUID, d PreferenceDefaults) *NotificationPreferences {
	return &NotificationPreferences{
		ID:                        uuid.New(),
		UserID:                    userID,
		BudgetThresholdAlerts:     true,
		BudgetExceededAlerts:      true,
		BudgetExpiringAlerts:      true,
		GoalMilestoneAlerts:       true,
		GoalDeadlineAlerts:        true,
		GoalCompletedAlerts:       true,
		FamilyActivityAlerts:      true,
		FamilyInvitationAlerts:    true,
		LargeTransactionAlerts:    true,
		LowBalanceAlerts:          true,
		CategorySuggestions:       true,
		RecurringReminders:        true,
		MonthlySummaries:          true,
		SystemAnnouncements:       true,
		InAppEnabled:              true,
		EmailEnabled:              false,
		PushEnabled:               false,
		LargeTransactionThreshold: d.LargeTransactionThreshold,
		BudgetWarningThreshold:    0.80,
		LowBalanceThreshold:       decimal.NewFromInt(100),
		QuietHoursEnabled:         false,
		QuietHoursStart:           d.QuietHoursStart,
		QuietHoursEnd:             d.QuietHoursEnd,
		QuietHoursTimezone:        d.QuietHoursTimezone,
		MaxNotificationsPerHour:   d.MaxNotificationsPerHour,
	}
}

// Allows reports whether the user's category toggles permit the event.
func (p *NotificationPreferences) Allows(event EventType) bool {
	if p == nil {
		return true
	}
	if !p.InAppEnabled && !p.EmailEnabled && !p.PushEnabled {
		return false
	}
	switch event {
	case EventBudgetThresholdWarning:
		return p.BudgetThresholdAlerts
	case EventBudgetExceeded:
		return p.BudgetExceededAlerts
	case EventBudgetPeriodExpiring:
		return p.BudgetExpiringAlerts
	case EventBudgetMonthlySummary, EventTransactionMonthlySummary:
		return p.MonthlySummaries
	case EventGoalMilestone25, EventGoalMilestone50, EventGoalMilestone75, EventGoalContributionAdded, EventGoalStatusChanged:
		return p.GoalMilestoneAlerts
	case EventGoalCompleted:
		return p.GoalCompletedAlerts
	case EventGoalDeadlineApproaching:
		return p.GoalDeadlineAlerts
	case EventFamilyInvitationReceived:
		return p.FamilyInvitationAlerts
	case EventFamilyInvitationAccepted, EventFamilyInvitationDeclined, EventFamilyMemberJoined, EventFamilyMemberLeft:
		return p.FamilyActivityAlerts
	case EventLargeTransactionAlert:
		return p.LargeTransactionAlerts
	case EventLowBalanceWarning:
		return p.LowBalanceAlerts
	case EventTransactionCategorySuggestion:
		return p.CategorySuggestions
	case EventRecurringTransactionReminder:
		return p.RecurringReminders
	case EventSystemAnnouncement, EventSystemMaintenance:
		return p.SystemAnnouncements
	}
	return true
}

// QuietHours is the parsed quiet-hours window of a user.
type QuietHours struct {
	Enabled  bool
	Start    int // minutes after midnight
	End      int
	Location *time.Location
}

// QuietWindow parses the stored quiet-hours fields. An unknown timezone falls
// back to UTC.
func (p *NotificationPreferences) QuietWindow() (QuietHours, error) {
	if p == nil || !p.QuietHoursEnabled {
		return QuietHours{}, nil
	}
	start, err := ParseClock(p.QuietHoursStart)
	if err != nil {
		return QuietHours{}, err
	}
	end, err := ParseClock(p.QuietHoursEnd)
	if err != nil {
		return QuietHours{}, err
	}
	loc, err := time.LoadLocation(p.QuietHoursTimezone)
	if err != nil || p.QuietHoursTimezone == "" {
		loc = time.UTC
	}
	return QuietHours{Enabled: true, Start: start, End: end, Location: loc}, nil
}

// Contains reports whether t falls inside the window. Windows whose end is
// before their start wrap midnight; equal start and end means an empty window.
func (q QuietHours) Contains(t time.Time) bool {
	if !q.Enabled || q.Start == q.End {
		return false
	}
	loc := q.Location
	if loc == nil {
		loc = time.UTC
	}
	local := t.In(loc)
	minute := local.Hour()*60 + local.Minute()
	if q.Start < q.End {
		return minute >= q.Start && minute < q.End
	}
	return minute >= q.Start || minute < q.End
}

// ParseClock parses an HH:MM wall-clock time into minutes after midnight.
func ParseClock(value string) (int, error) {
	parts := strings.Split(value, ":")
	if len(parts) != 2 || len(parts[0]) != 2 || len(parts[1]) != 2 {
		return 0, fmt.Errorf("invalid time %q, expected HH:MM", value)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("invalid hour in %q", value)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid minute in %q", value)
	}
	return h*60 + m, nil
}

// UpdatePreferencesInput is a partial update; nil fields are left untouched.
type UpdatePreferencesInput struct {
	BudgetThresholdAlerts  *bool `json:"budget_threshold_alerts"`
	BudgetExceededAlerts   *bool `json:"budget_exceeded_alerts"`
	BudgetExpiringAlerts   *bool `json:"budget_expiring_alerts"`
	GoalMilestoneAlerts    *bool `json:"goal_milestone_alerts"`
	GoalDeadlineAlerts     *bool `json:"goal_deadline_alerts"`
	GoalCompletedAlerts    *bool `json:"goal_completed_alerts"`
	FamilyActivityAlerts   *bool `json:"family_activity_alerts"`
	FamilyInvitationAlerts *bool `json:"family_invitation_alerts"`
	LargeTransactionAlerts *bool `json:"large_transaction_alerts"`
	LowBalanceAlerts       *bool `json:"low_balance_alerts"`
	CategorySuggestions    *bool `json:"category_suggestions"`
	RecurringReminders     *bool `json:"recurring_reminders"`
	MonthlySummaries       *bool `json:"monthly_summaries"`
	SystemAnnouncements    *bool `json:"system_announcements"`

	InAppEnabled *bool `json:"in_app_enabled"`
	EmailEnabled *bool `json:"email_enabled"`
	PushEnabled  *bool `json:"push_enabled"`

	LargeTransactionThreshold *decimal.Decimal `json:"large_transaction_threshold"`
	BudgetWarningThreshold    *float64         `json:"budget_warning_threshold" validate:"omitempty,gte=0,lte=1"`
	LowBalanceThreshold       *decimal.Decimal `json:"low_balance_threshold"`

	QuietHoursEnabled  *bool   `json:"quiet_hours_enabled"`
	QuietHoursStart    *string `json:"quiet_hours_start" validate:"omitempty,hhmm"`
	QuietHoursEnd      *string `json:"quiet_hours_end" validate:"omitempty,hhmm"`
	QuietHoursTimezone *string `json:"quiet_hours_timezone" validate:"omitempty,timezone"`

	MaxNotificationsPerHour *int `json:"max_notifications_per_hour" validate:"omitempty,min=1,max=100"`
}

// Validate covers the rules struct tags cannot express.
func (in *UpdatePreferencesInput) Validate() error {
	if in.LargeTransactionThreshold != nil && !in.LargeTransactionThreshold.IsPositive() {
		return &ValidationError{Field: "large_transaction_threshold", Message: "must be greater than 0"}
	}
	if in.LowBalanceThreshold != nil && in.LowBalanceThreshold.IsNegative() {
		return &ValidationError{Field: "low_balance_threshold", Message: "must not be negative"}
	}
	return nil
}

// Apply copies every set field onto p.
func (in *UpdatePreferencesInput) Apply(p *NotificationPreferences) {
	setBool := func(dst *bool, src *bool) {
		if src != nil {
			*dst = *src
		}
	}
	setBool(&p.BudgetThresholdAlerts, in.BudgetThresholdAlerts)
	setBool(&p.BudgetExceededAlerts, in.BudgetExceededAlerts)
	setBool(&p.BudgetExpiringAlerts, in.BudgetExpiringAlerts)
	setBool(&p.GoalMilestoneAlerts, in.GoalMilestoneAlerts)
	setBool(&p.GoalDeadlineAlerts, in.GoalDeadlineAlerts)
	setBool(&p.GoalCompletedAlerts, in.GoalCompletedAlerts)
	setBool(&p.FamilyActivityAlerts, in.FamilyActivityAlerts)
	setBool(&p.FamilyInvitationAlerts, in.FamilyInvitationAlerts)
	setBool(&p.LargeTransactionAlerts, in.LargeTransactionAlerts)
	setBool(&p.LowBalanceAlerts, in.LowBalanceAlerts)
	setBool(&p.CategorySuggestions, in.CategorySuggestions)
	setBool(&p.RecurringReminders, in.RecurringReminders)
	setBool(&p.MonthlySummaries, in.MonthlySummaries)
	setBool(&p.SystemAnnouncements, in.SystemAnnouncements)
	setBool(&p.InAppEnabled, in.InAppEnabled)
	setBool(&p.EmailEnabled, in.EmailEnabled)
	setBool(&p.PushEnabled, in.PushEnabled)
	setBool(&p.QuietHoursEnabled, in.QuietHoursEnabled)

	if in.LargeTransactionThreshold != nil {
		p.LargeTransactionThreshold = *in.LargeTransactionThreshold
	}
	if in.BudgetWarningThreshold != nil {
		p.BudgetWarningThreshold = *in.BudgetWarningThreshold
	}
	if in.LowBalanceThreshold != nil {
		p.LowBalanceThreshold = *in.LowBalanceThreshold
	}
	if in.QuietHoursStart != nil {
		p.QuietHoursStart = *in.QuietHoursStart
	}
	if in.QuietHoursEnd != nil {
		p.QuietHoursEnd = *in.QuietHoursEnd
	}
	if in.QuietHoursTimezone != nil {
		p.QuietHoursTimezone = *in.QuietHoursTimezone
	}
	if in.MaxNotificationsPerHour != nil {
		p.MaxNotificationsPerHour = *in.MaxNotificationsPerHour
	}
}
