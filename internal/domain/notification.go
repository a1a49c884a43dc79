package domain

import (
	"time"

	"github.com/google/uuid"
)

type NotificationType string

const (
	NotificationTypeBudget      NotificationType = "budget"
	NotificationTypeGoal        NotificationType = "goal"
	NotificationTypeFamily      NotificationType = "family"
	NotificationTypeTransaction NotificationType = "transaction"
	NotificationTypeSystem      NotificationType = "system"
)

// NotificationTypes lists every type in display order.
var NotificationTypes = []NotificationType{
	NotificationTypeBudget,
	NotificationTypeGoal,
	NotificationTypeFamily,
	NotificationTypeTransaction,
	NotificationTypeSystem,
}

func (t NotificationType) IsValid() bool {
	switch t {
	case NotificationTypeBudget, NotificationTypeGoal, NotificationTypeFamily,
		NotificationTypeTransaction, NotificationTypeSystem:
		return true
	}
	return false
}

type EventType string

const (
	EventBudgetThresholdWarning EventType = "budget_threshold_warning"
	EventBudgetExceeded         EventType = "budget_exceeded"
	EventBudgetPeriodExpiring   EventType = "budget_period_expiring"
	EventBudgetMonthlySummary   EventType = "budget_monthly_summary"

	EventGoalMilestone25         EventType = "goal_milestone_25"
	EventGoalMilestone50         EventType = "goal_milestone_50"
	EventGoalMilestone75         EventType = "goal_milestone_75"
	EventGoalCompleted           EventType = "goal_completed"
	EventGoalDeadlineApproaching EventType = "goal_deadline_approaching"
	EventGoalStatusChanged       EventType = "goal_status_changed"
	EventGoalContributionAdded   EventType = "goal_contribution_added"

	EventFamilyInvitationReceived EventType = "family_invitation_received"
	EventFamilyInvitationAccepted EventType = "family_invitation_accepted"
	EventFamilyInvitationDeclined EventType = "family_invitation_declined"
	EventFamilyMemberJoined       EventType = "family_member_joined"
	EventFamilyMemberLeft         EventType = "family_member_left"

	EventLargeTransactionAlert         EventType = "large_transaction_alert"
	EventLowBalanceWarning             EventType = "low_balance_warning"
	EventTransactionCategorySuggestion EventType = "transaction_category_suggestion"
	EventRecurringTransactionReminder  EventType = "recurring_transaction_reminder"
	EventTransactionMonthlySummary     EventType = "transaction_monthly_summary"

	EventSystemAnnouncement EventType = "system_announcement"
	EventSystemMaintenance  EventType = "system_maintenance"
)

var eventCategories = map[EventType]NotificationType{
	EventBudgetThresholdWarning: NotificationTypeBudget,
	EventBudgetExceeded:         NotificationTypeBudget,
	EventBudgetPeriodExpiring:   NotificationTypeBudget,
	EventBudgetMonthlySummary:   NotificationTypeBudget,

	EventGoalMilestone25:         NotificationTypeGoal,
	EventGoalMilestone50:         NotificationTypeGoal,
	EventGoalMilestone75:         NotificationTypeGoal,
	EventGoalCompleted:           NotificationTypeGoal,
	EventGoalDeadlineApproaching: NotificationTypeGoal,
	EventGoalStatusChanged:       NotificationTypeGoal,
	EventGoalContributionAdded:   NotificationTypeGoal,

	EventFamilyInvitationReceived: NotificationTypeFamily,
	EventFamilyInvitationAccepted: NotificationTypeFamily,
	EventFamilyInvitationDeclined: NotificationTypeFamily,
	EventFamilyMemberJoined:       NotificationTypeFamily,
	EventFamilyMemberLeft:         NotificationTypeFamily,

	EventLargeTransactionAlert:         NotificationTypeTransaction,
	EventLowBalanceWarning:             NotificationTypeTransaction,
	EventTransactionCategorySuggestion: NotificationTypeTransaction,
	EventRecurringTransactionReminder:  NotificationTypeTransaction,
	EventTransactionMonthlySummary:     NotificationTypeTransaction,

	EventSystemAnnouncement: NotificationTypeSystem,
	EventSystemMaintenance:  NotificationTypeSystem,
}

func (e EventType) IsValid() bool {
	_, ok := eventCategories[e]
	return ok
}

// Category returns the notification type an event belongs to.
func (e EventType) Category() (NotificationType, bool) {
	t, ok := eventCategories[e]
	return t, ok
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

func (p Priority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// Rank maps the priority onto the 1-4 scoring scale.
func (p Priority) Rank() int {
	switch p {
	case PriorityUrgent:
		return 4
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	}
	return 0
}

// PriorityFromScore buckets a 1-4 score back into a priority.
func PriorityFromScore(score float64) Priority {
	switch {
	case score >= 3.5:
		return PriorityUrgent
	case score >= 2.5:
		return PriorityHigh
	case score >= 1.5:
		return PriorityMedium
	default:
		return PriorityLow
	}
}

type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
	SeveritySuccess Severity = "success"
)

func (s Severity) IsValid() bool {
	switch s {
	case SeverityInfo, SeverityWarning, SeverityError, SeveritySuccess:
		return true
	}
	return false
}

type Notification struct {
	ID               uuid.UUID        `json:"id" db:"id"`
	UserID           uuid.UUID        `json:"user_id" db:"user_id"`
	NotificationType NotificationType `json:"notification_type" db:"notification_type"`
	EventType        EventType        `json:"event_type" db:"event_type"`
	Title            string           `json:"title" db:"title"`
	Message          string           `json:"message" db:"message"`
	Priority         Priority         `json:"priority" db:"priority"`
	Severity         Severity         `json:"severity" db:"severity"`
	IsRead           bool             `json:"is_read" db:"is_read"`
	ReadAt           *time.Time       `json:"read_at,omitempty" db:"read_at"`
	IsActionable     bool             `json:"is_actionable" db:"is_actionable"`
	ActionURL        *string          `json:"action_url,omitempty" db:"action_url"`
	ActionText       *string          `json:"action_text,omitempty" db:"action_text"`
	Related          RelatedEntity    `json:"related_entity" db:"-"`
	Metadata         Metadata         `json:"metadata" db:"metadata"`
	CreatedAt        time.Time        `json:"created_at" db:"created_at"`
	ExpiresAt        *time.Time       `json:"expires_at,omitempty" db:"expires_at"`
	DeliveredAt      *time.Time       `json:"delivered_at,omitempty" db:"delivered_at"`
	ClickedAt        *time.Time       `json:"clicked_at,omitempty" db:"clicked_at"`
}

// MarkRead transitions the notification to read. It reports whether the state
// changed so callers can keep counts of newly read rows.
func (n *Notification) MarkRead(at time.Time) bool {
	if n.IsRead {
		return false
	}
	n.IsRead = true
	n.ReadAt = &at
	return true
}

func (n *Notification) IsExpired(now time.Time) bool {
	return n.ExpiresAt != nil && !n.ExpiresAt.After(now)
}

// CreateNotificationInput is the payload accepted by the core service. Either
// Title and Message, or TemplateData resolvable through a template, must be given.
type CreateNotificationInput struct {
	UserID           uuid.UUID        `json:"user_id" validate:"required"`
	NotificationType NotificationType `json:"notification_type" validate:"required,oneof=budget goal family transaction system"`
	EventType        EventType        `json:"event_type" validate:"required"`
	Title            string           `json:"title" validate:"omitempty,max=200"`
	Message          string           `json:"message" validate:"omitempty,max=2000"`
	Priority         Priority         `json:"priority" validate:"omitempty,oneof=low medium high urgent"`
	Severity         Severity         `json:"severity" validate:"omitempty,oneof=info warning error success"`
	IsActionable     bool             `json:"is_actionable"`
	ActionURL        *string          `json:"action_url" validate:"omitempty,max=500"`
	ActionText       *string          `json:"action_text" validate:"omitempty,max=100"`
	Related          RelatedEntity    `json:"related_entity"`
	Metadata         Metadata         `json:"metadata"`
	TemplateData     map[string]any   `json:"template_data"`
	ExpiresInHours   *int             `json:"expires_in_hours" validate:"omitempty,min=1,max=8760"`
}

type SortField string

const (
	SortByCreatedAt SortField = "created_at"
	SortByPriority  SortField = "priority"
	SortByIsRead    SortField = "is_read"
)

type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// NotificationQuery enumerates the options of a notification listing.
type NotificationQuery struct {
	Limit            int               `json:"limit"`
	Offset           int               `json:"offset"`
	NotificationType *NotificationType `json:"notification_type,omitempty"`
	EventType        *EventType        `json:"event_type,omitempty"`
	Priority         *Priority         `json:"priority,omitempty"`
	IsRead           *bool             `json:"is_read,omitempty"`
	CreatedAfter     *time.Time        `json:"created_after,omitempty"`
	CreatedBefore    *time.Time        `json:"created_before,omitempty"`
	SortBy           SortField         `json:"sort_by"`
	SortOrder        SortOrder         `json:"sort_order"`
}

const DefaultQueryLimit = 20

// Normalize clamps limit into [1, maxLimit] and fills sort defaults.
func (q *NotificationQuery) Normalize(maxLimit int) {
	if maxLimit < 1 {
		maxLimit = 100
	}
	if q.Limit < 1 {
		q.Limit = DefaultQueryLimit
	}
	if q.Limit > maxLimit {
		q.Limit = maxLimit
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	switch q.SortBy {
	case SortByCreatedAt, SortByPriority, SortByIsRead:
	default:
		q.SortBy = SortByCreatedAt
	}
	if q.SortOrder != SortAsc {
		q.SortOrder = SortDesc
	}
}

type NotificationCounts struct {
	Total      int64                      `json:"total"`
	Unread     int64                      `json:"unread"`
	ByType     map[NotificationType]int64 `json:"by_type"`
	ByPriority map[Priority]int64         `json:"by_priority"`
}

// MaxBatchMarkRead caps MarkMultipleAsRead.
const MaxBatchMarkRead = 50
