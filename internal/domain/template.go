package domain

import (
	"time"

	"github.com/google/uuid"
)

type NotificationTemplate struct {
	ID                uuid.UUID        `json:"id" db:"id"`
	NotificationType  NotificationType `json:"notification_type" db:"notification_type"`
	EventType         EventType        `json:"event_type" db:"event_type"`
	TitleTemplate     string           `json:"title_template" db:"title_template"`
	MessageTemplate   string           `json:"message_template" db:"message_template"`
	DefaultPriority   Priority         `json:"default_priority" db:"default_priority"`
	DefaultSeverity   Severity         `json:"default_severity" db:"default_severity"`
	IsActionable      bool             `json:"is_actionable" db:"is_actionable"`
	ActionText        *string          `json:"action_text,omitempty" db:"action_text"`
	ActionURLTemplate *string          `json:"action_url_template,omitempty" db:"action_url_template"`
	IsActive          bool             `json:"is_active" db:"is_active"`
	CreatedAt         time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at" db:"updated_at"`
}

// RenderedTemplate is a template after placeholder substitution.
type RenderedTemplate struct {
	Title        string   `json:"title"`
	Message      string   `json:"message"`
	Priority     Priority `json:"priority"`
	Severity     Severity `json:"severity"`
	IsActionable bool     `json:"is_actionable"`
	ActionText   *string  `json:"action_text,omitempty"`
	ActionURL    *string  `json:"action_url,omitempty"`
}
