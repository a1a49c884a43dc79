package domain

import (
	"time"

	"github.com/google/uuid"
)

// LedgerEntry records that a one-shot notification was emitted for a breakpoint
// that has no flag column of its own.
type LedgerEntry struct {
	DedupKey  string    `json:"dedup_key" db:"dedup_key"`
	UserID    uuid.UUID `json:"user_id" db:"user_id"`
	EntityID  uuid.UUID `json:"entity_id" db:"entity_id"`
	EventType EventType `json:"event_type" db:"event_type"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
