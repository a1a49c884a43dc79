package domain

import (
	"time"

	"github.com/google/uuid"
)

// Profile is the slice of a user account that notifications need: where to send
// email and what to call the person.
type Profile struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Email     string    `json:"email" db:"email"`
	FullName  string    `json:"full_name" db:"full_name"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// DisplayName falls back to the email address when no name is set.
func (p *Profile) DisplayName() string {
	if p == nil {
		return "Someone"
	}
	if p.FullName != "" {
		return p.FullName
	}
	return p.Email
}
