package domain

import (
	"time"

	"github.com/google/uuid"
)

type Family struct {
	ID         uuid.UUID `json:"id" db:"id"`
	FamilyName string    `json:"family_name" db:"family_name"`
	CreatedBy  uuid.UUID `json:"created_by" db:"created_by"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

type FamilyRole string

const (
	FamilyRoleAdmin  FamilyRole = "admin"
	FamilyRoleMember FamilyRole = "member"
	FamilyRoleViewer FamilyRole = "viewer"
)

type MemberStatus string

const (
	MemberActive   MemberStatus = "active"
	MemberPending  MemberStatus = "pending"
	MemberInactive MemberStatus = "inactive"
)

type FamilyMember struct {
	ID        uuid.UUID    `json:"id" db:"id"`
	FamilyID  uuid.UUID    `json:"family_id" db:"family_id"`
	UserID    uuid.UUID    `json:"user_id" db:"user_id"`
	Role      FamilyRole   `json:"role" db:"role"`
	Status    MemberStatus `json:"status" db:"status"`
	JoinedAt  *time.Time   `json:"joined_at,omitempty" db:"joined_at"`
	CreatedAt time.Time    `json:"created_at" db:"created_at"`
}

type InvitationStatus string

const (
	InvitationPending  InvitationStatus = "pending"
	InvitationAccepted InvitationStatus = "accepted"
	InvitationDeclined InvitationStatus = "declined"
	InvitationExpired  InvitationStatus = "expired"
)

type FamilyInvitation struct {
	ID            uuid.UUID        `json:"id" db:"id"`
	FamilyID      uuid.UUID        `json:"family_id" db:"family_id"`
	InvitedBy     uuid.UUID        `json:"invited_by" db:"invited_by"`
	Email         string           `json:"email" db:"email"`
	InviteeUserID *uuid.UUID       `json:"invitee_user_id,omitempty" db:"invitee_user_id"`
	Role          FamilyRole       `json:"role" db:"role"`
	Status        InvitationStatus `json:"status" db:"status"`
	Message       *string          `json:"message,omitempty" db:"message"`
	CreatedAt     time.Time        `json:"created_at" db:"created_at"`
	ExpiresAt     *time.Time       `json:"expires_at,omitempty" db:"expires_at"`
}
