package detector

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"budgetme-notifications/internal/domain"
	"budgetme-notifications/internal/repository"
)

type FamilyDetector interface {
	HandleInvitationCreated(ctx context.Context, inv *domain.FamilyInvitation) error
	HandleInvitationUpdated(ctx context.Context, old, updated *domain.FamilyInvitation) error
	HandleMemberJoined(ctx context.Context, member *domain.FamilyMember) (int, error)
	HandleMemberLeft(ctx context.Context, member *domain.FamilyMember) (int, error)
	// NotifyFamilyMembers sends build's notification to every active member
	// except the actor and the excluded ids, and returns how many were sent.
	NotifyFamilyMembers(ctx context.Context, familyID, actorID uuid.UUID, exclude []uuid.UUID, build func(member domain.FamilyMember) domain.CreateNotificationInput) (int, error)
}

type familyDetector struct {
	base
	families repository.FamilyRepository
	profiles repository.ProfileRepository
}

func NewFamilyDetector(d Deps) FamilyDetector {
	return &familyDetector{
		base:     newBase(d, "family_detector"),
		families: d.Families,
		profiles: d.Profiles,
	}
}

func (d *familyDetector) familyName(ctx context.Context, id uuid.UUID) string {
	f, err := d.families.GetByID(ctx, id)
	if err != nil || f == nil {
		return "your family"
	}
	return f.FamilyName
}

func (d *familyDetector) displayName(ctx context.Context, userID uuid.UUID) string {
	p, err := d.profiles.GetByID(ctx, userID)
	if err != nil {
		p = nil
	}
	return p.DisplayName()
}

func (d *familyDetector) HandleInvitationCreated(ctx context.Context, inv *domain.FamilyInvitation) error {
	if inv.Status != "" && inv.Status != domain.InvitationPending {
		return nil
	}

	inviteeID := inv.InviteeUserID
	if inviteeID == nil {
		p, err := d.profiles.GetByEmail(ctx, inv.Email)
		if err != nil {
			return fmt.Errorf("failed to resolve invitee: %w", err)
		}
		if p == nil {
			d.log.Debug().Str("invitation_id", inv.ID.String()).Msg("invitee has no account yet, skipping")
			return nil
		}
		inviteeID = &p.ID
	}

	if _, ok := d.allowed(ctx, *inviteeID, domain.EventFamilyInvitationReceived); !ok {
		return nil
	}

	familyName := d.familyName(ctx, inv.FamilyID)
	return d.emit(ctx, domain.CreateNotificationInput{
		UserID:           *inviteeID,
		NotificationType: domain.NotificationTypeFamily,
		EventType:        domain.EventFamilyInvitationReceived,
		Related:          domain.FamilyEntity(inv.FamilyID),
		TemplateData: map[string]any{
			"family_name":   familyName,
			"inviter_name":  d.displayName(ctx, inv.InvitedBy),
			"invitation_id": inv.ID.String(),
		},
		Metadata: domain.Metadata{
			"invitation_id": inv.ID.String(),
			"family_id":     inv.FamilyID.String(),
			"role":          string(inv.Role),
		},
	})
}

func (d *familyDetector) HandleInvitationUpdated(ctx context.Context, old, updated *domain.FamilyInvitation) error {
	if old != nil && old.Status == updated.Status {
		return nil
	}

	var event domain.EventType
	switch updated.Status {
	case domain.InvitationAccepted:
		event = domain.EventFamilyInvitationAccepted
	case domain.InvitationDeclined:
		event = domain.EventFamilyInvitationDeclined
	default:
		return nil
	}

	if _, ok := d.allowed(ctx, updated.InvitedBy, event); !ok {
		return nil
	}
	return d.emit(ctx, domain.CreateNotificationInput{
		UserID:           updated.InvitedBy,
		NotificationType: domain.NotificationTypeFamily,
		EventType:        event,
		Related:          domain.FamilyEntity(updated.FamilyID),
		TemplateData: map[string]any{
			"family_name":   d.familyName(ctx, updated.FamilyID),
			"invitee_email": updated.Email,
		},
		Metadata: domain.Metadata{
			"invitation_id": updated.ID.String(),
			"family_id":     updated.FamilyID.String(),
		},
	})
}

func (d *familyDetector) HandleMemberJoined(ctx context.Context, member *domain.FamilyMember) (int, error) {
	if member.Status != "" && member.Status != domain.MemberActive {
		return 0, nil
	}
	return d.memberEvent(ctx, member, domain.EventFamilyMemberJoined)
}

func (d *familyDetector) HandleMemberLeft(ctx context.Context, member *domain.FamilyMember) (int, error) {
	return d.memberEvent(ctx, member, domain.EventFamilyMemberLeft)
}

func (d *familyDetector) memberEvent(ctx context.Context, member *domain.FamilyMember, event domain.EventType) (int, error) {
	familyName := d.familyName(ctx, member.FamilyID)
	memberName := d.displayName(ctx, member.UserID)

	return d.NotifyFamilyMembers(ctx, member.FamilyID, member.UserID, nil, func(m domain.FamilyMember) domain.CreateNotificationInput {
		return domain.CreateNotificationInput{
			UserID:           m.UserID,
			NotificationType: domain.NotificationTypeFamily,
			EventType:        event,
			Related:          domain.FamilyEntity(member.FamilyID),
			TemplateData: map[string]any{
				"family_name": familyName,
				"member_name": memberName,
				"family_id":   member.FamilyID.String(),
			},
			Metadata: domain.Metadata{
				"family_id":      member.FamilyID.String(),
				"member_user_id": member.UserID.String(),
			},
		}
	})
}

func (d *familyDetector) NotifyFamilyMembers(ctx context.Context, familyID, actorID uuid.UUID, exclude []uuid.UUID, build func(member domain.FamilyMember) domain.CreateNotificationInput) (int, error) {
	members, err := d.families.ListActiveMembers(ctx, familyID)
	if err != nil {
		return 0, fmt.Errorf("failed to list family members: %w", err)
	}

	skip := make(map[uuid.UUID]bool, len(exclude)+1)
	skip[actorID] = true
	for _, id := range exclude {
		skip[id] = true
	}

	byUser := make(map[uuid.UUID]domain.FamilyMember, len(members))
	recipients := make([]uuid.UUID, 0, len(members))
	for _, m := range members {
		if skip[m.UserID] {
			continue
		}
		if _, dup := byUser[m.UserID]; dup {
			continue
		}
		byUser[m.UserID] = m
		recipients = append(recipients, m.UserID)
	}

	sent, _ := d.fanOut(ctx, recipients, func(userID uuid.UUID) domain.CreateNotificationInput {
		return build(byUser[userID])
	})
	return sent, nil
}
