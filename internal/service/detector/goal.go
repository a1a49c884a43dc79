package detector

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"budgetme-notifications/internal/domain"
	"budgetme-notifications/internal/repository"
)

const (
	deadlineWindow  = 14 * 24 * time.Hour
	deadlineUrgency = 3
)

type GoalDetector interface {
	CheckGoalMilestones(ctx context.Context) (int, error)
	// CheckGoal emits every milestone the goal has newly crossed.
	CheckGoal(ctx context.Context, goal *domain.Goal) (int, error)
	CheckGoalDeadlines(ctx context.Context) (int, error)
	ResetDeadlineWarning(ctx context.Context, goalID uuid.UUID) error
	HandleStatusChange(ctx context.Context, old, updated *domain.Goal) error
}

type goalDetector struct {
	base
	goals    repository.GoalRepository
	families repository.FamilyRepository
}

func NewGoalDetector(d Deps) GoalDetector {
	return &goalDetector{
		base:     newBase(d, "goal_detector"),
		goals:    d.Goals,
		families: d.Families,
	}
}

func (d *goalDetector) CheckGoalMilestones(ctx context.Context) (int, error) {
	goals, err := d.goals.ListInProgress(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list goals: %w", err)
	}

	sent := 0
	for i := range goals {
		g := &goals[i]
		n, err := d.CheckGoal(ctx, g)
		if err != nil {
			d.failed(err).Str("goal_id", g.ID.String()).Msg("milestone check failed")
		}
		sent += n
	}
	return sent, nil
}

func (d *goalDetector) CheckGoal(ctx context.Context, g *domain.Goal) (int, error) {
	if g.Status != domain.GoalInProgress && g.Status != domain.GoalCompleted {
		return 0, nil
	}

	progress := g.Progress()
	sent := 0
	for _, m := range domain.GoalMilestones {
		if progress < m.Ratio || g.Flag(m.Flag) {
			continue
		}
		n, err := d.notifyMilestone(ctx, g, m)
		if err != nil {
			return sent, err
		}
		sent += n
	}
	return sent, nil
}

// notifyMilestone claims the milestone flag and emits to the owner, or to every
// active member for a shared goal. The flag is reset if nobody was notified
// because of an error.
func (d *goalDetector) notifyMilestone(ctx context.Context, g *domain.Goal, m domain.Milestone) (int, error) {
	shared := g.IsShared()
	if !shared {
		if _, ok := d.allowed(ctx, g.UserID, m.Event); !ok {
			return 0, nil
		}
	}

	claimed, err := d.goals.ClaimFlag(ctx, g.ID, m.Flag)
	if err != nil {
		return 0, fmt.Errorf("failed to claim %s: %w", m.Flag, err)
	}
	if !claimed {
		g.SetFlag(m.Flag, true)
		return 0, nil
	}
	g.SetFlag(m.Flag, true)

	build := func(userID uuid.UUID) domain.CreateNotificationInput {
		return domain.CreateNotificationInput{
			UserID:           userID,
			NotificationType: domain.NotificationTypeGoal,
			EventType:        m.Event,
			Related:          domain.GoalEntity(g.ID),
			TemplateData:     goalData(g),
			Metadata: domain.Metadata{
				"goal_id":   g.ID.String(),
				"milestone": m.Percent,
				"shared":    shared,
			},
		}
	}

	if !shared {
		if err := d.emit(ctx, build(g.UserID)); err != nil {
			d.resetFlag(ctx, g, m.Flag)
			return 0, err
		}
		return 1, nil
	}

	recipients, err := d.familyRecipients(ctx, g)
	if err != nil {
		d.resetFlag(ctx, g, m.Flag)
		return 0, err
	}
	sent, failed := d.fanOut(ctx, recipients, build)
	if sent == 0 && failed > 0 {
		d.resetFlag(ctx, g, m.Flag)
	}
	return sent, nil
}

// familyRecipients lists the active members of a shared goal's family, always
// including the owner.
func (d *goalDetector) familyRecipients(ctx context.Context, g *domain.Goal) ([]uuid.UUID, error) {
	members, err := d.families.ListActiveMembers(ctx, *g.FamilyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list family members: %w", err)
	}
	recipients := []uuid.UUID{g.UserID}
	for _, m := range members {
		if m.UserID != g.UserID {
			recipients = append(recipients, m.UserID)
		}
	}
	return recipients, nil
}

func (d *goalDetector) resetFlag(ctx context.Context, g *domain.Goal, flag domain.GoalFlag) {
	if _, err := d.goals.ResetFlag(ctx, g.ID, flag); err != nil {
		d.log.Warn().Err(err).Str("goal_id", g.ID.String()).Str("flag", string(flag)).Msg("failed to release goal flag")
		return
	}
	g.SetFlag(flag, false)
}

func goalData(g *domain.Goal) map[string]any {
	return map[string]any{
		"goal_id":        g.ID.String(),
		"goal_name":      g.GoalName,
		"current_amount": money(g.CurrentAmount),
		"target_amount":  money(g.TargetAmount),
		"remaining":      money(g.Remaining()),
		"percentage":     percent(g.Progress()),
	}
}

func (d *goalDetector) CheckGoalDeadlines(ctx context.Context) (int, error) {
	now := d.now().UTC()
	goals, err := d.goals.ListDeadlineCandidates(ctx, now, now.Add(deadlineWindow))
	if err != nil {
		return 0, fmt.Errorf("failed to list goals near deadline: %w", err)
	}

	sent := 0
	for i := range goals {
		g := &goals[i]
		ok, err := d.notifyDeadline(ctx, g, now)
		if err != nil {
			d.failed(err).Str("goal_id", g.ID.String()).Msg("deadline check failed")
			continue
		}
		if ok {
			sent++
		}
	}
	return sent, nil
}

func (d *goalDetector) notifyDeadline(ctx context.Context, g *domain.Goal, now time.Time) (bool, error) {
	if g.Status != domain.GoalInProgress || g.TargetDate == nil || g.DeadlineWarningSent {
		return false, nil
	}
	if _, ok := d.allowed(ctx, g.UserID, domain.EventGoalDeadlineApproaching); !ok {
		return false, nil
	}

	claimed, err := d.goals.ClaimFlag(ctx, g.ID, domain.FlagDeadlineWarning)
	if err != nil {
		return false, fmt.Errorf("failed to claim deadline warning: %w", err)
	}
	if !claimed {
		return false, nil
	}
	g.DeadlineWarningSent = true

	daysLeft := daysUntil(now, *g.TargetDate)
	priority := domain.PriorityMedium
	if daysLeft <= deadlineUrgency {
		priority = domain.PriorityHigh
	}

	data := goalData(g)
	data["days_left"] = daysLeft
	err = d.emit(ctx, domain.CreateNotificationInput{
		UserID:           g.UserID,
		NotificationType: domain.NotificationTypeGoal,
		EventType:        domain.EventGoalDeadlineApproaching,
		Priority:         priority,
		Related:          domain.GoalEntity(g.ID),
		TemplateData:     data,
		Metadata: domain.Metadata{
			"goal_id":     g.ID.String(),
			"days_left":   daysLeft,
			"target_date": g.TargetDate.UTC().Format("2006-01-02"),
		},
	})
	if err != nil {
		d.resetFlag(ctx, g, domain.FlagDeadlineWarning)
		return false, err
	}
	return true, nil
}

func (d *goalDetector) ResetDeadlineWarning(ctx context.Context, goalID uuid.UUID) error {
	g, err := d.goals.GetByID(ctx, goalID)
	if err != nil {
		return fmt.Errorf("failed to get goal: %w", err)
	}
	if g == nil {
		return &domain.NotFoundError{Entity: "goal", ID: goalID.String()}
	}
	if _, err := d.goals.ResetFlag(ctx, goalID, domain.FlagDeadlineWarning); err != nil {
		return fmt.Errorf("failed to reset deadline warning: %w", err)
	}
	return nil
}

func (d *goalDetector) HandleStatusChange(ctx context.Context, old, updated *domain.Goal) error {
	if old == nil || updated == nil || old.Status == updated.Status {
		return nil
	}

	if updated.Status == domain.GoalCompleted {
		if updated.Flag(domain.FlagGoalCompleted) {
			return nil
		}
		completed := domain.GoalMilestones[len(domain.GoalMilestones)-1]
		_, err := d.notifyMilestone(ctx, updated, completed)
		return err
	}

	if _, ok := d.allowed(ctx, updated.UserID, domain.EventGoalStatusChanged); !ok {
		return nil
	}
	data := goalData(updated)
	data["status"] = statusLabel(updated.Status)
	data["previous_status"] = statusLabel(old.Status)
	return d.emit(ctx, domain.CreateNotificationInput{
		UserID:           updated.UserID,
		NotificationType: domain.NotificationTypeGoal,
		EventType:        domain.EventGoalStatusChanged,
		Related:          domain.GoalEntity(updated.ID),
		TemplateData:     data,
		Metadata: domain.Metadata{
			"goal_id":         updated.ID.String(),
			"status":          string(updated.Status),
			"previous_status": string(old.Status),
		},
	})
}

func statusLabel(s domain.GoalStatus) string {
	switch s {
	case domain.GoalInProgress:
		return "in progress"
	case domain.GoalPaused:
		return "paused"
	case domain.GoalCancelled:
		return "cancelled"
	case domain.GoalCompleted:
		return "completed"
	}
	return string(s)
}
