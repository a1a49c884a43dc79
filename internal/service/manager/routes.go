package manager

import (
	"context"
	"errors"
	"fmt"

	"budgetme-notifications/internal/domain"
	"budgetme-notifications/internal/realtime"
)

const (
	tableTransactions      = "transactions"
	tableBudgets           = "budgets"
	tableGoals             = "goals"
	tableFamilyInvitations = "family_invitations"
	tableFamilyMembers     = "family_members"
)

type route struct {
	table  string
	types  []realtime.ChangeType
	handle func(ctx context.Context, ev realtime.ChangeEvent) error
}

func (m *manager) routes() []route {
	return []route{
		{tableTransactions, []realtime.ChangeType{realtime.Insert}, m.onTransaction},
		{tableBudgets, []realtime.ChangeType{realtime.Update}, m.onBudget},
		{tableGoals, []realtime.ChangeType{realtime.Update}, m.onGoal},
		{tableFamilyInvitations, []realtime.ChangeType{realtime.Insert, realtime.Update}, m.onInvitation},
		{tableFamilyMembers, []realtime.ChangeType{realtime.Insert, realtime.Update, realtime.Delete}, m.onMember},
	}
}

func (m *manager) onTransaction(ctx context.Context, ev realtime.ChangeEvent) error {
	var tx domain.Transaction
	if err := ev.Decode(&tx); err != nil {
		return fmt.Errorf("decode transaction: %w", err)
	}
	_, err := m.detectors.Transaction.HandleTransactionCreated(ctx, &tx)
	return err
}

// onBudget re-checks a budget only when its spending grew.
func (m *manager) onBudget(ctx context.Context, ev realtime.ChangeEvent) error {
	var old, updated domain.Budget
	if err := ev.Decode(&updated); err != nil {
		return fmt.Errorf("decode budget: %w", err)
	}
	if err := ev.DecodeOld(&old); err != nil {
		return fmt.Errorf("decode previous budget: %w", err)
	}
	if !updated.Spent.GreaterThan(old.Spent) {
		return nil
	}
	return m.detectors.Budget.CheckBudget(ctx, &updated)
}

func (m *manager) onGoal(ctx context.Context, ev realtime.ChangeEvent) error {
	var old, updated domain.Goal
	if err := ev.Decode(&updated); err != nil {
		return fmt.Errorf("decode goal: %w", err)
	}
	if err := ev.DecodeOld(&old); err != nil {
		return fmt.Errorf("decode previous goal: %w", err)
	}

	var errs []error
	if updated.Status != old.Status {
		errs = append(errs, m.detectors.Goal.HandleStatusChange(ctx, &old, &updated))
	}
	if updated.CurrentAmount.GreaterThan(old.CurrentAmount) {
		_, err := m.detectors.Goal.CheckGoal(ctx, &updated)
		errs = append(errs, err)
	}
	if targetDateMoved(&old, &updated) && updated.DeadlineWarningSent {
		errs = append(errs, m.detectors.Goal.ResetDeadlineWarning(ctx, updated.ID))
	}
	return errors.Join(errs...)
}

func targetDateMoved(old, updated *domain.Goal) bool {
	if old.TargetDate == nil || updated.TargetDate == nil {
		return old.TargetDate != updated.TargetDate
	}
	return !old.TargetDate.Equal(*updated.TargetDate)
}

func (m *manager) onInvitation(ctx context.Context, ev realtime.ChangeEvent) error {
	var inv domain.FamilyInvitation
	if err := ev.Decode(&inv); err != nil {
		return fmt.Errorf("decode invitation: %w", err)
	}
	if ev.Type == realtime.Insert {
		return m.detectors.Family.HandleInvitationCreated(ctx, &inv)
	}
	var old domain.FamilyInvitation
	if err := ev.DecodeOld(&old); err != nil {
		return fmt.Errorf("decode previous invitation: %w", err)
	}
	return m.detectors.Family.HandleInvitationUpdated(ctx, &old, &inv)
}

// onMember treats a row turning active as a join and a row leaving the active
// state, or being deleted, as a departure.
func (m *manager) onMember(ctx context.Context, ev realtime.ChangeEvent) error {
	var err error
	switch ev.Type {
	case realtime.Insert:
		var member domain.FamilyMember
		if err := ev.Decode(&member); err != nil {
			return fmt.Errorf("decode member: %w", err)
		}
		if member.Status != domain.MemberActive {
			return nil
		}
		_, err = m.detectors.Family.HandleMemberJoined(ctx, &member)
	case realtime.Delete:
		var member domain.FamilyMember
		if err := ev.DecodeOld(&member); err != nil {
			return fmt.Errorf("decode removed member: %w", err)
		}
		if member.Status != domain.MemberActive {
			return nil
		}
		_, err = m.detectors.Family.HandleMemberLeft(ctx, &member)
	case realtime.Update:
		var old, updated domain.FamilyMember
		if err := ev.Decode(&updated); err != nil {
			return fmt.Errorf("decode member: %w", err)
		}
		if err := ev.DecodeOld(&old); err != nil {
			return fmt.Errorf("decode previous member: %w", err)
		}
		switch {
		case old.Status != domain.MemberActive && updated.Status == domain.MemberActive:
			_, err = m.detectors.Family.HandleMemberJoined(ctx, &updated)
		case old.Status == domain.MemberActive && updated.Status != domain.MemberActive:
			_, err = m.detectors.Family.HandleMemberLeft(ctx, &updated)
		}
	}
	return err
}
