package detector

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"budgetme-notifications/internal/domain"
	"budgetme-notifications/internal/pkg/fingerprint"
	"budgetme-notifications/internal/repository"
	"budgetme-notifications/internal/service/report"
)

const (
	thresholdCooldown = 24 * time.Hour
	exceededCooldown  = 6 * time.Hour
	expiringWindow    = 3 * 24 * time.Hour
)

type BudgetDetector interface {
	CheckBudgetThresholds(ctx context.Context) (int, error)
	CheckBudgetsExceeded(ctx context.Context) (int, error)
	CheckBudgetsExpiring(ctx context.Context) (int, error)
	// CheckBudget evaluates a single budget after its spending changed.
	CheckBudget(ctx context.Context, budget *domain.Budget) error
	// GenerateMonthlySummaries summarises the calendar month containing month.
	GenerateMonthlySummaries(ctx context.Context, month time.Time) (int, error)
}

type budgetDetector struct {
	base
	budgets repository.BudgetRepository
	reports report.Service
}

func NewBudgetDetector(d Deps) BudgetDetector {
	return &budgetDetector{
		base:    newBase(d, "budget_detector"),
		budgets: d.Budgets,
		reports: d.Reports,
	}
}

func (d *budgetDetector) CheckBudgetThresholds(ctx context.Context) (int, error) {
	budgets, err := d.budgets.ListAlertable(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list budgets: %w", err)
	}

	sent := 0
	for i := range budgets {
		b := &budgets[i]
		ok, err := d.checkThreshold(ctx, b)
		if err != nil {
			d.failed(err).Str("budget_id", b.ID.String()).Msg("threshold check failed")
			continue
		}
		if ok {
			sent++
		}
	}
	return sent, nil
}

func (d *budgetDetector) CheckBudgetsExceeded(ctx context.Context) (int, error) {
	budgets, err := d.budgets.ListAlertable(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list budgets: %w", err)
	}

	sent := 0
	for i := range budgets {
		b := &budgets[i]
		ok, err := d.checkExceeded(ctx, b)
		if err != nil {
			d.failed(err).Str("budget_id", b.ID.String()).Msg("exceeded check failed")
			continue
		}
		if ok {
			sent++
		}
	}
	return sent, nil
}

func (d *budgetDetector) CheckBudget(ctx context.Context, b *domain.Budget) error {
	if !b.AlertEnabled || (b.Status != "" && b.Status != "active") {
		return nil
	}
	var err error
	if b.Utilization() >= 1 {
		_, err = d.checkExceeded(ctx, b)
	} else {
		_, err = d.checkThreshold(ctx, b)
	}
	return err
}

func (d *budgetDetector) checkThreshold(ctx context.Context, b *domain.Budget) (bool, error) {
	prefs, ok := d.allowed(ctx, b.UserID, domain.EventBudgetThresholdWarning)
	if !ok {
		return false, nil
	}
	var fallback float64
	if prefs != nil {
		fallback = prefs.BudgetWarningThreshold
	}
	ratio := b.Utilization()
	if ratio < b.Threshold(fallback) || ratio >= 1 {
		return false, nil
	}
	return d.alert(ctx, b, domain.AlertKindThreshold, thresholdCooldown, domain.EventBudgetThresholdWarning)
}

func (d *budgetDetector) checkExceeded(ctx context.Context, b *domain.Budget) (bool, error) {
	if b.Utilization() < 1 {
		return false, nil
	}
	if _, ok := d.allowed(ctx, b.UserID, domain.EventBudgetExceeded); !ok {
		return false, nil
	}
	return d.alert(ctx, b, domain.AlertKindExceeded, exceededCooldown, domain.EventBudgetExceeded)
}

// alert claims the budget's alert stamp and emits. The stamp is restored when
// emission fails so a later sweep can retry.
func (d *budgetDetector) alert(ctx context.Context, b *domain.Budget, kind string, cooldown time.Duration, event domain.EventType) (bool, error) {
	now := d.now().UTC()
	claimed, err := d.budgets.ClaimAlert(ctx, b.ID, kind, now, now.Add(-cooldown))
	if err != nil {
		return false, fmt.Errorf("failed to claim budget alert: %w", err)
	}
	if !claimed {
		return false, nil
	}

	err = d.emit(ctx, domain.CreateNotificationInput{
		UserID:           b.UserID,
		NotificationType: domain.NotificationTypeBudget,
		EventType:        event,
		Related:          domain.BudgetEntity(b.ID),
		TemplateData:     budgetData(b),
		Metadata: domain.Metadata{
			"budget_id":  b.ID.String(),
			"percentage": b.Percentage(),
			"alert_kind": kind,
		},
	})
	if err != nil {
		if rerr := d.budgets.ReleaseAlert(ctx, b.ID, now, b.LastAlertSent, b.LastAlertType); rerr != nil {
			d.log.Warn().Err(rerr).Str("budget_id", b.ID.String()).Msg("failed to release budget alert claim")
		}
		return false, err
	}

	b.LastAlertSent = &now
	b.LastAlertType = &kind
	return true, nil
}

func budgetData(b *domain.Budget) map[string]any {
	return map[string]any{
		"budget_id":   b.ID.String(),
		"budget_name": b.BudgetName,
		"amount":      money(b.Amount),
		"spent":       money(b.Spent),
		"remaining":   money(b.Remaining()),
		"percentage":  b.Percentage(),
	}
}

func (d *budgetDetector) CheckBudgetsExpiring(ctx context.Context) (int, error) {
	now := d.now().UTC()
	budgets, err := d.budgets.ListEndingBetween(ctx, now, now.Add(expiringWindow))
	if err != nil {
		return 0, fmt.Errorf("failed to list expiring budgets: %w", err)
	}

	sent := 0
	for i := range budgets {
		b := &budgets[i]
		ok, err := d.notifyExpiring(ctx, b, now)
		if err != nil {
			d.failed(err).Str("budget_id", b.ID.String()).Msg("expiring check failed")
			continue
		}
		if ok {
			sent++
		}
	}
	return sent, nil
}

func (d *budgetDetector) notifyExpiring(ctx context.Context, b *domain.Budget, now time.Time) (bool, error) {
	if _, ok := d.allowed(ctx, b.UserID, domain.EventBudgetPeriodExpiring); !ok {
		return false, nil
	}

	key := fingerprint.Key(string(domain.EventBudgetPeriodExpiring), b.ID.String(), b.EndDate.UTC().Format("2006-01-02"))
	claimed, err := d.claimOnce(ctx, key, b.UserID, b.ID, domain.EventBudgetPeriodExpiring)
	if err != nil {
		return false, fmt.Errorf("failed to claim ledger entry: %w", err)
	}
	if !claimed {
		return false, nil
	}

	data := budgetData(b)
	data["days_left"] = daysUntil(now, b.EndDate)
	err = d.emit(ctx, domain.CreateNotificationInput{
		UserID:           b.UserID,
		NotificationType: domain.NotificationTypeBudget,
		EventType:        domain.EventBudgetPeriodExpiring,
		Related:          domain.BudgetEntity(b.ID),
		TemplateData:     data,
		Metadata: domain.Metadata{
			"budget_id": b.ID.String(),
			"end_date":  b.EndDate.UTC().Format("2006-01-02"),
		},
	})
	if err != nil {
		d.releaseOnce(ctx, key)
		return false, err
	}
	return true, nil
}

func (d *budgetDetector) GenerateMonthlySummaries(ctx context.Context, month time.Time) (int, error) {
	from := domain.MonthStart(month.UTC())
	to := from.AddDate(0, 1, 0)

	users, err := d.budgets.ListUserIDsActiveBetween(ctx, from, to)
	if err != nil {
		return 0, fmt.Errorf("failed to list budget owners: %w", err)
	}

	sent := 0
	for _, userID := range users {
		ok, err := d.summarise(ctx, userID, from, to)
		if err != nil {
			d.failed(err).Str("user_id", userID.String()).Msg("budget summary failed")
			continue
		}
		if ok {
			sent++
		}
	}
	return sent, nil
}

func (d *budgetDetector) summarise(ctx context.Context, userID uuid.UUID, from, to time.Time) (bool, error) {
	if _, ok := d.allowed(ctx, userID, domain.EventBudgetMonthlySummary); !ok {
		return false, nil
	}

	monthKey := domain.MonthKey(from)
	key := fingerprint.Key(string(domain.EventBudgetMonthlySummary), userID.String(), monthKey)
	claimed, err := d.claimOnce(ctx, key, userID, userID, domain.EventBudgetMonthlySummary)
	if err != nil {
		return false, fmt.Errorf("failed to claim ledger entry: %w", err)
	}
	if !claimed {
		return false, nil
	}

	lines, err := d.budgets.SummaryLines(ctx, userID, from, to)
	if err != nil {
		d.releaseOnce(ctx, key)
		return false, fmt.Errorf("failed to load budget lines: %w", err)
	}

	exceeded := 0
	for i := range lines {
		b := domain.Budget{Amount: lines[i].Amount, Spent: lines[i].Spent}
		lines[i].Percentage = b.Percentage()
		lines[i].Exceeded = b.Amount.IsPositive() && b.Spent.GreaterThanOrEqual(b.Amount)
		if lines[i].Exceeded {
			exceeded++
		}
	}

	summary := &domain.MonthlySummary{
		Kind:        domain.SummaryBudget,
		UserID:      userID,
		Month:       monthKey,
		Budgets:     lines,
		GeneratedAt: d.now().UTC(),
	}
	metadata := domain.Metadata{"month": monthKey, "budget_count": len(lines), "exceeded_count": exceeded}
	if d.reports != nil {
		path, err := d.reports.ArchiveSummary(ctx, summary)
		if err != nil {
			d.log.Warn().Err(err).Str("user_id", userID.String()).Msg("failed to archive budget summary")
		} else if path != "" {
			metadata["report_path"] = path
		}
	}

	err = d.emit(ctx, domain.CreateNotificationInput{
		UserID:           userID,
		NotificationType: domain.NotificationTypeBudget,
		EventType:        domain.EventBudgetMonthlySummary,
		TemplateData: map[string]any{
			"month":          monthKey,
			"budget_count":   len(lines),
			"exceeded_count": exceeded,
		},
		Metadata: metadata,
	})
	if err != nil {
		d.releaseOnce(ctx, key)
		return false, err
	}
	return true, nil
}
