package detector

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"budgetme-notifications/internal/config"
	"budgetme-notifications/internal/domain"
	"budgetme-notifications/internal/pkg/fingerprint"
	"budgetme-notifications/internal/repository"
	"budgetme-notifications/internal/service/report"
)

const (
	recurringWindow      = 3 * 24 * time.Hour
	suggestionSamples    = 200
	summaryTopCategories = 5
)

type TransactionDetector interface {
	// HandleTransactionCreated runs every per-transaction check. A failing check
	// does not stop the others; their errors are joined.
	HandleTransactionCreated(ctx context.Context, tx *domain.Transaction) (int, error)
	CheckRecurringReminders(ctx context.Context) (int, error)
	GenerateMonthlySummaries(ctx context.Context, month time.Time) (int, error)
}

type transactionDetector struct {
	base
	transactions repository.TransactionRepository
	goals        repository.GoalRepository
	profiles     repository.ProfileRepository
	family       FamilyDetector
	reports      report.Service
	cfg          config.NotificationConfig
}

func NewTransactionDetector(d Deps, family FamilyDetector) TransactionDetector {
	return &transactionDetector{
		base:         newBase(d, "transaction_detector"),
		transactions: d.Transactions,
		goals:        d.Goals,
		profiles:     d.Profiles,
		family:       family,
		reports:      d.Reports,
		cfg:          d.Config,
	}
}

func (d *transactionDetector) HandleTransactionCreated(ctx context.Context, tx *domain.Transaction) (int, error) {
	checks := []struct {
		name string
		run  func(context.Context, *domain.Transaction) (int, error)
	}{
		{"large_transaction", d.checkLargeTransaction},
		{"low_balance", d.checkLowBalance},
		{"category_suggestion", d.checkCategorySuggestion},
		{"goal_contribution", d.checkGoalContribution},
	}

	sent := 0
	var errs []error
	for _, c := range checks {
		n, err := c.run(ctx, tx)
		if err != nil {
			d.failed(err).Str("transaction_id", tx.ID.String()).Str("check", c.name).Msg("transaction check failed")
			errs = append(errs, fmt.Errorf("%s: %w", c.name, err))
		}
		sent += n
	}
	return sent, errors.Join(errs...)
}

func (d *transactionDetector) checkLargeTransaction(ctx context.Context, tx *domain.Transaction) (int, error) {
	if !tx.IsOutflow() {
		return 0, nil
	}
	prefs, ok := d.allowed(ctx, tx.UserID, domain.EventLargeTransactionAlert)
	if !ok {
		return 0, nil
	}

	threshold := d.cfg.LargeTransactionThreshold
	if prefs != nil && prefs.LargeTransactionThreshold.IsPositive() {
		threshold = prefs.LargeTransactionThreshold
	}
	amount := tx.Amount.Abs()
	if amount.LessThan(threshold) {
		return 0, nil
	}

	err := d.emit(ctx, domain.CreateNotificationInput{
		UserID:           tx.UserID,
		NotificationType: domain.NotificationTypeTransaction,
		EventType:        domain.EventLargeTransactionAlert,
		Related:          domain.TransactionEntity(tx.ID),
		TemplateData: map[string]any{
			"amount":           money(amount),
			"transaction_type": string(tx.Type),
			"description":      describe(tx),
			"transaction_id":   tx.ID.String(),
		},
		Metadata: domain.Metadata{
			"transaction_id": tx.ID.String(),
			"amount":         money(amount),
			"threshold":      money(threshold),
		},
	})
	if err != nil {
		return 0, err
	}
	return 1, nil
}

// checkLowBalance warns at most once per account per day.
func (d *transactionDetector) checkLowBalance(ctx context.Context, tx *domain.Transaction) (int, error) {
	if tx.AccountID == nil || !tx.IsOutflow() {
		return 0, nil
	}
	prefs, ok := d.allowed(ctx, tx.UserID, domain.EventLowBalanceWarning)
	if !ok {
		return 0, nil
	}
	threshold := decimal.NewFromInt(100)
	if prefs != nil {
		threshold = prefs.LowBalanceThreshold
	}

	account, err := d.transactions.GetAccount(ctx, *tx.AccountID)
	if err != nil {
		return 0, fmt.Errorf("failed to get account: %w", err)
	}
	if account == nil || !account.Balance.LessThan(threshold) {
		return 0, nil
	}

	day := d.now().UTC().Format("2006-01-02")
	key := fingerprint.Key(string(domain.EventLowBalanceWarning), account.ID.String(), day)
	claimed, err := d.claimOnce(ctx, key, tx.UserID, account.ID, domain.EventLowBalanceWarning)
	if err != nil {
		return 0, fmt.Errorf("failed to claim ledger entry: %w", err)
	}
	if !claimed {
		return 0, nil
	}

	err = d.emit(ctx, domain.CreateNotificationInput{
		UserID:           tx.UserID,
		NotificationType: domain.NotificationTypeTransaction,
		EventType:        domain.EventLowBalanceWarning,
		Related:          domain.TransactionEntity(tx.ID),
		TemplateData: map[string]any{
			"account_name": account.AccountName,
			"balance":      money(account.Balance),
			"threshold":    money(threshold),
			"account_id":   account.ID.String(),
		},
		Metadata: domain.Metadata{
			"account_id": account.ID.String(),
			"balance":    money(account.Balance),
		},
	})
	if err != nil {
		d.releaseOnce(ctx, key)
		return 0, err
	}
	return 1, nil
}

func (d *transactionDetector) checkCategorySuggestion(ctx context.Context, tx *domain.Transaction) (int, error) {
	if tx.Type != domain.TransactionExpense || tx.IsCategorized() || tx.Description == "" {
		return 0, nil
	}
	if _, ok := d.allowed(ctx, tx.UserID, domain.EventTransactionCategorySuggestion); !ok {
		return 0, nil
	}

	samples, err := d.transactions.ListCategorizedSamples(ctx, tx.UserID, suggestionSamples)
	if err != nil {
		return 0, fmt.Errorf("failed to load categorised transactions: %w", err)
	}
	best, ok := suggestCategory(tx.Description, samples)
	if !ok {
		return 0, nil
	}

	err = d.emit(ctx, domain.CreateNotificationInput{
		UserID:           tx.UserID,
		NotificationType: domain.NotificationTypeTransaction,
		EventType:        domain.EventTransactionCategorySuggestion,
		Related:          domain.TransactionEntity(tx.ID),
		TemplateData: map[string]any{
			"description":    tx.Description,
			"category_name":  best.CategoryName,
			"category_id":    best.CategoryID.String(),
			"transaction_id": tx.ID.String(),
		},
		Metadata: domain.Metadata{
			"suggested_category_id": best.CategoryID.String(),
			"score":                 best.Score,
		},
	})
	if err != nil {
		return 0, err
	}
	return 1, nil
}

// checkGoalContribution tells the rest of the family about a contribution to a
// shared goal.
func (d *transactionDetector) checkGoalContribution(ctx context.Context, tx *domain.Transaction) (int, error) {
	if tx.Type != domain.TransactionContribution || tx.GoalID == nil || d.family == nil {
		return 0, nil
	}
	goal, err := d.goals.GetByID(ctx, *tx.GoalID)
	if err != nil {
		return 0, fmt.Errorf("failed to get goal: %w", err)
	}
	if goal == nil || !goal.IsShared() {
		return 0, nil
	}

	contributor, err := d.profiles.GetByID(ctx, tx.UserID)
	if err != nil {
		contributor = nil
	}
	data := goalData(goal)
	data["contributor_name"] = contributor.DisplayName()
	data["amount"] = money(tx.Amount.Abs())

	return d.family.NotifyFamilyMembers(ctx, *goal.FamilyID, tx.UserID, nil, func(m domain.FamilyMember) domain.CreateNotificationInput {
		return domain.CreateNotificationInput{
			UserID:           m.UserID,
			NotificationType: domain.NotificationTypeGoal,
			EventType:        domain.EventGoalContributionAdded,
			Related:          domain.GoalEntity(goal.ID),
			TemplateData:     data,
			Metadata: domain.Metadata{
				"goal_id":        goal.ID.String(),
				"transaction_id": tx.ID.String(),
				"contributor_id": tx.UserID.String(),
			},
		}
	})
}

func describe(tx *domain.Transaction) string {
	if tx.Description != "" {
		return tx.Description
	}
	return "no description"
}

func (d *transactionDetector) CheckRecurringReminders(ctx context.Context) (int, error) {
	now := d.now().UTC()
	due, err := d.transactions.ListRecurringDue(ctx, now, now.Add(recurringWindow))
	if err != nil {
		return 0, fmt.Errorf("failed to list recurring transactions: %w", err)
	}

	sent := 0
	for i := range due {
		tx := &due[i]
		ok, err := d.remind(ctx, tx)
		if err != nil {
			d.failed(err).Str("transaction_id", tx.ID.String()).Msg("recurring reminder failed")
			continue
		}
		if ok {
			sent++
		}
	}
	return sent, nil
}

func (d *transactionDetector) remind(ctx context.Context, tx *domain.Transaction) (bool, error) {
	if tx.NextOccurrence == nil {
		return false, nil
	}
	if _, ok := d.allowed(ctx, tx.UserID, domain.EventRecurringTransactionReminder); !ok {
		return false, nil
	}

	occurrence := tx.NextOccurrence.UTC()
	key := fingerprint.Key(string(domain.EventRecurringTransactionReminder), tx.ID.String(), occurrence.Format(time.RFC3339))
	claimed, err := d.claimOnce(ctx, key, tx.UserID, tx.ID, domain.EventRecurringTransactionReminder)
	if err != nil {
		return false, fmt.Errorf("failed to claim ledger entry: %w", err)
	}
	if !claimed {
		return false, nil
	}

	err = d.emit(ctx, domain.CreateNotificationInput{
		UserID:           tx.UserID,
		NotificationType: domain.NotificationTypeTransaction,
		EventType:        domain.EventRecurringTransactionReminder,
		Related:          domain.TransactionEntity(tx.ID),
		TemplateData: map[string]any{
			"description":    describe(tx),
			"amount":         money(tx.Amount.Abs()),
			"due_date":       occurrence.Format("Jan 2, 2006"),
			"transaction_id": tx.ID.String(),
		},
		Metadata: domain.Metadata{
			"transaction_id":  tx.ID.String(),
			"next_occurrence": occurrence.Format(time.RFC3339),
		},
	})
	if err != nil {
		d.releaseOnce(ctx, key)
		return false, err
	}
	return true, nil
}

func (d *transactionDetector) GenerateMonthlySummaries(ctx context.Context, month time.Time) (int, error) {
	from := domain.MonthStart(month.UTC())
	to := from.AddDate(0, 1, 0)

	users, err := d.transactions.ListUserIDsWithActivity(ctx, from, to)
	if err != nil {
		return 0, fmt.Errorf("failed to list active users: %w", err)
	}

	sent := 0
	for _, userID := range users {
		ok, err := d.summarise(ctx, userID, from, to)
		if err != nil {
			d.failed(err).Str("user_id", userID.String()).Msg("transaction summary failed")
			continue
		}
		if ok {
			sent++
		}
	}
	return sent, nil
}

func (d *transactionDetector) summarise(ctx context.Context, userID uuid.UUID, from, to time.Time) (bool, error) {
	if _, ok := d.allowed(ctx, userID, domain.EventTransactionMonthlySummary); !ok {
		return false, nil
	}

	monthKey := domain.MonthKey(from)
	key := fingerprint.Key(string(domain.EventTransactionMonthlySummary), userID.String(), monthKey)
	claimed, err := d.claimOnce(ctx, key, userID, userID, domain.EventTransactionMonthlySummary)
	if err != nil {
		return false, fmt.Errorf("failed to claim ledger entry: %w", err)
	}
	if !claimed {
		return false, nil
	}

	totals, err := d.transactions.Totals(ctx, userID, from, to)
	if err != nil {
		d.releaseOnce(ctx, key)
		return false, fmt.Errorf("failed to total transactions: %w", err)
	}
	if totals == nil {
		totals = &domain.TransactionTotals{}
	}
	top, err := d.transactions.TopCategories(ctx, userID, from, to, summaryTopCategories)
	if err != nil {
		d.releaseOnce(ctx, key)
		return false, fmt.Errorf("failed to rank categories: %w", err)
	}

	net := totals.Income.Sub(totals.Expenses)
	summary := &domain.MonthlySummary{
		Kind:             domain.SummaryTransaction,
		UserID:           userID,
		Month:            monthKey,
		TotalIncome:      totals.Income,
		TotalExpenses:    totals.Expenses,
		Net:              net,
		TransactionCount: totals.Count,
		TopCategories:    top,
		GeneratedAt:      d.now().UTC(),
	}
	metadata := domain.Metadata{"month": monthKey, "transaction_count": totals.Count}
	if d.reports != nil {
		path, err := d.reports.ArchiveSummary(ctx, summary)
		if err != nil {
			d.log.Warn().Err(err).Str("user_id", userID.String()).Msg("failed to archive transaction summary")
		} else if path != "" {
			metadata["report_path"] = path
		}
	}

	err = d.emit(ctx, domain.CreateNotificationInput{
		UserID:           userID,
		NotificationType: domain.NotificationTypeTransaction,
		EventType:        domain.EventTransactionMonthlySummary,
		TemplateData: map[string]any{
			"month":             monthKey,
			"total_income":      money(totals.Income),
			"total_expenses":    money(totals.Expenses),
			"net":               money(net),
			"transaction_count": totals.Count,
		},
		Metadata: metadata,
	})
	if err != nil {
		d.releaseOnce(ctx, key)
		return false, err
	}
	return true, nil
}
