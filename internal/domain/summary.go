package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type SummaryKind string

const (
	SummaryBudget      SummaryKind = "budget"
	SummaryTransaction SummaryKind = "transaction"
)

// MonthlySummary is the report archived for a user at the start of a month.
type MonthlySummary struct {
	Kind             SummaryKind         `json:"kind"`
	UserID           uuid.UUID           `json:"user_id"`
	Month            string              `json:"month"`
	TotalIncome      decimal.Decimal     `json:"total_income"`
	TotalExpenses    decimal.Decimal     `json:"total_expenses"`
	Net              decimal.Decimal     `json:"net"`
	TransactionCount int                 `json:"transaction_count"`
	Budgets          []BudgetSummaryLine `json:"budgets,omitempty"`
	TopCategories    []CategorySpend     `json:"top_categories,omitempty"`
	GeneratedAt      time.Time           `json:"generated_at"`
}

type BudgetSummaryLine struct {
	BudgetID   uuid.UUID       `json:"budget_id" db:"id"`
	BudgetName string          `json:"budget_name" db:"budget_name"`
	Amount     decimal.Decimal `json:"amount" db:"amount"`
	Spent      decimal.Decimal `json:"spent" db:"spent"`
	Percentage int             `json:"percentage" db:"-"`
	Exceeded   bool            `json:"exceeded" db:"-"`
}

type CategorySpend struct {
	CategoryID   *uuid.UUID      `json:"category_id,omitempty" db:"category_id"`
	CategoryName string          `json:"category_name" db:"category_name"`
	Total        decimal.Decimal `json:"total" db:"total"`
	Count        int             `json:"count" db:"count"`
}

// TransactionTotals aggregates a user's transactions over a period.
type TransactionTotals struct {
	Income   decimal.Decimal `db:"income"`
	Expenses decimal.Decimal `db:"expenses"`
	Count    int             `db:"count"`
}

// MonthStart truncates t to the first instant of its month in t's location.
func MonthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

// PreviousMonth returns the first instant of the month before t.
func PreviousMonth(t time.Time) time.Time {
	return MonthStart(t).AddDate(0, -1, 0)
}

func MonthKey(t time.Time) string {
	return t.Format("2006-01")
}
