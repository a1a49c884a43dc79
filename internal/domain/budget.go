package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const DefaultBudgetAlertThreshold = 0.80

// Alert kinds recorded in budgets.last_alert_type.
const (
	AlertKindThreshold = "threshold"
	AlertKindExceeded  = "exceeded"
)

type Budget struct {
	ID             uuid.UUID       `json:"id" db:"id"`
	UserID         uuid.UUID       `json:"user_id" db:"user_id"`
	BudgetName     string          `json:"budget_name" db:"budget_name"`
	CategoryID     *uuid.UUID      `json:"category_id,omitempty" db:"category_id"`
	Amount         decimal.Decimal `json:"amount" db:"amount"`
	Spent          decimal.Decimal `json:"spent" db:"spent"`
	Currency       string          `json:"currency" db:"currency"`
	Period         string          `json:"period" db:"period"`
	StartDate      time.Time       `json:"start_date" db:"start_date"`
	EndDate        time.Time       `json:"end_date" db:"end_date"`
	Status         string          `json:"status" db:"status"`
	AlertThreshold float64         `json:"alert_threshold" db:"alert_threshold"`
	AlertEnabled   bool            `json:"alert_enabled" db:"alert_enabled"`
	LastAlertSent  *time.Time      `json:"last_alert_sent,omitempty" db:"last_alert_sent"`
	LastAlertType  *string         `json:"last_alert_type,omitempty" db:"last_alert_type"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at" db:"updated_at"`
}

// Utilization is spent/amount; zero for budgets without a positive amount.
func (b *Budget) Utilization() float64 {
	if !b.Amount.IsPositive() {
		return 0
	}
	return b.Spent.Div(b.Amount).InexactFloat64()
}

// Percentage is the utilisation as a rounded whole percent.
func (b *Budget) Percentage() int {
	if !b.Amount.IsPositive() {
		return 0
	}
	return int(b.Spent.Mul(decimal.NewFromInt(100)).Div(b.Amount).Round(0).IntPart())
}

func (b *Budget) Remaining() decimal.Decimal {
	return b.Amount.Sub(b.Spent)
}

// Threshold returns the budget's own alert threshold, else the fallback, else
// the 0.80 default.
func (b *Budget) Threshold(fallback float64) float64 {
	if b.AlertThreshold > 0 && b.AlertThreshold <= 1 {
		return b.AlertThreshold
	}
	if fallback > 0 && fallback <= 1 {
		return fallback
	}
	return DefaultBudgetAlertThreshold
}
