package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TransactionIncome       TransactionType = "income"
	TransactionExpense      TransactionType = "expense"
	TransactionTransfer     TransactionType = "transfer"
	TransactionContribution TransactionType = "contribution"
)

type Transaction struct {
	ID                 uuid.UUID       `json:"id" db:"id"`
	UserID             uuid.UUID       `json:"user_id" db:"user_id"`
	AccountID          *uuid.UUID      `json:"account_id,omitempty" db:"account_id"`
	CategoryID         *uuid.UUID      `json:"category_id,omitempty" db:"category_id"`
	GoalID             *uuid.UUID      `json:"goal_id,omitempty" db:"goal_id"`
	Type               TransactionType `json:"type" db:"type"`
	Amount             decimal.Decimal `json:"amount" db:"amount"`
	Description        string          `json:"description" db:"description"`
	Date               time.Time       `json:"date" db:"date"`
	IsRecurring        bool            `json:"is_recurring" db:"is_recurring"`
	RecurrenceInterval *string         `json:"recurrence_interval,omitempty" db:"recurrence_interval"`
	NextOccurrence     *time.Time      `json:"next_occurrence,omitempty" db:"next_occurrence"`
	CreatedAt          time.Time       `json:"created_at" db:"created_at"`
}

// IsOutflow reports whether the transaction moves money out of the user's
// spendable balance, which is what large-amount alerts watch.
func (t *Transaction) IsOutflow() bool {
	return t.Type == TransactionExpense || t.Type == TransactionContribution
}

func (t *Transaction) IsCategorized() bool {
	return t.CategoryID != nil
}

type Account struct {
	ID          uuid.UUID       `json:"id" db:"id"`
	UserID      uuid.UUID       `json:"user_id" db:"user_id"`
	AccountName string          `json:"account_name" db:"account_name"`
	Balance     decimal.Decimal `json:"balance" db:"balance"`
	Currency    string          `json:"currency" db:"currency"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
}

// CategorizedTransaction is a past transaction joined with its category name,
// used as a sample for category suggestions.
type CategorizedTransaction struct {
	Description  string    `db:"description"`
	CategoryID   uuid.UUID `db:"category_id"`
	CategoryName string    `db:"category_name"`
}
