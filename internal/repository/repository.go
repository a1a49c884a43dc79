package repository

import (
	"github.com/jmoiron/sqlx"
)

type Repositories struct {
	Notification NotificationRepository
	Preferences  PreferencesRepository
	Template     TemplateRepository
	DeliveryLog  DeliveryLogRepository
	Ledger       LedgerRepository
	Budget       BudgetRepository
	Goal         GoalRepository
	Family       FamilyRepository
	Transaction  TransactionRepository
	Profile      ProfileRepository
}

func NewRepositories(db *sqlx.DB) *Repositories {
	return &Repositories{
		Notification: NewNotificationRepository(db),
		Preferences:  NewPreferencesRepository(db),
		Template:     NewTemplateRepository(db),
		DeliveryLog:  NewDeliveryLogRepository(db),
		Ledger:       NewLedgerRepository(db),
		Budget:       NewBudgetRepository(db),
		Goal:         NewGoalRepository(db),
		Family:       NewFamilyRepository(db),
		Transaction:  NewTransactionRepository(db),
		Profile:      NewProfileRepository(db),
	}
}
