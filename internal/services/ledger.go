package services

import (
	"fintrack/internal/ledger"
	"fintrack/internal/log"
)

// Ledger bundles the services that share one backend.
type Ledger struct {
	Transactions *TransactionLedger
	Accounts     *AccountService
	Budgets      *BudgetService
	Goals        *GoalService
}

func NewLedger(uow ledger.UnitOfWork, publisher ledger.EventPublisher, logger *log.Logger, cfg LedgerConfig) *Ledger {
	return &Ledger{
		Transactions: NewTransactionLedger(uow, publisher, logger, cfg),
		Accounts:     NewAccountService(uow, publisher, logger, cfg),
		Budgets:      NewBudgetService(uow, publisher, logger, cfg),
		Goals:        NewGoalService(uow, publisher, logger, cfg),
	}
}
