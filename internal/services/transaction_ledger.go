package services

import (
	"context"
	"fmt"
	"strings"

	"fintrack/internal/core"
	"fintrack/internal/ledger"
	"fintrack/internal/log"
)

// TransactionLedger creates, edits and deletes transactions so that every
// balance, budget and goal effect is paired with its exact inverse. An edit
// is always a reversal of the stored effect followed by the new one.
type TransactionLedger struct {
	units  *runner
	logger *log.Logger
}

func NewTransactionLedger(uow ledger.UnitOfWork, publisher ledger.EventPublisher, logger *log.Logger, cfg LedgerConfig) *TransactionLedger {
	logger = logger.WithComponent(log.ComponentLedger)
	return &TransactionLedger{
		units:  newRunner(uow, publisher, logger, cfg),
		logger: logger,
	}
}

func (l *TransactionLedger) Create(ctx context.Context, ownerID string, in core.TransactionInput) (core.Transaction, error) {
	var tx core.Transaction
	err := l.units.run(ctx, func(ctx context.Context, s *session) error {
		var err error
		tx, err = s.createTransaction(ctx, ownerID, in, false)
		return err
	})
	if err != nil {
		return core.Transaction{}, err
	}
	l.logger.InfoContext(ctx, "Transaction created",
		log.NewFields().WithOwner(ownerID).WithTransaction(tx.ID, tx.AccountID, string(tx.Type), tx.Amount).ToSlice()...)
	return tx, nil
}

// CreateGenerated creates an auto-generated copy described by description
// unless the owner already has a transaction with that description. The check
// and the insert share one unit of work.
func (l *TransactionLedger) CreateGenerated(ctx context.Context, ownerID string, in core.TransactionInput) (core.Transaction, bool, error) {
	var (
		tx      core.Transaction
		created bool
	)
	err := l.units.run(ctx, func(ctx context.Context, s *session) error {
		created = false
		exists, err := s.stores.Transactions().ExistsByOwnerAndDescription(ctx, ownerID, in.Description)
		if err != nil {
			return fmt.Errorf("check generated transaction: %w", err)
		}
		if exists {
			return nil
		}
		tx, err = s.createTransaction(ctx, ownerID, in, true)
		created = err == nil
		return err
	})
	if err != nil {
		return core.Transaction{}, false, err
	}
	return tx, created, nil
}

func (l *TransactionLedger) Update(ctx context.Context, ownerID, id string, in core.TransactionInput) (core.Transaction, error) {
	var tx core.Transaction
	err := l.units.run(ctx, func(ctx context.Context, s *session) error {
		var err error
		tx, err = s.updateTransaction(ctx, ownerID, id, in)
		return err
	})
	if err != nil {
		return core.Transaction{}, err
	}
	l.logger.InfoContext(ctx, "Transaction updated",
		log.NewFields().WithOwner(ownerID).WithTransaction(tx.ID, tx.AccountID, string(tx.Type), tx.Amount).ToSlice()...)
	return tx, nil
}

func (l *TransactionLedger) Delete(ctx context.Context, ownerID, id string) error {
	err := l.units.run(ctx, func(ctx context.Context, s *session) error {
		_, err := s.deleteTransaction(ctx, ownerID, id)
		return err
	})
	if err != nil {
		return err
	}
	l.logger.InfoContext(ctx, "Transaction deleted",
		log.FieldOwnerID, ownerID,
		log.FieldTransactionID, id)
	return nil
}

func (l *TransactionLedger) Get(ctx context.Context, ownerID, id string) (core.Transaction, error) {
	var tx core.Transaction
	err := l.units.run(ctx, func(ctx context.Context, s *session) error {
		var err error
		tx, err = s.stores.Transactions().Get(ctx, ownerID, id)
		return err
	})
	return tx, err
}

// ListByAccount returns the transactions on either side of the account, oldest first.
func (l *TransactionLedger) ListByAccount(ctx context.Context, ownerID, accountID string) ([]core.Transaction, error) {
	var out []core.Transaction
	err := l.units.run(ctx, func(ctx context.Context, s *session) error {
		if _, err := s.stores.Accounts().Get(ctx, ownerID, accountID); err != nil {
			return err
		}
		var err error
		out, err = s.stores.Transactions().ListByAccount(ctx, ownerID, accountID)
		return err
	})
	return out, err
}

func (s *session) createTransaction(ctx context.Context, ownerID string, in core.TransactionInput, autoGenerated bool) (core.Transaction, error) {
	validate := in.Validate
	if autoGenerated {
		validate = in.ValidateGenerated
	}
	if err := validate(); err != nil {
		return core.Transaction{}, err
	}
	source, err := s.checkAccounts(ctx, ownerID, in)
	if err != nil {
		return core.Transaction{}, err
	}

	tx := core.Transaction{
		ID:            core.NewID(),
		OwnerID:       ownerID,
		AutoGenerated: autoGenerated,
		CreatedAt:     s.now,
		UpdatedAt:     s.now,
	}
	in.Apply(&tx)

	if err := s.applyEffect(ctx, tx); err != nil {
		return core.Transaction{}, err
	}
	if err := s.stores.Transactions().Save(ctx, tx); err != nil {
		return core.Transaction{}, fmt.Errorf("save transaction: %w", err)
	}
	s.emit(core.NewEvent(core.EventTransactionCreated, ownerID, tx.ID, describe(tx, source)))
	return tx, nil
}

func (s *session) updateTransaction(ctx context.Context, ownerID, id string, in core.TransactionInput) (core.Transaction, error) {
	old, err := s.stores.Transactions().Get(ctx, ownerID, id)
	if err != nil {
		return core.Transaction{}, err
	}
	if old.AutoGenerated {
		return core.Transaction{}, core.ErrAutoGenerated
	}
	if err := in.Validate(); err != nil {
		return core.Transaction{}, err
	}
	// Once copies may exist, only toggling the recurring flag is allowed.
	if old.Recurring && in.Recurring && old.Date.Before(s.now.AddDate(0, -1, 0)) {
		return core.Transaction{}, core.BadRequest("cannot edit recurring transactions that have recurrences")
	}
	contribution, linked, err := s.stores.Contributions().FindByTransaction(ctx, ownerID, id)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("find contribution: %w", err)
	}
	if linked {
		if err := s.checkContributionTransfer(ctx, contribution, in); err != nil {
			return core.Transaction{}, err
		}
	}
	source, err := s.checkAccounts(ctx, ownerID, in)
	if err != nil {
		return core.Transaction{}, err
	}

	if err := s.reverseEffect(ctx, old); err != nil {
		return core.Transaction{}, err
	}
	updated := old
	in.Apply(&updated)
	updated.UpdatedAt = s.now
	if err := s.stores.Transactions().Save(ctx, updated); err != nil {
		return core.Transaction{}, fmt.Errorf("save transaction: %w", err)
	}
	if err := s.applyEffect(ctx, updated); err != nil {
		return core.Transaction{}, err
	}
	if linked {
		if _, err := s.goals.ReplaceContribution(ctx, contribution, updated.Amount); err != nil {
			return core.Transaction{}, err
		}
	}
	s.emit(core.NewEvent(core.EventTransactionUpdated, ownerID, updated.ID, describe(updated, source)))
	return updated, nil
}

func (s *session) deleteTransaction(ctx context.Context, ownerID, id string) (core.Transaction, error) {
	tx, err := s.stores.Transactions().Get(ctx, ownerID, id)
	if err != nil {
		return core.Transaction{}, err
	}
	if err := s.reverseEffect(ctx, tx); err != nil {
		return core.Transaction{}, err
	}
	contribution, linked, err := s.stores.Contributions().FindByTransaction(ctx, ownerID, id)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("find contribution: %w", err)
	}
	if linked {
		if _, err := s.goals.RevertContribution(ctx, contribution); err != nil {
			return core.Transaction{}, err
		}
	}
	if err := s.stores.Transactions().Delete(ctx, ownerID, id); err != nil {
		return core.Transaction{}, fmt.Errorf("delete transaction: %w", err)
	}
	s.emit(core.NewEvent(core.EventTransactionDeleted, ownerID, tx.ID,
		fmt.Sprintf("Deleted %s of %s", tx.Type, tx.Amount.StringFixed(2))))
	return tx, nil
}

// checkAccounts validates ownership of the accounts in and returns the source account.
func (s *session) checkAccounts(ctx context.Context, ownerID string, in core.TransactionInput) (core.Account, error) {
	source, err := s.usableAccount(ctx, ownerID, in.AccountID, "account")
	if err != nil {
		return core.Account{}, err
	}
	if in.Type == core.Transfer {
		if _, err := s.usableAccount(ctx, ownerID, in.TransferToAccountID, "destination account"); err != nil {
			return core.Account{}, err
		}
	}
	return source, nil
}

func (s *session) usableAccount(ctx context.Context, ownerID, id, role string) (core.Account, error) {
	owned, err := s.stores.Accounts().ExistsForOwner(ctx, id, ownerID)
	if err != nil {
		return core.Account{}, fmt.Errorf("check %s: %w", role, err)
	}
	if !owned {
		return core.Account{}, core.BadRequest("%s %s does not belong to user", role, id)
	}
	a, err := s.stores.Accounts().Get(ctx, ownerID, id)
	if err != nil {
		return core.Account{}, err
	}
	if a.Archived {
		return core.Account{}, core.ErrArchivedAccount
	}
	return a, nil
}

// checkContributionTransfer keeps a goal contribution's transaction a transfer
// into the goal's savings account.
func (s *session) checkContributionTransfer(ctx context.Context, c core.GoalContribution, in core.TransactionInput) error {
	if in.Type != core.Transfer {
		return core.BadRequest("goal contribution transactions must remain transfers")
	}
	goal, err := s.stores.Goals().Get(ctx, c.OwnerID, c.GoalID)
	if err != nil {
		return core.Internal(fmt.Sprintf("contribution %s points at a missing goal", c.ID), err)
	}
	if goal.SavingsAccountID != "" && in.TransferToAccountID != goal.SavingsAccountID {
		return core.BadRequest("goal contribution transactions must transfer into the goal's savings account")
	}
	return nil
}

func (s *session) applyEffect(ctx context.Context, tx core.Transaction) error {
	if err := s.balances.ApplyEffect(ctx, tx); err != nil {
		return err
	}
	if tx.AffectsBudget() {
		return s.budgets.AddSpent(ctx, tx.OwnerID, tx.CategoryID, tx.Amount, tx.Date)
	}
	return nil
}

func (s *session) reverseEffect(ctx context.Context, tx core.Transaction) error {
	if err := s.balances.ReverseEffect(ctx, tx); err != nil {
		return err
	}
	if tx.AffectsBudget() {
		return s.budgets.AddSpent(ctx, tx.OwnerID, tx.CategoryID, tx.Amount.Neg(), tx.Date)
	}
	return nil
}

func describe(tx core.Transaction, source core.Account) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s of %s on %s", strings.ToUpper(string(tx.Type[:1]))+string(tx.Type[1:]),
		core.FormatAmount(tx.Amount, source.Currency), source.Name)
	if tx.Description != "" {
		fmt.Fprintf(&b, ": %s", tx.Description)
	}
	return b.String()
}
