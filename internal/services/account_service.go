package services

import (
	"context"
	"fmt"

	"fintrack/internal/core"
	"fintrack/internal/ledger"
	"fintrack/internal/log"
)

// AccountService manages accounts. Balances only move through transactions.
type AccountService struct {
	units  *runner
	logger *log.Logger
}

func NewAccountService(uow ledger.UnitOfWork, publisher ledger.EventPublisher, logger *log.Logger, cfg LedgerConfig) *AccountService {
	logger = logger.WithComponent(log.ComponentAccounts)
	return &AccountService{
		units:  newRunner(uow, publisher, logger, cfg),
		logger: logger,
	}
}

func (a *AccountService) CreateAccount(ctx context.Context, ownerID string, in core.AccountInput) (core.Account, error) {
	if err := in.Validate(); err != nil {
		return core.Account{}, err
	}
	currency, _ := core.ValidateCurrency(in.Currency)
	var acct core.Account
	err := a.units.run(ctx, func(ctx context.Context, s *session) error {
		acct = core.Account{
			ID:             core.NewID(),
			OwnerID:        ownerID,
			Name:           in.Name,
			Type:           in.Type,
			InitialBalance: in.InitialBalance,
			CurrentBalance: in.InitialBalance,
			Currency:       currency,
			Description:    in.Description,
			CreatedAt:      s.now,
			UpdatedAt:      s.now,
		}
		if err := s.stores.Accounts().Save(ctx, acct); err != nil {
			return fmt.Errorf("save account: %w", err)
		}
		return nil
	})
	if err != nil {
		return core.Account{}, err
	}
	a.logger.InfoContext(ctx, "Account created",
		log.FieldOwnerID, ownerID,
		log.FieldAccountID, acct.ID,
		log.FieldAmount, acct.InitialBalance.String())
	return acct, nil
}

// UpdateAccount changes name, type and description. Currency and balances are fixed.
func (a *AccountService) UpdateAccount(ctx context.Context, ownerID, id string, in core.AccountInput) (core.Account, error) {
	var acct core.Account
	err := a.units.run(ctx, func(ctx context.Context, s *session) error {
		var err error
		acct, err = s.stores.Accounts().Get(ctx, ownerID, id)
		if err != nil {
			return err
		}
		in.Currency = acct.Currency
		if err := in.Validate(); err != nil {
			return err
		}
		acct.Name = in.Name
		acct.Type = in.Type
		acct.Description = in.Description
		acct.UpdatedAt = s.now
		if err := s.stores.Accounts().Save(ctx, acct); err != nil {
			return fmt.Errorf("save account: %w", err)
		}
		acct, err = s.stores.Accounts().Get(ctx, ownerID, id)
		return err
	})
	return acct, err
}

func (a *AccountService) GetAccount(ctx context.Context, ownerID, id string) (core.Account, error) {
	var acct core.Account
	err := a.units.run(ctx, func(ctx context.Context, s *session) error {
		var err error
		acct, err = s.stores.Accounts().Get(ctx, ownerID, id)
		return err
	})
	return acct, err
}

func (a *AccountService) ListAccounts(ctx context.Context, ownerID string, includeArchived bool) ([]core.Account, error) {
	var out []core.Account
	err := a.units.run(ctx, func(ctx context.Context, s *session) error {
		all, err := s.stores.Accounts().ListByOwner(ctx, ownerID)
		if err != nil {
			return fmt.Errorf("list accounts: %w", err)
		}
		out = out[:0]
		for _, acct := range all {
			if includeArchived || !acct.Archived {
				out = append(out, acct)
			}
		}
		return nil
	})
	return out, err
}

// ArchiveAccount deletes every transaction touching the account through the
// ledger, which restores the other accounts, budgets and goals, then archives it.
func (a *AccountService) ArchiveAccount(ctx context.Context, ownerID, id string) (core.Account, error) {
	var (
		acct    core.Account
		removed int
	)
	err := a.units.run(ctx, func(ctx context.Context, s *session) error {
		var err error
		acct, removed, err = s.archiveAccount(ctx, ownerID, id)
		return err
	})
	if err != nil {
		return core.Account{}, err
	}
	a.logger.InfoContext(ctx, "Account archived",
		log.FieldOwnerID, ownerID,
		log.FieldAccountID, id,
		"transactions_reverted", removed)
	return acct, nil
}

func (s *session) archiveAccount(ctx context.Context, ownerID, id string) (core.Account, int, error) {
	if _, err := s.stores.Accounts().Get(ctx, ownerID, id); err != nil {
		return core.Account{}, 0, err
	}
	related, err := s.stores.Transactions().ListByAccount(ctx, ownerID, id)
	if err != nil {
		return core.Account{}, 0, fmt.Errorf("list account transactions: %w", err)
	}
	for _, tx := range related {
		if _, err := s.deleteTransaction(ctx, ownerID, tx.ID); err != nil {
			return core.Account{}, 0, fmt.Errorf("revert transaction %s: %w", tx.ID, err)
		}
	}
	// Reload: the reversals above moved the balance.
	acct, err := s.stores.Accounts().Get(ctx, ownerID, id)
	if err != nil {
		return core.Account{}, 0, err
	}
	acct.Archived = true
	acct.UpdatedAt = s.now
	if err := s.stores.Accounts().Save(ctx, acct); err != nil {
		return core.Account{}, 0, fmt.Errorf("save account: %w", err)
	}
	s.emit(core.NewEvent(core.EventAccountArchived, ownerID, id,
		fmt.Sprintf("Account %q archived with balance %s", acct.Name, core.FormatAmount(acct.CurrentBalance, acct.Currency))))
	return acct, len(related), nil
}
