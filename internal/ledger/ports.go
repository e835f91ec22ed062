// Package ledger declares the persistence ports the ledger services run on.
//
// Every owner-scoped lookup treats a row owned by another user exactly like a
// missing row and returns core.ErrNotFound.
package ledger

import (
	"context"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
)

// Ports for outbound adapters.
type (
	AccountStore interface {
		Get(ctx context.Context, ownerID, id string) (core.Account, error)
		ListByOwner(ctx context.Context, ownerID string) ([]core.Account, error)
		// Save inserts the account or updates its metadata. It never changes the
		// balance of an existing account; see AdjustBalance.
		Save(ctx context.Context, a core.Account) error
		// AdjustBalance adds delta to the current balance as one read-modify-write,
		// guarded by the account version. A lost race yields core.ErrConflict.
		AdjustBalance(ctx context.Context, ownerID, id string, delta decimal.Decimal) (core.Account, error)
		ExistsForOwner(ctx context.Context, id, ownerID string) (bool, error)
	}

	TransactionStore interface {
		Get(ctx context.Context, ownerID, id string) (core.Transaction, error)
		Save(ctx context.Context, tx core.Transaction) error
		Delete(ctx context.Context, ownerID, id string) error
		// FindRecurringBefore returns recurring transactions of every owner dated
		// before monthStart.
		FindRecurringBefore(ctx context.Context, monthStart core.Date) ([]core.Transaction, error)
		ExistsByOwnerAndDescription(ctx context.Context, ownerID, description string) (bool, error)
		// ListByAccount returns transactions on either side of the account.
		ListByAccount(ctx context.Context, ownerID, accountID string) ([]core.Transaction, error)
		// ListByCategoryBetween returns transactions with from <= date < to.
		ListByCategoryBetween(ctx context.Context, ownerID, categoryID string, from, to core.Date) ([]core.Transaction, error)
	}

	BudgetStore interface {
		Get(ctx context.Context, ownerID, id string) (core.Budget, error)
		// FindByOwnerCategoryPeriod reports found=false when no bucket exists.
		FindByOwnerCategoryPeriod(ctx context.Context, ownerID, categoryID string, year, month int) (b core.Budget, found bool, err error)
		ListByOwnerPeriod(ctx context.Context, ownerID string, year, month int) ([]core.Budget, error)
		Save(ctx context.Context, b core.Budget) error
		Delete(ctx context.Context, ownerID, id string) error
	}

	GoalStore interface {
		Get(ctx context.Context, ownerID, id string) (core.Goal, error)
		ListByOwner(ctx context.Context, ownerID string) ([]core.Goal, error)
		// FindDependents returns the goals listing goalID among their dependencies.
		FindDependents(ctx context.Context, ownerID, goalID string) ([]core.Goal, error)
		Save(ctx context.Context, g core.Goal) error
		Delete(ctx context.Context, ownerID, id string) error
	}

	ContributionStore interface {
		Get(ctx context.Context, ownerID, id string) (core.GoalContribution, error)
		Save(ctx context.Context, c core.GoalContribution) error
		Delete(ctx context.Context, ownerID, id string) error
		FindByTransaction(ctx context.Context, ownerID, transactionID string) (c core.GoalContribution, found bool, err error)
		ListByGoal(ctx context.Context, ownerID, goalID string) ([]core.GoalContribution, error)
	}

	// Stores is the view of every store inside one unit of work.
	Stores interface {
		Accounts() AccountStore
		Transactions() TransactionStore
		Budgets() BudgetStore
		Goals() GoalStore
		Contributions() ContributionStore
	}

	// UnitOfWork runs fn atomically: either every store call made through the
	// given Stores commits, or none does. Returning an error from fn rolls back.
	UnitOfWork interface {
		Do(ctx context.Context, fn func(ctx context.Context, s Stores) error) error
	}

	NotificationStore interface {
		Save(ctx context.Context, n core.Notification) error
		ListByOwner(ctx context.Context, ownerID string, unreadOnly bool) ([]core.Notification, error)
		MarkRead(ctx context.Context, ownerID, id string) error
	}

	EventPublisher interface {
		Publish(ctx context.Context, ev core.LedgerEvent) error
	}

	// Backend bundles what a binary needs from a storage implementation.
	Backend interface {
		UnitOfWork
		Notifications() NotificationStore
		Close() error
	}
)

// NopPublisher drops every event. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, core.LedgerEvent) error { return nil }
