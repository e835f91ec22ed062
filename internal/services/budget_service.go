package services

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
	"fintrack/internal/ledger"
	"fintrack/internal/log"
)

type BudgetService struct {
	units  *runner
	logger *log.Logger
}

func NewBudgetService(uow ledger.UnitOfWork, publisher ledger.EventPublisher, logger *log.Logger, cfg LedgerConfig) *BudgetService {
	logger = logger.WithComponent(log.ComponentBudgets)
	return &BudgetService{
		units:  newRunner(uow, publisher, logger, cfg),
		logger: logger,
	}
}

// SetBudget creates or updates the bucket for (owner, category, year, month).
// A new bucket starts from the expenses already recorded in that month; an
// existing one keeps its spent amount and alert flags.
func (b *BudgetService) SetBudget(ctx context.Context, ownerID string, in core.BudgetInput) (core.Budget, error) {
	if err := in.Validate(); err != nil {
		return core.Budget{}, err
	}
	var budget core.Budget
	err := b.units.run(ctx, func(ctx context.Context, s *session) error {
		existing, found, err := s.stores.Budgets().FindByOwnerCategoryPeriod(ctx, ownerID, in.CategoryID, in.Year, in.Month)
		if err != nil {
			return fmt.Errorf("find budget: %w", err)
		}
		if found {
			budget = existing
			budget.AllocatedAmount = in.AllocatedAmount
			if in.AlertThreshold != 0 {
				budget.AlertThreshold = in.AlertThreshold
			}
		} else {
			spent, err := spentInMonth(ctx, s, ownerID, in.CategoryID, in.Year, in.Month)
			if err != nil {
				return err
			}
			threshold := in.AlertThreshold
			if threshold == 0 {
				threshold = core.DefaultAlertThreshold
			}
			budget = core.Budget{
				ID:              core.NewID(),
				OwnerID:         ownerID,
				CategoryID:      in.CategoryID,
				Year:            in.Year,
				Month:           in.Month,
				AllocatedAmount: in.AllocatedAmount,
				SpentAmount:     spent,
				AlertThreshold:  threshold,
				CreatedAt:       s.now,
			}
		}
		budget.UpdatedAt = s.now
		s.budgets.Evaluate(&budget)
		if err := s.stores.Budgets().Save(ctx, budget); err != nil {
			return fmt.Errorf("save budget: %w", err)
		}
		return nil
	})
	if err != nil {
		return core.Budget{}, err
	}
	b.logger.InfoContext(ctx, "Budget set",
		log.FieldOwnerID, ownerID,
		log.FieldBudgetID, budget.ID,
		log.FieldCategoryID, budget.CategoryID,
		log.FieldYear, budget.Year,
		log.FieldMonth, budget.Month,
		log.FieldAmount, budget.AllocatedAmount.String())
	return budget, nil
}

func spentInMonth(ctx context.Context, s *session, ownerID, categoryID string, year, month int) (decimal.Decimal, error) {
	from := core.NewDate(year, month, 1)
	to := core.Date{Time: from.AddDate(0, 1, 0)}
	txs, err := s.stores.Transactions().ListByCategoryBetween(ctx, ownerID, categoryID, from, to)
	if err != nil {
		return decimal.Zero, fmt.Errorf("list category transactions: %w", err)
	}
	spent := decimal.Zero
	for _, tx := range txs {
		if tx.AffectsBudget() {
			spent = spent.Add(tx.Amount)
		}
	}
	return spent, nil
}

func (b *BudgetService) GetBudget(ctx context.Context, ownerID, id string) (core.Budget, error) {
	var budget core.Budget
	err := b.units.run(ctx, func(ctx context.Context, s *session) error {
		var err error
		budget, err = s.stores.Budgets().Get(ctx, ownerID, id)
		return err
	})
	return budget, err
}

// FindBudget returns the bucket for a period; found is false when there is none.
func (b *BudgetService) FindBudget(ctx context.Context, ownerID, categoryID string, year, month int) (budget core.Budget, found bool, err error) {
	err = b.units.run(ctx, func(ctx context.Context, s *session) error {
		var err error
		budget, found, err = s.stores.Budgets().FindByOwnerCategoryPeriod(ctx, ownerID, categoryID, year, month)
		return err
	})
	return budget, found, err
}

func (b *BudgetService) ListBudgets(ctx context.Context, ownerID string, year, month int) ([]core.Budget, error) {
	var out []core.Budget
	err := b.units.run(ctx, func(ctx context.Context, s *session) error {
		var err error
		out, err = s.stores.Budgets().ListByOwnerPeriod(ctx, ownerID, year, month)
		return err
	})
	return out, err
}

func (b *BudgetService) DeleteBudget(ctx context.Context, ownerID, id string) error {
	return b.units.run(ctx, func(ctx context.Context, s *session) error {
		return s.stores.Budgets().Delete(ctx, ownerID, id)
	})
}
