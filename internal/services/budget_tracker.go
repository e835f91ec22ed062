package services

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
	"fintrack/internal/ledger"
)

var fullBudget = decimal.NewFromInt(100)

// BudgetTracker keeps budget spent amounts in step with expense transactions.
type BudgetTracker struct {
	budgets ledger.BudgetStore
	emit    func(core.LedgerEvent)
}

func NewBudgetTracker(budgets ledger.BudgetStore, emit func(core.LedgerEvent)) *BudgetTracker {
	if emit == nil {
		emit = func(core.LedgerEvent) {}
	}
	return &BudgetTracker{budgets: budgets, emit: emit}
}

// AddSpent adds amount (negative for a reversal) to the bucket of the date's
// month. Without a bucket it does nothing: budgets are optional.
func (t *BudgetTracker) AddSpent(ctx context.Context, ownerID, categoryID string, amount decimal.Decimal, date core.Date) error {
	b, found, err := t.budgets.FindByOwnerCategoryPeriod(ctx, ownerID, categoryID, date.Year(), date.Month())
	if err != nil {
		return fmt.Errorf("find budget: %w", err)
	}
	if !found {
		return nil
	}
	b.SpentAmount = b.SpentAmount.Add(amount)
	t.Evaluate(&b)
	if err := t.budgets.Save(ctx, b); err != nil {
		return fmt.Errorf("save budget: %w", err)
	}
	return nil
}

// Evaluate raises the warning and exhausted flags the first time spending
// crosses them. Flags are never cleared, so each alert fires once per bucket.
func (t *BudgetTracker) Evaluate(b *core.Budget) {
	pct := b.SpentPercentage()
	threshold := b.AlertThreshold
	if threshold <= 0 {
		threshold = core.DefaultAlertThreshold
	}
	if !b.AlertAt80Sent && pct.GreaterThanOrEqual(decimal.NewFromInt(int64(threshold))) {
		b.AlertAt80Sent = true
		t.emit(budgetEvent(*b, threshold))
	}
	if !b.AlertAt100Sent && pct.GreaterThanOrEqual(fullBudget) {
		b.AlertAt100Sent = true
		t.emit(budgetEvent(*b, 100))
	}
}

func budgetEvent(b core.Budget, threshold int) core.LedgerEvent {
	msg := fmt.Sprintf("Budget for %s %04d-%02d reached %s%% (%s of %s)",
		b.CategoryID, b.Year, b.Month,
		b.SpentPercentage().StringFixed(2), b.SpentAmount.StringFixed(2), b.AllocatedAmount.StringFixed(2))
	ev := core.NewEvent(core.EventBudgetThreshold, b.OwnerID, b.ID, msg)
	ev.Threshold = threshold
	return ev
}
