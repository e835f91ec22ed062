package services

import (
	"errors"
	"testing"

	"fintrack/internal/core"
)

func TestBudgetService_AlertFlagsAreMonotonic(t *testing.T) {
	f := newFixture(t)
	acct := f.account("Checking", "5000")
	b := f.budget("rent", "1000")

	steps := []struct {
		name     string
		amount   string
		want80   bool
		want100  bool
		wantEvts int
	}{
		{name: "below warning", amount: "500", wantEvts: 0},
		{name: "crosses warning", amount: "300", want80: true, wantEvts: 1},
		{name: "crosses full", amount: "250", want80: true, want100: true, wantEvts: 2},
	}

	var created []core.Transaction
	for _, step := range steps {
		created = append(created, f.expense(acct.ID, step.amount, "rent"))
		got := f.reloadBudget(b.ID)
		if got.AlertAt80Sent != step.want80 || got.AlertAt100Sent != step.want100 {
			t.Fatalf("%s: flags = (%v, %v), want (%v, %v)", step.name, got.AlertAt80Sent, got.AlertAt100Sent, step.want80, step.want100)
		}
		if n := len(f.pub.ofType(core.EventBudgetThreshold)); n != step.wantEvts {
			t.Fatalf("%s: threshold events = %d, want %d", step.name, n, step.wantEvts)
		}
	}

	for _, tx := range created {
		if err := f.ledger.Transactions.Delete(f.ctx, owner, tx.ID); err != nil {
			t.Fatalf("delete: %v", err)
		}
	}
	got := f.reloadBudget(b.ID)
	if !got.SpentAmount.IsZero() {
		t.Fatalf("spent = %s, want 0", got.SpentAmount)
	}
	if !got.AlertAt80Sent || !got.AlertAt100Sent {
		t.Fatal("alert flags must never be cleared")
	}

	// Crossing again after a full reversal does not alert a second time.
	f.expense(acct.ID, "1000", "rent")
	if n := len(f.pub.ofType(core.EventBudgetThreshold)); n != 2 {
		t.Fatalf("threshold events = %d, want 2", n)
	}

	evs := f.pub.ofType(core.EventBudgetThreshold)
	if evs[0].Threshold != core.DefaultAlertThreshold || evs[1].Threshold != 100 {
		t.Fatalf("thresholds = %d, %d", evs[0].Threshold, evs[1].Threshold)
	}
}

func TestBudgetService_SetBudget(t *testing.T) {
	f := newFixture(t)
	acct := f.account("Checking", "5000")

	// Spending recorded before the bucket exists seeds it.
	f.expense(acct.ID, "90", "food")
	if _, err := f.ledger.Transactions.Create(f.ctx, owner, core.TransactionInput{
		AccountID: acct.ID, Type: core.Expense, Amount: dec("999"), CategoryID: "food", Date: core.NewDate(2025, 4, 1),
	}); err != nil {
		t.Fatalf("create April expense: %v", err)
	}
	if _, err := f.ledger.Transactions.Create(f.ctx, owner, core.TransactionInput{
		AccountID: acct.ID, Type: core.Income, Amount: dec("50"), CategoryID: "food", Date: core.NewDate(2025, 3, 2),
	}); err != nil {
		t.Fatalf("create income: %v", err)
	}

	b := f.budget("food", "100")
	if !b.SpentAmount.Equal(dec("90")) {
		t.Fatalf("seeded spent = %s, want 90", b.SpentAmount)
	}
	if !b.AlertAt80Sent || b.AlertAt100Sent {
		t.Fatalf("flags after seeding = (%v, %v)", b.AlertAt80Sent, b.AlertAt100Sent)
	}
	if b.AlertThreshold != core.DefaultAlertThreshold {
		t.Fatalf("threshold = %d", b.AlertThreshold)
	}

	updated, err := f.ledger.Budgets.SetBudget(f.ctx, owner, core.BudgetInput{
		CategoryID: "food", Year: 2025, Month: 3, AllocatedAmount: dec("50"), AlertThreshold: 90,
	})
	if err != nil {
		t.Fatalf("update budget: %v", err)
	}
	if updated.ID != b.ID || !updated.SpentAmount.Equal(dec("90")) || updated.AlertThreshold != 90 {
		t.Fatalf("upsert = %+v", updated)
	}
	if !updated.AlertAt100Sent {
		t.Fatal("shrinking the allocation below spending should raise the full alert")
	}

	list, err := f.ledger.Budgets.ListBudgets(f.ctx, owner, 2025, 3)
	if err != nil || len(list) != 1 {
		t.Fatalf("list = %+v err=%v", list, err)
	}
	if err := f.ledger.Budgets.DeleteBudget(f.ctx, owner, b.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, found, err := f.ledger.Budgets.FindBudget(f.ctx, owner, "food", 2025, 3); err != nil || found {
		t.Fatalf("budget should be gone: found=%v err=%v", found, err)
	}
}

func TestBudgetService_Validation(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		name string
		in   core.BudgetInput
	}{
		{"no category", core.BudgetInput{Year: 2025, Month: 3, AllocatedAmount: dec("1")}},
		{"month 13", core.BudgetInput{CategoryID: "x", Year: 2025, Month: 13, AllocatedAmount: dec("1")}},
		{"zero allocation", core.BudgetInput{CategoryID: "x", Year: 2025, Month: 3, AllocatedAmount: dec("0")}},
		{"threshold above 100", core.BudgetInput{CategoryID: "x", Year: 2025, Month: 3, AllocatedAmount: dec("1"), AlertThreshold: 120}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.ledger.Budgets.SetBudget(f.ctx, owner, tt.in); !errors.Is(err, core.ErrBadRequest) {
				t.Fatalf("error = %v, want bad request", err)
			}
		})
	}
}

func TestBudgetService_ExpenseWithoutBucketIsNoop(t *testing.T) {
	f := newFixture(t)
	acct := f.account("Checking", "100")
	f.expense(acct.ID, "30", "uncategorised-by-budget")
	f.assertBalance(acct.ID, "70")
	list, err := f.ledger.Budgets.ListBudgets(f.ctx, owner, 2025, 3)
	if err != nil || len(list) != 0 {
		t.Fatalf("no bucket should be created: %+v %v", list, err)
	}
}
