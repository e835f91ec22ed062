package services

import (
	"errors"
	"slices"
	"strings"
	"testing"

	"fintrack/internal/core"
)

func TestGoalService_ContributionCompletesGoal(t *testing.T) {
	f := newFixture(t)
	src := f.account("Checking", "10000")
	g := f.goal("Car", "5000.00")

	f.contribute(g.ID, "4500.00", src.ID)
	if got := f.reloadGoal(g.ID); got.Completed {
		t.Fatal("goal must not complete below target")
	}

	_, got := f.contribute(g.ID, "500.00", src.ID)
	if !got.CurrentAmount.Equal(dec("5000.00")) {
		t.Fatalf("current = %s, want 5000.00", got.CurrentAmount)
	}
	if !got.Completed {
		t.Fatal("goal must complete at target")
	}
	if evs := f.pub.ofType(core.EventGoalCompleted); len(evs) != 1 || evs[0].EntityID != g.ID {
		t.Fatalf("goal.completed events = %+v", evs)
	}
	f.assertBalance(src.ID, "5000")
	f.assertBalance(g.SavingsAccountID, "5000.00")
}

func TestGoalService_CreateGoalMakesSavingsAccount(t *testing.T) {
	f := newFixture(t)
	g := f.goal("House", "100")

	acct, err := f.ledger.Accounts.GetAccount(f.ctx, owner, g.SavingsAccountID)
	if err != nil {
		t.Fatalf("savings account: %v", err)
	}
	if acct.Type != core.AccountSavings || !acct.CurrentBalance.IsZero() || acct.Currency != "EUR" {
		t.Fatalf("unexpected savings account %+v", acct)
	}
	if acct.Description != "Savings account for goal: House" {
		t.Fatalf("description = %q", acct.Description)
	}

	if _, err := f.ledger.Goals.UpdateGoal(f.ctx, owner, g.ID, core.GoalInput{
		Name: "Bigger House", TargetAmount: dec("100"), Deadline: g.Deadline, Priority: core.PriorityHigh,
	}); err != nil {
		t.Fatalf("update goal: %v", err)
	}
	acct, _ = f.ledger.Accounts.GetAccount(f.ctx, owner, g.SavingsAccountID)
	if acct.Name != "Bigger House" {
		t.Fatalf("savings account name = %q, want rename", acct.Name)
	}
}

func TestGoalService_ContributionDescription(t *testing.T) {
	f := newFixture(t)
	src := f.account("Checking", "100")
	g := f.goal("Bike", "50")

	c, _, err := f.ledger.Goals.AddContribution(f.ctx, owner, g.ID, core.ContributionInput{
		Amount: dec("10"), SourceAccountID: src.ID, Date: core.NewDate(2025, 3, 5),
	})
	if err != nil {
		t.Fatalf("contribute: %v", err)
	}
	tx, err := f.ledger.Transactions.Get(f.ctx, owner, c.TransactionID)
	if err != nil {
		t.Fatalf("linked transaction: %v", err)
	}
	if tx.Description != "Mar 05, 2025 Bike Contribution" {
		t.Fatalf("description = %q", tx.Description)
	}
	if tx.Type != core.Transfer || tx.TransferToAccountID != g.SavingsAccountID {
		t.Fatalf("contribution must transfer into savings: %+v", tx)
	}
}

func TestGoalService_CycleRejectionLeavesGraphUnchanged(t *testing.T) {
	f := newFixture(t)
	c := f.goal("C", "10")
	b := f.goal("B", "10", c.ID)
	a := f.goal("A", "10", b.ID)

	snapshot := func() map[string][]string {
		goals, err := f.ledger.Goals.ListGoals(f.ctx, owner)
		if err != nil {
			t.Fatalf("list goals: %v", err)
		}
		out := map[string][]string{}
		for _, g := range goals {
			out[g.ID] = slices.Clone(g.DependencyGoalIDs)
		}
		return out
	}
	before := snapshot()

	tests := []struct {
		name          string
		goalID, depID string
		wantErr       error
	}{
		{"closing the chain", c.ID, a.ID, core.ErrCircularDependency},
		{"two-step cycle", b.ID, a.ID, core.ErrCircularDependency},
		{"self reference", a.ID, a.ID, core.ErrCircularDependency},
		{"duplicate edge", a.ID, b.ID, core.ErrDuplicateDependency},
		{"unknown dependency", a.ID, "missing", core.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.ledger.Goals.AddDependency(f.ctx, owner, tt.goalID, tt.depID)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	after := snapshot()
	for id, deps := range before {
		if !slices.Equal(deps, after[id]) {
			t.Fatalf("dependencies of %s changed from %v to %v", id, deps, after[id])
		}
	}

	if _, err := f.ledger.Goals.AddDependency(f.ctx, owner, a.ID, c.ID); err != nil {
		t.Fatalf("transitive shortcut is not a cycle: %v", err)
	}
}

func TestGoalService_CascadeCompletion(t *testing.T) {
	f := newFixture(t)
	src := f.account("Checking", "1000")
	b := f.goal("B", "100")
	a := f.goal("A", "200", b.ID)

	bContribution, bGoal := f.contribute(b.ID, "100", src.ID)
	if !bGoal.Completed {
		t.Fatal("B should be completed")
	}

	_, aGoal := f.contribute(a.ID, "200", src.ID)
	if !aGoal.Completed {
		t.Fatal("A reached target with B completed, so it should be completed")
	}

	// Deleting B's contribution transaction must reopen B and, through the
	// cascade, A, without touching A directly.
	if err := f.ledger.Transactions.Delete(f.ctx, owner, bContribution.TransactionID); err != nil {
		t.Fatalf("delete contribution transaction: %v", err)
	}
	if got := f.reloadGoal(b.ID); got.Completed || !got.CurrentAmount.IsZero() {
		t.Fatalf("B = %+v, want reopened at 0", got)
	}
	if got := f.reloadGoal(a.ID); got.Completed {
		t.Fatal("A must be reopened when B is")
	}
	if n := len(f.pub.ofType(core.EventGoalReopened)); n != 2 {
		t.Fatalf("goal.reopened events = %d, want 2", n)
	}

	// B completing again promotes A, which is still at target.
	f.contribute(b.ID, "100", src.ID)
	if got := f.reloadGoal(a.ID); !got.Completed {
		t.Fatal("A should be promoted when B completes again")
	}
}

func TestGoalService_WaitingGoalCompletesWhenDependencyDoes(t *testing.T) {
	f := newFixture(t)
	src := f.account("Checking", "1000")
	b := f.goal("B", "100")
	a := f.goal("A", "50", b.ID)

	if _, got := f.contribute(a.ID, "50", src.ID); got.Completed {
		t.Fatal("A must wait for B")
	}
	f.contribute(b.ID, "100", src.ID)
	if got := f.reloadGoal(a.ID); !got.Completed {
		t.Fatal("A should complete once B completes")
	}
}

func TestGoalService_MarkCompleted(t *testing.T) {
	f := newFixture(t)
	b := f.goal("Emergency fund", "100")
	a := f.goal("Vacation", "100", b.ID)

	_, err := f.ledger.Goals.MarkCompleted(f.ctx, owner, a.ID)
	if !errors.Is(err, core.ErrBadRequest) || !strings.Contains(err.Error(), "Emergency fund") {
		t.Fatalf("error = %v, want bad request naming the dependency", err)
	}

	got, err := f.ledger.Goals.MarkCompleted(f.ctx, owner, b.ID)
	if err != nil || !got.Completed {
		t.Fatalf("mark B: %+v %v", got, err)
	}
	got, err = f.ledger.Goals.MarkCompleted(f.ctx, owner, a.ID)
	if err != nil || !got.Completed {
		t.Fatalf("mark A: %+v %v", got, err)
	}

	// A manual completion survives a plain contribution below target.
	if _, err := f.ledger.Goals.ApplyContribution(f.ctx, owner, a.ID, dec("10")); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if got := f.reloadGoal(a.ID); !got.Completed {
		t.Fatal("manual completion should survive a contribution")
	}
}

func TestGoalService_DependencyChangesReopen(t *testing.T) {
	f := newFixture(t)
	src := f.account("Checking", "1000")
	a := f.goal("A", "10")
	f.contribute(a.ID, "10", src.ID)
	open := f.goal("Open", "10")

	got, err := f.ledger.Goals.AddDependency(f.ctx, owner, a.ID, open.ID)
	if err != nil {
		t.Fatalf("add dependency: %v", err)
	}
	if got.Completed {
		t.Fatal("gaining an incomplete prerequisite must reopen the goal")
	}

	got, err = f.ledger.Goals.RemoveDependency(f.ctx, owner, a.ID, open.ID)
	if err != nil {
		t.Fatalf("remove dependency: %v", err)
	}
	if !got.Completed || len(got.DependencyGoalIDs) != 0 {
		t.Fatalf("removing the blocker should complete the goal again: %+v", got)
	}
}

func TestGoalService_ContributionTransactionUpdate(t *testing.T) {
	f := newFixture(t)
	src := f.account("Checking", "1000")
	other := f.account("Other", "0")
	g := f.goal("Trip", "300")
	c, _ := f.contribute(g.ID, "100", src.ID)

	in := transferInput(src.ID, g.SavingsAccountID, "300")
	if _, err := f.ledger.Transactions.Update(f.ctx, owner, c.TransactionID, in); err != nil {
		t.Fatalf("update: %v", err)
	}
	got := f.reloadGoal(g.ID)
	if !got.CurrentAmount.Equal(dec("300")) || !got.Completed {
		t.Fatalf("goal after update = %+v", got)
	}
	contributions, err := f.ledger.Goals.ListContributions(f.ctx, owner, g.ID)
	if err != nil || len(contributions) != 1 || !contributions[0].Amount.Equal(dec("300")) {
		t.Fatalf("contributions = %+v err=%v", contributions, err)
	}

	bad := []struct {
		name string
		in   core.TransactionInput
	}{
		{"not a transfer", core.TransactionInput{AccountID: src.ID, Type: core.Expense, Amount: dec("5"), Date: core.NewDate(2025, 3, 1)}},
		{"wrong destination", transferInput(src.ID, other.ID, "5")},
	}
	for _, tt := range bad {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.ledger.Transactions.Update(f.ctx, owner, c.TransactionID, tt.in); !errors.Is(err, core.ErrBadRequest) {
				t.Fatalf("error = %v, want bad request", err)
			}
		})
	}
	f.assertBalance(src.ID, "700")
}

func TestGoalService_RemoveContribution(t *testing.T) {
	f := newFixture(t)
	src := f.account("Checking", "1000")
	g := f.goal("Trip", "100")

	linked, _ := f.contribute(g.ID, "60", src.ID)
	plain, _ := f.contribute(g.ID, "40", "")
	if got := f.reloadGoal(g.ID); !got.Completed {
		t.Fatal("goal should be completed at 100")
	}

	got, err := f.ledger.Goals.RemoveContribution(f.ctx, owner, linked.ID)
	if err != nil {
		t.Fatalf("remove linked: %v", err)
	}
	if !got.CurrentAmount.Equal(dec("40")) || got.Completed {
		t.Fatalf("goal after removing linked = %+v", got)
	}
	f.assertBalance(src.ID, "1000")
	if _, err := f.ledger.Transactions.Get(f.ctx, owner, linked.TransactionID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("linked transaction should be deleted, got %v", err)
	}

	got, err = f.ledger.Goals.RemoveContribution(f.ctx, owner, plain.ID)
	if err != nil || !got.CurrentAmount.IsZero() {
		t.Fatalf("remove plain: %+v %v", got, err)
	}
}

func TestGoalService_DeleteGoal(t *testing.T) {
	f := newFixture(t)
	src := f.account("Checking", "1000")
	b := f.goal("B", "100")
	a := f.goal("A", "100", b.ID)
	f.contribute(b.ID, "70", src.ID)

	if err := f.ledger.Goals.DeleteGoal(f.ctx, owner, b.ID); !errors.Is(err, core.ErrBadRequest) {
		t.Fatalf("deleting a prerequisite: %v", err)
	}
	if _, err := f.ledger.Goals.RemoveDependency(f.ctx, owner, a.ID, b.ID); err != nil {
		t.Fatalf("remove dependency: %v", err)
	}
	if err := f.ledger.Goals.DeleteGoal(f.ctx, owner, b.ID); err != nil {
		t.Fatalf("delete goal: %v", err)
	}

	if _, err := f.ledger.Goals.GetGoal(f.ctx, owner, b.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("goal should be gone, got %v", err)
	}
	savings, err := f.ledger.Accounts.GetAccount(f.ctx, owner, b.SavingsAccountID)
	if err != nil || !savings.Archived || !savings.CurrentBalance.IsZero() {
		t.Fatalf("savings account = %+v err=%v", savings, err)
	}
	f.assertBalance(src.ID, "1000")
}

func TestDependencyGraph(t *testing.T) {
	g := DependencyGraph{
		"a": {"b"},
		"b": {"c"},
		"c": nil,
		"d": {"b", "c"},
	}
	tests := []struct {
		from, to string
		want     bool
	}{
		{"a", "c", true},
		{"a", "a", true},
		{"c", "a", false},
		{"d", "c", true},
		{"b", "d", false},
		{"unknown", "a", false},
	}
	for _, tt := range tests {
		if got := g.Reaches(tt.from, tt.to); got != tt.want {
			t.Errorf("Reaches(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
	if !g.WouldCycle("c", "a") {
		t.Error("c -> a closes a -> b -> c")
	}
	if g.WouldCycle("a", "d") {
		t.Error("a -> d adds no cycle")
	}
}
