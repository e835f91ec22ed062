package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/google/subcommands"
	"github.com/shopspring/decimal"

	"fintrack/internal/core"
	"fintrack/internal/ledger"
	"fintrack/internal/ledger/memory"
	"fintrack/internal/log"
	"fintrack/internal/services"
)

type harness struct {
	env    *Env
	store  *memory.Store
	stdout *bytes.Buffer
	stderr *bytes.Buffer
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	t.Setenv(OwnerEnv, "")
	store := memory.New()
	now := time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)
	cfg := services.DefaultLedgerConfig()
	cfg.Clock = func() time.Time { return now }
	l := services.NewLedger(store, ledger.NopPublisher{}, log.Discard(), cfg)
	h := &harness{store: store, stdout: &bytes.Buffer{}, stderr: &bytes.Buffer{}}
	h.env = &Env{
		Ledger:        l,
		Recurrence:    services.NewRecurrenceGenerator(store, l.Transactions, log.Discard(), time.Second),
		Notifications: store.Notifications(),
		Out:           h.stdout,
		Err:           h.stderr,
		Now:           func() time.Time { return now },
	}
	return h
}

func (h *harness) exec(t *testing.T, args ...string) subcommands.ExitStatus {
	t.Helper()
	h.stdout.Reset()
	h.stderr.Reset()
	top := flag.NewFlagSet("fintrack", flag.ContinueOnError)
	cdr := subcommands.NewCommander(top, "fintrack")
	Register(cdr)
	if err := top.Parse(args); err != nil {
		t.Fatalf("parse %v: %v", args, err)
	}
	return cdr.Execute(context.Background(), h.env)
}

// must runs a command that has to succeed and decodes its output into out.
func (h *harness) must(t *testing.T, out any, args ...string) {
	t.Helper()
	if status := h.exec(t, args...); status != subcommands.ExitSuccess {
		t.Fatalf("%v: status %v, stderr %q", args, status, h.stderr.String())
	}
	if out != nil {
		if err := json.Unmarshal(h.stdout.Bytes(), out); err != nil {
			t.Fatalf("%v: decode %q: %v", args, h.stdout.String(), err)
		}
	}
}

func TestCommands_AccountsAndTransactions(t *testing.T) {
	h := newHarness(t)

	var checking, savings core.Account
	h.must(t, &checking, "account-add", "-owner", "alice", "-name", "Checking", "-balance", "1000", "-currency", "eur")
	h.must(t, &savings, "account-add", "-owner", "alice", "-name", "Savings", "-type", "savings")
	if checking.Currency != "EUR" || !checking.CurrentBalance.Equal(decimal.NewFromInt(1000)) {
		t.Fatalf("account-add = %+v", checking)
	}

	var budget core.Budget
	h.must(t, &budget, "budget-set", "-owner", "alice", "-category", "food", "-amount", "200")
	if budget.Year != 2025 || budget.Month != 3 {
		t.Errorf("budget period = %d-%d, want current month 2025-3", budget.Year, budget.Month)
	}

	var expense core.Transaction
	h.must(t, &expense, "tx-add", "-owner", "alice", "-account", checking.ID, "-amount", "12,50", "-category", "food", "-desc", "Lunch")
	if expense.Type != core.Expense || expense.Date != core.NewDate(2025, 3, 14) {
		t.Errorf("tx-add defaults = %s on %s, want expense today", expense.Type, expense.Date)
	}

	var edited core.Transaction
	h.must(t, &edited, "tx-edit", "-owner", "alice", "-id", expense.ID, "-amount", "20")
	if edited.Description != "Lunch" || !edited.Amount.Equal(decimal.NewFromInt(20)) {
		t.Errorf("tx-edit = %+v, want only the amount changed", edited)
	}

	h.must(t, nil, "tx-add", "-owner", "alice", "-type", "transfer", "-account", checking.ID, "-to", savings.ID, "-amount", "100")

	var accounts []core.Account
	h.must(t, &accounts, "account-list", "-owner", "alice")
	balances := map[string]string{}
	for _, a := range accounts {
		balances[a.Name] = a.CurrentBalance.String()
	}
	if balances["Checking"] != "880" || balances["Savings"] != "100" {
		t.Errorf("balances = %v, want Checking 880 and Savings 100", balances)
	}

	var budgets []core.Budget
	h.must(t, &budgets, "budget-list", "-owner", "alice", "-year", "2025", "-month", "3")
	if len(budgets) != 1 || !budgets[0].SpentAmount.Equal(decimal.NewFromInt(20)) {
		t.Errorf("budget-list = %+v, want food spent 20", budgets)
	}

	var txs []core.Transaction
	h.must(t, &txs, "tx-list", "-owner", "alice", "-account", savings.ID)
	if len(txs) != 1 || txs[0].Type != core.Transfer {
		t.Errorf("tx-list savings = %+v, want the incoming transfer", txs)
	}

	h.must(t, nil, "tx-rm", "-owner", "alice", "-id", expense.ID)
	if h.stdout.Len() != 0 {
		t.Errorf("tx-rm printed %q", h.stdout.String())
	}
	var reverted core.Account
	h.must(t, &reverted, "account-edit", "-owner", "alice", "-id", checking.ID, "-name", "Main")
	if reverted.Name != "Main" || !reverted.CurrentBalance.Equal(decimal.NewFromInt(900)) {
		t.Errorf("after tx-rm and account-edit = %s %s, want Main 900", reverted.Name, reverted.CurrentBalance)
	}
}

func TestCommands_Goals(t *testing.T) {
	h := newHarness(t)
	t.Setenv(OwnerEnv, "alice")

	var checking core.Account
	h.must(t, &checking, "account-add", "-name", "Checking", "-balance", "500")

	var house, car core.Goal
	h.must(t, &house, "goal-add", "-name", "House", "-target", "1000", "-deadline", "2030-01-01")
	h.must(t, &car, "goal-add", "-name", "Car", "-target", "50", "-deadline", "2027-01-01", "-deps", house.ID)
	if len(car.DependencyGoalIDs) != 1 || car.DependencyGoalIDs[0] != house.ID {
		t.Fatalf("goal-add deps = %v", car.DependencyGoalIDs)
	}

	if status := h.exec(t, "goal-depend", "-goal", house.ID, "-on", car.ID); status == subcommands.ExitSuccess {
		t.Error("goal-depend accepted a cycle")
	}
	if !strings.Contains(h.stderr.String(), "circular") {
		t.Errorf("stderr = %q, want circular dependency error", h.stderr.String())
	}

	var contributed struct {
		Contribution core.GoalContribution
		Goal         core.Goal
	}
	h.must(t, &contributed, "goal-contribute", "-goal", car.ID, "-amount", "50", "-from", checking.ID)
	if contributed.Goal.Completed {
		t.Error("car completed while house is incomplete")
	}
	if contributed.Contribution.TransactionID == "" {
		t.Error("contribution from an account has no transaction")
	}

	h.must(t, nil, "goal-undepend", "-goal", car.ID, "-on", house.ID)
	var done core.Goal
	h.must(t, &done, "goal-complete", "-id", car.ID)
	if !done.Completed {
		t.Error("goal-complete did not complete the goal")
	}

	var contributions []core.GoalContribution
	h.must(t, &contributions, "goal-list", "-contributions", car.ID)
	if len(contributions) != 1 {
		t.Fatalf("contributions = %d, want 1", len(contributions))
	}
	var reopened core.Goal
	h.must(t, &reopened, "goal-uncontribute", "-id", contributions[0].ID)
	if !reopened.CurrentAmount.IsZero() {
		t.Errorf("after goal-uncontribute current = %s, want 0", reopened.CurrentAmount)
	}

	h.must(t, nil, "goal-rm", "-id", house.ID)
	var goals []core.Goal
	h.must(t, &goals, "goal-list")
	if len(goals) != 1 || goals[0].ID != car.ID {
		t.Errorf("goal-list = %+v, want only car", goals)
	}
}

func TestCommands_RecurrenceAndNotifications(t *testing.T) {
	h := newHarness(t)

	var checking core.Account
	h.must(t, &checking, "account-add", "-owner", "alice", "-name", "Checking", "-balance", "2000")
	h.must(t, nil, "tx-add", "-owner", "alice", "-account", checking.ID, "-amount", "800",
		"-desc", "Rent", "-date", "2025-01-01", "-recurring")

	var result services.RecurrenceResult
	h.must(t, &result, "recur-run")
	if result.Created != 1 {
		t.Errorf("first recur-run created %d, want 1", result.Created)
	}
	h.must(t, &result, "recur-run")
	if result.Created != 0 || result.Skipped != 1 {
		t.Errorf("second recur-run = %+v, want one skip", result)
	}
	h.must(t, &result, "recur-run", "-at", "2025-04-02")
	if result.Created != 1 {
		t.Errorf("recur-run -at April created %d, want 1", result.Created)
	}

	n := core.Notification{ID: "n1", OwnerID: "alice", Title: "Budget", Message: "hi", CreatedAt: time.Now()}
	if err := h.store.Notifications().Save(context.Background(), n); err != nil {
		t.Fatal(err)
	}
	var inbox []core.Notification
	h.must(t, &inbox, "notifications", "-owner", "alice", "-unread")
	if len(inbox) != 1 {
		t.Fatalf("unread = %d, want 1", len(inbox))
	}
	h.must(t, &inbox, "notifications", "-owner", "alice", "-unread", "-read", "n1")
	if len(inbox) != 0 {
		t.Errorf("unread after -read = %d, want 0", len(inbox))
	}
}

func TestCommands_Errors(t *testing.T) {
	tests := []struct {
		name   string
		args   []string
		status subcommands.ExitStatus
		stderr string
	}{
		{"missing owner", []string{"account-list"}, subcommands.ExitUsageError, "-owner is required"},
		{"bad amount", []string{"tx-add", "-owner", "alice", "-account", "a", "-amount", "-5"}, subcommands.ExitUsageError, "invalid amount"},
		{"missing amount", []string{"tx-add", "-owner", "alice", "-account", "a"}, subcommands.ExitUsageError, "-amount is required"},
		{"unknown account", []string{"tx-list", "-owner", "alice", "-account", "nope"}, subcommands.ExitFailure, "not found"},
		{"bad date", []string{"goal-add", "-owner", "alice", "-name", "x", "-target", "1", "-deadline", "soon"}, subcommands.ExitUsageError, "invalid date"},
		{"unknown flag", []string{"account-list", "-bogus"}, subcommands.ExitUsageError, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			if status := h.exec(t, tt.args...); status != tt.status {
				t.Errorf("status = %v, want %v (stderr %q)", status, tt.status, h.stderr.String())
			}
			if !strings.Contains(h.stderr.String(), tt.stderr) {
				t.Errorf("stderr = %q, want it to contain %q", h.stderr.String(), tt.stderr)
			}
		})
	}
}

func TestCommands_NoEnv(t *testing.T) {
	top := flag.NewFlagSet("fintrack", flag.ContinueOnError)
	cdr := subcommands.NewCommander(top, "fintrack")
	Register(cdr)
	_ = top.Parse([]string{"recur-run"})
	if status := cdr.Execute(context.Background()); status != subcommands.ExitFailure {
		t.Errorf("status = %v, want failure without an env", status)
	}
}

func TestRegister_StableOrder(t *testing.T) {
	want := []string{"accounts", "budgets", "goals", "notifications", "recurrence", "transactions"}
	for i := 0; i < 5; i++ {
		if got := groupNames(); !slices.Equal(got, want) {
			t.Fatalf("groupNames() = %v, want %v", got, want)
		}
	}

	top := flag.NewFlagSet("fintrack", flag.ContinueOnError)
	cdr := subcommands.NewCommander(top, "fintrack")
	Register(cdr)
	var names []string
	cdr.VisitCommands(func(_ *subcommands.CommandGroup, c subcommands.Command) {
		names = append(names, c.Name())
	})
	total := 0
	for _, cmds := range Commands {
		total += len(cmds)
	}
	if len(names) != total || names[0] != "account-add" {
		t.Errorf("registered %v, want %d commands starting with account-add", names, total)
	}
}
