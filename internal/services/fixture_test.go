package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
	"fintrack/internal/ledger"
	"fintrack/internal/ledger/memory"
	"fintrack/internal/log"
)

const owner = "alice"

// recordingPublisher collects published events in order.
type recordingPublisher struct {
	mu     sync.Mutex
	events []core.LedgerEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, ev core.LedgerEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) ofType(typ core.EventType) []core.LedgerEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []core.LedgerEvent
	for _, ev := range p.events {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

type fixture struct {
	t      *testing.T
	ctx    context.Context
	store  *memory.Store
	pub    *recordingPublisher
	ledger *Ledger
	now    time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		t:     t,
		ctx:   context.Background(),
		store: memory.New(),
		pub:   &recordingPublisher{},
		now:   time.Date(2025, time.March, 15, 10, 0, 0, 0, time.UTC),
	}
	f.ledger = NewLedger(f.store, f.pub, log.Discard(), f.config())
	return f
}

func (f *fixture) config() LedgerConfig {
	return LedgerConfig{
		MaxRetries:      3,
		DefaultCurrency: "EUR",
		Clock:           func() time.Time { return f.now },
	}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func (f *fixture) account(name, balance string) core.Account {
	f.t.Helper()
	a, err := f.ledger.Accounts.CreateAccount(f.ctx, owner, core.AccountInput{
		Name:           name,
		Type:           core.AccountBank,
		InitialBalance: dec(balance),
		Currency:       "EUR",
	})
	if err != nil {
		f.t.Fatalf("create account %s: %v", name, err)
	}
	return a
}

func (f *fixture) balance(id string) decimal.Decimal {
	f.t.Helper()
	a, err := f.ledger.Accounts.GetAccount(f.ctx, owner, id)
	if err != nil {
		f.t.Fatalf("get account %s: %v", id, err)
	}
	return a.CurrentBalance
}

func (f *fixture) assertBalance(id, want string) {
	f.t.Helper()
	if got := f.balance(id); !got.Equal(dec(want)) {
		f.t.Fatalf("balance of %s = %s, want %s", id, got, want)
	}
}

func (f *fixture) expense(accountID, amount, category string) core.Transaction {
	f.t.Helper()
	tx, err := f.ledger.Transactions.Create(f.ctx, owner, core.TransactionInput{
		AccountID:  accountID,
		Type:       core.Expense,
		Amount:     dec(amount),
		CategoryID: category,
		Date:       core.NewDate(2025, 3, 10),
	})
	if err != nil {
		f.t.Fatalf("create expense: %v", err)
	}
	return tx
}

func (f *fixture) transfer(from, to, amount string) core.Transaction {
	f.t.Helper()
	tx, err := f.ledger.Transactions.Create(f.ctx, owner, transferInput(from, to, amount))
	if err != nil {
		f.t.Fatalf("create transfer: %v", err)
	}
	return tx
}

func transferInput(from, to, amount string) core.TransactionInput {
	return core.TransactionInput{
		AccountID:           from,
		Type:                core.Transfer,
		Amount:              dec(amount),
		Date:                core.NewDate(2025, 3, 10),
		TransferToAccountID: to,
	}
}

func (f *fixture) budget(category, allocated string) core.Budget {
	f.t.Helper()
	b, err := f.ledger.Budgets.SetBudget(f.ctx, owner, core.BudgetInput{
		CategoryID:      category,
		Year:            2025,
		Month:           3,
		AllocatedAmount: dec(allocated),
	})
	if err != nil {
		f.t.Fatalf("set budget: %v", err)
	}
	return b
}

func (f *fixture) reloadBudget(id string) core.Budget {
	f.t.Helper()
	b, err := f.ledger.Budgets.GetBudget(f.ctx, owner, id)
	if err != nil {
		f.t.Fatalf("get budget: %v", err)
	}
	return b
}

func (f *fixture) goal(name, target string, deps ...string) core.Goal {
	f.t.Helper()
	g, err := f.ledger.Goals.CreateGoal(f.ctx, owner, core.GoalInput{
		Name:              name,
		TargetAmount:      dec(target),
		Deadline:          core.NewDate(2026, 1, 1),
		Priority:          core.PriorityMedium,
		DependencyGoalIDs: deps,
	})
	if err != nil {
		f.t.Fatalf("create goal %s: %v", name, err)
	}
	return g
}

func (f *fixture) reloadGoal(id string) core.Goal {
	f.t.Helper()
	g, err := f.ledger.Goals.GetGoal(f.ctx, owner, id)
	if err != nil {
		f.t.Fatalf("get goal: %v", err)
	}
	return g
}

func (f *fixture) contribute(goalID, amount, source string) (core.GoalContribution, core.Goal) {
	f.t.Helper()
	c, g, err := f.ledger.Goals.AddContribution(f.ctx, owner, goalID, core.ContributionInput{
		Amount:          dec(amount),
		SourceAccountID: source,
	})
	if err != nil {
		f.t.Fatalf("contribute: %v", err)
	}
	return c, g
}

// racingUnitOfWork commits a competing write to raceAccount inside the first
// `races` units of work, so those units lose at commit time.
type racingUnitOfWork struct {
	*memory.Store
	raceAccount string
	races       int
	attempts    int
}

func (r *racingUnitOfWork) Do(ctx context.Context, fn func(ctx context.Context, st ledger.Stores) error) error {
	return r.Store.Do(ctx, func(ctx context.Context, st ledger.Stores) error {
		r.attempts++
		if r.attempts <= r.races {
			err := r.Store.Do(ctx, func(ctx context.Context, st ledger.Stores) error {
				_, err := st.Accounts().AdjustBalance(ctx, owner, r.raceAccount, decimal.NewFromInt(1))
				return err
			})
			if err != nil {
				return err
			}
		}
		return fn(ctx, st)
	})
}
