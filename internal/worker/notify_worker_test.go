package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"fintrack/internal/cache"
	"fintrack/internal/core"
	"fintrack/internal/ledger/memory"
	"fintrack/internal/log"
)

type failingStore struct {
	calls int
}

func (s *failingStore) Save(context.Context, core.Notification) error {
	s.calls++
	return errors.New("disk full")
}

func (s *failingStore) ListByOwner(context.Context, string, bool) ([]core.Notification, error) {
	return nil, nil
}

func (s *failingStore) MarkRead(context.Context, string, string) error { return nil }

func TestNotifyWorker_HandleEvent(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	w := NewNotifyWorker(store.Notifications(), cache.NewSeenSet(100, time.Hour), log.Discard())

	budget := core.NewEvent(core.EventBudgetThreshold, "alice", "b1", "Budget at 80%")
	budget.Threshold = 80
	events := []core.LedgerEvent{
		budget,
		budget, // redelivery
		core.NewEvent(core.EventTransactionCreated, "alice", "t1", "Expense"),
		core.NewEvent(core.EventGoalCompleted, "alice", "g1", "Goal done"),
		core.NewEvent(core.EventAccountArchived, "bob", "a1", "Archived"),
	}
	for _, ev := range events {
		if err := w.HandleEvent(ctx, ev); err != nil {
			t.Fatalf("HandleEvent(%s): %v", ev.Type, err)
		}
	}

	alice, err := store.Notifications().ListByOwner(ctx, "alice", false)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(alice) != 2 {
		t.Fatalf("alice notifications = %d, want 2", len(alice))
	}
	titles := map[string]bool{}
	for _, n := range alice {
		titles[n.Title] = true
		if n.Read {
			t.Errorf("new notification %s should be unread", n.ID)
		}
	}
	if !titles["Budget 80% used"] || !titles["Goal completed"] {
		t.Errorf("titles = %v", titles)
	}

	bob, _ := store.Notifications().ListByOwner(ctx, "bob", false)
	if len(bob) != 1 || bob[0].Title != "Account archived" {
		t.Errorf("bob notifications = %+v", bob)
	}
}

func TestNotifyWorker_FailedSaveIsRetried(t *testing.T) {
	store := &failingStore{}
	w := NewNotifyWorker(store, cache.NewSeenSet(10, time.Hour), log.Discard())
	ev := core.NewEvent(core.EventGoalReopened, "alice", "g1", "reopened")

	for i := 0; i < 2; i++ {
		if err := w.HandleEvent(context.Background(), ev); err == nil {
			t.Fatal("HandleEvent should surface the store error")
		}
	}
	if store.calls != 2 {
		t.Errorf("Save calls = %d, want 2: a failed event must not be remembered as seen", store.calls)
	}
}

func TestTitle(t *testing.T) {
	full := core.LedgerEvent{Type: core.EventBudgetThreshold, Threshold: 100}
	warn := core.LedgerEvent{Type: core.EventBudgetThreshold, Threshold: 75}
	tests := []struct {
		ev   core.LedgerEvent
		want string
	}{
		{full, "Budget exhausted"},
		{warn, "Budget 75% used"},
		{core.LedgerEvent{Type: core.EventGoalReopened}, "Goal no longer completed"},
		{core.LedgerEvent{Type: core.EventTransactionDeleted}, "transaction.deleted"},
	}
	for _, tt := range tests {
		if got := Title(tt.ev); got != tt.want {
			t.Errorf("Title(%+v) = %q, want %q", tt.ev, got, tt.want)
		}
	}
}
