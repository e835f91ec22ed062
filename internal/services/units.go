package services

import (
	"context"
	"errors"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/ledger"
	"fintrack/internal/log"
)

// LedgerConfig tunes the ledger services.
type LedgerConfig struct {
	// MaxRetries is how many times a unit of work is re-run after losing an
	// optimistic-concurrency race (default: 3)
	MaxRetries int

	// DefaultCurrency is used for accounts created implicitly, e.g. goal savings accounts (default: EUR)
	DefaultCurrency string

	// Clock returns the current time (default: time.Now)
	Clock func() time.Time
}

// DefaultLedgerConfig returns sensible defaults
func DefaultLedgerConfig() LedgerConfig {
	return LedgerConfig{
		MaxRetries:      3,
		DefaultCurrency: "EUR",
		Clock:           time.Now,
	}
}

func (c LedgerConfig) withDefaults() LedgerConfig {
	def := DefaultLedgerConfig()
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.DefaultCurrency == "" {
		c.DefaultCurrency = def.DefaultCurrency
	}
	if c.Clock == nil {
		c.Clock = def.Clock
	}
	return c
}

// runner executes ledger operations as units of work and publishes the
// events they produced once the unit has committed.
type runner struct {
	uow        ledger.UnitOfWork
	publisher  ledger.EventPublisher
	logger     *log.Logger
	maxRetries int
	clock      func() time.Time
	currency   string
}

func newRunner(uow ledger.UnitOfWork, publisher ledger.EventPublisher, logger *log.Logger, cfg LedgerConfig) *runner {
	cfg = cfg.withDefaults()
	if publisher == nil {
		publisher = ledger.NopPublisher{}
	}
	return &runner{
		uow:        uow,
		publisher:  publisher,
		logger:     logger,
		maxRetries: cfg.MaxRetries,
		clock:      cfg.Clock,
		currency:   cfg.DefaultCurrency,
	}
}

// run executes fn in a fresh session. A core.ErrConflict re-runs the whole
// unit up to maxRetries times; any other error is returned as is.
func (r *runner) run(ctx context.Context, fn func(ctx context.Context, s *session) error) error {
	for attempt := 1; ; attempt++ {
		var events []core.LedgerEvent
		err := r.uow.Do(ctx, func(ctx context.Context, st ledger.Stores) error {
			s := newSession(st, r.clock().UTC())
			if err := fn(ctx, s); err != nil {
				return err
			}
			events = s.events
			return nil
		})
		if err == nil {
			r.publish(ctx, events)
			return nil
		}
		if !errors.Is(err, core.ErrConflict) || attempt > r.maxRetries {
			return err
		}
		r.logger.WarnContext(ctx, "Ledger update lost a concurrent race, retrying",
			log.FieldAttempt, attempt,
			log.FieldError, err)
	}
}

// publish never fails the operation: the ledger has already committed.
func (r *runner) publish(ctx context.Context, events []core.LedgerEvent) {
	for _, ev := range events {
		if err := r.publisher.Publish(ctx, ev); err != nil {
			r.logger.ErrorContext(ctx, "Failed to publish ledger event",
				log.FieldEventID, ev.ID,
				log.FieldEventType, string(ev.Type),
				log.FieldError, err)
		}
	}
}

// session is the ledger's view of one unit of work.
type session struct {
	stores   ledger.Stores
	now      time.Time
	events   []core.LedgerEvent
	balances *BalanceMutator
	budgets  *BudgetTracker
	goals    *GoalLedger
}

func newSession(st ledger.Stores, now time.Time) *session {
	s := &session{stores: st, now: now}
	s.balances = NewBalanceMutator(st.Accounts())
	s.budgets = NewBudgetTracker(st.Budgets(), s.emit)
	s.goals = NewGoalLedger(st.Goals(), st.Contributions(), s.emit)
	return s
}

func (s *session) emit(ev core.LedgerEvent) {
	s.events = append(s.events, ev)
}
