package worker

import (
	"context"
	"fmt"
	"time"

	"fintrack/internal/cache"
	"fintrack/internal/core"
	"fintrack/internal/ledger"
	"fintrack/internal/log"
)

// NotifyWorker turns ledger events into inbox notifications.
type NotifyWorker struct {
	store  ledger.NotificationStore
	seen   *cache.SeenSet
	logger *log.Logger
	now    func() time.Time
}

func NewNotifyWorker(store ledger.NotificationStore, seen *cache.SeenSet, logger *log.Logger) *NotifyWorker {
	return &NotifyWorker{
		store:  store,
		seen:   seen,
		logger: logger.WithComponent(log.ComponentNotify),
		now:    time.Now,
	}
}

// HandleEvent stores a notification for ev. Events that do not notify and
// deliveries of an event already handled are acknowledged without a write.
// A failed write returns an error so the broker redelivers.
func (w *NotifyWorker) HandleEvent(ctx context.Context, ev core.LedgerEvent) error {
	if !ev.Notifies() {
		w.logger.DebugContext(ctx, "Ignoring ledger event",
			log.FieldEventID, ev.ID,
			log.FieldEventType, string(ev.Type))
		return nil
	}
	if w.seen != nil && w.seen.MarkSeen(ev.ID) {
		w.logger.InfoContext(ctx, "Dropping duplicate ledger event",
			log.FieldEventID, ev.ID,
			log.FieldEventType, string(ev.Type))
		return nil
	}

	n := core.Notification{
		ID:        core.NewID(),
		OwnerID:   ev.OwnerID,
		EventID:   ev.ID,
		Type:      ev.Type,
		Title:     Title(ev),
		Message:   ev.Message,
		CreatedAt: w.now().UTC(),
	}
	if err := w.store.Save(ctx, n); err != nil {
		if w.seen != nil {
			w.seen.Forget(ev.ID)
		}
		return fmt.Errorf("save notification: %w", err)
	}

	w.logger.InfoContext(ctx, "Notification stored",
		log.FieldOwnerID, ev.OwnerID,
		log.FieldEventID, ev.ID,
		log.FieldEventType, string(ev.Type))
	return nil
}

// Title is the inbox headline for ev.
func Title(ev core.LedgerEvent) string {
	switch ev.Type {
	case core.EventBudgetThreshold:
		if ev.Threshold >= 100 {
			return "Budget exhausted"
		}
		return fmt.Sprintf("Budget %d%% used", ev.Threshold)
	case core.EventGoalCompleted:
		return "Goal completed"
	case core.EventGoalReopened:
		return "Goal no longer completed"
	case core.EventAccountArchived:
		return "Account archived"
	default:
		return string(ev.Type)
	}
}
