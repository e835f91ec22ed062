package core

import (
	"time"
)

// EventType names a ledger change worth telling the owner about.
type EventType string

const (
	EventTransactionCreated EventType = "transaction.created"
	EventTransactionUpdated EventType = "transaction.updated"
	EventTransactionDeleted EventType = "transaction.deleted"
	EventBudgetThreshold    EventType = "budget.threshold_reached"
	EventGoalCompleted      EventType = "goal.completed"
	EventGoalReopened       EventType = "goal.reopened"
	EventAccountArchived    EventType = "account.archived"
)

// LedgerEvent is emitted after a unit of work commits.
type LedgerEvent struct {
	ID         string    `json:"id"`
	Type       EventType `json:"type"`
	OwnerID    string    `json:"owner_id"`
	EntityID   string    `json:"entity_id"`
	Message    string    `json:"message"`
	Threshold  int       `json:"threshold,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// NewEvent stamps a fresh id and the current time on an event.
func NewEvent(typ EventType, ownerID, entityID, message string) LedgerEvent {
	return LedgerEvent{
		ID:         NewID(),
		Type:       typ,
		OwnerID:    ownerID,
		EntityID:   entityID,
		Message:    message,
		OccurredAt: time.Now().UTC(),
	}
}

// Notifies reports whether the event ends up in the owner's inbox. Plain
// transaction bookkeeping events are published but not stored as notifications.
func (e LedgerEvent) Notifies() bool {
	switch e.Type {
	case EventBudgetThreshold, EventGoalCompleted, EventGoalReopened, EventAccountArchived:
		return true
	}
	return false
}

// Notification is an inbox entry derived from a LedgerEvent.
type Notification struct {
	ID        string
	OwnerID   string
	EventID   string
	Type      EventType
	Title     string
	Message   string
	Read      bool
	CreatedAt time.Time
}
