package amqp

import (
	"encoding/json"
	"errors"
	"time"

	"fintrack/internal/core"
)

// EventMessage is the envelope a ledger event travels in. Consumers dedupe on
// Event.ID, so redelivery is harmless.
type EventMessage struct {
	Event     core.LedgerEvent `json:"event"`
	Timestamp time.Time        `json:"timestamp"`
}

// NewEventMessage wraps ev for publishing
func NewEventMessage(ev core.LedgerEvent) *EventMessage {
	return &EventMessage{
		Event:     ev,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *EventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// EventMessageFromJSON decodes a message and rejects envelopes without an event id or type.
func EventMessageFromJSON(data []byte) (*EventMessage, error) {
	var msg EventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Event.ID == "" || msg.Event.Type == "" {
		return nil, errors.New("event message without id or type")
	}
	return &msg, nil
}
