package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventType names a ledger change.
type EventType string

const (
	TransactionCreated    EventType = "transaction.created"
	TransactionUpdated    EventType = "transaction.updated"
	TransactionReconciled EventType = "transaction.reconciled"
	TransactionDeleted    EventType = "transaction.deleted"
	BudgetCreated         EventType = "budget.created"
	BudgetUpdated         EventType = "budget.updated"
	BudgetDeleted         EventType = "budget.deleted"
)

// LedgerEvent is a lightweight notification of a ledger write. Consumers
// reload the entity from the store instead of trusting a payload.
type LedgerEvent struct {
	Type      EventType `json:"type"`
	UserID    string    `json:"userId"`
	EntityID  string    `json:"entityId"`
	Timestamp time.Time `json:"timestamp"`
}

func NewLedgerEvent(t EventType, userID, entityID string) *LedgerEvent {
	return &LedgerEvent{
		Type:      t,
		UserID:    userID,
		EntityID:  entityID,
		Timestamp: time.Now().UTC(),
	}
}

// IsTransaction reports whether the event concerns a transaction.
func (e *LedgerEvent) IsTransaction() bool {
	switch e.Type {
	case TransactionCreated, TransactionUpdated, TransactionReconciled, TransactionDeleted:
		return true
	}
	return false
}

func (e *LedgerEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// LedgerEventFromJSON decodes and checks a message body.
func LedgerEventFromJSON(data []byte) (*LedgerEvent, error) {
	var e LedgerEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	if e.Type == "" || e.UserID == "" {
		return nil, fmt.Errorf("ledger event missing type or userId")
	}
	return &e, nil
}
