// Package services holds the ledger use cases: validation, ownership and
// reference checks in front of the store, plus event publishing.
package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"carteira/internal/amqp"
	"carteira/internal/core"
	"carteira/internal/ledger"
)

// EventPublisher is satisfied by *amqp.Client.
type EventPublisher interface {
	PublishLedgerEvent(ctx context.Context, ev *amqp.LedgerEvent) error
}

// base carries the dependencies shared by every service.
type base struct {
	store     ledger.Store
	publisher EventPublisher
	now       func() time.Time
}

func newBase(store ledger.Store, publisher EventPublisher) base {
	return base{
		store:     store,
		publisher: publisher,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// publish sends a ledger event. Failures are logged and never fail the
// write that triggered them.
func (b base) publish(ctx context.Context, t amqp.EventType, userID, entityID string) {
	if b.publisher == nil {
		return
	}
	if err := b.publisher.PublishLedgerEvent(ctx, amqp.NewLedgerEvent(t, userID, entityID)); err != nil {
		slog.WarnContext(ctx, "Failed to publish ledger event",
			"type", t,
			"entity_id", entityID,
			"error", err)
	}
}

// Services bundles every use case for the transport layer.
type Services struct {
	Accounts     *AccountService
	Cards        *CardService
	Categories   *CategoryService
	Transactions *TransactionService
	Budgets      *BudgetService
	Recurring    *RecurringService
}

// New wires all services over one store. publisher may be nil.
func New(store ledger.Store, publisher EventPublisher) *Services {
	b := newBase(store, publisher)
	return &Services{
		Accounts:     &AccountService{base: b},
		Cards:        &CardService{base: b},
		Categories:   &CategoryService{base: b},
		Transactions: &TransactionService{base: b},
		Budgets:      &BudgetService{base: b},
		Recurring:    &RecurringService{base: b},
	}
}

// liftNotFound reports a dangling reference in the request body as invalid
// input rather than a missing resource.
func liftNotFound(err error, field, msg string) error {
	if errors.Is(err, core.ErrNotFound) {
		return &core.ValidationError{Field: field, Message: msg}
	}
	return err
}

// countRules returns how many of the user's recurring rules satisfy ref.
func (b base) countRules(ctx context.Context, userID string, ref func(core.RecurringRule) bool) (int, error) {
	rules, err := b.store.ListRecurringRules(ctx, userID)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, r := range rules {
		if ref(r) {
			n++
		}
	}
	return n, nil
}
