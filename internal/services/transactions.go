package services

import (
	"context"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"carteira/internal/amqp"
	"carteira/internal/core"
	"carteira/internal/ledger"
)

// TransactionInput carries create and update fields. Date accepts
// YYYY-MM-DD or RFC 3339. An empty accountId or cardId clears the link.
type TransactionInput struct {
	Date        *string          `json:"date"`
	Description *string          `json:"description"`
	CategoryID  *string          `json:"categoryId"`
	Flow        *core.Flow       `json:"flow"`
	Amount      *decimal.Decimal `json:"amount"`
	AccountID   *string          `json:"accountId"`
	CardID      *string          `json:"cardId"`
	Planned     *bool            `json:"planned"`
	Reconciled  *bool            `json:"reconciled"`
}

func (in TransactionInput) apply(tx *core.Transaction) error {
	if in.Date != nil {
		d, err := core.ParseDateTime(*in.Date)
		if err != nil {
			return err
		}
		tx.Date = d
	}
	if in.Description != nil {
		tx.Description = strings.TrimSpace(*in.Description)
	}
	if in.CategoryID != nil {
		tx.CategoryID = strings.TrimSpace(*in.CategoryID)
	}
	if in.Flow != nil {
		tx.Flow = *in.Flow
	}
	if in.Amount != nil {
		tx.Amount = *in.Amount
	}
	if in.AccountID != nil {
		tx.AccountID = core.StrPtr(strings.TrimSpace(*in.AccountID))
	}
	if in.CardID != nil {
		tx.CardID = core.StrPtr(strings.TrimSpace(*in.CardID))
	}
	if in.Planned != nil {
		tx.Planned = *in.Planned
	}
	if in.Reconciled != nil {
		tx.Reconciled = *in.Reconciled
	}
	return nil
}

type TransactionService struct {
	base
}

// checkReferences ensures the category, account and card belong to the user.
func (s *TransactionService) checkReferences(ctx context.Context, userID string, tx core.Transaction) error {
	if _, err := s.store.FindCategory(ctx, userID, tx.CategoryID); err != nil {
		return liftNotFound(err, "categoryId", "category not found")
	}
	if tx.AccountID != nil {
		if _, err := s.store.FindAccount(ctx, userID, *tx.AccountID); err != nil {
			return liftNotFound(err, "accountId", "account not found")
		}
	}
	if tx.CardID != nil {
		if _, err := s.store.FindCard(ctx, userID, *tx.CardID); err != nil {
			return liftNotFound(err, "cardId", "card not found")
		}
	}
	return nil
}

func (s *TransactionService) Create(ctx context.Context, userID string, in TransactionInput) (core.Transaction, error) {
	now := s.now()
	tx := core.Transaction{ID: core.NewID(), UserID: userID, CreatedAt: now, UpdatedAt: now}
	if err := in.apply(&tx); err != nil {
		return core.Transaction{}, err
	}
	return s.create(ctx, tx)
}

// CreateFromRule stores a transaction generated by the recurring processor.
func (s *TransactionService) CreateFromRule(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	now := s.now()
	tx.ID = core.NewID()
	tx.CreatedAt, tx.UpdatedAt = now, now
	return s.create(ctx, tx)
}

func (s *TransactionService) create(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}
	if err := s.checkReferences(ctx, tx.UserID, tx); err != nil {
		return core.Transaction{}, err
	}
	if err := s.store.CreateTransaction(ctx, tx); err != nil {
		return core.Transaction{}, err
	}
	slog.InfoContext(ctx, "Transaction created",
		"id", tx.ID,
		"flow", tx.Flow,
		"amount", tx.Amount.String(),
		"date", tx.Date.Format(core.DateLayout))
	s.publish(ctx, amqp.TransactionCreated, tx.UserID, tx.ID)
	return tx, nil
}

func (s *TransactionService) Get(ctx context.Context, userID, id string) (core.Transaction, error) {
	return s.store.FindTransaction(ctx, userID, id)
}

// List returns matching transactions, newest first.
func (s *TransactionService) List(ctx context.Context, userID string, f ledger.TransactionFilter) ([]core.Transaction, error) {
	return s.store.FindTransactions(ctx, userID, f)
}

func (s *TransactionService) Update(ctx context.Context, userID, id string, in TransactionInput) (core.Transaction, error) {
	tx, err := s.store.FindTransaction(ctx, userID, id)
	if err != nil {
		return core.Transaction{}, err
	}
	if err := in.apply(&tx); err != nil {
		return core.Transaction{}, err
	}
	tx.UpdatedAt = s.now()
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}
	if err := s.checkReferences(ctx, userID, tx); err != nil {
		return core.Transaction{}, err
	}
	if err := s.store.UpdateTransaction(ctx, tx); err != nil {
		return core.Transaction{}, err
	}
	s.publish(ctx, amqp.TransactionUpdated, userID, tx.ID)
	return tx, nil
}

// Reconcile marks a transaction as confirmed against a statement.
func (s *TransactionService) Reconcile(ctx context.Context, userID, id string) (core.Transaction, error) {
	tx, err := s.store.FindTransaction(ctx, userID, id)
	if err != nil {
		return core.Transaction{}, err
	}
	tx.Reconciled = true
	tx.UpdatedAt = s.now()
	if err := s.store.UpdateTransaction(ctx, tx); err != nil {
		return core.Transaction{}, err
	}
	s.publish(ctx, amqp.TransactionReconciled, userID, tx.ID)
	return tx, nil
}

func (s *TransactionService) Delete(ctx context.Context, userID, id string) error {
	if err := s.store.DeleteTransaction(ctx, userID, id); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Transaction deleted", "id", id)
	s.publish(ctx, amqp.TransactionDeleted, userID, id)
	return nil
}
