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

// BudgetInput carries create and update fields. An empty categoryId turns
// the budget into a whole-wallet budget.
type BudgetInput struct {
	Period     *core.Period     `json:"period"`
	Year       *int             `json:"year"`
	Month      *int             `json:"month"`
	CategoryID *string          `json:"categoryId"`
	Amount     *decimal.Decimal `json:"amount"`
}

func (in BudgetInput) apply(b *core.Budget) {
	if in.Period != nil {
		b.Period = *in.Period
	}
	if in.Year != nil {
		b.Year = *in.Year
	}
	if in.Month != nil {
		m := *in.Month
		b.Month = &m
	}
	if in.CategoryID != nil {
		b.CategoryID = core.StrPtr(strings.TrimSpace(*in.CategoryID))
	}
	if in.Amount != nil {
		b.Amount = *in.Amount
	}
}

type BudgetService struct {
	base
}

func (s *BudgetService) checkCategory(ctx context.Context, userID string, b core.Budget) error {
	if b.CategoryID == nil {
		return nil
	}
	if _, err := s.store.FindCategory(ctx, userID, *b.CategoryID); err != nil {
		return liftNotFound(err, "categoryId", "category not found")
	}
	return nil
}

func (s *BudgetService) Create(ctx context.Context, userID string, in BudgetInput) (core.Budget, error) {
	now := s.now()
	b := core.Budget{ID: core.NewID(), UserID: userID, CreatedAt: now, UpdatedAt: now}
	in.apply(&b)
	if err := b.Validate(); err != nil {
		return core.Budget{}, err
	}
	if err := s.checkCategory(ctx, userID, b); err != nil {
		return core.Budget{}, err
	}
	if err := s.store.CreateBudget(ctx, b); err != nil {
		return core.Budget{}, err
	}
	slog.InfoContext(ctx, "Budget created", "id", b.ID, "key", b.Key(), "amount", b.Amount.String())
	s.publish(ctx, amqp.BudgetCreated, userID, b.ID)
	return b, nil
}

func (s *BudgetService) Get(ctx context.Context, userID, id string) (core.Budget, error) {
	return s.store.FindBudget(ctx, userID, id)
}

// List returns matching budgets ordered year then month descending.
func (s *BudgetService) List(ctx context.Context, userID string, f ledger.BudgetFilter) ([]core.Budget, error) {
	return s.store.FindBudgets(ctx, userID, f)
}

func (s *BudgetService) Update(ctx context.Context, userID, id string, in BudgetInput) (core.Budget, error) {
	b, err := s.store.FindBudget(ctx, userID, id)
	if err != nil {
		return core.Budget{}, err
	}
	in.apply(&b)
	b.UpdatedAt = s.now()
	if err := b.Validate(); err != nil {
		return core.Budget{}, err
	}
	if err := s.checkCategory(ctx, userID, b); err != nil {
		return core.Budget{}, err
	}
	if err := s.store.UpdateBudget(ctx, b); err != nil {
		return core.Budget{}, err
	}
	s.publish(ctx, amqp.BudgetUpdated, userID, b.ID)
	return b, nil
}

func (s *BudgetService) Delete(ctx context.Context, userID, id string) error {
	if err := s.store.DeleteBudget(ctx, userID, id); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Budget deleted", "id", id)
	s.publish(ctx, amqp.BudgetDeleted, userID, id)
	return nil
}
