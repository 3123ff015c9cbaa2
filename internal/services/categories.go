package services

import (
	"context"
	"log/slog"
	"strings"

	"carteira/internal/core"
	"carteira/internal/ledger"
)

type CategoryInput struct {
	Name  *string            `json:"name"`
	Type  *core.CategoryType `json:"type"`
	Color *string            `json:"color"`
}

func (in CategoryInput) apply(c *core.Category) {
	if in.Name != nil {
		c.Name = strings.TrimSpace(*in.Name)
	}
	if in.Type != nil {
		c.Type = *in.Type
	}
	if in.Color != nil {
		c.Color = strings.TrimSpace(*in.Color)
	}
}

type CategoryService struct {
	base
}

func (s *CategoryService) Create(ctx context.Context, userID string, in CategoryInput) (core.Category, error) {
	now := s.now()
	c := core.Category{
		ID:        core.NewID(),
		UserID:    userID,
		Type:      core.FlowExpense,
		Color:     core.DefaultCategoryColor,
		CreatedAt: now,
		UpdatedAt: now,
	}
	in.apply(&c)
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}
	if err := s.store.CreateCategory(ctx, c); err != nil {
		return core.Category{}, err
	}
	slog.InfoContext(ctx, "Category created", "id", c.ID, "name", c.Name)
	return c, nil
}

func (s *CategoryService) Get(ctx context.Context, userID, id string) (core.Category, error) {
	return s.store.FindCategory(ctx, userID, id)
}

func (s *CategoryService) List(ctx context.Context, userID string) ([]core.Category, error) {
	return s.store.ListCategories(ctx, userID)
}

func (s *CategoryService) Update(ctx context.Context, userID, id string, in CategoryInput) (core.Category, error) {
	c, err := s.store.FindCategory(ctx, userID, id)
	if err != nil {
		return core.Category{}, err
	}
	in.apply(&c)
	c.UpdatedAt = s.now()
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}
	if err := s.store.UpdateCategory(ctx, c); err != nil {
		return core.Category{}, err
	}
	return c, nil
}

// Delete refuses to remove a category referenced by transactions, budgets or
// recurring rules.
func (s *CategoryService) Delete(ctx context.Context, userID, id string) error {
	if _, err := s.store.FindCategory(ctx, userID, id); err != nil {
		return err
	}
	txs, err := s.store.FindTransactions(ctx, userID, ledger.TransactionFilter{CategoryID: &id})
	if err != nil {
		return err
	}
	if len(txs) > 0 {
		return core.Conflict("category has %d transactions", len(txs))
	}
	budgets, err := s.store.FindBudgets(ctx, userID, ledger.BudgetFilter{CategoryID: &id})
	if err != nil {
		return err
	}
	if len(budgets) > 0 {
		return core.Conflict("category has %d budgets", len(budgets))
	}
	rules, err := s.countRules(ctx, userID, func(r core.RecurringRule) bool { return r.CategoryID == id })
	if err != nil {
		return err
	}
	if rules > 0 {
		return core.Conflict("category has %d recurring rules", rules)
	}
	if err := s.store.DeleteCategory(ctx, userID, id); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Category deleted", "id", id)
	return nil
}
