// Package budget measures how much of each budget has been consumed.
package budget

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"carteira/internal/core"
	"carteira/internal/ledger"
)

// DefaultConcurrency bounds AllProgress fan-out when no limit is configured.
const DefaultConcurrency = 4

type Evaluator struct {
	store       ledger.Reader
	concurrency int
}

func NewEvaluator(store ledger.Reader, concurrency int) *Evaluator {
	if concurrency < 1 {
		concurrency = DefaultConcurrency
	}
	return &Evaluator{store: store, concurrency: concurrency}
}

// Evaluate computes progress for one budget. Planned and unreconciled
// expenses count toward consumption.
func (e *Evaluator) Evaluate(ctx context.Context, userID string, b core.Budget) (core.BudgetProgress, error) {
	if !b.Amount.IsPositive() {
		return core.BudgetProgress{}, fmt.Errorf("%w: budget %s has non-positive amount %s",
			core.ErrDataIntegrity, b.ID, b.Amount.String())
	}

	r, err := core.ResolvePeriod(b.Period, b.Year, b.Month)
	if err != nil {
		return core.BudgetProgress{}, err
	}

	flow := core.FlowExpense
	txs, err := e.store.FindTransactions(ctx, userID, ledger.TransactionFilter{
		Range:      r,
		CategoryID: b.CategoryID,
		Flow:       &flow,
	})
	if err != nil {
		return core.BudgetProgress{}, fmt.Errorf("budget %s: %w", b.ID, err)
	}

	spent := decimal.Zero
	for _, tx := range txs {
		spent = spent.Add(tx.Amount)
	}
	percent := core.Percent(spent, b.Amount)

	p := core.BudgetProgress{
		BudgetID:        b.ID,
		Period:          b.Period,
		Year:            b.Year,
		Month:           b.Month,
		CategoryID:      b.CategoryID,
		PeriodStart:     r.Start,
		PeriodEnd:       r.End,
		BudgetedAmount:  b.Amount,
		SpentAmount:     spent,
		RemainingAmount: b.Amount.Sub(spent),
		PercentUsed:     percent,
		Status:          core.StatusFor(percent),
	}

	if b.CategoryID != nil {
		cat, err := e.store.FindCategory(ctx, userID, *b.CategoryID)
		switch {
		case err == nil:
			p.CategoryName = &cat.Name
		case !errors.Is(err, core.ErrNotFound):
			return core.BudgetProgress{}, fmt.Errorf("budget %s: %w", b.ID, err)
		}
	}
	return p, nil
}

// ProgressByID loads a budget and evaluates it.
func (e *Evaluator) ProgressByID(ctx context.Context, userID, budgetID string) (core.BudgetProgress, error) {
	b, err := e.store.FindBudget(ctx, userID, budgetID)
	if err != nil {
		return core.BudgetProgress{}, err
	}
	return e.Evaluate(ctx, userID, b)
}

// AllProgress evaluates every budget of the user concurrently. Results keep
// the store order; the first failure is returned.
func (e *Evaluator) AllProgress(ctx context.Context, userID string) ([]core.BudgetProgress, error) {
	budgets, err := e.store.FindBudgets(ctx, userID, ledger.BudgetFilter{})
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}

	out := make([]core.BudgetProgress, len(budgets))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for i, b := range budgets {
		g.Go(func() error {
			p, err := e.Evaluate(gctx, userID, b)
			if err != nil {
				return err
			}
			out[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
