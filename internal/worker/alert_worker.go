// Package worker consumes ledger events: it re-evaluates the user's budgets
// to record status transitions and mirrors transactions to a spreadsheet.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"carteira/internal/amqp"
	"carteira/internal/budget"
	"carteira/internal/core"
	"carteira/internal/ledger"
	applog "carteira/internal/log"
	"carteira/internal/sheets"
)

// Store is what the worker reads and the alert state it keeps.
type Store interface {
	ledger.Reader
	ledger.AlertStore
}

// Transition is a budget whose status changed since the last event.
type Transition struct {
	BudgetID string
	UserID   string
	From     core.BudgetStatus
	To       core.BudgetStatus
	Percent  string
}

type AlertWorker struct {
	store       Store
	budgets     *budget.Evaluator
	mirror      sheets.TransactionMirror
	logger      *applog.Logger
	concurrency int
	now         func() time.Time
}

// NewAlertWorker builds the worker. A nil mirror disables the sheet copy.
func NewAlertWorker(store Store, budgets *budget.Evaluator, mirror sheets.TransactionMirror, logger *applog.Logger, concurrency int) *AlertWorker {
	if concurrency < 1 {
		concurrency = budget.DefaultConcurrency
	}
	return &AlertWorker{
		store:       store,
		budgets:     budgets,
		mirror:      mirror,
		logger:      logger.WithComponent(applog.ComponentWorker),
		concurrency: concurrency,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// HandleLedgerEvent is the AMQP handler. Transient failures are returned so
// the message is requeued.
func (w *AlertWorker) HandleLedgerEvent(ctx context.Context, ev *amqp.LedgerEvent) error {
	w.logger.InfoContext(ctx, "Processing ledger event",
		"type", ev.Type,
		applog.FieldUserID, ev.UserID,
		applog.FieldEntityID, ev.EntityID)

	g, gctx := errgroup.WithContext(ctx)
	if ev.IsTransaction() && w.mirror != nil {
		g.Go(func() error { return w.mirrorTransaction(gctx, ev) })
	}
	g.Go(func() error {
		_, err := w.CheckBudgets(gctx, ev.UserID)
		return err
	})
	return g.Wait()
}

// CheckBudgets evaluates every budget of userID and stores the statuses that
// changed. Budgets with corrupt data are logged and skipped.
func (w *AlertWorker) CheckBudgets(ctx context.Context, userID string) ([]Transition, error) {
	list, err := w.store.FindBudgets(ctx, userID, ledger.BudgetFilter{})
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}

	found := make([]*Transition, len(list))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.concurrency)
	for i, b := range list {
		g.Go(func() error {
			t, err := w.checkBudget(gctx, userID, b)
			if err != nil {
				return err
			}
			found[i] = t
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []Transition
	for _, t := range found {
		if t != nil {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (w *AlertWorker) checkBudget(ctx context.Context, userID string, b core.Budget) (*Transition, error) {
	p, err := w.budgets.Evaluate(ctx, userID, b)
	if errors.Is(err, core.ErrDataIntegrity) {
		w.logger.ErrorContext(ctx, "Skipping budget with invalid data",
			applog.FieldBudgetID, b.ID,
			applog.FieldError, err,
			applog.FieldErrorType, applog.ErrorTypeIntegrity)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("evaluate budget %s: %w", b.ID, err)
	}

	last, seen, err := w.store.LastBudgetAlert(ctx, b.ID)
	if err != nil {
		return nil, fmt.Errorf("load last alert for %s: %w", b.ID, err)
	}
	if seen && last.Status == p.Status {
		return nil, nil
	}

	alert := core.BudgetAlert{
		BudgetID:    b.ID,
		UserID:      userID,
		Status:      p.Status,
		PercentUsed: p.PercentUsed,
		ObservedAt:  w.now(),
	}
	if err := w.store.SaveBudgetAlert(ctx, alert); err != nil {
		return nil, fmt.Errorf("save alert for %s: %w", b.ID, err)
	}

	t := &Transition{
		BudgetID: b.ID,
		UserID:   userID,
		To:       p.Status,
		Percent:  p.PercentUsed.StringFixed(1),
	}
	if seen {
		t.From = last.Status
	}
	w.logTransition(ctx, t, p)
	return t, nil
}

func (w *AlertWorker) logTransition(ctx context.Context, t *Transition, p core.BudgetProgress) {
	args := []any{
		applog.FieldBudgetID, t.BudgetID,
		applog.FieldUserID, t.UserID,
		applog.FieldStatus, t.To,
		"previous_status", t.From,
		applog.FieldPercent, t.Percent,
		"spent", p.SpentAmount.String(),
		"budgeted", p.BudgetedAmount.String(),
	}
	switch t.To {
	case core.StatusExceeded:
		w.logger.WarnContext(ctx, "Budget exceeded", args...)
	case core.StatusWarning:
		w.logger.WarnContext(ctx, "Budget reached warning threshold", args...)
	default:
		if t.From == "" {
			w.logger.DebugContext(ctx, "Budget tracked", args...)
			return
		}
		w.logger.InfoContext(ctx, "Budget back under threshold", args...)
	}
}

func (w *AlertWorker) mirrorTransaction(ctx context.Context, ev *amqp.LedgerEvent) error {
	if ev.Type == amqp.TransactionDeleted {
		if err := w.mirror.Remove(ctx, ev.EntityID); err != nil {
			return fmt.Errorf("remove mirrored transaction %s: %w", ev.EntityID, err)
		}
		w.logger.InfoContext(ctx, "Removed mirrored transaction", applog.FieldEntityID, ev.EntityID)
		return nil
	}

	tx, err := w.store.FindTransaction(ctx, ev.UserID, ev.EntityID)
	if errors.Is(err, core.ErrNotFound) {
		// deleted before the event was handled; the delete event clears it
		w.logger.DebugContext(ctx, "Transaction gone, skipping mirror", applog.FieldEntityID, ev.EntityID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("load transaction %s: %w", ev.EntityID, err)
	}

	row := sheets.NewTransactionRow(tx, w.categoryName(ctx, tx), w.sourceName(ctx, tx))
	ref, err := w.mirror.Upsert(ctx, row)
	if err != nil {
		return fmt.Errorf("mirror transaction %s: %w", tx.ID, err)
	}

	w.logger.InfoContext(ctx, "Mirrored transaction",
		append(applog.NewFields().
			WithOperation(applog.OpMirror).
			WithEntity("transaction", tx.ID).
			WithMovement(string(tx.Flow), tx.Amount).
			ToSlice(), "sheets_ref", ref)...)
	return nil
}

// categoryName falls back to the id when the category cannot be loaded.
func (w *AlertWorker) categoryName(ctx context.Context, tx core.Transaction) string {
	c, err := w.store.FindCategory(ctx, tx.UserID, tx.CategoryID)
	if err != nil {
		return tx.CategoryID
	}
	return c.Name
}

func (w *AlertWorker) sourceName(ctx context.Context, tx core.Transaction) string {
	switch {
	case tx.CardID != nil:
		if c, err := w.store.FindCard(ctx, tx.UserID, *tx.CardID); err == nil {
			return c.Nickname
		}
		return *tx.CardID
	case tx.AccountID != nil:
		if a, err := w.store.FindAccount(ctx, tx.UserID, *tx.AccountID); err == nil {
			return a.Name
		}
		return *tx.AccountID
	}
	return ""
}
