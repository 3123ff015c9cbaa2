// Package ledger defines the storage contract shared by the SQLite and
// in-memory backends.
package ledger

import (
	"context"
	"time"

	"carteira/internal/core"
)

// TransactionFilter selects transactions for one user. Nil pointers leave a
// dimension unfiltered.
type TransactionFilter struct {
	Range      core.DateRange
	CategoryID *string
	CardID     *string
	AccountID  *string
	// HasCard keeps only transactions charged to some card.
	HasCard    bool
	Flow       *core.Flow
	Reconciled *bool
}

// Matches reports whether tx satisfies every set dimension.
func (f TransactionFilter) Matches(tx core.Transaction) bool {
	if !f.Range.Contains(tx.Date) {
		return false
	}
	if f.CategoryID != nil && tx.CategoryID != *f.CategoryID {
		return false
	}
	if f.CardID != nil && (tx.CardID == nil || *tx.CardID != *f.CardID) {
		return false
	}
	if f.AccountID != nil && (tx.AccountID == nil || *tx.AccountID != *f.AccountID) {
		return false
	}
	if f.HasCard && tx.CardID == nil {
		return false
	}
	if f.Flow != nil && tx.Flow != *f.Flow {
		return false
	}
	if f.Reconciled != nil && tx.Reconciled != *f.Reconciled {
		return false
	}
	return true
}

// BudgetFilter selects budgets for one user.
type BudgetFilter struct {
	Period     *core.Period
	Year       *int
	Month      *int
	CategoryID *string
}

func (f BudgetFilter) Matches(b core.Budget) bool {
	if f.Period != nil && b.Period != *f.Period {
		return false
	}
	if f.Year != nil && b.Year != *f.Year {
		return false
	}
	if f.Month != nil && (b.Month == nil || *b.Month != *f.Month) {
		return false
	}
	if f.CategoryID != nil && (b.CategoryID == nil || *b.CategoryID != *f.CategoryID) {
		return false
	}
	return true
}

// Ports consumed by the aggregation engine and services.
type (
	// Reader is the read side used by analytics and budget evaluation.
	// FindTransactions returns date descending; FindBudgets returns year then
	// month descending. Missing or foreign entities yield core.ErrNotFound.
	Reader interface {
		FindTransactions(ctx context.Context, userID string, f TransactionFilter) ([]core.Transaction, error)
		FindBudgets(ctx context.Context, userID string, f BudgetFilter) ([]core.Budget, error)
		FindTransaction(ctx context.Context, userID, id string) (core.Transaction, error)
		FindBudget(ctx context.Context, userID, id string) (core.Budget, error)
		FindCategory(ctx context.Context, userID, id string) (core.Category, error)
		FindCard(ctx context.Context, userID, id string) (core.Card, error)
		FindAccount(ctx context.Context, userID, id string) (core.Account, error)
		ListCategories(ctx context.Context, userID string) ([]core.Category, error)
		ListCards(ctx context.Context, userID string) ([]core.Card, error)
		ListAccounts(ctx context.Context, userID string) ([]core.Account, error)
	}

	// Writer persists entities. Unique-key clashes yield core.ErrConflict.
	Writer interface {
		CreateAccount(ctx context.Context, a core.Account) error
		UpdateAccount(ctx context.Context, a core.Account) error
		DeleteAccount(ctx context.Context, userID, id string) error

		CreateCard(ctx context.Context, c core.Card) error
		UpdateCard(ctx context.Context, c core.Card) error
		DeleteCard(ctx context.Context, userID, id string) error

		CreateCategory(ctx context.Context, c core.Category) error
		UpdateCategory(ctx context.Context, c core.Category) error
		DeleteCategory(ctx context.Context, userID, id string) error

		CreateTransaction(ctx context.Context, tx core.Transaction) error
		UpdateTransaction(ctx context.Context, tx core.Transaction) error
		DeleteTransaction(ctx context.Context, userID, id string) error

		CreateBudget(ctx context.Context, b core.Budget) error
		UpdateBudget(ctx context.Context, b core.Budget) error
		DeleteBudget(ctx context.Context, userID, id string) error
	}

	// RecurringStore keeps recurring rules.
	RecurringStore interface {
		CreateRecurringRule(ctx context.Context, r core.RecurringRule) error
		ListRecurringRules(ctx context.Context, userID string) ([]core.RecurringRule, error)
		DeleteRecurringRule(ctx context.Context, userID, id string) error
		// DueRecurringRules returns rules of every user with
		// nextOccurrenceAt <= now.
		DueRecurringRules(ctx context.Context, now time.Time) ([]core.RecurringRule, error)
		AdvanceRecurringRule(ctx context.Context, id string, next time.Time) error
	}

	// AlertStore remembers the last budget status seen by the alert worker.
	AlertStore interface {
		LastBudgetAlert(ctx context.Context, budgetID string) (core.BudgetAlert, bool, error)
		SaveBudgetAlert(ctx context.Context, a core.BudgetAlert) error
	}

	// Store is the full backend.
	Store interface {
		Reader
		Writer
		RecurringStore
		AlertStore
		Ping(ctx context.Context) error
		Close() error
	}
)
