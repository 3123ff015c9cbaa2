package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carteira/internal/core"
	"carteira/internal/ledger"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "data", "carteira.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestMigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "carteira.db")
	repo, err := NewSQLiteRepository(path)
	require.NoError(t, err)
	require.NoError(t, repo.Close())

	require.NoError(t, RunMigrations(path))
}

func TestTransactionRoundTripAndFilters(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	now := time.Now().UTC()

	txs := []core.Transaction{
		{ID: "t1", UserID: "u1", Date: day(2024, 3, 1), Description: "Salary", CategoryID: "salary",
			Flow: core.FlowIncome, Amount: decimal.RequireFromString("5000.00"), AccountID: core.StrPtr("a1"), Reconciled: true},
		{ID: "t2", UserID: "u1", Date: day(2024, 3, 15), Description: "Groceries", CategoryID: "food",
			Flow: core.FlowExpense, Amount: decimal.RequireFromString("123.45"), CardID: core.StrPtr("k1")},
		{ID: "t3", UserID: "u1", Date: day(2024, 4, 1), Description: "Rent", CategoryID: "home",
			Flow: core.FlowExpense, Amount: decimal.RequireFromString("1500"), AccountID: core.StrPtr("a1"), Reconciled: true},
		{ID: "t4", UserID: "u2", Date: day(2024, 3, 10), Description: "Other user", CategoryID: "food",
			Flow: core.FlowExpense, Amount: decimal.RequireFromString("10"), CardID: core.StrPtr("k9")},
	}
	for _, tx := range txs {
		tx.CreatedAt, tx.UpdatedAt = now, now
		require.NoError(t, repo.CreateTransaction(ctx, tx))
	}

	all, err := repo.FindTransactions(ctx, "u1", ledger.TransactionFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"t3", "t2", "t1"}, []string{all[0].ID, all[1].ID, all[2].ID})
	assert.True(t, all[1].Amount.Equal(decimal.RequireFromString("123.45")))
	assert.Nil(t, all[1].AccountID)
	require.NotNil(t, all[1].CardID)
	assert.Equal(t, "k1", *all[1].CardID)

	march := core.YearMonth{Year: 2024, Month: time.March}.Range()
	reconciled := true
	got, err := repo.FindTransactions(ctx, "u1", ledger.TransactionFilter{Range: march, Reconciled: &reconciled})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "t1", got[0].ID)

	expense := core.FlowExpense
	got, err = repo.FindTransactions(ctx, "u1", ledger.TransactionFilter{Flow: &expense, HasCard: true})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "t2", got[0].ID)

	// Inclusive end bound from the period resolver keeps the last day.
	april, err := core.ResolvePeriod(core.PeriodMonthly, 2024, core.IntPtr(4))
	require.NoError(t, err)
	got, err = repo.FindTransactions(ctx, "u1", ledger.TransactionFilter{Range: april})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "t3", got[0].ID)

	_, err = repo.FindTransaction(ctx, "u1", "t4")
	assert.True(t, errors.Is(err, core.ErrNotFound))
}

func TestUpdateAndDeleteMissingRows(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	err := repo.UpdateTransaction(ctx, core.Transaction{ID: "nope", UserID: "u1", Amount: decimal.NewFromInt(1)})
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.ErrorIs(t, repo.DeleteCategory(ctx, "u1", "nope"), core.ErrNotFound)
	assert.ErrorIs(t, repo.DeleteBudget(ctx, "u1", "nope"), core.ErrNotFound)
}

func TestCorruptTimestampsAreReported(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	now := time.Now().UTC()

	require.NoError(t, repo.CreateCategory(ctx, core.Category{ID: "c1", UserID: "u1", Name: "Food",
		Type: core.FlowExpense, CreatedAt: now, UpdatedAt: now}))
	require.NoError(t, repo.CreateAccount(ctx, core.Account{ID: "a1", UserID: "u1", Name: "Checking",
		Type: core.AccountChecking, OpeningBalance: decimal.Zero, Currency: "BRL", CreatedAt: now, UpdatedAt: now}))
	require.NoError(t, repo.CreateTransaction(ctx, core.Transaction{ID: "t1", UserID: "u1", Date: day(2024, 3, 1),
		Description: "Groceries", CategoryID: "c1", Flow: core.FlowExpense, Amount: decimal.NewFromInt(10),
		AccountID: core.StrPtr("a1"), CreatedAt: now, UpdatedAt: now}))

	tests := []struct {
		name   string
		update string
		find   func() error
		want   string
	}{
		{
			name:   "category created_at",
			update: "UPDATE categories SET created_at = 'yesterday' WHERE id = 'c1'",
			find:   func() error { _, err := repo.FindCategory(ctx, "u1", "c1"); return err },
			want:   "parse created_at",
		},
		{
			name:   "account updated_at",
			update: "UPDATE accounts SET updated_at = '' WHERE id = 'a1'",
			find:   func() error { _, err := repo.FindAccount(ctx, "u1", "a1"); return err },
			want:   "parse updated_at",
		},
		{
			name:   "transaction listing",
			update: "UPDATE transactions SET created_at = '2024-13-45' WHERE id = 't1'",
			find: func() error {
				_, err := repo.FindTransactions(ctx, "u1", ledger.TransactionFilter{})
				return err
			},
			want: "parse created_at",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := repo.db.ExecContext(ctx, tt.update)
			require.NoError(t, err)

			err = tt.find()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
			assert.False(t, errors.Is(err, core.ErrNotFound))
		})
	}
}

func TestUniqueIndexesMapToConflict(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	now := time.Now().UTC()

	cat := core.Category{ID: "c1", UserID: "u1", Name: "Food", Type: core.FlowExpense, Color: "#00AA00", CreatedAt: now, UpdatedAt: now}
	require.NoError(t, repo.CreateCategory(ctx, cat))
	dup := cat
	dup.ID = "c2"
	assert.ErrorIs(t, repo.CreateCategory(ctx, dup), core.ErrConflict)

	acct := core.Account{ID: "a1", UserID: "u1", Name: "Checking", Type: core.AccountChecking,
		OpeningBalance: decimal.NewFromInt(100), Currency: "BRL", CreatedAt: now, UpdatedAt: now}
	require.NoError(t, repo.CreateAccount(ctx, acct))
	acct.ID = "a2"
	assert.ErrorIs(t, repo.CreateAccount(ctx, acct), core.ErrConflict)

	card := core.Card{ID: "k1", UserID: "u1", Brand: "Visa", Nickname: "Blue", CreditLimit: decimal.NewFromInt(5000),
		BillingDay: 5, DueDay: 15, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, repo.CreateCard(ctx, card))
	card.ID = "k2"
	assert.ErrorIs(t, repo.CreateCard(ctx, card), core.ErrConflict)

	// Null month and category still collide on the tuple index.
	wallet := core.Budget{ID: "b1", UserID: "u1", Period: core.PeriodAnnual, Year: 2024,
		Amount: decimal.NewFromInt(10000), CreatedAt: now, UpdatedAt: now}
	require.NoError(t, repo.CreateBudget(ctx, wallet))
	wallet.ID = "b2"
	assert.ErrorIs(t, repo.CreateBudget(ctx, wallet), core.ErrConflict)

	food := core.Budget{ID: "b3", UserID: "u1", Period: core.PeriodAnnual, Year: 2024, CategoryID: core.StrPtr("c1"),
		Amount: decimal.NewFromInt(3000), CreatedAt: now, UpdatedAt: now}
	require.NoError(t, repo.CreateBudget(ctx, food))
}

func TestBudgetsOrderedNewestFirst(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	now := time.Now().UTC()
	for _, b := range []core.Budget{
		{ID: "jan", Period: core.PeriodMonthly, Year: 2024, Month: core.IntPtr(1)},
		{ID: "old", Period: core.PeriodMonthly, Year: 2023, Month: core.IntPtr(12)},
		{ID: "mar", Period: core.PeriodMonthly, Year: 2024, Month: core.IntPtr(3)},
	} {
		b.UserID, b.Amount, b.CreatedAt, b.UpdatedAt = "u1", decimal.NewFromInt(100), now, now
		require.NoError(t, repo.CreateBudget(ctx, b))
	}

	got, err := repo.FindBudgets(ctx, "u1", ledger.BudgetFilter{})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"mar", "jan", "old"}, []string{got[0].ID, got[1].ID, got[2].ID})
	require.NotNil(t, got[0].Month)
	assert.Equal(t, 3, *got[0].Month)
	assert.Nil(t, got[0].CategoryID)

	year := 2023
	got, err = repo.FindBudgets(ctx, "u1", ledger.BudgetFilter{Year: &year})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "old", got[0].ID)
}

func TestRecurringRulesAndAlerts(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	now := day(2024, 5, 10)
	amount := decimal.RequireFromString("49.90")

	rule := core.RecurringRule{ID: "r1", UserID: "u1", Name: "Streaming", CategoryID: "fun", Amount: &amount,
		Flow: core.FlowExpense, Frequency: core.Monthly, CardID: core.StrPtr("k1"),
		StartDate: day(2024, 1, 5), NextOccurrenceAt: day(2024, 5, 5), CreatedAt: now, UpdatedAt: now}
	require.NoError(t, repo.CreateRecurringRule(ctx, rule))

	due, err := repo.DueRecurringRules(ctx, now)
	require.NoError(t, err)
	require.Len(t, due, 1)
	require.NotNil(t, due[0].Amount)
	assert.True(t, due[0].Amount.Equal(amount))
	assert.Nil(t, due[0].EndDate)

	require.NoError(t, repo.AdvanceRecurringRule(ctx, "r1", day(2024, 6, 5)))
	due, err = repo.DueRecurringRules(ctx, now)
	require.NoError(t, err)
	assert.Empty(t, due)

	_, ok, err := repo.LastBudgetAlert(ctx, "b1")
	require.NoError(t, err)
	assert.False(t, ok)

	alert := core.BudgetAlert{BudgetID: "b1", UserID: "u1", Status: core.StatusWarning,
		PercentUsed: decimal.RequireFromString("80.0"), ObservedAt: now}
	require.NoError(t, repo.SaveBudgetAlert(ctx, alert))
	alert.Status = core.StatusExceeded
	require.NoError(t, repo.SaveBudgetAlert(ctx, alert))

	got, ok, err := repo.LastBudgetAlert(ctx, "b1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, core.StatusExceeded, got.Status)
}
