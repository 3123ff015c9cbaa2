package budget

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carteira/internal/core"
	"carteira/internal/ledger"
	"carteira/internal/ledger/memory"
)

const user = "u1"

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func seed(t *testing.T, s *memory.Store, id, category string, date time.Time, amount string, flow core.Flow) {
	t.Helper()
	require.NoError(t, s.CreateTransaction(context.Background(), core.Transaction{
		ID: id, UserID: user, Date: date, Description: id, CategoryID: category,
		Flow: flow, Amount: dec(amount), AccountID: core.StrPtr("acct"),
	}))
}

func newStore(t *testing.T) *memory.Store {
	t.Helper()
	s := memory.New()
	ctx := context.Background()
	require.NoError(t, s.CreateCategory(ctx, core.Category{ID: "food", UserID: user, Name: "Food", Type: core.FlowExpense}))
	require.NoError(t, s.CreateCategory(ctx, core.Category{ID: "market", UserID: user, Name: "Market", Type: core.FlowExpense}))
	return s
}

func TestEvaluateScenarios(t *testing.T) {
	s := newStore(t)
	march := func(d int) time.Time { return time.Date(2024, 3, d, 0, 0, 0, 0, time.UTC) }
	seed(t, s, "f1", "food", march(2), "400.00", core.FlowExpense)
	seed(t, s, "f2", "food", march(31), "240.00", core.FlowExpense)
	seed(t, s, "f3", "food", time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC), "999", core.FlowExpense)
	seed(t, s, "f4", "food", march(5), "50", core.FlowIncome)
	seed(t, s, "m1", "market", march(10), "1200.00", core.FlowExpense)

	tests := []struct {
		name      string
		budget    core.Budget
		percent   string
		remaining string
		status    core.BudgetStatus
	}{
		{
			name:   "warning at exactly 80",
			budget: core.Budget{ID: "a", Period: core.PeriodMonthly, Year: 2024, Month: core.IntPtr(3), CategoryID: core.StrPtr("food"), Amount: dec("800")},
			percent: "80.0", remaining: "160.00", status: core.StatusWarning,
		},
		{
			name:   "exceeded at exactly 100",
			budget: core.Budget{ID: "b", Period: core.PeriodMonthly, Year: 2024, Month: core.IntPtr(3), CategoryID: core.StrPtr("market"), Amount: dec("1200")},
			percent: "100.0", remaining: "0.00", status: core.StatusExceeded,
		},
		{
			name:   "wallet budget sums every category",
			budget: core.Budget{ID: "c", Period: core.PeriodMonthly, Year: 2024, Month: core.IntPtr(3), Amount: dec("4000")},
			percent: "46.0", remaining: "2160", status: core.StatusSafe,
		},
		{
			name:   "quarterly budget spans the quarter",
			budget: core.Budget{ID: "d", Period: core.PeriodQuarterly, Year: 2024, Month: core.IntPtr(2), CategoryID: core.StrPtr("food"), Amount: dec("500")},
			percent: "128.0", remaining: "-140", status: core.StatusExceeded,
		},
	}

	e := NewEvaluator(s, 2)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.budget.UserID = user
			p, err := e.Evaluate(context.Background(), user, tt.budget)
			require.NoError(t, err)
			assert.True(t, p.PercentUsed.Equal(dec(tt.percent)), "percent %s", p.PercentUsed)
			assert.True(t, p.RemainingAmount.Equal(dec(tt.remaining)), "remaining %s", p.RemainingAmount)
			assert.Equal(t, tt.status, p.Status)
		})
	}
}

func TestEvaluateResolvesCategoryName(t *testing.T) {
	s := newStore(t)
	e := NewEvaluator(s, 1)
	p, err := e.Evaluate(context.Background(), user, core.Budget{ID: "x", Period: core.PeriodAnnual, Year: 2024,
		CategoryID: core.StrPtr("food"), Amount: dec("100")})
	require.NoError(t, err)
	require.NotNil(t, p.CategoryName)
	assert.Equal(t, "Food", *p.CategoryName)
	assert.True(t, p.SpentAmount.IsZero())
	assert.Equal(t, core.StatusSafe, p.Status)

	p, err = e.Evaluate(context.Background(), user, core.Budget{ID: "y", Period: core.PeriodAnnual, Year: 2024,
		CategoryID: core.StrPtr("gone"), Amount: dec("100")})
	require.NoError(t, err)
	assert.Nil(t, p.CategoryName)
}

func TestEvaluateFaults(t *testing.T) {
	e := NewEvaluator(memory.New(), 1)

	_, err := e.Evaluate(context.Background(), user, core.Budget{ID: "z", Period: core.PeriodMonthly, Year: 2024,
		Month: core.IntPtr(1), Amount: decimal.Zero})
	assert.ErrorIs(t, err, core.ErrDataIntegrity)

	_, err = e.Evaluate(context.Background(), user, core.Budget{ID: "z", Period: core.PeriodMonthly, Year: 2024,
		Amount: dec("10")})
	assert.ErrorIs(t, err, core.ErrInvalidPeriod)

	_, err = e.ProgressByID(context.Background(), user, "missing")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestAllProgressKeepsStoreOrder(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	for m := 1; m <= 12; m++ {
		require.NoError(t, s.CreateBudget(ctx, core.Budget{
			ID: "m" + time.Month(m).String(), UserID: user, Period: core.PeriodMonthly,
			Year: 2024, Month: core.IntPtr(m), Amount: dec("100"),
		}))
	}

	e := NewEvaluator(s, 3)
	got, err := e.AllProgress(ctx, user)
	require.NoError(t, err)
	require.Len(t, got, 12)
	for i, p := range got {
		require.NotNil(t, p.Month)
		assert.Equal(t, 12-i, *p.Month)
	}
}

// countingReader fails FindTransactions for one budget and tracks peak fan-out.
type countingReader struct {
	ledger.Reader
	failCategory string
	inFlight     atomic.Int32
	peak         atomic.Int32
}

func (c *countingReader) FindTransactions(ctx context.Context, userID string, f ledger.TransactionFilter) ([]core.Transaction, error) {
	n := c.inFlight.Add(1)
	defer c.inFlight.Add(-1)
	for {
		p := c.peak.Load()
		if n <= p || c.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)
	if f.CategoryID != nil && *f.CategoryID == c.failCategory {
		return nil, errors.New("connection reset")
	}
	return c.Reader.FindTransactions(ctx, userID, f)
}

func TestAllProgressBoundsConcurrencyAndPropagatesErrors(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	for m := 1; m <= 8; m++ {
		require.NoError(t, s.CreateBudget(ctx, core.Budget{
			ID: time.Month(m).String(), UserID: user, Period: core.PeriodMonthly,
			Year: 2024, Month: core.IntPtr(m), Amount: dec("100"),
		}))
	}

	r := &countingReader{Reader: s}
	_, err := NewEvaluator(r, 2).AllProgress(ctx, user)
	require.NoError(t, err)
	assert.LessOrEqual(t, r.peak.Load(), int32(2))

	require.NoError(t, s.CreateBudget(ctx, core.Budget{ID: "bad", UserID: user, Period: core.PeriodAnnual,
		Year: 2024, CategoryID: core.StrPtr("market"), Amount: dec("100")}))
	r = &countingReader{Reader: s, failCategory: "market"}
	_, err = NewEvaluator(r, 2).AllProgress(ctx, user)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
}
