package memory

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"carteira/internal/core"
	"carteira/internal/ledger"
)

func TestFindTransactionsScopesByUserAndOrdersDateDesc(t *testing.T) {
	ctx := context.Background()
	s := New()
	mk := func(id, user string, day int) core.Transaction {
		return core.Transaction{
			ID: id, UserID: user, Description: id, CategoryID: "c1", Flow: core.FlowExpense,
			Amount: decimal.NewFromInt(10), CardID: core.StrPtr("k1"),
			Date: time.Date(2024, 3, day, 0, 0, 0, 0, time.UTC),
		}
	}
	for _, tx := range []core.Transaction{mk("a", "u1", 5), mk("b", "u1", 20), mk("c", "u2", 10), mk("d", "u1", 12)} {
		if err := s.CreateTransaction(ctx, tx); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	got, err := s.FindTransactions(ctx, "u1", ledger.TransactionFilter{})
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(got) != 3 || got[0].ID != "b" || got[1].ID != "d" || got[2].ID != "a" {
		t.Fatalf("unexpected order: %+v", got)
	}

	if _, err := s.FindTransaction(ctx, "u1", "c"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("foreign transaction should be not found, got %v", err)
	}
}

func TestUniqueNamesPerUser(t *testing.T) {
	ctx := context.Background()
	s := New()
	if err := s.CreateCategory(ctx, core.Category{ID: "1", UserID: "u1", Name: "Food"}); err != nil {
		t.Fatal(err)
	}
	if err := s.CreateCategory(ctx, core.Category{ID: "2", UserID: "u1", Name: "Food"}); !errors.Is(err, core.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if err := s.CreateCategory(ctx, core.Category{ID: "3", UserID: "u2", Name: "Food"}); err != nil {
		t.Fatalf("other users may reuse names: %v", err)
	}
	// Renaming onto itself is not a conflict.
	if err := s.UpdateCategory(ctx, core.Category{ID: "1", UserID: "u1", Name: "Food", Color: "#000000"}); err != nil {
		t.Fatalf("update: %v", err)
	}
}

func TestBudgetTupleUniqueness(t *testing.T) {
	ctx := context.Background()
	s := New()
	base := core.Budget{ID: "b1", UserID: "u1", Period: core.PeriodMonthly, Year: 2024, Month: core.IntPtr(3),
		CategoryID: core.StrPtr("food"), Amount: decimal.NewFromInt(800)}
	if err := s.CreateBudget(ctx, base); err != nil {
		t.Fatal(err)
	}
	dup := base
	dup.ID = "b2"
	if err := s.CreateBudget(ctx, dup); !errors.Is(err, core.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	wallet := base
	wallet.ID = "b3"
	wallet.CategoryID = nil
	if err := s.CreateBudget(ctx, wallet); err != nil {
		t.Fatalf("wallet budget is a different tuple: %v", err)
	}

	got, _ := s.FindBudgets(ctx, "u1", ledger.BudgetFilter{CategoryID: core.StrPtr("food")})
	if len(got) != 1 || got[0].ID != "b1" {
		t.Fatalf("unexpected filter result: %+v", got)
	}
}

func TestDueRecurringRules(t *testing.T) {
	ctx := context.Background()
	s := New()
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	_ = s.CreateRecurringRule(ctx, core.RecurringRule{ID: "due", UserID: "u1", NextOccurrenceAt: now.Add(-time.Hour)})
	_ = s.CreateRecurringRule(ctx, core.RecurringRule{ID: "later", UserID: "u1", NextOccurrenceAt: now.Add(time.Hour)})

	due, err := s.DueRecurringRules(ctx, now)
	if err != nil || len(due) != 1 || due[0].ID != "due" {
		t.Fatalf("unexpected due rules: %+v err=%v", due, err)
	}
	if err := s.AdvanceRecurringRule(ctx, "due", now.AddDate(0, 1, 0)); err != nil {
		t.Fatal(err)
	}
	due, _ = s.DueRecurringRules(ctx, now)
	if len(due) != 0 {
		t.Fatalf("rule should no longer be due: %+v", due)
	}
}

func TestNewFromFile(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFromFile(filepath.Join(dir, "missing.json"))
	if err != nil {
		t.Fatalf("missing seed should yield empty store: %v", err)
	}
	if cats, _ := s.ListCategories(context.Background(), "u1"); len(cats) != 0 {
		t.Fatalf("expected empty store, got %v", cats)
	}

	path := filepath.Join(dir, "seed.json")
	seed := `{"categories":[{"id":"c1","userId":"u1","name":"Food","type":"expense","color":"#00AA00"}],
	"budgets":[{"id":"b1","userId":"u1","period":"annual","year":2024,"amount":"1000"}]}`
	if err := os.WriteFile(path, []byte(seed), 0o644); err != nil {
		t.Fatal(err)
	}
	s, err = NewFromFile(path)
	if err != nil {
		t.Fatalf("load seed: %v", err)
	}
	c, err := s.FindCategory(context.Background(), "u1", "c1")
	if err != nil || c.Name != "Food" {
		t.Fatalf("unexpected category: %+v err=%v", c, err)
	}
	b, err := s.FindBudget(context.Background(), "u1", "b1")
	if err != nil || !b.Amount.Equal(decimal.NewFromInt(1000)) {
		t.Fatalf("unexpected budget: %+v err=%v", b, err)
	}

	if err := os.WriteFile(path, []byte("{"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewFromFile(path); err == nil {
		t.Fatal("expected parse error")
	}
}
