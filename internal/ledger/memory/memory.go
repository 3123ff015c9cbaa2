// Package memory is an in-process ledger.Store used for local runs and tests.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"carteira/internal/core"
	"carteira/internal/ledger"
)

var _ ledger.Store = (*Store)(nil)

type Store struct {
	mu           sync.RWMutex
	accounts     map[string]core.Account
	cards        map[string]core.Card
	categories   map[string]core.Category
	transactions map[string]core.Transaction
	budgets      map[string]core.Budget
	rules        map[string]core.RecurringRule
	alerts       map[string]core.BudgetAlert
}

// Seed is the JSON layout accepted by NewFromFile.
type Seed struct {
	Accounts     []core.Account     `json:"accounts"`
	Cards        []core.Card        `json:"cards"`
	Categories   []core.Category    `json:"categories"`
	Transactions []core.Transaction `json:"transactions"`
	Budgets      []core.Budget      `json:"budgets"`
}

func New() *Store {
	return &Store{
		accounts:     map[string]core.Account{},
		cards:        map[string]core.Card{},
		categories:   map[string]core.Category{},
		transactions: map[string]core.Transaction{},
		budgets:      map[string]core.Budget{},
		rules:        map[string]core.RecurringRule{},
		alerts:       map[string]core.BudgetAlert{},
	}
}

// NewFromFile loads a JSON seed. A missing file yields an empty store.
func NewFromFile(path string) (*Store, error) {
	s := New()
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read seed %s: %w", path, err)
	}
	var seed Seed
	if err := json.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("parse seed %s: %w", path, err)
	}
	for _, a := range seed.Accounts {
		s.accounts[a.ID] = a
	}
	for _, c := range seed.Cards {
		s.cards[c.ID] = c
	}
	for _, c := range seed.Categories {
		s.categories[c.ID] = c
	}
	for _, tx := range seed.Transactions {
		s.transactions[tx.ID] = tx
	}
	for _, b := range seed.Budgets {
		s.budgets[b.ID] = b
	}
	return s, nil
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }

// Reads

func (s *Store) FindTransactions(_ context.Context, userID string, f ledger.TransactionFilter) ([]core.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.Transaction, 0)
	for _, tx := range s.transactions {
		if tx.UserID == userID && f.Matches(tx) {
			out = append(out, tx)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.After(out[j].Date)
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) FindBudgets(_ context.Context, userID string, f ledger.BudgetFilter) ([]core.Budget, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.Budget, 0)
	for _, b := range s.budgets {
		if b.UserID == userID && f.Matches(b) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Year != out[j].Year {
			return out[i].Year > out[j].Year
		}
		mi, mj := monthOrZero(out[i].Month), monthOrZero(out[j].Month)
		if mi != mj {
			return mi > mj
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func monthOrZero(m *int) int {
	if m == nil {
		return 0
	}
	return *m
}

func (s *Store) FindTransaction(_ context.Context, userID, id string) (core.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tx, ok := s.transactions[id]
	if !ok || tx.UserID != userID {
		return core.Transaction{}, core.NotFound("transaction", id)
	}
	return tx, nil
}

func (s *Store) FindBudget(_ context.Context, userID, id string) (core.Budget, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.budgets[id]
	if !ok || b.UserID != userID {
		return core.Budget{}, core.NotFound("budget", id)
	}
	return b, nil
}

func (s *Store) FindCategory(_ context.Context, userID, id string) (core.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.categories[id]
	if !ok || c.UserID != userID {
		return core.Category{}, core.NotFound("category", id)
	}
	return c, nil
}

func (s *Store) FindCard(_ context.Context, userID, id string) (core.Card, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.cards[id]
	if !ok || c.UserID != userID {
		return core.Card{}, core.NotFound("card", id)
	}
	return c, nil
}

func (s *Store) FindAccount(_ context.Context, userID, id string) (core.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[id]
	if !ok || a.UserID != userID {
		return core.Account{}, core.NotFound("account", id)
	}
	return a, nil
}

func (s *Store) ListCategories(_ context.Context, userID string) ([]core.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.Category, 0)
	for _, c := range s.categories {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) ListCards(_ context.Context, userID string) ([]core.Card, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.Card, 0)
	for _, c := range s.cards {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Nickname < out[j].Nickname })
	return out, nil
}

func (s *Store) ListAccounts(_ context.Context, userID string) ([]core.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.Account, 0)
	for _, a := range s.accounts {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Writes

func (s *Store) CreateAccount(_ context.Context, a core.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.accountNameFree(a); err != nil {
		return err
	}
	s.accounts[a.ID] = a
	return nil
}

func (s *Store) UpdateAccount(_ context.Context, a core.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.accounts[a.ID]; !ok || cur.UserID != a.UserID {
		return core.NotFound("account", a.ID)
	}
	if err := s.accountNameFree(a); err != nil {
		return err
	}
	s.accounts[a.ID] = a
	return nil
}

func (s *Store) accountNameFree(a core.Account) error {
	for _, other := range s.accounts {
		if other.UserID == a.UserID && other.ID != a.ID && other.Name == a.Name {
			return core.Conflict("account name %q already exists", a.Name)
		}
	}
	return nil
}

func (s *Store) DeleteAccount(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.accounts[id]; !ok || cur.UserID != userID {
		return core.NotFound("account", id)
	}
	delete(s.accounts, id)
	return nil
}

func (s *Store) CreateCard(_ context.Context, c core.Card) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.cardNicknameFree(c); err != nil {
		return err
	}
	s.cards[c.ID] = c
	return nil
}

func (s *Store) UpdateCard(_ context.Context, c core.Card) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.cards[c.ID]; !ok || cur.UserID != c.UserID {
		return core.NotFound("card", c.ID)
	}
	if err := s.cardNicknameFree(c); err != nil {
		return err
	}
	s.cards[c.ID] = c
	return nil
}

func (s *Store) cardNicknameFree(c core.Card) error {
	for _, other := range s.cards {
		if other.UserID == c.UserID && other.ID != c.ID && other.Nickname == c.Nickname {
			return core.Conflict("card nickname %q already exists", c.Nickname)
		}
	}
	return nil
}

func (s *Store) DeleteCard(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.cards[id]; !ok || cur.UserID != userID {
		return core.NotFound("card", id)
	}
	delete(s.cards, id)
	return nil
}

func (s *Store) CreateCategory(_ context.Context, c core.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.categoryNameFree(c); err != nil {
		return err
	}
	s.categories[c.ID] = c
	return nil
}

func (s *Store) UpdateCategory(_ context.Context, c core.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.categories[c.ID]; !ok || cur.UserID != c.UserID {
		return core.NotFound("category", c.ID)
	}
	if err := s.categoryNameFree(c); err != nil {
		return err
	}
	s.categories[c.ID] = c
	return nil
}

func (s *Store) categoryNameFree(c core.Category) error {
	for _, other := range s.categories {
		if other.UserID == c.UserID && other.ID != c.ID && other.Name == c.Name {
			return core.Conflict("category name %q already exists", c.Name)
		}
	}
	return nil
}

func (s *Store) DeleteCategory(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.categories[id]; !ok || cur.UserID != userID {
		return core.NotFound("category", id)
	}
	delete(s.categories, id)
	return nil
}

func (s *Store) CreateTransaction(_ context.Context, tx core.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transactions[tx.ID] = tx
	return nil
}

func (s *Store) UpdateTransaction(_ context.Context, tx core.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.transactions[tx.ID]; !ok || cur.UserID != tx.UserID {
		return core.NotFound("transaction", tx.ID)
	}
	s.transactions[tx.ID] = tx
	return nil
}

func (s *Store) DeleteTransaction(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.transactions[id]; !ok || cur.UserID != userID {
		return core.NotFound("transaction", id)
	}
	delete(s.transactions, id)
	return nil
}

func (s *Store) CreateBudget(_ context.Context, b core.Budget) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.budgetKeyFree(b); err != nil {
		return err
	}
	s.budgets[b.ID] = b
	return nil
}

func (s *Store) UpdateBudget(_ context.Context, b core.Budget) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.budgets[b.ID]; !ok || cur.UserID != b.UserID {
		return core.NotFound("budget", b.ID)
	}
	if err := s.budgetKeyFree(b); err != nil {
		return err
	}
	s.budgets[b.ID] = b
	return nil
}

func (s *Store) budgetKeyFree(b core.Budget) error {
	key := b.Key()
	for _, other := range s.budgets {
		if other.UserID == b.UserID && other.ID != b.ID && other.Key() == key {
			return core.Conflict("budget %s already exists", key)
		}
	}
	return nil
}

func (s *Store) DeleteBudget(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.budgets[id]; !ok || cur.UserID != userID {
		return core.NotFound("budget", id)
	}
	delete(s.budgets, id)
	delete(s.alerts, id)
	return nil
}

// Recurring rules

func (s *Store) CreateRecurringRule(_ context.Context, r core.RecurringRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules[r.ID] = r
	return nil
}

func (s *Store) ListRecurringRules(_ context.Context, userID string) ([]core.RecurringRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.RecurringRule, 0)
	for _, r := range s.rules {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	sortRules(out)
	return out, nil
}

func (s *Store) DeleteRecurringRule(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.rules[id]; !ok || cur.UserID != userID {
		return core.NotFound("recurring rule", id)
	}
	delete(s.rules, id)
	return nil
}

func (s *Store) DueRecurringRules(_ context.Context, now time.Time) ([]core.RecurringRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.RecurringRule, 0)
	for _, r := range s.rules {
		if !r.NextOccurrenceAt.After(now) {
			out = append(out, r)
		}
	}
	sortRules(out)
	return out, nil
}

func sortRules(rules []core.RecurringRule) {
	sort.Slice(rules, func(i, j int) bool {
		if !rules[i].NextOccurrenceAt.Equal(rules[j].NextOccurrenceAt) {
			return rules[i].NextOccurrenceAt.Before(rules[j].NextOccurrenceAt)
		}
		return rules[i].ID < rules[j].ID
	})
}

func (s *Store) AdvanceRecurringRule(_ context.Context, id string, next time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rules[id]
	if !ok {
		return core.NotFound("recurring rule", id)
	}
	r.NextOccurrenceAt = next
	r.UpdatedAt = time.Now().UTC()
	s.rules[id] = r
	return nil
}

// Alerts

func (s *Store) LastBudgetAlert(_ context.Context, budgetID string) (core.BudgetAlert, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.alerts[budgetID]
	return a, ok, nil
}

func (s *Store) SaveBudgetAlert(_ context.Context, a core.BudgetAlert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts[a.BudgetID] = a
	return nil
}
