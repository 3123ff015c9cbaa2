package services

import (
	"context"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"carteira/internal/core"
	"carteira/internal/ledger"
)

// AccountInput carries create and update fields. Nil fields are left
// unchanged on update and defaulted on create.
type AccountInput struct {
	Name           *string           `json:"name"`
	Type           *core.AccountType `json:"type"`
	OpeningBalance *decimal.Decimal  `json:"openingBalance"`
	Currency       *string           `json:"currency"`
}

func (in AccountInput) apply(a *core.Account) {
	if in.Name != nil {
		a.Name = strings.TrimSpace(*in.Name)
	}
	if in.Type != nil {
		a.Type = *in.Type
	}
	if in.OpeningBalance != nil {
		a.OpeningBalance = *in.OpeningBalance
	}
	if in.Currency != nil {
		a.Currency = strings.ToUpper(strings.TrimSpace(*in.Currency))
	}
}

type AccountService struct {
	base
}

func (s *AccountService) Create(ctx context.Context, userID string, in AccountInput) (core.Account, error) {
	now := s.now()
	a := core.Account{
		ID:             core.NewID(),
		UserID:         userID,
		Type:           core.AccountChecking,
		OpeningBalance: decimal.Zero,
		Currency:       core.DefaultCurrency,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	in.apply(&a)
	if err := a.Validate(); err != nil {
		return core.Account{}, err
	}
	if err := s.store.CreateAccount(ctx, a); err != nil {
		return core.Account{}, err
	}
	slog.InfoContext(ctx, "Account created", "id", a.ID, "name", a.Name)
	return a, nil
}

func (s *AccountService) Get(ctx context.Context, userID, id string) (core.Account, error) {
	return s.store.FindAccount(ctx, userID, id)
}

func (s *AccountService) List(ctx context.Context, userID string) ([]core.Account, error) {
	return s.store.ListAccounts(ctx, userID)
}

func (s *AccountService) Update(ctx context.Context, userID, id string, in AccountInput) (core.Account, error) {
	a, err := s.store.FindAccount(ctx, userID, id)
	if err != nil {
		return core.Account{}, err
	}
	in.apply(&a)
	a.UpdatedAt = s.now()
	if err := a.Validate(); err != nil {
		return core.Account{}, err
	}
	if err := s.store.UpdateAccount(ctx, a); err != nil {
		return core.Account{}, err
	}
	return a, nil
}

// Delete refuses to remove an account still referenced by transactions,
// cards or recurring rules.
func (s *AccountService) Delete(ctx context.Context, userID, id string) error {
	if _, err := s.store.FindAccount(ctx, userID, id); err != nil {
		return err
	}
	txs, err := s.store.FindTransactions(ctx, userID, ledger.TransactionFilter{AccountID: &id})
	if err != nil {
		return err
	}
	if len(txs) > 0 {
		return core.Conflict("account has %d transactions", len(txs))
	}
	cards, err := s.store.ListCards(ctx, userID)
	if err != nil {
		return err
	}
	for _, c := range cards {
		if c.AccountID != nil && *c.AccountID == id {
			return core.Conflict("account is linked to card %q", c.Nickname)
		}
	}
	rules, err := s.countRules(ctx, userID, func(r core.RecurringRule) bool {
		return r.AccountID != nil && *r.AccountID == id
	})
	if err != nil {
		return err
	}
	if rules > 0 {
		return core.Conflict("account has %d recurring rules", rules)
	}
	if err := s.store.DeleteAccount(ctx, userID, id); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Account deleted", "id", id)
	return nil
}
