package services

import (
	"context"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"carteira/internal/core"
	"carteira/internal/ledger"
)

type CardInput struct {
	AccountID   *string          `json:"accountId"`
	Brand       *string          `json:"brand"`
	Nickname    *string          `json:"nickname"`
	CreditLimit *decimal.Decimal `json:"creditLimit"`
	BillingDay  *int             `json:"billingDay"`
	DueDay      *int             `json:"dueDay"`
}

func (in CardInput) apply(c *core.Card) {
	if in.AccountID != nil {
		c.AccountID = core.StrPtr(strings.TrimSpace(*in.AccountID))
	}
	if in.Brand != nil {
		c.Brand = strings.TrimSpace(*in.Brand)
	}
	if in.Nickname != nil {
		c.Nickname = strings.TrimSpace(*in.Nickname)
	}
	if in.CreditLimit != nil {
		c.CreditLimit = *in.CreditLimit
	}
	if in.BillingDay != nil {
		c.BillingDay = *in.BillingDay
	}
	if in.DueDay != nil {
		c.DueDay = *in.DueDay
	}
}

type CardService struct {
	base
}

func (s *CardService) checkAccount(ctx context.Context, userID string, c core.Card) error {
	if c.AccountID == nil {
		return nil
	}
	if _, err := s.store.FindAccount(ctx, userID, *c.AccountID); err != nil {
		return liftNotFound(err, "accountId", "account not found")
	}
	return nil
}

func (s *CardService) Create(ctx context.Context, userID string, in CardInput) (core.Card, error) {
	now := s.now()
	c := core.Card{ID: core.NewID(), UserID: userID, CreatedAt: now, UpdatedAt: now}
	in.apply(&c)
	if err := c.Validate(); err != nil {
		return core.Card{}, err
	}
	if err := s.checkAccount(ctx, userID, c); err != nil {
		return core.Card{}, err
	}
	if err := s.store.CreateCard(ctx, c); err != nil {
		return core.Card{}, err
	}
	slog.InfoContext(ctx, "Card created", "id", c.ID, "nickname", c.Nickname)
	return c, nil
}

func (s *CardService) Get(ctx context.Context, userID, id string) (core.Card, error) {
	return s.store.FindCard(ctx, userID, id)
}

func (s *CardService) List(ctx context.Context, userID string) ([]core.Card, error) {
	return s.store.ListCards(ctx, userID)
}

func (s *CardService) Update(ctx context.Context, userID, id string, in CardInput) (core.Card, error) {
	c, err := s.store.FindCard(ctx, userID, id)
	if err != nil {
		return core.Card{}, err
	}
	in.apply(&c)
	c.UpdatedAt = s.now()
	if err := c.Validate(); err != nil {
		return core.Card{}, err
	}
	if err := s.checkAccount(ctx, userID, c); err != nil {
		return core.Card{}, err
	}
	if err := s.store.UpdateCard(ctx, c); err != nil {
		return core.Card{}, err
	}
	return c, nil
}

// Delete refuses to remove a card that still has transactions or recurring
// rules.
func (s *CardService) Delete(ctx context.Context, userID, id string) error {
	if _, err := s.store.FindCard(ctx, userID, id); err != nil {
		return err
	}
	txs, err := s.store.FindTransactions(ctx, userID, ledger.TransactionFilter{CardID: &id})
	if err != nil {
		return err
	}
	if len(txs) > 0 {
		return core.Conflict("card has %d transactions", len(txs))
	}
	rules, err := s.countRules(ctx, userID, func(r core.RecurringRule) bool {
		return r.CardID != nil && *r.CardID == id
	})
	if err != nil {
		return err
	}
	if rules > 0 {
		return core.Conflict("card has %d recurring rules", rules)
	}
	if err := s.store.DeleteCard(ctx, userID, id); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Card deleted", "id", id)
	return nil
}
