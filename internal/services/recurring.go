package services

import (
	"context"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"carteira/internal/core"
)

// RecurringRuleInput carries the fields of a new rule. Dates use YYYY-MM-DD.
// Omitting amount creates a reminder-only rule.
type RecurringRuleInput struct {
	Name       string           `json:"name"`
	CategoryID string           `json:"categoryId"`
	Amount     *decimal.Decimal `json:"amount"`
	Flow       core.Flow        `json:"flow"`
	Frequency  core.Frequency   `json:"frequency"`
	AccountID  *string          `json:"accountId"`
	CardID     *string          `json:"cardId"`
	StartDate  string           `json:"startDate"`
	EndDate    *string          `json:"endDate"`
}

type RecurringService struct {
	base
}

func (s *RecurringService) Create(ctx context.Context, userID string, in RecurringRuleInput) (core.RecurringRule, error) {
	now := s.now()
	r := core.RecurringRule{
		ID:         core.NewID(),
		UserID:     userID,
		Name:       strings.TrimSpace(in.Name),
		CategoryID: strings.TrimSpace(in.CategoryID),
		Amount:     in.Amount,
		Flow:       in.Flow,
		Frequency:  in.Frequency,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if in.AccountID != nil {
		r.AccountID = core.StrPtr(strings.TrimSpace(*in.AccountID))
	}
	if in.CardID != nil {
		r.CardID = core.StrPtr(strings.TrimSpace(*in.CardID))
	}
	if in.StartDate != "" {
		d, err := core.ParseDate(in.StartDate)
		if err != nil {
			return core.RecurringRule{}, &core.ValidationError{Field: "startDate", Message: err.Error()}
		}
		r.StartDate = d
	}
	if in.EndDate != nil && *in.EndDate != "" {
		d, err := core.ParseDate(*in.EndDate)
		if err != nil {
			return core.RecurringRule{}, &core.ValidationError{Field: "endDate", Message: err.Error()}
		}
		r.EndDate = &d
	}
	r.NextOccurrenceAt = r.StartDate

	if err := r.Validate(); err != nil {
		return core.RecurringRule{}, err
	}
	if err := s.checkReferences(ctx, userID, r); err != nil {
		return core.RecurringRule{}, err
	}
	if err := s.store.CreateRecurringRule(ctx, r); err != nil {
		return core.RecurringRule{}, err
	}
	slog.InfoContext(ctx, "Recurring rule created",
		"id", r.ID,
		"frequency", r.Frequency,
		"next_occurrence", r.NextOccurrenceAt.Format(core.DateLayout))
	return r, nil
}

func (s *RecurringService) checkReferences(ctx context.Context, userID string, r core.RecurringRule) error {
	if _, err := s.store.FindCategory(ctx, userID, r.CategoryID); err != nil {
		return liftNotFound(err, "categoryId", "category not found")
	}
	if r.AccountID != nil {
		if _, err := s.store.FindAccount(ctx, userID, *r.AccountID); err != nil {
			return liftNotFound(err, "accountId", "account not found")
		}
	}
	if r.CardID != nil {
		if _, err := s.store.FindCard(ctx, userID, *r.CardID); err != nil {
			return liftNotFound(err, "cardId", "card not found")
		}
	}
	return nil
}

// List returns the user's rules by next occurrence.
func (s *RecurringService) List(ctx context.Context, userID string) ([]core.RecurringRule, error) {
	return s.store.ListRecurringRules(ctx, userID)
}

func (s *RecurringService) Delete(ctx context.Context, userID, id string) error {
	if err := s.store.DeleteRecurringRule(ctx, userID, id); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Recurring rule deleted", "id", id)
	return nil
}
