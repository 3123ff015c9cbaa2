package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"carteira/internal/core"
)

const ruleColumns = `id, user_id, name, category_id, amount, flow, frequency, account_id, card_id,
	start_date, end_date, next_occurrence_at, created_at, updated_at`

func scanRule(row scanner) (core.RecurringRule, error) {
	var (
		r                         core.RecurringRule
		amount, end               sql.NullString
		account, card             sql.NullString
		start, next, created, upd string
	)
	if err := row.Scan(&r.ID, &r.UserID, &r.Name, &r.CategoryID, &amount, &r.Flow, &r.Frequency,
		&account, &card, &start, &end, &next, &created, &upd); err != nil {
		return core.RecurringRule{}, err
	}
	if amount.Valid {
		d, err := decimal.NewFromString(amount.String)
		if err != nil {
			return core.RecurringRule{}, fmt.Errorf("parse amount %q: %w", amount.String, err)
		}
		r.Amount = &d
	}
	if end.Valid {
		t, err := parseTime(end.String)
		if err != nil {
			return core.RecurringRule{}, fmt.Errorf("parse end date: %w", err)
		}
		r.EndDate = &t
	}
	var err error
	if r.StartDate, err = parseTime(start); err != nil {
		return core.RecurringRule{}, fmt.Errorf("parse start date: %w", err)
	}
	if r.NextOccurrenceAt, err = parseTime(next); err != nil {
		return core.RecurringRule{}, fmt.Errorf("parse next occurrence: %w", err)
	}
	r.AccountID = stringPtr(account)
	r.CardID = stringPtr(card)
	if r.CreatedAt, r.UpdatedAt, err = parseStamps(created, upd); err != nil {
		return core.RecurringRule{}, err
	}
	return r, nil
}

func (r *SQLiteRepository) queryRules(ctx context.Context, q string, args ...any) ([]core.RecurringRule, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query recurring rules: %w", err)
	}
	defer rows.Close()
	out := make([]core.RecurringRule, 0)
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan recurring rule: %w", err)
		}
		out = append(out, rule)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) CreateRecurringRule(ctx context.Context, rule core.RecurringRule) error {
	var amount, end sql.NullString
	if rule.Amount != nil {
		amount = sql.NullString{String: rule.Amount.String(), Valid: true}
	}
	if rule.EndDate != nil {
		end = sql.NullString{String: formatTime(*rule.EndDate), Valid: true}
	}
	_, err := r.db.ExecContext(ctx, `INSERT INTO recurring_rules (`+ruleColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rule.ID, rule.UserID, rule.Name, rule.CategoryID, amount, string(rule.Flow), string(rule.Frequency),
		nullString(rule.AccountID), nullString(rule.CardID), formatTime(rule.StartDate), end,
		formatTime(rule.NextOccurrenceAt), formatTime(rule.CreatedAt), formatTime(rule.UpdatedAt))
	return mapWriteError(err, "recurring rule")
}

func (r *SQLiteRepository) ListRecurringRules(ctx context.Context, userID string) ([]core.RecurringRule, error) {
	return r.queryRules(ctx, "SELECT "+ruleColumns+" FROM recurring_rules WHERE user_id = ? ORDER BY next_occurrence_at, id", userID)
}

func (r *SQLiteRepository) DeleteRecurringRule(ctx context.Context, userID, id string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM recurring_rules WHERE user_id = ? AND id = ?", userID, id)
	if err != nil {
		return fmt.Errorf("delete recurring rule: %w", err)
	}
	return expectOne(res, "recurring rule", id)
}

func (r *SQLiteRepository) DueRecurringRules(ctx context.Context, now time.Time) ([]core.RecurringRule, error) {
	return r.queryRules(ctx, "SELECT "+ruleColumns+" FROM recurring_rules WHERE next_occurrence_at <= ? ORDER BY next_occurrence_at, id",
		formatTime(now))
}

func (r *SQLiteRepository) AdvanceRecurringRule(ctx context.Context, id string, next time.Time) error {
	res, err := r.db.ExecContext(ctx, "UPDATE recurring_rules SET next_occurrence_at = ?, updated_at = ? WHERE id = ?",
		formatTime(next), formatTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("advance recurring rule: %w", err)
	}
	return expectOne(res, "recurring rule", id)
}

// Budget alerts

func (r *SQLiteRepository) LastBudgetAlert(ctx context.Context, budgetID string) (core.BudgetAlert, bool, error) {
	var (
		a                 core.BudgetAlert
		percent, observed string
	)
	err := r.db.QueryRowContext(ctx,
		"SELECT budget_id, user_id, status, percent_used, observed_at FROM budget_alerts WHERE budget_id = ?", budgetID).
		Scan(&a.BudgetID, &a.UserID, &a.Status, &percent, &observed)
	if errors.Is(err, sql.ErrNoRows) {
		return core.BudgetAlert{}, false, nil
	}
	if err != nil {
		return core.BudgetAlert{}, false, fmt.Errorf("get budget alert: %w", err)
	}
	if a.PercentUsed, err = decimal.NewFromString(percent); err != nil {
		return core.BudgetAlert{}, false, fmt.Errorf("parse percent %q: %w", percent, err)
	}
	if a.ObservedAt, err = parseTime(observed); err != nil {
		return core.BudgetAlert{}, false, fmt.Errorf("parse observed_at %q: %w", observed, err)
	}
	return a, true, nil
}

func (r *SQLiteRepository) SaveBudgetAlert(ctx context.Context, a core.BudgetAlert) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO budget_alerts (budget_id, user_id, status, percent_used, observed_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(budget_id) DO UPDATE SET status = excluded.status,
			percent_used = excluded.percent_used, observed_at = excluded.observed_at`,
		a.BudgetID, a.UserID, string(a.Status), a.PercentUsed.String(), formatTime(a.ObservedAt))
	if err != nil {
		return fmt.Errorf("save budget alert: %w", err)
	}
	return nil
}
