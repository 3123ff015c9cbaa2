// Package storage is the SQLite implementation of ledger.Store.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"carteira/internal/core"
	"carteira/internal/ledger"

	_ "modernc.org/sqlite"
)

// Timestamps are stored as fixed-width UTC text so lexical order matches
// chronological order.
const tsLayout = "2006-01-02T15:04:05.000000000Z"

var _ ledger.Store = (*SQLiteRepository)(nil)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(tsLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(tsLayout, s)
}

// parseStamps parses the created_at and updated_at columns of a row.
func parseStamps(created, updated string) (time.Time, time.Time, error) {
	c, err := parseTime(created)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("parse created_at %q: %w", created, err)
	}
	u, err := parseTime(updated)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("parse updated_at %q: %w", updated, err)
	}
	return c, u, nil
}

func nullString(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func nullInt(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}

func intPtr(ni sql.NullInt64) *int {
	if !ni.Valid {
		return nil
	}
	i := int(ni.Int64)
	return &i
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// mapWriteError turns unique-index violations into core.ErrConflict.
func mapWriteError(err error, what string) error {
	if err == nil {
		return nil
	}
	if strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return core.Conflict("%s already exists", what)
	}
	return fmt.Errorf("write %s: %w", what, err)
}

func expectOne(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return core.NotFound(kind, id)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

// Transactions

const transactionColumns = `id, user_id, date, description, category_id, flow, amount,
	account_id, card_id, planned, reconciled, created_at, updated_at`

func scanTransaction(row scanner) (core.Transaction, error) {
	var (
		tx                        core.Transaction
		date, amount, created, up string
		account, card             sql.NullString
		planned, reconciled       int
	)
	if err := row.Scan(&tx.ID, &tx.UserID, &date, &tx.Description, &tx.CategoryID, &tx.Flow, &amount,
		&account, &card, &planned, &reconciled, &created, &up); err != nil {
		return core.Transaction{}, err
	}
	var err error
	if tx.Date, err = parseTime(date); err != nil {
		return core.Transaction{}, fmt.Errorf("parse date %q: %w", date, err)
	}
	if tx.Amount, err = decimal.NewFromString(amount); err != nil {
		return core.Transaction{}, fmt.Errorf("parse amount %q: %w", amount, err)
	}
	tx.AccountID = stringPtr(account)
	tx.CardID = stringPtr(card)
	tx.Planned = planned != 0
	tx.Reconciled = reconciled != 0
	if tx.CreatedAt, tx.UpdatedAt, err = parseStamps(created, up); err != nil {
		return core.Transaction{}, err
	}
	return tx, nil
}

// transactionWhere renders the filter as SQL conditions.
func transactionWhere(userID string, f ledger.TransactionFilter) (string, []any) {
	conds := []string{"user_id = ?"}
	args := []any{userID}
	if !f.Range.Start.IsZero() {
		conds = append(conds, "date >= ?")
		args = append(args, formatTime(f.Range.Start))
	}
	if !f.Range.End.IsZero() {
		if f.Range.EndExclusive {
			conds = append(conds, "date < ?")
		} else {
			conds = append(conds, "date <= ?")
		}
		args = append(args, formatTime(f.Range.End))
	}
	if f.CategoryID != nil {
		conds = append(conds, "category_id = ?")
		args = append(args, *f.CategoryID)
	}
	if f.CardID != nil {
		conds = append(conds, "card_id = ?")
		args = append(args, *f.CardID)
	}
	if f.AccountID != nil {
		conds = append(conds, "account_id = ?")
		args = append(args, *f.AccountID)
	}
	if f.HasCard {
		conds = append(conds, "card_id IS NOT NULL")
	}
	if f.Flow != nil {
		conds = append(conds, "flow = ?")
		args = append(args, string(*f.Flow))
	}
	if f.Reconciled != nil {
		conds = append(conds, "reconciled = ?")
		args = append(args, boolInt(*f.Reconciled))
	}
	return strings.Join(conds, " AND "), args
}

func (r *SQLiteRepository) FindTransactions(ctx context.Context, userID string, f ledger.TransactionFilter) ([]core.Transaction, error) {
	where, args := transactionWhere(userID, f)
	q := "SELECT " + transactionColumns + " FROM transactions WHERE " + where +
		" ORDER BY date DESC, created_at DESC, id"
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	out := make([]core.Transaction, 0)
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) FindTransaction(ctx context.Context, userID, id string) (core.Transaction, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+transactionColumns+" FROM transactions WHERE user_id = ? AND id = ?", userID, id)
	tx, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, core.NotFound("transaction", id)
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction: %w", err)
	}
	return tx, nil
}

func (r *SQLiteRepository) CreateTransaction(ctx context.Context, tx core.Transaction) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO transactions (`+transactionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tx.ID, tx.UserID, formatTime(tx.Date), tx.Description, tx.CategoryID, string(tx.Flow), tx.Amount.String(),
		nullString(tx.AccountID), nullString(tx.CardID), boolInt(tx.Planned), boolInt(tx.Reconciled),
		formatTime(tx.CreatedAt), formatTime(tx.UpdatedAt))
	if err != nil {
		return mapWriteError(err, "transaction")
	}
	slog.DebugContext(ctx, "Transaction saved", "id", tx.ID, "flow", tx.Flow, "amount", tx.Amount.String())
	return nil
}

func (r *SQLiteRepository) UpdateTransaction(ctx context.Context, tx core.Transaction) error {
	res, err := r.db.ExecContext(ctx, `UPDATE transactions SET date = ?, description = ?, category_id = ?,
		flow = ?, amount = ?, account_id = ?, card_id = ?, planned = ?, reconciled = ?, updated_at = ?
		WHERE user_id = ? AND id = ?`,
		formatTime(tx.Date), tx.Description, tx.CategoryID, string(tx.Flow), tx.Amount.String(),
		nullString(tx.AccountID), nullString(tx.CardID), boolInt(tx.Planned), boolInt(tx.Reconciled),
		formatTime(tx.UpdatedAt), tx.UserID, tx.ID)
	if err != nil {
		return mapWriteError(err, "transaction")
	}
	return expectOne(res, "transaction", tx.ID)
}

func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, userID, id string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM transactions WHERE user_id = ? AND id = ?", userID, id)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	return expectOne(res, "transaction", id)
}

// Budgets

const budgetColumns = `id, user_id, period, year, month, category_id, amount, created_at, updated_at`

func scanBudget(row scanner) (core.Budget, error) {
	var (
		b                    core.Budget
		month                sql.NullInt64
		category             sql.NullString
		amount, created, upd string
	)
	if err := row.Scan(&b.ID, &b.UserID, &b.Period, &b.Year, &month, &category, &amount, &created, &upd); err != nil {
		return core.Budget{}, err
	}
	var err error
	if b.Amount, err = decimal.NewFromString(amount); err != nil {
		return core.Budget{}, fmt.Errorf("parse amount %q: %w", amount, err)
	}
	b.Month = intPtr(month)
	b.CategoryID = stringPtr(category)
	if b.CreatedAt, b.UpdatedAt, err = parseStamps(created, upd); err != nil {
		return core.Budget{}, err
	}
	return b, nil
}

func (r *SQLiteRepository) FindBudgets(ctx context.Context, userID string, f ledger.BudgetFilter) ([]core.Budget, error) {
	conds := []string{"user_id = ?"}
	args := []any{userID}
	if f.Period != nil {
		conds = append(conds, "period = ?")
		args = append(args, string(*f.Period))
	}
	if f.Year != nil {
		conds = append(conds, "year = ?")
		args = append(args, *f.Year)
	}
	if f.Month != nil {
		conds = append(conds, "month = ?")
		args = append(args, *f.Month)
	}
	if f.CategoryID != nil {
		conds = append(conds, "category_id = ?")
		args = append(args, *f.CategoryID)
	}
	q := "SELECT " + budgetColumns + " FROM budgets WHERE " + strings.Join(conds, " AND ") +
		" ORDER BY year DESC, COALESCE(month, 0) DESC, created_at, id"
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query budgets: %w", err)
	}
	defer rows.Close()

	out := make([]core.Budget, 0)
	for rows.Next() {
		b, err := scanBudget(rows)
		if err != nil {
			return nil, fmt.Errorf("scan budget: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) FindBudget(ctx context.Context, userID, id string) (core.Budget, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+budgetColumns+" FROM budgets WHERE user_id = ? AND id = ?", userID, id)
	b, err := scanBudget(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Budget{}, core.NotFound("budget", id)
	}
	if err != nil {
		return core.Budget{}, fmt.Errorf("get budget: %w", err)
	}
	return b, nil
}

func (r *SQLiteRepository) CreateBudget(ctx context.Context, b core.Budget) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO budgets (`+budgetColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.UserID, string(b.Period), b.Year, nullInt(b.Month), nullString(b.CategoryID), b.Amount.String(),
		formatTime(b.CreatedAt), formatTime(b.UpdatedAt))
	return mapWriteError(err, "budget "+b.Key())
}

func (r *SQLiteRepository) UpdateBudget(ctx context.Context, b core.Budget) error {
	res, err := r.db.ExecContext(ctx, `UPDATE budgets SET period = ?, year = ?, month = ?, category_id = ?,
		amount = ?, updated_at = ? WHERE user_id = ? AND id = ?`,
		string(b.Period), b.Year, nullInt(b.Month), nullString(b.CategoryID), b.Amount.String(),
		formatTime(b.UpdatedAt), b.UserID, b.ID)
	if err != nil {
		return mapWriteError(err, "budget "+b.Key())
	}
	return expectOne(res, "budget", b.ID)
}

func (r *SQLiteRepository) DeleteBudget(ctx context.Context, userID, id string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM budgets WHERE user_id = ? AND id = ?", userID, id)
	if err != nil {
		return fmt.Errorf("delete budget: %w", err)
	}
	if err := expectOne(res, "budget", id); err != nil {
		return err
	}
	if _, err := r.db.ExecContext(ctx, "DELETE FROM budget_alerts WHERE budget_id = ?", id); err != nil {
		return fmt.Errorf("delete budget alert: %w", err)
	}
	return nil
}

// Categories

const categoryColumns = `id, user_id, name, type, color, created_at, updated_at`

func scanCategory(row scanner) (core.Category, error) {
	var (
		c            core.Category
		created, upd string
	)
	if err := row.Scan(&c.ID, &c.UserID, &c.Name, &c.Type, &c.Color, &created, &upd); err != nil {
		return core.Category{}, err
	}
	var err error
	if c.CreatedAt, c.UpdatedAt, err = parseStamps(created, upd); err != nil {
		return core.Category{}, err
	}
	return c, nil
}

func (r *SQLiteRepository) FindCategory(ctx context.Context, userID, id string) (core.Category, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+categoryColumns+" FROM categories WHERE user_id = ? AND id = ?", userID, id)
	c, err := scanCategory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Category{}, core.NotFound("category", id)
	}
	if err != nil {
		return core.Category{}, fmt.Errorf("get category: %w", err)
	}
	return c, nil
}

func (r *SQLiteRepository) ListCategories(ctx context.Context, userID string) ([]core.Category, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+categoryColumns+" FROM categories WHERE user_id = ? ORDER BY name", userID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()
	out := make([]core.Category, 0)
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) CreateCategory(ctx context.Context, c core.Category) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO categories (`+categoryColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.UserID, c.Name, string(c.Type), c.Color, formatTime(c.CreatedAt), formatTime(c.UpdatedAt))
	return mapWriteError(err, fmt.Sprintf("category name %q", c.Name))
}

func (r *SQLiteRepository) UpdateCategory(ctx context.Context, c core.Category) error {
	res, err := r.db.ExecContext(ctx, `UPDATE categories SET name = ?, type = ?, color = ?, updated_at = ?
		WHERE user_id = ? AND id = ?`, c.Name, string(c.Type), c.Color, formatTime(c.UpdatedAt), c.UserID, c.ID)
	if err != nil {
		return mapWriteError(err, fmt.Sprintf("category name %q", c.Name))
	}
	return expectOne(res, "category", c.ID)
}

func (r *SQLiteRepository) DeleteCategory(ctx context.Context, userID, id string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM categories WHERE user_id = ? AND id = ?", userID, id)
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	return expectOne(res, "category", id)
}

// Cards

const cardColumns = `id, user_id, account_id, brand, nickname, credit_limit, billing_day, due_day, created_at, updated_at`

func scanCard(row scanner) (core.Card, error) {
	var (
		c                   core.Card
		account             sql.NullString
		limit, created, upd string
	)
	if err := row.Scan(&c.ID, &c.UserID, &account, &c.Brand, &c.Nickname, &limit, &c.BillingDay, &c.DueDay, &created, &upd); err != nil {
		return core.Card{}, err
	}
	var err error
	if c.CreditLimit, err = decimal.NewFromString(limit); err != nil {
		return core.Card{}, fmt.Errorf("parse credit limit %q: %w", limit, err)
	}
	c.AccountID = stringPtr(account)
	if c.CreatedAt, c.UpdatedAt, err = parseStamps(created, upd); err != nil {
		return core.Card{}, err
	}
	return c, nil
}

func (r *SQLiteRepository) FindCard(ctx context.Context, userID, id string) (core.Card, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+cardColumns+" FROM cards WHERE user_id = ? AND id = ?", userID, id)
	c, err := scanCard(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Card{}, core.NotFound("card", id)
	}
	if err != nil {
		return core.Card{}, fmt.Errorf("get card: %w", err)
	}
	return c, nil
}

func (r *SQLiteRepository) ListCards(ctx context.Context, userID string) ([]core.Card, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+cardColumns+" FROM cards WHERE user_id = ? ORDER BY nickname", userID)
	if err != nil {
		return nil, fmt.Errorf("list cards: %w", err)
	}
	defer rows.Close()
	out := make([]core.Card, 0)
	for rows.Next() {
		c, err := scanCard(rows)
		if err != nil {
			return nil, fmt.Errorf("scan card: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) CreateCard(ctx context.Context, c core.Card) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO cards (`+cardColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.UserID, nullString(c.AccountID), c.Brand, c.Nickname, c.CreditLimit.String(), c.BillingDay, c.DueDay,
		formatTime(c.CreatedAt), formatTime(c.UpdatedAt))
	return mapWriteError(err, fmt.Sprintf("card nickname %q", c.Nickname))
}

func (r *SQLiteRepository) UpdateCard(ctx context.Context, c core.Card) error {
	res, err := r.db.ExecContext(ctx, `UPDATE cards SET account_id = ?, brand = ?, nickname = ?, credit_limit = ?,
		billing_day = ?, due_day = ?, updated_at = ? WHERE user_id = ? AND id = ?`,
		nullString(c.AccountID), c.Brand, c.Nickname, c.CreditLimit.String(), c.BillingDay, c.DueDay,
		formatTime(c.UpdatedAt), c.UserID, c.ID)
	if err != nil {
		return mapWriteError(err, fmt.Sprintf("card nickname %q", c.Nickname))
	}
	return expectOne(res, "card", c.ID)
}

func (r *SQLiteRepository) DeleteCard(ctx context.Context, userID, id string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM cards WHERE user_id = ? AND id = ?", userID, id)
	if err != nil {
		return fmt.Errorf("delete card: %w", err)
	}
	return expectOne(res, "card", id)
}

// Accounts

const accountColumns = `id, user_id, name, type, opening_balance, currency, created_at, updated_at`

func scanAccount(row scanner) (core.Account, error) {
	var (
		a                     core.Account
		opening, created, upd string
	)
	if err := row.Scan(&a.ID, &a.UserID, &a.Name, &a.Type, &opening, &a.Currency, &created, &upd); err != nil {
		return core.Account{}, err
	}
	var err error
	if a.OpeningBalance, err = decimal.NewFromString(opening); err != nil {
		return core.Account{}, fmt.Errorf("parse opening balance %q: %w", opening, err)
	}
	if a.CreatedAt, a.UpdatedAt, err = parseStamps(created, upd); err != nil {
		return core.Account{}, err
	}
	return a, nil
}

func (r *SQLiteRepository) FindAccount(ctx context.Context, userID, id string) (core.Account, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+accountColumns+" FROM accounts WHERE user_id = ? AND id = ?", userID, id)
	a, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Account{}, core.NotFound("account", id)
	}
	if err != nil {
		return core.Account{}, fmt.Errorf("get account: %w", err)
	}
	return a, nil
}

func (r *SQLiteRepository) ListAccounts(ctx context.Context, userID string) ([]core.Account, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+accountColumns+" FROM accounts WHERE user_id = ? ORDER BY name", userID)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()
	out := make([]core.Account, 0)
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) CreateAccount(ctx context.Context, a core.Account) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO accounts (`+accountColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.UserID, a.Name, string(a.Type), a.OpeningBalance.String(), a.Currency,
		formatTime(a.CreatedAt), formatTime(a.UpdatedAt))
	return mapWriteError(err, fmt.Sprintf("account name %q", a.Name))
}

func (r *SQLiteRepository) UpdateAccount(ctx context.Context, a core.Account) error {
	res, err := r.db.ExecContext(ctx, `UPDATE accounts SET name = ?, type = ?, opening_balance = ?, currency = ?,
		updated_at = ? WHERE user_id = ? AND id = ?`,
		a.Name, string(a.Type), a.OpeningBalance.String(), a.Currency, formatTime(a.UpdatedAt), a.UserID, a.ID)
	if err != nil {
		return mapWriteError(err, fmt.Sprintf("account name %q", a.Name))
	}
	return expectOne(res, "account", a.ID)
}

func (r *SQLiteRepository) DeleteAccount(ctx context.Context, userID, id string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM accounts WHERE user_id = ? AND id = ?", userID, id)
	if err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	return expectOne(res, "account", id)
}
