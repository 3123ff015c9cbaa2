// Package analytics computes period rollups over the transaction ledger.
//
// The engine is stateless: every call reads from the ledger and folds the
// result, so repeated calls against an unchanged ledger return identical
// values.
package analytics

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"carteira/internal/core"
	"carteira/internal/ledger"
)

// RedFlagRule inspects an overview and reports a reason when it applies.
type RedFlagRule struct {
	Name  string
	Check func(o core.Overview) (reason string, ok bool)
}

// NegativeBalance flags a period whose expenses outweigh its income.
var NegativeBalance = RedFlagRule{
	Name: "negative-balance",
	Check: func(o core.Overview) (string, bool) {
		return "Saldo total negativo", o.TotalBalance.IsNegative()
	},
}

// DefaultRules is the rule list used when none is configured.
func DefaultRules() []RedFlagRule {
	return []RedFlagRule{NegativeBalance}
}

type Engine struct {
	store ledger.Reader
	rules []RedFlagRule
}

type Option func(*Engine)

// WithRules replaces the red flag rule list. Rules run in order.
func WithRules(rules ...RedFlagRule) Option {
	return func(e *Engine) { e.rules = rules }
}

func NewEngine(store ledger.Reader, opts ...Option) *Engine {
	e := &Engine{store: store, rules: DefaultRules()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

var reconciledOnly = func() *bool { b := true; return &b }()

func expenseFlow() *core.Flow {
	f := core.FlowExpense
	return &f
}

// Overview totals reconciled income and expense in the inclusive range.
func (e *Engine) Overview(ctx context.Context, userID string, r core.DateRange) (core.Overview, error) {
	txs, err := e.store.FindTransactions(ctx, userID, ledger.TransactionFilter{Range: r, Reconciled: reconciledOnly})
	if err != nil {
		return core.Overview{}, fmt.Errorf("overview: %w", err)
	}

	income, expense := decimal.Zero, decimal.Zero
	for _, tx := range txs {
		switch tx.Flow {
		case core.FlowIncome:
			income = income.Add(tx.Amount)
		case core.FlowExpense:
			expense = expense.Add(tx.Amount)
		}
	}

	o := core.Overview{
		TotalIncome:  income,
		TotalExpense: expense,
		TotalBalance: income.Sub(expense),
		Reasons:      []string{},
	}
	o.IsInRed = o.TotalBalance.IsNegative()
	for _, rule := range e.rules {
		if reason, ok := rule.Check(o); ok {
			o.Reasons = append(o.Reasons, reason)
		}
	}
	return o, nil
}

// ByCategory groups reconciled transactions by category. Categories without
// matching transactions are omitted.
func (e *Engine) ByCategory(ctx context.Context, userID string, r core.DateRange) ([]core.CategorySummary, error) {
	txs, err := e.store.FindTransactions(ctx, userID, ledger.TransactionFilter{Range: r, Reconciled: reconciledOnly})
	if err != nil {
		return nil, fmt.Errorf("by category: %w", err)
	}
	if len(txs) == 0 {
		return []core.CategorySummary{}, nil
	}

	cats, err := e.store.ListCategories(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("by category: %w", err)
	}
	names := make(map[string]string, len(cats))
	for _, c := range cats {
		names[c.ID] = c.Name
	}

	groups := make(map[string]*core.CategorySummary)
	for _, tx := range txs {
		g, ok := groups[tx.CategoryID]
		if !ok {
			g = &core.CategorySummary{
				CategoryID:   tx.CategoryID,
				CategoryName: names[tx.CategoryID],
				Income:       decimal.Zero,
				Expense:      decimal.Zero,
			}
			groups[tx.CategoryID] = g
		}
		switch tx.Flow {
		case core.FlowIncome:
			g.Income = g.Income.Add(tx.Amount)
		case core.FlowExpense:
			g.Expense = g.Expense.Add(tx.Amount)
		}
	}

	out := make([]core.CategorySummary, 0, len(groups))
	for _, g := range groups {
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CategoryName != out[j].CategoryName {
			return out[i].CategoryName < out[j].CategoryName
		}
		return out[i].CategoryID < out[j].CategoryID
	})
	return out, nil
}

// ByCard sums card expenses, optionally restricted to a calendar month.
// This window is the calendar month, not the card's billing cycle.
func (e *Engine) ByCard(ctx context.Context, userID string, month *core.YearMonth) ([]core.CardSpend, error) {
	f := ledger.TransactionFilter{Flow: expenseFlow(), HasCard: true}
	if month != nil {
		f.Range = month.Range()
	}
	txs, err := e.store.FindTransactions(ctx, userID, f)
	if err != nil {
		return nil, fmt.Errorf("by card: %w", err)
	}
	if len(txs) == 0 {
		return []core.CardSpend{}, nil
	}

	cards, err := e.store.ListCards(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("by card: %w", err)
	}
	byID := make(map[string]core.Card, len(cards))
	for _, c := range cards {
		byID[c.ID] = c
	}

	groups := make(map[string]*core.CardSpend)
	for _, tx := range txs {
		if tx.CardID == nil {
			continue
		}
		card, ok := byID[*tx.CardID]
		if !ok {
			continue
		}
		g, ok := groups[card.ID]
		if !ok {
			g = &core.CardSpend{CardID: card.ID, CardNickname: card.Nickname, Spend: decimal.Zero, CreditLimit: card.CreditLimit}
			groups[card.ID] = g
		}
		g.Spend = g.Spend.Add(tx.Amount)
	}

	out := make([]core.CardSpend, 0, len(groups))
	for _, g := range groups {
		g.UsagePercentage = core.Percent(g.Spend, g.CreditLimit)
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CardNickname < out[j].CardNickname })
	return out, nil
}

// Cashflow returns the daily series of reconciled movement for one month,
// ascending by date. Balance is the day's net; AccumulatedBalance is the
// running net since the start of the month.
func (e *Engine) Cashflow(ctx context.Context, userID string, year, month int) ([]core.CashflowDay, error) {
	ym, err := core.NewYearMonth(year, month)
	if err != nil {
		return nil, err
	}
	txs, err := e.store.FindTransactions(ctx, userID, ledger.TransactionFilter{Range: ym.Range(), Reconciled: reconciledOnly})
	if err != nil {
		return nil, fmt.Errorf("cashflow: %w", err)
	}

	days := make(map[string]*core.CashflowDay)
	for _, tx := range txs {
		key := tx.Date.UTC().Format(core.DateLayout)
		d, ok := days[key]
		if !ok {
			d = &core.CashflowDay{Date: key, Income: decimal.Zero, Expense: decimal.Zero}
			days[key] = d
		}
		switch tx.Flow {
		case core.FlowIncome:
			d.Income = d.Income.Add(tx.Amount)
		case core.FlowExpense:
			d.Expense = d.Expense.Add(tx.Amount)
		}
	}

	out := make([]core.CashflowDay, 0, len(days))
	for _, d := range days {
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })

	running := decimal.Zero
	for i := range out {
		out[i].Balance = out[i].Income.Sub(out[i].Expense)
		running = running.Add(out[i].Balance)
		out[i].AccumulatedBalance = running
	}
	return out, nil
}

// Invoice builds the statement of one card for the billing cycle starting on
// the card's billing day of month.
func (e *Engine) Invoice(ctx context.Context, userID, cardID string, month core.YearMonth) (core.Invoice, error) {
	card, err := e.store.FindCard(ctx, userID, cardID)
	if err != nil {
		return core.Invoice{}, err
	}

	window := month.BillingRange(card.BillingDay)
	txs, err := e.store.FindTransactions(ctx, userID, ledger.TransactionFilter{
		Range:  window,
		CardID: &card.ID,
		Flow:   expenseFlow(),
	})
	if err != nil {
		return core.Invoice{}, fmt.Errorf("invoice: %w", err)
	}
	sort.SliceStable(txs, func(i, j int) bool { return txs[i].Date.Before(txs[j].Date) })

	total := decimal.Zero
	for _, tx := range txs {
		total = total.Add(tx.Amount)
	}

	return core.Invoice{
		CardID:          card.ID,
		CardNickname:    card.Nickname,
		Month:           month.String(),
		PeriodStart:     window.Start.Format(core.DateLayout),
		PeriodEnd:       window.End.Format(core.DateLayout),
		DueDate:         month.Day(card.DueDay).Format(core.DateLayout),
		Total:           total,
		CreditLimit:     card.CreditLimit,
		AvailableLimit:  card.CreditLimit.Sub(total),
		UsagePercentage: core.Percent(total, card.CreditLimit),
		Transactions:    txs,
	}, nil
}

// AccountBalance derives an account balance from its opening balance and
// its reconciled transactions. Transfers do not move the balance.
func (e *Engine) AccountBalance(ctx context.Context, userID, accountID string) (core.AccountBalance, error) {
	acct, err := e.store.FindAccount(ctx, userID, accountID)
	if err != nil {
		return core.AccountBalance{}, err
	}
	txs, err := e.store.FindTransactions(ctx, userID, ledger.TransactionFilter{AccountID: &acct.ID, Reconciled: reconciledOnly})
	if err != nil {
		return core.AccountBalance{}, fmt.Errorf("account balance: %w", err)
	}

	income, expense := decimal.Zero, decimal.Zero
	for _, tx := range txs {
		switch tx.Flow {
		case core.FlowIncome:
			income = income.Add(tx.Amount)
		case core.FlowExpense:
			expense = expense.Add(tx.Amount)
		}
	}
	return core.AccountBalance{
		AccountID:      acct.ID,
		AccountName:    acct.Name,
		Currency:       acct.Currency,
		OpeningBalance: acct.OpeningBalance,
		Income:         income,
		Expense:        expense,
		Balance:        acct.OpeningBalance.Add(income).Sub(expense),
	}, nil
}
