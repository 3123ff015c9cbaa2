package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// Overview is the reconciled income/expense rollup for a range.
type Overview struct {
	TotalIncome  decimal.Decimal `json:"totalIncome"`
	TotalExpense decimal.Decimal `json:"totalExpense"`
	TotalBalance decimal.Decimal `json:"totalBalance"`
	IsInRed      bool            `json:"isInRed"`
	Reasons      []string        `json:"reasons"`
}

// CategorySummary is the per-category rollup.
type CategorySummary struct {
	CategoryID   string          `json:"categoryId"`
	CategoryName string          `json:"categoryName"`
	Income       decimal.Decimal `json:"income"`
	Expense      decimal.Decimal `json:"expense"`
}

// CardSpend is expense spend grouped by card.
type CardSpend struct {
	CardID          string          `json:"cardId"`
	CardNickname    string          `json:"cardNickname"`
	Spend           decimal.Decimal `json:"spend"`
	CreditLimit     decimal.Decimal `json:"creditLimit"`
	UsagePercentage decimal.Decimal `json:"usagePercentage"`
}

// CashflowDay is one day in the monthly cashflow series.
type CashflowDay struct {
	Date               string          `json:"date"`
	Income             decimal.Decimal `json:"income"`
	Expense            decimal.Decimal `json:"expense"`
	Balance            decimal.Decimal `json:"balance"`
	AccumulatedBalance decimal.Decimal `json:"accumulatedBalance"`
}

// Invoice is a card statement for one billing cycle.
type Invoice struct {
	CardID          string          `json:"cardId"`
	CardNickname    string          `json:"cardNickname"`
	Month           string          `json:"month"`
	PeriodStart     string          `json:"periodStart"`
	PeriodEnd       string          `json:"periodEnd"`
	DueDate         string          `json:"dueDate"`
	Total           decimal.Decimal `json:"total"`
	CreditLimit     decimal.Decimal `json:"creditLimit"`
	AvailableLimit  decimal.Decimal `json:"availableLimit"`
	UsagePercentage decimal.Decimal `json:"usagePercentage"`
	Transactions    []Transaction   `json:"transactions"`
}

// AccountBalance is the derived balance of an account.
type AccountBalance struct {
	AccountID      string          `json:"accountId"`
	AccountName    string          `json:"accountName"`
	Currency       string          `json:"currency"`
	OpeningBalance decimal.Decimal `json:"openingBalance"`
	Income         decimal.Decimal `json:"income"`
	Expense        decimal.Decimal `json:"expense"`
	Balance        decimal.Decimal `json:"balance"`
}

// BudgetProgress reports how much of a budget has been consumed.
type BudgetProgress struct {
	BudgetID        string          `json:"budgetId"`
	Period          Period          `json:"period"`
	Year            int             `json:"year"`
	Month           *int            `json:"month,omitempty"`
	CategoryID      *string         `json:"categoryId,omitempty"`
	CategoryName    *string         `json:"categoryName,omitempty"`
	PeriodStart     time.Time       `json:"periodStart"`
	PeriodEnd       time.Time       `json:"periodEnd"`
	BudgetedAmount  decimal.Decimal `json:"budgetedAmount"`
	SpentAmount     decimal.Decimal `json:"spentAmount"`
	RemainingAmount decimal.Decimal `json:"remainingAmount"`
	PercentUsed     decimal.Decimal `json:"percentUsed"`
	Status          BudgetStatus    `json:"status"`
}
