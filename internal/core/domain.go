package core

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	FlowIncome   Flow = "income"
	FlowExpense  Flow = "expense"
	FlowTransfer Flow = "transfer"
)

const (
	PeriodMonthly   Period = "monthly"
	PeriodQuarterly Period = "quarterly"
	PeriodAnnual    Period = "annual"
)

const (
	AccountChecking AccountType = "checking"
	AccountSavings  AccountType = "savings"
	AccountCash     AccountType = "cash"
	AccountOther    AccountType = "other"
)

const (
	Daily      Frequency = "daily"
	Weekly     Frequency = "weekly"
	Biweekly   Frequency = "biweekly"
	Monthly    Frequency = "monthly"
	Bimonthly  Frequency = "bimonthly"
	Quarterly  Frequency = "quarterly"
	Semiannual Frequency = "semiannual"
	Annual     Frequency = "annual"
)

const (
	StatusSafe     BudgetStatus = "safe"
	StatusWarning  BudgetStatus = "warning"
	StatusExceeded BudgetStatus = "exceeded"
)

const (
	DefaultCategoryColor = "#6C5CE7"
	DefaultCurrency      = "BRL"
	maxDescriptionLen    = 200
	maxNameLen           = 100
)

type (
	Flow         string
	Period       string
	AccountType  string
	CategoryType = Flow
	Frequency    string
	BudgetStatus string

	Transaction struct {
		ID          string          `json:"id"`
		UserID      string          `json:"userId"`
		Date        time.Time       `json:"date"`
		Description string          `json:"description"`
		CategoryID  string          `json:"categoryId"`
		Flow        Flow            `json:"flow"`
		Amount      decimal.Decimal `json:"amount"`
		AccountID   *string         `json:"accountId"`
		CardID      *string         `json:"cardId"`
		Planned     bool            `json:"planned"`
		Reconciled  bool            `json:"reconciled"`
		CreatedAt   time.Time       `json:"createdAt"`
		UpdatedAt   time.Time       `json:"updatedAt"`
	}

	Category struct {
		ID        string       `json:"id"`
		UserID    string       `json:"userId"`
		Name      string       `json:"name"`
		Type      CategoryType `json:"type"`
		Color     string       `json:"color"`
		CreatedAt time.Time    `json:"createdAt"`
		UpdatedAt time.Time    `json:"updatedAt"`
	}

	Account struct {
		ID             string          `json:"id"`
		UserID         string          `json:"userId"`
		Name           string          `json:"name"`
		Type           AccountType     `json:"type"`
		OpeningBalance decimal.Decimal `json:"openingBalance"`
		Currency       string          `json:"currency"`
		CreatedAt      time.Time       `json:"createdAt"`
		UpdatedAt      time.Time       `json:"updatedAt"`
	}

	Card struct {
		ID          string          `json:"id"`
		UserID      string          `json:"userId"`
		AccountID   *string         `json:"accountId"`
		Brand       string          `json:"brand"`
		Nickname    string          `json:"nickname"`
		CreditLimit decimal.Decimal `json:"creditLimit"`
		BillingDay  int             `json:"billingDay"`
		DueDay      int             `json:"dueDay"`
		CreatedAt   time.Time       `json:"createdAt"`
		UpdatedAt   time.Time       `json:"updatedAt"`
	}

	Budget struct {
		ID         string          `json:"id"`
		UserID     string          `json:"userId"`
		Period     Period          `json:"period"`
		Year       int             `json:"year"`
		Month      *int            `json:"month"`
		CategoryID *string         `json:"categoryId"`
		Amount     decimal.Decimal `json:"amount"`
		CreatedAt  time.Time       `json:"createdAt"`
		UpdatedAt  time.Time       `json:"updatedAt"`
	}

	// RecurringRule is a template the recurring worker turns into planned
	// transactions. A rule without an amount is a reminder only.
	RecurringRule struct {
		ID               string           `json:"id"`
		UserID           string           `json:"userId"`
		Name             string           `json:"name"`
		CategoryID       string           `json:"categoryId"`
		Amount           *decimal.Decimal `json:"amount"`
		Flow             Flow             `json:"flow"`
		Frequency        Frequency        `json:"frequency"`
		AccountID        *string          `json:"accountId"`
		CardID           *string          `json:"cardId"`
		StartDate        time.Time        `json:"startDate"`
		EndDate          *time.Time       `json:"endDate"`
		NextOccurrenceAt time.Time        `json:"nextOccurrenceAt"`
		CreatedAt        time.Time        `json:"createdAt"`
		UpdatedAt        time.Time        `json:"updatedAt"`
	}

	// BudgetAlert is the last status the alert worker observed for a budget.
	BudgetAlert struct {
		BudgetID    string          `json:"budgetId"`
		UserID      string          `json:"userId"`
		Status      BudgetStatus    `json:"status"`
		PercentUsed decimal.Decimal `json:"percentUsed"`
		ObservedAt  time.Time       `json:"observedAt"`
	}
)

var colorPattern = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

// NewID returns a random entity identifier.
func NewID() string {
	return uuid.NewString()
}

func (f Flow) Valid() bool {
	switch f {
	case FlowIncome, FlowExpense, FlowTransfer:
		return true
	}
	return false
}

func (p Period) Valid() bool {
	switch p {
	case PeriodMonthly, PeriodQuarterly, PeriodAnnual:
		return true
	}
	return false
}

func (t AccountType) Valid() bool {
	switch t {
	case AccountChecking, AccountSavings, AccountCash, AccountOther:
		return true
	}
	return false
}

func (f Frequency) Valid() bool {
	switch f {
	case Daily, Weekly, Biweekly, Monthly, Bimonthly, Quarterly, Semiannual, Annual:
		return true
	}
	return false
}

// StatusFor classifies a consumption percentage. Bounds are closed below:
// exactly 80 is a warning and exactly 100 is exceeded.
func StatusFor(percentUsed decimal.Decimal) BudgetStatus {
	switch {
	case percentUsed.GreaterThanOrEqual(decimal.NewFromInt(100)):
		return StatusExceeded
	case percentUsed.GreaterThanOrEqual(decimal.NewFromInt(80)):
		return StatusWarning
	default:
		return StatusSafe
	}
}

// Signed returns the amount with the sign implied by the flow: income is
// positive, expense negative, transfers neutral.
func (t Transaction) Signed() decimal.Decimal {
	switch t.Flow {
	case FlowIncome:
		return t.Amount
	case FlowExpense:
		return t.Amount.Neg()
	default:
		return decimal.Zero
	}
}

func (t Transaction) Validate() error {
	if t.Date.IsZero() {
		return invalid("date", "date is required")
	}
	desc := strings.TrimSpace(t.Description)
	if desc == "" {
		return ErrEmptyDescription
	}
	if len(desc) > maxDescriptionLen {
		return invalid("description", "description too long (max 200 characters)")
	}
	if strings.TrimSpace(t.CategoryID) == "" {
		return invalid("categoryId", "category is required")
	}
	if !t.Flow.Valid() {
		return invalid("flow", "flow must be income, expense or transfer")
	}
	if !t.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	return CheckInstrument(t.Flow, t.AccountID, t.CardID)
}

// CheckInstrument enforces where money may move: expenses need an account or
// a card, income and transfers need an account.
func CheckInstrument(flow Flow, accountID, cardID *string) error {
	hasAccount := accountID != nil && *accountID != ""
	hasCard := cardID != nil && *cardID != ""
	switch flow {
	case FlowExpense:
		if !hasAccount && !hasCard {
			return invalid("accountId", "expense requires an account or a card")
		}
	default:
		if !hasAccount {
			return invalid("accountId", "income and transfer require an account")
		}
	}
	return nil
}

func (c Category) Validate() error {
	if err := validateName("name", c.Name); err != nil {
		return err
	}
	if !c.Type.Valid() {
		return invalid("type", "type must be income, expense or transfer")
	}
	if !colorPattern.MatchString(c.Color) {
		return invalid("color", "color must use the #RRGGBB format")
	}
	return nil
}

func (a Account) Validate() error {
	if err := validateName("name", a.Name); err != nil {
		return err
	}
	if !a.Type.Valid() {
		return invalid("type", "type must be checking, savings, cash or other")
	}
	if a.OpeningBalance.IsNegative() {
		return invalid("openingBalance", "opening balance must not be negative")
	}
	if len(a.Currency) != 3 || strings.ToUpper(a.Currency) != a.Currency {
		return invalid("currency", "currency must be a 3-letter ISO code")
	}
	return nil
}

func (c Card) Validate() error {
	if err := validateName("nickname", c.Nickname); err != nil {
		return err
	}
	if strings.TrimSpace(c.Brand) == "" {
		return invalid("brand", "brand is required")
	}
	if !c.CreditLimit.IsPositive() {
		return invalid("creditLimit", "credit limit must be greater than zero")
	}
	if c.BillingDay < 1 || c.BillingDay > 31 {
		return &ValidationError{Field: "billingDay", Message: ErrInvalidDay.Error()}
	}
	if c.DueDay < 1 || c.DueDay > 31 {
		return &ValidationError{Field: "dueDay", Message: ErrInvalidDay.Error()}
	}
	return nil
}

func (b Budget) Validate() error {
	if !b.Period.Valid() {
		return invalid("period", "period must be monthly, quarterly or annual")
	}
	if b.Year < 2000 || b.Year > 2100 {
		return invalid("year", "year must be between 2000 and 2100")
	}
	if b.Period == PeriodMonthly && b.Month == nil {
		return invalid("month", "monthly budgets require a month")
	}
	if b.Month != nil && (*b.Month < 1 || *b.Month > 12) {
		return &ValidationError{Field: "month", Message: ErrInvalidMonth.Error()}
	}
	if !b.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	return nil
}

// Key is the uniqueness tuple (period, year, month, category) within a user.
func (b Budget) Key() string {
	month, category := "-", "-"
	if b.Month != nil {
		month = strconv.Itoa(*b.Month)
	}
	if b.CategoryID != nil {
		category = *b.CategoryID
	}
	return strings.Join([]string{string(b.Period), strconv.Itoa(b.Year), month, category}, "|")
}

func (r RecurringRule) Validate() error {
	if err := validateName("name", r.Name); err != nil {
		return err
	}
	if strings.TrimSpace(r.CategoryID) == "" {
		return invalid("categoryId", "category is required")
	}
	if !r.Flow.Valid() {
		return invalid("flow", "flow must be income, expense or transfer")
	}
	if !r.Frequency.Valid() {
		return invalid("frequency", "unknown frequency")
	}
	if r.Amount != nil && !r.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if r.StartDate.IsZero() {
		return invalid("startDate", "start date is required")
	}
	if r.EndDate != nil && r.EndDate.Before(r.StartDate) {
		return invalid("endDate", "end date must not precede start date")
	}
	return CheckInstrument(r.Flow, r.AccountID, r.CardID)
}

// Active reports whether the rule may still fire at t.
func (r RecurringRule) Active(t time.Time) bool {
	return r.EndDate == nil || !t.After(*r.EndDate)
}

func validateName(field, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return invalid(field, field+" is required")
	}
	if len(name) > maxNameLen {
		return invalid(field, field+" too long (max 100 characters)")
	}
	return nil
}

// StrPtr returns a pointer to s, or nil for the empty string.
func StrPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// IntPtr returns a pointer to i.
func IntPtr(i int) *int {
	return &i
}
