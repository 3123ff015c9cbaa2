// Package sheets defines the spreadsheet mirror port used by the alert
// worker to copy ledger transactions into a user-facing sheet.
package sheets

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"carteira/internal/core"
)

// TransactionRow is a flattened transaction as it appears in the sheet.
type TransactionRow struct {
	ID          string
	UserID      string
	Date        time.Time
	Description string
	Category    string
	Flow        core.Flow
	Amount      decimal.Decimal
	Source      string
	Reconciled  bool
}

// NewTransactionRow flattens tx, resolving display names for the category
// and the account or card it was paid with.
func NewTransactionRow(tx core.Transaction, category, source string) TransactionRow {
	return TransactionRow{
		ID:          tx.ID,
		UserID:      tx.UserID,
		Date:        tx.Date,
		Description: tx.Description,
		Category:    category,
		Flow:        tx.Flow,
		Amount:      tx.Amount,
		Source:      source,
		Reconciled:  tx.Reconciled,
	}
}

// Ports for outbound adapters.
type (
	// TransactionMirror keeps one sheet row per transaction id.
	TransactionMirror interface {
		// Upsert writes row, replacing an existing row with the same id.
		Upsert(ctx context.Context, row TransactionRow) (rowRef string, err error)
		// Remove clears the row for id. Unknown ids are not an error.
		Remove(ctx context.Context, id string) error
	}
)
