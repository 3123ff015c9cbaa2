package google

import (
	"fmt"
	"strings"

	ports "carteira/internal/sheets"
)

const lastColumn = "I"

func headerRow() []any {
	return []any{"ID", "Date", "Description", "Category", "Flow", "Amount", "Source", "Reconciled", "User"}
}

// rowValues lays a transaction out as columns A through I.
func rowValues(r ports.TransactionRow) []any {
	reconciled := "no"
	if r.Reconciled {
		reconciled = "yes"
	}
	return []any{
		r.ID,
		r.Date.UTC().Format("2006-01-02"),
		r.Description,
		r.Category,
		string(r.Flow),
		r.Amount.StringFixed(2),
		r.Source,
		reconciled,
		r.UserID,
	}
}

// findRow returns the 1-based sheet line whose first cell equals id, or 0.
func findRow(values [][]any, id string) int {
	id = strings.TrimSpace(id)
	for i, row := range values {
		if len(row) == 0 {
			continue
		}
		if strings.TrimSpace(fmt.Sprint(row[0])) == id {
			return i + 1
		}
	}
	return 0
}

func rowRange(sheet string, line int) string {
	return fmt.Sprintf("%s!A%d:%s%d", sheet, line, lastColumn, line)
}
