// Package sheets defines the outbound ledger port. Approved expenses are
// appended to an external ledger exactly once per approval or edit.
package sheets

import (
	"context"
	"time"

	"cassa/internal/core"
)

// LedgerRow is one exported expense, already resolved to display names.
type LedgerRow struct {
	ExpenseID   int64
	Date        core.Date
	User        string
	Category    string
	Vendor      string
	Description string
	Amount      core.Money
	Invoice     string
	ApprovedAt  time.Time
}

// LedgerWriter appends rows to the external ledger.
type LedgerWriter interface {
	Append(ctx context.Context, rows []LedgerRow) (ref string, err error)
}

// Header is the column order used by every ledger writer.
var Header = []string{"ID", "Date", "User", "Category", "Vendor", "Description", "Amount", "Invoice", "Approved at"}

// Values renders r in Header order.
func (r LedgerRow) Values() []any {
	approved := ""
	if !r.ApprovedAt.IsZero() {
		approved = r.ApprovedAt.UTC().Format(time.RFC3339)
	}
	return []any{
		r.ExpenseID,
		r.Date.String(),
		r.User,
		r.Category,
		r.Vendor,
		r.Description,
		r.Amount.String(),
		r.Invoice,
		approved,
	}
}
