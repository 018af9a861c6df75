package storage

import (
	"context"
	"database/sql"
)

const expenseColumns = `id, user_id, category_id, vendor_id, date, description, amount_cents, invoice_path,
    status, reviewed_by, reviewed_at, rejection_reason, synced_at, created_at`

func scanExpense(scan func(...any) error) (Expense, error) {
	var i Expense
	err := scan(
		&i.ID,
		&i.UserID,
		&i.CategoryID,
		&i.VendorID,
		&i.Date,
		&i.Description,
		&i.AmountCents,
		&i.InvoicePath,
		&i.Status,
		&i.ReviewedBy,
		&i.ReviewedAt,
		&i.RejectionReason,
		&i.SyncedAt,
		&i.CreatedAt,
	)
	return i, err
}

func collectExpenses(rows *sql.Rows) ([]Expense, error) {
	defer rows.Close()
	var items []Expense
	for rows.Next() {
		i, err := scanExpense(rows.Scan)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const createExpense = `-- name: CreateExpense :one
INSERT INTO expenses (user_id, category_id, vendor_id, date, description, amount_cents, invoice_path,
    status, reviewed_by, reviewed_at, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
RETURNING ` + expenseColumns

type CreateExpenseParams struct {
	UserID      int64
	CategoryID  int64
	VendorID    sql.NullInt64
	Date        string
	Description string
	AmountCents int64
	InvoicePath string
	Status      string
	ReviewedBy  sql.NullInt64
	ReviewedAt  sql.NullString
	CreatedAt   string
}

func (q *Queries) CreateExpense(ctx context.Context, arg CreateExpenseParams) (Expense, error) {
	row := q.db.QueryRowContext(ctx, createExpense,
		arg.UserID,
		arg.CategoryID,
		arg.VendorID,
		arg.Date,
		arg.Description,
		arg.AmountCents,
		arg.InvoicePath,
		arg.Status,
		arg.ReviewedBy,
		arg.ReviewedAt,
		arg.CreatedAt,
	)
	return scanExpense(row.Scan)
}

const getExpense = `-- name: GetExpense :one
SELECT ` + expenseColumns + ` FROM expenses WHERE id = ?`

func (q *Queries) GetExpense(ctx context.Context, id int64) (Expense, error) {
	return scanExpense(q.db.QueryRowContext(ctx, getExpense, id).Scan)
}

const updateExpense = `-- name: UpdateExpense :one
UPDATE expenses
SET category_id = ?, vendor_id = ?, date = ?, description = ?, amount_cents = ?, invoice_path = ?,
    synced_at = NULL
WHERE id = ?
RETURNING ` + expenseColumns

type UpdateExpenseParams struct {
	CategoryID  int64
	VendorID    sql.NullInt64
	Date        string
	Description string
	AmountCents int64
	InvoicePath string
	ID          int64
}

func (q *Queries) UpdateExpense(ctx context.Context, arg UpdateExpenseParams) (Expense, error) {
	row := q.db.QueryRowContext(ctx, updateExpense,
		arg.CategoryID,
		arg.VendorID,
		arg.Date,
		arg.Description,
		arg.AmountCents,
		arg.InvoicePath,
		arg.ID,
	)
	return scanExpense(row.Scan)
}

const deleteExpense = `-- name: DeleteExpense :execrows
DELETE FROM expenses WHERE id = ?`

func (q *Queries) DeleteExpense(ctx context.Context, id int64) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteExpense, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const reviewExpense = `-- name: ReviewExpense :one
UPDATE expenses
SET status = ?, reviewed_by = ?, reviewed_at = ?, rejection_reason = ?
WHERE id = ? AND status = 'pending'
RETURNING ` + expenseColumns

type ReviewExpenseParams struct {
	Status          string
	ReviewedBy      sql.NullInt64
	ReviewedAt      sql.NullString
	RejectionReason string
	ID              int64
}

// ReviewExpense moves a pending expense to a final status. It returns
// sql.ErrNoRows when the expense is missing or no longer pending.
func (q *Queries) ReviewExpense(ctx context.Context, arg ReviewExpenseParams) (Expense, error) {
	row := q.db.QueryRowContext(ctx, reviewExpense,
		arg.Status,
		arg.ReviewedBy,
		arg.ReviewedAt,
		arg.RejectionReason,
		arg.ID,
	)
	return scanExpense(row.Scan)
}

const listExpenses = `-- name: ListExpenses :many
SELECT ` + expenseColumns + ` FROM expenses
WHERE (?1 = 0 OR user_id = ?1)
  AND (?2 = '' OR status = ?2)
  AND (?3 = '' OR date >= ?3)
  AND (?4 = '' OR date < ?4)
ORDER BY date DESC, id DESC`

type ListExpensesParams struct {
	UserID int64
	Status string
	From   string
	To     string
}

func (q *Queries) ListExpenses(ctx context.Context, arg ListExpensesParams) ([]Expense, error) {
	rows, err := q.db.QueryContext(ctx, listExpenses, arg.UserID, arg.Status, arg.From, arg.To)
	if err != nil {
		return nil, err
	}
	return collectExpenses(rows)
}

const countPendingExpenses = `-- name: CountPendingExpenses :one
SELECT COUNT(*) FROM expenses WHERE status = 'pending' AND (?1 = 0 OR user_id = ?1)`

func (q *Queries) CountPendingExpenses(ctx context.Context, userID int64) (int64, error) {
	var count int64
	err := q.db.QueryRowContext(ctx, countPendingExpenses, userID).Scan(&count)
	return count, err
}

const listUnsyncedApproved = `-- name: ListUnsyncedApproved :many
SELECT ` + expenseColumns + ` FROM expenses
WHERE status = 'approved' AND synced_at IS NULL
ORDER BY id
LIMIT ?`

func (q *Queries) ListUnsyncedApproved(ctx context.Context, limit int64) ([]Expense, error) {
	rows, err := q.db.QueryContext(ctx, listUnsyncedApproved, limit)
	if err != nil {
		return nil, err
	}
	return collectExpenses(rows)
}

const markExpenseSynced = `-- name: MarkExpenseSynced :exec
UPDATE expenses SET synced_at = ? WHERE id = ?`

func (q *Queries) MarkExpenseSynced(ctx context.Context, syncedAt string, id int64) error {
	_, err := q.db.ExecContext(ctx, markExpenseSynced, syncedAt, id)
	return err
}
