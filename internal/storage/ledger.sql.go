package storage

import (
	"context"
	"database/sql"
)

const incomeColumns = `id, user_id, category_id, date, description, amount_cents, created_by, created_at`

func scanIncome(scan func(...any) error) (Income, error) {
	var i Income
	err := scan(&i.ID, &i.UserID, &i.CategoryID, &i.Date, &i.Description, &i.AmountCents, &i.CreatedBy, &i.CreatedAt)
	return i, err
}

const createIncome = `-- name: CreateIncome :one
INSERT INTO incomes (user_id, category_id, date, description, amount_cents, created_by, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
RETURNING ` + incomeColumns

type CreateIncomeParams struct {
	UserID      int64
	CategoryID  int64
	Date        string
	Description string
	AmountCents int64
	CreatedBy   int64
	CreatedAt   string
}

func (q *Queries) CreateIncome(ctx context.Context, arg CreateIncomeParams) (Income, error) {
	row := q.db.QueryRowContext(ctx, createIncome,
		arg.UserID,
		arg.CategoryID,
		arg.Date,
		arg.Description,
		arg.AmountCents,
		arg.CreatedBy,
		arg.CreatedAt,
	)
	return scanIncome(row.Scan)
}

const getIncome = `-- name: GetIncome :one
SELECT ` + incomeColumns + ` FROM incomes WHERE id = ?`

func (q *Queries) GetIncome(ctx context.Context, id int64) (Income, error) {
	return scanIncome(q.db.QueryRowContext(ctx, getIncome, id).Scan)
}

const deleteIncome = `-- name: DeleteIncome :execrows
DELETE FROM incomes WHERE id = ?`

func (q *Queries) DeleteIncome(ctx context.Context, id int64) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteIncome, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const listIncomes = `-- name: ListIncomes :many
SELECT ` + incomeColumns + ` FROM incomes
WHERE (?1 = 0 OR user_id = ?1)
  AND (?2 = '' OR date >= ?2)
  AND (?3 = '' OR date < ?3)
ORDER BY date DESC, id DESC`

type ListIncomesParams struct {
	UserID int64
	From   string
	To     string
}

func (q *Queries) ListIncomes(ctx context.Context, arg ListIncomesParams) ([]Income, error) {
	rows, err := q.db.QueryContext(ctx, listIncomes, arg.UserID, arg.From, arg.To)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Income
	for rows.Next() {
		i, err := scanIncome(rows.Scan)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const upsertWalletEntry = `-- name: UpsertWalletEntry :exec
INSERT INTO wallet_entries (user_id, source_kind, source_id, date, description, amount_cents)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT (source_kind, source_id) DO UPDATE
SET user_id = excluded.user_id, date = excluded.date,
    description = excluded.description, amount_cents = excluded.amount_cents`

type UpsertWalletEntryParams struct {
	UserID      int64
	SourceKind  string
	SourceID    int64
	Date        string
	Description string
	AmountCents int64
}

func (q *Queries) UpsertWalletEntry(ctx context.Context, arg UpsertWalletEntryParams) error {
	_, err := q.db.ExecContext(ctx, upsertWalletEntry,
		arg.UserID,
		arg.SourceKind,
		arg.SourceID,
		arg.Date,
		arg.Description,
		arg.AmountCents,
	)
	return err
}

const deleteWalletEntry = `-- name: DeleteWalletEntry :exec
DELETE FROM wallet_entries WHERE source_kind = ? AND source_id = ?`

func (q *Queries) DeleteWalletEntry(ctx context.Context, sourceKind string, sourceID int64) error {
	_, err := q.db.ExecContext(ctx, deleteWalletEntry, sourceKind, sourceID)
	return err
}

const listWalletEntries = `-- name: ListWalletEntries :many
SELECT id, user_id, source_kind, source_id, date, description, amount_cents FROM wallet_entries
WHERE user_id = ?
ORDER BY date, id`

func (q *Queries) ListWalletEntries(ctx context.Context, userID int64) ([]WalletEntry, error) {
	rows, err := q.db.QueryContext(ctx, listWalletEntries, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []WalletEntry
	for rows.Next() {
		var i WalletEntry
		if err := rows.Scan(&i.ID, &i.UserID, &i.SourceKind, &i.SourceID, &i.Date, &i.Description, &i.AmountCents); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const calendarColumns = `id, user_id, title, notes, date, rrule, remind, last_reminded_at`

func scanCalendarEvent(scan func(...any) error) (CalendarEvent, error) {
	var i CalendarEvent
	err := scan(&i.ID, &i.UserID, &i.Title, &i.Notes, &i.Date, &i.Rrule, &i.Remind, &i.LastRemindedAt)
	return i, err
}

const createCalendarEvent = `-- name: CreateCalendarEvent :one
INSERT INTO calendar_events (user_id, title, notes, date, rrule, remind)
VALUES (?, ?, ?, ?, ?, ?)
RETURNING ` + calendarColumns

type CreateCalendarEventParams struct {
	UserID int64
	Title  string
	Notes  string
	Date   string
	Rrule  string
	Remind bool
}

func (q *Queries) CreateCalendarEvent(ctx context.Context, arg CreateCalendarEventParams) (CalendarEvent, error) {
	row := q.db.QueryRowContext(ctx, createCalendarEvent, arg.UserID, arg.Title, arg.Notes, arg.Date, arg.Rrule, arg.Remind)
	return scanCalendarEvent(row.Scan)
}

const getCalendarEvent = `-- name: GetCalendarEvent :one
SELECT ` + calendarColumns + ` FROM calendar_events WHERE id = ?`

func (q *Queries) GetCalendarEvent(ctx context.Context, id int64) (CalendarEvent, error) {
	return scanCalendarEvent(q.db.QueryRowContext(ctx, getCalendarEvent, id).Scan)
}

const updateCalendarEvent = `-- name: UpdateCalendarEvent :one
UPDATE calendar_events SET title = ?, notes = ?, date = ?, rrule = ?, remind = ?
WHERE id = ?
RETURNING ` + calendarColumns

type UpdateCalendarEventParams struct {
	Title  string
	Notes  string
	Date   string
	Rrule  string
	Remind bool
	ID     int64
}

func (q *Queries) UpdateCalendarEvent(ctx context.Context, arg UpdateCalendarEventParams) (CalendarEvent, error) {
	row := q.db.QueryRowContext(ctx, updateCalendarEvent, arg.Title, arg.Notes, arg.Date, arg.Rrule, arg.Remind, arg.ID)
	return scanCalendarEvent(row.Scan)
}

const deleteCalendarEvent = `-- name: DeleteCalendarEvent :execrows
DELETE FROM calendar_events WHERE id = ?`

func (q *Queries) DeleteCalendarEvent(ctx context.Context, id int64) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteCalendarEvent, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const listCalendarEvents = `-- name: ListCalendarEvents :many
SELECT ` + calendarColumns + ` FROM calendar_events
WHERE (?1 = 0 OR user_id = ?1) AND (?2 = 0 OR remind = 1)
ORDER BY date, id`

type ListCalendarEventsParams struct {
	UserID     int64
	RemindOnly bool
}

func (q *Queries) ListCalendarEvents(ctx context.Context, arg ListCalendarEventsParams) ([]CalendarEvent, error) {
	rows, err := q.db.QueryContext(ctx, listCalendarEvents, arg.UserID, arg.RemindOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []CalendarEvent
	for rows.Next() {
		i, err := scanCalendarEvent(rows.Scan)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const markReminded = `-- name: MarkReminded :exec
UPDATE calendar_events SET last_reminded_at = ? WHERE id = ?`

func (q *Queries) MarkReminded(ctx context.Context, at sql.NullString, id int64) error {
	_, err := q.db.ExecContext(ctx, markReminded, at, id)
	return err
}
