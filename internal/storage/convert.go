package storage

import (
	"database/sql"
	"time"

	"cassa/internal/core"
)

func nullID(id int64) sql.NullInt64 {
	return sql.NullInt64{Int64: id, Valid: id > 0}
}

func nullTime(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(timestampLayout), Valid: true}
}

func parseTimestamp(s string) time.Time {
	t, err := time.Parse(timestampLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func parseNullTimestamp(s sql.NullString) time.Time {
	if !s.Valid {
		return time.Time{}
	}
	return parseTimestamp(s.String)
}

// parseStoredDate keeps the zero Date for rows whose text does not parse,
// so the filter applier drops them instead of the query failing.
func parseStoredDate(s string) core.Date {
	d, _ := core.ParseDate(s)
	return d
}

func toUser(row User) core.User {
	return core.User{
		ID:           row.ID,
		Name:         row.Name,
		Email:        row.Email,
		Role:         core.Role(row.Role),
		PasswordHash: row.PasswordHash,
		CreatedAt:    parseTimestamp(row.CreatedAt),
	}
}

func toCategory(row Category) core.Category {
	return core.Category{
		ID:    row.ID,
		Name:  row.Name,
		Kind:  core.CategoryKind(row.Kind),
		Icon:  row.Icon,
		Color: row.Color,
	}
}

func toExpense(row Expense) core.Expense {
	return core.Expense{
		ID:              row.ID,
		UserID:          row.UserID,
		CategoryID:      row.CategoryID,
		VendorID:        row.VendorID.Int64,
		Date:            parseStoredDate(row.Date),
		Description:     row.Description,
		Amount:          core.Money{Cents: row.AmountCents},
		InvoicePath:     row.InvoicePath,
		Status:          core.ExpenseStatus(row.Status),
		ReviewedBy:      row.ReviewedBy.Int64,
		ReviewedAt:      parseNullTimestamp(row.ReviewedAt),
		RejectionReason: row.RejectionReason,
		SyncedAt:        parseNullTimestamp(row.SyncedAt),
		CreatedAt:       parseTimestamp(row.CreatedAt),
	}
}

func toIncome(row Income) core.Income {
	return core.Income{
		ID:          row.ID,
		UserID:      row.UserID,
		CategoryID:  row.CategoryID,
		Date:        parseStoredDate(row.Date),
		Description: row.Description,
		Amount:      core.Money{Cents: row.AmountCents},
		CreatedBy:   row.CreatedBy,
		CreatedAt:   parseTimestamp(row.CreatedAt),
	}
}

func toEvent(row CalendarEvent) core.CalendarEvent {
	return core.CalendarEvent{
		ID:             row.ID,
		UserID:         row.UserID,
		Title:          row.Title,
		Notes:          row.Notes,
		Date:           parseStoredDate(row.Date),
		RRule:          row.Rrule,
		Remind:         row.Remind,
		LastRemindedAt: parseNullTimestamp(row.LastRemindedAt),
	}
}
