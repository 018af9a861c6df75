package storage

import "database/sql"

type User struct {
	ID           int64
	Name         string
	Email        string
	Role         string
	PasswordHash string
	CreatedAt    string
}

type Category struct {
	ID    int64
	Name  string
	Kind  string
	Icon  string
	Color string
}

type Vendor struct {
	ID   int64
	Name string
}

type Expense struct {
	ID              int64
	UserID          int64
	CategoryID      int64
	VendorID        sql.NullInt64
	Date            string
	Description     string
	AmountCents     int64
	InvoicePath     string
	Status          string
	ReviewedBy      sql.NullInt64
	ReviewedAt      sql.NullString
	RejectionReason string
	SyncedAt        sql.NullString
	CreatedAt       string
}

type Income struct {
	ID          int64
	UserID      int64
	CategoryID  int64
	Date        string
	Description string
	AmountCents int64
	CreatedBy   int64
	CreatedAt   string
}

type WalletEntry struct {
	ID          int64
	UserID      int64
	SourceKind  string
	SourceID    int64
	Date        string
	Description string
	AmountCents int64
}

type CalendarEvent struct {
	ID             int64
	UserID         int64
	Title          string
	Notes          string
	Date           string
	Rrule          string
	Remind         bool
	LastRemindedAt sql.NullString
}
