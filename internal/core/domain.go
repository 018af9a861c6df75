package core

import (
	"errors"
	"regexp"
	"strings"
	"time"
)

const (
	RoleUser       Role = "user"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "superadmin"
)

const (
	StatusPending  ExpenseStatus = "pending"
	StatusApproved ExpenseStatus = "approved"
	StatusRejected ExpenseStatus = "rejected"
)

const (
	KindExpense CategoryKind = "expense"
	KindIncome  CategoryKind = "income"
)

// DateLayout is the storage and wire layout of a Date.
const DateLayout = "2006-01-02"

type (
	Role          string
	ExpenseStatus string
	CategoryKind  string

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	User struct {
		ID           int64
		Name         string
		Email        string
		Role         Role
		PasswordHash string
		CreatedAt    time.Time
	}

	Category struct {
		ID    int64
		Name  string
		Kind  CategoryKind
		Icon  string
		Color string // #RRGGBB
	}

	Vendor struct {
		ID   int64
		Name string
	}

	Expense struct {
		ID              int64
		UserID          int64
		CategoryID      int64
		VendorID        int64 // 0 when absent
		Date            Date
		Description     string
		Amount          Money
		InvoicePath     string
		Status          ExpenseStatus
		ReviewedBy      int64
		ReviewedAt      time.Time
		RejectionReason string
		SyncedAt        time.Time
		CreatedAt       time.Time
	}

	Income struct {
		ID          int64
		UserID      int64
		CategoryID  int64
		Date        Date
		Description string
		Amount      Money
		CreatedBy   int64
		CreatedAt   time.Time
	}

	// WalletEntry is one signed movement on a user's wallet. Credits come
	// from income, debits from approved expenses.
	WalletEntry struct {
		ID          int64
		UserID      int64
		SourceKind  string
		SourceID    int64
		Date        Date
		Description string
		Amount      Money
		Balance     Money // running balance, filled by the wallet service
	}

	CalendarEvent struct {
		ID             int64
		UserID         int64
		Title          string
		Notes          string
		Date           Date
		RRule          string
		Remind         bool
		LastRemindedAt time.Time
	}
)

var (
	ErrInvalidDate      = errors.New("invalid date")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrEmptyDescription = errors.New("empty description")
	ErrEmptyName        = errors.New("empty name")
	ErrInvalidColor     = errors.New("invalid color, expected #RRGGBB")
	ErrInvalidKind      = errors.New("invalid category kind")
	ErrInvalidRole      = errors.New("invalid role")
	ErrInvalidEmail     = errors.New("invalid email")
	ErrMissingCategory  = errors.New("missing category")
	ErrMissingUser      = errors.New("missing user")
	ErrMissingReason    = errors.New("rejection reason required")

	ErrNotFound     = errors.New("not found")
	ErrForbidden    = errors.New("forbidden")
	ErrInvalidState = errors.New("invalid state transition")
	ErrUnauthorized = errors.New("invalid credentials")
)

// FieldError ties a validation failure to the input field that caused it.
type FieldError struct {
	Field string
	Err   error
}

func (e *FieldError) Error() string { return e.Field + ": " + e.Err.Error() }

func (e *FieldError) Unwrap() error { return e.Err }

func field(name string, err error) error {
	if err == nil {
		return nil
	}
	return &FieldError{Field: name, Err: err}
}

var colorPattern = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

const maxDescription = 200

func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAdmin, RoleSuperAdmin:
		return true
	}
	return false
}

// IsAdmin reports whether the role can review approvals and book income.
func (r Role) IsAdmin() bool {
	return r == RoleAdmin || r == RoleSuperAdmin
}

func (s ExpenseStatus) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

func (k CategoryKind) Valid() bool {
	return k == KindExpense || k == KindIncome
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

// String returns the date as YYYY-MM-DD, or "" for the zero date.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func validDescription(s string) error {
	if strings.TrimSpace(s) == "" {
		return ErrEmptyDescription
	}
	if len(s) > maxDescription {
		return errors.New("description too long (max 200 characters)")
	}
	return nil
}

func (e Expense) Validate() error {
	if err := e.Date.Validate(); err != nil {
		return field("date", err)
	}
	if err := validDescription(e.Description); err != nil {
		return field("description", err)
	}
	if err := e.Amount.Validate(); err != nil {
		return field("amount", err)
	}
	if e.CategoryID <= 0 {
		return field("category_id", ErrMissingCategory)
	}
	if e.UserID <= 0 {
		return field("user_id", ErrMissingUser)
	}
	return nil
}

// RecordDate exposes the expense date to the filter applier.
func (e Expense) RecordDate() string { return e.Date.String() }

func (i Income) Validate() error {
	if err := i.Date.Validate(); err != nil {
		return field("date", err)
	}
	if err := validDescription(i.Description); err != nil {
		return field("description", err)
	}
	if err := i.Amount.Validate(); err != nil {
		return field("amount", err)
	}
	if i.CategoryID <= 0 {
		return field("category_id", ErrMissingCategory)
	}
	if i.UserID <= 0 {
		return field("user_id", ErrMissingUser)
	}
	return nil
}

func (i Income) RecordDate() string { return i.Date.String() }

func (w WalletEntry) RecordDate() string { return w.Date.String() }

func (c Category) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return field("name", ErrEmptyName)
	}
	if !c.Kind.Valid() {
		return field("kind", ErrInvalidKind)
	}
	if !colorPattern.MatchString(c.Color) {
		return field("color", ErrInvalidColor)
	}
	return nil
}

func (v Vendor) Validate() error {
	if strings.TrimSpace(v.Name) == "" {
		return field("name", ErrEmptyName)
	}
	return nil
}

func (u User) Validate() error {
	if strings.TrimSpace(u.Name) == "" {
		return field("name", ErrEmptyName)
	}
	if !strings.Contains(u.Email, "@") {
		return field("email", ErrInvalidEmail)
	}
	if !u.Role.Valid() {
		return field("role", ErrInvalidRole)
	}
	return nil
}

func (c CalendarEvent) Validate() error {
	if err := c.Date.Validate(); err != nil {
		return field("date", err)
	}
	if strings.TrimSpace(c.Title) == "" {
		return field("title", ErrEmptyName)
	}
	if c.UserID <= 0 {
		return field("user_id", ErrMissingUser)
	}
	return nil
}

func (c CalendarEvent) RecordDate() string { return c.Date.String() }
