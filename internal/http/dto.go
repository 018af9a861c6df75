package http

import (
	"time"

	"cassa/internal/auth"
	"cassa/internal/core"
	"cassa/internal/services"
)

// Request DTOs

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type CreateUserRequest struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Role     string `json:"role" validate:"omitempty,oneof=user admin superadmin"`
	Password string `json:"password" validate:"required,min=8"`
}

type ExpenseRequest struct {
	UserID      int64  `json:"user_id" validate:"gte=0"`
	Date        string `json:"date" validate:"required,date"`
	Description string `json:"description" validate:"required,max=200"`
	Amount      string `json:"amount" validate:"required,amount"`
	CategoryID  int64  `json:"category_id" validate:"required,gt=0"`
	VendorID    int64  `json:"vendor_id" validate:"gte=0"`
	InvoicePath string `json:"invoice_path" validate:"max=500"`
}

type RejectRequest struct {
	Reason string `json:"reason" validate:"required,max=200"`
}

type IncomeRequest struct {
	UserID      int64  `json:"user_id" validate:"required,gt=0"`
	Date        string `json:"date" validate:"required,date"`
	Description string `json:"description" validate:"required,max=200"`
	Amount      string `json:"amount" validate:"required,amount"`
	CategoryID  int64  `json:"category_id" validate:"required,gt=0"`
}

type CategoryRequest struct {
	Name  string `json:"name" validate:"required,max=50"`
	Kind  string `json:"kind" validate:"required,oneof=expense income"`
	Icon  string `json:"icon" validate:"max=16"`
	Color string `json:"color" validate:"required,hexcolor"`
}

type VendorRequest struct {
	Name string `json:"name" validate:"required,max=100"`
}

type EventRequest struct {
	UserID int64  `json:"user_id" validate:"gte=0"`
	Title  string `json:"title" validate:"required,max=100"`
	Notes  string `json:"notes" validate:"max=500"`
	Date   string `json:"date" validate:"required,date"`
	RRule  string `json:"rrule" validate:"max=500"`
	Remind bool   `json:"remind"`
}

// Response DTOs

type UserResponse struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      core.Role `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

type LoginResponse struct {
	Token        string            `json:"token"`
	ExpiresAt    time.Time         `json:"expires_at"`
	User         UserResponse      `json:"user"`
	Capabilities []auth.Capability `json:"capabilities"`
}

type MeResponse struct {
	User         UserResponse      `json:"user"`
	Capabilities []auth.Capability `json:"capabilities"`
}

type ExpenseResponse struct {
	ID              int64              `json:"id"`
	UserID          int64              `json:"user_id"`
	CategoryID      int64              `json:"category_id"`
	VendorID        int64              `json:"vendor_id,omitempty"`
	Date            string             `json:"date"`
	Description     string             `json:"description"`
	Amount          string             `json:"amount"`
	InvoicePath     string             `json:"invoice_path,omitempty"`
	InvoiceURL      string             `json:"invoice_url,omitempty"`
	Status          core.ExpenseStatus `json:"status"`
	ReviewedBy      int64              `json:"reviewed_by,omitempty"`
	ReviewedAt      *time.Time         `json:"reviewed_at,omitempty"`
	RejectionReason string             `json:"rejection_reason,omitempty"`
	CreatedAt       time.Time          `json:"created_at"`
}

type PendingCountResponse struct {
	Pending int64 `json:"pending"`
}

type IncomeResponse struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"user_id"`
	CategoryID  int64     `json:"category_id"`
	Date        string    `json:"date"`
	Description string    `json:"description"`
	Amount      string    `json:"amount"`
	CreatedBy   int64     `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
}

type WalletEntryResponse struct {
	ID          int64  `json:"id"`
	SourceKind  string `json:"source_kind"`
	SourceID    int64  `json:"source_id"`
	Date        string `json:"date"`
	Description string `json:"description"`
	Amount      string `json:"amount"`
	Balance     string `json:"balance"`
}

type WalletResponse struct {
	UserID  int64                 `json:"user_id"`
	Entries []WalletEntryResponse `json:"entries"`
	Opening string                `json:"opening"`
	Closing string                `json:"closing"`
	Balance string                `json:"balance"`
}

type CategoryResponse struct {
	ID    int64             `json:"id"`
	Name  string            `json:"name"`
	Kind  core.CategoryKind `json:"kind"`
	Icon  string            `json:"icon"`
	Color string            `json:"color"`
}

type VendorResponse struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type EventResponse struct {
	ID             int64      `json:"id"`
	UserID         int64      `json:"user_id"`
	Title          string     `json:"title"`
	Notes          string     `json:"notes,omitempty"`
	Date           string     `json:"date"`
	RRule          string     `json:"rrule,omitempty"`
	Remind         bool       `json:"remind"`
	LastRemindedAt *time.Time `json:"last_reminded_at,omitempty"`
}

type OccurrenceResponse struct {
	Date  string        `json:"date"`
	Event EventResponse `json:"event"`
}

type CategoryAmountResponse struct {
	CategoryID int64  `json:"category_id"`
	Name       string `json:"name"`
	Icon       string `json:"icon"`
	Color      string `json:"color"`
	Amount     string `json:"amount"`
}

type MonthAmountResponse struct {
	Month    string `json:"month"`
	Income   string `json:"income"`
	Expenses string `json:"expenses"`
}

type SummaryResponse struct {
	Income     string                   `json:"income"`
	Expenses   string                   `json:"expenses"`
	Balance    string                   `json:"balance"`
	Pending    int64                    `json:"pending"`
	ByCategory []CategoryAmountResponse `json:"by_category"`
	Monthly    []MonthAmountResponse    `json:"monthly"`
}

// Converters

func optionalTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func mapSlice[T, R any](items []T, fn func(T) R) []R {
	out := make([]R, 0, len(items))
	for _, it := range items {
		out = append(out, fn(it))
	}
	return out
}

func toUserResponse(u core.User) UserResponse {
	return UserResponse{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role, CreatedAt: u.CreatedAt}
}

func (s *Server) toExpenseResponse(e core.Expense) ExpenseResponse {
	link, _ := core.InvoiceURL(s.invoiceBaseURL, e.InvoicePath)
	return ExpenseResponse{
		ID:              e.ID,
		UserID:          e.UserID,
		CategoryID:      e.CategoryID,
		VendorID:        e.VendorID,
		Date:            e.Date.String(),
		Description:     e.Description,
		Amount:          e.Amount.String(),
		InvoicePath:     e.InvoicePath,
		InvoiceURL:      link,
		Status:          e.Status,
		ReviewedBy:      e.ReviewedBy,
		ReviewedAt:      optionalTime(e.ReviewedAt),
		RejectionReason: e.RejectionReason,
		CreatedAt:       e.CreatedAt,
	}
}

func toIncomeResponse(i core.Income) IncomeResponse {
	return IncomeResponse{
		ID:          i.ID,
		UserID:      i.UserID,
		CategoryID:  i.CategoryID,
		Date:        i.Date.String(),
		Description: i.Description,
		Amount:      i.Amount.String(),
		CreatedBy:   i.CreatedBy,
		CreatedAt:   i.CreatedAt,
	}
}

func toWalletResponse(w services.Wallet) WalletResponse {
	return WalletResponse{
		UserID: w.UserID,
		Entries: mapSlice(w.Entries, func(e core.WalletEntry) WalletEntryResponse {
			return WalletEntryResponse{
				ID:          e.ID,
				SourceKind:  e.SourceKind,
				SourceID:    e.SourceID,
				Date:        e.Date.String(),
				Description: e.Description,
				Amount:      e.Amount.String(),
				Balance:     e.Balance.String(),
			}
		}),
		Opening: w.Opening.String(),
		Closing: w.Closing.String(),
		Balance: w.Balance.String(),
	}
}

func toCategoryResponse(c core.Category) CategoryResponse {
	return CategoryResponse{ID: c.ID, Name: c.Name, Kind: c.Kind, Icon: c.Icon, Color: c.Color}
}

func toVendorResponse(v core.Vendor) VendorResponse {
	return VendorResponse{ID: v.ID, Name: v.Name}
}

func toEventResponse(ev core.CalendarEvent) EventResponse {
	return EventResponse{
		ID:             ev.ID,
		UserID:         ev.UserID,
		Title:          ev.Title,
		Notes:          ev.Notes,
		Date:           ev.Date.String(),
		RRule:          ev.RRule,
		Remind:         ev.Remind,
		LastRemindedAt: optionalTime(ev.LastRemindedAt),
	}
}

func toOccurrenceResponse(o services.Occurrence) OccurrenceResponse {
	return OccurrenceResponse{Date: o.Date.String(), Event: toEventResponse(o.Event)}
}

func toSummaryResponse(s core.Summary) SummaryResponse {
	return SummaryResponse{
		Income:   s.Income.String(),
		Expenses: s.Expenses.String(),
		Balance:  s.Balance.String(),
		Pending:  s.Pending,
		ByCategory: mapSlice(s.ByCategory, func(c core.CategoryAmount) CategoryAmountResponse {
			return CategoryAmountResponse{CategoryID: c.CategoryID, Name: c.Name, Icon: c.Icon, Color: c.Color, Amount: c.Amount.String()}
		}),
		Monthly: mapSlice(s.Monthly, func(m core.MonthAmount) MonthAmountResponse {
			return MonthAmountResponse{Month: m.Month, Income: m.Income.String(), Expenses: m.Expenses.String()}
		}),
	}
}

// Request -> domain

func (req ExpenseRequest) toExpense(id int64) core.Expense {
	date, _ := core.ParseDate(req.Date)
	cents, _ := core.ParseDecimalToCents(req.Amount)
	return core.Expense{
		ID:          id,
		UserID:      req.UserID,
		CategoryID:  req.CategoryID,
		VendorID:    req.VendorID,
		Date:        date,
		Description: sanitizeInput(req.Description),
		Amount:      core.Money{Cents: cents},
		InvoicePath: sanitizeInput(req.InvoicePath),
	}
}

func (req IncomeRequest) toIncome() core.Income {
	date, _ := core.ParseDate(req.Date)
	cents, _ := core.ParseDecimalToCents(req.Amount)
	return core.Income{
		UserID:      req.UserID,
		CategoryID:  req.CategoryID,
		Date:        date,
		Description: sanitizeInput(req.Description),
		Amount:      core.Money{Cents: cents},
	}
}

func (req CategoryRequest) toCategory(id int64) core.Category {
	return core.Category{
		ID:    id,
		Name:  sanitizeInput(req.Name),
		Kind:  core.CategoryKind(req.Kind),
		Icon:  sanitizeInput(req.Icon),
		Color: req.Color,
	}
}

func (req EventRequest) toEvent(id int64) core.CalendarEvent {
	date, _ := core.ParseDate(req.Date)
	return core.CalendarEvent{
		ID:     id,
		UserID: req.UserID,
		Title:  sanitizeInput(req.Title),
		Notes:  sanitizeInput(req.Notes),
		Date:   date,
		RRule:  req.RRule,
		Remind: req.Remind,
	}
}
