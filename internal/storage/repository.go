package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cassa/internal/core"

	_ "modernc.org/sqlite"
)

const timestampLayout = time.RFC3339Nano

// Wallet entry source kinds.
const (
	SourceIncome  = "income"
	SourceExpense = "expense"
)

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
	now     func() time.Time
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	db, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// Single writer. Transactions must only use the tx-bound Queries.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
		now:     time.Now,
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) inTx(ctx context.Context, fn func(q *Queries) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(r.queries.WithTx(tx)); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return core.ErrNotFound
	}
	return err
}

// Users

func (r *SQLiteRepository) CreateUser(ctx context.Context, u core.User) (core.User, error) {
	row, err := r.queries.CreateUser(ctx, CreateUserParams{
		Name:         u.Name,
		Email:        strings.ToLower(strings.TrimSpace(u.Email)),
		Role:         string(u.Role),
		PasswordHash: u.PasswordHash,
		CreatedAt:    r.now().UTC().Format(timestampLayout),
	})
	if err != nil {
		return core.User{}, fmt.Errorf("create user: %w", err)
	}
	slog.InfoContext(ctx, "User created", "id", row.ID, "role", row.Role)
	return toUser(row), nil
}

// EnsureUser creates u unless a user with the same email exists.
func (r *SQLiteRepository) EnsureUser(ctx context.Context, u core.User) (core.User, bool, error) {
	existing, err := r.GetUserByEmail(ctx, u.Email)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, core.ErrNotFound) {
		return core.User{}, false, err
	}
	created, err := r.CreateUser(ctx, u)
	return created, err == nil, err
}

func (r *SQLiteRepository) GetUser(ctx context.Context, id int64) (core.User, error) {
	row, err := r.queries.GetUser(ctx, id)
	if err != nil {
		return core.User{}, fmt.Errorf("get user %d: %w", id, notFound(err))
	}
	return toUser(row), nil
}

func (r *SQLiteRepository) GetUserByEmail(ctx context.Context, email string) (core.User, error) {
	row, err := r.queries.GetUserByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		return core.User{}, fmt.Errorf("get user by email: %w", notFound(err))
	}
	return toUser(row), nil
}

func (r *SQLiteRepository) ListUsers(ctx context.Context) ([]core.User, error) {
	rows, err := r.queries.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	users := make([]core.User, len(rows))
	for i, row := range rows {
		users[i] = toUser(row)
	}
	return users, nil
}

// Categories and vendors

func (r *SQLiteRepository) CreateCategory(ctx context.Context, c core.Category) (core.Category, error) {
	row, err := r.queries.CreateCategory(ctx, CreateCategoryParams{
		Name: c.Name, Kind: string(c.Kind), Icon: c.Icon, Color: strings.ToUpper(c.Color),
	})
	if err != nil {
		return core.Category{}, fmt.Errorf("create category: %w", err)
	}
	return toCategory(row), nil
}

func (r *SQLiteRepository) UpdateCategory(ctx context.Context, c core.Category) (core.Category, error) {
	row, err := r.queries.UpdateCategory(ctx, UpdateCategoryParams{
		Name: c.Name, Kind: string(c.Kind), Icon: c.Icon, Color: strings.ToUpper(c.Color), ID: c.ID,
	})
	if err != nil {
		return core.Category{}, fmt.Errorf("update category %d: %w", c.ID, notFound(err))
	}
	return toCategory(row), nil
}

// DeleteCategory removes an unused category. Categories still referenced
// by expenses or income fail with core.ErrInvalidState.
func (r *SQLiteRepository) DeleteCategory(ctx context.Context, id int64) error {
	return r.inTx(ctx, func(q *Queries) error {
		used, err := q.CategoryInUse(ctx, id)
		if err != nil {
			return fmt.Errorf("check category usage: %w", err)
		}
		if used {
			return fmt.Errorf("category %d is in use: %w", id, core.ErrInvalidState)
		}
		n, err := q.DeleteCategory(ctx, id)
		if err != nil {
			return fmt.Errorf("delete category %d: %w", id, err)
		}
		if n == 0 {
			return fmt.Errorf("delete category %d: %w", id, core.ErrNotFound)
		}
		return nil
	})
}

func (r *SQLiteRepository) GetCategory(ctx context.Context, id int64) (core.Category, error) {
	row, err := r.queries.GetCategory(ctx, id)
	if err != nil {
		return core.Category{}, fmt.Errorf("get category %d: %w", id, notFound(err))
	}
	return toCategory(row), nil
}

// ListCategories returns categories of kind, or all of them when kind is empty.
func (r *SQLiteRepository) ListCategories(ctx context.Context, kind core.CategoryKind) ([]core.Category, error) {
	rows, err := r.queries.ListCategories(ctx, string(kind))
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	cats := make([]core.Category, len(rows))
	for i, row := range rows {
		cats[i] = toCategory(row)
	}
	return cats, nil
}

func (r *SQLiteRepository) CreateVendor(ctx context.Context, v core.Vendor) (core.Vendor, error) {
	row, err := r.queries.CreateVendor(ctx, strings.TrimSpace(v.Name))
	if err != nil {
		return core.Vendor{}, fmt.Errorf("create vendor: %w", err)
	}
	return core.Vendor{ID: row.ID, Name: row.Name}, nil
}

func (r *SQLiteRepository) ListVendors(ctx context.Context) ([]core.Vendor, error) {
	rows, err := r.queries.ListVendors(ctx)
	if err != nil {
		return nil, fmt.Errorf("list vendors: %w", err)
	}
	vendors := make([]core.Vendor, len(rows))
	for i, row := range rows {
		vendors[i] = core.Vendor{ID: row.ID, Name: row.Name}
	}
	return vendors, nil
}

// Expenses

// ExpenseFilter narrows ListExpenses. Zero fields do not filter; From and To
// are a half-open YYYY-MM-DD span.
type ExpenseFilter struct {
	UserID int64
	Status core.ExpenseStatus
	From   string
	To     string
}

// CreateExpense stores e. An expense created already approved gets its
// wallet debit in the same transaction.
func (r *SQLiteRepository) CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	var created Expense
	err := r.inTx(ctx, func(q *Queries) error {
		var err error
		created, err = q.CreateExpense(ctx, CreateExpenseParams{
			UserID:      e.UserID,
			CategoryID:  e.CategoryID,
			VendorID:    nullID(e.VendorID),
			Date:        e.Date.String(),
			Description: e.Description,
			AmountCents: e.Amount.Cents,
			InvoicePath: e.InvoicePath,
			Status:      string(e.Status),
			ReviewedBy:  nullID(e.ReviewedBy),
			ReviewedAt:  nullTime(e.ReviewedAt),
			CreatedAt:   r.now().UTC().Format(timestampLayout),
		})
		if err != nil {
			return fmt.Errorf("create expense: %w", err)
		}
		if created.Status == string(core.StatusApproved) {
			return debit(ctx, q, created)
		}
		return nil
	})
	if err != nil {
		return core.Expense{}, err
	}

	slog.InfoContext(ctx, "Expense saved to SQLite",
		"id", created.ID,
		"status", created.Status,
		"amount_cents", created.AmountCents,
		"date", created.Date)
	return toExpense(created), nil
}

func (r *SQLiteRepository) GetExpense(ctx context.Context, id int64) (core.Expense, error) {
	row, err := r.queries.GetExpense(ctx, id)
	if err != nil {
		return core.Expense{}, fmt.Errorf("get expense %d: %w", id, notFound(err))
	}
	return toExpense(row), nil
}

// UpdateExpense rewrites the editable fields of e. Approved expenses get
// their wallet debit rewritten alongside.
func (r *SQLiteRepository) UpdateExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	var updated Expense
	err := r.inTx(ctx, func(q *Queries) error {
		var err error
		updated, err = q.UpdateExpense(ctx, UpdateExpenseParams{
			CategoryID:  e.CategoryID,
			VendorID:    nullID(e.VendorID),
			Date:        e.Date.String(),
			Description: e.Description,
			AmountCents: e.Amount.Cents,
			InvoicePath: e.InvoicePath,
			ID:          e.ID,
		})
		if err != nil {
			return fmt.Errorf("update expense %d: %w", e.ID, notFound(err))
		}
		if updated.Status == string(core.StatusApproved) {
			return debit(ctx, q, updated)
		}
		return nil
	})
	if err != nil {
		return core.Expense{}, err
	}
	return toExpense(updated), nil
}

// DeleteExpense removes an expense and its wallet entry, if any.
func (r *SQLiteRepository) DeleteExpense(ctx context.Context, id int64) error {
	return r.inTx(ctx, func(q *Queries) error {
		if err := q.DeleteWalletEntry(ctx, SourceExpense, id); err != nil {
			return fmt.Errorf("delete wallet entry: %w", err)
		}
		n, err := q.DeleteExpense(ctx, id)
		if err != nil {
			return fmt.Errorf("delete expense %d: %w", id, err)
		}
		if n == 0 {
			return fmt.Errorf("delete expense %d: %w", id, core.ErrNotFound)
		}
		return nil
	})
}

// ReviewExpense approves or rejects a pending expense. Approval writes the
// wallet debit in the same transaction. An expense that exists but is no
// longer pending fails with core.ErrInvalidState.
func (r *SQLiteRepository) ReviewExpense(ctx context.Context, id int64, status core.ExpenseStatus, reviewer int64, reason string) (core.Expense, error) {
	var reviewed Expense
	err := r.inTx(ctx, func(q *Queries) error {
		var err error
		reviewed, err = q.ReviewExpense(ctx, ReviewExpenseParams{
			Status:          string(status),
			ReviewedBy:      nullID(reviewer),
			ReviewedAt:      nullTime(r.now()),
			RejectionReason: reason,
			ID:              id,
		})
		if errors.Is(err, sql.ErrNoRows) {
			if _, getErr := q.GetExpense(ctx, id); getErr != nil {
				return fmt.Errorf("review expense %d: %w", id, notFound(getErr))
			}
			return fmt.Errorf("review expense %d: %w", id, core.ErrInvalidState)
		}
		if err != nil {
			return fmt.Errorf("review expense %d: %w", id, err)
		}
		if status == core.StatusApproved {
			return debit(ctx, q, reviewed)
		}
		return nil
	})
	if err != nil {
		return core.Expense{}, err
	}

	slog.InfoContext(ctx, "Expense reviewed", "id", id, "status", status, "reviewer", reviewer)
	return toExpense(reviewed), nil
}

// ListExpenses returns matching expenses, newest first.
func (r *SQLiteRepository) ListExpenses(ctx context.Context, f ExpenseFilter) ([]core.Expense, error) {
	rows, err := r.queries.ListExpenses(ctx, ListExpensesParams{
		UserID: f.UserID, Status: string(f.Status), From: f.From, To: f.To,
	})
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	expenses := make([]core.Expense, len(rows))
	for i, row := range rows {
		expenses[i] = toExpense(row)
	}
	return expenses, nil
}

// CountPending counts pending expenses of userID, or of everyone when 0.
func (r *SQLiteRepository) CountPending(ctx context.Context, userID int64) (int64, error) {
	n, err := r.queries.CountPendingExpenses(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("count pending expenses: %w", err)
	}
	return n, nil
}

// ListUnsyncedApproved returns approved expenses not yet exported to the ledger.
func (r *SQLiteRepository) ListUnsyncedApproved(ctx context.Context, limit int) ([]core.Expense, error) {
	rows, err := r.queries.ListUnsyncedApproved(ctx, int64(limit))
	if err != nil {
		return nil, fmt.Errorf("list unsynced expenses: %w", err)
	}
	expenses := make([]core.Expense, len(rows))
	for i, row := range rows {
		expenses[i] = toExpense(row)
	}
	return expenses, nil
}

// MarkSynced marks an expense as exported to the ledger.
func (r *SQLiteRepository) MarkSynced(ctx context.Context, id int64) error {
	if err := r.queries.MarkExpenseSynced(ctx, r.now().UTC().Format(timestampLayout), id); err != nil {
		return fmt.Errorf("mark expense synced: %w", err)
	}
	slog.DebugContext(ctx, "Expense marked as synced", "id", id)
	return nil
}

// Income

// IncomeFilter narrows ListIncomes, see ExpenseFilter.
type IncomeFilter struct {
	UserID int64
	From   string
	To     string
}

// CreateIncome stores i together with its wallet credit.
func (r *SQLiteRepository) CreateIncome(ctx context.Context, i core.Income) (core.Income, error) {
	var created Income
	err := r.inTx(ctx, func(q *Queries) error {
		var err error
		created, err = q.CreateIncome(ctx, CreateIncomeParams{
			UserID:      i.UserID,
			CategoryID:  i.CategoryID,
			Date:        i.Date.String(),
			Description: i.Description,
			AmountCents: i.Amount.Cents,
			CreatedBy:   i.CreatedBy,
			CreatedAt:   r.now().UTC().Format(timestampLayout),
		})
		if err != nil {
			return fmt.Errorf("create income: %w", err)
		}
		return q.UpsertWalletEntry(ctx, UpsertWalletEntryParams{
			UserID:      created.UserID,
			SourceKind:  SourceIncome,
			SourceID:    created.ID,
			Date:        created.Date,
			Description: created.Description,
			AmountCents: created.AmountCents,
		})
	})
	if err != nil {
		return core.Income{}, err
	}
	return toIncome(created), nil
}

func (r *SQLiteRepository) GetIncome(ctx context.Context, id int64) (core.Income, error) {
	row, err := r.queries.GetIncome(ctx, id)
	if err != nil {
		return core.Income{}, fmt.Errorf("get income %d: %w", id, notFound(err))
	}
	return toIncome(row), nil
}

// DeleteIncome removes an income and its wallet credit.
func (r *SQLiteRepository) DeleteIncome(ctx context.Context, id int64) error {
	return r.inTx(ctx, func(q *Queries) error {
		if err := q.DeleteWalletEntry(ctx, SourceIncome, id); err != nil {
			return fmt.Errorf("delete wallet entry: %w", err)
		}
		n, err := q.DeleteIncome(ctx, id)
		if err != nil {
			return fmt.Errorf("delete income %d: %w", id, err)
		}
		if n == 0 {
			return fmt.Errorf("delete income %d: %w", id, core.ErrNotFound)
		}
		return nil
	})
}

func (r *SQLiteRepository) ListIncomes(ctx context.Context, f IncomeFilter) ([]core.Income, error) {
	rows, err := r.queries.ListIncomes(ctx, ListIncomesParams{UserID: f.UserID, From: f.From, To: f.To})
	if err != nil {
		return nil, fmt.Errorf("list incomes: %w", err)
	}
	incomes := make([]core.Income, len(rows))
	for i, row := range rows {
		incomes[i] = toIncome(row)
	}
	return incomes, nil
}

// ListWalletEntries returns a user's wallet movements oldest first.
func (r *SQLiteRepository) ListWalletEntries(ctx context.Context, userID int64) ([]core.WalletEntry, error) {
	rows, err := r.queries.ListWalletEntries(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list wallet entries: %w", err)
	}
	entries := make([]core.WalletEntry, len(rows))
	for i, row := range rows {
		entries[i] = core.WalletEntry{
			ID:          row.ID,
			UserID:      row.UserID,
			SourceKind:  row.SourceKind,
			SourceID:    row.SourceID,
			Date:        parseStoredDate(row.Date),
			Description: row.Description,
			Amount:      core.Money{Cents: row.AmountCents},
		}
	}
	return entries, nil
}

// Calendar

func (r *SQLiteRepository) CreateEvent(ctx context.Context, ev core.CalendarEvent) (core.CalendarEvent, error) {
	row, err := r.queries.CreateCalendarEvent(ctx, CreateCalendarEventParams{
		UserID: ev.UserID, Title: ev.Title, Notes: ev.Notes, Date: ev.Date.String(), Rrule: ev.RRule, Remind: ev.Remind,
	})
	if err != nil {
		return core.CalendarEvent{}, fmt.Errorf("create calendar event: %w", err)
	}
	return toEvent(row), nil
}

func (r *SQLiteRepository) GetEvent(ctx context.Context, id int64) (core.CalendarEvent, error) {
	row, err := r.queries.GetCalendarEvent(ctx, id)
	if err != nil {
		return core.CalendarEvent{}, fmt.Errorf("get calendar event %d: %w", id, notFound(err))
	}
	return toEvent(row), nil
}

func (r *SQLiteRepository) UpdateEvent(ctx context.Context, ev core.CalendarEvent) (core.CalendarEvent, error) {
	row, err := r.queries.UpdateCalendarEvent(ctx, UpdateCalendarEventParams{
		Title: ev.Title, Notes: ev.Notes, Date: ev.Date.String(), Rrule: ev.RRule, Remind: ev.Remind, ID: ev.ID,
	})
	if err != nil {
		return core.CalendarEvent{}, fmt.Errorf("update calendar event %d: %w", ev.ID, notFound(err))
	}
	return toEvent(row), nil
}

func (r *SQLiteRepository) DeleteEvent(ctx context.Context, id int64) error {
	n, err := r.queries.DeleteCalendarEvent(ctx, id)
	if err != nil {
		return fmt.Errorf("delete calendar event %d: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("delete calendar event %d: %w", id, core.ErrNotFound)
	}
	return nil
}

// ListEvents returns a user's events, or everyone's when userID is 0.
func (r *SQLiteRepository) ListEvents(ctx context.Context, userID int64, remindOnly bool) ([]core.CalendarEvent, error) {
	rows, err := r.queries.ListCalendarEvents(ctx, ListCalendarEventsParams{UserID: userID, RemindOnly: remindOnly})
	if err != nil {
		return nil, fmt.Errorf("list calendar events: %w", err)
	}
	events := make([]core.CalendarEvent, len(rows))
	for i, row := range rows {
		events[i] = toEvent(row)
	}
	return events, nil
}

func (r *SQLiteRepository) MarkReminded(ctx context.Context, id int64, at time.Time) error {
	if err := r.queries.MarkReminded(ctx, nullTime(at), id); err != nil {
		return fmt.Errorf("mark event %d reminded: %w", id, err)
	}
	return nil
}

func debit(ctx context.Context, q *Queries, e Expense) error {
	err := q.UpsertWalletEntry(ctx, UpsertWalletEntryParams{
		UserID:      e.UserID,
		SourceKind:  SourceExpense,
		SourceID:    e.ID,
		Date:        e.Date,
		Description: e.Description,
		AmountCents: -e.AmountCents,
	})
	if err != nil {
		return fmt.Errorf("write wallet debit for expense %d: %w", e.ID, err)
	}
	return nil
}
