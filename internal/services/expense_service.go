package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"cassa/internal/auth"
	"cassa/internal/bus"
	"cassa/internal/core"
	"cassa/internal/filter"
	"cassa/internal/storage"
)

// Record kinds carried on bus events.
const (
	KindExpense  = "expense"
	KindIncome   = "income"
	KindCategory = "category"
	KindVendor   = "vendor"
	KindEvent    = "event"
	KindUser     = "user"
)

// ExpenseService runs the expense and approval workflow on top of SQLite
// and announces every change on the bus.
type ExpenseService struct {
	storage *storage.SQLiteRepository
	bus     *bus.Bus
}

func NewExpenseService(storage *storage.SQLiteRepository, b *bus.Bus) *ExpenseService {
	return &ExpenseService{storage: storage, bus: b}
}

// CreateExpense stores e for the actor. Expenses entered by a user wait for
// approval; those entered by an admin are approved on the spot. Admins may
// enter expenses on behalf of another user by setting UserID.
func (s *ExpenseService) CreateExpense(ctx context.Context, actor auth.Identity, e core.Expense) (core.Expense, error) {
	if !actor.Role.IsAdmin() || e.UserID == 0 {
		e.UserID = actor.ID
	}
	e.Description = strings.TrimSpace(e.Description)
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}

	e.Status = core.StatusPending
	e.ReviewedBy, e.RejectionReason = 0, ""
	if actor.Role.IsAdmin() {
		e.Status = core.StatusApproved
		e.ReviewedBy = actor.ID
	}

	created, err := s.storage.CreateExpense(ctx, e)
	if err != nil {
		return core.Expense{}, fmt.Errorf("save expense: %w", err)
	}

	s.bus.Notify(ctx, bus.DataMutated, KindExpense, created.ID)
	return created, nil
}

// UpdateExpense rewrites the editable fields. Owners may edit their own
// expense while it is pending; admins may edit any expense at any time.
func (s *ExpenseService) UpdateExpense(ctx context.Context, actor auth.Identity, e core.Expense) (core.Expense, error) {
	current, err := s.editable(ctx, actor, e.ID)
	if err != nil {
		return core.Expense{}, err
	}

	e.UserID = current.UserID
	e.Description = strings.TrimSpace(e.Description)
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}

	updated, err := s.storage.UpdateExpense(ctx, e)
	if err != nil {
		return core.Expense{}, fmt.Errorf("update expense: %w", err)
	}

	s.bus.Notify(ctx, bus.DataMutated, KindExpense, updated.ID)
	return updated, nil
}

// DeleteExpense removes an expense and its wallet entry under the same
// rules as UpdateExpense.
func (s *ExpenseService) DeleteExpense(ctx context.Context, actor auth.Identity, id int64) error {
	if _, err := s.editable(ctx, actor, id); err != nil {
		return err
	}
	if err := s.storage.DeleteExpense(ctx, id); err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}

	s.bus.Notify(ctx, bus.DataMutated, KindExpense, id)
	return nil
}

func (s *ExpenseService) editable(ctx context.Context, actor auth.Identity, id int64) (core.Expense, error) {
	current, err := s.storage.GetExpense(ctx, id)
	if err != nil {
		return core.Expense{}, err
	}
	if actor.Role.IsAdmin() {
		return current, nil
	}
	if current.UserID != actor.ID {
		return core.Expense{}, core.ErrForbidden
	}
	if current.Status != core.StatusPending {
		return core.Expense{}, fmt.Errorf("expense %d is %s: %w", id, current.Status, core.ErrInvalidState)
	}
	return current, nil
}

// ApproveExpense approves a pending expense and books its wallet debit.
func (s *ExpenseService) ApproveExpense(ctx context.Context, actor auth.Identity, id int64) (core.Expense, error) {
	if !actor.Role.IsAdmin() {
		return core.Expense{}, core.ErrForbidden
	}
	approved, err := s.storage.ReviewExpense(ctx, id, core.StatusApproved, actor.ID, "")
	if err != nil {
		return core.Expense{}, err
	}

	s.bus.Notify(ctx, bus.DataMutated, KindExpense, id)
	return approved, nil
}

// RejectExpense rejects a pending expense. A reason is required.
func (s *ExpenseService) RejectExpense(ctx context.Context, actor auth.Identity, id int64, reason string) (core.Expense, error) {
	if !actor.Role.IsAdmin() {
		return core.Expense{}, core.ErrForbidden
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return core.Expense{}, &core.FieldError{Field: "reason", Err: core.ErrMissingReason}
	}
	rejected, err := s.storage.ReviewExpense(ctx, id, core.StatusRejected, actor.ID, reason)
	if err != nil {
		return core.Expense{}, err
	}

	s.bus.Notify(ctx, bus.DataMutated, KindExpense, id)
	return rejected, nil
}

// CountPending counts expenses awaiting review: all of them for admins,
// the actor's own for users.
func (s *ExpenseService) CountPending(ctx context.Context, actor auth.Identity) (int64, error) {
	return s.storage.CountPending(ctx, scopeOf(actor))
}

// ListExpenses returns one page of the actor's visible expenses. Admins see
// everyone's; status narrows the list when set.
func (s *ExpenseService) ListExpenses(ctx context.Context, actor auth.Identity, q ListQuery, status core.ExpenseStatus) (Page[core.Expense], error) {
	q, err := q.Normalize()
	if err != nil {
		return Page[core.Expense]{}, err
	}
	items, err := s.filtered(ctx, storage.ExpenseFilter{UserID: scopeOf(actor), Status: status}, q)
	if err != nil {
		return Page[core.Expense]{}, err
	}
	return Paginate(items, q), nil
}

// ListPending returns one page of the approval queue, admins only.
func (s *ExpenseService) ListPending(ctx context.Context, actor auth.Identity, q ListQuery) (Page[core.Expense], error) {
	if !actor.Role.IsAdmin() {
		return Page[core.Expense]{}, core.ErrForbidden
	}
	return s.ListExpenses(ctx, actor, q, core.StatusPending)
}

// ExportExpenses returns every visible expense matching q, sorted and not
// paginated.
func (s *ExpenseService) ExportExpenses(ctx context.Context, actor auth.Identity, q ListQuery, status core.ExpenseStatus) ([]core.Expense, error) {
	q, err := q.Normalize()
	if err != nil {
		return nil, err
	}
	return s.filtered(ctx, storage.ExpenseFilter{UserID: scopeOf(actor), Status: status}, q)
}

func (s *ExpenseService) filtered(ctx context.Context, f storage.ExpenseFilter, q ListQuery) ([]core.Expense, error) {
	f.From, f.To = span(q.Filter)
	rows, err := s.storage.ListExpenses(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	items := filter.Apply(q.Filter, rows)
	sortByDateAmount(items, q.Sort,
		func(e core.Expense) core.Date { return e.Date },
		func(e core.Expense) core.Money { return e.Amount })

	slog.DebugContext(ctx, "Expenses filtered",
		"fetched", len(rows),
		"matched", len(items),
		"filter_type", q.Filter.Type)
	return items, nil
}
