package services

import (
	"context"
	"fmt"
	"strings"

	"cassa/internal/auth"
	"cassa/internal/bus"
	"cassa/internal/core"
	"cassa/internal/filter"
	"cassa/internal/storage"
)

// IncomeService books income. Only admins credit wallets.
type IncomeService struct {
	storage *storage.SQLiteRepository
	bus     *bus.Bus
}

func NewIncomeService(storage *storage.SQLiteRepository, b *bus.Bus) *IncomeService {
	return &IncomeService{storage: storage, bus: b}
}

// CreateIncome credits i.UserID's wallet.
func (s *IncomeService) CreateIncome(ctx context.Context, actor auth.Identity, i core.Income) (core.Income, error) {
	if !actor.Role.IsAdmin() {
		return core.Income{}, core.ErrForbidden
	}
	i.Description = strings.TrimSpace(i.Description)
	i.CreatedBy = actor.ID
	if err := i.Validate(); err != nil {
		return core.Income{}, err
	}

	created, err := s.storage.CreateIncome(ctx, i)
	if err != nil {
		return core.Income{}, fmt.Errorf("save income: %w", err)
	}

	s.bus.Notify(ctx, bus.DataMutated, KindIncome, created.ID)
	return created, nil
}

// DeleteIncome removes an income and its wallet credit.
func (s *IncomeService) DeleteIncome(ctx context.Context, actor auth.Identity, id int64) error {
	if !actor.Role.IsAdmin() {
		return core.ErrForbidden
	}
	if err := s.storage.DeleteIncome(ctx, id); err != nil {
		return fmt.Errorf("delete income: %w", err)
	}

	s.bus.Notify(ctx, bus.DataMutated, KindIncome, id)
	return nil
}

// ListIncomes returns one page of income. userID narrows the list; 0 lists
// every user.
func (s *IncomeService) ListIncomes(ctx context.Context, actor auth.Identity, q ListQuery, userID int64) (Page[core.Income], error) {
	if !actor.Role.IsAdmin() {
		return Page[core.Income]{}, core.ErrForbidden
	}
	q, err := q.Normalize()
	if err != nil {
		return Page[core.Income]{}, err
	}

	from, to := span(q.Filter)
	rows, err := s.storage.ListIncomes(ctx, storage.IncomeFilter{UserID: userID, From: from, To: to})
	if err != nil {
		return Page[core.Income]{}, fmt.Errorf("list incomes: %w", err)
	}
	items := filter.Apply(q.Filter, rows)
	sortByDateAmount(items, q.Sort,
		func(i core.Income) core.Date { return i.Date },
		func(i core.Income) core.Money { return i.Amount })
	return Paginate(items, q), nil
}
