package services

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"cassa/internal/auth"
	"cassa/internal/bus"
	"cassa/internal/cache"
	"cassa/internal/core"
	"cassa/internal/filter"
	"cassa/internal/storage"
)

const (
	summaryCacheSize = 256
	summaryCacheTTL  = 5 * time.Minute
)

// DashboardService computes the dashboard summary for a date filter.
type DashboardService struct {
	storage *storage.SQLiteRepository
	cache   *cache.LRUCache[core.Summary]

	// generation counts invalidations. A summary is only cached if none
	// happened while it was being computed.
	generation atomic.Uint64
	afterFetch func()
}

func NewDashboardService(storage *storage.SQLiteRepository) *DashboardService {
	return &DashboardService{
		storage: storage,
		cache:   cache.NewLRUCache[core.Summary](summaryCacheSize, summaryCacheTTL),
	}
}

// Cache exposes the summary cache so it can be swept with the others.
func (s *DashboardService) Cache() *cache.LRUCache[core.Summary] { return s.cache }

// Subscribe drops cached summaries whenever the data behind them changes.
// The returned func unsubscribes.
func (s *DashboardService) Subscribe(b *bus.Bus) func() {
	invalidate := func(context.Context, bus.Event) error {
		s.Invalidate()
		return nil
	}
	offData := b.Subscribe(bus.DataMutated, invalidate)
	offCategories := b.Subscribe(bus.CategoriesChanged, invalidate)
	return func() {
		offData()
		offCategories()
	}
}

// Invalidate drops every cached summary, including ones still being computed.
func (s *DashboardService) Invalidate() {
	s.generation.Add(1)
	s.cache.Clear()
}

// Summary returns totals for the records matching d. Admins see every
// user's records; users their own.
func (s *DashboardService) Summary(ctx context.Context, actor auth.Identity, d filter.Descriptor) (core.Summary, error) {
	if err := d.Validate(); err != nil {
		return core.Summary{}, err
	}
	scope := scopeOf(actor)
	key, err := summaryKey(scope, d)
	if err != nil {
		return core.Summary{}, err
	}
	if cached, ok := s.cache.Get(key); ok {
		return cached, nil
	}

	gen := s.generation.Load()
	from, to := span(d)
	var (
		expenses   []core.Expense
		incomes    []core.Income
		categories []core.Category
		pending    int64
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rows, err := s.storage.ListExpenses(gctx, storage.ExpenseFilter{
			UserID: scope, Status: core.StatusApproved, From: from, To: to,
		})
		expenses = filter.Apply(d, rows)
		return err
	})
	g.Go(func() error {
		rows, err := s.storage.ListIncomes(gctx, storage.IncomeFilter{UserID: scope, From: from, To: to})
		incomes = filter.Apply(d, rows)
		return err
	})
	g.Go(func() error {
		var err error
		categories, err = s.storage.ListCategories(gctx, "")
		return err
	})
	g.Go(func() error {
		var err error
		pending, err = s.storage.CountPending(gctx, scope)
		return err
	})
	if err := g.Wait(); err != nil {
		return core.Summary{}, fmt.Errorf("dashboard summary: %w", err)
	}

	if s.afterFetch != nil {
		s.afterFetch()
	}

	summary := summarize(expenses, incomes, categories)
	summary.Pending = pending
	if s.generation.Load() == gen {
		s.cache.Set(key, summary)
	}
	return summary, nil
}

func summaryKey(scope int64, d filter.Descriptor) (string, error) {
	b, err := json.Marshal(d)
	if err != nil {
		return "", fmt.Errorf("summary key: %w", err)
	}
	return fmt.Sprintf("%d|%s", scope, b), nil
}

func summarize(expenses []core.Expense, incomes []core.Income, categories []core.Category) core.Summary {
	var s core.Summary
	byID := make(map[int64]core.Category, len(categories))
	for _, c := range categories {
		byID[c.ID] = c
	}

	months := map[string]*core.MonthAmount{}
	month := func(d core.Date) *core.MonthAmount {
		k := d.Format("2006-01")
		m, ok := months[k]
		if !ok {
			m = &core.MonthAmount{Month: k}
			months[k] = m
		}
		return m
	}

	perCategory := map[int64]*core.CategoryAmount{}
	for _, e := range expenses {
		s.Expenses = s.Expenses.Add(e.Amount)
		m := month(e.Date)
		m.Expenses = m.Expenses.Add(e.Amount)

		ca, ok := perCategory[e.CategoryID]
		if !ok {
			c := byID[e.CategoryID]
			ca = &core.CategoryAmount{CategoryID: e.CategoryID, Name: c.Name, Icon: c.Icon, Color: c.Color}
			perCategory[e.CategoryID] = ca
		}
		ca.Amount = ca.Amount.Add(e.Amount)
	}
	for _, i := range incomes {
		s.Income = s.Income.Add(i.Amount)
		m := month(i.Date)
		m.Income = m.Income.Add(i.Amount)
	}
	s.Balance = s.Income.Add(s.Expenses.Neg())

	s.ByCategory = make([]core.CategoryAmount, 0, len(perCategory))
	for _, ca := range perCategory {
		s.ByCategory = append(s.ByCategory, *ca)
	}
	slices.SortFunc(s.ByCategory, func(a, b core.CategoryAmount) int {
		if c := cmp.Compare(b.Amount.Cents, a.Amount.Cents); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})

	s.Monthly = make([]core.MonthAmount, 0, len(months))
	for _, m := range months {
		s.Monthly = append(s.Monthly, *m)
	}
	slices.SortFunc(s.Monthly, func(a, b core.MonthAmount) int {
		return cmp.Compare(a.Month, b.Month)
	})
	return s
}
