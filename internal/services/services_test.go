package services

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"cassa/internal/auth"
	"cassa/internal/bus"
	"cassa/internal/core"
	"cassa/internal/storage"
)

type env struct {
	repo   *storage.SQLiteRepository
	bus    *bus.Bus
	events *recorder

	user, other, admin auth.Identity
	expenseCat         core.Category
	incomeCat          core.Category
}

type recorder struct {
	mu     sync.Mutex
	events []bus.Event
}

func (r *recorder) handle(_ context.Context, ev bus.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recorder) take() []bus.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.events
	r.events = nil
	return out
}

func identity(u core.User) auth.Identity {
	return auth.Identity{ID: u.ID, Name: u.Name, Role: u.Role}
}

func newEnv(t *testing.T) *env {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "cassa.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	ctx := context.Background()
	e := &env{repo: repo, bus: bus.New("test", nil), events: &recorder{}}
	e.bus.SubscribeAll(e.events.handle)

	mustUser := func(name, email string, role core.Role) auth.Identity {
		u, err := repo.CreateUser(ctx, core.User{Name: name, Email: email, Role: role, PasswordHash: "x"})
		if err != nil {
			t.Fatalf("create user %s: %v", name, err)
		}
		return identity(u)
	}
	e.user = mustUser("Anna", "anna@example.com", core.RoleUser)
	e.other = mustUser("Carla", "carla@example.com", core.RoleUser)
	e.admin = mustUser("Bruno", "bruno@example.com", core.RoleAdmin)

	if e.expenseCat, err = repo.CreateCategory(ctx, core.Category{Name: "Spesa", Kind: core.KindExpense, Icon: "cart", Color: "#F28E2B"}); err != nil {
		t.Fatalf("create category: %v", err)
	}
	if e.incomeCat, err = repo.CreateCategory(ctx, core.Category{Name: "Stipendio", Kind: core.KindIncome, Color: "#2E7D32"}); err != nil {
		t.Fatalf("create category: %v", err)
	}
	return e
}

func (e *env) expense(userID int64, date core.Date, cents int64) core.Expense {
	return core.Expense{
		UserID:      userID,
		CategoryID:  e.expenseCat.ID,
		Date:        date,
		Description: "groceries",
		Amount:      core.Money{Cents: cents},
	}
}

func day(s string) time.Time {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		panic(err)
	}
	return t
}

func date(s string) core.Date {
	return core.Date{Time: day(s)}
}
