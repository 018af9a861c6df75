package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"cassa/internal/core"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "cassa.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

type fixture struct {
	user, admin core.User
	expenseCat  core.Category
	incomeCat   core.Category
}

func seedFixture(t *testing.T, repo *SQLiteRepository) fixture {
	t.Helper()
	ctx := context.Background()
	var f fixture
	var err error
	if f.user, err = repo.CreateUser(ctx, core.User{Name: "Anna", Email: "Anna@Example.com", Role: core.RoleUser, PasswordHash: "x"}); err != nil {
		t.Fatalf("create user: %v", err)
	}
	if f.admin, err = repo.CreateUser(ctx, core.User{Name: "Bruno", Email: "bruno@example.com", Role: core.RoleAdmin, PasswordHash: "x"}); err != nil {
		t.Fatalf("create admin: %v", err)
	}
	if f.expenseCat, err = repo.CreateCategory(ctx, core.Category{Name: "Casa", Kind: core.KindExpense, Color: "#4e79a7"}); err != nil {
		t.Fatalf("create category: %v", err)
	}
	if f.incomeCat, err = repo.CreateCategory(ctx, core.Category{Name: "Stipendio", Kind: core.KindIncome, Color: "#2E7D32"}); err != nil {
		t.Fatalf("create category: %v", err)
	}
	return f
}

func TestSeedCategories(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	n, err := repo.SeedCategories(ctx)
	if err != nil {
		t.Fatalf("SeedCategories: %v", err)
	}
	if n == 0 {
		t.Fatal("expected seeded categories")
	}
	again, err := repo.SeedCategories(ctx)
	if err != nil || again != 0 {
		t.Fatalf("second seed = %d, %v; want 0, nil", again, err)
	}
	income, err := repo.ListCategories(ctx, core.KindIncome)
	if err != nil {
		t.Fatal(err)
	}
	for _, c := range income {
		if c.Kind != core.KindIncome {
			t.Errorf("category %q has kind %q", c.Name, c.Kind)
		}
	}
}

func TestParseCategorySeed_RejectsBadColor(t *testing.T) {
	_, err := ParseCategorySeed([]byte("expense:\n  - name: Casa\n    color: blue\n"))
	if !errors.Is(err, core.ErrInvalidColor) {
		t.Fatalf("err = %v, want ErrInvalidColor", err)
	}
}

func TestUsers(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	f := seedFixture(t, repo)

	got, err := repo.GetUserByEmail(ctx, "anna@example.com")
	if err != nil || got.ID != f.user.ID {
		t.Fatalf("GetUserByEmail = %+v, %v", got, err)
	}
	if _, err := repo.GetUser(ctx, 999); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("GetUser(999) err = %v, want ErrNotFound", err)
	}
	_, created, err := repo.EnsureUser(ctx, core.User{Name: "Bruno", Email: "bruno@example.com", Role: core.RoleSuperAdmin})
	if err != nil || created {
		t.Errorf("EnsureUser on existing email = created %v, err %v", created, err)
	}
}

func TestExpenseApprovalWritesWallet(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	f := seedFixture(t, repo)

	e, err := repo.CreateExpense(ctx, core.Expense{
		UserID: f.user.ID, CategoryID: f.expenseCat.ID, Date: core.NewDate(2024, 3, 5),
		Description: "Bolletta", Amount: core.Money{Cents: 4250}, Status: core.StatusPending,
	})
	if err != nil {
		t.Fatalf("CreateExpense: %v", err)
	}
	if e.Date.String() != "2024-03-05" || e.VendorID != 0 {
		t.Fatalf("unexpected expense %+v", e)
	}

	if n, _ := repo.CountPending(ctx, 0); n != 1 {
		t.Errorf("CountPending(all) = %d, want 1", n)
	}
	if n, _ := repo.CountPending(ctx, f.admin.ID); n != 0 {
		t.Errorf("CountPending(admin) = %d, want 0", n)
	}
	if entries, _ := repo.ListWalletEntries(ctx, f.user.ID); len(entries) != 0 {
		t.Fatalf("pending expense wrote %d wallet entries", len(entries))
	}

	approved, err := repo.ReviewExpense(ctx, e.ID, core.StatusApproved, f.admin.ID, "")
	if err != nil {
		t.Fatalf("ReviewExpense: %v", err)
	}
	if approved.Status != core.StatusApproved || approved.ReviewedBy != f.admin.ID || approved.ReviewedAt.IsZero() {
		t.Errorf("unexpected review state %+v", approved)
	}
	entries, err := repo.ListWalletEntries(ctx, f.user.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Amount.Cents != -4250 || entries[0].SourceKind != SourceExpense {
		t.Fatalf("wallet entries = %+v", entries)
	}

	if _, err := repo.ReviewExpense(ctx, e.ID, core.StatusRejected, f.admin.ID, "late"); !errors.Is(err, core.ErrInvalidState) {
		t.Errorf("second review err = %v, want ErrInvalidState", err)
	}
	if _, err := repo.ReviewExpense(ctx, 999, core.StatusApproved, f.admin.ID, ""); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("review missing err = %v, want ErrNotFound", err)
	}

	e.Amount = core.Money{Cents: 5000}
	if _, err := repo.UpdateExpense(ctx, e); err != nil {
		t.Fatalf("UpdateExpense: %v", err)
	}
	entries, _ = repo.ListWalletEntries(ctx, f.user.ID)
	if len(entries) != 1 || entries[0].Amount.Cents != -5000 {
		t.Fatalf("wallet after update = %+v", entries)
	}

	if err := repo.DeleteExpense(ctx, e.ID); err != nil {
		t.Fatalf("DeleteExpense: %v", err)
	}
	if entries, _ := repo.ListWalletEntries(ctx, f.user.ID); len(entries) != 0 {
		t.Errorf("wallet entries survived delete: %+v", entries)
	}
	if err := repo.DeleteExpense(ctx, e.ID); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("second delete err = %v, want ErrNotFound", err)
	}
}

func TestListExpensesFilters(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	f := seedFixture(t, repo)

	for _, tc := range []struct {
		user   int64
		date   core.Date
		status core.ExpenseStatus
	}{
		{f.user.ID, core.NewDate(2024, 2, 28), core.StatusPending},
		{f.user.ID, core.NewDate(2024, 3, 1), core.StatusPending},
		{f.admin.ID, core.NewDate(2024, 3, 31), core.StatusApproved},
		{f.user.ID, core.NewDate(2024, 4, 1), core.StatusPending},
	} {
		if _, err := repo.CreateExpense(ctx, core.Expense{
			UserID: tc.user, CategoryID: f.expenseCat.ID, Date: tc.date,
			Description: "x", Amount: core.Money{Cents: 100}, Status: tc.status,
		}); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		name   string
		filter ExpenseFilter
		want   []string
	}{
		{"all newest first", ExpenseFilter{}, []string{"2024-04-01", "2024-03-31", "2024-03-01", "2024-02-28"}},
		{"march span", ExpenseFilter{From: "2024-03-01", To: "2024-04-01"}, []string{"2024-03-31", "2024-03-01"}},
		{"own pending", ExpenseFilter{UserID: f.user.ID, Status: core.StatusPending}, []string{"2024-04-01", "2024-03-01", "2024-02-28"}},
		{"approved", ExpenseFilter{Status: core.StatusApproved}, []string{"2024-03-31"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.ListExpenses(ctx, tt.filter)
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %d expenses, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if got[i].Date.String() != tt.want[i] {
					t.Errorf("[%d] = %s, want %s", i, got[i].Date, tt.want[i])
				}
			}
		})
	}

	unsynced, err := repo.ListUnsyncedApproved(ctx, 10)
	if err != nil || len(unsynced) != 1 {
		t.Fatalf("ListUnsyncedApproved = %d, %v", len(unsynced), err)
	}
	if err := repo.MarkSynced(ctx, unsynced[0].ID); err != nil {
		t.Fatal(err)
	}
	if unsynced, _ = repo.ListUnsyncedApproved(ctx, 10); len(unsynced) != 0 {
		t.Errorf("expense still unsynced after MarkSynced")
	}
}

func TestIncomeAndCategoryUsage(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	f := seedFixture(t, repo)

	inc, err := repo.CreateIncome(ctx, core.Income{
		UserID: f.user.ID, CategoryID: f.incomeCat.ID, Date: core.NewDate(2024, 3, 1),
		Description: "Stipendio marzo", Amount: core.Money{Cents: 200000}, CreatedBy: f.admin.ID,
	})
	if err != nil {
		t.Fatalf("CreateIncome: %v", err)
	}
	entries, _ := repo.ListWalletEntries(ctx, f.user.ID)
	if len(entries) != 1 || entries[0].Amount.Cents != 200000 {
		t.Fatalf("wallet after income = %+v", entries)
	}

	if err := repo.DeleteCategory(ctx, f.incomeCat.ID); !errors.Is(err, core.ErrInvalidState) {
		t.Errorf("delete used category err = %v, want ErrInvalidState", err)
	}
	if err := repo.DeleteIncome(ctx, inc.ID); err != nil {
		t.Fatalf("DeleteIncome: %v", err)
	}
	if err := repo.DeleteCategory(ctx, f.incomeCat.ID); err != nil {
		t.Errorf("delete unused category: %v", err)
	}
	if entries, _ := repo.ListWalletEntries(ctx, f.user.ID); len(entries) != 0 {
		t.Errorf("wallet credit survived income delete")
	}
}

func TestCalendarEvents(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	f := seedFixture(t, repo)

	ev, err := repo.CreateEvent(ctx, core.CalendarEvent{
		UserID: f.user.ID, Title: "Affitto", Date: core.NewDate(2024, 1, 5), RRule: "FREQ=MONTHLY", Remind: true,
	})
	if err != nil {
		t.Fatalf("CreateEvent: %v", err)
	}
	if _, err := repo.CreateEvent(ctx, core.CalendarEvent{UserID: f.admin.ID, Title: "Riunione", Date: core.NewDate(2024, 1, 6)}); err != nil {
		t.Fatal(err)
	}

	remind, err := repo.ListEvents(ctx, 0, true)
	if err != nil || len(remind) != 1 || remind[0].ID != ev.ID || !remind[0].Remind {
		t.Fatalf("ListEvents(remind) = %+v, %v", remind, err)
	}
	at := repo.now()
	if err := repo.MarkReminded(ctx, ev.ID, at); err != nil {
		t.Fatal(err)
	}
	got, _ := repo.GetEvent(ctx, ev.ID)
	if !got.LastRemindedAt.Equal(at.UTC()) {
		t.Errorf("LastRemindedAt = %v, want %v", got.LastRemindedAt, at)
	}
	if err := repo.DeleteEvent(ctx, 999); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("DeleteEvent(999) err = %v", err)
	}
}
