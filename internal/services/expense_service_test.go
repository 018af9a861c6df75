package services

import (
	"context"
	"errors"
	"testing"

	"cassa/internal/bus"
	"cassa/internal/core"
	"cassa/internal/filter"
)

func TestExpenseService_ApprovalWorkflow(t *testing.T) {
	e := newEnv(t)
	svc := NewExpenseService(e.repo, e.bus)
	ctx := context.Background()

	created, err := svc.CreateExpense(ctx, e.user, e.expense(0, date("2024-03-05"), 1250))
	if err != nil {
		t.Fatalf("CreateExpense: %v", err)
	}
	if created.Status != core.StatusPending || created.UserID != e.user.ID {
		t.Fatalf("created = %+v", created)
	}
	evs := e.events.take()
	if len(evs) != 1 || evs[0].Signal != bus.DataMutated || evs[0].Kind != KindExpense || evs[0].ID != created.ID {
		t.Fatalf("events = %+v", evs)
	}

	if n, _ := svc.CountPending(ctx, e.admin); n != 1 {
		t.Errorf("admin pending = %d, want 1", n)
	}
	if n, _ := svc.CountPending(ctx, e.other); n != 0 {
		t.Errorf("other user pending = %d, want 0", n)
	}

	if _, err := svc.ApproveExpense(ctx, e.user, created.ID); !errors.Is(err, core.ErrForbidden) {
		t.Errorf("user approve err = %v", err)
	}

	approved, err := svc.ApproveExpense(ctx, e.admin, created.ID)
	if err != nil {
		t.Fatalf("ApproveExpense: %v", err)
	}
	if approved.Status != core.StatusApproved || approved.ReviewedBy != e.admin.ID {
		t.Errorf("approved = %+v", approved)
	}

	wallet, err := e.repo.ListWalletEntries(ctx, e.user.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(wallet) != 1 || wallet[0].Amount.Cents != -1250 {
		t.Errorf("wallet = %+v", wallet)
	}

	if _, err := svc.ApproveExpense(ctx, e.admin, created.ID); !errors.Is(err, core.ErrInvalidState) {
		t.Errorf("second approve err = %v", err)
	}
	if _, err := svc.RejectExpense(ctx, e.admin, created.ID, "duplicate"); !errors.Is(err, core.ErrInvalidState) {
		t.Errorf("reject approved err = %v", err)
	}
	if _, err := svc.UpdateExpense(ctx, e.user, approved); !errors.Is(err, core.ErrInvalidState) {
		t.Errorf("owner edit after approval err = %v", err)
	}

	approved.Amount = core.Money{Cents: 2000}
	if _, err := svc.UpdateExpense(ctx, e.admin, approved); err != nil {
		t.Fatalf("admin edit: %v", err)
	}
	wallet, _ = e.repo.ListWalletEntries(ctx, e.user.ID)
	if len(wallet) != 1 || wallet[0].Amount.Cents != -2000 {
		t.Errorf("wallet after edit = %+v", wallet)
	}
}

func TestExpenseService_Reject(t *testing.T) {
	e := newEnv(t)
	svc := NewExpenseService(e.repo, e.bus)
	ctx := context.Background()

	created, err := svc.CreateExpense(ctx, e.user, e.expense(0, date("2024-03-05"), 900))
	if err != nil {
		t.Fatal(err)
	}
	e.events.take()

	_, err = svc.RejectExpense(ctx, e.admin, created.ID, "   ")
	var fe *core.FieldError
	if !errors.As(err, &fe) || fe.Field != "reason" {
		t.Fatalf("blank reason err = %v", err)
	}
	if evs := e.events.take(); len(evs) != 0 {
		t.Errorf("failed reject published %d events", len(evs))
	}

	rejected, err := svc.RejectExpense(ctx, e.admin, created.ID, "no receipt")
	if err != nil {
		t.Fatalf("RejectExpense: %v", err)
	}
	if rejected.Status != core.StatusRejected || rejected.RejectionReason != "no receipt" {
		t.Errorf("rejected = %+v", rejected)
	}
	if wallet, _ := e.repo.ListWalletEntries(ctx, e.user.ID); len(wallet) != 0 {
		t.Errorf("rejection wrote wallet entries: %+v", wallet)
	}

	if _, err := svc.RejectExpense(ctx, e.admin, 9999, "gone"); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("missing expense err = %v", err)
	}
}

func TestExpenseService_OwnershipRules(t *testing.T) {
	e := newEnv(t)
	svc := NewExpenseService(e.repo, e.bus)
	ctx := context.Background()

	created, err := svc.CreateExpense(ctx, e.user, e.expense(e.other.ID, date("2024-03-05"), 500))
	if err != nil {
		t.Fatal(err)
	}
	if created.UserID != e.user.ID {
		t.Errorf("user created expense for user %d", created.UserID)
	}

	created.Description = "edited"
	if _, err := svc.UpdateExpense(ctx, e.other, created); !errors.Is(err, core.ErrForbidden) {
		t.Errorf("foreign edit err = %v", err)
	}
	if err := svc.DeleteExpense(ctx, e.other, created.ID); !errors.Is(err, core.ErrForbidden) {
		t.Errorf("foreign delete err = %v", err)
	}
	updated, err := svc.UpdateExpense(ctx, e.user, created)
	if err != nil || updated.Description != "edited" {
		t.Fatalf("owner edit = %+v, %v", updated, err)
	}
	if err := svc.DeleteExpense(ctx, e.user, created.ID); err != nil {
		t.Fatalf("owner delete: %v", err)
	}
	if _, err := e.repo.GetExpense(ctx, created.ID); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("expense still there: %v", err)
	}
}

func TestExpenseService_AdminCreatesApproved(t *testing.T) {
	e := newEnv(t)
	svc := NewExpenseService(e.repo, e.bus)
	ctx := context.Background()

	created, err := svc.CreateExpense(ctx, e.admin, e.expense(e.user.ID, date("2024-03-05"), 700))
	if err != nil {
		t.Fatal(err)
	}
	if created.Status != core.StatusApproved || created.UserID != e.user.ID {
		t.Errorf("created = %+v", created)
	}
	if wallet, _ := e.repo.ListWalletEntries(ctx, e.user.ID); len(wallet) != 1 {
		t.Errorf("wallet = %+v", wallet)
	}
}

func TestExpenseService_ValidationBeforeWrite(t *testing.T) {
	e := newEnv(t)
	svc := NewExpenseService(e.repo, e.bus)
	ctx := context.Background()

	tests := []struct {
		name  string
		mod   func(*core.Expense)
		field string
	}{
		{"missing date", func(x *core.Expense) { x.Date = core.Date{} }, "date"},
		{"blank description", func(x *core.Expense) { x.Description = "  " }, "description"},
		{"zero amount", func(x *core.Expense) { x.Amount = core.Money{} }, "amount"},
		{"missing category", func(x *core.Expense) { x.CategoryID = 0 }, "category_id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x := e.expense(0, date("2024-03-05"), 100)
			tt.mod(&x)
			_, err := svc.CreateExpense(ctx, e.user, x)
			var fe *core.FieldError
			if !errors.As(err, &fe) || fe.Field != tt.field {
				t.Fatalf("err = %v, want field %s", err, tt.field)
			}
		})
	}
	if n, _ := e.repo.CountPending(ctx, 0); n != 0 {
		t.Errorf("invalid input was stored: %d rows", n)
	}
	if evs := e.events.take(); len(evs) != 0 {
		t.Errorf("invalid input published %d events", len(evs))
	}
}

func TestExpenseService_ListFilterSortPaginate(t *testing.T) {
	e := newEnv(t)
	svc := NewExpenseService(e.repo, e.bus)
	ctx := context.Background()

	for _, x := range []struct {
		date  string
		cents int64
	}{
		{"2024-02-28", 100},
		{"2024-03-01", 300},
		{"2024-03-15", 100},
		{"2024-03-31", 200},
		{"2024-04-01", 900},
	} {
		if _, err := svc.CreateExpense(ctx, e.user, e.expense(0, date(x.date), x.cents)); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := svc.CreateExpense(ctx, e.other, e.expense(0, date("2024-03-10"), 50)); err != nil {
		t.Fatal(err)
	}

	march := filter.Single(filter.TypeMonth, day("2024-03-01"))
	page, err := svc.ListExpenses(ctx, e.user, ListQuery{Filter: march, PageSize: 2, Sort: SortAmountAsc}, "")
	if err != nil {
		t.Fatalf("ListExpenses: %v", err)
	}
	if page.Total != 3 || page.TotalPages != 2 || len(page.Items) != 2 {
		t.Fatalf("page = %+v", page)
	}
	if page.Items[0].Amount.Cents != 100 || page.Items[1].Amount.Cents != 200 {
		t.Errorf("order = %d, %d", page.Items[0].Amount.Cents, page.Items[1].Amount.Cents)
	}

	page, err = svc.ListExpenses(ctx, e.user, ListQuery{Filter: march, Page: 2, PageSize: 2, Sort: SortAmountAsc}, "")
	if err != nil || len(page.Items) != 1 || page.Items[0].Amount.Cents != 300 {
		t.Fatalf("page 2 = %+v, %v", page, err)
	}

	all, err := svc.ListExpenses(ctx, e.admin, ListQuery{Filter: march}, "")
	if err != nil || all.Total != 4 {
		t.Errorf("admin sees %d, want 4 (%v)", all.Total, err)
	}
	if all.Items[0].Date.String() != "2024-03-31" {
		t.Errorf("default sort first = %s", all.Items[0].Date)
	}

	if _, err := svc.ListExpenses(ctx, e.user, ListQuery{Sort: "name:asc"}, ""); !errors.Is(err, ErrInvalidSort) {
		t.Errorf("bad sort err = %v", err)
	}

	if _, err := svc.ListPending(ctx, e.user, ListQuery{}); !errors.Is(err, core.ErrForbidden) {
		t.Errorf("user pending list err = %v", err)
	}
	pending, err := svc.ListPending(ctx, e.admin, ListQuery{Filter: filter.Default()})
	if err != nil || pending.Total != 6 {
		t.Errorf("pending = %d, %v", pending.Total, err)
	}
}
