package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"cassa/internal/core"
	"cassa/internal/sheets/memory"
)

func TestNewSyncProcessor_Defaults(t *testing.T) {
	p := NewSyncProcessor(nil, nil, SyncProcessorConfig{})
	if p.config.PollInterval != 5*time.Minute || p.config.BatchSize != 25 {
		t.Errorf("config = %+v", p.config)
	}
	if p.IsRunning() {
		t.Error("processor should not be running initially")
	}
	if err := p.Stop(context.Background()); err != nil {
		t.Errorf("Stop when not running: %v", err)
	}
}

func TestSyncProcessor_ProcessBatch(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	expenses := NewExpenseService(e.repo, e.bus)
	ledger := memory.New()
	p := NewSyncProcessor(e.repo, ledger, SyncProcessorConfig{BatchSize: 2, InvoiceBaseURL: "https://files.example.com"})

	vendor, err := e.repo.CreateVendor(ctx, core.Vendor{Name: "Esselunga"})
	if err != nil {
		t.Fatal(err)
	}
	x := e.expense(e.user.ID, date("2024-03-01"), 1999)
	x.VendorID = vendor.ID
	x.InvoicePath = `invoices\2024\03.pdf`
	if _, err := expenses.CreateExpense(ctx, e.admin, x); err != nil {
		t.Fatal(err)
	}
	for _, d := range []string{"2024-03-02", "2024-03-03"} {
		if _, err := expenses.CreateExpense(ctx, e.admin, e.expense(e.user.ID, date(d), 100)); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := expenses.CreateExpense(ctx, e.user, e.expense(0, date("2024-03-04"), 100)); err != nil {
		t.Fatal(err)
	}

	n, err := p.ProcessBatch(ctx)
	if err != nil || n != 2 {
		t.Fatalf("first batch = %d, %v", n, err)
	}
	n, err = p.ProcessBatch(ctx)
	if err != nil || n != 1 {
		t.Fatalf("second batch = %d, %v", n, err)
	}
	if n, _ := p.ProcessBatch(ctx); n != 0 {
		t.Errorf("pending expense exported: %d", n)
	}

	rows := ledger.Rows()
	if len(rows) != 3 {
		t.Fatalf("ledger rows = %d", len(rows))
	}
	first := rows[0]
	if first.User != "Anna" || first.Category != "Spesa" || first.Vendor != "Esselunga" {
		t.Errorf("names = %+v", first)
	}
	if first.Invoice != "https://files.example.com/invoices/2024/03.pdf" {
		t.Errorf("invoice = %q", first.Invoice)
	}
}

func TestSyncProcessor_FailedAppendKeepsRowsUnsynced(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	expenses := NewExpenseService(e.repo, e.bus)
	ledger := memory.New()
	p := NewSyncProcessor(e.repo, ledger, SyncProcessorConfig{BatchSize: 10})

	if _, err := expenses.CreateExpense(ctx, e.admin, e.expense(e.user.ID, date("2024-03-01"), 100)); err != nil {
		t.Fatal(err)
	}

	ledger.FailWith(errors.New("quota exceeded"))
	if _, err := p.ProcessBatch(ctx); err == nil {
		t.Fatal("expected append error")
	}
	ledger.FailWith(nil)
	if n, err := p.ProcessBatch(ctx); err != nil || n != 1 {
		t.Errorf("retry = %d, %v", n, err)
	}
}

func TestSyncProcessor_KickOnExpenseChange(t *testing.T) {
	e := newEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	expenses := NewExpenseService(e.repo, e.bus)
	ledger := memory.New()
	p := NewSyncProcessor(e.repo, ledger, SyncProcessorConfig{PollInterval: time.Hour, BatchSize: 10})
	defer p.Subscribe(e.bus)()

	if err := p.Start(ctx); err != nil {
		t.Fatal(err)
	}
	if err := p.Start(ctx); err == nil {
		t.Error("second Start should fail")
	}

	if _, err := expenses.CreateExpense(ctx, e.admin, e.expense(e.user.ID, date("2024-03-01"), 100)); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for len(ledger.Rows()) == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if len(ledger.Rows()) != 1 {
		t.Fatalf("kick did not export the expense: %d rows", len(ledger.Rows()))
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer stopCancel()
	if err := p.Stop(stopCtx); err != nil {
		t.Errorf("Stop: %v", err)
	}
	if p.IsRunning() {
		t.Error("processor still running after Stop")
	}
}
