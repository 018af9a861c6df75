package memory

import (
	"context"
	"errors"
	"testing"

	"cassa/internal/core"
	"cassa/internal/sheets"
)

func TestStore_Append(t *testing.T) {
	s := New()
	ctx := context.Background()

	ref, err := s.Append(ctx, []sheets.LedgerRow{
		{ExpenseID: 1, Date: core.NewDate(2024, 3, 1), Amount: core.Money{Cents: 1250}},
		{ExpenseID: 2, Date: core.NewDate(2024, 3, 2), Amount: core.Money{Cents: 300}},
	})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if ref != "mem!A1:I2" {
		t.Errorf("ref = %q", ref)
	}
	if got := len(s.Rows()); got != 2 {
		t.Fatalf("rows = %d, want 2", got)
	}

	if _, err := s.Append(ctx, nil); err == nil {
		t.Error("expected error for empty append")
	}

	boom := errors.New("quota exceeded")
	s.FailWith(boom)
	if _, err := s.Append(ctx, []sheets.LedgerRow{{ExpenseID: 3}}); !errors.Is(err, boom) {
		t.Errorf("err = %v, want %v", err, boom)
	}
	if got := len(s.Rows()); got != 2 {
		t.Errorf("failed append stored rows: %d", got)
	}
}

func TestLedgerRow_Values(t *testing.T) {
	row := sheets.LedgerRow{
		ExpenseID: 9,
		Date:      core.NewDate(2024, 1, 15),
		User:      "Anna",
		Category:  "Spesa",
		Amount:    core.Money{Cents: 4599},
	}
	v := row.Values()
	if len(v) != len(sheets.Header) {
		t.Fatalf("values = %d, header = %d", len(v), len(sheets.Header))
	}
	if v[1] != "2024-01-15" || v[6] != "45.99" || v[8] != "" {
		t.Errorf("values = %v", v)
	}
}
