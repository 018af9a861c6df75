package export

import (
	"bytes"
	"encoding/csv"
	"slices"
	"testing"

	"github.com/xuri/excelize/v2"

	"cassa/internal/core"
)

type names map[int64]string

func (n names) Category(id int64) string { return n[id] }
func (n names) Vendor(id int64) string   { return n[100+id] }

func sampleRows() []Row {
	expenses := []core.Expense{
		{ID: 7, CategoryID: 1, VendorID: 2, Date: core.NewDate(2024, 3, 5), Description: "Spesa, settimana",
			Amount: core.Money{Cents: 1230}, Status: core.StatusApproved, InvoicePath: `fatture\2024\03.pdf`},
		{ID: 8, CategoryID: 1, Date: core.NewDate(2024, 3, 6), Description: "Pane",
			Amount: core.Money{Cents: 250}, Status: core.StatusPending, InvoicePath: "null"},
	}
	return Rows(expenses, names{1: "Spesa", 102: "Coop"}, "https://files.example.com/inv")
}

func TestCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := CSV(&buf, sampleRows()); err != nil {
		t.Fatalf("CSV: %v", err)
	}

	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("parse CSV: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("got %d records, want 3", len(records))
	}
	if !slices.Equal(records[0], Header) {
		t.Fatalf("header = %v", records[0])
	}
	want := []string{"7", "2024-03-05", "Spesa, settimana", "Spesa", "Coop", "12.30", "approved", "https://files.example.com/inv/fatture/2024/03.pdf"}
	if !slices.Equal(records[1], want) {
		t.Fatalf("row = %v\nwant  %v", records[1], want)
	}
	if records[2][4] != "" || records[2][7] != "" {
		t.Fatalf("expected empty vendor and invoice, got %v", records[2])
	}
}

func TestCSV_FormulaText(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"=HYPERLINK(\"http://x\")", "'=HYPERLINK(\"http://x\")"},
		{"+39 ricarica", "'+39 ricarica"},
		{"-sconto", "'-sconto"},
		{"@SUM(A1)", "'@SUM(A1)"},
		{"\tcmd", "'\tcmd"},
		{"Pane = 2", "Pane = 2"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			var buf bytes.Buffer
			rows := []Row{{ID: 1, Date: core.NewDate(2024, 1, 2), Description: tt.in, Vendor: tt.in, Amount: core.Money{Cents: -500}}}
			if err := CSV(&buf, rows); err != nil {
				t.Fatal(err)
			}
			records, err := csv.NewReader(&buf).ReadAll()
			if err != nil {
				t.Fatal(err)
			}
			if got := records[1][2]; got != tt.want {
				t.Errorf("description = %q, want %q", got, tt.want)
			}
			if got := records[1][4]; got != tt.want {
				t.Errorf("vendor = %q, want %q", got, tt.want)
			}
			if got := records[1][5]; got != "-5.00" {
				t.Errorf("amount = %q, want -5.00", got)
			}
		})
	}
}

func TestXLSX(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, FormatXLSX, sampleRows()); err != nil {
		t.Fatalf("XLSX: %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(sheetName)
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want 3", len(rows))
	}
	if !slices.Equal(rows[0], Header) {
		t.Fatalf("header = %v", rows[0])
	}
	if rows[2][2] != "Pane" || rows[2][6] != "pending" {
		t.Fatalf("row = %v", rows[2])
	}
}

func TestParseFormat(t *testing.T) {
	tests := map[string]Format{"": FormatCSV, "CSV": FormatCSV, "xlsx": FormatXLSX}
	for in, want := range tests {
		got, err := ParseFormat(in)
		if err != nil || got != want {
			t.Errorf("ParseFormat(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseFormat("pdf"); err == nil {
		t.Fatal("expected error for pdf")
	}
}
