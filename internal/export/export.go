// Package export writes filtered expense lists as CSV or XLSX downloads.
package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"cassa/internal/core"
)

type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

const sheetName = "Expenses"

var ErrUnknownFormat = errors.New("unknown export format, expected csv or xlsx")

// Header is the column order of every export.
var Header = []string{"ID", "Date", "Description", "Category", "Vendor", "Amount", "Status", "Invoice"}

// ParseFormat reads a format query value. Empty means CSV.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatCSV:
		return FormatCSV, nil
	case FormatXLSX:
		return FormatXLSX, nil
	}
	return "", ErrUnknownFormat
}

func (f Format) ContentType() string {
	if f == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv; charset=utf-8"
}

// Filename names the download, e.g. expenses.xlsx.
func (f Format) Filename() string { return "expenses." + string(f) }

// Row is one exported expense with names already resolved.
type Row struct {
	ID          int64
	Date        core.Date
	Description string
	Category    string
	Vendor      string
	Amount      core.Money
	Status      core.ExpenseStatus
	Invoice     string
}

// Names resolves record ids to display names.
type Names interface {
	Category(id int64) string
	Vendor(id int64) string
}

// Rows converts expenses for export. Invoice paths become links on
// invoiceBase; unresolvable ones are left blank.
func Rows(expenses []core.Expense, names Names, invoiceBase string) []Row {
	rows := make([]Row, 0, len(expenses))
	for _, e := range expenses {
		invoice, _ := core.InvoiceURL(invoiceBase, e.InvoicePath)
		rows = append(rows, Row{
			ID:          e.ID,
			Date:        e.Date,
			Description: e.Description,
			Category:    names.Category(e.CategoryID),
			Vendor:      names.Vendor(e.VendorID),
			Amount:      e.Amount,
			Status:      e.Status,
			Invoice:     invoice,
		})
	}
	return rows
}

func (r Row) record() []string {
	return []string{
		strconv.FormatInt(r.ID, 10),
		r.Date.String(),
		textCell(r.Description),
		textCell(r.Category),
		textCell(r.Vendor),
		r.Amount.String(),
		string(r.Status),
		r.Invoice,
	}
}

// textCell quotes free text that a spreadsheet would read as a formula.
// XLSX string cells are never evaluated, so only CSV needs it.
func textCell(s string) string {
	if s != "" && strings.ContainsRune("=+-@\t\r", rune(s[0])) {
		return "'" + s
	}
	return s
}

// Write writes rows to w in format f.
func Write(w io.Writer, f Format, rows []Row) error {
	switch f {
	case FormatCSV:
		return CSV(w, rows)
	case FormatXLSX:
		return XLSX(w, rows)
	}
	return ErrUnknownFormat
}

// CSV writes a header line followed by one record per row.
func CSV(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)

	records := make([][]string, 0, len(rows)+1)
	records = append(records, Header)
	for _, r := range rows {
		records = append(records, r.record())
	}

	if err := cw.WriteAll(records); err != nil {
		return fmt.Errorf("failed to write CSV records: %w", err)
	}
	return nil
}

// XLSX writes a single-sheet workbook. Amounts are numeric cells so the
// sheet can sum them.
func XLSX(w io.Writer, rows []Row) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), sheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	header := make([]any, len(Header))
	for i, h := range Header {
		header[i] = h
	}
	if err := f.SetSheetRow(sheetName, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		values := []any{r.ID, r.Date.String(), r.Description, r.Category, r.Vendor, r.Amount.Euros(), string(r.Status), r.Invoice}
		if err := f.SetSheetRow(sheetName, cell, &values); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
