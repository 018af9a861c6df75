package google

import (
	"strings"

	gsheet "google.golang.org/api/sheets/v4"

	"cassa/internal/sheets"
)

// sheetRange builds an A1 range, quoting sheet names that need it.
func sheetRange(sheet, cells string) string {
	if strings.ContainsAny(sheet, " '!:") {
		sheet = "'" + strings.ReplaceAll(sheet, "'", "''") + "'"
	}
	return sheet + "!" + cells
}

func valueRange(rows []sheets.LedgerRow) *gsheet.ValueRange {
	values := make([][]any, len(rows))
	for i, r := range rows {
		values[i] = r.Values()
	}
	return &gsheet.ValueRange{MajorDimension: "ROWS", Values: values}
}
