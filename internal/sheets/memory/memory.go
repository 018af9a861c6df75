// Package memory is a process-local ledger used when no spreadsheet is
// configured and in tests.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"cassa/internal/sheets"
)

var _ sheets.LedgerWriter = (*Store)(nil)

type Store struct {
	mu   sync.Mutex
	rows []sheets.LedgerRow
	fail error
}

func New() *Store {
	return &Store{}
}

// Append stores the rows and returns a synthetic range reference.
func (s *Store) Append(_ context.Context, rows []sheets.LedgerRow) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return "", s.fail
	}
	if len(rows) == 0 {
		return "", errors.New("no rows to append")
	}
	first := len(s.rows) + 1
	s.rows = append(s.rows, rows...)
	return fmt.Sprintf("mem!A%d:I%d", first, len(s.rows)), nil
}

// Rows returns a copy of everything appended so far.
func (s *Store) Rows() []sheets.LedgerRow {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sheets.LedgerRow(nil), s.rows...)
}

// FailWith makes subsequent appends return err; nil restores normal behaviour.
func (s *Store) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = err
}
