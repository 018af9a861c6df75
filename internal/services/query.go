package services

import (
	"cmp"
	"fmt"
	"slices"
	"time"

	"cassa/internal/core"
	"cassa/internal/filter"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
	MaxPage         = 1_000_000
)

// Sort orders for list endpoints.
const (
	SortDateDesc   = "date:desc"
	SortDateAsc    = "date:asc"
	SortAmountAsc  = "amount:asc"
	SortAmountDesc = "amount:desc"
)

var ErrInvalidSort = fmt.Errorf("invalid sort, expected one of %s, %s, %s, %s",
	SortDateDesc, SortDateAsc, SortAmountAsc, SortAmountDesc)

// ListQuery is a filtered, sorted, paginated list request.
type ListQuery struct {
	Filter   filter.Descriptor
	Page     int
	PageSize int
	Sort     string
}

// Normalize fills defaults and clamps the page and page size.
func (q ListQuery) Normalize() (ListQuery, error) {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Page > MaxPage {
		q.Page = MaxPage
	}
	if q.PageSize < 1 {
		q.PageSize = DefaultPageSize
	}
	if q.PageSize > MaxPageSize {
		q.PageSize = MaxPageSize
	}
	switch q.Sort {
	case "":
		q.Sort = SortDateDesc
	case SortDateDesc, SortDateAsc, SortAmountAsc, SortAmountDesc:
	default:
		return q, ErrInvalidSort
	}
	if err := q.Filter.Validate(); err != nil {
		return q, err
	}
	return q, nil
}

// Page is one page of a list result.
type Page[T any] struct {
	Items      []T
	Page       int
	PageSize   int
	Total      int64
	TotalPages int
}

// Paginate slices items for q. Items must already be filtered and sorted.
func Paginate[T any](items []T, q ListQuery) Page[T] {
	total := len(items)
	pages := (total + q.PageSize - 1) / q.PageSize
	out := []T{}
	if q.Page >= 1 && q.Page-1 < pages {
		start := (q.Page - 1) * q.PageSize
		out = items[start:min(start+q.PageSize, total)]
	}
	return Page[T]{Items: out, Page: q.Page, PageSize: q.PageSize, Total: int64(total), TotalPages: pages}
}

// sortByDateAmount sorts records in place. Ties keep their input order.
func sortByDateAmount[T any](items []T, order string, date func(T) core.Date, amount func(T) core.Money) {
	slices.SortStableFunc(items, func(a, b T) int {
		switch order {
		case SortDateAsc:
			return date(a).Compare(date(b).Time)
		case SortAmountAsc:
			return cmp.Compare(amount(a).Cents, amount(b).Cents)
		case SortAmountDesc:
			return cmp.Compare(amount(b).Cents, amount(a).Cents)
		default:
			return date(b).Compare(date(a).Time)
		}
	})
}

// span converts a descriptor into the half-open YYYY-MM-DD range used to
// pre-select rows in SQL. Empty strings mean unbounded.
func span(d filter.Descriptor) (from, to string) {
	lo, hi, ok := d.Bounds()
	if !ok {
		return "", ""
	}
	return lo.Format(time.DateOnly), hi.Format(time.DateOnly)
}
