// Package core provides money parsing and handling utilities.
//
// Amounts are kept as integer cents everywhere; decimal strings coming from
// forms and JSON bodies are converted once at the edge.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

var maxCents = decimal.New(1<<62, 0)

// ParseDecimalToCents converts a decimal string to cents with half-up rounding.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators. The
// result is always positive cents; negative, zero and malformed values
// return ErrInvalidAmount.
//
// Examples:
//
//	ParseDecimalToCents("12.34")  -> 1234, nil
//	ParseDecimalToCents("12,345") -> 1235, nil
//	ParseDecimalToCents("12.344") -> 1234, nil
func ParseDecimalToCents(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return 0, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.ContainsAny(s, "eE") {
		return 0, ErrInvalidAmount
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	cents := d.Shift(2).Round(0)
	if !cents.IsPositive() || cents.GreaterThan(maxCents) {
		return 0, ErrInvalidAmount
	}
	return cents.IntPart(), nil
}

// Decimal returns the amount in units as an exact decimal.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents, -2)
}

// String formats the amount with two fraction digits, e.g. "-12.30".
func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}

// Euros returns the value as a float64 for display and chart series only.
func (m Money) Euros() float64 {
	return m.Decimal().InexactFloat64()
}

func (m Money) Add(o Money) Money { return Money{Cents: m.Cents + o.Cents} }

func (m Money) Neg() Money { return Money{Cents: -m.Cents} }
