// Package core provides the payment domain: transactions, amount handling,
// notification parsing and per-currency totals.
//
// This file contains amount parsing and display formatting.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ParseAmount converts a notification amount to a decimal.
//
// Thousands separators are stripped before conversion. The result must be
// strictly positive.
//
// Examples:
//
//	ParseAmount("29.00")      -> 29.00, nil
//	ParseAmount("1,250,000")  -> 1250000, nil
//	ParseAmount("0")          -> error
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	s = strings.TrimSuffix(s, ".")
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return decimal.Zero, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	if !d.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// FormatAmount renders d with two decimals and comma thousands separators,
// e.g. 1234567.5 -> "1,234,567.50".
func FormatAmount(d decimal.Decimal) string {
	s := d.StringFixed(2)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	intPart, frac, _ := strings.Cut(s, ".")
	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	out := b.String() + "." + frac
	if neg {
		return "-" + out
	}
	return out
}
