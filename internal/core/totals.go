package core

import "github.com/shopspring/decimal"

// Totals holds exact per-currency sums and the number of contributing
// transactions for one chat and interval.
type Totals struct {
	Sums  map[Currency]decimal.Decimal
	Count int
}

// NewTotals returns totals with every supported currency present at zero.
func NewTotals() Totals {
	sums := make(map[Currency]decimal.Decimal, len(Currencies()))
	for _, c := range Currencies() {
		sums[c] = decimal.Zero
	}
	return Totals{Sums: sums}
}

// Add accounts for one transaction amount.
func (t *Totals) Add(c Currency, amount decimal.Decimal) {
	if t.Sums == nil {
		*t = NewTotals()
	}
	t.Sums[c] = t.Sum(c).Add(amount)
	t.Count++
}

// Sum returns the total for c, zero when nothing was recorded.
func (t Totals) Sum(c Currency) decimal.Decimal {
	if v, ok := t.Sums[c]; ok {
		return v
	}
	return decimal.Zero
}

// Visible returns the currencies to display. USD is shown whenever it is
// non-zero or when every total is zero; KHR only when non-zero.
func (t Totals) Visible() []Currency {
	usd := !t.Sum(USD).IsZero()
	khr := !t.Sum(KHR).IsZero()

	var out []Currency
	if usd || !khr {
		out = append(out, USD)
	}
	if khr {
		out = append(out, KHR)
	}
	return out
}

// FormatTotals renders one "<amount> <currency>" line per visible currency.
func FormatTotals(t Totals) []string {
	visible := t.Visible()
	lines := make([]string, 0, len(visible))
	for _, c := range visible {
		lines = append(lines, FormatAmount(t.Sum(c))+" "+c.String())
	}
	return lines
}
