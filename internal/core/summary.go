package core

import "github.com/shopspring/decimal"

// MonthlySummary is a derived report for one month window, expressed in a
// single display currency. It is recomputed on demand and never stored.
type MonthlySummary struct {
	Year          int
	Month         int // 1-12
	TotalIncome   decimal.Decimal
	TotalSpending decimal.Decimal
	Balance       decimal.Decimal
	CurrencyCode  string
	// Approximate is set when the requested display currency could not be
	// resolved and the totals fell back to the base currency.
	Approximate bool
}

// DayGroup is the set of transactions realized on one local calendar day.
type DayGroup struct {
	DateKey string // YYYY-MM-DD
	Items   []RealizedTransaction
}
