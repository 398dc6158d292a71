package report

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flujo/internal/core"
)

type fakeStore struct {
	txs  []core.RealizedTransaction
	base string
}

func (f *fakeStore) ListTransactions(ctx context.Context) ([]core.RealizedTransaction, error) {
	return f.txs, nil
}

func (f *fakeStore) BaseCurrency(ctx context.Context, userID, defaultCode string) (string, error) {
	if f.base == "" {
		return defaultCode, nil
	}
	return f.base, nil
}

type fakeResolver struct {
	rate decimal.Decimal
	err  error
}

func (f *fakeResolver) Rate(ctx context.Context, source, target string) (decimal.Decimal, error) {
	if f.err != nil {
		return decimal.Decimal{}, f.err
	}
	return f.rate, nil
}

func tx(id string, at time.Time, amount string, dir core.Direction, rate string) core.RealizedTransaction {
	t := core.RealizedTransaction{
		ID:          id,
		Date:        at,
		Amount:      decimal.RequireFromString(amount),
		Direction:   dir,
		Description: id,
	}
	if rate != "" {
		t.ExchangeRate = decimal.NewNullDecimal(decimal.RequireFromString(rate))
	}
	return t
}

func TestGroupByLocalDate(t *testing.T) {
	txs := []core.RealizedTransaction{
		tx("a", time.Date(2026, 2, 13, 9, 0, 0, 0, time.UTC), "10", core.Expense, ""),
		tx("b", time.Date(2026, 2, 14, 8, 0, 0, 0, time.UTC), "20", core.Expense, ""),
		tx("c", time.Date(2026, 2, 13, 18, 0, 0, 0, time.UTC), "30", core.Income, ""),
	}

	groups := GroupByLocalDate(txs, time.UTC)
	require.Len(t, groups, 2)

	assert.Equal(t, "2026-02-14", groups[0].DateKey, "newest day first")
	assert.Equal(t, "2026-02-13", groups[1].DateKey)

	require.Len(t, groups[1].Items, 2)
	assert.Equal(t, "c", groups[1].Items[0].ID, "newest transaction first within a day")
	assert.Equal(t, "a", groups[1].Items[1].ID)
}

func TestGroupByLocalDate_UsesLocalDay(t *testing.T) {
	// 23:30 UTC on the 13th is already the 14th in UTC+2.
	plus2 := time.FixedZone("UTC+2", 2*60*60)
	txs := []core.RealizedTransaction{
		tx("late", time.Date(2026, 2, 13, 23, 30, 0, 0, time.UTC), "10", core.Expense, ""),
	}

	groups := GroupByLocalDate(txs, plus2)
	require.Len(t, groups, 1)
	assert.Equal(t, "2026-02-14", groups[0].DateKey)
}

func TestGroupByLocalDate_Empty(t *testing.T) {
	assert.Empty(t, GroupByLocalDate(nil, time.UTC))
}

func monthStore() *fakeStore {
	return &fakeStore{
		base: "USD",
		txs: []core.RealizedTransaction{
			// 100 EUR frozen at 1.08 = 108 USD spending.
			tx("rent", time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC), "100", core.Expense, "1.08"),
			// Native USD income.
			tx("salary", time.Date(2026, 2, 25, 12, 0, 0, 0, time.UTC), "3000", core.Income, ""),
			// Outside the window.
			tx("january", time.Date(2026, 1, 20, 12, 0, 0, 0, time.UTC), "500", core.Expense, ""),
		},
	}
}

func TestSummarizeMonth_BaseCurrency(t *testing.T) {
	s := New(monthStore(), &fakeResolver{}, time.UTC, "default", "USD")

	sum, err := s.SummarizeMonth(context.Background(), 2026, 2, "USD")
	require.NoError(t, err)

	assert.True(t, sum.TotalIncome.Equal(decimal.RequireFromString("3000")))
	assert.True(t, sum.TotalSpending.Equal(decimal.RequireFromString("108")))
	assert.True(t, sum.Balance.Equal(decimal.RequireFromString("2892")))
	assert.Equal(t, "USD", sum.CurrencyCode)
	assert.False(t, sum.Approximate)
}

func TestSummarizeMonth_DisplayCurrencyConversion(t *testing.T) {
	s := New(monthStore(), &fakeResolver{rate: decimal.RequireFromString("0.5")}, time.UTC, "default", "USD")

	sum, err := s.SummarizeMonth(context.Background(), 2026, 2, "EUR")
	require.NoError(t, err)

	assert.True(t, sum.TotalIncome.Equal(decimal.RequireFromString("1500")))
	assert.True(t, sum.TotalSpending.Equal(decimal.RequireFromString("54")))
	assert.Equal(t, "EUR", sum.CurrencyCode)
	assert.False(t, sum.Approximate)
}

func TestSummarizeMonth_FallsBackWhenDisplayRateUnavailable(t *testing.T) {
	s := New(monthStore(), &fakeResolver{err: core.ErrRateUnavailable}, time.UTC, "default", "USD")

	sum, err := s.SummarizeMonth(context.Background(), 2026, 2, "ARS")
	require.NoError(t, err, "display conversion failure degrades, never errors")

	assert.True(t, sum.Approximate)
	assert.Equal(t, "USD", sum.CurrencyCode)
	assert.True(t, sum.TotalSpending.Equal(decimal.RequireFromString("108")))
}

func TestSummarizeMonth_RejectsBadMonth(t *testing.T) {
	s := New(monthStore(), &fakeResolver{}, time.UTC, "default", "USD")

	_, err := s.SummarizeMonth(context.Background(), 2026, 13, "USD")
	require.Error(t, err)
	assert.True(t, core.IsValidation(err))
}
