// Package report derives read-only views over the realized ledger: the
// day-grouped history feed and monthly totals. All grouping and windowing
// uses local calendar days in an explicitly supplied location, because a
// transaction stamped 23:30 UTC can belong to tomorrow for the user.
package report

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"flujo/internal/core"
	"flujo/internal/rates"
)

// Store is the read slice of the repository the reports aggregate over.
type Store interface {
	ListTransactions(ctx context.Context) ([]core.RealizedTransaction, error)
	BaseCurrency(ctx context.Context, userID, defaultCode string) (string, error)
}

type Service struct {
	store       Store
	resolver    rates.Resolver
	loc         *time.Location
	userID      string
	defaultBase string
}

func New(store Store, resolver rates.Resolver, loc *time.Location, userID, defaultBase string) *Service {
	if loc == nil {
		loc = time.Local
	}
	return &Service{
		store:       store,
		resolver:    resolver,
		loc:         loc,
		userID:      userID,
		defaultBase: defaultBase,
	}
}

// GroupByLocalDate buckets transactions by their local calendar day. Groups
// come newest day first; within a day, newest transaction first.
func GroupByLocalDate(txs []core.RealizedTransaction, loc *time.Location) []core.DayGroup {
	buckets := map[string][]core.RealizedTransaction{}
	for _, t := range txs {
		key := t.Date.In(loc).Format("2006-01-02")
		buckets[key] = append(buckets[key], t)
	}

	groups := make([]core.DayGroup, 0, len(buckets))
	for key, items := range buckets {
		sort.Slice(items, func(i, j int) bool {
			return items[i].Date.After(items[j].Date)
		})
		groups = append(groups, core.DayGroup{DateKey: key, Items: items})
	}
	sort.Slice(groups, func(i, j int) bool {
		return groups[i].DateKey > groups[j].DateKey
	})
	return groups
}

// History returns the full ledger as a day-grouped feed.
func (s *Service) History(ctx context.Context) ([]core.DayGroup, error) {
	txs, err := s.store.ListTransactions(ctx)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return GroupByLocalDate(txs, s.loc), nil
}

// SummarizeMonth totals one month window. Each transaction contributes its
// frozen-rate base amount; the totals are then converted to displayCurrency
// with a current rate. When that second conversion fails the summary falls
// back to base currency and is marked approximate rather than erroring.
func (s *Service) SummarizeMonth(ctx context.Context, year, month int, displayCurrency string) (core.MonthlySummary, error) {
	if month < 1 || month > 12 {
		return core.MonthlySummary{}, &core.ValidationError{Field: "month", Reason: "must be 1-12"}
	}

	base, err := s.store.BaseCurrency(ctx, s.userID, s.defaultBase)
	if err != nil {
		return core.MonthlySummary{}, fmt.Errorf("resolve base currency: %w", err)
	}

	txs, err := s.store.ListTransactions(ctx)
	if err != nil {
		return core.MonthlySummary{}, fmt.Errorf("list transactions: %w", err)
	}

	income := decimal.Zero
	spending := decimal.Zero
	for _, t := range txs {
		local := t.Date.In(s.loc)
		if local.Year() != year || int(local.Month()) != month {
			continue
		}
		if t.Direction == core.Income {
			income = income.Add(t.AmountInBase())
		} else {
			spending = spending.Add(t.AmountInBase())
		}
	}

	summary := core.MonthlySummary{
		Year:          year,
		Month:         month,
		TotalIncome:   income,
		TotalSpending: spending,
		Balance:       income.Sub(spending),
		CurrencyCode:  base,
	}

	if displayCurrency == "" || displayCurrency == base {
		return summary, nil
	}

	rate, err := s.resolver.Rate(ctx, base, displayCurrency)
	if err != nil {
		slog.WarnContext(ctx, "Display currency conversion unavailable, falling back to base",
			"base", base,
			"display", displayCurrency,
			"error", err)
		summary.Approximate = true
		return summary, nil
	}

	summary.TotalIncome = income.Mul(rate)
	summary.TotalSpending = spending.Mul(rate)
	summary.Balance = summary.TotalIncome.Sub(summary.TotalSpending)
	summary.CurrencyCode = displayCurrency
	return summary, nil
}
