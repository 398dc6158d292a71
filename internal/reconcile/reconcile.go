// Package reconcile converts approved obligations into ledger entries. The
// exchange rate is resolved before anything is written and frozen into the
// transaction, so later rate drift never changes historical records.
package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"flujo/internal/core"
	"flujo/internal/rates"
)

// Store is the repository slice the engine writes through.
type Store interface {
	BaseCurrency(ctx context.Context, userID, defaultCode string) (string, error)
	ConfirmOccurrence(ctx context.Context, occurrenceID string, t core.RealizedTransaction) error
	CreateTransaction(ctx context.Context, t core.RealizedTransaction) (core.RealizedTransaction, error)
}

// Publisher mirrors new ledger entries to the export pipeline. Publishing is
// best effort: a broker outage must not undo a confirmed transaction, the
// export worker sweeps unsynced rows later.
type Publisher interface {
	PublishTransactionSync(ctx context.Context, t core.RealizedTransaction) error
}

type Engine struct {
	store       Store
	resolver    rates.Resolver
	publisher   Publisher
	userID      string
	defaultBase string
	now         func() time.Time
}

func New(store Store, resolver rates.Resolver, publisher Publisher, userID, defaultBase string) *Engine {
	return &Engine{
		store:       store,
		resolver:    resolver,
		publisher:   publisher,
		userID:      userID,
		defaultBase: defaultBase,
		now:         time.Now,
	}
}

// Confirm realizes a pending occurrence: resolve the frozen rate, write the
// status flip and the ledger entry in one storage transaction, then announce
// the new entry. If the rate cannot be resolved nothing is written and the
// occurrence stays open.
func (e *Engine) Confirm(ctx context.Context, occ core.PendingOccurrence) (core.RealizedTransaction, error) {
	rate, err := e.frozenRate(ctx, occ.AccountCurrencyCode)
	if err != nil {
		return core.RealizedTransaction{}, err
	}

	t := core.RealizedTransaction{
		ID:                  uuid.NewString(),
		Date:                e.now(),
		Amount:              occ.Amount.Abs(),
		Direction:           occ.Direction,
		Description:         occ.Description,
		AccountID:           occ.AccountID,
		AccountCurrencyCode: occ.AccountCurrencyCode,
		CategoryID:          occ.CategoryID,
		ExchangeRate:        rate,
		Icon:                occ.Icon,
	}
	if err := t.Validate(); err != nil {
		return core.RealizedTransaction{}, err
	}

	if err := e.store.ConfirmOccurrence(ctx, occ.ID, t); err != nil {
		return core.RealizedTransaction{}, err
	}

	e.announce(ctx, t)
	return t, nil
}

// CreateManual records a transaction entered directly, outside any recurring
// schedule. The same rate-freezing rules apply.
func (e *Engine) CreateManual(ctx context.Context, t core.RealizedTransaction) (core.RealizedTransaction, error) {
	if t.Date.IsZero() {
		t.Date = e.now()
	}
	t.Amount = t.Amount.Abs()
	if err := t.Validate(); err != nil {
		return core.RealizedTransaction{}, err
	}

	rate, err := e.frozenRate(ctx, t.AccountCurrencyCode)
	if err != nil {
		return core.RealizedTransaction{}, err
	}
	t.ExchangeRate = rate

	created, err := e.store.CreateTransaction(ctx, t)
	if err != nil {
		return core.RealizedTransaction{}, err
	}

	e.announce(ctx, created)
	return created, nil
}

// frozenRate returns the account→base rate to freeze, or an invalid
// NullDecimal when the account already holds the base currency.
func (e *Engine) frozenRate(ctx context.Context, accountCurrency string) (decimal.NullDecimal, error) {
	base, err := e.store.BaseCurrency(ctx, e.userID, e.defaultBase)
	if err != nil {
		return decimal.NullDecimal{}, fmt.Errorf("resolve base currency: %w", err)
	}
	if accountCurrency == base {
		return decimal.NullDecimal{}, nil
	}

	rate, err := e.resolver.Rate(ctx, accountCurrency, base)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	return decimal.NewNullDecimal(rate), nil
}

func (e *Engine) announce(ctx context.Context, t core.RealizedTransaction) {
	if e.publisher == nil {
		return
	}
	if err := e.publisher.PublishTransactionSync(ctx, t); err != nil {
		slog.WarnContext(ctx, "Failed to publish transaction for export, will be swept later",
			"transaction_id", t.ID,
			"error", err)
	}
}
