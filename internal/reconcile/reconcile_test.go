package reconcile

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flujo/internal/core"
)

type fakeStore struct {
	baseCurrency string
	confirmed    map[string]core.RealizedTransaction
	created      []core.RealizedTransaction
	confirmErr   error
}

func (f *fakeStore) BaseCurrency(ctx context.Context, userID, defaultCode string) (string, error) {
	if f.baseCurrency == "" {
		return defaultCode, nil
	}
	return f.baseCurrency, nil
}

func (f *fakeStore) ConfirmOccurrence(ctx context.Context, occurrenceID string, t core.RealizedTransaction) error {
	if f.confirmErr != nil {
		return f.confirmErr
	}
	if f.confirmed == nil {
		f.confirmed = map[string]core.RealizedTransaction{}
	}
	f.confirmed[occurrenceID] = t
	return nil
}

func (f *fakeStore) CreateTransaction(ctx context.Context, t core.RealizedTransaction) (core.RealizedTransaction, error) {
	if t.ID == "" {
		t.ID = "generated"
	}
	f.created = append(f.created, t)
	return t, nil
}

type fakeResolver struct {
	rate  decimal.Decimal
	err   error
	calls int
}

func (f *fakeResolver) Rate(ctx context.Context, source, target string) (decimal.Decimal, error) {
	f.calls++
	if f.err != nil {
		return decimal.Decimal{}, f.err
	}
	return f.rate, nil
}

type fakePublisher struct {
	published []core.RealizedTransaction
	err       error
}

func (f *fakePublisher) PublishTransactionSync(ctx context.Context, t core.RealizedTransaction) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, t)
	return nil
}

func eurOccurrence() core.PendingOccurrence {
	return core.PendingOccurrence{
		ID:                  "occ-1",
		DueDate:             core.NewDate(2026, 2, 13),
		Status:              core.StatusPending,
		Description:         "Berlin office rent",
		Direction:           core.Expense,
		Amount:              decimal.RequireFromString("100"),
		AccountID:           "acc-eur",
		AccountCurrencyCode: "EUR",
		CategoryID:          "cat-1",
	}
}

func newTestEngine(store *fakeStore, resolver *fakeResolver, pub Publisher) *Engine {
	e := New(store, resolver, pub, "default", "USD")
	e.now = func() time.Time {
		return time.Date(2026, 2, 13, 15, 30, 0, 0, time.UTC)
	}
	return e
}

func TestConfirm_FreezesCrossCurrencyRate(t *testing.T) {
	store := &fakeStore{baseCurrency: "USD"}
	resolver := &fakeResolver{rate: decimal.RequireFromString("1.08")}
	pub := &fakePublisher{}
	e := newTestEngine(store, resolver, pub)

	tx, err := e.Confirm(context.Background(), eurOccurrence())
	require.NoError(t, err)

	require.True(t, tx.ExchangeRate.Valid)
	assert.Equal(t, "1.08", tx.ExchangeRate.Decimal.String())
	assert.True(t, tx.AmountInBase().Equal(decimal.RequireFromString("108")),
		"100 EUR at 1.08 = 108 USD, got %s", tx.AmountInBase())

	stored, ok := store.confirmed["occ-1"]
	require.True(t, ok, "occurrence must be confirmed in storage")
	assert.Equal(t, tx.ID, stored.ID)
	require.Len(t, pub.published, 1)
	assert.Equal(t, tx.ID, pub.published[0].ID)
}

func TestConfirm_SameCurrencyFreezesNoRate(t *testing.T) {
	store := &fakeStore{baseCurrency: "EUR"}
	resolver := &fakeResolver{rate: decimal.RequireFromString("999")}
	e := newTestEngine(store, resolver, &fakePublisher{})

	tx, err := e.Confirm(context.Background(), eurOccurrence())
	require.NoError(t, err)

	assert.False(t, tx.ExchangeRate.Valid, "same-currency confirm must not freeze a rate")
	assert.Zero(t, resolver.calls, "same-currency confirm must not hit the resolver")
	assert.True(t, tx.AmountInBase().Equal(decimal.RequireFromString("100")))
}

func TestConfirm_RateUnavailableWritesNothing(t *testing.T) {
	store := &fakeStore{baseCurrency: "USD"}
	resolver := &fakeResolver{err: core.ErrRateUnavailable}
	e := newTestEngine(store, resolver, &fakePublisher{})

	_, err := e.Confirm(context.Background(), eurOccurrence())
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrRateUnavailable)
	assert.Empty(t, store.confirmed, "failed rate resolution must leave storage untouched")
}

func TestConfirm_PublishFailureDoesNotUndoConfirm(t *testing.T) {
	store := &fakeStore{baseCurrency: "USD"}
	resolver := &fakeResolver{rate: decimal.RequireFromString("1.08")}
	pub := &fakePublisher{err: errors.New("broker down")}
	e := newTestEngine(store, resolver, pub)

	tx, err := e.Confirm(context.Background(), eurOccurrence())
	require.NoError(t, err)
	assert.NotEmpty(t, tx.ID)
	assert.Len(t, store.confirmed, 1)
}

func TestConfirm_StorageConflictSurfaces(t *testing.T) {
	store := &fakeStore{baseCurrency: "USD", confirmErr: core.ErrNotFound}
	resolver := &fakeResolver{rate: decimal.RequireFromString("1.08")}
	e := newTestEngine(store, resolver, &fakePublisher{})

	_, err := e.Confirm(context.Background(), eurOccurrence())
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestCreateManual(t *testing.T) {
	store := &fakeStore{baseCurrency: "USD"}
	resolver := &fakeResolver{rate: decimal.RequireFromString("0.92")}
	pub := &fakePublisher{}
	e := newTestEngine(store, resolver, pub)

	tx, err := e.CreateManual(context.Background(), core.RealizedTransaction{
		Amount:              decimal.RequireFromString("12.50"),
		Direction:           core.Income,
		Description:         "Refund",
		AccountID:           "acc-gbp",
		AccountCurrencyCode: "GBP",
		CategoryID:          "cat-2",
	})
	require.NoError(t, err)

	assert.False(t, tx.Date.IsZero(), "manual entry without a date gets the current instant")
	require.True(t, tx.ExchangeRate.Valid)
	assert.Equal(t, "0.92", tx.ExchangeRate.Decimal.String())
	require.Len(t, store.created, 1)
	assert.Len(t, pub.published, 1)
}

func TestCreateManual_RejectsInvalidInput(t *testing.T) {
	store := &fakeStore{baseCurrency: "USD"}
	e := newTestEngine(store, &fakeResolver{}, &fakePublisher{})

	_, err := e.CreateManual(context.Background(), core.RealizedTransaction{
		Amount:    decimal.RequireFromString("10"),
		Direction: core.Expense,
		// Description missing.
		AccountCurrencyCode: "USD",
	})
	require.Error(t, err)
	assert.True(t, core.IsValidation(err), "expected validation error, got %v", err)
	assert.Empty(t, store.created)
}
