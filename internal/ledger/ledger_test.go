package ledger

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flujo/internal/core"
	"flujo/internal/storage"
)

type memStore struct {
	mu   sync.Mutex
	occs map[string]core.PendingOccurrence
}

func newMemStore(occs ...core.PendingOccurrence) *memStore {
	s := &memStore{occs: map[string]core.PendingOccurrence{}}
	for _, o := range occs {
		s.occs[o.ID] = o
	}
	return s
}

func (s *memStore) ListOccurrences(ctx context.Context, f storage.OccurrenceFilter) ([]core.PendingOccurrence, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.PendingOccurrence
	for _, o := range s.occs {
		if o.Status.Terminal() {
			continue
		}
		if f.Direction != "" && o.Direction != f.Direction {
			continue
		}
		out = append(out, o)
	}
	return out, nil
}

func (s *memStore) GetOccurrence(ctx context.Context, id string) (core.PendingOccurrence, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.occs[id]
	if !ok {
		return core.PendingOccurrence{}, core.ErrNotFound
	}
	return o, nil
}

func (s *memStore) RescheduleOccurrence(ctx context.Context, id string, newDueDate core.Date) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.occs[id]
	if !ok || o.Status.Terminal() {
		return core.ErrNotFound
	}
	o.DueDate = newDueDate
	o.Status = core.StatusRescheduled
	s.occs[id] = o
	return nil
}

func (s *memStore) CancelOccurrence(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.occs[id]
	if !ok || o.Status.Terminal() {
		return core.ErrNotFound
	}
	o.Status = core.StatusCancelled
	s.occs[id] = o
	return nil
}

// memConfirmer marks the occurrence confirmed in the backing store, like the
// real reconciliation engine does inside its storage transaction.
type memConfirmer struct {
	store *memStore
	calls int
}

func (c *memConfirmer) Confirm(ctx context.Context, occ core.PendingOccurrence) (core.RealizedTransaction, error) {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	c.calls++
	stored := c.store.occs[occ.ID]
	if stored.Status.Terminal() {
		return core.RealizedTransaction{}, core.ErrNotFound
	}
	stored.Status = core.StatusConfirmed
	c.store.occs[occ.ID] = stored
	return core.RealizedTransaction{
		ID:     fmt.Sprintf("tx-for-%s", occ.ID),
		Amount: occ.Amount,
	}, nil
}

func pendingOcc(id string) core.PendingOccurrence {
	return core.PendingOccurrence{
		ID:          id,
		DueDate:     core.NewDate(2026, 2, 13),
		Status:      core.StatusPending,
		Description: "Gym membership",
		Direction:   core.Expense,
		Amount:      decimal.RequireFromString("45.50"),
	}
}

func newTestService(store *memStore, confirmer Confirmer) *Service {
	s := New(store, confirmer, time.UTC)
	s.now = func() time.Time {
		return time.Date(2026, 2, 13, 10, 0, 0, 0, time.UTC)
	}
	return s
}

func TestReschedule_RejectsTodayAndPast(t *testing.T) {
	store := newMemStore(pendingOcc("occ-1"))
	s := newTestService(store, nil)

	for _, date := range []core.Date{
		core.NewDate(2026, 2, 13), // today
		core.NewDate(2026, 2, 12), // yesterday
	} {
		_, err := s.Reschedule(context.Background(), "occ-1", date)
		require.Error(t, err)
		assert.True(t, core.IsValidation(err), "expected validation error for %s, got %v", date, err)
	}

	got, err := store.GetOccurrence(context.Background(), "occ-1")
	require.NoError(t, err)
	assert.Equal(t, core.StatusPending, got.Status, "failed reschedule must not touch the occurrence")
}

func TestReschedule_MovesDueDateForward(t *testing.T) {
	store := newMemStore(pendingOcc("occ-1"))
	s := newTestService(store, nil)

	occ, err := s.Reschedule(context.Background(), "occ-1", core.NewDate(2026, 2, 20))
	require.NoError(t, err)
	assert.Equal(t, "2026-02-20", occ.DueDate.String())
	assert.Equal(t, core.StatusRescheduled, occ.Status)

	// A second reschedule of the same occurrence is allowed.
	occ, err = s.Reschedule(context.Background(), "occ-1", core.NewDate(2026, 3, 1))
	require.NoError(t, err)
	assert.Equal(t, "2026-03-01", occ.DueDate.String())
	assert.Equal(t, core.StatusRescheduled, occ.Status)
}

func TestCancel_ThenConfirmIsNotFound(t *testing.T) {
	store := newMemStore(pendingOcc("occ-1"))
	confirmer := &memConfirmer{store: store}
	s := newTestService(store, confirmer)

	require.NoError(t, s.Cancel(context.Background(), "occ-1"))

	_, err := s.Confirm(context.Background(), "occ-1")
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.Zero(t, confirmer.calls, "terminal occurrence must not reach the confirmer")
}

func TestConfirm_ReturnsRealizedTransaction(t *testing.T) {
	store := newMemStore(pendingOcc("occ-1"))
	confirmer := &memConfirmer{store: store}
	s := newTestService(store, confirmer)

	tx, err := s.Confirm(context.Background(), "occ-1")
	require.NoError(t, err)
	assert.Equal(t, "tx-for-occ-1", tx.ID)

	_, err = s.Confirm(context.Background(), "occ-1")
	assert.ErrorIs(t, err, core.ErrNotFound, "second confirm must observe the terminal state")
	assert.Equal(t, 1, confirmer.calls)
}

func TestConfirm_ConcurrentCallsSerializeToOneWinner(t *testing.T) {
	store := newMemStore(pendingOcc("occ-1"))
	confirmer := &memConfirmer{store: store}
	s := newTestService(store, confirmer)

	const attempts = 8
	errs := make(chan error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Confirm(context.Background(), "occ-1")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	wins := 0
	for err := range errs {
		if err == nil {
			wins++
		} else {
			assert.ErrorIs(t, err, core.ErrNotFound)
		}
	}
	assert.Equal(t, 1, wins, "exactly one concurrent confirm must win")
	assert.Equal(t, 1, confirmer.calls)
}

func TestKeyedMutex_ReleasesEntries(t *testing.T) {
	km := newKeyedMutex()

	unlock := km.Lock("a")
	assert.Len(t, km.locks, 1)
	unlock()
	assert.Empty(t, km.locks, "released keys must not accumulate")
}

func TestKeyedMutex_IndependentKeysDoNotBlock(t *testing.T) {
	km := newKeyedMutex()
	unlockA := km.Lock("a")
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlockB := km.Lock("b")
		unlockB()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("lock on an independent key blocked")
	}
}
