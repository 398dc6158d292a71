// Package ledger exposes the pending-approval surface: listing the open
// obligations and resolving them one by one. Every mutation of a given
// occurrence runs under a per-id lock, so concurrent resolve attempts on
// the same occurrence serialize and at most one of them wins.
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"flujo/internal/core"
	"flujo/internal/storage"
)

// Store is the occurrence slice of the repository.
type Store interface {
	ListOccurrences(ctx context.Context, f storage.OccurrenceFilter) ([]core.PendingOccurrence, error)
	GetOccurrence(ctx context.Context, id string) (core.PendingOccurrence, error)
	RescheduleOccurrence(ctx context.Context, id string, newDueDate core.Date) error
	CancelOccurrence(ctx context.Context, id string) error
}

// Confirmer turns a pending occurrence into a realized transaction. The
// reconciliation engine implements it.
type Confirmer interface {
	Confirm(ctx context.Context, occ core.PendingOccurrence) (core.RealizedTransaction, error)
}

type Service struct {
	store     Store
	confirmer Confirmer
	locks     *keyedMutex
	loc       *time.Location
	now       func() time.Time
}

func New(store Store, confirmer Confirmer, loc *time.Location) *Service {
	if loc == nil {
		loc = time.Local
	}
	return &Service{
		store:     store,
		confirmer: confirmer,
		locks:     newKeyedMutex(),
		loc:       loc,
		now:       time.Now,
	}
}

// List returns the open occurrences matching the filter, due date ascending.
func (s *Service) List(ctx context.Context, f storage.OccurrenceFilter) ([]core.PendingOccurrence, error) {
	return s.store.ListOccurrences(ctx, f)
}

// Get returns one occurrence regardless of its state.
func (s *Service) Get(ctx context.Context, id string) (core.PendingOccurrence, error) {
	return s.store.GetOccurrence(ctx, id)
}

// Reschedule moves an open occurrence to a later calendar day. The new date
// must be strictly after today; rescheduling an already-rescheduled
// occurrence again is allowed, re-validated against today each time.
func (s *Service) Reschedule(ctx context.Context, id string, newDueDate core.Date) (core.PendingOccurrence, error) {
	today := core.DateOf(s.now().In(s.loc))
	if !newDueDate.After(today.Time) {
		return core.PendingOccurrence{}, &core.ValidationError{
			Field:  "newDueDate",
			Reason: "must be after today",
		}
	}

	unlock := s.locks.Lock(id)
	defer unlock()

	if err := s.store.RescheduleOccurrence(ctx, id, newDueDate); err != nil {
		return core.PendingOccurrence{}, err
	}
	return s.store.GetOccurrence(ctx, id)
}

// Cancel terminally abandons an open occurrence without any ledger effect.
func (s *Service) Cancel(ctx context.Context, id string) error {
	unlock := s.locks.Lock(id)
	defer unlock()

	return s.store.CancelOccurrence(ctx, id)
}

// Confirm resolves an open occurrence into a realized transaction. A second
// confirm of the same id, or a confirm racing a cancel, loses the lock race
// and observes the terminal state as not found.
func (s *Service) Confirm(ctx context.Context, id string) (core.RealizedTransaction, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	occ, err := s.store.GetOccurrence(ctx, id)
	if err != nil {
		return core.RealizedTransaction{}, err
	}
	if occ.Status.Terminal() {
		return core.RealizedTransaction{}, fmt.Errorf("occurrence %s already %s: %w", id, occ.Status, core.ErrNotFound)
	}

	t, err := s.confirmer.Confirm(ctx, occ)
	if err != nil {
		return core.RealizedTransaction{}, err
	}

	slog.InfoContext(ctx, "Occurrence resolved",
		"occurrence_id", id,
		"transaction_id", t.ID)
	return t, nil
}
