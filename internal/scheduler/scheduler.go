// Package scheduler turns recurring definitions into concrete pending
// occurrences. Each materialization advances the definition's
// last-generated marker in the same storage transaction that inserts the
// occurrence, which is what makes the operation idempotent under retry.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"flujo/internal/core"
)

// Store is the slice of the repository the scheduler needs.
type Store interface {
	ListDefinitions(ctx context.Context) ([]core.RecurringDefinition, error)
	GetDefinition(ctx context.Context, id string) (core.RecurringDefinition, error)
	AccountCurrency(ctx context.Context, accountID string) (string, error)
	GetCategory(ctx context.Context, categoryID string) (core.Category, error)
	MaterializeOccurrence(ctx context.Context, definitionID string, expectedPrev core.Date, occ core.PendingOccurrence) (bool, error)
}

type Scheduler struct {
	store Store
}

func New(store Store) *Scheduler {
	return &Scheduler{store: store}
}

// NextDue computes the next due date for a definition. ok is false when the
// schedule is exhausted (the next date would pass the inclusive end date).
// An unrecognized frequency is a configuration error, never a silent default.
func NextDue(d core.RecurringDefinition) (next core.Date, ok bool, err error) {
	if _, err := core.ParseFrequency(string(d.Frequency)); err != nil {
		return core.Date{}, false, err
	}

	if d.LastGeneratedAt.IsZero() {
		next = d.StartDate
	} else {
		next, err = d.LastGeneratedAt.AddStep(d.Frequency)
		if err != nil {
			return core.Date{}, false, err
		}
	}

	if !d.EndDate.IsZero() && next.After(d.EndDate.Time) {
		return core.Date{}, false, nil
	}
	return next, true, nil
}

// MaterializeDue materializes at most one occurrence for the definition:
// the next due date, when it is on or before asOf. Returns nil when nothing
// is due yet or the schedule is exhausted.
func (s *Scheduler) MaterializeDue(ctx context.Context, definitionID string, asOf core.Date) (*core.PendingOccurrence, error) {
	def, err := s.store.GetDefinition(ctx, definitionID)
	if err != nil {
		return nil, fmt.Errorf("load definition: %w", err)
	}

	next, ok, err := NextDue(def)
	if err != nil {
		return nil, err
	}
	if !ok || next.After(asOf.Time) {
		return nil, nil
	}

	currency, err := s.store.AccountCurrency(ctx, def.AccountID)
	if err != nil {
		return nil, fmt.Errorf("resolve account currency: %w", err)
	}

	categoryName := ""
	if cat, err := s.store.GetCategory(ctx, def.CategoryID); err == nil {
		categoryName = cat.Name
	}

	occ := core.PendingOccurrence{
		ID:                    uuid.NewString(),
		RecurringDefinitionID: def.ID,
		DueDate:               next,
		Status:                core.StatusPending,
		Description:           def.Description,
		Direction:             def.Direction,
		Amount:                def.Amount,
		AccountID:             def.AccountID,
		AccountCurrencyCode:   currency,
		CategoryID:            def.CategoryID,
		CategoryName:          categoryName,
		Icon:                  def.Icon,
	}

	advanced, err := s.store.MaterializeOccurrence(ctx, def.ID, def.LastGeneratedAt, occ)
	if err != nil {
		return nil, fmt.Errorf("materialize occurrence: %w", err)
	}
	if !advanced {
		// A concurrent materialization already produced this step.
		return nil, nil
	}
	return &occ, nil
}

// ProcessDue is the worker entry point: it walks every definition and
// drains its backlog of due occurrences up to asOf. A definition with a
// configuration problem is skipped; the others keep processing.
func (s *Scheduler) ProcessDue(ctx context.Context, asOf core.Date) (int, error) {
	defs, err := s.store.ListDefinitions(ctx)
	if err != nil {
		return 0, fmt.Errorf("list definitions: %w", err)
	}

	slog.InfoContext(ctx, "Processing recurring definitions",
		"total", len(defs),
		"as_of", asOf.String())

	materialized := 0
	for _, def := range defs {
		for {
			occ, err := s.MaterializeDue(ctx, def.ID, asOf)
			if err != nil {
				if core.IsConfiguration(err) {
					slog.ErrorContext(ctx, "Definition has invalid schedule configuration, skipping",
						"definition_id", def.ID,
						"frequency", string(def.Frequency),
						"error", err)
				} else {
					slog.ErrorContext(ctx, "Failed to materialize occurrence",
						"definition_id", def.ID,
						"error", err)
				}
				break
			}
			if occ == nil {
				break
			}
			materialized++
			slog.InfoContext(ctx, "Created pending occurrence",
				"definition_id", def.ID,
				"occurrence_id", occ.ID,
				"due_date", occ.DueDate.String(),
				"amount", occ.Amount.String())
		}
	}

	slog.InfoContext(ctx, "Recurring definition processing complete",
		"materialized", materialized,
		"total_checked", len(defs))

	return materialized, nil
}
