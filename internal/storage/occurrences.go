package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"flujo/internal/core"
)

// OccurrenceFilter narrows an occurrence listing. Zero values mean "any".
type OccurrenceFilter struct {
	Direction core.Direction
	Status    core.Status
}

// ListOccurrences returns occurrences matching the filter, due date
// ascending with id as the deterministic tie-breaker. Without a status
// filter only non-terminal occurrences are returned: that is the pending
// set the client shows.
func (r *SQLiteRepository) ListOccurrences(ctx context.Context, f OccurrenceFilter) ([]core.PendingOccurrence, error) {
	query := `
		SELECT id, recurring_definition_id, due_date, status, description, direction,
		       amount, account_id, account_currency_code, category_id, category_name, icon
		FROM pending_occurrences`

	var (
		where []string
		args  []any
	)
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(f.Status))
	} else {
		where = append(where, "status IN (?, ?)")
		args = append(args, string(core.StatusPending), string(core.StatusRescheduled))
	}
	if f.Direction != "" {
		where = append(where, "direction = ?")
		args = append(args, string(f.Direction))
	}

	query += " WHERE " + strings.Join(where, " AND ") + " ORDER BY due_date, id"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list occurrences: %w", err)
	}
	defer rows.Close()

	var occurrences []core.PendingOccurrence
	for rows.Next() {
		occ, err := scanOccurrence(rows)
		if err != nil {
			return nil, err
		}
		occurrences = append(occurrences, occ)
	}
	return occurrences, rows.Err()
}

// GetOccurrence returns one occurrence by id.
func (r *SQLiteRepository) GetOccurrence(ctx context.Context, id string) (core.PendingOccurrence, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, recurring_definition_id, due_date, status, description, direction,
		       amount, account_id, account_currency_code, category_id, category_name, icon
		FROM pending_occurrences WHERE id = ?`, id)
	occ, err := scanOccurrence(row)
	if err != nil {
		return core.PendingOccurrence{}, err
	}
	return occ, nil
}

// RescheduleOccurrence moves the due date forward and marks the occurrence
// rescheduled. The guard restricts the transition to non-terminal states.
func (r *SQLiteRepository) RescheduleOccurrence(ctx context.Context, id string, newDueDate core.Date) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE pending_occurrences
		SET due_date = ?, status = ?
		WHERE id = ? AND status IN (?, ?)`,
		newDueDate.String(), string(core.StatusRescheduled),
		id, string(core.StatusPending), string(core.StatusRescheduled))
	if err != nil {
		return fmt.Errorf("reschedule occurrence: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("occurrence %s: %w", id, core.ErrNotFound)
	}

	slog.InfoContext(ctx, "Occurrence rescheduled",
		"occurrence_id", id, "due_date", newDueDate.String())
	return nil
}

// CancelOccurrence terminally abandons an occurrence. No ledger effect.
func (r *SQLiteRepository) CancelOccurrence(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE pending_occurrences
		SET status = ?
		WHERE id = ? AND status IN (?, ?)`,
		string(core.StatusCancelled),
		id, string(core.StatusPending), string(core.StatusRescheduled))
	if err != nil {
		return fmt.Errorf("cancel occurrence: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("occurrence %s: %w", id, core.ErrNotFound)
	}

	slog.InfoContext(ctx, "Occurrence cancelled", "occurrence_id", id)
	return nil
}

// ConfirmOccurrence marks the occurrence confirmed and inserts the realized
// transaction in one SQL transaction: either both happen or neither is
// observed. Returns ErrNotFound when the occurrence was already resolved by
// a concurrent actor.
func (r *SQLiteRepository) ConfirmOccurrence(ctx context.Context, occurrenceID string, t core.RealizedTransaction) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin confirm: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE pending_occurrences
		SET status = ?
		WHERE id = ? AND status IN (?, ?)`,
		string(core.StatusConfirmed),
		occurrenceID, string(core.StatusPending), string(core.StatusRescheduled))
	if err != nil {
		return fmt.Errorf("mark occurrence confirmed: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("occurrence %s: %w", occurrenceID, core.ErrNotFound)
	}

	if err := insertTransaction(ctx, tx, t); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit confirm: %w", err)
	}

	slog.InfoContext(ctx, "Occurrence confirmed",
		"occurrence_id", occurrenceID,
		"transaction_id", t.ID,
		"exchange_rate", rateString(t.ExchangeRate))
	return nil
}

func rateString(rate decimal.NullDecimal) string {
	if !rate.Valid {
		return "none"
	}
	return rate.Decimal.String()
}

func scanOccurrence(row rowScanner) (core.PendingOccurrence, error) {
	var (
		occ               core.PendingOccurrence
		dueDate, status   string
		direction, amount string
	)
	err := row.Scan(&occ.ID, &occ.RecurringDefinitionID, &dueDate, &status,
		&occ.Description, &direction, &amount, &occ.AccountID,
		&occ.AccountCurrencyCode, &occ.CategoryID, &occ.CategoryName, &occ.Icon)
	if errors.Is(err, sql.ErrNoRows) {
		return core.PendingOccurrence{}, fmt.Errorf("occurrence: %w", core.ErrNotFound)
	}
	if err != nil {
		return core.PendingOccurrence{}, fmt.Errorf("scan occurrence: %w", err)
	}

	if occ.DueDate, err = parseStoredDate(dueDate); err != nil {
		return core.PendingOccurrence{}, err
	}
	occ.Status = core.Status(status)
	occ.Direction = core.Direction(direction)
	if occ.Amount, err = decimal.NewFromString(amount); err != nil {
		return core.PendingOccurrence{}, fmt.Errorf("parse occurrence amount %q: %w", amount, err)
	}
	return occ, nil
}
