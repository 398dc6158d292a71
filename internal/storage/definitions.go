package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"flujo/internal/core"
)

// CreateDefinition stores a new recurring definition.
func (r *SQLiteRepository) CreateDefinition(ctx context.Context, d core.RecurringDefinition) (core.RecurringDefinition, error) {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO recurring_definitions
			(id, name, description, amount, direction, account_id, category_id,
			 frequency, start_date, end_date, last_generated_at, icon)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.Name, d.Description, d.Amount.String(), string(d.Direction),
		d.AccountID, d.CategoryID, string(d.Frequency),
		d.StartDate.String(), nullableDate(d.EndDate), nullableDate(d.LastGeneratedAt), d.Icon)
	if err != nil {
		return core.RecurringDefinition{}, fmt.Errorf("create definition: %w", err)
	}

	slog.InfoContext(ctx, "Recurring definition created",
		"definition_id", d.ID, "name", d.Name, "frequency", string(d.Frequency))
	return d, nil
}

// UpdateDefinition replaces the mutable fields of a definition.
// lastGeneratedAt is deliberately excluded: only materialization moves it.
func (r *SQLiteRepository) UpdateDefinition(ctx context.Context, d core.RecurringDefinition) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE recurring_definitions
		SET name = ?, description = ?, amount = ?, direction = ?, account_id = ?,
		    category_id = ?, frequency = ?, start_date = ?, end_date = ?, icon = ?,
		    updated_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now')
		WHERE id = ?`,
		d.Name, d.Description, d.Amount.String(), string(d.Direction), d.AccountID,
		d.CategoryID, string(d.Frequency), d.StartDate.String(), nullableDate(d.EndDate),
		d.Icon, d.ID)
	if err != nil {
		return fmt.Errorf("update definition: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("definition %s: %w", d.ID, core.ErrNotFound)
	}
	return nil
}

// DeleteDefinition removes a definition. Already-materialized occurrences
// and realized transactions are left untouched.
func (r *SQLiteRepository) DeleteDefinition(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM recurring_definitions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete definition: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("definition %s: %w", id, core.ErrNotFound)
	}

	slog.InfoContext(ctx, "Recurring definition deleted", "definition_id", id)
	return nil
}

// GetDefinition returns one definition by id.
func (r *SQLiteRepository) GetDefinition(ctx context.Context, id string) (core.RecurringDefinition, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, description, amount, direction, account_id, category_id,
		       frequency, start_date, end_date, last_generated_at, icon
		FROM recurring_definitions WHERE id = ?`, id)
	return scanDefinition(row)
}

// ListDefinitions returns all definitions ordered by name then id.
func (r *SQLiteRepository) ListDefinitions(ctx context.Context) ([]core.RecurringDefinition, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, description, amount, direction, account_id, category_id,
		       frequency, start_date, end_date, last_generated_at, icon
		FROM recurring_definitions ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("list definitions: %w", err)
	}
	defer rows.Close()

	var defs []core.RecurringDefinition
	for rows.Next() {
		d, err := scanDefinition(rows)
		if err != nil {
			return nil, err
		}
		defs = append(defs, d)
	}
	return defs, rows.Err()
}

// MaterializeOccurrence advances last_generated_at and inserts the new
// pending occurrence in one transaction. The guarded UPDATE is the
// idempotence mechanism: if another materialization already advanced the
// definition past expectedPrev, nothing is inserted and false is returned.
func (r *SQLiteRepository) MaterializeOccurrence(ctx context.Context, definitionID string, expectedPrev core.Date, occ core.PendingOccurrence) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin materialize: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE recurring_definitions
		SET last_generated_at = ?, updated_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now')
		WHERE id = ? AND COALESCE(last_generated_at, '') = ?`,
		occ.DueDate.String(), definitionID, nullableDateString(expectedPrev))
	if err != nil {
		return false, fmt.Errorf("advance last_generated_at: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// Someone else materialized this step already, or the definition is gone.
		return false, nil
	}

	if occ.ID == "" {
		occ.ID = uuid.NewString()
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO pending_occurrences
			(id, recurring_definition_id, due_date, status, description, direction,
			 amount, account_id, account_currency_code, category_id, category_name, icon)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		occ.ID, occ.RecurringDefinitionID, occ.DueDate.String(), string(occ.Status),
		occ.Description, string(occ.Direction), occ.Amount.String(), occ.AccountID,
		occ.AccountCurrencyCode, occ.CategoryID, occ.CategoryName, occ.Icon)
	if err != nil {
		return false, fmt.Errorf("insert occurrence: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit materialize: %w", err)
	}

	slog.InfoContext(ctx, "Occurrence materialized",
		"definition_id", definitionID,
		"occurrence_id", occ.ID,
		"due_date", occ.DueDate.String())
	return true, nil
}

func nullableDate(d core.Date) any {
	if d.IsZero() {
		return nil
	}
	return d.String()
}

// nullableDateString matches the COALESCE('') convention of the guarded UPDATE.
func nullableDateString(d core.Date) string {
	if d.IsZero() {
		return ""
	}
	return d.String()
}

func scanDefinition(row rowScanner) (core.RecurringDefinition, error) {
	var (
		d                      core.RecurringDefinition
		amount, direction      string
		frequency, startDate   string
		endDate, lastGenerated sql.NullString
	)
	err := row.Scan(&d.ID, &d.Name, &d.Description, &amount, &direction,
		&d.AccountID, &d.CategoryID, &frequency, &startDate, &endDate, &lastGenerated, &d.Icon)
	if errors.Is(err, sql.ErrNoRows) {
		return core.RecurringDefinition{}, fmt.Errorf("definition: %w", core.ErrNotFound)
	}
	if err != nil {
		return core.RecurringDefinition{}, fmt.Errorf("scan definition: %w", err)
	}

	if d.Amount, err = decimal.NewFromString(amount); err != nil {
		return core.RecurringDefinition{}, fmt.Errorf("parse definition amount %q: %w", amount, err)
	}
	d.Direction = core.Direction(direction)
	// The raw value is preserved even when unknown; the scheduler rejects it
	// with a configuration error instead of this layer guessing.
	d.Frequency = core.Frequency(frequency)

	if d.StartDate, err = parseStoredDate(startDate); err != nil {
		return core.RecurringDefinition{}, err
	}
	if endDate.Valid {
		if d.EndDate, err = parseStoredDate(endDate.String); err != nil {
			return core.RecurringDefinition{}, err
		}
	}
	if lastGenerated.Valid {
		if d.LastGeneratedAt, err = parseStoredDate(lastGenerated.String); err != nil {
			return core.RecurringDefinition{}, err
		}
	}
	return d, nil
}

func parseStoredDate(s string) (core.Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return core.Date{}, fmt.Errorf("parse stored date %q: %w", s, err)
	}
	return core.Date{Time: t}, nil
}
