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

// CreateTransaction appends a manual realized transaction. Confirmed
// occurrences go through ConfirmOccurrence instead.
func (r *SQLiteRepository) CreateTransaction(ctx context.Context, t core.RealizedTransaction) (core.RealizedTransaction, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if err := insertTransactionDB(ctx, r.db, t); err != nil {
		return core.RealizedTransaction{}, err
	}

	slog.InfoContext(ctx, "Transaction created",
		"transaction_id", t.ID,
		"amount", t.Amount.String(),
		"exchange_rate", rateString(t.ExchangeRate))
	return t, nil
}

// GetTransaction returns one realized transaction by id.
func (r *SQLiteRepository) GetTransaction(ctx context.Context, id string) (core.RealizedTransaction, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, date, amount, direction, description, account_id,
		       account_currency_code, category_id, exchange_rate, icon
		FROM transactions WHERE id = ?`, id)
	return scanTransaction(row)
}

// ListTransactions returns all realized transactions, newest first.
func (r *SQLiteRepository) ListTransactions(ctx context.Context) ([]core.RealizedTransaction, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, date, amount, direction, description, account_id,
		       account_currency_code, category_id, exchange_rate, icon
		FROM transactions ORDER BY date DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var txs []core.RealizedTransaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txs = append(txs, t)
	}
	return txs, rows.Err()
}

// ListUnsyncedTransactions returns transactions the export worker has not
// mirrored yet, oldest first, capped at limit.
func (r *SQLiteRepository) ListUnsyncedTransactions(ctx context.Context, limit int) ([]core.RealizedTransaction, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, date, amount, direction, description, account_id,
		       account_currency_code, category_id, exchange_rate, icon
		FROM transactions WHERE synced = 0 AND sync_error = 0
		ORDER BY date, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list unsynced transactions: %w", err)
	}
	defer rows.Close()

	var txs []core.RealizedTransaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txs = append(txs, t)
	}
	return txs, rows.Err()
}

// MarkTransactionSynced records a successful export.
func (r *SQLiteRepository) MarkTransactionSynced(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx,
		`UPDATE transactions SET synced = 1, sync_error = 0 WHERE id = ?`, id); err != nil {
		return fmt.Errorf("mark transaction synced: %w", err)
	}
	return nil
}

// MarkTransactionSyncError records a failed export so it is not retried in
// a tight loop.
func (r *SQLiteRepository) MarkTransactionSyncError(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx,
		`UPDATE transactions SET sync_error = 1 WHERE id = ?`, id); err != nil {
		return fmt.Errorf("mark transaction sync error: %w", err)
	}
	slog.WarnContext(ctx, "Transaction marked with sync error", "transaction_id", id)
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertTransaction(ctx context.Context, tx *sql.Tx, t core.RealizedTransaction) error {
	return insertTransactionDB(ctx, tx, t)
}

func insertTransactionDB(ctx context.Context, db execer, t core.RealizedTransaction) error {
	var rate any
	if t.ExchangeRate.Valid {
		rate = t.ExchangeRate.Decimal.String()
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO transactions
			(id, date, amount, direction, description, account_id,
			 account_currency_code, category_id, exchange_rate, icon)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Date.UTC().Format(time.RFC3339Nano), t.Amount.String(), string(t.Direction),
		t.Description, t.AccountID, t.AccountCurrencyCode, t.CategoryID, rate, t.Icon)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

func scanTransaction(row rowScanner) (core.RealizedTransaction, error) {
	var (
		t            core.RealizedTransaction
		date, amount string
		direction    string
		rate         sql.NullString
	)
	err := row.Scan(&t.ID, &date, &amount, &direction, &t.Description,
		&t.AccountID, &t.AccountCurrencyCode, &t.CategoryID, &rate, &t.Icon)
	if errors.Is(err, sql.ErrNoRows) {
		return core.RealizedTransaction{}, fmt.Errorf("transaction: %w", core.ErrNotFound)
	}
	if err != nil {
		return core.RealizedTransaction{}, fmt.Errorf("scan transaction: %w", err)
	}

	if t.Date, err = time.Parse(time.RFC3339Nano, date); err != nil {
		return core.RealizedTransaction{}, fmt.Errorf("parse transaction date %q: %w", date, err)
	}
	if t.Amount, err = decimal.NewFromString(amount); err != nil {
		return core.RealizedTransaction{}, fmt.Errorf("parse transaction amount %q: %w", amount, err)
	}
	t.Direction = core.Direction(direction)
	if t.ExchangeRate, err = parseNullableRate(rate); err != nil {
		return core.RealizedTransaction{}, err
	}
	return t, nil
}
