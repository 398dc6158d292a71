// Package worker hosts the export worker: it mirrors realized transactions
// to the backup ledger, driven by queue messages with a periodic sweep as
// the safety net for lost deliveries.
package worker

import (
	"context"
	"fmt"
	"log/slog"

	"flujo/internal/amqp"
	"flujo/internal/core"
	"flujo/internal/export"
)

// Store is the transaction slice of the repository the worker needs.
type Store interface {
	GetTransaction(ctx context.Context, id string) (core.RealizedTransaction, error)
	ListUnsyncedTransactions(ctx context.Context, limit int) ([]core.RealizedTransaction, error)
	MarkTransactionSynced(ctx context.Context, id string) error
	MarkTransactionSyncError(ctx context.Context, id string) error
}

type ExportWorker struct {
	store     Store
	writer    export.LedgerWriter
	batchSize int
}

func NewExportWorker(store Store, writer export.LedgerWriter, batchSize int) *ExportWorker {
	return &ExportWorker{
		store:     store,
		writer:    writer,
		batchSize: batchSize,
	}
}

// HandleSyncMessage processes one queue notification: fetch the current row
// from the database and mirror it. Returning an error requeues the message.
func (w *ExportWorker) HandleSyncMessage(ctx context.Context, msg *amqp.TransactionSyncMessage) error {
	t, err := w.store.GetTransaction(ctx, msg.TransactionID)
	if err != nil {
		return fmt.Errorf("get transaction from storage: %w", err)
	}
	return w.exportTransaction(ctx, t)
}

// SweepUnsynced exports transactions the queue never delivered, oldest
// first. Failures are marked and skipped so one bad row cannot wedge the
// whole sweep.
func (w *ExportWorker) SweepUnsynced(ctx context.Context) error {
	pending, err := w.store.ListUnsyncedTransactions(ctx, w.batchSize)
	if err != nil {
		return fmt.Errorf("list unsynced transactions: %w", err)
	}
	if len(pending) == 0 {
		return nil
	}

	slog.InfoContext(ctx, "Sweeping unsynced transactions", "count", len(pending))

	for _, t := range pending {
		if err := w.exportTransaction(ctx, t); err != nil {
			slog.ErrorContext(ctx, "Failed to export transaction during sweep",
				"transaction_id", t.ID,
				"error", err)
		}
	}
	return nil
}

// StartupSyncCheck recovers from worker downtime by sweeping a larger batch
// once at boot.
func (w *ExportWorker) StartupSyncCheck(ctx context.Context) error {
	pending, err := w.store.ListUnsyncedTransactions(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("list unsynced transactions for startup check: %w", err)
	}
	if len(pending) == 0 {
		slog.InfoContext(ctx, "No unsynced transactions found on startup")
		return nil
	}

	slog.InfoContext(ctx, "Found unsynced transactions on startup, processing...",
		"count", len(pending))

	synced, failed := 0, 0
	for _, t := range pending {
		if err := w.exportTransaction(ctx, t); err != nil {
			slog.ErrorContext(ctx, "Failed to export transaction during startup",
				"transaction_id", t.ID,
				"error", err)
			failed++
			continue
		}
		synced++
	}

	slog.InfoContext(ctx, "Startup sync completed",
		"total", len(pending),
		"synced", synced,
		"errors", failed)
	return nil
}

func (w *ExportWorker) exportTransaction(ctx context.Context, t core.RealizedTransaction) error {
	ref, err := w.writer.Append(ctx, t)
	if err != nil {
		if markErr := w.store.MarkTransactionSyncError(ctx, t.ID); markErr != nil {
			slog.ErrorContext(ctx, "Failed to mark sync error",
				"transaction_id", t.ID,
				"error", markErr)
		}
		return fmt.Errorf("append to backup ledger: %w", err)
	}

	if err := w.store.MarkTransactionSynced(ctx, t.ID); err != nil {
		// The row was written; surface the bookkeeping failure but do not
		// fail the export itself.
		slog.ErrorContext(ctx, "Failed to mark transaction as synced",
			"transaction_id", t.ID,
			"error", err)
	}

	slog.InfoContext(ctx, "Exported transaction",
		"transaction_id", t.ID,
		"row_ref", ref)
	return nil
}
