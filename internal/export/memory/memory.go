// Package memory is an in-process LedgerWriter used in tests and local
// development, where no spreadsheet backend is configured.
package memory

import (
	"context"
	"fmt"
	"sync"

	"flujo/internal/core"
)

type Writer struct {
	mu    sync.Mutex
	items []core.RealizedTransaction
}

func New() *Writer {
	return &Writer{}
}

// Append stores the transaction and returns a synthetic row reference.
func (w *Writer) Append(_ context.Context, t core.RealizedTransaction) (string, error) {
	if err := t.Validate(); err != nil {
		return "", err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.items = append(w.items, t)
	return fmt.Sprintf("mem:%d", len(w.items)), nil
}

// Items returns a copy of everything appended so far.
func (w *Writer) Items() []core.RealizedTransaction {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]core.RealizedTransaction(nil), w.items...)
}
