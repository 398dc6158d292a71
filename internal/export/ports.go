// Package export defines the outbound port for mirroring the realized
// ledger to an external backup destination.
package export

import (
	"context"

	"flujo/internal/core"
)

// LedgerWriter appends one realized transaction to the backup ledger and
// returns an opaque reference to the written row.
type LedgerWriter interface {
	Append(ctx context.Context, t core.RealizedTransaction) (rowRef string, err error)
}
