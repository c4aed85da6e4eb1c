// internal/offline/store.go
package offline

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"posnexus/internal/checkout"
)

var ErrSaleNotFound = errors.New("pending sale not found")

const (
	StatusPending = "pending"
	StatusSynced  = "synced"
)

// Record is a queued sale together with its sync bookkeeping.
type Record struct {
	checkout.PendingOfflineSale
	Attempts  int    `json:"attempts"`
	LastError string `json:"lastError,omitempty"`
}

// Store is the durable offline queue. SaveSaleOffline is idempotent on the
// sale ID.
type Store interface {
	checkout.OfflineQueue
	Pending(ctx context.Context, limit int) ([]Record, error)
	MarkSynced(ctx context.Context, id uuid.UUID) error
	RecordAttempt(ctx context.Context, id uuid.UUID, cause error) error
}
