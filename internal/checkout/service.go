// internal/checkout/service.go
package checkout

import (
	"context"
	"errors"
)

var (
	ErrEmptyCart          = errors.New("cart is empty")
	ErrCheckoutInProgress = errors.New("checkout already in progress")
	ErrOfflineQueueWrite  = errors.New("failed to save sale to offline queue")
)

// Connectivity reports whether the upstream is reachable.
type Connectivity interface {
	Online(ctx context.Context) bool
}

// SaleCommitter records a sale upstream.
type SaleCommitter interface {
	CommitSale(ctx context.Context, sale Sale) error
}

// OfflineQueue durably stores sales for later sync.
type OfflineQueue interface {
	SaveSaleOffline(ctx context.Context, sale PendingOfflineSale) error
}

// ConnectivityFunc adapts a function to Connectivity.
type ConnectivityFunc func(ctx context.Context) bool

func (f ConnectivityFunc) Online(ctx context.Context) bool { return f(ctx) }
