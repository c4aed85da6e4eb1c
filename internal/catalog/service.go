// internal/catalog/service.go
package catalog

import (
	"context"
)

// Source lists the products a terminal can sell.
type Source interface {
	ListProducts(ctx context.Context) ([]Product, error)
}
