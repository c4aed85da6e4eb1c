// internal/catalog/snapshot.go
package catalog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Snapshot is a point-in-time copy of the catalog. Stock figures are not
// refreshed until the snapshot is replaced.
type Snapshot struct {
	products []Product
	byID     map[uuid.UUID]int
	LoadedAt time.Time
}

// NewSnapshot indexes products in the given order.
func NewSnapshot(products []Product, loadedAt time.Time) *Snapshot {
	s := &Snapshot{
		products: make([]Product, len(products)),
		byID:     make(map[uuid.UUID]int, len(products)),
		LoadedAt: loadedAt,
	}
	copy(s.products, products)
	for i, p := range s.products {
		if _, dup := s.byID[p.ID]; !dup {
			s.byID[p.ID] = i
		}
	}
	return s
}

// Load fetches products from src and builds a snapshot.
func Load(ctx context.Context, src Source, now time.Time) (*Snapshot, error) {
	products, err := src.ListProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}
	return NewSnapshot(products, now), nil
}

// Len returns the number of products.
func (s *Snapshot) Len() int {
	return len(s.products)
}

// Products returns a copy of the product list.
func (s *Snapshot) Products() []Product {
	out := make([]Product, len(s.products))
	copy(out, s.products)
	return out
}

// Get looks a product up by ID.
func (s *Snapshot) Get(id uuid.UUID) (Product, bool) {
	i, ok := s.byID[id]
	if !ok {
		return Product{}, false
	}
	return s.products[i], true
}

// Resolve maps a scanned or typed code to a product. Exact case-insensitive
// matches on SKU or barcode win over partial (contains) matches, even when
// the partial match comes earlier in catalog order. Within one pass the
// first product in catalog order wins.
func (s *Snapshot) Resolve(code string) (Product, MatchKind, bool) {
	needle := strings.ToLower(strings.TrimSpace(code))
	if needle == "" {
		return Product{}, MatchNone, false
	}

	for _, p := range s.products {
		if equalFold(p.SKU, needle) || equalFold(p.Barcode, needle) {
			return p, MatchExact, true
		}
	}

	for _, p := range s.products {
		if containsFold(p.SKU, needle) || containsFold(p.Barcode, needle) {
			return p, MatchPartial, true
		}
	}

	return Product{}, MatchNone, false
}

func equalFold(field, lowered string) bool {
	return field != "" && strings.ToLower(field) == lowered
}

func containsFold(field, lowered string) bool {
	return field != "" && strings.Contains(strings.ToLower(field), lowered)
}
