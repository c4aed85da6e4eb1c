// internal/catalog/domain.go
package catalog

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product is a sellable catalog entry as seen by the POS terminal.
type Product struct {
	ID        uuid.UUID        `json:"id"`
	Name      string           `json:"name"`
	Price     decimal.Decimal  `json:"price"`
	SKU       string           `json:"sku,omitempty"`
	Barcode   string           `json:"barcode,omitempty"`
	Category  string           `json:"category,omitempty"`
	Inventory []InventoryLevel `json:"inventory"`
}

// InventoryLevel is the on-hand quantity at one location.
type InventoryLevel struct {
	LocationID string `json:"location_id,omitempty"`
	Quantity   int    `json:"quantity"`
}

// Stock returns the quantity of the first inventory snapshot entry.
func (p Product) Stock() int {
	if len(p.Inventory) == 0 {
		return 0
	}
	return p.Inventory[0].Quantity
}

// MatchKind reports how a scanned code resolved to a product.
type MatchKind int

const (
	MatchNone MatchKind = iota
	MatchExact
	MatchPartial
)

func (m MatchKind) String() string {
	switch m {
	case MatchExact:
		return "exact"
	case MatchPartial:
		return "partial"
	default:
		return "none"
	}
}
