// internal/catalog/implementation.go
package catalog

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// repository reads the local product read model.
type repository struct {
	db *sql.DB
}

// NewRepository creates a Source backed by the products table.
func NewRepository(db *sql.DB) Source {
	return &repository{db: db}
}

// ListProducts returns active products with their first inventory location.
func (r *repository) ListProducts(ctx context.Context) ([]Product, error) {
	query := `
		SELECT p.id, p.name, p.price, COALESCE(p.sku, ''), COALESCE(p.barcode, ''), COALESCE(p.category, ''),
		       i.location_id, i.quantity
		FROM products p
		LEFT JOIN LATERAL (
			SELECT location_id, quantity
			FROM product_inventory
			WHERE product_id = p.id
			ORDER BY position ASC
			LIMIT 1
		) i ON TRUE
		WHERE p.active
		ORDER BY p.name ASC
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		var (
			p        Product
			price    string
			location sql.NullString
			quantity sql.NullInt64
		)
		if err := rows.Scan(&p.ID, &p.Name, &price, &p.SKU, &p.Barcode, &p.Category, &location, &quantity); err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		p.Price, err = decimal.NewFromString(price)
		if err != nil {
			return nil, fmt.Errorf("invalid price for product %s: %w", p.ID, err)
		}
		if quantity.Valid {
			p.Inventory = []InventoryLevel{{LocationID: location.String, Quantity: int(quantity.Int64)}}
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate products: %w", err)
	}

	return products, nil
}

// StaticSource serves a fixed product list.
type StaticSource []Product

func (s StaticSource) ListProducts(ctx context.Context) ([]Product, error) {
	out := make([]Product, len(s))
	copy(out, s)
	return out, nil
}

// ParseID is a convenience for handlers and clients.
func ParseID(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid product ID %q: %w", s, err)
	}
	return id, nil
}
