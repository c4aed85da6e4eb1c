package catalog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func product(name, sku, barcode string, stock int) Product {
	return Product{
		ID:        uuid.New(),
		Name:      name,
		Price:     decimal.RequireFromString("1.50"),
		SKU:       sku,
		Barcode:   barcode,
		Inventory: []InventoryLevel{{Quantity: stock}},
	}
}

func TestResolve_ExactBeatsEarlierPartial(t *testing.T) {
	partial := product("Cola 1L", "COLA-100", "", 5)
	exact := product("Cola", "COLA", "", 5)
	snap := NewSnapshot([]Product{partial, exact}, time.Now())

	got, kind, ok := snap.Resolve("cola")
	require.True(t, ok)
	assert.Equal(t, exact.ID, got.ID)
	assert.Equal(t, MatchExact, kind)
}

func TestResolve_BarcodeExactCaseInsensitive(t *testing.T) {
	p := product("Chips", "", "ABC123", 2)
	snap := NewSnapshot([]Product{p}, time.Now())

	got, kind, ok := snap.Resolve("  abc123 ")
	require.True(t, ok)
	assert.Equal(t, p.ID, got.ID)
	assert.Equal(t, MatchExact, kind)
}

func TestResolve_PartialFallsBackInCatalogOrder(t *testing.T) {
	first := product("Water", "WTR-500", "", 1)
	second := product("Water big", "WTR-1500", "", 1)
	snap := NewSnapshot([]Product{first, second}, time.Now())

	got, kind, ok := snap.Resolve("wtr")
	require.True(t, ok)
	assert.Equal(t, first.ID, got.ID)
	assert.Equal(t, MatchPartial, kind)
}

func TestResolve_NoMatch(t *testing.T) {
	snap := NewSnapshot([]Product{product("Gum", "GUM", "111", 3)}, time.Now())

	_, kind, ok := snap.Resolve("nothing")
	assert.False(t, ok)
	assert.Equal(t, MatchNone, kind)

	_, _, ok = snap.Resolve("   ")
	assert.False(t, ok)
}

func TestResolve_EmptyFieldsNeverMatch(t *testing.T) {
	snap := NewSnapshot([]Product{product("Loose", "", "", 3)}, time.Now())

	_, _, ok := snap.Resolve("x")
	assert.False(t, ok)
}

func TestStock(t *testing.T) {
	assert.Equal(t, 0, Product{}.Stock())
	p := Product{Inventory: []InventoryLevel{{Quantity: 4}, {Quantity: 9}}}
	assert.Equal(t, 4, p.Stock())
}

type failingSource struct{}

func (failingSource) ListProducts(ctx context.Context) ([]Product, error) {
	return nil, errors.New("boom")
}

func TestLoad(t *testing.T) {
	p := product("Tea", "TEA", "", 1)
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	snap, err := Load(context.Background(), StaticSource{p}, now)
	require.NoError(t, err)
	assert.Equal(t, 1, snap.Len())
	assert.Equal(t, now, snap.LoadedAt)

	got, ok := snap.Get(p.ID)
	require.True(t, ok)
	assert.Equal(t, "Tea", got.Name)

	_, err = Load(context.Background(), failingSource{}, now)
	assert.Error(t, err)
}
