// internal/cart/cart.go
package cart

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"posnexus/internal/catalog"
)

// Line is one product in the cart. Quantity is always at least 1.
type Line struct {
	ProductID uuid.UUID       `json:"product_id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
}

// Subtotal returns UnitPrice × Quantity.
func (l Line) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Cart is the ordered line collection for one checkout session.
// It is not safe for concurrent use.
type Cart struct {
	lines []Line
	total decimal.Decimal
}

// New returns an empty cart.
func New() *Cart {
	return &Cart{total: decimal.Zero}
}

// AddItem increments the product's line or appends a new one. Stock is
// the caller's concern.
func (c *Cart) AddItem(p catalog.Product) {
	if i := c.index(p.ID); i >= 0 {
		c.lines[i].Quantity++
	} else {
		c.lines = append(c.lines, Line{
			ProductID: p.ID,
			Name:      p.Name,
			UnitPrice: p.Price,
			Quantity:  1,
		})
	}
	c.recompute()
}

// UpdateQuantity sets a line's quantity, removing it when n <= 0.
// Unknown products are ignored.
func (c *Cart) UpdateQuantity(productID uuid.UUID, n int) {
	i := c.index(productID)
	if i < 0 {
		return
	}
	if n <= 0 {
		c.removeAt(i)
	} else {
		c.lines[i].Quantity = n
	}
	c.recompute()
}

// RemoveItem deletes the product's line if present.
func (c *Cart) RemoveItem(productID uuid.UUID) {
	if i := c.index(productID); i >= 0 {
		c.removeAt(i)
		c.recompute()
	}
}

// Clear empties the cart.
func (c *Cart) Clear() {
	c.lines = nil
	c.recompute()
}

// Total is Σ(unitPrice × quantity) over the current lines.
func (c *Cart) Total() decimal.Decimal {
	return c.total
}

// Quantity returns how many units of the product are in the cart.
func (c *Cart) Quantity(productID uuid.UUID) int {
	if i := c.index(productID); i >= 0 {
		return c.lines[i].Quantity
	}
	return 0
}

// Lines returns a copy of the lines in insertion order.
func (c *Cart) Lines() []Line {
	out := make([]Line, len(c.lines))
	copy(out, c.lines)
	return out
}

func (c *Cart) Len() int      { return len(c.lines) }
func (c *Cart) IsEmpty() bool { return len(c.lines) == 0 }

func (c *Cart) index(productID uuid.UUID) int {
	for i := range c.lines {
		if c.lines[i].ProductID == productID {
			return i
		}
	}
	return -1
}

func (c *Cart) removeAt(i int) {
	c.lines = append(c.lines[:i], c.lines[i+1:]...)
}

func (c *Cart) recompute() {
	total := decimal.Zero
	for _, l := range c.lines {
		total = total.Add(l.Subtotal())
	}
	c.total = total
}
