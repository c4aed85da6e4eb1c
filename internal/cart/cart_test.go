package cart

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"posnexus/internal/catalog"
)

func item(name, price string) catalog.Product {
	return catalog.Product{ID: uuid.New(), Name: name, Price: decimal.RequireFromString(price)}
}

func TestAddItem_MergesLines(t *testing.T) {
	c := New()
	soda := item("Soda", "1.25")

	c.AddItem(soda)
	c.AddItem(soda)

	require.Equal(t, 1, c.Len())
	assert.Equal(t, 2, c.Quantity(soda.ID))
	assert.True(t, decimal.RequireFromString("2.50").Equal(c.Total()))
}

func TestUpdateQuantity(t *testing.T) {
	c := New()
	bread := item("Bread", "3.10")
	c.AddItem(bread)

	c.UpdateQuantity(bread.ID, 4)
	assert.Equal(t, 4, c.Quantity(bread.ID))
	assert.True(t, decimal.RequireFromString("12.40").Equal(c.Total()))

	c.UpdateQuantity(uuid.New(), 9)
	assert.Equal(t, 1, c.Len())
}

func TestUpdateQuantityZeroRemovesThenFreshLine(t *testing.T) {
	c := New()
	milk := item("Milk", "0.99")
	c.AddItem(milk)
	c.AddItem(milk)

	c.UpdateQuantity(milk.ID, 0)
	assert.True(t, c.IsEmpty())
	assert.True(t, c.Total().IsZero())

	c.AddItem(milk)
	assert.Equal(t, 1, c.Quantity(milk.ID))
}

func TestRemoveAndClear(t *testing.T) {
	c := New()
	a, b := item("A", "1"), item("B", "2")
	c.AddItem(a)
	c.AddItem(b)

	c.RemoveItem(a.ID)
	lines := c.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, b.ID, lines[0].ProductID)

	c.RemoveItem(uuid.New())
	assert.Equal(t, 1, c.Len())

	c.Clear()
	assert.True(t, c.IsEmpty())
	assert.True(t, c.Total().IsZero())
}

func TestLinesKeepInsertionOrder(t *testing.T) {
	c := New()
	a, b, d := item("A", "1"), item("B", "1"), item("D", "1")
	c.AddItem(a)
	c.AddItem(b)
	c.AddItem(d)
	c.AddItem(a)

	lines := c.Lines()
	require.Len(t, lines, 3)
	assert.Equal(t, []uuid.UUID{a.ID, b.ID, d.ID}, []uuid.UUID{lines[0].ProductID, lines[1].ProductID, lines[2].ProductID})
}

func TestTotalMatchesLines_Property(t *testing.T) {
	catalogue := []catalog.Product{
		item("A", "0.10"),
		item("B", "2.35"),
		item("C", "19.99"),
		item("D", "0.01"),
	}

	rapid.Check(t, func(t *rapid.T) {
		c := New()
		steps := rapid.IntRange(1, 60).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			p := rapid.SampledFrom(catalogue).Draw(t, "product")
			switch rapid.IntRange(0, 3).Draw(t, "op") {
			case 0:
				c.AddItem(p)
			case 1:
				c.UpdateQuantity(p.ID, rapid.IntRange(-2, 7).Draw(t, "qty"))
			case 2:
				c.RemoveItem(p.ID)
			case 3:
				if rapid.IntRange(0, 9).Draw(t, "clear") == 0 {
					c.Clear()
				}
			}

			want := decimal.Zero
			seen := map[uuid.UUID]bool{}
			for _, l := range c.Lines() {
				if l.Quantity < 1 {
					t.Fatalf("line %s has quantity %d", l.Name, l.Quantity)
				}
				if seen[l.ProductID] {
					t.Fatalf("duplicate line for %s", l.Name)
				}
				seen[l.ProductID] = true
				want = want.Add(l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity))))
			}
			if !want.Equal(c.Total()) {
				t.Fatalf("total %s, want %s", c.Total(), want)
			}
		}
	})
}
