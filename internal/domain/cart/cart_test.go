package cart

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/masalabox/cafe-pos/internal/domain/menu"
)

func ref(id string, price int64) menu.Ref {
	return menu.Ref{MenuItemID: id, Name: "item " + id, UnitPrice: price}
}

func TestCart_AddOrIncrement(t *testing.T) {
	c := New()
	c.AddOrIncrement(ref("dosa", 10000))
	c.AddOrIncrement(ref("dosa", 10000))
	c.AddOrIncrement(ref("chai", 5000))

	lines := c.Lines()
	assert.Len(t, lines, 2)
	assert.Equal(t, 2, lines[0].Quantity)
	assert.Equal(t, "dosa", lines[0].Ref.MenuItemID)
	assert.Equal(t, 1, lines[1].Quantity)
}

func TestCart_SetQuantity(t *testing.T) {
	c := New()
	c.AddOrIncrement(ref("dosa", 10000))

	c.SetQuantity("dosa", 5)
	assert.Equal(t, 5, c.Lines()[0].Quantity)

	// Zero removes the line.
	c.SetQuantity("dosa", 0)
	assert.Zero(t, c.Len())

	// Unknown id is a no-op, not an error.
	c.SetQuantity("ghost", 3)
	assert.Zero(t, c.Len())
}

func TestCart_Remove(t *testing.T) {
	c := New()
	c.AddOrIncrement(ref("dosa", 10000))
	c.AddOrIncrement(ref("chai", 5000))

	c.Remove("dosa")
	lines := c.Lines()
	assert.Len(t, lines, 1)
	assert.Equal(t, "chai", lines[0].Ref.MenuItemID)

	c.Remove("dosa") // already gone, no-op
	assert.Len(t, c.Lines(), 1)
}

func TestCart_Totals(t *testing.T) {
	c := New()
	c.AddOrIncrement(ref("a", 10000))
	c.SetQuantity("a", 2)
	c.AddOrIncrement(ref("b", 5000))

	got := c.Totals(18)
	assert.Equal(t, int64(25000), got.Subtotal)
	assert.Equal(t, int64(4500), got.GSTAmount)
	assert.Equal(t, int64(29500), got.Total)
}

func TestCart_TotalsEmpty(t *testing.T) {
	got := New().Totals(18)
	assert.Zero(t, got.Subtotal)
	assert.Zero(t, got.GSTAmount)
	assert.Zero(t, got.Total)
}
