// Package cart implements the client-local, per-table cart that exists
// between "waiter starts taking an order" and "cart is submitted". A cart
// has no identity of its own and is never persisted.
package cart

import (
	"github.com/masalabox/cafe-pos/internal/domain/menu"
	"github.com/masalabox/cafe-pos/internal/domain/money"
)

// Line is one (menu item, quantity) pair.
type Line struct {
	Ref      menu.Ref
	Quantity int
}

// Totals holds the derived amounts for a cart, all in paise.
type Totals struct {
	Subtotal  int64
	GSTAmount int64
	Total     int64
}

// Cart collects lines for a single table, keyed by menu item id. Insertion
// order is kept only for display; it does not affect totals.
type Cart struct {
	lines map[string]*Line
	order []string
}

// New returns an empty cart.
func New() *Cart {
	return &Cart{lines: make(map[string]*Line)}
}

// AddOrIncrement adds a line for the referenced item, or bumps its
// quantity by one when a line already exists.
func (c *Cart) AddOrIncrement(ref menu.Ref) {
	if l, ok := c.lines[ref.MenuItemID]; ok {
		l.Quantity++
		return
	}
	c.lines[ref.MenuItemID] = &Line{Ref: ref, Quantity: 1}
	c.order = append(c.order, ref.MenuItemID)
}

// SetQuantity sets the quantity of an existing line. A quantity of zero or
// less removes the line. Unknown item ids are a no-op so that stale UI
// references never fail.
func (c *Cart) SetQuantity(itemID string, qty int) {
	if _, ok := c.lines[itemID]; !ok {
		return
	}
	if qty <= 0 {
		c.Remove(itemID)
		return
	}
	c.lines[itemID].Quantity = qty
}

// Remove deletes a line. Unknown item ids are a no-op.
func (c *Cart) Remove(itemID string) {
	if _, ok := c.lines[itemID]; !ok {
		return
	}
	delete(c.lines, itemID)
	for i, id := range c.order {
		if id == itemID {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

// Len reports the number of lines.
func (c *Cart) Len() int {
	return len(c.lines)
}

// Lines returns the cart lines in display order.
func (c *Cart) Lines() []Line {
	out := make([]Line, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, *c.lines[id])
	}
	return out
}

// Totals computes subtotal, GST and total for the configured rate.
func (c *Cart) Totals(gstRatePercent int) Totals {
	var subtotal int64
	for _, id := range c.order {
		l := c.lines[id]
		subtotal += l.Ref.UnitPrice * int64(l.Quantity)
	}
	gst := money.ComputeGST(subtotal, gstRatePercent)
	return Totals{
		Subtotal:  subtotal,
		GSTAmount: gst,
		Total:     subtotal + gst,
	}
}
