// Package order implements the order aggregate and its payment
// reconciliation rules. Every state transition is a pure function over the
// current order plus the requested change: it returns a new Order value or
// a typed failure and never touches storage, so the previous value is
// always the caller's last known-good state.
package order

import (
	"time"

	"github.com/google/uuid"

	"github.com/masalabox/cafe-pos/internal/domain/cart"
	"github.com/masalabox/cafe-pos/internal/domain/money"
)

// Status is the lifecycle state of an order.
// active -> paid and active -> canceled are the only transitions; both
// targets are terminal.
type Status string

const (
	StatusActive   Status = "active"
	StatusPaid     Status = "paid"
	StatusCanceled Status = "canceled"
)

// Method enumerates the accepted payment methods.
type Method string

const (
	MethodCash Method = "cash"
	MethodUPI  Method = "upi"
	MethodCard Method = "card"
)

// ParseMethod validates a wire-level payment method string.
func ParseMethod(s string) (Method, bool) {
	switch Method(s) {
	case MethodCash, MethodUPI, MethodCard:
		return Method(s), true
	}
	return "", false
}

// Item is a persisted order line. UnitPrice is the paise price captured
// when the line entered the order; later catalog changes do not affect it.
type Item struct {
	ID             string
	MenuItemID     string
	Name           string
	UnitPrice      int64
	IsParcel       bool
	Quantity       int
	QuantityServed int
}

// IsServed reports whether every ordered unit has been delivered. There is
// no persisted flag; this is always derived.
func (i Item) IsServed() bool {
	return i.QuantityServed == i.Quantity
}

// Payment is one recorded payment line. Amount is positive paise; payments
// are only meaningful in aggregate.
type Payment struct {
	ID     string
	Method Method
	Amount int64
}

// Proposal is a payment the admin wants to record, before validation.
type Proposal struct {
	Method Method
	Amount int64
}

// Order is the persisted aggregate for one table's visit.
type Order struct {
	ID           string
	OrderNumber  string
	TableNumber  int
	CustomerName string
	Status       Status
	Items        []Item
	Payments     []Payment
	Subtotal     int64
	GSTAmount    int64
	TotalAmount  int64
	CreatedAt    time.Time
}

// NewFromCart builds a fresh active order from submitted cart lines,
// with nothing served and no payments.
func NewFromCart(table int, customerName string, lines []cart.Line, gstRatePercent int) (*Order, error) {
	if len(lines) == 0 {
		return nil, ErrEmptyOrder
	}

	o := &Order{
		ID:           uuid.New().String(),
		TableNumber:  table,
		CustomerName: customerName,
		Status:       StatusActive,
		Items:        itemsFromLines(lines, nil),
	}
	o.recompute(gstRatePercent)
	return o, nil
}

// ReplaceItems returns a copy of the order with its lines replaced by the
// cart's lines (not merged) and totals recomputed. Served counts carry
// over per menu item and are clamped down when the new ordered quantity is
// smaller — a product decision, see the serving rules.
func (o Order) ReplaceItems(lines []cart.Line, gstRatePercent int) (Order, error) {
	if o.Status != StatusActive {
		return o, &InvalidStateError{Op: "edit", Status: o.Status}
	}
	if len(lines) == 0 {
		return o, ErrEmptyOrder
	}

	served := make(map[string]int, len(o.Items))
	for _, it := range o.Items {
		served[it.MenuItemID] = it.QuantityServed
	}

	o.Items = itemsFromLines(lines, served)
	o.Payments = clonePayments(o.Payments)
	o.recompute(gstRatePercent)
	return o, nil
}

// Serve records quantityToServe additional delivered units on an item,
// clamped to the ordered quantity. Over-serving is clamped rather than
// rejected to tolerate double-taps.
func (o Order) Serve(itemID string, quantityToServe int) (Order, error) {
	if o.Status != StatusActive {
		return o, &InvalidStateError{Op: "serve on", Status: o.Status}
	}
	if quantityToServe <= 0 {
		return o, &InvalidServeError{ItemID: itemID, Reason: "quantity must be greater than 0"}
	}

	idx := o.itemIndex(itemID)
	if idx < 0 {
		return o, &InvalidServeError{ItemID: itemID, Reason: "item is not on this order"}
	}

	o.Items = cloneItems(o.Items)
	it := &o.Items[idx]
	it.QuantityServed += quantityToServe
	if it.QuantityServed > it.Quantity {
		it.QuantityServed = it.Quantity
	}
	return o, nil
}

// SetServedQuantity is the admin correction: it sets an item's served
// count to an absolute value within [0, quantity].
func (o Order) SetServedQuantity(itemID string, quantity int) (Order, error) {
	if o.Status != StatusActive {
		return o, &InvalidStateError{Op: "serve on", Status: o.Status}
	}

	idx := o.itemIndex(itemID)
	if idx < 0 {
		return o, &InvalidServeError{ItemID: itemID, Reason: "item is not on this order"}
	}
	if quantity < 0 || quantity > o.Items[idx].Quantity {
		return o, &InvalidServeError{ItemID: itemID, Reason: "served quantity out of range"}
	}

	o.Items = cloneItems(o.Items)
	o.Items[idx].QuantityServed = quantity
	return o, nil
}

// PaymentsTotal sums the recorded payments.
func (o Order) PaymentsTotal() int64 {
	var sum int64
	for _, p := range o.Payments {
		sum += p.Amount
	}
	return sum
}

// Outstanding is the true signed balance: total minus payments. Display
// layers floor it at zero; overpayment detection needs the negative range.
func (o Order) Outstanding() int64 {
	return o.TotalAmount - o.PaymentsTotal()
}

// AddPayments validates each proposal in sequence against the running
// outstanding balance and returns a copy with the new payments appended.
// A failing proposal rejects the whole batch without mutating the order.
func (o Order) AddPayments(proposals []Proposal) (Order, error) {
	if o.Status != StatusActive {
		return o, &InvalidStateError{Op: "add payments to", Status: o.Status}
	}

	outstanding := o.Outstanding()
	added := make([]Payment, 0, len(proposals))
	for _, p := range proposals {
		if outstanding <= 0 {
			return o, ErrAlreadySettled
		}
		if p.Amount <= 0 {
			return o, ErrNonPositivePayment
		}
		if p.Amount > outstanding {
			return o, &OverpaymentError{Amount: p.Amount, Outstanding: outstanding}
		}
		added = append(added, Payment{
			ID:     uuid.New().String(),
			Method: p.Method,
			Amount: p.Amount,
		})
		outstanding -= p.Amount
	}

	o.Payments = append(clonePayments(o.Payments), added...)
	o.Items = cloneItems(o.Items)
	return o, nil
}

// Complete transitions the order to paid. The gate is exact: the payment
// sum must equal the total to the paisa, not merely cover it.
func (o Order) Complete() (Order, error) {
	if o.Status != StatusActive {
		return o, &InvalidStateError{Op: "complete", Status: o.Status}
	}
	if o.Outstanding() != 0 {
		return o, ErrUnbalancedPayment
	}
	o.Status = StatusPaid
	return o, nil
}

// ReplacePayments swaps the entire payment set, re-validating the same
// exact-match invariant retroactively. It is the only mutation allowed on
// a paid order and never changes status.
func (o Order) ReplacePayments(proposals []Proposal) (Order, error) {
	if o.Status == StatusCanceled {
		return o, &InvalidStateError{Op: "edit payments of", Status: o.Status}
	}

	var sum int64
	replaced := make([]Payment, 0, len(proposals))
	for _, p := range proposals {
		if p.Amount <= 0 {
			return o, ErrNonPositivePayment
		}
		sum += p.Amount
		replaced = append(replaced, Payment{
			ID:     uuid.New().String(),
			Method: p.Method,
			Amount: p.Amount,
		})
	}
	if sum != o.TotalAmount {
		return o, ErrUnbalancedPayment
	}

	o.Payments = replaced
	o.Items = cloneItems(o.Items)
	return o, nil
}

// Cancel transitions an active order to canceled. Canceled orders are
// kept for audit but excluded from active listings.
func (o Order) Cancel() (Order, error) {
	if o.Status != StatusActive {
		return o, &InvalidStateError{Op: "cancel", Status: o.Status}
	}
	o.Status = StatusCanceled
	return o, nil
}

func (o *Order) recompute(gstRatePercent int) {
	var subtotal int64
	for _, it := range o.Items {
		subtotal += it.UnitPrice * int64(it.Quantity)
	}
	o.Subtotal = subtotal
	o.GSTAmount = money.ComputeGST(subtotal, gstRatePercent)
	o.TotalAmount = o.Subtotal + o.GSTAmount
}

func (o Order) itemIndex(itemID string) int {
	for i, it := range o.Items {
		if it.ID == itemID {
			return i
		}
	}
	return -1
}

// itemsFromLines builds order items from cart lines, carrying over served
// counts (clamped to the new quantity) when provided.
func itemsFromLines(lines []cart.Line, served map[string]int) []Item {
	items := make([]Item, len(lines))
	for i, l := range lines {
		qs := served[l.Ref.MenuItemID]
		if qs > l.Quantity {
			qs = l.Quantity
		}
		items[i] = Item{
			ID:             uuid.New().String(),
			MenuItemID:     l.Ref.MenuItemID,
			Name:           l.Ref.Name,
			UnitPrice:      l.Ref.UnitPrice,
			IsParcel:       l.Ref.IsParcel,
			Quantity:       l.Quantity,
			QuantityServed: qs,
		}
	}
	return items
}

func cloneItems(items []Item) []Item {
	out := make([]Item, len(items))
	copy(out, items)
	return out
}

func clonePayments(ps []Payment) []Payment {
	out := make([]Payment, len(ps))
	copy(out, ps)
	return out
}
