package order

import (
	"fmt"

	"github.com/go-faster/errors"
)

// Sentinel errors for order validation. These are local validation
// failures: they are surfaced to the caller with the specific reason and
// never retried.
var (
	// ErrEmptyOrder is returned when a create or replace would leave an
	// order with zero items.
	ErrEmptyOrder = errors.New("order requires at least one item")

	// ErrAlreadySettled is returned when a payment is proposed against an
	// order whose outstanding balance is already zero or below.
	ErrAlreadySettled = errors.New("order is already fully paid")

	// ErrUnbalancedPayment is returned by Complete when the recorded
	// payments do not equal the order total to the paisa.
	ErrUnbalancedPayment = errors.New("payments do not equal order total")

	// ErrNonPositivePayment is returned when a proposed payment amount is
	// zero or negative.
	ErrNonPositivePayment = errors.New("payment amount must be positive")

	// ErrNotFound is returned when a referenced order does not exist.
	ErrNotFound = errors.New("order not found")

	// ErrDuplicateRequest is returned by the repository when a payment
	// batch with the same client request id was already recorded. The
	// service treats it as an idempotent replay.
	ErrDuplicateRequest = errors.New("duplicate payment request")
)

// InvalidServeError indicates a serve operation with a non-positive
// quantity, an out-of-range absolute quantity, or an unknown item.
type InvalidServeError struct {
	ItemID string
	Reason string
}

func (e *InvalidServeError) Error() string {
	return fmt.Sprintf("cannot serve item %s: %s", e.ItemID, e.Reason)
}

// OverpaymentError indicates a proposed payment exceeding the outstanding
// balance. The existing payment list is left untouched.
type OverpaymentError struct {
	Amount      int64
	Outstanding int64
}

func (e *OverpaymentError) Error() string {
	return fmt.Sprintf("payment of %d exceeds remaining balance of %d", e.Amount, e.Outstanding)
}

// InvalidStateError indicates an operation against an order in a terminal
// state, e.g. canceling a paid order.
type InvalidStateError struct {
	Op     string
	Status Status
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("cannot %s an order in status %s", e.Op, e.Status)
}
