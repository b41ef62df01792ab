package order

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"

	"github.com/masalabox/cafe-pos/internal/domain/cart"
	"github.com/masalabox/cafe-pos/internal/domain/menu"
)

// MenuItemNotFoundError indicates a submitted line references a menu item
// that does not exist in the catalog.
type MenuItemNotFoundError struct {
	MenuItemID string
}

func (e *MenuItemNotFoundError) Error() string {
	return fmt.Sprintf("menu item %s not found", e.MenuItemID)
}

// InvalidQuantityError indicates a submitted line with a non-positive
// quantity.
type InvalidQuantityError struct {
	MenuItemID string
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be greater than 0 for item %s", e.MenuItemID)
}

// TableOutOfRangeError indicates a table number outside [1, max].
type TableOutOfRangeError struct {
	Table int
	Max   int
}

func (e *TableOutOfRangeError) Error() string {
	return fmt.Sprintf("table %d is out of range (venue has %d tables)", e.Table, e.Max)
}

// HistoryFilter selects orders for the history listing. Zero time values
// mean unbounded; Limit is capped by the repository caller.
type HistoryFilter struct {
	From   time.Time
	To     time.Time
	Limit  int
	Offset int
}

// Repository defines persistence operations for orders. Implementations
// own concurrency control between writers (expected-status guards,
// request-id uniqueness); the engine only guarantees its invariants hold
// in whatever state it is handed.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id string) (*Order, error)
	// FindActiveByTable returns ErrNotFound when the table has no active order.
	FindActiveByTable(ctx context.Context, table int) (*Order, error)
	ReplaceItems(ctx context.Context, o *Order) error
	UpdateServed(ctx context.Context, orderID, itemID string, served int) error
	// AddPayments returns ErrDuplicateRequest when requestID was already recorded.
	AddPayments(ctx context.Context, orderID, requestID string, payments []Payment) error
	ReplacePayments(ctx context.Context, orderID string, payments []Payment) error
	// SetStatus returns InvalidStateError when the order is no longer in from.
	SetStatus(ctx context.Context, orderID string, from, to Status) error
	ListActive(ctx context.Context) ([]Order, error)
	History(ctx context.Context, f HistoryFilter) ([]Order, error)
	NextOrderNumber(ctx context.Context) (int64, error)
}

// ReceiptGenerator is invoked with the final balanced order after a
// successful completion. Rendering and printing live behind it.
type ReceiptGenerator interface {
	Generate(ctx context.Context, o *Order) error
}

// LineInput is one requested (menu item, quantity) pair as it arrives from
// the caller, before prices are snapshotted.
type LineInput struct {
	MenuItemID string
	Quantity   int
}

// SubmitCartRequest holds the input for submitting a table's cart.
type SubmitCartRequest struct {
	TableNumber  int
	CustomerName string
	Lines        []LineInput
}

// EditOrderRequest holds the admin edit input. Nil pointers leave the
// corresponding metadata untouched.
type EditOrderRequest struct {
	OrderID      string
	Lines        []LineInput
	CustomerName *string
	TableNumber  *int
}

// Config carries the slow-changing venue parameters the engine needs.
type Config struct {
	GSTRatePercent int
	MaxTables      int
}

// Service orchestrates the persistence and catalog collaborators around
// the pure order aggregate.
type Service struct {
	menu     menu.Repository
	orders   Repository
	receipts ReceiptGenerator
	cfg      Config
}

// NewService creates an order Service with the required collaborators.
func NewService(menuRepo menu.Repository, orders Repository, receipts ReceiptGenerator, cfg Config) *Service {
	return &Service{
		menu:     menuRepo,
		orders:   orders,
		receipts: receipts,
		cfg:      cfg,
	}
}

// SubmitCart turns a table's cart into a persisted order. The first
// submission for a table creates the order; while it stays active, later
// submissions replace its items in place rather than duplicating it.
func (s *Service) SubmitCart(ctx context.Context, req SubmitCartRequest) (*Order, error) {
	if req.TableNumber < 1 || req.TableNumber > s.cfg.MaxTables {
		return nil, &TableOutOfRangeError{Table: req.TableNumber, Max: s.cfg.MaxTables}
	}

	lines, err := s.snapshotLines(ctx, req.Lines)
	if err != nil {
		return nil, err
	}

	existing, err := s.orders.FindActiveByTable(ctx, req.TableNumber)
	switch {
	case err == nil:
		updated, err := existing.ReplaceItems(lines, s.cfg.GSTRatePercent)
		if err != nil {
			return nil, err
		}
		if req.CustomerName != "" {
			updated.CustomerName = req.CustomerName
		}
		if err := s.orders.ReplaceItems(ctx, &updated); err != nil {
			return nil, errors.Wrap(err, "replace order items")
		}
		return &updated, nil

	case errors.Is(err, ErrNotFound):
		o, err := NewFromCart(req.TableNumber, req.CustomerName, lines, s.cfg.GSTRatePercent)
		if err != nil {
			return nil, err
		}
		seq, err := s.orders.NextOrderNumber(ctx)
		if err != nil {
			return nil, errors.Wrap(err, "next order number")
		}
		o.OrderNumber = fmt.Sprintf("ORD-%04d", seq)
		if err := s.orders.Create(ctx, o); err != nil {
			return nil, errors.Wrap(err, "create order")
		}
		return o, nil

	default:
		return nil, errors.Wrap(err, "find active order")
	}
}

// EditOrder is the admin path: it replaces the order's items with the
// given lines and may reassign table number or customer name. A table
// change is pure metadata; it never merges with another table's order.
func (s *Service) EditOrder(ctx context.Context, req EditOrderRequest) (*Order, error) {
	if req.TableNumber != nil && (*req.TableNumber < 1 || *req.TableNumber > s.cfg.MaxTables) {
		return nil, &TableOutOfRangeError{Table: *req.TableNumber, Max: s.cfg.MaxTables}
	}

	lines, err := s.snapshotLines(ctx, req.Lines)
	if err != nil {
		return nil, err
	}

	o, err := s.orders.GetByID(ctx, req.OrderID)
	if err != nil {
		return nil, err
	}

	updated, err := o.ReplaceItems(lines, s.cfg.GSTRatePercent)
	if err != nil {
		return nil, err
	}
	if req.CustomerName != nil {
		updated.CustomerName = *req.CustomerName
	}
	if req.TableNumber != nil {
		updated.TableNumber = *req.TableNumber
	}

	if err := s.orders.ReplaceItems(ctx, &updated); err != nil {
		return nil, errors.Wrap(err, "replace order items")
	}
	return &updated, nil
}

// ServeItem records additional delivered units on an order item.
func (s *Service) ServeItem(ctx context.Context, orderID, itemID string, quantity int) (*Order, error) {
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	updated, err := o.Serve(itemID, quantity)
	if err != nil {
		return nil, err
	}

	idx := updated.itemIndex(itemID)
	if err := s.orders.UpdateServed(ctx, orderID, itemID, updated.Items[idx].QuantityServed); err != nil {
		return nil, errors.Wrap(err, "update served quantity")
	}
	return &updated, nil
}

// SetServedQuantity sets an item's served count to an absolute value.
func (s *Service) SetServedQuantity(ctx context.Context, orderID, itemID string, quantity int) (*Order, error) {
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	updated, err := o.SetServedQuantity(itemID, quantity)
	if err != nil {
		return nil, err
	}

	if err := s.orders.UpdateServed(ctx, orderID, itemID, quantity); err != nil {
		return nil, errors.Wrap(err, "update served quantity")
	}
	return &updated, nil
}

// AddPayments records a batch of payment proposals against the order's
// outstanding balance. requestID is a client-generated identifier; a
// replayed batch is detected by the repository and answered with the
// current order state instead of duplicate payment rows.
func (s *Service) AddPayments(ctx context.Context, orderID, requestID string, proposals []Proposal) (*Order, error) {
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	updated, err := o.AddPayments(proposals)
	if err != nil {
		return nil, err
	}

	added := updated.Payments[len(o.Payments):]
	if err := s.orders.AddPayments(ctx, orderID, requestID, added); err != nil {
		if errors.Is(err, ErrDuplicateRequest) {
			return s.orders.GetByID(ctx, orderID)
		}
		return nil, errors.Wrap(err, "record payments")
	}
	return &updated, nil
}

// CompleteOrder transitions a fully reconciled order to paid and hands it
// to the receipt generator. An unbalanced order never reaches the receipt
// step.
func (s *Service) CompleteOrder(ctx context.Context, orderID string) (*Order, error) {
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	updated, err := o.Complete()
	if err != nil {
		return nil, err
	}

	if err := s.orders.SetStatus(ctx, orderID, StatusActive, StatusPaid); err != nil {
		return nil, errors.Wrap(err, "mark order paid")
	}

	if err := s.receipts.Generate(ctx, &updated); err != nil {
		return &updated, errors.Wrap(err, "generate receipt")
	}
	return &updated, nil
}

// ReplacePayments swaps the whole payment set of an order (possibly
// already paid) after re-validating the exact-match invariant.
func (s *Service) ReplacePayments(ctx context.Context, orderID string, proposals []Proposal) (*Order, error) {
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	updated, err := o.ReplacePayments(proposals)
	if err != nil {
		return nil, err
	}

	if err := s.orders.ReplacePayments(ctx, orderID, updated.Payments); err != nil {
		return nil, errors.Wrap(err, "replace payments")
	}
	return &updated, nil
}

// CancelOrder transitions an active order to canceled.
func (s *Service) CancelOrder(ctx context.Context, orderID string) (*Order, error) {
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	updated, err := o.Cancel()
	if err != nil {
		return nil, err
	}

	if err := s.orders.SetStatus(ctx, orderID, StatusActive, StatusCanceled); err != nil {
		return nil, errors.Wrap(err, "mark order canceled")
	}
	return &updated, nil
}

// GetOrder loads one order by id.
func (s *Service) GetOrder(ctx context.Context, orderID string) (*Order, error) {
	return s.orders.GetByID(ctx, orderID)
}

// ListActive lists all active orders for the venue.
func (s *Service) ListActive(ctx context.Context) ([]Order, error) {
	return s.orders.ListActive(ctx)
}

// History lists closed and canceled orders, newest first.
func (s *Service) History(ctx context.Context, f HistoryFilter) ([]Order, error) {
	return s.orders.History(ctx, f)
}

// snapshotLines validates the raw line inputs and captures catalog
// snapshots for them in a single batch fetch.
func (s *Service) snapshotLines(ctx context.Context, inputs []LineInput) ([]cart.Line, error) {
	if len(inputs) == 0 {
		return nil, ErrEmptyOrder
	}

	ids := make([]string, len(inputs))
	for i, in := range inputs {
		if in.Quantity <= 0 {
			return nil, &InvalidQuantityError{MenuItemID: in.MenuItemID}
		}
		ids[i] = in.MenuItemID
	}

	fetched, err := s.menu.GetByIDs(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "get menu items")
	}
	byID := make(map[string]menu.Item, len(fetched))
	for _, it := range fetched {
		byID[it.ID] = it
	}

	c := cart.New()
	for _, in := range inputs {
		it, ok := byID[in.MenuItemID]
		if !ok {
			return nil, &MenuItemNotFoundError{MenuItemID: in.MenuItemID}
		}
		c.AddOrIncrement(it.Snapshot())
		c.SetQuantity(in.MenuItemID, in.Quantity)
	}
	return c.Lines(), nil
}
