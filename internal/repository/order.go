package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/masalabox/cafe-pos/internal/domain/order"
)

const (
	createOrderSQL = `INSERT INTO orders (id, order_number, table_number, customer_name, status,
			subtotal, gst_amount, total_amount)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	insertOrderItemSQL = `INSERT INTO order_items (id, order_id, menu_item_id, name, unit_price,
			is_parcel, quantity, quantity_served, position)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	getOrderByIDSQL = `SELECT id, order_number, table_number, customer_name, status,
			subtotal, gst_amount, total_amount, created_at
		FROM orders WHERE id = $1`

	findActiveByTableSQL = `SELECT id, order_number, table_number, customer_name, status,
			subtotal, gst_amount, total_amount, created_at
		FROM orders WHERE table_number = $1 AND status = 'active'`

	listActiveOrdersSQL = `SELECT id, order_number, table_number, customer_name, status,
			subtotal, gst_amount, total_amount, created_at
		FROM orders WHERE status = 'active' ORDER BY table_number`

	historyOrdersSQL = `SELECT id, order_number, table_number, customer_name, status,
			subtotal, gst_amount, total_amount, created_at
		FROM orders
		WHERE status <> 'active'
			AND ($1::timestamptz IS NULL OR created_at >= $1)
			AND ($2::timestamptz IS NULL OR created_at < $2)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4`

	updateOrderHeadSQL = `UPDATE orders SET table_number = $2, customer_name = $3,
			subtotal = $4, gst_amount = $5, total_amount = $6
		WHERE id = $1 AND status = 'active'`

	deleteOrderItemsSQL = `DELETE FROM order_items WHERE order_id = $1`

	updateServedSQL = `UPDATE order_items SET quantity_served = $3
		WHERE order_id = $1 AND id = $2`

	insertPaymentRequestSQL = `INSERT INTO payment_requests (order_id, request_id)
		VALUES ($1, $2)`

	insertPaymentSQL = `INSERT INTO payments (id, order_id, method, amount)
		VALUES ($1, $2, $3, $4)`

	deletePaymentsSQL = `DELETE FROM payments WHERE order_id = $1`

	setOrderStatusSQL = `UPDATE orders SET status = $3 WHERE id = $1 AND status = $2`

	getOrderStatusSQL = `SELECT status FROM orders WHERE id = $1`

	nextOrderNumberSQL = `SELECT nextval('order_number_seq')`

	getOrderItemsSQL = `SELECT order_id, id, menu_item_id, name, unit_price, is_parcel,
			quantity, quantity_served
		FROM order_items WHERE order_id = ANY($1) ORDER BY order_id, position`

	getPaymentsSQL = `SELECT order_id, id, method, amount
		FROM payments WHERE order_id = ANY($1) ORDER BY order_id, recorded_at`
)

// History listing bounds, applied when the caller passes zero or an
// oversized limit.
const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL. Orders
// are stored relationally: a head row plus order_items and payments child
// rows, reassembled on every read.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists a new order with its items in one transaction.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	return r.inTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, createOrderSQL,
			o.ID, o.OrderNumber, o.TableNumber, o.CustomerName, o.Status,
			o.Subtotal, o.GSTAmount, o.TotalAmount,
		)
		if err != nil {
			return fmt.Errorf("creating order %q: %w", o.ID, err)
		}
		return insertItems(ctx, tx, o.ID, o.Items)
	})
}

// GetByID loads one order with its items and payments.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*order.Order, error) {
	return r.getOne(ctx, getOrderByIDSQL, id)
}

// FindActiveByTable returns the table's active order, or order.ErrNotFound
// when the table is free.
func (r *OrderRepository) FindActiveByTable(ctx context.Context, table int) (*order.Order, error) {
	return r.getOne(ctx, findActiveByTableSQL, table)
}

// ReplaceItems rewrites the order head and swaps the full item set in one
// transaction. The status = 'active' guard in the update keeps a
// concurrent completion from being edited over.
func (r *OrderRepository) ReplaceItems(ctx context.Context, o *order.Order) error {
	return r.inTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, updateOrderHeadSQL,
			o.ID, o.TableNumber, o.CustomerName,
			o.Subtotal, o.GSTAmount, o.TotalAmount,
		)
		if err != nil {
			return fmt.Errorf("updating order %q: %w", o.ID, err)
		}
		if tag.RowsAffected() == 0 {
			return r.staleWriteError(ctx, tx, o.ID, "edit")
		}

		if _, err := tx.Exec(ctx, deleteOrderItemsSQL, o.ID); err != nil {
			return fmt.Errorf("clearing items of order %q: %w", o.ID, err)
		}
		return insertItems(ctx, tx, o.ID, o.Items)
	})
}

// UpdateServed sets one item's served count.
func (r *OrderRepository) UpdateServed(ctx context.Context, orderID, itemID string, served int) error {
	tag, err := r.pool.Exec(ctx, updateServedSQL, orderID, itemID, served)
	if err != nil {
		return fmt.Errorf("updating served quantity on order %q: %w", orderID, err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}

// AddPayments appends a payment batch. The request id is claimed first
// inside the same transaction; a second batch carrying the same id hits
// the primary key and the whole insert reports ErrDuplicateRequest.
func (r *OrderRepository) AddPayments(ctx context.Context, orderID, requestID string, payments []order.Payment) error {
	return r.inTx(ctx, func(tx pgx.Tx) error {
		if requestID != "" {
			if _, err := tx.Exec(ctx, insertPaymentRequestSQL, orderID, requestID); err != nil {
				if isUniqueViolation(err) {
					return order.ErrDuplicateRequest
				}
				return fmt.Errorf("claiming payment request %q: %w", requestID, err)
			}
		}
		for _, p := range payments {
			if _, err := tx.Exec(ctx, insertPaymentSQL, p.ID, orderID, p.Method, p.Amount); err != nil {
				return fmt.Errorf("recording payment on order %q: %w", orderID, err)
			}
		}
		return nil
	})
}

// ReplacePayments swaps the order's entire payment set.
func (r *OrderRepository) ReplacePayments(ctx context.Context, orderID string, payments []order.Payment) error {
	return r.inTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, deletePaymentsSQL, orderID); err != nil {
			return fmt.Errorf("clearing payments of order %q: %w", orderID, err)
		}
		for _, p := range payments {
			if _, err := tx.Exec(ctx, insertPaymentSQL, p.ID, orderID, p.Method, p.Amount); err != nil {
				return fmt.Errorf("recording payment on order %q: %w", orderID, err)
			}
		}
		return nil
	})
}

// SetStatus performs the guarded status transition. When the order has
// moved out of the expected state between read and write, the conditional
// update misses and the caller gets the real current state back as an
// InvalidStateError.
func (r *OrderRepository) SetStatus(ctx context.Context, orderID string, from, to order.Status) error {
	tag, err := r.pool.Exec(ctx, setOrderStatusSQL, orderID, from, to)
	if err != nil {
		return fmt.Errorf("setting status of order %q: %w", orderID, err)
	}
	if tag.RowsAffected() == 0 {
		return r.staleWriteError(ctx, r.pool, orderID, "transition")
	}
	return nil
}

// ListActive returns every active order ordered by table number.
func (r *OrderRepository) ListActive(ctx context.Context) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, listActiveOrdersSQL)
	if err != nil {
		return nil, fmt.Errorf("listing active orders: %w", err)
	}
	orders, err := pgx.CollectRows(rows, scanOrder)
	if err != nil {
		return nil, fmt.Errorf("listing active orders: %w", err)
	}
	if err := r.attachChildren(ctx, r.pool, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// History returns closed and canceled orders, newest first, optionally
// bounded by creation time.
func (r *OrderRepository) History(ctx context.Context, f order.HistoryFilter) ([]order.Order, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}

	var from, to any
	if !f.From.IsZero() {
		from = f.From
	}
	if !f.To.IsZero() {
		to = f.To
	}

	rows, err := r.pool.Query(ctx, historyOrdersSQL, from, to, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing order history: %w", err)
	}
	orders, err := pgx.CollectRows(rows, scanOrder)
	if err != nil {
		return nil, fmt.Errorf("listing order history: %w", err)
	}
	if err := r.attachChildren(ctx, r.pool, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// NextOrderNumber reserves the next value of the order number sequence.
func (r *OrderRepository) NextOrderNumber(ctx context.Context) (int64, error) {
	var seq int64
	if err := r.pool.QueryRow(ctx, nextOrderNumberSQL).Scan(&seq); err != nil {
		return 0, fmt.Errorf("reserving order number: %w", err)
	}
	return seq, nil
}

func (r *OrderRepository) getOne(ctx context.Context, sql string, arg any) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, sql, arg)
	if err != nil {
		return nil, fmt.Errorf("getting order: %w", err)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order: %w", err)
	}

	orders := []order.Order{o}
	if err := r.attachChildren(ctx, r.pool, orders); err != nil {
		return nil, err
	}
	return &orders[0], nil
}

// attachChildren loads items and payments for the given orders in two
// batch queries and distributes them by order id.
func (r *OrderRepository) attachChildren(ctx context.Context, q querier, orders []order.Order) error {
	if len(orders) == 0 {
		return nil
	}

	ids := make([]string, len(orders))
	byID := make(map[string]*order.Order, len(orders))
	for i := range orders {
		ids[i] = orders[i].ID
		byID[orders[i].ID] = &orders[i]
	}

	itemRows, err := q.Query(ctx, getOrderItemsSQL, ids)
	if err != nil {
		return fmt.Errorf("loading order items: %w", err)
	}
	err = forEachRow(itemRows, func(row pgx.CollectableRow) error {
		var (
			orderID string
			it      order.Item
		)
		if err := row.Scan(&orderID, &it.ID, &it.MenuItemID, &it.Name,
			&it.UnitPrice, &it.IsParcel, &it.Quantity, &it.QuantityServed); err != nil {
			return err
		}
		o := byID[orderID]
		o.Items = append(o.Items, it)
		return nil
	})
	if err != nil {
		return fmt.Errorf("loading order items: %w", err)
	}

	payRows, err := q.Query(ctx, getPaymentsSQL, ids)
	if err != nil {
		return fmt.Errorf("loading payments: %w", err)
	}
	err = forEachRow(payRows, func(row pgx.CollectableRow) error {
		var (
			orderID string
			p       order.Payment
		)
		if err := row.Scan(&orderID, &p.ID, &p.Method, &p.Amount); err != nil {
			return err
		}
		o := byID[orderID]
		o.Payments = append(o.Payments, p)
		return nil
	})
	if err != nil {
		return fmt.Errorf("loading payments: %w", err)
	}
	return nil
}

// staleWriteError reports why a guarded write affected zero rows: either
// the order is gone or it has moved to another status.
func (r *OrderRepository) staleWriteError(ctx context.Context, q querier, orderID, op string) error {
	rows, err := q.Query(ctx, getOrderStatusSQL, orderID)
	if err != nil {
		return fmt.Errorf("checking status of order %q: %w", orderID, err)
	}
	status, err := pgx.CollectExactlyOneRow(rows, pgx.RowTo[string])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return order.ErrNotFound
		}
		return fmt.Errorf("checking status of order %q: %w", orderID, err)
	}
	return &order.InvalidStateError{Op: op, Status: order.Status(status)}
}

func (r *OrderRepository) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func insertItems(ctx context.Context, tx pgx.Tx, orderID string, items []order.Item) error {
	for pos, it := range items {
		_, err := tx.Exec(ctx, insertOrderItemSQL,
			it.ID, orderID, it.MenuItemID, it.Name, it.UnitPrice,
			it.IsParcel, it.Quantity, it.QuantityServed, pos,
		)
		if err != nil {
			return fmt.Errorf("inserting item %q of order %q: %w", it.ID, orderID, err)
		}
	}
	return nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var o order.Order
	err := row.Scan(
		&o.ID, &o.OrderNumber, &o.TableNumber, &o.CustomerName, &o.Status,
		&o.Subtotal, &o.GSTAmount, &o.TotalAmount, &o.CreatedAt,
	)
	return o, err
}

func forEachRow(rows pgx.Rows, fn func(row pgx.CollectableRow) error) error {
	defer rows.Close()
	for rows.Next() {
		if err := fn(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
