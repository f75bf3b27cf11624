package postgres

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/cardshop/api/internal/domain/order"
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// CreateWithItems runs the commit phase of order placement in one
// transaction: stock decrements, order row, line items with price snapshots,
// and the recomputed total become visible together or not at all.
//
// Decrements run in ascending product-id order so concurrent multi-product
// orders take their row locks in a consistent order and cannot deadlock each
// other. Line items are still persisted in request order.
func (r *OrderRepository) CreateWithItems(ctx context.Context, customerID string, items []order.ItemRequest) (*order.Order, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	o := &order.Order{
		ID:         uuid.New().String(),
		CustomerID: customerID,
		Status:     order.StatusPending,
		Total:      decimal.Zero,
		CreatedAt:  time.Now().UTC(),
	}

	// Provisional row with total zero; the real total is stored after the
	// items are finalized.
	_, err = tx.Exec(ctx, `
		INSERT INTO orders (id, customer_id, status, total, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, o.ID, o.CustomerID, o.Status, o.Total, o.CreatedAt)
	if err != nil {
		return nil, mapConflict(errors.Wrap(err, "insert order"))
	}

	// Lock phase: decrement every item through the tx-scoped ledger. Any
	// shortfall aborts the whole transaction, undoing prior decrements.
	led := NewLedger(tx)
	locked := slices.Clone(items)
	slices.SortFunc(locked, func(a, b order.ItemRequest) int {
		return strings.Compare(a.ProductID, b.ProductID)
	})
	for _, item := range locked {
		if _, err := led.Decrement(ctx, item.ProductID, item.Quantity); err != nil {
			return nil, mapConflict(err)
		}
	}

	// Item phase: snapshot unit prices from the now-locked product rows and
	// persist the line items in request order.
	for _, item := range items {
		var price decimal.Decimal
		err := tx.QueryRow(ctx, `
			SELECT price FROM products WHERE id = $1
		`, item.ProductID).Scan(&price)
		if err != nil {
			return nil, errors.Wrapf(err, "snapshot price of product %s", item.ProductID)
		}

		li := order.LineItem{
			ID:        uuid.New().String(),
			OrderID:   o.ID,
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: price,
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO order_items (id, order_id, product_id, quantity, unit_price)
			VALUES ($1, $2, $3, $4, $5)
		`, li.ID, li.OrderID, li.ProductID, li.Quantity, li.UnitPrice)
		if err != nil {
			return nil, mapConflict(errors.Wrap(err, "insert order item"))
		}

		o.Items = append(o.Items, li)
		o.Total = o.Total.Add(li.Subtotal())
	}

	if _, err := tx.Exec(ctx, `UPDATE orders SET total = $2 WHERE id = $1`, o.ID, o.Total); err != nil {
		return nil, mapConflict(errors.Wrap(err, "store total"))
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, mapConflict(errors.Wrap(err, "commit"))
	}
	return o, nil
}

// GetByID returns an order with its line items, or order.ErrNotFound.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*order.Order, error) {
	o := &order.Order{}
	err := r.pool.QueryRow(ctx, `
		SELECT id, customer_id, status, total, created_at
		FROM orders
		WHERE id = $1
	`, id).Scan(&o.ID, &o.CustomerID, &o.Status, &o.Total, &o.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, errors.Wrapf(err, "get order %s", id)
	}

	items, err := r.itemsByOrder(ctx, []string{id})
	if err != nil {
		return nil, err
	}
	o.Items = items[id]
	return o, nil
}

// List returns all orders, newest first, with their line items.
func (r *OrderRepository) List(ctx context.Context) ([]order.Order, error) {
	return r.list(ctx, `
		SELECT id, customer_id, status, total, created_at
		FROM orders
		ORDER BY created_at DESC
	`)
}

// ListByCustomer returns the given customer's orders, newest first.
func (r *OrderRepository) ListByCustomer(ctx context.Context, customerID string) ([]order.Order, error) {
	return r.list(ctx, `
		SELECT id, customer_id, status, total, created_at
		FROM orders
		WHERE customer_id = $1
		ORDER BY created_at DESC
	`, customerID)
}

// Count returns the total number of orders.
func (r *OrderRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM orders`).Scan(&n); err != nil {
		return 0, errors.Wrap(err, "count orders")
	}
	return n, nil
}

// UpdateStatus overwrites the status label and returns the updated order.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, status order.Status) (*order.Order, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE orders SET status = $2 WHERE id = $1
	`, id, status)
	if err != nil {
		return nil, errors.Wrapf(err, "update status of order %s", id)
	}
	if tag.RowsAffected() == 0 {
		return nil, order.ErrNotFound
	}
	return r.GetByID(ctx, id)
}

// Delete removes the order and its line items in one transaction.
func (r *OrderRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM order_items WHERE order_id = $1`, id); err != nil {
		return errors.Wrap(err, "delete order items")
	}

	tag, err := tx.Exec(ctx, `DELETE FROM orders WHERE id = $1`, id)
	if err != nil {
		return errors.Wrapf(err, "delete order %s", id)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}

	return errors.Wrap(tx.Commit(ctx), "commit")
}

func (r *OrderRepository) list(ctx context.Context, sql string, args ...any) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	defer rows.Close()

	orders := []order.Order{}
	var ids []string
	for rows.Next() {
		var o order.Order
		if err := rows.Scan(&o.ID, &o.CustomerID, &o.Status, &o.Total, &o.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "scan order")
		}
		orders = append(orders, o)
		ids = append(ids, o.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	if len(ids) == 0 {
		return orders, nil
	}

	items, err := r.itemsByOrder(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		orders[i].Items = items[orders[i].ID]
	}
	return orders, nil
}

// itemsByOrder fetches the line items for all given orders in one query.
func (r *OrderRepository) itemsByOrder(ctx context.Context, orderIDs []string) (map[string][]order.LineItem, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, order_id, product_id, quantity, unit_price
		FROM order_items
		WHERE order_id = ANY($1)
		ORDER BY id
	`, orderIDs)
	if err != nil {
		return nil, errors.Wrap(err, "list order items")
	}
	defer rows.Close()

	items := make(map[string][]order.LineItem, len(orderIDs))
	for rows.Next() {
		var li order.LineItem
		if err := rows.Scan(&li.ID, &li.OrderID, &li.ProductID, &li.Quantity, &li.UnitPrice); err != nil {
			return nil, errors.Wrap(err, "scan order item")
		}
		items[li.OrderID] = append(items[li.OrderID], li)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "list order items")
	}
	return items, nil
}
