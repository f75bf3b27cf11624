package order

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Status labels an order's position in fulfillment. New orders always start
// as StatusPending. Beyond that the store accepts any label a privileged
// caller writes; the constants below are the labels the shop actually uses.
// There is deliberately no transition matrix (see DESIGN.md).
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusPreparing Status = "PREPARING"
	StatusShipped   Status = "SHIPPED"
	StatusDelivered Status = "DELIVERED"
	StatusCancelled Status = "CANCELLED"
)

// Sentinel errors for order operations.
var (
	ErrNotFound    = errors.New("order not found")
	ErrEmptyItems  = errors.New("order requires at least one item")
	ErrEmptyStatus = errors.New("status required")

	// ErrTxConflict signals that a concurrent commit invalidated this one.
	// Storage implementations map their native conflict/serialization errors
	// to this value; the service retries the whole create once.
	ErrTxConflict = errors.New("transaction conflict")
)

// InvalidQuantityError indicates a line item with a non-positive quantity.
type InvalidQuantityError struct {
	ProductID string
	Quantity  int
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be greater than 0 for product %s, got %d", e.ProductID, e.Quantity)
}

// LineItem is one product+quantity entry within an order. UnitPrice is a
// snapshot of the product price at order time; later catalog price changes do
// not affect it.
type LineItem struct {
	ID        string
	OrderID   string
	ProductID string
	Quantity  int
	UnitPrice decimal.Decimal
}

// Subtotal returns quantity × unit price.
func (li LineItem) Subtotal() decimal.Decimal {
	return li.UnitPrice.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

// Order is a customer's placed order with its line items. Total always equals
// the sum of line-item subtotals.
type Order struct {
	ID         string
	CustomerID string
	Status     Status
	Total      decimal.Decimal
	Items      []LineItem
	CreatedAt  time.Time
}

// ItemRequest is one requested product+quantity pair in a create-order call.
type ItemRequest struct {
	ProductID string
	Quantity  int
}

// Repository defines persistence operations for orders.
//
// CreateWithItems is the commit phase of order placement: within a single
// transaction it decrements stock for every item (through the inventory
// ledger), captures unit-price snapshots, persists the order and its items,
// and stores the total. Any failure rolls the whole transaction back; it
// returns *inventory.InsufficientStockError when a decrement cannot be
// satisfied and ErrTxConflict when a concurrent commit invalidated this one.
type Repository interface {
	CreateWithItems(ctx context.Context, customerID string, items []ItemRequest) (*Order, error)
	GetByID(ctx context.Context, id string) (*Order, error)
	List(ctx context.Context) ([]Order, error)
	ListByCustomer(ctx context.Context, customerID string) ([]Order, error)
	Count(ctx context.Context) (int64, error)
	UpdateStatus(ctx context.Context, id string, status Status) (*Order, error)
	// Delete removes the order and all of its line items.
	Delete(ctx context.Context, id string) error
}
