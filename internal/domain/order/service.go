package order

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/cardshop/api/internal/domain/customer"
	"github.com/cardshop/api/internal/domain/inventory"
)

// Service assembles orders: it validates a request against the customer store
// and the inventory ledger, then hands the commit phase to the repository as
// one atomic unit. Stock is either decremented for every requested item or
// for none of them.
type Service struct {
	customers customer.Repository
	ledger    inventory.Ledger
	orders    Repository
}

// NewService creates an order Service with the required domain dependencies.
func NewService(customers customer.Repository, ledger inventory.Ledger, orders Repository) *Service {
	return &Service{
		customers: customers,
		ledger:    ledger,
		orders:    orders,
	}
}

// Create places an order for customerID covering the requested items.
//
// The request fails as a whole if the customer is unknown, the item list is
// empty, any quantity is non-positive, or any product lacks stock — in every
// failure case no stock is touched and no order is persisted. A conflicting
// concurrent commit (ErrTxConflict) is retried once from scratch; all other
// errors are terminal for the request.
func (s *Service) Create(ctx context.Context, customerID string, items []ItemRequest) (*Order, error) {
	o, err := s.create(ctx, customerID, items)
	if errors.Is(err, ErrTxConflict) {
		zctx.From(ctx).Info("Retrying order create after conflict",
			zap.String("customer_id", customerID))
		o, err = s.create(ctx, customerID, items)
	}
	return o, err
}

func (s *Service) create(ctx context.Context, customerID string, items []ItemRequest) (*Order, error) {
	ok, err := customer.Exists(ctx, s.customers, customerID)
	if err != nil {
		return nil, errors.Wrap(err, "check customer")
	}
	if !ok {
		return nil, customer.ErrNotFound
	}

	if len(items) == 0 {
		return nil, ErrEmptyItems
	}
	for _, item := range items {
		if item.Quantity <= 0 {
			return nil, &InvalidQuantityError{ProductID: item.ProductID, Quantity: item.Quantity}
		}
	}

	// Pre-flight availability pass. This catches unavailable items before any
	// mutation; the commit phase revalidates every decrement anyway, since a
	// concurrent order may consume stock between here and commit.
	for _, item := range items {
		available, err := s.ledger.CheckAvailability(ctx, item.ProductID, item.Quantity)
		if err != nil {
			return nil, errors.Wrapf(err, "check availability of product %s", item.ProductID)
		}
		if !available {
			return nil, &inventory.InsufficientStockError{
				ProductID: item.ProductID,
				Requested: item.Quantity,
			}
		}
	}

	o, err := s.orders.CreateWithItems(ctx, customerID, items)
	if err != nil {
		// InsufficientStockError and ErrTxConflict pass through untouched so
		// callers can match on them.
		return nil, err
	}

	zctx.From(ctx).Info("Order created",
		zap.String("order_id", o.ID),
		zap.String("customer_id", customerID),
		zap.Int("items", len(o.Items)),
		zap.String("total", o.Total.String()))
	return o, nil
}

// Get returns an order with its line items.
func (s *Service) Get(ctx context.Context, id string) (*Order, error) {
	return s.orders.GetByID(ctx, id)
}

// List returns all orders.
func (s *Service) List(ctx context.Context) ([]Order, error) {
	return s.orders.List(ctx)
}

// ListByCustomer returns the orders belonging to the given customer. The
// customer must exist.
func (s *Service) ListByCustomer(ctx context.Context, customerID string) ([]Order, error) {
	ok, err := customer.Exists(ctx, s.customers, customerID)
	if err != nil {
		return nil, errors.Wrap(err, "check customer")
	}
	if !ok {
		return nil, customer.ErrNotFound
	}
	return s.orders.ListByCustomer(ctx, customerID)
}

// Count returns the total number of orders.
func (s *Service) Count(ctx context.Context) (int64, error) {
	return s.orders.Count(ctx)
}

// UpdateStatus overwrites the order's status label unconditionally. Any
// non-empty label is accepted; authorization is the caller's concern.
func (s *Service) UpdateStatus(ctx context.Context, id string, status Status) (*Order, error) {
	if status == "" {
		return nil, ErrEmptyStatus
	}
	o, err := s.orders.UpdateStatus(ctx, id, status)
	if err != nil {
		return nil, err
	}

	zctx.From(ctx).Info("Order status updated",
		zap.String("order_id", id),
		zap.String("status", string(status)))
	return o, nil
}

// Delete removes an order and all of its line items.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.orders.Delete(ctx, id); err != nil {
		return err
	}
	zctx.From(ctx).Info("Order deleted", zap.String("order_id", id))
	return nil
}
