// Package inventory defines the ledger that owns per-product stock counts.
// During order fulfillment the ledger is the only component allowed to mutate
// stock, so the non-negativity invariant has a single enforcement point.
package inventory

import (
	"context"
	"fmt"
)

// InsufficientStockError indicates a product is missing or does not have
// enough stock to satisfy the requested quantity.
type InsufficientStockError struct {
	ProductID string
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s (requested %d)", e.ProductID, e.Requested)
}

// Ledger exposes atomic check-and-decrement over product stock.
type Ledger interface {
	// CheckAvailability reports whether the product exists and has at least
	// qty units in stock. It has no side effects; availability can change
	// between a check and a later decrement, so decrements revalidate.
	CheckAvailability(ctx context.Context, productID string, qty int) (bool, error)

	// Decrement reduces the product's stock by qty and returns the new count.
	// It succeeds only if stock >= qty at the moment of mutation; otherwise it
	// returns *InsufficientStockError and changes nothing. Failed decrements
	// are never retried by the ledger.
	Decrement(ctx context.Context, productID string, qty int) (int, error)
}
