package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/cardshop/api/internal/domain/inventory"
)

var _ inventory.Ledger = (*Ledger)(nil)

// Ledger implements inventory.Ledger over a Querier. Constructed over the
// pool it serves pre-flight availability checks; constructed over an open
// transaction it performs the commit-phase decrements, so the row locks taken
// by Decrement hold until the enclosing transaction resolves.
type Ledger struct {
	db Querier
}

// NewLedger returns a Ledger backed by db.
func NewLedger(db Querier) *Ledger {
	return &Ledger{db: db}
}

// CheckAvailability reports whether the product exists with at least qty
// units in stock. Read-only; the result can be stale by commit time.
func (l *Ledger) CheckAvailability(ctx context.Context, productID string, qty int) (bool, error) {
	var available bool
	err := l.db.QueryRow(ctx, `
		SELECT stock_quantity >= $2
		FROM products
		WHERE id = $1
	`, productID, qty).Scan(&available)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, errors.Wrapf(err, "check stock of product %s", productID)
	}
	return available, nil
}

// Decrement conditionally reduces the product's stock. The WHERE clause
// revalidates stock under the row lock, so the stock_quantity >= 0 invariant
// holds even under concurrent decrements; a zero-row update means the product
// is missing or short on stock and nothing was changed.
func (l *Ledger) Decrement(ctx context.Context, productID string, qty int) (int, error) {
	var remaining int
	err := l.db.QueryRow(ctx, `
		UPDATE products
		SET stock_quantity = stock_quantity - $2, updated_at = now()
		WHERE id = $1 AND stock_quantity >= $2
		RETURNING stock_quantity
	`, productID, qty).Scan(&remaining)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, &inventory.InsufficientStockError{ProductID: productID, Requested: qty}
		}
		return 0, errors.Wrapf(err, "decrement stock of product %s", productID)
	}
	return remaining, nil
}
