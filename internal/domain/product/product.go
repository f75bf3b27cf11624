package product

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Sentinel errors for catalog operations.
var (
	ErrNotFound      = errors.New("product not found")
	ErrNegativeStock = errors.New("stock quantity cannot be negative")
	ErrNegativePrice = errors.New("price cannot be negative")
)

// Product is a catalog item. StockQuantity is the authoritative stock count
// and never goes below zero; during order fulfillment it is mutated only
// through the inventory ledger.
type Product struct {
	ID            string
	Name          string
	Description   string
	Price         decimal.Decimal
	StockQuantity int
	ImageKey      string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Repository defines persistence operations for the product catalog.
type Repository interface {
	Create(ctx context.Context, p *Product) error
	GetByID(ctx context.Context, id string) (*Product, error)
	List(ctx context.Context) ([]Product, error)
	// Search matches the fragment against product names and descriptions,
	// case-insensitively.
	Search(ctx context.Context, query string) ([]Product, error)
	Count(ctx context.Context) (int64, error)
	Update(ctx context.Context, p *Product) error
	Delete(ctx context.Context, id string) error
}
