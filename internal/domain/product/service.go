package product

import (
	"context"
	"io"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ImageStore abstracts product image object storage.
type ImageStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Remove(ctx context.Context, key string) error
	URL(key string) string
}

// Service manages the product catalog, including the image objects attached
// to products.
type Service struct {
	products Repository
	images   ImageStore
}

// NewService creates a product Service.
func NewService(products Repository, images ImageStore) *Service {
	return &Service{products: products, images: images}
}

// CreateRequest holds the input for adding a product to the catalog.
type CreateRequest struct {
	Name          string
	Description   string
	Price         decimal.Decimal
	StockQuantity int
}

// Create adds a product to the catalog. Price and initial stock must be
// non-negative.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Product, error) {
	if req.Price.IsNegative() {
		return nil, ErrNegativePrice
	}
	if req.StockQuantity < 0 {
		return nil, ErrNegativeStock
	}

	p := &Product{
		ID:            uuid.New().String(),
		Name:          req.Name,
		Description:   req.Description,
		Price:         req.Price,
		StockQuantity: req.StockQuantity,
	}
	if err := s.products.Create(ctx, p); err != nil {
		return nil, errors.Wrap(err, "create product")
	}
	return p, nil
}

// Get returns a product by id.
func (s *Service) Get(ctx context.Context, id string) (*Product, error) {
	return s.products.GetByID(ctx, id)
}

// List returns the whole catalog.
func (s *Service) List(ctx context.Context) ([]Product, error) {
	return s.products.List(ctx)
}

// Search returns products matching the query fragment.
func (s *Service) Search(ctx context.Context, query string) ([]Product, error) {
	return s.products.Search(ctx, query)
}

// Count returns the catalog size.
func (s *Service) Count(ctx context.Context) (int64, error) {
	return s.products.Count(ctx)
}

// UpdateRequest holds the mutable product fields. Nil pointers leave the
// current value unchanged. Stock updates here are administrative restocks;
// order fulfillment goes through the inventory ledger instead.
type UpdateRequest struct {
	Name          *string
	Description   *string
	Price         *decimal.Decimal
	StockQuantity *int
}

// Update applies the non-nil fields of req to the product with the given id.
func (s *Service) Update(ctx context.Context, id string, req UpdateRequest) (*Product, error) {
	p, err := s.products.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Price != nil {
		if req.Price.IsNegative() {
			return nil, ErrNegativePrice
		}
		p.Price = *req.Price
	}
	if req.StockQuantity != nil {
		if *req.StockQuantity < 0 {
			return nil, ErrNegativeStock
		}
		p.StockQuantity = *req.StockQuantity
	}
	if req.Name != nil {
		p.Name = *req.Name
	}
	if req.Description != nil {
		p.Description = *req.Description
	}

	if err := s.products.Update(ctx, p); err != nil {
		return nil, errors.Wrap(err, "update product")
	}
	return p, nil
}

// AttachImage stores the image object and records its key on the product,
// removing any previously attached object.
func (s *Service) AttachImage(ctx context.Context, id string, r io.Reader, size int64, contentType string) (*Product, error) {
	p, err := s.products.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	key := "products/" + p.ID + "/" + uuid.New().String()
	if err := s.images.Put(ctx, key, r, size, contentType); err != nil {
		return nil, errors.Wrap(err, "store image")
	}

	old := p.ImageKey
	p.ImageKey = key
	if err := s.products.Update(ctx, p); err != nil {
		return nil, errors.Wrap(err, "update product")
	}

	if old != "" {
		if err := s.images.Remove(ctx, old); err != nil {
			// The product already points to the new object; the stale one is
			// only an orphan in the bucket.
			zctx.From(ctx).Warn("Remove replaced image", zap.String("key", old), zap.Error(err))
		}
	}
	return p, nil
}

// Delete removes a product and its image object, if any.
func (s *Service) Delete(ctx context.Context, id string) error {
	p, err := s.products.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if err := s.products.Delete(ctx, id); err != nil {
		return errors.Wrap(err, "delete product")
	}

	if p.ImageKey != "" {
		if err := s.images.Remove(ctx, p.ImageKey); err != nil {
			zctx.From(ctx).Warn("Remove product image", zap.String("key", p.ImageKey), zap.Error(err))
		}
	}
	return nil
}

// ImageURL resolves a stored image key to a URL callers can fetch. Empty keys
// resolve to an empty URL.
func (s *Service) ImageURL(key string) string {
	if key == "" {
		return ""
	}
	return s.images.URL(key)
}
