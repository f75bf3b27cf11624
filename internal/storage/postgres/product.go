package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cardshop/api/internal/domain/product"
)

var _ product.Repository = (*ProductRepository)(nil)

// ProductRepository implements product.Repository backed by PostgreSQL.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

const productColumns = `id, name, description, price, stock_quantity, image_key, created_at, updated_at`

// Create inserts a new catalog product.
func (r *ProductRepository) Create(ctx context.Context, p *product.Product) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO products (id, name, description, price, stock_quantity, image_key)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`, p.ID, p.Name, p.Description, p.Price, p.StockQuantity, p.ImageKey).
		Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return errors.Wrapf(err, "create product %s", p.ID)
	}
	return nil
}

// GetByID returns a product by id, or product.ErrNotFound.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*product.Product, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id)
	p, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, errors.Wrapf(err, "get product %s", id)
	}
	return p, nil
}

// List returns the whole catalog ordered by name.
func (r *ProductRepository) List(ctx context.Context) ([]product.Product, error) {
	return r.query(ctx, `SELECT `+productColumns+` FROM products ORDER BY name`)
}

// Search matches the fragment against names and descriptions.
func (r *ProductRepository) Search(ctx context.Context, query string) ([]product.Product, error) {
	return r.query(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE name ILIKE '%' || $1 || '%' OR description ILIKE '%' || $1 || '%'
		ORDER BY name
	`, query)
}

// Count returns the catalog size.
func (r *ProductRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM products`).Scan(&n); err != nil {
		return 0, errors.Wrap(err, "count products")
	}
	return n, nil
}

// Update persists all mutable fields of p.
func (r *ProductRepository) Update(ctx context.Context, p *product.Product) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE products
		SET name = $2, description = $3, price = $4, stock_quantity = $5,
		    image_key = $6, updated_at = now()
		WHERE id = $1
	`, p.ID, p.Name, p.Description, p.Price, p.StockQuantity, p.ImageKey)
	if err != nil {
		return errors.Wrapf(err, "update product %s", p.ID)
	}
	if tag.RowsAffected() == 0 {
		return product.ErrNotFound
	}
	return nil
}

// Delete removes a product by id.
func (r *ProductRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return errors.Wrapf(err, "delete product %s", id)
	}
	if tag.RowsAffected() == 0 {
		return product.ErrNotFound
	}
	return nil
}

func (r *ProductRepository) query(ctx context.Context, sql string, args ...any) ([]product.Product, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, errors.Wrap(err, "query products")
	}
	defer rows.Close()

	products := []product.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan product")
		}
		products = append(products, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "query products")
	}
	return products, nil
}

func scanProduct(row pgx.Row) (*product.Product, error) {
	p := &product.Product{}
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.StockQuantity,
		&p.ImageKey, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return p, nil
}
