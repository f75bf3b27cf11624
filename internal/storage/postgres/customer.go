package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cardshop/api/internal/domain/customer"
)

var _ customer.Repository = (*CustomerRepository)(nil)

// CustomerRepository implements customer.Repository backed by PostgreSQL.
type CustomerRepository struct {
	pool *pgxpool.Pool
}

// NewCustomerRepository returns a CustomerRepository that uses the given pool.
func NewCustomerRepository(pool *pgxpool.Pool) *CustomerRepository {
	return &CustomerRepository{pool: pool}
}

const customerColumns = `id, name, email, phone, address, coalesce(user_id, ''), created_at, updated_at`

// Create inserts a new customer. A duplicate email maps to
// customer.ErrEmailTaken.
func (r *CustomerRepository) Create(ctx context.Context, c *customer.Customer) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO customers (id, name, email, phone, address, user_id)
		VALUES ($1, $2, $3, $4, $5, nullif($6, ''))
		RETURNING created_at, updated_at
	`, c.ID, c.Name, c.Email, c.Phone, c.Address, c.UserID).
		Scan(&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return customer.ErrEmailTaken
		}
		return errors.Wrapf(err, "create customer %s", c.ID)
	}
	return nil
}

// GetByID returns a customer by id, or customer.ErrNotFound.
func (r *CustomerRepository) GetByID(ctx context.Context, id string) (*customer.Customer, error) {
	return r.get(ctx, `SELECT `+customerColumns+` FROM customers WHERE id = $1`, id)
}

// GetByEmail returns a customer by email, or customer.ErrNotFound.
func (r *CustomerRepository) GetByEmail(ctx context.Context, email string) (*customer.Customer, error) {
	return r.get(ctx, `SELECT `+customerColumns+` FROM customers WHERE email = $1`, email)
}

// GetByUserID returns the customer linked to an auth user, or
// customer.ErrNotFound.
func (r *CustomerRepository) GetByUserID(ctx context.Context, userID string) (*customer.Customer, error) {
	return r.get(ctx, `SELECT `+customerColumns+` FROM customers WHERE user_id = $1`, userID)
}

// List returns all customers ordered by name.
func (r *CustomerRepository) List(ctx context.Context) ([]customer.Customer, error) {
	return r.query(ctx, `SELECT `+customerColumns+` FROM customers ORDER BY name`)
}

// SearchByName matches the fragment against customer names.
func (r *CustomerRepository) SearchByName(ctx context.Context, name string) ([]customer.Customer, error) {
	return r.query(ctx, `
		SELECT `+customerColumns+`
		FROM customers
		WHERE name ILIKE '%' || $1 || '%'
		ORDER BY name
	`, name)
}

// Count returns the total number of customers.
func (r *CustomerRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM customers`).Scan(&n); err != nil {
		return 0, errors.Wrap(err, "count customers")
	}
	return n, nil
}

// Update persists all mutable fields of c.
func (r *CustomerRepository) Update(ctx context.Context, c *customer.Customer) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE customers
		SET name = $2, email = $3, phone = $4, address = $5, updated_at = now()
		WHERE id = $1
	`, c.ID, c.Name, c.Email, c.Phone, c.Address)
	if err != nil {
		if isUniqueViolation(err) {
			return customer.ErrEmailTaken
		}
		return errors.Wrapf(err, "update customer %s", c.ID)
	}
	if tag.RowsAffected() == 0 {
		return customer.ErrNotFound
	}
	return nil
}

// Delete removes a customer by id.
func (r *CustomerRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM customers WHERE id = $1`, id)
	if err != nil {
		return errors.Wrapf(err, "delete customer %s", id)
	}
	if tag.RowsAffected() == 0 {
		return customer.ErrNotFound
	}
	return nil
}

func (r *CustomerRepository) get(ctx context.Context, sql string, arg any) (*customer.Customer, error) {
	c := &customer.Customer{}
	err := r.pool.QueryRow(ctx, sql, arg).
		Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.Address, &c.UserID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, customer.ErrNotFound
		}
		return nil, errors.Wrap(err, "get customer")
	}
	return c, nil
}

func (r *CustomerRepository) query(ctx context.Context, sql string, args ...any) ([]customer.Customer, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, errors.Wrap(err, "query customers")
	}
	defer rows.Close()

	customers := []customer.Customer{}
	for rows.Next() {
		var c customer.Customer
		err := rows.Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.Address, &c.UserID,
			&c.CreatedAt, &c.UpdatedAt)
		if err != nil {
			return nil, errors.Wrap(err, "scan customer")
		}
		customers = append(customers, c)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "query customers")
	}
	return customers, nil
}
