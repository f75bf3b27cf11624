package customer

import (
	"context"
	"time"

	"github.com/go-faster/errors"
)

// Sentinel errors for customer operations.
var (
	ErrNotFound   = errors.New("customer not found")
	ErrEmailTaken = errors.New("email already registered")
	ErrUserLinked = errors.New("user already has a customer record")
)

// Customer is a buyer record. A customer may optionally be linked to an
// authentication user.
type Customer struct {
	ID        string
	Name      string
	Email     string
	Phone     string
	Address   string
	UserID    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Repository defines persistence operations for customers.
type Repository interface {
	Create(ctx context.Context, c *Customer) error
	GetByID(ctx context.Context, id string) (*Customer, error)
	GetByEmail(ctx context.Context, email string) (*Customer, error)
	GetByUserID(ctx context.Context, userID string) (*Customer, error)
	List(ctx context.Context) ([]Customer, error)
	SearchByName(ctx context.Context, name string) ([]Customer, error)
	Count(ctx context.Context) (int64, error)
	Update(ctx context.Context, c *Customer) error
	Delete(ctx context.Context, id string) error
}

// Exists reports whether a customer with the given id is present in repo.
func Exists(ctx context.Context, repo Repository, id string) (bool, error) {
	_, err := repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
