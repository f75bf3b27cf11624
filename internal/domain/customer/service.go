package customer

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
)

// Service wraps the repository with uniqueness checks. Customers are plain
// CRUD entities; the service exists so handlers never talk to storage
// directly.
type Service struct {
	customers Repository
}

// NewService creates a customer Service.
func NewService(customers Repository) *Service {
	return &Service{customers: customers}
}

// CreateRequest holds the input for registering a customer.
type CreateRequest struct {
	Name    string
	Email   string
	Phone   string
	Address string
	UserID  string
}

// Create registers a new customer after checking email and user-link
// uniqueness.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Customer, error) {
	if req.UserID != "" {
		if _, err := s.customers.GetByUserID(ctx, req.UserID); err == nil {
			return nil, ErrUserLinked
		} else if !errors.Is(err, ErrNotFound) {
			return nil, errors.Wrap(err, "check user link")
		}
	}

	if _, err := s.customers.GetByEmail(ctx, req.Email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, ErrNotFound) {
		return nil, errors.Wrap(err, "check email")
	}

	c := &Customer{
		ID:      uuid.New().String(),
		Name:    req.Name,
		Email:   req.Email,
		Phone:   req.Phone,
		Address: req.Address,
		UserID:  req.UserID,
	}
	if err := s.customers.Create(ctx, c); err != nil {
		return nil, errors.Wrap(err, "create customer")
	}
	return c, nil
}

// Get returns a customer by id.
func (s *Service) Get(ctx context.Context, id string) (*Customer, error) {
	return s.customers.GetByID(ctx, id)
}

// List returns all customers.
func (s *Service) List(ctx context.Context) ([]Customer, error) {
	return s.customers.List(ctx)
}

// SearchByName returns customers whose name matches the given fragment.
func (s *Service) SearchByName(ctx context.Context, name string) ([]Customer, error) {
	return s.customers.SearchByName(ctx, name)
}

// Count returns the total number of customers.
func (s *Service) Count(ctx context.Context) (int64, error) {
	return s.customers.Count(ctx)
}

// UpdateRequest holds the mutable customer fields. Nil pointers leave the
// current value unchanged.
type UpdateRequest struct {
	Name    *string
	Email   *string
	Phone   *string
	Address *string
}

// Update applies the non-nil fields of req to the customer with the given id.
// A changed email is re-checked for uniqueness.
func (s *Service) Update(ctx context.Context, id string, req UpdateRequest) (*Customer, error) {
	c, err := s.customers.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Email != nil && *req.Email != c.Email {
		if _, err := s.customers.GetByEmail(ctx, *req.Email); err == nil {
			return nil, ErrEmailTaken
		} else if !errors.Is(err, ErrNotFound) {
			return nil, errors.Wrap(err, "check email")
		}
		c.Email = *req.Email
	}
	if req.Name != nil {
		c.Name = *req.Name
	}
	if req.Phone != nil {
		c.Phone = *req.Phone
	}
	if req.Address != nil {
		c.Address = *req.Address
	}

	if err := s.customers.Update(ctx, c); err != nil {
		return nil, errors.Wrap(err, "update customer")
	}
	return c, nil
}

// Delete removes a customer by id.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.customers.Delete(ctx, id)
}
