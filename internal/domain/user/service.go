package user

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/cardshop/api/internal/auth"
)

// Service handles account registration and credential verification. Token
// issuance lives in the auth package; this service only decides whether the
// caller is who they claim to be.
type Service struct {
	users Repository
}

// NewService creates a user Service.
func NewService(users Repository) *Service {
	return &Service{users: users}
}

// Register creates a new customer-role account with a hashed password.
func (s *Service) Register(ctx context.Context, name, email, password string) (*User, error) {
	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, ErrNotFound) {
		return nil, errors.Wrap(err, "check email")
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, errors.Wrap(err, "hash password")
	}

	u := &User{
		ID:           uuid.New().String(),
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         RoleCustomer,
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, errors.Wrap(err, "create user")
	}
	return u, nil
}

// Authenticate verifies the email/password pair and returns the matching
// user. Unknown emails and wrong passwords both map to ErrInvalidCredentials
// so callers cannot probe which emails are registered.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*User, error) {
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, errors.Wrap(err, "get user")
	}

	if !auth.VerifyPassword(u.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

// Get returns a user by id.
func (s *Service) Get(ctx context.Context, id string) (*User, error) {
	return s.users.GetByID(ctx, id)
}
