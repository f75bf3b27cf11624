// Package memory provides in-memory implementations of the domain
// repositories and the inventory ledger. A single store-wide mutex serializes
// every commit, which gives the same all-or-nothing stock semantics as the
// PostgreSQL transaction. Used by unit tests and handler tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/cardshop/api/internal/domain/customer"
	"github.com/cardshop/api/internal/domain/inventory"
	"github.com/cardshop/api/internal/domain/order"
	"github.com/cardshop/api/internal/domain/product"
	"github.com/cardshop/api/internal/domain/user"
)

// Store holds every entity map behind one RWMutex. Facade accessors expose
// the per-domain repository interfaces.
type Store struct {
	mu        sync.RWMutex
	users     map[string]user.User
	customers map[string]customer.Customer
	products  map[string]product.Product
	orders    map[string]order.Order
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		users:     make(map[string]user.User),
		customers: make(map[string]customer.Customer),
		products:  make(map[string]product.Product),
		orders:    make(map[string]order.Order),
	}
}

// Users returns the user repository view of the store.
func (s *Store) Users() user.Repository { return userRepo{s} }

// Customers returns the customer repository view of the store.
func (s *Store) Customers() customer.Repository { return customerRepo{s} }

// Products returns the product repository view of the store.
func (s *Store) Products() product.Repository { return productRepo{s} }

// Orders returns the order repository view of the store.
func (s *Store) Orders() order.Repository { return orderRepo{s} }

// Ledger returns the inventory ledger view of the store.
func (s *Store) Ledger() inventory.Ledger { return ledger{s} }

// --- users ---

type userRepo struct{ s *Store }

func (r userRepo) Create(_ context.Context, u *user.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.users {
		if existing.Email == u.Email {
			return user.ErrEmailTaken
		}
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	r.s.users[u.ID] = *u
	return nil
}

func (r userRepo) GetByID(_ context.Context, id string) (*user.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, user.ErrNotFound
	}
	return &u, nil
}

func (r userRepo) GetByEmail(_ context.Context, email string) (*user.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, u := range r.s.users {
		if u.Email == email {
			u := u
			return &u, nil
		}
	}
	return nil, user.ErrNotFound
}

// --- customers ---

type customerRepo struct{ s *Store }

func (r customerRepo) Create(_ context.Context, c *customer.Customer) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.customers {
		if existing.Email == c.Email {
			return customer.ErrEmailTaken
		}
	}
	now := time.Now().UTC()
	c.CreatedAt, c.UpdatedAt = now, now
	r.s.customers[c.ID] = *c
	return nil
}

func (r customerRepo) GetByID(_ context.Context, id string) (*customer.Customer, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	c, ok := r.s.customers[id]
	if !ok {
		return nil, customer.ErrNotFound
	}
	return &c, nil
}

func (r customerRepo) GetByEmail(_ context.Context, email string) (*customer.Customer, error) {
	return r.find(func(c customer.Customer) bool { return c.Email == email })
}

func (r customerRepo) GetByUserID(_ context.Context, userID string) (*customer.Customer, error) {
	if userID == "" {
		return nil, customer.ErrNotFound
	}
	return r.find(func(c customer.Customer) bool { return c.UserID == userID })
}

func (r customerRepo) find(match func(customer.Customer) bool) (*customer.Customer, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, c := range r.s.customers {
		if match(c) {
			c := c
			return &c, nil
		}
	}
	return nil, customer.ErrNotFound
}

func (r customerRepo) List(_ context.Context) ([]customer.Customer, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]customer.Customer, 0, len(r.s.customers))
	for _, c := range r.s.customers {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r customerRepo) SearchByName(_ context.Context, name string) ([]customer.Customer, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	needle := strings.ToLower(name)
	out := []customer.Customer{}
	for _, c := range r.s.customers {
		if strings.Contains(strings.ToLower(c.Name), needle) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r customerRepo) Count(_ context.Context) (int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return int64(len(r.s.customers)), nil
}

func (r customerRepo) Update(_ context.Context, c *customer.Customer) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.customers[c.ID]; !ok {
		return customer.ErrNotFound
	}
	c.UpdatedAt = time.Now().UTC()
	r.s.customers[c.ID] = *c
	return nil
}

func (r customerRepo) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.customers[id]; !ok {
		return customer.ErrNotFound
	}
	delete(r.s.customers, id)
	return nil
}

// --- products ---

type productRepo struct{ s *Store }

func (r productRepo) Create(_ context.Context, p *product.Product) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now
	r.s.products[p.ID] = *p
	return nil
}

func (r productRepo) GetByID(_ context.Context, id string) (*product.Product, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	p, ok := r.s.products[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	return &p, nil
}

func (r productRepo) List(_ context.Context) ([]product.Product, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]product.Product, 0, len(r.s.products))
	for _, p := range r.s.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r productRepo) Search(_ context.Context, query string) ([]product.Product, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	needle := strings.ToLower(query)
	out := []product.Product{}
	for _, p := range r.s.products {
		if strings.Contains(strings.ToLower(p.Name), needle) ||
			strings.Contains(strings.ToLower(p.Description), needle) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r productRepo) Count(_ context.Context) (int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return int64(len(r.s.products)), nil
}

func (r productRepo) Update(_ context.Context, p *product.Product) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.products[p.ID]; !ok {
		return product.ErrNotFound
	}
	p.UpdatedAt = time.Now().UTC()
	r.s.products[p.ID] = *p
	return nil
}

func (r productRepo) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.products[id]; !ok {
		return product.ErrNotFound
	}
	delete(r.s.products, id)
	return nil
}

// --- inventory ledger ---

type ledger struct{ s *Store }

func (l ledger) CheckAvailability(_ context.Context, productID string, qty int) (bool, error) {
	l.s.mu.RLock()
	defer l.s.mu.RUnlock()
	p, ok := l.s.products[productID]
	return ok && p.StockQuantity >= qty, nil
}

func (l ledger) Decrement(_ context.Context, productID string, qty int) (int, error) {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	return l.s.decrementLocked(productID, qty)
}

// decrementLocked applies a conditional decrement. Caller must hold s.mu.
func (s *Store) decrementLocked(productID string, qty int) (int, error) {
	p, ok := s.products[productID]
	if !ok || p.StockQuantity < qty {
		return 0, &inventory.InsufficientStockError{ProductID: productID, Requested: qty}
	}
	p.StockQuantity -= qty
	p.UpdatedAt = time.Now().UTC()
	s.products[productID] = p
	return p.StockQuantity, nil
}

// --- orders ---

type orderRepo struct{ s *Store }

// CreateWithItems mirrors the PostgreSQL commit phase under the store mutex:
// availability of every item is verified first, then all decrements, the
// order, and its line items are applied. Holding the lock across both passes
// makes the whole commit atomic against concurrent orders.
func (r orderRepo) CreateWithItems(_ context.Context, customerID string, items []order.ItemRequest) (*order.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	// Check pass: nothing is mutated unless every item can be satisfied.
	for _, item := range items {
		p, ok := r.s.products[item.ProductID]
		if !ok || p.StockQuantity < item.Quantity {
			return nil, &inventory.InsufficientStockError{
				ProductID: item.ProductID,
				Requested: item.Quantity,
			}
		}
	}

	o := order.Order{
		ID:         uuid.New().String(),
		CustomerID: customerID,
		Status:     order.StatusPending,
		Total:      decimal.Zero,
		CreatedAt:  time.Now().UTC(),
	}

	// Apply pass: decrement stock and build the line items with unit-price
	// snapshots.
	for _, item := range items {
		if _, err := r.s.decrementLocked(item.ProductID, item.Quantity); err != nil {
			return nil, err
		}
		li := order.LineItem{
			ID:        uuid.New().String(),
			OrderID:   o.ID,
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: r.s.products[item.ProductID].Price,
		}
		o.Items = append(o.Items, li)
		o.Total = o.Total.Add(li.Subtotal())
	}

	r.s.orders[o.ID] = o
	out := o
	return &out, nil
}

func (r orderRepo) GetByID(_ context.Context, id string) (*order.Order, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	o, ok := r.s.orders[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	return &o, nil
}

func (r orderRepo) List(_ context.Context) ([]order.Order, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]order.Order, 0, len(r.s.orders))
	for _, o := range r.s.orders {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r orderRepo) ListByCustomer(_ context.Context, customerID string) ([]order.Order, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := []order.Order{}
	for _, o := range r.s.orders {
		if o.CustomerID == customerID {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r orderRepo) Count(_ context.Context) (int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return int64(len(r.s.orders)), nil
}

func (r orderRepo) UpdateStatus(_ context.Context, id string, status order.Status) (*order.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	o, ok := r.s.orders[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	o.Status = status
	r.s.orders[id] = o
	return &o, nil
}

func (r orderRepo) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.orders[id]; !ok {
		return order.ErrNotFound
	}
	// Line items live inside the order value, so removing the order removes
	// them with it.
	delete(r.s.orders, id)
	return nil
}
