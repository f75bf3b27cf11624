package memory_test

import (
	"context"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/cardshop/api/internal/domain/customer"
	"github.com/cardshop/api/internal/domain/inventory"
	"github.com/cardshop/api/internal/domain/order"
	"github.com/cardshop/api/internal/domain/product"
	"github.com/cardshop/api/internal/storage/memory"
)

func seedProduct(t *testing.T, s *memory.Store, id string, price string, stock int) {
	t.Helper()
	require.NoError(t, s.Products().Create(context.Background(), &product.Product{
		ID:            id,
		Name:          "product " + id,
		Price:         decimal.RequireFromString(price),
		StockQuantity: stock,
	}))
}

func seedCustomer(t *testing.T, s *memory.Store, id string) {
	t.Helper()
	require.NoError(t, s.Customers().Create(context.Background(), &customer.Customer{
		ID:    id,
		Name:  "customer " + id,
		Email: id + "@example.com",
	}))
}

func stockOf(t *testing.T, s *memory.Store, id string) int {
	t.Helper()
	p, err := s.Products().GetByID(context.Background(), id)
	require.NoError(t, err)
	return p.StockQuantity
}

func TestCreateWithItems_Success(t *testing.T) {
	s := memory.NewStore()
	seedCustomer(t, s, "c1")
	seedProduct(t, s, "p1", "19.90", 10)
	seedProduct(t, s, "p2", "5.00", 3)

	o, err := s.Orders().CreateWithItems(context.Background(), "c1", []order.ItemRequest{
		{ProductID: "p1", Quantity: 4},
		{ProductID: "p2", Quantity: 1},
	})

	require.NoError(t, err)
	assert.Equal(t, order.StatusPending, o.Status)
	require.Len(t, o.Items, 2)
	assert.True(t, o.Total.Equal(decimal.RequireFromString("84.60")), "4x19.90 + 1x5.00, got %s", o.Total)
	assert.Equal(t, 6, stockOf(t, s, "p1"))
	assert.Equal(t, 2, stockOf(t, s, "p2"))

	got, err := s.Orders().GetByID(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Len(t, got.Items, 2)
}

func TestCreateWithItems_AtomicOnFailure(t *testing.T) {
	s := memory.NewStore()
	seedCustomer(t, s, "c1")
	seedProduct(t, s, "pA", "10.00", 10)
	seedProduct(t, s, "pB", "10.00", 5)

	_, err := s.Orders().CreateWithItems(context.Background(), "c1", []order.ItemRequest{
		{ProductID: "pA", Quantity: 3},
		{ProductID: "pB", Quantity: 100},
	})

	var insufficient *inventory.InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, "pB", insufficient.ProductID)

	assert.Equal(t, 10, stockOf(t, s, "pA"), "first item must not be decremented")
	assert.Equal(t, 5, stockOf(t, s, "pB"))

	count, err := s.Orders().Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count, "no order may be persisted")
}

func TestCreateWithItems_PriceSnapshot(t *testing.T) {
	s := memory.NewStore()
	seedCustomer(t, s, "c1")
	seedProduct(t, s, "p1", "10.00", 10)

	o, err := s.Orders().CreateWithItems(context.Background(), "c1", []order.ItemRequest{
		{ProductID: "p1", Quantity: 1},
	})
	require.NoError(t, err)

	// Raise the catalog price after the order.
	p, err := s.Products().GetByID(context.Background(), "p1")
	require.NoError(t, err)
	p.Price = decimal.RequireFromString("99.00")
	require.NoError(t, s.Products().Update(context.Background(), p))

	got, err := s.Orders().GetByID(context.Background(), o.ID)
	require.NoError(t, err)
	assert.True(t, got.Items[0].UnitPrice.Equal(decimal.RequireFromString("10.00")),
		"stored unit price must not follow the catalog")
	assert.True(t, got.Total.Equal(decimal.RequireFromString("10.00")))
}

func TestCreateWithItems_ConcurrentLastUnit(t *testing.T) {
	// Two orders race for the last unit: exactly one wins and stock ends at
	// zero, never negative.
	s := memory.NewStore()
	seedCustomer(t, s, "c1")
	seedCustomer(t, s, "c2")
	seedProduct(t, s, "p1", "10.00", 1)

	var mu sync.Mutex
	var wins, losses int

	var g errgroup.Group
	for _, cid := range []string{"c1", "c2"} {
		g.Go(func() error {
			_, err := s.Orders().CreateWithItems(context.Background(), cid, []order.ItemRequest{
				{ProductID: "p1", Quantity: 1},
			})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				wins++
				return nil
			}
			var insufficient *inventory.InsufficientStockError
			if !assert.ErrorAs(t, err, &insufficient) {
				return err
			}
			losses++
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, 1, wins)
	assert.Equal(t, 1, losses)
	assert.Equal(t, 0, stockOf(t, s, "p1"))
}

func TestLedger(t *testing.T) {
	s := memory.NewStore()
	seedProduct(t, s, "p1", "1.00", 5)
	ctx := context.Background()

	ok, err := s.Ledger().CheckAvailability(ctx, "p1", 5)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Ledger().CheckAvailability(ctx, "p1", 6)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.Ledger().CheckAvailability(ctx, "ghost", 1)
	require.NoError(t, err)
	assert.False(t, ok, "unknown product is never available")

	left, err := s.Ledger().Decrement(ctx, "p1", 3)
	require.NoError(t, err)
	assert.Equal(t, 2, left)

	_, err = s.Ledger().Decrement(ctx, "p1", 3)
	var insufficient *inventory.InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, 2, stockOf(t, s, "p1"), "failed decrement must not change stock")
}

func TestOrderDelete_RemovesItems(t *testing.T) {
	s := memory.NewStore()
	seedCustomer(t, s, "c1")
	seedProduct(t, s, "p1", "2.50", 10)

	o, err := s.Orders().CreateWithItems(context.Background(), "c1", []order.ItemRequest{
		{ProductID: "p1", Quantity: 2},
	})
	require.NoError(t, err)

	require.NoError(t, s.Orders().Delete(context.Background(), o.ID))

	_, err = s.Orders().GetByID(context.Background(), o.ID)
	assert.ErrorIs(t, err, order.ErrNotFound)

	assert.ErrorIs(t, s.Orders().Delete(context.Background(), o.ID), order.ErrNotFound)
}

func TestCustomerRepo_DuplicateEmail(t *testing.T) {
	s := memory.NewStore()
	seedCustomer(t, s, "c1")

	err := s.Customers().Create(context.Background(), &customer.Customer{
		ID:    "c2",
		Name:  "other",
		Email: "c1@example.com",
	})
	assert.ErrorIs(t, err, customer.ErrEmailTaken)
}
