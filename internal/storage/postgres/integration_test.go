//go:build integration

package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"golang.org/x/sync/errgroup"

	"github.com/cardshop/api/internal/domain/customer"
	"github.com/cardshop/api/internal/domain/inventory"
	"github.com/cardshop/api/internal/domain/order"
	"github.com/cardshop/api/internal/domain/product"
	"github.com/cardshop/api/internal/storage/postgres"
)

// setupDB starts a throwaway postgres container, applies the schema, and
// returns the repositories under test.
type testDB struct {
	products  *postgres.ProductRepository
	customers *postgres.CustomerRepository
	orders    *postgres.OrderRepository
	ledger    *postgres.Ledger
}

func setupDB(t *testing.T) *testDB {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:17-alpine",
		tcpostgres.WithDatabase("shop"),
		tcpostgres.WithUsername("shop"),
		tcpostgres.WithPassword("shop"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("terminate postgres container: %v", err)
		}
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := postgres.NewPool(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, postgres.RunMigrations(ctx, pool))

	return &testDB{
		products:  postgres.NewProductRepository(pool),
		customers: postgres.NewCustomerRepository(pool),
		orders:    postgres.NewOrderRepository(pool),
		ledger:    postgres.NewLedger(pool),
	}
}

func (db *testDB) seedProduct(t *testing.T, price string, stock int) string {
	t.Helper()
	p := &product.Product{
		ID:            uuid.NewString(),
		Name:          "product " + uuid.NewString()[:8],
		Price:         decimal.RequireFromString(price),
		StockQuantity: stock,
	}
	require.NoError(t, db.products.Create(context.Background(), p))
	return p.ID
}

func (db *testDB) seedCustomer(t *testing.T) string {
	t.Helper()
	c := &customer.Customer{
		ID:    uuid.NewString(),
		Name:  "customer",
		Email: uuid.NewString() + "@example.com",
	}
	require.NoError(t, db.customers.Create(context.Background(), c))
	return c.ID
}

func (db *testDB) stockOf(t *testing.T, id string) int {
	t.Helper()
	p, err := db.products.GetByID(context.Background(), id)
	require.NoError(t, err)
	return p.StockQuantity
}

func TestLedger_ConditionalDecrement(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	pid := db.seedProduct(t, "10.00", 5)

	ok, err := db.ledger.CheckAvailability(ctx, pid, 5)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = db.ledger.CheckAvailability(ctx, pid, 6)
	require.NoError(t, err)
	assert.False(t, ok)

	left, err := db.ledger.Decrement(ctx, pid, 3)
	require.NoError(t, err)
	assert.Equal(t, 2, left)

	_, err = db.ledger.Decrement(ctx, pid, 3)
	var insufficient *inventory.InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, pid, insufficient.ProductID)
	assert.Equal(t, 2, db.stockOf(t, pid), "failed decrement must not change stock")
}

func TestCreateWithItems_CommitsAtomically(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	cid := db.seedCustomer(t)
	pA := db.seedProduct(t, "19.90", 10)
	pB := db.seedProduct(t, "5.00", 5)

	// Failing request: second item exceeds stock, first must stay untouched.
	_, err := db.orders.CreateWithItems(ctx, cid, []order.ItemRequest{
		{ProductID: pA, Quantity: 3},
		{ProductID: pB, Quantity: 100},
	})
	var insufficient *inventory.InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, pB, insufficient.ProductID)
	assert.Equal(t, 10, db.stockOf(t, pA))
	assert.Equal(t, 5, db.stockOf(t, pB))

	count, err := db.orders.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)

	// Succeeding request.
	o, err := db.orders.CreateWithItems(ctx, cid, []order.ItemRequest{
		{ProductID: pA, Quantity: 4},
		{ProductID: pB, Quantity: 1},
	})
	require.NoError(t, err)
	assert.Equal(t, order.StatusPending, o.Status)
	require.Len(t, o.Items, 2)
	assert.True(t, o.Total.Equal(decimal.RequireFromString("84.60")), "got %s", o.Total)
	assert.Equal(t, 6, db.stockOf(t, pA))
	assert.Equal(t, 4, db.stockOf(t, pB))

	got, err := db.orders.GetByID(ctx, o.ID)
	require.NoError(t, err)
	assert.Len(t, got.Items, 2)
}

func TestCreateWithItems_ConcurrentLastUnit(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	cid := db.seedCustomer(t)
	pid := db.seedProduct(t, "10.00", 1)

	results := make(chan error, 2)
	var g errgroup.Group
	for range 2 {
		g.Go(func() error {
			_, err := db.orders.CreateWithItems(ctx, cid, []order.ItemRequest{
				{ProductID: pid, Quantity: 1},
			})
			results <- err
			return nil
		})
	}
	require.NoError(t, g.Wait())
	close(results)

	var wins, losses int
	for err := range results {
		if err == nil {
			wins++
			continue
		}
		var insufficient *inventory.InsufficientStockError
		require.ErrorAs(t, err, &insufficient)
		losses++
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, 1, losses)
	assert.Equal(t, 0, db.stockOf(t, pid), "stock may never go negative")
}

func TestCreateWithItems_PriceSnapshot(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	cid := db.seedCustomer(t)
	pid := db.seedProduct(t, "10.00", 10)

	o, err := db.orders.CreateWithItems(ctx, cid, []order.ItemRequest{{ProductID: pid, Quantity: 1}})
	require.NoError(t, err)

	p, err := db.products.GetByID(ctx, pid)
	require.NoError(t, err)
	p.Price = decimal.RequireFromString("99.00")
	require.NoError(t, db.products.Update(ctx, p))

	got, err := db.orders.GetByID(ctx, o.ID)
	require.NoError(t, err)
	assert.True(t, got.Items[0].UnitPrice.Equal(decimal.RequireFromString("10.00")),
		"stored unit price must not follow the catalog")
}

func TestOrderDelete_CascadesToItems(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	cid := db.seedCustomer(t)
	pid := db.seedProduct(t, "2.50", 10)

	o, err := db.orders.CreateWithItems(ctx, cid, []order.ItemRequest{{ProductID: pid, Quantity: 2}})
	require.NoError(t, err)

	require.NoError(t, db.orders.Delete(ctx, o.ID))
	_, err = db.orders.GetByID(ctx, o.ID)
	assert.ErrorIs(t, err, order.ErrNotFound)
	assert.ErrorIs(t, db.orders.Delete(ctx, o.ID), order.ErrNotFound)
}

func TestOrderStatus_FreeFormLabel(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	cid := db.seedCustomer(t)
	pid := db.seedProduct(t, "1.00", 1)

	o, err := db.orders.CreateWithItems(ctx, cid, []order.ItemRequest{{ProductID: pid, Quantity: 1}})
	require.NoError(t, err)

	updated, err := db.orders.UpdateStatus(ctx, o.ID, "ON_HOLD")
	require.NoError(t, err)
	assert.Equal(t, order.Status("ON_HOLD"), updated.Status)

	_, err = db.orders.UpdateStatus(ctx, uuid.NewString(), order.StatusShipped)
	assert.ErrorIs(t, err, order.ErrNotFound)
}

func TestCustomerRepo_UniqueEmail(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()

	c := &customer.Customer{ID: uuid.NewString(), Name: "a", Email: "dup@example.com"}
	require.NoError(t, db.customers.Create(ctx, c))

	dup := &customer.Customer{ID: uuid.NewString(), Name: "b", Email: "dup@example.com"}
	assert.ErrorIs(t, db.customers.Create(ctx, dup), customer.ErrEmailTaken)
}
