package order_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardshop/api/internal/domain/customer"
	"github.com/cardshop/api/internal/domain/inventory"
	"github.com/cardshop/api/internal/domain/order"
)

// mockCustomers implements customer.Repository for the ids it knows about.
type mockCustomers struct {
	customer.Repository
	known map[string]bool
}

func (m *mockCustomers) GetByID(_ context.Context, id string) (*customer.Customer, error) {
	if !m.known[id] {
		return nil, customer.ErrNotFound
	}
	return &customer.Customer{ID: id}, nil
}

// mockLedger tracks stock in a plain map.
type mockLedger struct {
	stock map[string]int
}

func (m *mockLedger) CheckAvailability(_ context.Context, productID string, qty int) (bool, error) {
	return m.stock[productID] >= qty, nil
}

func (m *mockLedger) Decrement(_ context.Context, productID string, qty int) (int, error) {
	if m.stock[productID] < qty {
		return 0, &inventory.InsufficientStockError{ProductID: productID, Requested: qty}
	}
	m.stock[productID] -= qty
	return m.stock[productID], nil
}

// mockOrders records CreateWithItems calls and can be programmed to fail.
type mockOrders struct {
	order.Repository
	ledger   *mockLedger
	prices   map[string]decimal.Decimal
	created  []*order.Order
	failWith []error // popped per call; nil entry means succeed
	calls    int
}

func (m *mockOrders) CreateWithItems(ctx context.Context, customerID string, items []order.ItemRequest) (*order.Order, error) {
	m.calls++
	if len(m.failWith) > 0 {
		err := m.failWith[0]
		m.failWith = m.failWith[1:]
		if err != nil {
			return nil, err
		}
	}

	o := &order.Order{
		ID:         "order-1",
		CustomerID: customerID,
		Status:     order.StatusPending,
		Total:      decimal.Zero,
	}
	for _, item := range items {
		if _, err := m.ledger.Decrement(ctx, item.ProductID, item.Quantity); err != nil {
			return nil, err
		}
		li := order.LineItem{
			OrderID:   o.ID,
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: m.prices[item.ProductID],
		}
		o.Items = append(o.Items, li)
		o.Total = o.Total.Add(li.Subtotal())
	}
	m.created = append(m.created, o)
	return o, nil
}

type fixture struct {
	svc    *order.Service
	ledger *mockLedger
	orders *mockOrders
}

func newFixture(stock map[string]int, prices map[string]decimal.Decimal) *fixture {
	ledger := &mockLedger{stock: stock}
	orders := &mockOrders{ledger: ledger, prices: prices}
	customers := &mockCustomers{known: map[string]bool{"cust-1": true}}
	return &fixture{
		svc:    order.NewService(customers, ledger, orders),
		ledger: ledger,
		orders: orders,
	}
}

func TestCreate_UnknownCustomer(t *testing.T) {
	f := newFixture(map[string]int{"p1": 10}, nil)

	_, err := f.svc.Create(context.Background(), "nobody", []order.ItemRequest{{ProductID: "p1", Quantity: 1}})

	assert.ErrorIs(t, err, customer.ErrNotFound)
	assert.Equal(t, 10, f.ledger.stock["p1"], "stock must be untouched")
	assert.Zero(t, f.orders.calls)
}

func TestCreate_EmptyItems(t *testing.T) {
	f := newFixture(map[string]int{}, nil)

	_, err := f.svc.Create(context.Background(), "cust-1", nil)

	assert.ErrorIs(t, err, order.ErrEmptyItems)
}

func TestCreate_InvalidQuantity(t *testing.T) {
	f := newFixture(map[string]int{"p1": 10}, nil)

	for _, qty := range []int{0, -3} {
		_, err := f.svc.Create(context.Background(), "cust-1", []order.ItemRequest{{ProductID: "p1", Quantity: qty}})

		var invalid *order.InvalidQuantityError
		require.ErrorAs(t, err, &invalid)
		assert.Equal(t, "p1", invalid.ProductID)
		assert.Equal(t, qty, invalid.Quantity)
	}
	assert.Equal(t, 10, f.ledger.stock["p1"])
}

func TestCreate_InsufficientStock_NoPartialDecrement(t *testing.T) {
	// First item is satisfiable, second is not. The whole request must fail
	// with the failing product named, and no stock may move.
	f := newFixture(map[string]int{"pA": 10, "pB": 5}, nil)

	_, err := f.svc.Create(context.Background(), "cust-1", []order.ItemRequest{
		{ProductID: "pA", Quantity: 3},
		{ProductID: "pB", Quantity: 100},
	})

	var insufficient *inventory.InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, "pB", insufficient.ProductID)
	assert.Equal(t, 100, insufficient.Requested)

	assert.Equal(t, 10, f.ledger.stock["pA"], "satisfiable item must not be decremented")
	assert.Equal(t, 5, f.ledger.stock["pB"])
	assert.Zero(t, f.orders.calls, "commit phase must not run")
}

func TestCreate_Success(t *testing.T) {
	price := decimal.RequireFromString("19.90")
	f := newFixture(map[string]int{"p1": 10}, map[string]decimal.Decimal{"p1": price})

	o, err := f.svc.Create(context.Background(), "cust-1", []order.ItemRequest{{ProductID: "p1", Quantity: 4}})

	require.NoError(t, err)
	assert.Equal(t, order.StatusPending, o.Status)
	assert.Equal(t, "cust-1", o.CustomerID)
	require.Len(t, o.Items, 1)
	assert.True(t, o.Items[0].UnitPrice.Equal(price), "unit price must be snapshotted")
	assert.True(t, o.Total.Equal(price.Mul(decimal.NewFromInt(4))), "total = 4 x unit price, got %s", o.Total)
	assert.Equal(t, 6, f.ledger.stock["p1"], "stock 10 - 4 = 6")
}

func TestCreate_RetriesOnceOnConflict(t *testing.T) {
	price := decimal.RequireFromString("5.00")
	f := newFixture(map[string]int{"p1": 3}, map[string]decimal.Decimal{"p1": price})
	f.orders.failWith = []error{order.ErrTxConflict, nil}

	o, err := f.svc.Create(context.Background(), "cust-1", []order.ItemRequest{{ProductID: "p1", Quantity: 1}})

	require.NoError(t, err)
	assert.Equal(t, 2, f.orders.calls, "exactly one retry")
	assert.True(t, o.Total.Equal(price))
}

func TestCreate_ConflictTwiceIsTerminal(t *testing.T) {
	f := newFixture(map[string]int{"p1": 3}, nil)
	f.orders.failWith = []error{order.ErrTxConflict, order.ErrTxConflict}

	_, err := f.svc.Create(context.Background(), "cust-1", []order.ItemRequest{{ProductID: "p1", Quantity: 1}})

	assert.ErrorIs(t, err, order.ErrTxConflict)
	assert.Equal(t, 2, f.orders.calls, "no second retry")
}

func TestCreate_InsufficientStockIsNotRetried(t *testing.T) {
	f := newFixture(map[string]int{"p1": 3}, nil)
	f.orders.failWith = []error{&inventory.InsufficientStockError{ProductID: "p1", Requested: 2}}

	_, err := f.svc.Create(context.Background(), "cust-1", []order.ItemRequest{{ProductID: "p1", Quantity: 2}})

	var insufficient *inventory.InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, 1, f.orders.calls)
}

func TestCreate_CommitPhaseInsufficientStock(t *testing.T) {
	// Stock vanishes between the pre-flight check and commit: the commit
	// phase's own validation must surface the error.
	f := newFixture(map[string]int{"p1": 2}, map[string]decimal.Decimal{"p1": decimal.New(1, 0)})
	f.orders.failWith = []error{nil}

	// Drain stock behind the service's back after pre-flight would pass.
	drained := &drainingLedger{inner: f.ledger}
	svc := order.NewService(&mockCustomers{known: map[string]bool{"cust-1": true}}, drained, f.orders)

	_, err := svc.Create(context.Background(), "cust-1", []order.ItemRequest{{ProductID: "p1", Quantity: 2}})

	var insufficient *inventory.InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
}

// drainingLedger passes availability checks but removes the stock right
// after, simulating a concurrent order landing between check and commit.
type drainingLedger struct {
	inner *mockLedger
}

func (d *drainingLedger) CheckAvailability(ctx context.Context, productID string, qty int) (bool, error) {
	ok, err := d.inner.CheckAvailability(ctx, productID, qty)
	d.inner.stock[productID] = 0
	return ok, err
}

func (d *drainingLedger) Decrement(ctx context.Context, productID string, qty int) (int, error) {
	return d.inner.Decrement(ctx, productID, qty)
}

func TestUpdateStatus(t *testing.T) {
	f := newFixture(map[string]int{}, nil)

	_, err := f.svc.UpdateStatus(context.Background(), "order-1", "")
	assert.ErrorIs(t, err, order.ErrEmptyStatus)
}

func TestListByCustomer_UnknownCustomer(t *testing.T) {
	f := newFixture(map[string]int{}, nil)

	_, err := f.svc.ListByCustomer(context.Background(), "nobody")
	assert.ErrorIs(t, err, customer.ErrNotFound)
}
