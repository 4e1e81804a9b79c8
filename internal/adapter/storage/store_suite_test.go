package storage

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/backoffice/internal/core/domain"
	"github.com/rl1809/backoffice/internal/port"
)

// runStoreSuite checks the behaviour every port.Store must share. Rows
// carry random suffixes so the suite can run against a reused database.
func runStoreSuite(t *testing.T, store port.Store) {
	t.Run("CustomerRoundTrip", func(t *testing.T) { testCustomerRoundTrip(t, store) })
	t.Run("DuplicateSKU", func(t *testing.T) { testDuplicateSKU(t, store) })
	t.Run("EmailUniqueIgnoresCase", func(t *testing.T) { testEmailUniqueIgnoresCase(t, store) })
	t.Run("InventoryAndHistory", func(t *testing.T) { testInventoryAndHistory(t, store) })
	t.Run("RollbackOnError", func(t *testing.T) { testRollbackOnError(t, store) })
	t.Run("RollbackOnPanic", func(t *testing.T) { testRollbackOnPanic(t, store) })
	t.Run("OrderFilters", func(t *testing.T) { testOrderFilters(t, store) })
	t.Run("TicketNullableFields", func(t *testing.T) { testTicketNullableFields(t, store) })
	t.Run("NotFound", func(t *testing.T) { testNotFound(t, store) })
}

func suffix() string {
	return uuid.NewString()[:8]
}

func now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

func seedCustomer(t *testing.T, store port.Store) domain.Customer {
	t.Helper()
	c, err := store.CreateCustomer(context.Background(), domain.Customer{
		Name:      "Ada",
		Email:     "ada-" + suffix() + "@example.com",
		CreatedAt: now(),
	})
	require.NoError(t, err)
	return c
}

func seedProduct(t *testing.T, store port.Store, quantity int) domain.Product {
	t.Helper()
	ctx := context.Background()
	p, err := store.CreateProduct(ctx, domain.Product{
		Name:        "Widget",
		SKU:         "SKU-" + suffix(),
		Price:       decimal.RequireFromString("19.99"),
		Description: "test widget",
		CreatedAt:   now(),
	})
	require.NoError(t, err)
	_, err = store.CreateInventory(ctx, domain.Inventory{
		ProductID: p.ID,
		Quantity:  quantity,
		Location:  domain.DefaultLocation,
		CreatedAt: now(),
		UpdatedAt: now(),
	})
	require.NoError(t, err)
	return p
}

func testEmailUniqueIgnoresCase(t *testing.T, store port.Store) {
	ctx := context.Background()
	local := "case-" + suffix()

	_, err := store.CreateCustomer(ctx, domain.Customer{Name: "Ada", Email: local + "@example.com", CreatedAt: now()})
	require.NoError(t, err)
	_, err = store.CreateCustomer(ctx, domain.Customer{Name: "Ada", Email: strings.ToUpper(local) + "@Example.com", CreatedAt: now()})
	assert.ErrorIs(t, err, domain.ErrConflict)

	_, err = store.CreateEmployee(ctx, domain.Employee{Name: "Sam", Email: local + "@example.com", CreatedAt: now()})
	require.NoError(t, err)
	_, err = store.CreateEmployee(ctx, domain.Employee{Name: "Sam", Email: strings.ToUpper(local) + "@EXAMPLE.COM", CreatedAt: now()})
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func testCustomerRoundTrip(t *testing.T, store port.Store) {
	ctx := context.Background()
	c := seedCustomer(t, store)

	require.NoError(t, store.IncrementOrderCount(ctx, c.ID))
	require.NoError(t, store.IncrementOrderCount(ctx, c.ID))

	got, err := store.GetCustomer(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, c.Email, got.Email)
	assert.Equal(t, 2, got.OrderCount)

	_, err = store.CreateCustomer(ctx, domain.Customer{Name: "Dup", Email: c.Email, CreatedAt: now()})
	assert.True(t, errors.Is(err, domain.ErrConflict), "duplicate email: %v", err)
}

func testDuplicateSKU(t *testing.T, store port.Store) {
	ctx := context.Background()
	p := seedProduct(t, store, 1)

	_, err := store.CreateProduct(ctx, domain.Product{
		Name:      "Other",
		SKU:       p.SKU,
		Price:     decimal.NewFromInt(1),
		CreatedAt: now(),
	})
	assert.True(t, errors.Is(err, domain.ErrConflict), "duplicate sku: %v", err)

	got, err := store.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, got.Price.Equal(decimal.RequireFromString("19.99")))
}

func testInventoryAndHistory(t *testing.T, store port.Store) {
	ctx := context.Background()
	p := seedProduct(t, store, 3)

	err := store.WithTx(ctx, func(ctx context.Context) error {
		inv, err := store.LockInventory(ctx, p.ID)
		if err != nil {
			return err
		}
		if _, err := store.SetInventoryQuantity(ctx, p.ID, 10); err != nil {
			return err
		}
		_, err = store.AppendHistory(ctx, domain.InventoryHistory{
			ProductID:   p.ID,
			OldQuantity: inv.Quantity,
			NewQuantity: 10,
			Delta:       10 - inv.Quantity,
			Reason:      domain.ReasonRestock,
			Actor:       "api_user",
			Note:        "restock",
			CreatedAt:   now(),
		})
		return err
	})
	require.NoError(t, err)

	inv, err := store.GetInventory(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, inv.Quantity)
	assert.Equal(t, 1, inv.Version)

	history, err := store.ListHistory(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, 3, history[0].OldQuantity)
	assert.Equal(t, 7, history[0].Delta)
	assert.Equal(t, domain.ReasonRestock, history[0].Reason)
}

func testRollbackOnPanic(t *testing.T, store port.Store) {
	ctx := context.Background()
	p := seedProduct(t, store, 5)

	assert.Panics(t, func() {
		_ = store.WithTx(ctx, func(ctx context.Context) error {
			if _, err := store.SetInventoryQuantity(ctx, p.ID, 1); err != nil {
				return err
			}
			panic("boom")
		})
	})

	inv, err := store.GetInventory(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, inv.Quantity)

	// the aborted unit of work must not hold locks or connections
	err = store.WithTx(ctx, func(ctx context.Context) error {
		_, err := store.SetInventoryQuantity(ctx, p.ID, 2)
		return err
	})
	require.NoError(t, err)
}

func testRollbackOnError(t *testing.T, store port.Store) {
	ctx := context.Background()
	p := seedProduct(t, store, 5)
	c := seedCustomer(t, store)
	boom := errors.New("boom")

	err := store.WithTx(ctx, func(ctx context.Context) error {
		if _, err := store.CreateOrder(ctx, domain.Order{
			CustomerID:  c.ID,
			ProductID:   p.ID,
			ProductName: p.Name,
			SalePrice:   p.Price,
			Status:      domain.OrderStatusPending,
			CreatedAt:   now(),
			UpdatedAt:   now(),
		}); err != nil {
			return err
		}
		if _, err := store.SetInventoryQuantity(ctx, p.ID, 4); err != nil {
			return err
		}
		if err := store.IncrementOrderCount(ctx, c.ID); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	inv, err := store.GetInventory(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, inv.Quantity)

	got, err := store.GetCustomer(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.OrderCount)

	orders, err := store.ListOrders(ctx, domain.OrderFilter{CustomerID: &c.ID})
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func testOrderFilters(t *testing.T, store port.Store) {
	ctx := context.Background()
	p := seedProduct(t, store, 5)
	c := seedCustomer(t, store)

	var ids []int64
	for i := 0; i < 3; i++ {
		o, err := store.CreateOrder(ctx, domain.Order{
			CustomerID:  c.ID,
			ProductID:   p.ID,
			ProductName: p.Name,
			SalePrice:   p.Price,
			Status:      domain.OrderStatusPending,
			CreatedAt:   now(),
			UpdatedAt:   now(),
		})
		require.NoError(t, err)
		ids = append(ids, o.ID)
	}

	completed, err := store.LockOrder(ctx, ids[1])
	require.NoError(t, err)
	completed.Status = domain.OrderStatusCompleted
	completed.UpdatedAt = now()
	require.NoError(t, store.UpdateOrderStatus(ctx, completed))

	byCustomer, err := store.ListOrders(ctx, domain.OrderFilter{CustomerID: &c.ID})
	require.NoError(t, err)
	require.Len(t, byCustomer, 3)
	assert.Equal(t, ids, []int64{byCustomer[0].ID, byCustomer[1].ID, byCustomer[2].ID})

	status := domain.OrderStatusCompleted
	both, err := store.ListOrders(ctx, domain.OrderFilter{Status: &status, CustomerID: &c.ID})
	require.NoError(t, err)
	require.Len(t, both, 1)
	assert.Equal(t, ids[1], both[0].ID)
	assert.True(t, both[0].SalePrice.Equal(p.Price))
}

func testTicketNullableFields(t *testing.T, store port.Store) {
	ctx := context.Background()
	c := seedCustomer(t, store)
	e, err := store.CreateEmployee(ctx, domain.Employee{
		Name:      "Grace",
		Email:     "grace-" + suffix() + "@example.com",
		CreatedAt: now(),
	})
	require.NoError(t, err)

	number := "TCK-" + suffix()
	ticket, err := store.CreateTicket(ctx, domain.Ticket{
		TicketNumber: number,
		CustomerID:   c.ID,
		Subject:      "Broken",
		Description:  "It broke",
		Status:       domain.TicketStatusOpen,
		Priority:     domain.PriorityHigh,
		CreatedAt:    now(),
		UpdatedAt:    now(),
	})
	require.NoError(t, err)

	_, err = store.CreateTicket(ctx, domain.Ticket{
		TicketNumber: number,
		CustomerID:   c.ID,
		Status:       domain.TicketStatusOpen,
		Priority:     domain.PriorityLow,
		CreatedAt:    now(),
		UpdatedAt:    now(),
	})
	assert.True(t, errors.Is(err, domain.ErrConflict), "duplicate ticket number: %v", err)

	got, err := store.GetTicket(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Nil(t, got.AssignedTo)
	assert.Nil(t, got.ResolvedAt)

	got.AssignedTo = &e.ID
	got.ApplyStatus(domain.TicketStatusResolved, now())
	require.NoError(t, store.UpdateTicket(ctx, got))

	got, err = store.GetTicket(ctx, ticket.ID)
	require.NoError(t, err)
	require.NotNil(t, got.AssignedTo)
	assert.Equal(t, e.ID, *got.AssignedTo)
	assert.NotNil(t, got.ResolvedAt)

	priority := domain.PriorityHigh
	list, err := store.ListTickets(ctx, domain.TicketFilter{Priority: &priority, CustomerID: &c.ID})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, number, list[0].TicketNumber)
}

func testNotFound(t *testing.T, store port.Store) {
	ctx := context.Background()
	const missing = int64(1) << 40

	_, err := store.GetCustomer(ctx, missing)
	assert.True(t, errors.Is(err, domain.ErrNotFound), "customer: %v", err)
	_, err = store.GetProduct(ctx, missing)
	assert.True(t, errors.Is(err, domain.ErrNotFound), "product: %v", err)
	_, err = store.GetInventory(ctx, missing)
	assert.True(t, errors.Is(err, domain.ErrNotFound), "inventory: %v", err)
	_, err = store.GetOrder(ctx, missing)
	assert.True(t, errors.Is(err, domain.ErrNotFound), "order: %v", err)
	_, err = store.GetTicket(ctx, missing)
	assert.True(t, errors.Is(err, domain.ErrNotFound), "ticket: %v", err)
	_, err = store.GetEmployee(ctx, missing)
	assert.True(t, errors.Is(err, domain.ErrNotFound), "employee: %v", err)
	assert.True(t, errors.Is(store.IncrementOrderCount(ctx, missing), domain.ErrNotFound))
}
