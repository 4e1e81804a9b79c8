package service

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/backoffice/internal/core/domain"
)

func TestCreateProduct(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p, inv, err := f.inventory.CreateProduct(ctx, CreateProductInput{
		Name:     "Kettle",
		SKU:      "KET-1",
		Price:    decimal.RequireFromString("19.99"),
		Quantity: 3,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, inv.Quantity)
	assert.Equal(t, domain.DefaultLocation, inv.Location)

	history, err := f.inventory.ListHistory(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, domain.ReasonInitialStock, history[0].Reason)
	assert.Equal(t, 0, history[0].OldQuantity)
	assert.Equal(t, 3, history[0].NewQuantity)
	assert.Equal(t, systemActor, history[0].Actor)

	_, _, err = f.inventory.CreateProduct(ctx, CreateProductInput{Name: "Other", SKU: "KET-1", Price: decimal.NewFromInt(1)})
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestCreateProduct_Validation(t *testing.T) {
	f := newFixture(t)

	cases := map[string]CreateProductInput{
		"MissingName":      {SKU: "A", Price: decimal.NewFromInt(1)},
		"MissingSKU":       {Name: "A", Price: decimal.NewFromInt(1)},
		"NegativePrice":    {Name: "A", SKU: "A", Price: decimal.NewFromInt(-1)},
		"NegativeQuantity": {Name: "A", SKU: "A", Price: decimal.NewFromInt(1), Quantity: -2},
		"SubCentPrice":     {Name: "A", SKU: "A", Price: decimal.RequireFromString("14.555")},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, _, err := f.inventory.CreateProduct(context.Background(), in)
			assert.ErrorIs(t, err, domain.ErrInvalidArgument)
		})
	}
}

func TestUpdateInventory_Restock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "KET-1", "19.99", 3)

	inv, err := f.inventory.UpdateInventory(ctx, p.ID, 10, "restock", "delivery 42")
	require.NoError(t, err)
	assert.Equal(t, 10, inv.Quantity)

	history, err := f.inventory.ListHistory(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	entry := history[1]
	assert.Equal(t, 3, entry.OldQuantity)
	assert.Equal(t, 10, entry.NewQuantity)
	assert.Equal(t, 7, entry.Delta)
	assert.Equal(t, domain.ReasonRestock, entry.Reason)
	assert.Equal(t, apiActor, entry.Actor)
	assert.Equal(t, "delivery 42", entry.Note)

	assert.Equal(t, []domain.EventKind{domain.EventStockChanged}, f.events.kinds())
}

func TestUpdateInventory_EmptyReasonIsAdjustment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "KET-1", "19.99", 3)

	_, err := f.inventory.UpdateInventory(ctx, p.ID, 1, "", "")
	require.NoError(t, err)

	history, err := f.inventory.ListHistory(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, domain.ReasonAdjustment, history[1].Reason)
	assert.Equal(t, -2, history[1].Delta)
}

func TestUpdateInventory_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "KET-1", "19.99", 3)

	_, err := f.inventory.UpdateInventory(ctx, p.ID, 5, "lost", "")
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	_, err = f.inventory.UpdateInventory(ctx, p.ID, -1, "damage", "")
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	_, err = f.inventory.UpdateInventory(ctx, 999, 5, "restock", "")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	history, err := f.inventory.ListHistory(ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, history, 1)

	_, err = f.inventory.ListHistory(ctx, 999)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStock_ServesFromCacheUntilInvalidated(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "KET-1", "19.99", 3)

	got, err := f.inventory.Stock(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got)

	cached, ok, err := f.cache.GetStock(ctx, p.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 3, cached)

	_, err = f.inventory.UpdateInventory(ctx, p.ID, 8, "restock", "")
	require.NoError(t, err)

	got, err = f.inventory.Stock(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 8, got)
}

func TestStock_CacheDoesNotGateOrders(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.customer(t, "jane@example.com")
	p := f.product(t, "KET-1", "19.99", 1)

	// a stale cached value must not let a second order through
	require.NoError(t, f.cache.SetStock(ctx, p.ID, 50))

	_, err := f.orders.CreateOrder(ctx, CreateOrderInput{CustomerID: c.ID, ProductID: p.ID})
	require.NoError(t, err)
	require.NoError(t, f.cache.SetStock(ctx, p.ID, 50))

	_, err = f.orders.CreateOrder(ctx, CreateOrderInput{CustomerID: c.ID, ProductID: p.ID})
	assert.ErrorIs(t, err, domain.ErrOutOfStock)
}
