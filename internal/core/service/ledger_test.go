package service

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/backoffice/internal/core/domain"
)

func TestLedger_ReserveRecordsHistory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "LED-1", "5.00", 4)

	res, err := f.ledger.Reserve(ctx, Adjustment{
		ProductID: p.ID, Delta: -3, Reason: domain.ReasonSale, Actor: "tester", Note: "bulk",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.NewQuantity)
	assert.Equal(t, 4, res.Entry.OldQuantity)
	assert.Equal(t, 1, res.Entry.NewQuantity)
	assert.Equal(t, -3, res.Entry.Delta)
	assert.Equal(t, "tester", res.Entry.Actor)
	assert.Equal(t, epoch, res.Entry.CreatedAt)

	history, err := f.store.ListHistory(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, domain.ReasonInitialStock, history[0].Reason)
	assert.Equal(t, res.HistoryID, history[1].ID)
}

func TestLedger_ReserveOutOfStockWritesNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "LED-2", "5.00", 2)

	_, err := f.ledger.Reserve(ctx, Adjustment{ProductID: p.ID, Delta: -3, Reason: domain.ReasonSale})
	require.ErrorIs(t, err, domain.ErrOutOfStock)

	inv, err := f.store.GetInventory(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, inv.Quantity)

	history, err := f.store.ListHistory(ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestLedger_ReserveUnknownProduct(t *testing.T) {
	f := newFixture(t)

	_, err := f.ledger.Reserve(context.Background(), Adjustment{ProductID: 404, Delta: -1, Reason: domain.ReasonSale})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestLedger_ReserveRejectsUnknownReason(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, "LED-3", "5.00", 2)

	_, err := f.ledger.Reserve(context.Background(), Adjustment{ProductID: p.ID, Delta: -1, Reason: "theft"})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestLedger_AdjustComputesDelta(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, "LED-4", "5.00", 3)

	res, err := f.ledger.Adjust(context.Background(), p.ID, 10, domain.ReasonRestock, "clerk", "")
	require.NoError(t, err)
	assert.Equal(t, 10, res.NewQuantity)
	assert.Equal(t, 7, res.Entry.Delta)
	assert.Equal(t, 3, res.Entry.OldQuantity)
}

func TestLedger_AdjustNegativeQuantity(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, "LED-5", "5.00", 3)

	_, err := f.ledger.Adjust(context.Background(), p.ID, -1, domain.ReasonDamage, "clerk", "")
	require.ErrorIs(t, err, domain.ErrInvalidArgument)

	history, err := f.store.ListHistory(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestLedger_ConcurrentReserves(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "LED-6", "5.00", 25)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		success int
	)
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release := f.ledger.Acquire(p.ID)
			defer release()
			if _, err := f.ledger.Reserve(ctx, Adjustment{ProductID: p.ID, Delta: -1, Reason: domain.ReasonSale}); err == nil {
				mu.Lock()
				success++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 25, success)
	inv, err := f.store.GetInventory(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, inv.Quantity)

	history, err := f.store.ListHistory(ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, history, 26)
	for _, h := range history {
		assert.Equal(t, h.Delta, h.NewQuantity-h.OldQuantity)
	}
}
