package storage

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/juju/clock/testclock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLRUCache_StockExpires(t *testing.T) {
	ctx := context.Background()
	clk := testclock.NewClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	cache, err := NewLRUCache(16, clk)
	require.NoError(t, err)

	require.NoError(t, cache.SetStock(ctx, 1, 5))
	qty, ok, err := cache.GetStock(ctx, 1)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 5, qty)

	clk.Advance(stockKeyTTL)
	_, ok, _ = cache.GetStock(ctx, 1)
	assert.False(t, ok, "entry should expire after the stock TTL")
}

func TestLRUCache_Invalidate(t *testing.T) {
	ctx := context.Background()
	cache, err := NewLRUCache(16, nil)
	require.NoError(t, err)

	require.NoError(t, cache.SetStock(ctx, 1, 5))
	require.NoError(t, cache.InvalidateStock(ctx, 1))

	_, ok, _ := cache.GetStock(ctx, 1)
	assert.False(t, ok)
}

func TestLRUCache_Idempotency(t *testing.T) {
	ctx := context.Background()
	clk := testclock.NewClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	cache, err := NewLRUCache(16, clk)
	require.NoError(t, err)

	ok, _ := cache.SetIdempotency(ctx, "k")
	assert.True(t, ok)
	ok, _ = cache.SetIdempotency(ctx, "k")
	assert.False(t, ok)

	require.NoError(t, cache.ReleaseIdempotency(ctx, "k"))
	ok, _ = cache.SetIdempotency(ctx, "k")
	assert.True(t, ok)

	clk.Advance(idempotencyKeyTTL)
	ok, _ = cache.SetIdempotency(ctx, "k")
	assert.True(t, ok, "expired key should be claimable again")
}

func TestLRUCache_IdempotencyConcurrent(t *testing.T) {
	ctx := context.Background()
	cache, err := NewLRUCache(16, nil)
	require.NoError(t, err)

	var wg sync.WaitGroup
	var won atomic.Int64
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := cache.SetIdempotency(ctx, "same"); ok {
				won.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), won.Load())
}
