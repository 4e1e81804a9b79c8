package storage

import (
	"context"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/juju/clock"
)

type lruEntry struct {
	quantity  int
	expiresAt time.Time
}

// LRUCache is the in-process CacheRepository used when no Redis address
// is configured. Idempotency keys share the same bounded cache, so a key
// can be evicted before its TTL under heavy load.
type LRUCache struct {
	stock *lru.Cache
	keys  *lru.Cache
	clock clock.Clock

	// keyMu makes the expired-key check and re-add one step
	keyMu sync.Mutex
}

func NewLRUCache(size int, clk clock.Clock) (*LRUCache, error) {
	stock, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	keys, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	if clk == nil {
		clk = clock.WallClock
	}
	return &LRUCache{stock: stock, keys: keys, clock: clk}, nil
}

func (c *LRUCache) GetStock(_ context.Context, productID int64) (int, bool, error) {
	v, ok := c.stock.Get(productID)
	if !ok {
		return 0, false, nil
	}
	entry := v.(lruEntry)
	if !c.clock.Now().Before(entry.expiresAt) {
		c.stock.Remove(productID)
		return 0, false, nil
	}
	return entry.quantity, true, nil
}

func (c *LRUCache) SetStock(_ context.Context, productID int64, quantity int) error {
	c.stock.Add(productID, lruEntry{quantity: quantity, expiresAt: c.clock.Now().Add(stockKeyTTL)})
	return nil
}

func (c *LRUCache) InvalidateStock(_ context.Context, productID int64) error {
	c.stock.Remove(productID)
	return nil
}

func (c *LRUCache) SetIdempotency(_ context.Context, key string) (bool, error) {
	c.keyMu.Lock()
	defer c.keyMu.Unlock()

	now := c.clock.Now()
	if v, ok := c.keys.Get(key); ok && now.Before(v.(time.Time)) {
		return false, nil
	}
	c.keys.Add(key, now.Add(idempotencyKeyTTL))
	return true, nil
}

func (c *LRUCache) ReleaseIdempotency(_ context.Context, key string) error {
	c.keys.Remove(key)
	return nil
}
