package port

import "context"

type CacheRepository interface {
	// GetStock returns the cached quantity, ok is false on a miss
	GetStock(ctx context.Context, productID int64) (quantity int, ok bool, err error)

	// SetStock caches the quantity read from the store
	SetStock(ctx context.Context, productID int64, quantity int) error

	// InvalidateStock drops the cached quantity after a ledger write
	InvalidateStock(ctx context.Context, productID int64) error

	// SetIdempotency sets a key for idempotency check, returns false if already exists
	SetIdempotency(ctx context.Context, key string) (bool, error)

	// ReleaseIdempotency removes the key so a failed request can be resubmitted
	ReleaseIdempotency(ctx context.Context, key string) error
}
