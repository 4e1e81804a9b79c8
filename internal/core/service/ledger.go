package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/im7mortal/kmutex"
	"go.uber.org/zap"

	"github.com/rl1809/backoffice/internal/core/domain"
	"github.com/rl1809/backoffice/internal/port"
)

const (
	outcomeOK         = "ok"
	outcomeOutOfStock = "out_of_stock"
	outcomeError      = "error"
)

// LedgerStore is the part of the entity store the ledger writes through.
type LedgerStore interface {
	port.TxRunner
	port.InventoryRepository
}

// Adjustment is one requested change of a product's on-hand quantity.
type Adjustment struct {
	ProductID int64
	Delta     int
	Reason    domain.ChangeReason
	Actor     string
	Note      string
}

// Reservation is the outcome of a ledger write.
type Reservation struct {
	NewQuantity int
	HistoryID   int64
	Entry       domain.InventoryHistory
	Inventory   domain.Inventory
}

// StockLedger is the only writer of inventory quantities. Every write
// appends exactly one history entry in the same unit of work.
type StockLedger struct {
	store LedgerStore
	locks *kmutex.Kmutex
	options
}

func NewStockLedger(store LedgerStore, opts ...Option) *StockLedger {
	return &StockLedger{
		store:   store,
		locks:   kmutex.New(),
		options: newOptions(opts),
	}
}

// Acquire takes the in-process write scope for productID. Callers take it
// before opening the unit of work and call release once it has ended.
func (l *StockLedger) Acquire(productID int64) (release func()) {
	l.locks.Lock(productID)
	return func() { l.locks.Unlock(productID) }
}

// Reserve applies adj.Delta to the product's quantity. It fails with
// domain.ErrOutOfStock when the quantity would drop below zero. Called
// inside a unit of work it joins it; otherwise it opens its own.
func (l *StockLedger) Reserve(ctx context.Context, adj Adjustment) (Reservation, error) {
	start := time.Now()
	res, err := l.reserve(ctx, adj)
	l.observe(adj, err, time.Since(start))
	return res, err
}

// reserve is Reserve without the metrics. Callers that run it inside their
// own unit of work observe the outcome once that unit of work has ended.
func (l *StockLedger) reserve(ctx context.Context, adj Adjustment) (Reservation, error) {
	var res Reservation
	err := l.store.WithTx(ctx, func(ctx context.Context) error {
		inv, err := l.store.LockInventory(ctx, adj.ProductID)
		if err != nil {
			return fmt.Errorf("lock inventory: %w", err)
		}
		res, err = l.write(ctx, inv, adj)
		return err
	})
	if err != nil {
		return Reservation{}, err
	}
	return res, nil
}

// Adjust sets the product's quantity to newQuantity, recording the
// difference from the current quantity as the delta.
func (l *StockLedger) Adjust(ctx context.Context, productID int64, newQuantity int, reason domain.ChangeReason, actor, note string) (Reservation, error) {
	if newQuantity < 0 {
		return Reservation{}, fmt.Errorf("quantity %d cannot be negative: %w", newQuantity, domain.ErrInvalidArgument)
	}
	start := time.Now()

	adj := Adjustment{ProductID: productID, Reason: reason, Actor: actor, Note: note}
	var res Reservation
	err := l.store.WithTx(ctx, func(ctx context.Context) error {
		inv, err := l.store.LockInventory(ctx, productID)
		if err != nil {
			return fmt.Errorf("lock inventory: %w", err)
		}
		adj.Delta = newQuantity - inv.Quantity
		res, err = l.write(ctx, inv, adj)
		return err
	})
	l.observe(adj, err, time.Since(start))
	if err != nil {
		return Reservation{}, err
	}
	return res, nil
}

func (l *StockLedger) write(ctx context.Context, inv domain.Inventory, adj Adjustment) (Reservation, error) {
	if _, err := domain.ParseChangeReason(string(adj.Reason)); err != nil {
		return Reservation{}, err
	}

	newQuantity := inv.Quantity + adj.Delta
	if newQuantity < 0 {
		return Reservation{}, fmt.Errorf("product %d: available %d, requested %d: %w",
			adj.ProductID, inv.Quantity, -adj.Delta, domain.ErrOutOfStock)
	}

	updated, err := l.store.SetInventoryQuantity(ctx, adj.ProductID, newQuantity)
	if err != nil {
		return Reservation{}, fmt.Errorf("update inventory: %w", err)
	}

	entry, err := l.store.AppendHistory(ctx, domain.InventoryHistory{
		ProductID:   adj.ProductID,
		OldQuantity: inv.Quantity,
		NewQuantity: updated.Quantity,
		Delta:       adj.Delta,
		Reason:      adj.Reason,
		Actor:       adj.Actor,
		Note:        adj.Note,
		CreatedAt:   l.now(),
	})
	if err != nil {
		return Reservation{}, fmt.Errorf("append inventory history: %w", err)
	}

	return Reservation{
		NewQuantity: updated.Quantity,
		HistoryID:   entry.ID,
		Entry:       entry,
		Inventory:   updated,
	}, nil
}

func (l *StockLedger) observe(adj Adjustment, err error, elapsed time.Duration) {
	outcome := outcomeOK
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrOutOfStock):
		outcome = outcomeOutOfStock
	default:
		outcome = outcomeError
	}
	l.metrics.ObserveReservation(string(adj.Reason), outcome, elapsed)

	if err != nil && outcome == outcomeError {
		l.logger.Warn("ledger write failed",
			zap.Int64("product_id", adj.ProductID),
			zap.Int("delta", adj.Delta),
			zap.String("reason", string(adj.Reason)),
			zap.Error(err),
		)
	}
}
