package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rl1809/backoffice/internal/core/domain"
	"github.com/rl1809/backoffice/internal/port"
)

const (
	systemActor = "system"
	apiActor    = "api_user"
)

// InventoryService manages products and their stock. All quantity changes
// go through the StockLedger.
type InventoryService struct {
	store  port.Store
	ledger *StockLedger
	options
}

func NewInventoryService(store port.Store, ledger *StockLedger, opts ...Option) *InventoryService {
	return &InventoryService{
		store:   store,
		ledger:  ledger,
		options: newOptions(opts),
	}
}

type CreateProductInput struct {
	Name        string
	SKU         string
	Price       decimal.Decimal
	Description string
	Quantity    int
}

// CreateProduct stores the product with an inventory record holding the
// initial quantity, logged as an initial_stock change from zero.
func (s *InventoryService) CreateProduct(ctx context.Context, in CreateProductInput) (domain.Product, domain.Inventory, error) {
	switch {
	case strings.TrimSpace(in.Name) == "":
		return domain.Product{}, domain.Inventory{}, fmt.Errorf("product name is required: %w", domain.ErrInvalidArgument)
	case strings.TrimSpace(in.SKU) == "":
		return domain.Product{}, domain.Inventory{}, fmt.Errorf("sku is required: %w", domain.ErrInvalidArgument)
	case in.Quantity < 0:
		return domain.Product{}, domain.Inventory{}, fmt.Errorf("quantity %d cannot be negative: %w", in.Quantity, domain.ErrInvalidArgument)
	}

	if err := domain.ValidatePrice("price", in.Price); err != nil {
		return domain.Product{}, domain.Inventory{}, err
	}

	var (
		product domain.Product
		res     Reservation
		adj     Adjustment
	)
	start := time.Now()
	err := s.store.WithTx(ctx, func(ctx context.Context) error {
		now := s.now()
		var err error
		product, err = s.store.CreateProduct(ctx, domain.Product{
			Name:        in.Name,
			SKU:         in.SKU,
			Price:       in.Price,
			Description: in.Description,
			CreatedAt:   now,
		})
		if err != nil {
			return err
		}

		if _, err := s.store.CreateInventory(ctx, domain.Inventory{
			ProductID: product.ID,
			Location:  domain.DefaultLocation,
			CreatedAt: now,
			UpdatedAt: now,
		}); err != nil {
			return fmt.Errorf("insert inventory: %w", err)
		}

		adj = Adjustment{
			ProductID: product.ID,
			Delta:     in.Quantity,
			Reason:    domain.ReasonInitialStock,
			Actor:     systemActor,
			Note:      "Initial product creation",
		}
		res, err = s.ledger.reserve(ctx, adj)
		return err
	})
	if adj.ProductID != 0 {
		s.ledger.observe(adj, err, time.Since(start))
	}
	if err != nil {
		return domain.Product{}, domain.Inventory{}, err
	}

	s.logger.Info("product created",
		zap.Int64("product_id", product.ID),
		zap.String("sku", product.SKU),
		zap.Int("quantity", res.NewQuantity),
	)
	return product, res.Inventory, nil
}

func (s *InventoryService) GetProduct(ctx context.Context, id int64) (domain.Product, error) {
	return s.store.GetProduct(ctx, id)
}

func (s *InventoryService) GetInventory(ctx context.Context, productID int64) (domain.Inventory, error) {
	return s.store.GetInventory(ctx, productID)
}

// Stock returns the on-hand quantity, served from the cache when possible.
// The cached value is advisory; reservations always read the store.
func (s *InventoryService) Stock(ctx context.Context, productID int64) (int, error) {
	if quantity, ok, err := s.cache.GetStock(ctx, productID); err != nil {
		s.logger.Warn("stock cache read failed", zap.Int64("product_id", productID), zap.Error(err))
	} else if ok {
		return quantity, nil
	}

	inv, err := s.store.GetInventory(ctx, productID)
	if err != nil {
		return 0, err
	}
	if err := s.cache.SetStock(ctx, productID, inv.Quantity); err != nil {
		s.logger.Warn("stock cache write failed", zap.Int64("product_id", productID), zap.Error(err))
	}
	return inv.Quantity, nil
}

// UpdateInventory sets the product's quantity directly and logs the
// difference under reason, adjustment when empty.
func (s *InventoryService) UpdateInventory(ctx context.Context, productID int64, newQuantity int, reason, note string) (domain.Inventory, error) {
	if reason == "" {
		reason = string(domain.ReasonAdjustment)
	}
	r, err := domain.ParseChangeReason(reason)
	if err != nil {
		return domain.Inventory{}, err
	}

	release := s.ledger.Acquire(productID)
	res, err := s.ledger.Adjust(ctx, productID, newQuantity, r, apiActor, note)
	release()
	if err != nil {
		return domain.Inventory{}, err
	}

	if err := s.cache.InvalidateStock(ctx, productID); err != nil {
		s.logger.Warn("failed to invalidate cached stock", zap.Int64("product_id", productID), zap.Error(err))
	}
	s.publisher.Publish(domain.Event{
		Kind:       domain.EventStockChanged,
		EntityID:   productID,
		Quantity:   res.NewQuantity,
		OccurredAt: res.Entry.CreatedAt,
	})
	s.logger.Info("inventory updated",
		zap.Int64("product_id", productID),
		zap.Int("old_quantity", res.Entry.OldQuantity),
		zap.Int("new_quantity", res.NewQuantity),
		zap.String("reason", reason),
	)
	return res.Inventory, nil
}

func (s *InventoryService) ListHistory(ctx context.Context, productID int64) ([]domain.InventoryHistory, error) {
	if _, err := s.store.GetProduct(ctx, productID); err != nil {
		return nil, err
	}
	return s.store.ListHistory(ctx, productID)
}
