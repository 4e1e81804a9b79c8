package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rl1809/backoffice/internal/core/domain"
	"github.com/rl1809/backoffice/internal/port"
)

const (
	orderActor           = "order_system"
	idempotencyKeyPrefix = "idempotency:order:"
)

type OrderService struct {
	store  port.Store
	ledger *StockLedger
	options
}

func NewOrderService(store port.Store, ledger *StockLedger, opts ...Option) *OrderService {
	return &OrderService{
		store:   store,
		ledger:  ledger,
		options: newOptions(opts),
	}
}

type CreateOrderInput struct {
	// RequestID, when set, makes a resubmission of the same request fail
	// with ErrDuplicateRequest instead of placing a second order.
	RequestID  string
	CustomerID int64
	ProductID  int64

	// SalePrice overrides the product's current price when non-nil.
	SalePrice *decimal.Decimal
}

// CreateOrder reserves one unit of the product and records the order. The
// order row, the inventory decrement, its history entry and the customer's
// order counter commit together or not at all.
func (s *OrderService) CreateOrder(ctx context.Context, in CreateOrderInput) (domain.Order, error) {
	if in.SalePrice != nil {
		if err := domain.ValidatePrice("sale price", *in.SalePrice); err != nil {
			return domain.Order{}, err
		}
	}

	var idempotencyKey string
	if in.RequestID != "" {
		idempotencyKey = idempotencyKeyPrefix + in.RequestID
		ok, err := s.cache.SetIdempotency(ctx, idempotencyKey)
		if err != nil {
			return domain.Order{}, fmt.Errorf("idempotency check failed: %w", err)
		}
		if !ok {
			return domain.Order{}, ErrDuplicateRequest
		}
	}

	order, res, err := s.placeOrder(ctx, in)
	if err != nil {
		if idempotencyKey != "" {
			if releaseErr := s.cache.ReleaseIdempotency(context.WithoutCancel(ctx), idempotencyKey); releaseErr != nil {
				s.logger.Warn("failed to release idempotency key",
					zap.String("request_id", in.RequestID), zap.Error(releaseErr))
			}
		}
		return domain.Order{}, err
	}

	if err := s.cache.InvalidateStock(ctx, order.ProductID); err != nil {
		s.logger.Warn("failed to invalidate cached stock",
			zap.Int64("product_id", order.ProductID), zap.Error(err))
	}
	s.metrics.OrderCreated()
	s.publisher.Publish(domain.Event{
		Kind:       domain.EventOrderCreated,
		EntityID:   order.ID,
		Status:     string(order.Status),
		OccurredAt: order.CreatedAt,
	})
	s.publisher.Publish(domain.Event{
		Kind:       domain.EventStockChanged,
		EntityID:   order.ProductID,
		Quantity:   res.NewQuantity,
		OccurredAt: res.Entry.CreatedAt,
	})

	s.logger.Info("order created",
		zap.Int64("order_id", order.ID),
		zap.Int64("customer_id", order.CustomerID),
		zap.Int64("product_id", order.ProductID),
		zap.String("sale_price", order.SalePrice.String()),
		zap.Int("stock_left", res.NewQuantity),
	)
	return order, nil
}

func (s *OrderService) placeOrder(ctx context.Context, in CreateOrderInput) (domain.Order, Reservation, error) {
	release := s.ledger.Acquire(in.ProductID)
	defer release()

	var (
		order    domain.Order
		res      Reservation
		adj      Adjustment
		reserved bool
	)
	start := time.Now()
	err := s.store.WithTx(ctx, func(ctx context.Context) error {
		customer, err := s.store.LockCustomer(ctx, in.CustomerID)
		if err != nil {
			return err
		}
		product, err := s.store.GetProduct(ctx, in.ProductID)
		if err != nil {
			return err
		}

		price := product.Price
		if in.SalePrice != nil {
			price = *in.SalePrice
		}

		now := s.now()
		order, err = s.store.CreateOrder(ctx, domain.Order{
			CustomerID:  customer.ID,
			ProductID:   product.ID,
			ProductName: product.Name,
			SalePrice:   price,
			Status:      domain.OrderStatusPending,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
		if err != nil {
			return fmt.Errorf("insert order: %w", err)
		}

		adj = Adjustment{
			ProductID: product.ID,
			Delta:     -1,
			Reason:    domain.ReasonSale,
			Actor:     orderActor,
			Note:      fmt.Sprintf("Order #%d created", order.ID),
		}
		reserved = true
		res, err = s.ledger.reserve(ctx, adj)
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("product %d has no inventory record: %w", product.ID, domain.ErrOutOfStock)
		}
		if err != nil {
			return err
		}

		if err := s.store.IncrementOrderCount(ctx, customer.ID); err != nil {
			return fmt.Errorf("increment order count: %w", err)
		}
		return nil
	})
	if reserved {
		// outcome of the whole unit of work, not of the reservation alone
		s.ledger.observe(adj, err, time.Since(start))
	}
	if err != nil {
		return domain.Order{}, Reservation{}, err
	}
	return order, res, nil
}

func (s *OrderService) GetOrder(ctx context.Context, id int64) (domain.Order, error) {
	return s.store.GetOrder(ctx, id)
}

func (s *OrderService) ListOrders(ctx context.Context) ([]domain.Order, error) {
	return s.store.ListOrders(ctx, domain.OrderFilter{})
}

func (s *OrderService) ListOrdersByStatus(ctx context.Context, status string) ([]domain.Order, error) {
	st, err := domain.ParseOrderStatus(status)
	if err != nil {
		return nil, err
	}
	return s.store.ListOrders(ctx, domain.OrderFilter{Status: &st})
}

func (s *OrderService) ListOrdersByCustomer(ctx context.Context, customerID int64) ([]domain.Order, error) {
	if _, err := s.store.GetCustomer(ctx, customerID); err != nil {
		return nil, err
	}
	return s.store.ListOrders(ctx, domain.OrderFilter{CustomerID: &customerID})
}

// SetOrderStatus moves an order along pending -> {completed, cancelled}.
// Cancelling does not return the reserved unit to stock.
func (s *OrderService) SetOrderStatus(ctx context.Context, id int64, status string) error {
	next, err := domain.ParseOrderStatus(status)
	if err != nil {
		return err
	}

	var updated domain.Order
	err = s.store.WithTx(ctx, func(ctx context.Context) error {
		order, err := s.store.LockOrder(ctx, id)
		if err != nil {
			return err
		}
		if !order.Status.CanTransitionTo(next) {
			return fmt.Errorf("order %d from %s to %s: %w", id, order.Status, next, domain.ErrInvalidTransition)
		}
		order.Status = next
		order.UpdatedAt = s.now()
		updated = order
		return s.store.UpdateOrderStatus(ctx, order)
	})
	if err != nil {
		return err
	}

	s.publisher.Publish(domain.Event{
		Kind:       domain.EventOrderStatusChanged,
		EntityID:   updated.ID,
		Status:     string(updated.Status),
		OccurredAt: updated.UpdatedAt,
	})
	s.logger.Info("order status updated", zap.Int64("order_id", id), zap.String("status", string(next)))
	return nil
}
