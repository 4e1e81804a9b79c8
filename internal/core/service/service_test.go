package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/juju/clock/testclock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/backoffice/internal/adapter/storage"
	"github.com/rl1809/backoffice/internal/core/domain"
)

var epoch = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

// Mock CacheRepository
type mockCacheRepo struct {
	mu             sync.Mutex
	stock          map[int64]int
	idempotencySet map[string]bool
	invalidated    []int64
}

func newMockCacheRepo() *mockCacheRepo {
	return &mockCacheRepo{
		stock:          make(map[int64]int),
		idempotencySet: make(map[string]bool),
	}
}

func (m *mockCacheRepo) GetStock(ctx context.Context, productID int64) (int, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.stock[productID]
	return q, ok, nil
}

func (m *mockCacheRepo) SetStock(ctx context.Context, productID int64, quantity int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stock[productID] = quantity
	return nil
}

func (m *mockCacheRepo) InvalidateStock(ctx context.Context, productID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.stock, productID)
	m.invalidated = append(m.invalidated, productID)
	return nil
}

func (m *mockCacheRepo) SetIdempotency(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.idempotencySet[key] {
		return false, nil
	}
	m.idempotencySet[key] = true
	return true, nil
}

func (m *mockCacheRepo) ReleaseIdempotency(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.idempotencySet, key)
	return nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.Event
}

func (p *recordingPublisher) Publish(event domain.Event) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return true
}

func (p *recordingPublisher) kinds() []domain.EventKind {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.EventKind, len(p.events))
	for i, e := range p.events {
		out[i] = e.Kind
	}
	return out
}

type fixture struct {
	store     *storage.MemoryStore
	cache     *mockCacheRepo
	clock     *testclock.Clock
	events    *recordingPublisher
	ledger    *StockLedger
	orders    *OrderService
	inventory *InventoryService
	tickets   *TicketService
	directory *DirectoryService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store, err := storage.NewMemoryStore()
	require.NoError(t, err)

	f := &fixture{
		store:  store,
		cache:  newMockCacheRepo(),
		clock:  testclock.NewClock(epoch),
		events: &recordingPublisher{},
	}
	opts := []Option{WithCache(f.cache), WithClock(f.clock), WithPublisher(f.events)}

	f.ledger = NewStockLedger(store, opts...)
	f.orders = NewOrderService(store, f.ledger, opts...)
	f.inventory = NewInventoryService(store, f.ledger, opts...)
	f.tickets = NewTicketService(store, opts...)
	f.directory = NewDirectoryService(store, opts...)
	return f
}

func (f *fixture) customer(t *testing.T, email string) domain.Customer {
	t.Helper()
	c, err := f.directory.CreateCustomer(context.Background(), "Jane Doe", email)
	require.NoError(t, err)
	return c
}

func (f *fixture) product(t *testing.T, sku string, price string, quantity int) domain.Product {
	t.Helper()
	p, _, err := f.inventory.CreateProduct(context.Background(), CreateProductInput{
		Name:     "Widget " + sku,
		SKU:      sku,
		Price:    decimal.RequireFromString(price),
		Quantity: quantity,
	})
	require.NoError(t, err)
	return p
}
