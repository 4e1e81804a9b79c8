package service

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"

	"github.com/rl1809/backoffice/internal/core/domain"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type countingMetrics struct {
	nopMetrics
	mu         sync.Mutex
	dispatched map[string]int
	dropped    map[string]int
	outcomes   map[string]int
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{dispatched: map[string]int{}, dropped: map[string]int{}, outcomes: map[string]int{}}
}

func (m *countingMetrics) ObserveReservation(reason, outcome string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes[reason+"/"+outcome]++
}

func (m *countingMetrics) EventDispatched(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dispatched[kind]++
}

func (m *countingMetrics) EventDropped(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dropped[kind]++
}

func TestEventBus_DropsWhenFull(t *testing.T) {
	metrics := newCountingMetrics()
	bus := NewEventBus(1, WithMetrics(metrics))
	defer bus.Close()

	assert.True(t, bus.Publish(domain.Event{Kind: domain.EventOrderCreated, EntityID: 1}))
	assert.False(t, bus.Publish(domain.Event{Kind: domain.EventOrderCreated, EntityID: 2}))
	assert.Equal(t, 1, metrics.dropped[string(domain.EventOrderCreated)])
}

func TestEventBus_WorkersDrainOnClose(t *testing.T) {
	metrics := newCountingMetrics()
	bus := NewEventBus(10, WithMetrics(metrics))

	var (
		mu   sync.Mutex
		seen []int64
	)
	for i := 0; i < 5; i++ {
		bus.Publish(domain.Event{Kind: domain.EventStockChanged, EntityID: int64(i)})
	}
	bus.Publish(domain.Event{Kind: domain.EventTicketAssigned, EntityID: 99})

	var wg sync.WaitGroup
	for id := 0; id < 2; id++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			bus.Work(id, func(event domain.Event) error {
				if event.Kind == domain.EventTicketAssigned {
					return errors.New("handler failed")
				}
				mu.Lock()
				seen = append(seen, event.EntityID)
				mu.Unlock()
				return nil
			})
		}(id)
	}

	bus.Close()
	wg.Wait()

	assert.ElementsMatch(t, []int64{0, 1, 2, 3, 4}, seen)
	assert.Equal(t, 5, metrics.dispatched[string(domain.EventStockChanged)])
	assert.Zero(t, metrics.dispatched[string(domain.EventTicketAssigned)])

	assert.False(t, bus.Publish(domain.Event{Kind: domain.EventOrderCreated}))
	bus.Close()
}
