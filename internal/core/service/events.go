package service

import (
	"sync"

	"go.uber.org/zap"

	"github.com/rl1809/backoffice/internal/core/domain"
)

// EventBus queues post-commit notifications for a pool of workers.
// Publishing never blocks: when the queue is full the event is dropped.
type EventBus struct {
	mu     sync.RWMutex
	closed bool
	queue  chan domain.Event
	options
}

func NewEventBus(queueSize int, opts ...Option) *EventBus {
	return &EventBus{
		queue:   make(chan domain.Event, queueSize),
		options: newOptions(opts),
	}
}

func (b *EventBus) Publish(event domain.Event) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return false
	}
	select {
	case b.queue <- event:
		return true
	default:
		b.metrics.EventDropped(string(event.Kind))
		b.logger.Warn("event queue full, dropping event",
			zap.String("kind", string(event.Kind)), zap.Int64("entity_id", event.EntityID))
		return false
	}
}

func (b *EventBus) Events() <-chan domain.Event {
	return b.queue
}

// Close stops accepting events. Workers drain what is queued and return.
func (b *EventBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.closed {
		b.closed = true
		close(b.queue)
	}
}

// EventHandler reacts to one notification.
type EventHandler func(event domain.Event) error

// Work runs handle for every queued event until the bus is closed.
func (b *EventBus) Work(id int, handle EventHandler) {
	for event := range b.queue {
		if err := handle(event); err != nil {
			b.logger.Warn("event handler failed",
				zap.Int("worker", id),
				zap.String("kind", string(event.Kind)),
				zap.Int64("entity_id", event.EntityID),
				zap.Error(err),
			)
			continue
		}
		b.metrics.EventDispatched(string(event.Kind))
	}
}
