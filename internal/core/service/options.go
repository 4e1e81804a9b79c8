package service

import (
	"context"
	"time"

	"github.com/juju/clock"
	"go.uber.org/zap"

	"github.com/rl1809/backoffice/internal/core/domain"
	"github.com/rl1809/backoffice/internal/port"
)

// Publisher receives notifications after a unit of work commits.
type Publisher interface {
	Publish(event domain.Event) bool
}

type options struct {
	cache     port.CacheRepository
	clock     clock.Clock
	logger    *zap.Logger
	metrics   port.Metrics
	publisher Publisher
}

type Option func(*options)

func WithCache(cache port.CacheRepository) Option {
	return func(o *options) {
		if cache != nil {
			o.cache = cache
		}
	}
}

func WithClock(clk clock.Clock) Option {
	return func(o *options) {
		if clk != nil {
			o.clock = clk
		}
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

func WithMetrics(metrics port.Metrics) Option {
	return func(o *options) {
		if metrics != nil {
			o.metrics = metrics
		}
	}
}

func WithPublisher(publisher Publisher) Option {
	return func(o *options) {
		if publisher != nil {
			o.publisher = publisher
		}
	}
}

func newOptions(opts []Option) options {
	o := options{
		cache:     nopCache{},
		clock:     clock.WallClock,
		logger:    zap.NewNop(),
		metrics:   nopMetrics{},
		publisher: nopPublisher{},
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (o options) now() time.Time {
	return o.clock.Now().UTC()
}

type nopCache struct{}

func (nopCache) GetStock(context.Context, int64) (int, bool, error)   { return 0, false, nil }
func (nopCache) SetStock(context.Context, int64, int) error           { return nil }
func (nopCache) InvalidateStock(context.Context, int64) error         { return nil }
func (nopCache) SetIdempotency(context.Context, string) (bool, error) { return true, nil }
func (nopCache) ReleaseIdempotency(context.Context, string) error     { return nil }

type nopMetrics struct{}

func (nopMetrics) ObserveReservation(string, string, time.Duration) {}
func (nopMetrics) OrderCreated()                                    {}
func (nopMetrics) EventDispatched(string)                           {}
func (nopMetrics) EventDropped(string)                              {}

type nopPublisher struct{}

func (nopPublisher) Publish(domain.Event) bool { return true }
