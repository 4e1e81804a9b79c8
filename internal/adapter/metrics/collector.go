package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "backoffice"

// Collector is a prometheus.Collector for ledger, order and notification
// activity. It implements port.Metrics.
type Collector struct {
	reservations       *prometheus.CounterVec
	reservationLatency *prometheus.HistogramVec
	ordersCreated      prometheus.Counter
	eventsDispatched   *prometheus.CounterVec
	eventsDropped      *prometheus.CounterVec
}

func NewCollector() *Collector {
	return &Collector{
		reservations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "ledger_writes_total",
				Help:      "The number of stock ledger writes by reason and outcome.",
			}, []string{"reason", "outcome"},
		),
		reservationLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "ledger_write_seconds",
				Help:      "The time taken by a stock ledger write, lock wait included.",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			}, []string{"reason"},
		),
		ordersCreated: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "orders_created_total",
				Help:      "The number of committed orders.",
			},
		),
		eventsDispatched: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "events_dispatched_total",
				Help:      "The number of notifications handled by the worker pool.",
			}, []string{"kind"},
		),
		eventsDropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "events_dropped_total",
				Help:      "The number of notifications dropped on a full queue.",
			}, []string{"kind"},
		),
	}
}

func (c *Collector) ObserveReservation(reason, outcome string, elapsed time.Duration) {
	c.reservations.WithLabelValues(reason, outcome).Inc()
	c.reservationLatency.WithLabelValues(reason).Observe(elapsed.Seconds())
}

func (c *Collector) OrderCreated() {
	c.ordersCreated.Inc()
}

func (c *Collector) EventDispatched(kind string) {
	c.eventsDispatched.WithLabelValues(kind).Inc()
}

func (c *Collector) EventDropped(kind string) {
	c.eventsDropped.WithLabelValues(kind).Inc()
}

// Describe is part of the prometheus.Collector interface.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	c.reservations.Describe(ch)
	c.reservationLatency.Describe(ch)
	c.ordersCreated.Describe(ch)
	c.eventsDispatched.Describe(ch)
	c.eventsDropped.Describe(ch)
}

// Collect is part of the prometheus.Collector interface.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.reservations.Collect(ch)
	c.reservationLatency.Collect(ch)
	c.ordersCreated.Collect(ch)
	c.eventsDispatched.Collect(ch)
	c.eventsDropped.Collect(ch)
}
