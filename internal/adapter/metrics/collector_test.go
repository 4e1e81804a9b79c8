package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/backoffice/internal/port"
)

var _ port.Metrics = (*Collector)(nil)

func TestCollector_Counts(t *testing.T) {
	c := NewCollector()

	c.ObserveReservation("sale", "ok", 2*time.Millisecond)
	c.ObserveReservation("sale", "ok", 3*time.Millisecond)
	c.ObserveReservation("sale", "out_of_stock", time.Millisecond)
	c.OrderCreated()
	c.EventDispatched("order_created")
	c.EventDropped("stock_changed")

	assert.Equal(t, 2.0, testutil.ToFloat64(c.reservations.WithLabelValues("sale", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.reservations.WithLabelValues("sale", "out_of_stock")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.ordersCreated))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.eventsDispatched.WithLabelValues("order_created")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.eventsDropped.WithLabelValues("stock_changed")))
}

func TestCollector_Register(t *testing.T) {
	c := NewCollector()
	c.ObserveReservation("restock", "ok", time.Millisecond)

	reg := prometheus.NewPedanticRegistry()
	require.NoError(t, reg.Register(c))

	families, err := reg.Gather()
	require.NoError(t, err)

	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["backoffice_ledger_writes_total"])
	assert.True(t, names["backoffice_ledger_write_seconds"])
}
