package domain

import "time"

type EventKind string

const (
	EventOrderCreated        EventKind = "order_created"
	EventOrderStatusChanged  EventKind = "order_status_changed"
	EventStockChanged        EventKind = "stock_changed"
	EventTicketStatusChanged EventKind = "ticket_status_changed"
	EventTicketAssigned      EventKind = "ticket_assigned"
	EventTicketUnassigned    EventKind = "ticket_unassigned"
)

// Event is a notification emitted after a unit of work commits.
type Event struct {
	Kind       EventKind
	EntityID   int64
	Status     string
	Quantity   int
	OccurredAt time.Time
}
