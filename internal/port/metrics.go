package port

import "time"

type Metrics interface {
	// ObserveReservation records a ledger write attempt and its outcome
	ObserveReservation(reason string, outcome string, elapsed time.Duration)

	// OrderCreated counts a committed order
	OrderCreated()

	// EventDispatched counts a notification handled by a worker
	EventDispatched(kind string)

	// EventDropped counts a notification dropped because the queue was full
	EventDropped(kind string)
}
