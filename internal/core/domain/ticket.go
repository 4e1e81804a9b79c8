package domain

import (
	"fmt"
	"time"
)

type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "open"
	TicketStatusInProgress TicketStatus = "in_progress"
	TicketStatusResolved   TicketStatus = "resolved"
	TicketStatusClosed     TicketStatus = "closed"
)

var ticketStatuses = []TicketStatus{
	TicketStatusOpen, TicketStatusInProgress, TicketStatusResolved, TicketStatusClosed,
}

func ParseTicketStatus(s string) (TicketStatus, error) {
	for _, st := range ticketStatuses {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("ticket status %q must be one of %v: %w", s, ticketStatuses, ErrInvalidArgument)
}

type TicketPriority string

const (
	PriorityLow    TicketPriority = "low"
	PriorityMedium TicketPriority = "medium"
	PriorityHigh   TicketPriority = "high"
	PriorityUrgent TicketPriority = "urgent"
)

var ticketPriorities = []TicketPriority{PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent}

func ParseTicketPriority(s string) (TicketPriority, error) {
	for _, p := range ticketPriorities {
		if string(p) == s {
			return p, nil
		}
	}
	return "", fmt.Errorf("ticket priority %q must be one of %v: %w", s, ticketPriorities, ErrInvalidArgument)
}

type Ticket struct {
	ID           int64
	TicketNumber string
	CustomerID   int64
	AssignedTo   *int64
	Subject      string
	Description  string
	Status       TicketStatus
	Priority     TicketPriority
	ResolvedAt   *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ApplyStatus moves the ticket to status. Every write of the resolved
// status stamps ResolvedAt with now, even when the ticket was already
// resolved; other statuses leave ResolvedAt untouched.
func (t *Ticket) ApplyStatus(status TicketStatus, now time.Time) {
	t.Status = status
	if status == TicketStatusResolved {
		resolvedAt := now
		t.ResolvedAt = &resolvedAt
	}
	t.UpdatedAt = now
}

type TicketFilter struct {
	Status     *TicketStatus
	Priority   *TicketPriority
	CustomerID *int64
}
