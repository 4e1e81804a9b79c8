package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/backoffice/internal/core/domain"
)

func TestCreateTicket(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.customer(t, "jane@example.com")

	ticket, err := f.tickets.CreateTicket(ctx, CreateTicketInput{
		TicketNumber: "TCK-1",
		CustomerID:   c.ID,
		Subject:      "Broken lid",
		Priority:     "high",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusOpen, ticket.Status)
	assert.Equal(t, domain.PriorityHigh, ticket.Priority)
	assert.Nil(t, ticket.AssignedTo)
	assert.Nil(t, ticket.ResolvedAt)

	_, err = f.tickets.CreateTicket(ctx, CreateTicketInput{TicketNumber: "TCK-1", CustomerID: c.ID, Priority: "low"})
	assert.ErrorIs(t, err, domain.ErrConflict)

	_, err = f.tickets.CreateTicket(ctx, CreateTicketInput{TicketNumber: "TCK-2", CustomerID: c.ID, Priority: "critical"})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	_, err = f.tickets.CreateTicket(ctx, CreateTicketInput{TicketNumber: "TCK-3", CustomerID: 999, Priority: "low"})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	nobody := int64(999)
	_, err = f.tickets.CreateTicket(ctx, CreateTicketInput{TicketNumber: "TCK-4", CustomerID: c.ID, Priority: "low", AssignedTo: &nobody})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSetTicketStatus_ResolvedAtRestamped(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.customer(t, "jane@example.com")

	ticket, err := f.tickets.CreateTicket(ctx, CreateTicketInput{TicketNumber: "TCK-1", CustomerID: c.ID, Priority: "medium"})
	require.NoError(t, err)

	f.clock.Advance(time.Hour)
	resolved, err := f.tickets.SetTicketStatus(ctx, ticket.ID, "resolved")
	require.NoError(t, err)
	require.NotNil(t, resolved.ResolvedAt)
	assert.Equal(t, epoch.Add(time.Hour), *resolved.ResolvedAt)

	f.clock.Advance(time.Hour)
	again, err := f.tickets.SetTicketStatus(ctx, ticket.ID, "resolved")
	require.NoError(t, err)
	assert.Equal(t, epoch.Add(2*time.Hour), *again.ResolvedAt)

	// leaving resolved keeps the stamp
	closed, err := f.tickets.SetTicketStatus(ctx, ticket.ID, "closed")
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusClosed, closed.Status)
	assert.Equal(t, epoch.Add(2*time.Hour), *closed.ResolvedAt)

	// tickets may be reopened
	reopened, err := f.tickets.SetTicketStatus(ctx, ticket.ID, "open")
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusOpen, reopened.Status)

	_, err = f.tickets.SetTicketStatus(ctx, ticket.ID, "escalated")
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	_, err = f.tickets.SetTicketStatus(ctx, 999, "closed")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestAssignTicket(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.customer(t, "jane@example.com")
	e, err := f.directory.CreateEmployee(ctx, "Sam Agent", "sam@example.com")
	require.NoError(t, err)

	ticket, err := f.tickets.CreateTicket(ctx, CreateTicketInput{TicketNumber: "TCK-1", CustomerID: c.ID, Priority: "urgent"})
	require.NoError(t, err)

	_, err = f.tickets.AssignTicket(ctx, ticket.ID, 999)
	require.ErrorIs(t, err, domain.ErrNotFound)

	assigned, err := f.tickets.AssignTicket(ctx, ticket.ID, e.ID)
	require.NoError(t, err)
	require.NotNil(t, assigned.AssignedTo)
	assert.Equal(t, e.ID, *assigned.AssignedTo)

	stored, err := f.tickets.GetTicket(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, e.ID, *stored.AssignedTo)

	unassigned, err := f.tickets.UnassignTicket(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Nil(t, unassigned.AssignedTo)

	// unassigning twice is fine
	_, err = f.tickets.UnassignTicket(ctx, ticket.ID)
	require.NoError(t, err)

	assert.Equal(t, []domain.EventKind{
		domain.EventTicketAssigned, domain.EventTicketUnassigned, domain.EventTicketUnassigned,
	}, f.events.kinds())
}

func TestListTickets(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.customer(t, "a@example.com")
	b := f.customer(t, "b@example.com")

	for i, in := range []CreateTicketInput{
		{TicketNumber: "TCK-1", CustomerID: a.ID, Priority: "low"},
		{TicketNumber: "TCK-2", CustomerID: a.ID, Priority: "high"},
		{TicketNumber: "TCK-3", CustomerID: b.ID, Priority: "high"},
	} {
		ticket, err := f.tickets.CreateTicket(ctx, in)
		require.NoError(t, err)
		if i == 0 {
			_, err = f.tickets.SetTicketStatus(ctx, ticket.ID, "in_progress")
			require.NoError(t, err)
		}
	}

	all, err := f.tickets.ListTickets(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	high, err := f.tickets.ListTicketsByPriority(ctx, "high")
	require.NoError(t, err)
	assert.Len(t, high, 2)

	inProgress, err := f.tickets.ListTicketsByStatus(ctx, "in_progress")
	require.NoError(t, err)
	require.Len(t, inProgress, 1)
	assert.Equal(t, "TCK-1", inProgress[0].TicketNumber)

	forB, err := f.tickets.ListTicketsByCustomer(ctx, b.ID)
	require.NoError(t, err)
	require.Len(t, forB, 1)
	assert.Equal(t, "TCK-3", forB[0].TicketNumber)

	_, err = f.tickets.ListTicketsByPriority(ctx, "whenever")
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}
