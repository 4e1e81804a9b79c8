package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/rl1809/backoffice/internal/core/domain"
	"github.com/rl1809/backoffice/internal/port"
)

type TicketService struct {
	store port.Store
	options
}

func NewTicketService(store port.Store, opts ...Option) *TicketService {
	return &TicketService{store: store, options: newOptions(opts)}
}

type CreateTicketInput struct {
	TicketNumber string
	CustomerID   int64
	Subject      string
	Description  string
	Priority     string
	AssignedTo   *int64
}

// CreateTicket opens a ticket for an existing customer. Priority is only
// validated here; the ticket number must be unique.
func (s *TicketService) CreateTicket(ctx context.Context, in CreateTicketInput) (domain.Ticket, error) {
	priority, err := domain.ParseTicketPriority(in.Priority)
	if err != nil {
		return domain.Ticket{}, err
	}
	if strings.TrimSpace(in.TicketNumber) == "" {
		return domain.Ticket{}, fmt.Errorf("ticket number is required: %w", domain.ErrInvalidArgument)
	}

	var ticket domain.Ticket
	err = s.store.WithTx(ctx, func(ctx context.Context) error {
		if _, err := s.store.GetCustomer(ctx, in.CustomerID); err != nil {
			return err
		}
		if in.AssignedTo != nil {
			if _, err := s.store.GetEmployee(ctx, *in.AssignedTo); err != nil {
				return err
			}
		}

		now := s.now()
		ticket, err = s.store.CreateTicket(ctx, domain.Ticket{
			TicketNumber: in.TicketNumber,
			CustomerID:   in.CustomerID,
			AssignedTo:   in.AssignedTo,
			Subject:      in.Subject,
			Description:  in.Description,
			Status:       domain.TicketStatusOpen,
			Priority:     priority,
			CreatedAt:    now,
			UpdatedAt:    now,
		})
		return err
	})
	if err != nil {
		return domain.Ticket{}, err
	}
	return ticket, nil
}

func (s *TicketService) GetTicket(ctx context.Context, id int64) (domain.Ticket, error) {
	return s.store.GetTicket(ctx, id)
}

func (s *TicketService) ListTickets(ctx context.Context) ([]domain.Ticket, error) {
	return s.store.ListTickets(ctx, domain.TicketFilter{})
}

func (s *TicketService) ListTicketsByStatus(ctx context.Context, status string) ([]domain.Ticket, error) {
	st, err := domain.ParseTicketStatus(status)
	if err != nil {
		return nil, err
	}
	return s.store.ListTickets(ctx, domain.TicketFilter{Status: &st})
}

func (s *TicketService) ListTicketsByPriority(ctx context.Context, priority string) ([]domain.Ticket, error) {
	p, err := domain.ParseTicketPriority(priority)
	if err != nil {
		return nil, err
	}
	return s.store.ListTickets(ctx, domain.TicketFilter{Priority: &p})
}

func (s *TicketService) ListTicketsByCustomer(ctx context.Context, customerID int64) ([]domain.Ticket, error) {
	if _, err := s.store.GetCustomer(ctx, customerID); err != nil {
		return nil, err
	}
	return s.store.ListTickets(ctx, domain.TicketFilter{CustomerID: &customerID})
}

// SetTicketStatus accepts any valid status from any other. Moving to
// resolved stamps ResolvedAt with the current time, every time.
func (s *TicketService) SetTicketStatus(ctx context.Context, id int64, status string) (domain.Ticket, error) {
	next, err := domain.ParseTicketStatus(status)
	if err != nil {
		return domain.Ticket{}, err
	}

	ticket, err := s.update(ctx, id, func(ctx context.Context, t *domain.Ticket) error {
		t.ApplyStatus(next, s.now())
		return nil
	})
	if err != nil {
		return domain.Ticket{}, err
	}

	s.publisher.Publish(domain.Event{
		Kind:       domain.EventTicketStatusChanged,
		EntityID:   ticket.ID,
		Status:     string(ticket.Status),
		OccurredAt: ticket.UpdatedAt,
	})
	s.logger.Info("ticket status updated",
		zap.String("ticket_number", ticket.TicketNumber), zap.String("status", string(next)))
	return ticket, nil
}

// AssignTicket hands the ticket to an existing employee.
func (s *TicketService) AssignTicket(ctx context.Context, id, employeeID int64) (domain.Ticket, error) {
	ticket, err := s.update(ctx, id, func(ctx context.Context, t *domain.Ticket) error {
		if _, err := s.store.GetEmployee(ctx, employeeID); err != nil {
			return err
		}
		t.AssignedTo = &employeeID
		t.UpdatedAt = s.now()
		return nil
	})
	if err != nil {
		return domain.Ticket{}, err
	}

	s.publisher.Publish(domain.Event{
		Kind:       domain.EventTicketAssigned,
		EntityID:   ticket.ID,
		Status:     string(ticket.Status),
		OccurredAt: ticket.UpdatedAt,
	})
	s.logger.Info("ticket assigned",
		zap.String("ticket_number", ticket.TicketNumber), zap.Int64("employee_id", employeeID))
	return ticket, nil
}

// UnassignTicket clears the assignee, whether or not one was set.
func (s *TicketService) UnassignTicket(ctx context.Context, id int64) (domain.Ticket, error) {
	ticket, err := s.update(ctx, id, func(ctx context.Context, t *domain.Ticket) error {
		t.AssignedTo = nil
		t.UpdatedAt = s.now()
		return nil
	})
	if err != nil {
		return domain.Ticket{}, err
	}

	s.publisher.Publish(domain.Event{
		Kind:       domain.EventTicketUnassigned,
		EntityID:   ticket.ID,
		Status:     string(ticket.Status),
		OccurredAt: ticket.UpdatedAt,
	})
	s.logger.Info("ticket unassigned", zap.String("ticket_number", ticket.TicketNumber))
	return ticket, nil
}

func (s *TicketService) update(ctx context.Context, id int64, mutate func(ctx context.Context, t *domain.Ticket) error) (domain.Ticket, error) {
	var ticket domain.Ticket
	err := s.store.WithTx(ctx, func(ctx context.Context) error {
		t, err := s.store.LockTicket(ctx, id)
		if err != nil {
			return err
		}
		if err := mutate(ctx, &t); err != nil {
			return err
		}
		ticket = t
		return s.store.UpdateTicket(ctx, t)
	})
	if err != nil {
		return domain.Ticket{}, err
	}
	return ticket, nil
}
