package handler

import (
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/rl1809/backoffice/internal/core/domain"
	"github.com/rl1809/backoffice/internal/core/service"
)

type CreateTicketRequest struct {
	TicketNumber string `json:"ticket_number"`
	CustomerID   int64  `json:"customer_id"`
	AssignedTo   *int64 `json:"assigned_to,omitempty"`
	Subject      string `json:"subject"`
	Description  string `json:"description"`
	Priority     string `json:"priority"`
}

func (h *HTTPHandler) CreateTicket(w http.ResponseWriter, r *http.Request) {
	var req CreateTicketRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if req.Priority == "" {
		req.Priority = string(domain.PriorityMedium)
	}
	ticket, err := h.Tickets.CreateTicket(r.Context(), service.CreateTicketInput{
		TicketNumber: req.TicketNumber,
		CustomerID:   req.CustomerID,
		Subject:      req.Subject,
		Description:  req.Description,
		Priority:     req.Priority,
		AssignedTo:   req.AssignedTo,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newTicketResponse(ticket))
}

func (h *HTTPHandler) GetTicket(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeTicket(w, r)(h.Tickets.GetTicket(r.Context(), id))
}

func (h *HTTPHandler) ListTickets(w http.ResponseWriter, r *http.Request) {
	h.writeTickets(w, r)(h.Tickets.ListTickets(r.Context()))
}

func (h *HTTPHandler) ListTicketsByStatus(w http.ResponseWriter, r *http.Request) {
	h.writeTickets(w, r)(h.Tickets.ListTicketsByStatus(r.Context(), mux.Vars(r)["status"]))
}

func (h *HTTPHandler) ListTicketsByPriority(w http.ResponseWriter, r *http.Request) {
	h.writeTickets(w, r)(h.Tickets.ListTicketsByPriority(r.Context(), mux.Vars(r)["priority"]))
}

func (h *HTTPHandler) ListTicketsByCustomer(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeTickets(w, r)(h.Tickets.ListTicketsByCustomer(r.Context(), id))
}

func (h *HTTPHandler) SetTicketStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	status := r.URL.Query().Get("status")
	if _, err := h.Tickets.SetTicketStatus(r.Context(), id, status); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Ack{Success: true, Message: fmt.Sprintf("Ticket status updated to %s", status)})
}

func (h *HTTPHandler) AssignTicket(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	employeeID, err := pathID(r, "employee")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if _, err := h.Tickets.AssignTicket(r.Context(), id, employeeID); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Ack{Success: true, Message: fmt.Sprintf("Ticket assigned to employee %d", employeeID)})
}

func (h *HTTPHandler) UnassignTicket(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if _, err := h.Tickets.UnassignTicket(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Ack{Success: true, Message: "Ticket unassigned"})
}

func (h *HTTPHandler) writeTicket(w http.ResponseWriter, r *http.Request) func(domain.Ticket, error) {
	return func(ticket domain.Ticket, err error) {
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, newTicketResponse(ticket))
	}
}

func (h *HTTPHandler) writeTickets(w http.ResponseWriter, r *http.Request) func([]domain.Ticket, error) {
	return func(tickets []domain.Ticket, err error) {
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, mapSlice(tickets, newTicketResponse))
	}
}
