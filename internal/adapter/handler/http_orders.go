package handler

import (
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"github.com/rl1809/backoffice/internal/core/domain"
	"github.com/rl1809/backoffice/internal/core/service"
)

const idempotencyHeader = "Idempotency-Key"

type CreateOrderRequest struct {
	RequestID  string           `json:"request_id"`
	CustomerID int64            `json:"customer_id"`
	ProductID  int64            `json:"product_id"`
	SalePrice  *decimal.Decimal `json:"sale_price,omitempty"`
}

func (h *HTTPHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if req.CustomerID <= 0 || req.ProductID <= 0 {
		h.writeError(w, r, fmt.Errorf("customer_id and product_id are required: %w", domain.ErrInvalidArgument))
		return
	}
	if req.RequestID == "" {
		req.RequestID = r.Header.Get(idempotencyHeader)
	}

	order, err := h.Orders.CreateOrder(r.Context(), service.CreateOrderInput{
		RequestID:  req.RequestID,
		CustomerID: req.CustomerID,
		ProductID:  req.ProductID,
		SalePrice:  req.SalePrice,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newOrderResponse(order))
}

func (h *HTTPHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	order, err := h.Orders.GetOrder(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newOrderResponse(order))
}

func (h *HTTPHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	h.writeOrders(w, r)(h.Orders.ListOrders(r.Context()))
}

func (h *HTTPHandler) ListOrdersByStatus(w http.ResponseWriter, r *http.Request) {
	h.writeOrders(w, r)(h.Orders.ListOrdersByStatus(r.Context(), mux.Vars(r)["status"]))
}

func (h *HTTPHandler) ListOrdersByCustomer(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeOrders(w, r)(h.Orders.ListOrdersByCustomer(r.Context(), id))
}

func (h *HTTPHandler) writeOrders(w http.ResponseWriter, r *http.Request) func([]domain.Order, error) {
	return func(orders []domain.Order, err error) {
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, mapSlice(orders, newOrderResponse))
	}
}

func (h *HTTPHandler) SetOrderStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	status := r.URL.Query().Get("status")
	if err := h.Orders.SetOrderStatus(r.Context(), id, status); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Ack{Success: true, Message: fmt.Sprintf("Order status updated to %s", status)})
}
