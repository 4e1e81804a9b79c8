package handler

import (
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/rl1809/backoffice/internal/core/domain"
	"github.com/rl1809/backoffice/internal/core/service"
)

type CreateProductRequest struct {
	Name        string          `json:"name"`
	SKU         string          `json:"sku"`
	Price       decimal.Decimal `json:"price"`
	Description string          `json:"description"`
	Quantity    int             `json:"quantity"`
}

type ProductWithInventoryResponse struct {
	ProductResponse
	Inventory InventoryResponse `json:"inventory"`
}

type UpdateInventoryRequest struct {
	Quantity *int   `json:"quantity"`
	Reason   string `json:"reason"`
	Notes    string `json:"notes"`
}

func (h *HTTPHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req CreateProductRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	product, inv, err := h.Inventory.CreateProduct(r.Context(), service.CreateProductInput{
		Name:        req.Name,
		SKU:         req.SKU,
		Price:       req.Price,
		Description: req.Description,
		Quantity:    req.Quantity,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, ProductWithInventoryResponse{
		ProductResponse: newProductResponse(product),
		Inventory:       newInventoryResponse(inv),
	})
}

func (h *HTTPHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	product, err := h.Inventory.GetProduct(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newProductResponse(product))
}

func (h *HTTPHandler) GetInventory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	inv, err := h.Inventory.GetInventory(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newInventoryResponse(inv))
}

func (h *HTTPHandler) GetStock(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	quantity, err := h.Inventory.Stock(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, StockResponse{ProductID: id, Quantity: quantity})
}

func (h *HTTPHandler) UpdateInventory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req UpdateInventoryRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if req.Quantity == nil {
		h.writeError(w, r, fmt.Errorf("quantity is required: %w", domain.ErrInvalidArgument))
		return
	}
	inv, err := h.Inventory.UpdateInventory(r.Context(), id, *req.Quantity, req.Reason, req.Notes)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newInventoryResponse(inv))
}

func (h *HTTPHandler) ListHistory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	history, err := h.Inventory.ListHistory(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapSlice(history, newHistoryResponse))
}
