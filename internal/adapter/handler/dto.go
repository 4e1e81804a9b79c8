package handler

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/rl1809/backoffice/internal/core/domain"
)

type Ack struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type OrderResponse struct {
	ID          int64           `json:"id"`
	CustomerID  int64           `json:"customer_id"`
	ProductID   int64           `json:"product_id"`
	ProductName string          `json:"product_name"`
	SalePrice   decimal.Decimal `json:"sale_price"`
	Status      string          `json:"status"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

func newOrderResponse(o domain.Order) OrderResponse {
	return OrderResponse{
		ID:          o.ID,
		CustomerID:  o.CustomerID,
		ProductID:   o.ProductID,
		ProductName: o.ProductName,
		SalePrice:   o.SalePrice,
		Status:      string(o.Status),
		CreatedAt:   o.CreatedAt,
		UpdatedAt:   o.UpdatedAt,
	}
}

type ProductResponse struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	SKU         string          `json:"sku"`
	Price       decimal.Decimal `json:"price"`
	Description string          `json:"description"`
	CreatedAt   time.Time       `json:"created_at"`
}

func newProductResponse(p domain.Product) ProductResponse {
	return ProductResponse{
		ID:          p.ID,
		Name:        p.Name,
		SKU:         p.SKU,
		Price:       p.Price,
		Description: p.Description,
		CreatedAt:   p.CreatedAt,
	}
}

type InventoryResponse struct {
	ProductID int64     `json:"product_id"`
	Quantity  int       `json:"quantity"`
	Location  string    `json:"location"`
	Version   int       `json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
}

func newInventoryResponse(inv domain.Inventory) InventoryResponse {
	return InventoryResponse{
		ProductID: inv.ProductID,
		Quantity:  inv.Quantity,
		Location:  inv.Location,
		Version:   inv.Version,
		UpdatedAt: inv.UpdatedAt,
	}
}

// StockResponse is the on-hand quantity as served by the stock cache.
type StockResponse struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

type HistoryResponse struct {
	ID             int64     `json:"id"`
	OldQuantity    int       `json:"old_quantity"`
	NewQuantity    int       `json:"new_quantity"`
	QuantityChange int       `json:"quantity_change"`
	ChangeReason   string    `json:"change_reason"`
	ChangedBy      string    `json:"changed_by"`
	Notes          string    `json:"notes"`
	CreatedAt      time.Time `json:"created_at"`
}

func newHistoryResponse(h domain.InventoryHistory) HistoryResponse {
	return HistoryResponse{
		ID:             h.ID,
		OldQuantity:    h.OldQuantity,
		NewQuantity:    h.NewQuantity,
		QuantityChange: h.Delta,
		ChangeReason:   string(h.Reason),
		ChangedBy:      h.Actor,
		Notes:          h.Note,
		CreatedAt:      h.CreatedAt,
	}
}

type ContactResponse struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	OrderCount *int      `json:"order_count,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

func newCustomerResponse(c domain.Customer) ContactResponse {
	count := c.OrderCount
	return ContactResponse{ID: c.ID, Name: c.Name, Email: c.Email, OrderCount: &count, CreatedAt: c.CreatedAt}
}

func newEmployeeResponse(e domain.Employee) ContactResponse {
	return ContactResponse{ID: e.ID, Name: e.Name, Email: e.Email, CreatedAt: e.CreatedAt}
}

type TicketResponse struct {
	ID           int64      `json:"id"`
	TicketNumber string     `json:"ticket_number"`
	CustomerID   int64      `json:"customer_id"`
	AssignedTo   *int64     `json:"assigned_to"`
	Subject      string     `json:"subject"`
	Description  string     `json:"description"`
	Status       string     `json:"status"`
	Priority     string     `json:"priority"`
	ResolvedAt   *time.Time `json:"resolved_at"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func newTicketResponse(t domain.Ticket) TicketResponse {
	return TicketResponse{
		ID:           t.ID,
		TicketNumber: t.TicketNumber,
		CustomerID:   t.CustomerID,
		AssignedTo:   t.AssignedTo,
		Subject:      t.Subject,
		Description:  t.Description,
		Status:       string(t.Status),
		Priority:     string(t.Priority),
		ResolvedAt:   t.ResolvedAt,
		CreatedAt:    t.CreatedAt,
		UpdatedAt:    t.UpdatedAt,
	}
}

func mapSlice[T, R any](in []T, f func(T) R) []R {
	out := make([]R, 0, len(in))
	for _, v := range in {
		out = append(out, f(v))
	}
	return out
}
