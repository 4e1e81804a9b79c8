package port

import (
	"context"

	"github.com/rl1809/backoffice/internal/core/domain"
)

type TxRunner interface {
	// WithTx runs fn as one unit of work. The transaction travels in the
	// context handed to fn; a nested WithTx joins the outer transaction.
	// fn returning nil commits, anything else rolls back.
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type CustomerRepository interface {
	CreateCustomer(ctx context.Context, customer domain.Customer) (domain.Customer, error)
	GetCustomer(ctx context.Context, id int64) (domain.Customer, error)

	// LockCustomer reads the customer holding a write lock until the unit of work ends
	LockCustomer(ctx context.Context, id int64) (domain.Customer, error)

	// IncrementOrderCount bumps the denormalized order counter by one
	IncrementOrderCount(ctx context.Context, id int64) error
}

type EmployeeRepository interface {
	CreateEmployee(ctx context.Context, employee domain.Employee) (domain.Employee, error)
	GetEmployee(ctx context.Context, id int64) (domain.Employee, error)
}

type ProductRepository interface {
	// CreateProduct fails with domain.ErrConflict on a duplicate SKU
	CreateProduct(ctx context.Context, product domain.Product) (domain.Product, error)
	GetProduct(ctx context.Context, id int64) (domain.Product, error)
}

type InventoryRepository interface {
	CreateInventory(ctx context.Context, inventory domain.Inventory) (domain.Inventory, error)
	GetInventory(ctx context.Context, productID int64) (domain.Inventory, error)

	// LockInventory reads the inventory row holding a write lock until the unit of work ends
	LockInventory(ctx context.Context, productID int64) (domain.Inventory, error)

	// SetInventoryQuantity writes the quantity and bumps the row version
	SetInventoryQuantity(ctx context.Context, productID int64, quantity int) (domain.Inventory, error)

	AppendHistory(ctx context.Context, entry domain.InventoryHistory) (domain.InventoryHistory, error)
	ListHistory(ctx context.Context, productID int64) ([]domain.InventoryHistory, error)
}

type OrderRepository interface {
	CreateOrder(ctx context.Context, order domain.Order) (domain.Order, error)
	GetOrder(ctx context.Context, id int64) (domain.Order, error)

	// LockOrder reads the order holding a write lock until the unit of work ends
	LockOrder(ctx context.Context, id int64) (domain.Order, error)
	ListOrders(ctx context.Context, filter domain.OrderFilter) ([]domain.Order, error)
	UpdateOrderStatus(ctx context.Context, order domain.Order) error
}

type TicketRepository interface {
	// CreateTicket fails with domain.ErrConflict on a duplicate ticket number
	CreateTicket(ctx context.Context, ticket domain.Ticket) (domain.Ticket, error)
	GetTicket(ctx context.Context, id int64) (domain.Ticket, error)

	// LockTicket reads the ticket holding a write lock until the unit of work ends
	LockTicket(ctx context.Context, id int64) (domain.Ticket, error)
	ListTickets(ctx context.Context, filter domain.TicketFilter) ([]domain.Ticket, error)

	// UpdateTicket writes the mutable ticket fields: status, resolved_at and assigned_to
	UpdateTicket(ctx context.Context, ticket domain.Ticket) error
}

// Store is the entity store. Lookups of absent rows fail with domain.ErrNotFound.
type Store interface {
	TxRunner
	CustomerRepository
	EmployeeRepository
	ProductRepository
	InventoryRepository
	OrderRepository
	TicketRepository
}
