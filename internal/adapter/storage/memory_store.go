package storage

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync/atomic"

	"github.com/hashicorp/go-memdb"
	"github.com/juju/errors"

	"github.com/rl1809/backoffice/internal/core/domain"
)

const (
	tableCustomers = "customers"
	tableEmployees = "employees"
	tableProducts  = "products"
	tableInventory = "inventory"
	tableHistory   = "inventory_history"
	tableOrders    = "orders"
	tableTickets   = "tickets"
)

var memorySchema = &memdb.DBSchema{
	Tables: map[string]*memdb.TableSchema{
		tableCustomers: {
			Name: tableCustomers,
			Indexes: map[string]*memdb.IndexSchema{
				"id":    {Name: "id", Unique: true, Indexer: &memdb.IntFieldIndex{Field: "ID"}},
				"email": {Name: "email", Unique: true, Indexer: &memdb.StringFieldIndex{Field: "Email", Lowercase: true}},
			},
		},
		tableEmployees: {
			Name: tableEmployees,
			Indexes: map[string]*memdb.IndexSchema{
				"id":    {Name: "id", Unique: true, Indexer: &memdb.IntFieldIndex{Field: "ID"}},
				"email": {Name: "email", Unique: true, Indexer: &memdb.StringFieldIndex{Field: "Email", Lowercase: true}},
			},
		},
		tableProducts: {
			Name: tableProducts,
			Indexes: map[string]*memdb.IndexSchema{
				"id":  {Name: "id", Unique: true, Indexer: &memdb.IntFieldIndex{Field: "ID"}},
				"sku": {Name: "sku", Unique: true, Indexer: &memdb.StringFieldIndex{Field: "SKU"}},
			},
		},
		tableInventory: {
			Name: tableInventory,
			Indexes: map[string]*memdb.IndexSchema{
				"id": {Name: "id", Unique: true, Indexer: &memdb.IntFieldIndex{Field: "ProductID"}},
			},
		},
		tableHistory: {
			Name: tableHistory,
			Indexes: map[string]*memdb.IndexSchema{
				"id":      {Name: "id", Unique: true, Indexer: &memdb.IntFieldIndex{Field: "ID"}},
				"product": {Name: "product", Indexer: &memdb.IntFieldIndex{Field: "ProductID"}},
			},
		},
		tableOrders: {
			Name: tableOrders,
			Indexes: map[string]*memdb.IndexSchema{
				"id":       {Name: "id", Unique: true, Indexer: &memdb.IntFieldIndex{Field: "ID"}},
				"status":   {Name: "status", Indexer: &memdb.StringFieldIndex{Field: "Status"}},
				"customer": {Name: "customer", Indexer: &memdb.IntFieldIndex{Field: "CustomerID"}},
			},
		},
		tableTickets: {
			Name: tableTickets,
			Indexes: map[string]*memdb.IndexSchema{
				"id":       {Name: "id", Unique: true, Indexer: &memdb.IntFieldIndex{Field: "ID"}},
				"number":   {Name: "number", Unique: true, Indexer: &memdb.StringFieldIndex{Field: "TicketNumber"}},
				"status":   {Name: "status", Indexer: &memdb.StringFieldIndex{Field: "Status"}},
				"priority": {Name: "priority", Indexer: &memdb.StringFieldIndex{Field: "Priority"}},
				"customer": {Name: "customer", Indexer: &memdb.IntFieldIndex{Field: "CustomerID"}},
			},
		},
	},
}

// MemoryStore keeps every entity in an in-process go-memdb database.
// Write transactions are exclusive, so a unit of work also serializes
// every other writer.
type MemoryStore struct {
	db  *memdb.MemDB
	ids map[string]*atomic.Int64
}

func NewMemoryStore() (*MemoryStore, error) {
	db, err := memdb.NewMemDB(memorySchema)
	if err != nil {
		return nil, fmt.Errorf("create memdb: %w", err)
	}
	ids := make(map[string]*atomic.Int64, len(memorySchema.Tables))
	for name := range memorySchema.Tables {
		ids[name] = new(atomic.Int64)
	}
	return &MemoryStore{db: db, ids: ids}, nil
}

type memTxKey struct{}

func (m *MemoryStore) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if memTxFromContext(ctx) != nil {
		return fn(ctx)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	txn := m.db.Txn(true)
	defer txn.Abort()

	if err := fn(context.WithValue(ctx, memTxKey{}, txn)); err != nil {
		return err
	}
	txn.Commit()
	return nil
}

func memTxFromContext(ctx context.Context) *memdb.Txn {
	txn, _ := ctx.Value(memTxKey{}).(*memdb.Txn)
	return txn
}

func (m *MemoryStore) read(ctx context.Context) *memdb.Txn {
	if txn := memTxFromContext(ctx); txn != nil {
		return txn
	}
	return m.db.Txn(false)
}

// write runs fn in the ambient unit of work, or in a fresh one.
func (m *MemoryStore) write(ctx context.Context, fn func(txn *memdb.Txn) error) error {
	return m.WithTx(ctx, func(ctx context.Context) error {
		return fn(memTxFromContext(ctx))
	})
}

func (m *MemoryStore) nextID(table string) int64 {
	return m.ids[table].Add(1)
}

func first[T any](txn *memdb.Txn, table, index string, args ...any) (*T, error) {
	raw, err := txn.First(table, index, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", table, err)
	}
	if raw == nil {
		return nil, nil
	}
	return raw.(*T), nil
}

func collect[T any](txn *memdb.Txn, table, index string, args ...any) ([]*T, error) {
	it, err := txn.Get(table, index, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", table, err)
	}
	var out []*T
	for raw := it.Next(); raw != nil; raw = it.Next() {
		out = append(out, raw.(*T))
	}
	return out, nil
}

func (m *MemoryStore) CreateCustomer(ctx context.Context, customer domain.Customer) (domain.Customer, error) {
	err := m.write(ctx, func(txn *memdb.Txn) error {
		existing, err := first[domain.Customer](txn, tableCustomers, "email", customer.Email)
		if err != nil {
			return err
		}
		if existing != nil {
			return errors.AlreadyExistsf("customer with email %q", customer.Email)
		}
		customer.ID = m.nextID(tableCustomers)
		row := customer
		return txn.Insert(tableCustomers, &row)
	})
	if err != nil {
		return domain.Customer{}, err
	}
	return customer, nil
}

func (m *MemoryStore) GetCustomer(ctx context.Context, id int64) (domain.Customer, error) {
	c, err := first[domain.Customer](m.read(ctx), tableCustomers, "id", id)
	if err != nil {
		return domain.Customer{}, err
	}
	if c == nil {
		return domain.Customer{}, errors.NotFoundf("customer %d", id)
	}
	return *c, nil
}

func (m *MemoryStore) LockCustomer(ctx context.Context, id int64) (domain.Customer, error) {
	return m.GetCustomer(ctx, id)
}

func (m *MemoryStore) IncrementOrderCount(ctx context.Context, id int64) error {
	return m.write(ctx, func(txn *memdb.Txn) error {
		c, err := first[domain.Customer](txn, tableCustomers, "id", id)
		if err != nil {
			return err
		}
		if c == nil {
			return errors.NotFoundf("customer %d", id)
		}
		row := *c
		row.OrderCount++
		return txn.Insert(tableCustomers, &row)
	})
}

func (m *MemoryStore) CreateEmployee(ctx context.Context, employee domain.Employee) (domain.Employee, error) {
	err := m.write(ctx, func(txn *memdb.Txn) error {
		existing, err := first[domain.Employee](txn, tableEmployees, "email", employee.Email)
		if err != nil {
			return err
		}
		if existing != nil {
			return errors.AlreadyExistsf("employee with email %q", employee.Email)
		}
		employee.ID = m.nextID(tableEmployees)
		row := employee
		return txn.Insert(tableEmployees, &row)
	})
	if err != nil {
		return domain.Employee{}, err
	}
	return employee, nil
}

func (m *MemoryStore) GetEmployee(ctx context.Context, id int64) (domain.Employee, error) {
	e, err := first[domain.Employee](m.read(ctx), tableEmployees, "id", id)
	if err != nil {
		return domain.Employee{}, err
	}
	if e == nil {
		return domain.Employee{}, errors.NotFoundf("employee %d", id)
	}
	return *e, nil
}

func (m *MemoryStore) CreateProduct(ctx context.Context, product domain.Product) (domain.Product, error) {
	err := m.write(ctx, func(txn *memdb.Txn) error {
		existing, err := first[domain.Product](txn, tableProducts, "sku", product.SKU)
		if err != nil {
			return err
		}
		if existing != nil {
			return errors.AlreadyExistsf("product with sku %q", product.SKU)
		}
		product.ID = m.nextID(tableProducts)
		row := product
		return txn.Insert(tableProducts, &row)
	})
	if err != nil {
		return domain.Product{}, err
	}
	return product, nil
}

func (m *MemoryStore) GetProduct(ctx context.Context, id int64) (domain.Product, error) {
	p, err := first[domain.Product](m.read(ctx), tableProducts, "id", id)
	if err != nil {
		return domain.Product{}, err
	}
	if p == nil {
		return domain.Product{}, errors.NotFoundf("product %d", id)
	}
	return *p, nil
}

func (m *MemoryStore) CreateInventory(ctx context.Context, inventory domain.Inventory) (domain.Inventory, error) {
	err := m.write(ctx, func(txn *memdb.Txn) error {
		existing, err := first[domain.Inventory](txn, tableInventory, "id", inventory.ProductID)
		if err != nil {
			return err
		}
		if existing != nil {
			return errors.AlreadyExistsf("inventory for product %d", inventory.ProductID)
		}
		inventory.ID = m.nextID(tableInventory)
		row := inventory
		return txn.Insert(tableInventory, &row)
	})
	if err != nil {
		return domain.Inventory{}, err
	}
	return inventory, nil
}

func (m *MemoryStore) GetInventory(ctx context.Context, productID int64) (domain.Inventory, error) {
	inv, err := first[domain.Inventory](m.read(ctx), tableInventory, "id", productID)
	if err != nil {
		return domain.Inventory{}, err
	}
	if inv == nil {
		return domain.Inventory{}, errors.NotFoundf("inventory for product %d", productID)
	}
	return *inv, nil
}

func (m *MemoryStore) LockInventory(ctx context.Context, productID int64) (domain.Inventory, error) {
	return m.GetInventory(ctx, productID)
}

func (m *MemoryStore) SetInventoryQuantity(ctx context.Context, productID int64, quantity int) (domain.Inventory, error) {
	var updated domain.Inventory
	err := m.write(ctx, func(txn *memdb.Txn) error {
		inv, err := first[domain.Inventory](txn, tableInventory, "id", productID)
		if err != nil {
			return err
		}
		if inv == nil {
			return errors.NotFoundf("inventory for product %d", productID)
		}
		updated = *inv
		updated.Quantity = quantity
		updated.Version++
		row := updated
		return txn.Insert(tableInventory, &row)
	})
	if err != nil {
		return domain.Inventory{}, err
	}
	return updated, nil
}

func (m *MemoryStore) AppendHistory(ctx context.Context, entry domain.InventoryHistory) (domain.InventoryHistory, error) {
	err := m.write(ctx, func(txn *memdb.Txn) error {
		entry.ID = m.nextID(tableHistory)
		row := entry
		return txn.Insert(tableHistory, &row)
	})
	if err != nil {
		return domain.InventoryHistory{}, err
	}
	return entry, nil
}

func (m *MemoryStore) ListHistory(ctx context.Context, productID int64) ([]domain.InventoryHistory, error) {
	rows, err := collect[domain.InventoryHistory](m.read(ctx), tableHistory, "product", productID)
	if err != nil {
		return nil, err
	}
	return sortedByID(rows, func(h domain.InventoryHistory) int64 { return h.ID }), nil
}

func (m *MemoryStore) CreateOrder(ctx context.Context, order domain.Order) (domain.Order, error) {
	err := m.write(ctx, func(txn *memdb.Txn) error {
		order.ID = m.nextID(tableOrders)
		row := order
		return txn.Insert(tableOrders, &row)
	})
	if err != nil {
		return domain.Order{}, err
	}
	return order, nil
}

func (m *MemoryStore) GetOrder(ctx context.Context, id int64) (domain.Order, error) {
	o, err := first[domain.Order](m.read(ctx), tableOrders, "id", id)
	if err != nil {
		return domain.Order{}, err
	}
	if o == nil {
		return domain.Order{}, errors.NotFoundf("order %d", id)
	}
	return *o, nil
}

func (m *MemoryStore) LockOrder(ctx context.Context, id int64) (domain.Order, error) {
	return m.GetOrder(ctx, id)
}

func (m *MemoryStore) ListOrders(ctx context.Context, filter domain.OrderFilter) ([]domain.Order, error) {
	var (
		rows []*domain.Order
		err  error
	)
	txn := m.read(ctx)
	switch {
	case filter.Status != nil:
		rows, err = collect[domain.Order](txn, tableOrders, "status", string(*filter.Status))
	case filter.CustomerID != nil:
		rows, err = collect[domain.Order](txn, tableOrders, "customer", *filter.CustomerID)
	default:
		rows, err = collect[domain.Order](txn, tableOrders, "id")
	}
	if err != nil {
		return nil, err
	}

	rows = slices.DeleteFunc(rows, func(o *domain.Order) bool {
		return (filter.Status != nil && o.Status != *filter.Status) ||
			(filter.CustomerID != nil && o.CustomerID != *filter.CustomerID)
	})
	return sortedByID(rows, func(o domain.Order) int64 { return o.ID }), nil
}

func (m *MemoryStore) UpdateOrderStatus(ctx context.Context, order domain.Order) error {
	return m.write(ctx, func(txn *memdb.Txn) error {
		o, err := first[domain.Order](txn, tableOrders, "id", order.ID)
		if err != nil {
			return err
		}
		if o == nil {
			return errors.NotFoundf("order %d", order.ID)
		}
		row := *o
		row.Status = order.Status
		row.UpdatedAt = order.UpdatedAt
		return txn.Insert(tableOrders, &row)
	})
}

func (m *MemoryStore) CreateTicket(ctx context.Context, ticket domain.Ticket) (domain.Ticket, error) {
	err := m.write(ctx, func(txn *memdb.Txn) error {
		existing, err := first[domain.Ticket](txn, tableTickets, "number", ticket.TicketNumber)
		if err != nil {
			return err
		}
		if existing != nil {
			return errors.AlreadyExistsf("ticket number %q", ticket.TicketNumber)
		}
		ticket.ID = m.nextID(tableTickets)
		return txn.Insert(tableTickets, cloneTicket(ticket))
	})
	if err != nil {
		return domain.Ticket{}, err
	}
	return ticket, nil
}

func (m *MemoryStore) GetTicket(ctx context.Context, id int64) (domain.Ticket, error) {
	t, err := first[domain.Ticket](m.read(ctx), tableTickets, "id", id)
	if err != nil {
		return domain.Ticket{}, err
	}
	if t == nil {
		return domain.Ticket{}, errors.NotFoundf("ticket %d", id)
	}
	return *cloneTicket(*t), nil
}

func (m *MemoryStore) LockTicket(ctx context.Context, id int64) (domain.Ticket, error) {
	return m.GetTicket(ctx, id)
}

func (m *MemoryStore) ListTickets(ctx context.Context, filter domain.TicketFilter) ([]domain.Ticket, error) {
	var (
		rows []*domain.Ticket
		err  error
	)
	txn := m.read(ctx)
	switch {
	case filter.Status != nil:
		rows, err = collect[domain.Ticket](txn, tableTickets, "status", string(*filter.Status))
	case filter.Priority != nil:
		rows, err = collect[domain.Ticket](txn, tableTickets, "priority", string(*filter.Priority))
	case filter.CustomerID != nil:
		rows, err = collect[domain.Ticket](txn, tableTickets, "customer", *filter.CustomerID)
	default:
		rows, err = collect[domain.Ticket](txn, tableTickets, "id")
	}
	if err != nil {
		return nil, err
	}

	rows = slices.DeleteFunc(rows, func(t *domain.Ticket) bool {
		return (filter.Status != nil && t.Status != *filter.Status) ||
			(filter.Priority != nil && t.Priority != *filter.Priority) ||
			(filter.CustomerID != nil && t.CustomerID != *filter.CustomerID)
	})
	for i, t := range rows {
		rows[i] = cloneTicket(*t)
	}
	return sortedByID(rows, func(t domain.Ticket) int64 { return t.ID }), nil
}

func (m *MemoryStore) UpdateTicket(ctx context.Context, ticket domain.Ticket) error {
	return m.write(ctx, func(txn *memdb.Txn) error {
		t, err := first[domain.Ticket](txn, tableTickets, "id", ticket.ID)
		if err != nil {
			return err
		}
		if t == nil {
			return errors.NotFoundf("ticket %d", ticket.ID)
		}
		row := cloneTicket(*t)
		row.Status = ticket.Status
		row.AssignedTo = cloneInt64(ticket.AssignedTo)
		row.ResolvedAt = nil
		if ticket.ResolvedAt != nil {
			resolvedAt := *ticket.ResolvedAt
			row.ResolvedAt = &resolvedAt
		}
		row.UpdatedAt = ticket.UpdatedAt
		return txn.Insert(tableTickets, row)
	})
}

// cloneTicket copies t so that stored rows never share pointers with callers.
func cloneTicket(t domain.Ticket) *domain.Ticket {
	c := t
	c.AssignedTo = cloneInt64(t.AssignedTo)
	if t.ResolvedAt != nil {
		resolvedAt := *t.ResolvedAt
		c.ResolvedAt = &resolvedAt
	}
	return &c
}

func cloneInt64(v *int64) *int64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func sortedByID[T any](rows []*T, id func(T) int64) []T {
	out := make([]T, 0, len(rows))
	for _, r := range rows {
		out = append(out, *r)
	}
	slices.SortFunc(out, func(a, b T) int { return cmp.Compare(id(a), id(b)) })
	return out
}
