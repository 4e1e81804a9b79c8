package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/juju/errors"

	"github.com/rl1809/backoffice/internal/core/domain"
)

const (
	pgUniqueViolation      = "23505"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"

	pgMigrationLockID int64 = 704512391
)

type PostgresAdapter struct {
	pool *pgxpool.Pool
}

func NewPostgresAdapter(pool *pgxpool.Pool) *PostgresAdapter {
	return &PostgresAdapter{pool: pool}
}

type pgTxKey struct{}

type pgConn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (p *PostgresAdapter) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if pgTxFromContext(ctx) != nil {
		return fn(ctx)
	}

	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return pgError("begin tx", err)
	}

	// no-op once committed; releases the connection if fn panics
	defer tx.Rollback(context.WithoutCancel(ctx))

	if err := fn(context.WithValue(ctx, pgTxKey{}, tx)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w: %v", domain.ErrUnavailable, err)
	}
	return nil
}

func pgTxFromContext(ctx context.Context) pgx.Tx {
	tx, _ := ctx.Value(pgTxKey{}).(pgx.Tx)
	return tx
}

func (p *PostgresAdapter) conn(ctx context.Context) pgConn {
	if tx := pgTxFromContext(ctx); tx != nil {
		return tx
	}
	return p.pool
}

// Migrate applies the embedded Postgres schema under an advisory lock.
func (p *PostgresAdapter) Migrate(ctx context.Context) error {
	migrations, err := loadMigrations("postgres")
	if err != nil {
		return err
	}

	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire conn: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, `SELECT pg_advisory_lock($1)`, pgMigrationLockID); err != nil {
		return fmt.Errorf("acquire migration lock: %w", err)
	}
	defer func() {
		_, _ = conn.Exec(context.Background(), `SELECT pg_advisory_unlock($1)`, pgMigrationLockID)
	}()

	if _, err := conn.Exec(ctx, `
CREATE TABLE IF NOT EXISTS schema_migrations (
	name TEXT PRIMARY KEY,
	applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`); err != nil {
		return fmt.Errorf("ensure schema_migrations: %w", err)
	}

	for _, mig := range migrations {
		var applied bool
		if err := conn.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE name = $1)`, mig.name,
		).Scan(&applied); err != nil {
			return fmt.Errorf("check migration %s: %w", mig.name, err)
		}
		if applied {
			continue
		}
		for _, stmt := range mig.statements {
			if _, err := conn.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("exec migration %s: %w", mig.name, err)
			}
		}
		if _, err := conn.Exec(ctx, `INSERT INTO schema_migrations (name) VALUES ($1)`, mig.name); err != nil {
			return fmt.Errorf("record migration %s: %w", mig.name, err)
		}
	}
	return nil
}

func pgError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return fmt.Errorf("%s: %w: %v", op, domain.ErrConflict, err)
		case pgSerializationFailure, pgDeadlockDetected:
			return fmt.Errorf("%s: %w: %v", op, domain.ErrUnavailable, err)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	if pgconn.SafeToRetry(err) || pgconn.Timeout(err) {
		return fmt.Errorf("%s: %w: %v", op, domain.ErrUnavailable, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func (p *PostgresAdapter) CreateCustomer(ctx context.Context, customer domain.Customer) (domain.Customer, error) {
	err := p.conn(ctx).QueryRow(ctx, `
		INSERT INTO customers (name, email, order_count, created_at)
		VALUES ($1, $2, $3, $4) RETURNING id`,
		customer.Name, customer.Email, customer.OrderCount, customer.CreatedAt,
	).Scan(&customer.ID)
	if err != nil {
		return domain.Customer{}, pgError("insert customer", err)
	}
	return customer, nil
}

func (p *PostgresAdapter) GetCustomer(ctx context.Context, id int64) (domain.Customer, error) {
	return p.getCustomer(ctx, `SELECT `+customerColumns+` FROM customers WHERE id = $1`, id)
}

func (p *PostgresAdapter) LockCustomer(ctx context.Context, id int64) (domain.Customer, error) {
	return p.getCustomer(ctx, `SELECT `+customerColumns+` FROM customers WHERE id = $1 FOR UPDATE`, id)
}

func (p *PostgresAdapter) getCustomer(ctx context.Context, query string, id int64) (domain.Customer, error) {
	var c domain.Customer
	err := p.conn(ctx).QueryRow(ctx, query, id).
		Scan(&c.ID, &c.Name, &c.Email, &c.OrderCount, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Customer{}, errors.NotFoundf("customer %d", id)
	}
	if err != nil {
		return domain.Customer{}, pgError("query customer", err)
	}
	return c, nil
}

func (p *PostgresAdapter) IncrementOrderCount(ctx context.Context, id int64) error {
	tag, err := p.conn(ctx).Exec(ctx,
		`UPDATE customers SET order_count = order_count + 1 WHERE id = $1`, id)
	if err != nil {
		return pgError("update customer", err)
	}
	if tag.RowsAffected() == 0 {
		return errors.NotFoundf("customer %d", id)
	}
	return nil
}

func (p *PostgresAdapter) CreateEmployee(ctx context.Context, employee domain.Employee) (domain.Employee, error) {
	err := p.conn(ctx).QueryRow(ctx,
		`INSERT INTO employees (name, email, created_at) VALUES ($1, $2, $3) RETURNING id`,
		employee.Name, employee.Email, employee.CreatedAt,
	).Scan(&employee.ID)
	if err != nil {
		return domain.Employee{}, pgError("insert employee", err)
	}
	return employee, nil
}

func (p *PostgresAdapter) GetEmployee(ctx context.Context, id int64) (domain.Employee, error) {
	var e domain.Employee
	err := p.conn(ctx).QueryRow(ctx,
		`SELECT id, name, email, created_at FROM employees WHERE id = $1`, id,
	).Scan(&e.ID, &e.Name, &e.Email, &e.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Employee{}, errors.NotFoundf("employee %d", id)
	}
	if err != nil {
		return domain.Employee{}, pgError("query employee", err)
	}
	return e, nil
}

func (p *PostgresAdapter) CreateProduct(ctx context.Context, product domain.Product) (domain.Product, error) {
	err := p.conn(ctx).QueryRow(ctx, `
		INSERT INTO products (name, sku, price, description, created_at)
		VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		product.Name, product.SKU, product.Price, product.Description, product.CreatedAt,
	).Scan(&product.ID)
	if err != nil {
		return domain.Product{}, pgError("insert product", err)
	}
	return product, nil
}

func (p *PostgresAdapter) GetProduct(ctx context.Context, id int64) (domain.Product, error) {
	var pr domain.Product
	err := p.conn(ctx).QueryRow(ctx, `
		SELECT id, name, sku, price, description, created_at
		FROM products WHERE id = $1`, id,
	).Scan(&pr.ID, &pr.Name, &pr.SKU, &pr.Price, &pr.Description, &pr.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Product{}, errors.NotFoundf("product %d", id)
	}
	if err != nil {
		return domain.Product{}, pgError("query product", err)
	}
	return pr, nil
}

func (p *PostgresAdapter) CreateInventory(ctx context.Context, inv domain.Inventory) (domain.Inventory, error) {
	err := p.conn(ctx).QueryRow(ctx, `
		INSERT INTO inventory (product_id, quantity, location, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		inv.ProductID, inv.Quantity, inv.Location, inv.Version, inv.CreatedAt, inv.UpdatedAt,
	).Scan(&inv.ID)
	if err != nil {
		return domain.Inventory{}, pgError("insert inventory", err)
	}
	return inv, nil
}

func (p *PostgresAdapter) GetInventory(ctx context.Context, productID int64) (domain.Inventory, error) {
	return p.getInventory(ctx, `SELECT `+inventoryColumns+` FROM inventory WHERE product_id = $1`, productID)
}

func (p *PostgresAdapter) LockInventory(ctx context.Context, productID int64) (domain.Inventory, error) {
	return p.getInventory(ctx, `SELECT `+inventoryColumns+` FROM inventory WHERE product_id = $1 FOR UPDATE`, productID)
}

func (p *PostgresAdapter) getInventory(ctx context.Context, query string, productID int64) (domain.Inventory, error) {
	var inv domain.Inventory
	err := p.conn(ctx).QueryRow(ctx, query, productID).
		Scan(&inv.ID, &inv.ProductID, &inv.Quantity, &inv.Location, &inv.Version, &inv.CreatedAt, &inv.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Inventory{}, errors.NotFoundf("inventory for product %d", productID)
	}
	if err != nil {
		return domain.Inventory{}, pgError("query inventory", err)
	}
	return inv, nil
}

func (p *PostgresAdapter) SetInventoryQuantity(ctx context.Context, productID int64, quantity int) (domain.Inventory, error) {
	var inv domain.Inventory
	err := p.conn(ctx).QueryRow(ctx, `
		UPDATE inventory
		SET quantity = $1, version = version + 1, updated_at = NOW()
		WHERE product_id = $2
		RETURNING `+inventoryColumns,
		quantity, productID,
	).Scan(&inv.ID, &inv.ProductID, &inv.Quantity, &inv.Location, &inv.Version, &inv.CreatedAt, &inv.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Inventory{}, errors.NotFoundf("inventory for product %d", productID)
	}
	if err != nil {
		return domain.Inventory{}, pgError("update inventory", err)
	}
	return inv, nil
}

func (p *PostgresAdapter) AppendHistory(ctx context.Context, entry domain.InventoryHistory) (domain.InventoryHistory, error) {
	err := p.conn(ctx).QueryRow(ctx, `
		INSERT INTO inventory_history
			(product_id, old_quantity, new_quantity, quantity_change, change_reason, changed_by, notes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`,
		entry.ProductID, entry.OldQuantity, entry.NewQuantity, entry.Delta,
		entry.Reason, entry.Actor, entry.Note, entry.CreatedAt,
	).Scan(&entry.ID)
	if err != nil {
		return domain.InventoryHistory{}, pgError("insert inventory history", err)
	}
	return entry, nil
}

func (p *PostgresAdapter) ListHistory(ctx context.Context, productID int64) ([]domain.InventoryHistory, error) {
	rows, err := p.conn(ctx).Query(ctx, `
		SELECT id, product_id, old_quantity, new_quantity, quantity_change, change_reason, changed_by, notes, created_at
		FROM inventory_history WHERE product_id = $1 ORDER BY id`, productID)
	if err != nil {
		return nil, pgError("query inventory history", err)
	}
	defer rows.Close()

	var out []domain.InventoryHistory
	for rows.Next() {
		var h domain.InventoryHistory
		if err := rows.Scan(&h.ID, &h.ProductID, &h.OldQuantity, &h.NewQuantity, &h.Delta,
			&h.Reason, &h.Actor, &h.Note, &h.CreatedAt); err != nil {
			return nil, pgError("scan inventory history", err)
		}
		out = append(out, h)
	}
	if err := rows.Err(); err != nil {
		return nil, pgError("query inventory history", err)
	}
	return out, nil
}

func (p *PostgresAdapter) CreateOrder(ctx context.Context, order domain.Order) (domain.Order, error) {
	err := p.conn(ctx).QueryRow(ctx, `
		INSERT INTO orders (customer_id, product_id, product_name, sale_price, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		order.CustomerID, order.ProductID, order.ProductName, order.SalePrice, order.Status,
		order.CreatedAt, order.UpdatedAt,
	).Scan(&order.ID)
	if err != nil {
		return domain.Order{}, pgError("insert order", err)
	}
	return order, nil
}

func (p *PostgresAdapter) GetOrder(ctx context.Context, id int64) (domain.Order, error) {
	return p.getOrder(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
}

func (p *PostgresAdapter) LockOrder(ctx context.Context, id int64) (domain.Order, error) {
	return p.getOrder(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, id)
}

func (p *PostgresAdapter) getOrder(ctx context.Context, query string, id int64) (domain.Order, error) {
	var o domain.Order
	err := scanOrder(p.conn(ctx).QueryRow(ctx, query, id), &o)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Order{}, errors.NotFoundf("order %d", id)
	}
	if err != nil {
		return domain.Order{}, pgError("query order", err)
	}
	return o, nil
}

func (p *PostgresAdapter) ListOrders(ctx context.Context, filter domain.OrderFilter) ([]domain.Order, error) {
	var q pgQuery
	if filter.Status != nil {
		q.where("status", *filter.Status)
	}
	if filter.CustomerID != nil {
		q.where("customer_id", *filter.CustomerID)
	}

	rows, err := p.conn(ctx).Query(ctx, `SELECT `+orderColumns+` FROM orders`+q.clause()+` ORDER BY id`, q.args...)
	if err != nil {
		return nil, pgError("query orders", err)
	}
	defer rows.Close()

	var out []domain.Order
	for rows.Next() {
		var o domain.Order
		if err := scanOrder(rows, &o); err != nil {
			return nil, pgError("scan order", err)
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, pgError("query orders", err)
	}
	return out, nil
}

func (p *PostgresAdapter) UpdateOrderStatus(ctx context.Context, order domain.Order) error {
	tag, err := p.conn(ctx).Exec(ctx,
		`UPDATE orders SET status = $1, updated_at = $2 WHERE id = $3`,
		order.Status, order.UpdatedAt, order.ID,
	)
	if err != nil {
		return pgError("update order", err)
	}
	if tag.RowsAffected() == 0 {
		return errors.NotFoundf("order %d", order.ID)
	}
	return nil
}

func (p *PostgresAdapter) CreateTicket(ctx context.Context, ticket domain.Ticket) (domain.Ticket, error) {
	err := p.conn(ctx).QueryRow(ctx, `
		INSERT INTO tickets
			(ticket_number, customer_id, assigned_to, subject, description, status, priority, resolved_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10) RETURNING id`,
		ticket.TicketNumber, ticket.CustomerID, ticket.AssignedTo, ticket.Subject, ticket.Description,
		ticket.Status, ticket.Priority, ticket.ResolvedAt, ticket.CreatedAt, ticket.UpdatedAt,
	).Scan(&ticket.ID)
	if err != nil {
		return domain.Ticket{}, pgError("insert ticket", err)
	}
	return ticket, nil
}

func scanPgTicket(row pgx.Row, t *domain.Ticket) error {
	return row.Scan(&t.ID, &t.TicketNumber, &t.CustomerID, &t.AssignedTo, &t.Subject, &t.Description,
		&t.Status, &t.Priority, &t.ResolvedAt, &t.CreatedAt, &t.UpdatedAt)
}

func (p *PostgresAdapter) GetTicket(ctx context.Context, id int64) (domain.Ticket, error) {
	return p.getTicket(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE id = $1`, id)
}

func (p *PostgresAdapter) LockTicket(ctx context.Context, id int64) (domain.Ticket, error) {
	return p.getTicket(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE id = $1 FOR UPDATE`, id)
}

func (p *PostgresAdapter) getTicket(ctx context.Context, query string, id int64) (domain.Ticket, error) {
	var t domain.Ticket
	err := scanPgTicket(p.conn(ctx).QueryRow(ctx, query, id), &t)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Ticket{}, errors.NotFoundf("ticket %d", id)
	}
	if err != nil {
		return domain.Ticket{}, pgError("query ticket", err)
	}
	return t, nil
}

func (p *PostgresAdapter) ListTickets(ctx context.Context, filter domain.TicketFilter) ([]domain.Ticket, error) {
	var q pgQuery
	if filter.Status != nil {
		q.where("status", *filter.Status)
	}
	if filter.Priority != nil {
		q.where("priority", *filter.Priority)
	}
	if filter.CustomerID != nil {
		q.where("customer_id", *filter.CustomerID)
	}

	rows, err := p.conn(ctx).Query(ctx, `SELECT `+ticketColumns+` FROM tickets`+q.clause()+` ORDER BY id`, q.args...)
	if err != nil {
		return nil, pgError("query tickets", err)
	}
	defer rows.Close()

	var out []domain.Ticket
	for rows.Next() {
		var t domain.Ticket
		if err := scanPgTicket(rows, &t); err != nil {
			return nil, pgError("scan ticket", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, pgError("query tickets", err)
	}
	return out, nil
}

func (p *PostgresAdapter) UpdateTicket(ctx context.Context, ticket domain.Ticket) error {
	tag, err := p.conn(ctx).Exec(ctx, `
		UPDATE tickets
		SET status = $1, assigned_to = $2, resolved_at = $3, updated_at = $4
		WHERE id = $5`,
		ticket.Status, ticket.AssignedTo, ticket.ResolvedAt, ticket.UpdatedAt, ticket.ID,
	)
	if err != nil {
		return pgError("update ticket", err)
	}
	if tag.RowsAffected() == 0 {
		return errors.NotFoundf("ticket %d", ticket.ID)
	}
	return nil
}

// pgQuery collects equality filters with numbered placeholders.
type pgQuery struct {
	conds []string
	args  []any
}

func (q *pgQuery) where(column string, value any) {
	q.args = append(q.args, value)
	q.conds = append(q.conds, fmt.Sprintf("%s = $%d", column, len(q.args)))
}

func (q *pgQuery) clause() string {
	if len(q.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(q.conds, " AND ")
}
