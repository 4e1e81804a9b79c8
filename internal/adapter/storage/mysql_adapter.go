package storage

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/juju/errors"

	"github.com/rl1809/backoffice/internal/core/domain"
)

const (
	mysqlErrDuplicateEntry  = 1062
	mysqlErrLockWaitTimeout = 1205
	mysqlErrDeadlock        = 1213

	migrationLockName = "backoffice_migrate"
)

type MySQLAdapter struct {
	db *sql.DB
}

func NewMySQLAdapter(db *sql.DB) *MySQLAdapter {
	return &MySQLAdapter{db: db}
}

type sqlTxKey struct{}

type sqlConn interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (m *MySQLAdapter) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if sqlTxFromContext(ctx) != nil {
		return fn(ctx)
	}

	tx, err := m.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return mysqlError("begin tx", err)
	}
	defer tx.Rollback()

	if err := fn(context.WithValue(ctx, sqlTxKey{}, tx)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w: %v", domain.ErrUnavailable, err)
	}
	return nil
}

func sqlTxFromContext(ctx context.Context) *sql.Tx {
	tx, _ := ctx.Value(sqlTxKey{}).(*sql.Tx)
	return tx
}

func (m *MySQLAdapter) conn(ctx context.Context) sqlConn {
	if tx := sqlTxFromContext(ctx); tx != nil {
		return tx
	}
	return m.db
}

// Migrate applies the embedded MySQL schema, holding a named lock so that
// concurrent server starts do not race.
func (m *MySQLAdapter) Migrate(ctx context.Context) error {
	migrations, err := loadMigrations("mysql")
	if err != nil {
		return err
	}

	conn, err := m.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire conn: %w", err)
	}
	defer conn.Close()

	var locked sql.NullInt64
	if err := conn.QueryRowContext(ctx, `SELECT GET_LOCK(?, 30)`, migrationLockName).Scan(&locked); err != nil {
		return fmt.Errorf("acquire migration lock: %w", err)
	}
	if !locked.Valid || locked.Int64 != 1 {
		return fmt.Errorf("acquire migration lock: timed out")
	}
	defer conn.ExecContext(context.Background(), `SELECT RELEASE_LOCK(?)`, migrationLockName)

	if _, err := conn.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			name VARCHAR(255) PRIMARY KEY,
			applied_at DATETIME(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6)
		)`); err != nil {
		return fmt.Errorf("ensure schema_migrations: %w", err)
	}

	for _, mig := range migrations {
		var applied bool
		if err := conn.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE name = ?)`, mig.name,
		).Scan(&applied); err != nil {
			return fmt.Errorf("check migration %s: %w", mig.name, err)
		}
		if applied {
			continue
		}
		for _, stmt := range mig.statements {
			if _, err := conn.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("exec migration %s: %w", mig.name, err)
			}
		}
		if _, err := conn.ExecContext(ctx, `INSERT INTO schema_migrations (name) VALUES (?)`, mig.name); err != nil {
			return fmt.Errorf("record migration %s: %w", mig.name, err)
		}
	}
	return nil
}

// mysqlError annotates err with op, classifying duplicate keys as
// conflicts and deadlocks or dropped connections as transient failures.
func mysqlError(op string, err error) error {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case mysqlErrDuplicateEntry:
			return fmt.Errorf("%s: %w: %v", op, domain.ErrConflict, err)
		case mysqlErrDeadlock, mysqlErrLockWaitTimeout:
			return fmt.Errorf("%s: %w: %v", op, domain.ErrUnavailable, err)
		}
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, mysql.ErrInvalidConn) {
		return fmt.Errorf("%s: %w: %v", op, domain.ErrUnavailable, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func insertID(result sql.Result, op string) (int64, error) {
	id, err := result.LastInsertId()
	if err != nil {
		return 0, mysqlError(op, err)
	}
	return id, nil
}

func (m *MySQLAdapter) CreateCustomer(ctx context.Context, customer domain.Customer) (domain.Customer, error) {
	result, err := m.conn(ctx).ExecContext(ctx, `
		INSERT INTO customers (name, email, order_count, created_at)
		VALUES (?, ?, ?, ?)`,
		customer.Name, customer.Email, customer.OrderCount, customer.CreatedAt,
	)
	if err != nil {
		return domain.Customer{}, mysqlError("insert customer", err)
	}
	if customer.ID, err = insertID(result, "insert customer"); err != nil {
		return domain.Customer{}, err
	}
	return customer, nil
}

const customerColumns = `id, name, email, order_count, created_at`

func (m *MySQLAdapter) GetCustomer(ctx context.Context, id int64) (domain.Customer, error) {
	return m.getCustomer(ctx, `SELECT `+customerColumns+` FROM customers WHERE id = ?`, id)
}

func (m *MySQLAdapter) LockCustomer(ctx context.Context, id int64) (domain.Customer, error) {
	return m.getCustomer(ctx, `SELECT `+customerColumns+` FROM customers WHERE id = ? FOR UPDATE`, id)
}

func (m *MySQLAdapter) getCustomer(ctx context.Context, query string, id int64) (domain.Customer, error) {
	var c domain.Customer
	err := m.conn(ctx).QueryRowContext(ctx, query, id).
		Scan(&c.ID, &c.Name, &c.Email, &c.OrderCount, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Customer{}, errors.NotFoundf("customer %d", id)
	}
	if err != nil {
		return domain.Customer{}, mysqlError("query customer", err)
	}
	return c, nil
}

func (m *MySQLAdapter) IncrementOrderCount(ctx context.Context, id int64) error {
	result, err := m.conn(ctx).ExecContext(ctx,
		`UPDATE customers SET order_count = order_count + 1 WHERE id = ?`, id)
	if err != nil {
		return mysqlError("update customer", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return errors.NotFoundf("customer %d", id)
	}
	return nil
}

func (m *MySQLAdapter) CreateEmployee(ctx context.Context, employee domain.Employee) (domain.Employee, error) {
	result, err := m.conn(ctx).ExecContext(ctx, `
		INSERT INTO employees (name, email, created_at) VALUES (?, ?, ?)`,
		employee.Name, employee.Email, employee.CreatedAt,
	)
	if err != nil {
		return domain.Employee{}, mysqlError("insert employee", err)
	}
	if employee.ID, err = insertID(result, "insert employee"); err != nil {
		return domain.Employee{}, err
	}
	return employee, nil
}

func (m *MySQLAdapter) GetEmployee(ctx context.Context, id int64) (domain.Employee, error) {
	var e domain.Employee
	err := m.conn(ctx).QueryRowContext(ctx,
		`SELECT id, name, email, created_at FROM employees WHERE id = ?`, id,
	).Scan(&e.ID, &e.Name, &e.Email, &e.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Employee{}, errors.NotFoundf("employee %d", id)
	}
	if err != nil {
		return domain.Employee{}, mysqlError("query employee", err)
	}
	return e, nil
}

func (m *MySQLAdapter) CreateProduct(ctx context.Context, product domain.Product) (domain.Product, error) {
	result, err := m.conn(ctx).ExecContext(ctx, `
		INSERT INTO products (name, sku, price, description, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		product.Name, product.SKU, product.Price, product.Description, product.CreatedAt,
	)
	if err != nil {
		return domain.Product{}, mysqlError("insert product", err)
	}
	if product.ID, err = insertID(result, "insert product"); err != nil {
		return domain.Product{}, err
	}
	return product, nil
}

func (m *MySQLAdapter) GetProduct(ctx context.Context, id int64) (domain.Product, error) {
	var p domain.Product
	err := m.conn(ctx).QueryRowContext(ctx, `
		SELECT id, name, sku, price, description, created_at
		FROM products WHERE id = ?`, id,
	).Scan(&p.ID, &p.Name, &p.SKU, &p.Price, &p.Description, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Product{}, errors.NotFoundf("product %d", id)
	}
	if err != nil {
		return domain.Product{}, mysqlError("query product", err)
	}
	return p, nil
}

func (m *MySQLAdapter) CreateInventory(ctx context.Context, inv domain.Inventory) (domain.Inventory, error) {
	result, err := m.conn(ctx).ExecContext(ctx, `
		INSERT INTO inventory (product_id, quantity, location, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		inv.ProductID, inv.Quantity, inv.Location, inv.Version, inv.CreatedAt, inv.UpdatedAt,
	)
	if err != nil {
		return domain.Inventory{}, mysqlError("insert inventory", err)
	}
	if inv.ID, err = insertID(result, "insert inventory"); err != nil {
		return domain.Inventory{}, err
	}
	return inv, nil
}

const inventoryColumns = `id, product_id, quantity, location, version, created_at, updated_at`

func (m *MySQLAdapter) GetInventory(ctx context.Context, productID int64) (domain.Inventory, error) {
	return m.getInventory(ctx, `SELECT `+inventoryColumns+` FROM inventory WHERE product_id = ?`, productID)
}

func (m *MySQLAdapter) LockInventory(ctx context.Context, productID int64) (domain.Inventory, error) {
	return m.getInventory(ctx, `SELECT `+inventoryColumns+` FROM inventory WHERE product_id = ? FOR UPDATE`, productID)
}

func (m *MySQLAdapter) getInventory(ctx context.Context, query string, productID int64) (domain.Inventory, error) {
	var inv domain.Inventory
	err := m.conn(ctx).QueryRowContext(ctx, query, productID).
		Scan(&inv.ID, &inv.ProductID, &inv.Quantity, &inv.Location, &inv.Version, &inv.CreatedAt, &inv.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Inventory{}, errors.NotFoundf("inventory for product %d", productID)
	}
	if err != nil {
		return domain.Inventory{}, mysqlError("query inventory", err)
	}
	return inv, nil
}

func (m *MySQLAdapter) SetInventoryQuantity(ctx context.Context, productID int64, quantity int) (domain.Inventory, error) {
	result, err := m.conn(ctx).ExecContext(ctx, `
		UPDATE inventory
		SET quantity = ?, version = version + 1, updated_at = CURRENT_TIMESTAMP(6)
		WHERE product_id = ?`,
		quantity, productID,
	)
	if err != nil {
		return domain.Inventory{}, mysqlError("update inventory", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return domain.Inventory{}, errors.NotFoundf("inventory for product %d", productID)
	}
	return m.GetInventory(ctx, productID)
}

func (m *MySQLAdapter) AppendHistory(ctx context.Context, entry domain.InventoryHistory) (domain.InventoryHistory, error) {
	result, err := m.conn(ctx).ExecContext(ctx, `
		INSERT INTO inventory_history
			(product_id, old_quantity, new_quantity, quantity_change, change_reason, changed_by, notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ProductID, entry.OldQuantity, entry.NewQuantity, entry.Delta,
		entry.Reason, entry.Actor, entry.Note, entry.CreatedAt,
	)
	if err != nil {
		return domain.InventoryHistory{}, mysqlError("insert inventory history", err)
	}
	if entry.ID, err = insertID(result, "insert inventory history"); err != nil {
		return domain.InventoryHistory{}, err
	}
	return entry, nil
}

func (m *MySQLAdapter) ListHistory(ctx context.Context, productID int64) ([]domain.InventoryHistory, error) {
	rows, err := m.conn(ctx).QueryContext(ctx, `
		SELECT id, product_id, old_quantity, new_quantity, quantity_change, change_reason, changed_by, notes, created_at
		FROM inventory_history WHERE product_id = ? ORDER BY id`, productID)
	if err != nil {
		return nil, mysqlError("query inventory history", err)
	}
	defer rows.Close()

	var out []domain.InventoryHistory
	for rows.Next() {
		var h domain.InventoryHistory
		if err := rows.Scan(&h.ID, &h.ProductID, &h.OldQuantity, &h.NewQuantity, &h.Delta,
			&h.Reason, &h.Actor, &h.Note, &h.CreatedAt); err != nil {
			return nil, mysqlError("scan inventory history", err)
		}
		out = append(out, h)
	}
	if err := rows.Err(); err != nil {
		return nil, mysqlError("query inventory history", err)
	}
	return out, nil
}

func (m *MySQLAdapter) CreateOrder(ctx context.Context, order domain.Order) (domain.Order, error) {
	result, err := m.conn(ctx).ExecContext(ctx, `
		INSERT INTO orders (customer_id, product_id, product_name, sale_price, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		order.CustomerID, order.ProductID, order.ProductName, order.SalePrice, order.Status,
		order.CreatedAt, order.UpdatedAt,
	)
	if err != nil {
		return domain.Order{}, mysqlError("insert order", err)
	}
	if order.ID, err = insertID(result, "insert order"); err != nil {
		return domain.Order{}, err
	}
	return order, nil
}

const orderColumns = `id, customer_id, product_id, product_name, sale_price, status, created_at, updated_at`

func scanOrder(row interface{ Scan(...any) error }, o *domain.Order) error {
	return row.Scan(&o.ID, &o.CustomerID, &o.ProductID, &o.ProductName, &o.SalePrice, &o.Status, &o.CreatedAt, &o.UpdatedAt)
}

func (m *MySQLAdapter) GetOrder(ctx context.Context, id int64) (domain.Order, error) {
	return m.getOrder(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = ?`, id)
}

func (m *MySQLAdapter) LockOrder(ctx context.Context, id int64) (domain.Order, error) {
	return m.getOrder(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = ? FOR UPDATE`, id)
}

func (m *MySQLAdapter) getOrder(ctx context.Context, query string, id int64) (domain.Order, error) {
	var o domain.Order
	err := scanOrder(m.conn(ctx).QueryRowContext(ctx, query, id), &o)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Order{}, errors.NotFoundf("order %d", id)
	}
	if err != nil {
		return domain.Order{}, mysqlError("query order", err)
	}
	return o, nil
}

func (m *MySQLAdapter) ListOrders(ctx context.Context, filter domain.OrderFilter) ([]domain.Order, error) {
	var (
		conds []string
		args  []any
	)
	if filter.Status != nil {
		conds = append(conds, "status = ?")
		args = append(args, *filter.Status)
	}
	if filter.CustomerID != nil {
		conds = append(conds, "customer_id = ?")
		args = append(args, *filter.CustomerID)
	}
	query := `SELECT ` + orderColumns + ` FROM orders` + where(conds) + ` ORDER BY id`

	rows, err := m.conn(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mysqlError("query orders", err)
	}
	defer rows.Close()

	var out []domain.Order
	for rows.Next() {
		var o domain.Order
		if err := scanOrder(rows, &o); err != nil {
			return nil, mysqlError("scan order", err)
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, mysqlError("query orders", err)
	}
	return out, nil
}

func (m *MySQLAdapter) UpdateOrderStatus(ctx context.Context, order domain.Order) error {
	result, err := m.conn(ctx).ExecContext(ctx,
		`UPDATE orders SET status = ?, updated_at = ? WHERE id = ?`,
		order.Status, order.UpdatedAt, order.ID,
	)
	if err != nil {
		return mysqlError("update order", err)
	}
	return m.ensureExists(ctx, result, `SELECT 1 FROM orders WHERE id = ?`, "order", order.ID)
}

func (m *MySQLAdapter) CreateTicket(ctx context.Context, ticket domain.Ticket) (domain.Ticket, error) {
	result, err := m.conn(ctx).ExecContext(ctx, `
		INSERT INTO tickets
			(ticket_number, customer_id, assigned_to, subject, description, status, priority, resolved_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ticket.TicketNumber, ticket.CustomerID, nullInt64(ticket.AssignedTo), ticket.Subject, ticket.Description,
		ticket.Status, ticket.Priority, nullTime(ticket.ResolvedAt), ticket.CreatedAt, ticket.UpdatedAt,
	)
	if err != nil {
		return domain.Ticket{}, mysqlError("insert ticket", err)
	}
	if ticket.ID, err = insertID(result, "insert ticket"); err != nil {
		return domain.Ticket{}, err
	}
	return ticket, nil
}

const ticketColumns = `id, ticket_number, customer_id, assigned_to, subject, description, status, priority, resolved_at, created_at, updated_at`

func scanTicket(row interface{ Scan(...any) error }, t *domain.Ticket) error {
	var (
		assignedTo sql.NullInt64
		resolvedAt sql.NullTime
	)
	if err := row.Scan(&t.ID, &t.TicketNumber, &t.CustomerID, &assignedTo, &t.Subject, &t.Description,
		&t.Status, &t.Priority, &resolvedAt, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return err
	}
	if assignedTo.Valid {
		t.AssignedTo = &assignedTo.Int64
	}
	if resolvedAt.Valid {
		t.ResolvedAt = &resolvedAt.Time
	}
	return nil
}

func (m *MySQLAdapter) GetTicket(ctx context.Context, id int64) (domain.Ticket, error) {
	return m.getTicket(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE id = ?`, id)
}

func (m *MySQLAdapter) LockTicket(ctx context.Context, id int64) (domain.Ticket, error) {
	return m.getTicket(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE id = ? FOR UPDATE`, id)
}

func (m *MySQLAdapter) getTicket(ctx context.Context, query string, id int64) (domain.Ticket, error) {
	var t domain.Ticket
	err := scanTicket(m.conn(ctx).QueryRowContext(ctx, query, id), &t)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Ticket{}, errors.NotFoundf("ticket %d", id)
	}
	if err != nil {
		return domain.Ticket{}, mysqlError("query ticket", err)
	}
	return t, nil
}

func (m *MySQLAdapter) ListTickets(ctx context.Context, filter domain.TicketFilter) ([]domain.Ticket, error) {
	var (
		conds []string
		args  []any
	)
	if filter.Status != nil {
		conds = append(conds, "status = ?")
		args = append(args, *filter.Status)
	}
	if filter.Priority != nil {
		conds = append(conds, "priority = ?")
		args = append(args, *filter.Priority)
	}
	if filter.CustomerID != nil {
		conds = append(conds, "customer_id = ?")
		args = append(args, *filter.CustomerID)
	}
	query := `SELECT ` + ticketColumns + ` FROM tickets` + where(conds) + ` ORDER BY id`

	rows, err := m.conn(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mysqlError("query tickets", err)
	}
	defer rows.Close()

	var out []domain.Ticket
	for rows.Next() {
		var t domain.Ticket
		if err := scanTicket(rows, &t); err != nil {
			return nil, mysqlError("scan ticket", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, mysqlError("query tickets", err)
	}
	return out, nil
}

func (m *MySQLAdapter) UpdateTicket(ctx context.Context, ticket domain.Ticket) error {
	result, err := m.conn(ctx).ExecContext(ctx, `
		UPDATE tickets
		SET status = ?, assigned_to = ?, resolved_at = ?, updated_at = ?
		WHERE id = ?`,
		ticket.Status, nullInt64(ticket.AssignedTo), nullTime(ticket.ResolvedAt), ticket.UpdatedAt, ticket.ID,
	)
	if err != nil {
		return mysqlError("update ticket", err)
	}
	return m.ensureExists(ctx, result, `SELECT 1 FROM tickets WHERE id = ?`, "ticket", ticket.ID)
}

// ensureExists tells a missing row apart from an unchanged one, since MySQL
// reports only changed rows as affected.
func (m *MySQLAdapter) ensureExists(ctx context.Context, result sql.Result, query, kind string, id int64) error {
	if rows, _ := result.RowsAffected(); rows > 0 {
		return nil
	}
	var one int
	err := m.conn(ctx).QueryRowContext(ctx, query, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return errors.NotFoundf("%s %d", kind, id)
	}
	if err != nil {
		return mysqlError("query "+kind, err)
	}
	return nil
}

func where(conds []string) string {
	if len(conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(conds, " AND ")
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func nullTime(v *time.Time) sql.NullTime {
	if v == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *v, Valid: true}
}
