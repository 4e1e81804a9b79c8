package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/pflag"

	"github.com/rl1809/backoffice/internal/adapter/storage"
	"github.com/rl1809/backoffice/internal/core/domain"
	"github.com/rl1809/backoffice/internal/core/service"
	"github.com/rl1809/backoffice/internal/port"
)

func main() {
	var (
		initialStock  = pflag.Int("stock", 20, "initial stock of the product")
		totalRequests = pflag.Int("requests", 50, "concurrent CreateOrder calls")
		customers     = pflag.Int("customers", 5, "customers the orders are spread over")
		mysqlDSN      = pflag.String("mysql-dsn", os.Getenv("MYSQL_DSN"), "run against MySQL instead of the in-memory store")
	)
	pflag.Parse()

	ctx := context.Background()
	store := openStore(ctx, *mysqlDSN)

	ledger := service.NewStockLedger(store)
	orderService := service.NewOrderService(store, ledger)
	inventoryService := service.NewInventoryService(store, ledger)
	directory := service.NewDirectoryService(store)

	product, _, err := inventoryService.CreateProduct(ctx, service.CreateProductInput{
		Name:     "Stress widget",
		SKU:      "STRESS-" + uuid.NewString(),
		Price:    decimal.RequireFromString("19.99"),
		Quantity: *initialStock,
	})
	if err != nil {
		log.Fatalf("failed to create product: %v", err)
	}

	customerIDs := make([]int64, *customers)
	for i := range customerIDs {
		c, err := directory.CreateCustomer(ctx, fmt.Sprintf("Customer %d", i), uuid.NewString()+"@stress.test")
		if err != nil {
			log.Fatalf("failed to create customer: %v", err)
		}
		customerIDs[i] = c.ID
	}

	// Counters
	var successCount, outOfStockCount, failCount atomic.Int32

	// Spawn concurrent requests
	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < *totalRequests; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()

			_, err := orderService.CreateOrder(ctx, service.CreateOrderInput{
				RequestID:  uuid.NewString(),
				CustomerID: customerIDs[i%len(customerIDs)],
				ProductID:  product.ID,
			})
			switch {
			case err == nil:
				successCount.Add(1)
			case errors.Is(err, domain.ErrOutOfStock):
				outOfStockCount.Add(1)
			default:
				log.Printf("order %d failed: %v", i, err)
				failCount.Add(1)
			}
		}(i)
	}

	wg.Wait()
	elapsed := time.Since(start)

	// Results
	success := int(successCount.Load())
	outOfStock := int(outOfStockCount.Load())
	expected := min(*initialStock, *totalRequests)

	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Initial Stock:    %d\n", *initialStock)
	fmt.Printf("Total Requests:   %d\n", *totalRequests)
	fmt.Printf("Successful:       %d\n", success)
	fmt.Printf("Out of stock:     %d\n", outOfStock)
	fmt.Printf("Failed:           %d\n", failCount.Load())
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("==========================================")

	ok := true
	if success == expected && outOfStock == *totalRequests-expected {
		fmt.Printf("PASS: Exactly %d orders succeeded, %d out of stock\n", success, outOfStock)
	} else {
		fmt.Printf("FAIL: Expected %d success/%d out of stock, got %d/%d\n",
			expected, *totalRequests-expected, success, outOfStock)
		ok = false
	}

	inv, err := inventoryService.GetInventory(ctx, product.ID)
	if err != nil {
		log.Fatalf("failed to read inventory: %v", err)
	}
	history, err := inventoryService.ListHistory(ctx, product.ID)
	if err != nil {
		log.Fatalf("failed to read history: %v", err)
	}
	fmt.Printf("Final Stock:      %d\n", inv.Quantity)

	if inv.Quantity == *initialStock-success && len(history) == success+1 {
		fmt.Println("PASS: Stock and history agree with committed orders")
	} else {
		fmt.Printf("FAIL: stock %d with %d history entries after %d orders\n", inv.Quantity, len(history), success)
		ok = false
	}

	var orderCount int
	for _, id := range customerIDs {
		c, err := directory.GetCustomer(ctx, id)
		if err != nil {
			log.Fatalf("failed to read customer: %v", err)
		}
		orderCount += c.OrderCount
	}
	if orderCount == success {
		fmt.Println("PASS: Customer order counts match")
	} else {
		fmt.Printf("FAIL: customer order counts sum to %d, expected %d\n", orderCount, success)
		ok = false
	}

	if !ok {
		os.Exit(1)
	}
}

func openStore(ctx context.Context, dsn string) port.Store {
	if dsn == "" {
		store, err := storage.NewMemoryStore()
		if err != nil {
			log.Fatalf("failed to create memory store: %v", err)
		}
		return store
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		log.Fatalf("failed to connect mysql: %v", err)
	}
	if err := db.PingContext(ctx); err != nil {
		log.Fatalf("failed to ping mysql: %v", err)
	}
	adapter := storage.NewMySQLAdapter(db)
	if err := adapter.Migrate(ctx); err != nil {
		log.Fatalf("failed to migrate: %v", err)
	}
	return adapter
}
