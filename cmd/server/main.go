package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/juju/clock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"

	"github.com/rl1809/backoffice/internal/adapter/handler"
	"github.com/rl1809/backoffice/internal/adapter/metrics"
	"github.com/rl1809/backoffice/internal/adapter/storage"
	"github.com/rl1809/backoffice/internal/config"
	"github.com/rl1809/backoffice/internal/core/domain"
	"github.com/rl1809/backoffice/internal/core/service"
	"github.com/rl1809/backoffice/internal/port"
)

func main() {
	fs := pflag.NewFlagSet(os.Args[0], pflag.ExitOnError)
	config.RegisterFlags(fs)
	fs.Parse(os.Args[1:])

	configPath, _ := fs.GetString("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if err := cfg.ApplyFlags(fs); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}

func newLogger(cfg config.LogConfig) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	if cfg.Development {
		zcfg = zap.NewDevelopmentConfig()
	}
	level, err := zap.ParseAtomicLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	zcfg.Level = level
	return zcfg.Build()
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, closeStore, err := openStore(ctx, cfg.Store, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	cache, closeCache, err := openCache(ctx, cfg.Cache, logger)
	if err != nil {
		return err
	}
	defer closeCache()

	collector := metrics.NewCollector()
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collector,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	bus := service.NewEventBus(cfg.Workers.QueueSize, service.WithLogger(logger), service.WithMetrics(collector))
	opts := []service.Option{
		service.WithCache(cache),
		service.WithClock(clock.WallClock),
		service.WithLogger(logger),
		service.WithMetrics(collector),
		service.WithPublisher(bus),
	}
	ledger := service.NewStockLedger(store, opts...)
	services := handler.Services{
		Orders:    service.NewOrderService(store, ledger, opts...),
		Inventory: service.NewInventoryService(store, ledger, opts...),
		Tickets:   service.NewTicketService(store, opts...),
		Directory: service.NewDirectoryService(store, opts...),
	}

	// Start worker pool
	var wg sync.WaitGroup
	for i := 0; i < cfg.Workers.Count; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			bus.Work(id, logEvent(logger))
		}(i)
	}
	logger.Info("started workers", zap.Int("count", cfg.Workers.Count))

	grpcServer := grpc.NewServer()
	healthServer := health.NewServer()
	handler.RegisterFulfillmentServer(grpcServer, handler.NewGRPCHandler(services, logger))
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)

	if cfg.GRPCAddr != "" {
		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			return fmt.Errorf("listen %s: %w", cfg.GRPCAddr, err)
		}
		go func() {
			logger.Info("gRPC server listening", zap.String("addr", cfg.GRPCAddr))
			if err := grpcServer.Serve(lis); err != nil {
				logger.Error("gRPC server error", zap.Error(err))
			}
		}()
	}

	router := handler.NewHTTPHandler(services, logger).Router()
	router.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: router,
	}

	if cfg.HTTPAddr != "" {
		go func() {
			logger.Info("HTTP server listening", zap.String("addr", cfg.HTTPAddr))
			if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				logger.Error("HTTP server error", zap.Error(err))
			}
		}()
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	healthServer.Shutdown()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP shutdown", zap.Error(err))
	}
	logger.Info("HTTP server stopped")

	grpcServer.GracefulStop()
	logger.Info("gRPC server stopped")

	// Close event queue and wait for workers
	bus.Close()
	wg.Wait()
	logger.Info("workers stopped")
	return nil
}

func openStore(ctx context.Context, cfg config.StoreConfig, logger *zap.Logger) (port.Store, func(), error) {
	switch cfg.Driver {
	case config.DriverMySQL:
		db, err := sql.Open("mysql", cfg.MySQLDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("open mysql: %w", err)
		}
		db.SetMaxOpenConns(cfg.MaxOpenConns)
		db.SetMaxIdleConns(cfg.MaxIdleConns)
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("ping mysql: %w", err)
		}
		logger.Info("connected to mysql")

		adapter := storage.NewMySQLAdapter(db)
		if cfg.Migrate {
			if err := adapter.Migrate(ctx); err != nil {
				db.Close()
				return nil, nil, err
			}
		}
		return adapter, func() { db.Close() }, nil

	case config.DriverPostgres:
		pcfg, err := pgxpool.ParseConfig(cfg.PostgresURL)
		if err != nil {
			return nil, nil, fmt.Errorf("parse postgres url: %w", err)
		}
		pcfg.MaxConns = int32(cfg.MaxOpenConns)
		pcfg.MaxConnLifetime = cfg.ConnMaxLifetime
		pool, err := pgxpool.NewWithConfig(ctx, pcfg)
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("ping postgres: %w", err)
		}
		logger.Info("connected to postgres")

		adapter := storage.NewPostgresAdapter(pool)
		if cfg.Migrate {
			if err := adapter.Migrate(ctx); err != nil {
				pool.Close()
				return nil, nil, err
			}
		}
		return adapter, pool.Close, nil
	}

	store, err := storage.NewMemoryStore()
	if err != nil {
		return nil, nil, err
	}
	logger.Warn("using in-memory store, data is lost on exit")
	return store, func() {}, nil
}

func openCache(ctx context.Context, cfg config.CacheConfig, logger *zap.Logger) (port.CacheRepository, func(), error) {
	if cfg.RedisAddr == "" {
		cache, err := storage.NewLRUCache(cfg.LRUSize, clock.WallClock)
		if err != nil {
			return nil, nil, fmt.Errorf("create lru cache: %w", err)
		}
		return cache, func() {}, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		PoolSize: cfg.RedisPoolSize,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, nil, fmt.Errorf("connect redis: %w", err)
	}
	logger.Info("connected to redis", zap.String("addr", cfg.RedisAddr))
	return storage.NewRedisAdapter(rdb), func() { rdb.Close() }, nil
}

func logEvent(logger *zap.Logger) service.EventHandler {
	return func(event domain.Event) error {
		logger.Info("event",
			zap.String("kind", string(event.Kind)),
			zap.Int64("entity_id", event.EntityID),
			zap.String("status", event.Status),
			zap.Int("quantity", event.Quantity),
			zap.Time("occurred_at", event.OccurredAt),
		)
		return nil
	}
}
