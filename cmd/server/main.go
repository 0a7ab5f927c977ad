package main // Entry point package

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4" // Echo web framework
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/iliyamo/restaurant-order-engine/internal/config"
	"github.com/iliyamo/restaurant-order-engine/internal/database"
	"github.com/iliyamo/restaurant-order-engine/internal/handler"
	"github.com/iliyamo/restaurant-order-engine/internal/logging"
	"github.com/iliyamo/restaurant-order-engine/internal/middleware"
	"github.com/iliyamo/restaurant-order-engine/internal/model"
	"github.com/iliyamo/restaurant-order-engine/internal/queue"
	"github.com/iliyamo/restaurant-order-engine/internal/repository"
	"github.com/iliyamo/restaurant-order-engine/internal/repository/memory"
	"github.com/iliyamo/restaurant-order-engine/internal/router"
	"github.com/iliyamo/restaurant-order-engine/internal/service"
)

// memoryTables is how many tables the in-memory store starts with.
const memoryTables = 12

func main() {
	cfg := config.Load() // Load environment config
	log := logging.New("restaurant-order-engine", cfg.LogLevel, os.Stdout)
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("server stopped", "action", "shutdown", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, probe, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	opts := service.Options{Logger: log, DefaultTaxPercent: cfg.DefaultTaxPercent}
	if cfg.EventsEnabled {
		pub := queue.NewPublisher(cfg.AMQPURL, cfg.EventQueue, log)
		defer pub.Close()
		opts.Publisher = pub
		if cfg.AuditConsumer {
			consumer := &queue.AuditConsumer{URL: cfg.AMQPURL, Queue: cfg.EventQueue, Dir: cfg.EventLogDir, Log: log}
			go func() {
				if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
					log.Error("audit consumer stopped", "action", "audit_consumer", "error", err)
				}
			}()
		}
	}
	engine := service.NewEngine(store, opts)

	// Redis is optional; without it the limiter and the bill cache pass through.
	rdb := config.NewRedisClient()
	if rdb != nil {
		defer rdb.Close()
	}
	protect := router.Protection{
		JWTSecret: cfg.JWTSecret,
		Limiter:   middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb),
		BillCache: middleware.NewRedisCache(config.LoadCacheConfig(), rdb),
	}

	e := echo.New() // Create Echo instance
	e.HideBanner = true
	e.HidePort = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(middleware.RequestContext())
	e.Use(middleware.RequestLogger(log))
	e.Use(middleware.Prometheus())

	router.RegisterRoutes(e, probe) // Register health and metrics routes
	router.RegisterOrders(e, handler.NewOrderHandler(engine, log), protect)
	router.RegisterCoupons(e, handler.NewCouponHandler(engine, log), protect)
	router.RegisterTables(e, handler.NewTableHandler(engine, log), protect)

	addr := ":" + cfg.Port // Address string with port
	log.Info("listening", "action", "startup", "addr", addr, "env", cfg.Env, "store", cfg.StoreDriver)

	errCh := make(chan error, 1)
	go func() {
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	log.Info("shutting down", "action", "shutdown")
	return e.Shutdown(shutdownCtx)
}

// openStore selects the persistence backend. The probe feeds /healthz and
// is nil for the memory store.
func openStore(ctx context.Context, cfg config.Config, log *slog.Logger) (repository.Store, func(context.Context) error, func(), error) {
	if cfg.StoreDriver == config.StoreMemory {
		store := memory.New()
		now := time.Now().UTC()
		for i := 1; i <= memoryTables; i++ {
			store.PutTable(model.Table{
				ID:        uint64(i),
				Name:      fmt.Sprintf("T%d", i),
				Capacity:  4,
				Status:    model.TableAvailable,
				UpdatedAt: now,
			})
		}
		log.Warn("using in-memory store; data is lost on restart", "action", "startup", "tables", memoryTables)
		return store, nil, func() {}, nil
	}

	db, err := database.Open(database.Options{
		User: cfg.DBUser,
		Pass: cfg.DBPass,
		Host: cfg.DBHost,
		Port: cfg.DBPort,
		Name: cfg.DBName,
	})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open database: %w", err)
	}
	if cfg.DBMigrate {
		mctx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		if err := database.Migrate(mctx, db); err != nil {
			db.Close()
			return nil, nil, nil, fmt.Errorf("migrate: %w", err)
		}
		log.Info("schema applied", "action", "migrate")
	}
	return repository.NewMySQLStore(db), db.PingContext, func() { db.Close() }, nil
}
