package main

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	internalcron "github.com/mateovidal/surtido-backend/internal/cron"
	"github.com/mateovidal/surtido-backend/internal/credit"
	"github.com/mateovidal/surtido-backend/internal/inventory"
	"github.com/mateovidal/surtido-backend/internal/orders"
	"github.com/mateovidal/surtido-backend/internal/routing"
	"github.com/mateovidal/surtido-backend/pkg/config"
	"github.com/mateovidal/surtido-backend/pkg/db"
	"github.com/mateovidal/surtido-backend/pkg/logger"
	"github.com/mateovidal/surtido-backend/pkg/metrics"
	"github.com/mateovidal/surtido-backend/pkg/migrate"
	"github.com/mateovidal/surtido-backend/pkg/outbox"
	"github.com/mateovidal/surtido-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	outboxRepo := outbox.NewRepository(dbClient.DB())
	events := outbox.NewService(outboxRepo, logg)

	creditSvc, err := credit.NewService(credit.NewRepository(dbClient.DB()), events, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create credit service", err)
		os.Exit(1)
	}

	inventorySvc, err := inventory.NewService(inventory.NewRepository(dbClient.DB()), events, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create inventory service", err)
		os.Exit(1)
	}

	ordersSvc, err := orders.NewService(
		orders.NewRepository(dbClient.DB()),
		dbClient,
		creditSvc,
		inventorySvc,
		events,
		cfg.Orders,
		cfg.DeliveryToken,
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create order service", err)
		os.Exit(1)
	}

	routingSvc, err := routing.NewService(
		routing.NewRepository(dbClient.DB()),
		dbClient,
		ordersSvc,
		events,
		cfg.Routing,
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create routing service", err)
		os.Exit(1)
	}

	metricsCollector := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)
	lock, err := internalcron.NewRedisLock(redisClient, cfg.Cron.LockKey, cfg.Cron.LockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	registry := internalcron.NewRegistry()

	orderExpiry, err := internalcron.NewOrderExpiryJob(internalcron.OrderExpiryJobParams{
		Logger:  logg,
		Orders:  ordersSvc,
		Metrics: metricsCollector,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create order expiry job", err)
		os.Exit(1)
	}
	registry.Register(orderExpiry)

	routingTimeout, err := internalcron.NewRoutingTimeoutJob(internalcron.RoutingTimeoutJobParams{
		Logger:  logg,
		Routing: routingSvc,
		Metrics: metricsCollector,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create routing timeout job", err)
		os.Exit(1)
	}
	registry.Register(routingTimeout)

	outboxRetention, err := internalcron.NewOutboxRetentionJob(internalcron.OutboxRetentionJobParams{
		Logger:     logg,
		Repository: outboxRepo,
		Retention:  cfg.Outbox.RetentionDays,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create outbox retention job", err)
		os.Exit(1)
	}
	registry.Register(outboxRetention)

	stockAudit, err := internalcron.NewStockAuditJob(internalcron.StockAuditJobParams{
		Logger:    logg,
		Inventory: inventorySvc,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create stock audit job", err)
		os.Exit(1)
	}
	registry.Register(stockAudit)

	service, err := internalcron.NewService(internalcron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metricsCollector,
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}
