package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"

	"github.com/mateovidal/surtido-backend/api/routes"
	"github.com/mateovidal/surtido-backend/internal/bidding"
	"github.com/mateovidal/surtido-backend/internal/credit"
	"github.com/mateovidal/surtido-backend/internal/inventory"
	"github.com/mateovidal/surtido-backend/internal/orders"
	"github.com/mateovidal/surtido-backend/internal/routing"
	"github.com/mateovidal/surtido-backend/pkg/config"
	"github.com/mateovidal/surtido-backend/pkg/db"
	"github.com/mateovidal/surtido-backend/pkg/logger"
	"github.com/mateovidal/surtido-backend/pkg/migrate"
	"github.com/mateovidal/surtido-backend/pkg/outbox"
	"github.com/mateovidal/surtido-backend/pkg/pubsub"
	"github.com/mateovidal/surtido-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
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

	pubsubClient, err := pubsub.NewClient(context.Background(), cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap pubsub", err)
		os.Exit(1)
	}
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing pubsub client", err)
		}
	}()

	events := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

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

	biddingSvc, err := bidding.NewService(
		bidding.NewRepository(dbClient.DB()),
		dbClient,
		ordersSvc,
		events,
		cfg.Bidding,
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create bidding service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			pubsubClient,
			ordersSvc,
			routingSvc,
			biddingSvc,
			creditSvc,
			inventorySvc,
		),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
