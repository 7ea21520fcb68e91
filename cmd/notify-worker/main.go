package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/joho/godotenv"

	"github.com/mateovidal/surtido-backend/internal/notify"
	"github.com/mateovidal/surtido-backend/pkg/config"
	"github.com/mateovidal/surtido-backend/pkg/logger"
	"github.com/mateovidal/surtido-backend/pkg/outbox/idempotency"
	"github.com/mateovidal/surtido-backend/pkg/pubsub"
	"github.com/mateovidal/surtido-backend/pkg/redis"
)

// processedTTL keeps idempotency marks around long enough to cover the
// broker's maximum redelivery window.
const processedTTL = 7 * 24 * time.Hour

func main() {
	logg := logger.New(logger.Options{ServiceName: "notify-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "notify-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis client", err)
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

	guard, err := idempotency.NewManager(redisClient, processedTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create idempotency guard", err)
		os.Exit(1)
	}

	gateway, err := notify.NewLogGateway(logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create notification gateway", err)
		os.Exit(1)
	}

	consumer, err := notify.NewConsumer(guard, gateway, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create notification consumer", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env})
	logg.Info(ctx, "starting notify worker")

	subscription := pubsubClient.DomainSubscription()
	if subscription == nil {
		logg.Error(ctx, "domain subscription is not configured", errors.New("missing subscription"))
		os.Exit(1)
	}

	err = subscription.Receive(ctx, func(ctx context.Context, msg *gcppubsub.Message) {
		if err := consumer.HandleMessage(ctx, msg.Data, msg.Attributes); err != nil {
			logg.Error(ctx, "notification handling failed, message will be redelivered", err)
			msg.Nack()
			return
		}
		msg.Ack()
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "notify worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "notify worker shutting down gracefully")
}
