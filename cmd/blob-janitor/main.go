package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/wardrobe-backend/internal/items/janitor"
	"github.com/angelmondragon/wardrobe-backend/pkg/config"
	"github.com/angelmondragon/wardrobe-backend/pkg/logger"
	"github.com/angelmondragon/wardrobe-backend/pkg/metrics"
	"github.com/angelmondragon/wardrobe-backend/pkg/pubsub"
	"github.com/angelmondragon/wardrobe-backend/pkg/redis"
	"github.com/angelmondragon/wardrobe-backend/pkg/storage/driver"
)

const serviceName = "blob-janitor"

func main() {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: serviceName})

	_ = godotenv.Load()

	cfg, err := config.Load()
	requireResource(ctx, logg, "config", err)

	logg = logger.ForService(serviceName, cfg.App)

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	requireResource(ctx, logg, "redis", err)
	defer redisClient.Close()

	blobs, err := driver.Open(ctx, cfg, logg)
	requireResource(ctx, logg, "blob store", err)

	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg, cfg.PubSub.BlobJanitorSubscription)
	requireResource(ctx, logg, "pubsub", err)
	defer pubsubClient.Close()

	dedupe, err := redisClient.Processed(cfg.Eventing.OutboxIdempotencyTTL)
	requireResource(ctx, logg, "processed set", err)

	consumer, err := janitor.NewConsumer(
		blobs,
		dedupe,
		pubsubClient.BlobJanitorSubscription(),
		logg,
		metrics.NewJobMetrics(prometheus.DefaultRegisterer),
	)
	requireResource(ctx, logg, "blob janitor consumer", err)

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	runCtx = logg.WithFields(runCtx, map[string]any{
		"env":          cfg.App.Env,
		"subscription": cfg.PubSub.BlobJanitorSubscription,
		"storage":      cfg.Storage.Driver,
	})
	logg.Info(runCtx, "blob janitor ready")

	if err := consumer.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(runCtx, "blob janitor stopped unexpectedly", err)
		os.Exit(1)
	}
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
