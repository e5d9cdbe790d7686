package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/angelmondragon/wardrobe-backend/pkg/config"
	"github.com/angelmondragon/wardrobe-backend/pkg/db"
	"github.com/angelmondragon/wardrobe-backend/pkg/logger"
	"github.com/angelmondragon/wardrobe-backend/pkg/metrics"
	"github.com/angelmondragon/wardrobe-backend/pkg/migrate"
	"github.com/angelmondragon/wardrobe-backend/pkg/outbox"
	"github.com/angelmondragon/wardrobe-backend/pkg/outbox/catalog"
	"github.com/angelmondragon/wardrobe-backend/pkg/outbox/relay"
	"github.com/angelmondragon/wardrobe-backend/pkg/pubsub"
)

const serviceName = "outbox-publisher"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          serviceName,
		Short:        "Publish pending outbox events to Pub/Sub",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logg, err := bootstrap()
			if err != nil {
				return err
			}
			err = run(cmd.Context(), cfg, logg)
			if err != nil && !errors.Is(err, context.Canceled) {
				logg.Error(cmd.Context(), "outbox publisher stopped unexpectedly", err)
				return err
			}
			logg.Info(cmd.Context(), "outbox publisher shut down")
			return nil
		},
	}
	root.AddCommand(newDeadLettersCmd())
	return root
}

func bootstrap() (*config.Config, *logger.Logger, error) {
	logg := logger.New(logger.Options{ServiceName: serviceName})
	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}
	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		return nil, nil, err
	}
	return cfg, logger.ForService(serviceName, cfg.App), nil
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) error {
	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return err
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()
	if err := migrate.MaybeRun(ctx, cfg, logg, dbClient); err != nil {
		return err
	}

	cat, err := catalog.ForPubSub(cfg.PubSub)
	if err != nil {
		return err
	}
	sender, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		return err
	}
	defer func() {
		if err := sender.Close(); err != nil {
			logg.Error(context.Background(), "error closing pubsub client", err)
		}
	}()

	r, err := relay.New(relay.Params{
		DB:      dbClient,
		Rows:    outbox.NewStore(dbClient.DB()),
		Catalog: cat,
		Sender:  sender,
		Logger:  logg,
		Metrics: metrics.NewJobMetrics(prometheus.DefaultRegisterer),
		Options: relay.OptionsFrom(cfg.Outbox),
	})
	if err != nil {
		return err
	}

	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "topic": cfg.PubSub.ItemEventsTopic})
	logg.Info(ctx, "starting outbox publisher")
	return r.Run(ctx)
}
