package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/wardrobe-backend/api/controllers"
	"github.com/angelmondragon/wardrobe-backend/api/routes"
	"github.com/angelmondragon/wardrobe-backend/internal/auth"
	"github.com/angelmondragon/wardrobe-backend/internal/items"
	"github.com/angelmondragon/wardrobe-backend/internal/outfits"
	"github.com/angelmondragon/wardrobe-backend/internal/users"
	pkgAuth "github.com/angelmondragon/wardrobe-backend/pkg/auth"
	"github.com/angelmondragon/wardrobe-backend/pkg/auth/session"
	"github.com/angelmondragon/wardrobe-backend/pkg/config"
	"github.com/angelmondragon/wardrobe-backend/pkg/db"
	"github.com/angelmondragon/wardrobe-backend/pkg/logger"
	"github.com/angelmondragon/wardrobe-backend/pkg/metrics"
	"github.com/angelmondragon/wardrobe-backend/pkg/migrate"
	"github.com/angelmondragon/wardrobe-backend/pkg/outbox"
	"github.com/angelmondragon/wardrobe-backend/pkg/redis"
	"github.com/angelmondragon/wardrobe-backend/pkg/storage/driver"
	"github.com/angelmondragon/wardrobe-backend/pkg/storage/local"
)

const shutdownTimeout = 15 * time.Second

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

	logg = logger.ForService("", cfg.App)

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

	if err := migrate.MaybeRun(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run migrations", err)
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

	tokens, err := pkgAuth.NewTokens(cfg.JWT)
	if err != nil {
		logg.Error(context.Background(), "invalid jwt config", err)
		os.Exit(1)
	}
	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		logg.Error(context.Background(), "failed to create session manager", err)
		os.Exit(1)
	}

	blobs, err := driver.Open(context.Background(), cfg, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to open blob store", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	saveMetrics := metrics.NewSaveMetrics(registry)

	userRepo := users.NewRepository(dbClient.DB())
	authService, err := auth.NewService(auth.ServiceParams{
		Users:    userRepo,
		Sessions: sessionManager,
		Tokens:   tokens,
		Password: cfg.Password,
		Logger:   logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create auth service", err)
		os.Exit(1)
	}

	itemRepo := items.NewRepository(dbClient.DB(), outbox.NewEmitter(outbox.NewStore(dbClient.DB()), logg))
	var urlCache items.URLCache
	if cfg.Wardrobe.SignedURLCache {
		urlCache = redisClient
	}
	itemService, err := items.NewService(items.ServiceParams{
		Identity:      controllers.RequestIdentity{},
		Blobs:         blobs,
		Records:       itemRepo,
		URLCache:      urlCache,
		Logger:        logg,
		Metrics:       saveMetrics,
		MaxImages:     cfg.Wardrobe.MaxImagesPerSave,
		MaxImageBytes: cfg.Wardrobe.MaxImageBytes,
		SignedURLTTL:  cfg.Storage.SignedURLTTL,
		CacheMargin:   cfg.Wardrobe.SignedURLMargin,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create item service", err)
		os.Exit(1)
	}

	outfitService, err := outfits.NewService(outfits.ServiceParams{
		Identity: controllers.RequestIdentity{},
		Items:    itemRepo,
		Logger:   logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create outfit service", err)
		os.Exit(1)
	}

	deps := routes.Deps{
		DB:       dbClient,
		Redis:    redisClient,
		Blobs:    blobs,
		Tokens:   tokens,
		Sessions: sessionManager,
		Auth:     authService,
		Users:    userRepo,
		Items:    itemService,
		Outfits:  outfitService,
		Uploads: controllers.UploadLimits{
			MaxImages:     cfg.Wardrobe.MaxImagesPerSave,
			MaxImageBytes: cfg.Wardrobe.MaxImageBytes,
		},
		Metrics: promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	}
	if localStore, ok := blobs.(*local.Store); ok {
		deps.LocalBlobs = localStore
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":     cfg.App.Env,
		"addr":    addr,
		"storage": cfg.Storage.Driver,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(cfg, logg, deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-runCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "api server shutdown", err)
		}
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "api server stopped")
}
