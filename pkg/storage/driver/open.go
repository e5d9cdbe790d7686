package driver

import (
	"context"
	"fmt"
	"strings"

	"github.com/angelmondragon/wardrobe-backend/pkg/config"
	"github.com/angelmondragon/wardrobe-backend/pkg/logger"
	"github.com/angelmondragon/wardrobe-backend/pkg/storage"
	"github.com/angelmondragon/wardrobe-backend/pkg/storage/gcs"
	"github.com/angelmondragon/wardrobe-backend/pkg/storage/local"
	"github.com/angelmondragon/wardrobe-backend/pkg/storage/minio"
)

// Open builds the blob store selected by WARDROBE_STORAGE_DRIVER.
func Open(ctx context.Context, cfg *config.Config, logg *logger.Logger) (storage.BlobStore, error) {
	var (
		store storage.BlobStore
		err   error
	)
	switch strings.ToLower(cfg.Storage.Driver) {
	case config.StorageDriverGCS:
		store, err = openGCS(ctx, cfg, logg)
	case config.StorageDriverMinio:
		store, err = openMinio(ctx, cfg, logg)
	case config.StorageDriverLocal:
		store, err = openLocal(ctx, cfg, logg)
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Storage.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s blob store: %w", cfg.Storage.Driver, err)
	}
	return store, nil
}

func openGCS(ctx context.Context, cfg *config.Config, logg *logger.Logger) (storage.BlobStore, error) {
	client, err := gcs.NewClient(ctx, cfg.Storage, cfg.GCP, logg)
	if err != nil {
		return nil, err
	}
	return client, nil
}

func openMinio(ctx context.Context, cfg *config.Config, logg *logger.Logger) (storage.BlobStore, error) {
	client, err := minio.NewClient(ctx, cfg.Storage, cfg.Minio, logg)
	if err != nil {
		return nil, err
	}
	return client, nil
}

func openLocal(ctx context.Context, cfg *config.Config, logg *logger.Logger) (storage.BlobStore, error) {
	store, err := local.New(ctx, cfg.Local, logg)
	if err != nil {
		return nil, err
	}
	return store, nil
}
