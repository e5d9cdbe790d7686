package driver

import (
	"context"
	"testing"

	"github.com/angelmondragon/wardrobe-backend/pkg/config"
	"github.com/angelmondragon/wardrobe-backend/pkg/storage/local"
)

func TestOpenLocal(t *testing.T) {
	cfg := &config.Config{
		Storage: config.StorageConfig{Driver: "LOCAL", Bucket: "wardrobe"},
		Local:   config.LocalStorageConfig{Root: t.TempDir(), BaseURL: "http://localhost/blobs", SigningKey: "k"},
	}

	store, err := Open(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, ok := store.(*local.Store); !ok {
		t.Fatalf("expected local store, got %T", store)
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	cfg := &config.Config{Storage: config.StorageConfig{Driver: "ftp"}}
	if _, err := Open(context.Background(), cfg, nil); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}
