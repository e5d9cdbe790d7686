package migrate_test

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/wardrobe-backend/pkg/config"
	"github.com/angelmondragon/wardrobe-backend/pkg/db"
	"github.com/angelmondragon/wardrobe-backend/pkg/logger"
	"github.com/angelmondragon/wardrobe-backend/pkg/migrate"
)

func readMigration(t *testing.T, suffix string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", "*_"+suffix+".sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no %s migration file found", suffix)
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	return string(data)
}

func TestItemPhotosMigrationContainsConstraints(t *testing.T) {
	content := readMigration(t, "create_item_photos")

	checks := []string{
		"CREATE TABLE IF NOT EXISTS item_photos",
		"FOREIGN KEY (item_id) REFERENCES items(id) ON DELETE CASCADE",
		"CREATE UNIQUE INDEX IF NOT EXISTS item_photos_item_sort_key ON item_photos (item_id, sort_order)",
		"DROP TABLE IF EXISTS item_photos",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestItemsMigrationStoresCategoryAsType(t *testing.T) {
	content := readMigration(t, "create_items")

	for _, sub := range []string{
		"type TEXT NOT NULL",
		"cover_image_path TEXT NOT NULL",
		"color TEXT NULL",
		"brand TEXT NULL",
		"'Top', 'Bottom', 'Shoes', 'Outerwear', 'Accessory'",
	} {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestRepoMigrationsValidate(t *testing.T) {
	if err := migrate.Validate(os.DirFS("migrations")); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestEmbeddedMigrationsMatchDisk(t *testing.T) {
	embedded, err := fs.Glob(migrate.Embedded(), "*.sql")
	if err != nil {
		t.Fatalf("glob embedded: %v", err)
	}
	onDisk, err := filepath.Glob(filepath.Join("migrations", "*.sql"))
	if err != nil {
		t.Fatalf("glob disk: %v", err)
	}
	if len(embedded) == 0 || len(embedded) != len(onDisk) {
		t.Fatalf("embedded %d migrations, disk has %d", len(embedded), len(onDisk))
	}
	if migrate.Source("") == nil {
		t.Fatal("expected the embedded source for an empty dir")
	}
}

func TestNewFileWritesGooseTemplate(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 10, 14, 8, 30, 0, 0, time.UTC)

	path, err := migrate.NewFile(dir, "Add Item Notes!", now)
	if err != nil {
		t.Fatalf("NewFile: %v", err)
	}
	if filepath.Base(path) != "20261014083000_add_item_notes.sql" {
		t.Fatalf("unexpected filename %q", path)
	}
	if err := migrate.Validate(os.DirFS(dir)); err != nil {
		t.Fatalf("generated migration should validate: %v", err)
	}

	if _, err := migrate.NewFile(dir, "Add Item Notes", now); err == nil {
		t.Fatal("expected an error when the file already exists")
	}
	if _, err := migrate.NewFile(dir, "!!!", now); err == nil {
		t.Fatal("expected error for a name without usable characters")
	}
}

func TestValidateRejects(t *testing.T) {
	cases := []struct {
		name  string
		files map[string]string
	}{
		{name: "bad filename", files: map[string]string{"001_bad.sql": "-- +goose Up\n-- +goose Down\n"}},
		{name: "missing down", files: map[string]string{"20260101000000_a.sql": "-- +goose Up\n"}},
		{name: "duplicate version", files: map[string]string{
			"20260101000000_a.sql": "-- +goose Up\n-- +goose Down\n",
			"20260101000000_b.sql": "-- +goose Up\n-- +goose Down\n",
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fsys := fstest.MapFS{}
			for name, body := range tc.files {
				fsys[name] = &fstest.MapFile{Data: []byte(body)}
			}
			if err := migrate.Validate(fsys); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestMaybeRunAppliesSQLiteSchemaInDev(t *testing.T) {
	conn, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	cfg := &config.Config{
		App: config.AppConfig{Env: config.AppEnvDev},
		DB:  config.DBConfig{Driver: config.DBDriverSQLite},
	}
	logg := logger.New(logger.Options{ServiceName: "migrate-test", Output: io.Discard})

	if err := migrate.MaybeRun(context.Background(), cfg, logg, db.FromGorm(conn)); err != nil {
		t.Fatalf("MaybeRun: %v", err)
	}

	for _, table := range []string{"users", "items", "item_photos", "outbox_events", "outbox_dlq"} {
		if !conn.Migrator().HasTable(table) {
			t.Errorf("expected table %s", table)
		}
	}
}

func TestMaybeRunSkipsWhenDisabled(t *testing.T) {
	cfg := &config.Config{
		App: config.AppConfig{Env: config.AppEnvProd},
		DB:  config.DBConfig{Driver: config.DBDriverPostgres},
	}
	logg := logger.New(logger.Options{ServiceName: "migrate-test", Output: io.Discard})

	if err := migrate.MaybeRun(context.Background(), cfg, logg, nil); err != nil {
		t.Fatalf("expected no-op, got %v", err)
	}
}
