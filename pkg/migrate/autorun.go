package migrate

import (
	"context"
	"fmt"

	"github.com/angelmondragon/wardrobe-backend/pkg/config"
	"github.com/angelmondragon/wardrobe-backend/pkg/db"
	"github.com/angelmondragon/wardrobe-backend/pkg/db/models"
	"github.com/angelmondragon/wardrobe-backend/pkg/logger"
)

// SchemaModels lists the tables gorm creates when running on sqlite.
func SchemaModels() []any {
	return []any{
		&models.User{},
		&models.Item{},
		&models.ItemPhoto{},
		&models.OutboxEvent{},
		&models.OutboxDLQ{},
	}
}

// MaybeRun applies the schema on startup when WARDROBE_AUTO_MIGRATE is set, or
// always for a dev sqlite database which otherwise starts empty.
func MaybeRun(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	sqlite := cfg.DB.IsSQLite()
	if !cfg.DB.AutoMigrate && !(sqlite && cfg.App.IsDev()) {
		return nil
	}
	if client == nil {
		return fmt.Errorf("db client is required")
	}

	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "driver": cfg.DB.Driver})

	if sqlite {
		logg.Info(ctx, "applying gorm schema (sqlite auto-migrate)")
		if err := client.DB().WithContext(ctx).AutoMigrate(SchemaModels()...); err != nil {
			return fmt.Errorf("gorm automigrate: %w", err)
		}
		return nil
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}

	migrator, err := NewMigrator(sqlDB, Embedded())
	if err != nil {
		return err
	}
	applied, err := migrator.Up(ctx)
	if err != nil {
		return err
	}
	logg.Info(logg.WithField(ctx, "applied", applied), "schema migrated")
	return nil
}
