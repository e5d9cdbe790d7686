package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"
	"github.com/pressly/goose/v3"
	"github.com/spf13/cobra"

	"github.com/angelmondragon/wardrobe-backend/pkg/config"
	"github.com/angelmondragon/wardrobe-backend/pkg/db"
	"github.com/angelmondragon/wardrobe-backend/pkg/logger"
	"github.com/angelmondragon/wardrobe-backend/pkg/migrate"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var dir string

	root := &cobra.Command{
		Use:          "migrate",
		Short:        "Manage the wardrobe database schema",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&dir, "dir", migrate.DefaultDir, "goose migrations directory; empty uses the embedded set")

	root.AddCommand(
		&cobra.Command{
			Use:   "create NAME",
			Short: "Write an empty SQL migration",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				path, err := migrate.NewFile(dir, args[0], time.Now())
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "created", path)
				return nil
			},
		},
		&cobra.Command{
			Use:   "validate",
			Short: "Check migration file names and goose markers",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				if err := migrate.Validate(migrate.Source(dir)); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "migrations valid")
				return nil
			},
		},
		&cobra.Command{
			Use:   "up",
			Short: "Apply pending migrations (sqlite: sync the gorm schema)",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withDatabase(cmd.Context(), "up", func(ctx context.Context, env *runEnv) error {
					if env.cfg.DB.IsSQLite() {
						if err := env.client.DB().WithContext(ctx).AutoMigrate(migrate.SchemaModels()...); err != nil {
							return fmt.Errorf("sqlite automigrate: %w", err)
						}
						env.logg.Info(ctx, "sqlite schema synced")
						return nil
					}
					m, err := env.migrator(dir)
					if err != nil {
						return err
					}
					applied, err := m.Up(ctx)
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "applied %d migrations\n", len(applied))
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the latest migration",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withPostgres(cmd.Context(), "down", dir, func(ctx context.Context, m *migrate.Migrator) error {
					version, err := m.Down(ctx)
					if err != nil {
						return err
					}
					fmt.Fprintln(cmd.OutOrStdout(), "rolled back", version)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "List migrations and whether they are applied",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withPostgres(cmd.Context(), "status", dir, func(ctx context.Context, m *migrate.Migrator) error {
					statuses, err := m.Status(ctx)
					if err != nil {
						return err
					}
					printStatus(cmd.OutOrStdout(), statuses)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "to VERSION",
			Short: "Migrate up or down to VERSION (YYYYMMDDHHMMSS)",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				target, err := strconv.ParseInt(args[0], 10, 64)
				if err != nil {
					return fmt.Errorf("invalid version %q", args[0])
				}
				return withPostgres(cmd.Context(), "to", dir, func(ctx context.Context, m *migrate.Migrator) error {
					return m.To(ctx, target)
				})
			},
		},
	)
	return root
}

type runEnv struct {
	cfg    *config.Config
	logg   *logger.Logger
	client *db.Client
}

func (e *runEnv) migrator(dir string) (*migrate.Migrator, error) {
	sqlDB, err := e.client.DB().DB()
	if err != nil {
		return nil, err
	}
	return migrate.NewMigrator(sqlDB, migrate.Source(dir))
}

func withDatabase(ctx context.Context, command string, fn func(context.Context, *runEnv) error) error {
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logg := logger.ForService("migrate", cfg.App)
	ctx = logg.WithFields(ctx, map[string]any{
		"env":    cfg.App.Env,
		"cmd":    command,
		"driver": cfg.DB.Driver,
	})

	client, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "database unavailable", err)
		return err
	}
	defer client.Close()

	if err := fn(ctx, &runEnv{cfg: cfg, logg: logg, client: client}); err != nil {
		logg.Error(ctx, "migrate failed", err)
		return err
	}
	return nil
}

// withPostgres runs commands that only exist for goose managed schemas.
func withPostgres(ctx context.Context, command, dir string, fn func(context.Context, *migrate.Migrator) error) error {
	return withDatabase(ctx, command, func(ctx context.Context, env *runEnv) error {
		if env.cfg.DB.IsSQLite() {
			return fmt.Errorf("%s is not supported for sqlite", command)
		}
		m, err := env.migrator(dir)
		if err != nil {
			return err
		}
		return fn(ctx, m)
	})
}

func printStatus(out io.Writer, statuses []*goose.MigrationStatus) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "VERSION\tSTATE\tAPPLIED AT\tFILE")
	for _, st := range statuses {
		applied := "-"
		if !st.AppliedAt.IsZero() {
			applied = st.AppliedAt.UTC().Format(time.RFC3339)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", st.Source.Version, st.State, applied, st.Source.Path)
	}
	tw.Flush()
}
