package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/angelmondragon/wardrobe-backend/internal/items"
	"github.com/angelmondragon/wardrobe-backend/internal/users"
	"github.com/angelmondragon/wardrobe-backend/pkg/config"
	"github.com/angelmondragon/wardrobe-backend/pkg/db"
	"github.com/angelmondragon/wardrobe-backend/pkg/logger"
	"github.com/angelmondragon/wardrobe-backend/pkg/migrate"
	"github.com/angelmondragon/wardrobe-backend/pkg/outbox"
	"github.com/angelmondragon/wardrobe-backend/pkg/storage/driver"
)

type metadataFlags struct {
	category string
	color    string
	brand    string
}

func (m *metadataFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&m.category, "category", "", "item category (Top, Bottom, Shoes, Outerwear, Accessory)")
	cmd.Flags().StringVar(&m.color, "color", "", "item color")
	cmd.Flags().StringVar(&m.brand, "brand", "", "item brand")
}

func newRootCmd(in io.Reader, out io.Writer) *cobra.Command {
	var email string

	root := &cobra.Command{
		Use:           "wardrobe-import",
		Short:         "Manage a user's wardrobe items from local photo files",
		SilenceUsage:  true,
			}
	root.SetIn(in)
	root.SetOut(out)
	root.PersistentFlags().StringVar(&email, "email", "", "email of the wardrobe owner")
	_ = root.MarkPersistentFlagRequired("email")

	var createMeta metadataFlags
	create := &cobra.Command{
		Use:   "create PHOTO...",
		Short: "Create an item from one or more photos",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkflow(cmd.Context(), email, func(svc items.Service, reader items.ContentReader) error {
				input, err := saveInput(args, createMeta, reader)
				if err != nil {
					return err
				}
				result, err := svc.Create(cmd.Context(), input)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "created item %s with %d photos\n", result.ItemID, len(result.UploadedPaths))
				return nil
			})
		},
	}
	createMeta.bind(create)

	var editMeta metadataFlags
	edit := &cobra.Command{
		Use:   "edit ITEM_ID [PHOTO...]",
		Short: "Append photos to an item and replace its metadata; current photos are kept",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			itemID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid item id %q", args[0])
			}
			return withWorkflow(cmd.Context(), email, func(svc items.Service, reader items.ContentReader) error {
				input, err := saveInput(args[1:], editMeta, reader)
				if err != nil {
					return err
				}
				current, err := svc.Get(cmd.Context(), itemID)
				if err != nil {
					return err
				}
				input.Images = append(keptPhotos(current), input.Images...)
				result, err := svc.Edit(cmd.Context(), itemID, input)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "updated item %s, appended %d photos\n", result.ItemID, len(result.UploadedPaths))
				return nil
			})
		},
	}
	editMeta.bind(edit)

	var assumeYes bool
	remove := &cobra.Command{
		Use:   "delete ITEM_ID",
		Short: "Delete an item after confirmation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			itemID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid item id %q", args[0])
			}
			var confirmer items.Confirmer = promptConfirmer{in: cmd.InOrStdin(), out: cmd.OutOrStdout()}
			if assumeYes {
				confirmer = items.Confirmed(true)
			}
			return withWorkflow(cmd.Context(), email, func(svc items.Service, _ items.ContentReader) error {
				if err := svc.Delete(cmd.Context(), itemID, confirmer); err != nil {
					if errors.Is(err, items.ErrDeleteNotConfirmed) {
						fmt.Fprintln(cmd.OutOrStdout(), "delete cancelled")
						return nil
					}
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted item %s\n", itemID)
				return nil
			})
		},
	}
	remove.Flags().BoolVarP(&assumeYes, "yes", "y", false, "skip the confirmation prompt")

	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "Print the wardrobe grouped by category",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withWorkflow(cmd.Context(), email, func(svc items.Service, _ items.ContentReader) error {
				res, err := svc.List(cmd.Context(), items.ListParams{Limit: limit})
				if err != nil {
					return err
				}
				printSections(cmd.OutOrStdout(), res.Sections)
				return nil
			})
		},
	}
	list.Flags().IntVar(&limit, "limit", 100, "maximum items to print")

	root.AddCommand(create, edit, remove, list)
	return root
}

// saveInput turns photo paths into absolute file references.
func saveInput(paths []string, meta metadataFlags, reader items.ContentReader) (items.SaveInput, error) {
	candidates := make([]items.Candidate, 0, len(paths))
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return items.SaveInput{}, fmt.Errorf("resolve %q: %w", p, err)
		}
		candidates = append(candidates, items.Candidate{Source: abs})
	}
	return items.SaveInput{
		Images:   candidates,
		Category: meta.category,
		Color:    meta.color,
		Brand:    meta.brand,
		Reader:   reader,
	}, nil
}

// keptPhotos offers the item's current photos back to an edit by their signed
// URLs. Photos that could not be signed are left out.
func keptPhotos(detail *items.ItemDetail) []items.Candidate {
	if detail == nil {
		return nil
	}
	out := make([]items.Candidate, 0, len(detail.Photos))
	for _, photo := range detail.Photos {
		if photo.URL != nil {
			out = append(out, items.Candidate{Source: *photo.URL})
		}
	}
	return out
}

func printSections(w io.Writer, sections []items.Section) {
	if len(sections) == 0 {
		fmt.Fprintln(w, "wardrobe is empty")
		return
	}
	for _, section := range sections {
		fmt.Fprintf(w, "%s (%d)\n", section.Title, len(section.Items))
		for _, item := range section.Items {
			details := []string{item.ID.String()}
			if item.Color != nil {
				details = append(details, *item.Color)
			}
			if item.Brand != nil {
				details = append(details, *item.Brand)
			}
			fmt.Fprintf(w, "  %s\n", strings.Join(details, "  "))
		}
	}
}

// withWorkflow bootstraps config, database and blob store, resolves the owner
// by email and runs fn against the item workflow.
func withWorkflow(ctx context.Context, email string, fn func(items.Service, items.ContentReader) error) error {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logg := logger.ForService("wardrobe-import", cfg.App)

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer dbClient.Close()

	if err := migrate.MaybeRun(ctx, cfg, logg, dbClient); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	user, err := users.NewRepository(dbClient.DB()).FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, users.ErrUserNotFound) {
			return fmt.Errorf("no user registered with email %s", email)
		}
		return err
	}

	blobs, err := driver.Open(ctx, cfg, logg)
	if err != nil {
		return err
	}

	svc, err := items.NewService(items.ServiceParams{
		Identity:      items.StaticIdentity{UserID: user.ID, Email: user.Email},
		Blobs:         blobs,
		Records:       items.NewRepository(dbClient.DB(), outbox.NewEmitter(outbox.NewStore(dbClient.DB()), logg)),
		Logger:        logg,
		MaxImages:     cfg.Wardrobe.MaxImagesPerSave,
		MaxImageBytes: cfg.Wardrobe.MaxImageBytes,
		SignedURLTTL:  cfg.Storage.SignedURLTTL,
	})
	if err != nil {
		return err
	}
	return fn(svc, items.FileReader{Root: cfg.Wardrobe.ImportDir, MaxBytes: cfg.Wardrobe.MaxImageBytes})
}

// promptConfirmer asks on out and reads a y/N answer from in.
type promptConfirmer struct {
	in  io.Reader
	out io.Writer
}

func (p promptConfirmer) Confirm(_ context.Context, itemID uuid.UUID) (bool, error) {
	fmt.Fprintf(p.out, "delete item %s and all its photos? [y/N] ", itemID)
	line, err := bufio.NewReader(p.in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}
