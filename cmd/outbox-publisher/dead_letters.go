package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/angelmondragon/wardrobe-backend/pkg/db"
	"github.com/angelmondragon/wardrobe-backend/pkg/db/models"
	"github.com/angelmondragon/wardrobe-backend/pkg/outbox"
)

func newDeadLettersCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "dead-letters [EVENT_ID]",
		Short: "List parked events, newest first, or show the entry of one event",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logg, err := bootstrap()
			if err != nil {
				return err
			}
			client, err := db.New(cmd.Context(), cfg.DB, logg)
			if err != nil {
				return err
			}
			defer func() { _ = client.Close() }()
			store := outbox.NewStore(client.DB())

			if len(args) == 0 {
				rows, err := store.DeadLetters(cmd.Context(), limit)
				if err != nil {
					return err
				}
				printDeadLetters(cmd.OutOrStdout(), rows)
				return nil
			}

			eventID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("event id: %w", err)
			}
			entry, err := store.DeadLetterFor(cmd.Context(), eventID)
			if err != nil {
				return err
			}
			if entry == nil {
				return fmt.Errorf("event %s is not dead lettered", eventID)
			}
			printDeadLetters(cmd.OutOrStdout(), []models.OutboxDLQ{*entry})
			fmt.Fprintf(cmd.OutOrStdout(), "\npayload: %s\n", entry.Payload)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum entries to list")
	return cmd
}

func printDeadLetters(w io.Writer, rows []models.OutboxDLQ) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "EVENT\tTYPE\tAGGREGATE\tREASON\tATTEMPTS\tFAILED AT\tERROR")
	for _, row := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
			row.EventID, row.EventType, row.AggregateID, row.Reason, row.AttemptCount,
			row.FailedAt.Format(time.RFC3339), row.ErrorMessage)
	}
	_ = tw.Flush()
}
