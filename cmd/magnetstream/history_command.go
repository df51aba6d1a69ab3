package main

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/pedrox86lopes/MagnetStream/internal/history"
)

func newHistoryCommand(cctx *commandContext) *cobra.Command {
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect past fetches",
	}

	historyCmd.AddCommand(newHistoryListCommand(cctx))
	historyCmd.AddCommand(newHistoryShowCommand(cctx))
	historyCmd.AddCommand(newHistoryPruneCommand(cctx))

	return historyCmd
}

func withHistoryStore(cctx *commandContext, fn func(*history.Store) error) error {
	cfg, err := cctx.ensureConfig()
	if err != nil {
		return err
	}
	store, err := history.Open(cfg)
	if err != nil {
		return fmt.Errorf("open history: %w", err)
	}
	defer store.Close()
	return fn(store)
}

func newHistoryListCommand(cctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent fetches, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withHistoryStore(cctx, func(store *history.Store) error {
				records, err := store.List(cmd.Context(), limit)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(records) == 0 {
					fmt.Fprintln(out, "No fetches recorded yet")
					return nil
				}
				rows := make([][]string, 0, len(records))
				for _, record := range records {
					rows = append(rows, []string{
						shortRunID(record.RunID),
						string(record.Status),
						record.FailureKind,
						fmt.Sprintf("%d", record.FileCount),
						humanize.Bytes(uint64(record.TotalBytes)),
						humanize.Time(record.CreatedAt),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Run", "Status", "Failure", "Files", "Size", "Started"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft},
				))
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of records to show")
	return cmd
}

// shortRunID abbreviates UUID run identifiers for the list view. The schema
// does not enforce a length, so short identifiers pass through unchanged.
func shortRunID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func newHistoryShowCommand(cctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show one fetch in detail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withHistoryStore(cctx, func(store *history.Store) error {
				record, err := store.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Run:        %s\n", record.RunID)
				fmt.Fprintf(out, "Magnet:     %s\n", record.Magnet)
				fmt.Fprintf(out, "Directory:  %s\n", record.DestDir)
				fmt.Fprintf(out, "Status:     %s\n", record.Status)
				if record.FailureKind != "" {
					fmt.Fprintf(out, "Failure:    %s\n", record.FailureKind)
				}
				if record.Detail != "" {
					fmt.Fprintf(out, "Detail:     %s\n", record.Detail)
				}
				fmt.Fprintf(out, "Files:      %d (%s)\n", record.FileCount, humanize.Bytes(uint64(record.TotalBytes)))
				fmt.Fprintf(out, "Started:    %s\n", record.CreatedAt.Local().Format(time.RFC1123))
				if record.FinishedAt != nil {
					fmt.Fprintf(out, "Finished:   %s\n", record.FinishedAt.Local().Format(time.RFC1123))
					fmt.Fprintf(out, "Duration:   %s\n", record.FinishedAt.Sub(record.CreatedAt).Round(time.Second))
				}
				return nil
			})
		},
	}
}

func newHistoryPruneCommand(cctx *commandContext) *cobra.Command {
	var keep int

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete all but the newest records",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withHistoryStore(cctx, func(store *history.Store) error {
				removed, err := store.Prune(cmd.Context(), keep)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d record(s), kept the newest %d\n", removed, keep)
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&keep, "keep", 100, "Number of records to keep")
	return cmd
}
