package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/pedrox86lopes/MagnetStream/internal/classify"
	"github.com/pedrox86lopes/MagnetStream/internal/history"
	"github.com/pedrox86lopes/MagnetStream/internal/logging"
	"github.com/pedrox86lopes/MagnetStream/internal/supervisor"
)

func newFetchCommand(cctx *commandContext) *cobra.Command {
	var downloadDir string
	var noHistory bool

	cmd := &cobra.Command{
		Use:   "fetch <magnet-link>",
		Short: "Download music files from a magnet link",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cctx.ensureConfig()
			if err != nil {
				return err
			}

			logger, err := logging.NewFromConfig(cfg)
			if err != nil {
				return fmt.Errorf("initialize logging: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			// One fetch at a time per installation; concurrent aria2c runs
			// against the same download root corrupt nothing but thrash the
			// network and the history ordering.
			lock := flock.New(filepath.Join(cfg.Paths.LogDir, "magnetstream.lock"))
			locked, err := lock.TryLock()
			if err != nil {
				return fmt.Errorf("acquire fetch lock: %w", err)
			}
			if !locked {
				return errors.New("another fetch is already running; wait for it to finish")
			}
			defer func() { _ = lock.Unlock() }()

			var store *history.Store
			if !noHistory {
				store, err = history.Open(cfg)
				if err != nil {
					return fmt.Errorf("open history: %w", err)
				}
				defer store.Close()
			}

			dir := strings.TrimSpace(downloadDir)
			if dir == "" {
				dir = cfg.Paths.DownloadDir
			}
			request := supervisor.Request{Magnet: args[0], DownloadDir: dir}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Validating magnet link...")

			sup := supervisor.NewFromConfig(cfg, logger)
			run, err := sup.Start(ctx, request)
			if err != nil {
				recordStartFailure(ctx, store, request, err)
				return err
			}

			if store != nil {
				if _, err := store.StartFetch(ctx, run.ID(), request.Magnet, run.Dir()); err != nil {
					logger.Warn("record fetch start", "error", err)
				}
			}

			var outcome supervisor.Outcome

			g := new(errgroup.Group)
			g.Go(func() error {
				outcome = consumeUpdates(out, run)
				return nil
			})
			g.Go(func() error {
				// Relay a signal-driven cancellation to the run; exits on
				// its own once the run reaches a terminal outcome.
				select {
				case <-ctx.Done():
					run.Stop()
				case <-run.Done():
				}
				return nil
			})
			if err := g.Wait(); err != nil {
				return err
			}

			if store != nil {
				if err := store.FinishFetch(context.WithoutCancel(ctx), run.ID(), finishInput(outcome)); err != nil {
					logger.Warn("record fetch result", "error", err)
				}
			}

			if !outcome.Success {
				return fmt.Errorf("%s", outcome.Detail)
			}

			fmt.Fprintln(out, outcome.Detail)
			var total int64
			rows := make([][]string, 0, len(outcome.Files))
			for _, file := range outcome.Files {
				total += file.Size
				rows = append(rows, []string{filepath.Base(file.Path), humanize.Bytes(uint64(file.Size))})
			}
			fmt.Fprintln(out, renderTable([]string{"File", "Size"}, rows, []columnAlignment{alignLeft, alignRight}))
			fmt.Fprintf(out, "Saved %s to %s\n", humanize.Bytes(uint64(total)), run.Dir())
			return nil
		},
	}

	cmd.Flags().StringVarP(&downloadDir, "dir", "d", "", "Download directory (defaults to the configured path)")
	cmd.Flags().BoolVar(&noHistory, "no-history", false, "Skip recording this fetch in history")
	return cmd
}

// consumeUpdates drains the run's update channel, rendering percent updates
// as a progress bar on a terminal and plain lines otherwise. It returns the
// terminal outcome; the channel contract guarantees exactly one.
func consumeUpdates(out io.Writer, run *supervisor.Run) supervisor.Outcome {
	interactive := false
	if f, ok := out.(*os.File); ok {
		interactive = isatty.IsTerminal(f.Fd())
	}

	var bar *progressbar.ProgressBar
	clearBar := func() {
		if bar != nil {
			_ = bar.Clear()
			bar = nil
		}
	}

	var outcome supervisor.Outcome
	for update := range run.Updates() {
		if update.Terminal() {
			outcome = *update.Outcome
			continue
		}
		event := update.Event
		if event.Kind == classify.KindPercentUpdate && interactive {
			if bar == nil {
				bar = progressbar.NewOptions(100,
					progressbar.OptionSetWriter(out),
					progressbar.OptionSetDescription("Downloading"),
					progressbar.OptionSetPredictTime(false),
					progressbar.OptionClearOnFinish(),
				)
			}
			_ = bar.Set(int(event.Percent))
			continue
		}
		clearBar()
		switch event.Kind {
		case classify.KindPercentUpdate:
			fmt.Fprintf(out, "Downloading... %.1f%%\n", event.Percent)
		default:
			fmt.Fprintln(out, event.Message)
		}
	}
	clearBar()
	return outcome
}

// recordStartFailure keeps pre-spawn rejections visible in history alongside
// runs that actually launched.
func recordStartFailure(ctx context.Context, store *history.Store, request supervisor.Request, startErr error) {
	if store == nil {
		return
	}
	outcome := supervisor.OutcomeFromError(startErr)
	runID := uuid.NewString()
	if _, err := store.StartFetch(ctx, runID, request.Magnet, request.DownloadDir); err != nil {
		return
	}
	_ = store.FinishFetch(ctx, runID, finishInput(outcome))
}

func finishInput(outcome supervisor.Outcome) history.FinishInput {
	input := history.FinishInput{
		Status: history.StatusCompleted,
		Detail: outcome.Detail,
	}
	if !outcome.Success {
		input.Status = history.StatusFailed
		input.FailureKind = string(outcome.Kind)
	}
	var total int64
	for _, file := range outcome.Files {
		total += file.Size
	}
	input.FileCount = len(outcome.Files)
	input.TotalBytes = total
	return input
}
