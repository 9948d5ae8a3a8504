package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/docparse/internal/ingest"
	"github.com/joseph-ayodele/docparse/internal/pipeline"
	"github.com/joseph-ayodele/docparse/internal/repository"
)

var (
	watchInitial  bool
	watchDebounce time.Duration
)

var watchCmd = &cobra.Command{
	Use:   "watch [dir...]",
	Short: "Process images as they land in a directory",
	Long: `Watches directories recursively and processes each new or rewritten image.

Images with content already seen in this session are skipped.
Runs until interrupted.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().BoolVar(&watchInitial, "initial-scan", false, "also process images already present")
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", 500*time.Millisecond, "quiet period before processing a changed file")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := setup(ctx, cmd, false)
	if err != nil {
		return err
	}
	defer a.Close()

	paths, errs, err := ingest.Watch(ctx, ingest.WatchConfig{
		Roots:       args,
		InitialScan: watchInitial,
		Debounce:    watchDebounce,
	}, a.logger)
	if err != nil {
		return err
	}

	runID := uuid.NewString()
	if a.store != nil {
		if err := a.store.StartRun(ctx, repository.Run{ID: runID, Source: args[0], Mode: a.mode(), Model: a.cfg.LLM.Model}); err != nil {
			return err
		}
	}
	docs, failures := a.watchLoop(ctx, runID, paths, errs)

	if a.store != nil {
		if err := a.store.FinishRun(context.WithoutCancel(ctx), runID, docs, failures, 0); err != nil {
			a.logger.Warn("cli.store.finish_failed", "run_id", runID, "error", err)
		}
	}
	a.logger.Info("cli.watch.stopped", "documents", docs, "failures", failures)
	return nil
}

// watchLoop processes paths until both channels close. Documents run one at a time.
func (a *app) watchLoop(ctx context.Context, runID string, paths <-chan string, errs <-chan error) (docs, failures int) {
	dedup := ingest.NewDedup()
	for paths != nil || errs != nil {
		select {
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			a.logger.Warn("cli.watch.error", "error", err)
		case path, ok := <-paths:
			if !ok {
				paths = nil
				continue
			}
			first, prev, err := dedup.First(path)
			if err != nil {
				a.logger.Warn("cli.watch.hash_failed", "image", path, "error", err)
				continue
			}
			if !first {
				a.logger.Info("cli.watch.duplicate", "image", path, "same_as", prev)
				continue
			}
			docs++
			label := ingest.LabelFromPath(path)
			res, err := a.proc.Run(ctx, pipeline.Request{ImagePath: path, RunID: runID, TrueLabel: label})
			if err != nil {
				failures++
				a.logger.Warn("cli.watch.document_failed", "image", path, "error", err)
				if a.store != nil {
					if err := a.store.RecordFailure(context.WithoutCancel(ctx), runID, path, label, err); err != nil {
						a.logger.Warn("cli.store.failure_not_recorded", "image", path, "error", err)
					}
				}
				continue
			}
			a.logger.Info("cli.watch.processed",
				"image", path,
				"document_type", res.Record.DocumentType,
				"record", res.RecordPath,
			)
		}
	}
	return docs, failures
}
