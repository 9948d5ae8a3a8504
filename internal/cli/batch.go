package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/docparse/internal/async"
	"github.com/joseph-ayodele/docparse/internal/entity"
	"github.com/joseph-ayodele/docparse/internal/export"
	"github.com/joseph-ayodele/docparse/internal/ingest"
	"github.com/joseph-ayodele/docparse/internal/pipeline"
	"github.com/joseph-ayodele/docparse/internal/repository"
)

var (
	batchLimit   int
	batchWorkers int
	docTimeout   time.Duration
)

var batchCmd = &cobra.Command{
	Use:   "batch [dataset]",
	Short: "Process every image under a dataset directory",
	Long: `Processes all images under a dataset directory and writes a report.

A dataset laid out as <dataset>/<category>/* takes the true label from
the category directory. Otherwise the tree is walked recursively and
labels come from any path segment naming a category.

Reports go to <outdir>/metrics: predictions.csv, summary.txt and report.xlsx.`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	batchCmd.Flags().IntVarP(&batchLimit, "limit", "n", 0, "process at most n images (0 = all)")
	batchCmd.Flags().IntVarP(&batchWorkers, "workers", "w", 4, "concurrent documents")
	batchCmd.Flags().DurationVar(&docTimeout, "timeout", 5*time.Minute, "per-document timeout")
	rootCmd.AddCommand(batchCmd)
}

func runBatch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := setup(ctx, cmd, false)
	if err != nil {
		return err
	}
	defer a.Close()

	items, stats, err := ingest.ListImages(args[0], a.cfg.Batch.Limit)
	if err != nil {
		return err
	}
	a.logger.Info("cli.batch.start",
		"dataset", args[0],
		"images", len(items),
		"scanned", stats.Scanned,
		"skipped", stats.Skipped,
		"workers", a.cfg.Batch.Workers,
		"mode", a.mode(),
	)

	runID := uuid.NewString()
	if a.store != nil {
		if err := a.store.StartRun(ctx, repository.Run{ID: runID, Source: args[0], Mode: a.mode(), Model: a.cfg.LLM.Model}); err != nil {
			return err
		}
	}

	start := time.Now()
	rows := a.runItems(ctx, runID, items, async.WithWorkers(a.cfg.Batch.Workers))

	_, sum, err := export.WriteReport(a.cfg.Output.Dir, rows, a.logger)
	if err != nil {
		return err
	}
	if a.store != nil {
		if err := a.store.FinishRun(ctx, runID, sum.Images, sum.Failures, sum.Accuracy); err != nil {
			a.logger.Warn("cli.store.finish_failed", "run_id", runID, "error", err)
		}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Images: %d\nKnown-label images: %d\nFailures: %d\nAccuracy: %.3f\nElapsed: %s\n",
		sum.Images, sum.Labeled, sum.Failures, sum.Accuracy, seconds(time.Since(start)))
	return nil
}

// runItems pushes the items through the pool and turns each outcome into a report row.
// Failed documents are recorded in the store when one is configured.
func (a *app) runItems(ctx context.Context, runID string, items []ingest.Item, opts ...async.Option) []entity.Prediction {
	jobs := make([]async.Job, len(items))
	for i, it := range items {
		jobs[i] = async.Job{Path: it.Path, Label: it.Label, SubmittedAt: time.Now()}
	}
	handle := func(ctx context.Context, job async.Job) (pipeline.Result, error) {
		return a.proc.Run(ctx, pipeline.Request{ImagePath: job.Path, RunID: runID, TrueLabel: job.Label})
	}
	results := async.Run(ctx, jobs, handle, a.logger, opts...)

	rows := make([]entity.Prediction, 0, len(results))
	for _, r := range results {
		row := predictionRow(r)
		if r.Err != nil {
			a.logger.Warn("cli.batch.document_failed", "image", r.Job.Path, "error", r.Err)
			if a.store != nil {
				if err := a.store.RecordFailure(ctx, runID, r.Job.Path, r.Job.Label, r.Err); err != nil {
					a.logger.Warn("cli.store.failure_not_recorded", "image", r.Job.Path, "error", err)
				}
			}
		}
		rows = append(rows, row)
	}
	return rows
}

func predictionRow(r async.Result) entity.Prediction {
	row := entity.Prediction{
		Image:          r.Job.Path,
		TrueLabel:      r.Job.Label,
		ProcessingTime: r.Elapsed,
	}
	if r.Err != nil {
		row.Error = r.Err.Error()
		return row
	}
	rec := r.Output.Record
	row.PredLabel = rec.DocumentType
	row.Confidence = rec.Meta.ClassificationConfidence
	row.Method = rec.Meta.ClassificationMethod
	row.RecordPath = r.Output.RecordPath
	return row
}
