package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/docparse/internal/common"
	"github.com/joseph-ayodele/docparse/internal/repository"
)

var runsLimit int

var runsCmd = &cobra.Command{
	Use:   "runs [run-id]",
	Short: "Inspect the run store",
	Long: `Checks the run store and lists recent runs.

With a run id, prints that run and each of its documents.
Requires --store-dsn or STORE_DSN.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRuns,
}

func init() {
	runsCmd.Flags().IntVarP(&runsLimit, "count", "n", 20, "number of runs to list")
	rootCmd.AddCommand(runsCmd)
}

func runRuns(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.Store.DSN == "" {
		return fmt.Errorf("%w: --store-dsn or STORE_DSN is required", common.ErrInvalidInput)
	}
	logger := newLogger(cmd, false)

	store, err := repository.OpenStore(ctx, cfg.Store.DSN, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.HealthCheck(ctx, time.Second); err != nil {
		return fmt.Errorf("store health: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(args) == 0 {
		runs, err := store.ListRuns(ctx, runsLimit)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tSTARTED\tMODE\tDOCS\tFAILURES\tACCURACY\tSOURCE")
		for _, r := range runs {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%.3f\t%s\n",
				r.ID, r.StartedAt.Local().Format(time.DateTime), r.Mode, r.Documents, r.Failures, r.Accuracy, r.Source)
		}
		return tw.Flush()
	}

	run, err := store.GetRun(ctx, args[0])
	if err != nil {
		return err
	}
	preds, err := store.Predictions(ctx, run.ID)
	if err != nil {
		return err
	}
	finished := "running"
	if !run.FinishedAt.IsZero() {
		finished = run.FinishedAt.Local().Format(time.DateTime)
	}
	model := run.Model
	if run.Mode != "model" {
		model = "-"
	}
	fmt.Fprintf(out, "Run: %s\nSource: %s\nMode: %s\nModel: %s\nStarted: %s\nFinished: %s\nDocuments: %d\nFailures: %d\nAccuracy: %.3f\n\n",
		run.ID, run.Source, run.Mode, model, run.StartedAt.Local().Format(time.DateTime), finished,
		run.Documents, run.Failures, run.Accuracy)

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "IMAGE\tTRUE\tPRED\tCONF\tSTAGE\tERROR")
	for _, p := range preds {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.2f\t%s\t%s\n",
			p.Image, dash(p.TrueLabel), dash(p.PredLabel), p.Confidence, p.Stage, strings.TrimSpace(p.Error))
	}
	return tw.Flush()
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
