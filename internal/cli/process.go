package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/docparse/constants"
	"github.com/joseph-ayodele/docparse/internal/common"
	"github.com/joseph-ayodele/docparse/internal/pipeline"
	"github.com/joseph-ayodele/docparse/internal/repository"
)

var processLabel string

var processCmd = &cobra.Command{
	Use:   "process [image]",
	Short: "Process a single document image",
	Long: `Runs OCR, classification and field extraction on one image.

The record is written to <outdir>/json and printed to stdout.`,
	Args: cobra.ExactArgs(1),
	RunE: runProcess,
}

func init() {
	processCmd.Flags().StringVar(&processLabel, "label", "", "known category, stored with the run")
	rootCmd.AddCommand(processCmd)
}

func runProcess(cmd *cobra.Command, args []string) error {
	if processLabel != "" {
		if _, ok := constants.ParseCategory(processLabel); !ok {
			return fmt.Errorf("%w: unknown label %q", common.ErrInvalidInput, processLabel)
		}
	}
	ctx := cmd.Context()
	a, err := setup(ctx, cmd, false)
	if err != nil {
		return err
	}
	defer a.Close()

	runID := uuid.NewString()
	if a.store != nil {
		if err := a.store.StartRun(ctx, repository.Run{ID: runID, Source: args[0], Mode: a.mode(), Model: a.cfg.LLM.Model}); err != nil {
			return err
		}
	}

	res, procErr := a.proc.Run(ctx, pipeline.Request{ImagePath: args[0], RunID: runID, TrueLabel: processLabel})
	if a.store != nil {
		failures := 0
		if procErr != nil {
			failures = 1
			if err := a.store.RecordFailure(ctx, runID, args[0], processLabel, procErr); err != nil {
				a.logger.Warn("cli.store.failure_not_recorded", "error", err)
			}
		}
		if err := a.store.FinishRun(ctx, runID, 1, failures, 0); err != nil {
			a.logger.Warn("cli.store.finish_failed", "run_id", runID, "error", err)
		}
	}
	if procErr != nil {
		return procErr
	}

	out, err := json.MarshalIndent(res.Record, "", "  ")
	if err != nil {
		return common.WrapError(err, "encode record")
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	a.logger.Info("cli.process.ok",
		"record", res.RecordPath,
		"document_type", res.Record.DocumentType,
		"total_ms", totalMS(res.Record.Meta.DurationsMS),
	)
	return nil
}

func totalMS(d map[string]int64) int64 {
	var sum int64
	for _, v := range d {
		sum += v
	}
	return sum
}

func seconds(d time.Duration) string {
	return fmt.Sprintf("%.2fs", d.Seconds())
}
