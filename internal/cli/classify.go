package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/docparse/internal/classify"
	"github.com/joseph-ayodele/docparse/internal/common"
	"github.com/joseph-ayodele/docparse/internal/entity"
	"github.com/joseph-ayodele/docparse/internal/extract"
)

var classifyRepeat int

var classifyCmd = &cobra.Command{
	Use:   "classify [text-file]",
	Short: "Classify and extract fields from already recognized text",
	Long: `Skips OCR: reads text from a file, or stdin when the argument is "-",
then classifies it and extracts its fields.

--repeat runs the same text several times, which shows how stable the
model's answers are.`,
	Args: cobra.ExactArgs(1),
	RunE: runClassify,
}

func init() {
	classifyCmd.Flags().IntVar(&classifyRepeat, "repeat", 1, "run the same text n times")
	rootCmd.AddCommand(classifyCmd)
}

type textResult struct {
	Classification entity.ClassificationResult `json:"classification"`
	Extraction     entity.ExtractionResult     `json:"extraction"`
}

func runClassify(cmd *cobra.Command, args []string) error {
	text, err := readText(cmd, args[0])
	if err != nil {
		return err
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(cmd, false)
	gen := newGenerator(cfg.LLM, logger)
	cls := classify.New(gen, logger)
	ext := extract.New(gen, logger)
	useModel := !cfg.LLM.Disabled

	times := max(classifyRepeat, 1)
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	for i := 1; i <= times; i++ {
		start := time.Now()
		logger.Info("cli.classify.start", "iter", i)
		var res textResult
		res.Classification = cls.Classify(cmd.Context(), text, useModel)
		res.Extraction = ext.Extract(cmd.Context(), text, res.Classification.Category, useModel)
		logger.Info("cli.classify.ok",
			"iter", i,
			"document_type", res.Classification.Category,
			"method", res.Classification.Method,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		if err := enc.Encode(res); err != nil {
			return common.WrapError(err, "encode result")
		}
	}
	return nil
}

func readText(cmd *cobra.Command, arg string) (string, error) {
	var (
		raw []byte
		err error
	)
	if arg == "-" {
		raw, err = io.ReadAll(cmd.InOrStdin())
	} else {
		raw, err = os.ReadFile(arg)
	}
	if err != nil {
		return "", fmt.Errorf("%w: read text: %v", common.ErrInvalidInput, err)
	}
	text := string(raw)
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: text is empty", common.ErrInvalidInput)
	}
	return text, nil
}
