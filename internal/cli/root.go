// Package cli is the docparse command line.
package cli

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/docparse/internal/classify"
	"github.com/joseph-ayodele/docparse/internal/common"
	"github.com/joseph-ayodele/docparse/internal/extract"
	"github.com/joseph-ayodele/docparse/internal/llm"
	"github.com/joseph-ayodele/docparse/internal/llm/ollama"
	"github.com/joseph-ayodele/docparse/internal/ocr"
	"github.com/joseph-ayodele/docparse/internal/pipeline"
	"github.com/joseph-ayodele/docparse/internal/repository"
)

var (
	configPath string
	verbose    bool
	outDir     string
	modelName  string
	llmURL     string
	noLLM      bool
	lang       string
	annotate   bool
	storeDSN   string
)

var rootCmd = &cobra.Command{
	Use:   "docparse",
	Short: "Classify scanned documents and extract their fields",
	Long: `docparse runs OCR over document images, classifies each one as
email, invoice, news or receipt, and extracts its fields.

A local Ollama model is used when reachable. Regex rules take over
whenever the model is disabled, unavailable or returns something unusable.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// newEngine builds the OCR engine. Tests replace it.
var newEngine = func(cfg ocr.Config, logger *slog.Logger) ocr.Engine {
	return ocr.Shared(cfg, logger)
}

// newGenerator builds the inference backend. Tests replace it.
var newGenerator = func(cfg common.LLMConfig, logger *slog.Logger) llm.Generator {
	if cfg.Disabled {
		return llm.Disabled{}
	}
	return ollama.NewClient(ollama.Config{
		BaseURL:   cfg.URL,
		Model:     cfg.Model,
		Timeout:   cfg.Timeout,
		RateLimit: cfg.RateLimit,
	}, logger)
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&configPath, "config", "c", "", "TOML config file")
	pf.BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	pf.StringVarP(&outDir, "outdir", "o", "", "output directory (json, annotated_images, metrics)")
	pf.StringVar(&modelName, "model", "", "Ollama model name")
	pf.StringVar(&llmURL, "llm-url", "", "Ollama base URL")
	pf.BoolVar(&noLLM, "no-llm", false, "skip the model and use regex rules only")
	pf.StringVar(&lang, "lang", "", "OCR language hint, e.g. en or en+lt")
	pf.BoolVar(&annotate, "annotate", false, "write an image with OCR boxes drawn")
	pf.StringVar(&storeDSN, "store-dsn", "", "run store: sqlite file path or postgres:// URL")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// loadConfig layers --config, the environment and the flags that were set.
func loadConfig(cmd *cobra.Command) (*common.Config, error) {
	cfg, err := common.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	flags := cmd.Flags()
	if flags.Changed("outdir") {
		cfg.Output.Dir = outDir
	}
	if flags.Changed("model") {
		cfg.LLM.Model = modelName
	}
	if flags.Changed("llm-url") {
		cfg.LLM.URL = llmURL
	}
	if flags.Changed("no-llm") {
		cfg.LLM.Disabled = noLLM
	}
	if flags.Changed("lang") {
		cfg.OCR.Lang = lang
	}
	if flags.Changed("annotate") {
		cfg.Output.Annotate = annotate
	}
	if flags.Changed("store-dsn") {
		cfg.Store.DSN = storeDSN
	}
	if flags.Changed("limit") {
		cfg.Batch.Limit = batchLimit
	}
	if flags.Changed("workers") {
		cfg.Batch.Workers = batchWorkers
	}
	if flags.Changed("timeout") {
		cfg.Batch.DocumentTimeout = docTimeout
	}
	if flags.Changed("addr") {
		cfg.Server.GRPCAddr = serveAddr
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(cmd *cobra.Command, text bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	if text {
		return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), opts))
	}
	return slog.New(slog.NewJSONHandler(cmd.ErrOrStderr(), opts))
}

// app holds the components every command shares.
type app struct {
	cfg        *common.Config
	logger     *slog.Logger
	classifier *classify.Classifier
	extractor  *extract.Extractor
	proc       *pipeline.Processor
	store      *repository.Store
}

func setup(ctx context.Context, cmd *cobra.Command, textLogs bool) (*app, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	logger := newLogger(cmd, textLogs)
	slog.SetDefault(logger)

	gen := newGenerator(cfg.LLM, logger)
	a := &app{
		cfg:        cfg,
		logger:     logger,
		classifier: classify.New(gen, logger),
		extractor:  extract.New(gen, logger),
	}

	var opts []pipeline.Option
	if cfg.Store.DSN != "" {
		a.store, err = repository.OpenStore(ctx, cfg.Store.DSN, logger)
		if err != nil {
			return nil, err
		}
		opts = append(opts, pipeline.WithSink(a.store))
	}

	engine := newEngine(ocr.Config{
		Tesseract:   cfg.OCR.Tesseract,
		Lang:        cfg.OCR.Lang,
		TessdataDir: cfg.OCR.TessdataDir,
	}, logger)
	a.proc = pipeline.NewProcessor(engine, a.classifier, a.extractor,
		repository.NewArtifactWriter(cfg.Output.Dir, logger),
		pipeline.Config{
			UseModel:        !cfg.LLM.Disabled,
			Model:           cfg.LLM.Model,
			Lang:            cfg.OCR.Lang,
			Annotate:        cfg.Output.Annotate,
			OutDir:          cfg.Output.Dir,
			DocumentTimeout: cfg.Batch.DocumentTimeout,
		}, logger, opts...)

	logger.Debug("cli.setup",
		"outdir", cfg.Output.Dir,
		"model", cfg.LLM.Model,
		"use_model", !cfg.LLM.Disabled,
		"lang", cfg.OCR.Lang,
		"store", cfg.Store.DSN != "",
	)
	return a, nil
}

func (a *app) mode() string {
	if a.cfg.LLM.Disabled {
		return "rules"
	}
	return "model"
}

func (a *app) Close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn("cli.store.close_failed", "error", err)
		}
	}
}
