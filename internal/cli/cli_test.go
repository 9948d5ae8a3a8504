package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/docparse/constants"
	"github.com/joseph-ayodele/docparse/internal/async"
	"github.com/joseph-ayodele/docparse/internal/classify"
	"github.com/joseph-ayodele/docparse/internal/common"
	"github.com/joseph-ayodele/docparse/internal/extract"
	"github.com/joseph-ayodele/docparse/internal/llm"
	"github.com/joseph-ayodele/docparse/internal/ocr"
	"github.com/joseph-ayodele/docparse/internal/pipeline"
	"github.com/joseph-ayodele/docparse/internal/repository"
)

// textEngine answers with a fixed text per file base name.
type textEngine map[string]string

func (e textEngine) Recognize(_ context.Context, path, lang string) (ocr.Result, error) {
	text, ok := e[filepath.Base(path)]
	if !ok {
		return ocr.Result{}, fmt.Errorf("%w: %s", common.ErrUnreadableImage, path)
	}
	return ocr.Result{Engine: "fake", Text: text, Language: lang}, nil
}

var texts = textEngine{
	"r1.png": "Receipt\nCorner Shop\nTotal 12.00 cash",
	"r2.png": "Receipt\nCorner Shop\nTotal 12.00 cash",
	"e1.png": "From: a@x.com\nTo: b@y.com\nSubject: Lunch",
}

func setupTestEngine(t *testing.T) {
	t.Helper()
	prevEngine, prevGen := newEngine, newGenerator
	newEngine = func(ocr.Config, *slog.Logger) ocr.Engine { return texts }
	newGenerator = func(common.LLMConfig, *slog.Logger) llm.Generator { return llm.Disabled{} }
	t.Cleanup(func() {
		newEngine, newGenerator = prevEngine, prevGen
		resetFlags()
	})
}

// resetFlags restores every flag so package-level state does not leak between tests.
func resetFlags() {
	reset := func(fs *pflag.FlagSet) {
		fs.VisitAll(func(f *pflag.Flag) {
			_ = f.Value.Set(f.DefValue)
			f.Changed = false
		})
	}
	reset(rootCmd.PersistentFlags())
	for _, c := range rootCmd.Commands() {
		reset(c.Flags())
	}
	rootCmd.SetArgs(nil)
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	out := new(bytes.Buffer)
	rootCmd.SetOut(out)
	rootCmd.SetErr(new(bytes.Buffer))
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRootCmd_PersistentFlags(t *testing.T) {
	for _, name := range []string{"config", "verbose", "outdir", "model", "llm-url", "no-llm", "lang", "annotate", "store-dsn"} {
		assert.NotNil(t, rootCmd.PersistentFlags().Lookup(name), name)
	}
	assert.Equal(t, "o", rootCmd.PersistentFlags().Lookup("outdir").Shorthand)
}

func TestCommands_Registered(t *testing.T) {
	var names []string
	for _, c := range rootCmd.Commands() {
		names = append(names, c.Name())
	}
	assert.Subset(t, names, []string{"process", "batch", "serve", "watch"})
}

func TestProcessCmd_RequiresExactlyOneArg(t *testing.T) {
	setupTestEngine(t)
	_, err := execute(t, "process")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg(s)")
}

func TestBatchCmd_HasLimitFlag(t *testing.T) {
	f := batchCmd.Flags().Lookup("limit")
	require.NotNil(t, f)
	assert.Equal(t, "n", f.Shorthand)
	assert.Equal(t, "0", f.DefValue)
}

func TestLoadConfig_FlagOverrides(t *testing.T) {
	setupTestEngine(t)
	dir := t.TempDir()
	require.NoError(t, batchCmd.ParseFlags([]string{
		"--outdir", dir, "--workers", "7", "--limit", "3", "--no-llm", "--lang", "en+lt", "--timeout", "30s",
	}))

	cfg, err := loadConfig(batchCmd)
	require.NoError(t, err)
	assert.Equal(t, dir, cfg.Output.Dir)
	assert.Equal(t, 7, cfg.Batch.Workers)
	assert.Equal(t, 3, cfg.Batch.Limit)
	assert.True(t, cfg.LLM.Disabled)
	assert.Equal(t, "en+lt", cfg.OCR.Lang)
	assert.Equal(t, "30s", cfg.Batch.DocumentTimeout.String())
	// Unset flags keep the defaults.
	assert.Equal(t, common.DefaultConfig().LLM.Model, cfg.LLM.Model)
}

func TestLoadConfig_Invalid(t *testing.T) {
	setupTestEngine(t)
	require.NoError(t, batchCmd.ParseFlags([]string{"--workers", "0"}))

	_, err := loadConfig(batchCmd)
	var appErr *common.AppError
	require.True(t, errors.As(err, &appErr), "got %v", err)
	assert.Equal(t, common.CodeConfig, appErr.Code)
}

func TestLoadConfig_File(t *testing.T) {
	setupTestEngine(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "docparse.toml")
	writeFile(t, path, "[llm]\nmodel = \"llama3\"\n\n[batch]\nworkers = 2\n")
	require.NoError(t, batchCmd.ParseFlags([]string{"--config", path, "--workers", "5"}))

	cfg, err := loadConfig(batchCmd)
	require.NoError(t, err)
	assert.Equal(t, "llama3", cfg.LLM.Model)
	assert.Equal(t, 5, cfg.Batch.Workers, "flags win over the file")
}

func TestProcessCmd_PrintsRecord(t *testing.T) {
	setupTestEngine(t)
	dir := t.TempDir()
	img := filepath.Join(dir, "in", "r1.png")
	writeFile(t, img, "x")
	out := filepath.Join(dir, "out")

	stdout, err := execute(t, "process", img, "--no-llm", "--outdir", out)
	require.NoError(t, err)
	assert.Contains(t, stdout, `"document_type": "receipt"`)
	assert.Contains(t, stdout, `"classification_method": "rules"`)

	entries, err := os.ReadDir(filepath.Join(out, constants.DirJSON))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestProcessCmd_InvalidLabel(t *testing.T) {
	setupTestEngine(t)
	_, err := execute(t, "process", "a.png", "--label", "receipts", "--no-llm", "--outdir", t.TempDir())
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}

func TestProcessCmd_OCRFailure(t *testing.T) {
	setupTestEngine(t)
	dir := t.TempDir()
	img := filepath.Join(dir, "unknown.png")
	writeFile(t, img, "x")

	_, err := execute(t, "process", img, "--no-llm", "--outdir", dir)
	assert.ErrorIs(t, err, common.ErrUnreadableImage)
}

func TestBatchCmd_WritesReport(t *testing.T) {
	setupTestEngine(t)
	dir := t.TempDir()
	ds := filepath.Join(dir, "dataset")
	writeFile(t, filepath.Join(ds, "receipt", "r1.png"), "a")
	writeFile(t, filepath.Join(ds, "email", "e1.png"), "b")
	writeFile(t, filepath.Join(ds, "news", "bad.png"), "c")
	writeFile(t, filepath.Join(ds, "news", "notes.txt"), "skip")
	out := filepath.Join(dir, "out")

	stdout, err := execute(t, "batch", ds, "--no-llm", "--outdir", out, "--workers", "2")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Images: 3\n")
	assert.Contains(t, stdout, "Failures: 1\n")
	assert.Contains(t, stdout, "Accuracy: 0.667\n")

	for _, name := range []string{"predictions.csv", "summary.txt", "report.xlsx"} {
		_, err := os.Stat(filepath.Join(out, constants.DirMetrics, name))
		assert.NoError(t, err, name)
	}
	csv, err := os.ReadFile(filepath.Join(out, constants.DirMetrics, "predictions.csv"))
	require.NoError(t, err)
	assert.Contains(t, string(csv), "unreadable image")
}

func TestBatchCmd_Limit(t *testing.T) {
	setupTestEngine(t)
	dir := t.TempDir()
	ds := filepath.Join(dir, "dataset")
	writeFile(t, filepath.Join(ds, "receipt", "r1.png"), "a")
	writeFile(t, filepath.Join(ds, "receipt", "r2.png"), "b")

	stdout, err := execute(t, "batch", ds, "--no-llm", "--outdir", filepath.Join(dir, "out"), "-n", "1")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Images: 1\n")
}

func TestBatchCmd_RecordsRunInStore(t *testing.T) {
	setupTestEngine(t)
	dir := t.TempDir()
	ds := filepath.Join(dir, "dataset")
	writeFile(t, filepath.Join(ds, "receipt", "r1.png"), "a")
	writeFile(t, filepath.Join(ds, "news", "bad.png"), "c")
	dsn := filepath.Join(dir, "runs.db")

	_, err := execute(t, "batch", ds, "--no-llm", "--outdir", filepath.Join(dir, "out"), "--store-dsn", dsn)
	require.NoError(t, err)

	ctx := context.Background()
	store, err := repository.OpenStore(ctx, dsn, nil)
	require.NoError(t, err)
	runs, err := store.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	run := runs[0]
	assert.Equal(t, "rules", run.Mode)
	assert.Equal(t, 2, run.Documents)
	assert.Equal(t, 1, run.Failures)
	assert.False(t, run.FinishedAt.IsZero())

	preds, err := store.Predictions(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, preds, 2)
	stages := []constants.Stage{preds[0].Stage, preds[1].Stage}
	assert.ElementsMatch(t, []constants.Stage{constants.StagePersisted, constants.StageFailed}, stages)
	require.NoError(t, store.Close())

	stdout, err := execute(t, "runs", "--store-dsn", dsn)
	require.NoError(t, err)
	assert.Contains(t, stdout, run.ID)

	stdout, err = execute(t, "runs", run.ID, "--store-dsn", dsn)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Documents: 2")
	assert.Contains(t, stdout, "bad.png")
}

func TestRunsCmd_RequiresStore(t *testing.T) {
	setupTestEngine(t)
	t.Setenv("STORE_DSN", "")
	_, err := execute(t, "runs", "--no-llm")
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}

func TestBatchCmd_MissingDataset(t *testing.T) {
	setupTestEngine(t)
	_, err := execute(t, "batch", filepath.Join(t.TempDir(), "nope"), "--no-llm", "--outdir", t.TempDir())
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}

func TestPredictionRow(t *testing.T) {
	row := predictionRow(async.Result{Job: async.Job{Path: "a.png", Label: "news"}, Err: errors.New("boom")})
	assert.Equal(t, "boom", row.Error)
	assert.Equal(t, "news", row.TrueLabel)
	assert.Empty(t, row.PredLabel)
}

func testApp(t *testing.T) *app {
	t.Helper()
	gen := llm.Disabled{}
	a := &app{
		cfg:        common.DefaultConfig(),
		logger:     slog.Default(),
		classifier: classify.New(gen, nil),
		extractor:  extract.New(gen, nil),
	}
	a.proc = pipeline.NewProcessor(texts, a.classifier, a.extractor,
		repository.NewArtifactWriter(t.TempDir(), nil), pipeline.Config{Lang: "en"}, nil)
	return a
}

func TestWatchLoop_SkipsDuplicates(t *testing.T) {
	dir := t.TempDir()
	r1 := filepath.Join(dir, "r1.png")
	r2 := filepath.Join(dir, "r2.png")
	bad := filepath.Join(dir, "bad.png")
	writeFile(t, r1, "same bytes")
	writeFile(t, r2, "same bytes")
	writeFile(t, bad, "other bytes")

	paths := make(chan string, 4)
	errs := make(chan error, 1)
	paths <- r1
	paths <- r2
	paths <- bad
	paths <- filepath.Join(dir, "gone.png")
	errs <- errors.New("watch hiccup")
	close(paths)
	close(errs)

	docs, failures := testApp(t).watchLoop(context.Background(), "run-1", paths, errs)
	assert.Equal(t, 2, docs)
	assert.Equal(t, 1, failures)
}

func TestServeCmd_NoArgs(t *testing.T) {
	assert.Equal(t, "serve", serveCmd.Use)
	assert.NotNil(t, serveCmd.Flags().Lookup("addr"))
	assert.Error(t, serveCmd.Args(serveCmd, []string{"extra"}))
}

func TestWatchCmd_Args(t *testing.T) {
	var cmd *cobra.Command = watchCmd
	assert.Error(t, cmd.Args(cmd, nil))
	assert.True(t, strings.HasPrefix(cmd.Use, "watch"))
}

func TestClassifyCmd_Stdin(t *testing.T) {
	setupTestEngine(t)
	rootCmd.SetIn(strings.NewReader("From: a@x.com\nSubject: Lunch\n\nSee you at noon."))
	defer rootCmd.SetIn(nil)

	stdout, err := execute(t, "classify", "-", "--no-llm", "--repeat", "2")
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(stdout, `"classification"`))
	assert.Contains(t, stdout, `"document_type": "email"`)
	assert.Contains(t, stdout, `"from": "a@x.com"`)
}

func TestClassifyCmd_EmptyFile(t *testing.T) {
	setupTestEngine(t)
	path := filepath.Join(t.TempDir(), "empty.txt")
	writeFile(t, path, "  \n")

	_, err := execute(t, "classify", path, "--no-llm")
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}
