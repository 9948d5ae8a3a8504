// Package ocr turns document images into text and word boxes.
package ocr

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joseph-ayodele/docparse/internal/common"
)

const EngineTesseract = "tesseract"

// Box is one recognized word in image pixel coordinates.
type Box struct {
	X, Y, W, H int
	Text       string
	Conf       float64 // [0,1]
}

type Result struct {
	Engine   string
	Text     string
	Boxes    []Box
	Language string
	Duration time.Duration
}

// Engine recognizes text on a single image.
type Engine interface {
	Recognize(ctx context.Context, imagePath, lang string) (Result, error)
}

type Config struct {
	Tesseract   string // binary name or absolute path; if empty -> "tesseract"
	Lang        string // short-code hint used when Recognize gets none, default "en"
	TessdataDir string
	PSM         int // 0 leaves tesseract's default
}

type Option func(*Tesseract)

func WithRunner(r Runner) Option {
	return func(t *Tesseract) { t.runner = r }
}

// WithLookPath replaces exec.LookPath when resolving the binary.
func WithLookPath(fn func(string) (string, error)) Option {
	return func(t *Tesseract) { t.lookPath = fn }
}

// Tesseract runs the tesseract CLI and parses its TSV output.
type Tesseract struct {
	cfg      Config
	runner   Runner
	lookPath func(string) (string, error)
	logger   *slog.Logger

	initMu  sync.Mutex
	ready   bool
	binPath string
	langs   map[string]bool
}

// initTimeout bounds the one-time --list-langs call, which runs detached from the caller's context.
const initTimeout = 30 * time.Second

func NewTesseract(cfg Config, logger *slog.Logger, opts ...Option) *Tesseract {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.Lang == "" {
		cfg.Lang = "en"
	}
	t := &Tesseract{
		cfg:      cfg,
		runner:   execRunner{logger: logger},
		lookPath: exec.LookPath,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

var (
	sharedOnce sync.Once
	shared     *Tesseract
)

// Shared returns the process-wide engine. Only the first call's arguments are used.
func Shared(cfg Config, logger *slog.Logger) *Tesseract {
	sharedOnce.Do(func() {
		shared = NewTesseract(cfg, logger)
	})
	return shared
}

// init resolves the binary and lists installed languages. Only success is cached, so a
// failed init is retried by the next document instead of disabling the engine.
func (t *Tesseract) init(ctx context.Context) error {
	t.initMu.Lock()
	defer t.initMu.Unlock()
	if t.ready {
		return nil
	}

	bin, err := t.lookPath(t.cfg.Tesseract)
	if err != nil {
		return fmt.Errorf("%w: tesseract binary %q not found: %v", common.ErrOCR, t.cfg.Tesseract, err)
	}

	args := []string{"--list-langs"}
	if t.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", t.cfg.TessdataDir)
	}
	listCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), initTimeout)
	defer cancel()
	stdout, stderr, err := t.runner.Run(listCtx, bin, args...)
	if err != nil {
		t.logger.Warn("ocr.engine.init_failed", "engine", EngineTesseract, "bin", bin, "error", err)
		return fmt.Errorf("%w: list languages: %v", common.ErrOCR, err)
	}
	t.binPath = bin
	// older builds print the list on stderr
	t.langs = parseLangList(string(stdout) + "\n" + string(stderr))
	t.ready = true
	t.logger.Info("ocr.engine.ready", "engine", EngineTesseract, "bin", bin, "languages", len(t.langs))
	return nil
}

func parseLangList(out string) map[string]bool {
	langs := make(map[string]bool)
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "List of") {
			continue
		}
		langs[line] = true
	}
	return langs
}

// Recognize validates the image, runs tesseract and returns line text plus word boxes.
func (t *Tesseract) Recognize(ctx context.Context, imagePath, lang string) (Result, error) {
	start := time.Now()
	if err := CheckImage(imagePath); err != nil {
		return Result{}, err
	}
	if err := t.init(ctx); err != nil {
		return Result{}, err
	}
	if strings.TrimSpace(lang) == "" {
		lang = t.cfg.Lang
	}
	langs := TesseractLangs(lang)
	for _, l := range strings.Split(langs, "+") {
		if len(t.langs) > 0 && !t.langs[l] {
			t.logger.Warn("ocr.language.missing", "lang", l, "path", imagePath)
		}
	}

	args := []string{imagePath, "stdout", "-l", langs}
	if t.cfg.PSM > 0 {
		args = append(args, "--psm", strconv.Itoa(t.cfg.PSM))
	}
	if t.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", t.cfg.TessdataDir)
	}
	args = append(args, "tsv")

	stdout, stderr, err := t.runner.Run(ctx, t.binPath, args...)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Result{}, fmt.Errorf("%w: %w", common.ErrOCR, errors.Join(ctxErr, err))
		}
		return Result{}, fmt.Errorf("%w: tesseract failed: %v: %s", common.ErrOCR, err, truncate(strings.TrimSpace(string(stderr)), 512))
	}

	text, boxes := ParseTSV(string(stdout))
	res := Result{
		Engine:   EngineTesseract,
		Text:     Normalize(text),
		Boxes:    boxes,
		Language: lang,
		Duration: time.Since(start),
	}
	t.logger.Debug("ocr.recognize.ok",
		"path", imagePath,
		"lang", langs,
		"chars", len(res.Text),
		"boxes", len(res.Boxes),
		"duration_ms", res.Duration.Milliseconds(),
	)
	return res, nil
}
