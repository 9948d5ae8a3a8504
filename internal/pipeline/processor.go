// Package pipeline runs one document through OCR, classification, extraction and persistence.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/docparse/constants"
	"github.com/joseph-ayodele/docparse/internal/common"
	"github.com/joseph-ayodele/docparse/internal/entity"
	"github.com/joseph-ayodele/docparse/internal/ocr"
	"github.com/joseph-ayodele/docparse/internal/repository"
)

type Classifier interface {
	Classify(ctx context.Context, text string, useModel bool) entity.ClassificationResult
}

type Extractor interface {
	Extract(ctx context.Context, text string, category constants.Category, useModel bool) entity.ExtractionResult
}

// Sink persists a finished document and returns where it went.
type Sink interface {
	Save(ctx context.Context, a entity.Artifact) (string, error)
}

type Config struct {
	UseModel        bool
	Model           string
	Lang            string
	Annotate        bool
	OutDir          string
	DocumentTimeout time.Duration
}

type Request struct {
	ImagePath string
	RunID     string // generated when empty
	TrueLabel string // optional, forwarded to sinks
}

// Result is a processed document and the path of its JSON artifact.
type Result struct {
	Record     entity.ProcessingRecord
	RecordPath string
}

type Option func(*Processor)

// WithSink adds a secondary sink, called after the artifact is written.
// Secondary sink failures are logged and do not fail the document.
func WithSink(s Sink) Option {
	return func(p *Processor) {
		if s != nil {
			p.sinks = append(p.sinks, s)
		}
	}
}

// WithAnnotator replaces the box renderer used for annotated images.
func WithAnnotator(fn func(src, dst string, boxes []ocr.Box) error) Option {
	return func(p *Processor) { p.annotate = fn }
}

// Processor coordinates OCR, classification, extraction and persistence.
type Processor struct {
	engine     ocr.Engine
	classifier Classifier
	extractor  Extractor
	artifacts  Sink
	sinks      []Sink
	annotate   func(src, dst string, boxes []ocr.Box) error
	cfg        Config
	logger     *slog.Logger
	now        func() time.Time
}

func NewProcessor(engine ocr.Engine, classifier Classifier, extractor Extractor, artifacts Sink, cfg Config, logger *slog.Logger, opts ...Option) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Processor{
		engine:     engine,
		classifier: classifier,
		extractor:  extractor,
		artifacts:  artifacts,
		annotate:   ocr.Annotate,
		cfg:        cfg,
		logger:     logger,
		now:        time.Now,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Process runs every stage and returns the record, including the persist duration.
func (p *Processor) Process(ctx context.Context, req Request) (entity.ProcessingRecord, error) {
	res, err := p.Run(ctx, req)
	return res.Record, err
}

// Run is Process plus the artifact location.
func (p *Processor) Run(ctx context.Context, req Request) (Result, error) {
	if strings.TrimSpace(req.ImagePath) == "" {
		return Result{}, fmt.Errorf("%w: image path is required", common.ErrInvalidInput)
	}
	runID := req.RunID
	if runID == "" {
		runID = common.RunIDFromContext(ctx)
	}
	if runID == "" {
		runID = uuid.NewString()
	}
	if p.cfg.DocumentTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.DocumentTimeout)
		defer cancel()
	}

	logger := common.LoggerFromContext(ctx, p.logger).With("image", req.ImagePath, "run_id", runID)
	durations := make(map[string]int64, 4)

	// OCR_DONE
	start := p.now()
	ocrRes, err := p.engine.Recognize(ctx, req.ImagePath, p.cfg.Lang)
	durations[constants.DurationOCR] = p.since(start)
	if err != nil {
		logger.Error("pipeline.failed", "stage", constants.StageFailed, "after", "ocr", "error", err)
		return Result{}, fmt.Errorf("ocr %s: %w", filepath.Base(req.ImagePath), err)
	}
	ocrConf := ocr.Confidence(ocrRes.Boxes, ocrRes.Text)
	p.stage(logger, constants.StageOCRDone, durations[constants.DurationOCR], "chars", len(ocrRes.Text), "ocr_confidence", ocrConf)

	// CLASSIFIED
	start = p.now()
	cls := p.classifier.Classify(ctx, ocrRes.Text, p.cfg.UseModel)
	durations[constants.DurationClassify] = p.since(start)
	p.stage(logger, constants.StageClassified, durations[constants.DurationClassify],
		"category", cls.Category, "confidence", cls.Confidence, "method", cls.Method)

	// EXTRACTED
	start = p.now()
	ext := p.extractor.Extract(ctx, ocrRes.Text, cls.Category, p.cfg.UseModel)
	durations[constants.DurationExtract] = p.since(start)
	p.stage(logger, constants.StageExtracted, durations[constants.DurationExtract],
		"method", ext.Method, "fields", len(ext.Fields))

	fields := ext.Fields.Clone()
	if fields == nil {
		fields = entity.Fields{}
	}
	delete(fields, "document_type")

	rec := entity.ProcessingRecord{
		DocumentType: cls.Category,
		Fields:       fields,
		OCRText:      ocrRes.Text,
		Meta: entity.Meta{
			SourceImage:              req.ImagePath,
			RunID:                    runID,
			ProcessedAt:              p.now().UTC(),
			OCREngine:                ocrRes.Engine,
			Language:                 ocrRes.Language,
			OCRConfidence:            ocrConf,
			ClassificationConfidence: cls.Confidence,
			ClassificationMethod:     cls.Method,
			ClassificationFallback:   cls.FallbackReason,
			ExtractionMethod:         ext.Method,
			ExtractionFallback:       ext.FallbackReason,
			DurationsMS:              durations,
		},
	}
	if p.cfg.UseModel {
		rec.Meta.Model = p.cfg.Model
	}
	if p.cfg.Annotate && len(ocrRes.Boxes) > 0 {
		rec.Meta.AnnotatedImage = p.annotated(logger, req.ImagePath, runID, ocrRes.Boxes)
	}

	// PERSISTED
	start = p.now()
	path, err := p.artifacts.Save(ctx, entity.Artifact{Record: rec, TrueLabel: req.TrueLabel})
	if err != nil {
		logger.Error("pipeline.failed", "stage", constants.StageFailed, "after", "persist", "error", err)
		return Result{Record: rec}, fmt.Errorf("persist %s: %w", filepath.Base(req.ImagePath), err)
	}
	rec.Meta.DurationsMS = maps.Clone(durations)
	rec.Meta.DurationsMS[constants.DurationPersist] = p.since(start)

	for _, s := range p.sinks {
		if _, err := s.Save(ctx, entity.Artifact{Record: rec, Path: path, TrueLabel: req.TrueLabel}); err != nil {
			logger.Warn("pipeline.sink.failed", "error", err)
		}
	}
	p.stage(logger, constants.StagePersisted, rec.Meta.DurationsMS[constants.DurationPersist], "path", path)

	return Result{Record: rec, RecordPath: path}, nil
}

func (p *Processor) annotated(logger *slog.Logger, src, runID string, boxes []ocr.Box) string {
	dst := filepath.Join(p.cfg.OutDir, constants.DirAnnotated, repository.ArtifactStem(p.now(), src, runID)+"_boxes.png")
	if err := p.annotate(src, dst, boxes); err != nil {
		logger.Warn("pipeline.annotate.failed", "error", err)
		return ""
	}
	return dst
}

func (p *Processor) stage(logger *slog.Logger, stage constants.Stage, ms int64, attrs ...any) {
	logger.Info("pipeline.stage", append([]any{"stage", stage, "duration_ms", ms}, attrs...)...)
}

func (p *Processor) since(start time.Time) int64 {
	return p.now().Sub(start).Milliseconds()
}
