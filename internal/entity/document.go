package entity

import (
	"time"

	"github.com/joseph-ayodele/docparse/constants"
)

// ClassificationResult is the Classifier's verdict. Confidence is always within [0,1].
type ClassificationResult struct {
	Category       constants.Category       `json:"document_type"`
	Confidence     float64                  `json:"confidence"`
	Method         constants.Method         `json:"method"`
	FallbackReason constants.FallbackReason `json:"fallback_reason,omitempty"`
}

// ExtractionResult carries the fields pulled from a document of a known category.
type ExtractionResult struct {
	Category       constants.Category       `json:"document_type"`
	Fields         Fields                   `json:"fields"`
	Method         constants.Method         `json:"method"`
	FallbackReason constants.FallbackReason `json:"fallback_reason,omitempty"`
}

// ProcessingRecord is the persisted artifact for one document.
type ProcessingRecord struct {
	DocumentType constants.Category `json:"document_type"`
	Fields       Fields             `json:"fields"`
	OCRText      string             `json:"ocr_text"`
	Meta         Meta               `json:"meta"`
}

type Meta struct {
	SourceImage    string    `json:"source_image"`
	AnnotatedImage string    `json:"annotated_image,omitempty"`
	RunID          string    `json:"run_id"`
	ProcessedAt    time.Time `json:"processed_at"`

	OCREngine     string  `json:"ocr_engine"`
	Language      string  `json:"language"`
	OCRConfidence float64 `json:"ocr_confidence"`

	Model string `json:"model,omitempty"`

	ClassificationConfidence float64                  `json:"classification_confidence"`
	ClassificationMethod     constants.Method         `json:"classification_method"`
	ClassificationFallback   constants.FallbackReason `json:"classification_fallback,omitempty"`
	ExtractionMethod         constants.Method         `json:"extraction_method"`
	ExtractionFallback       constants.FallbackReason `json:"extraction_fallback,omitempty"`

	// DurationsMS is keyed by stage (ocr, classify, extract, persist).
	DurationsMS map[string]int64 `json:"durations_ms"`
}

// Prediction is one row of a batch report.
type Prediction struct {
	Image          string             `json:"image"`
	TrueLabel      string             `json:"true_label"`
	PredLabel      constants.Category `json:"pred_label"`
	Confidence     float64            `json:"confidence"`
	Method         constants.Method   `json:"method"`
	ProcessingTime time.Duration      `json:"processing_time"`
	RecordPath     string             `json:"record_path,omitempty"`
	Error          string             `json:"error,omitempty"`
}

// Labeled reports whether the row's true label belongs to the closed category set.
func (p Prediction) Labeled() bool {
	_, ok := constants.ParseCategory(p.TrueLabel)
	return ok
}

// Correct reports whether a labeled, successful row was predicted correctly.
func (p Prediction) Correct() bool {
	if p.Error != "" || !p.Labeled() {
		return false
	}
	want, _ := constants.ParseCategory(p.TrueLabel)
	return want == p.PredLabel
}

// Artifact is what a persistence sink receives for one finished document.
type Artifact struct {
	Record ProcessingRecord
	// Path is the JSON artifact location, empty until the artifact writer ran.
	Path      string
	TrueLabel string
}
