package constants

// Stage is the canonical pipeline state of a document.
type Stage string

// Stable values, stored as-is in the run store.
const (
	StageOCRDone    Stage = "OCR_DONE"
	StageClassified Stage = "CLASSIFIED"
	StageExtracted  Stage = "EXTRACTED"
	StagePersisted  Stage = "PERSISTED"
	StageFailed     Stage = "FAILED" // terminal failure
)

// Method records which path produced a classification or extraction.
type Method string

const (
	MethodModel                Method = "model"
	MethodRules                Method = "rules"
	MethodModelFallbackToRules Method = "model_fallback_to_rules"
)

// FallbackReason explains why the model path was abandoned.
type FallbackReason string

const (
	FallbackNone             FallbackReason = ""
	FallbackUnavailable      FallbackReason = "unavailable"
	FallbackUnparseable      FallbackReason = "unparseable"
	FallbackUnknownCategory  FallbackReason = "unknown_category"
	FallbackSchemaMismatch   FallbackReason = "schema_mismatch"
	FallbackCategoryMismatch FallbackReason = "category_mismatch"
	FallbackEmptyFields      FallbackReason = "empty_fields"
)

// Duration keys in ProcessingRecord meta.
const (
	DurationOCR      = "ocr"
	DurationClassify = "classify"
	DurationExtract  = "extract"
	DurationPersist  = "persist"
)
