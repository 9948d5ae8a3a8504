// Package extract pulls category-specific fields from OCR text, by model with regex fallback.
package extract

import (
	"context"
	"log/slog"

	"github.com/joseph-ayodele/docparse/constants"
	"github.com/joseph-ayodele/docparse/internal/entity"
	"github.com/joseph-ayodele/docparse/internal/focus"
	"github.com/joseph-ayodele/docparse/internal/llm"
)

type Extractor struct {
	gen    llm.Generator
	schema *llm.Schema
	logger *slog.Logger
}

// New builds an Extractor. A nil generator behaves like a disabled backend.
func New(gen llm.Generator, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if gen == nil {
		gen = llm.Disabled{}
	}
	return &Extractor{
		gen:    gen,
		schema: llm.NewSchema(llm.ExtractionResponseSchema()),
		logger: logger,
	}
}

// Extract always returns a non-empty field map containing the category's required keys.
func (e *Extractor) Extract(ctx context.Context, text string, category constants.Category, useModel bool) entity.ExtractionResult {
	if !category.Valid() {
		e.logger.Warn("extract.unknown_category", "category", category)
		category = constants.News
	}
	if !useModel {
		return e.byRules(text, category, constants.MethodRules, constants.FallbackNone)
	}

	prompt := llm.BuildExtractionPrompt(category, focus.Focus(text, category))
	obj, decision := llm.GenerateObject(ctx, e.gen, prompt, llm.GenerateOptions{Temperature: 0}, e.logger)
	switch decision {
	case llm.DecisionUnavailable:
		return e.fallback(text, category, constants.FallbackUnavailable)
	case llm.DecisionUnparseable:
		return e.fallback(text, category, constants.FallbackUnparseable)
	}

	if raw, ok := obj["fields"].(map[string]any); ok && len(raw) == 0 {
		return e.fallback(text, category, constants.FallbackEmptyFields)
	}
	if err := e.schema.Validate(obj); err != nil {
		e.logger.Debug("extract.model.schema_mismatch", "category", category, "error", err)
		return e.fallback(text, category, constants.FallbackSchemaMismatch)
	}

	label, _ := obj["document_type"].(string)
	if got, ok := constants.ParseCategory(label); !ok || got != category {
		e.logger.Info("extract.model.category_mismatch", "want", category, "got", label)
		return e.fallback(text, category, constants.FallbackCategoryMismatch)
	}

	fields, _ := llm.NormalizeFields(obj["fields"].(map[string]any), e.logger)
	if len(fields) == 0 {
		return e.fallback(text, category, constants.FallbackEmptyFields)
	}
	if v, ok := fields.Value("content"); ok {
		fields["content"] = entity.Str(focus.Truncate(v, ContentMaxChars))
	}
	fields.EnsureKeys(RequiredKeys(category)...)

	e.logger.Debug("extract.model.ok", "category", category, "fields", len(fields), "non_null", fields.NonNull())
	return entity.ExtractionResult{
		Category: category,
		Fields:   fields,
		Method:   constants.MethodModel,
	}
}

func (e *Extractor) fallback(text string, category constants.Category, reason constants.FallbackReason) entity.ExtractionResult {
	e.logger.Info("extract.fallback", "category", category, "reason", reason)
	return e.byRules(text, category, constants.MethodModelFallbackToRules, reason)
}

func (e *Extractor) byRules(text string, category constants.Category, method constants.Method, reason constants.FallbackReason) entity.ExtractionResult {
	return entity.ExtractionResult{
		Category:       category,
		Fields:         Rules(text, category),
		Method:         method,
		FallbackReason: reason,
	}
}
