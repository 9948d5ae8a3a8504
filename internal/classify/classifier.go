// Package classify assigns a document category, by model when asked and available, by rules otherwise.
package classify

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/joseph-ayodele/docparse/constants"
	"github.com/joseph-ayodele/docparse/internal/entity"
	"github.com/joseph-ayodele/docparse/internal/focus"
	"github.com/joseph-ayodele/docparse/internal/llm"
)

// DefaultModelConfidence is used when the model names a valid category but no usable confidence.
const DefaultModelConfidence = 0.6

type Classifier struct {
	gen    llm.Generator
	rules  []Rule
	schema *llm.Schema
	logger *slog.Logger
}

type Option func(*Classifier)

// WithRules replaces the ordered rule list.
func WithRules(rules []Rule) Option {
	return func(c *Classifier) {
		if len(rules) > 0 {
			c.rules = rules
		}
	}
}

// New builds a Classifier. A nil generator behaves like a disabled backend.
func New(gen llm.Generator, logger *slog.Logger, opts ...Option) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}
	if gen == nil {
		gen = llm.Disabled{}
	}
	c := &Classifier{
		gen:    gen,
		rules:  DefaultRules,
		schema: llm.NewSchema(llm.ClassificationResponseSchema()),
		logger: logger,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Classify always returns a category from the closed set with confidence in [0,1].
func (c *Classifier) Classify(ctx context.Context, text string, useModel bool) entity.ClassificationResult {
	if !useModel {
		return c.byRules(text, constants.MethodRules, constants.FallbackNone)
	}

	prompt := llm.BuildClassificationPrompt(focus.Truncate(strings.TrimSpace(text), focus.MaxChars))
	obj, decision := llm.GenerateObject(ctx, c.gen, prompt, llm.GenerateOptions{Temperature: 0}, c.logger)
	switch decision {
	case llm.DecisionUnavailable:
		return c.fallback(text, constants.FallbackUnavailable)
	case llm.DecisionUnparseable:
		return c.fallback(text, constants.FallbackUnparseable)
	}

	if err := c.schema.Validate(obj); err != nil {
		c.logger.Debug("classify.model.schema_mismatch", "error", err)
		return c.fallback(text, constants.FallbackUnknownCategory)
	}
	label, _ := obj["document_type"].(string)
	cat, ok := constants.ParseCategory(label)
	if !ok {
		c.logger.Info("classify.model.unknown_category", "label", label)
		return c.fallback(text, constants.FallbackUnknownCategory)
	}

	res := entity.ClassificationResult{
		Category:   cat,
		Confidence: modelConfidence(obj["confidence"]),
		Method:     constants.MethodModel,
	}
	c.logger.Debug("classify.model.ok", "category", res.Category, "confidence", res.Confidence)
	return res
}

func (c *Classifier) fallback(text string, reason constants.FallbackReason) entity.ClassificationResult {
	c.logger.Info("classify.fallback", "reason", reason)
	return c.byRules(text, constants.MethodModelFallbackToRules, reason)
}

func (c *Classifier) byRules(text string, method constants.Method, reason constants.FallbackReason) entity.ClassificationResult {
	r := MatchRule(c.rules, text)
	c.logger.Debug("classify.rules.match", "rule", r.Name, "category", r.Category)
	return entity.ClassificationResult{
		Category:       r.Category,
		Confidence:     Clamp(r.Confidence),
		Method:         method,
		FallbackReason: reason,
	}
}

func modelConfidence(v any) float64 {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return DefaultModelConfidence
		}
		f = parsed
	case fmt.Stringer:
		parsed, err := strconv.ParseFloat(t.String(), 64)
		if err != nil {
			return DefaultModelConfidence
		}
		f = parsed
	default:
		return DefaultModelConfidence
	}
	if math.IsNaN(f) {
		return DefaultModelConfidence
	}
	return Clamp(f)
}

// Clamp bounds v to [0,1].
func Clamp(v float64) float64 {
	switch {
	case math.IsNaN(v):
		return 0
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
