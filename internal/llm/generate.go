package llm

import (
	"context"
	"log/slog"
)

// Decision records what happened to a structured generate request.
type Decision string

const (
	DecisionAccepted    Decision = "accepted"
	DecisionUnavailable Decision = "unavailable"
	DecisionUnparseable Decision = "unparseable"
)

// GenerateObject calls gen and parses a single JSON object out of the answer.
// The returned object is nil unless the decision is DecisionAccepted.
func GenerateObject(ctx context.Context, gen Generator, prompt string, opts GenerateOptions, logger *slog.Logger) (map[string]any, Decision) {
	if logger == nil {
		logger = slog.Default()
	}
	if gen == nil {
		return nil, DecisionUnavailable
	}

	out := gen.Generate(ctx, prompt, opts)
	if !out.Usable() {
		logger.Debug("llm.generate.unusable", "status", out.Status.String(), "error", out.Err)
		return nil, DecisionUnavailable
	}

	parsed, ok := ParseObject(out.Text)
	if !ok {
		logger.Warn("llm.generate.unparseable", "response_chars", len(out.Text))
		return nil, DecisionUnparseable
	}
	if parsed.Repaired {
		logger.Debug("llm.generate.repaired")
	}
	return parsed.Object, DecisionAccepted
}
