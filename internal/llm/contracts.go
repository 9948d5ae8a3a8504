package llm

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Status classifies how a generate call ended.
type Status int

const (
	StatusOK Status = iota
	// StatusUnavailable covers refused connections, timeouts, non-2xx responses and undecodable bodies.
	StatusUnavailable
	// StatusEmpty is a successful call that produced no text.
	StatusEmpty
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusUnavailable:
		return "unavailable"
	case StatusEmpty:
		return "empty"
	default:
		return "unknown"
	}
}

// Outcome is the result of one generate call. Transport failures never surface as errors
// to callers; they are folded into Status.
type Outcome struct {
	Text   string
	Status Status
	Err    error
}

// Usable reports whether the outcome carries text worth parsing.
func (o Outcome) Usable() bool {
	return o.Status == StatusOK && strings.TrimSpace(o.Text) != ""
}

type GenerateOptions struct {
	Temperature float64
	Timeout     time.Duration // 0 = client default
}

// Generator is the interface the classifier and extractor depend on.
type Generator interface {
	Generate(ctx context.Context, prompt string, opts GenerateOptions) Outcome
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, prompt string, opts GenerateOptions) Outcome

func (f GeneratorFunc) Generate(ctx context.Context, prompt string, opts GenerateOptions) Outcome {
	return f(ctx, prompt, opts)
}

var ErrDisabled = errors.New("inference backend disabled")

// Disabled is a Generator that is never available.
type Disabled struct{}

func (Disabled) Generate(context.Context, string, GenerateOptions) Outcome {
	return Outcome{Status: StatusUnavailable, Err: ErrDisabled}
}
