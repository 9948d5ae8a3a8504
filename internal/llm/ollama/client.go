// Package ollama implements llm.Generator against a local Ollama server's /api/generate endpoint.
package ollama

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"

	"github.com/joseph-ayodele/docparse/internal/llm"
)

const (
	DefaultBaseURL = "http://localhost:11434"
	DefaultModel   = "phi3"
	DefaultTimeout = 120 * time.Second

	generatePath = "/api/generate"
)

var errInvalidBody = errors.New("invalid response body")

type Config struct {
	BaseURL string // server root, or the full generate URL
	Model   string
	Timeout time.Duration
	// RateLimit caps requests per second across all callers of this client. 0 disables it.
	RateLimit  float64
	HTTPClient *http.Client
}

type Client struct {
	cfg      Config
	endpoint string
	http     *http.Client
	limiter  *rate.Limiter
	logger   *slog.Logger
}

type generateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	Stream  bool            `json:"stream"`
	Options generateOptions `json:"options"`
}

type generateOptions struct {
	Temperature float64 `json:"temperature"`
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}

	c := &Client{
		cfg:      cfg,
		endpoint: endpointFor(cfg.BaseURL),
		http:     hc,
		logger:   logger,
	}
	if cfg.RateLimit > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}
	return c
}

func endpointFor(base string) string {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	if strings.HasSuffix(base, generatePath) {
		return base
	}
	return base + generatePath
}

func (c *Client) Model() string { return c.cfg.Model }

// Generate performs one non-streaming generate call. Every failure is reported through the Outcome.
func (c *Client) Generate(ctx context.Context, prompt string, opts llm.GenerateOptions) llm.Outcome {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = c.cfg.Timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			c.logger.Warn("ollama.generate.rate_limited", "error", err)
			return llm.Outcome{Status: llm.StatusUnavailable, Err: fmt.Errorf("rate limit: %w", err)}
		}
	}

	body := generateRequest{
		Model:   c.cfg.Model,
		Prompt:  prompt,
		Stream:  false,
		Options: generateOptions{Temperature: opts.Temperature},
	}

	raw, status, err := llm.SendJSON(ctx, c.http, c.endpoint, body, nil, c.logger)
	if err != nil {
		c.logger.Warn("ollama.generate.unavailable", "model", c.cfg.Model, "status", status, "error", err)
		return llm.Outcome{Status: llm.StatusUnavailable, Err: err}
	}
	if !gjson.ValidBytes(raw) {
		c.logger.Warn("ollama.generate.invalid_body", "model", c.cfg.Model, "bytes", len(raw))
		return llm.Outcome{Status: llm.StatusUnavailable, Err: errInvalidBody}
	}

	text := gjson.GetBytes(raw, "response").String()
	if strings.TrimSpace(text) == "" {
		c.logger.Info("ollama.generate.empty", "model", c.cfg.Model)
		return llm.Outcome{Status: llm.StatusEmpty}
	}
	return llm.Outcome{Text: text, Status: llm.StatusOK}
}
