package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config holds all application configuration
type Config struct {
	LLM    LLMConfig
	OCR    OCRConfig
	Output OutputConfig
	Batch  BatchConfig
	Store  StoreConfig
	Server ServerConfig
}

// LLMConfig holds inference backend configuration
type LLMConfig struct {
	URL         string
	Model       string
	Timeout     time.Duration
	Temperature float64
	Disabled    bool
	RateLimit   float64 // requests per second, 0 = unlimited
}

// OCRConfig holds OCR-related configuration
type OCRConfig struct {
	Tesseract   string
	Lang        string
	TessdataDir string
}

type OutputConfig struct {
	Dir      string
	Annotate bool
}

type BatchConfig struct {
	Workers         int
	DocumentTimeout time.Duration
	Limit           int
}

// StoreConfig configures the optional run store. Empty DSN disables it.
type StoreConfig struct {
	DSN string
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	GRPCAddr string
}

// fileConfig mirrors Config for TOML decoding. Pointers distinguish "unset" from zero values.
type fileConfig struct {
	LLM struct {
		URL         *string  `toml:"url"`
		Model       *string  `toml:"model"`
		Timeout     *string  `toml:"timeout"`
		Temperature *float64 `toml:"temperature"`
		Disabled    *bool    `toml:"disabled"`
		RateLimit   *float64 `toml:"rate_limit"`
	} `toml:"llm"`
	OCR struct {
		Tesseract   *string `toml:"tesseract"`
		Lang        *string `toml:"lang"`
		TessdataDir *string `toml:"tessdata_dir"`
	} `toml:"ocr"`
	Output struct {
		Dir      *string `toml:"dir"`
		Annotate *bool   `toml:"annotate"`
	} `toml:"output"`
	Batch struct {
		Workers         *int    `toml:"workers"`
		DocumentTimeout *string `toml:"document_timeout"`
		Limit           *int    `toml:"limit"`
	} `toml:"batch"`
	Store struct {
		DSN *string `toml:"dsn"`
	} `toml:"store"`
	Server struct {
		GRPCAddr *string `toml:"grpc_addr"`
	} `toml:"server"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		LLM: LLMConfig{
			URL:         "http://localhost:11434",
			Model:       "phi3",
			Timeout:     120 * time.Second,
			Temperature: 0,
		},
		OCR: OCRConfig{
			Tesseract: "tesseract",
			Lang:      "en",
		},
		Output: OutputConfig{
			Dir: "outputs",
		},
		Batch: BatchConfig{
			Workers:         4,
			DocumentTimeout: 5 * time.Minute,
		},
		Server: ServerConfig{
			GRPCAddr: ":8080",
		},
	}
}

// LoadConfig layers defaults, an optional TOML file, then environment variables.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if strings.TrimSpace(path) != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, NewAppError(CodeConfig, "load config file", err)
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var fc fileConfig
	if err := toml.Unmarshal(raw, &fc); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}

	setString(&c.LLM.URL, fc.LLM.URL)
	setString(&c.LLM.Model, fc.LLM.Model)
	if err := setDuration(&c.LLM.Timeout, fc.LLM.Timeout); err != nil {
		return fmt.Errorf("llm.timeout: %w", err)
	}
	if fc.LLM.Temperature != nil {
		c.LLM.Temperature = *fc.LLM.Temperature
	}
	if fc.LLM.Disabled != nil {
		c.LLM.Disabled = *fc.LLM.Disabled
	}
	if fc.LLM.RateLimit != nil {
		c.LLM.RateLimit = *fc.LLM.RateLimit
	}

	setString(&c.OCR.Tesseract, fc.OCR.Tesseract)
	setString(&c.OCR.Lang, fc.OCR.Lang)
	setString(&c.OCR.TessdataDir, fc.OCR.TessdataDir)

	setString(&c.Output.Dir, fc.Output.Dir)
	if fc.Output.Annotate != nil {
		c.Output.Annotate = *fc.Output.Annotate
	}

	if fc.Batch.Workers != nil {
		c.Batch.Workers = *fc.Batch.Workers
	}
	if fc.Batch.Limit != nil {
		c.Batch.Limit = *fc.Batch.Limit
	}
	if err := setDuration(&c.Batch.DocumentTimeout, fc.Batch.DocumentTimeout); err != nil {
		return fmt.Errorf("batch.document_timeout: %w", err)
	}

	setString(&c.Store.DSN, fc.Store.DSN)
	setString(&c.Server.GRPCAddr, fc.Server.GRPCAddr)
	return nil
}

func (c *Config) applyEnv() {
	c.LLM.URL = getEnv("OLLAMA_URL", c.LLM.URL)
	c.LLM.Model = getEnv("OLLAMA_MODEL", c.LLM.Model)
	c.LLM.Timeout = getEnvAsDuration("OLLAMA_TIMEOUT", c.LLM.Timeout)
	c.LLM.Disabled = getEnvAsBool("LLM_DISABLED", c.LLM.Disabled)
	c.LLM.RateLimit = getEnvAsFloat64("LLM_RATE_LIMIT", c.LLM.RateLimit)

	c.OCR.Lang = getEnv("OCR_LANG", c.OCR.Lang)
	c.OCR.Tesseract = getEnv("TESSERACT_BIN", c.OCR.Tesseract)
	c.OCR.TessdataDir = getEnv("TESSDATA_PREFIX", c.OCR.TessdataDir)

	c.Output.Dir = getEnv("OUTPUT_DIR", c.Output.Dir)

	c.Batch.Workers = getEnvAsInt("BATCH_WORKERS", c.Batch.Workers)
	c.Batch.DocumentTimeout = getEnvAsDuration("DOC_TIMEOUT", c.Batch.DocumentTimeout)

	c.Store.DSN = getEnv("STORE_DSN", c.Store.DSN)
	c.Server.GRPCAddr = getEnv("GRPC_ADDR", c.Server.GRPCAddr)
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setDuration(dst *time.Duration, v *string) error {
	if v == nil {
		return nil
	}
	d, err := time.ParseDuration(*v)
	if err != nil {
		return err
	}
	*dst = d
	return nil
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Validate checks the loaded configuration
func (c *Config) Validate() error {
	if !c.LLM.Disabled {
		if strings.TrimSpace(c.LLM.URL) == "" {
			return NewAppError(CodeConfig, "OLLAMA_URL is required unless the model is disabled", ErrInvalidInput)
		}
		if strings.TrimSpace(c.LLM.Model) == "" {
			return NewAppError(CodeConfig, "OLLAMA_MODEL is required unless the model is disabled", ErrInvalidInput)
		}
		if c.LLM.Timeout <= 0 {
			return NewAppError(CodeConfig, "OLLAMA_TIMEOUT must be positive", ErrInvalidInput)
		}
	}
	if c.LLM.RateLimit < 0 {
		return NewAppError(CodeConfig, "LLM_RATE_LIMIT must not be negative", ErrInvalidInput)
	}
	if strings.TrimSpace(c.OCR.Lang) == "" {
		return NewAppError(CodeConfig, "OCR_LANG is required", ErrInvalidInput)
	}
	if strings.TrimSpace(c.Output.Dir) == "" {
		return NewAppError(CodeConfig, "OUTPUT_DIR is required", ErrInvalidInput)
	}
	if c.Batch.Workers <= 0 {
		return NewAppError(CodeConfig, "BATCH_WORKERS must be positive", ErrInvalidInput)
	}
	if c.Batch.Limit < 0 {
		return NewAppError(CodeConfig, "batch limit must not be negative", ErrInvalidInput)
	}
	if c.Server.GRPCAddr == "" {
		return NewAppError(CodeConfig, "GRPC_ADDR is required", ErrInvalidInput)
	}
	return nil
}
