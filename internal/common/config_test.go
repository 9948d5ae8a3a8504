package common

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:11434", cfg.LLM.URL)
	assert.Equal(t, "phi3", cfg.LLM.Model)
	assert.Equal(t, 120*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, "en", cfg.OCR.Lang)
	assert.Equal(t, 4, cfg.Batch.Workers)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfigFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "docparse.toml")
	body := `
[llm]
model = "llama3"
timeout = "30s"
rate_limit = 2.5

[ocr]
lang = "en+lt"

[batch]
workers = 8
document_timeout = "1m"

[store]
dsn = "sqlite://runs.db"
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	t.Setenv("OLLAMA_MODEL", "mistral")
	t.Setenv("BATCH_WORKERS", "not-a-number")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "mistral", cfg.LLM.Model, "env wins over file")
	assert.Equal(t, 30*time.Second, cfg.LLM.Timeout)
	assert.InDelta(t, 2.5, cfg.LLM.RateLimit, 1e-9)
	assert.Equal(t, "en+lt", cfg.OCR.Lang)
	assert.Equal(t, 8, cfg.Batch.Workers, "unparseable env keeps file value")
	assert.Equal(t, time.Minute, cfg.Batch.DocumentTimeout)
	assert.Equal(t, "sqlite://runs.db", cfg.Store.DSN)
}

func TestLoadConfigBadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("[llm]\ntimeout = \"soon\"\n"), 0o644))

	_, err := LoadConfig(path)
	require.Error(t, err)
	var appErr *AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, CodeConfig, appErr.Code)

	_, err = LoadConfig(filepath.Join(dir, "missing.toml"))
	require.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LLM.URL = ""
	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidInput)

	cfg.LLM.Disabled = true
	assert.NoError(t, cfg.Validate(), "url is not needed when the model is disabled")

	cfg.Batch.Workers = 0
	assert.Error(t, cfg.Validate())
}
