package ollama

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/docparse/internal/llm"
)

func TestGenerateSendsDeterministicRequest(t *testing.T) {
	bodies := make(chan []byte, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		bodies <- body
		_, _ = w.Write([]byte(`{"model":"phi3","response":"{\"document_type\":\"news\"}","done":true}`))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL + "/"}, nil)
	out := c.Generate(context.Background(), "classify me", llm.GenerateOptions{Temperature: 0})

	require.Equal(t, llm.StatusOK, out.Status)
	assert.Equal(t, `{"document_type":"news"}`, out.Text)

	var got map[string]any
	require.NoError(t, json.Unmarshal(<-bodies, &got))
	assert.Equal(t, "phi3", got["model"])
	assert.Equal(t, "classify me", got["prompt"])
	assert.Equal(t, false, got["stream"])
	assert.Equal(t, map[string]any{"temperature": float64(0)}, got["options"])
}

func TestGenerateFailuresBecomeOutcomes(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		want    llm.Status
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, "model not found", http.StatusNotFound)
			},
			want: llm.StatusUnavailable,
		},
		{
			name: "garbage body",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte("<html>proxy</html>"))
			},
			want: llm.StatusUnavailable,
		},
		{
			name: "empty response",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`{"response":""}`))
			},
			want: llm.StatusEmpty,
		},
		{
			name: "missing response",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`{"done":true}`))
			},
			want: llm.StatusEmpty,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			out := NewClient(Config{BaseURL: srv.URL}, nil).Generate(context.Background(), "p", llm.GenerateOptions{})
			assert.Equal(t, tt.want, out.Status)
			assert.False(t, out.Usable())
		})
	}
}

func TestGenerateUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	out := NewClient(Config{BaseURL: url}, nil).Generate(context.Background(), "p", llm.GenerateOptions{})
	assert.Equal(t, llm.StatusUnavailable, out.Status)
	assert.Error(t, out.Err)
}

func TestGenerateTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	start := time.Now()
	out := NewClient(Config{BaseURL: srv.URL}, nil).Generate(context.Background(), "p", llm.GenerateOptions{Timeout: 50 * time.Millisecond})
	assert.Equal(t, llm.StatusUnavailable, out.Status)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestGenerateRateLimitHonoursContext(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`{"response":"ok"}`))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, RateLimit: 0.001}, nil)
	first := c.Generate(context.Background(), "p", llm.GenerateOptions{})
	require.Equal(t, llm.StatusOK, first.Status)

	second := c.Generate(context.Background(), "p", llm.GenerateOptions{Timeout: 20 * time.Millisecond})
	assert.Equal(t, llm.StatusUnavailable, second.Status)
	assert.Equal(t, int32(1), calls.Load())
}

func TestEndpointFor(t *testing.T) {
	assert.Equal(t, "http://localhost:11434/api/generate", endpointFor("http://localhost:11434"))
	assert.Equal(t, "http://h:1/api/generate", endpointFor("http://h:1/api/generate"))
	c := NewClient(Config{}, nil)
	assert.Equal(t, DefaultModel, c.Model())
	assert.Equal(t, DefaultBaseURL+"/api/generate", c.endpoint)
}
