package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeOllamaBaseURL(t *testing.T) {
	tests := map[string]string{
		"":                        "http://localhost:11434",
		"localhost:11434":         "http://localhost:11434",
		"https://ollama.local/":   "https://ollama.local",
		"  http://10.0.0.2:1234 ": "http://10.0.0.2:1234",
	}
	for in, want := range tests {
		assert.Equal(t, want, normalizeOllamaBaseURL(in), "input %q", in)
	}
}

func TestOllamaClientDefaults(t *testing.T) {
	c, err := NewOllamaClient(Options{})
	require.NoError(t, err)
	assert.Equal(t, "llama3", c.GetModelName())
	assert.Equal(t, "http://localhost:11434", c.BaseURL())

	_, err = NewOllamaClient(Options{Model: "bad model"})
	assert.Error(t, err)
}

func TestOllamaClientInvoke(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)

		var req ollamaChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "llama3", req.Model)
		assert.False(t, req.Stream)
		assert.Zero(t, req.Options.Temperature)
		require.Len(t, req.Messages, 1)
		assert.Equal(t, "user", req.Messages[0].Role)
		assert.Equal(t, "write code", req.Messages[0].Content)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"model":             "llama3",
			"message":           map[string]string{"role": "assistant", "content": "```python\nprint(1)\n```"},
			"done":              true,
			"prompt_eval_count": 12,
			"eval_count":        7,
		})
	}))
	defer server.Close()

	c, err := NewOllamaClient(Options{BaseURL: server.URL})
	require.NoError(t, err)

	resp, err := c.Invoke(context.Background(), "write code")
	require.NoError(t, err)
	assert.Equal(t, "```python\nprint(1)\n```", resp.Content)
	assert.Equal(t, "stop", resp.StopReason)
	assert.Equal(t, Usage{PromptTokens: 12, CompletionTokens: 7}, resp.Usage)
}

func TestOllamaClientInvokeHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `model "llama3" not found`, http.StatusNotFound)
	}))
	defer server.Close()

	c, err := NewOllamaClient(Options{BaseURL: server.URL})
	require.NoError(t, err)

	_, err = c.Invoke(context.Background(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
	assert.Contains(t, err.Error(), "not found")
}

func TestOllamaClientInvokeUnreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	c, err := NewOllamaClient(Options{BaseURL: url})
	require.NoError(t, err)

	_, err = c.Invoke(context.Background(), "x")
	assert.Error(t, err)
}

func TestOllamaClientPing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/tags", r.URL.Path)
		_, _ = w.Write([]byte(`{"models":[{"name":"llama3:latest"},{"name":"mistral"}]}`))
	}))
	defer server.Close()

	c, err := NewOllamaClient(Options{BaseURL: server.URL})
	require.NoError(t, err)

	models, err := c.Ping(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"llama3:latest", "mistral"}, models)
}

func TestOllamaClientPingFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	c, err := NewOllamaClient(Options{BaseURL: server.URL})
	require.NoError(t, err)

	_, err = c.Ping(context.Background())
	assert.ErrorContains(t, err, "503")
}
