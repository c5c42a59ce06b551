package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/codefionn/geocopilot/internal/consts"
)

const (
	defaultOllamaBaseURL = "http://localhost:11434"
	defaultOllamaModel   = "llama3"
)

// OllamaClient implements the Client interface for the Ollama REST API.
type OllamaClient struct {
	baseURL     string
	model       string
	temperature float64
	maxTokens   int
	client      *http.Client
}

// NewOllamaClient creates a new Ollama client for the provided options.
func NewOllamaClient(opts Options) (*OllamaClient, error) {
	model := opts.modelOr(defaultOllamaModel)
	if strings.ContainsAny(model, " \t\n") {
		return nil, fmt.Errorf("ollama client: invalid model identifier %q", model)
	}

	return &OllamaClient{
		baseURL:     normalizeOllamaBaseURL(opts.BaseURL),
		model:       model,
		temperature: opts.Temperature,
		maxTokens:   opts.MaxTokens,
		client: &http.Client{
			Timeout: consts.Timeout2Minutes,
		},
	}, nil
}

func (c *OllamaClient) GetModelName() string {
	return c.model
}

// BaseURL returns the normalized server address.
func (c *OllamaClient) BaseURL() string {
	return c.baseURL
}

func (c *OllamaClient) Invoke(ctx context.Context, prompt string) (*Response, error) {
	payload := ollamaChatRequest{
		Model:    c.model,
		Stream:   false,
		Messages: []ollamaChatMessage{{Role: "user", Content: prompt}},
		Options: ollamaOptions{
			Temperature: c.temperature,
			NumPredict:  c.maxTokens,
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode ollama request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create ollama request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("ollama completion failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, consts.BufferSize64KB))
		return nil, fmt.Errorf("ollama completion failed: status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var chatResp ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return nil, fmt.Errorf("ollama completion failed: %w", err)
	}
	if chatResp.Error != "" {
		return nil, fmt.Errorf("ollama completion failed: %s", chatResp.Error)
	}

	out := &Response{
		Model:      chatResp.Model,
		StopReason: strings.TrimSpace(chatResp.DoneReason),
		Usage: Usage{
			PromptTokens:     chatResp.PromptEvalCount,
			CompletionTokens: chatResp.EvalCount,
		},
	}
	if chatResp.Message != nil {
		out.Content = chatResp.Message.Content
	}
	if out.StopReason == "" && chatResp.Done {
		out.StopReason = "stop"
	}
	return out, nil
}

// Ping checks that the Ollama server answers on /api/tags within two
// seconds and returns the names of the locally available models.
func (c *OllamaClient) Ping(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, consts.Timeout2Seconds)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama server is not reachable at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ollama server at %s answered with status %d", c.baseURL, resp.StatusCode)
	}

	var tags struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return nil, fmt.Errorf("decode ollama tags: %w", err)
	}

	names := make([]string, 0, len(tags.Models))
	for _, m := range tags.Models {
		names = append(names, m.Name)
	}
	return names, nil
}

type ollamaChatRequest struct {
	Model    string              `json:"model"`
	Messages []ollamaChatMessage `json:"messages"`
	Stream   bool                `json:"stream"`
	Options  ollamaOptions       `json:"options"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type ollamaChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatResponse struct {
	Model           string             `json:"model"`
	CreatedAt       string             `json:"created_at"`
	Message         *ollamaChatMessage `json:"message"`
	Done            bool               `json:"done"`
	DoneReason      string             `json:"done_reason"`
	PromptEvalCount int                `json:"prompt_eval_count"`
	EvalCount       int                `json:"eval_count"`
	Error           string             `json:"error"`
}

func normalizeOllamaBaseURL(baseURL string) string {
	url := strings.TrimSpace(baseURL)
	if url == "" {
		return defaultOllamaBaseURL
	}

	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		url = "http://" + url
	}

	return strings.TrimRight(url, "/")
}
