package llm

import (
	"context"
	"fmt"
	"strings"

	genai "google.golang.org/genai"
)

const defaultGoogleModel = "gemini-2.0-flash"

// GoogleClient implements the Client interface using the Google GenAI SDK.
type GoogleClient struct {
	client *genai.Client
	model  string
	config *genai.GenerateContentConfig
}

// NewGoogleClient creates a Gemini API client.
func NewGoogleClient(ctx context.Context, apiKey string, opts Options) (*GoogleClient, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("google client requires an API key")
	}

	cc := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if base := strings.TrimSpace(opts.BaseURL); base != "" {
		cc.HTTPOptions.BaseURL = base
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create Google GenAI client: %w", err)
	}

	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(opts.Temperature)),
	}
	if opts.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(opts.MaxTokens)
	}

	return &GoogleClient{
		client: client,
		model:  strings.TrimPrefix(opts.modelOr(defaultGoogleModel), "models/"),
		config: cfg,
	}, nil
}

func (c *GoogleClient) GetModelName() string {
	return c.model
}

func (c *GoogleClient) Invoke(ctx context.Context, prompt string) (*Response, error) {
	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(prompt), c.config)
	if err != nil {
		return nil, fmt.Errorf("google genai completion failed: %w", err)
	}

	out := &Response{Model: c.model, Content: resp.Text()}
	if len(resp.Candidates) > 0 {
		out.StopReason = string(resp.Candidates[0].FinishReason)
	} else if resp.PromptFeedback != nil {
		out.StopReason = string(resp.PromptFeedback.BlockReason)
	}
	if resp.UsageMetadata != nil {
		out.Usage = Usage{
			PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
			CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
		}
	}
	return out, nil
}
