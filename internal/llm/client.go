package llm

import (
	"context"
	"strings"
)

// Response is the text produced by a model backend.
type Response struct {
	Content    string `json:"content"`
	Model      string `json:"model,omitempty"`
	StopReason string `json:"stop_reason,omitempty"`
	Usage      Usage  `json:"usage,omitempty"`
}

// Usage reports token counts when the backend provides them.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens,omitempty"`
	CompletionTokens int `json:"completion_tokens,omitempty"`
}

// Client is the text-generation capability shared by live backends and the
// rule-based stand-in.
type Client interface {
	// Invoke sends a single prompt and returns the generated text.
	Invoke(ctx context.Context, prompt string) (*Response, error)
	// GetModelName returns the model name
	GetModelName() string
}

// Options are the generation parameters shared by all live backends.
type Options struct {
	Model       string
	BaseURL     string
	Temperature float64
	MaxTokens   int
}

func (o Options) modelOr(def string) string {
	if m := strings.TrimSpace(o.Model); m != "" {
		return m
	}
	return def
}

func (o Options) maxTokensOr(def int) int {
	if o.MaxTokens > 0 {
		return o.MaxTokens
	}
	return def
}
