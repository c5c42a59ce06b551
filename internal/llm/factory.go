package llm

import (
	"context"
	"fmt"

	"github.com/codefionn/geocopilot/internal/config"
)

// NewFromConfig builds the client selected by cfg.Model.Backend. The
// returned client is not wrapped with Surfaced.
func NewFromConfig(ctx context.Context, cfg *config.Config) (Client, error) {
	opts := Options{
		Model:       cfg.Model.Name,
		BaseURL:     cfg.Model.BaseURL,
		Temperature: cfg.Model.Temperature,
		MaxTokens:   cfg.Model.MaxTokens,
	}
	key := cfg.APIKey().String()

	var (
		client Client
		err    error
	)
	switch cfg.Model.Backend {
	case config.BackendOllama, "":
		client, err = asClient(NewOllamaClient(opts))
	case config.BackendOpenAI:
		client, err = asClient(NewOpenAIClient(key, opts))
	case config.BackendAnthropic:
		client, err = asClient(NewAnthropicClient(key, opts))
	case config.BackendGoogle:
		client, err = asClient(NewGoogleClient(ctx, key, opts))
	case config.BackendRules:
		client = NewRuleBasedClient(nil)
	default:
		err = fmt.Errorf("unknown model backend %q", cfg.Model.Backend)
	}
	if err != nil {
		return nil, err
	}
	return client, nil
}

func asClient(c Client, err error) (Client, error) {
	if err != nil {
		return nil, err
	}
	return c, nil
}
