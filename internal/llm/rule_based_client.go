package llm

import (
	"context"
	"fmt"

	"github.com/codefionn/geocopilot/internal/catalog"
)

const RuleBasedModelName = "rule-based"

// RuleBasedClient is the deterministic stand-in for a live model. It
// classifies the utterance against the category catalog and returns the
// matching canned script in a ```python fence. It performs no I/O.
type RuleBasedClient struct {
	catalog *catalog.Catalog
}

// NewRuleBasedClient returns a client over c, or over the embedded catalog when c is nil.
func NewRuleBasedClient(c *catalog.Catalog) *RuleBasedClient {
	if c == nil {
		c = catalog.Default()
	}
	return &RuleBasedClient{catalog: c}
}

func (c *RuleBasedClient) GetModelName() string {
	return RuleBasedModelName
}

// Classify exposes the category decision for a prompt or bare utterance.
func (c *RuleBasedClient) Classify(promptOrUtterance string) catalog.Category {
	return c.catalog.Classify(ExtractUtterance(promptOrUtterance))
}

func (c *RuleBasedClient) Invoke(ctx context.Context, prompt string) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	utterance := ExtractUtterance(prompt)
	category := c.catalog.Classify(utterance)

	script, err := c.catalog.Script(category, utterance)
	if err != nil {
		return nil, err
	}

	return &Response{
		Content:    fmt.Sprintf("```python\n%s\n```", script),
		Model:      RuleBasedModelName,
		StopReason: string(category),
	}, nil
}
