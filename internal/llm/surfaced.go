package llm

import (
	"context"
	"fmt"

	"github.com/codefionn/geocopilot/internal/logger"
)

// SurfacedClient converts backend failures into a Response whose content
// explains the failure, so that a turn never aborts on a model error.
type SurfacedClient struct {
	inner Client
}

// Surfaced wraps c. Wrapping an already surfaced client returns it unchanged.
func Surfaced(c Client) *SurfacedClient {
	if s, ok := c.(*SurfacedClient); ok {
		return s
	}
	return &SurfacedClient{inner: c}
}

// Unwrap returns the wrapped client.
func (s *SurfacedClient) Unwrap() Client {
	return s.inner
}

func (s *SurfacedClient) GetModelName() string {
	return s.inner.GetModelName()
}

// Invoke never returns an error.
func (s *SurfacedClient) Invoke(ctx context.Context, prompt string) (*Response, error) {
	resp, err := s.inner.Invoke(ctx, prompt)
	if err != nil {
		logger.Warn("model %s failed: %v", s.inner.GetModelName(), err)
		return &Response{
			Content:    ErrorContent(s.inner.GetModelName(), err),
			Model:      s.inner.GetModelName(),
			StopReason: "error",
		}, nil
	}
	if resp == nil {
		return &Response{Model: s.inner.GetModelName()}, nil
	}
	return resp, nil
}

// ErrorContent is the assistant-visible text for a failed invocation.
func ErrorContent(model string, err error) string {
	return fmt.Sprintf("Error: could not reach the language model %q: %v", model, err)
}
