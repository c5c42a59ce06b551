package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockClient is a mock implementation of Client for testing
type MockClient struct {
	MockResponse *Response
	MockError    error
	CallCount    int
	LastPrompt   string
}

func (m *MockClient) Invoke(ctx context.Context, prompt string) (*Response, error) {
	m.CallCount++
	m.LastPrompt = prompt
	return m.MockResponse, m.MockError
}

func (m *MockClient) GetModelName() string {
	return "mock-model"
}

func TestSurfacedPassesThroughSuccess(t *testing.T) {
	inner := &MockClient{MockResponse: &Response{Content: "ok"}}

	resp, err := Surfaced(inner).Invoke(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content)
	assert.Equal(t, 1, inner.CallCount)
	assert.Equal(t, "p", inner.LastPrompt)
}

func TestSurfacedTurnsErrorIntoContent(t *testing.T) {
	inner := &MockClient{MockError: errors.New("connection refused")}

	resp, err := Surfaced(inner).Invoke(context.Background(), "p")
	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, "error", resp.StopReason)
	assert.Contains(t, resp.Content, "connection refused")
	assert.Contains(t, resp.Content, "mock-model")
}

func TestSurfacedNilResponse(t *testing.T) {
	resp, err := Surfaced(&MockClient{}).Invoke(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, "", resp.Content)
}

func TestSurfacedDoesNotDoubleWrap(t *testing.T) {
	inner := &MockClient{}
	s := Surfaced(inner)
	assert.Same(t, s, Surfaced(s))
	assert.Same(t, inner, s.Unwrap())
	assert.Equal(t, "mock-model", s.GetModelName())
}
