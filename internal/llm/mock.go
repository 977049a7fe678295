package llm

import (
	"context"
	"strings"
	"sync"

	"github.com/dialectic-sh/dialectic/internal/domain"
)

const (
	mockStageText   = "The evidence is consistent with the claim under review."
	mockVerdictJSON = `{"verdict":"uncertain","confidence":50,"explanation":"Insufficient evidence to decide.","citations":[]}`
)

// MockClient is a configurable generation client for testing and offline
// development. Scripted responses are consumed front to back; once the queue
// is empty, prompts that ask for JSON get a neutral verdict and everything
// else gets GenerateResponse. Safe for concurrent use.
type MockClient struct {
	mu sync.Mutex

	GenerateResponse string
	GenerateError    error
	Responses        []string

	// Call tracking for assertions
	GenerateCalls []domain.GenerateRequest
}

func NewMockClient() *MockClient {
	return &MockClient{
		GenerateResponse: mockStageText,
	}
}

func (c *MockClient) next(req domain.GenerateRequest) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.GenerateCalls = append(c.GenerateCalls, req)
	if c.GenerateError != nil {
		return "", c.GenerateError
	}
	if len(c.Responses) > 0 {
		resp := c.Responses[0]
		c.Responses = c.Responses[1:]
		return resp, nil
	}
	if strings.Contains(req.Prompt, "JSON") {
		return mockVerdictJSON, nil
	}
	return c.GenerateResponse, nil
}

func (c *MockClient) Generate(ctx context.Context, req domain.GenerateRequest) (string, error) {
	return c.next(req)
}

func (c *MockClient) GenerateStream(ctx context.Context, req domain.GenerateRequest) (<-chan domain.StreamDelta, error) {
	text, err := c.next(req)
	if err != nil {
		return nil, err
	}

	out := make(chan domain.StreamDelta)
	go func() {
		defer close(out)
		for _, token := range strings.SplitAfter(text, " ") {
			select {
			case out <- domain.StreamDelta{Content: token}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// CallCount returns how many generate calls have been recorded.
func (c *MockClient) CallCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.GenerateCalls)
}

// Reset clears all recorded calls and resets responses to defaults.
func (c *MockClient) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.GenerateResponse = mockStageText
	c.GenerateError = nil
	c.Responses = nil
	c.GenerateCalls = nil
}
