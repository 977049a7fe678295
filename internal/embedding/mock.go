package embedding

import (
	"context"
	"hash/fnv"
	"math"
)

const mockDim = 16

// MockClient is a deterministic embedding client for testing and local runs.
// Identical text always yields an identical unit-length vector. Set Err to
// simulate an unavailable backend, or Fixed to pin the next responses.
type MockClient struct {
	Err   error
	Fixed map[string][]float32

	// Call tracking for assertions
	EmbedCalls []string
}

func NewMockClient() *MockClient {
	return &MockClient{}
}

func (c *MockClient) Embed(ctx context.Context, text string) ([]float32, error) {
	c.EmbedCalls = append(c.EmbedCalls, text)
	if c.Err != nil {
		return nil, c.Err
	}
	if v, ok := c.Fixed[text]; ok {
		return v, nil
	}
	return deterministicVector(text), nil
}

// deterministicVector hashes the text into a fixed-dimension unit vector.
// Token-level hashing keeps overlapping texts closer than disjoint ones,
// which is enough signal for similarity-dependent code paths.
func deterministicVector(text string) []float32 {
	vec := make([]float64, mockDim)
	start := 0
	for i := 0; i <= len(text); i++ {
		if i == len(text) || text[i] == ' ' {
			if i > start {
				h := fnv.New32a()
				_, _ = h.Write([]byte(text[start:i]))
				sum := h.Sum32()
				vec[sum%mockDim] += 1.0
				vec[(sum>>8)%mockDim] += 0.5
			}
			start = i + 1
		}
	}

	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	if norm == 0 {
		vec[0] = 1
		norm = 1
	}
	norm = math.Sqrt(norm)

	out := make([]float32, mockDim)
	for i, v := range vec {
		out[i] = float32(v / norm)
	}
	return out
}

// Reset clears recorded calls and injected behavior.
func (c *MockClient) Reset() {
	c.Err = nil
	c.Fixed = nil
	c.EmbedCalls = nil
}
