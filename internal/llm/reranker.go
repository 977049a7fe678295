package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dialectic-sh/dialectic/internal/domain"
)

// LLMReranker scores query-document relevance with the generation backend.
// The model returns one 0-100 score per document, normalized here to [0,1].
// A malformed response is an error; callers keep their fused ordering.
type LLMReranker struct {
	gen domain.GenerationClient
}

func NewLLMReranker(gen domain.GenerationClient) *LLMReranker {
	return &LLMReranker{gen: gen}
}

func (r *LLMReranker) Rerank(ctx context.Context, query string, docs []string) ([]float64, error) {
	if len(docs) == 0 {
		return nil, nil
	}

	var sb strings.Builder
	for i, doc := range docs {
		sb.WriteString(fmt.Sprintf("[%d] %s\n", i, doc))
	}

	raw, err := r.gen.Generate(ctx, domain.GenerateRequest{
		Prompt:      fmt.Sprintf(rerankPrompt, query, len(docs), sb.String(), len(docs)),
		Temperature: 0.1,
		MaxTokens:   512,
	})
	if err != nil {
		return nil, fmt.Errorf("rerank: %w", err)
	}

	// Strip markdown fences if present
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")
	raw = strings.TrimSpace(raw)

	var scores []float64
	if err := json.Unmarshal([]byte(raw), &scores); err != nil {
		return nil, fmt.Errorf("parse rerank scores: %w (raw: %s)", err, raw)
	}
	if len(scores) != len(docs) {
		return nil, fmt.Errorf("rerank returned %d scores for %d documents", len(scores), len(docs))
	}

	out := make([]float64, len(scores))
	for i, s := range scores {
		if s < 0 {
			s = 0
		}
		if s > 100 {
			s = 100
		}
		out[i] = s / 100.0
	}
	return out, nil
}
