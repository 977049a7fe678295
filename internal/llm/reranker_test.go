package llm

import (
	"context"
	"math"
	"testing"
)

func TestRerankScores(t *testing.T) {
	mock := NewMockClient()
	mock.Responses = []string{"```json\n[90, 10, 55]\n```"}
	r := NewLLMReranker(mock)

	scores, err := r.Rerank(context.Background(), "does caffeine improve recall", []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("Rerank returned error: %v", err)
	}

	want := []float64{0.9, 0.1, 0.55}
	if len(scores) != len(want) {
		t.Fatalf("expected %d scores, got %d", len(want), len(scores))
	}
	for i := range want {
		if math.Abs(scores[i]-want[i]) > 1e-9 {
			t.Errorf("score %d: expected %v, got %v", i, want[i], scores[i])
		}
	}
}

func TestRerankClampsOutOfRange(t *testing.T) {
	mock := NewMockClient()
	mock.Responses = []string{"[150, -20]"}
	r := NewLLMReranker(mock)

	scores, err := r.Rerank(context.Background(), "q", []string{"a", "b"})
	if err != nil {
		t.Fatalf("Rerank returned error: %v", err)
	}
	if scores[0] != 1.0 || scores[1] != 0.0 {
		t.Errorf("expected clamped scores [1 0], got %v", scores)
	}
}

func TestRerankMalformedResponse(t *testing.T) {
	mock := NewMockClient()
	mock.Responses = []string{"I am unable to score these documents."}
	r := NewLLMReranker(mock)

	if _, err := r.Rerank(context.Background(), "q", []string{"a"}); err == nil {
		t.Fatal("expected error for non-JSON response")
	}
}

func TestRerankScoreCountMismatch(t *testing.T) {
	mock := NewMockClient()
	mock.Responses = []string{"[90]"}
	r := NewLLMReranker(mock)

	if _, err := r.Rerank(context.Background(), "q", []string{"a", "b"}); err == nil {
		t.Fatal("expected error for score count mismatch")
	}
}

func TestRerankEmptyDocs(t *testing.T) {
	mock := NewMockClient()
	r := NewLLMReranker(mock)

	scores, err := r.Rerank(context.Background(), "q", nil)
	if err != nil {
		t.Fatalf("Rerank returned error: %v", err)
	}
	if scores != nil {
		t.Errorf("expected nil scores for empty docs, got %v", scores)
	}
	if mock.CallCount() != 0 {
		t.Errorf("expected no backend calls for empty docs, got %d", mock.CallCount())
	}
}
