package retrieval

import (
	"context"
	"math"
	"testing"
)

func TestCosineSimilarity(t *testing.T) {
	if got := CosineSimilarity([]float32{1, 0}, []float32{1, 0}); math.Abs(got-1) > 1e-6 {
		t.Errorf("identical vectors: expected 1, got %f", got)
	}
	if got := CosineSimilarity([]float32{1, 0}, []float32{0, 1}); got != 0 {
		t.Errorf("orthogonal vectors: expected 0, got %f", got)
	}
	if got := CosineSimilarity([]float32{1, 0}, []float32{1, 1}); math.Abs(got-1/math.Sqrt2) > 1e-6 {
		t.Errorf("45 degree vectors: expected %f, got %f", 1/math.Sqrt2, got)
	}
	if got := CosineSimilarity([]float32{1, 0}, []float32{1, 0, 0}); got != 0 {
		t.Errorf("mismatched dimensions: expected 0, got %f", got)
	}
}

func TestMemoryVectorIndexSearch(t *testing.T) {
	idx := NewMemoryVectorIndex()
	ctx := context.Background()
	_ = idx.Upsert(ctx, "a", []float32{1, 0}, "a text", "", nil)
	_ = idx.Upsert(ctx, "b", []float32{0.8, 0.6}, "b text", "", nil)
	_ = idx.Upsert(ctx, "c", []float32{0, 1}, "c text", "", nil)

	hits, err := idx.Search(ctx, []float32{1, 0}, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits (orthogonal excluded), got %d", len(hits))
	}
	if hits[0].ID != "a" || hits[1].ID != "b" {
		t.Errorf("expected order [a b], got [%s %s]", hits[0].ID, hits[1].ID)
	}
	if math.Abs(hits[0].Score-1) > 1e-6 || math.Abs(hits[1].Score-0.8) > 1e-6 {
		t.Errorf("unexpected scores: %f, %f", hits[0].Score, hits[1].Score)
	}
}

func TestMemoryVectorIndexUpsertReplaces(t *testing.T) {
	idx := NewMemoryVectorIndex()
	ctx := context.Background()
	_ = idx.Upsert(ctx, "a", []float32{1, 0}, "first", "", nil)
	_ = idx.Upsert(ctx, "a", []float32{0, 1}, "second", "", nil)

	hits, _ := idx.Search(ctx, []float32{1, 0}, 10)
	if len(hits) != 0 {
		t.Errorf("expected no hits against replaced vector, got %d", len(hits))
	}

	hits, _ = idx.Search(ctx, []float32{0, 1}, 10)
	if len(hits) != 1 || hits[0].Text != "second" {
		t.Errorf("expected replaced entry, got %v", hits)
	}
}
