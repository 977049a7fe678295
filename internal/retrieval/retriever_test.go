package retrieval

import (
	"context"
	"errors"
	"math"
	"testing"

	"go.uber.org/zap"

	"github.com/dialectic-sh/dialectic/internal/domain"
	"github.com/dialectic-sh/dialectic/internal/embedding"
)

type stubReranker struct {
	scores []float64
	err    error
	calls  [][]string
}

func (s *stubReranker) Rerank(ctx context.Context, query string, docs []string) ([]float64, error) {
	s.calls = append(s.calls, docs)
	if s.err != nil {
		return nil, s.err
	}
	out := make([]float64, len(docs))
	copy(out, s.scores)
	return out, nil
}

func newTestRetriever(embedder domain.EmbeddingClient, reranker domain.Reranker) *Retriever {
	return NewRetriever(NewMemoryVectorIndex(), NewBM25Index(), embedder, reranker, zap.NewNop())
}

func TestRetrieverIndexIsIdempotent(t *testing.T) {
	emb := embedding.NewMockClient()
	r := newTestRetriever(emb, nil)
	ctx := context.Background()

	err := r.Index(ctx, domain.IndexRequest{ID: "c1", Text: "retrograde amnesia study", Embedding: []float32{1, 0}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err = r.Index(ctx, domain.IndexRequest{ID: "c1", Text: "hippocampal lesion model", Embedding: []float32{0, 1}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	emb.Fixed = map[string][]float32{"amnesia": {1, 0}}
	results, err := r.Search(ctx, domain.SearchRequest{Query: "amnesia", TopK: 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected replaced item to be unsearchable by old text and old vector, got %v", results)
	}

	emb.Fixed = map[string][]float32{"hippocampal lesion": {0, 1}}
	results, err = r.Search(ctx, domain.SearchRequest{Query: "hippocampal lesion", TopK: 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 1 || results[0].ID != "c1" {
		t.Fatalf("expected single result for replaced item, got %v", results)
	}
	if results[0].DenseScore == 0 || results[0].SparseScore == 0 {
		t.Errorf("expected both legs to contribute after reindex, got dense=%f sparse=%f",
			results[0].DenseScore, results[0].SparseScore)
	}
}

func TestSearchFusesWithReciprocalRanks(t *testing.T) {
	emb := embedding.NewMockClient()
	emb.Fixed = map[string][]float32{"caffeine memory": {1, 0}}
	r := newTestRetriever(emb, nil)
	ctx := context.Background()

	// a: dense rank 1, sparse rank 2. b: dense rank 2, sparse rank 1.
	_ = r.Index(ctx, domain.IndexRequest{ID: "a", Text: "caffeine memory study", Embedding: []float32{1, 0}})
	_ = r.Index(ctx, domain.IndexRequest{ID: "b", Text: "caffeine caffeine memory", Embedding: []float32{0.6, 0.8}})

	results, err := r.Search(ctx, domain.SearchRequest{Query: "caffeine memory", TopK: 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].ID != "a" || results[1].ID != "b" {
		t.Fatalf("expected order [a b], got [%s %s]", results[0].ID, results[1].ID)
	}

	wantA := 0.6/61 + 0.4/62
	wantB := 0.6/62 + 0.4/61
	if math.Abs(results[0].FinalScore-wantA) > 1e-9 {
		t.Errorf("a: expected fused score %v, got %v", wantA, results[0].FinalScore)
	}
	if math.Abs(results[1].FinalScore-wantB) > 1e-9 {
		t.Errorf("b: expected fused score %v, got %v", wantB, results[1].FinalScore)
	}
	if results[0].DenseScore <= results[1].DenseScore {
		t.Errorf("expected a to lead the dense leg")
	}
	if results[0].SparseScore >= results[1].SparseScore {
		t.Errorf("expected b to lead the sparse leg")
	}
}

func TestSearchMergesLegExclusiveItems(t *testing.T) {
	emb := embedding.NewMockClient()
	emb.Fixed = map[string][]float32{"caffeine memory": {1, 0}}
	r := newTestRetriever(emb, nil)
	ctx := context.Background()

	// d matches only by vector, e matches only by terms.
	_ = r.Index(ctx, domain.IndexRequest{ID: "d", Text: "adenosine receptor antagonism", Embedding: []float32{0.9, 0.1}})
	_ = r.Index(ctx, domain.IndexRequest{ID: "e", Text: "caffeine memory dose", Embedding: []float32{0, 1}})

	results, err := r.Search(ctx, domain.SearchRequest{Query: "caffeine memory", TopK: 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}

	byID := map[string]domain.SearchResult{}
	for _, res := range results {
		byID[res.ID] = res
	}
	if byID["d"].DenseScore == 0 || byID["d"].SparseScore != 0 {
		t.Errorf("expected d to be dense-only, got %+v", byID["d"])
	}
	if byID["e"].SparseScore == 0 || byID["e"].DenseScore != 0 {
		t.Errorf("expected e to be sparse-only, got %+v", byID["e"])
	}
}

func TestSearchFallsBackToLexicalWhenEmbedderDown(t *testing.T) {
	emb := embedding.NewMockClient()
	r := newTestRetriever(emb, nil)
	ctx := context.Background()

	_ = r.Index(ctx, domain.IndexRequest{ID: "a", Text: "caffeine improves recall", Embedding: []float32{1, 0}})
	_ = r.Index(ctx, domain.IndexRequest{ID: "b", Text: "sleep consolidates memory", Embedding: []float32{0, 1}})

	emb.Err = errors.New("embedding api down")
	results, err := r.Search(ctx, domain.SearchRequest{Query: "caffeine recall", TopK: 10})
	if err != nil {
		t.Fatalf("expected degraded search to succeed, got %v", err)
	}
	if len(results) != 1 || results[0].ID != "a" {
		t.Fatalf("expected lexical-only result [a], got %v", results)
	}
	if results[0].DenseScore != 0 {
		t.Errorf("expected zero dense score in lexical-only mode, got %f", results[0].DenseScore)
	}
}

func TestSearchRerankReorders(t *testing.T) {
	emb := embedding.NewMockClient()
	emb.Fixed = map[string][]float32{"caffeine": {1, 0}}
	reranker := &stubReranker{scores: []float64{0.1, 0.9}}
	r := newTestRetriever(emb, reranker)
	ctx := context.Background()

	_ = r.Index(ctx, domain.IndexRequest{ID: "a", Text: "caffeine caffeine caffeine", Embedding: []float32{1, 0}})
	_ = r.Index(ctx, domain.IndexRequest{ID: "b", Text: "caffeine placebo arm", Embedding: []float32{0.9, 0.4359}})

	fused, err := r.Search(ctx, domain.SearchRequest{Query: "caffeine", TopK: 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fused[0].ID != "a" {
		t.Fatalf("expected a to lead the fused order, got %s", fused[0].ID)
	}

	reranked, err := r.Search(ctx, domain.SearchRequest{Query: "caffeine", TopK: 10, UseReranking: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reranked[0].ID != "b" || reranked[1].ID != "a" {
		t.Fatalf("expected rerank to flip the order, got [%s %s]", reranked[0].ID, reranked[1].ID)
	}
	if reranked[0].RerankScore != 0.9 {
		t.Errorf("expected rerank score recorded, got %f", reranked[0].RerankScore)
	}
	if len(reranker.calls) != 1 {
		t.Errorf("expected one rerank call, got %d", len(reranker.calls))
	}
}

func TestSearchKeepsFusedOrderWhenRerankerFails(t *testing.T) {
	emb := embedding.NewMockClient()
	emb.Fixed = map[string][]float32{"caffeine": {1, 0}}
	reranker := &stubReranker{err: errors.New("rerank backend down")}
	r := newTestRetriever(emb, reranker)
	ctx := context.Background()

	_ = r.Index(ctx, domain.IndexRequest{ID: "a", Text: "caffeine caffeine caffeine", Embedding: []float32{1, 0}})
	_ = r.Index(ctx, domain.IndexRequest{ID: "b", Text: "caffeine placebo arm", Embedding: []float32{0.9, 0.4359}})

	results, err := r.Search(ctx, domain.SearchRequest{Query: "caffeine", TopK: 10, UseReranking: true})
	if err != nil {
		t.Fatalf("expected degraded search to succeed, got %v", err)
	}
	if results[0].ID != "a" {
		t.Errorf("expected fused order preserved on rerank failure, got %s first", results[0].ID)
	}
}

func TestSearchTopKDefaultsAndTruncates(t *testing.T) {
	emb := embedding.NewMockClient()
	r := newTestRetriever(emb, nil)
	ctx := context.Background()

	ids := []string{"a", "b", "c", "d", "e", "f", "g", "h"}
	for _, id := range ids {
		_ = r.Index(ctx, domain.IndexRequest{ID: id, Text: "caffeine trial " + id})
	}

	results, err := r.Search(ctx, domain.SearchRequest{Query: "caffeine"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != defaultTopK {
		t.Errorf("expected default topK %d results, got %d", defaultTopK, len(results))
	}

	results, _ = r.Search(ctx, domain.SearchRequest{Query: "caffeine", TopK: 3})
	if len(results) != 3 {
		t.Errorf("expected 3 results, got %d", len(results))
	}
}

func TestSearchIsDeterministic(t *testing.T) {
	emb := embedding.NewMockClient()
	r := newTestRetriever(emb, nil)
	ctx := context.Background()

	texts := []string{
		"caffeine improves working memory",
		"caffeine has no effect on recall",
		"memory consolidation during sleep",
		"working memory capacity limits",
		"adenosine and alertness",
	}
	for i, text := range texts {
		_ = r.Index(ctx, domain.IndexRequest{ID: string(rune('a' + i)), Text: text})
	}

	first, err := r.Search(ctx, domain.SearchRequest{Query: "caffeine memory", TopK: 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 0; i < 5; i++ {
		again, err := r.Search(ctx, domain.SearchRequest{Query: "caffeine memory", TopK: 10})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(again) != len(first) {
			t.Fatalf("result count changed between runs: %d vs %d", len(first), len(again))
		}
		for j := range again {
			if again[j].ID != first[j].ID {
				t.Fatalf("ordering changed between runs at position %d: %s vs %s", j, first[j].ID, again[j].ID)
			}
		}
	}
}

func TestFuseRRFTieBreaksOnDenseScore(t *testing.T) {
	dense := []domain.IndexHit{{ID: "x", Score: 0.9}}
	sparse := []domain.IndexHit{{ID: "y", Score: 4.2}}

	// Equal weights make the reciprocal contributions identical; the dense
	// leg's raw score breaks the tie.
	results := fuseRRF(dense, sparse, 0.5, 0.5)
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].ID != "x" {
		t.Errorf("expected dense score to break the tie, got %s first", results[0].ID)
	}
}
