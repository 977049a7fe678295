package retrieval

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/dialectic-sh/dialectic/internal/domain"
)

// ErrUnavailable means neither retrieval leg could serve the query. Callers
// degrade (empty evidence) rather than abort.
var ErrUnavailable = errors.New("retrieval unavailable")

const (
	denseCandidates  = 20
	sparseCandidates = 20
	rerankCandidates = 20
	defaultTopK      = 5

	defaultDenseWeight  = 0.6
	defaultSparseWeight = 0.4
)

// Retriever is the hybrid search service: dense cosine retrieval and sparse
// BM25 retrieval fused with reciprocal rank fusion, with optional LLM
// reranking on top. Either leg failing degrades the search to the surviving
// leg; only both legs failing is an error.
type Retriever struct {
	vectors  domain.VectorIndex
	lexical  domain.LexicalIndex
	embedder domain.EmbeddingClient
	reranker domain.Reranker
	logger   *zap.Logger

	denseWeight  float64
	sparseWeight float64
}

// NewRetriever wires the two index legs. reranker may be nil, which disables
// reranking regardless of the per-request flag.
func NewRetriever(
	vectors domain.VectorIndex,
	lexical domain.LexicalIndex,
	embedder domain.EmbeddingClient,
	reranker domain.Reranker,
	logger *zap.Logger,
) *Retriever {
	return &Retriever{
		vectors:      vectors,
		lexical:      lexical,
		embedder:     embedder,
		reranker:     reranker,
		logger:       logger,
		denseWeight:  defaultDenseWeight,
		sparseWeight: defaultSparseWeight,
	}
}

// Index makes an item searchable in both legs, replacing any previous entry
// with the same id. When no embedding is supplied and the embedding backend
// is down, the item is still indexed lexically and becomes dense-searchable
// on the next reindex.
func (r *Retriever) Index(ctx context.Context, req domain.IndexRequest) error {
	embedding := req.Embedding
	if embedding == nil && r.embedder != nil {
		var err error
		embedding, err = r.embedder.Embed(ctx, req.Text)
		if err != nil {
			r.logger.Warn("embedding backend unavailable, indexing lexically only",
				zap.String("id", req.ID),
				zap.Error(err))
			embedding = nil
		}
	}

	if embedding != nil {
		if err := r.vectors.Upsert(ctx, req.ID, embedding, req.Text, req.SourceID, req.Metadata); err != nil {
			return fmt.Errorf("vector upsert: %w", err)
		}
	}
	if err := r.lexical.Upsert(ctx, req.ID, req.Text, req.SourceID, req.Metadata); err != nil {
		return fmt.Errorf("lexical upsert: %w", err)
	}
	return nil
}

// Search runs both retrieval legs, fuses them, and optionally reranks the
// top candidates before truncating to TopK.
func (r *Retriever) Search(ctx context.Context, req domain.SearchRequest) ([]domain.SearchResult, error) {
	if req.TopK <= 0 {
		req.TopK = defaultTopK
	}

	dense, denseErr := r.denseLeg(ctx, req.Query)
	sparse, sparseErr := r.lexical.Search(ctx, req.Query, sparseCandidates)
	if sparseErr != nil {
		r.logger.Warn("lexical leg failed", zap.Error(sparseErr))
		sparse = nil
	}
	if denseErr != nil && sparseErr != nil {
		return nil, fmt.Errorf("%w: dense: %v, sparse: %v", ErrUnavailable, denseErr, sparseErr)
	}

	results := fuseRRF(dense, sparse, r.denseWeight, r.sparseWeight)

	if req.UseReranking && r.reranker != nil && len(results) > 0 {
		results = r.rerank(ctx, req.Query, results)
	}

	if len(results) > req.TopK {
		results = results[:req.TopK]
	}
	return results, nil
}

func (r *Retriever) denseLeg(ctx context.Context, query string) ([]domain.IndexHit, error) {
	if r.embedder == nil {
		return nil, nil
	}
	embedding, err := r.embedder.Embed(ctx, query)
	if err != nil {
		r.logger.Warn("embedding backend unavailable, falling back to lexical-only search", zap.Error(err))
		return nil, fmt.Errorf("embed query: %w", err)
	}
	hits, err := r.vectors.Search(ctx, embedding, denseCandidates)
	if err != nil {
		r.logger.Warn("dense leg failed", zap.Error(err))
		return nil, fmt.Errorf("dense search: %w", err)
	}
	return hits, nil
}

// rerank rescores the top fused candidates and reorders them by rerank score.
// Candidates beyond the rerank window and any reranker failure keep the fused
// ordering.
func (r *Retriever) rerank(ctx context.Context, query string, results []domain.SearchResult) []domain.SearchResult {
	window := len(results)
	if window > rerankCandidates {
		window = rerankCandidates
	}

	docs := make([]string, window)
	for i := 0; i < window; i++ {
		docs[i] = results[i].Text
	}

	scores, err := r.reranker.Rerank(ctx, query, docs)
	if err != nil {
		r.logger.Warn("reranker unavailable, keeping fused order", zap.Error(err))
		return results
	}

	for i := 0; i < window; i++ {
		results[i].RerankScore = scores[i]
	}
	sort.SliceStable(results[:window], func(i, j int) bool {
		return results[i].RerankScore > results[j].RerankScore
	})
	return results
}
