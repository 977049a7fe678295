package domain

import (
	"context"
)

// GraphStore is the durable home of claims and relationship edges. The
// analyzer rebuilds its in-memory graph from this interface, so any backend
// (in-memory, Postgres, Neo4j) is swappable without touching analyzer logic.
// AddRelationship is append-only and must be atomic per edge: a concurrent
// reader sees either the whole edge or nothing.
type GraphStore interface {
	UpsertClaim(ctx context.Context, c *Claim) error
	GetClaim(ctx context.Context, id string) (*Claim, error)
	ListClaims(ctx context.Context) ([]Claim, error)
	UpdateClaimMetrics(ctx context.Context, id string, citationCount int, centrality float64) error

	AddRelationship(ctx context.Context, r *Relationship) error
	ListRelationships(ctx context.Context) ([]Relationship, error)
	GetNeighbors(ctx context.Context, claimID string, relation *RelationType) ([]Relationship, error)
	ListRelationshipsByReview(ctx context.Context, requiresHuman bool) ([]Relationship, error)
}

// Searcher is the retrieval surface consumed by the debate orchestrator and
// the ingest pipeline. The hybrid retriever satisfies it; tests substitute
// fixed result sets.
type Searcher interface {
	Index(ctx context.Context, req IndexRequest) error
	Search(ctx context.Context, req SearchRequest) ([]SearchResult, error)
}

// GenerateRequest is one request against the generation backend.
type GenerateRequest struct {
	System      string
	Prompt      string
	Temperature float32
	MaxTokens   int
}

// StreamDelta is one increment of a streaming generation. A non-nil Err
// terminates the stream; the channel is closed afterwards either way.
type StreamDelta struct {
	Content string
	Err     error
}

// GenerationClient is the text-generation backend: a fallible, possibly slow
// remote dependency. Streams are finite and not restartable.
type GenerationClient interface {
	Generate(ctx context.Context, req GenerateRequest) (string, error)
	GenerateStream(ctx context.Context, req GenerateRequest) (<-chan StreamDelta, error)
}

type EmbeddingClient interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Reranker scores (query, doc) pairs; one score per doc, aligned by index.
type Reranker interface {
	Rerank(ctx context.Context, query string, docs []string) ([]float64, error)
}

// VectorIndex stores embeddings for nearest-neighbor search. Upsert replaces
// any existing entry for the id.
type VectorIndex interface {
	Upsert(ctx context.Context, id string, vector []float32, text, sourceID string, metadata map[string]string) error
	Search(ctx context.Context, vector []float32, topK int) ([]IndexHit, error)
}

// LexicalIndex stores raw text for term-based search. Upsert replaces any
// existing entry for the id.
type LexicalIndex interface {
	Upsert(ctx context.Context, id, text, sourceID string, metadata map[string]string) error
	Search(ctx context.Context, query string, topK int) ([]IndexHit, error)
}
