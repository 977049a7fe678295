package service

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/dialectic-sh/dialectic/internal/domain"
)

const (
	DefaultAutoDebateThreshold = 0.6
	DefaultAutoDebateTopK      = 10
)

// Index entries carry a kind marker so claims and evidence chunks share one
// index yet stay distinguishable in search results.
const (
	indexKindKey   = "kind"
	indexKindClaim = "claim"
	indexKindChunk = "chunk"
)

// IngestService registers the claims and evidence chunks produced by the
// upstream extraction pipeline, and queues debates between each new claim
// and its nearest existing neighbors.
type IngestService struct {
	graph    domain.GraphStore
	searcher domain.Searcher
	embedder domain.EmbeddingClient
	queue    *DebateQueue
	logger   *zap.Logger

	// Auto-debate candidate selection, tunable before first use.
	AutoDebateThreshold float64
	AutoDebateTopK      int
}

func NewIngestService(graph domain.GraphStore, searcher domain.Searcher, embedder domain.EmbeddingClient, queue *DebateQueue, logger *zap.Logger) *IngestService {
	return &IngestService{
		graph:    graph,
		searcher: searcher,
		embedder: embedder,
		queue:    queue,
		logger:   logger,

		AutoDebateThreshold: DefaultAutoDebateThreshold,
		AutoDebateTopK:      DefaultAutoDebateTopK,
	}
}

// RegisterClaim persists and indexes a claim, then queues debates against
// similar existing claims. Returns how many debates were queued. An
// embedding failure degrades to lexical-only indexing; the claim is still
// registered.
func (s *IngestService) RegisterClaim(ctx context.Context, claim *domain.Claim) (int, error) {
	if len(claim.Embedding) == 0 && s.embedder != nil {
		embedding, err := s.embedder.Embed(ctx, claim.Text)
		if err != nil {
			s.logger.Warn("claim embedding failed, registering without vector",
				zap.String("claim_id", claim.ID),
				zap.Error(err))
		} else {
			claim.Embedding = embedding
		}
	}

	if err := s.graph.UpsertClaim(ctx, claim); err != nil {
		return 0, fmt.Errorf("upsert claim %s: %w", claim.ID, err)
	}
	if err := s.searcher.Index(ctx, domain.IndexRequest{
		ID:        claim.ID,
		Text:      claim.Text,
		SourceID:  claim.PaperID,
		Embedding: claim.Embedding,
		Metadata:  map[string]string{indexKindKey: indexKindClaim},
	}); err != nil {
		return 0, fmt.Errorf("index claim %s: %w", claim.ID, err)
	}

	return s.queueDebates(ctx, claim), nil
}

// RegisterChunk indexes an evidence chunk. Chunks never trigger debates.
func (s *IngestService) RegisterChunk(ctx context.Context, chunk *domain.Chunk) error {
	if len(chunk.Embedding) == 0 && s.embedder != nil {
		embedding, err := s.embedder.Embed(ctx, chunk.Text)
		if err != nil {
			s.logger.Warn("chunk embedding failed, indexing lexically only",
				zap.String("chunk_id", chunk.ID),
				zap.Error(err))
		} else {
			chunk.Embedding = embedding
		}
	}

	metadata := make(map[string]string, len(chunk.Metadata)+2)
	for k, v := range chunk.Metadata {
		metadata[k] = v
	}
	metadata[indexKindKey] = indexKindChunk
	if chunk.Page > 0 {
		metadata["page"] = strconv.Itoa(chunk.Page)
	}

	if err := s.searcher.Index(ctx, domain.IndexRequest{
		ID:        chunk.ID,
		Text:      chunk.Text,
		SourceID:  chunk.SourceID,
		Embedding: chunk.Embedding,
		Metadata:  metadata,
	}); err != nil {
		return fmt.Errorf("index chunk %s: %w", chunk.ID, err)
	}
	s.logger.Debug("chunk indexed",
		zap.String("chunk_id", chunk.ID),
		zap.String("source_id", chunk.SourceID))
	return nil
}

// queueDebates finds similar existing claims and queues one debate per
// candidate. Candidates must be claims rather than chunks, distinct from
// the new claim, and dense-similar above the threshold.
func (s *IngestService) queueDebates(ctx context.Context, claim *domain.Claim) int {
	results, err := s.searcher.Search(ctx, domain.SearchRequest{
		Query: claim.Text,
		TopK:  s.AutoDebateTopK,
	})
	if err != nil {
		s.logger.Warn("similar claim search failed, skipping auto-debate",
			zap.String("claim_id", claim.ID),
			zap.Error(err))
		return 0
	}

	queued := 0
	for _, res := range results {
		if res.ID == claim.ID || res.Metadata[indexKindKey] != indexKindClaim {
			continue
		}
		if res.DenseScore <= s.AutoDebateThreshold {
			continue
		}
		if err := s.queue.Enqueue(claim.ID, res.ID); err != nil {
			break
		}
		queued++
	}
	if queued > 0 {
		s.logger.Info("auto-debates queued",
			zap.String("claim_id", claim.ID),
			zap.Int("queued", queued))
	}
	return queued
}
