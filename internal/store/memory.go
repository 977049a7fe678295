package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dialectic-sh/dialectic/internal/domain"
	"github.com/google/uuid"
)

// MemoryGraphStore keeps claims and edges in process memory. It backs tests
// and single-node runs where Postgres or Neo4j would be overkill.
type MemoryGraphStore struct {
	mu     sync.RWMutex
	claims map[string]*domain.Claim
	edges  []domain.Relationship
}

func NewMemoryGraphStore() *MemoryGraphStore {
	return &MemoryGraphStore{claims: make(map[string]*domain.Claim)}
}

func (s *MemoryGraphStore) UpsertClaim(ctx context.Context, c *domain.Claim) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *c
	if prev, ok := s.claims[c.ID]; ok {
		// Re-ingesting a claim replaces its content but keeps the original
		// creation time and the analyzer-maintained metrics.
		cp.CreatedAt = prev.CreatedAt
		cp.CitationCount = prev.CitationCount
		cp.Centrality = prev.Centrality
		if len(cp.Embedding) == 0 {
			cp.Embedding = prev.Embedding
		}
	} else if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	s.claims[c.ID] = &cp
	c.CreatedAt = cp.CreatedAt
	return nil
}

func (s *MemoryGraphStore) GetClaim(ctx context.Context, id string) (*domain.Claim, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.claims[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *MemoryGraphStore) ListClaims(ctx context.Context) ([]domain.Claim, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Claim, 0, len(s.claims))
	for _, c := range s.claims {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryGraphStore) UpdateClaimMetrics(ctx context.Context, id string, citationCount int, centrality float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.claims[id]
	if !ok {
		return ErrNotFound
	}
	c.CitationCount = citationCount
	c.Centrality = centrality
	return nil
}

func (s *MemoryGraphStore) AddRelationship(ctx context.Context, r *domain.Relationship) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.claims[r.FromClaimID]; !ok {
		return ErrNotFound
	}
	if _, ok := s.claims[r.ToClaimID]; !ok {
		return ErrNotFound
	}

	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}

	// Copy the slices so later caller mutations cannot reach stored edges.
	// The Postgres store normalizes nil to empty on write, so do the same
	// here to keep the JSON rendering identical across backends.
	cp := *r
	cp.Citations = append([]string{}, r.Citations...)
	cp.DebateLog = append([]string{}, r.DebateLog...)
	s.edges = append(s.edges, cp)
	return nil
}

func (s *MemoryGraphStore) ListRelationships(ctx context.Context) ([]domain.Relationship, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Relationship, len(s.edges))
	copy(out, s.edges)
	return out, nil
}

func (s *MemoryGraphStore) GetNeighbors(ctx context.Context, claimID string, relation *domain.RelationType) ([]domain.Relationship, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Relationship
	for _, e := range s.edges {
		if e.FromClaimID != claimID && e.ToClaimID != claimID {
			continue
		}
		if relation != nil && e.Type != *relation {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (s *MemoryGraphStore) ListRelationshipsByReview(ctx context.Context, requiresHuman bool) ([]domain.Relationship, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Relationship
	for _, e := range s.edges {
		if e.RequiresHuman == requiresHuman {
			out = append(out, e)
		}
	}
	return out, nil
}

// Verify interface compliance at compile time
var _ domain.GraphStore = (*MemoryGraphStore)(nil)
