package store

import (
	"context"
	"fmt"
	"time"

	"github.com/dialectic-sh/dialectic/internal/domain"
	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"
)

// Relation type lives on the edge as a property rather than as the Cypher
// relationship type, since Cypher cannot parameterize relationship types.
const (
	upsertClaimQuery = `
		MERGE (c:Claim {id: $id})
		ON CREATE SET c.created_at = $created_at, c.citation_count = 0, c.centrality = 0.0
		SET c.content = $content,
			c.claim_type = $claim_type,
			c.paper_id = $paper_id,
			c.section = $section,
			c.confidence = $confidence,
			c.embedding = coalesce($embedding, c.embedding)
		RETURN c.created_at AS created_at
	`

	getClaimQuery = `
		MATCH (c:Claim {id: $id})
		RETURN c.id AS id, c.content AS content, c.claim_type AS claim_type,
			c.paper_id AS paper_id, c.section AS section, c.confidence AS confidence,
			c.embedding AS embedding, c.citation_count AS citation_count,
			c.centrality AS centrality, c.created_at AS created_at
	`

	listClaimsQuery = `
		MATCH (c:Claim)
		RETURN c.id AS id, c.content AS content, c.claim_type AS claim_type,
			c.paper_id AS paper_id, c.section AS section, c.confidence AS confidence,
			c.citation_count AS citation_count, c.centrality AS centrality,
			c.created_at AS created_at
		ORDER BY c.id ASC
	`

	updateClaimMetricsQuery = `
		MATCH (c:Claim {id: $id})
		SET c.citation_count = $citation_count, c.centrality = $centrality
		RETURN c.id AS id
	`

	addRelationshipQuery = `
		MATCH (a:Claim {id: $from_id})
		MATCH (b:Claim {id: $to_id})
		CREATE (a)-[r:RELATES {id: $id, relation_type: $relation_type,
			confidence: $confidence, raw_confidence: $raw_confidence,
			citations: $citations, debate_log: $debate_log,
			requires_human: $requires_human, created_at: $created_at}]->(b)
		RETURN r.id AS id
	`

	listRelationshipsQuery = `
		MATCH (a:Claim)-[r:RELATES]->(b:Claim)
		RETURN r.id AS id, a.id AS from_id, b.id AS to_id,
			r.relation_type AS relation_type, r.confidence AS confidence,
			r.raw_confidence AS raw_confidence, r.citations AS citations,
			r.debate_log AS debate_log, r.requires_human AS requires_human,
			r.created_at AS created_at
		ORDER BY r.created_at ASC, r.id ASC
	`

	getNeighborsQuery = `
		MATCH (a:Claim)-[r:RELATES]->(b:Claim)
		WHERE (a.id = $claim_id OR b.id = $claim_id)
			AND ($relation_type IS NULL OR r.relation_type = $relation_type)
		RETURN r.id AS id, a.id AS from_id, b.id AS to_id,
			r.relation_type AS relation_type, r.confidence AS confidence,
			r.raw_confidence AS raw_confidence, r.citations AS citations,
			r.debate_log AS debate_log, r.requires_human AS requires_human,
			r.created_at AS created_at
		ORDER BY r.created_at ASC, r.id ASC
	`

	listByReviewQuery = `
		MATCH (a:Claim)-[r:RELATES]->(b:Claim)
		WHERE r.requires_human = $requires_human
		RETURN r.id AS id, a.id AS from_id, b.id AS to_id,
			r.relation_type AS relation_type, r.confidence AS confidence,
			r.raw_confidence AS raw_confidence, r.citations AS citations,
			r.debate_log AS debate_log, r.requires_human AS requires_human,
			r.created_at AS created_at
		ORDER BY r.created_at ASC, r.id ASC
	`
)

type Neo4jGraphStore struct {
	driver neo4j.DriverWithContext
	logger *zap.Logger
}

func NewNeo4jGraphStore(ctx context.Context, uri, username, password string, logger *zap.Logger) (*Neo4jGraphStore, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, err
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		return nil, err
	}

	logger.Info("connected to neo4j", zap.String("uri", uri))
	return &Neo4jGraphStore{driver: driver, logger: logger}, nil
}

func (s *Neo4jGraphStore) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}

// EnsureConstraints creates the uniqueness constraint on claim ids. Failures
// are logged and skipped, as the constraint may already exist.
func (s *Neo4jGraphStore) EnsureConstraints(ctx context.Context) error {
	queries := []string{
		"CREATE CONSTRAINT claim_id IF NOT EXISTS FOR (c:Claim) REQUIRE c.id IS UNIQUE",
	}
	for _, q := range queries {
		if _, err := s.run(ctx, q, nil); err != nil {
			s.logger.Warn("failed to create constraint", zap.String("query", q), zap.Error(err))
		}
	}
	return nil
}

func (s *Neo4jGraphStore) run(ctx context.Context, query string, params map[string]any) (*neo4j.EagerResult, error) {
	result, err := neo4j.ExecuteQuery(ctx, s.driver, query, params, neo4j.EagerResultTransformer)
	if err != nil {
		return nil, fmt.Errorf("execute query: %w", err)
	}
	return result, nil
}

func (s *Neo4jGraphStore) UpsertClaim(ctx context.Context, c *domain.Claim) error {
	createdAt := c.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	var embedding any
	if len(c.Embedding) > 0 {
		embedding = c.Embedding
	}

	result, err := s.run(ctx, upsertClaimQuery, map[string]any{
		"id":         c.ID,
		"content":    c.Text,
		"claim_type": string(c.Type),
		"paper_id":   c.PaperID,
		"section":    c.Section,
		"confidence": c.Confidence,
		"embedding":  embedding,
		"created_at": createdAt.Format(time.RFC3339Nano),
	})
	if err != nil {
		return err
	}
	if len(result.Records) > 0 {
		created, _ := result.Records[0].Get("created_at")
		c.CreatedAt = neoTime(created)
	}
	return nil
}

func (s *Neo4jGraphStore) GetClaim(ctx context.Context, id string) (*domain.Claim, error) {
	result, err := s.run(ctx, getClaimQuery, map[string]any{"id": id})
	if err != nil {
		return nil, err
	}
	if len(result.Records) == 0 {
		return nil, ErrNotFound
	}
	return claimFromRecord(result.Records[0]), nil
}

func (s *Neo4jGraphStore) ListClaims(ctx context.Context) ([]domain.Claim, error) {
	result, err := s.run(ctx, listClaimsQuery, nil)
	if err != nil {
		return nil, err
	}

	var claims []domain.Claim
	for _, rec := range result.Records {
		claims = append(claims, *claimFromRecord(rec))
	}
	return claims, nil
}

func (s *Neo4jGraphStore) UpdateClaimMetrics(ctx context.Context, id string, citationCount int, centrality float64) error {
	result, err := s.run(ctx, updateClaimMetricsQuery, map[string]any{
		"id":             id,
		"citation_count": citationCount,
		"centrality":     centrality,
	})
	if err != nil {
		return err
	}
	if len(result.Records) == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Neo4jGraphStore) AddRelationship(ctx context.Context, r *domain.Relationship) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	citations := r.Citations
	if citations == nil {
		citations = []string{}
	}
	debateLog := r.DebateLog
	if debateLog == nil {
		debateLog = []string{}
	}

	result, err := s.run(ctx, addRelationshipQuery, map[string]any{
		"id":             r.ID.String(),
		"from_id":        r.FromClaimID,
		"to_id":          r.ToClaimID,
		"relation_type":  string(r.Type),
		"confidence":     r.Confidence,
		"raw_confidence": r.RawConfidence,
		"citations":      citations,
		"debate_log":     debateLog,
		"requires_human": r.RequiresHuman,
		"created_at":     r.CreatedAt.Format(time.RFC3339Nano),
	})
	if err != nil {
		return err
	}
	if len(result.Records) == 0 {
		// One of the claim endpoints did not match.
		return ErrNotFound
	}
	return nil
}

func (s *Neo4jGraphStore) ListRelationships(ctx context.Context) ([]domain.Relationship, error) {
	result, err := s.run(ctx, listRelationshipsQuery, nil)
	if err != nil {
		return nil, err
	}
	return relationshipsFromRecords(result.Records), nil
}

func (s *Neo4jGraphStore) GetNeighbors(ctx context.Context, claimID string, relation *domain.RelationType) ([]domain.Relationship, error) {
	var relationType any
	if relation != nil {
		relationType = string(*relation)
	}

	result, err := s.run(ctx, getNeighborsQuery, map[string]any{
		"claim_id":      claimID,
		"relation_type": relationType,
	})
	if err != nil {
		return nil, err
	}
	return relationshipsFromRecords(result.Records), nil
}

func (s *Neo4jGraphStore) ListRelationshipsByReview(ctx context.Context, requiresHuman bool) ([]domain.Relationship, error) {
	result, err := s.run(ctx, listByReviewQuery, map[string]any{"requires_human": requiresHuman})
	if err != nil {
		return nil, err
	}
	return relationshipsFromRecords(result.Records), nil
}

func claimFromRecord(rec *neo4j.Record) *domain.Claim {
	c := &domain.Claim{}
	if v, ok := rec.Get("id"); ok {
		c.ID = neoString(v)
	}
	if v, ok := rec.Get("content"); ok {
		c.Text = neoString(v)
	}
	if v, ok := rec.Get("claim_type"); ok {
		c.Type = domain.ClaimType(neoString(v))
	}
	if v, ok := rec.Get("paper_id"); ok {
		c.PaperID = neoString(v)
	}
	if v, ok := rec.Get("section"); ok {
		c.Section = neoString(v)
	}
	if v, ok := rec.Get("confidence"); ok {
		c.Confidence = neoFloat(v)
	}
	if v, ok := rec.Get("embedding"); ok {
		c.Embedding = neoVector(v)
	}
	if v, ok := rec.Get("citation_count"); ok {
		c.CitationCount = neoInt(v)
	}
	if v, ok := rec.Get("centrality"); ok {
		c.Centrality = neoFloat(v)
	}
	if v, ok := rec.Get("created_at"); ok {
		c.CreatedAt = neoTime(v)
	}
	return c
}

func relationshipsFromRecords(records []*neo4j.Record) []domain.Relationship {
	var edges []domain.Relationship
	for _, rec := range records {
		var e domain.Relationship
		if v, ok := rec.Get("id"); ok {
			e.ID, _ = uuid.Parse(neoString(v))
		}
		if v, ok := rec.Get("from_id"); ok {
			e.FromClaimID = neoString(v)
		}
		if v, ok := rec.Get("to_id"); ok {
			e.ToClaimID = neoString(v)
		}
		if v, ok := rec.Get("relation_type"); ok {
			e.Type = domain.RelationType(neoString(v))
		}
		if v, ok := rec.Get("confidence"); ok {
			e.Confidence = neoFloat(v)
		}
		if v, ok := rec.Get("raw_confidence"); ok {
			e.RawConfidence = neoFloat(v)
		}
		if v, ok := rec.Get("citations"); ok {
			e.Citations = neoStrings(v)
		}
		if v, ok := rec.Get("debate_log"); ok {
			e.DebateLog = neoStrings(v)
		}
		if v, ok := rec.Get("requires_human"); ok {
			e.RequiresHuman = neoBool(v)
		}
		if v, ok := rec.Get("created_at"); ok {
			e.CreatedAt = neoTime(v)
		}
		edges = append(edges, e)
	}
	return edges
}

func neoString(v any) string {
	s, _ := v.(string)
	return s
}

func neoFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	}
	return 0
}

func neoInt(v any) int {
	switch n := v.(type) {
	case int64:
		return int(n)
	case float64:
		return int(n)
	}
	return 0
}

func neoBool(v any) bool {
	b, _ := v.(bool)
	return b
}

func neoStrings(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		if s, ok := it.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func neoVector(v any) []float32 {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]float32, 0, len(items))
	for _, it := range items {
		switch f := it.(type) {
		case float64:
			out = append(out, float32(f))
		case int64:
			out = append(out, float32(f))
		}
	}
	return out
}

func neoTime(v any) time.Time {
	s, ok := v.(string)
	if !ok {
		return time.Time{}
	}
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

// Verify interface compliance at compile time
var _ domain.GraphStore = (*Neo4jGraphStore)(nil)
