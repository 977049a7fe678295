package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/dialectic-sh/dialectic/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
)

type PostgresGraphStore struct {
	db *pgxpool.Pool
}

func NewPostgresGraphStore(db *pgxpool.Pool) *PostgresGraphStore {
	return &PostgresGraphStore{db: db}
}

func (s *PostgresGraphStore) UpsertClaim(ctx context.Context, c *domain.Claim) error {
	var embedding *pgvector.Vector
	if len(c.Embedding) > 0 {
		v := pgvector.NewVector(c.Embedding)
		embedding = &v
	}

	// Conflict keeps created_at and the analyzer-maintained metrics; a
	// missing embedding on re-ingest keeps the stored one.
	return s.db.QueryRow(ctx,
		`INSERT INTO claims (id, content, claim_type, paper_id, section, confidence, embedding)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (id) DO UPDATE
		 SET content = EXCLUDED.content,
		     claim_type = EXCLUDED.claim_type,
		     paper_id = EXCLUDED.paper_id,
		     section = EXCLUDED.section,
		     confidence = EXCLUDED.confidence,
		     embedding = COALESCE(EXCLUDED.embedding, claims.embedding)
		 RETURNING created_at`,
		c.ID, c.Text, c.Type, c.PaperID, c.Section, c.Confidence, embedding,
	).Scan(&c.CreatedAt)
}

func (s *PostgresGraphStore) GetClaim(ctx context.Context, id string) (*domain.Claim, error) {
	c := &domain.Claim{}
	var embedding *pgvector.Vector
	err := s.db.QueryRow(ctx,
		`SELECT id, content, claim_type, paper_id, section, confidence, embedding, citation_count, centrality, created_at
		 FROM claims WHERE id = $1`,
		id,
	).Scan(&c.ID, &c.Text, &c.Type, &c.PaperID, &c.Section, &c.Confidence, &embedding, &c.CitationCount, &c.Centrality, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if embedding != nil {
		c.Embedding = embedding.Slice()
	}
	return c, nil
}

func (s *PostgresGraphStore) ListClaims(ctx context.Context) ([]domain.Claim, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, content, claim_type, paper_id, section, confidence, citation_count, centrality, created_at
		 FROM claims
		 ORDER BY id ASC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var claims []domain.Claim
	for rows.Next() {
		var c domain.Claim
		if err := rows.Scan(&c.ID, &c.Text, &c.Type, &c.PaperID, &c.Section, &c.Confidence, &c.CitationCount, &c.Centrality, &c.CreatedAt); err != nil {
			return nil, err
		}
		claims = append(claims, c)
	}
	return claims, rows.Err()
}

func (s *PostgresGraphStore) UpdateClaimMetrics(ctx context.Context, id string, citationCount int, centrality float64) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE claims SET citation_count = $1, centrality = $2 WHERE id = $3`,
		citationCount, centrality, id,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresGraphStore) AddRelationship(ctx context.Context, r *domain.Relationship) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	citations := r.Citations
	if citations == nil {
		citations = []string{}
	}
	debateLog := r.DebateLog
	if debateLog == nil {
		debateLog = []string{}
	}

	err := s.db.QueryRow(ctx,
		`INSERT INTO relationships (id, from_claim_id, to_claim_id, relation_type, confidence, raw_confidence, citations, debate_log, requires_human)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING created_at`,
		r.ID, r.FromClaimID, r.ToClaimID, r.Type, r.Confidence, r.RawConfidence, citations, debateLog, r.RequiresHuman,
	).Scan(&r.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			// Foreign key violation: one of the claim endpoints is missing.
			return ErrNotFound
		}
		return err
	}
	return nil
}

func (s *PostgresGraphStore) ListRelationships(ctx context.Context) ([]domain.Relationship, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, from_claim_id, to_claim_id, relation_type, confidence, raw_confidence, citations, debate_log, requires_human, created_at
		 FROM relationships
		 ORDER BY created_at ASC, id ASC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRelationships(rows)
}

func (s *PostgresGraphStore) GetNeighbors(ctx context.Context, claimID string, relation *domain.RelationType) ([]domain.Relationship, error) {
	query := `SELECT id, from_claim_id, to_claim_id, relation_type, confidence, raw_confidence, citations, debate_log, requires_human, created_at
		 FROM relationships
		 WHERE (from_claim_id = $1 OR to_claim_id = $1)`
	args := []any{claimID}

	if relation != nil {
		query += fmt.Sprintf(" AND relation_type = $%d", len(args)+1)
		args = append(args, string(*relation))
	}
	query += " ORDER BY created_at ASC, id ASC"

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRelationships(rows)
}

func (s *PostgresGraphStore) ListRelationshipsByReview(ctx context.Context, requiresHuman bool) ([]domain.Relationship, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, from_claim_id, to_claim_id, relation_type, confidence, raw_confidence, citations, debate_log, requires_human, created_at
		 FROM relationships
		 WHERE requires_human = $1
		 ORDER BY created_at ASC, id ASC`,
		requiresHuman,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRelationships(rows)
}

func scanRelationships(rows pgx.Rows) ([]domain.Relationship, error) {
	var edges []domain.Relationship
	for rows.Next() {
		var e domain.Relationship
		if err := rows.Scan(&e.ID, &e.FromClaimID, &e.ToClaimID, &e.Type, &e.Confidence, &e.RawConfidence,
			&e.Citations, &e.DebateLog, &e.RequiresHuman, &e.CreatedAt); err != nil {
			return nil, err
		}
		edges = append(edges, e)
	}
	return edges, rows.Err()
}

// Verify interface compliance at compile time
var _ domain.GraphStore = (*PostgresGraphStore)(nil)
