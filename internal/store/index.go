package store

import (
	"context"
	"fmt"

	"github.com/dialectic-sh/dialectic/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
)

// PostgresVectorIndex and PostgresLexicalIndex share the evidence_index
// table. The vector side owns the embedding column; the lexical side rides
// the generated tsvector column, so a lexical-only upsert never clobbers a
// previously stored embedding.

type PostgresVectorIndex struct {
	db *pgxpool.Pool
}

func NewPostgresVectorIndex(db *pgxpool.Pool) *PostgresVectorIndex {
	return &PostgresVectorIndex{db: db}
}

func (s *PostgresVectorIndex) Upsert(ctx context.Context, id string, vector []float32, text, sourceID string, metadata map[string]string) error {
	var embedding *pgvector.Vector
	if len(vector) > 0 {
		v := pgvector.NewVector(vector)
		embedding = &v
	}
	if metadata == nil {
		metadata = map[string]string{}
	}

	_, err := s.db.Exec(ctx,
		`INSERT INTO evidence_index (id, content, source_id, metadata, embedding)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (id) DO UPDATE
		 SET content = EXCLUDED.content,
		     source_id = EXCLUDED.source_id,
		     metadata = EXCLUDED.metadata,
		     embedding = EXCLUDED.embedding`,
		id, text, sourceID, metadata, embedding,
	)
	return err
}

func (s *PostgresVectorIndex) Search(ctx context.Context, vector []float32, topK int) ([]domain.IndexHit, error) {
	if len(vector) == 0 || topK <= 0 {
		return nil, nil
	}
	vec := pgvector.NewVector(vector)

	rows, err := s.db.Query(ctx,
		`SELECT id, content, source_id, metadata,
		        1 - (embedding <=> $1) AS score
		 FROM evidence_index
		 WHERE embedding IS NOT NULL AND 1 - (embedding <=> $1) > 0
		 ORDER BY score DESC, id ASC
		 LIMIT $2`,
		vec, topK,
	)
	if err != nil {
		return nil, fmt.Errorf("vector search query: %w", err)
	}
	defer rows.Close()
	return scanIndexHits(rows)
}

type PostgresLexicalIndex struct {
	db *pgxpool.Pool
}

func NewPostgresLexicalIndex(db *pgxpool.Pool) *PostgresLexicalIndex {
	return &PostgresLexicalIndex{db: db}
}

func (s *PostgresLexicalIndex) Upsert(ctx context.Context, id, text, sourceID string, metadata map[string]string) error {
	if metadata == nil {
		metadata = map[string]string{}
	}

	_, err := s.db.Exec(ctx,
		`INSERT INTO evidence_index (id, content, source_id, metadata)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (id) DO UPDATE
		 SET content = EXCLUDED.content,
		     source_id = EXCLUDED.source_id,
		     metadata = EXCLUDED.metadata`,
		id, text, sourceID, metadata,
	)
	return err
}

func (s *PostgresLexicalIndex) Search(ctx context.Context, query string, topK int) ([]domain.IndexHit, error) {
	if query == "" || topK <= 0 {
		return nil, nil
	}

	rows, err := s.db.Query(ctx,
		`SELECT id, content, source_id, metadata,
		        ts_rank_cd(tsv, plainto_tsquery('english', $1)) AS score
		 FROM evidence_index
		 WHERE tsv @@ plainto_tsquery('english', $1)
		 ORDER BY score DESC, id ASC
		 LIMIT $2`,
		query, topK,
	)
	if err != nil {
		return nil, fmt.Errorf("lexical search query: %w", err)
	}
	defer rows.Close()
	return scanIndexHits(rows)
}

func scanIndexHits(rows pgx.Rows) ([]domain.IndexHit, error) {
	var hits []domain.IndexHit
	for rows.Next() {
		var h domain.IndexHit
		if err := rows.Scan(&h.ID, &h.Text, &h.SourceID, &h.Metadata, &h.Score); err != nil {
			return nil, err
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

// Verify interface compliance at compile time
var (
	_ domain.VectorIndex  = (*PostgresVectorIndex)(nil)
	_ domain.LexicalIndex = (*PostgresLexicalIndex)(nil)
)
