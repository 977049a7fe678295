package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// EnsureSchema creates the tables and indexes the Postgres stores expect.
// Every statement is idempotent, so running it on every startup is safe.
// The embedding columns are undimensioned vectors: dimensions depend on the
// configured embedding model, and the exact-scan operators work either way.
func EnsureSchema(ctx context.Context, db *pgxpool.Pool) error {
	statements := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,

		`CREATE TABLE IF NOT EXISTS claims (
			id             TEXT PRIMARY KEY,
			content        TEXT NOT NULL,
			claim_type     TEXT NOT NULL,
			paper_id       TEXT NOT NULL DEFAULT '',
			section        TEXT NOT NULL DEFAULT '',
			confidence     DOUBLE PRECISION NOT NULL DEFAULT 0,
			embedding      vector,
			citation_count INTEGER NOT NULL DEFAULT 0,
			centrality     DOUBLE PRECISION NOT NULL DEFAULT 0,
			created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,

		`CREATE TABLE IF NOT EXISTS relationships (
			id             UUID PRIMARY KEY,
			from_claim_id  TEXT NOT NULL REFERENCES claims(id) ON DELETE CASCADE,
			to_claim_id    TEXT NOT NULL REFERENCES claims(id) ON DELETE CASCADE,
			relation_type  TEXT NOT NULL,
			confidence     DOUBLE PRECISION NOT NULL DEFAULT 0,
			raw_confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
			citations      TEXT[] NOT NULL DEFAULT '{}',
			debate_log     TEXT[] NOT NULL DEFAULT '{}',
			requires_human BOOLEAN NOT NULL DEFAULT FALSE,
			created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,

		`CREATE INDEX IF NOT EXISTS idx_relationships_from ON relationships (from_claim_id)`,
		`CREATE INDEX IF NOT EXISTS idx_relationships_to ON relationships (to_claim_id)`,
		`CREATE INDEX IF NOT EXISTS idx_relationships_review ON relationships (requires_human)`,

		`CREATE TABLE IF NOT EXISTS evidence_index (
			id         TEXT PRIMARY KEY,
			content    TEXT NOT NULL,
			source_id  TEXT NOT NULL DEFAULT '',
			metadata   JSONB NOT NULL DEFAULT '{}',
			embedding  vector,
			tsv        tsvector GENERATED ALWAYS AS (to_tsvector('english', content)) STORED
		)`,

		`CREATE INDEX IF NOT EXISTS idx_evidence_tsv ON evidence_index USING GIN (tsv)`,
	}

	for _, stmt := range statements {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
