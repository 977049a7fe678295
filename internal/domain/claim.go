package domain

import (
	"time"
)

type ClaimType string

const (
	ClaimFinding     ClaimType = "finding"
	ClaimMethod      ClaimType = "method"
	ClaimImplication ClaimType = "implication"
	ClaimHypothesis  ClaimType = "hypothesis"
)

func ValidClaimType(t string) bool {
	switch ClaimType(t) {
	case ClaimFinding, ClaimMethod, ClaimImplication, ClaimHypothesis:
		return true
	}
	return false
}

// Claim is a single assertion extracted from a paper by the upstream
// ingestion pipeline. The core treats claims as read-only except for
// CitationCount and Centrality, which the graph analyzer maintains.
type Claim struct {
	ID            string    `json:"claim_id"`
	Text          string    `json:"text"`
	Type          ClaimType `json:"claim_type"`
	PaperID       string    `json:"source_paper_id,omitempty"`
	Section       string    `json:"section,omitempty"`
	Confidence    float64   `json:"confidence"`
	Embedding     []float32 `json:"-"`
	CitationCount int       `json:"citation_count"`
	Centrality    float64   `json:"centrality"`
	CreatedAt     time.Time `json:"created_at"`
}

// Chunk is an evidence snippet produced upstream. Immutable once indexed.
type Chunk struct {
	ID        string            `json:"chunk_id"`
	Text      string            `json:"text"`
	SourceID  string            `json:"source_id,omitempty"`
	Page      int               `json:"page,omitempty"`
	Embedding []float32         `json:"-"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}
