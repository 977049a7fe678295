package domain

import (
	"time"

	"github.com/google/uuid"
)

type RelationType string

const (
	RelationSupports  RelationType = "supports"
	RelationRefutes   RelationType = "refutes"
	RelationExtends   RelationType = "extends"
	RelationUncertain RelationType = "uncertain"
)

func ValidRelationType(r string) bool {
	switch RelationType(r) {
	case RelationSupports, RelationRefutes, RelationExtends, RelationUncertain:
		return true
	}
	return false
}

// OppositeRelations maps each relation type to the type that directly
// conflicts with it when both connect the same claim pair.
var OppositeRelations = map[RelationType]RelationType{
	RelationSupports: RelationRefutes,
	RelationRefutes:  RelationSupports,
}

// CitationBound indicates relation types that must carry at least
// MinCitations evidence citations to be persisted as-is.
var CitationBound = map[RelationType]bool{
	RelationSupports: true,
	RelationRefutes:  true,
}

// Relationship is a directed edge between two claims, produced by a debate.
// Edges are append-only: corrections create new edges, history is never
// mutated.
type Relationship struct {
	ID            uuid.UUID    `json:"id"`
	FromClaimID   string       `json:"from_claim_id"`
	ToClaimID     string       `json:"to_claim_id"`
	Type          RelationType `json:"relation_type"`
	Confidence    float64      `json:"confidence"`
	RawConfidence float64      `json:"raw_confidence"`
	Citations     []string     `json:"citations"`
	DebateLog     []string     `json:"debate_log,omitempty"`
	RequiresHuman bool         `json:"requires_human"`
	CreatedAt     time.Time    `json:"created_at"`
}

// WellCited reports whether the edge satisfies the citation floor for its
// relation type. Uncertain and extends edges are never citation-bound.
func (r *Relationship) WellCited(minCitations int) bool {
	if !CitationBound[r.Type] {
		return true
	}
	return len(r.Citations) >= minCitations
}
