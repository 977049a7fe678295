package domain

type GapType string

const (
	GapContradictionResolution GapType = "contradiction_resolution"
	GapValidationNeeded        GapType = "validation_needed"
	GapMethodological          GapType = "methodological_gap"
)

type GapPriority string

const (
	PriorityHigh   GapPriority = "high"
	PriorityMedium GapPriority = "medium"
	PriorityLow    GapPriority = "low"
)

// GapPriorityRank orders priorities for deterministic sorting (lower sorts
// first).
var GapPriorityRank = map[GapPriority]int{
	PriorityHigh:   0,
	PriorityMedium: 1,
	PriorityLow:    2,
}

// ResearchGap is a derived artifact: recomputed on demand from graph state,
// never persisted, never referenced by other entities.
type ResearchGap struct {
	Type             GapType     `json:"gap_type"`
	Priority         GapPriority `json:"priority"`
	Description      string      `json:"description"`
	ClaimIDs         []string    `json:"involved_claim_ids"`
	EvidenceStrength float64     `json:"evidence_strength"`
	SuggestedAction  string      `json:"suggested_action"`
}
