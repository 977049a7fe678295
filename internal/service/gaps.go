package service

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/dialectic-sh/dialectic/internal/domain"
)

// Default thresholds feeding the analyzer queries behind gap generation.
const (
	DefaultContradictionConfidence = 0.85
	DefaultFrontierConfidence      = 0.6

	gapSupportFloor = 2
)

// Suggested actions are fixed per gap type so identical graph state always
// produces an identical report.
const (
	actionResolveContradiction = "Design a study that isolates the disputed variable and can falsify one side."
	actionValidateClaim        = "Seek independent replication or primary evidence for this finding."
	actionStrengthenEvidence   = "Gather stronger evidence and re-debate the low-confidence relationships."
)

// GapGenerator turns analyzer output into a prioritized list of research
// gaps. Gaps are derived artifacts: recomputed on every call, never stored,
// and deterministic for a given graph state.
type GapGenerator struct {
	analyzer *Analyzer
	graph    domain.GraphStore
	logger   *zap.Logger

	ContradictionConfidence float64
	FrontierConfidence      float64
}

func NewGapGenerator(analyzer *Analyzer, graph domain.GraphStore, logger *zap.Logger) *GapGenerator {
	return &GapGenerator{
		analyzer: analyzer,
		graph:    graph,
		logger:   logger,

		ContradictionConfidence: DefaultContradictionConfidence,
		FrontierConfidence:      DefaultFrontierConfidence,
	}
}

// Generate runs all three gap detectors and returns the combined list sorted
// by priority, then by first involved claim id.
func (g *GapGenerator) Generate(ctx context.Context) ([]domain.ResearchGap, error) {
	gaps := make([]domain.ResearchGap, 0)

	contradictions, err := g.analyzer.FindContradictions(ctx, g.ContradictionConfidence)
	if err != nil {
		return nil, fmt.Errorf("contradiction gaps: %w", err)
	}
	for _, pair := range contradictions {
		gap, err := g.contradictionGap(ctx, pair)
		if err != nil {
			return nil, err
		}
		gaps = append(gaps, gap)
	}

	unsupported, err := g.analyzer.FindUnsupportedClaims(ctx)
	if err != nil {
		return nil, fmt.Errorf("validation gaps: %w", err)
	}
	for _, claim := range unsupported {
		if claim.Type != domain.ClaimFinding {
			continue
		}
		gap, err := g.validationGap(ctx, claim)
		if err != nil {
			return nil, err
		}
		gaps = append(gaps, gap)
	}

	frontier, err := g.analyzer.FindFrontierEdges(ctx, g.FrontierConfidence)
	if err != nil {
		return nil, fmt.Errorf("methodological gaps: %w", err)
	}
	gaps = append(gaps, methodologicalGaps(frontier)...)

	sort.SliceStable(gaps, func(i, j int) bool {
		pi, pj := domain.GapPriorityRank[gaps[i].Priority], domain.GapPriorityRank[gaps[j].Priority]
		if pi != pj {
			return pi < pj
		}
		return gaps[i].ClaimIDs[0] < gaps[j].ClaimIDs[0]
	})

	g.logger.Debug("research gaps generated", zap.Int("gaps", len(gaps)))
	return gaps, nil
}

// contradictionGap is high priority only when both claims are independently
// well supported; a contradiction between two poorly sourced claims is less
// urgent than it looks.
func (g *GapGenerator) contradictionGap(ctx context.Context, pair domain.ContradictionPair) (domain.ResearchGap, error) {
	supportA, err := g.supportElsewhere(ctx, pair.ClaimAID, pair)
	if err != nil {
		return domain.ResearchGap{}, err
	}
	supportB, err := g.supportElsewhere(ctx, pair.ClaimBID, pair)
	if err != nil {
		return domain.ResearchGap{}, err
	}

	priority := domain.PriorityMedium
	if supportA >= gapSupportFloor && supportB >= gapSupportFloor {
		priority = domain.PriorityHigh
	}
	return domain.ResearchGap{
		Type:     domain.GapContradictionResolution,
		Priority: priority,
		Description: fmt.Sprintf("Claims %s and %s are joined by a confident refutation (%d edge(s) in conflict)",
			pair.ClaimAID, pair.ClaimBID, len(pair.Edges)),
		ClaimIDs:         []string{pair.ClaimAID, pair.ClaimBID},
		EvidenceStrength: meanConfidence(pair.Edges),
		SuggestedAction:  actionResolveContradiction,
	}, nil
}

// supportElsewhere counts distinct citations on supports edges incident to
// the claim, ignoring edges inside the contradiction pair itself.
func (g *GapGenerator) supportElsewhere(ctx context.Context, claimID string, pair domain.ContradictionPair) (int, error) {
	supports := domain.RelationSupports
	edges, err := g.graph.GetNeighbors(ctx, claimID, &supports)
	if err != nil {
		return 0, fmt.Errorf("supporting edges for %s: %w", claimID, err)
	}
	pairKey := unorderedPairKey(pair.ClaimAID, pair.ClaimBID)
	distinct := make(map[string]bool)
	for _, e := range edges {
		if unorderedPairKey(e.FromClaimID, e.ToClaimID) == pairKey {
			continue
		}
		for _, cit := range e.Citations {
			distinct[cit] = true
		}
	}
	return len(distinct), nil
}

func (g *GapGenerator) validationGap(ctx context.Context, claim domain.Claim) (domain.ResearchGap, error) {
	edges, err := g.graph.GetNeighbors(ctx, claim.ID, nil)
	if err != nil {
		return domain.ResearchGap{}, fmt.Errorf("incident edges for %s: %w", claim.ID, err)
	}
	return domain.ResearchGap{
		Type:             domain.GapValidationNeeded,
		Priority:         domain.PriorityMedium,
		Description:      fmt.Sprintf("Finding %s has no confident connection to any other claim", claim.ID),
		ClaimIDs:         []string{claim.ID},
		EvidenceStrength: meanConfidence(edges),
		SuggestedAction:  actionValidateClaim,
	}, nil
}

// methodologicalGaps emits one gap per claim that sits on two or more
// frontier edges.
func methodologicalGaps(frontier []domain.Relationship) []domain.ResearchGap {
	incident := make(map[string][]domain.Relationship)
	for _, e := range frontier {
		incident[e.FromClaimID] = append(incident[e.FromClaimID], e)
		incident[e.ToClaimID] = append(incident[e.ToClaimID], e)
	}

	shared := make([]string, 0, len(incident))
	for id, edges := range incident {
		if len(edges) >= 2 {
			shared = append(shared, id)
		}
	}
	sort.Strings(shared)

	gaps := make([]domain.ResearchGap, 0, len(shared))
	for _, id := range shared {
		edges := incident[id]
		others := make(map[string]bool)
		for _, e := range edges {
			if e.FromClaimID != id {
				others[e.FromClaimID] = true
			}
			if e.ToClaimID != id {
				others[e.ToClaimID] = true
			}
		}
		involved := []string{id}
		for other := range others {
			involved = append(involved, other)
		}
		sort.Strings(involved[1:])

		gaps = append(gaps, domain.ResearchGap{
			Type:     domain.GapMethodological,
			Priority: domain.PriorityLow,
			Description: fmt.Sprintf("Claim %s sits on %d low-confidence relationships",
				id, len(edges)),
			ClaimIDs:         involved,
			EvidenceStrength: meanConfidence(edges),
			SuggestedAction:  actionStrengthenEvidence,
		})
	}
	return gaps
}

func meanConfidence(edges []domain.Relationship) float64 {
	if len(edges) == 0 {
		return 0
	}
	var sum float64
	for _, e := range edges {
		sum += e.Confidence
	}
	return sum / float64(len(edges))
}
