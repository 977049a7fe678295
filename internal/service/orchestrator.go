package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dialectic-sh/dialectic/internal/debate"
	"github.com/dialectic-sh/dialectic/internal/domain"
	"github.com/dialectic-sh/dialectic/internal/retrieval"
)

// Default policy thresholds for persisting debate verdicts.
const (
	DefaultMinConfidence   = 0.85
	DefaultMinCitations    = 2
	DefaultEvidenceTopK    = 5
	DefaultSimilarityFloor = 0.3
	DefaultDebateCacheTTL  = 30 * time.Minute

	reviewMinEvidence   = 3
	reviewMinSimilarity = 0.7
)

// Orchestrator wraps the debate machine with evidence retrieval and the
// citation/confidence policy. It is the only writer of relationship edges:
// every persisted supports/refutes edge has passed the policy gate, and
// edges that did not are downgraded to uncertain and flagged for review.
type Orchestrator struct {
	graph      domain.GraphStore
	searcher   domain.Searcher
	machine    *debate.Machine
	calibrator *Calibrator
	cache      *gocache.Cache
	logger     *zap.Logger

	// Policy thresholds. Tunable before the first debate.
	MinConfidence   float64
	MinCitations    int
	EvidenceTopK    int
	SimilarityFloor float64
}

func NewOrchestrator(graph domain.GraphStore, searcher domain.Searcher, machine *debate.Machine, cacheTTL time.Duration, logger *zap.Logger) *Orchestrator {
	if cacheTTL <= 0 {
		cacheTTL = DefaultDebateCacheTTL
	}
	return &Orchestrator{
		graph:      graph,
		searcher:   searcher,
		machine:    machine,
		calibrator: NewCalibrator(),
		cache:      gocache.New(cacheTTL, 2*cacheTTL),
		logger:     logger,

		MinConfidence:   DefaultMinConfidence,
		MinCitations:    DefaultMinCitations,
		EvidenceTopK:    DefaultEvidenceTopK,
		SimilarityFloor: DefaultSimilarityFloor,
	}
}

// DebateClaimPair retrieves evidence for both claims, runs the debate
// machine, applies the citation/confidence policy, and persists the
// resulting edge. Repeated calls for the same ordered pair are served from
// cache until the TTL expires.
func (o *Orchestrator) DebateClaimPair(ctx context.Context, claimAID, claimBID string) (*domain.Relationship, error) {
	return o.debate(ctx, claimAID, claimBID, nil)
}

// DebateClaimPairStream is DebateClaimPair with stage tokens forwarded to
// observer as they are generated.
func (o *Orchestrator) DebateClaimPairStream(ctx context.Context, claimAID, claimBID string, observer debate.TokenObserver) (*domain.Relationship, error) {
	return o.debate(ctx, claimAID, claimBID, observer)
}

func (o *Orchestrator) debate(ctx context.Context, claimAID, claimBID string, observer debate.TokenObserver) (*domain.Relationship, error) {
	if cached, found := o.cache.Get(pairKey(claimAID, claimBID)); found {
		rel := cached.(domain.Relationship)
		o.logger.Debug("debate cache hit",
			zap.String("from_claim", claimAID),
			zap.String("to_claim", claimBID))
		return &rel, nil
	}

	claimA, err := o.graph.GetClaim(ctx, claimAID)
	if err != nil {
		return nil, fmt.Errorf("load claim %s: %w", claimAID, err)
	}
	claimB, err := o.graph.GetClaim(ctx, claimBID)
	if err != nil {
		return nil, fmt.Errorf("load claim %s: %w", claimBID, err)
	}

	// Claims about unrelated topics are not worth a debate. The skip is
	// persisted as a zero-confidence uncertain edge so the pair is never
	// re-queued, but it carries no review flag.
	if len(claimA.Embedding) > 0 && len(claimB.Embedding) > 0 {
		if sim := retrieval.CosineSimilarity(claimA.Embedding, claimB.Embedding); sim < o.SimilarityFloor {
			o.logger.Info("skipping debate below similarity floor",
				zap.String("from_claim", claimAID),
				zap.String("to_claim", claimBID),
				zap.Float64("similarity", sim))
			return o.persist(ctx, &domain.Relationship{
				FromClaimID: claimAID,
				ToClaimID:   claimBID,
				Type:        domain.RelationUncertain,
				Citations:   []string{},
				DebateLog: []string{
					fmt.Sprintf("debate skipped: claim similarity %.3f below %.2f floor", sim, o.SimilarityFloor),
				},
			})
		}
	}

	state := &domain.DebateState{ClaimA: *claimA, ClaimB: *claimB}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		state.EvidenceA, err = o.retrieveEvidence(gctx, claimA)
		return err
	})
	g.Go(func() error {
		var err error
		state.EvidenceB, err = o.retrieveEvidence(gctx, claimB)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("evidence retrieval: %w", err)
	}

	machine := o.machine
	if observer != nil {
		machine = machine.WithObserver(observer)
	}
	if err := machine.Run(ctx, state); err != nil {
		if errors.Is(err, debate.ErrMalformedVerdict) {
			o.logger.Error("synthesizer produced malformed verdict",
				zap.String("from_claim", claimAID),
				zap.String("to_claim", claimBID),
				zap.Error(err))
		}
		return nil, fmt.Errorf("debate %s -> %s: %w", claimAID, claimBID, err)
	}
	verdict := state.Verdict

	// Citations are only trusted against the evidence the debate actually
	// saw. Anything else the model made up.
	supplied := state.EvidenceIDs()
	seen := make(map[string]bool)
	citations := make([]string, 0, len(verdict.Citations))
	dropped := 0
	for _, id := range verdict.Citations {
		switch {
		case !supplied[id]:
			dropped++
		case !seen[id]:
			seen[id] = true
			citations = append(citations, id)
		}
	}
	if dropped > 0 {
		o.logger.Warn("dropped citations missing from the evidence pool",
			zap.Int("dropped", dropped),
			zap.String("from_claim", claimAID),
			zap.String("to_claim", claimBID))
	}

	calibrated, label := o.calibrator.Calibrate(verdict.Confidence)

	rel := &domain.Relationship{
		FromClaimID:   claimAID,
		ToClaimID:     claimBID,
		Type:          verdict.Relation,
		Confidence:    calibrated,
		RawConfidence: verdict.Confidence,
		Citations:     citations,
		DebateLog: append(state.Transcript(),
			fmt.Sprintf("calibration: %.3f -> %.3f (%s)", verdict.Confidence, calibrated, label)),
	}

	if calibrated < o.MinConfidence || len(citations) < o.MinCitations {
		o.logger.Info("policy override to uncertain",
			zap.String("from_claim", claimAID),
			zap.String("to_claim", claimBID),
			zap.String("verdict", string(verdict.Relation)),
			zap.Float64("confidence", calibrated),
			zap.Int("citations", len(citations)))
		rel.DebateLog = append(rel.DebateLog,
			fmt.Sprintf("policy override: %s -> uncertain (confidence %.3f, citations %d)",
				verdict.Relation, calibrated, len(citations)))
		rel.Type = domain.RelationUncertain
		rel.RequiresHuman = true
	} else if flagged, reason := o.reviewFlag(state); flagged {
		rel.RequiresHuman = true
		rel.DebateLog = append(rel.DebateLog, "review: "+reason)
		o.logger.Info("flagging edge for review",
			zap.String("from_claim", claimAID),
			zap.String("to_claim", claimBID),
			zap.String("reason", reason))
	}

	return o.persist(ctx, rel)
}

// retrieveEvidence degrades to empty evidence on retrieval failure; the
// debate still runs and the citation policy downgrades the verdict. Only
// caller cancellation aborts.
func (o *Orchestrator) retrieveEvidence(ctx context.Context, claim *domain.Claim) ([]domain.SearchResult, error) {
	results, err := o.searcher.Search(ctx, domain.SearchRequest{Query: claim.Text, TopK: o.EvidenceTopK})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		o.logger.Warn("evidence retrieval failed, debating without evidence",
			zap.String("claim_id", claim.ID),
			zap.Error(err))
		return nil, nil
	}
	return results, nil
}

// reviewFlag reports whether a kept verdict should still be routed to a
// human: a thin evidence pool, or evidence only weakly related to the
// claims.
func (o *Orchestrator) reviewFlag(state *domain.DebateState) (bool, string) {
	pool := state.Evidence()
	if len(pool) < reviewMinEvidence {
		return true, fmt.Sprintf("evidence pool has %d items", len(pool))
	}
	var sum float64
	for _, e := range pool {
		sum += e.DenseScore
	}
	if avg := sum / float64(len(pool)); avg < reviewMinSimilarity {
		return true, fmt.Sprintf("mean evidence similarity %.3f", avg)
	}
	return false, ""
}

func (o *Orchestrator) persist(ctx context.Context, rel *domain.Relationship) (*domain.Relationship, error) {
	if err := o.graph.AddRelationship(ctx, rel); err != nil {
		return nil, fmt.Errorf("persist relationship: %w", err)
	}
	o.cache.Set(pairKey(rel.FromClaimID, rel.ToClaimID), *rel, gocache.DefaultExpiration)
	o.logger.Info("relationship persisted",
		zap.String("id", rel.ID.String()),
		zap.String("from_claim", rel.FromClaimID),
		zap.String("to_claim", rel.ToClaimID),
		zap.String("relation", string(rel.Type)),
		zap.Float64("confidence", rel.Confidence),
		zap.Bool("requires_human", rel.RequiresHuman))
	return rel, nil
}

// pairKey is the cache key for a directed claim pair.
func pairKey(fromID, toID string) string {
	return fromID + "|" + toID
}
