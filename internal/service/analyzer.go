package service

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/dialectic-sh/dialectic/internal/domain"
	"github.com/dialectic-sh/dialectic/internal/store"
)

const (
	pageRankDamping    = 0.85
	pageRankIterations = 30
	exportTextLimit    = 100
)

// Analyzer answers topology queries over the claim graph. The durable copy
// lives in the GraphStore; the analyzer rebuilds its in-memory adjacency on
// every query, so results always reflect the latest committed edges. All
// queries are read-only; only RefreshMetrics writes, and only through
// UpdateClaimMetrics.
type Analyzer struct {
	graph  domain.GraphStore
	logger *zap.Logger

	mu     sync.RWMutex
	claims []domain.Claim
	byID   map[string]int
	edges  []domain.Relationship
	out    map[string][]int
	in     map[string][]int
}

func NewAnalyzer(graph domain.GraphStore, logger *zap.Logger) *Analyzer {
	return &Analyzer{graph: graph, logger: logger}
}

// Sync reloads claims and edges from the store and rebuilds the adjacency
// indexes.
func (a *Analyzer) Sync(ctx context.Context) error {
	claims, err := a.graph.ListClaims(ctx)
	if err != nil {
		return fmt.Errorf("sync claims: %w", err)
	}
	edges, err := a.graph.ListRelationships(ctx)
	if err != nil {
		return fmt.Errorf("sync relationships: %w", err)
	}

	byID := make(map[string]int, len(claims))
	for i, c := range claims {
		byID[c.ID] = i
	}
	out := make(map[string][]int)
	in := make(map[string][]int)
	for i, e := range edges {
		out[e.FromClaimID] = append(out[e.FromClaimID], i)
		in[e.ToClaimID] = append(in[e.ToClaimID], i)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.claims = claims
	a.byID = byID
	a.edges = edges
	a.out = out
	a.in = in
	return nil
}

// FindContradictions returns claim pairs joined by a refutes edge at or
// above minConfidence. Every opposing edge between the same pair is included
// alongside the refutation so callers see the full conflict.
func (a *Analyzer) FindContradictions(ctx context.Context, minConfidence float64) ([]domain.ContradictionPair, error) {
	if err := a.Sync(ctx); err != nil {
		return nil, err
	}
	a.mu.RLock()
	defer a.mu.RUnlock()

	grouped := make(map[string][]int)
	order := make([]string, 0)
	for i, e := range a.edges {
		key := unorderedPairKey(e.FromClaimID, e.ToClaimID)
		if _, ok := grouped[key]; !ok {
			order = append(order, key)
		}
		grouped[key] = append(grouped[key], i)
	}

	pairs := make([]domain.ContradictionPair, 0)
	for _, key := range order {
		var refuting []int
		for _, i := range grouped[key] {
			e := a.edges[i]
			if e.Type == domain.RelationRefutes && e.Confidence >= minConfidence {
				refuting = append(refuting, i)
			}
		}
		if len(refuting) == 0 {
			continue
		}

		opposite := domain.OppositeRelations[domain.RelationRefutes]
		pair := domain.ContradictionPair{
			ClaimAID: a.edges[refuting[0]].FromClaimID,
			ClaimBID: a.edges[refuting[0]].ToClaimID,
		}
		for _, i := range grouped[key] {
			e := a.edges[i]
			if (e.Type == domain.RelationRefutes && e.Confidence >= minConfidence) || e.Type == opposite {
				pair.Edges = append(pair.Edges, e)
			}
		}
		pairs = append(pairs, pair)
	}

	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].ClaimAID != pairs[j].ClaimAID {
			return pairs[i].ClaimAID < pairs[j].ClaimAID
		}
		return pairs[i].ClaimBID < pairs[j].ClaimBID
	})
	return pairs, nil
}

// FindUnsupportedClaims returns claims no debate has confidently connected
// to anything: no incident edges at all, or only uncertain ones.
func (a *Analyzer) FindUnsupportedClaims(ctx context.Context) ([]domain.Claim, error) {
	if err := a.Sync(ctx); err != nil {
		return nil, err
	}
	a.mu.RLock()
	defer a.mu.RUnlock()

	unsupported := make([]domain.Claim, 0)
	for _, c := range a.claims {
		connected := false
		for _, i := range append(append([]int{}, a.out[c.ID]...), a.in[c.ID]...) {
			if a.edges[i].Type != domain.RelationUncertain {
				connected = true
				break
			}
		}
		if !connected {
			unsupported = append(unsupported, c)
		}
	}
	return unsupported, nil
}

// FindFrontierEdges returns edges at or below maxConfidence, most uncertain
// first. These are the relationships worth re-debating once more evidence
// arrives.
func (a *Analyzer) FindFrontierEdges(ctx context.Context, maxConfidence float64) ([]domain.Relationship, error) {
	if err := a.Sync(ctx); err != nil {
		return nil, err
	}
	a.mu.RLock()
	defer a.mu.RUnlock()

	frontier := make([]domain.Relationship, 0)
	for _, e := range a.edges {
		if e.Confidence <= maxConfidence {
			frontier = append(frontier, e)
		}
	}
	sort.SliceStable(frontier, func(i, j int) bool {
		return frontier[i].Confidence < frontier[j].Confidence
	})
	return frontier, nil
}

// EvidencePath returns the shortest directed path from one claim to another
// as the ordered edges traversed. Among equal-length paths the one with the
// highest summed confidence wins. An empty slice means disconnected.
func (a *Analyzer) EvidencePath(ctx context.Context, fromID, toID string) ([]domain.Relationship, error) {
	if err := a.Sync(ctx); err != nil {
		return nil, err
	}
	a.mu.RLock()
	defer a.mu.RUnlock()

	if _, ok := a.byID[fromID]; !ok {
		return nil, fmt.Errorf("claim %s: %w", fromID, store.ErrNotFound)
	}
	if _, ok := a.byID[toID]; !ok {
		return nil, fmt.Errorf("claim %s: %w", toID, store.ErrNotFound)
	}
	if fromID == toID {
		return []domain.Relationship{}, nil
	}

	type visit struct {
		conf     float64
		prevNode string
		prevEdge int
	}
	best := map[string]visit{fromID: {prevEdge: -1}}
	queue := []string{fromID}

	// Level-synchronous BFS: all paths of length L are settled before any of
	// length L+1, which makes the max-confidence tie-break exact.
	for len(queue) > 0 {
		if _, done := best[toID]; done {
			break
		}
		next := make(map[string]visit)
		for _, node := range queue {
			for _, i := range a.out[node] {
				e := a.edges[i]
				if _, settled := best[e.ToClaimID]; settled {
					continue
				}
				cand := visit{conf: best[node].conf + e.Confidence, prevNode: node, prevEdge: i}
				if cur, ok := next[e.ToClaimID]; !ok || cand.conf > cur.conf {
					next[e.ToClaimID] = cand
				}
			}
		}
		if len(next) == 0 {
			break
		}
		queue = queue[:0]
		for node, v := range next {
			best[node] = v
			queue = append(queue, node)
		}
		sort.Strings(queue)
	}

	if _, ok := best[toID]; !ok {
		return []domain.Relationship{}, nil
	}
	path := make([]domain.Relationship, 0)
	for node := toID; node != fromID; node = best[node].prevNode {
		path = append(path, a.edges[best[node].prevEdge])
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path, nil
}

// RefreshMetrics recomputes per-claim citation counts and PageRank
// centrality and writes them through the store. The next Sync picks the new
// values up.
func (a *Analyzer) RefreshMetrics(ctx context.Context) error {
	if err := a.Sync(ctx); err != nil {
		return err
	}

	a.mu.RLock()
	citations := make(map[string]int, len(a.claims))
	for _, c := range a.claims {
		distinct := make(map[string]bool)
		for _, i := range append(append([]int{}, a.out[c.ID]...), a.in[c.ID]...) {
			for _, cit := range a.edges[i].Citations {
				distinct[cit] = true
			}
		}
		citations[c.ID] = len(distinct)
	}
	centrality := a.pageRank()
	ids := make([]string, 0, len(a.claims))
	for _, c := range a.claims {
		ids = append(ids, c.ID)
	}
	a.mu.RUnlock()

	for _, id := range ids {
		if err := a.graph.UpdateClaimMetrics(ctx, id, citations[id], centrality[id]); err != nil {
			return fmt.Errorf("update metrics for %s: %w", id, err)
		}
	}
	a.logger.Info("claim metrics refreshed", zap.Int("claims", len(ids)))
	return nil
}

// pageRank runs a fixed-iteration PageRank over the claim graph. Parallel
// edges between the same pair collapse to one link; dangling mass is spread
// uniformly. Caller holds at least a read lock.
func (a *Analyzer) pageRank() map[string]float64 {
	n := len(a.claims)
	if n == 0 {
		return map[string]float64{}
	}

	succ := make(map[string][]string, n)
	for _, c := range a.claims {
		seen := make(map[string]bool)
		for _, i := range a.out[c.ID] {
			to := a.edges[i].ToClaimID
			if _, ok := a.byID[to]; !ok || seen[to] {
				continue
			}
			seen[to] = true
			succ[c.ID] = append(succ[c.ID], to)
		}
	}

	rank := make(map[string]float64, n)
	for _, c := range a.claims {
		rank[c.ID] = 1.0 / float64(n)
	}
	for iter := 0; iter < pageRankIterations; iter++ {
		flow := make(map[string]float64, n)
		var dangling float64
		for _, c := range a.claims {
			targets := succ[c.ID]
			if len(targets) == 0 {
				dangling += rank[c.ID]
				continue
			}
			share := rank[c.ID] / float64(len(targets))
			for _, t := range targets {
				flow[t] += share
			}
		}
		base := (1 - pageRankDamping) / float64(n)
		spread := dangling / float64(n)
		for _, c := range a.claims {
			rank[c.ID] = base + pageRankDamping*(flow[c.ID]+spread)
		}
	}
	return rank
}

// ExportGraph renders the full graph for the presentation layer.
func (a *Analyzer) ExportGraph(ctx context.Context) (*domain.GraphExport, error) {
	if err := a.Sync(ctx); err != nil {
		return nil, err
	}
	a.mu.RLock()
	defer a.mu.RUnlock()

	export := &domain.GraphExport{
		Nodes: make([]domain.GraphExportNode, 0, len(a.claims)),
		Edges: make([]domain.GraphExportEdge, 0, len(a.edges)),
	}
	for _, c := range a.claims {
		text := c.Text
		if runes := []rune(text); len(runes) > exportTextLimit {
			text = string(runes[:exportTextLimit])
		}
		export.Nodes = append(export.Nodes, domain.GraphExportNode{
			ID:         c.ID,
			Text:       text,
			Type:       c.Type,
			Importance: c.Centrality,
		})
	}
	for _, e := range a.edges {
		export.Edges = append(export.Edges, domain.GraphExportEdge{
			From:       e.FromClaimID,
			To:         e.ToClaimID,
			Relation:   e.Type,
			Confidence: e.Confidence,
		})
	}
	return export, nil
}

// unorderedPairKey canonicalizes a claim pair regardless of edge direction.
func unorderedPairKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + "|" + b
}
