package service

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/dialectic-sh/dialectic/internal/domain"
	"github.com/dialectic-sh/dialectic/internal/store"
)

func newTestAnalyzer(t *testing.T, claimIDs ...string) (*Analyzer, *store.MemoryGraphStore) {
	t.Helper()
	graph := store.NewMemoryGraphStore()
	ctx := context.Background()
	for _, id := range claimIDs {
		claim := domain.Claim{ID: id, Text: "claim " + id, Type: domain.ClaimFinding}
		if err := graph.UpsertClaim(ctx, &claim); err != nil {
			t.Fatalf("seed claim %s: %v", id, err)
		}
	}
	return NewAnalyzer(graph, zap.NewNop()), graph
}

func addEdge(t *testing.T, graph *store.MemoryGraphStore, from, to string, typ domain.RelationType, conf float64, citations ...string) {
	t.Helper()
	rel := domain.Relationship{FromClaimID: from, ToClaimID: to, Type: typ, Confidence: conf, Citations: citations}
	if err := graph.AddRelationship(context.Background(), &rel); err != nil {
		t.Fatalf("add edge %s->%s: %v", from, to, err)
	}
}

func TestFindContradictions(t *testing.T) {
	ctx := context.Background()

	t.Run("no refutes edges", func(t *testing.T) {
		analyzer, graph := newTestAnalyzer(t, "c1", "c2")
		addEdge(t, graph, "c1", "c2", domain.RelationSupports, 0.9, "ev-1", "ev-2")

		pairs, err := analyzer.FindContradictions(ctx, 0.85)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(pairs) != 0 {
			t.Errorf("expected no contradictions, got %v", pairs)
		}
	})

	t.Run("single refutes edge", func(t *testing.T) {
		analyzer, graph := newTestAnalyzer(t, "c1", "c2")
		addEdge(t, graph, "c1", "c2", domain.RelationRefutes, 0.9, "ev-1", "ev-2")

		pairs, err := analyzer.FindContradictions(ctx, 0.85)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(pairs) != 1 {
			t.Fatalf("expected one contradiction, got %d", len(pairs))
		}
		if pairs[0].ClaimAID != "c1" || pairs[0].ClaimBID != "c2" {
			t.Errorf("unexpected pair: %s -> %s", pairs[0].ClaimAID, pairs[0].ClaimBID)
		}
		if len(pairs[0].Edges) != 1 || pairs[0].Edges[0].Type != domain.RelationRefutes {
			t.Errorf("unexpected edges: %v", pairs[0].Edges)
		}
	})

	t.Run("below threshold", func(t *testing.T) {
		analyzer, graph := newTestAnalyzer(t, "c1", "c2")
		addEdge(t, graph, "c1", "c2", domain.RelationRefutes, 0.84)

		pairs, err := analyzer.FindContradictions(ctx, 0.85)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(pairs) != 0 {
			t.Errorf("expected threshold to exclude the edge, got %v", pairs)
		}
	})

	t.Run("opposing edges reported together", func(t *testing.T) {
		analyzer, graph := newTestAnalyzer(t, "c1", "c2")
		addEdge(t, graph, "c1", "c2", domain.RelationRefutes, 0.9, "ev-1", "ev-2")
		addEdge(t, graph, "c2", "c1", domain.RelationSupports, 0.6, "ev-3", "ev-4")
		addEdge(t, graph, "c1", "c2", domain.RelationExtends, 0.9)

		pairs, err := analyzer.FindContradictions(ctx, 0.85)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(pairs) != 1 {
			t.Fatalf("expected one pair, got %d", len(pairs))
		}
		got := map[domain.RelationType]int{}
		for _, e := range pairs[0].Edges {
			got[e.Type]++
		}
		if got[domain.RelationRefutes] != 1 || got[domain.RelationSupports] != 1 || got[domain.RelationExtends] != 0 {
			t.Errorf("expected the refutation and its opposing support only, got %v", pairs[0].Edges)
		}
	})
}

func TestFindUnsupportedClaims(t *testing.T) {
	analyzer, graph := newTestAnalyzer(t, "isolated", "uncertain-only", "supported", "supporter")
	addEdge(t, graph, "supporter", "supported", domain.RelationSupports, 0.9, "ev-1", "ev-2")
	addEdge(t, graph, "uncertain-only", "supported", domain.RelationUncertain, 0.2)

	claims, err := analyzer.FindUnsupportedClaims(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ids := make([]string, 0, len(claims))
	for _, c := range claims {
		ids = append(ids, c.ID)
	}
	if len(ids) != 2 || ids[0] != "isolated" || ids[1] != "uncertain-only" {
		t.Errorf("expected [isolated uncertain-only], got %v", ids)
	}
}

func TestFindFrontierEdges(t *testing.T) {
	analyzer, graph := newTestAnalyzer(t, "c1", "c2", "c3")
	addEdge(t, graph, "c1", "c2", domain.RelationSupports, 0.9, "ev-1", "ev-2")
	addEdge(t, graph, "c2", "c3", domain.RelationUncertain, 0.5)
	addEdge(t, graph, "c1", "c3", domain.RelationUncertain, 0.3)

	frontier, err := analyzer.FindFrontierEdges(context.Background(), 0.6)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(frontier) != 2 {
		t.Fatalf("expected two frontier edges, got %d", len(frontier))
	}
	if frontier[0].Confidence != 0.3 || frontier[1].Confidence != 0.5 {
		t.Errorf("expected ascending confidence order, got %f then %f",
			frontier[0].Confidence, frontier[1].Confidence)
	}
}

func TestEvidencePath(t *testing.T) {
	ctx := context.Background()

	t.Run("two hop chain", func(t *testing.T) {
		analyzer, graph := newTestAnalyzer(t, "a", "b", "c", "d")
		addEdge(t, graph, "a", "b", domain.RelationSupports, 0.9, "ev-1", "ev-2")
		addEdge(t, graph, "b", "c", domain.RelationExtends, 0.9, "ev-3", "ev-4")

		path, err := analyzer.EvidencePath(ctx, "a", "c")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(path) != 2 {
			t.Fatalf("expected two edges, got %d", len(path))
		}
		if path[0].FromClaimID != "a" || path[0].ToClaimID != "b" ||
			path[1].FromClaimID != "b" || path[1].ToClaimID != "c" {
			t.Errorf("unexpected path: %v", path)
		}
	})

	t.Run("disconnected", func(t *testing.T) {
		analyzer, graph := newTestAnalyzer(t, "a", "b", "c", "d")
		addEdge(t, graph, "a", "b", domain.RelationSupports, 0.9)

		path, err := analyzer.EvidencePath(ctx, "a", "d")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(path) != 0 {
			t.Errorf("expected empty path, got %v", path)
		}
	})

	t.Run("direction respected", func(t *testing.T) {
		analyzer, graph := newTestAnalyzer(t, "a", "b")
		addEdge(t, graph, "a", "b", domain.RelationSupports, 0.9)

		path, err := analyzer.EvidencePath(ctx, "b", "a")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(path) != 0 {
			t.Errorf("directed graph must not traverse edges backwards, got %v", path)
		}
	})

	t.Run("ties broken by summed confidence", func(t *testing.T) {
		analyzer, graph := newTestAnalyzer(t, "a", "weak", "strong", "d")
		addEdge(t, graph, "a", "weak", domain.RelationSupports, 0.5)
		addEdge(t, graph, "weak", "d", domain.RelationSupports, 0.5)
		addEdge(t, graph, "a", "strong", domain.RelationSupports, 0.9)
		addEdge(t, graph, "strong", "d", domain.RelationSupports, 0.9)

		path, err := analyzer.EvidencePath(ctx, "a", "d")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(path) != 2 || path[0].ToClaimID != "strong" {
			t.Errorf("expected the higher-confidence route, got %v", path)
		}
	})

	t.Run("shorter path beats stronger detour", func(t *testing.T) {
		analyzer, graph := newTestAnalyzer(t, "a", "via", "d")
		addEdge(t, graph, "a", "d", domain.RelationUncertain, 0.1)
		addEdge(t, graph, "a", "via", domain.RelationSupports, 0.9)
		addEdge(t, graph, "via", "d", domain.RelationSupports, 0.9)

		path, err := analyzer.EvidencePath(ctx, "a", "d")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(path) != 1 || path[0].ToClaimID != "d" {
			t.Errorf("expected the direct edge, got %v", path)
		}
	})

	t.Run("unknown claim", func(t *testing.T) {
		analyzer, _ := newTestAnalyzer(t, "a")
		_, err := analyzer.EvidencePath(ctx, "a", "nope")
		if !errors.Is(err, store.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestRefreshMetrics(t *testing.T) {
	analyzer, graph := newTestAnalyzer(t, "c1", "c2", "c3")
	addEdge(t, graph, "c1", "c2", domain.RelationSupports, 0.9, "ev-1", "ev-2")
	addEdge(t, graph, "c2", "c3", domain.RelationSupports, 0.9, "ev-2", "ev-3")

	ctx := context.Background()
	if err := analyzer.RefreshMetrics(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	wantCitations := map[string]int{"c1": 2, "c2": 3, "c3": 2}
	var totalRank float64
	for id, want := range wantCitations {
		claim, err := graph.GetClaim(ctx, id)
		if err != nil {
			t.Fatalf("get claim %s: %v", id, err)
		}
		if claim.CitationCount != want {
			t.Errorf("claim %s: expected %d distinct citations, got %d", id, want, claim.CitationCount)
		}
		totalRank += claim.Centrality
	}
	if math.Abs(totalRank-1) > 1e-6 {
		t.Errorf("pagerank should sum to 1, got %f", totalRank)
	}

	c1, _ := graph.GetClaim(ctx, "c1")
	c3, _ := graph.GetClaim(ctx, "c3")
	if c3.Centrality <= c1.Centrality {
		t.Errorf("cited claim should outrank its citer: c1=%f c3=%f", c1.Centrality, c3.Centrality)
	}
}

func TestExportGraph(t *testing.T) {
	analyzer, graph := newTestAnalyzer(t, "c1", "c2")
	long := domain.Claim{ID: "long", Text: strings.Repeat("x", 150), Type: domain.ClaimHypothesis}
	if err := graph.UpsertClaim(context.Background(), &long); err != nil {
		t.Fatalf("seed long claim: %v", err)
	}
	addEdge(t, graph, "c1", "c2", domain.RelationSupports, 0.9, "ev-1", "ev-2")

	export, err := analyzer.ExportGraph(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(export.Nodes) != 3 || len(export.Edges) != 1 {
		t.Fatalf("expected 3 nodes and 1 edge, got %d/%d", len(export.Nodes), len(export.Edges))
	}
	for _, n := range export.Nodes {
		if n.ID == "long" && len(n.Text) != 100 {
			t.Errorf("expected text truncated to 100, got %d", len(n.Text))
		}
	}
	e := export.Edges[0]
	if e.From != "c1" || e.To != "c2" || e.Relation != domain.RelationSupports || e.Confidence != 0.9 {
		t.Errorf("unexpected edge: %+v", e)
	}
}
