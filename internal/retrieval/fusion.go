package retrieval

import (
	"sort"

	"github.com/dialectic-sh/dialectic/internal/domain"
)

const rrfK = 60

// fuseRRF merges a dense and a sparse ranking with weighted reciprocal rank
// fusion: each leg contributes weight/(rrfK+rank) with 1-based ranks, and an
// item missing from a leg contributes nothing for that leg. Ties break by
// dense score descending, then id ascending, so the fused order is
// deterministic for identical inputs.
func fuseRRF(dense, sparse []domain.IndexHit, denseWeight, sparseWeight float64) []domain.SearchResult {
	fused := make(map[string]*domain.SearchResult, len(dense)+len(sparse))

	add := func(hit domain.IndexHit) *domain.SearchResult {
		if r, ok := fused[hit.ID]; ok {
			return r
		}
		r := &domain.SearchResult{
			ID:       hit.ID,
			Text:     hit.Text,
			SourceID: hit.SourceID,
			Metadata: hit.Metadata,
		}
		fused[hit.ID] = r
		return r
	}

	for rank, hit := range dense {
		r := add(hit)
		r.DenseScore = hit.Score
		r.FinalScore += denseWeight / float64(rrfK+rank+1)
	}
	for rank, hit := range sparse {
		r := add(hit)
		r.SparseScore = hit.Score
		r.FinalScore += sparseWeight / float64(rrfK+rank+1)
	}

	results := make([]domain.SearchResult, 0, len(fused))
	for _, r := range fused {
		results = append(results, *r)
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].FinalScore != results[j].FinalScore {
			return results[i].FinalScore > results[j].FinalScore
		}
		if results[i].DenseScore != results[j].DenseScore {
			return results[i].DenseScore > results[j].DenseScore
		}
		return results[i].ID < results[j].ID
	})

	return results
}
