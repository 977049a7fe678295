package retrieval

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/dialectic-sh/dialectic/internal/domain"
)

type vectorDoc struct {
	id       string
	vector   []float32
	text     string
	sourceID string
	metadata map[string]string
}

// MemoryVectorIndex is a brute-force cosine similarity index. Upsert replaces
// any existing entry for the id. Safe for one writer and many concurrent
// readers.
type MemoryVectorIndex struct {
	mu   sync.RWMutex
	docs map[string]*vectorDoc
}

func NewMemoryVectorIndex() *MemoryVectorIndex {
	return &MemoryVectorIndex{docs: make(map[string]*vectorDoc)}
}

func (idx *MemoryVectorIndex) Upsert(ctx context.Context, id string, vector []float32, text, sourceID string, metadata map[string]string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.docs[id] = &vectorDoc{
		id:       id,
		vector:   vector,
		text:     text,
		sourceID: sourceID,
		metadata: metadata,
	}
	return nil
}

func (idx *MemoryVectorIndex) Search(ctx context.Context, vector []float32, topK int) ([]domain.IndexHit, error) {
	if len(vector) == 0 || topK <= 0 {
		return nil, nil
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	hits := make([]domain.IndexHit, 0, len(idx.docs))
	for _, doc := range idx.docs {
		score := CosineSimilarity(vector, doc.vector)
		if score <= 0 {
			continue
		}
		hits = append(hits, domain.IndexHit{
			ID:       doc.id,
			Text:     doc.text,
			SourceID: doc.sourceID,
			Score:    score,
			Metadata: doc.metadata,
		})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID < hits[j].ID
	})

	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

// CosineSimilarity returns the cosine of the angle between a and b, or 0 for
// mismatched or zero-length vectors.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
