package retrieval

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/dialectic-sh/dialectic/internal/domain"
)

const (
	bm25K1 = 1.5
	bm25B  = 0.75
)

// tokenize lowercases text and splits it on non-alphanumeric runes.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

type bm25Doc struct {
	id       string
	text     string
	sourceID string
	metadata map[string]string
	length   int
	freqs    map[string]int
}

// BM25Index is an in-memory inverted index scored with Okapi BM25.
// Upsert replaces any existing document with the same id. Safe for one
// writer and many concurrent readers.
type BM25Index struct {
	mu       sync.RWMutex
	docs     map[string]*bm25Doc
	postings map[string]map[string]int // term -> doc id -> term frequency
	totalLen int
}

func NewBM25Index() *BM25Index {
	return &BM25Index{
		docs:     make(map[string]*bm25Doc),
		postings: make(map[string]map[string]int),
	}
}

func (idx *BM25Index) Upsert(ctx context.Context, id, text, sourceID string, metadata map[string]string) error {
	tokens := tokenize(text)
	freqs := make(map[string]int, len(tokens))
	for _, tok := range tokens {
		freqs[tok]++
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	if old, ok := idx.docs[id]; ok {
		for term := range old.freqs {
			delete(idx.postings[term], id)
			if len(idx.postings[term]) == 0 {
				delete(idx.postings, term)
			}
		}
		idx.totalLen -= old.length
	}

	idx.docs[id] = &bm25Doc{
		id:       id,
		text:     text,
		sourceID: sourceID,
		metadata: metadata,
		length:   len(tokens),
		freqs:    freqs,
	}
	idx.totalLen += len(tokens)

	for term, tf := range freqs {
		if idx.postings[term] == nil {
			idx.postings[term] = make(map[string]int)
		}
		idx.postings[term][id] = tf
	}
	return nil
}

func (idx *BM25Index) Search(ctx context.Context, query string, topK int) ([]domain.IndexHit, error) {
	terms := tokenize(query)
	if len(terms) == 0 || topK <= 0 {
		return nil, nil
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	n := len(idx.docs)
	if n == 0 {
		return nil, nil
	}
	avgLen := float64(idx.totalLen) / float64(n)

	scores := make(map[string]float64)
	for _, term := range terms {
		posting, ok := idx.postings[term]
		if !ok {
			continue
		}
		df := float64(len(posting))
		idf := math.Log(1 + (float64(n)-df+0.5)/(df+0.5))
		for id, tf := range posting {
			docLen := float64(idx.docs[id].length)
			tfNorm := float64(tf) * (bm25K1 + 1) / (float64(tf) + bm25K1*(1-bm25B+bm25B*docLen/avgLen))
			scores[id] += idf * tfNorm
		}
	}

	hits := make([]domain.IndexHit, 0, len(scores))
	for id, score := range scores {
		if score <= 0 {
			continue
		}
		doc := idx.docs[id]
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

// Len returns the number of indexed documents.
func (idx *BM25Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.docs)
}
