package domain

// SearchResult is a transient, per-query ranking record. Never persisted;
// recomputed on every search.
type SearchResult struct {
	ID          string            `json:"id"`
	Text        string            `json:"text"`
	SourceID    string            `json:"source_id,omitempty"`
	DenseScore  float64           `json:"dense_score"`
	SparseScore float64           `json:"sparse_score"`
	RerankScore float64           `json:"rerank_score"`
	FinalScore  float64           `json:"final_score"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// IndexRequest carries one item into both retrieval indexes. Embedding may
// be nil; the retriever computes it when an embedding backend is available.
type IndexRequest struct {
	ID        string
	Text      string
	SourceID  string
	Embedding []float32
	Metadata  map[string]string
}

// IndexHit is a single ranked hit from one index stage.
type IndexHit struct {
	ID       string
	Text     string
	SourceID string
	Score    float64
	Metadata map[string]string
}

// SearchRequest are the caller-facing search knobs. Zero TopK means the
// retriever's default.
type SearchRequest struct {
	Query        string `json:"query"`
	TopK         int    `json:"top_k"`
	UseReranking bool   `json:"use_reranking"`
}
