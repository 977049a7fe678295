package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/dialectic-sh/dialectic/internal/debate"
	"github.com/dialectic-sh/dialectic/internal/domain"
	"github.com/dialectic-sh/dialectic/internal/llm"
	"github.com/dialectic-sh/dialectic/internal/service"
	"github.com/dialectic-sh/dialectic/internal/store"
)

// cannedSearcher serves fixed results so handler tests control the evidence
// pool without a real index.
type cannedSearcher struct {
	results []domain.SearchResult
	err     error
}

func (s *cannedSearcher) Index(ctx context.Context, req domain.IndexRequest) error { return nil }

func (s *cannedSearcher) Search(ctx context.Context, req domain.SearchRequest) ([]domain.SearchResult, error) {
	return s.results, s.err
}

// apiFixture wires real services over in-memory stores behind a chi router,
// so tests exercise routing and URL params the way the server does.
type apiFixture struct {
	graph  *store.MemoryGraphStore
	router *chi.Mux
}

func newAPIFixture(t *testing.T, responses []string, evidence []domain.SearchResult) *apiFixture {
	t.Helper()

	graph := store.NewMemoryGraphStore()
	mockLLM := llm.NewMockClient()
	mockLLM.Responses = responses
	machine := debate.NewMachine(mockLLM, zap.NewNop())

	searcher := &cannedSearcher{results: evidence}
	orch := service.NewOrchestrator(graph, searcher, machine, time.Minute, zap.NewNop())
	analyzer := service.NewAnalyzer(graph, zap.NewNop())
	queue := service.NewDebateQueue(orch, analyzer, 1, 8, zap.NewNop())
	ingest := service.NewIngestService(graph, searcher, nil, queue, zap.NewNop())

	claims := NewClaimHandler(ingest, graph)
	chunks := NewChunkHandler(ingest)
	debates := NewDebateHandler(orch)
	relationships := NewRelationshipHandler(graph)

	r := chi.NewRouter()
	r.Post("/v1/claims", claims.Create)
	r.Get("/v1/claims/{claimID}", claims.GetByID)
	r.Get("/v1/claims/{claimID}/neighbors", claims.Neighbors)
	r.Post("/v1/chunks", chunks.Create)
	r.Post("/v1/debates", debates.Create)
	r.Get("/v1/relationships", relationships.List)

	return &apiFixture{graph: graph, router: r}
}

func (fx *apiFixture) do(method, target, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	rec := httptest.NewRecorder()
	fx.router.ServeHTTP(rec, req)
	return rec
}

func seedClaims(t *testing.T, graph *store.MemoryGraphStore, ids ...string) {
	t.Helper()
	for _, id := range ids {
		claim := domain.Claim{ID: id, Text: id + " text", Type: domain.ClaimFinding}
		if err := graph.UpsertClaim(context.Background(), &claim); err != nil {
			t.Fatalf("seed claim %s: %v", id, err)
		}
	}
}

func TestClaimCreateValidation(t *testing.T) {
	fx := newAPIFixture(t, nil, nil)

	cases := []struct {
		name string
		body string
	}{
		{"malformed body", `{"claim_id":`},
		{"missing claim_id", `{"text":"x","claim_type":"finding"}`},
		{"missing text", `{"claim_id":"c1","claim_type":"finding"}`},
		{"unknown claim_type", `{"claim_id":"c1","text":"x","claim_type":"opinion"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := fx.do(http.MethodPost, "/v1/claims", tc.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)

			var resp map[string]string
			assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.NotEmpty(t, resp["error"])
		})
	}
}

func TestClaimCreateAndFetch(t *testing.T) {
	fx := newAPIFixture(t, nil, nil)

	rec := fx.do(http.MethodPost, "/v1/claims",
		`{"claim_id":"c1","text":"caffeine improves recall","claim_type":"finding","source_paper_id":"p1","confidence":0.8}`)
	assert.Equal(t, http.StatusCreated, rec.Code)

	var created struct {
		ID            string  `json:"claim_id"`
		Confidence    float64 `json:"confidence"`
		QueuedDebates int     `json:"queued_debates"`
	}
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "c1", created.ID)
	assert.Equal(t, 0.8, created.Confidence)
	assert.Zero(t, created.QueuedDebates)

	rec = fx.do(http.MethodGet, "/v1/claims/c1", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	var fetched domain.Claim
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &fetched))
	assert.Equal(t, "caffeine improves recall", fetched.Text)
	assert.Equal(t, domain.ClaimFinding, fetched.Type)

	rec = fx.do(http.MethodGet, "/v1/claims/ghost", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestClaimNeighbors(t *testing.T) {
	fx := newAPIFixture(t, nil, nil)
	seedClaims(t, fx.graph, "c1", "c2")

	err := fx.graph.AddRelationship(context.Background(), &domain.Relationship{
		FromClaimID: "c1", ToClaimID: "c2", Type: domain.RelationSupports, Confidence: 0.9,
	})
	assert.NoError(t, err)

	rec := fx.do(http.MethodGet, "/v1/claims/c1/neighbors", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		ClaimID string                `json:"claim_id"`
		Edges   []domain.Relationship `json:"edges"`
		Count   int                   `json:"count"`
	}
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "c1", resp.ClaimID)
	assert.Len(t, resp.Edges, 1)
	assert.Equal(t, 1, resp.Count)

	// The relation filter narrows the edge list.
	rec = fx.do(http.MethodGet, "/v1/claims/c1/neighbors?relation=refutes", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Empty(t, resp.Edges)

	rec = fx.do(http.MethodGet, "/v1/claims/c1/neighbors?relation=banana", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = fx.do(http.MethodGet, "/v1/claims/ghost/neighbors", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestChunkCreate(t *testing.T) {
	fx := newAPIFixture(t, nil, nil)

	rec := fx.do(http.MethodPost, "/v1/chunks",
		`{"chunk_id":"ch1","text":"trial data","source_id":"p1","page":3}`)
	assert.Equal(t, http.StatusCreated, rec.Code)

	var chunk domain.Chunk
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &chunk))
	assert.Equal(t, "ch1", chunk.ID)
	assert.Equal(t, 3, chunk.Page)

	rec = fx.do(http.MethodPost, "/v1/chunks", `{"chunk_id":"ch2"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
