package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/dialectic-sh/dialectic/internal/domain"
	"github.com/dialectic-sh/dialectic/internal/retrieval"
)

// mockSearcher mocks the Searcher interface.
type mockSearcher struct {
	mock.Mock
}

func (m *mockSearcher) Index(ctx context.Context, req domain.IndexRequest) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}

func (m *mockSearcher) Search(ctx context.Context, req domain.SearchRequest) ([]domain.SearchResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.SearchResult), args.Error(1)
}

func TestSearchRequiresQuery(t *testing.T) {
	h := NewSearchHandler(new(mockSearcher))

	req := httptest.NewRequest(http.MethodGet, "/v1/search", nil)
	rec := httptest.NewRecorder()
	h.Search(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSearchPassesParams(t *testing.T) {
	searcher := new(mockSearcher)
	searcher.On("Search", mock.Anything, domain.SearchRequest{Query: "caffeine recall", TopK: 3, UseReranking: true}).
		Return([]domain.SearchResult{{ID: "ev-1", Text: "first trial", FinalScore: 0.9}}, nil)

	h := NewSearchHandler(searcher)
	req := httptest.NewRequest(http.MethodGet, "/v1/search?query=caffeine+recall&top_k=3&rerank=true", nil)
	rec := httptest.NewRecorder()
	h.Search(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Query   string                `json:"query"`
		Results []domain.SearchResult `json:"results"`
		Count   int                   `json:"count"`
	}
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "caffeine recall", resp.Query)
	assert.Equal(t, 1, resp.Count)
	assert.Equal(t, "ev-1", resp.Results[0].ID)
	searcher.AssertExpectations(t)
}

func TestSearchIgnoresInvalidOptionalParams(t *testing.T) {
	searcher := new(mockSearcher)
	searcher.On("Search", mock.Anything, domain.SearchRequest{Query: "caffeine"}).Return(nil, nil)

	h := NewSearchHandler(searcher)
	req := httptest.NewRequest(http.MethodGet, "/v1/search?query=caffeine&top_k=banana&rerank=maybe", nil)
	rec := httptest.NewRecorder()
	h.Search(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Results []domain.SearchResult `json:"results"`
		Count   int                   `json:"count"`
	}
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotNil(t, resp.Results)
	assert.Zero(t, resp.Count)
	searcher.AssertExpectations(t)
}

func TestSearchBackendsUnavailable(t *testing.T) {
	searcher := new(mockSearcher)
	searcher.On("Search", mock.Anything, mock.Anything).Return(nil, retrieval.ErrUnavailable)

	h := NewSearchHandler(searcher)
	req := httptest.NewRequest(http.MethodGet, "/v1/search?query=caffeine", nil)
	rec := httptest.NewRecorder()
	h.Search(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
