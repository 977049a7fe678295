package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/dialectic-sh/dialectic/internal/domain"
	"github.com/dialectic-sh/dialectic/internal/retrieval"
)

type SearchHandler struct {
	searcher domain.Searcher
}

func NewSearchHandler(searcher domain.Searcher) *SearchHandler {
	return &SearchHandler{searcher: searcher}
}

type searchResponse struct {
	Query   string                `json:"query"`
	Results []domain.SearchResult `json:"results"`
	Count   int                   `json:"count"`
}

func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("query")
	if query == "" {
		writeError(w, http.StatusBadRequest, "query parameter is required")
		return
	}

	req := domain.SearchRequest{Query: query}

	if topKStr := r.URL.Query().Get("top_k"); topKStr != "" {
		if topK, err := strconv.Atoi(topKStr); err == nil && topK > 0 {
			req.TopK = topK
		}
	}
	if rerankStr := r.URL.Query().Get("rerank"); rerankStr != "" {
		if rerank, err := strconv.ParseBool(rerankStr); err == nil {
			req.UseReranking = rerank
		}
	}

	results, err := h.searcher.Search(r.Context(), req)
	if err != nil {
		if errors.Is(err, retrieval.ErrUnavailable) {
			writeError(w, http.StatusServiceUnavailable, "search backends unavailable")
			return
		}
		writeError(w, http.StatusInternalServerError, "search failed")
		return
	}
	if results == nil {
		results = []domain.SearchResult{}
	}

	writeJSON(w, http.StatusOK, searchResponse{
		Query:   query,
		Results: results,
		Count:   len(results),
	})
}
