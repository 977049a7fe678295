package handlers

import (
	"net/http"
	"strconv"

	"github.com/dialectic-sh/dialectic/internal/domain"
)

type RelationshipHandler struct {
	graph domain.GraphStore
}

func NewRelationshipHandler(graph domain.GraphStore) *RelationshipHandler {
	return &RelationshipHandler{graph: graph}
}

type relationshipsResponse struct {
	Relationships []domain.Relationship `json:"relationships"`
	Count         int                   `json:"count"`
}

// List returns all edges, or the review queue when ?requires_human= is set.
func (h *RelationshipHandler) List(w http.ResponseWriter, r *http.Request) {
	var (
		edges []domain.Relationship
		err   error
	)

	if reviewStr := r.URL.Query().Get("requires_human"); reviewStr != "" {
		requiresHuman, parseErr := strconv.ParseBool(reviewStr)
		if parseErr != nil {
			writeError(w, http.StatusBadRequest, "invalid requires_human parameter")
			return
		}
		edges, err = h.graph.ListRelationshipsByReview(r.Context(), requiresHuman)
	} else {
		edges, err = h.graph.ListRelationships(r.Context())
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list relationships")
		return
	}
	if edges == nil {
		edges = []domain.Relationship{}
	}

	writeJSON(w, http.StatusOK, relationshipsResponse{
		Relationships: edges,
		Count:         len(edges),
	})
}
