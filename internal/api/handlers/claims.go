package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dialectic-sh/dialectic/internal/domain"
	"github.com/dialectic-sh/dialectic/internal/service"
	"github.com/dialectic-sh/dialectic/internal/store"
)

type ClaimHandler struct {
	ingest *service.IngestService
	graph  domain.GraphStore
}

func NewClaimHandler(ingest *service.IngestService, graph domain.GraphStore) *ClaimHandler {
	return &ClaimHandler{ingest: ingest, graph: graph}
}

type createClaimRequest struct {
	ID         string    `json:"claim_id"`
	Text       string    `json:"text"`
	Type       string    `json:"claim_type"`
	PaperID    string    `json:"source_paper_id,omitempty"`
	Section    string    `json:"section,omitempty"`
	Confidence float64   `json:"confidence,omitempty"`
	Embedding  []float32 `json:"embedding,omitempty"`
}

type createClaimResponse struct {
	*domain.Claim
	QueuedDebates int `json:"queued_debates"`
}

func (h *ClaimHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createClaimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.ID == "" {
		writeError(w, http.StatusBadRequest, "claim_id is required")
		return
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}
	if !domain.ValidClaimType(req.Type) {
		writeError(w, http.StatusBadRequest, "invalid claim_type")
		return
	}

	claim := &domain.Claim{
		ID:         req.ID,
		Text:       req.Text,
		Type:       domain.ClaimType(req.Type),
		PaperID:    req.PaperID,
		Section:    req.Section,
		Confidence: req.Confidence,
		Embedding:  req.Embedding,
	}

	queued, err := h.ingest.RegisterClaim(r.Context(), claim)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to register claim")
		return
	}

	writeJSON(w, http.StatusCreated, createClaimResponse{
		Claim:         claim,
		QueuedDebates: queued,
	})
}

func (h *ClaimHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "claimID")

	claim, err := h.graph.GetClaim(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "claim not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get claim")
		return
	}

	writeJSON(w, http.StatusOK, claim)
}

type neighborsResponse struct {
	ClaimID string                `json:"claim_id"`
	Edges   []domain.Relationship `json:"edges"`
	Count   int                   `json:"count"`
}

func (h *ClaimHandler) Neighbors(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "claimID")

	if _, err := h.graph.GetClaim(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "claim not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get claim")
		return
	}

	var relation *domain.RelationType
	if relStr := r.URL.Query().Get("relation"); relStr != "" {
		if !domain.ValidRelationType(relStr) {
			writeError(w, http.StatusBadRequest, "invalid relation parameter")
			return
		}
		rel := domain.RelationType(relStr)
		relation = &rel
	}

	edges, err := h.graph.GetNeighbors(r.Context(), id, relation)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get neighbors")
		return
	}
	if edges == nil {
		edges = []domain.Relationship{}
	}

	writeJSON(w, http.StatusOK, neighborsResponse{
		ClaimID: id,
		Edges:   edges,
		Count:   len(edges),
	})
}
