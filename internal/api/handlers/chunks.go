package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/dialectic-sh/dialectic/internal/domain"
	"github.com/dialectic-sh/dialectic/internal/service"
)

type ChunkHandler struct {
	ingest *service.IngestService
}

func NewChunkHandler(ingest *service.IngestService) *ChunkHandler {
	return &ChunkHandler{ingest: ingest}
}

type createChunkRequest struct {
	ID        string            `json:"chunk_id"`
	Text      string            `json:"text"`
	SourceID  string            `json:"source_id,omitempty"`
	Page      int               `json:"page,omitempty"`
	Embedding []float32         `json:"embedding,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

func (h *ChunkHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createChunkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.ID == "" {
		writeError(w, http.StatusBadRequest, "chunk_id is required")
		return
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	chunk := &domain.Chunk{
		ID:        req.ID,
		Text:      req.Text,
		SourceID:  req.SourceID,
		Page:      req.Page,
		Embedding: req.Embedding,
		Metadata:  req.Metadata,
	}

	if err := h.ingest.RegisterChunk(r.Context(), chunk); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to index chunk")
		return
	}

	writeJSON(w, http.StatusCreated, chunk)
}
