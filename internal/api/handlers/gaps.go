package handlers

import (
	"net/http"

	"github.com/dialectic-sh/dialectic/internal/domain"
	"github.com/dialectic-sh/dialectic/internal/service"
)

type GapHandler struct {
	generator *service.GapGenerator
}

func NewGapHandler(generator *service.GapGenerator) *GapHandler {
	return &GapHandler{generator: generator}
}

type gapsResponse struct {
	Gaps  []domain.ResearchGap `json:"gaps"`
	Count int                  `json:"count"`
}

func (h *GapHandler) List(w http.ResponseWriter, r *http.Request) {
	gaps, err := h.generator.Generate(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to generate research gaps")
		return
	}
	if gaps == nil {
		gaps = []domain.ResearchGap{}
	}

	writeJSON(w, http.StatusOK, gapsResponse{
		Gaps:  gaps,
		Count: len(gaps),
	})
}
