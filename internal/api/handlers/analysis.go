package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/dialectic-sh/dialectic/internal/domain"
	"github.com/dialectic-sh/dialectic/internal/service"
	"github.com/dialectic-sh/dialectic/internal/store"
)

type AnalysisHandler struct {
	analyzer *service.Analyzer
}

func NewAnalysisHandler(analyzer *service.Analyzer) *AnalysisHandler {
	return &AnalysisHandler{analyzer: analyzer}
}

type contradictionsResponse struct {
	Contradictions []domain.ContradictionPair `json:"contradictions"`
	MinConfidence  float64                    `json:"min_confidence"`
	Count          int                        `json:"count"`
}

func (h *AnalysisHandler) Contradictions(w http.ResponseWriter, r *http.Request) {
	minConfidence := service.DefaultContradictionConfidence
	if mcStr := r.URL.Query().Get("min_confidence"); mcStr != "" {
		if mc, err := strconv.ParseFloat(mcStr, 64); err == nil && mc >= 0 && mc <= 1 {
			minConfidence = mc
		}
	}

	pairs, err := h.analyzer.FindContradictions(r.Context(), minConfidence)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to find contradictions")
		return
	}
	if pairs == nil {
		pairs = []domain.ContradictionPair{}
	}

	writeJSON(w, http.StatusOK, contradictionsResponse{
		Contradictions: pairs,
		MinConfidence:  minConfidence,
		Count:          len(pairs),
	})
}

type unsupportedResponse struct {
	Claims []domain.Claim `json:"claims"`
	Count  int            `json:"count"`
}

func (h *AnalysisHandler) Unsupported(w http.ResponseWriter, r *http.Request) {
	claims, err := h.analyzer.FindUnsupportedClaims(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to find unsupported claims")
		return
	}
	if claims == nil {
		claims = []domain.Claim{}
	}

	writeJSON(w, http.StatusOK, unsupportedResponse{
		Claims: claims,
		Count:  len(claims),
	})
}

type frontierResponse struct {
	Edges         []domain.Relationship `json:"edges"`
	MaxConfidence float64               `json:"max_confidence"`
	Count         int                   `json:"count"`
}

func (h *AnalysisHandler) Frontier(w http.ResponseWriter, r *http.Request) {
	maxConfidence := service.DefaultFrontierConfidence
	if mcStr := r.URL.Query().Get("max_confidence"); mcStr != "" {
		if mc, err := strconv.ParseFloat(mcStr, 64); err == nil && mc >= 0 && mc <= 1 {
			maxConfidence = mc
		}
	}

	edges, err := h.analyzer.FindFrontierEdges(r.Context(), maxConfidence)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to find frontier edges")
		return
	}
	if edges == nil {
		edges = []domain.Relationship{}
	}

	writeJSON(w, http.StatusOK, frontierResponse{
		Edges:         edges,
		MaxConfidence: maxConfidence,
		Count:         len(edges),
	})
}

type pathResponse struct {
	From      string                `json:"from"`
	To        string                `json:"to"`
	Path      []domain.Relationship `json:"path"`
	Hops      int                   `json:"hops"`
	Connected bool                  `json:"connected"`
}

func (h *AnalysisHandler) Path(w http.ResponseWriter, r *http.Request) {
	from := r.URL.Query().Get("from")
	to := r.URL.Query().Get("to")
	if from == "" || to == "" {
		writeError(w, http.StatusBadRequest, "from and to parameters are required")
		return
	}

	path, err := h.analyzer.EvidencePath(r.Context(), from, to)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "claim not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to compute path")
		return
	}
	if path == nil {
		path = []domain.Relationship{}
	}

	writeJSON(w, http.StatusOK, pathResponse{
		From:      from,
		To:        to,
		Path:      path,
		Hops:      len(path),
		Connected: from == to || len(path) > 0,
	})
}

type refreshMetricsResponse struct {
	Status string `json:"status"`
	Claims int    `json:"claims"`
}

func (h *AnalysisHandler) RefreshMetrics(w http.ResponseWriter, r *http.Request) {
	if err := h.analyzer.RefreshMetrics(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to refresh metrics")
		return
	}

	export, err := h.analyzer.ExportGraph(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to refresh metrics")
		return
	}

	writeJSON(w, http.StatusOK, refreshMetricsResponse{
		Status: "refreshed",
		Claims: len(export.Nodes),
	})
}
