package handlers

import (
	"net/http"

	"github.com/dialectic-sh/dialectic/internal/domain"
	"github.com/dialectic-sh/dialectic/internal/service"
)

type GraphHandler struct {
	analyzer *service.Analyzer
}

func NewGraphHandler(analyzer *service.Analyzer) *GraphHandler {
	return &GraphHandler{analyzer: analyzer}
}

type exportResponse struct {
	*domain.GraphExport
	NodeCount int `json:"node_count"`
	EdgeCount int `json:"edge_count"`
}

// Export renders the whole claim graph for visualization clients.
func (h *GraphHandler) Export(w http.ResponseWriter, r *http.Request) {
	export, err := h.analyzer.ExportGraph(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to export graph")
		return
	}
	if export.Nodes == nil {
		export.Nodes = []domain.GraphExportNode{}
	}
	if export.Edges == nil {
		export.Edges = []domain.GraphExportEdge{}
	}

	writeJSON(w, http.StatusOK, exportResponse{
		GraphExport: export,
		NodeCount:   len(export.Nodes),
		EdgeCount:   len(export.Edges),
	})
}
