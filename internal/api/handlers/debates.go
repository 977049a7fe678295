package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/dialectic-sh/dialectic/internal/debate"
	"github.com/dialectic-sh/dialectic/internal/llm"
	"github.com/dialectic-sh/dialectic/internal/service"
	"github.com/dialectic-sh/dialectic/internal/store"
)

type DebateHandler struct {
	orchestrator *service.Orchestrator
}

func NewDebateHandler(orchestrator *service.Orchestrator) *DebateHandler {
	return &DebateHandler{orchestrator: orchestrator}
}

type debateRequest struct {
	ClaimAID string `json:"claim_a_id"`
	ClaimBID string `json:"claim_b_id"`
}

// Create runs a debate between two claims and persists the resulting edge.
// With ?stream=true the response is an SSE stream of stage tokens ending in
// a verdict (or error) event.
func (h *DebateHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req debateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.ClaimAID == "" || req.ClaimBID == "" {
		writeError(w, http.StatusBadRequest, "claim_a_id and claim_b_id are required")
		return
	}
	if req.ClaimAID == req.ClaimBID {
		writeError(w, http.StatusBadRequest, "claim_a_id and claim_b_id must differ")
		return
	}

	if r.URL.Query().Get("stream") == "true" {
		h.stream(w, r, req)
		return
	}

	rel, err := h.orchestrator.DebateClaimPair(r.Context(), req.ClaimAID, req.ClaimBID)
	if err != nil {
		status, msg := debateStatus(err)
		writeError(w, status, msg)
		return
	}

	writeJSON(w, http.StatusCreated, rel)
}

type tokenEvent struct {
	Stage string `json:"stage"`
	Token string `json:"token"`
}

// stream runs the debate with stage tokens forwarded as SSE events. Headers
// go out before the debate starts, so failures surface as error events
// rather than status codes.
func (h *DebateHandler) stream(w http.ResponseWriter, r *http.Request, req debateRequest) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	writeEvent := func(event string, payload any) {
		data, err := json.Marshal(payload)
		if err != nil {
			return
		}
		fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
		flusher.Flush()
	}

	rel, err := h.orchestrator.DebateClaimPairStream(r.Context(), req.ClaimAID, req.ClaimBID,
		func(stage, token string) {
			writeEvent("token", tokenEvent{Stage: stage, Token: token})
		})
	if err != nil {
		_, msg := debateStatus(err)
		writeEvent("error", map[string]string{"error": msg})
		return
	}

	writeEvent("verdict", rel)
}

// debateStatus maps orchestrator errors onto status codes. A malformed
// verdict is a data-quality failure, not an infra one, hence 422 over 502.
func debateStatus(err error) (int, string) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, "claim not found"
	case errors.Is(err, debate.ErrMalformedVerdict):
		return http.StatusUnprocessableEntity, "debate produced a malformed verdict"
	case errors.Is(err, llm.ErrGenerationFailure):
		return http.StatusBadGateway, "generation backend failure"
	default:
		return http.StatusInternalServerError, "debate failed"
	}
}
