package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/burrowlabs/burrow/internal/api"
	"github.com/burrowlabs/burrow/internal/api/middleware"
	"github.com/burrowlabs/burrow/internal/domain"
	"github.com/burrowlabs/burrow/internal/service"
)

type QueryService interface {
	Ask(ctx context.Context, req service.AskRequest) (*domain.Answer, error)
}

type QueryHandler struct {
	svc QueryService
}

func NewQueryHandler(svc QueryService) *QueryHandler {
	return &QueryHandler{svc: svc}
}

type QueryRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k,omitempty"`
}

type AnswerResponse struct {
	Answer        string            `json:"answer"`
	Citations     []domain.Citation `json:"citations"`
	Model         string            `json:"model,omitempty"`
	LatencyMS     int64             `json:"latency_ms"`
	DroppedChunks int               `json:"dropped_chunks,omitempty"`
}

func answerToResponse(a *domain.Answer) *AnswerResponse {
	return &AnswerResponse{
		Answer:        a.Text,
		Citations:     a.Citations,
		Model:         a.Model,
		LatencyMS:     a.Latency.Milliseconds(),
		DroppedChunks: a.DroppedChunks,
	}
}

func (h *QueryHandler) Ask(w http.ResponseWriter, r *http.Request) {
	sess := middleware.GetSession(r.Context())
	if sess == nil {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Query == "" {
		api.Error(w, http.StatusBadRequest, "query is required")
		return
	}

	answer, err := h.svc.Ask(r.Context(), service.AskRequest{
		Session:   sess,
		RequestID: middleware.GetRequestID(r.Context()),
		Query:     req.Query,
		TopK:      req.TopK,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, answerToResponse(answer))
}
