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

type AgentService interface {
	Run(ctx context.Context, req service.AgentRequest) (*domain.AgentResult, error)
}

type AgentHandler struct {
	svc AgentService
}

func NewAgentHandler(svc AgentService) *AgentHandler {
	return &AgentHandler{svc: svc}
}

type AgentRunRequest struct {
	Question string `json:"question"`
}

type AgentStepResponse struct {
	Tool       string `json:"tool"`
	Output     string `json:"output,omitempty"`
	Error      string `json:"error,omitempty"`
	Rejected   bool   `json:"rejected,omitempty"`
	DurationMS int64  `json:"duration_ms"`
}

type AgentRunResponse struct {
	Answer     string              `json:"answer"`
	Steps      []AgentStepResponse `json:"steps,omitempty"`
	Iterations int                 `json:"iterations"`
	Partial    bool                `json:"partial"`
	Model      string              `json:"model,omitempty"`
	LatencyMS  int64               `json:"latency_ms"`
}

func agentResultToResponse(result *domain.AgentResult) *AgentRunResponse {
	steps := make([]AgentStepResponse, len(result.Steps))
	for i, step := range result.Steps {
		steps[i] = AgentStepResponse{
			Tool:       string(step.Name),
			Output:     step.Output,
			Error:      step.Err,
			Rejected:   step.Rejected,
			DurationMS: step.Duration.Milliseconds(),
		}
	}
	return &AgentRunResponse{
		Answer:     result.Answer,
		Steps:      steps,
		Iterations: result.Iterations,
		Partial:    result.Partial,
		Model:      result.Model,
		LatencyMS:  result.Latency.Milliseconds(),
	}
}

func (h *AgentHandler) Run(w http.ResponseWriter, r *http.Request) {
	sess := middleware.GetSession(r.Context())
	if sess == nil {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req AgentRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Question == "" {
		api.Error(w, http.StatusBadRequest, "question is required")
		return
	}

	result, err := h.svc.Run(r.Context(), service.AgentRequest{
		Session:   sess,
		RequestID: middleware.GetRequestID(r.Context()),
		Question:  req.Question,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, agentResultToResponse(result))
}
