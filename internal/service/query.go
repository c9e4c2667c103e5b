package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/burrowlabs/burrow/internal/domain"
	"github.com/burrowlabs/burrow/internal/telemetry"
)

// Retriever returns the most relevant indexed chunks for a query.
type Retriever interface {
	Retrieve(ctx context.Context, query string, topK int) ([]domain.SearchHit, error)
}

// AnswerGenerator produces a grounded answer from a built prompt.
type AnswerGenerator interface {
	Generate(ctx context.Context, prompt domain.Prompt) (*domain.Answer, error)
}

// AskRequest carries one question through the query pipeline.
type AskRequest struct {
	Session   *domain.Session
	RequestID string
	Query     string
	TopK      int
}

// QueryService runs the retrieve, build, generate pipeline for one
// question, gated by the rate limiter and recorded in the audit log.
type QueryService struct {
	retriever Retriever
	prompts   *PromptBuilder
	answers   AnswerGenerator
	limiter   *RateLimiter
	sessions  *SessionService
	audit     *AuditService
}

// NewQueryService creates a new QueryService instance
func NewQueryService(
	retriever Retriever,
	prompts *PromptBuilder,
	answers AnswerGenerator,
	limiter *RateLimiter,
	sessions *SessionService,
	audit *AuditService,
) *QueryService {
	return &QueryService{
		retriever: retriever,
		prompts:   prompts,
		answers:   answers,
		limiter:   limiter,
		sessions:  sessions,
		audit:     audit,
	}
}

// Ask answers one question over the indexed corpus. The rate gate runs
// before any validation or model work; denials, rejected input, and
// outcomes all land in the audit log.
func (s *QueryService) Ask(ctx context.Context, req AskRequest) (*domain.Answer, error) {
	start := time.Now()
	sessionID := domain.AnonymousSession
	if req.Session != nil {
		sessionID = req.Session.ID
	}

	ctx, span := telemetry.StartSpan(ctx, "QueryService.Ask", telemetry.SpanAttributes{
		SessionID: sessionID,
		Operation: "query",
	})
	defer span.End()

	decision := s.limiter.Allow(sessionID, domain.ActionQuery)
	if !decision.Allowed {
		s.audit.Record(ctx, domain.AuditEvent{
			SessionID: sessionID,
			RequestID: req.RequestID,
			Kind:      domain.AuditRateLimited,
			Outcome:   domain.OutcomeDenied,
			Detail:    string(domain.ActionQuery),
		})
		return nil, &domain.RateLimitError{RetryAfter: decision.RetryAfter}
	}

	hits, err := s.retriever.Retrieve(ctx, req.Query, req.TopK)
	if err != nil {
		if errors.Is(err, domain.ErrEmptyQuery) || errors.Is(err, domain.ErrQueryTooLong) {
			s.audit.Record(ctx, domain.AuditEvent{
				SessionID: sessionID,
				RequestID: req.RequestID,
				Kind:      domain.AuditInputRejected,
				Outcome:   domain.OutcomeRejected,
				Detail:    fmt.Sprintf("query rejected: %v", err),
			})
			return nil, err
		}
		s.recordQueryFailure(ctx, sessionID, req.RequestID, start, err)
		return nil, err
	}

	history := s.sessions.History(sessionID)
	prompt, err := s.prompts.Build(req.Query, hits, history)
	if err != nil {
		s.recordQueryFailure(ctx, sessionID, req.RequestID, start, err)
		return nil, err
	}

	answer, err := s.answers.Generate(ctx, prompt)
	if err != nil {
		s.recordQueryFailure(ctx, sessionID, req.RequestID, start, err)
		return nil, err
	}

	s.sessions.RememberTurn(sessionID, domain.TurnRoleUser, req.Query)
	s.sessions.RememberTurn(sessionID, domain.TurnRoleAssistant, answer.Text)

	s.audit.Record(ctx, domain.AuditEvent{
		SessionID: sessionID,
		RequestID: req.RequestID,
		Kind:      domain.AuditQuery,
		Outcome:   domain.OutcomeSuccess,
		Detail:    fmt.Sprintf("q=%q hits=%d dropped=%d model=%s", req.Query, len(hits), answer.DroppedChunks, answer.Model),
		Duration:  time.Since(start).Milliseconds(),
	})
	return answer, nil
}

func (s *QueryService) recordQueryFailure(ctx context.Context, sessionID, requestID string, start time.Time, err error) {
	s.audit.Record(ctx, domain.AuditEvent{
		SessionID: sessionID,
		RequestID: requestID,
		Kind:      domain.AuditQuery,
		Outcome:   domain.OutcomeFailure,
		Detail:    err.Error(),
		Duration:  time.Since(start).Milliseconds(),
	})
}
