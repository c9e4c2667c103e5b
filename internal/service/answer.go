package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/burrowlabs/burrow/internal/domain"
)

// CompletionClient produces a completion for a fully rendered prompt.
type CompletionClient interface {
	Complete(ctx context.Context, prompt string) (domain.Completion, error)
}

// AnswerService turns a built prompt into a grounded answer. Citations
// travel from the prompt to the answer untouched; only the model text
// is produced here.
type AnswerService struct {
	llm     CompletionClient
	timeout time.Duration
}

// NewAnswerService creates a new AnswerService instance
func NewAnswerService(llm CompletionClient, timeout time.Duration) *AnswerService {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &AnswerService{
		llm:     llm,
		timeout: timeout,
	}
}

// Generate requests a completion for the prompt under the configured
// timeout. Deadline expiry and transport failure surface as distinct
// error codes so callers can tell "slow" from "down".
func (s *AnswerService) Generate(ctx context.Context, prompt domain.Prompt) (*domain.Answer, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	completion, err := s.llm.Complete(ctx, prompt.Render())
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, domain.NewDomainErrorWithCause(domain.ErrCodeLLMTimeout,
				fmt.Sprintf("no completion within %s", s.timeout), domain.ErrLLMTimeout)
		}
		if errors.Is(err, context.Canceled) {
			return nil, fmt.Errorf("completion canceled: %w", err)
		}
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeLLMUnavailable,
			fmt.Sprintf("completion request failed: %v", err), domain.ErrLLMUnavailable)
	}

	latency := time.Since(start)
	log.Printf("answer: completion received model=%s latency=%s dropped_chunks=%d",
		completion.Model, latency.Round(time.Millisecond), prompt.DroppedChunks)

	return &domain.Answer{
		Text:          strings.TrimSpace(completion.Text),
		Citations:     prompt.Citations,
		Model:         completion.Model,
		Latency:       latency,
		DroppedChunks: prompt.DroppedChunks,
	}, nil
}
