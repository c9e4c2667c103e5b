package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/burrowlabs/burrow/internal/domain"
)

type MockRetriever struct {
	mock.Mock
}

func (m *MockRetriever) Retrieve(ctx context.Context, query string, topK int) ([]domain.SearchHit, error) {
	args := m.Called(ctx, query, topK)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.SearchHit), args.Error(1)
}

type MockAnswerGenerator struct {
	mock.Mock
}

func (m *MockAnswerGenerator) Generate(ctx context.Context, prompt domain.Prompt) (*domain.Answer, error) {
	args := m.Called(ctx, prompt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Answer), args.Error(1)
}

// captureSink collects audit events in memory for assertions.
type captureSink struct {
	mu     sync.Mutex
	events []domain.AuditEvent
}

func (c *captureSink) Append(event domain.AuditEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
	return nil
}

func (c *captureSink) Tail(limit int) ([]domain.AuditEvent, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.events) > limit {
		return c.events[len(c.events)-limit:], nil
	}
	return c.events, nil
}

func (c *captureSink) kinds() []domain.AuditKind {
	c.mu.Lock()
	defer c.mu.Unlock()
	kinds := make([]domain.AuditKind, 0, len(c.events))
	for _, e := range c.events {
		kinds = append(kinds, e.Kind)
	}
	return kinds
}

type queryHarness struct {
	svc       *QueryService
	retriever *MockRetriever
	generator *MockAnswerGenerator
	sink      *captureSink
	sessions  *SessionService
	session   *domain.Session
}

func newQueryHarness(t *testing.T, limit RateLimitConfig) *queryHarness {
	t.Helper()

	retriever := new(MockRetriever)
	generator := new(MockAnswerGenerator)
	sink := &captureSink{}

	sessions, err := NewSessionService("local-dev-token", time.Minute)
	require.NoError(t, err)
	session, err := sessions.Authenticate("local-dev-token")
	require.NoError(t, err)

	svc := NewQueryService(
		retriever,
		NewPromptBuilder(DefaultPromptConfig()),
		generator,
		NewRateLimiter(newFakeCounterStore(), limit),
		sessions,
		NewAuditService(sink),
	)

	return &queryHarness{
		svc:       svc,
		retriever: retriever,
		generator: generator,
		sink:      sink,
		sessions:  sessions,
		session:   session,
	}
}

func TestQueryServiceAsk(t *testing.T) {
	h := newQueryHarness(t, RateLimitConfig{Max: 5, Window: time.Minute})

	hits := []domain.SearchHit{testHit("notes.md", "Expense reports are due on Fridays.", 0, 0.9)}
	h.retriever.On("Retrieve", mock.Anything, "when are expenses due?", 4).Return(hits, nil)
	h.generator.On("Generate", mock.Anything, mock.MatchedBy(func(p domain.Prompt) bool {
		return p.Question == "when are expenses due?" && len(p.Citations) == 1
	})).Return(&domain.Answer{Text: "On Fridays.", Model: "qwen3:1.7b", Citations: []domain.Citation{{DocumentName: "notes.md"}}}, nil)

	answer, err := h.svc.Ask(context.Background(), AskRequest{
		Session:   h.session,
		RequestID: "req-1",
		Query:     "when are expenses due?",
		TopK:      4,
	})
	require.NoError(t, err)
	assert.Equal(t, "On Fridays.", answer.Text)

	assert.Equal(t, []domain.AuditKind{domain.AuditQuery}, h.sink.kinds())
	assert.Equal(t, domain.OutcomeSuccess, h.sink.events[0].Outcome)
	assert.Equal(t, h.session.ID, h.sink.events[0].SessionID)

	turns := h.sessions.History(h.session.ID)
	require.Len(t, turns, 2)
	assert.Equal(t, "when are expenses due?", turns[0].Content)
	assert.Equal(t, "On Fridays.", turns[1].Content)
}

func TestQueryServiceAskRateLimited(t *testing.T) {
	h := newQueryHarness(t, RateLimitConfig{Max: 1, Window: time.Minute})

	h.retriever.On("Retrieve", mock.Anything, mock.Anything, mock.Anything).Return([]domain.SearchHit{}, nil)
	h.generator.On("Generate", mock.Anything, mock.Anything).Return(&domain.Answer{Text: "ok"}, nil)

	_, err := h.svc.Ask(context.Background(), AskRequest{Session: h.session, Query: "first"})
	require.NoError(t, err)

	_, err = h.svc.Ask(context.Background(), AskRequest{Session: h.session, Query: "second"})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrRateLimited)

	var rateErr *domain.RateLimitError
	require.ErrorAs(t, err, &rateErr)

	kinds := h.sink.kinds()
	assert.Equal(t, domain.AuditRateLimited, kinds[len(kinds)-1])
	h.retriever.AssertNumberOfCalls(t, "Retrieve", 1)
}

func TestQueryServiceAskRejectsBadInput(t *testing.T) {
	h := newQueryHarness(t, RateLimitConfig{Max: 5, Window: time.Minute})

	h.retriever.On("Retrieve", mock.Anything, "", 0).Return(nil, domain.ErrEmptyQuery)

	_, err := h.svc.Ask(context.Background(), AskRequest{Session: h.session, Query: ""})
	assert.ErrorIs(t, err, domain.ErrEmptyQuery)

	require.Len(t, h.sink.events, 1)
	assert.Equal(t, domain.AuditInputRejected, h.sink.events[0].Kind)
	assert.Equal(t, domain.OutcomeRejected, h.sink.events[0].Outcome)
	h.generator.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
}

func TestQueryServiceAskModelFailureAudited(t *testing.T) {
	h := newQueryHarness(t, RateLimitConfig{Max: 5, Window: time.Minute})

	h.retriever.On("Retrieve", mock.Anything, mock.Anything, mock.Anything).Return([]domain.SearchHit{}, nil)
	h.generator.On("Generate", mock.Anything, mock.Anything).
		Return(nil, domain.NewDomainErrorWithCause(domain.ErrCodeLLMUnavailable, "down", domain.ErrLLMUnavailable))

	_, err := h.svc.Ask(context.Background(), AskRequest{Session: h.session, Query: "anything?"})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrLLMUnavailable)

	require.Len(t, h.sink.events, 1)
	assert.Equal(t, domain.AuditQuery, h.sink.events[0].Kind)
	assert.Equal(t, domain.OutcomeFailure, h.sink.events[0].Outcome)

	// Failed asks leave no conversation residue.
	assert.Empty(t, h.sessions.History(h.session.ID))
}

func TestQueryServiceAskAnonymousSession(t *testing.T) {
	h := newQueryHarness(t, RateLimitConfig{Max: 5, Window: time.Minute})

	h.retriever.On("Retrieve", mock.Anything, mock.Anything, mock.Anything).Return([]domain.SearchHit{}, nil)
	h.generator.On("Generate", mock.Anything, mock.Anything).Return(&domain.Answer{Text: "ok"}, nil)

	_, err := h.svc.Ask(context.Background(), AskRequest{Query: "no session"})
	require.NoError(t, err)
	assert.Equal(t, domain.AnonymousSession, h.sink.events[0].SessionID)
}
