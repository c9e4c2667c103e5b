package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/burrowlabs/burrow/internal/api/handlers"
	"github.com/burrowlabs/burrow/internal/domain"
	"github.com/burrowlabs/burrow/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockSessionAuthenticator struct {
	mock.Mock
}

func (m *MockSessionAuthenticator) Authenticate(presented string) (*domain.Session, error) {
	args := m.Called(presented)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Session), args.Error(1)
}

type MockAuditor struct {
	mock.Mock
}

func (m *MockAuditor) Record(ctx context.Context, event domain.AuditEvent) {
	m.Called(ctx, event)
}

func (m *MockAuditor) Tail(limit int) ([]domain.AuditEvent, error) {
	args := m.Called(limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.AuditEvent), args.Error(1)
}

type MockPinger struct {
	mock.Mock
}

func (m *MockPinger) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

type MockDocumentIndexer struct {
	mock.Mock
}

func (m *MockDocumentIndexer) IngestDocument(ctx context.Context, doc *domain.Document) (*domain.IngestResult, error) {
	args := m.Called(ctx, doc)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.IngestResult), args.Error(1)
}

func (m *MockDocumentIndexer) PurgeDocument(ctx context.Context, documentHash string) (int64, error) {
	args := m.Called(ctx, documentHash)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockDocumentIndexer) Stats(ctx context.Context) (domain.IndexStats, error) {
	args := m.Called(ctx)
	return args.Get(0).(domain.IndexStats), args.Error(1)
}

func (m *MockDocumentIndexer) Catalog(ctx context.Context) ([]domain.DocumentInfo, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.DocumentInfo), args.Error(1)
}

type MockRateGate struct {
	mock.Mock
}

func (m *MockRateGate) Allow(sessionID string, action domain.ActionKind) domain.RateDecision {
	args := m.Called(sessionID, action)
	return args.Get(0).(domain.RateDecision)
}

type MockQueryService struct {
	mock.Mock
}

func (m *MockQueryService) Ask(ctx context.Context, req service.AskRequest) (*domain.Answer, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Answer), args.Error(1)
}

type MockAgentService struct {
	mock.Mock
}

func (m *MockAgentService) Run(ctx context.Context, req service.AgentRequest) (*domain.AgentResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.AgentResult), args.Error(1)
}

type routerMocks struct {
	auth    *MockSessionAuthenticator
	audit   *MockAuditor
	pinger  *MockPinger
	indexer *MockDocumentIndexer
	gate    *MockRateGate
	query   *MockQueryService
	agent   *MockAgentService
}

func setupRouter() (http.Handler, *routerMocks) {
	mocks := &routerMocks{
		auth:    new(MockSessionAuthenticator),
		audit:   new(MockAuditor),
		pinger:  new(MockPinger),
		indexer: new(MockDocumentIndexer),
		gate:    new(MockRateGate),
		query:   new(MockQueryService),
		agent:   new(MockAgentService),
	}

	cfg := RouterConfig{
		Authenticator:    mocks.auth,
		Audit:            mocks.audit,
		Index:            mocks.pinger,
		DocumentsHandler: handlers.NewDocumentsHandler(mocks.indexer, mocks.gate, mocks.audit),
		QueryHandler:     handlers.NewQueryHandler(mocks.query),
		AgentHandler:     handlers.NewAgentHandler(mocks.agent),
		AdminHandler:     handlers.NewAdminHandler(mocks.indexer, mocks.audit, service.DefaultRateLimitConfig()),
	}

	return NewRouter(cfg), mocks
}

func activeSession() *domain.Session {
	created := time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)
	return &domain.Session{ID: "sess-1", CreatedAt: created, LastSeenAt: created.Add(time.Minute)}
}

func TestRouter_HealthEndpoint(t *testing.T) {
	router, mocks := setupRouter()
	mocks.pinger.On("Ping", mock.Anything).Return(nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	require.NoError(t, err)
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, "ok", data["status"])
}

func TestRouter_HealthEndpoint_IndexDown(t *testing.T) {
	router, mocks := setupRouter()
	mocks.pinger.On("Ping", mock.Anything).Return(errors.New("connection refused"))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestRouter_AuthenticatedRoutes_RequireAuth(t *testing.T) {
	router, mocks := setupRouter()
	mocks.audit.On("Record", mock.Anything, mock.MatchedBy(func(e domain.AuditEvent) bool {
		return e.Kind == domain.AuditAuthFailure
	})).Return()

	routes := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/v1/documents"},
		{http.MethodDelete, "/v1/documents/abc"},
		{http.MethodPost, "/v1/query"},
		{http.MethodPost, "/v1/agent"},
		{http.MethodGet, "/v1/index/stats"},
		{http.MethodGet, "/v1/admin/audit"},
		{http.MethodGet, "/v1/admin/metrics"},
	}

	for _, route := range routes {
		t.Run(route.method+" "+route.path, func(t *testing.T) {
			req := httptest.NewRequest(route.method, route.path, nil)
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}
}

func TestRouter_Query_WithValidAuth(t *testing.T) {
	router, mocks := setupRouter()

	mocks.auth.On("Authenticate", "burrow-local-token").Return(activeSession(), nil)
	answer := &domain.Answer{Text: "an answer", Citations: []domain.Citation{}, Model: "gpt-4o-mini"}
	mocks.query.On("Ask", mock.Anything, mock.MatchedBy(func(req service.AskRequest) bool {
		return req.Session.ID == "sess-1" && req.Query == "what lives in a burrow?" && req.RequestID != ""
	})).Return(answer, nil)

	body := strings.NewReader(`{"query":"what lives in a burrow?"}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/query", body)
	req.Header.Set("Authorization", "Bearer burrow-local-token")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	mocks.auth.AssertExpectations(t)
	mocks.query.AssertExpectations(t)
}

func TestRouter_Ingest_WithValidAuth(t *testing.T) {
	router, mocks := setupRouter()

	mocks.auth.On("Authenticate", "burrow-local-token").Return(activeSession(), nil)
	mocks.gate.On("Allow", "sess-1", domain.ActionIngest).Return(domain.RateDecision{Allowed: true, Remaining: 9})
	mocks.audit.On("Record", mock.Anything, mock.Anything).Return()
	result := &domain.IngestResult{DocumentHash: "abc", DocumentName: "notes.md", ChunksIndexed: 2}
	mocks.indexer.On("IngestDocument", mock.Anything, mock.Anything).Return(result, nil)

	body := strings.NewReader(`{"name":"notes.md","content":"# Notes\nSome text."}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/documents", body)
	req.Header.Set("Authorization", "Bearer burrow-local-token")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	mocks.indexer.AssertExpectations(t)
}

func TestRouter_Purge_RouteParam(t *testing.T) {
	router, mocks := setupRouter()

	mocks.auth.On("Authenticate", "burrow-local-token").Return(activeSession(), nil)
	mocks.audit.On("Record", mock.Anything, mock.Anything).Return()
	mocks.indexer.On("PurgeDocument", mock.Anything, "deadbeef").Return(int64(3), nil)

	req := httptest.NewRequest(http.MethodDelete, "/v1/documents/deadbeef", nil)
	req.Header.Set("Authorization", "Bearer burrow-local-token")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	mocks.indexer.AssertExpectations(t)
}

func TestRouter_RequestIDHeaderPropagates(t *testing.T) {
	router, mocks := setupRouter()
	mocks.pinger.On("Ping", mock.Anything).Return(nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "req-42")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, "req-42", w.Header().Get("X-Request-ID"))
}

func TestRouter_BodyTooLarge(t *testing.T) {
	router, mocks := setupRouter()
	mocks.auth.On("Authenticate", "burrow-local-token").Return(activeSession(), nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/documents", strings.NewReader("{}"))
	req.Header.Set("Authorization", "Bearer burrow-local-token")
	req.ContentLength = 20 * 1024 * 1024
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}
