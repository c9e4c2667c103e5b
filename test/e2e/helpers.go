//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"io"
	"math"
	"net"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/burrowlabs/burrow/internal/api/handlers"
	"github.com/burrowlabs/burrow/internal/domain"
	"github.com/burrowlabs/burrow/internal/repository"
	"github.com/burrowlabs/burrow/internal/server"
	"github.com/burrowlabs/burrow/internal/service"
	"github.com/burrowlabs/burrow/internal/storage"
)

const (
	e2eToken     = "e2e-session-token-4b6f1c28a90d"
	embeddingDim = 8
)

// E2ETestEnv holds a full in-process daemon: the real router, services,
// the memory vector backend, and a file audit log, with the model side
// replaced by a scripted double.
type E2ETestEnv struct {
	T            *testing.T
	Ctx          context.Context
	ServerURL    string
	ServerCloser func()
	Token        string
	Model        *scriptedModel
	AuditPath    string
	HTTPClient   *http.Client
}

// EnvOptions tightens selected bounds for tests that exercise them.
type EnvOptions struct {
	RateLimit service.RateLimitConfig
	Agent     service.AgentConfig
}

// SetupE2EEnv creates an E2E environment with generous default bounds.
func SetupE2EEnv(t *testing.T) *E2ETestEnv {
	return SetupE2EEnvWithOptions(t, EnvOptions{})
}

// SetupE2EEnvWithOptions creates an E2E environment with explicit bounds.
func SetupE2EEnvWithOptions(t *testing.T, opts EnvOptions) *E2ETestEnv {
	ctx := context.Background()

	if opts.RateLimit.Max == 0 {
		opts.RateLimit = service.RateLimitConfig{Max: 1000, Window: time.Minute}
	}
	if opts.Agent.MaxIterations == 0 {
		opts.Agent = service.AgentConfig{MaxIterations: 4, Timeout: 10 * time.Second, MaxQuestionChars: 500}
	}

	auditPath := filepath.Join(t.TempDir(), "audit", "audit.log")
	auditLog, err := storage.NewFileAuditLog(auditPath)
	if err != nil {
		t.Fatalf("failed to create audit log: %v", err)
	}
	auditSvc := service.NewAuditService(auditLog)

	sessions, err := service.NewSessionService(e2eToken, time.Hour)
	if err != nil {
		t.Fatalf("failed to create session service: %v", err)
	}

	index := repository.NewMemoryVectorIndex()
	model := newScriptedModel()

	indexSvc := service.NewIndexService(model, index, service.ChunkConfig{MaxChars: 200, Overlap: 40}, embeddingDim)
	retrieval := service.NewRetrievalService(indexSvc, index, service.RetrievalConfig{
		DefaultTopK:   4,
		MaxTopK:       16,
		MaxQueryChars: 500,
	})
	prompts := service.NewPromptBuilder(service.PromptConfig{MaxContextChars: 4000})
	answers := service.NewAnswerService(model, 5*time.Second)
	limiter := service.NewRateLimiter(repository.NewCacheCounterStore(), opts.RateLimit)
	queries := service.NewQueryService(retrieval, prompts, answers, limiter, sessions, auditSvc)
	analyzer := service.NewDocAnalyzer(indexSvc)
	agent := service.NewAgentService(model, analyzer, limiter, sessions, auditSvc, opts.Agent)

	router := server.NewRouter(server.RouterConfig{
		Authenticator:    sessions,
		Audit:            auditSvc,
		Index:            index,
		DocumentsHandler: handlers.NewDocumentsHandler(indexSvc, limiter, auditSvc),
		QueryHandler:     handlers.NewQueryHandler(queries),
		AgentHandler:     handlers.NewAgentHandler(agent),
		AdminHandler:     handlers.NewAdminHandler(indexSvc, auditSvc, opts.RateLimit),
	})

	port, err := getFreePort()
	if err != nil {
		t.Fatalf("failed to get free port: %v", err)
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf("127.0.0.1:%d", port),
		Handler: router,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			t.Logf("server error: %v", err)
		}
	}()

	serverURL := fmt.Sprintf("http://127.0.0.1:%d", port)
	waitForServer(t, serverURL, 10*time.Second)

	return &E2ETestEnv{
		T:         t,
		Ctx:       ctx,
		ServerURL: serverURL,
		ServerCloser: func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
			auditLog.Close()
		},
		Token:      e2eToken,
		Model:      model,
		AuditPath:  auditPath,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Cleanup releases the server and the audit log.
func (e *E2ETestEnv) Cleanup() {
	if e.ServerCloser != nil {
		e.ServerCloser()
	}
}

// APIResponse mirrors the daemon's response envelope.
type APIResponse struct {
	Data  json.RawMessage `json:"data,omitempty"`
	Error string          `json:"error,omitempty"`
}

// Get performs an authenticated GET request.
func (e *E2ETestEnv) Get(path, token string) (*APIResponse, error) {
	return e.doRequest("GET", path, nil, token)
}

// Post performs an authenticated POST request with a JSON body.
func (e *E2ETestEnv) Post(path string, body interface{}, token string) (*APIResponse, error) {
	return e.doRequest("POST", path, body, token)
}

// Delete performs an authenticated DELETE request.
func (e *E2ETestEnv) Delete(path, token string) (*APIResponse, error) {
	return e.doRequest("DELETE", path, nil, token)
}

func (e *E2ETestEnv) doRequest(method, path string, body interface{}, token string) (*APIResponse, error) {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, e.ServerURL+path, reqBody)
	if err != nil {
		return nil, err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var apiResp APIResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, string(respBody))
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, apiResp.Error)
	}

	return &apiResp, nil
}

// IngestDocument indexes one document and returns its wire result.
func (e *E2ETestEnv) IngestDocument(name, content string) map[string]interface{} {
	e.T.Helper()
	resp, err := e.Post("/v1/documents", map[string]string{"name": name, "content": content}, e.Token)
	if err != nil {
		e.T.Fatalf("failed to ingest %s: %v", name, err)
	}
	var result map[string]interface{}
	if err := json.Unmarshal(resp.Data, &result); err != nil {
		e.T.Fatalf("failed to parse ingest response: %v", err)
	}
	return result
}

// SHA256Sum calculates the SHA256 hash of data.
func SHA256Sum(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}

func getFreePort() (int, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}

func waitForServer(t *testing.T, url string, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := http.Get(url + "/health")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatalf("server did not become ready within %v", timeout)
}

// scriptedModel stands in for the language model side. Embeddings are
// deterministic word-overlap vectors so texts sharing vocabulary score
// close; completions and agent actions are scripted per test.
type scriptedModel struct {
	mu      sync.Mutex
	actions []domain.ModelAction
}

func newScriptedModel() *scriptedModel {
	return &scriptedModel{}
}

// QueueAction appends one agent action to the script.
func (m *scriptedModel) QueueAction(action domain.ModelAction) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.actions = append(m.actions, action)
}

// ResetScript drops any unconsumed actions so the next run starts from
// an empty script.
func (m *scriptedModel) ResetScript() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.actions = nil
}

func (m *scriptedModel) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	return wordVector(text), nil
}

func (m *scriptedModel) GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = wordVector(text)
	}
	return out, nil
}

func (m *scriptedModel) Complete(ctx context.Context, prompt string) (domain.Completion, error) {
	return domain.Completion{
		Text:  "Based on the provided context, here is the answer.",
		Model: "scripted",
	}, nil
}

func (m *scriptedModel) NextAction(ctx context.Context, conversation []domain.AgentMessage, tools []domain.ToolSpec) (domain.ModelAction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.actions) == 0 {
		return domain.ModelAction{Final: "Done.", Model: "scripted"}, nil
	}
	action := m.actions[0]
	m.actions = m.actions[1:]
	if action.Model == "" {
		action.Model = "scripted"
	}
	return action, nil
}

// wordVector buckets lowercase words into a fixed-dimension histogram
// and normalizes it, so cosine similarity tracks vocabulary overlap.
func wordVector(text string) []float32 {
	v := make([]float32, embeddingDim)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		h.Write([]byte(word))
		v[h.Sum32()%embeddingDim]++
	}
	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	if norm == 0 {
		v[0] = 1
		return v
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range v {
		v[i] *= scale
	}
	return v
}
