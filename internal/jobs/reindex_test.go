package jobs

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/burrowlabs/burrow/internal/domain"
)

// MockDocumentIngester is a mock implementation of DocumentIngester
type MockDocumentIngester struct {
	mock.Mock
}

func (m *MockDocumentIngester) IngestDocument(ctx context.Context, doc *domain.Document) (*domain.IngestResult, error) {
	args := m.Called(ctx, doc)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.IngestResult), args.Error(1)
}

// MockAuditor is a mock implementation of Auditor
type MockAuditor struct {
	mock.Mock
}

func (m *MockAuditor) Record(ctx context.Context, event domain.AuditEvent) {
	m.Called(ctx, event)
}

func writeDataFile(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestReindexer_Sweep_IngestsNewFiles(t *testing.T) {
	dir := t.TempDir()
	writeDataFile(t, dir, "notes.md", "# Notes\n\nBadger burrows are called setts.")
	writeDataFile(t, dir, filepath.Join("sub", "guide.txt"), "Keep the vents clear in winter.")

	mockIngester := new(MockDocumentIngester)
	mockAudit := new(MockAuditor)

	mockIngester.On("IngestDocument", mock.Anything, mock.MatchedBy(func(doc *domain.Document) bool {
		return doc.Name == "notes.md"
	})).Return(&domain.IngestResult{DocumentHash: "h1", DocumentName: "notes.md", ChunksIndexed: 2}, nil)
	mockIngester.On("IngestDocument", mock.Anything, mock.MatchedBy(func(doc *domain.Document) bool {
		return doc.Name == "guide.txt"
	})).Return(&domain.IngestResult{DocumentHash: "h2", DocumentName: "guide.txt", ChunksIndexed: 1}, nil)
	mockAudit.On("Record", mock.Anything, mock.Anything).Return()

	reindexer := NewReindexer(dir, mockIngester, mockAudit)
	err := reindexer.Sweep(context.Background())

	assert.NoError(t, err)
	mockIngester.AssertNumberOfCalls(t, "IngestDocument", 2)
	mockAudit.AssertCalled(t, "Record", mock.Anything, mock.MatchedBy(func(e domain.AuditEvent) bool {
		return e.Kind == domain.AuditReindex &&
			e.Outcome == domain.OutcomeSuccess &&
			e.SessionID == ReindexSession
	}))
}

func TestReindexer_Sweep_SkipsUnchangedFiles(t *testing.T) {
	dir := t.TempDir()
	writeDataFile(t, dir, "notes.md", "stable content")

	mockIngester := new(MockDocumentIngester)
	mockAudit := new(MockAuditor)

	mockIngester.On("IngestDocument", mock.Anything, mock.Anything).
		Return(&domain.IngestResult{DocumentHash: "h1", DocumentName: "notes.md", ChunksIndexed: 1}, nil)
	mockAudit.On("Record", mock.Anything, mock.Anything).Return()

	reindexer := NewReindexer(dir, mockIngester, mockAudit)

	assert.NoError(t, reindexer.Sweep(context.Background()))
	assert.NoError(t, reindexer.Sweep(context.Background()))

	mockIngester.AssertNumberOfCalls(t, "IngestDocument", 1)
}

func TestReindexer_Sweep_ReingestsChangedFiles(t *testing.T) {
	dir := t.TempDir()
	writeDataFile(t, dir, "notes.md", "first version")

	mockIngester := new(MockDocumentIngester)
	mockAudit := new(MockAuditor)

	mockIngester.On("IngestDocument", mock.Anything, mock.Anything).
		Return(&domain.IngestResult{DocumentHash: "h1", DocumentName: "notes.md", ChunksIndexed: 1}, nil)
	mockAudit.On("Record", mock.Anything, mock.Anything).Return()

	reindexer := NewReindexer(dir, mockIngester, mockAudit)

	assert.NoError(t, reindexer.Sweep(context.Background()))

	writeDataFile(t, dir, "notes.md", "second version")
	assert.NoError(t, reindexer.Sweep(context.Background()))

	mockIngester.AssertNumberOfCalls(t, "IngestDocument", 2)
}

func TestReindexer_Sweep_IgnoresUnsupportedFiles(t *testing.T) {
	dir := t.TempDir()
	writeDataFile(t, dir, "photo.png", "not text")
	writeDataFile(t, dir, ".draft.md", "hidden file")
	writeDataFile(t, dir, filepath.Join(".cache", "state.txt"), "hidden directory")

	mockIngester := new(MockDocumentIngester)
	mockAudit := new(MockAuditor)

	reindexer := NewReindexer(dir, mockIngester, mockAudit)
	err := reindexer.Sweep(context.Background())

	assert.NoError(t, err)
	mockIngester.AssertNotCalled(t, "IngestDocument", mock.Anything, mock.Anything)
	mockAudit.AssertNotCalled(t, "Record", mock.Anything, mock.Anything)
}

func TestReindexer_Sweep_RejectedFileAuditedOnce(t *testing.T) {
	dir := t.TempDir()
	writeDataFile(t, dir, "blank.txt", "   \n\t\n")

	mockIngester := new(MockDocumentIngester)
	mockAudit := new(MockAuditor)
	mockAudit.On("Record", mock.Anything, mock.Anything).Return()

	reindexer := NewReindexer(dir, mockIngester, mockAudit)

	assert.NoError(t, reindexer.Sweep(context.Background()))
	assert.NoError(t, reindexer.Sweep(context.Background()))

	mockIngester.AssertNotCalled(t, "IngestDocument", mock.Anything, mock.Anything)
	mockAudit.AssertNumberOfCalls(t, "Record", 1)
	mockAudit.AssertCalled(t, "Record", mock.Anything, mock.MatchedBy(func(e domain.AuditEvent) bool {
		return e.Kind == domain.AuditReindex && e.Outcome == domain.OutcomeRejected
	}))
}

func TestReindexer_Sweep_RetriesFailedIngest(t *testing.T) {
	dir := t.TempDir()
	writeDataFile(t, dir, "notes.md", "content worth retrying")

	mockIngester := new(MockDocumentIngester)
	mockAudit := new(MockAuditor)

	mockIngester.On("IngestDocument", mock.Anything, mock.Anything).
		Return(nil, errors.New("embedding service unavailable"))
	mockAudit.On("Record", mock.Anything, mock.Anything).Return()

	reindexer := NewReindexer(dir, mockIngester, mockAudit)

	assert.NoError(t, reindexer.Sweep(context.Background()))
	assert.NoError(t, reindexer.Sweep(context.Background()))

	// The failed file is not marked seen, so the next sweep retries it.
	mockIngester.AssertNumberOfCalls(t, "IngestDocument", 2)
	mockAudit.AssertCalled(t, "Record", mock.Anything, mock.MatchedBy(func(e domain.AuditEvent) bool {
		return e.Kind == domain.AuditReindex && e.Outcome == domain.OutcomeFailure
	}))
}

func TestReindexer_Sweep_MissingDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "missing")

	mockIngester := new(MockDocumentIngester)
	mockAudit := new(MockAuditor)

	reindexer := NewReindexer(dir, mockIngester, mockAudit)
	err := reindexer.Sweep(context.Background())

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to walk data directory")
}
