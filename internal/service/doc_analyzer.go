package service

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/burrowlabs/burrow/internal/domain"
)

// CatalogReader provides corpus metadata for analysis.
type CatalogReader interface {
	Stats(ctx context.Context) (domain.IndexStats, error)
	Catalog(ctx context.Context) ([]domain.DocumentInfo, error)
}

// DocAnalyzer answers questions about the ingested corpus using index
// metadata only. It has no filesystem access and cannot describe
// anything that was not ingested.
type DocAnalyzer struct {
	index CatalogReader
}

// NewDocAnalyzer creates a new DocAnalyzer instance
func NewDocAnalyzer(index CatalogReader) *DocAnalyzer {
	return &DocAnalyzer{index: index}
}

// Name returns the registered tool name.
func (a *DocAnalyzer) Name() domain.ToolName {
	return domain.ToolDocAnalyzer
}

// Analyze answers one question about the corpus.
func (a *DocAnalyzer) Analyze(ctx context.Context, question string) (string, error) {
	q := strings.ToLower(strings.TrimSpace(question))
	if q == "" {
		return "", domain.NewDomainErrorWithCause(domain.ErrCodeToolValidation,
			"question is empty", domain.ErrInvalidToolArgs)
	}

	stats, err := a.index.Stats(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to read index stats: %w", err)
	}
	if stats.Documents == 0 {
		return "The index is empty. Ingest documents before asking about them.", nil
	}

	catalog, err := a.index.Catalog(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to read index catalog: %w", err)
	}
	sort.Slice(catalog, func(i, j int) bool { return catalog[i].Name < catalog[j].Name })

	switch {
	case containsAny(q, "how many", "count", "number of"):
		return fmt.Sprintf("The index holds %d documents split into %d chunks.", stats.Documents, stats.Chunks), nil
	case containsAny(q, "list", "which", "what documents", "names"):
		return listDocuments(catalog), nil
	case containsAny(q, "type", "kind", "format"):
		return describeTypes(catalog), nil
	case containsAny(q, "largest", "biggest", "longest"):
		return describeLargest(catalog), nil
	case containsAny(q, "last", "when", "recent"):
		if stats.LastIndexedAt == nil {
			return "The index has never recorded an indexing time.", nil
		}
		return fmt.Sprintf("The most recent indexing finished at %s.", stats.LastIndexedAt.UTC().Format("2006-01-02 15:04:05 UTC")), nil
	default:
		return fmt.Sprintf("The index holds %d documents split into %d chunks.\n%s",
			stats.Documents, stats.Chunks, listDocuments(catalog)), nil
	}
}

func containsAny(text string, needles ...string) bool {
	for _, needle := range needles {
		if strings.Contains(text, needle) {
			return true
		}
	}
	return false
}

func listDocuments(catalog []domain.DocumentInfo) string {
	lines := make([]string, 0, len(catalog)+1)
	lines = append(lines, "Indexed documents:")
	for _, doc := range catalog {
		lines = append(lines, fmt.Sprintf("- %s (%d chunks)", doc.Name, doc.Chunks))
	}
	return strings.Join(lines, "\n")
}

func describeTypes(catalog []domain.DocumentInfo) string {
	counts := map[string]int{}
	for _, doc := range catalog {
		ext := strings.ToLower(filepath.Ext(doc.Name))
		if ext == "" {
			ext = "(none)"
		}
		counts[ext]++
	}
	exts := make([]string, 0, len(counts))
	for ext := range counts {
		exts = append(exts, ext)
	}
	sort.Strings(exts)

	parts := make([]string, 0, len(exts))
	for _, ext := range exts {
		parts = append(parts, fmt.Sprintf("%s: %d", ext, counts[ext]))
	}
	return "Document types by extension: " + strings.Join(parts, ", ")
}

func describeLargest(catalog []domain.DocumentInfo) string {
	largest := catalog[0]
	for _, doc := range catalog[1:] {
		if doc.Chunks > largest.Chunks {
			largest = doc
		}
	}
	return fmt.Sprintf("The largest document is %s with %d chunks.", largest.Name, largest.Chunks)
}
