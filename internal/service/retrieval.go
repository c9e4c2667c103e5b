package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/burrowlabs/burrow/internal/domain"
)

// QueryEmbedder embeds ephemeral query text. *IndexService satisfies it.
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// RetrievalConfig bounds retrieval requests.
type RetrievalConfig struct {
	DefaultTopK   int
	MaxTopK       int
	MaxQueryChars int
}

// DefaultRetrievalConfig provides the standard retrieval bounds.
func DefaultRetrievalConfig() RetrievalConfig {
	return RetrievalConfig{
		DefaultTopK:   4,
		MaxTopK:       16,
		MaxQueryChars: 500,
	}
}

// RetrievalService returns the top-k nearest chunks for a query with
// a stable, reproducible ordering.
type RetrievalService struct {
	embedder QueryEmbedder
	index    VectorIndex
	cfg      RetrievalConfig
}

// NewRetrievalService creates a new RetrievalService instance
func NewRetrievalService(embedder QueryEmbedder, index VectorIndex, cfg RetrievalConfig) *RetrievalService {
	if cfg.DefaultTopK <= 0 {
		cfg.DefaultTopK = DefaultRetrievalConfig().DefaultTopK
	}
	if cfg.MaxTopK <= 0 {
		cfg.MaxTopK = DefaultRetrievalConfig().MaxTopK
	}
	if cfg.MaxQueryChars <= 0 {
		cfg.MaxQueryChars = DefaultRetrievalConfig().MaxQueryChars
	}
	return &RetrievalService{
		embedder: embedder,
		index:    index,
		cfg:      cfg,
	}
}

// ValidateQuery rejects empty and over-length queries before any
// retrieval work happens.
func (s *RetrievalService) ValidateQuery(query string) error {
	if strings.TrimSpace(query) == "" {
		return domain.ErrEmptyQuery
	}
	if utf8.RuneCountInString(query) > s.cfg.MaxQueryChars {
		return domain.ErrQueryTooLong
	}
	return nil
}

// Retrieve embeds the query and returns up to k hits ordered by
// descending similarity, ties broken by chunk id ascending. k is
// clamped to the configured maximum, never rejected; an empty index
// yields an empty result, not an error.
func (s *RetrievalService) Retrieve(ctx context.Context, query string, k int) ([]domain.SearchHit, error) {
	if err := s.ValidateQuery(query); err != nil {
		return nil, err
	}

	if k <= 0 {
		k = s.cfg.DefaultTopK
	}
	if k > s.cfg.MaxTopK {
		k = s.cfg.MaxTopK
	}

	vector, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, err
	}

	hits, err := s.index.Search(ctx, vector, k)
	if err != nil {
		return nil, fmt.Errorf("failed to search index: %w", err)
	}

	sortHits(hits)
	return hits, nil
}

// sortHits enforces the deterministic result ordering regardless of
// what the backend returned.
func sortHits(hits []domain.SearchHit) {
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ChunkID < hits[j].ChunkID
	})
}
