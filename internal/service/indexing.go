package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/burrowlabs/burrow/internal/domain"
	"github.com/burrowlabs/burrow/internal/telemetry"
)

// EmbeddingClient defines the interface for generating embeddings
type EmbeddingClient interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
	GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorIndex defines the vector-store interface consumed by the
// indexing and retrieval services. Upsert replaces entries that share
// a chunk id instead of duplicating them.
type VectorIndex interface {
	Upsert(ctx context.Context, entries []domain.IndexEntry) error
	Search(ctx context.Context, vector []float32, k int) ([]domain.SearchHit, error)
	Stats(ctx context.Context) (domain.IndexStats, error)
	Catalog(ctx context.Context) ([]domain.DocumentInfo, error)
	PurgeDocument(ctx context.Context, documentHash string) (int64, error)
	Ping(ctx context.Context) error
}

// maxEmbedBatch bounds how many chunks are sent to the embedding
// collaborator per request.
const maxEmbedBatch = 256

// IndexService embeds document chunks and persists them to the vector
// index. Ingestion is atomic per document: nothing is written until
// every chunk embedded, and deterministic chunk ids make retries
// idempotent.
type IndexService struct {
	embedder EmbeddingClient
	index    VectorIndex
	chunkCfg ChunkConfig
	dim      int
}

// NewIndexService creates a new IndexService instance
func NewIndexService(embedder EmbeddingClient, index VectorIndex, chunkCfg ChunkConfig, dim int) *IndexService {
	return &IndexService{
		embedder: embedder,
		index:    index,
		chunkCfg: chunkCfg,
		dim:      dim,
	}
}

// IngestDocument chunks, embeds, and upserts one document.
func (s *IndexService) IngestDocument(ctx context.Context, doc *domain.Document) (*domain.IngestResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "IndexService.IngestDocument", telemetry.SpanAttributes{
		DocumentHash: doc.Hash,
		Operation:    "ingest",
	})
	defer span.End()

	chunks, err := ChunkDocument(doc, s.chunkCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to chunk document %q: %w", doc.Name, err)
	}

	entries := make([]domain.IndexEntry, 0, len(chunks))
	for start := 0; start < len(chunks); start += maxEmbedBatch {
		end := start + maxEmbedBatch
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Text
		}

		vectors, err := s.embedder.GenerateEmbeddings(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("failed to embed chunks of %q: %w", doc.Name, err)
		}
		if len(vectors) != len(batch) {
			return nil, domain.NewDomainErrorWithCause(domain.ErrCodeEmbedding,
				"embedding batch size mismatch", domain.ErrEmbeddingService)
		}

		for i, vec := range vectors {
			if len(vec) != s.dim {
				return nil, domain.NewDomainErrorWithCause(domain.ErrCodeEmbedding,
					fmt.Sprintf("expected %d dimensions, got %d", s.dim, len(vec)), domain.ErrWrongDimensions)
			}
			c := batch[i]
			entries = append(entries, domain.IndexEntry{
				ChunkID: c.ID,
				Vector:  vec,
				Text:    c.Text,
				Meta: domain.ChunkMeta{
					DocumentHash: c.DocumentHash,
					DocumentName: c.DocumentName,
					Ordinal:      c.Ordinal,
					Start:        c.Start,
					End:          c.End,
				},
			})
		}
	}

	if err := s.upsertWithRetry(ctx, entries); err != nil {
		return nil, fmt.Errorf("failed to persist %d chunks of %q: %w", len(entries), doc.Name, err)
	}

	log.Printf("indexing: ingested document name=%s hash=%s chunks=%d", doc.Name, doc.Hash, len(entries))

	return &domain.IngestResult{
		DocumentHash:  doc.Hash,
		DocumentName:  doc.Name,
		ChunksIndexed: len(entries),
	}, nil
}

// EmbedQuery embeds an ephemeral query string.
func (s *IndexService) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vec, err := s.embedder.GenerateEmbedding(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if len(vec) != s.dim {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeEmbedding,
			fmt.Sprintf("expected %d dimensions, got %d", s.dim, len(vec)), domain.ErrWrongDimensions)
	}
	return vec, nil
}

// PurgeDocument removes every index entry belonging to a document.
func (s *IndexService) PurgeDocument(ctx context.Context, documentHash string) (int64, error) {
	ctx, span := telemetry.StartSpan(ctx, "IndexService.PurgeDocument", telemetry.SpanAttributes{
		DocumentHash: documentHash,
		Operation:    "purge",
	})
	defer span.End()

	removed, err := s.index.PurgeDocument(ctx, documentHash)
	if err != nil {
		return 0, fmt.Errorf("failed to purge document %s: %w", documentHash, err)
	}
	if removed == 0 {
		return 0, domain.ErrDocumentNotFound
	}
	log.Printf("indexing: purged document hash=%s chunks=%d", documentHash, removed)
	return removed, nil
}

// Stats reports index size for the admin view.
func (s *IndexService) Stats(ctx context.Context) (domain.IndexStats, error) {
	stats, err := s.index.Stats(ctx)
	if err != nil {
		return domain.IndexStats{}, fmt.Errorf("failed to read index stats: %w", err)
	}
	return stats, nil
}

// Catalog lists the indexed documents with their chunk counts.
func (s *IndexService) Catalog(ctx context.Context) ([]domain.DocumentInfo, error) {
	catalog, err := s.index.Catalog(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read index catalog: %w", err)
	}
	return catalog, nil
}

// upsertWithRetry absorbs transient store faults; the upsert is
// idempotent so repeating it is safe.
func (s *IndexService) upsertWithRetry(ctx context.Context, entries []domain.IndexEntry) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	bo.MaxInterval = 5 * time.Second
	bo.MaxElapsedTime = 15 * time.Second

	return backoff.Retry(func() error {
		if err := s.index.Upsert(ctx, entries); err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			return err
		}
		return nil
	}, backoff.WithContext(bo, ctx))
}
