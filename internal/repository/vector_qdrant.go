package repository

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"

	"github.com/burrowlabs/burrow/internal/domain"
)

const qdrantBatchSize = 100

// qdrantMaxRecvBytes raises the gRPC receive cap above the 4 MiB
// default; a full scroll page of payload-bearing points can exceed it.
const qdrantMaxRecvBytes = 32 * 1024 * 1024

// QdrantVectorIndex stores chunks as points in a Qdrant collection.
// Chunk ids are deterministic UUIDs, so they double as point ids and
// re-upserting a chunk overwrites its point instead of duplicating it.
type QdrantVectorIndex struct {
	client     *qdrant.Client
	collection string
	dim        int
}

// NewQdrantVectorIndex connects to Qdrant over gRPC and ensures the
// collection exists with cosine vectors of the configured dimension.
func NewQdrantVectorIndex(ctx context.Context, host string, port int, collection string, dim int) (*QdrantVectorIndex, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host: host,
		Port: port,
		GrpcOptions: []grpc.DialOption{
			grpc.WithDefaultCallOptions(grpc.MaxCallRecvMsgSize(qdrantMaxRecvBytes)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	idx := &QdrantVectorIndex{client: client, collection: collection, dim: dim}
	if err := idx.ensureCollection(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}
	return idx, nil
}

// ensureCollection is idempotent; an existing collection is left alone.
func (q *QdrantVectorIndex) ensureCollection(ctx context.Context) error {
	collections, err := q.client.ListCollections(ctx)
	if err != nil {
		return fmt.Errorf("failed to list collections: %w", err)
	}
	for _, name := range collections {
		if name == q.collection {
			return nil
		}
	}

	err = q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: q.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(q.dim),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	_, err = q.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
		CollectionName: q.collection,
		FieldName:      "document_hash",
		FieldType:      qdrant.FieldType_FieldTypeKeyword.Enum(),
	})
	if err != nil {
		return fmt.Errorf("failed to index document_hash: %w", err)
	}
	return nil
}

// Upsert writes points in batches of 100 and waits for each batch to
// land before returning.
func (q *QdrantVectorIndex) Upsert(ctx context.Context, entries []domain.IndexEntry) error {
	now := time.Now().UTC().Format(time.RFC3339)

	for start := 0; start < len(entries); start += qdrantBatchSize {
		end := start + qdrantBatchSize
		if end > len(entries) {
			end = len(entries)
		}
		batch := entries[start:end]

		points := make([]*qdrant.PointStruct, len(batch))
		for i, e := range batch {
			points[i] = &qdrant.PointStruct{
				Id:      qdrant.NewIDUUID(e.ChunkID),
				Vectors: qdrant.NewVectors(e.Vector...),
				Payload: qdrant.NewValueMap(map[string]any{
					"document_hash": e.Meta.DocumentHash,
					"document_name": e.Meta.DocumentName,
					"ordinal":       e.Meta.Ordinal,
					"start_offset":  e.Meta.Start,
					"end_offset":    e.Meta.End,
					"content":       e.Text,
					"indexed_at":    now,
				}),
			}
		}

		_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: q.collection,
			Points:         points,
			Wait:           qdrant.PtrOf(true),
		})
		if err != nil {
			return fmt.Errorf("failed to upsert batch %d-%d: %w", start, end, err)
		}
	}
	return nil
}

func (q *QdrantVectorIndex) Search(ctx context.Context, vector []float32, k int) ([]domain.SearchHit, error) {
	if k <= 0 {
		return nil, nil
	}

	results, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(k)),
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(false),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query collection: %w", err)
	}

	hits := make([]domain.SearchHit, 0, len(results))
	for _, res := range results {
		payload := res.Payload
		hits = append(hits, domain.SearchHit{
			ChunkID: res.Id.GetUuid(),
			// Qdrant reports cosine similarity; fold it onto the
			// shared distance-based scale.
			Score: scoreFromDistance(1 - float64(res.Score)),
			Text:  payload["content"].GetStringValue(),
			Meta: domain.ChunkMeta{
				DocumentHash: payload["document_hash"].GetStringValue(),
				DocumentName: payload["document_name"].GetStringValue(),
				Ordinal:      int(payload["ordinal"].GetIntegerValue()),
				Start:        int(payload["start_offset"].GetIntegerValue()),
				End:          int(payload["end_offset"].GetIntegerValue()),
			},
		})
	}
	orderHits(hits)
	return hits, nil
}

func (q *QdrantVectorIndex) Stats(ctx context.Context) (domain.IndexStats, error) {
	scan, err := q.scanCollection(ctx)
	if err != nil {
		return domain.IndexStats{}, err
	}

	stats := domain.IndexStats{
		Chunks:    scan.chunks,
		Documents: int64(len(scan.docs)),
	}
	if !scan.latest.IsZero() {
		t := scan.latest
		stats.LastIndexedAt = &t
	}
	return stats, nil
}

func (q *QdrantVectorIndex) Catalog(ctx context.Context) ([]domain.DocumentInfo, error) {
	scan, err := q.scanCollection(ctx)
	if err != nil {
		return nil, err
	}

	catalog := make([]domain.DocumentInfo, 0, len(scan.docs))
	for _, info := range scan.docs {
		catalog = append(catalog, *info)
	}
	sort.Slice(catalog, func(i, j int) bool {
		if catalog[i].Name != catalog[j].Name {
			return catalog[i].Name < catalog[j].Name
		}
		return catalog[i].Hash < catalog[j].Hash
	})
	return catalog, nil
}

func (q *QdrantVectorIndex) PurgeDocument(ctx context.Context, documentHash string) (int64, error) {
	filter := &qdrant.Filter{
		Must: []*qdrant.Condition{
			qdrant.NewMatch("document_hash", documentHash),
		},
	}

	count, err := q.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: q.collection,
		Filter:         filter,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count points: %w", err)
	}
	if count == 0 {
		return 0, nil
	}

	_, err = q.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: q.collection,
		Points:         qdrant.NewPointsSelectorFilter(filter),
		Wait:           qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to delete points: %w", err)
	}
	return int64(count), nil
}

func (q *QdrantVectorIndex) Ping(ctx context.Context) error {
	result, err := q.client.HealthCheck(ctx)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	if result == nil || result.Title == "" {
		return fmt.Errorf("health check returned invalid response")
	}
	return nil
}

func (q *QdrantVectorIndex) Close() error {
	return q.client.Close()
}

type qdrantScan struct {
	docs   map[string]*domain.DocumentInfo
	chunks int64
	latest time.Time
}

// scanCollection pages through every point to aggregate per-document
// counts; corpora here are small enough for a full scroll.
func (q *QdrantVectorIndex) scanCollection(ctx context.Context) (*qdrantScan, error) {
	scan := &qdrantScan{docs: make(map[string]*domain.DocumentInfo)}
	var offset *qdrant.PointId

	for {
		results, err := q.client.Scroll(ctx, &qdrant.ScrollPoints{
			CollectionName: q.collection,
			Limit:          qdrant.PtrOf(uint32(qdrantBatchSize)),
			Offset:         offset,
			WithPayload:    qdrant.NewWithPayloadInclude("document_hash", "document_name", "indexed_at"),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to scroll collection: %w", err)
		}

		for _, res := range results {
			payload := res.Payload
			hash := payload["document_hash"].GetStringValue()
			info, ok := scan.docs[hash]
			if !ok {
				info = &domain.DocumentInfo{Hash: hash, Name: payload["document_name"].GetStringValue()}
				scan.docs[hash] = info
			}
			info.Chunks++
			scan.chunks++

			if ts, err := time.Parse(time.RFC3339, payload["indexed_at"].GetStringValue()); err == nil && ts.After(scan.latest) {
				scan.latest = ts
			}
		}

		if len(results) < qdrantBatchSize {
			break
		}
		offset = results[len(results)-1].Id
	}
	return scan, nil
}
