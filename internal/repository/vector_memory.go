package repository

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/burrowlabs/burrow/internal/domain"
)

// MemoryVectorIndex is a process-local vector store. It backs the
// memory backend and most tests; nothing survives a restart.
type MemoryVectorIndex struct {
	mu            sync.RWMutex
	entries       map[string]domain.IndexEntry
	lastIndexedAt time.Time
}

func NewMemoryVectorIndex() *MemoryVectorIndex {
	return &MemoryVectorIndex{entries: make(map[string]domain.IndexEntry)}
}

// Upsert replaces entries that share a chunk id and inserts the rest.
func (m *MemoryVectorIndex) Upsert(ctx context.Context, entries []domain.IndexEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, e := range entries {
		vec := make([]float32, len(e.Vector))
		copy(vec, e.Vector)
		e.Vector = vec
		m.entries[e.ChunkID] = e
	}
	if len(entries) > 0 {
		m.lastIndexedAt = time.Now().UTC()
	}
	return nil
}

func (m *MemoryVectorIndex) Search(ctx context.Context, vector []float32, k int) ([]domain.SearchHit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if k <= 0 {
		return nil, nil
	}

	m.mu.RLock()
	hits := make([]domain.SearchHit, 0, len(m.entries))
	for _, e := range m.entries {
		// Entries indexed under a different embedding model are
		// unreachable rather than scored against garbage.
		if len(e.Vector) != len(vector) {
			continue
		}
		hits = append(hits, domain.SearchHit{
			ChunkID: e.ChunkID,
			Score:   scoreFromDistance(cosineDistance(vector, e.Vector)),
			Text:    e.Text,
			Meta:    e.Meta,
		})
	}
	m.mu.RUnlock()

	orderHits(hits)
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func (m *MemoryVectorIndex) Stats(ctx context.Context) (domain.IndexStats, error) {
	if err := ctx.Err(); err != nil {
		return domain.IndexStats{}, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	docs := make(map[string]struct{})
	for _, e := range m.entries {
		docs[e.Meta.DocumentHash] = struct{}{}
	}
	stats := domain.IndexStats{
		Chunks:    int64(len(m.entries)),
		Documents: int64(len(docs)),
	}
	if !m.lastIndexedAt.IsZero() {
		t := m.lastIndexedAt
		stats.LastIndexedAt = &t
	}
	return stats, nil
}

func (m *MemoryVectorIndex) Catalog(ctx context.Context) ([]domain.DocumentInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	byHash := make(map[string]*domain.DocumentInfo)
	for _, e := range m.entries {
		info, ok := byHash[e.Meta.DocumentHash]
		if !ok {
			info = &domain.DocumentInfo{Hash: e.Meta.DocumentHash, Name: e.Meta.DocumentName}
			byHash[e.Meta.DocumentHash] = info
		}
		info.Chunks++
	}
	m.mu.RUnlock()

	catalog := make([]domain.DocumentInfo, 0, len(byHash))
	for _, info := range byHash {
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

func (m *MemoryVectorIndex) PurgeDocument(ctx context.Context, documentHash string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var removed int64
	for id, e := range m.entries {
		if e.Meta.DocumentHash == documentHash {
			delete(m.entries, id)
			removed++
		}
	}
	return removed, nil
}

func (m *MemoryVectorIndex) Ping(ctx context.Context) error {
	return ctx.Err()
}

// orderHits sorts by score descending, chunk id ascending on ties.
func orderHits(hits []domain.SearchHit) {
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ChunkID < hits[j].ChunkID
	})
}

// cosineDistance is 1 - cosine similarity, matching the pgvector <=>
// operator. Zero-magnitude vectors are treated as maximally distant.
func cosineDistance(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}

// scoreFromDistance folds a cosine distance onto the similarity scale
// shared by every backend: 1/(1+d), higher is closer.
func scoreFromDistance(d float64) float64 {
	return 1.0 / (1.0 + d)
}
