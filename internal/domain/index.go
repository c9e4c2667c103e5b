package domain

import "time"

// ChunkMeta is the citation metadata stored alongside a vector.
type ChunkMeta struct {
	DocumentHash string `json:"document_hash"`
	DocumentName string `json:"document_name"`
	Ordinal      int    `json:"ordinal"`
	Start        int    `json:"start"`
	End          int    `json:"end"`
}

// IndexEntry is the persisted tuple for one chunk: id, vector, the
// chunk text, and citation metadata. Chunk id is unique across the
// store; writing an existing id replaces the entry (idempotent upsert).
type IndexEntry struct {
	ChunkID string
	Vector  []float32
	Text    string
	Meta    ChunkMeta
}

// SearchHit is one nearest-neighbor result with its similarity score
// (higher is more similar) and enough metadata to build a citation.
type SearchHit struct {
	ChunkID string
	Score   float64
	Text    string
	Meta    ChunkMeta
}

// IndexStats describes the current index for the admin view.
type IndexStats struct {
	Chunks        int64      `json:"chunks"`
	Documents     int64      `json:"documents"`
	LastIndexedAt *time.Time `json:"last_indexed_at,omitempty"`
}

// DocumentInfo summarizes one indexed document.
type DocumentInfo struct {
	Hash   string `json:"hash"`
	Name   string `json:"name"`
	Chunks int64  `json:"chunks"`
}

// IngestResult summarizes one document ingestion.
type IngestResult struct {
	DocumentHash  string `json:"document_hash"`
	DocumentName  string `json:"document_name"`
	ChunksIndexed int    `json:"chunks_indexed"`
}

// Citation links an answer back to the originating document span.
type Citation struct {
	DocumentName string  `json:"document_name"`
	Ordinal      int     `json:"ordinal"`
	Start        int     `json:"start"`
	End          int     `json:"end"`
	Score        float64 `json:"score"`
}

// CitationFromHit builds a Citation from a search hit.
func CitationFromHit(hit SearchHit) Citation {
	return Citation{
		DocumentName: hit.Meta.DocumentName,
		Ordinal:      hit.Meta.Ordinal,
		Start:        hit.Meta.Start,
		End:          hit.Meta.End,
		Score:        hit.Score,
	}
}

// Answer is the final result of a query: the completion text, the
// citations carried through unchanged from retrieval, and metrics.
type Answer struct {
	Text          string        `json:"text"`
	Citations     []Citation    `json:"citations"`
	Model         string        `json:"model"`
	Latency       time.Duration `json:"latency"`
	DroppedChunks int           `json:"dropped_chunks"`
}

// Completion is a raw model completion with timing.
type Completion struct {
	Text    string
	Model   string
	Latency time.Duration
}
