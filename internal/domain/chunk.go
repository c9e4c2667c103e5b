package domain

import (
	"fmt"

	"github.com/google/uuid"
)

// chunkIDNamespace is the fixed UUIDv5 namespace for chunk identifiers.
// It must never change: chunk ids derived from it are the upsert keys
// that make re-indexing idempotent.
var chunkIDNamespace = uuid.MustParse("9a7c1c26-2e5b-4d61-8f0d-7a3f5c9b1e44")

// Chunk is a bounded span of a document's text, the unit of indexing
// and retrieval. Offsets are rune positions into the document text and
// back citations without re-reading the source.
type Chunk struct {
	ID           string
	DocumentHash string
	DocumentName string
	Ordinal      int
	Start        int
	End          int
	Text         string
}

// NewChunkID derives the deterministic chunk identifier from the
// document content hash, the chunk ordinal, and the chunk boundaries.
// Identical input always yields the identical id.
func NewChunkID(documentHash string, ordinal, start, end int) string {
	name := fmt.Sprintf("%s:%d:%d:%d", documentHash, ordinal, start, end)
	return uuid.NewSHA1(chunkIDNamespace, []byte(name)).String()
}

// Validate checks chunk internal consistency.
func (c *Chunk) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("chunk ID is required")
	}
	if c.DocumentHash == "" {
		return fmt.Errorf("chunk DocumentHash is required")
	}
	if c.Text == "" {
		return fmt.Errorf("chunk Text is required")
	}
	if c.Ordinal < 0 {
		return fmt.Errorf("chunk Ordinal must not be negative")
	}
	if c.End <= c.Start {
		return fmt.Errorf("chunk End must be greater than Start")
	}
	return nil
}
