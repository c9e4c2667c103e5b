package service

import (
	"unicode"

	"github.com/burrowlabs/burrow/internal/domain"
)

// ChunkConfig controls how document text is split for indexing.
type ChunkConfig struct {
	MaxChars  int
	Overlap   int
	MaxChunks int
}

// DefaultChunkConfig provides the standard chunking parameters.
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{
		MaxChars:  800,
		Overlap:   100,
		MaxChunks: 512,
	}
}

// Validate checks the chunking constraints.
func (cfg ChunkConfig) Validate() error {
	if cfg.MaxChars <= 0 || cfg.Overlap < 0 {
		return domain.ErrChunkConfig
	}
	if cfg.Overlap >= cfg.MaxChars {
		return domain.ErrChunkConfig
	}
	return nil
}

// ChunkDocument splits a document into overlapping chunks with stable,
// deterministic identifiers. Identical input always produces identical
// ids, boundaries, and ordering; offsets are rune positions into the
// document text. Cuts prefer paragraph breaks, then sentence ends, then
// whitespace, before falling back to a hard cut at MaxChars.
func ChunkDocument(doc *domain.Document, cfg ChunkConfig) ([]domain.Chunk, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	runes := []rune(doc.Text)
	if len(trimSpan(runes, 0, len(runes))) == 0 {
		return nil, domain.ErrNothingToChunk
	}

	maxChunks := cfg.MaxChunks
	if maxChunks <= 0 {
		maxChunks = DefaultChunkConfig().MaxChunks
	}

	chunks := make([]domain.Chunk, 0, 8)
	start := 0
	for start < len(runes) {
		end := start + cfg.MaxChars
		if end > len(runes) {
			end = len(runes)
		} else {
			end = findCut(runes, start, end)
		}

		ts, te := trimOffsets(runes, start, end)
		if te > ts {
			if len(chunks) >= maxChunks {
				return nil, domain.ErrTooManyChunks
			}
			chunks = append(chunks, domain.Chunk{
				ID:           domain.NewChunkID(doc.Hash, len(chunks), ts, te),
				DocumentHash: doc.Hash,
				DocumentName: doc.Name,
				Ordinal:      len(chunks),
				Start:        ts,
				End:          te,
				Text:         string(runes[ts:te]),
			})
		}

		if end >= len(runes) {
			break
		}

		nextStart := end
		if cfg.Overlap > 0 && end-start > cfg.Overlap {
			nextStart = end - cfg.Overlap
		}
		if nextStart <= start {
			nextStart = end
		}
		start = nextStart
	}

	return chunks, nil
}

// findCut scans backward from end for the best boundary inside the
// window. Paragraph and sentence boundaries are only taken past the
// half-window floor so chunks never degenerate; any whitespace wins
// over a hard cut.
func findCut(runes []rune, start, end int) int {
	floor := start + (end-start)/2

	for i := end; i > floor; i-- {
		if runes[i-1] == '\n' && i >= 2 && runes[i-2] == '\n' {
			return i
		}
	}

	for i := end; i > floor; i-- {
		if i >= 2 && unicode.IsSpace(runes[i-1]) && isSentenceEnd(runes[i-2]) {
			return i
		}
	}

	for i := end; i > floor; i-- {
		if unicode.IsSpace(runes[i-1]) {
			return i
		}
	}

	return end
}

func isSentenceEnd(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

// trimOffsets narrows [start, end) to exclude surrounding whitespace
// so chunk text and citation offsets stay in exact correspondence.
func trimOffsets(runes []rune, start, end int) (int, int) {
	for start < end && unicode.IsSpace(runes[start]) {
		start++
	}
	for end > start && unicode.IsSpace(runes[end-1]) {
		end--
	}
	return start, end
}

func trimSpan(runes []rune, start, end int) []rune {
	s, e := trimOffsets(runes, start, end)
	return runes[s:e]
}
