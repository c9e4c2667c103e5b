package repository

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/burrowlabs/burrow/internal/domain"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS chunks (
	chunk_id      TEXT PRIMARY KEY,
	document_hash TEXT NOT NULL,
	document_name TEXT NOT NULL,
	ordinal       INTEGER NOT NULL,
	start_offset  INTEGER NOT NULL,
	end_offset    INTEGER NOT NULL,
	content       TEXT NOT NULL,
	embedding     BLOB NOT NULL,
	indexed_at    TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_chunks_document_hash ON chunks (document_hash);
`

// SQLiteVectorIndex persists chunks in a single local database file,
// the default backend. Similarity search scans every row and scores
// it in process; the file never leaves the machine.
type SQLiteVectorIndex struct {
	db *sql.DB
}

// NewSQLiteVectorIndex opens (or creates) the index file. The parent
// directory is created with owner-only permissions.
func NewSQLiteVectorIndex(path string) (*SQLiteVectorIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite index path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("failed to create index directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite index: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create sqlite schema: %w", err)
	}

	return &SQLiteVectorIndex{db: db}, nil
}

// Upsert replaces chunks that share an id and inserts the rest, all
// within one transaction.
func (s *SQLiteVectorIndex) Upsert(ctx context.Context, entries []domain.IndexEntry) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	for _, e := range entries {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO chunks (chunk_id, document_hash, document_name, ordinal, start_offset, end_offset, content, embedding, indexed_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT(chunk_id) DO UPDATE SET
				document_hash = excluded.document_hash,
				document_name = excluded.document_name,
				ordinal       = excluded.ordinal,
				start_offset  = excluded.start_offset,
				end_offset    = excluded.end_offset,
				content       = excluded.content,
				embedding     = excluded.embedding,
				indexed_at    = excluded.indexed_at`,
			e.ChunkID, e.Meta.DocumentHash, e.Meta.DocumentName,
			e.Meta.Ordinal, e.Meta.Start, e.Meta.End,
			e.Text, encodeVector(e.Vector), now,
		)
		if err != nil {
			_ = tx.Rollback()
			return err
		}
	}

	return tx.Commit()
}

func (s *SQLiteVectorIndex) Search(ctx context.Context, vector []float32, k int) ([]domain.SearchHit, error) {
	if k <= 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT chunk_id, document_hash, document_name, ordinal, start_offset, end_offset, content, embedding
		 FROM chunks`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hits []domain.SearchHit
	for rows.Next() {
		var hit domain.SearchHit
		var blob []byte
		if err := rows.Scan(&hit.ChunkID, &hit.Meta.DocumentHash, &hit.Meta.DocumentName,
			&hit.Meta.Ordinal, &hit.Meta.Start, &hit.Meta.End, &hit.Text, &blob); err != nil {
			return nil, err
		}
		vec, err := decodeVector(blob)
		if err != nil {
			return nil, fmt.Errorf("failed to decode embedding for chunk %s: %w", hit.ChunkID, err)
		}
		if len(vec) != len(vector) {
			continue
		}
		hit.Score = scoreFromDistance(cosineDistance(vector, vec))
		hits = append(hits, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	orderHits(hits)
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func (s *SQLiteVectorIndex) Stats(ctx context.Context) (domain.IndexStats, error) {
	var stats domain.IndexStats
	var last sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COUNT(DISTINCT document_hash), MAX(indexed_at) FROM chunks`).
		Scan(&stats.Chunks, &stats.Documents, &last)
	if err != nil {
		return domain.IndexStats{}, err
	}
	if last.Valid {
		if t, err := time.Parse(time.RFC3339Nano, last.String); err == nil {
			stats.LastIndexedAt = &t
		}
	}
	return stats, nil
}

func (s *SQLiteVectorIndex) Catalog(ctx context.Context) ([]domain.DocumentInfo, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT document_hash, document_name, COUNT(*)
		 FROM chunks
		 GROUP BY document_hash, document_name
		 ORDER BY document_name ASC, document_hash ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var catalog []domain.DocumentInfo
	for rows.Next() {
		var info domain.DocumentInfo
		if err := rows.Scan(&info.Hash, &info.Name, &info.Chunks); err != nil {
			return nil, err
		}
		catalog = append(catalog, info)
	}
	return catalog, rows.Err()
}

func (s *SQLiteVectorIndex) PurgeDocument(ctx context.Context, documentHash string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM chunks WHERE document_hash = ?`, documentHash)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *SQLiteVectorIndex) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteVectorIndex) Close() error {
	return s.db.Close()
}

// encodeVector packs a vector as little-endian float32 words.
func encodeVector(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(v))
	}
	return buf
}

func decodeVector(buf []byte) ([]float32, error) {
	if len(buf)%4 != 0 {
		return nil, fmt.Errorf("embedding blob length %d is not a multiple of 4", len(buf))
	}
	vec := make([]float32, len(buf)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:]))
	}
	return vec, nil
}
