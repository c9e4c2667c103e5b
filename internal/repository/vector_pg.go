package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/burrowlabs/burrow/internal/domain"
)

type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PGVectorIndex stores chunks in Postgres with pgvector embeddings.
// Similarity ordering happens server-side through the <=> operator.
type PGVectorIndex struct {
	db dbtx
}

func NewPGVectorIndex(pool *pgxpool.Pool) *PGVectorIndex {
	return &PGVectorIndex{db: pool}
}

func NewPGVectorIndexWithTx(tx pgx.Tx) *PGVectorIndex {
	return &PGVectorIndex{db: tx}
}

// Upsert replaces chunks that share an id and inserts the rest.
func (r *PGVectorIndex) Upsert(ctx context.Context, entries []domain.IndexEntry) error {
	now := time.Now().UTC()
	for _, e := range entries {
		_, err := r.db.Exec(ctx,
			`INSERT INTO chunks (chunk_id, document_hash, document_name, ordinal, start_offset, end_offset, content, embedding, indexed_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			 ON CONFLICT (chunk_id) DO UPDATE SET
				document_hash = EXCLUDED.document_hash,
				document_name = EXCLUDED.document_name,
				ordinal       = EXCLUDED.ordinal,
				start_offset  = EXCLUDED.start_offset,
				end_offset    = EXCLUDED.end_offset,
				content       = EXCLUDED.content,
				embedding     = EXCLUDED.embedding,
				indexed_at    = EXCLUDED.indexed_at`,
			e.ChunkID, e.Meta.DocumentHash, e.Meta.DocumentName,
			e.Meta.Ordinal, e.Meta.Start, e.Meta.End,
			e.Text, pgvector.NewVector(e.Vector), now,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *PGVectorIndex) Search(ctx context.Context, vector []float32, k int) ([]domain.SearchHit, error) {
	if k <= 0 {
		return nil, nil
	}

	rows, err := r.db.Query(ctx,
		`SELECT chunk_id, document_hash, document_name, ordinal, start_offset, end_offset, content,
			1.0 / (1.0 + (embedding <=> $1)) AS score
		 FROM chunks
		 ORDER BY score DESC, chunk_id ASC
		 LIMIT $2`,
		pgvector.NewVector(vector), k,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hits []domain.SearchHit
	for rows.Next() {
		var hit domain.SearchHit
		if err := rows.Scan(&hit.ChunkID, &hit.Meta.DocumentHash, &hit.Meta.DocumentName,
			&hit.Meta.Ordinal, &hit.Meta.Start, &hit.Meta.End, &hit.Text, &hit.Score); err != nil {
			return nil, err
		}
		hits = append(hits, hit)
	}
	return hits, rows.Err()
}

func (r *PGVectorIndex) Stats(ctx context.Context) (domain.IndexStats, error) {
	var stats domain.IndexStats
	var last *time.Time
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*), COUNT(DISTINCT document_hash), MAX(indexed_at) FROM chunks`).
		Scan(&stats.Chunks, &stats.Documents, &last)
	if err != nil {
		return domain.IndexStats{}, err
	}
	stats.LastIndexedAt = last
	return stats, nil
}

func (r *PGVectorIndex) Catalog(ctx context.Context) ([]domain.DocumentInfo, error) {
	rows, err := r.db.Query(ctx,
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

func (r *PGVectorIndex) PurgeDocument(ctx context.Context, documentHash string) (int64, error) {
	cmdTag, err := r.db.Exec(ctx, `DELETE FROM chunks WHERE document_hash = $1`, documentHash)
	if err != nil {
		return 0, err
	}
	return cmdTag.RowsAffected(), nil
}

func (r *PGVectorIndex) Ping(ctx context.Context) error {
	var one int
	return r.db.QueryRow(ctx, `SELECT 1`).Scan(&one)
}
