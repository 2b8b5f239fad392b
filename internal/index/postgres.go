package index

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/pomoc-ai/pomoc/internal/log"
)

// queryTimeout bounds a single vector search so a slow database cannot
// block the answer path indefinitely.
const queryTimeout = 10 * time.Second

// Postgres is the pgvector-backed index backend. The chunks table is owned
// by this package (see db/migrations); ReplaceAll rewrites it in one
// transaction, so readers always see either the previous or the new index.
type Postgres struct {
	pool   *pgxpool.Pool
	logger log.Logger
}

// NewPostgres creates a Postgres index backend on an existing connection
// pool. The pool is shared, not owned; the caller closes it.
func NewPostgres(pool *pgxpool.Pool, logger log.Logger) *Postgres {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Postgres{pool: pool, logger: logger}
}

// ReplaceAll atomically replaces the stored index with the given entries.
// Entries are re-sequenced in input order, matching the flat backend's
// tie-break contract.
func (p *Postgres) ReplaceAll(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return fmt.Errorf("index: replace requires at least one entry")
	}

	dim := len(entries[0].Vector)
	for _, e := range entries {
		if len(e.Vector) != dim {
			return fmt.Errorf("index: entry %q has dimension %d, want %d", e.ChunkID, len(e.Vector), dim)
		}
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning index transaction: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			p.logger.Warn("rolling back index transaction", "error", rbErr)
		}
	}()

	if _, err := tx.Exec(ctx, `DELETE FROM chunks`); err != nil {
		return fmt.Errorf("clearing chunks table: %w", err)
	}

	for i, e := range entries {
		vec := pgvector.NewVector(e.Vector)
		_, err := tx.Exec(ctx, `
			INSERT INTO chunks (chunk_id, seq, document_id, category, source_label, content, embedding)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			e.ChunkID, i, e.DocumentID, e.Category, e.SourceLabel, e.Text, vec,
		)
		if err != nil {
			return fmt.Errorf("inserting chunk %q: %w", e.ChunkID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing index transaction: %w", err)
	}

	p.logger.Info("index replaced", "entries", len(entries), "dimension", dim)
	return nil
}

// Search returns up to topK entries ranked by ascending L2 distance to the
// query vector, computed by pgvector's <-> operator. When category is
// non-empty, candidates are restricted to entries whose category contains it
// (case-insensitive). Equal distances order by insertion sequence.
func (p *Postgres) Search(ctx context.Context, vector []float32, topK int, category string) ([]Result, error) {
	if topK <= 0 {
		return nil, nil
	}

	queryCtx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	vec := pgvector.NewVector(vector)

	var (
		rows pgx.Rows
		err  error
	)
	if category != "" {
		rows, err = p.pool.Query(queryCtx, `
			SELECT chunk_id, seq, document_id, category, source_label, content,
			       embedding <-> $1 AS distance
			FROM chunks
			WHERE category ILIKE '%' || $2 || '%'
			ORDER BY distance, seq
			LIMIT $3`,
			vec, category, topK,
		)
	} else {
		rows, err = p.pool.Query(queryCtx, `
			SELECT chunk_id, seq, document_id, category, source_label, content,
			       embedding <-> $1 AS distance
			FROM chunks
			ORDER BY distance, seq
			LIMIT $2`,
			vec, topK,
		)
	}
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("vector search timeout: %w", err)
		}
		return nil, fmt.Errorf("vector search: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		if err := rows.Scan(
			&r.Entry.ChunkID, &r.Entry.Seq, &r.Entry.DocumentID,
			&r.Entry.Category, &r.Entry.SourceLabel, &r.Entry.Text,
			&r.Distance,
		); err != nil {
			return nil, fmt.Errorf("scanning search row: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading search rows: %w", err)
	}
	return results, nil
}

// Count returns the number of indexed chunks.
func (p *Postgres) Count(ctx context.Context) (int, error) {
	var count int
	if err := p.pool.QueryRow(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting chunks: %w", err)
	}
	return count, nil
}
