// Package pgvector implements the vector store gateway on Postgres with
// the pgvector extension. Scores are raw cosine similarity in [-1, 1],
// computed as 1 - (embedding <=> query).
package pgvector

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/lib/pq"
	pgv "github.com/pgvector/pgvector-go"

	"campaignlab/internal/rag"
	"campaignlab/internal/retrieval"
)

type Store struct {
	db      *sql.DB
	dim     int
	timeout time.Duration
}

// NewStore wraps an open database handle. dim is the corpus vector
// dimensionality; vectors of any other length are rejected before they
// reach the database.
func NewStore(db *sql.DB, dim int, timeout time.Duration) *Store {
	return &Store{db: db, dim: dim, timeout: timeout}
}

// Upsert stores entries transactionally, replacing all prior chunks of
// each document id present in the batch. Re-ingesting a document therefore
// never duplicates chunks, and a failed ingest leaves the previous version
// untouched.
func (s *Store) Upsert(ctx context.Context, entries []retrieval.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	for _, e := range entries {
		if len(e.Vector) != s.dim {
			return fmt.Errorf("%w: entry for document %s has %d dimensions, store uses %d", rag.ErrSchemaMismatch, e.DocumentID, len(e.Vector), s.dim)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return s.wrap("begin upsert", err)
	}
	defer tx.Rollback() //nolint:errcheck

	seen := make(map[string]bool)
	for _, e := range entries {
		if !seen[e.DocumentID] {
			if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE document_id = $1`, e.DocumentID); err != nil {
				return s.wrap("replace chunks", err)
			}
			seen[e.DocumentID] = true
		}
	}

	const insert = `
		INSERT INTO chunks (document_id, brand_id, ordinal, content, char_start, char_end, embedding)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	for _, e := range entries {
		if _, err := tx.ExecContext(ctx, insert, e.DocumentID, e.BrandID, e.Ordinal, e.Text, e.Start, e.End, pgv.NewVector(e.Vector)); err != nil {
			return s.wrap("insert chunk", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return s.wrap("commit upsert", err)
	}
	return nil
}

// Query runs a cosine nearest-neighbor search, optionally scoped to one
// brand. Ties in score break by most recent ingestion, then ordinal, so
// repeated queries against an unchanged corpus return identical results.
func (s *Store) Query(ctx context.Context, vector []float32, k int, brandID string) ([]retrieval.Result, error) {
	if len(vector) != s.dim {
		return nil, fmt.Errorf("%w: query vector has %d dimensions, store uses %d", rag.ErrSchemaMismatch, len(vector), s.dim)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	const query = `
		SELECT content, document_id, ordinal, 1 - (embedding <=> $1) AS score
		FROM chunks
		WHERE ($2 = '' OR brand_id = $2)
		ORDER BY embedding <=> $1, ingested_at DESC, ordinal
		LIMIT $3`

	rows, err := s.db.QueryContext(ctx, query, pgv.NewVector(vector), brandID, k)
	if err != nil {
		return nil, s.wrap("similarity query", err)
	}
	defer rows.Close()

	var results []retrieval.Result
	for rows.Next() {
		var r retrieval.Result
		if err := rows.Scan(&r.Text, &r.DocumentID, &r.Ordinal, &r.Score); err != nil {
			return nil, s.wrap("scan result", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, s.wrap("iterate results", err)
	}
	return results, nil
}

// Delete removes every chunk belonging to the document.
func (s *Store) Delete(ctx context.Context, documentID string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	_, err := s.db.ExecContext(ctx, `DELETE FROM chunks WHERE document_id = $1`, documentID)
	return s.wrap("delete chunks", err)
}

// CountChunks reports the corpus size, optionally scoped to one brand.
func (s *Store) CountChunks(ctx context.Context, brandID string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks WHERE ($1 = '' OR brand_id = $1)`, brandID).Scan(&n)
	if err != nil {
		return 0, s.wrap("count chunks", err)
	}
	return n, nil
}

// wrap classifies driver errors into the shared taxonomy: connection-class
// failures become ErrStoreUnavailable (retryable), server-side vector
// dimension complaints become ErrSchemaMismatch (fatal).
func (s *Store) wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		if strings.HasPrefix(string(pqErr.Code), "08") {
			return fmt.Errorf("%s: %w: %v", op, rag.ErrStoreUnavailable, err)
		}
		if strings.Contains(pqErr.Message, "dimensions") {
			return fmt.Errorf("%s: %w: %v", op, rag.ErrSchemaMismatch, err)
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	var netErr net.Error
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, context.DeadlineExceeded) || errors.As(err, &netErr) {
		return fmt.Errorf("%s: %w: %v", op, rag.ErrStoreUnavailable, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
