package document

import (
	"context"
	"database/sql"
	"errors"
)

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) Save(ctx context.Context, doc *Document) error {
	query := `INSERT INTO documents (id, brand_id, filename, status) VALUES ($1, $2, $3, $4) RETURNING created_at, updated_at`
	return r.db.QueryRowContext(ctx, query, doc.ID, doc.BrandID, doc.Filename, doc.Status).Scan(&doc.CreatedAt, &doc.UpdatedAt)
}

func (r *PostgresRepo) UpdateStatus(ctx context.Context, id, status, errMsg string, chunkCount int) error {
	query := `UPDATE documents SET status = $1, error = $2, chunk_count = $3, updated_at = NOW() WHERE id = $4`
	_, err := r.db.ExecContext(ctx, query, status, errMsg, chunkCount, id)
	return err
}

func (r *PostgresRepo) Get(ctx context.Context, id string) (*Document, error) {
	doc := &Document{}
	query := `SELECT id, brand_id, filename, status, error, chunk_count, created_at, updated_at FROM documents WHERE id = $1`
	err := r.db.QueryRowContext(ctx, query, id).Scan(&doc.ID, &doc.BrandID, &doc.Filename, &doc.Status, &doc.Error, &doc.ChunkCount, &doc.CreatedAt, &doc.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func (r *PostgresRepo) List(ctx context.Context, brandID string) ([]Document, error) {
	query := `SELECT id, brand_id, filename, status, error, chunk_count, created_at, updated_at FROM documents WHERE ($1 = '' OR brand_id = $1) ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query, brandID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var d Document
		if err := rows.Scan(&d.ID, &d.BrandID, &d.Filename, &d.Status, &d.Error, &d.ChunkCount, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

func (r *PostgresRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepo) Count(ctx context.Context, brandID string) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM documents WHERE ($1 = '' OR brand_id = $1)`
	err := r.db.QueryRowContext(ctx, query, brandID).Scan(&count)
	return count, err
}
