// Package weaviate implements the vector store gateway on a Weaviate
// instance. Weaviate reports cosine certainty in [0, 1]; scores are
// rescaled to raw cosine similarity (2*certainty - 1) so all backends
// share the same [-1, 1] convention.
package weaviate

import (
	"context"
	"fmt"
	"time"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"

	"campaignlab/internal/rag"
	"campaignlab/internal/retrieval"
)

type Store struct {
	client  *weaviate.Client
	dim     int
	timeout time.Duration
}

func NewStore(client *weaviate.Client, dim int, timeout time.Duration) *Store {
	return &Store{client: client, dim: dim, timeout: timeout}
}

// EnsureSchema creates or completes the BrandChunk class.
func (s *Store) EnsureSchema(ctx context.Context) error {
	return EnsureSchema(ctx, &clientAdapter{client: s.client})
}

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

	// Replace-then-insert keeps re-ingestion idempotent per document.
	seen := make(map[string]bool)
	for _, e := range entries {
		if !seen[e.DocumentID] {
			if err := s.Delete(ctx, e.DocumentID); err != nil {
				return err
			}
			seen[e.DocumentID] = true
		}
	}

	objects := make([]*models.Object, len(entries))
	for i, e := range entries {
		objects[i] = &models.Object{
			Class: className,
			Properties: map[string]interface{}{
				"content":    e.Text,
				"documentId": e.DocumentID,
				"brandId":    e.BrandID,
				"ordinal":    e.Ordinal,
				"charStart":  e.Start,
				"charEnd":    e.End,
			},
			Vector: e.Vector,
		}
	}

	_, err := s.client.Batch().ObjectsBatcher().WithObjects(objects...).Do(ctx)
	if err != nil {
		return fmt.Errorf("batch insert: %w: %v", rag.ErrStoreUnavailable, err)
	}
	return nil
}

func (s *Store) Query(ctx context.Context, vector []float32, k int, brandID string) ([]retrieval.Result, error) {
	if len(vector) != s.dim {
		return nil, fmt.Errorf("%w: query vector has %d dimensions, store uses %d", rag.ErrSchemaMismatch, len(vector), s.dim)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	nearVector := s.client.GraphQL().NearVectorArgBuilder().WithVector(vector)

	fields := []graphql.Field{
		{Name: "content"},
		{Name: "documentId"},
		{Name: "ordinal"},
		{Name: "_additional", Fields: []graphql.Field{{Name: "certainty"}}},
	}

	get := s.client.GraphQL().Get().
		WithClassName(className).
		WithNearVector(nearVector).
		WithLimit(k).
		WithFields(fields...)

	if brandID != "" {
		get = get.WithWhere(filters.Where().
			WithPath([]string{"brandId"}).
			WithOperator(filters.Equal).
			WithValueString(brandID))
	}

	res, err := get.Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("similarity query: %w: %v", rag.ErrStoreUnavailable, err)
	}
	if len(res.Errors) > 0 {
		return nil, fmt.Errorf("similarity query: %w: graphql error: %v", rag.ErrStoreUnavailable, res.Errors[0].Message)
	}

	var results []retrieval.Result
	data, ok := res.Data["Get"].(map[string]interface{})
	if !ok {
		return nil, nil
	}
	chunks, ok := data[className].([]interface{})
	if !ok {
		return nil, nil
	}
	for _, c := range chunks {
		props, ok := c.(map[string]interface{})
		if !ok {
			continue
		}
		var r retrieval.Result
		if content, ok := props["content"].(string); ok {
			r.Text = content
		}
		if docID, ok := props["documentId"].(string); ok {
			r.DocumentID = docID
		}
		if ordinal, ok := props["ordinal"].(float64); ok {
			r.Ordinal = int(ordinal)
		}
		if additional, ok := props["_additional"].(map[string]interface{}); ok {
			if certainty, ok := additional["certainty"].(float64); ok {
				r.Score = float32(2*certainty - 1)
			}
		}
		results = append(results, r)
	}
	return results, nil
}

func (s *Store) Delete(ctx context.Context, documentID string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	_, err := s.client.Batch().ObjectsBatchDeleter().
		WithClassName(className).
		WithOutput("minimal").
		WithWhere(filters.Where().
			WithPath([]string{"documentId"}).
			WithOperator(filters.Equal).
			WithValueString(documentID)).
		Do(ctx)
	if err != nil {
		return fmt.Errorf("delete chunks: %w: %v", rag.ErrStoreUnavailable, err)
	}
	return nil
}

func (s *Store) CountChunks(ctx context.Context, brandID string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	agg := s.client.GraphQL().Aggregate().
		WithClassName(className).
		WithFields(graphql.Field{Name: "meta", Fields: []graphql.Field{{Name: "count"}}})

	if brandID != "" {
		agg = agg.WithWhere(filters.Where().
			WithPath([]string{"brandId"}).
			WithOperator(filters.Equal).
			WithValueString(brandID))
	}

	res, err := agg.Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("count chunks: %w: %v", rag.ErrStoreUnavailable, err)
	}
	if len(res.Errors) > 0 {
		return 0, fmt.Errorf("count chunks: %w: graphql error: %v", rag.ErrStoreUnavailable, res.Errors[0].Message)
	}

	data, ok := res.Data["Aggregate"].(map[string]interface{})
	if !ok {
		return 0, nil
	}
	rows, ok := data[className].([]interface{})
	if !ok || len(rows) == 0 {
		return 0, nil
	}
	row, ok := rows[0].(map[string]interface{})
	if !ok {
		return 0, nil
	}
	meta, ok := row["meta"].(map[string]interface{})
	if !ok {
		return 0, nil
	}
	count, _ := meta["count"].(float64)
	return int(count), nil
}
