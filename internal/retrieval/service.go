// Package retrieval orchestrates the ingestion and query pipelines:
// chunker -> embedder -> vector store on ingest, embedder -> vector store
// on retrieve. It owns the interfaces its collaborators implement.
package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"campaignlab/internal/middleware"
	"campaignlab/internal/rag"
	"campaignlab/internal/text"
)

// Document is the unit of ingestion: plain text already extracted from an
// uploaded file. Byte-to-text extraction happens upstream; this layer never
// sees file bytes.
type Document struct {
	ID       string
	BrandID  string
	Filename string
	Text     string
}

// Entry is one persisted corpus record: a chunk, its embedding and the
// metadata needed for scoping and deterministic ordering.
type Entry struct {
	DocumentID string
	BrandID    string
	Ordinal    int
	Text       string
	Start      int
	End        int
	Vector     []float32
}

// Result is one retrieved passage. Score is raw cosine similarity in
// [-1, 1]; results arrive ordered by descending score.
type Result struct {
	Text       string  `json:"text"`
	Score      float32 `json:"score"`
	DocumentID string  `json:"document_id"`
	Ordinal    int     `json:"ordinal"`
}

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	// EmbedBatch is observably equivalent to calling Embed per element,
	// in order. It exists purely as a throughput optimization.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

type VectorStore interface {
	// Upsert replaces all prior chunks of each document id present in
	// entries, so re-ingesting a document never duplicates its chunks.
	Upsert(ctx context.Context, entries []Entry) error
	// Query returns at most k results scoped to brandID (empty means the
	// whole corpus), ordered by descending cosine similarity with ties
	// broken by most recent ingestion.
	Query(ctx context.Context, vector []float32, k int, brandID string) ([]Result, error)
	Delete(ctx context.Context, documentID string) error
}

type Service struct {
	embedder Embedder
	store    VectorStore
	chunking text.Options
	logger   *QueryLogger
}

func NewService(e Embedder, s VectorStore, chunking text.Options, l *QueryLogger) *Service {
	return &Service{embedder: e, store: s, chunking: chunking, logger: l}
}

// Ingest chunks and embeds doc, then stores the whole set in one upsert.
// Ingestion is atomic per document: if any chunk fails to embed, nothing
// reaches the store and any previously stored version stays intact.
func (s *Service) Ingest(ctx context.Context, doc Document) (int, error) {
	chunks, err := text.Split(doc.Text, s.chunking)
	if err != nil {
		return 0, err
	}
	if len(chunks) == 0 {
		// Nothing to index. Drop stale chunks from a previous version.
		if err := s.store.Delete(ctx, doc.ID); err != nil {
			return 0, err
		}
		return 0, nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embed document %s: %w", doc.ID, err)
	}
	if len(vectors) != len(chunks) {
		return 0, fmt.Errorf("%w: got %d vectors for %d chunks", rag.ErrEmbeddingUnavailable, len(vectors), len(chunks))
	}

	entries := make([]Entry, len(chunks))
	for i, c := range chunks {
		entries[i] = Entry{
			DocumentID: doc.ID,
			BrandID:    doc.BrandID,
			Ordinal:    i,
			Text:       c.Text,
			Start:      c.Start,
			End:        c.End,
			Vector:     vectors[i],
		}
	}
	if err := s.store.Upsert(ctx, entries); err != nil {
		return 0, fmt.Errorf("store document %s: %w", doc.ID, err)
	}

	slog.InfoContext(ctx, "document ingested", "document_id", doc.ID, "brand_id", doc.BrandID, "chunks", len(chunks))
	return len(chunks), nil
}

// Retrieve embeds query and returns the top-k most similar passages,
// optionally scoped to one brand's documents. An empty corpus or scope
// yields an empty slice and a nil error; failures on the embedding or
// store boundary surface as errors so callers can tell "no matches" from
// "retrieval failed".
func (s *Service) Retrieve(ctx context.Context, query string, k int, brandID string) ([]Result, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: k=%d", rag.ErrInvalidArgument, k)
	}

	start := time.Now()
	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	results, err := s.store.Query(ctx, vec, k, brandID)
	if err != nil {
		return nil, fmt.Errorf("query store: %w", err)
	}

	if s.logger != nil {
		s.logger.Log(QueryLogEntry{
			Query:         query,
			BrandID:       brandID,
			NumResults:    len(results),
			Duration:      time.Since(start),
			CorrelationID: middleware.GetCorrelationID(ctx),
		})
	}
	return results, nil
}

// Remove deletes every stored chunk of the given document.
func (s *Service) Remove(ctx context.Context, documentID string) error {
	return s.store.Delete(ctx, documentID)
}
