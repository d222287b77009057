// Package gemini adapts the Google generative-ai client to the embedding
// and strategy-model boundaries. Both are swappable: the rest of the
// system only sees the interfaces defined by their consumers.
package gemini

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"campaignlab/internal/rag"
)

// Embedder maps text to fixed-length dense vectors. The dimension is fixed
// for the whole corpus; a vector of any other length is rejected rather
// than truncated or padded.
type Embedder struct {
	client  *genai.Client
	model   string
	dim     int
	timeout time.Duration
}

func NewEmbedder(ctx context.Context, apiKey, model string, dim int, timeout time.Duration, opts ...option.ClientOption) (*Embedder, error) {
	all := append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)
	client, err := genai.NewClient(ctx, all...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", rag.ErrEmbeddingUnavailable, err)
	}
	return &Embedder{client: client, model: model, dim: dim, timeout: timeout}, nil
}

func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	slog.DebugContext(ctx, "embedding content", "model", e.model, "length", len(text))
	em := e.client.EmbeddingModel(e.model)
	res, err := em.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", rag.ErrEmbeddingUnavailable, err)
	}
	if res.Embedding == nil || len(res.Embedding.Values) == 0 {
		return nil, fmt.Errorf("%w: empty embedding received", rag.ErrEmbeddingUnavailable)
	}
	return e.checkDim(res.Embedding.Values)
}

// EmbedBatch embeds texts in one request. Results come back in input
// order, equivalent to calling Embed per element.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	em := e.client.EmbeddingModel(e.model)
	b := em.NewBatch()
	for _, t := range texts {
		b.AddContent(genai.Text(t))
	}
	res, err := em.BatchEmbedContents(ctx, b)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", rag.ErrEmbeddingUnavailable, err)
	}
	if len(res.Embeddings) != len(texts) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d texts", rag.ErrEmbeddingUnavailable, len(res.Embeddings), len(texts))
	}

	out := make([][]float32, len(texts))
	for i, emb := range res.Embeddings {
		if emb == nil || len(emb.Values) == 0 {
			return nil, fmt.Errorf("%w: empty embedding at index %d", rag.ErrEmbeddingUnavailable, i)
		}
		v, err := e.checkDim(emb.Values)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (e *Embedder) checkDim(v []float32) ([]float32, error) {
	if e.dim > 0 && len(v) != e.dim {
		return nil, fmt.Errorf("%w: encoder returned %d dimensions, corpus uses %d", rag.ErrSchemaMismatch, len(v), e.dim)
	}
	return v, nil
}

func (e *Embedder) Close() error {
	return e.client.Close()
}
