// Package document manages the knowledge corpus: uploaded brand files,
// their ingestion into the vector store, and their lifecycle records.
package document

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"campaignlab/internal/config"
	"campaignlab/internal/middleware"
	"campaignlab/internal/retrieval"
)

const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

type Document struct {
	ID         string    `json:"id"`
	BrandID    string    `json:"brand_id,omitempty"`
	Filename   string    `json:"filename"`
	Status     string    `json:"status"` // pending, completed, failed
	Error      string    `json:"error,omitempty"`
	ChunkCount int       `json:"chunk_count"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type Repository interface {
	Save(ctx context.Context, doc *Document) error
	UpdateStatus(ctx context.Context, id, status, errMsg string, chunkCount int) error
	Get(ctx context.Context, id string) (*Document, error)
	List(ctx context.Context, brandID string) ([]Document, error)
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context, brandID string) (int, error)
}

// Ingestor is the slice of the retrieval pipeline this feature needs:
// chunk-embed-store on upload, chunk removal on delete.
type Ingestor interface {
	Ingest(ctx context.Context, doc retrieval.Document) (int, error)
	Remove(ctx context.Context, documentID string) error
}

type EventPublisher interface {
	Publish(topic string, body []byte) error
}

var ErrNotFound = errors.New("document not found")

type Service struct {
	repo     Repository
	ingestor Ingestor
	pub      EventPublisher
}

func NewService(repo Repository, ingestor Ingestor, pub EventPublisher) *Service {
	return &Service{repo: repo, ingestor: ingestor, pub: pub}
}

// Upload records the document, runs ingestion synchronously and returns the
// final record. The caller learns the real outcome in one round trip: status
// is completed with the chunk count on success, failed with the cause
// otherwise. A failed ingestion leaves no chunks behind, so retrying the
// upload is always safe.
func (s *Service) Upload(ctx context.Context, brandID, filename, text string) (*Document, error) {
	doc := &Document{
		ID:       uuid.New().String(),
		BrandID:  brandID,
		Filename: filename,
		Status:   StatusPending,
	}
	if err := s.repo.Save(ctx, doc); err != nil {
		return nil, fmt.Errorf("save document: %w", err)
	}

	n, ingestErr := s.ingestor.Ingest(ctx, retrieval.Document{
		ID:       doc.ID,
		BrandID:  brandID,
		Filename: filename,
		Text:     text,
	})
	if ingestErr != nil {
		doc.Status = StatusFailed
		doc.Error = ingestErr.Error()
		if err := s.repo.UpdateStatus(ctx, doc.ID, doc.Status, doc.Error, 0); err != nil {
			slog.ErrorContext(ctx, "failed to record ingestion failure", "error", err, "document_id", doc.ID)
		}
		return doc, nil
	}

	doc.Status = StatusCompleted
	doc.ChunkCount = n
	if err := s.repo.UpdateStatus(ctx, doc.ID, doc.Status, "", n); err != nil {
		return nil, fmt.Errorf("finalize document: %w", err)
	}

	s.publish(ctx, config.TopicDocumentIngested, map[string]interface{}{
		"id":       doc.ID,
		"brand_id": brandID,
		"filename": filename,
		"chunks":   n,
	})
	return doc, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Document, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, brandID string) ([]Document, error) {
	return s.repo.List(ctx, brandID)
}

// Delete removes the document's chunks from the vector store first, then
// the record. Ordering matters: a record without chunks is a harmless
// stale row, chunks without a record would keep influencing retrieval.
func (s *Service) Delete(ctx context.Context, id string) error {
	doc, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.ingestor.Remove(ctx, id); err != nil {
		return fmt.Errorf("remove chunks: %w", err)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.publish(ctx, config.TopicDocumentDeleted, map[string]interface{}{
		"id":       doc.ID,
		"brand_id": doc.BrandID,
		"filename": doc.Filename,
	})
	return nil
}

// publish is fire and forget. Lifecycle events are a convenience for
// downstream consumers, never a dependency of the request path.
func (s *Service) publish(ctx context.Context, topic string, fields map[string]interface{}) {
	if s.pub == nil {
		return
	}
	fields["correlation_id"] = middleware.GetCorrelationID(ctx)
	payload, _ := json.Marshal(fields)
	if err := s.pub.Publish(topic, payload); err != nil {
		slog.WarnContext(ctx, "failed to publish event", "topic", topic, "error", err)
	}
}
