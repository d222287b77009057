// Package stats reports corpus size and pipeline configuration for the
// admin dashboard.
package stats

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"campaignlab/internal/middleware"
)

type DocumentRepo interface {
	Count(ctx context.Context, brandID string) (int, error)
}

type VectorStore interface {
	CountChunks(ctx context.Context, brandID string) (int, error)
}

type Handler struct {
	docRepo    DocumentRepo
	store      VectorStore
	embedModel string
	embedDim   int
}

func NewHandler(docRepo DocumentRepo, store VectorStore, embedModel string, embedDim int) *Handler {
	return &Handler{docRepo: docRepo, store: store, embedModel: embedModel, embedDim: embedDim}
}

type StatsResponse struct {
	Documents  int    `json:"documents"`
	Chunks     int    `json:"chunks"`
	EmbedModel string `json:"embed_model"`
	EmbedDim   int    `json:"embed_dim"`
}

func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	brandID := r.URL.Query().Get("brand_id")

	docs, err := h.docRepo.Count(ctx, brandID)
	if err != nil {
		slog.ErrorContext(ctx, "failed to count documents", "error", err)
		h.writeError(ctx, w, "INTERNAL_ERROR", "failed to count documents", http.StatusInternalServerError)
		return
	}

	chunks, err := h.store.CountChunks(ctx, brandID)
	if err != nil {
		slog.ErrorContext(ctx, "failed to count chunks", "error", err)
		h.writeError(ctx, w, "INTERNAL_ERROR", "failed to count chunks", http.StatusInternalServerError)
		return
	}

	resp := StatsResponse{
		Documents:  docs,
		Chunks:     chunks,
		EmbedModel: h.embedModel,
		EmbedDim:   h.embedDim,
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"data": resp}); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, code, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := map[string]interface{}{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
		"correlationId": middleware.GetCorrelationID(ctx),
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}
