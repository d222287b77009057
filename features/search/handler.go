// Package search exposes raw corpus retrieval over HTTP, mainly for
// inspecting what the strategy composer would see for a given query.
package search

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"campaignlab/internal/middleware"
	"campaignlab/internal/rag"
	"campaignlab/internal/retrieval"
)

type Retriever interface {
	Retrieve(ctx context.Context, query string, k int, brandID string) ([]retrieval.Result, error)
}

type Handler struct {
	retriever Retriever
	defaultK  int
}

func NewHandler(retriever Retriever, defaultK int) *Handler {
	return &Handler{retriever: retriever, defaultK: defaultK}
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Query    string   `json:"query"`
		TopK     int      `json:"top_k"`
		BrandID  string   `json:"brand_id"`
		MinScore *float32 `json:"min_score"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(r.Context(), w, "VALIDATION_ERROR", err.Error(), http.StatusBadRequest)
		return
	}
	if req.Query == "" {
		h.writeError(r.Context(), w, "VALIDATION_ERROR", "Query is required", http.StatusBadRequest)
		return
	}
	if req.TopK == 0 {
		req.TopK = h.defaultK
	}

	results, err := h.retriever.Retrieve(r.Context(), req.Query, req.TopK, req.BrandID)
	if err != nil {
		switch {
		case errors.Is(err, rag.ErrInvalidArgument):
			h.writeError(r.Context(), w, "VALIDATION_ERROR", err.Error(), http.StatusBadRequest)
		case errors.Is(err, rag.ErrEmbeddingUnavailable), errors.Is(err, rag.ErrStoreUnavailable):
			h.writeError(r.Context(), w, "UPSTREAM_UNAVAILABLE", err.Error(), http.StatusServiceUnavailable)
		default:
			slog.Error("search failed", "error", err)
			h.writeError(r.Context(), w, "INTERNAL_ERROR", "Internal Server Error", http.StatusInternalServerError)
		}
		return
	}
	if req.MinScore != nil {
		filtered := results[:0]
		for _, res := range results {
			if res.Score >= *req.MinScore {
				filtered = append(filtered, res)
			}
		}
		results = filtered
	}
	if results == nil {
		results = []retrieval.Result{}
	}

	w.Header().Set("Content-Type", "application/json")
	resp := map[string]interface{}{
		"data": results,
		"meta": map[string]int{"count": len(results)},
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode response", "error", err)
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
