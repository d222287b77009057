package campaign

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"campaignlab/internal/middleware"
	"campaignlab/internal/rag"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) CreateStrategy(w http.ResponseWriter, r *http.Request) {
	var brief Brief
	if err := json.NewDecoder(r.Body).Decode(&brief); err != nil {
		h.writeError(r.Context(), w, "VALIDATION_ERROR", err.Error(), http.StatusBadRequest)
		return
	}

	plan, err := h.service.CreateStrategy(r.Context(), brief)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidBrief):
			h.writeError(r.Context(), w, "VALIDATION_ERROR", err.Error(), http.StatusBadRequest)
		case errors.Is(err, ErrInvalidStrategy):
			h.writeError(r.Context(), w, "BAD_MODEL_OUTPUT", err.Error(), http.StatusBadGateway)
		case errors.Is(err, rag.ErrEmbeddingUnavailable), errors.Is(err, rag.ErrStoreUnavailable):
			h.writeError(r.Context(), w, "UPSTREAM_UNAVAILABLE", err.Error(), http.StatusServiceUnavailable)
		default:
			slog.Error("strategy creation failed", "error", err)
			h.writeError(r.Context(), w, "INTERNAL_ERROR", "Internal Server Error", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"data": plan}); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	plan, err := h.service.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			h.writeError(r.Context(), w, "NOT_FOUND", "Campaign plan not found", http.StatusNotFound)
			return
		}
		h.writeError(r.Context(), w, "INTERNAL_ERROR", err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"data": plan}); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	plans, err := h.service.List(r.Context(), r.URL.Query().Get("brand_id"))
	if err != nil {
		h.writeError(r.Context(), w, "INTERNAL_ERROR", err.Error(), http.StatusInternalServerError)
		return
	}
	if plans == nil {
		plans = []Plan{}
	}

	w.Header().Set("Content-Type", "application/json")
	resp := map[string]interface{}{
		"data": plans,
		"meta": map[string]int{"count": len(plans)},
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
