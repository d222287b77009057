// Package app wires features, adapters and middleware into an HTTP
// application. Construction is split in two: Bootstrap opens external
// connections, New assembles pure wiring so tests can inject fakes.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"campaignlab/features/campaign"
	"campaignlab/features/document"
	"campaignlab/features/search"
	"campaignlab/features/stats"
	"campaignlab/internal/config"
	"campaignlab/internal/middleware"
	"campaignlab/internal/retrieval"
	"campaignlab/internal/text"
)

// VectorStore is the full store surface the application needs: the
// retrieval pipeline's operations plus corpus counting for stats.
type VectorStore interface {
	retrieval.VectorStore
	CountChunks(ctx context.Context, brandID string) (int, error)
}

type EventPublisher interface {
	Publish(topic string, body []byte) error
}

type App struct {
	Handler         http.Handler
	DocumentService *document.Service
	CampaignService *campaign.Service

	port int
}

func New(
	cfg *config.Config,
	docRepo document.Repository,
	planRepo campaign.Repository,
	store VectorStore,
	embedder retrieval.Embedder,
	generator campaign.Generator,
	pub EventPublisher,
) (*App, error) {
	queryLogger, err := retrieval.NewFileQueryLogger(cfg.QueryLogPath)
	if err != nil {
		slog.Warn("failed to create query logger, falling back to stdout", "error", err)
		queryLogger = retrieval.NewQueryLogger(os.Stdout)
	}

	chunking := text.Options{TargetSize: cfg.ChunkSize, Overlap: cfg.ChunkOverlap}
	retrievalService := retrieval.NewService(embedder, store, chunking, queryLogger)

	// Feature: Document
	documentService := document.NewService(docRepo, retrievalService, pub)
	documentHandler := document.NewHandler(documentService)

	// Feature: Campaign
	campaignService := campaign.NewService(retrievalService, generator, planRepo, cfg.StrategyTopK, cfg.MinScore)
	campaignHandler := campaign.NewHandler(campaignService)

	// Feature: Search
	searchHandler := search.NewHandler(retrievalService, cfg.TopKDefault)

	// Feature: Stats
	statsHandler := stats.NewHandler(docRepo, store, cfg.EmbedModel, cfg.EmbedDim)

	// Middleware: CORS
	enableCORS := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}
			next(w, r)
		}
	}

	// Routes
	mux := http.NewServeMux()

	mux.Handle("POST /documents", middleware.CorrelationID(enableCORS(documentHandler.Upload)))
	mux.Handle("GET /documents", middleware.CorrelationID(enableCORS(documentHandler.List)))
	mux.Handle("GET /documents/{id}", middleware.CorrelationID(enableCORS(documentHandler.Get)))
	mux.Handle("DELETE /documents/{id}", middleware.CorrelationID(enableCORS(documentHandler.Delete)))

	mux.Handle("POST /search", middleware.CorrelationID(enableCORS(searchHandler.Search)))

	mux.Handle("POST /campaigns/strategy", middleware.CorrelationID(enableCORS(campaignHandler.CreateStrategy)))
	mux.Handle("GET /campaigns", middleware.CorrelationID(enableCORS(campaignHandler.List)))
	mux.Handle("GET /campaigns/{id}", middleware.CorrelationID(enableCORS(campaignHandler.Get)))

	mux.Handle("GET /stats", middleware.CorrelationID(enableCORS(statsHandler.GetStats)))

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	return &App{
		Handler:         mux,
		DocumentService: documentService,
		CampaignService: campaignService,
		port:            cfg.ServerPort,
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", a.port),
		Handler: a.Handler,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutting down server...")
		if err := srv.Shutdown(context.Background()); err != nil {
			slog.Error("server shutdown failed", "error", err)
		}
	}()

	slog.Info("server starting", "port", a.port)
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}
