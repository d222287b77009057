package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"github.com/nsqio/go-nsq"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"

	"campaignlab/internal/adapter/gemini"
	"campaignlab/internal/adapter/memory"
	"campaignlab/internal/adapter/pgvector"
	wstore "campaignlab/internal/adapter/weaviate"
	"campaignlab/internal/config"
)

type Dependencies struct {
	DB        *sql.DB
	Store     VectorStore
	Embedder  *gemini.Embedder
	Generator *gemini.Generator
	Producer  *nsq.Producer
}

// Bootstrap opens every external connection the app needs: Postgres (with
// migrations), the configured vector store backend, the Gemini clients and
// the NSQ producer. Postgres is always required since document and plan
// records live there regardless of which backend holds the vectors.
func Bootstrap(ctx context.Context, cfg *config.Config) (*Dependencies, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPass, cfg.DBName)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}

	retryDelay := time.Duration(cfg.BootstrapRetryDelaySeconds) * time.Second
	for i := 0; i < cfg.BootstrapRetryAttempts; i++ {
		if err := db.Ping(); err == nil {
			break
		}
		slog.Warn("failed to ping db, retrying...", "attempt", i+1)
		time.Sleep(retryDelay)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return nil, fmt.Errorf("migration driver error: %w", err)
	}
	m, err := migrate.NewWithDatabaseInstance(cfg.MigrationPath, "postgres", driver)
	if err != nil {
		return nil, fmt.Errorf("migration instance error: %w", err)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return nil, fmt.Errorf("migration up error: %w", err)
	}

	store, err := buildStore(ctx, cfg, db, retryDelay)
	if err != nil {
		return nil, err
	}

	embedder, err := gemini.NewEmbedder(ctx, cfg.GeminiAPIKey, cfg.EmbedModel, cfg.EmbedDim, cfg.EmbedTimeout)
	if err != nil {
		return nil, fmt.Errorf("gemini embedder error: %w", err)
	}
	generator, err := gemini.NewGenerator(ctx, cfg.GeminiAPIKey, cfg.StrategyModel, cfg.ModelTimeout)
	if err != nil {
		return nil, fmt.Errorf("gemini generator error: %w", err)
	}

	producer, err := nsq.NewProducer(cfg.NSQDHost, nsq.NewConfig())
	if err != nil {
		return nil, fmt.Errorf("nsq producer error: %w", err)
	}
	createTopics(cfg.NSQDHTTP)

	return &Dependencies{
		DB:        db,
		Store:     store,
		Embedder:  embedder,
		Generator: generator,
		Producer:  producer,
	}, nil
}

func buildStore(ctx context.Context, cfg *config.Config, db *sql.DB, retryDelay time.Duration) (VectorStore, error) {
	switch cfg.StoreBackend {
	case config.StorePgvector:
		return pgvector.NewStore(db, cfg.EmbedDim, cfg.StoreTimeout), nil

	case config.StoreWeaviate:
		wClient, err := weaviate.NewClient(weaviate.Config{Host: cfg.WeaviateHost, Scheme: cfg.WeaviateScheme})
		if err != nil {
			return nil, fmt.Errorf("weaviate client error: %w", err)
		}
		store := wstore.NewStore(wClient, cfg.EmbedDim, cfg.StoreTimeout)
		if err := ensureSchemaWithRetry(ctx, store, cfg.BootstrapRetryAttempts, retryDelay); err != nil {
			return nil, fmt.Errorf("weaviate schema error: %w", err)
		}
		return store, nil

	case config.StoreMemory:
		return memory.NewStore(cfg.EmbedDim), nil

	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

// NSQ creates topics lazily on first publish, but consumers querying
// lookupd will 404 until then, so the topics are pre-created explicitly.
func createTopics(nsqdHTTP string) {
	create := func(topic string) {
		url := fmt.Sprintf("http://%s/topic/create?topic=%s", nsqdHTTP, topic)
		resp, err := http.Post(url, "application/json", nil) // #nosec G107 -- URL is built from internal NSQ config, not user input
		if err != nil {
			slog.Warn("failed to create NSQ topic", "topic", topic, "error", err)
			return
		}
		if closeErr := resp.Body.Close(); closeErr != nil {
			slog.Warn("failed to close NSQ topic creation response body", "error", closeErr)
		}
	}

	go func() {
		time.Sleep(2 * time.Second)
		create(config.TopicDocumentIngested)
		create(config.TopicDocumentDeleted)
	}()
}

func ensureSchemaWithRetry(ctx context.Context, store *wstore.Store, attempts int, delay time.Duration) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = store.EnsureSchema(ctx); err == nil {
			return nil
		}
		if i < attempts-1 {
			time.Sleep(delay)
		}
	}
	return err
}
