package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

var ErrMissingRequired = errors.New("missing required configuration")

// Store backends. The vector store is swappable behind the retrieval
// interface; pgvector is the default because the corpus lives in Postgres.
const (
	StorePgvector = "pgvector"
	StoreWeaviate = "weaviate"
	StoreMemory   = "memory"
)

// NSQ topics for document lifecycle events. Consumers are external; the
// backend only publishes.
const (
	TopicDocumentIngested = "document.ingested"
	TopicDocumentDeleted  = "document.deleted"
)

type Config struct {
	DBHost string `envconfig:"DB_HOST" default:"postgres"`
	DBPort int    `envconfig:"DB_PORT" default:"5432"`
	DBUser string `envconfig:"DB_USER" default:"campaignlab"`
	DBPass string `envconfig:"DB_PASS" default:"password"`
	DBName string `envconfig:"DB_NAME" default:"campaignlab"`

	StoreBackend   string `envconfig:"STORE_BACKEND" default:"pgvector"`
	WeaviateHost   string `envconfig:"WEAVIATE_HOST" default:"localhost:8080"`
	WeaviateScheme string `envconfig:"WEAVIATE_SCHEME" default:"http"`

	NSQDHost string `envconfig:"NSQD_HOST" default:"nsqd:4150"`
	NSQDHTTP string `envconfig:"NSQD_HTTP" default:"nsqd:4151"`

	GeminiAPIKey  string `envconfig:"GEMINI_API_KEY"`
	EmbedModel    string `envconfig:"EMBED_MODEL" default:"text-embedding-004"`
	EmbedDim      int    `envconfig:"EMBED_DIM" default:"384"`
	StrategyModel string `envconfig:"STRATEGY_MODEL" default:"gemini-2.0-flash"`

	ChunkSize    int     `envconfig:"CHUNK_SIZE" default:"500"`
	ChunkOverlap int     `envconfig:"CHUNK_OVERLAP" default:"50"`
	TopKDefault  int     `envconfig:"TOP_K_DEFAULT" default:"5"`
	StrategyTopK int     `envconfig:"STRATEGY_TOP_K" default:"3"`
	MinScore     float32 `envconfig:"MIN_SCORE" default:"0.5"`

	EmbedTimeout time.Duration `envconfig:"EMBED_TIMEOUT" default:"60s"`
	StoreTimeout time.Duration `envconfig:"STORE_TIMEOUT" default:"15s"`
	ModelTimeout time.Duration `envconfig:"MODEL_TIMEOUT" default:"120s"`

	ServerPort    int    `envconfig:"SERVER_PORT" default:"8081"`
	MigrationPath string `envconfig:"MIGRATION_PATH" default:"file://migrations"`
	QueryLogPath  string `envconfig:"QUERY_LOG_PATH" default:"data/logs/query.log"`

	BootstrapRetryAttempts     int `envconfig:"BOOTSTRAP_RETRY_ATTEMPTS" default:"10"`
	BootstrapRetryDelaySeconds int `envconfig:"BOOTSTRAP_RETRY_DELAY_SECONDS" default:"2"`
}

func Load() (*Config, error) {
	// Env vars may be set in the shell; a missing .env is not an error.
	_ = godotenv.Load(".env")

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate runs once at startup; components receive the validated struct
// and never re-read the environment.
func (c *Config) Validate() error {
	if c.DBHost == "" {
		return fmt.Errorf("%w: DB_HOST", ErrMissingRequired)
	}
	if c.DBUser == "" {
		return fmt.Errorf("%w: DB_USER", ErrMissingRequired)
	}
	if c.DBName == "" {
		return fmt.Errorf("%w: DB_NAME", ErrMissingRequired)
	}
	if c.EmbedDim <= 0 {
		return fmt.Errorf("invalid EMBED_DIM %d", c.EmbedDim)
	}
	if c.ChunkSize <= 0 {
		return fmt.Errorf("invalid CHUNK_SIZE %d", c.ChunkSize)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("invalid CHUNK_OVERLAP %d for CHUNK_SIZE %d", c.ChunkOverlap, c.ChunkSize)
	}
	if c.TopKDefault <= 0 {
		return fmt.Errorf("invalid TOP_K_DEFAULT %d", c.TopKDefault)
	}
	if c.StrategyTopK <= 0 {
		return fmt.Errorf("invalid STRATEGY_TOP_K %d", c.StrategyTopK)
	}
	switch c.StoreBackend {
	case StorePgvector, StoreWeaviate, StoreMemory:
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}
	return nil
}
