package config

import (
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port  string `envconfig:"PORT" default:"8080"`
	Debug bool   `envconfig:"DEBUG" default:"false"`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`

	// Shared secret used to verify identity tokens minted by the wiki
	// extension.
	SharedSecret string `envconfig:"SHARED_SECRET" required:"true"`

	// Vector backend: "memory" (per-tenant in-process index flushed to disk)
	// or "postgres" (pgvector).
	VectorBackend string `envconfig:"VECTOR_BACKEND" default:"postgres"`
	DataRoot      string `envconfig:"DATA_ROOT" default:"/var/lib/mwassist"`

	OpenAIAPIKey        string `envconfig:"OPENAI_API_KEY"`
	ChatModel           string `envconfig:"CHAT_MODEL" default:"gpt-4o-mini"`
	EmbeddingModel      string `envconfig:"EMBEDDING_MODEL" default:"text-embedding-3-small"`
	EmbeddingDimensions int    `envconfig:"EMBEDDING_DIMENSIONS" default:"1536"`

	WikiAPIBaseURL string `envconfig:"WIKI_API_BASE_URL"`

	DailyTokenLimit int           `envconfig:"DAILY_TOKEN_LIMIT" default:"100000"`
	MaxToolLoops    int           `envconfig:"MAX_TOOL_LOOPS" default:"10"`
	FlushInterval   time.Duration `envconfig:"FLUSH_INTERVAL" default:"60s"`

	// Optional S3-compatible mirror for in-process index snapshots.
	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretKey string `envconfig:"S3_SECRET_ACCESS_KEY"`
	S3Bucket    string `envconfig:"S3_BUCKET" default:"mwassist-snapshots"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("MWASSIST", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	if cfg.VectorBackend != "memory" && cfg.VectorBackend != "postgres" {
		return nil, fmt.Errorf("invalid MWASSIST_VECTOR_BACKEND %q (expected \"memory\" or \"postgres\")", cfg.VectorBackend)
	}
	if cfg.EmbeddingDimensions <= 0 {
		return nil, fmt.Errorf("MWASSIST_EMBEDDING_DIMENSIONS must be positive")
	}
	if cfg.DailyTokenLimit <= 0 {
		return nil, fmt.Errorf("MWASSIST_DAILY_TOKEN_LIMIT must be positive")
	}

	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

func (c *Config) HasS3() bool {
	return c.S3Endpoint != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

func (c *Config) HasOpenAI() bool {
	return c.OpenAIAPIKey != ""
}

func (c *Config) HasWiki() bool {
	return c.WikiAPIBaseURL != ""
}
