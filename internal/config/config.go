package config

import (
	"errors"
	"fmt"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

var ErrMissingRequired = errors.New("missing required configuration")

type Config struct {
	GeminiAPIKey    string `envconfig:"GEMINI_API_KEY"`
	EmbeddingModel  string `envconfig:"EMBEDDING_MODEL" default:"gemini-embedding-001"`
	GenerationModel string `envconfig:"GENERATION_MODEL" default:"gemini-1.5-flash"`
	VisionModel     string `envconfig:"VISION_MODEL" default:"gemini-1.5-flash"`

	ChunkSize    int `envconfig:"CHUNK_SIZE" default:"1000"`
	ChunkOverlap int `envconfig:"CHUNK_OVERLAP" default:"200"`
	SearchTopK   int `envconfig:"SEARCH_TOP_K" default:"4"`
	SummaryTopK  int `envconfig:"SUMMARY_TOP_K" default:"5"`

	CorpusDir  string `envconfig:"CORPUS_DIR" default:"pdfs"`
	SummaryDir string `envconfig:"SUMMARY_DIR" default:"data/meeting_summaries"`
	DataRoot   string `envconfig:"DATA_ROOT" default:"data/index"`

	// Forces the in-memory index even when DataRoot is writable. Used on
	// hosts without durable local storage.
	Ephemeral bool `envconfig:"EPHEMERAL" default:"false"`

	QueryLogPath string `envconfig:"QUERY_LOG_PATH" default:"data/logs/query.log"`

	// Maximum characters of a single summary body included in a monthly
	// report prompt. Keeps the prompt inside the model's token budget.
	SummaryTruncateLimit int `envconfig:"SUMMARY_TRUNCATE_LIMIT" default:"3000"`

	// Maximum characters sent to the embedding model in one call. Longer
	// inputs are truncated and retried once before the item is skipped.
	MaxEmbedChars int `envconfig:"MAX_EMBED_CHARS" default:"8000"`
}

func Load() (*Config, error) {
	// Env vars may be set in the shell, so a missing .env is not an error.
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

func (c *Config) Validate() error {
	if c.GeminiAPIKey == "" {
		return fmt.Errorf("%w: GEMINI_API_KEY", ErrMissingRequired)
	}
	if c.CorpusDir == "" {
		return fmt.Errorf("%w: CORPUS_DIR", ErrMissingRequired)
	}
	if c.SummaryDir == "" {
		return fmt.Errorf("%w: SUMMARY_DIR", ErrMissingRequired)
	}
	if c.ChunkSize <= 0 {
		return fmt.Errorf("CHUNK_SIZE must be positive, got %d", c.ChunkSize)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("CHUNK_OVERLAP must be in [0, CHUNK_SIZE), got %d", c.ChunkOverlap)
	}
	return nil
}
