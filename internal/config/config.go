// Package config provides application configuration with multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (STUDIORAG_* plus GEMINI_API_KEY / DATABASE_URL)
//  2. Config file (~/.studiorag/config.yaml or ./config.yaml)
//  3. Default values
//
// Categories:
//   - AI: model selection per pipeline call, embedder model
//   - Storage: PostgreSQL connection (see storage.go)
//   - Pipeline: chunking thresholds, retry bounds, pacing, parallelism
//   - Query: entity policy, retrieval limits, minimum entity occurrences
//
// Sensitive values (API key, database password) are never logged.
// Validation is fail-fast: Load returns an error before any stage runs.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

var (
	// ErrMissingAPIKey indicates GEMINI_API_KEY is not set.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrInvalidModelName indicates a model name is empty.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidChunkSizes indicates the chunk size band is inconsistent.
	ErrInvalidChunkSizes = errors.New("invalid chunk sizes")

	// ErrInvalidRetry indicates retry bounds are out of range.
	ErrInvalidRetry = errors.New("invalid retry configuration")

	// ErrInvalidLimit indicates a retrieval limit is out of range.
	ErrInvalidLimit = errors.New("invalid retrieval limit")

	// ErrInvalidEntityPolicy indicates an unknown session entity policy.
	ErrInvalidEntityPolicy = errors.New("invalid entity policy")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is empty.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresDBName indicates the PostgreSQL database name is empty.
	ErrInvalidPostgresDBName = errors.New("invalid PostgreSQL database name")

	// ErrInvalidPostgresSSLMode indicates an unsupported sslmode value.
	ErrInvalidPostgresSSLMode = errors.New("invalid PostgreSQL SSL mode")
)

const (
	// DefaultEmbedderModel is the default Gemini embedder model.
	// gemini-embedding-001 outputs 3072 dimensions by default but supports
	// truncation via OutputDimensionality; the manuals schema stores 768
	// (see gemini.VectorDimension).
	DefaultEmbedderModel = "gemini-embedding-001"

	// DefaultConvertModel handles per-page PDF to markdown conversion.
	DefaultConvertModel = "gemini-2.5-flash"

	// DefaultEnrichModel handles chunk contextualization and document
	// classification. A lighter model: these calls run once per chunk.
	DefaultEnrichModel = "gemini-2.5-flash-lite"

	// DefaultAnswerModel composes the final answer at query time.
	DefaultAnswerModel = "gemini-2.5-flash"
)

// Session entity policies (see query.Session).
const (
	EntityPolicyAccumulate = "accumulate"
	EntityPolicyReplace    = "replace"
)

// Config stores application configuration.
type Config struct {
	// AI model configuration
	GeminiAPIKey  string `mapstructure:"gemini_api_key"` // SENSITIVE: never logged
	ConvertModel  string `mapstructure:"convert_model"`
	EnrichModel   string `mapstructure:"enrich_model"`
	AnswerModel   string `mapstructure:"answer_model"`
	EmbedderModel string `mapstructure:"embedder_model"`

	// Storage configuration (see storage.go)
	PostgresHost     string `mapstructure:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password"` // SENSITIVE: never logged
	PostgresDBName   string `mapstructure:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode"`

	// Pipeline configuration
	MaxAttempts      int           `mapstructure:"max_attempts"`       // retry bound per external call
	RetryBaseDelay   time.Duration `mapstructure:"retry_base_delay"`   // first backoff delay
	PagePacing       time.Duration `mapstructure:"page_pacing"`        // delay between page conversions
	DocumentWorkers  int           `mapstructure:"document_workers"`   // parallel documents per stage
	CombineUnderSize int           `mapstructure:"combine_under_size"` // merge chunks below this many chars
	MaxChunkSize     int           `mapstructure:"max_chunk_size"`     // hard cap per chunk in chars
	ChunkOverlap     int           `mapstructure:"chunk_overlap"`      // chars carried between adjacent chunks

	// Query configuration
	EntityPolicy    string `mapstructure:"entity_policy"`    // "accumulate" or "replace"
	MinOccurrences  int    `mapstructure:"min_occurrences"`  // entity frequency floor for extraction
	UnfilteredLimit int    `mapstructure:"unfiltered_limit"` // top-K without entity filter
	FilteredLimit   int    `mapstructure:"filtered_limit"`   // top-K with entity filter (wider net)
}

// Load loads configuration.
// Priority: environment variables > configuration file > defaults.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".studiorag")
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)
	v.AddConfigPath(".")

	setDefaults(v)
	bindEnvVariables(v)

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is not an error; defaults apply.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using defaults",
			"search_paths", []string{configDir, "."})
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// DATABASE_URL overrides individual postgres_* settings.
	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// AI defaults
	v.SetDefault("convert_model", DefaultConvertModel)
	v.SetDefault("enrich_model", DefaultEnrichModel)
	v.SetDefault("answer_model", DefaultAnswerModel)
	v.SetDefault("embedder_model", DefaultEmbedderModel)

	// PostgreSQL defaults (matching docker-compose.yml)
	v.SetDefault("postgres_host", "localhost")
	v.SetDefault("postgres_port", 5432)
	v.SetDefault("postgres_user", "studiorag")
	v.SetDefault("postgres_password", "studiorag_dev_password")
	v.SetDefault("postgres_db_name", "studiorag")
	v.SetDefault("postgres_ssl_mode", "disable")

	// Pipeline defaults. Chunk thresholds follow the 300-500 token band
	// recommended for technical manuals with ~10% overlap.
	v.SetDefault("max_attempts", 3)
	v.SetDefault("retry_base_delay", 2*time.Second)
	v.SetDefault("page_pacing", 500*time.Millisecond)
	v.SetDefault("document_workers", 4)
	v.SetDefault("combine_under_size", 1200)
	v.SetDefault("max_chunk_size", 2000)
	v.SetDefault("chunk_overlap", 60)

	// Query defaults. The filtered limit casts a wider net because the
	// entity filter has already narrowed the candidate set.
	v.SetDefault("entity_policy", EntityPolicyAccumulate)
	v.SetDefault("min_occurrences", 5)
	v.SetDefault("unfiltered_limit", 5)
	v.SetDefault("filtered_limit", 10)
}

func bindEnvVariables(v *viper.Viper) {
	v.SetEnvPrefix("STUDIORAG")
	v.AutomaticEnv()

	// GEMINI_API_KEY is the conventional unprefixed name.
	_ = v.BindEnv("gemini_api_key", "GEMINI_API_KEY", "STUDIORAG_GEMINI_API_KEY")
}
