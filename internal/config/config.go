// Package config provides application configuration management with multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (~/.campusmind/config.yaml)
//  3. Default values (sensible defaults for quick start)
//
// Main configuration categories:
//   - AI: completion model, embedder model, answer top-K
//   - Ingestion: chunk target size and overlap, Document AI processor
//   - Storage: PostgreSQL connection (see storage.go), blob store location
//
// Security: sensitive data (passwords) is never logged; see MarshalJSON.
// Validation: range checks with sentinel errors for errors.Is() checking.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

var (
	// ErrInvalidModelName indicates the completion model name is invalid.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidEmbedderModel indicates the embedder model is invalid.
	ErrInvalidEmbedderModel = errors.New("invalid embedder model")

	// ErrInvalidTopK indicates the answer top-K value is out of range.
	ErrInvalidTopK = errors.New("invalid answer top-K")

	// ErrInvalidChunking indicates the chunk size/overlap combination is invalid.
	ErrInvalidChunking = errors.New("invalid chunking parameters")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is invalid.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresDBName indicates the PostgreSQL database name is invalid.
	ErrInvalidPostgresDBName = errors.New("invalid PostgreSQL database name")

	// ErrInvalidPostgresSSLMode indicates the PostgreSQL SSL mode is invalid.
	ErrInvalidPostgresSSLMode = errors.New("invalid PostgreSQL SSL mode")

	// ErrInvalidRateLimit indicates the rate limit settings are invalid.
	ErrInvalidRateLimit = errors.New("invalid rate limit")
)

const (
	// DefaultEmbedderModel is the default Gemini embedder model.
	// gemini-embedding-001 supports truncation to 768 dimensions via
	// OutputDimensionality; the pgvector schema uses 768 (knowledge.VectorDim).
	DefaultEmbedderModel = "gemini-embedding-001"

	// DefaultModelName is the default completion model for answer synthesis.
	DefaultModelName = "gemini-2.5-flash"

	// DefaultAnswerTopK is the default number of chunks retrieved per question.
	DefaultAnswerTopK = 4

	// MaxAnswerTopK bounds the retrieval fan-out per question.
	MaxAnswerTopK = 20
)

// DocAIConfig holds Document AI processor settings for structured PDF extraction.
// When ProcessorID is empty, PDF ingestion skips OCR and uses text-layer
// extraction only.
type DocAIConfig struct {
	Project     string `mapstructure:"project" json:"project"`
	Location    string `mapstructure:"location" json:"location"`
	ProcessorID string `mapstructure:"processor_id" json:"processor_id"`
}

// Configured reports whether a processor is fully specified.
func (d DocAIConfig) Configured() bool {
	return d.Project != "" && d.Location != "" && d.ProcessorID != ""
}

// TracingConfig holds OTLP trace export settings. An empty endpoint
// disables trace export.
type TracingConfig struct {
	Endpoint    string `mapstructure:"endpoint" json:"endpoint"`
	Environment string `mapstructure:"environment" json:"environment"`
	ServiceName string `mapstructure:"service_name" json:"service_name"`
}

// Enabled reports whether a collector endpoint is configured.
func (t TracingConfig) Enabled() bool {
	return t.Endpoint != ""
}

// Config stores application configuration.
// SECURITY: sensitive fields are explicitly masked in MarshalJSON().
type Config struct {
	// AI model configuration
	ModelName     string `mapstructure:"model_name" json:"model_name"`
	EmbedderModel string `mapstructure:"embedder_model" json:"embedder_model"`
	AnswerTopK    int    `mapstructure:"answer_top_k" json:"answer_top_k"`

	// Chunking configuration
	ChunkTargetSize int `mapstructure:"chunk_target_size" json:"chunk_target_size"`
	ChunkOverlap    int `mapstructure:"chunk_overlap" json:"chunk_overlap"`

	// Document AI (structured PDF extraction)
	DocAI DocAIConfig `mapstructure:"docai" json:"docai"`

	// Blob store: GCS bucket name, or a local directory when empty (dev mode).
	GCSBucket string `mapstructure:"gcs_bucket" json:"gcs_bucket"`
	BlobDir   string `mapstructure:"blob_dir" json:"blob_dir"`

	// HTTP server
	ServeAddr      string  `mapstructure:"serve_addr" json:"serve_addr"`
	RateLimitRPS   float64 `mapstructure:"rate_limit_rps" json:"rate_limit_rps"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst" json:"rate_limit_burst"`
	TrustProxy     bool    `mapstructure:"trust_proxy" json:"trust_proxy"`

	// Trace export (OTLP HTTP collector)
	Tracing TracingConfig `mapstructure:"tracing" json:"tracing"`

	// Storage configuration (see storage.go for documentation)
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"postgres_password"` // SENSITIVE: masked in MarshalJSON
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`
}

// Load loads configuration.
// Priority: Environment variables > Configuration file > Default values
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".campusmind")
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir)
	viper.AddConfigPath(".") // Also support current directory

	setDefaults()
	bindEnvVariables()

	if err := viper.ReadInConfig(); err != nil {
		// Configuration file not found is not an error, use default values
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using default values",
			"search_paths", []string{configDir, "."},
			"config_name", "config.yaml")
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// Parse DATABASE_URL if set (highest priority for PostgreSQL config)
	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}

	// Validate immediately (fail-fast)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults() {
	// AI defaults
	viper.SetDefault("model_name", DefaultModelName)
	viper.SetDefault("embedder_model", DefaultEmbedderModel)
	viper.SetDefault("answer_top_k", DefaultAnswerTopK)

	// Chunking defaults
	viper.SetDefault("chunk_target_size", 2000)
	viper.SetDefault("chunk_overlap", 200)

	// Blob store defaults (local directory for development)
	viper.SetDefault("blob_dir", "data/blobs")

	// HTTP server defaults
	viper.SetDefault("serve_addr", "127.0.0.1:8080")
	viper.SetDefault("rate_limit_rps", 2.0)
	viper.SetDefault("rate_limit_burst", 5)
	viper.SetDefault("trust_proxy", false)

	// Trace export defaults: disabled until an endpoint is configured
	viper.SetDefault("tracing.endpoint", "")
	viper.SetDefault("tracing.environment", "dev")
	viper.SetDefault("tracing.service_name", "campusmind")

	// PostgreSQL defaults for local development
	viper.SetDefault("postgres_host", "localhost")
	viper.SetDefault("postgres_port", 5432)
	viper.SetDefault("postgres_user", "campusmind")
	viper.SetDefault("postgres_password", "campusmind_dev_password")
	viper.SetDefault("postgres_db_name", "campusmind")
	viper.SetDefault("postgres_ssl_mode", "disable")
}

// bindEnvVariables binds environment variables explicitly.
// GEMINI_API_KEY is read directly by Genkit, not via Viper.
func bindEnvVariables() {
	// Helper to panic on unexpected bind errors (hardcoded strings can't fail).
	// If this panics, it's a BUG in our code, not a runtime error.
	mustBind := func(key, envVar string) {
		if err := viper.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("model_name", "CAMPUSMIND_MODEL_NAME")
	mustBind("embedder_model", "CAMPUSMIND_EMBEDDER_MODEL")
	mustBind("answer_top_k", "CAMPUSMIND_ANSWER_TOP_K")
	mustBind("chunk_target_size", "CAMPUSMIND_CHUNK_TARGET_SIZE")
	mustBind("chunk_overlap", "CAMPUSMIND_CHUNK_OVERLAP")
	mustBind("gcs_bucket", "CAMPUSMIND_GCS_BUCKET")
	mustBind("blob_dir", "CAMPUSMIND_BLOB_DIR")
	mustBind("serve_addr", "CAMPUSMIND_SERVE_ADDR")
	mustBind("rate_limit_rps", "CAMPUSMIND_RATE_LIMIT_RPS")
	mustBind("rate_limit_burst", "CAMPUSMIND_RATE_LIMIT_BURST")
	mustBind("trust_proxy", "CAMPUSMIND_TRUST_PROXY")
	mustBind("tracing.endpoint", "CAMPUSMIND_TRACING_ENDPOINT")
	mustBind("tracing.environment", "CAMPUSMIND_TRACING_ENVIRONMENT")
	mustBind("tracing.service_name", "CAMPUSMIND_TRACING_SERVICE_NAME")
	mustBind("docai.project", "CAMPUSMIND_DOCAI_PROJECT")
	mustBind("docai.location", "CAMPUSMIND_DOCAI_LOCATION")
	mustBind("docai.processor_id", "CAMPUSMIND_DOCAI_PROCESSOR_ID")
	mustBind("postgres_host", "CAMPUSMIND_POSTGRES_HOST")
	mustBind("postgres_port", "CAMPUSMIND_POSTGRES_PORT")
	mustBind("postgres_user", "CAMPUSMIND_POSTGRES_USER")
	mustBind("postgres_password", "CAMPUSMIND_POSTGRES_PASSWORD")
	mustBind("postgres_db_name", "CAMPUSMIND_POSTGRES_DB_NAME")
	mustBind("postgres_ssl_mode", "CAMPUSMIND_POSTGRES_SSL_MODE")
}

// maskedValue is the placeholder for masked sensitive data.
// Full-width blocks avoid accidental substring matches against real secrets.
const maskedValue = "████████"

// maskSecret masks a secret string for safe logging.
// Secrets of 8 chars or fewer are fully masked to prevent substring attacks;
// longer secrets keep the first and last 2 characters for debug utility.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return maskedValue
	}
	return s[:2] + "<" + maskedValue + ">" + s[len(s)-2:]
}

// MarshalJSON implements json.Marshaler with explicit sensitive field masking.
// When adding new sensitive fields, update this method.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	a := alias(c)
	a.PostgresPassword = maskSecret(a.PostgresPassword)
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// String implements Stringer to prevent accidental printing of secrets.
func (c Config) String() string {
	data, err := c.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("Config{error: %v}", err)
	}
	return string(data)
}
