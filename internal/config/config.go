// Package config provides application configuration with multi-source
// priority.
//
// Sources (highest to lowest):
//  1. Environment variables (POMOC_* overrides, secrets)
//  2. Config file (~/.pomoc/config.yaml)
//  3. Defaults
//
// Sensitive fields are masked in MarshalJSON; validation uses sentinel
// errors so callers can match with errors.Is().
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
	ErrConfigNil                 = errors.New("configuration is nil")
	ErrInvalidProvider           = errors.New("invalid provider")
	ErrInvalidModelName          = errors.New("invalid model name")
	ErrInvalidTemperature        = errors.New("invalid temperature")
	ErrInvalidMaxTokens          = errors.New("invalid max tokens")
	ErrInvalidTopP               = errors.New("invalid top-p")
	ErrInvalidEmbedderModel      = errors.New("invalid embedder model")
	ErrInvalidEmbedderDimension  = errors.New("invalid embedder dimension")
	ErrInvalidChunking           = errors.New("invalid chunking parameters")
	ErrInvalidTopK               = errors.New("invalid top-k")
	ErrInvalidThreshold          = errors.New("invalid confidence threshold")
	ErrInvalidAnswerBounds       = errors.New("invalid answer length bounds")
	ErrInvalidIndexBackend       = errors.New("invalid index backend")
	ErrInvalidSplitRatio         = errors.New("invalid A/B split ratio")
	ErrInvalidPostgresHost       = errors.New("invalid PostgreSQL host")
	ErrInvalidPostgresPort       = errors.New("invalid PostgreSQL port")
	ErrInvalidPostgresDBName     = errors.New("invalid PostgreSQL database name")
	ErrInvalidServerAddr         = errors.New("invalid server address")
)

// Index backend identifiers used in Config.IndexBackend.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
)

// AI provider identifiers used in Config.Provider.
const (
	ProviderGoogleAI = "googleai"
	ProviderOpenAI   = "openai"
)

// DatadogConfig configures OTLP trace export to a Datadog agent.
type DatadogConfig struct {
	Enabled     bool   `mapstructure:"enabled" json:"enabled"`
	AgentHost   string `mapstructure:"agent_host" json:"agent_host"`
	Environment string `mapstructure:"environment" json:"environment"`
	ServiceName string `mapstructure:"service_name" json:"service_name"`
	APIKey      string `mapstructure:"api_key" json:"api_key"` // SENSITIVE: masked in MarshalJSON
}

// Config stores application configuration.
// SECURITY: sensitive fields are masked in MarshalJSON; update it when
// adding passwords or keys.
type Config struct {
	// Generation
	Provider    string  `mapstructure:"provider" json:"provider"`
	ModelName   string  `mapstructure:"model_name" json:"model_name"`
	Temperature float64 `mapstructure:"temperature" json:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens" json:"max_tokens"`
	TopP        float64 `mapstructure:"top_p" json:"top_p"`

	// Embedding
	EmbedderModel     string `mapstructure:"embedder_model" json:"embedder_model"`
	EmbedderDimension int    `mapstructure:"embedder_dimension" json:"embedder_dimension"`

	// Chunking and retrieval
	ChunkSize    int `mapstructure:"chunk_size" json:"chunk_size"`
	ChunkOverlap int `mapstructure:"chunk_overlap" json:"chunk_overlap"`
	TopK         int `mapstructure:"top_k" json:"top_k"`

	// Guardrails
	ConfidenceThreshold float64 `mapstructure:"confidence_threshold" json:"confidence_threshold"`
	MinAnswerLength     int     `mapstructure:"min_answer_length" json:"min_answer_length"`
	MaxAnswerLength     int     `mapstructure:"max_answer_length" json:"max_answer_length"`

	// Index storage: "memory" persists to IndexPath, "postgres" delegates
	// to the database configured below.
	IndexBackend string `mapstructure:"index_backend" json:"index_backend"`
	IndexPath    string `mapstructure:"index_path" json:"index_path"`
	DataDir      string `mapstructure:"data_dir" json:"data_dir"`

	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"postgres_password"` // SENSITIVE: masked in MarshalJSON
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`

	// A/B testing between the rule-based and model-backed generators.
	ABTestEnabled bool    `mapstructure:"ab_test_enabled" json:"ab_test_enabled"`
	ABSplitRatio  float64 `mapstructure:"ab_split_ratio" json:"ab_split_ratio"`

	// HTTP gateway
	ServerAddr string `mapstructure:"server_addr" json:"server_addr"`

	// Observability
	Datadog DatadogConfig `mapstructure:"datadog" json:"datadog"`
}

// Load loads configuration with priority environment > file > defaults.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".pomoc")
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir)
	viper.AddConfigPath(".")

	setDefaults(configDir)
	bindEnvVariables()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using defaults",
			"search_paths", []string{configDir, "."})
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// DATABASE_URL overrides the individual postgres_* settings.
	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}
	return &cfg, nil
}

func setDefaults(configDir string) {
	viper.SetDefault("provider", ProviderGoogleAI)
	viper.SetDefault("model_name", "googleai/gemini-2.0-flash")
	viper.SetDefault("temperature", 0.7)
	viper.SetDefault("max_tokens", 200)
	viper.SetDefault("top_p", 0.9)

	viper.SetDefault("embedder_model", "text-embedding-004")
	viper.SetDefault("embedder_dimension", 384)

	viper.SetDefault("chunk_size", 500)
	viper.SetDefault("chunk_overlap", 50)
	viper.SetDefault("top_k", 5)

	viper.SetDefault("confidence_threshold", 0.7)
	viper.SetDefault("min_answer_length", 20)
	viper.SetDefault("max_answer_length", 500)

	viper.SetDefault("index_backend", BackendMemory)
	viper.SetDefault("index_path", filepath.Join(configDir, "index.gob"))
	viper.SetDefault("data_dir", "./data")

	viper.SetDefault("postgres_host", "localhost")
	viper.SetDefault("postgres_port", 5432)
	viper.SetDefault("postgres_user", "pomoc")
	viper.SetDefault("postgres_password", "pomoc_dev_password")
	viper.SetDefault("postgres_db_name", "pomoc")
	viper.SetDefault("postgres_ssl_mode", "disable")

	viper.SetDefault("ab_test_enabled", false)
	viper.SetDefault("ab_split_ratio", 0.5)

	viper.SetDefault("server_addr", ":8080")

	viper.SetDefault("datadog.enabled", false)
	viper.SetDefault("datadog.agent_host", "localhost:4318")
	viper.SetDefault("datadog.environment", "dev")
	viper.SetDefault("datadog.service_name", "pomoc")
}

// bindEnvVariables binds environment overrides explicitly. Model API keys
// (GEMINI_API_KEY, OPENAI_API_KEY) are read directly by the Genkit plugins,
// not via Viper.
func bindEnvVariables() {
	mustBind := func(key, envVar string) {
		if err := viper.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("provider", "POMOC_PROVIDER")
	mustBind("model_name", "POMOC_MODEL_NAME")
	mustBind("index_backend", "POMOC_INDEX_BACKEND")
	mustBind("data_dir", "POMOC_DATA_DIR")
	mustBind("server_addr", "POMOC_SERVER_ADDR")
	mustBind("ab_test_enabled", "POMOC_AB_TEST_ENABLED")
	mustBind("postgres_host", "POMOC_POSTGRES_HOST")
	mustBind("postgres_password", "POMOC_POSTGRES_PASSWORD")
	mustBind("datadog.api_key", "DD_API_KEY")
}

// Validate checks every field range and fails fast with a sentinel error.
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}
	switch c.Provider {
	case ProviderGoogleAI, ProviderOpenAI:
	default:
		return fmt.Errorf("%w: %q (expected %s or %s)", ErrInvalidProvider, c.Provider, ProviderGoogleAI, ProviderOpenAI)
	}
	if c.ModelName == "" {
		return fmt.Errorf("%w: empty", ErrInvalidModelName)
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("%w: %v (expected 0-2)", ErrInvalidTemperature, c.Temperature)
	}
	if c.MaxTokens <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidMaxTokens, c.MaxTokens)
	}
	if c.TopP <= 0 || c.TopP > 1 {
		return fmt.Errorf("%w: %v (expected 0-1]", ErrInvalidTopP, c.TopP)
	}
	if c.EmbedderModel == "" {
		return fmt.Errorf("%w: empty", ErrInvalidEmbedderModel)
	}
	if c.EmbedderDimension <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidEmbedderDimension, c.EmbedderDimension)
	}
	if c.ChunkSize <= 0 || c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("%w: size=%d overlap=%d (need size > overlap >= 0)", ErrInvalidChunking, c.ChunkSize, c.ChunkOverlap)
	}
	if c.TopK <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidTopK, c.TopK)
	}
	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1 {
		return fmt.Errorf("%w: %v (expected 0-1)", ErrInvalidThreshold, c.ConfidenceThreshold)
	}
	if c.MinAnswerLength <= 0 || c.MaxAnswerLength <= c.MinAnswerLength {
		return fmt.Errorf("%w: min=%d max=%d", ErrInvalidAnswerBounds, c.MinAnswerLength, c.MaxAnswerLength)
	}
	switch c.IndexBackend {
	case BackendMemory, BackendPostgres:
	default:
		return fmt.Errorf("%w: %q (expected %s or %s)", ErrInvalidIndexBackend, c.IndexBackend, BackendMemory, BackendPostgres)
	}
	if c.ABSplitRatio <= 0 || c.ABSplitRatio > 1 {
		return fmt.Errorf("%w: %v (expected 0-1]", ErrInvalidSplitRatio, c.ABSplitRatio)
	}
	if c.ServerAddr == "" {
		return fmt.Errorf("%w: empty", ErrInvalidServerAddr)
	}
	if c.IndexBackend == BackendPostgres {
		if c.PostgresHost == "" {
			return fmt.Errorf("%w: empty host", ErrInvalidPostgresHost)
		}
		if c.PostgresPort < 1 || c.PostgresPort > 65535 {
			return fmt.Errorf("%w: %d", ErrInvalidPostgresPort, c.PostgresPort)
		}
		if c.PostgresDBName == "" {
			return fmt.Errorf("%w: empty", ErrInvalidPostgresDBName)
		}
	}
	return nil
}

// maskedValue replaces sensitive values in marshaled output.
const maskedValue = "████████"

// MarshalJSON masks sensitive fields so the config can be logged safely.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	masked := alias(c)
	if masked.PostgresPassword != "" {
		masked.PostgresPassword = maskedValue
	}
	if masked.Datadog.APIKey != "" {
		masked.Datadog.APIKey = maskedValue
	}
	return json.Marshal(masked)
}
