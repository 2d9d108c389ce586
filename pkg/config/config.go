// Package config loads application configuration from file and environment.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	// Log configuration
	Log LogConfig `mapstructure:"log"`

	// Server configuration
	Server ServerConfig `mapstructure:"server"`

	// Graph database configuration
	Database DatabaseConfig `mapstructure:"database"`

	// Vector store configuration
	VectorStore VectorStoreConfig `mapstructure:"vector_store"`

	// Embedding configuration
	Embedding EmbeddingConfig `mapstructure:"embedding"`

	// LLM configuration
	LLM LLMConfig `mapstructure:"llm"`

	// Extraction configuration
	Extraction ExtractionConfig `mapstructure:"extraction"`

	// Graph configuration
	Graph GraphConfig `mapstructure:"graph"`

	// Workflow configuration
	Workflow WorkflowConfig `mapstructure:"workflow"`

	// CircuitBreaker configuration
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`

	// Telemetry configuration
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // text or json
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // gin mode: debug, release, test
}

// DatabaseConfig holds graph database configuration
type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"` // neo4j or empty to disable export
	URI      string `mapstructure:"uri"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
}

// VectorStoreConfig holds vector store configuration
type VectorStoreConfig struct {
	// Path is the badger directory. Empty means in-memory.
	Path string `mapstructure:"path"`
}

// EmbeddingConfig holds embedding configuration
type EmbeddingConfig struct {
	Provider string `mapstructure:"provider"` // embedeverything, openai
	Model    string `mapstructure:"model"`
	APIKey   string `mapstructure:"api_key"`
	BaseURL  string `mapstructure:"base_url"`
}

// LLMConfig holds language model configuration
type LLMConfig struct {
	Provider    string  `mapstructure:"provider"` // rustbert, openai, none
	Model       string  `mapstructure:"model"`
	APIKey      string  `mapstructure:"api_key"`
	BaseURL     string  `mapstructure:"base_url"`
	Temperature float32 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`
}

// ExtractionConfig holds entity extraction configuration
type ExtractionConfig struct {
	// GlinerModel is a HuggingFace model id or a local directory containing
	// model.onnx and tokenizer.json. Empty disables the NER recognizer.
	GlinerModel string  `mapstructure:"gliner_model"`
	MinScore    float64 `mapstructure:"min_score"`
}

// GraphConfig holds knowledge graph configuration
type GraphConfig struct {
	SnapshotPath string `mapstructure:"snapshot_path"`
	// CooccurrenceWindow extends entity co-occurrence to chunks at most this
	// many positions apart. Zero means same-chunk only.
	CooccurrenceWindow int `mapstructure:"cooccurrence_window"`
}

// WorkflowConfig holds workflow coordinator configuration
type WorkflowConfig struct {
	MaxWorkers     int           `mapstructure:"max_workers"`
	DefaultTimeout time.Duration `mapstructure:"default_timeout"`
}

// CircuitBreakerConfig holds configuration for circuit breaking
type CircuitBreakerConfig struct {
	Enabled          bool    `mapstructure:"enabled"`
	MaxRequests      uint32  `mapstructure:"max_requests"`
	Interval         int     `mapstructure:"interval"` // in seconds
	Timeout          int     `mapstructure:"timeout"`  // in seconds
	ReadyToTripRatio float64 `mapstructure:"ready_to_trip_ratio"`
}

// TelemetryConfig holds telemetry configuration
type TelemetryConfig struct {
	ParquetPath string `mapstructure:"parquet_path"`
}

// Load loads configuration from file and environment variables
func Load() (*Config, error) {
	// Set defaults
	setDefaults()

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// Override with environment variables if present
	overrideWithEnv(config)

	return config, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	// Log defaults
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "text")

	// Server defaults
	viper.SetDefault("server.host", "localhost")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.mode", "debug")

	// Database defaults
	viper.SetDefault("database.driver", "")
	viper.SetDefault("database.uri", "bolt://localhost:7687")
	viper.SetDefault("database.username", "neo4j")
	viper.SetDefault("database.password", "")
	viper.SetDefault("database.database", "neo4j")

	// Vector store defaults: empty path runs badger in memory
	viper.SetDefault("vector_store.path", "")

	// Embedding defaults
	viper.SetDefault("embedding.provider", "embedeverything")
	viper.SetDefault("embedding.model", "all-MiniLM-L6-v2")

	// LLM defaults
	viper.SetDefault("llm.provider", "none")
	viper.SetDefault("llm.model", "gpt2")
	viper.SetDefault("llm.temperature", 0.7)
	viper.SetDefault("llm.max_tokens", 256)

	// Extraction defaults: pattern and dictionary recognizers only
	viper.SetDefault("extraction.gliner_model", "")
	viper.SetDefault("extraction.min_score", 0.5)

	// Workflow defaults
	viper.SetDefault("workflow.max_workers", 4)
	viper.SetDefault("workflow.default_timeout", "2m")

	// Graph defaults
	viper.SetDefault("graph.cooccurrence_window", 0)

	// Circuit breaker defaults
	viper.SetDefault("circuit_breaker.enabled", true)
	viper.SetDefault("circuit_breaker.max_requests", 1)
	viper.SetDefault("circuit_breaker.interval", 60)
	viper.SetDefault("circuit_breaker.timeout", 30)
	viper.SetDefault("circuit_breaker.ready_to_trip_ratio", 0.6)

	home, err := os.UserHomeDir()
	if err == nil {
		viper.SetDefault("graph.snapshot_path", fmt.Sprintf("%s/.controlgraph/graph.json", home))
		viper.SetDefault("telemetry.parquet_path", fmt.Sprintf("%s/.controlgraph/telemetry", home))
	}
}

// overrideWithEnv overrides config with environment variables
func overrideWithEnv(config *Config) {
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		config.Embedding.APIKey = apiKey
		config.LLM.APIKey = apiKey
	}

	// Database credentials
	if uri := os.Getenv("NEO4J_URI"); uri != "" {
		config.Database.URI = uri
		if config.Database.Driver == "" {
			config.Database.Driver = "neo4j"
		}
	}
	if user := os.Getenv("NEO4J_USER"); user != "" {
		config.Database.Username = user
	}
	if pass := os.Getenv("NEO4J_PASSWORD"); pass != "" {
		config.Database.Password = pass
	}

	// Server settings
	if host := os.Getenv("SERVER_HOST"); host != "" {
		config.Server.Host = host
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		viper.Set("server.port", port)
	}

	// Telemetry settings
	if path := os.Getenv("TELEMETRY_PARQUET_PATH"); path != "" {
		config.Telemetry.ParquetPath = path
	}
}

// NewLogger builds an slog.Logger from the log configuration.
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}

	var level slog.Level
	switch c.Log.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if c.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
