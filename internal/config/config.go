// Package config provides application configuration management with
// multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (~/.ragdex/config.yaml, or ./config.yaml)
//  3. Default values
//
// Configuration failures are fatal: Load validates immediately and the
// process refuses to start with an invalid configuration. All other
// failure classes (parse, store) are per-file and non-fatal by design.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

var (
	// ErrMissingAPIKey indicates the Gemini API key is not set.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrInvalidChunking indicates the chunk size/overlap pair is unusable.
	ErrInvalidChunking = errors.New("invalid chunking configuration")

	// ErrInvalidSettleDelay indicates a negative settle delay.
	ErrInvalidSettleDelay = errors.New("invalid settle delay")

	// ErrInvalidDataFolder indicates the watched folder path is empty.
	ErrInvalidDataFolder = errors.New("invalid data folder")

	// ErrInvalidStorePath indicates the vector store path is empty.
	ErrInvalidStorePath = errors.New("invalid store path")

	// ErrInvalidModelName indicates an empty model or embedder name.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidServeAddr indicates an empty HTTP listen address.
	ErrInvalidServeAddr = errors.New("invalid serve address")
)

// Defaults mirrored from the indexing pipeline's contract.
const (
	// DefaultChunkSize is the maximum chunk length in characters.
	DefaultChunkSize = 1000

	// DefaultChunkOverlap is the overlap between consecutive chunks.
	DefaultChunkOverlap = 200

	// DefaultSettleDelay is the debounce wait applied before reading a file
	// that just appeared or changed, to avoid parsing partial writes.
	DefaultSettleDelay = 500 * time.Millisecond

	// DefaultEmbedderModel is the Gemini embedding model.
	DefaultEmbedderModel = "text-embedding-004"

	// DefaultChatModel is the model answering agent queries.
	DefaultChatModel = "gemini-2.5-flash"
)

// Config stores application configuration.
type Config struct {
	// Indexing
	DataFolder   string `mapstructure:"data_folder"`   // watched folder (created if absent)
	StorePath    string `mapstructure:"store_path"`    // chromem persistent store directory
	Collection   string `mapstructure:"collection"`    // vector collection name
	ChunkSize    int    `mapstructure:"chunk_size"`    // max characters per chunk
	ChunkOverlap int    `mapstructure:"chunk_overlap"` // characters repeated between chunks
	SettleMS     int    `mapstructure:"settle_ms"`     // debounce before processing create/modify

	// AI
	EmbedderModel string  `mapstructure:"embedder_model"`
	ModelName     string  `mapstructure:"model_name"`
	Temperature   float32 `mapstructure:"temperature"`
	MaxTurns      int     `mapstructure:"max_turns"` // tool-calling round limit for the agent

	// HTTP API (serve mode)
	ServeAddr   string   `mapstructure:"serve_addr"`
	RateBurst   int      `mapstructure:"rate_burst"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

// Load loads configuration.
// Priority: environment variables > configuration file > default values.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".ragdex")
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)
	v.AddConfigPath(".")

	setDefaults(v, configDir)
	bindEnvVariables(v)

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is not an error, defaults apply.
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

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults(v *viper.Viper, configDir string) {
	v.SetDefault("data_folder", "datafolder")
	v.SetDefault("store_path", filepath.Join(configDir, "store"))
	v.SetDefault("collection", "documents")
	v.SetDefault("chunk_size", DefaultChunkSize)
	v.SetDefault("chunk_overlap", DefaultChunkOverlap)
	v.SetDefault("settle_ms", int(DefaultSettleDelay/time.Millisecond))

	v.SetDefault("embedder_model", DefaultEmbedderModel)
	v.SetDefault("model_name", DefaultChatModel)
	v.SetDefault("temperature", 0.7)
	v.SetDefault("max_turns", 5)

	v.SetDefault("serve_addr", ":8080")
	v.SetDefault("rate_burst", 60)
	v.SetDefault("cors_origins", []string{"http://localhost:8501"})
}

// bindEnvVariables binds environment overrides explicitly.
// GEMINI_API_KEY is read directly by the Genkit plugin, not via viper;
// RequireAPIKey checks its presence before any embedding work starts.
func bindEnvVariables(v *viper.Viper) {
	mustBind := func(key, envVar string) {
		if err := v.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("data_folder", "RAGDEX_DATA_FOLDER")
	mustBind("store_path", "RAGDEX_STORE_PATH")
	mustBind("collection", "RAGDEX_COLLECTION")
	mustBind("model_name", "RAGDEX_MODEL_NAME")
	mustBind("embedder_model", "RAGDEX_EMBEDDER_MODEL")
	mustBind("serve_addr", "RAGDEX_SERVE_ADDR")
	mustBind("cors_origins", "RAGDEX_CORS_ORIGINS")
}

// SettleDelay returns the configured debounce duration.
func (c *Config) SettleDelay() time.Duration {
	return time.Duration(c.SettleMS) * time.Millisecond
}

// GoogleAIModel qualifies a bare model name with the provider prefix
// Genkit resolves models by. Already-qualified names pass through, so
// config values may use either form.
func GoogleAIModel(name string) string {
	if strings.Contains(name, "/") {
		return name
	}
	return "googleai/" + name
}

// RequireAPIKey verifies the Gemini API key is present.
// Commands that reach the embedder or model call this before wiring.
func RequireAPIKey() error {
	if os.Getenv("GEMINI_API_KEY") == "" {
		return fmt.Errorf("%w: GEMINI_API_KEY not set", ErrMissingAPIKey)
	}
	return nil
}
