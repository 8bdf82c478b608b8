// Package config provides configuration loading and structs for the shiori retrieval engine.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Sources   SourcesConfig   `yaml:"sources"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Search    SearchConfig    `yaml:"search"`
	Watch     WatchConfig     `yaml:"watch"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	// MaxK caps k on API requests; 0 leaves it unbounded.
	MaxK int `yaml:"max_k"`
}

// SourcesConfig holds the locations of the persisted vector and metadata collections.
// Locations are local paths or s3://bucket/key URLs; a .gz, .zst or .lz4 suffix
// selects streaming decompression.
type SourcesConfig struct {
	VectorPath       string   `yaml:"vector_path"`
	MetadataPath     string   `yaml:"metadata_path"`
	MaxRecords       int      `yaml:"max_records"`
	ChunkSize        int      `yaml:"chunk_size"`
	MaxFragmentBytes int      `yaml:"max_fragment_bytes"`
	S3               S3Config `yaml:"s3"`
}

// S3Config holds credentials for S3-compatible object storage.
type S3Config struct {
	Endpoint        string `yaml:"endpoint"`
	Region          string `yaml:"region"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	UseSSL          *bool  `yaml:"use_ssl"`
}

// UseSSLOrDefault returns whether to use TLS; defaults to true when unset.
func (s *S3Config) UseSSLOrDefault() bool {
	if s.UseSSL != nil {
		return *s.UseSSL
	}
	return true
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	Provider   string        `yaml:"provider"`
	Model      string        `yaml:"model"`
	APIKeyEnv  string        `yaml:"api_key_env"`
	BaseURL    string        `yaml:"base_url"`
	Dimensions int           `yaml:"dimensions"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
	RetryDelay time.Duration `yaml:"retry_delay"`
	// RateLimit is the number of provider calls per second; 0 disables limiting.
	RateLimit float64 `yaml:"rate_limit"`
	Burst     int     `yaml:"burst"`
	CacheSize int     `yaml:"cache_size"`
	// CachePath enables the persistent SQLite embedding cache when set.
	CachePath string `yaml:"cache_path"`
}

// APIKey returns the provider API key from the configured environment variable.
func (e *EmbeddingConfig) APIKey() string {
	return os.Getenv(e.APIKeyEnv)
}

// SearchConfig holds ranking and retrieval settings.
type SearchConfig struct {
	DefaultK int `yaml:"default_k"`
	// DefaultMinScore is applied when a request carries no threshold; nil means no threshold.
	DefaultMinScore   *float64 `yaml:"default_min_score"`
	ScoreMode         string   `yaml:"score_mode"`
	MinQueryChars     int      `yaml:"min_query_chars"`
	MaxQueryChars     int      `yaml:"max_query_chars"`
	ContextSeparator  string   `yaml:"context_separator"`
	ParallelThreshold int      `yaml:"parallel_threshold"`
}

// WatchConfig holds source reload settings.
type WatchConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Debounce time.Duration `yaml:"debounce"`
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// A .env file next to the config (or in the working directory) is loaded first so that
// the embedding API key can live outside the YAML.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	loadDotEnv(configDir)
	cfg.Sources.VectorPath = expandLocation(cfg.Sources.VectorPath, configDir)
	cfg.Sources.MetadataPath = expandLocation(cfg.Sources.MetadataPath, configDir)
	if cfg.Embedding.CachePath != "" {
		cfg.Embedding.CachePath = expandPath(cfg.Embedding.CachePath, configDir)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Validate checks option values that have no sensible fallback.
func (c *Config) Validate() error {
	switch c.Search.ScoreMode {
	case "dot", "cosine":
	default:
		return fmt.Errorf("invalid search.score_mode %q (supported: dot, cosine)", c.Search.ScoreMode)
	}
	switch c.Embedding.Provider {
	case "openai", "mock":
	default:
		return fmt.Errorf("invalid embedding.provider %q (supported: openai, mock)", c.Embedding.Provider)
	}
	if c.Sources.MaxRecords <= 0 {
		return fmt.Errorf("sources.max_records must be positive, got %d", c.Sources.MaxRecords)
	}
	if c.Server.MaxK < 0 || (c.Server.MaxK > 0 && c.Server.MaxK < c.Search.DefaultK) {
		return fmt.Errorf("server.max_k (%d) must be 0 or >= search.default_k (%d)", c.Server.MaxK, c.Search.DefaultK)
	}
	return nil
}

// loadDotEnv loads .env from the config directory and the working directory.
// Existing environment variables win; a missing file is not an error.
func loadDotEnv(configDir string) {
	candidates := []string{filepath.Join(configDir, ".env"), ".env"}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			_ = godotenv.Load(p)
		}
	}
}

// isRemote reports whether location refers to object storage rather than a local path.
func isRemote(location string) bool {
	return strings.HasPrefix(location, "s3://")
}

func expandLocation(location, configDir string) string {
	if location == "" || isRemote(location) {
		return location
	}
	return expandPath(location, configDir)
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
