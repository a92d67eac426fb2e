package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for finrag.
type Config struct {
	Chunking   ChunkingConfig   `yaml:"chunking"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Generation GenerationConfig `yaml:"generation"`
	Store      StoreConfig      `yaml:"store"`
	Query      QueryConfig      `yaml:"query"`
	Ingest     IngestConfig     `yaml:"ingest"`
	Server     ServerConfig     `yaml:"server"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// ChunkingConfig holds text splitting configuration.
type ChunkingConfig struct {
	Size    int `yaml:"size"`    // window size in characters
	Overlap int `yaml:"overlap"` // characters shared between adjacent windows
}

// EmbeddingConfig holds embedding provider configuration. The API key is
// read from the environment variable named in APIKeyEnv, never from the
// config file.
type EmbeddingConfig struct {
	Model       string        `yaml:"model"`
	APIKeyEnv   string        `yaml:"api_key_env"`
	Dimension   int           `yaml:"dimension"`
	Timeout     time.Duration `yaml:"timeout"`
	MaxAttempts int           `yaml:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay"`   // first backoff delay on rate limit
	RetryDelay  time.Duration `yaml:"retry_delay"`  // fixed delay for other transient errors
	MinInterval time.Duration `yaml:"min_interval"` // minimum delay between successive calls
}

// GenerationConfig holds the answer generation provider configuration.
type GenerationConfig struct {
	Model       string        `yaml:"model"`
	APIKeyEnv   string        `yaml:"api_key_env"`
	Temperature float64       `yaml:"temperature"`
	MaxTokens   int           `yaml:"max_tokens"`
	Timeout     time.Duration `yaml:"timeout"`
}

// StoreConfig holds vector store configuration. The remote backend is used
// when the key named in PineconeAPIKeyEnv is set and initialization
// succeeds; otherwise the store falls back to the local backend.
type StoreConfig struct {
	IndexName         string        `yaml:"index_name"`
	PineconeAPIKeyEnv string        `yaml:"pinecone_api_key_env"`
	Cloud             string        `yaml:"cloud"`
	Region            string        `yaml:"region"`
	BatchSize         int           `yaml:"batch_size"`
	Timeout           time.Duration `yaml:"timeout"`
	LocalPath         string        `yaml:"local_path"` // optional bbolt file for the local backend
}

// QueryConfig holds query engine configuration.
type QueryConfig struct {
	TopK      int           `yaml:"top_k"`
	CacheSize int           `yaml:"cache_size"`
	CacheTTL  time.Duration `yaml:"cache_ttl"`
}

// IngestConfig holds ingestion configuration.
type IngestConfig struct {
	RequireAllChunks bool     `yaml:"require_all_chunks"`
	Includes         []string `yaml:"includes"`
	Excludes         []string `yaml:"excludes"`
	Workers          int      `yaml:"workers"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Chunking: ChunkingConfig{
			Size:    1000,
			Overlap: 200,
		},
		Embedding: EmbeddingConfig{
			Model:       "text-embedding-004",
			APIKeyEnv:   "GOOGLE_API_KEY",
			Dimension:   768,
			Timeout:     30 * time.Second,
			MaxAttempts: 3,
			BaseDelay:   time.Second,
			RetryDelay:  time.Second,
			MinInterval: time.Second,
		},
		Generation: GenerationConfig{
			Model:       "llama-3.1-8b-instant",
			APIKeyEnv:   "GROQ_API_KEY",
			Temperature: 0.7,
			MaxTokens:   2048,
			Timeout:     60 * time.Second,
		},
		Store: StoreConfig{
			IndexName:         "financial-docs",
			PineconeAPIKeyEnv: "PINECONE_API_KEY",
			Cloud:             "aws",
			Region:            "us-east-1",
			BatchSize:         50,
			Timeout:           30 * time.Second,
		},
		Query: QueryConfig{
			TopK:      3,
			CacheSize: 100,
			CacheTTL:  5 * time.Minute,
		},
		Ingest: IngestConfig{
			RequireAllChunks: false,
			Includes:         []string{"**/*.txt", "**/*.md"},
			Excludes:         []string{"**/.git/**", "**/node_modules/**"},
			Workers:          4,
		},
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 8090,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from a YAML file, falling back to defaults for
// anything the file does not set.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromDir loads configuration from a directory (looks for finrag.yaml,
// then .finrag/config.yaml).
func LoadFromDir(dir string) (*Config, error) {
	path := filepath.Join(dir, "finrag.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	path = filepath.Join(dir, ".finrag", "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	return DefaultConfig(), nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate checks invariants that later components rely on.
func (c *Config) Validate() error {
	if c.Chunking.Size <= 0 {
		return fmt.Errorf("chunking.size must be positive, got %d", c.Chunking.Size)
	}
	if c.Chunking.Overlap < 0 {
		return fmt.Errorf("chunking.overlap must not be negative, got %d", c.Chunking.Overlap)
	}
	if c.Chunking.Overlap >= c.Chunking.Size {
		return fmt.Errorf("chunking.overlap (%d) must be smaller than chunking.size (%d)",
			c.Chunking.Overlap, c.Chunking.Size)
	}
	if c.Embedding.Dimension <= 0 {
		return fmt.Errorf("embedding.dimension must be positive, got %d", c.Embedding.Dimension)
	}
	if c.Embedding.MaxAttempts <= 0 {
		return fmt.Errorf("embedding.max_attempts must be positive, got %d", c.Embedding.MaxAttempts)
	}
	if c.Store.BatchSize <= 0 {
		return fmt.Errorf("store.batch_size must be positive, got %d", c.Store.BatchSize)
	}
	if c.Query.TopK <= 0 {
		return fmt.Errorf("query.top_k must be positive, got %d", c.Query.TopK)
	}
	return nil
}

// EmbeddingAPIKey returns the embedding provider key from the environment.
func (c *Config) EmbeddingAPIKey() string {
	return os.Getenv(c.Embedding.APIKeyEnv)
}

// GenerationAPIKey returns the generation provider key from the environment.
func (c *Config) GenerationAPIKey() string {
	return os.Getenv(c.Generation.APIKeyEnv)
}

// PineconeAPIKey returns the remote store key from the environment.
func (c *Config) PineconeAPIKey() string {
	return os.Getenv(c.Store.PineconeAPIKeyEnv)
}
