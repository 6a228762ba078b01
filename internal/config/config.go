package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"github.com/pelletier/go-toml/v2"
)

// Environment variable overrides.
const (
	EnvConfigPath = "RAGLET_CONFIG"
	EnvDataDir    = "RAGLET_DATA_DIR"
	EnvProvider   = "RAGLET_EMBEDDING_PROVIDER"
	EnvOllamaURL  = "RAGLET_OLLAMA_URL"
	EnvModel      = "RAGLET_EMBEDDING_MODEL"
	EnvOpenAIKey  = "OPENAI_API_KEY"
)

// Defaults. Chunking and retrieval values follow the pipeline's tuning:
// 512-token chunks with 10% overlap, top-8 of a 15-chunk over-fetch,
// 0.2 minimum similarity, and at most 2 chunks per source file.
const (
	DefaultChunkSizeTokens = 512
	DefaultOverlapRatio    = 0.1
	DefaultTopK            = 8
	DefaultFetchK          = 15
	DefaultMinScore        = 0.2
	DefaultMaxPerFile      = 2
	DefaultContextBudget   = 16000
	DefaultMaxFileBytes    = 16 << 20
)

// Config is the full application configuration.
type Config struct {
	// DataDir holds the vector database and filter config store.
	DataDir string `toml:"data_dir"`

	Embedding Embedding `toml:"embedding"`
	Chunking  Chunking  `toml:"chunking"`
	Retrieval Retrieval `toml:"retrieval"`
	Context   Context   `toml:"context"`
}

// Embedding selects and configures the embedding provider.
type Embedding struct {
	// Provider is one of "ollama", "openai" or "local".
	Provider string `toml:"provider"`

	// Model overrides the provider's default embedding model.
	Model string `toml:"model"`

	// OllamaURL is the Ollama base URL.
	OllamaURL string `toml:"ollama_url"`

	// CacheSize bounds the in-memory embedding cache.
	CacheSize int `toml:"cache_size"`
}

// Chunking holds the default segmentation parameters.
type Chunking struct {
	ChunkSizeTokens int     `toml:"chunk_size_tokens"`
	OverlapRatio    float64 `toml:"overlap_ratio"`
}

// Retrieval holds the default retrieval parameters.
type Retrieval struct {
	TopK       int     `toml:"top_k"`
	FetchK     int     `toml:"fetch_k"`
	MinScore   float64 `toml:"min_score"`
	MaxPerFile int     `toml:"max_per_file"`
}

// Context controls payload assembly.
type Context struct {
	// BudgetTokens caps the size of a FULL-mode context payload.
	BudgetTokens int `toml:"budget_tokens"`

	// MaxFileBytes skips extraction of files larger than this.
	MaxFileBytes int64 `toml:"max_file_bytes"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		DataDir: defaultDataDir(),
		Embedding: Embedding{
			Provider:  "ollama",
			OllamaURL: "http://localhost:11434",
			CacheSize: 10000,
		},
		Chunking: Chunking{
			ChunkSizeTokens: DefaultChunkSizeTokens,
			OverlapRatio:    DefaultOverlapRatio,
		},
		Retrieval: Retrieval{
			TopK:       DefaultTopK,
			FetchK:     DefaultFetchK,
			MinScore:   DefaultMinScore,
			MaxPerFile: DefaultMaxPerFile,
		},
		Context: Context{
			BudgetTokens: DefaultContextBudget,
			MaxFileBytes: DefaultMaxFileBytes,
		},
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".raglet"
	}
	return filepath.Join(home, ".raglet")
}

// Load reads the configuration file at path, falling back to defaults when
// the file does not exist. Environment variables override file values.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			// Missing file is fine; run on defaults.
		case err != nil:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		default:
			if err := toml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv(EnvDataDir); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv(EnvProvider); v != "" {
		cfg.Embedding.Provider = v
	}
	if v := os.Getenv(EnvOllamaURL); v != "" {
		cfg.Embedding.OllamaURL = v
	}
	if v := os.Getenv(EnvModel); v != "" {
		cfg.Embedding.Model = v
	}
	if v := os.Getenv("RAGLET_CHUNK_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Chunking.ChunkSizeTokens = n
		}
	}
	if v := os.Getenv("RAGLET_TOP_K"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Retrieval.TopK = n
		}
	}
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	if c.Chunking.ChunkSizeTokens < 1 {
		return errors.New("config: chunk_size_tokens must be at least 1")
	}
	if c.Chunking.OverlapRatio < 0 || c.Chunking.OverlapRatio >= 1 {
		return errors.New("config: overlap_ratio must be in [0, 1)")
	}
	if c.Retrieval.TopK < 1 {
		return errors.New("config: top_k must be at least 1")
	}
	if c.Retrieval.FetchK < c.Retrieval.TopK {
		c.Retrieval.FetchK = c.Retrieval.TopK
	}
	if c.Retrieval.MinScore < 0 || c.Retrieval.MinScore > 1 {
		return errors.New("config: min_score must be in [0, 1]")
	}
	if c.Context.BudgetTokens < 1 {
		return errors.New("config: budget_tokens must be at least 1")
	}
	return nil
}

// DBPath returns the vector database location under the data directory.
func (c *Config) DBPath() string {
	return filepath.Join(c.DataDir, "raglet.db")
}

// FilterConfigPath returns the filter config store location.
func (c *Config) FilterConfigPath() string {
	return filepath.Join(c.DataDir, "filters.json")
}
