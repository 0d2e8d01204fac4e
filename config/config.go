package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// FileName is looked up in the working directory.
	FileName = "ragqa.yaml"
	// StateDirName holds local databases and the nested config file.
	StateDirName = ".ragqa"
)

// Config holds all configuration for ragqa.
type Config struct {
	Ingest      IngestConfig      `yaml:"ingest"`
	Retrieve    RetrieveConfig    `yaml:"retrieve"`
	Query       QueryConfig       `yaml:"query"`
	Embedding   EmbeddingConfig   `yaml:"embedding"`
	LLM         LLMConfig         `yaml:"llm"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Retry       RetryConfig       `yaml:"retry"`
	RateLimit   RateLimitConfig   `yaml:"rate_limit"`
	Evaluation  EvaluationConfig  `yaml:"evaluation"`
	History     HistoryConfig     `yaml:"history"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// IngestConfig holds document loading and chunking configuration.
type IngestConfig struct {
	ChunkSize       int           `yaml:"chunk_size"`
	ChunkOverlap    int           `yaml:"chunk_overlap"`
	Includes        []string      `yaml:"includes"`
	Excludes        []string      `yaml:"excludes"`
	LoadConcurrency int           `yaml:"load_concurrency"`
	PDFToTextPath   string        `yaml:"pdftotext_path"`
	HTTPTimeout     time.Duration `yaml:"http_timeout"`
}

type RetrieveConfig struct {
	TopK int `yaml:"top_k"`
}

type QueryConfig struct {
	Concurrency int `yaml:"concurrency"`
}

// EmbeddingConfig holds embedding configuration.
type EmbeddingConfig struct {
	Provider  string        `yaml:"provider"`    // "gemini", "openai", "ollama", "mock"
	Model     string        `yaml:"model"`       // e.g., "embedding-001"
	APIKeyEnv string        `yaml:"api_key_env"` // Environment variable for API key
	BaseURL   string        `yaml:"base_url"`
	Dimension int           `yaml:"dimension"`
	BatchSize int           `yaml:"batch_size"`
	CacheSize int           `yaml:"cache_size"` // 0 disables the cache
	CacheTTL  time.Duration `yaml:"cache_ttl"`
}

// LLMConfig holds language model configuration.
type LLMConfig struct {
	Provider    string  `yaml:"provider"` // "gemini", "openai", "anthropic"
	Model       string  `yaml:"model"`
	APIKeyEnv   string  `yaml:"api_key_env"`
	BaseURL     string  `yaml:"base_url"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

// VectorStoreConfig selects the index backend.
type VectorStoreConfig struct {
	Backend    string `yaml:"backend"` // "bolt", "qdrant", "memory"
	Collection string `yaml:"collection"`
	Path       string `yaml:"path"` // bolt database file
	URL        string `yaml:"url"`  // qdrant endpoint
	APIKeyEnv  string `yaml:"api_key_env"`
}

type RetryConfig struct {
	MaxAttempts     int           `yaml:"max_attempts"`
	InitialInterval time.Duration `yaml:"initial_interval"`
	MaxInterval     time.Duration `yaml:"max_interval"`
}

// RateLimitConfig throttles provider calls. Zero requests per second
// disables limiting.
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

// EvaluationConfig holds evaluation harness configuration. Empty question
// lists fall back to the built-in sets.
type EvaluationConfig struct {
	SeedQueries      []string `yaml:"seed_queries"`
	QuickQuestions   []string `yaml:"quick_questions"`
	NumTestCases     int      `yaml:"num_test_cases"`
	QuestionsPerSeed int      `yaml:"questions_per_seed"`
	Metrics          []string `yaml:"metrics"`
	Concurrency      int      `yaml:"concurrency"`
	DatasetPath      string   `yaml:"dataset_path"`
	ResultsDir       string   `yaml:"results_dir"`
	HistoryDB        string   `yaml:"history_db"`
}

// HistoryConfig controls saving of answered questions.
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "text" or "json"
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Ingest: IngestConfig{
			ChunkSize:       1000,
			ChunkOverlap:    200,
			Includes:        []string{"**/*.{pdf,txt,md,markdown,html,htm}"},
			Excludes:        []string{"**/.git/**", "**/node_modules/**", "**/" + StateDirName + "/**"},
			LoadConcurrency: 4,
			PDFToTextPath:   "pdftotext",
			HTTPTimeout:     30 * time.Second,
		},
		Retrieve: RetrieveConfig{
			TopK: 4,
		},
		Query: QueryConfig{
			Concurrency: 4,
		},
		Embedding: EmbeddingConfig{
			Provider:  "gemini",
			Model:     "embedding-001",
			APIKeyEnv: "GOOGLE_API_KEY",
			Dimension: 768,
			BatchSize: 100,
			CacheSize: 1000,
			CacheTTL:  time.Hour,
		},
		LLM: LLMConfig{
			Provider:    "gemini",
			Model:       "gemini-2.0-flash-exp",
			APIKeyEnv:   "GOOGLE_API_KEY",
			Temperature: 0.1,
			MaxTokens:   1024,
		},
		VectorStore: VectorStoreConfig{
			Backend:    "bolt",
			Collection: "documents",
			Path:       filepath.Join(StateDirName, "state.db"),
			URL:        "http://localhost:6333",
			APIKeyEnv:  "QDRANT_API_KEY",
		},
		Retry: RetryConfig{
			MaxAttempts:     3,
			InitialInterval: 500 * time.Millisecond,
			MaxInterval:     5 * time.Second,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 0,
			Burst:             1,
		},
		Evaluation: EvaluationConfig{
			NumTestCases:     10,
			QuestionsPerSeed: 3,
			Metrics:          []string{"faithfulness", "answer_relevancy", "context_precision", "context_recall"},
			Concurrency:      4,
			DatasetPath:      filepath.Join(StateDirName, "testset.json"),
			ResultsDir:       "evaluation_results",
			HistoryDB:        filepath.Join(StateDirName, "evaluations.db"),
		},
		History: HistoryConfig{
			Enabled: true,
			Path:    filepath.Join(StateDirName, "state.db"),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

var (
	embeddingProviders = map[string]bool{"gemini": true, "openai": true, "ollama": true, "mock": true}
	llmProviders       = map[string]bool{"gemini": true, "openai": true, "anthropic": true}
	backends           = map[string]bool{"bolt": true, "qdrant": true, "memory": true}
)

// Validate checks values that would otherwise fail deep inside a command.
func (c *Config) Validate() error {
	if c.Ingest.ChunkSize <= 0 {
		return fmt.Errorf("ingest.chunk_size must be positive, got %d", c.Ingest.ChunkSize)
	}
	if c.Ingest.ChunkOverlap <= 0 || c.Ingest.ChunkOverlap >= c.Ingest.ChunkSize {
		return fmt.Errorf("ingest.chunk_overlap must be between 1 and chunk_size-1, got %d", c.Ingest.ChunkOverlap)
	}
	if c.Retrieve.TopK <= 0 {
		return fmt.Errorf("retrieve.top_k must be positive, got %d", c.Retrieve.TopK)
	}
	if !embeddingProviders[c.Embedding.Provider] {
		return fmt.Errorf("unknown embedding.provider %q", c.Embedding.Provider)
	}
	if !llmProviders[c.LLM.Provider] {
		return fmt.Errorf("unknown llm.provider %q", c.LLM.Provider)
	}
	if !backends[c.VectorStore.Backend] {
		return fmt.Errorf("unknown vector_store.backend %q", c.VectorStore.Backend)
	}
	if c.VectorStore.Collection == "" {
		return fmt.Errorf("vector_store.collection must be set")
	}
	if c.RateLimit.RequestsPerSecond < 0 {
		return fmt.Errorf("rate_limit.requests_per_second must not be negative")
	}
	return nil
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil // Return defaults if no config file
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	return cfg, nil
}

// LoadFromDir loads configuration from a directory (looks for ragqa.yaml,
// then .ragqa/config.yaml).
func LoadFromDir(dir string) (*Config, error) {
	path := filepath.Join(dir, FileName)
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	path = filepath.Join(dir, StateDirName, "config.yaml")
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
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Resolve makes a relative path relative to dir.
func Resolve(dir, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dir, path)
}
