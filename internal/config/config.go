package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML values like "30s" parse cleanly.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Metric names the distance function used for similarity scoring.
type Metric string

const (
	// MetricCosine scores by cosine similarity (higher is more relevant).
	MetricCosine Metric = "cosine"
	// MetricEuclidean scores by negative L2 distance (higher is more relevant).
	MetricEuclidean Metric = "euclidean"
)

// Config holds the full application configuration. It is loaded and
// validated once at startup and passed by reference into each component
// constructor; components never read ambient configuration.
type Config struct {
	Chunking   ChunkingConfig   `yaml:"chunking"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Index      IndexConfig      `yaml:"index"`
	Retrieval  RetrievalConfig  `yaml:"retrieval"`
	Generation GenerationConfig `yaml:"generation"`
	Ingest     IngestConfig     `yaml:"ingest,omitempty"`
	Logging    LoggingConfig    `yaml:"logging,omitempty"`
}

// ChunkingConfig controls how documents are split into passages.
type ChunkingConfig struct {
	ChunkSize int `yaml:"chunk_size"` // maximum chunk length in runes
	Overlap   int `yaml:"overlap"`    // overlap window between adjacent chunks
	Lookback  int `yaml:"lookback"`   // boundary search window before a hard cut
}

// EmbeddingConfig holds embedding capability configuration.
type EmbeddingConfig struct {
	APIKey     string `yaml:"api_key,omitempty"` // falls back to OPENAI_API_KEY
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"` // fixed per deployment; must match the index
	BatchSize  int    `yaml:"batch_size"`
	MaxRetries int    `yaml:"max_retries"`
	// MaxInFlight bounds concurrent calls to the external capability.
	MaxInFlight int      `yaml:"max_in_flight"`
	Timeout     Duration `yaml:"timeout"`
	BackoffBase Duration `yaml:"backoff_base"`
}

// IndexConfig holds vector index configuration.
type IndexConfig struct {
	// Path to the SQLite index file. If empty, uses ~/.bia/data/index.db.
	Path string `yaml:"path,omitempty"`
	// DistanceMetric is "cosine" or "euclidean", fixed per deployment.
	DistanceMetric Metric `yaml:"distance_metric"`
	// LexicalPath is the directory for the keyword index used by hybrid
	// search. If empty, uses ~/.bia/data/lexical.
	LexicalPath string `yaml:"lexical_path,omitempty"`
}

// RetrievalConfig holds retrieval tuning parameters.
type RetrievalConfig struct {
	DefaultTopK     int     `yaml:"default_top_k"`
	MinScore        float64 `yaml:"min_score,omitempty"`
	OverFetchFactor int     `yaml:"over_fetch_factor,omitempty"` // k' = k * factor for post-filtering
	EnableHybrid    bool    `yaml:"enable_hybrid,omitempty"`
	VectorWeight    float64 `yaml:"vector_weight,omitempty"`
	KeywordWeight   float64 `yaml:"keyword_weight,omitempty"`
	// MaxContextBudget bounds assembled prompt context size, in runes.
	MaxContextBudget int `yaml:"max_context_budget"`
}

// GenerationConfig holds generation capability configuration.
type GenerationConfig struct {
	APIKey      string   `yaml:"api_key,omitempty"` // falls back to OPENAI_API_KEY
	Model       string   `yaml:"model"`
	MaxTokens   int      `yaml:"max_tokens"`
	Temperature float32  `yaml:"temperature,omitempty"`
	MaxRetries  int      `yaml:"max_retries"`
	Timeout     Duration `yaml:"timeout"`
	BackoffBase Duration `yaml:"backoff_base"`
}

// IngestConfig controls document loading.
type IngestConfig struct {
	DataDir string   `yaml:"data_dir,omitempty"`
	Include []string `yaml:"include,omitempty"` // doublestar glob patterns
	Exclude []string `yaml:"exclude,omitempty"`
	// DocStorePath is the SQLite file for document metadata. If empty,
	// uses ~/.bia/data/documents.db.
	DocStorePath string `yaml:"docstore_path,omitempty"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level string `yaml:"level,omitempty"` // debug | info | warn | error
	JSON  bool   `yaml:"json,omitempty"`
}

// Load loads configuration from the default config file.
// Default location: ~/.bia/config/bia.yaml
func Load() (*Config, error) {
	path, err := DefaultPath()
	if err != nil {
		return nil, err
	}
	return LoadFromFile(path)
}

// DefaultPath returns the default config file location.
func DefaultPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".bia", "config", "bia.yaml"), nil
}

// LoadFromFile loads configuration from a specific file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			defaultPath, _ := DefaultPath()
			return nil, &NotFoundError{RequestedPath: path, DefaultPath: defaultPath}
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// NotFoundError is returned when the config file is not found.
type NotFoundError struct {
	RequestedPath string
	DefaultPath   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("config file not found at: %s\n\nDefault location: %s\n\nYou can:\n"+
		"  1. Create the config file with 'bia init'\n"+
		"  2. Specify a custom path with -config flag",
		e.RequestedPath, e.DefaultPath)
}

// IsNotFound checks whether err is a missing-config error.
func IsNotFound(err error) bool {
	_, ok := err.(*NotFoundError)
	return ok
}

// expandPath expands ~ and $HOME to the user's home directory.
func expandPath(path string) string {
	if strings.HasPrefix(path, "$HOME/") || path == "$HOME" {
		homeDir := os.Getenv("HOME")
		if homeDir == "" {
			var err error
			homeDir, err = os.UserHomeDir()
			if err != nil {
				return path
			}
		}
		if path == "$HOME" {
			return homeDir
		}
		return filepath.Join(homeDir, path[6:])
	}

	if strings.HasPrefix(path, "~/") || path == "~" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		if path == "~" {
			return homeDir
		}
		return filepath.Join(homeDir, path[2:])
	}

	return path
}

func dataPath(parts ...string) string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}
	return filepath.Join(append([]string{homeDir, ".bia", "data"}, parts...)...)
}

// applyDefaults sets default values for missing configuration.
func (c *Config) applyDefaults() {
	if c.Chunking.ChunkSize == 0 {
		c.Chunking.ChunkSize = 300
	}
	if c.Chunking.Overlap == 0 {
		c.Chunking.Overlap = 20
	}
	if c.Chunking.Lookback == 0 {
		c.Chunking.Lookback = 30
	}

	if c.Embedding.Model == "" {
		c.Embedding.Model = "text-embedding-3-small"
	}
	if c.Embedding.Dimensions == 0 {
		c.Embedding.Dimensions = 1536
	}
	if c.Embedding.BatchSize == 0 {
		c.Embedding.BatchSize = 32
	}
	if c.Embedding.MaxRetries == 0 {
		c.Embedding.MaxRetries = 2
	}
	if c.Embedding.MaxInFlight == 0 {
		c.Embedding.MaxInFlight = 4
	}
	if c.Embedding.Timeout == 0 {
		c.Embedding.Timeout = Duration(30 * time.Second)
	}
	if c.Embedding.BackoffBase == 0 {
		c.Embedding.BackoffBase = Duration(500 * time.Millisecond)
	}

	if c.Index.DistanceMetric == "" {
		c.Index.DistanceMetric = MetricCosine
	}
	if c.Index.Path == "" {
		c.Index.Path = dataPath("index.db")
	} else {
		c.Index.Path = expandPath(c.Index.Path)
	}
	if c.Index.LexicalPath == "" {
		c.Index.LexicalPath = dataPath("lexical")
	} else {
		c.Index.LexicalPath = expandPath(c.Index.LexicalPath)
	}

	if c.Retrieval.DefaultTopK == 0 {
		c.Retrieval.DefaultTopK = 5
	}
	if c.Retrieval.OverFetchFactor == 0 {
		c.Retrieval.OverFetchFactor = 2
	}
	if c.Retrieval.VectorWeight == 0 && c.Retrieval.KeywordWeight == 0 {
		c.Retrieval.VectorWeight = 0.7
		c.Retrieval.KeywordWeight = 0.3
	}
	if c.Retrieval.MaxContextBudget == 0 {
		c.Retrieval.MaxContextBudget = 4000
	}

	if c.Generation.Model == "" {
		c.Generation.Model = "gpt-4o-mini"
	}
	if c.Generation.MaxTokens == 0 {
		c.Generation.MaxTokens = 512
	}
	if c.Generation.MaxRetries == 0 {
		c.Generation.MaxRetries = 2
	}
	if c.Generation.Timeout == 0 {
		c.Generation.Timeout = Duration(60 * time.Second)
	}
	if c.Generation.BackoffBase == 0 {
		c.Generation.BackoffBase = Duration(time.Second)
	}

	if c.Ingest.DataDir == "" {
		c.Ingest.DataDir = "./data"
	} else {
		c.Ingest.DataDir = expandPath(c.Ingest.DataDir)
	}
	if len(c.Ingest.Include) == 0 {
		c.Ingest.Include = []string{"**/*.txt", "**/*.md"}
	}
	if c.Ingest.DocStorePath == "" {
		c.Ingest.DocStorePath = dataPath("documents.db")
	} else {
		c.Ingest.DocStorePath = expandPath(c.Ingest.DocStorePath)
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Chunking.ChunkSize <= 0 {
		return fmt.Errorf("chunking.chunk_size must be positive, got: %d", c.Chunking.ChunkSize)
	}
	if c.Chunking.Overlap < 0 || c.Chunking.Overlap >= c.Chunking.ChunkSize {
		return fmt.Errorf("chunking.overlap must satisfy 0 <= overlap < chunk_size, got: %d", c.Chunking.Overlap)
	}

	if c.Embedding.Dimensions <= 0 {
		return fmt.Errorf("embedding.dimensions must be positive, got: %d", c.Embedding.Dimensions)
	}
	if c.Embedding.BatchSize <= 0 || c.Embedding.BatchSize > 2048 {
		return fmt.Errorf("embedding.batch_size must be between 1 and 2048, got: %d", c.Embedding.BatchSize)
	}
	if c.Embedding.MaxRetries < 0 {
		return fmt.Errorf("embedding.max_retries must not be negative, got: %d", c.Embedding.MaxRetries)
	}

	switch c.Index.DistanceMetric {
	case MetricCosine, MetricEuclidean:
	default:
		return fmt.Errorf("index.distance_metric must be %q or %q, got: %q",
			MetricCosine, MetricEuclidean, c.Index.DistanceMetric)
	}

	if c.Retrieval.DefaultTopK <= 0 {
		return fmt.Errorf("retrieval.default_top_k must be positive, got: %d", c.Retrieval.DefaultTopK)
	}
	if c.Retrieval.MaxContextBudget <= 0 {
		return fmt.Errorf("retrieval.max_context_budget must be positive, got: %d", c.Retrieval.MaxContextBudget)
	}
	if c.Retrieval.EnableHybrid && c.Retrieval.VectorWeight+c.Retrieval.KeywordWeight <= 0 {
		return fmt.Errorf("retrieval weights must sum to a positive value when hybrid search is enabled")
	}

	if c.Generation.MaxTokens <= 0 {
		return fmt.Errorf("generation.max_tokens must be positive, got: %d", c.Generation.MaxTokens)
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error, got: %q", c.Logging.Level)
	}

	return nil
}

// EmbeddingAPIKey resolves the embedding API key, preferring the config
// value over the OPENAI_API_KEY environment variable.
func (c *Config) EmbeddingAPIKey() string {
	if c.Embedding.APIKey != "" {
		return c.Embedding.APIKey
	}
	return os.Getenv("OPENAI_API_KEY")
}

// GenerationAPIKey resolves the generation API key analogously.
func (c *Config) GenerationAPIKey() string {
	if c.Generation.APIKey != "" {
		return c.Generation.APIKey
	}
	return os.Getenv("OPENAI_API_KEY")
}

const defaultConfigTemplate = `# Business Intelligence Assistant Configuration
#
# Copy and edit this file for your environment.
# Default location: $HOME/.bia/config/bia.yaml

chunking:
  chunk_size: 300
  overlap: 20
  lookback: 30

embedding:
  # API key falls back to the OPENAI_API_KEY environment variable.
  # api_key: your-api-key
  model: text-embedding-3-small
  dimensions: 1536
  batch_size: 32
  max_retries: 2
  timeout: 30s

index:
  # distance_metric: "cosine" or "euclidean" (fixed per index)
  distance_metric: cosine
  # path: ~/.bia/data/index.db

retrieval:
  default_top_k: 5
  min_score: 0.0
  max_context_budget: 4000
  # enable_hybrid: true

generation:
  model: gpt-4o-mini
  max_tokens: 512
  max_retries: 2
  timeout: 60s

ingest:
  data_dir: ./data
  include:
    - "**/*.txt"
    - "**/*.md"
`

// WriteDefaultTemplate creates a default configuration file if it does not
// exist. It returns true if a file was created, false if it already existed.
func WriteDefaultTemplate(path string) (bool, error) {
	if path == "" {
		return false, fmt.Errorf("config path is empty")
	}
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !os.IsNotExist(err) {
		return false, fmt.Errorf("failed to stat config file: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return false, fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, []byte(defaultConfigTemplate), 0644); err != nil {
		return false, fmt.Errorf("failed to write config template: %w", err)
	}

	return true, nil
}
