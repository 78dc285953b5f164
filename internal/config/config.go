package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the service configuration.
type Config struct {
	Processors []ProcessorConfig `yaml:"processors,omitempty"`
	Pipeline   PipelineConfig    `yaml:"pipeline,omitempty"`
	Embedding  EmbeddingConfig   `yaml:"embedding"`
	Cache      CacheConfig       `yaml:"cache,omitempty"`
	Search     SearchConfig      `yaml:"search,omitempty"`
	Storage    StorageConfig     `yaml:"storage,omitempty"`
	Logging    LoggingConfig     `yaml:"logging,omitempty"`
}

// ProcessorConfig enables one analysis processor.
type ProcessorConfig struct {
	Kind        string `yaml:"kind"`               // "lexical" | "semantic"
	Priority    int    `yaml:"priority,omitempty"` // ascending execution order
	MaxKeywords int    `yaml:"max_keywords,omitempty"`
	MaxEntities int    `yaml:"max_entities,omitempty"`
	MaxConcepts int    `yaml:"max_concepts,omitempty"`
	LexiconPath string `yaml:"lexicon_path,omitempty"` // semantic only
}

// PipelineConfig tunes pipeline scheduling and output shape.
type PipelineConfig struct {
	Mode             string `yaml:"mode,omitempty"` // "sequential" | "parallel"
	TimeoutSeconds   int    `yaml:"timeout_seconds,omitempty"`
	FeatureDimension int    `yaml:"feature_dimension,omitempty"`
	MergedKeywords   int    `yaml:"merged_keywords,omitempty"`
	Verbosity        string `yaml:"verbosity,omitempty"` // "minimal" | "summary" | "detailed"
}

// EmbeddingConfig holds embedding provider configuration.
type EmbeddingConfig struct {
	Provider string `yaml:"provider"` // "hash" | "openai"

	// OpenAI specific
	APIKey   string `yaml:"api_key,omitempty"`
	Endpoint string `yaml:"endpoint,omitempty"`
	Model    string `yaml:"model,omitempty"`

	Dimensions     int  `yaml:"dimensions,omitempty"`
	BatchSize      int  `yaml:"batch_size,omitempty"`
	Normalize      bool `yaml:"normalize,omitempty"`
	TimeoutSeconds int  `yaml:"timeout_seconds,omitempty"`
}

// CacheConfig tunes the cache manager. TTLs default per namespace class
// when zero.
type CacheConfig struct {
	MaxEntries        int  `yaml:"max_entries,omitempty"`
	SweepIntervalMin  int  `yaml:"sweep_interval_minutes,omitempty"`
	AnalysisTTLHours  int  `yaml:"analysis_ttl_hours,omitempty"`
	EmbeddingTTLHours int  `yaml:"embedding_ttl_hours,omitempty"`
	PipelineTTLHours  int  `yaml:"pipeline_ttl_hours,omitempty"`
	DisableBackground bool `yaml:"disable_background_sweep,omitempty"`
}

// SearchConfig tunes the hybrid search path.
type SearchConfig struct {
	MaxResults         int     `yaml:"max_results,omitempty"`
	KNearest           int     `yaml:"k_nearest,omitempty"`
	RelevanceThreshold float64 `yaml:"relevance_threshold,omitempty"`
	ExactWeight        float64 `yaml:"exact_weight,omitempty"`
	PartialWeight      float64 `yaml:"partial_weight,omitempty"`
	SpatialWeight      float64 `yaml:"spatial_weight,omitempty"`
	RankedWeight       float64 `yaml:"ranked_weight,omitempty"`
	FulltextFallback   bool    `yaml:"fulltext_fallback"`
}

// StorageConfig holds the blueprint store and loader configuration.
type StorageConfig struct {
	// Path to the SQLite database file.
	// If empty, uses ~/.blueprints-rag/data/blueprints.db
	Path       string   `yaml:"path,omitempty"`
	Include    []string `yaml:"include,omitempty"` // loader glob patterns
	Exclude    []string `yaml:"exclude,omitempty"`
	MaxWorkers int      `yaml:"max_workers,omitempty"` // rebuild concurrency
}

// LoggingConfig selects the log level.
type LoggingConfig struct {
	Level string `yaml:"level,omitempty"` // "debug" | "info" | "warn" | "error"
}

// Load loads configuration from the default config file
// Default location: ~/.blueprints-rag/config/blueprints.yaml
func Load() (*Config, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get home directory: %w", err)
	}

	configPath := filepath.Join(homeDir, ".blueprints-rag", "config", "blueprints.yaml")
	return LoadFromFile(configPath)
}

// LoadFromFile loads configuration from a specific file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			homeDir, _ := os.UserHomeDir()
			defaultPath := filepath.Join(homeDir, ".blueprints-rag", "config", "blueprints.yaml")
			return nil, &ConfigNotFoundError{
				RequestedPath: path,
				DefaultPath:   defaultPath,
			}
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Default returns a ready-to-use configuration without reading any file.
func Default() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

// ConfigNotFoundError is returned when the config file is not found.
type ConfigNotFoundError struct {
	RequestedPath string
	DefaultPath   string
}

func (e *ConfigNotFoundError) Error() string {
	return fmt.Sprintf("config file not found at: %s\n\nDefault location: %s\n\nYou can:\n"+
		"  1. Create the config file at the default location\n"+
		"  2. Specify a custom path when loading\n"+
		"  3. Use config.Default() for an in-memory default",
		e.RequestedPath, e.DefaultPath)
}

// IsConfigNotFound checks if err is a config-not-found error.
func IsConfigNotFound(err error) bool {
	_, ok := err.(*ConfigNotFoundError)
	return ok
}

// expandPath expands ~ and $HOME to the user's home directory
// Supports both:
//
//	~/.blueprints-rag/data/blueprints.db
//	$HOME/.blueprints-rag/data/blueprints.db
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

// ApplyDefaults sets default values for missing configuration.
func (c *Config) ApplyDefaults() {
	if len(c.Processors) == 0 {
		c.Processors = []ProcessorConfig{
			{Kind: "lexical", Priority: 1},
			{Kind: "semantic", Priority: 2},
		}
	}
	for i := range c.Processors {
		if c.Processors[i].Priority == 0 {
			c.Processors[i].Priority = i + 1
		}
	}

	if c.Pipeline.Mode == "" {
		c.Pipeline.Mode = "sequential"
	}
	if c.Pipeline.TimeoutSeconds == 0 {
		c.Pipeline.TimeoutSeconds = 5
	}
	if c.Pipeline.FeatureDimension == 0 {
		c.Pipeline.FeatureDimension = 8
	}
	if c.Pipeline.MergedKeywords == 0 {
		c.Pipeline.MergedKeywords = 20
	}
	if c.Pipeline.Verbosity == "" {
		c.Pipeline.Verbosity = "detailed"
	}

	if c.Embedding.Provider == "" {
		c.Embedding.Provider = "hash"
	}
	if c.Embedding.BatchSize == 0 {
		c.Embedding.BatchSize = 10
	}
	if c.Embedding.TimeoutSeconds == 0 {
		c.Embedding.TimeoutSeconds = 30
	}

	if c.Cache.MaxEntries == 0 {
		c.Cache.MaxEntries = 1000
	}
	if c.Cache.SweepIntervalMin == 0 {
		c.Cache.SweepIntervalMin = 60
	}
	if c.Cache.AnalysisTTLHours == 0 {
		c.Cache.AnalysisTTLHours = 24
	}
	if c.Cache.EmbeddingTTLHours == 0 {
		c.Cache.EmbeddingTTLHours = 24 * 7
	}
	if c.Cache.PipelineTTLHours == 0 {
		c.Cache.PipelineTTLHours = 12
	}

	if c.Search.MaxResults == 0 {
		c.Search.MaxResults = 10
	}
	if c.Search.KNearest == 0 {
		c.Search.KNearest = 5
	}
	if c.Search.RelevanceThreshold == 0 {
		c.Search.RelevanceThreshold = 0.6
	}
	if c.Search.ExactWeight == 0 && c.Search.PartialWeight == 0 &&
		c.Search.SpatialWeight == 0 && c.Search.RankedWeight == 0 {
		c.Search.ExactWeight = 0.5
		c.Search.PartialWeight = 0.2
		c.Search.SpatialWeight = 0.4
		c.Search.RankedWeight = 0.3
	}

	if c.Storage.Path != "" {
		c.Storage.Path = expandPath(c.Storage.Path)
	}
	if len(c.Storage.Include) == 0 {
		c.Storage.Include = []string{"**/*.rb", "**/*.py", "**/*.go", "**/*.js"}
	}
	if c.Storage.MaxWorkers == 0 {
		c.Storage.MaxWorkers = 4
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	for _, proc := range c.Processors {
		switch proc.Kind {
		case "lexical", "semantic":
		default:
			return fmt.Errorf("unsupported processor kind: %s", proc.Kind)
		}
	}

	switch c.Pipeline.Mode {
	case "sequential", "parallel":
	default:
		return fmt.Errorf("pipeline mode must be sequential or parallel, got: %s", c.Pipeline.Mode)
	}
	switch c.Pipeline.Verbosity {
	case "minimal", "summary", "detailed":
	default:
		return fmt.Errorf("unsupported verbosity: %s", c.Pipeline.Verbosity)
	}

	switch c.Embedding.Provider {
	case "hash":
	case "openai":
		if c.Embedding.APIKey == "" {
			return fmt.Errorf("openai provider requires api_key")
		}
	default:
		return fmt.Errorf("unsupported embedding provider: %s", c.Embedding.Provider)
	}
	if c.Embedding.BatchSize <= 0 || c.Embedding.BatchSize > 100 {
		return fmt.Errorf("batch_size must be between 1 and 100, got: %d", c.Embedding.BatchSize)
	}
	if c.Embedding.Dimensions < 0 {
		return fmt.Errorf("dimensions must not be negative, got: %d", c.Embedding.Dimensions)
	}

	if c.Search.RelevanceThreshold < 0 || c.Search.RelevanceThreshold > 1 {
		return fmt.Errorf("relevance_threshold must be in [0, 1], got: %v", c.Search.RelevanceThreshold)
	}
	if c.Search.MaxResults <= 0 {
		return fmt.Errorf("max_results must be positive, got: %d", c.Search.MaxResults)
	}
	if c.Search.KNearest <= 0 {
		return fmt.Errorf("k_nearest must be positive, got: %d", c.Search.KNearest)
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unsupported log level: %s", c.Logging.Level)
	}

	return nil
}

// Save saves the configuration to the default location.
func (c *Config) Save() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}

	configDir := filepath.Join(homeDir, ".blueprints-rag", "config")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	configPath := filepath.Join(configDir, "blueprints.yaml")
	return c.SaveToFile(configPath)
}

// SaveToFile saves the configuration to a specific file.
func (c *Config) SaveToFile(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

const defaultConfigTemplate = `# Blueprints RAG Configuration
#
# Copy and edit this file for your environment.
# Default location: $HOME/.blueprints-rag/config/blueprints.yaml

processors:
  - kind: lexical
    priority: 1
  - kind: semantic
    priority: 2
    # lexicon_path: concepts.yaml

pipeline:
  mode: sequential
  feature_dimension: 8
  verbosity: detailed

embedding:
  # Provider: "hash" (local, deterministic) or "openai"
  provider: hash

  # OpenAI configuration (alternative)
  # provider: openai
  # api_key: your-openai-api-key
  # model: text-embedding-3-small
  # dimensions: 1536
  # batch_size: 100

cache:
  max_entries: 1000
  sweep_interval_minutes: 60

search:
  max_results: 10
  k_nearest: 5
  relevance_threshold: 0.6
  fulltext_fallback: true

storage:
  # path: ~/.blueprints-rag/data/blueprints.db
  include:
    - "**/*.rb"
    - "**/*.go"
`

// WriteDefaultTemplate creates a default configuration file if it does not exist.
// It returns true if a file was created, false if it already existed.
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
