package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "blueprints.yaml")
	data := `
processors:
  - kind: lexical
    priority: 1

pipeline:
  mode: parallel
  timeout_seconds: 2

embedding:
  provider: hash
  dimensions: 32

search:
  relevance_threshold: 0.4
  fulltext_fallback: true
`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile() error: %v", err)
	}

	if len(cfg.Processors) != 1 || cfg.Processors[0].Kind != "lexical" {
		t.Errorf("processors = %+v, want the configured lexical processor", cfg.Processors)
	}
	if cfg.Pipeline.Mode != "parallel" || cfg.Pipeline.TimeoutSeconds != 2 {
		t.Errorf("pipeline = %+v", cfg.Pipeline)
	}
	if cfg.Embedding.Dimensions != 32 {
		t.Errorf("dimensions = %d, want 32", cfg.Embedding.Dimensions)
	}
	if cfg.Search.RelevanceThreshold != 0.4 {
		t.Errorf("relevance_threshold = %v, want 0.4", cfg.Search.RelevanceThreshold)
	}

	// Defaults fill in what the file left out.
	if cfg.Cache.MaxEntries != 1000 {
		t.Errorf("cache max_entries default = %d, want 1000", cfg.Cache.MaxEntries)
	}
	if cfg.Search.MaxResults != 10 {
		t.Errorf("max_results default = %d, want 10", cfg.Search.MaxResults)
	}
	if cfg.Search.ExactWeight != 0.5 {
		t.Errorf("exact_weight default = %v, want 0.5", cfg.Search.ExactWeight)
	}
}

func TestLoadFromFileNotFound(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	if !IsConfigNotFound(err) {
		t.Errorf("error = %v, want ConfigNotFoundError", err)
	}
}

func TestDefaultValidates(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config failed validation: %v", err)
	}
	if cfg.Embedding.Provider != "hash" {
		t.Errorf("default provider = %s, want hash", cfg.Embedding.Provider)
	}
	if len(cfg.Processors) != 2 {
		t.Errorf("default processors = %+v, want lexical + semantic", cfg.Processors)
	}
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown processor kind", func(c *Config) { c.Processors[0].Kind = "phonetic" }},
		{"bad pipeline mode", func(c *Config) { c.Pipeline.Mode = "eventually" }},
		{"bad verbosity", func(c *Config) { c.Pipeline.Verbosity = "chatty" }},
		{"openai without key", func(c *Config) { c.Embedding.Provider = "openai" }},
		{"unknown provider", func(c *Config) { c.Embedding.Provider = "cohere" }},
		{"threshold out of range", func(c *Config) { c.Search.RelevanceThreshold = 1.5 }},
		{"bad log level", func(c *Config) { c.Logging.Level = "trace" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestWriteDefaultTemplate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config", "blueprints.yaml")

	created, err := WriteDefaultTemplate(path)
	if err != nil {
		t.Fatalf("WriteDefaultTemplate() error: %v", err)
	}
	if !created {
		t.Error("expected template to be created")
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("template does not load: %v", err)
	}
	if cfg.Embedding.Provider != "hash" {
		t.Errorf("template provider = %s, want hash", cfg.Embedding.Provider)
	}

	created, err = WriteDefaultTemplate(path)
	if err != nil {
		t.Fatalf("WriteDefaultTemplate() second call error: %v", err)
	}
	if created {
		t.Error("second call must not overwrite the existing file")
	}
}
