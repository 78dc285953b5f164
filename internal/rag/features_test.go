package rag

import (
	"testing"

	"github.com/b08x/blueprints-rag/internal/store"
)

func TestExtractCodeFeaturesGo(t *testing.T) {
	bp := &store.Blueprint{
		ID:   "bp-1",
		Name: "watcher.go",
		Code: `package watcher

import (
	"context"
	"time"
)

// Watch polls until the context is cancelled.
func Watch(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		time.Sleep(time.Second)
	}
}

func TestWatch(t *testing.T) {}
`,
		Tags: []string{"go"},
	}

	features := ExtractCodeFeatures(bp)

	if features.Language != "go" {
		t.Errorf("language = %s, want go", features.Language)
	}
	if features.FunctionCount != 2 {
		t.Errorf("function count = %d, want 2", features.FunctionCount)
	}
	if features.CommentRatio <= 0 {
		t.Error("comment ratio not detected")
	}
	if features.Complexity <= 0 {
		t.Error("branching code scored zero complexity")
	}

	imports := make(map[string]bool)
	for _, imp := range features.Imports {
		imports[imp] = true
	}
	if !imports["context"] || !imports["time"] {
		t.Errorf("imports = %v, want context and time", features.Imports)
	}

	patterns := make(map[string]bool)
	for _, p := range features.Patterns {
		patterns[p] = true
	}
	if !patterns["error_handling"] {
		t.Errorf("patterns = %v, want error_handling", features.Patterns)
	}
	if !patterns["testing"] {
		t.Errorf("patterns = %v, want testing", features.Patterns)
	}
}

func TestExtractCodeFeaturesRuby(t *testing.T) {
	bp := &store.Blueprint{
		ID:   "bp-2",
		Name: "worker.rb",
		Code: `require 'json'

class Worker
  def perform(payload)
    data = JSON.parse(payload)
  rescue JSON::ParserError
    nil
  end
end
`,
	}

	features := ExtractCodeFeatures(bp)

	if features.Language != "ruby" {
		t.Errorf("language = %s, want ruby (heuristic, no tag)", features.Language)
	}
	if features.FunctionCount != 1 {
		t.Errorf("function count = %d, want 1", features.FunctionCount)
	}
	if len(features.Imports) != 1 || features.Imports[0] != "json" {
		t.Errorf("imports = %v, want [json]", features.Imports)
	}

	patterns := make(map[string]bool)
	for _, p := range features.Patterns {
		patterns[p] = true
	}
	if !patterns["class_based"] || !patterns["error_handling"] {
		t.Errorf("patterns = %v, want class_based and error_handling", features.Patterns)
	}
}

func TestExtractCodeFeaturesEmpty(t *testing.T) {
	features := ExtractCodeFeatures(&store.Blueprint{ID: "bp-3", Name: "empty"})

	if features.LineCount != 0 || features.FunctionCount != 0 {
		t.Errorf("empty code produced features: %+v", features)
	}
	if features.Language != "unknown" {
		t.Errorf("language = %s, want unknown", features.Language)
	}
}
