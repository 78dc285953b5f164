package analysis

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestSemanticConceptMatch(t *testing.T) {
	p := NewSemanticProcessor(Config{}, nil, nil)

	frag, err := p.Process(context.Background(),
		"the http server validates the oauth token before touching the database")
	if err != nil {
		t.Fatalf("Process() error: %v", err)
	}

	want := map[string]bool{"networking": false, "authentication": false, "persistence": false}
	for _, c := range frag.Concepts {
		if _, ok := want[c]; ok {
			want[c] = true
		}
	}
	for concept, found := range want {
		if !found {
			t.Errorf("concepts %v missing %q", frag.Concepts, concept)
		}
	}
	if frag.Fallback {
		t.Error("fallback must be false when no lexicon path is configured")
	}
}

func TestSemanticFallbackMode(t *testing.T) {
	// Backing resource absent at construction: process still returns every
	// expected field with estimated values and the fallback marker.
	p := NewSemanticProcessor(Config{LexiconPath: "/nonexistent/lexicon.yaml"}, nil, nil)

	if !p.Fallback() {
		t.Fatal("processor should enter fallback mode when the lexicon is missing")
	}

	frag, err := p.Process(context.Background(), "weird unmatched gibberish vocabulary throughout")
	if err != nil {
		t.Fatalf("Process() error: %v", err)
	}
	if !frag.Fallback {
		t.Error("fragment must carry fallback=true")
	}
	if frag.Keywords == nil || frag.Entities == nil || frag.Concepts == nil {
		t.Error("fallback fragment must keep the same field set")
	}
	if len(frag.Concepts) == 0 {
		t.Error("fallback mode should estimate concepts from long tokens")
	}
}

func TestSemanticLexiconFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lexicon.yaml")
	lexicon := "concepts:\n  billing:\n    - invoice\n    - payment\n"
	if err := os.WriteFile(path, []byte(lexicon), 0o644); err != nil {
		t.Fatal(err)
	}

	p := NewSemanticProcessor(Config{LexiconPath: path}, nil, nil)
	if p.Fallback() {
		t.Fatal("lexicon loaded, fallback must be off")
	}

	frag, err := p.Process(context.Background(), "generates an invoice after payment clears")
	if err != nil {
		t.Fatalf("Process() error: %v", err)
	}
	if len(frag.Concepts) != 1 || frag.Concepts[0] != "billing" {
		t.Errorf("concepts = %v, want [billing]", frag.Concepts)
	}
}

func TestSemanticConceptCap(t *testing.T) {
	p := NewSemanticProcessor(Config{MaxConcepts: 2}, nil, nil)

	frag, err := p.Process(context.Background(),
		"auth token cache ttl http server test mock config yaml search index mutex goroutine sql database")
	if err != nil {
		t.Fatalf("Process() error: %v", err)
	}
	if len(frag.Concepts) > 2 {
		t.Errorf("len(concepts) = %d, want <= 2", len(frag.Concepts))
	}
}
