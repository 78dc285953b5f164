package analysis

import (
	"context"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/b08x/blueprints-rag/internal/cache"
	"github.com/b08x/blueprints-rag/internal/logging"
)

// conceptLexicon maps a concept name to the terms that signal it.
type conceptLexicon struct {
	Concepts map[string][]string `yaml:"concepts"`
}

// defaultLexicon covers the concepts the blueprint corpus cares about most.
// A lexicon file, when configured and readable, replaces it entirely.
var defaultLexicon = map[string][]string{
	"authentication": {"auth", "login", "password", "token", "session", "oauth", "credential"},
	"persistence":    {"database", "sql", "sqlite", "storage", "save", "query", "repository", "migration"},
	"networking":     {"http", "request", "response", "server", "client", "socket", "api", "endpoint"},
	"concurrency":    {"goroutine", "thread", "mutex", "lock", "channel", "async", "parallel", "worker"},
	"caching":        {"cache", "ttl", "evict", "expire", "memoize", "lru"},
	"search":         {"search", "index", "query", "rank", "match", "retrieval", "relevance"},
	"testing":        {"test", "assert", "mock", "fixture", "coverage", "spec"},
	"configuration":  {"config", "setting", "option", "yaml", "environment", "flag"},
}

// SemanticProcessor maps surface terms to higher-level concepts through a
// concept lexicon. The lexicon file is an optional backing resource: when it
// is configured but absent at construction, the processor runs in fallback
// mode and estimates concepts from the built-in lexicon plus long salient
// tokens, marking every fragment with Fallback=true.
type SemanticProcessor struct {
	base
	cfg      Config
	lexicon  map[string][]string
	fallback bool
}

// NewSemanticProcessor creates a semantic processor. A missing or unreadable
// lexicon file degrades to fallback mode rather than failing construction.
func NewSemanticProcessor(cfg Config, caches *cache.Manager, logger logging.Logger) *SemanticProcessor {
	cfg = cfg.withDefaults()
	p := &SemanticProcessor{
		base:    newBase(KindSemantic, cfg, caches, logger),
		cfg:     cfg,
		lexicon: defaultLexicon,
	}

	if cfg.LexiconPath != "" {
		lexicon, err := loadLexicon(cfg.LexiconPath)
		if err != nil {
			p.fallback = true
			p.logger.Warn("concept lexicon unavailable, running in fallback mode", map[string]interface{}{
				"path":  cfg.LexiconPath,
				"error": err.Error(),
			})
		} else {
			p.lexicon = lexicon
		}
	}
	return p
}

// Fallback reports whether the processor is running without its configured
// lexicon.
func (p *SemanticProcessor) Fallback() bool {
	return p.fallback
}

// Process analyzes text and returns the semantic fragment.
func (p *SemanticProcessor) Process(ctx context.Context, text string) (*Fragment, error) {
	start := time.Now()

	key := TextHash(text)
	if frag, ok := p.cachedFragment(key); ok {
		p.record(time.Since(start), true)
		return frag, nil
	}

	if err := ctx.Err(); err != nil {
		p.record(time.Since(start), false)
		return nil, err
	}

	tokens := tokenize(text)
	concepts := p.matchConcepts(tokens)
	if p.fallback && len(concepts) == 0 {
		concepts = estimateConcepts(tokens, p.cfg.MaxConcepts)
	}

	frag := &Fragment{
		Kind:     KindSemantic,
		Keywords: []Keyword{},
		Entities: []string{},
		Concepts: concepts,
		Complexity: map[string]float64{
			"sentence_density": sentenceDensity(text),
		},
		Fallback: p.fallback,
		Elapsed:  time.Since(start),
	}

	p.storeFragment(key, frag)
	p.record(time.Since(start), true)
	return frag, nil
}

// matchConcepts returns every lexicon concept whose terms appear in tokens,
// strongest signal first.
func (p *SemanticProcessor) matchConcepts(tokens []string) []string {
	present := make(map[string]bool, len(tokens))
	for _, tok := range tokens {
		present[strings.ToLower(tok)] = true
	}

	type scored struct {
		concept string
		hits    int
	}
	matches := []scored{}
	for concept, terms := range p.lexicon {
		hits := 0
		for _, term := range terms {
			if present[term] {
				hits++
			}
		}
		if hits > 0 {
			matches = append(matches, scored{concept: concept, hits: hits})
		}
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].hits != matches[j].hits {
			return matches[i].hits > matches[j].hits
		}
		return matches[i].concept < matches[j].concept
	})

	concepts := make([]string, 0, len(matches))
	for _, m := range matches {
		concepts = append(concepts, m.concept)
		if len(concepts) >= p.cfg.MaxConcepts {
			break
		}
	}
	return concepts
}

// estimateConcepts is the fallback path: long distinctive tokens stand in
// for lexicon concepts.
func estimateConcepts(tokens []string, limit int) []string {
	seen := make(map[string]bool)
	concepts := []string{}
	for _, tok := range tokens {
		lower := strings.ToLower(tok)
		if len(lower) < 7 || stopwords[lower] || seen[lower] {
			continue
		}
		seen[lower] = true
		concepts = append(concepts, lower)
		if len(concepts) >= limit {
			break
		}
	}
	return concepts
}

func sentenceDensity(text string) float64 {
	if len(text) == 0 {
		return 0
	}
	sentences := 0
	for _, r := range text {
		if r == '.' || r == '!' || r == '?' || r == '\n' {
			sentences++
		}
	}
	if sentences == 0 {
		sentences = 1
	}
	mean := float64(len(text)) / float64(sentences)
	// Normalize mean sentence length against a 200-char bound.
	if mean > 200 {
		return 1
	}
	return mean / 200
}

func loadLexicon(path string) (map[string][]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var lex conceptLexicon
	if err := yaml.Unmarshal(data, &lex); err != nil {
		return nil, err
	}
	normalized := make(map[string][]string, len(lex.Concepts))
	for concept, terms := range lex.Concepts {
		lowered := make([]string, len(terms))
		for i, term := range terms {
			lowered[i] = strings.ToLower(term)
		}
		normalized[strings.ToLower(concept)] = lowered
	}
	return normalized, nil
}
