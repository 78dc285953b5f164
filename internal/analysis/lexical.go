package analysis

import (
	"context"
	"sort"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/b08x/blueprints-rag/internal/cache"
	"github.com/b08x/blueprints-rag/internal/logging"
)

// stopwords are never emitted as keywords.
var stopwords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true,
	"be": true, "but": true, "by": true, "for": true, "from": true,
	"has": true, "have": true, "in": true, "into": true, "is": true,
	"it": true, "its": true, "of": true, "on": true, "or": true,
	"that": true, "the": true, "this": true, "to": true, "was": true,
	"were": true, "which": true, "with": true, "will": true, "not": true,
}

// LexicalProcessor extracts scored keywords and named entities from surface
// tokens: frequency-scored terms, capitalized words and code-style
// identifiers.
type LexicalProcessor struct {
	base
	cfg Config
}

// NewLexicalProcessor creates a lexical processor. caches may be nil, in
// which case every call recomputes.
func NewLexicalProcessor(cfg Config, caches *cache.Manager, logger logging.Logger) *LexicalProcessor {
	cfg = cfg.withDefaults()
	return &LexicalProcessor{
		base: newBase(KindLexical, cfg, caches, logger),
		cfg:  cfg,
	}
}

// Process analyzes text and returns the lexical fragment.
func (p *LexicalProcessor) Process(ctx context.Context, text string) (*Fragment, error) {
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
	frag := &Fragment{
		Kind:     KindLexical,
		Keywords: p.extractKeywords(tokens),
		Entities: p.extractEntities(text),
		Concepts: []string{},
		Complexity: map[string]float64{
			"mean_token_length": meanTokenLength(tokens),
			"lexical_diversity": lexicalDiversity(tokens),
		},
		Elapsed: time.Since(start),
	}

	p.storeFragment(key, frag)
	p.record(time.Since(start), true)
	return frag, nil
}

// extractKeywords scores tokens by relative frequency and keeps the top
// MaxKeywords.
func (p *LexicalProcessor) extractKeywords(tokens []string) []Keyword {
	freq := make(map[string]int)
	maxFreq := 0
	for _, tok := range tokens {
		lower := strings.ToLower(tok)
		if len(lower) < 3 || stopwords[lower] {
			continue
		}
		freq[lower]++
		if freq[lower] > maxFreq {
			maxFreq = freq[lower]
		}
	}
	if maxFreq == 0 {
		return []Keyword{}
	}

	keywords := make([]Keyword, 0, len(freq))
	for text, count := range freq {
		keywords = append(keywords, Keyword{
			Text:  text,
			Score: float64(count) / float64(maxFreq),
		})
	}
	sort.Slice(keywords, func(i, j int) bool {
		if keywords[i].Score != keywords[j].Score {
			return keywords[i].Score > keywords[j].Score
		}
		return keywords[i].Text < keywords[j].Text
	})
	if len(keywords) > p.cfg.MaxKeywords {
		keywords = keywords[:p.cfg.MaxKeywords]
	}
	return keywords
}

// extractEntities collects capitalized words and code-style identifiers
// (CamelCase, snake_case, dotted paths).
func (p *LexicalProcessor) extractEntities(text string) []string {
	seen := make(map[string]bool)
	entities := []string{}

	add := func(e string) {
		if len(e) < 2 || seen[e] {
			return
		}
		seen[e] = true
		entities = append(entities, e)
	}

	for _, field := range strings.Fields(text) {
		word := strings.Trim(field, ".,;:!?()[]{}\"'`")
		if word == "" {
			continue
		}
		first, _ := utf8.DecodeRuneInString(word)
		switch {
		case isIdentifier(word):
			add(word)
		case unicode.IsUpper(first) && !stopwords[strings.ToLower(word)]:
			add(word)
		}
		if len(entities) >= p.cfg.MaxEntities {
			break
		}
	}
	return entities
}

// isIdentifier reports whether word looks like a code identifier rather
// than prose.
func isIdentifier(word string) bool {
	if strings.ContainsAny(word, "_.") && !strings.HasPrefix(word, ".") && !strings.HasSuffix(word, ".") {
		return true
	}
	// CamelCase: lowercase followed by uppercase somewhere inside.
	var prev rune
	for i, r := range word {
		if i > 0 && unicode.IsUpper(r) && unicode.IsLower(prev) {
			return true
		}
		prev = r
	}
	return false
}

// tokenize splits text on any non-letter, non-digit rune.
func tokenize(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func meanTokenLength(tokens []string) float64 {
	if len(tokens) == 0 {
		return 0
	}
	total := 0
	for _, tok := range tokens {
		total += len(tok)
	}
	mean := float64(total) / float64(len(tokens))
	// Normalize against a generous upper bound so the scalar stays in [0,1].
	if mean > 12 {
		return 1
	}
	return mean / 12
}

func lexicalDiversity(tokens []string) float64 {
	if len(tokens) == 0 {
		return 0
	}
	unique := make(map[string]bool, len(tokens))
	for _, tok := range tokens {
		unique[strings.ToLower(tok)] = true
	}
	return float64(len(unique)) / float64(len(tokens))
}
