package analysis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/b08x/blueprints-rag/internal/cache"
	"github.com/b08x/blueprints-rag/internal/logging"
)

// Processor turns text into a structured analysis fragment. Implementations
// own their cache namespace and must be safe for concurrent use. A returned
// error is converted into a partial fragment at the call site; it never
// propagates past the pipeline.
type Processor interface {
	Kind() Kind
	Process(ctx context.Context, text string) (*Fragment, error)
	Metrics() Metrics
}

// Config carries per-processor settings.
type Config struct {
	MaxKeywords int    // cap on extracted keywords, default 20
	MaxEntities int    // cap on extracted entities, default 10
	MaxConcepts int    // cap on extracted concepts, default 10
	LexiconPath string // semantic processor: optional concept lexicon file
}

func (c Config) withDefaults() Config {
	if c.MaxKeywords <= 0 {
		c.MaxKeywords = 20
	}
	if c.MaxEntities <= 0 {
		c.MaxEntities = 10
	}
	if c.MaxConcepts <= 0 {
		c.MaxConcepts = 10
	}
	return c
}

// Digest is a stable token of every setting that affects processor output.
// It is folded into cache keys so differently configured processors never
// share entries.
func (c Config) Digest() string {
	c = c.withDefaults()
	return fmt.Sprintf("kw%d-en%d-co%d-%s", c.MaxKeywords, c.MaxEntities, c.MaxConcepts, c.LexiconPath)
}

// Metrics are per-processor operation counters with a rolling mean latency.
type Metrics struct {
	Operations  int64
	Successes   int64
	CacheHits   int64
	MeanLatency time.Duration
}

// base carries the cache hookup and metrics shared by every processor
// variant.
type base struct {
	kind      Kind
	cfgDigest string
	caches    *cache.Manager
	logger    logging.Logger

	mu      sync.Mutex
	metrics Metrics
}

func newBase(kind Kind, cfg Config, caches *cache.Manager, logger logging.Logger) base {
	if logger == nil {
		logger = logging.Nop()
	}
	return base{kind: kind, cfgDigest: cfg.Digest(), caches: caches, logger: logger}
}

func (b *base) Kind() Kind {
	return b.kind
}

func (b *base) Metrics() Metrics {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.metrics
}

func (b *base) namespace() string {
	return cache.ClassAnalysis + ":" + string(b.kind)
}

// cacheKey scopes a text hash to this processor's configuration.
func (b *base) cacheKey(textHash string) string {
	return b.cfgDigest + ":" + textHash
}

// cachedFragment checks the processor's cache namespace for a prior result.
func (b *base) cachedFragment(key string) (*Fragment, bool) {
	if b.caches == nil {
		return nil, false
	}
	value, ok := b.caches.Get(b.namespace(), b.cacheKey(key))
	if !ok {
		return nil, false
	}
	frag, ok := value.(*Fragment)
	if !ok {
		// Treat a foreign value as a miss rather than surfacing an error.
		return nil, false
	}
	b.mu.Lock()
	b.metrics.CacheHits++
	b.mu.Unlock()
	return frag, true
}

func (b *base) storeFragment(key string, frag *Fragment) {
	if b.caches == nil {
		return
	}
	b.caches.Store(b.namespace(), b.cacheKey(key), frag)
}

// record updates the operation counters. The rolling mean uses the
// incremental form avg += (d - avg) / n.
func (b *base) record(elapsed time.Duration, success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.metrics.Operations++
	if success {
		b.metrics.Successes++
	}
	n := b.metrics.Operations
	b.metrics.MeanLatency += (elapsed - b.metrics.MeanLatency) / time.Duration(n)
}
