package embedding

import (
	"context"
	"time"

	"github.com/b08x/blueprints-rag/internal/cache"
	"github.com/b08x/blueprints-rag/internal/logging"
)

// cachedProvider wraps a backend with the per-provider cache namespace
// (`embedding:<provider>:<model>`), keyed by (truncated text hash, model,
// normalize flag). Caching is opt-out per call via Options.NoCache.
type cachedProvider struct {
	inner  Provider
	caches *cache.Manager
	logger logging.Logger
}

func newCachedProvider(inner Provider, caches *cache.Manager, logger logging.Logger) Provider {
	if caches == nil {
		return inner
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &cachedProvider{inner: inner, caches: caches, logger: logger}
}

func (c *cachedProvider) Name() string  { return c.inner.Name() }
func (c *cachedProvider) Model() string { return c.inner.Model() }

func (c *cachedProvider) Dimensions() int {
	return c.inner.Dimensions()
}

func (c *cachedProvider) Healthy(ctx context.Context) bool {
	return c.inner.Healthy(ctx)
}

func (c *cachedProvider) model(opts Options) string {
	if opts.Model != "" {
		return opts.Model
	}
	return c.inner.Model()
}

func (c *cachedProvider) namespace(model string) string {
	return cache.ClassEmbedding + ":" + c.inner.Name() + ":" + model
}

// Embed returns the cached vector when present. Empty text yields an empty
// vector with no cache write.
func (c *cachedProvider) Embed(ctx context.Context, text string, opts Options) ([]float32, error) {
	if text == "" {
		return []float32{}, nil
	}

	model := c.model(opts)
	key := CacheKey(text, model, opts.Normalize)
	ns := c.namespace(model)

	if !opts.NoCache {
		if value, ok := c.caches.Get(ns, key); ok {
			if vec, ok := value.([]float32); ok {
				return cloneVector(vec), nil
			}
		}
	}

	vec, err := c.callEmbed(ctx, text, opts)
	if err != nil {
		return nil, err
	}

	if !opts.NoCache && len(vec) > 0 {
		c.caches.Store(ns, key, cloneVector(vec))
	}
	return vec, nil
}

// EmbedBatch serves cached entries and forwards only the misses to the
// backend's batch API.
func (c *cachedProvider) EmbedBatch(ctx context.Context, texts []string, opts Options) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	model := c.model(opts)
	ns := c.namespace(model)

	out := make([][]float32, len(texts))
	missTexts := make([]string, 0, len(texts))
	missIdx := make([]int, 0, len(texts))

	for i, text := range texts {
		if text == "" {
			out[i] = []float32{}
			continue
		}
		if !opts.NoCache {
			if value, ok := c.caches.Get(ns, CacheKey(text, model, opts.Normalize)); ok {
				if vec, ok := value.([]float32); ok {
					out[i] = cloneVector(vec)
					continue
				}
			}
		}
		missTexts = append(missTexts, text)
		missIdx = append(missIdx, i)
	}

	if len(missTexts) == 0 {
		return out, nil
	}

	ctx, cancel := withTimeout(ctx, opts.Timeout)
	defer cancel()

	vectors, err := c.inner.EmbedBatch(ctx, missTexts, opts)
	if err != nil {
		return nil, err
	}
	for j, vec := range vectors {
		out[missIdx[j]] = vec
		if !opts.NoCache && len(vec) > 0 {
			c.caches.Store(ns, CacheKey(missTexts[j], model, opts.Normalize), cloneVector(vec))
		}
	}
	return out, nil
}

func (c *cachedProvider) callEmbed(ctx context.Context, text string, opts Options) ([]float32, error) {
	ctx, cancel := withTimeout(ctx, opts.Timeout)
	defer cancel()
	return c.inner.Embed(ctx, text, opts)
}

// withTimeout applies the caller-supplied per-call deadline, when given.
func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout > 0 {
		return context.WithTimeout(ctx, timeout)
	}
	return ctx, func() {}
}

func cloneVector(v []float32) []float32 {
	out := make([]float32, len(v))
	copy(out, v)
	return out
}
