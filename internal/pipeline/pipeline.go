package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/b08x/blueprints-rag/internal/analysis"
	"github.com/b08x/blueprints-rag/internal/cache"
	"github.com/b08x/blueprints-rag/internal/logging"
)

// Metrics are pipeline-level operation counters.
type Metrics struct {
	Operations  int64
	CacheHits   int64
	Failures    int64
	MeanLatency time.Duration
}

// Pipeline sequences processors over a text and merges their fragments into
// one analysis record. Records are cached under the pipeline's config hash,
// so two pipelines with the same processors and options share results.
type Pipeline struct {
	procs      []analysis.Processor
	digests    []string
	opts       Options
	caches     *cache.Manager
	logger     logging.Logger
	configHash string

	mu      sync.Mutex
	metrics Metrics
}

func newPipeline(procs []analysis.Processor, digests []string, opts Options, caches *cache.Manager, logger logging.Logger) *Pipeline {
	if logger == nil {
		logger = logging.Nop()
	}
	if len(digests) < len(procs) {
		padded := make([]string, len(procs))
		copy(padded, digests)
		digests = padded
	}
	p := &Pipeline{
		procs:   procs,
		digests: digests,
		opts:    opts,
		caches:  caches,
		logger:  logger,
	}
	p.configHash = p.hashConfig()
	return p
}

// hashConfig digests everything that affects record content: processor
// order and per-processor configuration, scheduling mode and derivation
// settings. Verbosity is excluded, it only projects the cached record.
func (p *Pipeline) hashConfig() string {
	h := sha256.New()
	for i, proc := range p.procs {
		fmt.Fprintf(h, "%s{%s};", proc.Kind(), p.digests[i])
	}
	fmt.Fprintf(h, "mode=%s;dim=%d;keywords=%d", p.opts.Mode, p.opts.FeatureDimension, p.opts.MergedKeywords)
	return hex.EncodeToString(h.Sum(nil)[:16])
}

// ConfigHash identifies this pipeline configuration.
func (p *Pipeline) ConfigHash() string {
	return p.configHash
}

// Processors returns the processors in execution order.
func (p *Pipeline) Processors() []analysis.Processor {
	return p.procs
}

// Metrics returns a snapshot of the pipeline counters.
func (p *Pipeline) Metrics() Metrics {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.metrics
}

func (p *Pipeline) namespace() string {
	return cache.ClassPipeline + ":" + p.configHash
}

// Process runs text through the pipeline. It never fails: processor errors
// become partial fragments, a merge panic yields the partial record with
// Err set. The returned record is projected to the configured verbosity;
// the cache always holds the full record.
func (p *Pipeline) Process(ctx context.Context, text string) *analysis.Record {
	start := time.Now()
	key := analysis.TextHash(text)

	if record, ok := p.cachedRecord(key); ok {
		p.record(time.Since(start), true, record.Err == "")
		return record.View(p.opts.Verbosity)
	}

	record := p.compute(ctx, text, key)

	if p.caches != nil {
		p.caches.Store(p.namespace(), key, record)
	}
	p.record(time.Since(start), false, record.Err == "")
	return record.View(p.opts.Verbosity)
}

func (p *Pipeline) cachedRecord(key string) (*analysis.Record, bool) {
	if p.caches == nil {
		return nil, false
	}
	value, ok := p.caches.Get(p.namespace(), key)
	if !ok {
		return nil, false
	}
	record, ok := value.(*analysis.Record)
	return record, ok
}

func (p *Pipeline) compute(ctx context.Context, text, key string) (record *analysis.Record) {
	record = &analysis.Record{
		SourceHash: key,
		Fragments:  make(map[analysis.Kind]*analysis.Fragment, len(p.procs)),
		CreatedAt:  time.Now(),
	}

	// A failure past this point keeps whatever the record accumulated.
	defer func() {
		if r := recover(); r != nil {
			record.Err = fmt.Sprintf("pipeline merge failed: %v", r)
			p.logger.Error("pipeline merge failed", map[string]interface{}{
				"panic": fmt.Sprintf("%v", r),
			})
		}
	}()

	var fragments []*analysis.Fragment
	if p.opts.Mode == ModeParallel {
		fragments = p.runParallel(ctx, text)
	} else {
		fragments = p.runSequential(ctx, text)
	}
	for _, frag := range fragments {
		record.Fragments[frag.Kind] = frag
	}

	record.Combined = p.merge(fragments)
	record.Features = p.deriveFeatures(record.Combined, fragments)
	p.score(record, text, fragments)
	return record
}

// runSequential runs every processor in order. Errors and panics become
// fragments with Err set.
func (p *Pipeline) runSequential(ctx context.Context, text string) []*analysis.Fragment {
	fragments := make([]*analysis.Fragment, 0, len(p.procs))
	for _, proc := range p.procs {
		fragments = append(fragments, p.runOne(ctx, proc, text))
	}
	return fragments
}

// runParallel fans out one goroutine per processor and joins them all, or
// stops waiting at the overall timeout. Slots still empty at the deadline
// become timed-out fragments.
func (p *Pipeline) runParallel(ctx context.Context, text string) []*analysis.Fragment {
	ctx, cancel := context.WithTimeout(ctx, p.opts.Timeout)
	defer cancel()

	slots := make([]*analysis.Fragment, len(p.procs))
	var (
		mu   sync.Mutex
		wg   sync.WaitGroup
		done = make(chan struct{})
	)

	for i, proc := range p.procs {
		wg.Add(1)
		go func(i int, proc analysis.Processor) {
			defer wg.Done()
			frag := p.runOne(ctx, proc, text)
			mu.Lock()
			slots[i] = frag
			mu.Unlock()
		}(i, proc)
	}
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
	}

	mu.Lock()
	defer mu.Unlock()
	fragments := make([]*analysis.Fragment, len(p.procs))
	for i, frag := range slots {
		if frag == nil {
			frag = &analysis.Fragment{
				Kind: p.procs[i].Kind(),
				Err:  "processing timed out",
			}
			p.logger.Warn("processor timed out", map[string]interface{}{
				"kind":    string(p.procs[i].Kind()),
				"timeout": p.opts.Timeout.String(),
			})
		}
		fragments[i] = frag
	}
	return fragments
}

// runOne converts any processor failure, error or panic, into a partial
// fragment. Nothing escapes the pipeline.
func (p *Pipeline) runOne(ctx context.Context, proc analysis.Processor, text string) (frag *analysis.Fragment) {
	defer func() {
		if r := recover(); r != nil {
			frag = &analysis.Fragment{
				Kind: proc.Kind(),
				Err:  fmt.Sprintf("processor panic: %v", r),
			}
			p.logger.Error("processor panicked", map[string]interface{}{
				"kind":  string(proc.Kind()),
				"panic": fmt.Sprintf("%v", r),
			})
		}
	}()

	frag, err := proc.Process(ctx, text)
	if err != nil {
		p.logger.Warn("processor failed", map[string]interface{}{
			"kind":  string(proc.Kind()),
			"error": err.Error(),
		})
		return &analysis.Fragment{Kind: proc.Kind(), Err: err.Error()}
	}
	if frag == nil {
		return &analysis.Fragment{Kind: proc.Kind(), Err: "processor returned no fragment"}
	}
	return frag
}

// merge concatenates fragment outputs. Keywords dedupe by lower-cased text
// keeping the max score per duplicate, sorted by score then text, truncated
// to the configured cap. Entities and concepts dedupe preserving first
// appearance.
func (p *Pipeline) merge(fragments []*analysis.Fragment) analysis.Combined {
	best := make(map[string]analysis.Keyword)
	var combined analysis.Combined

	seenEntity := make(map[string]struct{})
	seenConcept := make(map[string]struct{})
	for _, frag := range fragments {
		for _, kw := range frag.Keywords {
			canon := strings.ToLower(kw.Text)
			if prev, ok := best[canon]; !ok || kw.Score > prev.Score {
				best[canon] = kw
			}
		}
		for _, entity := range frag.Entities {
			if _, ok := seenEntity[entity]; ok {
				continue
			}
			seenEntity[entity] = struct{}{}
			combined.Entities = append(combined.Entities, entity)
		}
		for _, concept := range frag.Concepts {
			if _, ok := seenConcept[concept]; ok {
				continue
			}
			seenConcept[concept] = struct{}{}
			combined.Concepts = append(combined.Concepts, concept)
		}
	}

	combined.Keywords = make([]analysis.Keyword, 0, len(best))
	for _, kw := range best {
		combined.Keywords = append(combined.Keywords, kw)
	}
	sort.Slice(combined.Keywords, func(i, j int) bool {
		if combined.Keywords[i].Score != combined.Keywords[j].Score {
			return combined.Keywords[i].Score > combined.Keywords[j].Score
		}
		return combined.Keywords[i].Text < combined.Keywords[j].Text
	})
	if len(combined.Keywords) > p.opts.MergedKeywords {
		combined.Keywords = combined.Keywords[:p.opts.MergedKeywords]
	}
	return combined
}

// deriveFeatures builds the fixed-length feature vector: density ratios of
// the combined lists over their configured caps, then up to two complexity
// scalars picked in stable name order, zero-padded to the configured
// dimension.
func (p *Pipeline) deriveFeatures(combined analysis.Combined, fragments []*analysis.Fragment) []float32 {
	features := make([]float32, 0, p.opts.FeatureDimension)
	features = append(features,
		ratio(len(combined.Keywords), p.opts.MergedKeywords),
		ratio(len(combined.Entities), 10),
		ratio(len(combined.Concepts), 10),
	)

	names := make([]string, 0, 4)
	values := make(map[string]float64)
	for _, frag := range fragments {
		for name, value := range frag.Complexity {
			if _, ok := values[name]; !ok {
				names = append(names, name)
			}
			values[name] = value
		}
	}
	sort.Strings(names)
	for i, name := range names {
		if i == 2 {
			break
		}
		features = append(features, clamp32(values[name]))
	}

	for len(features) < p.opts.FeatureDimension {
		features = append(features, 0)
	}
	return features[:p.opts.FeatureDimension]
}

// score fills the record's quality scores, each clamped to [0, 1].
func (p *Pipeline) score(record *analysis.Record, text string, fragments []*analysis.Fragment) {
	if len(text) > 0 {
		density := float64(record.Combined.FeatureCount()) / float64(len(text)) * 1000
		record.InformationDensity = clamp(density)
	}

	ran := 0
	for _, frag := range fragments {
		if frag.Err == "" {
			ran++
		}
	}
	if len(p.procs) > 0 {
		record.Completeness = float64(ran) / float64(len(p.procs))
	}

	nonEmpty := 0
	if len(record.Combined.Keywords) > 0 {
		nonEmpty++
	}
	if len(record.Combined.Entities) > 0 {
		nonEmpty++
	}
	if len(record.Combined.Concepts) > 0 {
		nonEmpty++
	}
	record.Quality = float64(nonEmpty) / 3
}

func (p *Pipeline) record(elapsed time.Duration, hit, success bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.metrics.Operations++
	if hit {
		p.metrics.CacheHits++
	}
	if !success {
		p.metrics.Failures++
	}
	n := p.metrics.Operations
	p.metrics.MeanLatency += (elapsed - p.metrics.MeanLatency) / time.Duration(n)
}

func ratio(n, denom int) float32 {
	if denom <= 0 {
		return 0
	}
	return clamp32(float64(n) / float64(denom))
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func clamp32(v float64) float32 {
	return float32(clamp(v))
}
