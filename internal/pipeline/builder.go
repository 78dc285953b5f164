package pipeline

import (
	"container/heap"
	"fmt"
	"time"

	"github.com/b08x/blueprints-rag/internal/analysis"
	"github.com/b08x/blueprints-rag/internal/cache"
	"github.com/b08x/blueprints-rag/internal/logging"
)

// Mode selects how the pipeline schedules its processors.
type Mode string

const (
	// ModeSequential runs processors one after another. It guarantees every
	// enabled processor contributes before the merge.
	ModeSequential Mode = "sequential"
	// ModeParallel fans out one goroutine per processor and merges when all
	// finish or the overall timeout elapses, whichever comes first.
	// Processors still running at the deadline are recorded as timed out,
	// so a parallel record may be incomplete. Completeness reflects that.
	ModeParallel Mode = "parallel"
)

// DefaultParallelTimeout bounds a parallel run before merging.
const DefaultParallelTimeout = 5 * time.Second

// DefaultFeatureDimension is the length of the derived feature vector.
const DefaultFeatureDimension = 8

// DefaultMergedKeywords caps the merged keyword list.
const DefaultMergedKeywords = 20

// Options tunes pipeline execution and output.
type Options struct {
	Mode             Mode
	Timeout          time.Duration // overall deadline for parallel runs
	FeatureDimension int
	MergedKeywords   int
	Verbosity        analysis.Verbosity
}

func (o Options) withDefaults() Options {
	if o.Mode == "" {
		o.Mode = ModeSequential
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultParallelTimeout
	}
	if o.FeatureDimension <= 0 {
		o.FeatureDimension = DefaultFeatureDimension
	}
	if o.MergedKeywords <= 0 {
		o.MergedKeywords = DefaultMergedKeywords
	}
	if o.Verbosity == "" {
		o.Verbosity = analysis.VerbosityDetailed
	}
	return o
}

// ConfigurationError reports an unusable pipeline or service configuration.
// It is the only error class that crosses the service boundary as a hard
// failure.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "configuration error: " + e.Reason
}

type registration struct {
	kind     analysis.Kind
	priority int
	config   analysis.Config
	order    int
}

// Builder assembles a Pipeline from selected processors. Registrations are
// ordered by ascending priority, ties broken by registration order.
type Builder struct {
	regs   []registration
	opts   Options
	caches *cache.Manager
	logger logging.Logger
}

// NewBuilder creates a builder. caches may be nil to disable caching.
func NewBuilder(caches *cache.Manager, logger logging.Logger) *Builder {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Builder{caches: caches, logger: logger}
}

// With registers a processor kind at the given priority.
func (b *Builder) With(kind analysis.Kind, priority int, cfg analysis.Config) *Builder {
	b.regs = append(b.regs, registration{
		kind:     kind,
		priority: priority,
		config:   cfg,
		order:    len(b.regs),
	})
	return b
}

// Configure sets execution options.
func (b *Builder) Configure(opts Options) *Builder {
	b.opts = opts
	return b
}

// Build constructs the pipeline. Zero registrations or an unknown kind is a
// ConfigurationError.
func (b *Builder) Build() (*Pipeline, error) {
	if len(b.regs) == 0 {
		return nil, &ConfigurationError{Reason: "no processors registered"}
	}

	ordered := make(regHeap, len(b.regs))
	copy(ordered, b.regs)
	heap.Init(&ordered)

	opts := b.opts.withDefaults()
	procs := make([]analysis.Processor, 0, len(b.regs))
	digests := make([]string, 0, len(b.regs))
	for ordered.Len() > 0 {
		reg := heap.Pop(&ordered).(registration)
		proc, err := newProcessor(reg.kind, reg.config, b.caches, b.logger)
		if err != nil {
			return nil, err
		}
		procs = append(procs, proc)
		digests = append(digests, reg.config.Digest())
	}

	return newPipeline(procs, digests, opts, b.caches, b.logger), nil
}

// newProcessor resolves a kind to its constructor. The kind set is closed;
// there is no string dispatch after build time.
func newProcessor(kind analysis.Kind, cfg analysis.Config, caches *cache.Manager, logger logging.Logger) (analysis.Processor, error) {
	switch kind {
	case analysis.KindLexical:
		return analysis.NewLexicalProcessor(cfg, caches, logger), nil
	case analysis.KindSemantic:
		return analysis.NewSemanticProcessor(cfg, caches, logger), nil
	default:
		return nil, &ConfigurationError{Reason: fmt.Sprintf("unknown processor kind %q", kind)}
	}
}

// regHeap is a min-priority queue over registrations.
type regHeap []registration

func (h regHeap) Len() int { return len(h) }

func (h regHeap) Less(i, j int) bool {
	if h[i].priority != h[j].priority {
		return h[i].priority < h[j].priority
	}
	return h[i].order < h[j].order
}

func (h regHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *regHeap) Push(x interface{}) {
	*h = append(*h, x.(registration))
}

func (h *regHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
