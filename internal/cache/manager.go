package cache

import (
	"strings"
	"sync"
	"time"

	"github.com/b08x/blueprints-rag/internal/logging"
)

// Namespace classes. The class is the namespace segment before the first
// colon and selects the default TTL: heavy linguistic analysis is cheap to
// keep for a day, embeddings are the most expensive to recompute, whole
// pipeline composites sit in between.
const (
	ClassAnalysis  = "analysis"
	ClassEmbedding = "embedding"
	ClassPipeline  = "pipeline"
)

// Default TTLs per namespace class.
const (
	DefaultAnalysisTTL  = 24 * time.Hour
	DefaultEmbeddingTTL = 7 * 24 * time.Hour
	DefaultPipelineTTL  = 12 * time.Hour
	DefaultTTL          = time.Hour
)

// DefaultSweepInterval is how often the background sweeper visits every
// namespace.
const DefaultSweepInterval = time.Hour

// NamespaceStats are the per-namespace operation counters.
type NamespaceStats struct {
	Stores  int64
	Gets    int64
	Hits    int64
	Misses  int64
	Entries int
}

// ManagerOptions configures a Manager.
type ManagerOptions struct {
	MaxEntries    int           // per-namespace entry bound, DefaultMaxEntries if <= 0
	SweepInterval time.Duration // DefaultSweepInterval if <= 0
	AnalysisTTL   time.Duration
	EmbeddingTTL  time.Duration
	PipelineTTL   time.Duration
	Logger        logging.Logger
}

// Manager is a facade over specialized cache namespaces: one per processor
// kind, one per embedding provider+model, one per pipeline-config hash.
// Each namespace is an independent ResultCache with its own lock, so a
// sweep or a burst of stores on one namespace cannot starve another.
type Manager struct {
	mu         sync.RWMutex
	namespaces map[string]*ResultCache
	counters   map[string]*NamespaceStats

	opts   ManagerOptions
	logger logging.Logger

	sweepOnce sync.Once
	closeOnce sync.Once
	stop      chan struct{}
	done      sync.WaitGroup
}

// NewManager creates a cache manager.
func NewManager(opts ManagerOptions) *Manager {
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = DefaultSweepInterval
	}
	if opts.AnalysisTTL <= 0 {
		opts.AnalysisTTL = DefaultAnalysisTTL
	}
	if opts.EmbeddingTTL <= 0 {
		opts.EmbeddingTTL = DefaultEmbeddingTTL
	}
	if opts.PipelineTTL <= 0 {
		opts.PipelineTTL = DefaultPipelineTTL
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Nop()
	}

	return &Manager{
		namespaces: make(map[string]*ResultCache),
		counters:   make(map[string]*NamespaceStats),
		opts:       opts,
		logger:     logger,
		stop:       make(chan struct{}),
	}
}

// Store caches value in namespace under key using the class default TTL.
func (m *Manager) Store(namespace, key string, value interface{}) {
	m.StoreTTL(namespace, key, value, m.TTLFor(namespace))
}

// StoreTTL caches value with an explicit TTL (zero = never expires by age).
func (m *Manager) StoreTTL(namespace, key string, value interface{}, ttl time.Duration) {
	ns, stats := m.namespace(namespace)

	m.mu.Lock()
	stats.Stores++
	m.mu.Unlock()

	ns.Store(key, value, ttl)
}

// Get fetches a value from a namespace. A miss on an unknown namespace is
// still counted.
func (m *Manager) Get(namespace, key string) (interface{}, bool) {
	ns, stats := m.namespace(namespace)

	value, ok := ns.Get(key)

	m.mu.Lock()
	stats.Gets++
	if ok {
		stats.Hits++
	} else {
		stats.Misses++
	}
	m.mu.Unlock()

	if !ok {
		m.logger.Debug("cache miss", map[string]interface{}{
			"namespace": namespace,
			"key":       key,
		})
	}
	return value, ok
}

// Delete removes key from namespace if present.
func (m *Manager) Delete(namespace, key string) {
	m.mu.RLock()
	ns := m.namespaces[namespace]
	m.mu.RUnlock()
	if ns != nil {
		ns.Delete(key)
	}
}

// Clear empties a single namespace.
func (m *Manager) Clear(namespace string) {
	m.mu.RLock()
	ns := m.namespaces[namespace]
	m.mu.RUnlock()
	if ns != nil {
		ns.Clear()
	}
}

// ClearAll empties every namespace.
func (m *Manager) ClearAll() {
	m.mu.RLock()
	caches := make([]*ResultCache, 0, len(m.namespaces))
	for _, ns := range m.namespaces {
		caches = append(caches, ns)
	}
	m.mu.RUnlock()

	for _, ns := range caches {
		ns.Clear()
	}
}

// TTLFor returns the default TTL for a namespace based on its class.
func (m *Manager) TTLFor(namespace string) time.Duration {
	class := namespace
	if i := strings.IndexByte(namespace, ':'); i >= 0 {
		class = namespace[:i]
	}
	switch class {
	case ClassAnalysis:
		return m.opts.AnalysisTTL
	case ClassEmbedding:
		return m.opts.EmbeddingTTL
	case ClassPipeline:
		return m.opts.PipelineTTL
	default:
		return DefaultTTL
	}
}

// Stats returns a copy of the per-namespace counters.
func (m *Manager) Stats() map[string]NamespaceStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]NamespaceStats, len(m.counters))
	for name, stats := range m.counters {
		snapshot := *stats
		if ns := m.namespaces[name]; ns != nil {
			snapshot.Entries = ns.Len()
		}
		out[name] = snapshot
	}
	return out
}

// SweepAll sweeps every namespace synchronously and returns total removals.
// The background sweeper calls the per-namespace variant asynchronously.
func (m *Manager) SweepAll() int {
	m.mu.RLock()
	names := make([]string, 0, len(m.namespaces))
	for name := range m.namespaces {
		names = append(names, name)
	}
	m.mu.RUnlock()

	total := 0
	for _, name := range names {
		total += m.sweepNamespace(name)
	}
	return total
}

// StartSweeper launches the periodic sweeper. Each tick sweeps every
// namespace in its own goroutine so a slow namespace cannot delay the rest.
// Calling it more than once is a no-op.
func (m *Manager) StartSweeper() {
	m.sweepOnce.Do(func() {
		m.done.Add(1)
		go func() {
			defer m.done.Done()
			ticker := time.NewTicker(m.opts.SweepInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					m.sweepAsync()
				case <-m.stop:
					return
				}
			}
		}()
	})
}

// Close stops the background sweeper, if running. Safe to call more than
// once, including concurrently.
func (m *Manager) Close() {
	m.closeOnce.Do(func() { close(m.stop) })
	m.done.Wait()
}

func (m *Manager) sweepAsync() {
	m.mu.RLock()
	names := make([]string, 0, len(m.namespaces))
	for name := range m.namespaces {
		names = append(names, name)
	}
	m.mu.RUnlock()

	for _, name := range names {
		name := name
		m.done.Add(1)
		go func() {
			defer m.done.Done()
			m.sweepNamespace(name)
		}()
	}
}

func (m *Manager) sweepNamespace(name string) int {
	m.mu.RLock()
	ns := m.namespaces[name]
	m.mu.RUnlock()
	if ns == nil {
		return 0
	}

	removed := ns.Sweep()
	if removed > 0 {
		m.logger.Info("cache sweep completed", map[string]interface{}{
			"namespace": name,
			"removed":   removed,
		})
	}
	return removed
}

// namespace returns (lazily creating) the cache and counter for a name.
func (m *Manager) namespace(name string) (*ResultCache, *NamespaceStats) {
	m.mu.RLock()
	ns, ok := m.namespaces[name]
	stats := m.counters[name]
	m.mu.RUnlock()
	if ok {
		return ns, stats
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if ns, ok = m.namespaces[name]; ok {
		return ns, m.counters[name]
	}
	ns = NewResultCache(m.opts.MaxEntries)
	stats = &NamespaceStats{}
	m.namespaces[name] = ns
	m.counters[name] = stats
	return ns, stats
}
