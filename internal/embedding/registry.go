package embedding

import (
	"sort"
	"sync"

	"github.com/b08x/blueprints-rag/internal/cache"
	"github.com/b08x/blueprints-rag/internal/logging"
)

// Constructor builds a provider from its configuration.
type Constructor func(cfg ProviderConfig) (Provider, error)

// Registry maps provider names to constructors. It is an explicit value:
// construct one, register backends, pass it by reference into service
// wiring. There is no package-level registry.
type Registry struct {
	mu     sync.RWMutex
	ctors  map[string]Constructor
	caches *cache.Manager
	logger logging.Logger
}

// NewRegistry creates an empty registry. caches may be nil to disable
// provider-side caching.
func NewRegistry(caches *cache.Manager, logger logging.Logger) *Registry {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Registry{
		ctors:  make(map[string]Constructor),
		caches: caches,
		logger: logger,
	}
}

// NewDefaultRegistry creates a registry with the built-in providers
// registered: "hash" (local, deterministic) and "openai" (remote).
func NewDefaultRegistry(caches *cache.Manager, logger logging.Logger) *Registry {
	r := NewRegistry(caches, logger)
	r.Register(ProviderHash, func(cfg ProviderConfig) (Provider, error) {
		return NewHashProvider(cfg), nil
	})
	r.Register(ProviderOpenAI, func(cfg ProviderConfig) (Provider, error) {
		return NewOpenAIProvider(cfg)
	})
	return r
}

// Register adds (or replaces) a constructor under name.
func (r *Registry) Register(name string, ctor Constructor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ctors[name] = ctor
}

// Names lists the registered provider names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.ctors))
	for name := range r.ctors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Create builds the named provider, wrapped with its cache. An unregistered
// name fails with ProviderNotFoundError.
func (r *Registry) Create(name string, cfg ProviderConfig) (Provider, error) {
	r.mu.RLock()
	ctor, ok := r.ctors[name]
	r.mu.RUnlock()
	if !ok {
		return nil, &ProviderNotFoundError{Name: name}
	}

	provider, err := ctor(cfg)
	if err != nil {
		return nil, err
	}
	return newCachedProvider(provider, r.caches, r.logger), nil
}
