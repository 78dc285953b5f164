package rag

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/b08x/blueprints-rag/internal/analysis"
	"github.com/b08x/blueprints-rag/internal/cache"
	"github.com/b08x/blueprints-rag/internal/config"
	"github.com/b08x/blueprints-rag/internal/embedding"
	"github.com/b08x/blueprints-rag/internal/index"
	"github.com/b08x/blueprints-rag/internal/logging"
	"github.com/b08x/blueprints-rag/internal/pipeline"
	"github.com/b08x/blueprints-rag/internal/store"
)

// BlueprintSource is the persistent-store collaborator the service needs:
// enough to reload the corpus and to delete records. The sqlite
// store.BlueprintStore satisfies it.
type BlueprintSource interface {
	List() ([]*store.Blueprint, error)
	Delete(id string) error
}

// Options carries the service collaborators. Every field is optional:
// without a store, RebuildSearchIndex needs an explicit blueprint list;
// without a registry, the built-in providers are used.
type Options struct {
	Store    BlueprintSource
	Registry *embedding.Registry
	Logger   logging.Logger
	Progress ProgressReporter
}

// indexedBlueprint is everything the service keeps per ingested blueprint.
type indexedBlueprint struct {
	Name      string
	Record    *analysis.Record
	Vector    []float32
	Features  CodeFeatures
	Relevance float64
}

// Service is the top-level orchestrator: it ingests blueprints through the
// pipeline and embedding provider, maintains the hybrid search index and
// answers search and similarity queries.
//
// The prefix trie has no per-id delete, so reprocessing a blueprint can
// leave stale terms pointing at it until the next RebuildSearchIndex. That
// staleness is bounded and accepted; no transaction spans cache, index and
// store.
type Service struct {
	cfg       *config.Config
	logger    logging.Logger
	caches    *cache.Manager
	pipe      *pipeline.Pipeline
	provider  embedding.Provider
	store     BlueprintSource
	progress  ProgressReporter
	verbosity analysis.Verbosity

	mu       sync.RWMutex
	entries  map[string]*indexedBlueprint
	prefix   *index.PrefixIndex
	spatial  *index.SpatialIndex
	queue    *index.RelevanceQueue
	fulltext *fulltextIndex
}

// New constructs the service. Configuration problems (no processors,
// unknown provider) fail here; nothing later on the ingestion or query
// paths returns a hard error.
func New(cfg *config.Config, opts Options) (*Service, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Nop()
	}

	caches := cache.NewManager(cache.ManagerOptions{
		MaxEntries:    cfg.Cache.MaxEntries,
		SweepInterval: time.Duration(cfg.Cache.SweepIntervalMin) * time.Minute,
		AnalysisTTL:   time.Duration(cfg.Cache.AnalysisTTLHours) * time.Hour,
		EmbeddingTTL:  time.Duration(cfg.Cache.EmbeddingTTLHours) * time.Hour,
		PipelineTTL:   time.Duration(cfg.Cache.PipelineTTLHours) * time.Hour,
		Logger:        logger,
	})
	if !cfg.Cache.DisableBackground {
		caches.StartSweeper()
	}

	// The pipeline always computes detailed records; the configured
	// verbosity is applied when records leave the service.
	builder := pipeline.NewBuilder(caches, logger)
	for _, proc := range cfg.Processors {
		builder.With(analysis.Kind(proc.Kind), proc.Priority, analysis.Config{
			MaxKeywords: proc.MaxKeywords,
			MaxEntities: proc.MaxEntities,
			MaxConcepts: proc.MaxConcepts,
			LexiconPath: proc.LexiconPath,
		})
	}
	builder.Configure(pipeline.Options{
		Mode:             pipeline.Mode(cfg.Pipeline.Mode),
		Timeout:          time.Duration(cfg.Pipeline.TimeoutSeconds) * time.Second,
		FeatureDimension: cfg.Pipeline.FeatureDimension,
		MergedKeywords:   cfg.Pipeline.MergedKeywords,
		Verbosity:        analysis.VerbosityDetailed,
	})
	pipe, err := builder.Build()
	if err != nil {
		caches.Close()
		return nil, err
	}

	registry := opts.Registry
	if registry == nil {
		registry = embedding.NewDefaultRegistry(caches, logger)
	}
	provider, err := registry.Create(cfg.Embedding.Provider, embedding.ProviderConfig{
		Model:      cfg.Embedding.Model,
		APIKey:     cfg.Embedding.APIKey,
		Endpoint:   cfg.Embedding.Endpoint,
		Dimensions: cfg.Embedding.Dimensions,
		BatchSize:  cfg.Embedding.BatchSize,
		Timeout:    time.Duration(cfg.Embedding.TimeoutSeconds) * time.Second,
	})
	if err != nil {
		caches.Close()
		return nil, err
	}

	s := &Service{
		cfg:       cfg,
		logger:    logger,
		caches:    caches,
		pipe:      pipe,
		provider:  provider,
		store:     opts.Store,
		progress:  opts.Progress,
		verbosity: analysis.Verbosity(cfg.Pipeline.Verbosity),
		entries:   make(map[string]*indexedBlueprint),
		prefix:    index.NewPrefixIndex(),
		spatial:   index.NewSpatialIndex(),
		queue:     index.NewRelevanceQueue(),
	}

	if cfg.Search.FulltextFallback {
		fulltext, ftErr := newFulltextIndex()
		if ftErr != nil {
			logger.Warn("fulltext fallback disabled", map[string]interface{}{
				"error": ftErr.Error(),
			})
		} else {
			s.fulltext = fulltext
		}
	}

	return s, nil
}

// Close releases the cache sweeper and the fulltext index.
func (s *Service) Close() {
	s.caches.Close()
	s.mu.Lock()
	fulltext := s.fulltext
	s.fulltext = nil
	s.mu.Unlock()
	if fulltext != nil {
		_ = fulltext.Close()
	}
}

// Caches exposes the cache manager, mainly for statistics consumers.
func (s *Service) Caches() *cache.Manager {
	return s.caches
}

// ProcessBlueprint runs a blueprint through the pipeline and embedding
// provider and indexes the result. Given identical input and configuration
// it is idempotent: the pipeline cache serves the repeat. The returned
// record is projected to the configured verbosity.
func (s *Service) ProcessBlueprint(ctx context.Context, bp *store.Blueprint) (*analysis.Record, error) {
	if bp == nil || bp.ID == "" {
		return nil, fmt.Errorf("blueprint has no id")
	}

	text := bp.SearchText()
	record := s.pipe.Process(ctx, text)
	vector := s.embedOrFallback(ctx, record, text)
	features := ExtractCodeFeatures(bp)

	s.indexBlueprint(bp, record, vector, features)
	return record.View(s.verbosity), nil
}

// embedOrFallback returns the provider's vector, or the record's derived
// feature vector when the provider fails. Ingestion never aborts on an
// embedding failure.
func (s *Service) embedOrFallback(ctx context.Context, record *analysis.Record, text string) []float32 {
	vec, err := s.provider.Embed(ctx, text, embedding.Options{
		Normalize: s.cfg.Embedding.Normalize,
		Timeout:   time.Duration(s.cfg.Embedding.TimeoutSeconds) * time.Second,
	})
	if err == nil && len(vec) > 0 {
		return vec
	}
	if err != nil {
		s.logger.Warn("embedding failed, using derived feature vector", map[string]interface{}{
			"provider": s.provider.Name(),
			"error":    err.Error(),
		})
	}

	fallback := make([]float32, len(record.Features))
	copy(fallback, record.Features)
	return fallback
}

func (s *Service) indexBlueprint(bp *store.Blueprint, record *analysis.Record, vector []float32, features CodeFeatures) {
	relevance := relevanceScore(record)
	terms := searchTerms(record, bp.Tags)

	s.mu.Lock()
	if _, exists := s.entries[bp.ID]; exists {
		s.queue.Remove(bp.ID)
	}
	s.entries[bp.ID] = &indexedBlueprint{
		Name:      bp.Name,
		Record:    record,
		Vector:    vector,
		Features:  features,
		Relevance: relevance,
	}
	for _, term := range terms {
		s.prefix.Insert(term, bp.ID)
	}
	if len(vector) >= 2 {
		s.spatial.Insert(index.Point{ID: bp.ID, X: float64(vector[0]), Y: float64(vector[1])})
	}
	s.queue.Push(index.Item{ID: bp.ID, Score: relevance, Payload: record})
	fulltext := s.fulltext
	s.mu.Unlock()

	if fulltext != nil {
		if err := fulltext.IndexBlueprint(bp); err != nil {
			s.logger.Warn("fulltext indexing failed", map[string]interface{}{
				"id":    bp.ID,
				"error": err.Error(),
			})
		}
	}

	s.logger.Debug("blueprint indexed", map[string]interface{}{
		"id":        bp.ID,
		"terms":     len(terms),
		"relevance": relevance,
	})
}

// DeleteBlueprint removes a blueprint from the live index and, when a
// store is attached, from storage. Trie and spatial entries go stale until
// the next rebuild.
func (s *Service) DeleteBlueprint(id string) error {
	s.mu.Lock()
	delete(s.entries, id)
	s.queue.Remove(id)
	fulltext := s.fulltext
	s.mu.Unlock()

	if fulltext != nil {
		_ = fulltext.Delete(id)
	}
	if s.store != nil {
		return s.store.Delete(id)
	}
	return nil
}

// relevanceScore weighs the combined analysis counts plus completeness.
func relevanceScore(record *analysis.Record) float64 {
	score := 0.04*float64(len(record.Combined.Keywords)) +
		0.03*float64(len(record.Combined.Entities)) +
		0.03*float64(len(record.Combined.Concepts)) +
		0.3*record.Completeness
	return clamp(score)
}

// searchTerms collects every searchable term: combined keywords, entities,
// concepts and tags, lower-cased.
func searchTerms(record *analysis.Record, tags []string) []string {
	seen := make(map[string]struct{})
	var terms []string
	add := func(term string) {
		term = strings.ToLower(strings.TrimSpace(term))
		if len(term) < 2 {
			return
		}
		if _, ok := seen[term]; ok {
			return
		}
		seen[term] = struct{}{}
		terms = append(terms, term)
	}

	for _, kw := range record.Combined.Keywords {
		add(kw.Text)
	}
	for _, entity := range record.Combined.Entities {
		add(entity)
	}
	for _, concept := range record.Combined.Concepts {
		add(concept)
	}
	for _, tag := range tags {
		add(tag)
	}
	return terms
}

func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := fields[:0]
	for _, f := range fields {
		if len(f) >= 2 {
			out = append(out, f)
		}
	}
	return out
}
