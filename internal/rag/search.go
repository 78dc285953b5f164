package rag

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/b08x/blueprints-rag/internal/embedding"
)

// SearchOptions tunes one query. Zero values fall back to the configured
// defaults; RelevanceThreshold is a pointer so an explicit 0 can disable
// filtering.
type SearchOptions struct {
	MaxResults         int
	KNearest           int
	RelevanceThreshold *float64
}

// SearchResult is one ranked hit with its per-stage contributions.
type SearchResult struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Score    float64 `json:"score"`
	Exact    float64 `json:"exact"`
	Partial  float64 `json:"partial"`
	Spatial  float64 `json:"spatial"`
	Ranked   float64 `json:"ranked"`
	Fulltext bool    `json:"fulltext,omitempty"`
}

// SearchStats reports stage-by-stage match counts and elapsed time.
type SearchStats struct {
	QueryTerms       int           `json:"query_terms"`
	ExactMatches     int           `json:"exact_matches"`
	PartialMatches   int           `json:"partial_matches"`
	SpatialNeighbors int           `json:"spatial_neighbors"`
	RankedCandidates int           `json:"ranked_candidates"`
	FulltextHits     int           `json:"fulltext_hits"`
	Candidates       int           `json:"candidates"`
	Returned         int           `json:"returned"`
	Elapsed          time.Duration `json:"elapsed"`
}

// SearchResponse is the full answer to one query. A failed query carries
// Error and an empty result list, never a panic.
type SearchResponse struct {
	Results []SearchResult `json:"results"`
	Stats   SearchStats    `json:"stats"`
	Error   string         `json:"error,omitempty"`
}

// SimilarResult is one neighbor from a similarity lookup.
type SimilarResult struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Similarity float64 `json:"similarity"`
}

// SearchBlueprints answers a natural-language query against the hybrid
// index. The query runs through the same pipeline as ingestion, then exact
// and prefix term matches, spatial neighbors and ranked relevance are
// combined with a fixed linear blend. When nothing clears the threshold,
// the fulltext fallback supplies degraded results.
func (s *Service) SearchBlueprints(ctx context.Context, query string, opts SearchOptions) (resp *SearchResponse) {
	start := time.Now()
	resp = &SearchResponse{Results: []SearchResult{}}

	defer func() {
		if r := recover(); r != nil {
			resp.Results = []SearchResult{}
			resp.Error = fmt.Sprintf("search failed: %v", r)
			resp.Stats.Elapsed = time.Since(start)
			s.logger.Error("search panicked", map[string]interface{}{
				"query": query,
				"panic": fmt.Sprintf("%v", r),
			})
		}
	}()

	maxResults := opts.MaxResults
	if maxResults <= 0 {
		maxResults = s.cfg.Search.MaxResults
	}
	kNearest := opts.KNearest
	if kNearest <= 0 {
		kNearest = s.cfg.Search.KNearest
	}
	threshold := s.cfg.Search.RelevanceThreshold
	if opts.RelevanceThreshold != nil {
		threshold = *opts.RelevanceThreshold
	}

	// Index-time and query-time processing must match.
	record := s.pipe.Process(ctx, query)
	words := tokenize(query)
	resp.Stats.QueryTerms = len(words)

	// The provider can be a slow remote call; embed the query before taking
	// the service lock so ingestion writers are not stalled behind it.
	vector := s.embedOrFallback(ctx, record, query)

	exact := make(map[string]float64)
	partial := make(map[string]float64)
	spatial := make(map[string]float64)
	ranked := make(map[string]float64)

	s.mu.RLock()
	for _, word := range words {
		exactIDs := s.prefix.Lookup(word)
		for _, id := range exactIDs {
			exact[id] += 1 / float64(len(words))
		}
		isExact := make(map[string]bool, len(exactIDs))
		for _, id := range exactIDs {
			isExact[id] = true
		}
		for _, id := range s.prefix.WithPrefix(word) {
			if !isExact[id] {
				partial[id] += 1 / float64(len(words))
			}
		}
	}

	if len(vector) >= 2 {
		for _, n := range s.spatial.Nearest(float64(vector[0]), float64(vector[1]), kNearest) {
			spatial[n.ID] = 1 / (1 + n.Distance)
		}
	}

	// Snapshot is a sorted copy; draining the live queue would be
	// destructive.
	items := s.queue.Snapshot()
	if len(items) > maxResults {
		items = items[:maxResults]
	}
	for _, item := range items {
		ranked[item.ID] = item.Score
	}
	fulltext := s.fulltext
	s.mu.RUnlock()

	resp.Stats.ExactMatches = len(exact)
	resp.Stats.PartialMatches = len(partial)
	resp.Stats.SpatialNeighbors = len(spatial)
	resp.Stats.RankedCandidates = len(ranked)

	candidates := make(map[string]struct{})
	for id := range exact {
		candidates[id] = struct{}{}
	}
	for id := range partial {
		candidates[id] = struct{}{}
	}
	for id := range spatial {
		candidates[id] = struct{}{}
	}
	for id := range ranked {
		candidates[id] = struct{}{}
	}
	resp.Stats.Candidates = len(candidates)

	results := make([]SearchResult, 0, len(candidates))
	for id := range candidates {
		result := SearchResult{
			ID:      id,
			Exact:   exact[id],
			Partial: partial[id],
			Spatial: spatial[id],
			Ranked:  ranked[id],
		}
		result.Score = s.cfg.Search.ExactWeight*result.Exact +
			s.cfg.Search.PartialWeight*result.Partial +
			s.cfg.Search.SpatialWeight*result.Spatial +
			s.cfg.Search.RankedWeight*result.Ranked
		results = append(results, result)
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})

	filtered := results[:0]
	for _, result := range results {
		if result.Score >= threshold {
			filtered = append(filtered, result)
		}
	}
	if len(filtered) > maxResults {
		filtered = filtered[:maxResults]
	}

	if len(filtered) == 0 && fulltext != nil {
		filtered = s.fulltextFallback(fulltext, query, maxResults, &resp.Stats)
	}

	s.mu.RLock()
	for i := range filtered {
		if entry, ok := s.entries[filtered[i].ID]; ok {
			filtered[i].Name = entry.Name
		}
	}
	s.mu.RUnlock()

	resp.Results = filtered
	resp.Stats.Returned = len(filtered)
	resp.Stats.Elapsed = time.Since(start)

	s.logger.Debug("search completed", map[string]interface{}{
		"query":    query,
		"returned": resp.Stats.Returned,
		"elapsed":  resp.Stats.Elapsed.String(),
	})
	return resp
}

// fulltextFallback answers with bleve hits scaled so the best hit scores
// 1.0. The relevance threshold is deliberately not applied here: degraded
// results beat empty ones. The index pointer comes from the caller, read
// under the service lock; a rebuild may swap it concurrently.
func (s *Service) fulltextFallback(fulltext *fulltextIndex, query string, limit int, stats *SearchStats) []SearchResult {
	hits, err := fulltext.Search(query, limit)
	if err != nil {
		s.logger.Warn("fulltext fallback failed", map[string]interface{}{
			"query": query,
			"error": err.Error(),
		})
		return []SearchResult{}
	}
	stats.FulltextHits = len(hits)
	if len(hits) == 0 {
		return []SearchResult{}
	}

	top := hits[0].Score
	results := make([]SearchResult, 0, len(hits))
	for _, hit := range hits {
		score := 0.0
		if top > 0 {
			score = hit.Score / top
		}
		results = append(results, SearchResult{
			ID:       hit.ID,
			Score:    score,
			Fulltext: true,
		})
	}
	return results
}

// FindSimilarBlueprints ranks indexed blueprints by cosine similarity of
// their full embedding vectors against the given blueprint.
func (s *Service) FindSimilarBlueprints(ctx context.Context, id string, limit int) ([]SimilarResult, error) {
	if limit <= 0 {
		limit = s.cfg.Search.MaxResults
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	source, ok := s.entries[id]
	if !ok {
		return nil, fmt.Errorf("blueprint %s is not indexed", id)
	}

	results := make([]SimilarResult, 0, len(s.entries))
	for otherID, other := range s.entries {
		if otherID == id {
			continue
		}
		results = append(results, SimilarResult{
			ID:         otherID,
			Name:       other.Name,
			Similarity: embedding.Similarity(source.Vector, other.Vector),
		})
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Similarity != results[j].Similarity {
			return results[i].Similarity > results[j].Similarity
		}
		return results[i].ID < results[j].ID
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}
