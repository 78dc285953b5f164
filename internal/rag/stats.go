package rag

import (
	"context"
	"runtime"

	"github.com/b08x/blueprints-rag/internal/analysis"
	"github.com/b08x/blueprints-rag/internal/cache"
	"github.com/b08x/blueprints-rag/internal/pipeline"
)

// IndexStats describes the live hybrid index.
type IndexStats struct {
	Blueprints    int `json:"blueprints"`
	Terms         int `json:"terms"`
	SpatialPoints int `json:"spatial_points"`
	QueueLength   int `json:"queue_length"`
}

// MemoryStats is a snapshot of process memory use.
type MemoryStats struct {
	AllocBytes      uint64 `json:"alloc_bytes"`
	TotalAllocBytes uint64 `json:"total_alloc_bytes"`
	SysBytes        uint64 `json:"sys_bytes"`
	NumGC           uint32 `json:"num_gc"`
	Goroutines      int    `json:"goroutines"`
}

// ProviderStats describes the active embedding provider.
type ProviderStats struct {
	Name       string `json:"name"`
	Model      string `json:"model"`
	Dimensions int    `json:"dimensions"`
	Healthy    bool   `json:"healthy"`
}

// Statistics aggregates pipeline, cache, index and memory figures.
type Statistics struct {
	Pipeline   pipeline.Metrics                `json:"pipeline"`
	Processors map[string]analysis.Metrics     `json:"processors"`
	Cache      map[string]cache.NamespaceStats `json:"cache"`
	Index      IndexStats                      `json:"index"`
	Memory     MemoryStats                     `json:"memory"`
	Provider   ProviderStats                   `json:"provider"`
}

// GetStatistics returns a point-in-time snapshot of the service.
func (s *Service) GetStatistics(ctx context.Context) Statistics {
	procs := make(map[string]analysis.Metrics, len(s.pipe.Processors()))
	for _, proc := range s.pipe.Processors() {
		procs[string(proc.Kind())] = proc.Metrics()
	}

	s.mu.RLock()
	indexStats := IndexStats{
		Blueprints:    len(s.entries),
		Terms:         s.prefix.Terms(),
		SpatialPoints: s.spatial.Len(),
		QueueLength:   s.queue.Len(),
	}
	s.mu.RUnlock()

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	return Statistics{
		Pipeline:   s.pipe.Metrics(),
		Processors: procs,
		Cache:      s.caches.Stats(),
		Index:      indexStats,
		Memory: MemoryStats{
			AllocBytes:      mem.Alloc,
			TotalAllocBytes: mem.TotalAlloc,
			SysBytes:        mem.Sys,
			NumGC:           mem.NumGC,
			Goroutines:      runtime.NumGoroutine(),
		},
		Provider: ProviderStats{
			Name:       s.provider.Name(),
			Model:      s.provider.Model(),
			Dimensions: s.provider.Dimensions(),
			Healthy:    s.provider.Healthy(ctx),
		},
	}
}
