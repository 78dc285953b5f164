package rag

import (
	"context"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/b08x/blueprints-rag/internal/store"
)

// RebuildSearchIndex drops the live index and reprocesses blueprints from
// scratch. With a nil list and an attached store, the store supplies the
// blueprints. Per-blueprint failures are logged and skipped; only a
// cancelled context aborts the batch. Returns the number of blueprints
// indexed.
func (s *Service) RebuildSearchIndex(ctx context.Context, blueprints []*store.Blueprint) (int, error) {
	if blueprints == nil {
		if s.store == nil {
			return 0, fmt.Errorf("no blueprints given and no store attached")
		}
		var err error
		blueprints, err = s.store.List()
		if err != nil {
			return 0, fmt.Errorf("failed to load blueprints: %w", err)
		}
	}

	s.resetIndexes()

	if s.progress != nil {
		s.progress.Start(len(blueprints))
		defer s.progress.Finish()
	}

	workers := s.cfg.Storage.MaxWorkers
	if workers <= 0 {
		workers = 1
	}

	var indexed int64
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, bp := range blueprints {
		bp := bp
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := s.rebuildOne(ctx, bp); err != nil {
				s.logger.Warn("skipping blueprint during rebuild", map[string]interface{}{
					"id":    bp.ID,
					"error": err.Error(),
				})
			} else {
				atomic.AddInt64(&indexed, 1)
			}
			if s.progress != nil {
				s.progress.Increment()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return int(atomic.LoadInt64(&indexed)), err
	}

	// Fold pending spatial points into a fresh balanced tree.
	s.mu.Lock()
	s.spatial.Rebuild()
	s.mu.Unlock()

	count := int(atomic.LoadInt64(&indexed))
	s.logger.Info("search index rebuilt", map[string]interface{}{
		"blueprints": count,
		"skipped":    len(blueprints) - count,
	})
	return count, nil
}

// rebuildOne processes a single blueprint, converting panics into errors
// so one bad blueprint cannot abort the batch.
func (s *Service) rebuildOne(ctx context.Context, bp *store.Blueprint) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("ingestion panicked: %v", r)
		}
	}()
	_, err = s.ProcessBlueprint(ctx, bp)
	return err
}

func (s *Service) resetIndexes() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = make(map[string]*indexedBlueprint)
	s.prefix.Clear()
	s.spatial.Clear()
	s.queue.Clear()

	if s.fulltext != nil {
		_ = s.fulltext.Close()
		fulltext, err := newFulltextIndex()
		if err != nil {
			s.logger.Warn("fulltext fallback disabled after rebuild", map[string]interface{}{
				"error": err.Error(),
			})
			s.fulltext = nil
			return
		}
		s.fulltext = fulltext
	}
}
