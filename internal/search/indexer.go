package search

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vmunix/swiper/internal/content"
	"github.com/vmunix/swiper/pkg/torznab"
)

//go:generate mockgen -destination=mocks/mock_indexer.go -package=mocks github.com/vmunix/swiper/internal/search Indexer

// Indexer is a torrent indexer. *torznab.Client implements it.
type Indexer interface {
	Name() string
	Search(ctx context.Context, query string, categories []int) ([]torznab.Release, error)
}

// IndexerPool searches several indexers in parallel.
type IndexerPool struct {
	indexers []Indexer
	log      *slog.Logger
}

// NewIndexerPool creates a pool from the given indexers.
func NewIndexerPool(indexers []Indexer, log *slog.Logger) *IndexerPool {
	return &IndexerPool{indexers: indexers, log: log.With("component", "indexers")}
}

// Len returns the number of indexers.
func (p *IndexerPool) Len() int { return len(p.indexers) }

func categoriesFor(kind content.Kind) []int {
	if kind == content.KindMovie {
		return []int{torznab.CategoryMovies}
	}
	return []int{torznab.CategoryTV}
}

// Search queries every indexer and merges the results. Errors from
// individual indexers are returned alongside whatever the others found.
func (p *IndexerPool) Search(ctx context.Context, query string, kind content.Kind) ([]torznab.Release, []error) {
	if len(p.indexers) == 0 {
		return nil, []error{ErrNoIndexers}
	}
	start := time.Now()
	categories := categoriesFor(kind)

	releases := make([][]torznab.Release, len(p.indexers))
	errs := make([]error, len(p.indexers))

	var g errgroup.Group
	for i, idx := range p.indexers {
		g.Go(func() error {
			indexerStart := time.Now()
			rels, err := idx.Search(ctx, query, categories)
			if err != nil {
				p.log.Warn("indexer failed", "indexer", idx.Name(), "error", err, "duration_ms", time.Since(indexerStart).Milliseconds())
				errs[i] = err
				return nil
			}
			p.log.Debug("indexer returned", "indexer", idx.Name(), "results", len(rels), "duration_ms", time.Since(indexerStart).Milliseconds())
			releases[i] = rels
			return nil
		})
	}
	_ = g.Wait()

	var all []torznab.Release
	var failed []error
	for i := range p.indexers {
		all = append(all, releases[i]...)
		if errs[i] != nil {
			failed = append(failed, errs[i])
		}
	}
	p.log.Info("search complete", "query", query, "results", len(all), "errors", len(failed), "duration_ms", time.Since(start).Milliseconds())
	return all, failed
}
