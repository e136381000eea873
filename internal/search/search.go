package search

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/vmunix/swiper/internal/content"
	"github.com/vmunix/swiper/internal/torrent"
	"github.com/vmunix/swiper/pkg/release"
)

// maxCandidates caps the list returned to callers.
const maxCandidates = 20

// Searcher finds and ranks torrents for a video.
type Searcher struct {
	pool       *IndexerPool
	scorer     *Scorer
	retryDelay time.Duration
	log        *slog.Logger
}

// NewSearcher creates a new Searcher.
func NewSearcher(pool *IndexerPool, scorer *Scorer, log *slog.Logger) *Searcher {
	return &Searcher{
		pool:       pool,
		scorer:     scorer,
		retryDelay: 100 * time.Millisecond,
		log:        log.With("component", "search"),
	}
}

// Search returns up to 20 candidates for v sorted by seeders, each with its
// tier set. An empty result is retried up to retries more times. The result
// may be empty without an error; an error means every indexer failed.
func (s *Searcher) Search(ctx context.Context, v content.Video, retries int) ([]*torrent.Torrent, error) {
	query := release.NormalizeSearchQuery(v.SearchTerm())
	for attempt := 0; ; attempt++ {
		releases, errs := s.pool.Search(ctx, query, v.Kind())

		candidates := make([]*torrent.Torrent, 0, len(releases))
		for _, r := range releases {
			uri := r.DownloadURI()
			if r.Title == "" || uri == "" {
				continue
			}
			t := &torrent.Torrent{
				Name:     r.Title,
				Indexer:  r.Indexer,
				Magnet:   uri,
				InfoHash: r.InfoHash,
				Size:     r.Size,
				Seeders:  r.Seeders,
				Leechers: r.Leechers,
				Uploaded: r.PublishDate,
			}
			t.Tier = s.scorer.Tier(t, v)
			candidates = append(candidates, t)
		}
		slices.SortStableFunc(candidates, func(a, b *torrent.Torrent) int {
			return cmp.Compare(b.Seeders, a.Seeders)
		})
		if len(candidates) > maxCandidates {
			candidates = candidates[:maxCandidates]
		}

		if len(candidates) > 0 {
			s.log.Debug("torrents found", "content", v.Desc(), "candidates", len(candidates), "attempt", attempt)
			return candidates, nil
		}
		if attempt >= retries {
			if len(errs) > 0 && len(errs) >= s.pool.Len() {
				return nil, fmt.Errorf("%w: %w", ErrIndexersUnavailable, errors.Join(errs...))
			}
			return nil, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.retryDelay):
		}
	}
}

// Best picks the candidate to download without asking, or nil.
func (s *Searcher) Best(candidates []*torrent.Torrent) *torrent.Torrent {
	return Best(candidates)
}
