package metadata

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/vmunix/swiper/internal/content"
	"github.com/vmunix/swiper/pkg/omdb"
	"github.com/vmunix/swiper/pkg/tvdb"
)

const (
	titleTTL    = 7 * 24 * time.Hour
	seriesTTL   = 7 * 24 * time.Hour
	episodesTTL = 12 * time.Hour
)

// Query is a parsed user request. Zero fields are unspecified.
type Query struct {
	Title   string
	Year    int
	Season  int
	Episode int
	Kind    content.Kind // optional type hint
}

//go:generate mockgen -destination=mocks/mock_resolver.go -package=mocks github.com/vmunix/swiper/internal/metadata Resolver

// Resolver turns a query into a Movie, Episode, or Collection owned by
// sessionID.
type Resolver interface {
	Identify(ctx context.Context, sessionID string, q Query) (content.Content, error)
}

// TitleLookup is the OMDb surface used by Service.
type TitleLookup interface {
	Lookup(ctx context.Context, title string, year int, kind string) (*omdb.Title, error)
}

// SeriesSource is the TVDB surface used by Service.
type SeriesSource interface {
	SeriesByIMDbID(ctx context.Context, imdbID string) (int, error)
	Search(ctx context.Context, query string) ([]tvdb.SearchResult, error)
	GetSeries(ctx context.Context, id int) (*tvdb.Series, error)
	GetEpisodes(ctx context.Context, seriesID int) ([]tvdb.Episode, error)
}

// Service resolves titles through OMDb and series episodes through TVDB.
type Service struct {
	titles TitleLookup
	series SeriesSource
	cache  *Cache
	loc    *time.Location
	log    *slog.Logger
}

// NewService creates a resolver. cache may be nil. Episode air times are
// interpreted in loc.
func NewService(titles TitleLookup, series SeriesSource, cache *Cache, loc *time.Location, log *slog.Logger) *Service {
	if loc == nil {
		loc = time.Local
	}
	return &Service{
		titles: titles,
		series: series,
		cache:  cache,
		loc:    loc,
		log:    log.With("component", "metadata"),
	}
}

var _ Resolver = (*Service)(nil)

// Identify resolves q. A season narrows a series to that season, and a
// season plus episode narrows it to a single Episode.
func (s *Service) Identify(ctx context.Context, sessionID string, q Query) (content.Content, error) {
	kind := ""
	switch {
	case q.Season > 0 || q.Kind == content.KindEpisode || q.Kind == content.KindCollection:
		kind = omdb.TypeSeries
	case q.Kind == content.KindMovie:
		kind = omdb.TypeMovie
	}

	key := fmt.Sprintf("omdb:%s:%d:%s", strings.ToLower(q.Title), q.Year, kind)
	title, err := cached(ctx, s.cache, s.log, key, titleTTL, func() (*omdb.Title, error) {
		return s.titles.Lookup(ctx, q.Title, q.Year, kind)
	})
	switch {
	case errors.Is(err, omdb.ErrNotFound):
		return nil, fmt.Errorf("%w: %s", ErrNotFound, q.Title)
	case err != nil:
		s.log.Warn("title lookup failed", "title", q.Title, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if !title.IsSeries() {
		m := content.NewMovie(title.Title, title.StartYear())
		m.SetOwner(sessionID)
		return m, nil
	}

	eps, err := s.episodes(ctx, title)
	if err != nil {
		s.log.Warn("series lookup failed", "title", title.Title, "imdb", title.IMDbID, "error", err)
		return nil, fmt.Errorf("%w: %s: %v", ErrShowNotFound, title.Title, err)
	}

	var c content.Content
	switch {
	case q.Season > 0 && q.Episode > 0:
		for _, ep := range eps {
			if ep.Season() == q.Season && ep.Number() == q.Episode {
				c = ep
				break
			}
		}
		if c == nil {
			return nil, fmt.Errorf("%w: %s S%02dE%02d", ErrShowNotFound, title.Title, q.Season, q.Episode)
		}
	case q.Season > 0:
		var season []*content.Episode
		for _, ep := range eps {
			if ep.Season() == q.Season {
				season = append(season, ep)
			}
		}
		if len(season) == 0 {
			return nil, fmt.Errorf("%w: %s season %d", ErrShowNotFound, title.Title, q.Season)
		}
		c = content.NewCollection(title.Title, season, content.InitialSeason, q.Season)
	default:
		c = content.NewCollection(title.Title, eps, content.InitialSeries, 0)
	}
	c.SetOwner(sessionID)
	return c, nil
}

func (s *Service) episodes(ctx context.Context, title *omdb.Title) ([]*content.Episode, error) {
	id, err := cached(ctx, s.cache, s.log, "tvdb:imdb:"+title.IMDbID, seriesTTL, func() (int, error) {
		id, err := s.series.SeriesByIMDbID(ctx, title.IMDbID)
		if !errors.Is(err, tvdb.ErrNotFound) {
			return id, err
		}
		results, err := s.series.Search(ctx, title.Title)
		if err != nil {
			return 0, err
		}
		if len(results) == 0 {
			return 0, tvdb.ErrNotFound
		}
		return results[0].ID, nil
	})
	if err != nil {
		return nil, err
	}

	series, err := cached(ctx, s.cache, s.log, fmt.Sprintf("tvdb:series:%d", id), seriesTTL, func() (*tvdb.Series, error) {
		return s.series.GetSeries(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	list, err := cached(ctx, s.cache, s.log, fmt.Sprintf("tvdb:episodes:%d", id), episodesTTL, func() ([]tvdb.Episode, error) {
		return s.series.GetEpisodes(ctx, id)
	})
	if err != nil {
		return nil, err
	}

	eps := make([]*content.Episode, 0, len(list))
	for _, ep := range list {
		var release *time.Time
		if ep.Aired() {
			at := ep.AirInstant(series.AirsTime, s.loc)
			release = &at
		}
		eps = append(eps, content.NewEpisode(title.Title, ep.Season, ep.Episode, release))
	}
	return eps, nil
}
