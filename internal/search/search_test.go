package search_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/vmunix/swiper/internal/content"
	"github.com/vmunix/swiper/internal/search"
	"github.com/vmunix/swiper/internal/search/mocks"
	"github.com/vmunix/swiper/internal/torrent"
	"github.com/vmunix/swiper/pkg/torznab"
)

const mib = 1 << 20

// testLogger returns a discard logger for tests.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testPrefs() search.Preferences {
	return search.Preferences{
		TV:         []string{"720p", "1080p", "HD"},
		Movie:      []string{"1080p", "720p", "HD"},
		TVSize:     search.SizeRange{MinMB: 300, MaxMB: 2000},
		MovieSize:  search.SizeRange{MinMB: 600, MaxMB: 4000},
		MinSeeders: 10,
		Reject:     []string{`\bkorsub\b`},
	}
}

func newSearcher(t *testing.T, indexers ...search.Indexer) *search.Searcher {
	t.Helper()
	scorer, err := search.NewScorer(testPrefs())
	require.NoError(t, err)
	return search.NewSearcher(search.NewIndexerPool(indexers, testLogger()), scorer, testLogger())
}

func mockIndexer(ctrl *gomock.Controller, name string) *mocks.MockIndexer {
	m := mocks.NewMockIndexer(ctrl)
	m.EXPECT().Name().Return(name).AnyTimes()
	return m
}

func TestSearcher_Search_RanksEpisodeCandidates(t *testing.T) {
	ctrl := gomock.NewController(t)
	idx := mockIndexer(ctrl, "jackett")
	idx.EXPECT().
		Search(gomock.Any(), "foo s01e02", []int{torznab.CategoryTV}).
		Return([]torznab.Release{
			{Title: "Foo.S01E02.720p.HDTV.x264-GRP", MagnetURI: "magnet:a", Size: 700 * mib, Seeders: 50},
			{Title: "Foo.S01E02.1080p.WEB-DL", MagnetURI: "magnet:b", Size: 1500 * mib, Seeders: 100},
			{Title: "Foo.S01E03.720p.HDTV", MagnetURI: "magnet:c", Size: 700 * mib, Seeders: 90},
			{Title: "Foo.S01E02.720p.HDTV", MagnetURI: "magnet:d", Size: 700 * mib, Seeders: 5},
			{Title: "Foo.S01E02.720p.HDTV", MagnetURI: "magnet:e", Size: 5000 * mib, Seeders: 80},
			{Title: "Bar.S01E02.720p.HDTV", MagnetURI: "magnet:f", Size: 700 * mib, Seeders: 70},
			{Title: "Foo.S01E02.720p.KORSUB", MagnetURI: "magnet:g", Size: 700 * mib, Seeders: 60},
			{Title: "Foo.S01E02.720p.HDTV", Size: 700 * mib, Seeders: 500},
		}, nil)

	s := newSearcher(t, idx)
	got, err := s.Search(context.Background(), content.NewEpisode("Foo", 1, 2, nil), 0)
	require.NoError(t, err)
	require.Len(t, got, 7, "candidate without a link is dropped")

	assert.Equal(t, "magnet:b", got[0].Magnet, "sorted by seeders")
	tiers := map[string]int{}
	for _, tt := range got {
		tiers[tt.Magnet] = tt.Tier
	}
	assert.Equal(t, 32, tiers["magnet:a"])
	assert.Equal(t, 23, tiers["magnet:b"])
	for _, ineligible := range []string{"magnet:c", "magnet:d", "magnet:e", "magnet:f", "magnet:g"} {
		assert.Zero(t, tiers[ineligible], ineligible)
	}

	best := s.Best(got)
	require.NotNil(t, best)
	assert.Equal(t, "magnet:a", best.Magnet)
}

func TestSearcher_Search_MovieYear(t *testing.T) {
	ctrl := gomock.NewController(t)
	idx := mockIndexer(ctrl, "jackett")
	idx.EXPECT().
		Search(gomock.Any(), "heat 1995", []int{torznab.CategoryMovies}).
		Return([]torznab.Release{
			{Title: "Heat.1995.1080p.BluRay.x264", MagnetURI: "magnet:a", Size: 2000 * mib, Seeders: 30},
			{Title: "Heat.2013.1080p.BluRay.x264", MagnetURI: "magnet:b", Size: 2000 * mib, Seeders: 300},
			{Title: "Heat.1995.CAM.720p", MagnetURI: "magnet:c", Size: 1000 * mib, Seeders: 300},
		}, nil)

	got, err := newSearcher(t, idx).Search(context.Background(), content.NewMovie("Heat", 1995), 0)
	require.NoError(t, err)
	require.Len(t, got, 3)

	best := search.Best(got)
	require.NotNil(t, best)
	assert.Equal(t, "magnet:a", best.Magnet)
}

func TestSearcher_Search_RetriesEmptyResults(t *testing.T) {
	ctrl := gomock.NewController(t)
	idx := mockIndexer(ctrl, "jackett")
	gomock.InOrder(
		idx.EXPECT().Search(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, nil),
		idx.EXPECT().Search(gomock.Any(), gomock.Any(), gomock.Any()).Return([]torznab.Release{
			{Title: "Heat.1995.1080p", MagnetURI: "magnet:a", Size: 2000 * mib, Seeders: 30},
		}, nil),
	)

	got, err := newSearcher(t, idx).Search(context.Background(), content.NewMovie("Heat", 1995), 2)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestSearcher_Search_EmptyAfterRetries(t *testing.T) {
	ctrl := gomock.NewController(t)
	idx := mockIndexer(ctrl, "jackett")
	idx.EXPECT().Search(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, nil).Times(2)

	got, err := newSearcher(t, idx).Search(context.Background(), content.NewMovie("Heat", 1995), 1)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSearcher_Search_AllIndexersFail(t *testing.T) {
	ctrl := gomock.NewController(t)
	a := mockIndexer(ctrl, "a")
	b := mockIndexer(ctrl, "b")
	a.EXPECT().Search(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, errors.New("timeout"))
	b.EXPECT().Search(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, torznab.ErrUnauthorized)

	_, err := newSearcher(t, a, b).Search(context.Background(), content.NewMovie("Heat", 1995), 0)
	assert.ErrorIs(t, err, search.ErrIndexersUnavailable)
	assert.ErrorIs(t, err, torznab.ErrUnauthorized)
}

func TestSearcher_Search_PartialFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	a := mockIndexer(ctrl, "a")
	b := mockIndexer(ctrl, "b")
	a.EXPECT().Search(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, errors.New("timeout"))
	b.EXPECT().Search(gomock.Any(), gomock.Any(), gomock.Any()).Return([]torznab.Release{
		{Title: "Heat.1995.1080p", MagnetURI: "magnet:a", Size: 2000 * mib, Seeders: 30, Indexer: "b"},
	}, nil)

	got, err := newSearcher(t, a, b).Search(context.Background(), content.NewMovie("Heat", 1995), 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "b", got[0].Indexer)
}

func TestSearcher_Search_NoIndexers(t *testing.T) {
	_, err := newSearcher(t).Search(context.Background(), content.NewMovie("Heat", 1995), 0)
	assert.ErrorIs(t, err, search.ErrNoIndexers)
}

func TestNewScorer_InvalidPattern(t *testing.T) {
	prefs := testPrefs()
	prefs.Reject = []string{"("}
	_, err := search.NewScorer(prefs)
	assert.Error(t, err)
}

func TestBest_NoneEligible(t *testing.T) {
	assert.Nil(t, search.Best([]*torrent.Torrent{{Name: "a"}, {Name: "b"}}))
	assert.Nil(t, search.Best(nil))

	tie := search.Best([]*torrent.Torrent{{Name: "a", Tier: 31, Seeders: 10}, {Name: "b", Tier: 31, Seeders: 40}})
	assert.Equal(t, "b", tie.Name)
}
