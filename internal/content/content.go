// Package content models the video content a session can monitor, queue and download.
//
// Content is a closed set of three variants: *Movie, *Episode and *Collection.
// Movies and episodes are videos and can be downloaded as a single torrent;
// collections group episodes of one show.
package content

import (
	"regexp"
	"strings"
	"time"

	"github.com/vmunix/swiper/internal/torrent"
)

// Kind tags the concrete variant of a Content value.
type Kind string

const (
	KindMovie      Kind = "movie"
	KindEpisode    Kind = "episode"
	KindCollection Kind = "collection"
)

// Content is implemented by *Movie, *Episode and *Collection only.
type Content interface {
	Title() string
	Kind() Kind
	IsVideo() bool

	// Owner is the id of the session the item belongs to.
	Owner() string
	SetOwner(sessionID string)

	Desc() string
	Equal(other Content) bool
	ContainsAny(other Content) bool
	ContainsAll(other Content) bool

	// Clone returns a deep copy without any selected torrent.
	Clone() Content
	Record() Record

	sealed()
}

// Video is content that maps to exactly one torrent.
type Video interface {
	Content
	SearchTerm() string
	Torrent() *torrent.Torrent
	SetTorrent(t *torrent.Torrent)
}

type video struct {
	owner   string
	torrent *torrent.Torrent
}

func (v *video) Owner() string                 { return v.owner }
func (v *video) SetOwner(id string)            { v.owner = id }
func (v *video) Torrent() *torrent.Torrent     { return v.torrent }
func (v *video) SetTorrent(t *torrent.Torrent) { v.torrent = t }

// episodesOf returns the episode set of c: itself for an episode, the
// contained episodes for a collection, none for a movie.
func episodesOf(c Content) []*Episode {
	switch v := c.(type) {
	case *Episode:
		return []*Episode{v}
	case *Collection:
		return v.episodes
	default:
		return nil
	}
}

// Released returns the part of c that is available now. Movies are always
// released. Episodes without a release date are treated as unreleased.
// Returns nil when nothing is released.
func Released(c Content, now time.Time) Content {
	switch v := c.(type) {
	case *Movie:
		return v
	case *Episode:
		if v.IsReleased(now) {
			return v
		}
		return nil
	case *Collection:
		r := v.Released(now)
		if r.IsEmpty() {
			return nil
		}
		return r
	default:
		return nil
	}
}

// Videos flattens c into downloadable videos.
func Videos(c Content) []Video {
	switch v := c.(type) {
	case *Movie:
		return []Video{v}
	case *Episode:
		return []Video{v}
	case *Collection:
		out := make([]Video, 0, len(v.episodes))
		for _, ep := range v.episodes {
			out = append(out, ep)
		}
		return out
	default:
		return nil
	}
}

// Overlaps reports whether a and b share any part: equal items, an episode
// and a collection holding it, or two collections with a common episode.
func Overlaps(a, b Content) bool {
	return a.ContainsAny(b) || b.ContainsAny(a)
}

var (
	apostrophes = regexp.MustCompile(`['’]`)
	nonAlnum    = regexp.MustCompile(`[^a-z0-9]+`)
)

// searchTitle lowercases a title and collapses punctuation for indexer queries.
func searchTitle(title string) string {
	s := apostrophes.ReplaceAllString(strings.ToLower(title), "")
	return strings.TrimSpace(nonAlnum.ReplaceAllString(s, " "))
}
