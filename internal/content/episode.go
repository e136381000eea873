package content

import (
	"fmt"
	"time"
)

// Episode is identified by show title, season and episode number.
type Episode struct {
	video
	title   string
	season  int
	number  int
	release *time.Time
}

// NewEpisode creates an episode. A nil release means the air date is unknown.
func NewEpisode(title string, season, number int, release *time.Time) *Episode {
	ep := &Episode{title: title, season: season, number: number}
	if release != nil {
		r := *release
		ep.release = &r
	}
	return ep
}

func (e *Episode) Title() string { return e.title }
func (e *Episode) Season() int   { return e.season }
func (e *Episode) Number() int   { return e.number }
func (e *Episode) Kind() Kind    { return KindEpisode }
func (e *Episode) IsVideo() bool { return true }
func (e *Episode) sealed()       {}

// ReleaseDate reports the air time, if known.
func (e *Episode) ReleaseDate() (time.Time, bool) {
	if e.release == nil {
		return time.Time{}, false
	}
	return *e.release, true
}

// IsReleased reports whether the episode aired at or before now.
func (e *Episode) IsReleased(now time.Time) bool {
	return e.release != nil && !e.release.After(now)
}

// Desc renders "Title S01E02".
func (e *Episode) Desc() string {
	return fmt.Sprintf("%s S%02dE%02d", e.title, e.season, e.number)
}

func (e *Episode) Equal(other Content) bool {
	o, ok := other.(*Episode)
	return ok && o.title == e.title && o.season == e.season && o.number == e.number
}

func (e *Episode) ContainsAny(other Content) bool { return e.Equal(other) }
func (e *Episode) ContainsAll(other Content) bool { return e.Equal(other) }

// IsEarlierThan orders episodes of the same show by season, then number.
func (e *Episode) IsEarlierThan(other *Episode) (bool, error) {
	if e.title != other.title {
		return false, fmt.Errorf("%w: %q vs %q", ErrTitleMismatch, e.title, other.title)
	}
	return e.less(other), nil
}

func (e *Episode) less(other *Episode) bool {
	if e.season != other.season {
		return e.season < other.season
	}
	return e.number < other.number
}

func (e *Episode) sameSlot(other *Episode) bool {
	return e.season == other.season && e.number == other.number
}

func (e *Episode) SearchTerm() string {
	return fmt.Sprintf("%s s%02de%02d", searchTitle(e.title), e.season, e.number)
}

func (e *Episode) Clone() Content { return e.clone() }

func (e *Episode) clone() *Episode {
	c := NewEpisode(e.title, e.season, e.number, e.release)
	c.owner = e.owner
	return c
}
