package content

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// Initial types record how a collection was first requested.
const (
	InitialSeries = "series"
	InitialSeason = "season"
)

// Collection groups episodes of one show. Episodes are kept sorted by
// (season, number) and unique by that pair.
type Collection struct {
	owner         string
	title         string
	episodes      []*Episode
	initialType   string
	initialSeason int
}

// NewCollection creates a collection from eps, sorting and deduplicating them.
// initialSeason is 0 when the request did not name a season.
func NewCollection(title string, eps []*Episode, initialType string, initialSeason int) *Collection {
	c := &Collection{title: title, initialType: initialType, initialSeason: initialSeason}
	c.Add(eps...)
	return c
}

func (c *Collection) Title() string { return c.title }
func (c *Collection) Kind() Kind    { return KindCollection }
func (c *Collection) IsVideo() bool { return false }
func (c *Collection) sealed()       {}

func (c *Collection) Owner() string { return c.owner }

// SetOwner sets the owner of the collection and every episode in it.
func (c *Collection) SetOwner(id string) {
	c.owner = id
	for _, ep := range c.episodes {
		ep.owner = id
	}
}

func (c *Collection) InitialType() string { return c.initialType }
func (c *Collection) InitialSeason() int  { return c.initialSeason }
func (c *Collection) Len() int            { return len(c.episodes) }
func (c *Collection) IsEmpty() bool       { return len(c.episodes) == 0 }

// Episodes returns the sorted episodes. The slice is a copy; the episodes are not.
func (c *Collection) Episodes() []*Episode {
	return slices.Clone(c.episodes)
}

func (c *Collection) indexOf(ep *Episode) (int, bool) {
	return slices.BinarySearchFunc(c.episodes, ep, func(a, b *Episode) int {
		switch {
		case a.less(b):
			return -1
		case b.less(a):
			return 1
		default:
			return 0
		}
	})
}

func (c *Collection) has(ep *Episode) bool {
	if ep.title != c.title {
		return false
	}
	_, found := c.indexOf(ep)
	return found
}

// Add inserts copies of eps that are not already present. Episodes of other
// titles are ignored. Returns the number inserted.
func (c *Collection) Add(eps ...*Episode) int {
	added := 0
	for _, ep := range eps {
		if ep == nil || ep.title != c.title {
			continue
		}
		i, found := c.indexOf(ep)
		if found {
			continue
		}
		cp := ep.clone()
		if c.owner != "" {
			cp.owner = c.owner
		}
		c.episodes = slices.Insert(c.episodes, i, cp)
		added++
	}
	return added
}

// Remove deletes every episode of other's episode set. Returns the number removed.
func (c *Collection) Remove(other Content) int {
	if other.Title() != c.title {
		return 0
	}
	removed := 0
	for _, ep := range episodesOf(other) {
		if i, found := c.indexOf(ep); found {
			c.episodes = slices.Delete(c.episodes, i, i+1)
			removed++
		}
	}
	return removed
}

// Pop removes and returns up to n of the earliest episodes.
func (c *Collection) Pop(n int) []*Episode {
	n = min(max(n, 0), len(c.episodes))
	out := slices.Clone(c.episodes[:n])
	c.episodes = slices.Delete(c.episodes, 0, n)
	for _, ep := range out {
		ep.owner = c.owner
	}
	return out
}

// Released returns a new collection holding only episodes aired by now.
func (c *Collection) Released(now time.Time) *Collection {
	r := &Collection{owner: c.owner, title: c.title, initialType: c.initialType, initialSeason: c.initialSeason}
	for _, ep := range c.episodes {
		if ep.IsReleased(now) {
			r.episodes = append(r.episodes, ep.clone())
		}
	}
	return r
}

// NextAiring returns the earliest episode airing after now.
func (c *Collection) NextAiring(now time.Time) (*Episode, bool) {
	var next *Episode
	for _, ep := range c.episodes {
		if ep.release == nil || !ep.release.After(now) {
			continue
		}
		if next == nil || ep.release.Before(*next.release) {
			next = ep
		}
	}
	return next, next != nil
}

func (c *Collection) Equal(other Content) bool {
	o, ok := other.(*Collection)
	if !ok || o.title != c.title || len(o.episodes) != len(c.episodes) {
		return false
	}
	for i := range c.episodes {
		if !c.episodes[i].Equal(o.episodes[i]) {
			return false
		}
	}
	return true
}

// ContainsAny reports whether at least one episode of other is present.
func (c *Collection) ContainsAny(other Content) bool {
	for _, ep := range episodesOf(other) {
		if c.has(ep) {
			return true
		}
	}
	return false
}

// ContainsAll reports whether every episode of other is present. A movie is
// never contained; an empty collection of the same title always is.
func (c *Collection) ContainsAll(other Content) bool {
	if other.Kind() == KindMovie || other.Title() != c.title {
		return false
	}
	for _, ep := range episodesOf(other) {
		if !c.has(ep) {
			return false
		}
	}
	return true
}

// Desc renders the title followed by compressed episode ranges, for
// example "Title S01E01-12, S02E01-04 & E06-08".
func (c *Collection) Desc() string {
	var b strings.Builder
	b.WriteString(c.title)

	var prev *Episode
	inRun := false
	closeRun := func() {
		if inRun {
			fmt.Fprintf(&b, "-%02d", prev.number)
			inRun = false
		}
	}
	for _, ep := range c.episodes {
		switch {
		case prev == nil:
			fmt.Fprintf(&b, " S%02dE%02d", ep.season, ep.number)
		case ep.season != prev.season:
			closeRun()
			fmt.Fprintf(&b, ", S%02dE%02d", ep.season, ep.number)
		case ep.number-prev.number > 1:
			closeRun()
			fmt.Fprintf(&b, " & E%02d", ep.number)
		default:
			inRun = true
		}
		prev = ep
	}
	closeRun()
	return b.String()
}

func (c *Collection) Clone() Content { return c.clone() }

func (c *Collection) clone() *Collection {
	cp := &Collection{
		owner:         c.owner,
		title:         c.title,
		initialType:   c.initialType,
		initialSeason: c.initialSeason,
		episodes:      make([]*Episode, len(c.episodes)),
	}
	for i, ep := range c.episodes {
		cp.episodes[i] = ep.clone()
	}
	return cp
}

// Merge returns a new collection of the given title holding the episodes of
// every item. Used when two same-titled entries are combined.
func Merge(title string, initialType string, items ...Content) *Collection {
	c := &Collection{title: title, initialType: initialType}
	for _, item := range items {
		c.Add(episodesOf(item)...)
	}
	return c
}
