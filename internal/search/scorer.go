package search

import (
	"cmp"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/vmunix/swiper/internal/content"
	"github.com/vmunix/swiper/internal/torrent"
	"github.com/vmunix/swiper/pkg/release"
)

// SizeRange bounds an acceptable torrent size in megabytes. Zero means unbounded.
type SizeRange struct {
	MinMB int64
	MaxMB int64
}

func (r SizeRange) contains(bytes int64) bool {
	mb := bytes / (1 << 20)
	return (r.MinMB == 0 || mb >= r.MinMB) && (r.MaxMB == 0 || mb <= r.MaxMB)
}

// Preferences controls which torrents are eligible and how they rank.
type Preferences struct {
	// TV and Movie list quality keywords, most preferred first.
	TV    []string
	Movie []string

	TVSize    SizeRange
	MovieSize SizeRange

	MinSeeders int

	// Reject holds case-insensitive regular expressions matched against the name.
	Reject []string
}

// seederSteps are multiples of MinSeeders that each add one to the tier.
var seederSteps = []int{2, 4, 8, 16}

// Scorer assigns tiers to torrents.
type Scorer struct {
	prefs  Preferences
	reject []*regexp.Regexp
}

// NewScorer compiles the reject patterns in prefs.
func NewScorer(prefs Preferences) (*Scorer, error) {
	s := &Scorer{prefs: prefs}
	for _, p := range prefs.Reject {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return nil, fmt.Errorf("reject pattern %q: %w", p, err)
		}
		s.reject = append(s.reject, re)
	}
	return s, nil
}

// Tier scores t as a candidate for v. The quality rank of the first matching
// keyword dominates; seeders add a small bonus. Zero means ineligible.
func (s *Scorer) Tier(t *torrent.Torrent, v content.Video) int {
	keywords, size := s.prefs.Movie, s.prefs.MovieSize
	if v.Kind() == content.KindEpisode {
		keywords, size = s.prefs.TV, s.prefs.TVSize
	}

	if t.Seeders < s.prefs.MinSeeders {
		return 0
	}
	if t.Size > 0 && !size.contains(t.Size) {
		return 0
	}
	for _, re := range s.reject {
		if re.MatchString(t.Name) {
			return 0
		}
	}
	if !s.namesVideo(t.Name, v) {
		return 0
	}

	rank := rankOf(strings.ToLower(t.Name), keywords)
	if rank == 0 {
		return 0
	}
	bonus := 0
	for _, step := range seederSteps {
		if t.Seeders >= step*max(s.prefs.MinSeeders, 1) {
			bonus++
		}
	}
	return rank*10 + bonus
}

func rankOf(name string, keywords []string) int {
	for i, kw := range keywords {
		if strings.Contains(name, strings.ToLower(kw)) {
			return len(keywords) - i
		}
	}
	return 0
}

// namesVideo checks the parsed release against the video it should contain.
func (s *Scorer) namesVideo(name string, v content.Video) bool {
	info := release.Parse(name)
	if info.Source.IsTheatrical() {
		return false
	}
	if release.Matches(info.Title, v.Title()) < release.ConfidenceMedium {
		return false
	}
	switch v := v.(type) {
	case *content.Episode:
		return info.Season == v.Season() && info.Episode == v.Number()
	case *content.Movie:
		if info.Year != 0 && v.Year() != 0 {
			d := info.Year - v.Year()
			return d >= -1 && d <= 1
		}
	}
	return true
}

// Best returns the highest-tier torrent, preferring more seeders on ties.
// Returns nil when every candidate is ineligible.
func Best(candidates []*torrent.Torrent) *torrent.Torrent {
	eligible := slices.DeleteFunc(slices.Clone(candidates), func(t *torrent.Torrent) bool { return t.Tier <= 0 })
	if len(eligible) == 0 {
		return nil
	}
	return slices.MaxFunc(eligible, func(a, b *torrent.Torrent) int {
		if c := cmp.Compare(a.Tier, b.Tier); c != 0 {
			return c
		}
		return cmp.Compare(a.Seeders, b.Seeders)
	})
}
