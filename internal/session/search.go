package session

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/vmunix/swiper/internal/content"
	"github.com/vmunix/swiper/internal/search"
	"github.com/vmunix/swiper/internal/torrent"
)

var respNumber = response{"number", regexp.MustCompile(`^\s*\d{1,2}\s*$`)}

func (s *Swiper) search(ctx context.Context, args string) (string, error) {
	c, err := s.identify(ctx, args)
	if err != nil {
		return "", err
	}
	v, ok := c.(content.Video)
	if !ok {
		coll := c.(*content.Collection)
		var reply string
		if v, reply, err = s.narrowToEpisode(ctx, coll); v == nil {
			return reply, err
		}
	}
	return s.searchVideo(ctx, v)
}

func (s *Swiper) searchVideo(ctx context.Context, v content.Video) (string, error) {
	torrents, err := s.searcher.Search(ctx, v, s.cfg.SearchRetries)
	switch {
	case errors.Is(err, search.ErrIndexersUnavailable):
		return indexersDown, nil
	case err != nil:
		return "", err
	case len(torrents) == 0:
		return s.noTorrents(ctx, v, func() (string, error) {
			return s.searchVideo(ctx, v)
		})
	}
	return s.pickTorrent(ctx, v, torrents)
}

// pickTorrent pages through torrents until the user picks one to download.
func (s *Swiper) pickTorrent(ctx context.Context, v content.Video, torrents []*torrent.Torrent) (string, error) {
	per := s.cfg.DisplayTorrents
	page := 0
	for {
		start := page * per
		end := min(start+per, len(torrents))

		var b strings.Builder
		b.WriteString("Found torrents:\n")
		for i := start; i < end; i++ {
			fmt.Fprintf(&b, "%d. %s\n", i+1, torrents[i])
		}
		b.WriteString(`Type "prev", "next", or "download" followed by the number of the torrent you'd like.`)

		r, in, err := s.choose(ctx, b.String(), respDownload, respNext, respPrev)
		if err != nil {
			return "", err
		}
		switch r {
		case respNext:
			if end < len(torrents) {
				page++
			}
		case respPrev:
			if page > 0 {
				page--
			}
		case respDownload:
			n := captureNumber(in)
			if n < 1 || n > len(torrents) {
				s.send(fmt.Sprintf("Pick a number between 1 and %d.", len(torrents)))
				continue
			}
			v.SetTorrent(torrents[n-1])
			return s.QueueDownload(ctx, v, false)
		}
	}
}

// narrowToEpisode asks which episode of coll to search for. The user may
// instead download all of coll, in which case v is nil and reply is set.
func (s *Swiper) narrowToEpisode(ctx context.Context, coll *content.Collection) (v content.Video, reply string, err error) {
	series := coll.InitialType() == content.InitialSeries
	msg := `Give the episode number to search or type "download" to get the whole season.`
	possible := []response{respEpisode, respNumber, respDownload}
	if series {
		msg = `Give the season and episode numbers to search or type "download" to get the whole series.`
		possible = []response{respSeasonEp, respDownload}
	}

	for {
		r, in, err := s.choose(ctx, msg, possible...)
		if err != nil {
			return nil, "", err
		}
		if r == respDownload {
			reply, err := s.QueueDownload(ctx, coll, false)
			return nil, reply, err
		}

		season := coll.InitialSeason()
		if series {
			season = captureSeason(in)
		}
		if season == 0 {
			s.send("I need a season number as well.")
			continue
		}
		if seasonOf(coll, season).IsEmpty() {
			s.send(fmt.Sprintf("%s doesn't have a season %d.", coll.Title(), season))
			continue
		}

		ep := captureEpisode(in)
		if r == respNumber {
			ep = captureNumber(in)
		}
		if ep == 0 {
			if ep, err = s.askEpisode(ctx); err != nil {
				return nil, "", err
			}
		}
		if found := findEpisode(coll, season, ep); found != nil {
			return found, "", nil
		}
		s.send(fmt.Sprintf("%s doesn't have season %d episode %d.", coll.Title(), season, ep))
	}
}

func (s *Swiper) askEpisode(ctx context.Context) (int, error) {
	const msg = "And the episode?"
	prompt := msg
	for {
		in, err := s.ask(ctx, prompt)
		if err != nil {
			return 0, err
		}
		if n := captureNumber(in); n > 0 {
			return n, nil
		}
		prompt = "I'm not sure I understand. " + msg
	}
}
