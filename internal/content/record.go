package content

import (
	"fmt"
	"time"
)

// Record is the serialized form of a Content value as stored in the memory file.
type Record struct {
	Type      Kind   `json:"type"`
	Title     string `json:"title"`
	SessionID string `json:"swiperId,omitempty"`

	// Movie
	Year int `json:"year,omitempty"`

	// Episode. ReleaseDateStr is RFC 3339 or empty when unknown.
	SeasonNum      int    `json:"seasonNum,omitempty"`
	EpisodeNum     int    `json:"episodeNum,omitempty"`
	ReleaseDateStr string `json:"releaseDateStr,omitempty"`

	// Collection
	Episodes      []Record `json:"episodes,omitempty"`
	InitialType   string   `json:"initialType,omitempty"`
	InitialSeason int      `json:"initialSeason,omitempty"`
}

func (m *Movie) Record() Record {
	return Record{Type: KindMovie, Title: m.title, SessionID: m.owner, Year: m.year}
}

func (e *Episode) Record() Record {
	r := Record{Type: KindEpisode, Title: e.title, SessionID: e.owner, SeasonNum: e.season, EpisodeNum: e.number}
	if e.release != nil {
		r.ReleaseDateStr = e.release.UTC().Format(time.RFC3339)
	}
	return r
}

func (c *Collection) Record() Record {
	r := Record{
		Type:          KindCollection,
		Title:         c.title,
		SessionID:     c.owner,
		InitialType:   c.initialType,
		InitialSeason: c.initialSeason,
		Episodes:      make([]Record, 0, len(c.episodes)),
	}
	for _, ep := range c.episodes {
		er := ep.Record()
		er.SessionID = ""
		r.Episodes = append(r.Episodes, er)
	}
	return r
}

// FromRecord reconstructs typed content from its serialized form.
func FromRecord(r Record) (Content, error) {
	if r.Title == "" {
		return nil, fmt.Errorf("%w: missing title", ErrInvalidRecord)
	}
	switch r.Type {
	case KindMovie:
		m := NewMovie(r.Title, r.Year)
		m.owner = r.SessionID
		return m, nil
	case KindEpisode:
		return episodeFromRecord(r)
	case KindCollection:
		eps := make([]*Episode, 0, len(r.Episodes))
		for _, er := range r.Episodes {
			if er.Title == "" {
				er.Title = r.Title
			}
			ep, err := episodeFromRecord(er)
			if err != nil {
				return nil, err
			}
			eps = append(eps, ep)
		}
		c := NewCollection(r.Title, eps, r.InitialType, r.InitialSeason)
		c.SetOwner(r.SessionID)
		return c, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, r.Type)
	}
}

func episodeFromRecord(r Record) (*Episode, error) {
	var release *time.Time
	if r.ReleaseDateStr != "" {
		t, err := time.Parse(time.RFC3339, r.ReleaseDateStr)
		if err != nil {
			return nil, fmt.Errorf("%w: release date %q: %v", ErrInvalidRecord, r.ReleaseDateStr, err)
		}
		release = &t
	}
	ep := NewEpisode(r.Title, r.SeasonNum, r.EpisodeNum, release)
	ep.owner = r.SessionID
	return ep, nil
}
