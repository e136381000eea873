// Package tvdb provides a client for the TVDB API v4.
package tvdb

import "time"

// Series represents a TV series from TVDB.
type Series struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Year     int    `json:"year"`     // from firstAired
	Status   string `json:"status"`   // "Continuing" or "Ended"
	AirsTime string `json:"airsTime"` // local "HH:MM", may be empty
	Overview string `json:"overview"`
}

// Episode represents a single episode from TVDB.
type Episode struct {
	ID      int       `json:"id"`
	Season  int       `json:"seasonNumber"`
	Episode int       `json:"number"`
	Name    string    `json:"name"`
	AirDate time.Time `json:"aired"` // zero when unannounced
}

// Aired reports whether the episode has an announced air date.
func (e Episode) Aired() bool { return !e.AirDate.IsZero() }

// AirInstant combines the episode air date with a series airs time such
// as "21:00" or "9:00 PM". An unparseable time yields midnight.
func (e Episode) AirInstant(airsTime string, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := e.AirDate.Date()
	for _, layout := range []string{"15:04", "3:04 PM", "3:04PM", "15:04:05"} {
		if t, err := time.Parse(layout, airsTime); err == nil {
			return time.Date(y, m, d, t.Hour(), t.Minute(), 0, 0, loc)
		}
	}
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// SearchResult represents a series search result.
type SearchResult struct {
	ID      int    `json:"tvdb_id"`
	Name    string `json:"name"`
	Year    int    `json:"year"`
	Status  string `json:"status"`
	Network string `json:"network"`
}

type loginResponse struct {
	Status string `json:"status"`
	Data   struct {
		Token string `json:"token"`
	} `json:"data"`
}

type searchResponse struct {
	Data []struct {
		ObjectID string `json:"objectID"`
		Name     string `json:"name"`
		Year     string `json:"year"`
		Status   string `json:"status"`
		Network  string `json:"network"`
		TVDBID   string `json:"tvdb_id"`
	} `json:"data"`
}

type remoteIDResponse struct {
	Data []struct {
		Series *struct {
			ID   int    `json:"id"`
			Name string `json:"name"`
		} `json:"series"`
	} `json:"data"`
}

type seriesResponse struct {
	Data struct {
		ID     int    `json:"id"`
		Name   string `json:"name"`
		Status struct {
			Name string `json:"name"`
		} `json:"status"`
		AirsTime   string `json:"airsTime"`
		Overview   string `json:"overview"`
		FirstAired string `json:"firstAired"` // YYYY-MM-DD
	} `json:"data"`
}

type episodesResponse struct {
	Data struct {
		Episodes []struct {
			ID           int    `json:"id"`
			SeasonNumber int    `json:"seasonNumber"`
			Number       int    `json:"number"`
			Name         string `json:"name"`
			Aired        string `json:"aired"` // YYYY-MM-DD
		} `json:"episodes"`
	} `json:"data"`
	Links struct {
		Next *string `json:"next"`
	} `json:"links"`
}
