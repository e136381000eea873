// Package torrent defines the torrent candidate shared by search, content and transfer.
package torrent

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
)

// Torrent is a downloadable candidate returned by an indexer.
type Torrent struct {
	Name     string
	Indexer  string
	Magnet   string // magnet URI or .torrent link
	InfoHash string
	Size     int64 // bytes
	Seeders  int
	Leechers int
	Uploaded time.Time
	Tier     int
}

// String renders the candidate on one line for chat replies.
func (t *Torrent) String() string {
	s := fmt.Sprintf("%s (%s, %d seeders, %d leechers", t.Name, humanize.Bytes(uint64(max(t.Size, 0))), t.Seeders, t.Leechers)
	if !t.Uploaded.IsZero() {
		s += ", uploaded " + humanize.Time(t.Uploaded)
	}
	return s + ")"
}

// Key identifies the torrent to a transfer client.
func (t *Torrent) Key() string {
	if t.InfoHash != "" {
		return t.InfoHash
	}
	return t.Magnet
}
