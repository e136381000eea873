// Package transfer drives torrents to completion through a torrent client.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/vmunix/swiper/internal/torrent"
)

var (
	// ErrTransfer wraps failures reported by the torrent client.
	ErrTransfer = errors.New("transfer failed")
	// ErrCancelled is returned by Download when the torrent was removed.
	ErrCancelled = errors.New("transfer cancelled")
	// ErrNotTracked is returned for torrents the client is not downloading.
	ErrNotTracked = errors.New("torrent not tracked")
)

//go:generate mockgen -destination=mocks/mock_client.go -package=mocks github.com/vmunix/swiper/internal/transfer Client

// Client downloads torrents.
type Client interface {
	// Download starts t and blocks until it completes, fails or is cancelled.
	Download(ctx context.Context, t *torrent.Torrent) (Result, error)
	// Cancel stops t and discards its data.
	Cancel(ctx context.Context, t *torrent.Torrent) error
	// Progress reports live statistics for t.
	Progress(ctx context.Context, t *torrent.Torrent) (Progress, error)
}

// Result describes a completed download.
type Result struct {
	Dir   string   // download root
	Files []string // absolute file paths
}

// Progress is a snapshot of a running transfer.
type Progress struct {
	Peers   int
	Speed   int64 // bytes per second
	Percent float64
	ETA     time.Duration // negative when unknown
}

func (p Progress) String() string {
	eta := "unknown"
	if p.ETA >= 0 {
		eta = p.ETA.Round(time.Second).String()
	}
	return fmt.Sprintf("%.1f%% (%d peers, %s/s, ETA %s)", p.Percent, p.Peers, humanize.Bytes(uint64(max(p.Speed, 0))), eta)
}
