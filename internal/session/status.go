package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/vmunix/swiper/internal/content"
	"github.com/vmunix/swiper/internal/events"
)

const (
	recentWindow = 7 * 24 * time.Hour
	recentLimit  = 5
)

var eventTypes = events.DefaultRegistry()

// status renders every active download, the queue, monitored content and
// this session's recently completed downloads. Items that belong to this
// session are starred.
func (s *Swiper) status(ctx context.Context) (string, error) {
	now := s.now()
	mem, err := s.store.Read(ctx)
	if err != nil {
		return "", fmt.Errorf("read memory: %w", err)
	}

	var b strings.Builder
	b.WriteString("Downloading:\n")
	downloads := s.registry.All()
	if len(downloads) == 0 {
		b.WriteString("  None\n")
	}
	for _, d := range downloads {
		line := d.Video.Desc()
		if p, err := s.transfer.Progress(ctx, d.Torrent); err == nil {
			line += "  " + p.String()
		} else {
			line += "  starting"
		}
		s.writeItem(&b, d.SessionID, line)
	}

	b.WriteString("Queued:\n")
	if len(mem.Queued) == 0 {
		b.WriteString("  None\n")
	}
	for _, c := range mem.Queued {
		s.writeItem(&b, c.Owner(), c.Desc())
	}

	b.WriteString("Monitored:\n")
	if len(mem.Monitored) == 0 {
		b.WriteString("  None\n")
	}
	for _, c := range mem.Monitored {
		line := c.Desc()
		if label := airLabel(c, now); label != "" {
			line += "  (" + label + ")"
		}
		s.writeItem(&b, c.Owner(), line)
	}

	if recent := s.recentlyCompleted(ctx, now); len(recent) > 0 {
		b.WriteString("Recently completed:\n")
		for _, desc := range recent {
			s.writeItem(&b, s.ref.ID, desc)
		}
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

func (s *Swiper) writeItem(b *strings.Builder, owner, line string) {
	mark := " "
	if owner == s.ref.ID {
		mark = "*"
	}
	fmt.Fprintf(b, "%s %s\n", mark, line)
}

func airLabel(c content.Content, now time.Time) string {
	switch v := c.(type) {
	case *content.Collection:
		if _, ok := v.NextAiring(now); ok {
			return content.NextAirsLabel(v, now)
		}
	case *content.Episode:
		if at, ok := v.ReleaseDate(); ok && at.After(now) {
			return content.AiredLabel(at, now)
		}
	}
	return ""
}

func (s *Swiper) recentlyCompleted(ctx context.Context, now time.Time) []string {
	if s.history == nil {
		return nil
	}
	raws, err := s.history.ForSession(ctx, s.ref.ID, events.EventDownloadCompleted, now.Add(-recentWindow))
	if err != nil {
		s.log.Warn("read download history", "error", err)
		return nil
	}
	var out []string
	for _, raw := range raws {
		e, err := eventTypes.Unmarshal(raw)
		if err != nil {
			continue
		}
		if done, ok := e.(*events.DownloadCompleted); ok {
			out = append(out, done.Content)
		}
		if len(out) == recentLimit {
			break
		}
	}
	return out
}
