// Package monitor searches for monitored content once a day and keeps
// re-searching episodes around the time they air.
package monitor

import (
	"context"
	"log/slog"
	"runtime/debug"
	"slices"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vmunix/swiper/internal/content"
	"github.com/vmunix/swiper/internal/events"
	"github.com/vmunix/swiper/internal/memory"
)

// Defaults for Config fields left zero.
const (
	DefaultDailyHour      = 3
	DefaultCooldown       = time.Minute
	DefaultUpcomingWindow = 24 * time.Hour
)

// Store reads the persisted memory.
type Store interface {
	Read(ctx context.Context) (*memory.Memory, error)
}

// Downloader starts or queues content for a session without prompting.
type Downloader interface {
	QueueDownload(ctx context.Context, sessionID string, c content.Content) error
}

// Publisher receives monitor events.
type Publisher interface {
	Publish(ctx context.Context, e events.Event) error
}

// PruneFunc deletes stale records and reports how many went.
type PruneFunc func(ctx context.Context) (int64, error)

// Config controls scheduling.
type Config struct {
	DailyHour      int // hour of day, local time, for the full search
	Backoff        Backoff
	Cooldown       time.Duration
	UpcomingWindow time.Duration // how far ahead an airing episode is tracked
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithPublisher publishes a MonitorSearched event after each tracked search.
func WithPublisher(p Publisher) Option {
	return func(s *Scheduler) { s.bus = p }
}

// WithPruner runs fn at the end of every pass.
func WithPruner(name string, fn PruneFunc) Option {
	return func(s *Scheduler) {
		s.pruners = append(s.pruners, namedPruner{name, fn})
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

type namedPruner struct {
	name string
	fn   PruneFunc
}

// Scheduler runs the daily search of monitored content and feeds airing
// episodes to a Tracker.
type Scheduler struct {
	cfg       Config
	store     Store
	downloads Downloader
	bus       Publisher
	pruners   []namedPruner
	tracker   *Tracker
	check     chan struct{}
	now       func() time.Time
	log       *slog.Logger
}

// NewScheduler creates a scheduler.
func NewScheduler(cfg Config, store Store, downloads Downloader, log *slog.Logger, opts ...Option) *Scheduler {
	if cfg.Backoff == nil {
		cfg.Backoff = DefaultBackoff
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = DefaultCooldown
	}
	if cfg.UpcomingWindow <= 0 {
		cfg.UpcomingWindow = DefaultUpcomingWindow
	}
	s := &Scheduler{
		cfg:       cfg,
		store:     store,
		downloads: downloads,
		check:     make(chan struct{}, 1),
		now:       time.Now,
		log:       log.With("component", "monitor"),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.tracker = NewTracker(cfg.Backoff, cfg.Cooldown, s.searchEpisode, log)
	s.tracker.now = s.now
	return s
}

// Tracker returns the upcoming-episode tracker.
func (s *Scheduler) Tracker() *Tracker { return s.tracker }

// CheckMonitored asks for a full pass now. It does not wait for it.
func (s *Scheduler) CheckMonitored() {
	select {
	case s.check <- struct{}{}:
	default:
	}
}

// Run tracks upcoming episodes and runs a full pass every day at
// DailyHour, or whenever CheckMonitored is called, until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.tracker.Run(ctx) })
	g.Go(func() error { return s.loop(ctx) })
	return g.Wait()
}

func (s *Scheduler) loop(ctx context.Context) error {
	// Tracking is in memory only; rebuild it on start.
	if _, err := s.ScanUpcoming(ctx); err != nil {
		s.log.Warn("scan upcoming", "error", err)
	}

	for {
		next := NextDaily(s.now(), s.cfg.DailyHour)
		s.log.Debug("next monitor pass", "at", next)
		timer := time.NewTimer(next.Sub(s.now()))

		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		case <-s.check:
			timer.Stop()
		}
		s.pass(ctx)
	}
}

// pass runs one full search. A failure or panic is logged and never stops
// the loop.
func (s *Scheduler) pass(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("monitor pass panicked", "panic", r, "stack", string(debug.Stack()))
		}
	}()

	start := s.now()
	if err := s.SearchMonitored(ctx); err != nil {
		s.log.Warn("search monitored", "error", err)
	}
	n, err := s.ScanUpcoming(ctx)
	if err != nil {
		s.log.Warn("scan upcoming", "error", err)
	}
	for _, p := range s.pruners {
		if removed, err := p.fn(ctx); err != nil {
			s.log.Warn("prune failed", "what", p.name, "error", err)
		} else if removed > 0 {
			s.log.Info("pruned", "what", p.name, "count", removed)
		}
	}
	s.log.Info("monitor pass complete", "newly_tracked", n, "tracked", s.tracker.Len(), "took", s.now().Sub(start))
}

// NextDaily returns the next time after now at hour:00 in now's location.
func NextDaily(now time.Time, hour int) time.Time {
	y, m, d := now.Date()
	next := time.Date(y, m, d, hour, 0, 0, 0, now.Location())
	if !next.After(now) {
		next = time.Date(y, m, d+1, hour, 0, 0, 0, now.Location())
	}
	return next
}

// SearchMonitored tries to download the released part of every monitored
// item. A session's items are tried one at a time in title order; sessions
// run concurrently.
func (s *Scheduler) SearchMonitored(ctx context.Context) error {
	mem, err := s.store.Read(ctx)
	if err != nil {
		return err
	}
	now := s.now()

	byOwner := make(map[string][]content.Content)
	for _, c := range mem.Monitored {
		if r := content.Released(c, now); r != nil {
			byOwner[c.Owner()] = append(byOwner[c.Owner()], r)
		}
	}

	g, ctx := errgroup.WithContext(ctx)
	for owner, items := range byOwner {
		slices.SortStableFunc(items, func(a, b content.Content) int {
			return strings.Compare(a.Title(), b.Title())
		})
		g.Go(func() error {
			for _, c := range items {
				if err := ctx.Err(); err != nil {
					return err
				}
				s.tryDownload(ctx, owner, c)
			}
			return nil
		})
	}
	return g.Wait()
}

// ScanUpcoming starts tracking every monitored episode that aired within
// the backoff schedule or airs within the upcoming window. It returns how
// many were newly tracked.
func (s *Scheduler) ScanUpcoming(ctx context.Context) (int, error) {
	mem, err := s.store.Read(ctx)
	if err != nil {
		return 0, err
	}
	now := s.now()
	from := now.Add(-s.cfg.Backoff.Total())
	to := now.Add(s.cfg.UpcomingWindow)

	n := 0
	for _, c := range mem.Monitored {
		for _, ep := range episodes(c) {
			at, ok := ep.ReleaseDate()
			if !ok || at.Before(from) || at.After(to) {
				continue
			}
			if s.tracker.Track(c.Owner(), ep) {
				n++
			}
		}
	}
	return n, nil
}

func (s *Scheduler) tryDownload(ctx context.Context, sessionID string, c content.Content) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("monitored download panicked", "session", sessionID, "content", c.Desc(), "panic", r)
		}
	}()
	if err := s.downloads.QueueDownload(ctx, sessionID, c); err != nil {
		s.log.Warn("monitored download", "session", sessionID, "content", c.Desc(), "error", err)
	}
}

func episodes(c content.Content) []*content.Episode {
	switch v := c.(type) {
	case *content.Episode:
		return []*content.Episode{v}
	case *content.Collection:
		return v.Episodes()
	default:
		return nil
	}
}

// searchEpisode is the tracker's SearchFunc. It reports the episode as
// pending while it is still monitored.
func (s *Scheduler) searchEpisode(ctx context.Context, sessionID string, ep *content.Episode) bool {
	mem, err := s.store.Read(ctx)
	if err != nil {
		s.log.Warn("tracked search: read memory", "error", err)
		return true
	}
	if !mem.IsMonitored(ep) {
		return false
	}

	if err := s.downloads.QueueDownload(ctx, sessionID, ep); err != nil {
		s.log.Warn("tracked search", "episode", ep.Desc(), "error", err)
	}

	pending := true
	if mem, err := s.store.Read(ctx); err == nil {
		pending = mem.IsMonitored(ep)
	}
	s.publish(ctx, &events.MonitorSearched{
		BaseEvent: events.NewBaseEvent(events.EventMonitorSearched, events.EntityContent, 0, sessionID),
		Content:   ep.Desc(),
		Found:     !pending,
	})
	return pending
}

func (s *Scheduler) publish(ctx context.Context, e events.Event) {
	if s.bus == nil {
		return
	}
	if err := s.bus.Publish(ctx, e); err != nil {
		s.log.Warn("publish event", "type", e.EventType(), "error", err)
	}
}
