// Package server wires the agent together from its configuration and runs
// the long-lived components.
package server

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/vmunix/swiper/internal/config"
	"github.com/vmunix/swiper/internal/dispatch"
	"github.com/vmunix/swiper/internal/download"
	"github.com/vmunix/swiper/internal/events"
	"github.com/vmunix/swiper/internal/importer"
	"github.com/vmunix/swiper/internal/memory"
	"github.com/vmunix/swiper/internal/metadata"
	"github.com/vmunix/swiper/internal/migrations"
	"github.com/vmunix/swiper/internal/monitor"
	"github.com/vmunix/swiper/internal/search"
	"github.com/vmunix/swiper/internal/session"
	"github.com/vmunix/swiper/internal/transfer"
	"github.com/vmunix/swiper/internal/transport"
	"github.com/vmunix/swiper/pkg/omdb"
	"github.com/vmunix/swiper/pkg/torznab"
	"github.com/vmunix/swiper/pkg/tvdb"
)

// Option configures a Runner.
type Option func(*Runner)

// WithTerminal talks to the configured user over in and out.
func WithTerminal(in io.Reader, out io.Writer) Option {
	return func(r *Runner) {
		r.stdin = in
		r.stdout = out
	}
}

// Runner manages the long-lived components.
type Runner struct {
	config *config.Config
	logger *slog.Logger
	stdin  io.Reader // nil without a terminal
	stdout io.Writer
}

// NewRunner creates a new runner.
func NewRunner(cfg *config.Config, logger *slog.Logger, opts ...Option) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Runner{config: cfg, logger: logger}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run starts every component and blocks until ctx is cancelled, the
// terminal user quits, or a component fails.
func (r *Runner) Run(ctx context.Context) error {
	cfg := r.config
	log := r.logger

	store := memory.NewStore(cfg.Memory.Path,
		memory.WithLockTimeout(cfg.Memory.LockTimeout.Duration),
		memory.WithLogger(log))
	if err := store.Init(ctx); err != nil {
		return fmt.Errorf("memory: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0755); err != nil {
		return fmt.Errorf("create db dir: %w", err)
	}
	db, err := migrations.Open(ctx, cfg.Database.Path, log)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	eventLog := events.NewEventLog(db)
	bus := events.NewBus(eventLog, log.With("component", "bus"))
	defer func() { _ = bus.Close() }()

	searcher, err := r.searcher()
	if err != nil {
		return err
	}
	cache := metadata.NewCache(db)
	resolver := metadata.NewService(
		omdb.NewClient(cfg.Metadata.OMDbAPIKey, omdb.WithLogger(log)),
		tvdb.New(cfg.Metadata.TVDBAPIKey, tvdb.WithLogger(log)),
		cache, cfg.Metadata.Location(), log)

	d := dispatch.New(session.Config{
		MaxDownloads:    cfg.Swiper.MaxDownloads,
		DisplayTorrents: cfg.Swiper.DisplayTorrents,
		SearchRetries:   cfg.Swiper.SearchRetries,
	}, store, session.Deps{
		Registry: download.NewRegistry(),
		Resolver: resolver,
		Searcher: searcher,
		Transfer: transfer.NewTransmissionClient(transfer.TransmissionConfig{
			URL:          cfg.Transmission.URL,
			Username:     cfg.Transmission.Username,
			Password:     cfg.Transmission.Password,
			DownloadDir:  cfg.Transmission.DownloadDir,
			PollInterval: cfg.Transmission.PollInterval.Duration,
		}, nil, log),
		Exporter: importer.NewExporter(cfg.Library.Root, cfg.Library.MovieNaming, cfg.Library.EpisodeNaming, log),
		History:  eventLog,
		Logger:   log,
	}, bus, log)

	scheduler := monitor.NewScheduler(monitor.Config{
		DailyHour:      cfg.Monitor.DailyHour,
		Backoff:        monitor.Backoff(cfg.Monitor.BackoffSchedule()),
		Cooldown:       cfg.Monitor.Cooldown.Duration,
		UpcomingWindow: cfg.Monitor.UpcomingWindow.Duration,
	}, store, d, log,
		monitor.WithPublisher(bus),
		monitor.WithPruner("events", func(ctx context.Context) (int64, error) {
			return eventLog.Prune(ctx, events.DefaultRetention)
		}),
		monitor.WithPruner("metadata cache", cache.Prune))
	d.SetChecker(scheduler)

	g, ctx := errgroup.WithContext(ctx)
	// The first component to return stops the rest.
	ctx, stop := context.WithCancel(ctx)
	defer stop()
	start := func(name string, run func(context.Context) error) {
		g.Go(func() error {
			defer stop()
			err := run(ctx)
			r.logger.Debug("component stopped", "component", name, "error", err)
			return err
		})
	}

	start("dispatch", d.Run)
	start("monitor", scheduler.Run)
	if r.stdin != nil {
		cli := transport.NewCLI(cfg.Swiper.User, r.stdin, r.stdout, log)
		d.Route(transport.TypeCLI, cli)
		start("cli", func(ctx context.Context) error { return cli.Run(ctx, d) })
	}
	if cfg.Gateway.Enabled {
		gw := transport.NewGateway(transport.GatewayConfig{
			URL:         cfg.Gateway.URL,
			PollTimeout: cfg.Gateway.PollTimeout.Duration,
		}, nil, log)
		d.Route(transport.TypeChat, gw)
		start("gateway", func(ctx context.Context) error { return gw.Run(ctx, d) })
	}

	log.Info("swiper running",
		"memory", cfg.Memory.Path,
		"database", cfg.Database.Path,
		"indexers", len(cfg.Indexers),
		"max_downloads", cfg.Swiper.MaxDownloads,
		"terminal", r.stdin != nil,
		"gateway", cfg.Gateway.Enabled,
	)
	return g.Wait()
}

func (r *Runner) searcher() (*search.Searcher, error) {
	q := r.config.Quality
	scorer, err := search.NewScorer(search.Preferences{
		TV:         q.TV,
		Movie:      q.Movie,
		TVSize:     search.SizeRange{MinMB: q.Size.TV.Min, MaxMB: q.Size.TV.Max},
		MovieSize:  search.SizeRange{MinMB: q.Size.Movie.Min, MaxMB: q.Size.Movie.Max},
		MinSeeders: q.MinSeeders,
		Reject:     q.Reject,
	})
	if err != nil {
		return nil, fmt.Errorf("quality: %w", err)
	}

	var indexers []search.Indexer
	for name, idx := range r.config.Indexers {
		indexers = append(indexers, torznab.NewClient(name, idx.URL, idx.APIKey, torznab.WithLogger(r.logger)))
	}
	pool := search.NewIndexerPool(indexers, r.logger)
	return search.NewSearcher(pool, scorer, r.logger), nil
}
