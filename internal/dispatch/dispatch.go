// Package dispatch owns the running sessions. It routes inbound chat
// messages to the right session, routes replies back out through the
// transport the session arrived on, and lets the monitor start downloads
// on behalf of a session.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/vmunix/swiper/internal/content"
	"github.com/vmunix/swiper/internal/download"
	"github.com/vmunix/swiper/internal/events"
	"github.com/vmunix/swiper/internal/memory"
	"github.com/vmunix/swiper/internal/reconcile"
	"github.com/vmunix/swiper/internal/session"
)

var (
	// ErrUnknownSession is returned for a session id that never talked to us.
	ErrUnknownSession = errors.New("unknown session")
	// ErrNoRoute is returned when no transport handles a session's type.
	ErrNoRoute = errors.New("no transport for session type")
)

// Store is the memory document as the dispatcher uses it.
type Store interface {
	session.Store
	SaveSession(ctx context.Context, ref memory.SessionRef) error
}

// Publisher receives download and memory events.
type Publisher interface {
	Publish(ctx context.Context, e events.Event) error
}

// Dispatcher creates sessions on first contact and keeps them running
// until its Run context ends.
type Dispatcher struct {
	cfg     session.Config
	deps    session.Deps
	store   Store
	bus     Publisher
	log     *slog.Logger
	checker session.Checker

	mu       sync.Mutex
	ctx      context.Context // nil until Run
	sessions map[string]*session.Swiper
	routes   map[string]session.Sender
	wg       sync.WaitGroup
}

// New creates a dispatcher. deps is the template for every session: its
// Store, Sender and Checker are replaced by the dispatcher's own. bus may
// be nil.
func New(cfg session.Config, store Store, deps session.Deps, bus Publisher, log *slog.Logger) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	d := &Dispatcher{
		cfg:      cfg,
		store:    store,
		bus:      bus,
		log:      log.With("component", "dispatch"),
		sessions: make(map[string]*session.Swiper),
		routes:   make(map[string]session.Sender),
	}
	deps.Store = &recordingStore{Store: store, publish: d.publish}
	deps.Sender = d
	deps.Checker = d
	if deps.Logger == nil {
		deps.Logger = log
	}
	d.deps = deps
	if deps.Registry != nil {
		deps.Registry.OnTransition(d.onTransition)
	}
	return d
}

// Route sends replies for sessions of sessionType through s.
func (d *Dispatcher) Route(sessionType string, s session.Sender) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.routes[sessionType] = s
}

// SetChecker sets what the "check" command triggers.
func (d *Dispatcher) SetChecker(c session.Checker) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.checker = c
}

// CheckMonitored forwards to the checker, if one is set.
func (d *Dispatcher) CheckMonitored() {
	d.mu.Lock()
	c := d.checker
	d.mu.Unlock()
	if c != nil {
		c.CheckMonitored()
	}
}

// Run restores the sessions saved in the store and runs every session
// until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) error {
	mem, err := d.store.Read(ctx)
	if err != nil {
		return fmt.Errorf("restore sessions: %w", err)
	}

	d.mu.Lock()
	d.ctx = ctx
	for _, ref := range mem.Sessions {
		if _, ok := d.sessions[ref.ID]; !ok {
			d.sessions[ref.ID] = session.New(ref, d.cfg, d.deps)
		}
	}
	for _, s := range d.sessions {
		d.startLocked(s)
	}
	n := len(d.sessions)
	d.mu.Unlock()
	d.log.Info("sessions restored", "count", len(mem.Sessions), "running", n)

	<-ctx.Done()
	d.wg.Wait()
	return nil
}

func (d *Dispatcher) startLocked(s *session.Swiper) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		_ = s.Run(d.ctx)
	}()
}

// Accept delivers msg from ref, creating and saving the session on first
// contact.
func (d *Dispatcher) Accept(ctx context.Context, ref memory.SessionRef, msg string) error {
	s, err := d.ensure(ctx, ref)
	if err != nil {
		return err
	}
	return s.Deliver(ctx, msg)
}

func (d *Dispatcher) ensure(ctx context.Context, ref memory.SessionRef) (*session.Swiper, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.ctx != nil && d.ctx.Err() != nil {
		return nil, session.ErrClosed
	}
	if s, ok := d.sessions[ref.ID]; ok {
		return s, nil
	}

	if err := d.store.SaveSession(ctx, ref); err != nil {
		d.log.Warn("save session", "type", ref.Type, "session", ref.ID, "error", err)
	}
	s := session.New(ref, d.cfg, d.deps)
	d.sessions[ref.ID] = s
	if d.ctx != nil {
		d.startLocked(s)
	}
	d.log.Info("new session", "type", ref.Type, "session", ref.ID)
	return s, nil
}

// Session returns the running session with id.
func (d *Dispatcher) Session(id string) (*session.Swiper, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, ok := d.sessions[id]
	return s, ok
}

// QueueDownload downloads or queues c for sessionID without prompting.
func (d *Dispatcher) QueueDownload(ctx context.Context, sessionID string, c content.Content) error {
	s, ok := d.Session(sessionID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSession, sessionID)
	}
	_, err := s.QueueDownload(ctx, c, true)
	return err
}

// Send delivers a session's reply through the transport for its type.
func (d *Dispatcher) Send(ctx context.Context, sessionID, message string) error {
	d.mu.Lock()
	s, ok := d.sessions[sessionID]
	var route session.Sender
	if ok {
		route = d.routes[s.Ref().Type]
	}
	d.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSession, sessionID)
	}
	if route == nil {
		return fmt.Errorf("%w: %s", ErrNoRoute, s.Ref().Type)
	}
	return route.Send(ctx, sessionID, message)
}

func (d *Dispatcher) onTransition(dl download.Download, from download.Status) {
	base := func(t string) events.BaseEvent {
		return events.NewBaseEvent(t, events.EntityDownload, dl.ID, dl.SessionID)
	}
	desc := dl.Video.Desc()

	var e events.Event
	switch {
	case from == "":
		started := &events.DownloadStarted{BaseEvent: base(events.EventDownloadStarted), Content: desc}
		if dl.Torrent != nil {
			started.Torrent = dl.Torrent.Name
			started.Indexer = dl.Torrent.Indexer
			started.Tier = dl.Torrent.Tier
		}
		e = started
	case dl.Status == download.StatusCompleted:
		e = &events.DownloadCompleted{BaseEvent: base(events.EventDownloadCompleted), Content: desc, Path: dl.Path}
	case dl.Status == download.StatusFailed:
		e = &events.DownloadFailed{BaseEvent: base(events.EventDownloadFailed), Content: desc, Reason: dl.Reason}
	case dl.Status == download.StatusCancelled:
		e = &events.DownloadCancelled{BaseEvent: base(events.EventDownloadCancelled), Content: desc}
	default:
		return
	}
	d.publish(context.Background(), e)
}

func (d *Dispatcher) publish(ctx context.Context, e events.Event) {
	if d.bus == nil {
		return
	}
	if err := d.bus.Publish(ctx, e); err != nil {
		d.log.Warn("publish event", "type", e.EventType(), "error", err)
	}
}

// recordingStore publishes a MemoryChanged event for every update that
// changed the document.
type recordingStore struct {
	Store
	publish func(context.Context, events.Event)
}

func (r *recordingStore) Update(ctx context.Context, sessionID string, target memory.Target, method reconcile.Method, item content.Content) memory.Result {
	res := r.Store.Update(ctx, sessionID, target, method, item)
	if res.Changed {
		r.publish(ctx, &events.MemoryChanged{
			BaseEvent: events.NewBaseEvent(events.EventMemoryChanged, events.EntityContent, 0, sessionID),
			Target:    string(target),
			Method:    string(method),
			Content:   item.Desc(),
		})
	}
	return res
}
