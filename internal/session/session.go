// Package session runs the conversation with one user: it parses commands,
// asks follow-up questions and drives that user's downloads within a fixed
// number of download slots.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/vmunix/swiper/internal/content"
	"github.com/vmunix/swiper/internal/download"
	"github.com/vmunix/swiper/internal/events"
	"github.com/vmunix/swiper/internal/memory"
	"github.com/vmunix/swiper/internal/metadata"
	"github.com/vmunix/swiper/internal/reconcile"
	"github.com/vmunix/swiper/internal/torrent"
	"github.com/vmunix/swiper/internal/transfer"
)

const inboxSize = 16

// Store is the persistent memory surface a session needs.
type Store interface {
	Read(ctx context.Context) (*memory.Memory, error)
	Update(ctx context.Context, sessionID string, target memory.Target, method reconcile.Method, item content.Content) memory.Result
}

// Searcher finds and ranks torrents for a video.
type Searcher interface {
	Search(ctx context.Context, v content.Video, retries int) ([]*torrent.Torrent, error)
	Best(candidates []*torrent.Torrent) *torrent.Torrent
}

// Exporter moves a finished transfer into the library.
type Exporter interface {
	Export(ctx context.Context, v content.Video, res transfer.Result) (string, error)
}

// History reads past download events.
type History interface {
	ForSession(ctx context.Context, sessionID, eventType string, since time.Time) ([]events.RawEvent, error)
}

// Checker triggers a search of everything monitored without waiting for it.
type Checker interface {
	CheckMonitored()
}

// Sender delivers a reply to the user behind a session.
type Sender interface {
	Send(ctx context.Context, sessionID, message string) error
}

// Config holds the per-session limits.
type Config struct {
	MaxDownloads    int
	DisplayTorrents int
	SearchRetries   int
}

// Deps are the collaborators shared by every session.
type Deps struct {
	Store    Store
	Registry *download.Registry
	Resolver metadata.Resolver
	Searcher Searcher
	Transfer transfer.Client
	Exporter Exporter
	History  History // optional
	Checker  Checker // optional
	Sender   Sender
	Logger   *slog.Logger
	Now      func() time.Time
}

// Swiper is one user's conversation. Messages are handled one at a time on
// the goroutine running Run; downloads run on their own goroutines.
type Swiper struct {
	ref      memory.SessionRef
	cfg      Config
	store    Store
	registry *download.Registry
	resolver metadata.Resolver
	searcher Searcher
	transfer transfer.Client
	exporter Exporter
	history  History
	checker  Checker
	sender   Sender
	log      *slog.Logger
	now      func() time.Time

	inbox chan string

	// ctx outlives individual commands and bounds transfers and queue drains.
	ctx  context.Context
	stop context.CancelFunc
	wg   sync.WaitGroup

	mu    sync.Mutex
	slots int // download slots in use, including searches in flight
}

// New creates a session for ref. Call Run to start handling messages.
func New(ref memory.SessionRef, cfg Config, deps Deps) *Swiper {
	if cfg.MaxDownloads < 1 {
		cfg.MaxDownloads = 1
	}
	if cfg.DisplayTorrents < 1 {
		cfg.DisplayTorrents = 4
	}
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	ctx, stop := context.WithCancel(context.Background())
	return &Swiper{
		ref:      ref,
		cfg:      cfg,
		store:    deps.Store,
		registry: deps.Registry,
		resolver: deps.Resolver,
		searcher: deps.Searcher,
		transfer: deps.Transfer,
		exporter: deps.Exporter,
		history:  deps.History,
		checker:  deps.Checker,
		sender:   deps.Sender,
		log:      log.With("component", "session", "session", ref.ID),
		now:      now,
		inbox:    make(chan string, inboxSize),
		ctx:      ctx,
		stop:     stop,
	}
}

// ID returns the session id.
func (s *Swiper) ID() string { return s.ref.ID }

// Ref returns the session type and id.
func (s *Swiper) Ref() memory.SessionRef { return s.ref }

// Deliver hands an inbound message to the session.
func (s *Swiper) Deliver(ctx context.Context, msg string) error {
	select {
	case s.inbox <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-s.ctx.Done():
		return ErrClosed
	}
}

// Run fills free download slots from the queue, then handles messages until
// ctx is cancelled. In-flight transfers are stopped before it returns.
func (s *Swiper) Run(ctx context.Context) error {
	s.log.Debug("session started")
	s.drainAsync(s.cfg.MaxDownloads)

	for {
		select {
		case <-ctx.Done():
			s.stop()
			s.wg.Wait()
			s.log.Debug("session stopped")
			return nil
		case msg := <-s.inbox:
			s.handle(ctx, msg)
		}
	}
}

// Wait blocks until background transfers and queue drains finish.
func (s *Swiper) Wait() {
	s.wg.Wait()
}

func (s *Swiper) handle(ctx context.Context, input string) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("command panicked", "input", input, "panic", r, "stack", string(debug.Stack()))
			s.send("Something went wrong. What do you need?")
		}
	}()

	reply, err := s.execute(ctx, strings.TrimSpace(input))
	var ie *InputError
	switch {
	case err == nil:
	case errors.Is(err, ErrCancelled):
		reply = "Ok, nevermind. Need anything else?"
	case errors.Is(err, ErrClosed) || ctx.Err() != nil:
		return
	case errors.As(err, &ie):
		reply = ie.Message
	default:
		s.log.Error("command failed", "input", input, "error", err)
		reply = "Something went wrong. What do you need?"
	}
	if reply != "" {
		s.send(reply)
	}
}

func (s *Swiper) send(msg string) {
	if err := s.sender.Send(s.ctx, s.ref.ID, msg); err != nil {
		s.log.Warn("reply not delivered", "error", err)
	}
}

// ask sends msg and waits for the user's answer.
func (s *Swiper) ask(ctx context.Context, msg string) (string, error) {
	s.send(msg)
	select {
	case <-ctx.Done():
		return "", ErrClosed
	case <-s.ctx.Done():
		return "", ErrClosed
	case in := <-s.inbox:
		in = strings.TrimSpace(in)
		if strings.EqualFold(in, "cancel") {
			return "", ErrCancelled
		}
		return in, nil
	}
}

// choose asks msg until the answer matches exactly one of possible.
func (s *Swiper) choose(ctx context.Context, msg string, possible ...response) (response, string, error) {
	prompt := msg
	for {
		in, err := s.ask(ctx, prompt)
		if err != nil {
			return response{}, "", err
		}
		if r, ok := match(in, possible); ok {
			return r, in, nil
		}
		prompt = "I'm not sure I understand. " + msg
	}
}

func (s *Swiper) confirm(ctx context.Context, msg string) (bool, error) {
	r, _, err := s.choose(ctx, msg, respYes, respNo)
	if err != nil {
		return false, err
	}
	return r == respYes, nil
}

// identify resolves free text into content owned by this session.
func (s *Swiper) identify(ctx context.Context, input string) (content.Content, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, inputErr("You didn't specify anything.")
	}
	q := ParseQuery(input)
	if q.Title == "" {
		return nil, inputErr("I don't understand what the title is.")
	}
	c, err := s.resolver.Identify(ctx, s.ref.ID, q)
	switch {
	case err == nil:
		return c, nil
	case errors.Is(err, metadata.ErrUnavailable):
		return nil, inputErr("I can't access the movie database right now, try again in a minute.")
	case errors.Is(err, metadata.ErrShowNotFound):
		return nil, inputErr("I can't find that show.")
	case errors.Is(err, metadata.ErrNotFound):
		return nil, inputErr("I don't know what that is, try being very explicit with spelling.")
	default:
		return nil, fmt.Errorf("identify %q: %w", q.Title, err)
	}
}
