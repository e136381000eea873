package dispatch

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/vmunix/swiper/internal/content"
	"github.com/vmunix/swiper/internal/download"
	"github.com/vmunix/swiper/internal/events"
	"github.com/vmunix/swiper/internal/memory"
	"github.com/vmunix/swiper/internal/reconcile"
	"github.com/vmunix/swiper/internal/session"
	"github.com/vmunix/swiper/internal/torrent"
	"github.com/vmunix/swiper/internal/transfer"
	"github.com/vmunix/swiper/internal/transfer/mocks"
)

const waitTimeout = 2 * time.Second

type reply struct {
	sessionID string
	message   string
}

type outbox chan reply

func (o outbox) Send(_ context.Context, sessionID, message string) error {
	o <- reply{sessionID, message}
	return nil
}

// searcher returns one torrent named after the video.
type searcher struct{}

func (searcher) Search(_ context.Context, v content.Video, _ int) ([]*torrent.Torrent, error) {
	return []*torrent.Torrent{{Name: v.Desc(), Indexer: "test", Magnet: "magnet:?xt=" + v.Desc(), Seeders: 40, Tier: 21}}, nil
}

func (searcher) Best(candidates []*torrent.Torrent) *torrent.Torrent {
	if len(candidates) == 0 {
		return nil
	}
	return candidates[0]
}

type checker struct{ calls int }

func (c *checker) CheckMonitored() { c.calls++ }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fixture struct {
	t        *testing.T
	store    *memory.Store
	registry *download.Registry
	bus      *events.Bus
	d        *Dispatcher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	client := mocks.NewMockClient(ctrl)
	// Transfers never finish on their own.
	client.EXPECT().Download(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, _ *torrent.Torrent) (transfer.Result, error) {
			<-ctx.Done()
			return transfer.Result{}, ctx.Err()
		}).AnyTimes()
	client.EXPECT().Cancel(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
	client.EXPECT().Progress(gomock.Any(), gomock.Any()).Return(transfer.Progress{}, transfer.ErrNotTracked).AnyTimes()

	f := &fixture{
		t:        t,
		store:    memory.NewStore(filepath.Join(t.TempDir(), "memory.json"), memory.WithLogger(discardLogger())),
		registry: download.NewRegistry(),
		bus:      events.NewBus(nil, discardLogger()),
	}
	t.Cleanup(func() { f.bus.Close() })
	f.d = New(session.Config{MaxDownloads: 2}, f.store, session.Deps{
		Registry: f.registry,
		Searcher: searcher{},
		Transfer: client,
	}, f.bus, discardLogger())
	return f
}

// run starts the dispatcher and stops it when the test ends.
func (f *fixture) run() {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.d.Run(ctx) }()
	f.t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(waitTimeout):
			f.t.Error("dispatcher did not stop")
		}
	})
}

func next[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(waitTimeout):
		t.Fatal("timed out")
		var zero T
		return zero
	}
}

func TestAccept_CreatesSessionAndRoutesReplies(t *testing.T) {
	f := newFixture(t)
	out := make(outbox, 8)
	f.d.Route("cli", out)
	f.run()

	ref := memory.SessionRef{Type: "cli", ID: "local"}
	require.NoError(t, f.d.Accept(context.Background(), ref, "help"))

	got := next(t, (<-chan reply)(out))
	assert.Equal(t, "local", got.sessionID)
	assert.True(t, strings.HasPrefix(got.message, "Commands:"), got.message)

	mem, err := f.store.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []memory.SessionRef{ref}, mem.Sessions)

	_, ok := f.d.Session("local")
	assert.True(t, ok)
}

func TestAccept_BeforeRunIsHandledOnceRunning(t *testing.T) {
	f := newFixture(t)
	out := make(outbox, 8)
	f.d.Route("chat", out)

	require.NoError(t, f.d.Accept(context.Background(), memory.SessionRef{Type: "chat", ID: "u1"}, "abort"))
	f.run()

	assert.Equal(t, "Nothing is downloading.", next(t, (<-chan reply)(out)).message)
}

func TestRun_RestoresSessionsAndDrainsQueue(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.store.SaveSession(ctx, memory.SessionRef{Type: "chat", ID: "u1"}))
	res := f.store.Update(ctx, "u1", memory.TargetQueued, reconcile.MethodAdd, content.NewMovie("Heat", 1995))
	require.True(t, res.Changed)

	started := f.bus.Subscribe(events.EventDownloadStarted, 4)
	changed := f.bus.Subscribe(events.EventMemoryChanged, 8)
	f.run()

	e := next(t, started).(*events.DownloadStarted)
	assert.Equal(t, "Heat (1995)", e.Content)
	assert.Equal(t, "u1", e.SessionID())
	assert.Equal(t, "Heat (1995)", e.Torrent)
	assert.Equal(t, "test", e.Indexer)
	assert.Equal(t, 21, e.Tier)

	m := next(t, changed).(*events.MemoryChanged)
	assert.Equal(t, "queued", m.Target)
	assert.Equal(t, "remove", m.Method)
	assert.Equal(t, "Heat (1995)", m.Content)

	mem, err := f.store.Read(ctx)
	require.NoError(t, err)
	assert.Empty(t, mem.Queued)
	assert.Equal(t, 1, f.registry.Len())
}

func TestQueueDownload(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.d.Route("chat", make(outbox, 8))
	f.run()

	err := f.d.QueueDownload(ctx, "nobody", content.NewMovie("Heat", 1995))
	require.ErrorIs(t, err, ErrUnknownSession)

	require.NoError(t, f.d.Accept(ctx, memory.SessionRef{Type: "chat", ID: "u1"}, "status"))
	require.NoError(t, f.d.QueueDownload(ctx, "u1", content.NewMovie("Heat", 1995)))

	downloads := f.registry.ForSession("u1")
	require.Len(t, downloads, 1)
	assert.Equal(t, "Heat (1995)", downloads[0].Video.Desc())
}

func TestSend(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	err := f.d.Send(ctx, "nobody", "hi")
	require.ErrorIs(t, err, ErrUnknownSession)

	require.NoError(t, f.d.Accept(ctx, memory.SessionRef{Type: "smoke-signal", ID: "u1"}, "status"))
	err = f.d.Send(ctx, "u1", "hi")
	require.ErrorIs(t, err, ErrNoRoute)
}

func TestTransitionsArePublished(t *testing.T) {
	f := newFixture(t)
	all := f.bus.SubscribeAll(8)

	heat := content.NewMovie("Heat", 1995)
	heat.SetTorrent(&torrent.Torrent{Name: "Heat.1995.1080p", Indexer: "idx", Tier: 31})
	alien := content.NewMovie("Alien", 1979)
	alien.SetTorrent(&torrent.Torrent{Name: "Alien.1979.720p"})
	ran := content.NewMovie("Ran", 1985)
	ran.SetTorrent(&torrent.Torrent{Name: "Ran.1985.720p"})

	a := f.registry.Start("s1", heat)
	b := f.registry.Start("s1", alien)
	c := f.registry.Start("s2", ran)
	_, err := f.registry.Complete(a.ID, "/library/movies/Heat (1995)/Heat (1995).mkv")
	require.NoError(t, err)
	_, err = f.registry.Fail(b.ID, "disk full")
	require.NoError(t, err)
	_, err = f.registry.Transition(c.ID, download.StatusCancelled)
	require.NoError(t, err)

	var types []string
	for range 6 {
		e := next(t, all)
		types = append(types, e.EventType())
		switch e := e.(type) {
		case *events.DownloadStarted:
			if e.EntityID() == a.ID {
				assert.Equal(t, "Heat.1995.1080p", e.Torrent)
				assert.Equal(t, 31, e.Tier)
			}
		case *events.DownloadCompleted:
			assert.Equal(t, "Heat (1995)", e.Content)
			assert.Equal(t, "/library/movies/Heat (1995)/Heat (1995).mkv", e.Path)
		case *events.DownloadFailed:
			assert.Equal(t, "Alien (1979)", e.Content)
			assert.Equal(t, "disk full", e.Reason)
		case *events.DownloadCancelled:
			assert.Equal(t, "Ran (1985)", e.Content)
			assert.Equal(t, "s2", e.SessionID())
		}
	}
	assert.Equal(t, []string{
		events.EventDownloadStarted, events.EventDownloadStarted, events.EventDownloadStarted,
		events.EventDownloadCompleted, events.EventDownloadFailed, events.EventDownloadCancelled,
	}, types)
}

func TestCheckMonitored(t *testing.T) {
	f := newFixture(t)
	f.d.CheckMonitored()

	c := &checker{}
	f.d.SetChecker(c)
	f.d.CheckMonitored()
	assert.Equal(t, 1, c.calls)
}
