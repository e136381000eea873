package session

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/vmunix/swiper/internal/content"
	"github.com/vmunix/swiper/internal/download"
	"github.com/vmunix/swiper/internal/memory"
	"github.com/vmunix/swiper/internal/metadata"
	"github.com/vmunix/swiper/internal/metadata/mocks"
	"github.com/vmunix/swiper/internal/reconcile"
	"github.com/vmunix/swiper/internal/torrent"
	"github.com/vmunix/swiper/internal/transfer"
)

const waitTimeout = 2 * time.Second

// chat records every reply sent to the user.
type chat struct {
	replies chan string
}

func (c *chat) Send(_ context.Context, _, msg string) error {
	c.replies <- msg
	return nil
}

// fakeSearcher returns the torrents in results for a video's description,
// or a single torrent named after the video when none are configured.
type fakeSearcher struct {
	mu      sync.Mutex
	results map[string][]*torrent.Torrent
	err     error
	noBest  bool
}

func (f *fakeSearcher) Search(_ context.Context, v content.Video, _ int) ([]*torrent.Torrent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if r, ok := f.results[v.Desc()]; ok {
		return r, nil
	}
	return []*torrent.Torrent{{Name: v.Desc(), Magnet: "magnet:?xt=" + v.Desc(), Seeders: 50, Tier: 10}}, nil
}

func (f *fakeSearcher) Best(candidates []*torrent.Torrent) *torrent.Torrent {
	if f.noBest || len(candidates) == 0 {
		return nil
	}
	return candidates[0]
}

// fakeTransfer blocks each download until the test finishes or fails it.
type fakeTransfer struct {
	mu        sync.Mutex
	gates     map[string]chan error
	active    int
	peak      int
	started   chan string
	cancelled []string
}

func newFakeTransfer() *fakeTransfer {
	return &fakeTransfer{gates: map[string]chan error{}, started: make(chan string, 64)}
}

func (f *fakeTransfer) gate(name string) chan error {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch, ok := f.gates[name]
	if !ok {
		ch = make(chan error, 1)
		f.gates[name] = ch
	}
	return ch
}

func (f *fakeTransfer) Download(ctx context.Context, t *torrent.Torrent) (transfer.Result, error) {
	gate := f.gate(t.Name)
	f.mu.Lock()
	f.active++
	f.peak = max(f.peak, f.active)
	f.mu.Unlock()
	defer func() {
		f.mu.Lock()
		f.active--
		f.mu.Unlock()
	}()

	f.started <- t.Name
	select {
	case err := <-gate:
		return transfer.Result{Dir: "/downloads/" + t.Name, Files: []string{"/downloads/" + t.Name + "/video.mkv"}}, err
	case <-ctx.Done():
		return transfer.Result{}, ctx.Err()
	}
}

func (f *fakeTransfer) Cancel(_ context.Context, t *torrent.Torrent) error {
	f.mu.Lock()
	f.cancelled = append(f.cancelled, t.Name)
	f.mu.Unlock()
	select {
	case f.gate(t.Name) <- transfer.ErrCancelled:
	default:
	}
	return nil
}

func (f *fakeTransfer) Progress(_ context.Context, _ *torrent.Torrent) (transfer.Progress, error) {
	return transfer.Progress{Peers: 4, Speed: 2048, Percent: 50, ETA: 30 * time.Second}, nil
}

func (f *fakeTransfer) finish(name string, err error) {
	f.gate(name) <- err
}

func (f *fakeTransfer) Peak() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.peak
}

type fakeExporter struct{}

func (fakeExporter) Export(_ context.Context, v content.Video, _ transfer.Result) (string, error) {
	return "/library/" + v.Desc(), nil
}

type harness struct {
	t        *testing.T
	s        *Swiper
	store    *memory.Store
	registry *download.Registry
	resolver *mocks.MockResolver
	searcher *fakeSearcher
	transfer *fakeTransfer
	chat     *chat
	cancel   context.CancelFunc
	done     chan struct{}
}

func newHarness(t *testing.T, cfg Config) *harness {
	t.Helper()
	ctrl := gomock.NewController(t)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	store := memory.NewStore(filepath.Join(t.TempDir(), "memory.json"), memory.WithLogger(log))
	require.NoError(t, store.Init(context.Background()))

	h := &harness{
		t:        t,
		store:    store,
		registry: download.NewRegistry(),
		resolver: mocks.NewMockResolver(ctrl),
		searcher: &fakeSearcher{},
		transfer: newFakeTransfer(),
		chat:     &chat{replies: make(chan string, 64)},
	}
	h.s = New(memory.SessionRef{Type: "cli", ID: "s1"}, cfg, Deps{
		Store:    store,
		Registry: h.registry,
		Resolver: h.resolver,
		Searcher: h.searcher,
		Transfer: h.transfer,
		Exporter: fakeExporter{},
		Sender:   h.chat,
		Logger:   log,
		Now:      func() time.Time { return time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC) },
	})
	t.Cleanup(h.stop)
	return h
}

// run starts the message loop.
func (h *harness) run() {
	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	h.done = make(chan struct{})
	go func() {
		defer close(h.done)
		_ = h.s.Run(ctx)
	}()
}

func (h *harness) stop() {
	if h.cancel != nil {
		h.cancel()
		<-h.done
		return
	}
	h.s.stop()
	h.s.Wait()
}

func (h *harness) say(msg string) {
	h.t.Helper()
	require.NoError(h.t, h.s.Deliver(context.Background(), msg))
}

// expect reads the next reply and checks that it contains want.
func (h *harness) expect(want string) string {
	h.t.Helper()
	select {
	case got := <-h.chat.replies:
		require.Contains(h.t, got, want)
		return got
	case <-time.After(waitTimeout):
		h.t.Fatalf("no reply containing %q", want)
		return ""
	}
}

func (h *harness) expectStarted(name string) {
	h.t.Helper()
	select {
	case got := <-h.transfer.started:
		require.Equal(h.t, name, got)
	case <-time.After(waitTimeout):
		h.t.Fatalf("download of %q never started", name)
	}
}

func (h *harness) memory() *memory.Memory {
	h.t.Helper()
	mem, err := h.store.Read(context.Background())
	require.NoError(h.t, err)
	return mem
}

func (h *harness) identify(title string, c content.Content) {
	h.resolver.EXPECT().
		Identify(gomock.Any(), "s1", gomock.Cond(func(q metadata.Query) bool { return q.Title == title })).
		DoAndReturn(func(_ context.Context, owner string, _ metadata.Query) (content.Content, error) {
			c := c.Clone()
			c.SetOwner(owner)
			return c, nil
		}).
		AnyTimes()
}

func date(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 21, 0, 0, 0, time.UTC)
	return &t
}

func office() *content.Collection {
	return content.NewCollection("The Office", []*content.Episode{
		content.NewEpisode("The Office", 1, 1, date(2005, 3, 24)),
		content.NewEpisode("The Office", 1, 2, date(2005, 3, 29)),
		content.NewEpisode("The Office", 2, 1, date(2005, 9, 20)),
		content.NewEpisode("The Office", 2, 2, date(2005, 9, 27)),
		content.NewEpisode("The Office", 9, 1, date(2024, 3, 20)),
	}, content.InitialSeries, 0)
}

func TestSession_UnknownCommand(t *testing.T) {
	h := newHarness(t, Config{MaxDownloads: 1})
	h.run()

	h.say("dance")
	h.expect(`Not recognized. Type "help" to see what I can do.`)
}

func TestSession_Help(t *testing.T) {
	h := newHarness(t, Config{MaxDownloads: 1})
	h.run()

	h.say("help")
	got := h.expect("Commands:")
	assert.Contains(t, got, "download <content>")
	assert.Contains(t, got, `Type "help <command>" for details.`)

	h.say("commands get")
	got = h.expect("download <content>")
	assert.Contains(t, got, "Also: get")
	assert.Contains(t, got, "the office s02e05")
}

func TestSession_DownloadMovie(t *testing.T) {
	h := newHarness(t, Config{MaxDownloads: 2})
	h.identify("heat", content.NewMovie("Heat", 1995))
	h.run()

	h.say("download heat 1995")
	h.expect("Looking for Heat (1995) downloads...")
	h.expect("Download starting.")
	h.expectStarted("Heat (1995)")
	assert.Equal(t, 1, h.s.Slots())

	h.transfer.finish("Heat (1995)", nil)
	h.expect("Heat (1995) download complete!")
	assert.Eventually(t, func() bool { return h.s.Slots() == 0 }, waitTimeout, 10*time.Millisecond)
	assert.Zero(t, h.registry.Len())
}

func TestSession_DownloadNothingFoundOffersMonitor(t *testing.T) {
	h := newHarness(t, Config{MaxDownloads: 1})
	h.identify("heat", content.NewMovie("Heat", 1995))
	h.searcher.results = map[string][]*torrent.Torrent{"Heat (1995)": nil}
	h.run()

	h.say("get heat")
	h.expect("Looking for Heat (1995) downloads...")
	h.expect("I can't find any torrents right now.")
	h.say("what")
	h.expect("I'm not sure I understand. I can't find any torrents")
	h.say("monitor")
	h.expect("Added Heat (1995) to monitored.")

	assert.Len(t, h.memory().Monitored, 1)
	assert.Equal(t, 0, h.s.Slots())
}

func TestSession_CancelEndsPrompt(t *testing.T) {
	h := newHarness(t, Config{MaxDownloads: 1})
	h.identify("the office", office())
	h.run()

	h.say("monitor the office")
	h.expect(`Type "series" to monitor the entire series`)
	h.say("cancel")
	h.expect("Ok, nevermind. Need anything else?")
	assert.Empty(t, h.memory().Monitored)
}

func TestSession_MonitorSeason(t *testing.T) {
	h := newHarness(t, Config{MaxDownloads: 1})
	h.identify("the office", office())
	h.run()

	h.say("watch the office")
	h.expect(`Type "series"`)
	h.say("season 2")
	h.expect("Added The Office S02E01-02 to monitored.")

	mem := h.memory()
	require.Len(t, mem.Monitored, 1)
	assert.Equal(t, "s1", mem.Monitored[0].Owner())
}

func TestSession_MonitorNewEpisodes(t *testing.T) {
	h := newHarness(t, Config{MaxDownloads: 1})
	h.identify("the office", office())
	h.run()

	h.say("monitor the office")
	h.expect(`Type "series"`)
	h.say("new")
	h.expect("Added The Office S09E01 to monitored.")
}

func TestSession_MonitorMissingEpisode(t *testing.T) {
	h := newHarness(t, Config{MaxDownloads: 1})
	h.identify("the office", office())
	h.run()

	h.say("monitor the office")
	h.expect(`Type "series"`)
	h.say("s1 e9")
	h.expect("The Office doesn't have season 1 episode 9.")
	h.expect(`Type "series"`)
	h.say("s1 e2")
	h.expect("Added The Office S01E02 to monitored.")
}

func TestSession_Remove(t *testing.T) {
	h := newHarness(t, Config{MaxDownloads: 1})
	heat := content.NewMovie("Heat", 1995)
	h.identify("heat", heat)
	h.store.Update(context.Background(), "s1", memory.TargetMonitored, reconcile.MethodAdd, heat)
	h.run()

	h.say("remove heat")
	h.expect("Remove Heat (1995) from monitored?")
	h.say("yes")
	h.expect("Removed.")
	assert.Empty(t, h.memory().Monitored)

	h.say("delete heat")
	h.expect("Heat (1995) is not being monitored, queued or downloaded.")
}

func TestSession_RemoveSeasonCoversMonitoredEpisode(t *testing.T) {
	h := newHarness(t, Config{MaxDownloads: 1})
	season := content.NewCollection("Bar", []*content.Episode{
		content.NewEpisode("Bar", 1, 1, date(2020, 1, 1)),
		content.NewEpisode("Bar", 1, 2, date(2020, 1, 8)),
		content.NewEpisode("Bar", 1, 3, date(2020, 1, 15)),
	}, content.InitialSeason, 1)
	h.identify("bar", season)
	h.store.Update(context.Background(), "s1", memory.TargetMonitored, reconcile.MethodAdd,
		content.NewEpisode("Bar", 1, 1, date(2020, 1, 1)))
	h.run()

	h.say("remove bar")
	h.expect("Remove Bar S01E01-03 from monitored?")
	h.say("yes")
	h.expect("Removed.")
	assert.Empty(t, h.memory().Monitored)
}

func TestSession_RemoveEpisodeShrinksMonitoredCollection(t *testing.T) {
	h := newHarness(t, Config{MaxDownloads: 1})
	h.identify("the office", content.NewEpisode("The Office", 1, 2, date(2005, 3, 29)))
	h.store.Update(context.Background(), "s1", memory.TargetMonitored, reconcile.MethodAdd, office())
	h.run()

	h.say("remove the office s1 e2")
	h.expect("Remove The Office S01E02 from monitored?")
	h.say("yes")
	h.expect("Removed.")

	mon := h.memory().Monitored
	require.Len(t, mon, 1)
	coll, ok := mon[0].(*content.Collection)
	require.True(t, ok)
	assert.Equal(t, 4, coll.Len())
	assert.False(t, coll.ContainsAny(content.NewEpisode("The Office", 1, 2, nil)))
}

func TestSession_RemoveAbortsDownload(t *testing.T) {
	h := newHarness(t, Config{MaxDownloads: 1})
	h.identify("heat", content.NewMovie("Heat", 1995))
	h.run()

	h.say("download heat")
	h.expect("Looking for")
	h.expect("Download starting.")
	h.expectStarted("Heat (1995)")

	h.say("remove heat")
	h.expect("Abort downloading Heat (1995)?")
	h.say("y")
	h.expect("Removed.")
	assert.Zero(t, h.registry.Len())
	assert.Eventually(t, func() bool { return h.s.Slots() == 0 }, waitTimeout, 10*time.Millisecond)
}

func TestSession_SearchPagesAndPicks(t *testing.T) {
	h := newHarness(t, Config{MaxDownloads: 1, DisplayTorrents: 2})
	h.identify("heat", content.NewMovie("Heat", 1995))
	h.searcher.results = map[string][]*torrent.Torrent{"Heat (1995)": {
		{Name: "Heat.1995.720p", Seeders: 30},
		{Name: "Heat.1995.1080p", Seeders: 20},
		{Name: "Heat.1995.2160p", Seeders: 10},
	}}
	h.run()

	h.say("search heat")
	got := h.expect("Found torrents:")
	assert.Contains(t, got, "1. Heat.1995.720p")
	assert.NotContains(t, got, "Heat.1995.2160p")

	h.say("next")
	got = h.expect("Found torrents:")
	assert.Contains(t, got, "3. Heat.1995.2160p")

	h.say("download 3")
	h.expect("Download starting.")
	h.expectStarted("Heat.1995.2160p")
}

func TestSession_SearchSeriesAsksForEpisode(t *testing.T) {
	h := newHarness(t, Config{MaxDownloads: 1})
	h.identify("the office", office())
	h.run()

	h.say("search the office")
	h.expect("Give the season and episode numbers")
	h.say("season 2")
	h.expect("And the episode?")
	h.say("2")
	got := h.expect("Found torrents:")
	assert.Contains(t, got, "The Office S02E02")
}

func TestSession_IdentifyErrors(t *testing.T) {
	h := newHarness(t, Config{MaxDownloads: 1})
	h.resolver.EXPECT().Identify(gomock.Any(), "s1", gomock.Any()).Return(nil, metadata.ErrNotFound)
	h.run()

	h.say("download")
	h.expect("You didn't specify anything.")

	h.say("download qwzx")
	h.expect("I don't know what that is")
}

func TestSession_Status(t *testing.T) {
	h := newHarness(t, Config{MaxDownloads: 1})
	h.identify("heat", content.NewMovie("Heat", 1995))
	ctx := context.Background()
	h.store.Update(ctx, "other", memory.TargetMonitored, reconcile.MethodAdd, content.NewMovie("Alien", 1979))
	h.store.Update(ctx, "s1", memory.TargetMonitored, reconcile.MethodAdd, office().Released(time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)))
	h.run()

	h.say("download heat")
	h.expect("Looking for")
	h.expect("Download starting.")
	h.expectStarted("Heat (1995)")

	h.say("status")
	got := h.expect("Downloading:")
	lines := strings.Split(got, "\n")
	assert.Contains(t, lines, "* Heat (1995)  50.0% (4 peers, 2.0 kB/s, ETA 30s)")
	assert.Contains(t, lines, "  Alien (1979)")
	assert.Contains(t, got, "* The Office S01E01-02, S02E01-02, S09E01  (S09E01 Airs Wednesday, March 20)")
	assert.Contains(t, got, "Queued:\n  None")
}
