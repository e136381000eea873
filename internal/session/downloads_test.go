package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vmunix/swiper/internal/content"
	"github.com/vmunix/swiper/internal/memory"
	"github.com/vmunix/swiper/internal/reconcile"
	"github.com/vmunix/swiper/internal/torrent"
)

func TestQueueDownload_QueuesWhenSlotsAreFull(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, Config{MaxDownloads: 1})

	_, err := h.s.QueueDownload(ctx, content.NewMovie("Heat", 1995), true)
	require.NoError(t, err)
	h.expectStarted("Heat (1995)")

	_, err = h.s.QueueDownload(ctx, content.NewMovie("Alien", 1979), true)
	require.NoError(t, err)

	mem := h.memory()
	require.Len(t, mem.Queued, 1)
	assert.Equal(t, "Alien (1979)", mem.Queued[0].Desc())
	assert.Equal(t, "s1", mem.Queued[0].Owner())
	assert.Equal(t, 1, h.registry.Len())
	assert.Equal(t, 1, h.s.Slots())

	// Finishing the first download pulls the next one off the queue.
	h.transfer.finish("Heat (1995)", nil)
	h.expect("Heat (1995) download complete!")
	h.expectStarted("Alien (1979)")
	assert.Empty(t, h.memory().Queued)
	assert.Equal(t, 1, h.s.Slots())
}

func TestQueueDownload_QueuedReplyWhenPrompted(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, Config{MaxDownloads: 1})

	_, err := h.s.QueueDownload(ctx, content.NewMovie("Heat", 1995), true)
	require.NoError(t, err)
	h.expectStarted("Heat (1995)")

	reply, err := h.s.QueueDownload(ctx, content.NewMovie("Alien", 1979), false)
	require.NoError(t, err)
	assert.Equal(t, "Added Alien (1979) to queued.", reply)
}

func TestQueueDownload_CollectionNeverExceedsMax(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, Config{MaxDownloads: 2})

	var eps []*content.Episode
	for i := 1; i <= 5; i++ {
		eps = append(eps, content.NewEpisode("Foo", 1, i, date(2020, 1, i)))
	}
	_, err := h.s.QueueDownload(ctx, content.NewCollection("Foo", eps, content.InitialSeason, 1), true)
	require.NoError(t, err)

	h.expectStarted2("Foo S01E01", "Foo S01E02")
	assert.Equal(t, 2, h.s.Slots())
	mem := h.memory()
	require.Len(t, mem.Queued, 1)
	assert.Equal(t, "Foo S01E03-05", mem.Queued[0].Desc())

	for _, next := range []string{"Foo S01E03", "Foo S01E04", "Foo S01E05"} {
		h.transfer.finish(h.registry.ForSession("s1")[0].Torrent.Name, nil)
		h.expect("download complete!")
		h.expectStarted(next)
		assert.LessOrEqual(t, h.s.Slots(), 2)
	}
	assert.Empty(t, h.memory().Queued)
	assert.LessOrEqual(t, h.transfer.Peak(), 2)
}

func TestQueueDownload_CollectionFallsBackToMonitor(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, Config{MaxDownloads: 2})
	h.searcher.results = map[string][]*torrent.Torrent{"Foo S01E02": nil}

	eps := []*content.Episode{
		content.NewEpisode("Foo", 1, 1, date(2020, 1, 1)),
		content.NewEpisode("Foo", 1, 2, date(2020, 1, 8)),
	}
	reply, err := h.s.QueueDownload(ctx, content.NewCollection("Foo", eps, content.InitialSeason, 1), false)
	require.NoError(t, err)
	assert.Contains(t, reply, "Download starting.")

	h.expect("Looking for Foo S01E01-02 downloads...")
	h.expect("Failed to find Foo S01E02, adding to monitored.")
	h.expectStarted("Foo S01E01")

	mem := h.memory()
	require.Len(t, mem.Monitored, 1)
	assert.Equal(t, "Foo S01E02", mem.Monitored[0].Desc())
	assert.Eventually(t, func() bool { return h.s.Slots() == 1 }, waitTimeout, 10*time.Millisecond)
}

func TestQueueDownload_StartRemovesFromMonitored(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, Config{MaxDownloads: 1})
	ep := content.NewEpisode("Foo", 1, 1, date(2020, 1, 1))
	h.store.Update(ctx, "s1", memory.TargetMonitored, reconcile.MethodAdd, ep)

	_, err := h.s.QueueDownload(ctx, ep, true)
	require.NoError(t, err)
	h.expectStarted("Foo S01E01")
	assert.Empty(t, h.memory().Monitored)
}

func TestQueueDownload_SameEpisodeStartsOnce(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, Config{MaxDownloads: 2})
	ep := content.NewEpisode("Foo", 1, 1, date(2020, 1, 1))

	_, err := h.s.QueueDownload(ctx, ep, true)
	require.NoError(t, err)
	h.expectStarted("Foo S01E01")

	_, err = h.s.QueueDownload(ctx, ep, true)
	require.NoError(t, err)
	assert.Eventually(t, func() bool { return h.s.Slots() == 1 }, waitTimeout, 10*time.Millisecond)
	assert.Equal(t, 1, h.registry.Len())
	assert.Empty(t, h.transfer.started)
}

func TestTransferFailure_ReportsAndFreesSlot(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, Config{MaxDownloads: 1})

	_, err := h.s.QueueDownload(ctx, content.NewMovie("Heat", 1995), true)
	require.NoError(t, err)
	h.expectStarted("Heat (1995)")

	h.transfer.finish("Heat (1995)", errors.New("tracker said no"))
	h.expect("Heat (1995) download failed.")
	assert.Eventually(t, func() bool { return h.s.Slots() == 0 }, waitTimeout, 10*time.Millisecond)
	assert.Zero(t, h.registry.Len())

	h.transfer.mu.Lock()
	defer h.transfer.mu.Unlock()
	assert.Equal(t, []string{"Heat (1995)"}, h.transfer.cancelled)
}

func TestAbort_CancelsAndRefills(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, Config{MaxDownloads: 2})
	h.run()

	for _, m := range []*content.Movie{content.NewMovie("Heat", 1995), content.NewMovie("Alien", 1979), content.NewMovie("Ran", 1985)} {
		_, err := h.s.QueueDownload(ctx, m, true)
		require.NoError(t, err)
	}
	h.expectStarted2("Heat (1995)", "Alien (1979)")
	require.Len(t, h.memory().Queued, 1)

	h.say("abort")
	h.expect("Aborted current downloads.")
	h.expectStarted("Ran (1985)")
	assert.Empty(t, h.memory().Queued)
	assert.Equal(t, 1, h.registry.Len())
	assert.Equal(t, 1, h.s.Slots())
}

func TestAbort_NothingDownloading(t *testing.T) {
	h := newHarness(t, Config{MaxDownloads: 1})
	h.run()

	h.say("abort")
	h.expect("Nothing is downloading.")
}

func TestRun_DrainsQueueOnStart(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, Config{MaxDownloads: 1})
	h.store.Update(ctx, "s1", memory.TargetQueued, reconcile.MethodAdd, content.NewMovie("Heat", 1995))
	h.store.Update(ctx, "s1", memory.TargetQueued, reconcile.MethodAdd, content.NewMovie("Alien", 1979))
	h.store.Update(ctx, "other", memory.TargetQueued, reconcile.MethodAdd, content.NewMovie("Ran", 1985))

	h.run()
	h.expectStarted("Heat (1995)")

	mem := h.memory()
	require.Len(t, mem.Queued, 2)
	assert.Equal(t, "Alien (1979)", mem.QueuedFor("s1")[0].Desc())
	assert.Equal(t, 1, h.s.Slots())
}

// expectStarted2 waits for two downloads that start concurrently.
func (h *harness) expectStarted2(a, b string) {
	h.t.Helper()
	var got []string
	for range 2 {
		select {
		case name := <-h.transfer.started:
			got = append(got, name)
		case <-time.After(waitTimeout):
			h.t.Fatalf("only %v started", got)
		}
	}
	assert.ElementsMatch(h.t, []string{a, b}, got)
}
