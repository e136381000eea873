package monitor

import (
	"container/heap"
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/vmunix/swiper/internal/content"
)

// SearchFunc searches for one tracked episode on behalf of its owner. It
// reports whether the episode still needs finding afterwards.
type SearchFunc func(ctx context.Context, sessionID string, ep *content.Episode) (pending bool)

type tracked struct {
	sessionID string
	ep        *content.Episode
	release   time.Time
	next      time.Time
	index     int
}

type trackedHeap []*tracked

func (h trackedHeap) Len() int           { return len(h) }
func (h trackedHeap) Less(i, j int) bool { return h[i].next.Before(h[j].next) }
func (h trackedHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *trackedHeap) Push(x any) {
	t := x.(*tracked)
	t.index = len(*h)
	*h = append(*h, t)
}

func (h *trackedHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return t
}

// Tracker re-searches upcoming episodes on a backoff schedule. A single
// goroutine (Run) owns the timing; Track may be called from anywhere.
type Tracker struct {
	backoff  Backoff
	cooldown time.Duration
	search   SearchFunc
	now      func() time.Time
	log      *slog.Logger

	mu    sync.Mutex
	queue trackedHeap
	busy  *tracked // popped and being searched
	wake  chan struct{}
}

// NewTracker creates a tracker that calls search for each due episode and
// waits cooldown after every search.
func NewTracker(backoff Backoff, cooldown time.Duration, search SearchFunc, log *slog.Logger) *Tracker {
	return &Tracker{
		backoff:  backoff,
		cooldown: cooldown,
		search:   search,
		now:      time.Now,
		log:      log.With("component", "tracker"),
		wake:     make(chan struct{}, 1),
	}
}

// Track starts following ep for sessionID. It returns false when ep has no
// release date, is already tracked, or its schedule is already over.
func (t *Tracker) Track(sessionID string, ep *content.Episode) bool {
	release, ok := ep.ReleaseDate()
	if !ok {
		return false
	}
	wait, ok := t.backoff.Next(t.now().Sub(release))
	if !ok {
		return false
	}

	t.mu.Lock()
	if t.busy != nil && t.busy.ep.Equal(ep) {
		t.mu.Unlock()
		return false
	}
	for _, e := range t.queue {
		if e.ep.Equal(ep) {
			t.mu.Unlock()
			return false
		}
	}
	heap.Push(&t.queue, &tracked{
		sessionID: sessionID,
		ep:        ep,
		release:   release,
		next:      t.now().Add(wait),
	})
	t.mu.Unlock()

	t.log.Debug("tracking episode", "episode", ep.Desc(), "session", sessionID, "next", wait)
	t.signal()
	return true
}

// Tracked returns the episodes currently followed, soonest first.
func (t *Tracker) Tracked() []*content.Episode {
	t.mu.Lock()
	defer t.mu.Unlock()
	h := make(trackedHeap, len(t.queue))
	copy(h, t.queue)
	out := make([]*content.Episode, 0, len(h))
	for h.Len() > 0 {
		out = append(out, heap.Pop(&h).(*tracked).ep)
	}
	return out
}

// Len returns the number of tracked episodes.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.queue)
}

func (t *Tracker) signal() {
	select {
	case t.wake <- struct{}{}:
	default:
	}
}

// Run fires due searches until ctx is cancelled.
func (t *Tracker) Run(ctx context.Context) error {
	timer := time.NewTimer(time.Hour)
	defer timer.Stop()

	for {
		var wait time.Duration = -1
		t.mu.Lock()
		if len(t.queue) > 0 {
			wait = max(t.queue[0].next.Sub(t.now()), 0)
		}
		t.mu.Unlock()

		var fire <-chan time.Time
		if wait >= 0 {
			timer.Reset(wait)
			fire = timer.C
		}

		select {
		case <-ctx.Done():
			return nil
		case <-t.wake:
			timer.Stop()
		case <-fire:
			t.fireDue(ctx)
		}
	}
}

// fireDue searches for the earliest entry if it is due, then reschedules it.
func (t *Tracker) fireDue(ctx context.Context) {
	t.mu.Lock()
	if len(t.queue) == 0 || t.queue[0].next.After(t.now()) {
		t.mu.Unlock()
		return
	}
	e := heap.Pop(&t.queue).(*tracked)
	t.busy = e
	t.mu.Unlock()

	pending := t.searchSafely(ctx, e)

	// The next wait is measured from the end of the cooldown so a search
	// landing exactly on a schedule point is not repeated straight away.
	after := t.now().Add(t.cooldown)
	wait, ok := t.backoff.Next(after.Sub(e.release))

	t.mu.Lock()
	defer t.mu.Unlock()
	t.busy = nil
	switch {
	case !pending:
		t.log.Info("episode no longer pending", "episode", e.ep.Desc())
	case !ok:
		t.log.Info("giving up on episode", "episode", e.ep.Desc(), "released", e.release)
	default:
		e.next = after.Add(wait)
		heap.Push(&t.queue, e)
	}
}

func (t *Tracker) searchSafely(ctx context.Context, e *tracked) (pending bool) {
	defer func() {
		if r := recover(); r != nil {
			t.log.Error("episode search panicked", "episode", e.ep.Desc(), "panic", r)
			pending = true
		}
	}()
	return t.search(ctx, e.sessionID, e.ep)
}
