package session

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/vmunix/swiper/internal/content"
	"github.com/vmunix/swiper/internal/download"
	"github.com/vmunix/swiper/internal/memory"
	"github.com/vmunix/swiper/internal/reconcile"
	"github.com/vmunix/swiper/internal/search"
	"github.com/vmunix/swiper/internal/torrent"
	"github.com/vmunix/swiper/internal/transfer"
)

const (
	downloadStarting = `Download starting. Type "abort" to stop, or "status" to view progress.`
	indexersDown     = "I can't reach any torrent sites right now, try again in a few minutes."
)

// Slots returns the number of download slots in use.
func (s *Swiper) Slots() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.slots
}

// reserve takes up to n free slots and returns how many it got.
func (s *Swiper) reserve(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	got := min(max(n, 0), s.cfg.MaxDownloads-s.slots)
	s.slots += got
	return got
}

func (s *Swiper) hasFreeSlot() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.slots < s.cfg.MaxDownloads
}

// freeSlots gives back n slots and refills them from the queue in the
// background.
func (s *Swiper) freeSlots(n int) {
	s.mu.Lock()
	s.slots = max(s.slots-n, 0)
	s.mu.Unlock()
	s.drainAsync(n)
}

func (s *Swiper) drainAsync(n int) {
	if n <= 0 {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.drainQueue(s.ctx, n)
	}()
}

// QueueDownload downloads c using as many free slots as it needs and queues
// whatever does not fit. With noPrompt set the user is never asked anything:
// torrents are picked automatically and videos with no usable torrent are
// monitored instead.
func (s *Swiper) QueueDownload(ctx context.Context, c content.Content, noPrompt bool) (string, error) {
	picked := torrentOf(c)
	desc := c.Desc()
	c = c.Clone()
	c.SetOwner(s.ref.ID)

	var ready []content.Video
	var rest content.Content
	switch v := c.(type) {
	case *content.Collection:
		for _, ep := range v.Pop(s.reserve(v.Len())) {
			ready = append(ready, ep)
		}
		if !v.IsEmpty() {
			rest = v
		}
	case content.Video:
		v.SetTorrent(picked)
		if s.reserve(1) == 1 {
			ready = append(ready, v)
		} else {
			rest = v
		}
	}

	var replies []string
	if rest != nil {
		res := s.store.Update(ctx, s.ref.ID, memory.TargetQueued, reconcile.MethodAdd, rest)
		replies = append(replies, res.Message)
	}
	if len(ready) == 0 {
		return replyUnless(noPrompt, replies), nil
	}

	if _, isCollection := c.(*content.Collection); noPrompt || isCollection {
		if !noPrompt {
			s.send(fmt.Sprintf("Looking for %s downloads...", desc))
		}
		var started int
		var g errgroup.Group
		results := make([]bool, len(ready))
		for i, v := range ready {
			g.Go(func() error {
				results[i] = s.resolveQuietly(ctx, v, !noPrompt)
				return nil
			})
		}
		_ = g.Wait()
		for _, ok := range results {
			if ok {
				started++
			}
		}
		if started > 0 {
			replies = append([]string{downloadStarting}, replies...)
		}
		return replyUnless(noPrompt, replies), nil
	}

	reply, err := s.resolveInteractive(ctx, ready[0])
	return strings.Join(append([]string{reply}, replies...), "\n"), err
}

func replyUnless(quiet bool, replies []string) string {
	if quiet {
		return ""
	}
	return strings.Join(replies, "\n")
}

func torrentOf(c content.Content) *torrent.Torrent {
	if v, ok := c.(content.Video); ok {
		return v.Torrent()
	}
	return nil
}

// resolveQuietly picks a torrent for v and starts it. When nothing usable
// is found, v is monitored and its slot freed.
func (s *Swiper) resolveQuietly(ctx context.Context, v content.Video, notify bool) bool {
	if v.Torrent() == nil {
		torrents, err := s.searcher.Search(ctx, v, s.cfg.SearchRetries)
		if err != nil {
			s.log.Warn("torrent search failed", "content", v.Desc(), "error", err)
		}
		v.SetTorrent(s.searcher.Best(torrents))
	}
	if v.Torrent() == nil {
		if notify {
			s.send(fmt.Sprintf("Failed to find %s, adding to monitored.", v.Desc()))
		}
		s.store.Update(ctx, s.ref.ID, memory.TargetMonitored, reconcile.MethodAdd, v)
		s.freeSlots(1)
		return false
	}
	s.startDownload(ctx, v)
	return true
}

// resolveInteractive picks a torrent for v, asking the user what to do
// when no good one turns up. The slot reserved for v is freed before asking.
func (s *Swiper) resolveInteractive(ctx context.Context, v content.Video) (string, error) {
	if v.Torrent() != nil {
		s.startDownload(ctx, v)
		return downloadStarting, nil
	}

	s.send(fmt.Sprintf("Looking for %s downloads...", v.Desc()))
	torrents, err := s.searcher.Search(ctx, v, s.cfg.SearchRetries)
	if err != nil {
		s.freeSlots(1)
		if errors.Is(err, search.ErrIndexersUnavailable) {
			return indexersDown, nil
		}
		return "", err
	}
	if len(torrents) == 0 {
		s.freeSlots(1)
		return s.noTorrents(ctx, v, func() (string, error) {
			return s.QueueDownload(ctx, v, false)
		})
	}

	best := s.searcher.Best(torrents)
	if best == nil {
		s.freeSlots(1)
		msg := fmt.Sprintf(`I can't find a good torrent. If you'd like to see the results for yourself, type "search", otherwise type "monitor" and I'll keep an eye out for %s.`, v.Desc())
		r, _, err := s.choose(ctx, msg, respSearch, respMonitor)
		if err != nil {
			return "", err
		}
		if r == respSearch {
			return s.pickTorrent(ctx, v, torrents)
		}
		return s.monitorContent(ctx, v), nil
	}

	v.SetTorrent(best)
	s.startDownload(ctx, v)
	return downloadStarting, nil
}

// noTorrents offers to retry or monitor v after a search came back empty.
func (s *Swiper) noTorrents(ctx context.Context, v content.Video, retry func() (string, error)) (string, error) {
	msg := fmt.Sprintf(`I can't find any torrents right now. Would you like me to try again? Otherwise, type "monitor" and I'll keep an eye out for %s.`, v.Desc())
	r, _, err := s.choose(ctx, msg, respYes, respNo, respMonitor)
	if err != nil {
		return "", err
	}
	switch r {
	case respYes:
		return retry()
	case respMonitor:
		return s.monitorContent(ctx, v), nil
	default:
		return "Ok.", nil
	}
}

// startDownload hands v to the transfer client. The caller holds a slot
// for it, which is given back when v is already downloading.
func (s *Swiper) startDownload(ctx context.Context, v content.Video) {
	for _, target := range []memory.Target{memory.TargetMonitored, memory.TargetQueued} {
		s.store.Update(ctx, s.ref.ID, target, reconcile.MethodRemove, v)
	}
	d, ok := s.registry.TryStart(s.ref.ID, v)
	if !ok {
		s.log.Debug("already downloading", "content", v.Desc(), "download", d.ID)
		s.freeSlots(1)
		return
	}
	s.log.Info("download started", "content", v.Desc(), "torrent", d.Torrent.Name, "download", d.ID)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runTransfer(d)
	}()
}

func (s *Swiper) runTransfer(d download.Download) {
	ctx := s.ctx
	res, err := s.transfer.Download(ctx, d.Torrent)
	var path string
	if err == nil {
		path, err = s.exporter.Export(ctx, d.Video, res)
	}
	if ctx.Err() != nil {
		return
	}

	if err != nil {
		// Losing the transition means the download was aborted and whoever
		// aborted it freed the slot.
		if _, terr := s.registry.Fail(d.ID, err.Error()); terr != nil {
			return
		}
		s.log.Warn("download failed", "content", d.Video.Desc(), "download", d.ID, "error", err)
		s.cancelTransfer(ctx, d)
		s.send(fmt.Sprintf(`%s download failed. Type "search %s" to pick a different torrent.`, d.Video.Desc(), d.Video.Desc()))
		s.freeSlots(1)
		return
	}

	if _, err := s.registry.Complete(d.ID, path); err != nil {
		return
	}
	s.log.Info("download complete", "content", d.Video.Desc(), "download", d.ID, "path", path)
	s.send(d.Video.Desc() + " download complete!")
	s.freeSlots(1)
}

// cancelDownload marks d cancelled and stops its transfer. It reports false
// when d already ended. The caller frees the slot.
func (s *Swiper) cancelDownload(ctx context.Context, d download.Download) bool {
	if _, err := s.registry.Transition(d.ID, download.StatusCancelled); err != nil {
		return false
	}
	s.cancelTransfer(ctx, d)
	return true
}

func (s *Swiper) cancelTransfer(ctx context.Context, d download.Download) {
	if err := s.transfer.Cancel(ctx, d.Torrent); err != nil && !errors.Is(err, transfer.ErrNotTracked) {
		s.log.Warn("cancel transfer", "download", d.ID, "error", err)
	}
}

func (s *Swiper) abort(ctx context.Context) string {
	n := 0
	for _, d := range s.registry.ForSession(s.ref.ID) {
		if s.cancelDownload(ctx, d) {
			n++
		}
	}
	if n == 0 {
		return "Nothing is downloading."
	}
	s.log.Info("downloads aborted", "count", n)
	s.freeSlots(n)
	return "Aborted current downloads."
}

// drainQueue starts up to count slots worth of this session's queued
// content, oldest first. It stops as soon as no slot is free.
func (s *Swiper) drainQueue(ctx context.Context, count int) {
	var lost content.Content
	for count > 0 && s.hasFreeSlot() {
		mem, err := s.store.Read(ctx)
		if err != nil {
			s.log.Warn("queue drain: read memory", "error", err)
			return
		}
		queued := mem.QueuedFor(s.ref.ID)
		if len(queued) == 0 {
			return
		}
		next := queued[0]
		if lost != nil && lost.Equal(next) {
			return
		}

		res := s.store.Update(ctx, s.ref.ID, memory.TargetQueued, reconcile.MethodRemove, next)
		if !res.Changed {
			var rej *reconcile.Rejection
			if errors.As(res.Err, &rej) {
				// Another drain took it first.
				lost = next
				continue
			}
			return
		}

		if coll, ok := next.(*content.Collection); ok {
			count -= coll.Len()
		} else {
			count--
		}
		if _, err := s.QueueDownload(ctx, next, true); err != nil {
			s.log.Warn("queue drain: download", "content", next.Desc(), "error", err)
		}
	}
}
