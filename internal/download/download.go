// Package download tracks the downloads that are currently in flight.
//
// The Registry is the shared in-memory list of active downloads. Sessions
// mutate it; the scheduler and status rendering only read snapshots.
package download

import (
	"slices"
	"sync"
	"time"

	"github.com/vmunix/swiper/internal/content"
	"github.com/vmunix/swiper/internal/torrent"
)

// Status tracks download state.
type Status string

const (
	StatusDownloading Status = "downloading"
	StatusCompleted   Status = "completed"
	StatusFailed      Status = "failed"
	StatusCancelled   Status = "cancelled"
)

// Download is a snapshot of one active or just-finished download.
type Download struct {
	ID               int64
	SessionID        string
	Video            content.Video
	Torrent          *torrent.Torrent
	Status           Status
	StartedAt        time.Time
	LastTransitionAt time.Time
	Path             string // library destination, set on completion
	Reason           string // set when the download failed
}

// TransitionFunc observes status changes. from is the previous status.
type TransitionFunc func(d Download, from Status)

// Registry holds the active downloads of every session.
type Registry struct {
	mu        sync.RWMutex
	active    []*Download
	nextID    int64
	now       func() time.Time
	observers []TransitionFunc
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{now: time.Now}
}

// OnTransition registers fn to be called after every Start and Transition.
// Observers run synchronously and must not call back into the registry.
func (r *Registry) OnTransition(fn TransitionFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observers = append(r.observers, fn)
}

// Start records a new download of v for sessionID.
func (r *Registry) Start(sessionID string, v content.Video) Download {
	d, _ := r.start(sessionID, v, false)
	return d
}

// TryStart is Start unless sessionID already has an active download of v,
// in which case it returns that download and false.
func (r *Registry) TryStart(sessionID string, v content.Video) (Download, bool) {
	return r.start(sessionID, v, true)
}

func (r *Registry) start(sessionID string, v content.Video, unique bool) (Download, bool) {
	r.mu.Lock()
	if unique {
		i := slices.IndexFunc(r.active, func(d *Download) bool {
			return d.SessionID == sessionID && d.Video.Equal(v)
		})
		if i >= 0 {
			snap := *r.active[i]
			r.mu.Unlock()
			return snap, false
		}
	}
	r.nextID++
	now := r.now()
	d := &Download{
		ID:               r.nextID,
		SessionID:        sessionID,
		Video:            v,
		Torrent:          v.Torrent(),
		Status:           StatusDownloading,
		StartedAt:        now,
		LastTransitionAt: now,
	}
	r.active = append(r.active, d)
	snap := *d
	observers := slices.Clone(r.observers)
	r.mu.Unlock()

	for _, fn := range observers {
		fn(snap, "")
	}
	return snap, true
}

// Transition moves a download to a terminal status and removes it from the
// active list. Exactly one caller wins for a given download; the others get
// ErrNotFound.
func (r *Registry) Transition(id int64, to Status) (Download, error) {
	return r.transition(id, to, nil)
}

// Complete moves a download to StatusCompleted, recording where it was
// exported to.
func (r *Registry) Complete(id int64, path string) (Download, error) {
	return r.transition(id, StatusCompleted, func(d *Download) { d.Path = path })
}

// Fail moves a download to StatusFailed, recording why.
func (r *Registry) Fail(id int64, reason string) (Download, error) {
	return r.transition(id, StatusFailed, func(d *Download) { d.Reason = reason })
}

func (r *Registry) transition(id int64, to Status, annotate func(*Download)) (Download, error) {
	r.mu.Lock()
	i := slices.IndexFunc(r.active, func(d *Download) bool { return d.ID == id })
	if i < 0 {
		r.mu.Unlock()
		return Download{}, ErrNotFound
	}
	d := r.active[i]
	from := d.Status
	if !from.CanTransitionTo(to) {
		r.mu.Unlock()
		return Download{}, &TransitionError{ID: id, From: from, To: to}
	}
	d.Status = to
	if annotate != nil {
		annotate(d)
	}
	d.LastTransitionAt = r.now()
	if to.IsTerminal() {
		r.active = slices.Delete(r.active, i, i+1)
	}
	snap := *d
	observers := slices.Clone(r.observers)
	r.mu.Unlock()

	for _, fn := range observers {
		fn(snap, from)
	}
	return snap, nil
}

// Get returns the active download with id.
func (r *Registry) Get(id int64) (Download, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, d := range r.active {
		if d.ID == id {
			return *d, true
		}
	}
	return Download{}, false
}

// All returns every active download in start order.
func (r *Registry) All() []Download {
	return r.filter(func(*Download) bool { return true })
}

// ForSession returns the active downloads of one session.
func (r *Registry) ForSession(sessionID string) []Download {
	return r.filter(func(d *Download) bool { return d.SessionID == sessionID })
}

// Matching returns active downloads whose video is part of c.
func (r *Registry) Matching(c content.Content) []Download {
	return r.filter(func(d *Download) bool {
		return content.Overlaps(c, d.Video)
	})
}

// Len returns the number of active downloads.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.active)
}

func (r *Registry) filter(keep func(*Download) bool) []Download {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Download
	for _, d := range r.active {
		if keep(d) {
			out = append(out, *d)
		}
	}
	return out
}
