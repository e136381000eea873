package reconcile

import (
	"errors"
	"fmt"

	"github.com/vmunix/swiper/internal/content"
)

var (
	// ErrNoEpisodes rejects adding a collection that resolved to no episodes.
	ErrNoEpisodes = errors.New("no episodes")
	// ErrAlreadyPresent rejects adding content that is fully present.
	ErrAlreadyPresent = errors.New("already present")
	// ErrNotPresent reports that nothing matched a removal.
	ErrNotPresent = errors.New("not present")
	// ErrTitleConflict rejects adding content whose title is held by a
	// different kind of entry, or by a movie from another year.
	ErrTitleConflict = errors.New("title conflict")
)

// Rejection explains why a list was left unchanged.
type Rejection struct {
	Err      error           // one of the sentinel errors above
	Item     content.Content // the incoming item
	Existing content.Content // the same-titled entry, if any
}

func (r *Rejection) Error() string {
	if r.Existing != nil {
		return fmt.Sprintf("%s: %s (existing %s)", r.Err, r.Item.Desc(), r.Existing.Desc())
	}
	return fmt.Sprintf("%s: %s", r.Err, r.Item.Desc())
}

func (r *Rejection) Unwrap() error { return r.Err }

func reject(err error, item, existing content.Content) *Rejection {
	return &Rejection{Err: err, Item: item, Existing: existing}
}
