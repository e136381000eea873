package download

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a download is not in the active list.
var ErrNotFound = errors.New("download not found")

// TransitionError reports a disallowed status change.
type TransitionError struct {
	ID   int64
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("download %d: invalid transition %s -> %s", e.ID, e.From, e.To)
}
