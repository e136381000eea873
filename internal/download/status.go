package download

import "slices"

// validTransitions defines allowed state transitions.
// Key is the "from" status, value is list of valid "to" statuses.
var validTransitions = map[Status][]Status{
	StatusDownloading: {StatusCompleted, StatusFailed, StatusCancelled},
	StatusCompleted:   {},
	StatusFailed:      {},
	StatusCancelled:   {},
}

// CanTransitionTo returns true if transitioning from s to target is valid.
func (s Status) CanTransitionTo(target Status) bool {
	return slices.Contains(validTransitions[s], target)
}

// IsTerminal returns true if this status has no valid outgoing transitions.
func (s Status) IsTerminal() bool {
	valid, ok := validTransitions[s]
	return ok && len(valid) == 0
}
