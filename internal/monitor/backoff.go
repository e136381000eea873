package monitor

import "time"

// DefaultBackoff is the default wait schedule after an episode airs.
var DefaultBackoff = Minutes(45, 15, 15, 15, 30, 30, 60, 60, 120, 240)

// Backoff is a schedule of waits between searches for a newly aired
// episode. The first search happens Backoff[0] after release, the second
// Backoff[1] after that, and so on.
type Backoff []time.Duration

// Minutes builds a Backoff from minute counts.
func Minutes(m ...int) Backoff {
	b := make(Backoff, len(m))
	for i, v := range m {
		b[i] = time.Duration(v) * time.Minute
	}
	return b
}

// Total is the time after release at which searching stops.
func (b Backoff) Total() time.Duration {
	var sum time.Duration
	for _, d := range b {
		sum += d
	}
	return sum
}

// Next returns how long to wait until the next scheduled search, given the
// time elapsed since release. Negative elapsed means the episode has not
// aired yet. ok is false once elapsed exceeds Total.
func (b Backoff) Next(elapsed time.Duration) (wait time.Duration, ok bool) {
	var at time.Duration
	for _, d := range b {
		at += d
		if at >= elapsed {
			return at - elapsed, true
		}
	}
	return 0, false
}
