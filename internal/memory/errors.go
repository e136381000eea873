package memory

import "errors"

var (
	// ErrLockTimeout is returned when the memory lock is not acquired in time.
	ErrLockTimeout = errors.New("memory lock timeout")
	// ErrCorrupt is returned when the memory file cannot be decoded.
	ErrCorrupt = errors.New("memory file corrupt")
)
