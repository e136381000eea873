// Package search finds torrents for videos and ranks them.
package search

import "errors"

var (
	// ErrNoIndexers is returned when no indexers are configured.
	ErrNoIndexers = errors.New("no indexers configured")

	// ErrIndexersUnavailable indicates every indexer failed.
	ErrIndexersUnavailable = errors.New("all indexers failed")

	// ErrNoResults indicates no matching torrents were found.
	// This is informational, not a failure.
	ErrNoResults = errors.New("no matching torrents found")
)
