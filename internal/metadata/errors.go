package metadata

import "errors"

var (
	// ErrNotFound means no title matched the query.
	ErrNotFound = errors.New("no matching title")
	// ErrShowNotFound means the title is a series TVDB could not resolve,
	// or the requested season or episode does not exist.
	ErrShowNotFound = errors.New("show not found")
	// ErrUnavailable means a metadata service could not be reached.
	ErrUnavailable = errors.New("metadata service unavailable")
)
