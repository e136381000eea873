package content

import "errors"

var (
	// ErrTitleMismatch is returned when ordering episodes of different shows.
	ErrTitleMismatch = errors.New("episodes belong to different titles")
	// ErrUnknownKind is returned when decoding a record with an unknown type tag.
	ErrUnknownKind = errors.New("unknown content type")
	// ErrInvalidRecord is returned when a record is missing required fields.
	ErrInvalidRecord = errors.New("invalid content record")
)
