package session

import "errors"

var (
	// ErrCancelled is returned by a prompt when the user types "cancel".
	ErrCancelled = errors.New("cancelled by user")

	// ErrUnrecognized marks input the session could not make sense of.
	ErrUnrecognized = errors.New("input not recognized")

	// ErrClosed is returned when the session stops while waiting for input.
	ErrClosed = errors.New("session closed")
)

// InputError is a problem with what the user typed. Message is shown to
// the user as is.
type InputError struct {
	Message string
}

func (e *InputError) Error() string { return e.Message }

func (e *InputError) Unwrap() error { return ErrUnrecognized }

func inputErr(msg string) error { return &InputError{Message: msg} }
